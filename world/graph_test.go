package world

import (
	"errors"
	"testing"
)

func TestMove(t *testing.T) {
	w := newTestWorld(t)

	if err := w.Move("torch1", "chest1"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if loc, _ := w.LocationOf("torch1"); loc != "chest1" {
		t.Errorf("torch1 located in %q, want chest1", loc)
	}
	for _, id := range w.Contents("room1") {
		if id == "torch1" {
			t.Error("torch1 still listed in old container")
		}
	}

	// Moving to the current container is a no-op.
	if err := w.Move("torch1", "chest1"); err != nil {
		t.Errorf("same-container move = %v, want nil", err)
	}
}

func TestMove_Errors(t *testing.T) {
	w := newTestWorld(t)

	if err := w.Move("ghost", "room1"); !errors.Is(err, ErrNoSuchEntity) {
		t.Errorf("unknown entity = %v, want ErrNoSuchEntity", err)
	}
	if err := w.Move("torch1", "ghost"); !errors.Is(err, ErrNoSuchEntity) {
		t.Errorf("unknown container = %v, want ErrNoSuchEntity", err)
	}
	if err := w.Move("torch1", "agent1"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("non-container target = %v, want ErrInvalidTarget", err)
	}
}

func TestMove_ContainmentCycle(t *testing.T) {
	w := newTestWorld(t)
	id, err := w.Spawn("chest", nil, "chest1")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if err := w.Move("chest1", "chest1"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("self-containment = %v, want ErrInvalidTarget", err)
	}
	if err := w.Move("chest1", id); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("cycle through contents = %v, want ErrInvalidTarget", err)
	}
}

func TestMove_Capacity(t *testing.T) {
	w := newTestWorld(t)

	// chest capacity defaults to 2.
	if err := w.Move("torch1", "chest1"); err != nil {
		t.Fatalf("first move: %v", err)
	}
	second, _ := w.Spawn("torch", nil, "chest1")
	if second == "" {
		t.Fatal("spawn into chest failed")
	}
	if _, err := w.Spawn("torch", nil, "chest1"); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("over-capacity spawn = %v, want ErrCapacityExceeded", err)
	}

	// Freeing a slot lets the move through.
	if err := w.Move(second, "room1"); err != nil {
		t.Fatalf("move out: %v", err)
	}
	if err := w.Move(second, "chest1"); err != nil {
		t.Errorf("move back into freed slot = %v", err)
	}
}

func TestLink(t *testing.T) {
	w := newTestWorld(t)

	if err := w.Link("room1", "room2", ""); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("empty kind = %v, want ErrInvalidTarget", err)
	}
	if err := w.Link("ghost", "room2", "passage"); !errors.Is(err, ErrNoSuchEntity) {
		t.Errorf("unknown source = %v, want ErrNoSuchEntity", err)
	}

	if err := w.Link("room1", "room2", "passage"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := w.Link("room1", "room2", "passage"); err != nil {
		t.Errorf("duplicate link = %v, want nil no-op", err)
	}
	if err := w.Link("room1", "room2", "drainpipe"); err != nil {
		t.Fatalf("second kind: %v", err)
	}

	if got := w.Linked("room1", "passage"); len(got) != 1 || got[0] != "room2" {
		t.Errorf("Linked(passage) = %v", got)
	}
	if got := w.Linked("room1", ""); len(got) != 1 {
		t.Errorf("Linked(any) = %v, want one target", got)
	}
	if !w.HasLink("room1", "room2", "drainpipe") {
		t.Error("drainpipe edge missing")
	}
}

func TestUnlink(t *testing.T) {
	w := newTestWorld(t)
	if err := w.Link("room1", "room2", "passage"); err != nil {
		t.Fatalf("Link: %v", err)
	}

	if err := w.Unlink("room1", "room2", "passage"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if w.HasLink("room1", "room2", "passage") {
		t.Error("edge survived Unlink")
	}
	// Absent edge is a no-op.
	if err := w.Unlink("room1", "room2", "passage"); err != nil {
		t.Errorf("unlink absent edge = %v, want nil", err)
	}
}

func TestAdjacent(t *testing.T) {
	w := newTestWorld(t)

	// room2 links to room1 from config; adjacency holds both ways.
	if !w.Adjacent("room1", "room2") || !w.Adjacent("room2", "room1") {
		t.Error("linked rooms should be adjacent in both directions")
	}
	if w.Adjacent("room1", "chest1") {
		t.Error("unlinked entities reported adjacent")
	}
}
