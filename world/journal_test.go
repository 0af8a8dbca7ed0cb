package world

import "testing"

func TestRollback_RestoresEverything(t *testing.T) {
	w := newTestWorld(t)

	w.Begin()
	if err := w.SetProp("torch1", "lit", true); err != nil {
		t.Fatalf("SetProp: %v", err)
	}
	if err := w.Move("torch1", "chest1"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := w.Link("torch1", "room2", "tether"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := w.ApplyStatus("agent1", "hasted", Duration{Turns: 3}, ""); err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
	spawned, err := w.Spawn("torch", nil, "room1")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	w.SetTriggerState(TriggerKey("glow", "torch1"), true)
	w.Rollback()

	if v, _ := w.GetProp("torch1", "lit"); v != false {
		t.Errorf("lit = %v after rollback, want false", v)
	}
	if loc, _ := w.LocationOf("torch1"); loc != "room1" {
		t.Errorf("torch1 located in %q after rollback, want room1", loc)
	}
	if w.HasLink("torch1", "room2", "tether") {
		t.Error("link survived rollback")
	}
	if got := w.Statuses("agent1"); len(got) != 0 {
		t.Errorf("status survived rollback: %v", got)
	}
	if _, ok := w.Get(spawned); ok {
		t.Error("spawned instance survived rollback")
	}
	if w.TriggerState(TriggerKey("glow", "torch1")) {
		t.Error("trigger state survived rollback")
	}
}

func TestCommit_Keeps(t *testing.T) {
	w := newTestWorld(t)

	w.Begin()
	if err := w.SetProp("torch1", "lit", true); err != nil {
		t.Fatalf("SetProp: %v", err)
	}
	w.Commit()

	if v, _ := w.GetProp("torch1", "lit"); v != true {
		t.Errorf("lit = %v after commit, want true", v)
	}
}

func TestBegin_PanicsOnNesting(t *testing.T) {
	w := newTestWorld(t)
	w.Begin()
	defer w.Rollback()

	defer func() {
		if recover() == nil {
			t.Error("nested Begin did not panic")
		}
	}()
	w.Begin()
}

func TestMutationOutsideBatch_Sticks(t *testing.T) {
	w := newTestWorld(t)

	// Writes outside a batch skip the journal entirely; a later batch's
	// rollback must not disturb them.
	if err := w.SetProp("torch1", "lit", true); err != nil {
		t.Fatalf("SetProp: %v", err)
	}
	w.Begin()
	w.Rollback()
	if v, _ := w.GetProp("torch1", "lit"); v != true {
		t.Errorf("pre-batch write lost: lit = %v", v)
	}
}
