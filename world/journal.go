package world

// The undo journal makes an effects batch atomic: every low-level mutation
// performed between Begin and Commit records an inverse closure, and
// Rollback replays them in reverse. Outside a batch, record is a no-op —
// world construction and other infallible paths skip the bookkeeping.

// Begin opens an atomic batch. Batches do not nest: triggers fired by a
// batch run in their own batches after the first commits.
func (w *World) Begin() {
	if w.inBatch {
		panic("world: nested batch")
	}
	w.inBatch = true
	w.journal = w.journal[:0]
}

// Commit closes the batch, keeping every mutation.
func (w *World) Commit() {
	w.inBatch = false
	w.journal = w.journal[:0]
}

// Rollback undoes every mutation of the open batch, most recent first.
func (w *World) Rollback() {
	for i := len(w.journal) - 1; i >= 0; i-- {
		w.journal[i]()
	}
	w.inBatch = false
	w.journal = w.journal[:0]
}

func (w *World) record(undo func()) {
	if w.inBatch {
		w.journal = append(w.journal, undo)
	}
}
