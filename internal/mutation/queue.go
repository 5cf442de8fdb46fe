package mutation

import (
	"errors"
	"sync"
)

var (
	// ErrDropped is passed to a discard hook when the temporary id its op waited on will never resolve.
	ErrDropped = errors.New("mutation: pending operation dropped")
	// ErrMerged is passed to a discard hook when a later op of the same kind absorbed this one.
	ErrMerged = errors.New("mutation: pending operation merged into a later one")
)

// Pending is an op parked until TempID resolves.
type Pending struct {
	TempID  string
	Op      Op
	Run     func(Op)    // called with the retargeted op on replay
	Discard func(error) // called instead of Run when the op will never execute; may be nil
}

// Queue holds operations keyed by the temporary id they reference, in the
// order they were issued. It is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	pending []*Pending
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue parks op until tempID resolves. A mergeable op is folded into the
// most recent pending op of the same kind, target and temp id; the absorbed
// entry's Discard receives ErrMerged and its position in the queue is kept.
func (q *Queue) Enqueue(tempID string, op Op, run func(Op), discard func(error)) {
	q.mu.Lock()
	if m, ok := op.(Mergeable); ok {
		for i := len(q.pending) - 1; i >= 0; i-- {
			p := q.pending[i]
			if p.TempID != tempID || p.Op.Kind() != op.Kind() || !sameTarget(p.Op, op) {
				continue
			}
			prev := p.Discard
			p.Op = p.Op.(Mergeable).Merge(m)
			p.Run = run
			p.Discard = discard
			q.mu.Unlock()
			if prev != nil {
				prev(ErrMerged)
			}
			return
		}
	}
	q.pending = append(q.pending, &Pending{TempID: tempID, Op: op, Run: run, Discard: discard})
	q.mu.Unlock()
}

// Replay removes every op waiting on tempID and runs it, retargeted to realID,
// in the order it was enqueued. Runs happen outside the queue lock so they may
// enqueue further ops.
func (q *Queue) Replay(tempID, realID string) {
	for _, p := range q.take(tempID) {
		p.Run(p.Op.Retarget(tempID, realID))
	}
}

// Drop removes every op waiting on tempID without running it.
func (q *Queue) Drop(tempID string) {
	for _, p := range q.take(tempID) {
		if p.Discard != nil {
			p.Discard(ErrDropped)
		}
	}
}

// Waiting returns the ops currently parked on tempID, oldest first.
func (q *Queue) Waiting(tempID string) []Op {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ops []Op
	for _, p := range q.pending {
		if p.TempID == tempID {
			ops = append(ops, p.Op)
		}
	}
	return ops
}

// Len returns the number of parked ops.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) take(tempID string) []*Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	var taken []*Pending
	kept := q.pending[:0]
	for _, p := range q.pending {
		if p.TempID == tempID {
			taken = append(taken, p)
		} else {
			kept = append(kept, p)
		}
	}
	clear(q.pending[len(kept):])
	q.pending = kept
	return taken
}

// sameTarget reports whether two ops of the same kind address the same entity.
func sameTarget(a, b Op) bool {
	switch a := a.(type) {
	case UpdateSet:
		return a.ID == b.(UpdateSet).ID
	case UpdateExercise:
		return a.ID == b.(UpdateExercise).ID
	case ReorderExercises:
		return a.WorkoutID == b.(ReorderExercises).WorkoutID
	}
	return false
}
