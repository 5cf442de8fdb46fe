package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/mutation"
	"alcyxob/workout-sync/internal/optimistic"
)

// ErrSessionClosed is returned by edits made after Close.
var ErrSessionClosed = errors.New("client: edit session closed")

type editKey struct {
	setID string
	field domain.SetField
}

type pendingEdit struct {
	workoutID string
	patch     domain.SetPatch // only the field of its key
	rollback  optimistic.Snapshot[*domain.Workout]
	timer     *time.Timer
}

// EditSession coalesces rapid field edits. Each edit shows in the cache at
// once; the remote update for a (set, field) pair is sent after it has been
// quiet for the session delay, carrying the latest value. If it fails the
// cache returns to how it was before the first edit of the burst.
type EditSession struct {
	client *WorkoutClient
	delay  time.Duration

	mu      sync.Mutex
	pending map[editKey]*pendingEdit
	closed  bool
}

func newEditSession(c *WorkoutClient, delay time.Duration) *EditSession {
	return &EditSession{client: c, delay: delay, pending: make(map[editKey]*pendingEdit)}
}

// SetFields edits the fields patch sets on one set. Each field is debounced on its own.
func (s *EditSession) SetFields(workoutID, setID string, patch domain.SetPatch) error {
	if err := s.client.checkSetPatch(workoutID, setID, patch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	for _, field := range patch.Fields() {
		k := editKey{setID: setID, field: field}
		op := retarget(s.client.ids, mutation.UpdateSet{WorkoutID: workoutID, ID: setID, Patch: patch.Only(field)})
		if s.unchanged(k, op) {
			continue
		}
		before := s.client.updateSet.Speculate(workoutKey(workoutID), op)

		pe := &pendingEdit{workoutID: workoutID, patch: op.Patch, rollback: before}
		if prev, ok := s.pending[k]; ok {
			prev.timer.Stop()
			pe.rollback = prev.rollback // roll back to before the burst started
		}
		pe.timer = time.AfterFunc(s.delay, func() { s.fire(k, pe) })
		s.pending[k] = pe
	}
	return nil
}

// unchanged reports an edit that rewrites the value already cached and has
// nothing pending to supersede.
func (s *EditSession) unchanged(k editKey, op mutation.UpdateSet) bool {
	if _, ok := s.pending[k]; ok {
		return false
	}
	w, ok := s.client.engine.Store().Get(workoutKey(op.WorkoutID))
	if !ok {
		return false
	}
	ei, si := w.FindSet(op.ID)
	return ei >= 0 && op.Patch.Matches(k.field, w.Exercises[ei].Sets[si])
}

func (s *EditSession) fire(k editKey, pe *pendingEdit) {
	s.mu.Lock()
	if s.pending[k] != pe {
		s.mu.Unlock()
		return // superseded or flushed
	}
	delete(s.pending, k)
	s.mu.Unlock()
	s.dispatch(k, pe)
}

func (s *EditSession) dispatch(k editKey, pe *pendingEdit) *optimistic.Call[*domain.ExerciseSet] {
	op := mutation.UpdateSet{WorkoutID: pe.workoutID, ID: k.setID, Patch: pe.patch}
	return submit(context.Background(), s.client, s.client.updateSet, op, &pe.rollback)
}

// Flush sends every pending edit now and returns their calls.
func (s *EditSession) Flush() []*optimistic.Call[*domain.ExerciseSet] {
	s.mu.Lock()
	taken := s.pending
	s.pending = make(map[editKey]*pendingEdit)
	s.mu.Unlock()

	calls := make([]*optimistic.Call[*domain.ExerciseSet], 0, len(taken))
	for k, pe := range taken {
		pe.timer.Stop()
		calls = append(calls, s.dispatch(k, pe))
	}
	return calls
}

// Pending returns the number of edits waiting for their quiet period.
func (s *EditSession) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels every pending edit without sending it. Their values stay in
// the cache until the next Refresh.
func (s *EditSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pe := range s.pending {
		pe.timer.Stop()
	}
	clear(s.pending)
	s.closed = true
}
