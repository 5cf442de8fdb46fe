package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/mutation"
	"alcyxob/workout-sync/internal/optimistic"
	"alcyxob/workout-sync/internal/tempid"
)

// submit speculates op and sends it. An op that references a temporary id
// which has not resolved yet is speculated now and parked until the id
// resolves; the remote call is then replayed through submit again with the
// real id. A non-nil rollback replaces the snapshot captured by speculation.
func submit[Vars mutation.Op, R any](
	ctx context.Context,
	c *WorkoutClient,
	m *optimistic.Mutation[*domain.Workout, Vars, R],
	op Vars,
	rollback *optimistic.Snapshot[*domain.Workout],
) *optimistic.Call[R] {
	var zero R
	key := workoutKey(op.Workout())
	op = retarget(c.ids, op)

	dep := unresolved(op)
	if dep == "" {
		if rollback != nil {
			m.Speculate(key, op)
			return track(c, m.Dispatch(ctx, key, op, *rollback))
		}
		return track(c, m.Start(ctx, key, op))
	}
	call, complete := optimistic.Deferred[R]()
	replayCtx := context.WithoutCancel(ctx)
	realID, state := c.ids.Park(dep, func() {
		m.Speculate(key, op)
		c.queue.Enqueue(dep, op,
			func(next mutation.Op) {
				if c.mintedDeleted(next) {
					c.abandonMinted(next)
					complete(zero, fmt.Errorf("%s: %w", op.Kind(), mutation.ErrDropped))
					return
				}
				forward(c, op.Workout(), submit(replayCtx, c, m, next.(Vars), nil), complete)
			},
			func(err error) {
				if errors.Is(err, mutation.ErrMerged) {
					complete(zero, nil)
					return
				}
				c.abandonMinted(op)
				complete(zero, fmt.Errorf("%s: %w", op.Kind(), err))
			},
		)
	})
	switch state {
	case tempid.Registered:
		return track(c, call)
	case tempid.Resolved:
		return submit(ctx, c, m, op.Retarget(dep, realID).(Vars), rollback)
	case tempid.Unknown:
		return optimistic.Completed(zero, fmt.Errorf("%s %s: %w", op.Kind(), dep, ErrUnknownID))
	default:
		return optimistic.Completed(zero, fmt.Errorf("%s %s: %w", op.Kind(), dep, ErrDeleted))
	}
}

// forward completes a parked call with the outcome of its replay. A failed
// replay leaves the cache out of step with the server, so the workout is
// reloaded before the caller hears about it.
func forward[R any](c *WorkoutClient, workoutID string, replayed *optimistic.Call[R], complete func(R, error)) {
	go func() {
		result, err := replayed.Wait()
		if err != nil {
			c.logger.Warn("replayed mutation failed, refreshing workout",
				"workout", workoutID, "error", err)
			if _, rerr := c.Refresh(context.Background(), workoutID); rerr != nil {
				c.logger.Error("refresh after failed replay", "workout", workoutID, "error", rerr)
			}
		}
		complete(result, err)
	}()
}

// track counts call as in flight until it completes.
func track[R any](c *WorkoutClient, call *optimistic.Call[R]) *optimistic.Call[R] {
	c.inflight.add()
	go func() {
		<-call.Done()
		c.inflight.done()
	}()
	return call
}

// retarget swaps every resolved temporary id op depends on for its real id.
func retarget[Vars mutation.Op](ids *tempid.Registry, op Vars) Vars {
	for _, id := range dependencies(op) {
		if !tempid.IsTemp(id) {
			continue
		}
		if realID, ok := ids.Lookup(id); ok {
			op = op.Retarget(id, realID).(Vars)
		}
	}
	return op
}

// unresolved returns the first temporary id op still depends on, or "".
func unresolved(op mutation.Op) string {
	for _, id := range dependencies(op) {
		if tempid.IsTemp(id) {
			return id
		}
	}
	return ""
}

// dependencies lists the ids an op needs to exist on the server, in a
// stable order. Ids an op creates are not dependencies.
func dependencies(op mutation.Op) []string {
	switch o := op.(type) {
	case mutation.UpdateExercise:
		return []string{o.ID}
	case mutation.DeleteExercise:
		return []string{o.ID}
	case mutation.ReorderExercises:
		return slices.Sorted(maps.Keys(o.Orders))
	case mutation.CreateSet:
		return []string{o.ExerciseID}
	case mutation.UpdateSet:
		return []string{o.ID}
	case mutation.DeleteSet:
		return []string{o.ID}
	}
	return nil
}

// mintedDeleted reports whether the entity a create op would make was
// removed locally while the op was parked.
func (c *WorkoutClient) mintedDeleted(op mutation.Op) bool {
	switch o := op.(type) {
	case mutation.CreateExercise:
		return c.ids.State(o.TempID) == tempid.Deleted
	case mutation.CreateSet:
		return c.ids.State(o.TempID) == tempid.Deleted
	}
	return false
}

// abandonMinted forgets the temporary ids a dropped op would have created.
func (c *WorkoutClient) abandonMinted(op mutation.Op) {
	switch o := op.(type) {
	case mutation.CreateExercise:
		c.ids.Abandon(o.TempID)
		c.ids.Abandon(o.SeedSetTempID)
	case mutation.CreateSet:
		c.ids.Abandon(o.TempID)
	}
}

// inflight counts unfinished calls so Save can wait for the cache to settle.
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{} // closed while n == 0
}

func newInflight() *inflight {
	idle := make(chan struct{})
	close(idle)
	return &inflight{idle: idle}
}

func (f *inflight) add() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
}

func (f *inflight) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n--
	if f.n == 0 {
		close(f.idle)
	}
}

// wait blocks until nothing is in flight.
func (f *inflight) wait(ctx context.Context) error {
	f.mu.Lock()
	idle := f.idle
	f.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
