// Package client keeps a local copy of workouts that reflects edits before the
// server confirms them. Every operation updates the cache synchronously and
// reports the server's answer through an optimistic.Call.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/mutation"
	"alcyxob/workout-sync/internal/optimistic"
	"alcyxob/workout-sync/internal/ordering"
	"alcyxob/workout-sync/internal/tempid"
)

// CacheKind is the cache key kind under which workouts are stored.
const CacheKind = "workout"

// Entity kinds used when minting temporary ids.
const (
	kindExercise = "exercise"
	kindSet      = "set"
)

// DefaultDebounceDelay is the quiet period of field edits when Options leaves it unset.
const DefaultDebounceDelay = 800 * time.Millisecond

// Options configure a WorkoutClient.
type Options struct {
	DebounceDelay time.Duration
	Logger        *slog.Logger
}

// WorkoutClient is safe for concurrent use.
type WorkoutClient struct {
	remote   Remote
	engine   *optimistic.Engine[*domain.Workout]
	ids      *tempid.Registry
	queue    *mutation.Queue
	inflight *inflight
	logger   *slog.Logger
	edits    *EditSession

	createExercise *optimistic.Mutation[*domain.Workout, mutation.CreateExercise, *domain.WorkoutExercise]
	updateExercise *optimistic.Mutation[*domain.Workout, mutation.UpdateExercise, *domain.WorkoutExercise]
	deleteExercise *optimistic.Mutation[*domain.Workout, mutation.DeleteExercise, struct{}]
	reorder        *optimistic.Mutation[*domain.Workout, mutation.ReorderExercises, struct{}]
	createSet      *optimistic.Mutation[*domain.Workout, mutation.CreateSet, *domain.ExerciseSet]
	updateSet      *optimistic.Mutation[*domain.Workout, mutation.UpdateSet, *domain.ExerciseSet]
	deleteSet      *optimistic.Mutation[*domain.Workout, mutation.DeleteSet, struct{}]
	save           *optimistic.Mutation[*domain.Workout, *domain.Workout, *domain.Workout]
}

// NewWorkoutClient creates a client with an empty cache.
func NewWorkoutClient(remote Remote, opts Options) *WorkoutClient {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DefaultDebounceDelay
	}

	queue := mutation.NewQueue()
	ids := tempid.NewRegistry(queue)
	c := &WorkoutClient{
		remote:   remote,
		ids:      ids,
		queue:    queue,
		inflight: newInflight(),
		logger:   opts.Logger,
	}
	c.engine = optimistic.NewEngine[*domain.Workout](optimistic.NewMemoryStore[*domain.Workout](), ids, opts.Logger)
	c.edits = newEditSession(c, opts.DebounceDelay)
	ids.OnDiscard(c.deleteOrphan)

	c.createExercise = optimistic.NewMutation(c.engine, optimistic.Options[*domain.Workout, mutation.CreateExercise, *domain.WorkoutExercise]{
		Name: "createExercise",
		Remote: func(ctx context.Context, op mutation.CreateExercise) (*domain.WorkoutExercise, error) {
			return remote.CreateExercise(ctx, op.WorkoutID, op.Payload)
		},
		Speculate: speculateCreateExercise,
		Commit:    commitCreateExercise,
		Resolve:   resolveCreateExercise,
		TempIDs: func(op mutation.CreateExercise) []string {
			return []string{op.TempID, op.SeedSetTempID}
		},
	})
	c.updateExercise = optimistic.NewMutation(c.engine, optimistic.Options[*domain.Workout, mutation.UpdateExercise, *domain.WorkoutExercise]{
		Name: "updateExercise",
		Remote: func(ctx context.Context, op mutation.UpdateExercise) (*domain.WorkoutExercise, error) {
			return remote.UpdateExercise(ctx, op.ID, op.Patch)
		},
		Speculate: speculateUpdateExercise,
	})
	c.deleteExercise = optimistic.NewMutation(c.engine, optimistic.Options[*domain.Workout, mutation.DeleteExercise, struct{}]{
		Name: "deleteExercise",
		Remote: func(ctx context.Context, op mutation.DeleteExercise) (struct{}, error) {
			return struct{}{}, remote.DeleteExercise(ctx, op.ID)
		},
		Speculate: speculateDeleteExercise,
	})
	c.reorder = optimistic.NewMutation(c.engine, optimistic.Options[*domain.Workout, mutation.ReorderExercises, struct{}]{
		Name: "reorderExercises",
		Remote: func(ctx context.Context, op mutation.ReorderExercises) (struct{}, error) {
			return struct{}{}, remote.ReorderExercises(ctx, op.WorkoutID, op.Entries())
		},
		Speculate: speculateReorderExercises,
	})
	c.createSet = optimistic.NewMutation(c.engine, optimistic.Options[*domain.Workout, mutation.CreateSet, *domain.ExerciseSet]{
		Name: "createSet",
		Remote: func(ctx context.Context, op mutation.CreateSet) (*domain.ExerciseSet, error) {
			return remote.CreateSet(ctx, op.ExerciseID, op.Payload)
		},
		Speculate: speculateCreateSet,
		Commit:    commitCreateSet,
		Resolve: func(created *domain.ExerciseSet, op mutation.CreateSet) map[string]string {
			return map[string]string{op.TempID: created.ID}
		},
		TempIDs: func(op mutation.CreateSet) []string { return []string{op.TempID} },
	})
	c.updateSet = optimistic.NewMutation(c.engine, optimistic.Options[*domain.Workout, mutation.UpdateSet, *domain.ExerciseSet]{
		Name: "updateSet",
		Remote: func(ctx context.Context, op mutation.UpdateSet) (*domain.ExerciseSet, error) {
			return remote.UpdateSet(ctx, op.ID, op.Patch)
		},
		Speculate: speculateUpdateSet,
	})
	c.deleteSet = optimistic.NewMutation(c.engine, optimistic.Options[*domain.Workout, mutation.DeleteSet, struct{}]{
		Name: "deleteSet",
		Remote: func(ctx context.Context, op mutation.DeleteSet) (struct{}, error) {
			return struct{}{}, remote.DeleteSet(ctx, op.ID)
		},
		Speculate: speculateDeleteSet,
	})
	c.save = optimistic.NewMutation(c.engine, optimistic.Options[*domain.Workout, *domain.Workout, *domain.Workout]{
		Name:   "saveWorkout",
		Remote: remote.SaveWorkout,
		Commit: commitSave,
	})
	return c
}

func workoutKey(workoutID string) optimistic.Key {
	return optimistic.Key{Kind: CacheKind, AggregateID: workoutID}
}

// === Reads ===

// Load returns the cached workout, fetching it first if it is not cached.
func (c *WorkoutClient) Load(ctx context.Context, workoutID string) (*domain.Workout, error) {
	if w, ok := c.Snapshot(workoutID); ok {
		return w, nil
	}
	return c.Refresh(ctx, workoutID)
}

// Refresh replaces the cached workout with the server's copy.
func (c *WorkoutClient) Refresh(ctx context.Context, workoutID string) (*domain.Workout, error) {
	w, err := c.remote.GetWorkout(ctx, workoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workout %s: %w", workoutID, err)
	}
	c.engine.Store().Set(workoutKey(workoutID), w)
	return w.Clone(), nil
}

// Snapshot returns a copy of the cached workout.
func (c *WorkoutClient) Snapshot(workoutID string) (*domain.Workout, bool) {
	w, ok := c.engine.Store().Get(workoutKey(workoutID))
	if !ok {
		return nil, false
	}
	return w.Clone(), true
}

// Edits returns the client's debounced edit session.
func (c *WorkoutClient) Edits() *EditSession {
	return c.edits
}

// === Exercises ===

// AddExercise inserts an exercise at payload.Order. The returned temporary id
// can be used at once; operations on it are sent after the server assigns the real id.
func (c *WorkoutClient) AddExercise(ctx context.Context, workoutID string, payload domain.ExercisePayload) (string, *optimistic.Call[*domain.WorkoutExercise], error) {
	if err := domain.Validate(payload); err != nil {
		return "", nil, err
	}
	op := mutation.CreateExercise{
		WorkoutID:     workoutID,
		TempID:        tempid.Mint(kindExercise),
		SeedSetTempID: tempid.Mint(kindSet),
		Payload:       payload,
	}
	c.ids.Register(op.TempID)
	c.ids.Register(op.SeedSetTempID)
	return op.TempID, submit(ctx, c, c.createExercise, op, nil), nil
}

// UpdateExerciseNote replaces an exercise's note; nil clears it.
func (c *WorkoutClient) UpdateExerciseNote(ctx context.Context, workoutID, exerciseID string, note *string) (*optimistic.Call[*domain.WorkoutExercise], error) {
	if note == nil {
		note = new(string)
	}
	patch := domain.ExercisePatch{Note: note}
	if err := domain.Validate(patch); err != nil {
		return nil, err
	}
	if err := c.checkExercise(workoutID, exerciseID); err != nil {
		return nil, err
	}
	op := mutation.UpdateExercise{WorkoutID: workoutID, ID: exerciseID, Patch: patch}
	return submit(ctx, c, c.updateExercise, op, nil), nil
}

// RemoveExercise deletes an exercise with its sets. An exercise whose create
// is still in flight is only removed locally; if the server creates it
// anyway it is deleted there once its id arrives.
func (c *WorkoutClient) RemoveExercise(ctx context.Context, workoutID, exerciseID string) (*optimistic.Call[struct{}], error) {
	if err := c.checkExercise(workoutID, exerciseID); err != nil {
		return nil, err
	}
	op := mutation.DeleteExercise{WorkoutID: workoutID, ID: exerciseID}
	if tempid.IsTemp(exerciseID) && c.ids.MarkDeleted(exerciseID) {
		if w, ok := c.engine.Store().Get(workoutKey(workoutID)); ok {
			if i := w.FindExercise(exerciseID); i >= 0 {
				for _, s := range w.Exercises[i].Sets {
					if tempid.IsTemp(s.ID) {
						c.ids.MarkDeleted(s.ID)
					}
				}
			}
		}
		c.speculateOnly(workoutID, func(cur *domain.Workout) (*domain.Workout, bool) {
			return speculateDeleteExercise(cur, op)
		})
		return optimistic.Completed(struct{}{}, nil), nil
	}
	return submit(ctx, c, c.deleteExercise, op, nil), nil
}

// ReorderExercises assigns new orders. orders must map every exercise of the
// cached workout to a distinct position in [0, n).
func (c *WorkoutClient) ReorderExercises(ctx context.Context, workoutID string, orders map[string]int) (*optimistic.Call[struct{}], error) {
	op := retarget(c.ids, mutation.ReorderExercises{WorkoutID: workoutID, Orders: orders})
	if w, ok := c.engine.Store().Get(workoutKey(workoutID)); ok {
		if err := ordering.CheckPermutation(w.Exercises, op.Orders); err != nil {
			return nil, domain.NewValidationError("%v", err)
		}
	}
	return submit(ctx, c, c.reorder, op, nil), nil
}

// === Sets ===

// AddSet inserts a set at payload.Order under exerciseID, which may be a temporary id.
func (c *WorkoutClient) AddSet(ctx context.Context, workoutID, exerciseID string, payload domain.SetPayload) (string, *optimistic.Call[*domain.ExerciseSet], error) {
	if err := domain.Validate(payload); err != nil {
		return "", nil, err
	}
	if err := c.checkExercise(workoutID, exerciseID); err != nil {
		return "", nil, err
	}
	op := mutation.CreateSet{
		WorkoutID:  workoutID,
		ExerciseID: exerciseID,
		TempID:     tempid.Mint(kindSet),
		Payload:    payload,
	}
	c.ids.Register(op.TempID)
	return op.TempID, submit(ctx, c, c.createSet, op, nil), nil
}

// UpdateSet applies patch to a set at once and sends it.
func (c *WorkoutClient) UpdateSet(ctx context.Context, workoutID, setID string, patch domain.SetPatch) (*optimistic.Call[*domain.ExerciseSet], error) {
	if err := c.checkSetPatch(workoutID, setID, patch); err != nil {
		return nil, err
	}
	op := mutation.UpdateSet{WorkoutID: workoutID, ID: setID, Patch: patch}
	return submit(ctx, c, c.updateSet, op, nil), nil
}

// RemoveSet deletes a set and closes the gap in its exercise.
func (c *WorkoutClient) RemoveSet(ctx context.Context, workoutID, setID string) (*optimistic.Call[struct{}], error) {
	if err := c.checkSet(workoutID, setID); err != nil {
		return nil, err
	}
	op := mutation.DeleteSet{WorkoutID: workoutID, ID: setID}
	if tempid.IsTemp(setID) && c.ids.MarkDeleted(setID) {
		c.speculateOnly(workoutID, func(cur *domain.Workout) (*domain.Workout, bool) {
			return speculateDeleteSet(cur, op)
		})
		return optimistic.Completed(struct{}{}, nil), nil
	}
	return submit(ctx, c, c.deleteSet, op, nil), nil
}

// === Whole workout ===

// Save submits the cached tree as a whole. Pending edits are flushed and
// in-flight calls awaited first, so the tree carries only server ids. If the
// cache changed while the save was in flight, it is reloaded afterwards.
func (c *WorkoutClient) Save(ctx context.Context, workoutID string) (*domain.Workout, error) {
	c.edits.Flush()
	if err := c.inflight.wait(ctx); err != nil {
		return nil, err
	}
	w, ok := c.engine.Store().Get(workoutKey(workoutID))
	if !ok {
		return nil, fmt.Errorf("workout %s: %w", workoutID, ErrNotFound)
	}
	if err := domain.Validate(w); err != nil {
		return nil, err
	}
	saved, err := track(c, c.save.Start(ctx, workoutKey(workoutID), w)).WaitContext(ctx)
	if err != nil {
		return nil, err
	}
	// The cache moved on during the save and kept its own tree; reload it
	// once the edits made meanwhile have landed.
	if cur, ok := c.engine.Store().Get(workoutKey(workoutID)); !ok || cur != saved {
		if err := c.inflight.wait(ctx); err != nil {
			return nil, err
		}
		if _, err := c.Refresh(ctx, workoutID); err != nil {
			return nil, err
		}
	}
	return saved.Clone(), nil
}

// Settle blocks until every sent or parked call has finished.
func (c *WorkoutClient) Settle(ctx context.Context) error {
	return c.inflight.wait(ctx)
}

// === Helpers ===

// speculateOnly writes a local change that has no remote counterpart.
func (c *WorkoutClient) speculateOnly(workoutID string, fn func(*domain.Workout) (*domain.Workout, bool)) {
	c.engine.Store().Update(workoutKey(workoutID), func(cur *domain.Workout, ok bool) (*domain.Workout, bool) {
		if !ok {
			return cur, false
		}
		next, changed := fn(cur)
		if !changed {
			return cur, true
		}
		return next, true
	})
}

// checkExercise rejects ids the cached workout does not hold. Uncached
// workouts are not checked.
func (c *WorkoutClient) checkExercise(workoutID, exerciseID string) error {
	w, ok := c.engine.Store().Get(workoutKey(workoutID))
	if !ok {
		return nil
	}
	if w.FindExercise(exerciseID) >= 0 {
		return nil
	}
	if realID, ok := c.ids.Lookup(exerciseID); ok && w.FindExercise(realID) >= 0 {
		return nil
	}
	return c.missing(exerciseID)
}

func (c *WorkoutClient) checkSet(workoutID, setID string) error {
	w, ok := c.engine.Store().Get(workoutKey(workoutID))
	if !ok {
		return nil
	}
	if ei, _ := w.FindSet(setID); ei >= 0 {
		return nil
	}
	if realID, ok := c.ids.Lookup(setID); ok {
		if ei, _ := w.FindSet(realID); ei >= 0 {
			return nil
		}
	}
	return c.missing(setID)
}

func (c *WorkoutClient) checkSetPatch(workoutID, setID string, patch domain.SetPatch) error {
	if err := domain.Validate(patch); err != nil {
		return err
	}
	return c.checkSet(workoutID, setID)
}

func (c *WorkoutClient) missing(id string) error {
	if tempid.IsTemp(id) && c.ids.State(id) == tempid.Deleted {
		return fmt.Errorf("%s: %w", id, ErrDeleted)
	}
	return fmt.Errorf("%s: %w", id, ErrNotFound)
}

// deleteOrphan removes a server entity whose temporary id was deleted
// locally while its create was in flight.
func (c *WorkoutClient) deleteOrphan(tempID, realID string) {
	c.inflight.add()
	go func() {
		defer c.inflight.done()
		ctx := context.Background()
		var err error
		switch {
		case strings.HasPrefix(tempID, tempid.Prefix+kindExercise+"-"):
			err = c.remote.DeleteExercise(ctx, realID)
		case strings.HasPrefix(tempID, tempid.Prefix+kindSet+"-"):
			err = c.remote.DeleteSet(ctx, realID)
		default:
			return
		}
		switch {
		case err == nil:
			c.logger.Debug("deleted orphaned entity", "tempId", tempID, "id", realID)
		case errors.Is(err, ErrNotFound):
			// Already gone with its parent.
		default:
			c.logger.Error("failed to delete orphaned entity", "tempId", tempID, "id", realID, "error", err)
		}
	}()
}
