package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/mutation"
	"alcyxob/workout-sync/internal/reconcile"
	"alcyxob/workout-sync/internal/repository/sqlite"
	"alcyxob/workout-sync/internal/service"
	"alcyxob/workout-sync/internal/tempid"
)

const owner = "owner-1"

var errInjected = errors.New("injected failure")

// serviceRemote serves the Remote contract straight from a WorkoutService
// over SQLite. Calls can be held back or failed per method.
type serviceRemote struct {
	svc service.WorkoutService

	mu       sync.Mutex
	calls    []string
	patches  []domain.SetPatch
	gates    map[string]chan struct{}
	failures map[string]error
}

func newServiceRemote(t *testing.T) *serviceRemote {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	repos := store.Repositories()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &serviceRemote{
		svc:      service.NewWorkoutService(repos, reconcile.New(repos, logger), logger),
		gates:    make(map[string]chan struct{}),
		failures: make(map[string]error),
	}
}

// hold blocks calls to method until the returned func is called.
func (r *serviceRemote) hold(method string) (release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.gates[method] = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.gates, method)
			r.mu.Unlock()
			close(ch)
		})
	}
}

func (r *serviceRemote) fail(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[method] = err
}

func (r *serviceRemote) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (r *serviceRemote) enter(method string) error {
	r.mu.Lock()
	r.calls = append(r.calls, method)
	gate := r.gates[method]
	err := r.failures[method]
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, service.ErrWorkoutNotFound) || errors.Is(err, service.ErrExerciseNotFound) || errors.Is(err, service.ErrSetNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func (r *serviceRemote) GetWorkout(ctx context.Context, workoutID string) (*domain.Workout, error) {
	if err := r.enter("GetWorkout"); err != nil {
		return nil, err
	}
	w, err := r.svc.GetWorkout(ctx, owner, workoutID)
	return w, notFound(err)
}

func (r *serviceRemote) SaveWorkout(ctx context.Context, workout *domain.Workout) (*domain.Workout, error) {
	if err := r.enter("SaveWorkout"); err != nil {
		return nil, err
	}
	w, err := r.svc.SaveWorkout(ctx, owner, workout.Clone())
	return w, notFound(err)
}

func (r *serviceRemote) CreateExercise(ctx context.Context, workoutID string, payload domain.ExercisePayload) (*domain.WorkoutExercise, error) {
	if err := r.enter("CreateExercise"); err != nil {
		return nil, err
	}
	e, err := r.svc.AddExercise(ctx, owner, workoutID, payload)
	return e, notFound(err)
}

func (r *serviceRemote) UpdateExercise(ctx context.Context, exerciseID string, patch domain.ExercisePatch) (*domain.WorkoutExercise, error) {
	if err := r.enter("UpdateExercise"); err != nil {
		return nil, err
	}
	e, err := r.svc.UpdateExercise(ctx, owner, exerciseID, patch)
	return e, notFound(err)
}

func (r *serviceRemote) DeleteExercise(ctx context.Context, exerciseID string) error {
	if err := r.enter("DeleteExercise"); err != nil {
		return err
	}
	return notFound(r.svc.RemoveExercise(ctx, owner, exerciseID))
}

func (r *serviceRemote) ReorderExercises(ctx context.Context, workoutID string, orders []domain.OrderEntry) error {
	if err := r.enter("ReorderExercises"); err != nil {
		return err
	}
	return notFound(r.svc.ReorderExercises(ctx, owner, workoutID, orders))
}

func (r *serviceRemote) CreateSet(ctx context.Context, exerciseID string, payload domain.SetPayload) (*domain.ExerciseSet, error) {
	if err := r.enter("CreateSet"); err != nil {
		return nil, err
	}
	s, err := r.svc.AddSet(ctx, owner, exerciseID, payload)
	return s, notFound(err)
}

func (r *serviceRemote) UpdateSet(ctx context.Context, setID string, patch domain.SetPatch) (*domain.ExerciseSet, error) {
	r.mu.Lock()
	r.patches = append(r.patches, patch)
	r.mu.Unlock()
	if err := r.enter("UpdateSet"); err != nil {
		return nil, err
	}
	s, err := r.svc.UpdateSet(ctx, owner, setID, patch)
	return s, notFound(err)
}

func (r *serviceRemote) DeleteSet(ctx context.Context, setID string) error {
	if err := r.enter("DeleteSet"); err != nil {
		return err
	}
	return notFound(r.svc.RemoveSet(ctx, owner, setID))
}

// server returns the persisted tree.
func (r *serviceRemote) server(t *testing.T, workoutID string) *domain.Workout {
	t.Helper()
	w, err := r.svc.GetWorkout(context.Background(), owner, workoutID)
	require.NoError(t, err)
	return w
}

// setup persists {bench[80, 85, 90], row[60]} and loads it into a new client.
func setup(t *testing.T, opts Options) (*WorkoutClient, *serviceRemote, *domain.Workout) {
	t.Helper()
	r := newServiceRemote(t)
	seed := &domain.Workout{Name: "Push", Exercises: []domain.WorkoutExercise{
		{ReferenceID: "bench", Order: 0, Sets: []domain.ExerciseSet{
			{Weight: ptr(80.0), Order: 0}, {Weight: ptr(85.0), Order: 1}, {Weight: ptr(90.0), Order: 2},
		}},
		{ReferenceID: "row", Order: 1, Sets: []domain.ExerciseSet{{Weight: ptr(60.0), Order: 0}}},
	}}
	created, err := r.svc.CreateWorkout(context.Background(), owner, seed)
	require.NoError(t, err)

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := NewWorkoutClient(r, opts)
	loaded, err := c.Load(context.Background(), created.ID)
	require.NoError(t, err)
	return c, r, loaded
}

func settle(t *testing.T, c *WorkoutClient) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Settle(ctx))
}

// treeOnly compares workouts by content, ignoring timestamps the server
// touches on child writes.
var treeOnly = []cmp.Option{
	cmpopts.IgnoreFields(domain.Workout{}, "CreatedAt", "UpdatedAt"),
	cmpopts.EquateEmpty(),
}

// requireInSync checks that the cache holds exactly what the server persisted.
func requireInSync(t *testing.T, c *WorkoutClient, r *serviceRemote, workoutID string) {
	t.Helper()
	cached, ok := c.Snapshot(workoutID)
	require.True(t, ok)
	if diff := cmp.Diff(r.server(t, workoutID), cached, treeOnly...); diff != "" {
		t.Fatalf("cache differs from server (-server +cache):\n%s", diff)
	}
}

func TestUpdateSet_FailureRevertsWeight(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	set := w.Exercises[0].Sets[0]
	release := r.hold("UpdateSet")
	r.fail("UpdateSet", errInjected)

	call, err := c.UpdateSet(ctx, w.ID, set.ID, domain.SetPatch{Weight: ptr(82.5)})
	require.NoError(t, err)

	cached, _ := c.Snapshot(w.ID)
	assert.Equal(t, 82.5, *cached.Exercises[0].Sets[0].Weight, "shown before the server answers")

	release()
	_, err = call.Wait()
	require.ErrorIs(t, err, errInjected)

	cached, _ = c.Snapshot(w.ID)
	assert.Equal(t, 80.0, *cached.Exercises[0].Sets[0].Weight)
	if diff := cmp.Diff(w, cached); diff != "" {
		t.Errorf("rollback not exact (-before +after):\n%s", diff)
	}
}

func TestUpdateSet_Success(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})

	call, err := c.UpdateSet(ctx, w.ID, w.Exercises[0].Sets[0].ID, domain.SetPatch{Weight: ptr(82.5)})
	require.NoError(t, err)
	_, err = call.Wait()
	require.NoError(t, err)

	requireInSync(t, c, r, w.ID)
}

func TestUpdateSet_ValidationWritesNothing(t *testing.T) {
	c, r, w := setup(t, Options{})

	_, err := c.UpdateSet(context.Background(), w.ID, w.Exercises[0].Sets[0].ID, domain.SetPatch{RPE: ptr(11.0)})

	assert.ErrorIs(t, err, domain.ErrValidation)
	cached, _ := c.Snapshot(w.ID)
	assert.Empty(t, cmp.Diff(w, cached))
	assert.Zero(t, r.count("UpdateSet"))
}

func TestUpdateSet_NonFiniteWeightWritesNothing(t *testing.T) {
	c, r, w := setup(t, Options{})

	_, err := c.UpdateSet(context.Background(), w.ID, w.Exercises[0].Sets[0].ID, domain.SetPatch{Weight: ptr(math.NaN())})

	assert.ErrorIs(t, err, domain.ErrValidation)
	cached, _ := c.Snapshot(w.ID)
	assert.Empty(t, cmp.Diff(w, cached))
	assert.Zero(t, r.count("UpdateSet"))
}

func TestAddSet_InsertAtIndex(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	bench := w.Exercises[0]
	release := r.hold("CreateSet")

	tempID, call, err := c.AddSet(ctx, w.ID, bench.ID, domain.SetPayload{Weight: ptr(82.5), Order: ptr(1)})
	require.NoError(t, err)
	assert.True(t, tempid.IsTemp(tempID))

	cached, _ := c.Snapshot(w.ID)
	assert.Equal(t, []string{bench.Sets[0].ID, tempID, bench.Sets[1].ID, bench.Sets[2].ID}, setIDs(cached.Exercises[0]))
	for i, s := range cached.Exercises[0].Sets {
		assert.Equal(t, i, s.Order)
	}

	release()
	created, err := call.Wait()
	require.NoError(t, err)

	realID, ok := c.ids.Lookup(tempID)
	require.True(t, ok)
	assert.Equal(t, created.ID, realID)
	requireInSync(t, c, r, w.ID)
}

func TestRemoveSet_BeforeCreateResolves(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	bench := w.Exercises[0]
	release := r.hold("CreateSet")

	tempID, createCall, err := c.AddSet(ctx, w.ID, bench.ID, domain.SetPayload{Order: ptr(3)})
	require.NoError(t, err)
	updateCall, err := c.UpdateSet(ctx, w.ID, tempID, domain.SetPatch{Reps: ptr(5)})
	require.NoError(t, err)

	removeCall, err := c.RemoveSet(ctx, w.ID, tempID)
	require.NoError(t, err)
	_, err = removeCall.Wait()
	require.NoError(t, err)
	assert.Equal(t, tempid.Deleted, c.ids.State(tempID))

	_, err = updateCall.Wait()
	assert.ErrorIs(t, err, mutation.ErrDropped, "parked update never runs")

	release()
	_, err = createCall.Wait()
	require.NoError(t, err)
	settle(t, c)

	assert.Equal(t, 1, r.count("DeleteSet"), "server copy is deleted once its id arrives")
	assert.Zero(t, r.count("UpdateSet"))
	assert.Equal(t, tempid.Unknown, c.ids.State(tempID), "forgotten after the discard")
	requireInSync(t, c, r, w.ID)
}

func TestTempExercise_ParkedOpsReplayInOrder(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	release := r.hold("CreateExercise")

	exID, createCall, err := c.AddExercise(ctx, w.ID, domain.ExercisePayload{ReferenceID: "dip", Order: ptr(1)})
	require.NoError(t, err)
	setID, setCall, err := c.AddSet(ctx, w.ID, exID, domain.SetPayload{Reps: ptr(12), Order: ptr(1)})
	require.NoError(t, err)
	noteCall, err := c.UpdateExerciseNote(ctx, w.ID, exID, ptr("lean forward"))
	require.NoError(t, err)
	updateCall, err := c.UpdateSet(ctx, w.ID, setID, domain.SetPatch{Weight: ptr(10.0)})
	require.NoError(t, err)

	assert.Len(t, c.queue.Waiting(exID), 2)
	assert.Len(t, c.queue.Waiting(setID), 1)
	assert.Zero(t, r.count("CreateSet"), "nothing is sent for an unresolved parent")

	cached, _ := c.Snapshot(w.ID)
	require.Len(t, cached.Exercises, 3)
	assert.Equal(t, "dip", cached.Exercises[1].ReferenceID)
	assert.Len(t, cached.Exercises[1].Sets, 2)

	release()
	for _, err := range []error{
		second(createCall.Wait()), second(setCall.Wait()), second(noteCall.Wait()), second(updateCall.Wait()),
	} {
		require.NoError(t, err)
	}
	settle(t, c)

	assert.Zero(t, c.queue.Len())
	requireInSync(t, c, r, w.ID)
	server := r.server(t, w.ID)
	assert.Equal(t, "lean forward", *server.Exercises[1].Note)
	assert.Equal(t, 10.0, *server.Exercises[1].Sets[1].Weight)
}

func TestTempExercise_CreateFailureDropsParkedOps(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	r.fail("CreateExercise", errInjected)
	release := r.hold("CreateExercise")

	exID, createCall, err := c.AddExercise(ctx, w.ID, domain.ExercisePayload{ReferenceID: "dip", Order: ptr(0)})
	require.NoError(t, err)
	setID, setCall, err := c.AddSet(ctx, w.ID, exID, domain.SetPayload{Order: ptr(0)})
	require.NoError(t, err)

	release()
	_, err = createCall.Wait()
	require.ErrorIs(t, err, errInjected)
	_, err = setCall.Wait()
	require.ErrorIs(t, err, mutation.ErrDropped)

	assert.Equal(t, tempid.Unknown, c.ids.State(exID))
	assert.Equal(t, tempid.Unknown, c.ids.State(setID))
	cached, _ := c.Snapshot(w.ID)
	assert.Empty(t, cmp.Diff(w, cached), "cache returns to the pre-create state")
}

func TestRemoveExercise_BeforeCreateResolves(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	release := r.hold("CreateExercise")

	exID, createCall, err := c.AddExercise(ctx, w.ID, domain.ExercisePayload{ReferenceID: "dip", Order: ptr(2)})
	require.NoError(t, err)
	removeCall, err := c.RemoveExercise(ctx, w.ID, exID)
	require.NoError(t, err)
	_, err = removeCall.Wait()
	require.NoError(t, err)

	cached, _ := c.Snapshot(w.ID)
	assert.Len(t, cached.Exercises, 2)

	release()
	_, err = createCall.Wait()
	require.NoError(t, err)
	settle(t, c)

	assert.Equal(t, 1, r.count("DeleteExercise"))
	requireInSync(t, c, r, w.ID)
}

func TestRemoveSet_UnderTempExerciseIsNeverCreated(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	release := r.hold("CreateExercise")

	exID, createCall, err := c.AddExercise(ctx, w.ID, domain.ExercisePayload{ReferenceID: "dip", Order: ptr(2)})
	require.NoError(t, err)
	setID, setCall, err := c.AddSet(ctx, w.ID, exID, domain.SetPayload{Reps: ptr(10), Order: ptr(1)})
	require.NoError(t, err)
	removeCall, err := c.RemoveSet(ctx, w.ID, setID)
	require.NoError(t, err)
	_, err = removeCall.Wait()
	require.NoError(t, err)

	release()
	_, err = createCall.Wait()
	require.NoError(t, err)
	_, err = setCall.Wait()
	assert.ErrorIs(t, err, mutation.ErrDropped)
	settle(t, c)

	assert.Zero(t, r.count("CreateSet"), "a removed set is not sent")
	assert.Zero(t, r.count("DeleteSet"))
	assert.Equal(t, tempid.Unknown, c.ids.State(setID))
	cached, _ := c.Snapshot(w.ID)
	require.Len(t, cached.Exercises, 3)
	assert.Len(t, cached.Exercises[2].Sets, 1, "only the seeded set remains")
	requireInSync(t, c, r, w.ID)
}

func TestReorderExercises(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	bench, row := w.Exercises[0].ID, w.Exercises[1].ID

	call, err := c.ReorderExercises(ctx, w.ID, map[string]int{bench: 1, row: 0})
	require.NoError(t, err)
	cached, _ := c.Snapshot(w.ID)
	assert.Equal(t, row, cached.Exercises[0].ID)

	_, err = call.Wait()
	require.NoError(t, err)
	requireInSync(t, c, r, w.ID)

	_, err = c.ReorderExercises(ctx, w.ID, map[string]int{bench: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReorderExercises_WithTempID(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	bench, row := w.Exercises[0].ID, w.Exercises[1].ID
	release := r.hold("CreateExercise")

	exID, _, err := c.AddExercise(ctx, w.ID, domain.ExercisePayload{ReferenceID: "dip", Order: ptr(2)})
	require.NoError(t, err)
	call, err := c.ReorderExercises(ctx, w.ID, map[string]int{exID: 0, bench: 1, row: 2})
	require.NoError(t, err)

	cached, _ := c.Snapshot(w.ID)
	assert.Equal(t, exID, cached.Exercises[0].ID, "applied locally at once")
	assert.Zero(t, r.count("ReorderExercises"))

	release()
	_, err = call.Wait()
	require.NoError(t, err)
	settle(t, c)

	assert.Equal(t, "dip", r.server(t, w.ID).Exercises[0].ReferenceID)
	requireInSync(t, c, r, w.ID)
}

func TestRemove_UnknownIDs(t *testing.T) {
	ctx := context.Background()
	c, _, w := setup(t, Options{})

	_, err := c.RemoveSet(ctx, w.ID, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.RemoveExercise(ctx, w.ID, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplayFailureRefreshes(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	release := r.hold("CreateExercise")
	r.fail("UpdateExercise", errInjected)

	exID, _, err := c.AddExercise(ctx, w.ID, domain.ExercisePayload{ReferenceID: "dip", Order: ptr(0)})
	require.NoError(t, err)
	noteCall, err := c.UpdateExerciseNote(ctx, w.ID, exID, ptr("wide grip"))
	require.NoError(t, err)

	release()
	_, err = noteCall.Wait()
	require.ErrorIs(t, err, errInjected)

	assert.GreaterOrEqual(t, r.count("GetWorkout"), 2, "initial load plus refresh")
	requireInSync(t, c, r, w.ID)
}

func TestSave_WaitsForInflightAndAdopts(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})

	_, _, err := c.AddSet(ctx, w.ID, w.Exercises[1].ID, domain.SetPayload{Reps: ptr(8), Order: ptr(1)})
	require.NoError(t, err)

	saved, err := c.Save(ctx, w.ID)
	require.NoError(t, err)

	assert.Equal(t, w.Version+1, saved.Version)
	assert.Len(t, saved.Exercises[1].Sets, 2)
	requireInSync(t, c, r, w.ID)
}

func TestSave_ConflictKeepsCache(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})

	// Someone else saves first.
	other := r.server(t, w.ID)
	other.Name = "Pull"
	_, err := r.svc.SaveWorkout(ctx, owner, other)
	require.NoError(t, err)

	_, err = c.Save(ctx, w.ID)
	require.ErrorIs(t, err, service.ErrVersionConflict)

	cached, _ := c.Snapshot(w.ID)
	assert.Equal(t, "Push", cached.Name)
}

func TestSave_EditDuringSaveReloads(t *testing.T) {
	ctx := context.Background()
	c, r, w := setup(t, Options{})
	set := w.Exercises[0].Sets[0]
	release := r.hold("SaveWorkout")

	type result struct {
		saved *domain.Workout
		err   error
	}
	done := make(chan result, 1)
	go func() {
		saved, err := c.Save(ctx, w.ID)
		done <- result{saved, err}
	}()
	require.Eventually(t, func() bool { return r.count("SaveWorkout") == 1 }, 2*time.Second, 5*time.Millisecond)

	// Lands on the server before the held save, which then writes 80 back.
	call, err := c.UpdateSet(ctx, w.ID, set.ID, domain.SetPatch{Weight: ptr(77.5)})
	require.NoError(t, err)
	_, err = call.Wait()
	require.NoError(t, err)

	release()
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, w.Version+1, res.saved.Version)

	requireInSync(t, c, r, w.ID)
	cached, _ := c.Snapshot(w.ID)
	assert.Equal(t, 80.0, *cached.Exercises[0].Sets[0].Weight, "server tree wins after the save")
}

func second[A any](_ A, err error) error { return err }
