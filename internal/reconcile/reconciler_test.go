package reconcile

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/repository"
	"alcyxob/workout-sync/internal/repository/sqlite"
)

func newTestReconciler(t *testing.T) (*Reconciler, repository.Repositories) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	repos := store.Repositories()
	return New(repos, slog.New(slog.NewTextHandler(io.Discard, nil))), repos
}

// seedTree persists {C1[L1,L2], C2[L3]} and returns it as loaded.
func seedTree(t *testing.T, repos repository.Repositories) *domain.Workout {
	t.Helper()
	ctx := context.Background()
	w := &domain.Workout{OwnerID: "owner-1", Name: "Upper"}
	_, err := repos.Workouts.Create(ctx, w)
	require.NoError(t, err)

	c1 := &domain.WorkoutExercise{WorkoutID: w.ID, ReferenceID: "bench", Order: 0, Sets: []domain.ExerciseSet{
		{Weight: ptr(80.0), Order: 0}, {Weight: ptr(85.0), Order: 1},
	}}
	c2 := &domain.WorkoutExercise{WorkoutID: w.ID, ReferenceID: "row", Order: 1, Sets: []domain.ExerciseSet{
		{Weight: ptr(60.0), Order: 0},
	}}
	for _, e := range []*domain.WorkoutExercise{c1, c2} {
		_, err := repos.Exercises.Create(ctx, e)
		require.NoError(t, err)
	}
	w.Exercises, err = repos.Exercises.GetByWorkoutID(ctx, w.ID)
	require.NoError(t, err)
	return w
}

func TestSave_AppliesPlanAndReturnsTree(t *testing.T) {
	ctx := context.Background()
	r, repos := newTestReconciler(t)
	persisted := seedTree(t, repos)
	c1 := persisted.Exercises[0]

	submitted := persisted.Clone()
	submitted.Name = "Upper A"
	submitted.Exercises = []domain.WorkoutExercise{
		{ID: c1.ID, ReferenceID: "bench", Order: 0, Sets: []domain.ExerciseSet{
			{ID: c1.Sets[0].ID, Weight: ptr(82.5), Kind: domain.SetKindNormal, Order: 0},
			{ID: "temp-set-new", Weight: ptr(90.0), Kind: domain.SetKindFailure, Order: 1},
		}},
		{ID: "temp-exercise-new", ReferenceID: "dip", Order: 1, Sets: []domain.ExerciseSet{
			{ID: "temp-set-dip", Reps: ptr(12), Order: 0},
		}},
	}

	saved, err := r.Save(ctx, "owner-1", submitted)
	require.NoError(t, err)

	assert.Equal(t, "Upper A", saved.Name)
	assert.Equal(t, persisted.Version+1, saved.Version)
	require.Len(t, saved.Exercises, 2)

	bench := saved.Exercises[0]
	assert.Equal(t, c1.ID, bench.ID, "matched exercise keeps its id")
	require.Len(t, bench.Sets, 2)
	assert.Equal(t, c1.Sets[0].ID, bench.Sets[0].ID)
	assert.Equal(t, 82.5, *bench.Sets[0].Weight)
	assert.Equal(t, domain.SetKindFailure, bench.Sets[1].Kind)
	assert.NotEqual(t, "temp-set-new", bench.Sets[1].ID)

	dip := saved.Exercises[1]
	assert.Equal(t, "dip", dip.ReferenceID)
	require.Len(t, dip.Sets, 1)
	assert.Equal(t, 12, *dip.Sets[0].Reps)

	// The result is what a fresh read returns.
	reloaded, err := repos.Exercises.GetByWorkoutID(ctx, persisted.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Exercises, reloaded)

	_, err = repos.Sets.GetByID(ctx, c1.Sets[1].ID)
	assert.ErrorIs(t, err, repository.ErrNotFound, "omitted set deleted")
	_, err = repos.Exercises.GetByID(ctx, persisted.Exercises[1].ID)
	assert.ErrorIs(t, err, repository.ErrNotFound, "omitted exercise deleted")
}

func TestSave_ForeignOwnerIsNotFound(t *testing.T) {
	r, repos := newTestReconciler(t)
	persisted := seedTree(t, repos)

	_, err := r.Save(context.Background(), "someone-else", persisted)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSave_VersionConflict(t *testing.T) {
	ctx := context.Background()
	r, repos := newTestReconciler(t)
	persisted := seedTree(t, repos)

	first := persisted.Clone()
	first.Name = "first"
	_, err := r.Save(ctx, "owner-1", first)
	require.NoError(t, err)

	stale := persisted.Clone()
	stale.Name = "stale"
	_, err = r.Save(ctx, "owner-1", stale)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// Version 0 opts out of the check.
	stale.Version = 0
	saved, err := r.Save(ctx, "owner-1", stale)
	require.NoError(t, err)
	assert.Equal(t, "stale", saved.Name)
	assert.Equal(t, persisted.Version+2, saved.Version)
}

func TestSave_FailureLeavesNothingApplied(t *testing.T) {
	ctx := context.Background()
	r, repos := newTestReconciler(t)
	persisted := seedTree(t, repos)

	submitted := persisted.Clone()
	submitted.Name = "renamed"
	submitted.Exercises = submitted.Exercises[:1]
	submitted.Exercises[0].Sets = append(submitted.Exercises[0].Sets, domain.ExerciseSet{Order: 2})
	// An exercise without referenceId makes the create fail after the deletes ran.
	submitted.Exercises = append(submitted.Exercises, domain.WorkoutExercise{Order: 1})

	_, err := r.Save(ctx, "owner-1", submitted)
	require.Error(t, err)

	header, err := repos.Workouts.GetByID(ctx, persisted.ID)
	require.NoError(t, err)
	assert.Equal(t, "Upper", header.Name)
	assert.Equal(t, persisted.Version, header.Version)
	exercises, err := repos.Exercises.GetByWorkoutID(ctx, persisted.ID)
	require.NoError(t, err)
	assert.Equal(t, persisted.Exercises, exercises)
}
