package client

import (
	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/mutation"
	"alcyxob/workout-sync/internal/ordering"
)

// Speculate and commit functions for every mutation. They are pure: the
// cached workout is shared and must never be modified, so each returns a
// fresh copy. Speculation reports false when it would change nothing, which
// also makes it idempotent when an op is replayed.

// --- Exercises ---

func speculateCreateExercise(cur *domain.Workout, op mutation.CreateExercise) (*domain.Workout, bool) {
	if cur.FindExercise(op.TempID) >= 0 {
		return cur, false
	}
	exercise := domain.WorkoutExercise{
		ID:          op.TempID,
		WorkoutID:   cur.ID,
		ReferenceID: op.Payload.ReferenceID,
		Note:        clonePtr(op.Payload.Note),
		Sets: []domain.ExerciseSet{{
			ID:                op.SeedSetTempID,
			WorkoutExerciseID: op.TempID,
			Kind:              domain.SetKindNormal,
		}},
	}
	next := cur.Clone()
	next.Exercises = ordering.InsertAt(next.Exercises, *op.Payload.Order, exercise)
	return next, true
}

// commitCreateExercise swaps the temporary ids for the server's. Local field
// values are kept: edits made while the create was in flight are replayed
// against the server separately.
func commitCreateExercise(cur *domain.Workout, created *domain.WorkoutExercise, op mutation.CreateExercise) *domain.Workout {
	i := cur.FindExercise(op.TempID)
	if i < 0 {
		return cur
	}
	next := cur.Clone()
	exercise := &next.Exercises[i]
	exercise.ID = created.ID
	for j := range exercise.Sets {
		exercise.Sets[j].WorkoutExerciseID = created.ID
		if exercise.Sets[j].ID == op.SeedSetTempID && len(created.Sets) > 0 {
			exercise.Sets[j].ID = created.Sets[0].ID
		}
	}
	return next
}

func resolveCreateExercise(created *domain.WorkoutExercise, op mutation.CreateExercise) map[string]string {
	ids := map[string]string{op.TempID: created.ID}
	if len(created.Sets) > 0 {
		ids[op.SeedSetTempID] = created.Sets[0].ID
	}
	return ids
}

func speculateUpdateExercise(cur *domain.Workout, op mutation.UpdateExercise) (*domain.Workout, bool) {
	i := cur.FindExercise(op.ID)
	if i < 0 || op.Patch.IsEmpty() {
		return cur, false
	}
	next := cur.Clone()
	next.Exercises[i].Note = clonePtr(op.Patch.Note)
	return next, true
}

func speculateDeleteExercise(cur *domain.Workout, op mutation.DeleteExercise) (*domain.Workout, bool) {
	i := cur.FindExercise(op.ID)
	if i < 0 {
		return cur, false
	}
	next := cur.Clone()
	next.Exercises = ordering.RemoveAt(next.Exercises, next.Exercises[i].Order)
	return next, true
}

func speculateReorderExercises(cur *domain.Workout, op mutation.ReorderExercises) (*domain.Workout, bool) {
	if ordering.CheckPermutation(cur.Exercises, op.Orders) != nil {
		return cur, false
	}
	next := cur.Clone()
	next.Exercises = ordering.Reorder(next.Exercises, op.Orders)
	return next, true
}

// --- Sets ---

func speculateCreateSet(cur *domain.Workout, op mutation.CreateSet) (*domain.Workout, bool) {
	if ei, _ := cur.FindSet(op.TempID); ei >= 0 {
		return cur, false
	}
	i := cur.FindExercise(op.ExerciseID)
	if i < 0 {
		return cur, false
	}
	set := op.Payload.NewSet(op.ExerciseID)
	set.ID = op.TempID
	next := cur.Clone()
	next.Exercises[i].Sets = ordering.InsertAt(next.Exercises[i].Sets, *op.Payload.Order, set)
	return next, true
}

func commitCreateSet(cur *domain.Workout, created *domain.ExerciseSet, op mutation.CreateSet) *domain.Workout {
	ei, si := cur.FindSet(op.TempID)
	if ei < 0 {
		return cur
	}
	next := cur.Clone()
	set := &next.Exercises[ei].Sets[si]
	set.ID = created.ID
	set.WorkoutExerciseID = created.WorkoutExerciseID
	return next
}

func speculateUpdateSet(cur *domain.Workout, op mutation.UpdateSet) (*domain.Workout, bool) {
	ei, si := cur.FindSet(op.ID)
	if ei < 0 || op.Patch.IsEmpty() {
		return cur, false
	}
	next := cur.Clone()
	op.Patch.Apply(&next.Exercises[ei].Sets[si])
	return next, true
}

func speculateDeleteSet(cur *domain.Workout, op mutation.DeleteSet) (*domain.Workout, bool) {
	ei, si := cur.FindSet(op.ID)
	if ei < 0 {
		return cur, false
	}
	next := cur.Clone()
	sets := next.Exercises[ei].Sets
	next.Exercises[ei].Sets = ordering.RemoveAt(sets, sets[si].Order)
	return next, true
}

// --- Whole workout ---

// commitSave adopts the server's tree unless the cache moved on while the save
// was in flight; then the local tree stays and only the version advances.
func commitSave(cur *domain.Workout, saved *domain.Workout, submitted *domain.Workout) *domain.Workout {
	if cur == submitted {
		return saved
	}
	next := cur.Clone()
	next.Version = saved.Version
	return next
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
