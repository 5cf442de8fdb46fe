// Package reconcile turns a submitted workout tree into the smallest set of
// writes that makes the persisted tree match it.
package reconcile

import (
	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/ordering"
	"alcyxob/workout-sync/internal/tempid"
)

// Plan lists the writes needed to reconcile one workout. Sets under deleted
// exercises are not listed; deleting the exercise removes them.
type Plan struct {
	ExerciseDeletes []string
	SetDeletes      []string
	ExerciseCreates []domain.WorkoutExercise // ids cleared, nested sets included
	ExerciseUpdates []domain.WorkoutExercise // without sets
	SetCreates      []domain.ExerciseSet     // ids cleared, parent is an existing exercise
	SetUpdates      []domain.ExerciseSet
}

// IsEmpty reports whether the plan writes nothing.
func (p Plan) IsEmpty() bool {
	return len(p.ExerciseDeletes) == 0 && len(p.SetDeletes) == 0 &&
		len(p.ExerciseCreates) == 0 && len(p.ExerciseUpdates) == 0 &&
		len(p.SetCreates) == 0 && len(p.SetUpdates) == 0
}

// Count returns the number of writes in the plan.
func (p Plan) Count() int {
	return len(p.ExerciseDeletes) + len(p.SetDeletes) + len(p.ExerciseCreates) +
		len(p.ExerciseUpdates) + len(p.SetCreates) + len(p.SetUpdates)
}

// Diff compares the persisted exercises of a workout with a submission.
//
// A submitted entity matches a persisted one when it carries the same server id
// in the same scope. Temporary ids, empty ids, ids of other scopes and repeated
// ids become creates. Persisted entities no submitted entity matches become
// deletes. Matched entities become updates only when a field changed. Submitted
// orders are normalized to 0..n-1 within each scope first.
func Diff(persisted, submitted []domain.WorkoutExercise) Plan {
	var plan Plan

	existing := make(map[string]*domain.WorkoutExercise, len(persisted))
	for i := range persisted {
		existing[persisted[i].ID] = &persisted[i]
	}
	matched := make(map[string]bool, len(submitted))

	for _, sub := range ordering.Normalize(submitted) {
		sub.Sets = ordering.Normalize(sub.Sets)
		old, ok := existing[sub.ID]
		if !ok || matched[sub.ID] || tempid.IsTemp(sub.ID) {
			plan.ExerciseCreates = append(plan.ExerciseCreates, freshExercise(sub))
			continue
		}
		matched[sub.ID] = true

		if exerciseChanged(*old, sub) {
			upd := sub.Clone()
			upd.WorkoutID = old.WorkoutID
			upd.Sets = nil
			plan.ExerciseUpdates = append(plan.ExerciseUpdates, upd)
		}
		diffSets(&plan, *old, sub)
	}

	for _, p := range persisted {
		if !matched[p.ID] {
			plan.ExerciseDeletes = append(plan.ExerciseDeletes, p.ID)
		}
	}
	return plan
}

// diffSets plans the set writes of an exercise present on both sides.
func diffSets(plan *Plan, old, sub domain.WorkoutExercise) {
	existing := make(map[string]*domain.ExerciseSet, len(old.Sets))
	for i := range old.Sets {
		existing[old.Sets[i].ID] = &old.Sets[i]
	}
	matched := make(map[string]bool, len(sub.Sets))

	for _, s := range sub.Sets {
		prev, ok := existing[s.ID]
		if !ok || matched[s.ID] || tempid.IsTemp(s.ID) {
			created := s.Clone()
			created.ID = ""
			created.WorkoutExerciseID = old.ID
			plan.SetCreates = append(plan.SetCreates, withDefaultKind(created))
			continue
		}
		matched[s.ID] = true

		s = withDefaultKind(s)
		if setChanged(*prev, s) {
			upd := s.Clone()
			upd.WorkoutExerciseID = old.ID
			plan.SetUpdates = append(plan.SetUpdates, upd)
		}
	}

	for _, p := range old.Sets {
		if !matched[p.ID] {
			plan.SetDeletes = append(plan.SetDeletes, p.ID)
		}
	}
}

func freshExercise(sub domain.WorkoutExercise) domain.WorkoutExercise {
	e := sub.Clone()
	e.ID = ""
	for i := range e.Sets {
		e.Sets[i].ID = ""
		e.Sets[i].WorkoutExerciseID = ""
		e.Sets[i] = withDefaultKind(e.Sets[i])
	}
	return e
}

func withDefaultKind(s domain.ExerciseSet) domain.ExerciseSet {
	if s.Kind == "" {
		s.Kind = domain.SetKindNormal
	}
	return s
}

func exerciseChanged(old, sub domain.WorkoutExercise) bool {
	return old.ReferenceID != sub.ReferenceID ||
		old.Order != sub.Order ||
		!equalPtr(old.Note, sub.Note)
}

func setChanged(old, sub domain.ExerciseSet) bool {
	return old.Order != sub.Order ||
		old.Kind != sub.Kind ||
		!equalPtr(old.Weight, sub.Weight) ||
		!equalPtr(old.Reps, sub.Reps) ||
		!equalPtr(old.Rest, sub.Rest) ||
		!equalPtr(old.RPE, sub.RPE)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
