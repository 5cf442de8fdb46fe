// Package mutation defines the operations a client can issue against a workout
// and the queue that holds operations waiting for a temporary id to resolve.
package mutation

import (
	"maps"

	"alcyxob/workout-sync/internal/domain"
)

// Kind identifies an operation variant.
type Kind string

const (
	KindCreateExercise   Kind = "createExercise"
	KindUpdateExercise   Kind = "updateExercise"
	KindDeleteExercise   Kind = "deleteExercise"
	KindReorderExercises Kind = "reorderExercises"
	KindCreateSet        Kind = "createSet"
	KindUpdateSet        Kind = "updateSet"
	KindDeleteSet        Kind = "deleteSet"
)

// Op is one of the variants below. Every variant names the workout it belongs to.
type Op interface {
	Kind() Kind
	Workout() string
	// Retarget returns a copy with every reference to tempID replaced by realID.
	Retarget(tempID, realID string) Op
}

// Mergeable ops fold a later op of the same kind into themselves.
type Mergeable interface {
	Op
	Merge(later Op) Op
}

// --- Exercise operations ---

// CreateExercise adds an exercise at Payload.Order. TempID names the exercise
// until the server assigns its id; SeedSetTempID names the default set the
// server creates with it.
type CreateExercise struct {
	WorkoutID     string
	TempID        string
	SeedSetTempID string
	Payload       domain.ExercisePayload
}

func (CreateExercise) Kind() Kind { return KindCreateExercise }
func (o CreateExercise) Workout() string { return o.WorkoutID }
func (o CreateExercise) Retarget(_, _ string) Op { return o }

// UpdateExercise patches an exercise.
type UpdateExercise struct {
	WorkoutID string
	ID        string
	Patch     domain.ExercisePatch
}

func (UpdateExercise) Kind() Kind { return KindUpdateExercise }
func (o UpdateExercise) Workout() string { return o.WorkoutID }

func (o UpdateExercise) Retarget(tempID, realID string) Op {
	if o.ID == tempID {
		o.ID = realID
	}
	return o
}

func (o UpdateExercise) Merge(later Op) Op {
	l, ok := later.(UpdateExercise)
	if !ok {
		return later
	}
	l.Patch = o.Patch.Merge(l.Patch)
	return l
}

// DeleteExercise removes an exercise and its sets.
type DeleteExercise struct {
	WorkoutID string
	ID        string
}

func (DeleteExercise) Kind() Kind { return KindDeleteExercise }
func (o DeleteExercise) Workout() string { return o.WorkoutID }

func (o DeleteExercise) Retarget(tempID, realID string) Op {
	if o.ID == tempID {
		o.ID = realID
	}
	return o
}

// ReorderExercises assigns new orders to the exercises of a workout.
type ReorderExercises struct {
	WorkoutID string
	Orders    map[string]int // exercise id -> order, a permutation of [0, n)
}

func (ReorderExercises) Kind() Kind { return KindReorderExercises }
func (o ReorderExercises) Workout() string { return o.WorkoutID }

func (o ReorderExercises) Retarget(tempID, realID string) Op {
	order, ok := o.Orders[tempID]
	if !ok {
		return o
	}
	orders := maps.Clone(o.Orders)
	delete(orders, tempID)
	orders[realID] = order
	o.Orders = orders
	return o
}

// Merge keeps only the later reorder: unioning two maps can break the permutation.
func (o ReorderExercises) Merge(later Op) Op {
	return later
}

// Entries returns the orders as a list, the shape the remote call expects.
func (o ReorderExercises) Entries() []domain.OrderEntry {
	entries := make([]domain.OrderEntry, 0, len(o.Orders))
	for id, order := range o.Orders {
		entries = append(entries, domain.OrderEntry{ID: id, Order: order})
	}
	return entries
}

// --- Set operations ---

// CreateSet adds a set at Payload.Order under ExerciseID.
type CreateSet struct {
	WorkoutID  string
	ExerciseID string
	TempID     string
	Payload    domain.SetPayload
}

func (CreateSet) Kind() Kind { return KindCreateSet }
func (o CreateSet) Workout() string { return o.WorkoutID }

func (o CreateSet) Retarget(tempID, realID string) Op {
	if o.ExerciseID == tempID {
		o.ExerciseID = realID
	}
	return o
}

// UpdateSet patches a set.
type UpdateSet struct {
	WorkoutID string
	ID        string
	Patch     domain.SetPatch
}

func (UpdateSet) Kind() Kind { return KindUpdateSet }
func (o UpdateSet) Workout() string { return o.WorkoutID }

func (o UpdateSet) Retarget(tempID, realID string) Op {
	if o.ID == tempID {
		o.ID = realID
	}
	return o
}

func (o UpdateSet) Merge(later Op) Op {
	l, ok := later.(UpdateSet)
	if !ok {
		return later
	}
	l.Patch = o.Patch.Merge(l.Patch)
	return l
}

// DeleteSet removes a set.
type DeleteSet struct {
	WorkoutID string
	ID        string
}

func (DeleteSet) Kind() Kind { return KindDeleteSet }
func (o DeleteSet) Workout() string { return o.WorkoutID }

func (o DeleteSet) Retarget(tempID, realID string) Op {
	if o.ID == tempID {
		o.ID = realID
	}
	return o
}
