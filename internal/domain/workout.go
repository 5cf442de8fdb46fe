// internal/domain/workout.go
package domain

import (
	"time"
)

// Workout is the aggregate root: a named session owning an ordered list of exercises.
type Workout struct {
	ID        string            `bson:"_id,omitempty" json:"id" yaml:"id,omitempty"`
	OwnerID   string            `bson:"ownerId" json:"ownerId,omitempty" yaml:"ownerId,omitempty"` // User who created the workout
	Name      string            `bson:"name" json:"name" yaml:"name" validate:"required,max=100"`
	Note      *string           `bson:"note,omitempty" json:"note,omitempty" yaml:"note,omitempty" validate:"omitempty,max=500"`
	Version   int               `bson:"version" json:"version" yaml:"version,omitempty"` // Bumped on every full save
	CreatedAt time.Time         `bson:"createdAt" json:"createdAt" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time         `bson:"updatedAt" json:"updatedAt" yaml:"updatedAt,omitempty"`
	Exercises []WorkoutExercise `bson:"-" json:"exercises" yaml:"exercises" validate:"dive"` // Stored in their own collection
}

// WorkoutExercise is one exercise slot inside a workout.
type WorkoutExercise struct {
	ID          string        `bson:"_id,omitempty" json:"id,omitempty" yaml:"id,omitempty"`
	WorkoutID   string        `bson:"workoutId" json:"workoutId" yaml:"workoutId,omitempty"`
	ReferenceID string        `bson:"referenceId" json:"referenceId" yaml:"referenceId" validate:"required"` // Catalog exercise, opaque to this service
	Note        *string       `bson:"note,omitempty" json:"note,omitempty" yaml:"note,omitempty" validate:"omitempty,max=500"`
	Order       int           `bson:"order" json:"order" yaml:"order" validate:"min=0"`
	Sets        []ExerciseSet `bson:"-" json:"sets" yaml:"sets" validate:"dive"`
}

// ExerciseSet is a single set performed for a WorkoutExercise.
type ExerciseSet struct {
	ID                string   `bson:"_id,omitempty" json:"id,omitempty" yaml:"id,omitempty"`
	WorkoutExerciseID string   `bson:"workoutExerciseId" json:"workoutExerciseId" yaml:"workoutExerciseId,omitempty"`
	Weight            *float64 `bson:"weight,omitempty" json:"weight,omitempty" yaml:"weight,omitempty" validate:"omitempty,finite,min=0,max=9999"`
	Reps              *int     `bson:"reps,omitempty" json:"reps,omitempty" yaml:"reps,omitempty" validate:"omitempty,min=0,max=999"`
	Rest              *int     `bson:"rest,omitempty" json:"rest,omitempty" yaml:"rest,omitempty" validate:"omitempty,min=0,max=5999"` // Seconds
	RPE               *float64 `bson:"rpe,omitempty" json:"rpe,omitempty" yaml:"rpe,omitempty" validate:"omitempty,finite,min=1,max=10"`
	Kind              SetKind  `bson:"kind" json:"kind" yaml:"kind,omitempty" validate:"omitempty,setkind"`
	Order             int      `bson:"order" json:"order" yaml:"order" validate:"min=0"`
}

// SetKind classifies a set.
type SetKind string

const (
	SetKindWarmUp  SetKind = "WarmUp"
	SetKindNormal  SetKind = "Normal"
	SetKindDropSet SetKind = "DropSet"
	SetKindFailure SetKind = "Failure"
)

// Valid reports whether k is one of the known set kinds.
func (k SetKind) Valid() bool {
	switch k {
	case SetKindWarmUp, SetKindNormal, SetKindDropSet, SetKindFailure:
		return true
	}
	return false
}

// --- Ordering accessors (used by the ordering package) ---

func (e *WorkoutExercise) GetID() string  { return e.ID }
func (e *WorkoutExercise) GetOrder() int  { return e.Order }
func (e *WorkoutExercise) SetOrder(o int) { e.Order = o }

func (s *ExerciseSet) GetID() string  { return s.ID }
func (s *ExerciseSet) GetOrder() int  { return s.Order }
func (s *ExerciseSet) SetOrder(o int) { s.Order = o }

// --- Deep copies ---
// Cached snapshots are treated as immutable; every speculative change starts from a clone.

// Clone returns a deep copy of the workout, including exercises and sets.
func (w *Workout) Clone() *Workout {
	if w == nil {
		return nil
	}
	c := *w
	c.Note = cloneString(w.Note)
	if w.Exercises != nil {
		c.Exercises = make([]WorkoutExercise, len(w.Exercises))
		for i := range w.Exercises {
			c.Exercises[i] = w.Exercises[i].Clone()
		}
	}
	return &c
}

// Clone returns a deep copy of the exercise and its sets.
func (e WorkoutExercise) Clone() WorkoutExercise {
	c := e
	c.Note = cloneString(e.Note)
	if e.Sets != nil {
		c.Sets = make([]ExerciseSet, len(e.Sets))
		for i := range e.Sets {
			c.Sets[i] = e.Sets[i].Clone()
		}
	}
	return c
}

// Clone returns a deep copy of the set.
func (s ExerciseSet) Clone() ExerciseSet {
	c := s
	c.Weight = cloneFloat(s.Weight)
	c.Reps = cloneInt(s.Reps)
	c.Rest = cloneInt(s.Rest)
	c.RPE = cloneFloat(s.RPE)
	return c
}

// FindExercise returns the index of the exercise with the given id, or -1.
func (w *Workout) FindExercise(id string) int {
	for i := range w.Exercises {
		if w.Exercises[i].ID == id {
			return i
		}
	}
	return -1
}

// FindSet locates a set anywhere in the workout. Returns (-1, -1) if absent.
func (w *Workout) FindSet(id string) (exerciseIdx, setIdx int) {
	for i := range w.Exercises {
		for j := range w.Exercises[i].Sets {
			if w.Exercises[i].Sets[j].ID == id {
				return i, j
			}
		}
	}
	return -1, -1
}

// OrderEntry assigns a new position to a child; used by reorder requests.
type OrderEntry struct {
	ID    string `json:"id" yaml:"id,omitempty" validate:"required"`
	Order int    `json:"order" yaml:"order" validate:"min=0"`
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
