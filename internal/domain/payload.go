// internal/domain/payload.go
package domain

// --- Create payloads ---

// ExercisePayload carries the fields needed to add an exercise to a workout.
type ExercisePayload struct {
	ReferenceID string  `json:"referenceId" validate:"required"`
	Note        *string `json:"note,omitempty" validate:"omitempty,max=500"`
	Order       *int    `json:"order" validate:"required,min=0"` // Insertion index; later siblings shift down
}

// SetPayload carries the fields needed to add a set to an exercise.
type SetPayload struct {
	Weight *float64 `json:"weight,omitempty" validate:"omitempty,finite,min=0,max=9999"`
	Reps   *int     `json:"reps,omitempty" validate:"omitempty,min=0,max=999"`
	Rest   *int     `json:"rest,omitempty" validate:"omitempty,min=0,max=5999"`
	RPE    *float64 `json:"rpe,omitempty" validate:"omitempty,finite,min=1,max=10"`
	Kind   SetKind  `json:"kind,omitempty" validate:"omitempty,setkind"`
	Order  *int     `json:"order" validate:"required,min=0"`
}

// NewSet builds the set described by the payload. Kind defaults to Normal.
func (p SetPayload) NewSet(exerciseID string) ExerciseSet {
	s := ExerciseSet{
		WorkoutExerciseID: exerciseID,
		Weight:            cloneFloat(p.Weight),
		Reps:              cloneInt(p.Reps),
		Rest:              cloneInt(p.Rest),
		RPE:               cloneFloat(p.RPE),
		Kind:              p.Kind,
	}
	if p.Order != nil {
		s.Order = *p.Order
	}
	if s.Kind == "" {
		s.Kind = SetKindNormal
	}
	return s
}

// --- Partial updates ---

// SetField names an editable field of an ExerciseSet.
type SetField string

const (
	FieldWeight SetField = "weight"
	FieldReps   SetField = "reps"
	FieldRest   SetField = "rest"
	FieldRPE    SetField = "rpe"
	FieldKind   SetField = "kind"
)

// SetPatch is a partial update of an ExerciseSet. Nil fields are left untouched.
type SetPatch struct {
	Weight *float64 `json:"weight,omitempty" validate:"omitempty,finite,min=0,max=9999"`
	Reps   *int     `json:"reps,omitempty" validate:"omitempty,min=0,max=999"`
	Rest   *int     `json:"rest,omitempty" validate:"omitempty,min=0,max=5999"`
	RPE    *float64 `json:"rpe,omitempty" validate:"omitempty,finite,min=1,max=10"`
	Kind   *SetKind `json:"kind,omitempty" validate:"omitempty,setkind"`
}

// IsEmpty reports whether the patch changes nothing.
func (p SetPatch) IsEmpty() bool {
	return p.Weight == nil && p.Reps == nil && p.Rest == nil && p.RPE == nil && p.Kind == nil
}

// Apply writes the non-nil fields of the patch onto s.
func (p SetPatch) Apply(s *ExerciseSet) {
	if p.Weight != nil {
		s.Weight = cloneFloat(p.Weight)
	}
	if p.Reps != nil {
		s.Reps = cloneInt(p.Reps)
	}
	if p.Rest != nil {
		s.Rest = cloneInt(p.Rest)
	}
	if p.RPE != nil {
		s.RPE = cloneFloat(p.RPE)
	}
	if p.Kind != nil {
		s.Kind = *p.Kind
	}
}

// Merge returns p overlaid with later; fields set in later win.
func (p SetPatch) Merge(later SetPatch) SetPatch {
	out := p
	if later.Weight != nil {
		out.Weight = cloneFloat(later.Weight)
	}
	if later.Reps != nil {
		out.Reps = cloneInt(later.Reps)
	}
	if later.Rest != nil {
		out.Rest = cloneInt(later.Rest)
	}
	if later.RPE != nil {
		out.RPE = cloneFloat(later.RPE)
	}
	if later.Kind != nil {
		k := *later.Kind
		out.Kind = &k
	}
	return out
}

// Fields lists the fields the patch touches.
func (p SetPatch) Fields() []SetField {
	var fields []SetField
	if p.Weight != nil {
		fields = append(fields, FieldWeight)
	}
	if p.Reps != nil {
		fields = append(fields, FieldReps)
	}
	if p.Rest != nil {
		fields = append(fields, FieldRest)
	}
	if p.RPE != nil {
		fields = append(fields, FieldRPE)
	}
	if p.Kind != nil {
		fields = append(fields, FieldKind)
	}
	return fields
}

// Only returns a patch restricted to a single field.
func (p SetPatch) Only(f SetField) SetPatch {
	var out SetPatch
	switch f {
	case FieldWeight:
		out.Weight = p.Weight
	case FieldReps:
		out.Reps = p.Reps
	case FieldRest:
		out.Rest = p.Rest
	case FieldRPE:
		out.RPE = p.RPE
	case FieldKind:
		out.Kind = p.Kind
	}
	return out
}

// Matches reports whether field f of s currently holds the value the patch sets.
func (p SetPatch) Matches(f SetField, s ExerciseSet) bool {
	switch f {
	case FieldWeight:
		return equalPtr(p.Weight, s.Weight)
	case FieldReps:
		return equalPtr(p.Reps, s.Reps)
	case FieldRest:
		return equalPtr(p.Rest, s.Rest)
	case FieldRPE:
		return equalPtr(p.RPE, s.RPE)
	case FieldKind:
		return p.Kind != nil && *p.Kind == s.Kind
	}
	return false
}

// ExercisePatch is a partial update of a WorkoutExercise.
type ExercisePatch struct {
	Note *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ExercisePatch) IsEmpty() bool { return p.Note == nil }

// Merge returns p overlaid with later.
func (p ExercisePatch) Merge(later ExercisePatch) ExercisePatch {
	out := p
	if later.Note != nil {
		out.Note = cloneString(later.Note)
	}
	return out
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
