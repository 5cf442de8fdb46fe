package client

import (
	"context"
	"errors"

	"alcyxob/workout-sync/internal/domain"
)

var (
	// ErrNotFound is matched by Remote errors for entities that do not exist
	// or belong to someone else, and by client calls naming an id the cache
	// does not hold.
	ErrNotFound = errors.New("client: entity not found")
	// ErrDeleted is returned for operations on a temporary id that was
	// deleted locally before the server assigned its real id.
	ErrDeleted = errors.New("client: entity was deleted before it was created")
	// ErrUnknownID is returned for temporary ids this client never minted.
	ErrUnknownID = errors.New("client: unknown temporary id")
)

// Remote is the authoritative store. Every call is a single round trip;
// implementations must be safe for concurrent use.
type Remote interface {
	GetWorkout(ctx context.Context, workoutID string) (*domain.Workout, error)
	SaveWorkout(ctx context.Context, workout *domain.Workout) (*domain.Workout, error)

	// CreateExercise returns the new exercise with the one set the server seeds it with.
	CreateExercise(ctx context.Context, workoutID string, payload domain.ExercisePayload) (*domain.WorkoutExercise, error)
	UpdateExercise(ctx context.Context, exerciseID string, patch domain.ExercisePatch) (*domain.WorkoutExercise, error)
	DeleteExercise(ctx context.Context, exerciseID string) error
	ReorderExercises(ctx context.Context, workoutID string, orders []domain.OrderEntry) error

	CreateSet(ctx context.Context, exerciseID string, payload domain.SetPayload) (*domain.ExerciseSet, error)
	UpdateSet(ctx context.Context, setID string, patch domain.SetPatch) (*domain.ExerciseSet, error)
	DeleteSet(ctx context.Context, setID string) error
}
