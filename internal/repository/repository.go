package repository

import (
	"alcyxob/workout-sync/internal/domain" // Import our defined domain models
	"context"                              // Standard for request-scoped deadlines, cancellation signals, etc.
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (string, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// WorkoutRepository stores workout headers. Exercises live in ExerciseRepository.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (string, error)
	GetByID(ctx context.Context, id string) (*domain.Workout, error)
	GetByOwnerID(ctx context.Context, ownerID string) ([]domain.Workout, error) // Newest first, headers only
	Update(ctx context.Context, workout *domain.Workout) error                   // Name, note, version, updatedAt
}

// ExerciseRepository stores the exercises of a workout.
type ExerciseRepository interface {
	// Create inserts the exercise and its nested sets, writing the new ids back into exercise.
	Create(ctx context.Context, exercise *domain.WorkoutExercise) (string, error)
	GetByID(ctx context.Context, id string) (*domain.WorkoutExercise, error) // Without sets
	// GetByWorkoutID returns the exercises sorted by order, each with its sets sorted by order.
	GetByWorkoutID(ctx context.Context, workoutID string) ([]domain.WorkoutExercise, error)
	Update(ctx context.Context, exercise *domain.WorkoutExercise) error // ReferenceID, note, order
	DeleteMany(ctx context.Context, ids []string) error                 // Cascades to sets
	// ShiftOrders adds delta to the order of every exercise of the workout whose order is >= from.
	ShiftOrders(ctx context.Context, workoutID string, from, delta int) error
	SetOrders(ctx context.Context, workoutID string, orders []domain.OrderEntry) error
}

// SetRepository stores the sets of an exercise.
type SetRepository interface {
	Create(ctx context.Context, set *domain.ExerciseSet) (string, error)
	GetByID(ctx context.Context, id string) (*domain.ExerciseSet, error)
	Update(ctx context.Context, set *domain.ExerciseSet) error
	DeleteMany(ctx context.Context, ids []string) error
	// ShiftOrders adds delta to the order of every set of the exercise whose order is >= from.
	ShiftOrders(ctx context.Context, exerciseID string, from, delta int) error
}

// Transactor runs fn atomically. Repository calls made with the ctx passed to
// fn join the transaction; nested calls reuse the outer one.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories bundles one driver's implementations.
type Repositories struct {
	Users     UserRepository
	Workouts  WorkoutRepository
	Exercises ExerciseRepository
	Sets      SetRepository
	Tx        Transactor
}
