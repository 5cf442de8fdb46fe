// internal/service/workout_service.go
package service

import (
	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/ordering"
	"alcyxob/workout-sync/internal/reconcile"
	"alcyxob/workout-sync/internal/repository"
	"context"
	"errors"
	"log/slog"
)

// --- Error Definitions ---
var (
	ErrWorkoutNotFound  = errors.New("workout not found")
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrSetNotFound      = errors.New("set not found")
	// ErrVersionConflict is returned by SaveWorkout when the submission is stale.
	ErrVersionConflict = reconcile.ErrVersionConflict
)

// --- Service Interface ---

// WorkoutService manages workouts and their ordered exercises and sets.
// Every call is scoped to ownerID; entities of other owners are reported as not found.
type WorkoutService interface {
	CreateWorkout(ctx context.Context, ownerID string, workout *domain.Workout) (*domain.Workout, error)
	GetWorkout(ctx context.Context, ownerID, workoutID string) (*domain.Workout, error)
	ListWorkouts(ctx context.Context, ownerID string) ([]domain.Workout, error)
	SaveWorkout(ctx context.Context, ownerID string, workout *domain.Workout) (*domain.Workout, error)

	AddExercise(ctx context.Context, ownerID, workoutID string, payload domain.ExercisePayload) (*domain.WorkoutExercise, error)
	UpdateExercise(ctx context.Context, ownerID, exerciseID string, patch domain.ExercisePatch) (*domain.WorkoutExercise, error)
	RemoveExercise(ctx context.Context, ownerID, exerciseID string) error
	ReorderExercises(ctx context.Context, ownerID, workoutID string, orders []domain.OrderEntry) error

	AddSet(ctx context.Context, ownerID, exerciseID string, payload domain.SetPayload) (*domain.ExerciseSet, error)
	UpdateSet(ctx context.Context, ownerID, setID string, patch domain.SetPatch) (*domain.ExerciseSet, error)
	RemoveSet(ctx context.Context, ownerID, setID string) error
}

// --- Service Implementation ---

type workoutService struct {
	tx           repository.Transactor
	workoutRepo  repository.WorkoutRepository
	exerciseRepo repository.ExerciseRepository
	setRepo      repository.SetRepository
	reconciler   *reconcile.Reconciler
	logger       *slog.Logger
}

// NewWorkoutService creates a new instance of workoutService.
func NewWorkoutService(repos repository.Repositories, reconciler *reconcile.Reconciler, logger *slog.Logger) WorkoutService {
	return &workoutService{
		tx:           repos.Tx,
		workoutRepo:  repos.Workouts,
		exerciseRepo: repos.Exercises,
		setRepo:      repos.Sets,
		reconciler:   reconciler,
		logger:       logger,
	}
}

// === Workouts ===

// CreateWorkout stores a new workout. Any exercises it carries are created with it.
func (s *workoutService) CreateWorkout(ctx context.Context, ownerID string, workout *domain.Workout) (*domain.Workout, error) {
	if err := domain.Validate(workout); err != nil {
		return nil, err
	}

	var created *domain.Workout
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		header := &domain.Workout{OwnerID: ownerID, Name: workout.Name, Note: workout.Note}
		if _, err := s.workoutRepo.Create(ctx, header); err != nil {
			return err
		}
		if len(workout.Exercises) == 0 {
			header.Exercises = []domain.WorkoutExercise{}
			created = header
			return nil
		}

		// Populate the exercises through the reconciler, reusing its ordering rules.
		tree := workout.Clone()
		tree.ID = header.ID
		tree.Version = header.Version
		saved, err := s.reconciler.Save(ctx, ownerID, tree)
		if err != nil {
			return err
		}
		created = saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetWorkout loads the full ordered tree.
func (s *workoutService) GetWorkout(ctx context.Context, ownerID, workoutID string) (*domain.Workout, error) {
	w, err := s.ownedWorkout(ctx, ownerID, workoutID)
	if err != nil {
		return nil, err
	}
	w.Exercises, err = s.exerciseRepo.GetByWorkoutID(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ListWorkouts returns the owner's workout headers, newest first.
func (s *workoutService) ListWorkouts(ctx context.Context, ownerID string) ([]domain.Workout, error) {
	return s.workoutRepo.GetByOwnerID(ctx, ownerID)
}

// SaveWorkout replaces the workout's tree with the submitted one.
func (s *workoutService) SaveWorkout(ctx context.Context, ownerID string, workout *domain.Workout) (*domain.Workout, error) {
	if err := domain.Validate(workout); err != nil {
		return nil, err
	}
	saved, err := s.reconciler.Save(ctx, ownerID, workout)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return saved, nil
}

// === Exercises ===

// AddExercise inserts an exercise at payload.Order, shifting later siblings,
// and seeds it with one Normal set.
func (s *workoutService) AddExercise(ctx context.Context, ownerID, workoutID string, payload domain.ExercisePayload) (*domain.WorkoutExercise, error) {
	if err := domain.Validate(payload); err != nil {
		return nil, err
	}

	var created *domain.WorkoutExercise
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		w, err := s.ownedWorkout(ctx, ownerID, workoutID)
		if err != nil {
			return err
		}
		siblings, err := s.exerciseRepo.GetByWorkoutID(ctx, w.ID)
		if err != nil {
			return err
		}
		order := clamp(*payload.Order, len(siblings))
		if err := s.exerciseRepo.ShiftOrders(ctx, w.ID, order, 1); err != nil {
			return err
		}

		exercise := &domain.WorkoutExercise{
			WorkoutID:   w.ID,
			ReferenceID: payload.ReferenceID,
			Note:        payload.Note,
			Order:       order,
			Sets:        []domain.ExerciseSet{{Kind: domain.SetKindNormal, Order: 0}},
		}
		if _, err := s.exerciseRepo.Create(ctx, exercise); err != nil {
			return err
		}
		created = exercise
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateExercise applies a partial update.
func (s *workoutService) UpdateExercise(ctx context.Context, ownerID, exerciseID string, patch domain.ExercisePatch) (*domain.WorkoutExercise, error) {
	if err := domain.Validate(patch); err != nil {
		return nil, err
	}

	var updated *domain.WorkoutExercise
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exercise, err := s.ownedExercise(ctx, ownerID, exerciseID)
		if err != nil {
			return err
		}
		if patch.Note != nil {
			exercise.Note = patch.Note
		}
		if err := s.exerciseRepo.Update(ctx, exercise); err != nil {
			return err
		}
		updated = exercise
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveExercise deletes the exercise with its sets and closes the gap it leaves.
func (s *workoutService) RemoveExercise(ctx context.Context, ownerID, exerciseID string) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exercise, err := s.ownedExercise(ctx, ownerID, exerciseID)
		if err != nil {
			return err
		}
		if err := s.exerciseRepo.DeleteMany(ctx, []string{exercise.ID}); err != nil {
			return err
		}
		return s.exerciseRepo.ShiftOrders(ctx, exercise.WorkoutID, exercise.Order+1, -1)
	})
}

// ReorderExercises assigns new orders. The entries must cover every exercise
// of the workout exactly once with a permutation of 0..n-1.
func (s *workoutService) ReorderExercises(ctx context.Context, ownerID, workoutID string, orders []domain.OrderEntry) error {
	for _, o := range orders {
		if err := domain.Validate(o); err != nil {
			return err
		}
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		w, err := s.ownedWorkout(ctx, ownerID, workoutID)
		if err != nil {
			return err
		}
		current, err := s.exerciseRepo.GetByWorkoutID(ctx, w.ID)
		if err != nil {
			return err
		}
		byID := make(map[string]int, len(orders))
		for _, o := range orders {
			if _, dup := byID[o.ID]; dup {
				return domain.NewValidationError("exercise %s listed twice", o.ID)
			}
			byID[o.ID] = o.Order
		}
		if err := ordering.CheckPermutation(current, byID); err != nil {
			return domain.NewValidationError("%v", err)
		}
		return s.exerciseRepo.SetOrders(ctx, w.ID, orders)
	})
}

// === Sets ===

// AddSet inserts a set at payload.Order, shifting later siblings.
func (s *workoutService) AddSet(ctx context.Context, ownerID, exerciseID string, payload domain.SetPayload) (*domain.ExerciseSet, error) {
	if err := domain.Validate(payload); err != nil {
		return nil, err
	}

	var created *domain.ExerciseSet
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exercise, err := s.ownedExercise(ctx, ownerID, exerciseID)
		if err != nil {
			return err
		}
		siblings, err := s.setsOf(ctx, exercise)
		if err != nil {
			return err
		}
		order := clamp(*payload.Order, len(siblings))
		if err := s.setRepo.ShiftOrders(ctx, exercise.ID, order, 1); err != nil {
			return err
		}

		set := payload.NewSet(exercise.ID)
		set.Order = order
		if _, err := s.setRepo.Create(ctx, &set); err != nil {
			return err
		}
		created = &set
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateSet applies a partial update.
func (s *workoutService) UpdateSet(ctx context.Context, ownerID, setID string, patch domain.SetPatch) (*domain.ExerciseSet, error) {
	if err := domain.Validate(patch); err != nil {
		return nil, err
	}

	var updated *domain.ExerciseSet
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		set, _, err := s.ownedSet(ctx, ownerID, setID)
		if err != nil {
			return err
		}
		patch.Apply(set)
		if err := s.setRepo.Update(ctx, set); err != nil {
			return err
		}
		updated = set
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveSet deletes a set and closes the gap it leaves.
func (s *workoutService) RemoveSet(ctx context.Context, ownerID, setID string) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		set, _, err := s.ownedSet(ctx, ownerID, setID)
		if err != nil {
			return err
		}
		if err := s.setRepo.DeleteMany(ctx, []string{set.ID}); err != nil {
			return err
		}
		return s.setRepo.ShiftOrders(ctx, set.WorkoutExerciseID, set.Order+1, -1)
	})
}

// --- Ownership helpers ---

func (s *workoutService) ownedWorkout(ctx context.Context, ownerID, workoutID string) (*domain.Workout, error) {
	w, err := s.workoutRepo.GetByID(ctx, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	if w.OwnerID != ownerID {
		return nil, ErrWorkoutNotFound // Don't reveal that the workout exists
	}
	return w, nil
}

func (s *workoutService) ownedExercise(ctx context.Context, ownerID, exerciseID string) (*domain.WorkoutExercise, error) {
	exercise, err := s.exerciseRepo.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	if _, err := s.ownedWorkout(ctx, ownerID, exercise.WorkoutID); err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	return exercise, nil
}

func (s *workoutService) ownedSet(ctx context.Context, ownerID, setID string) (*domain.ExerciseSet, *domain.WorkoutExercise, error) {
	set, err := s.setRepo.GetByID(ctx, setID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSetNotFound
		}
		return nil, nil, err
	}
	exercise, err := s.ownedExercise(ctx, ownerID, set.WorkoutExerciseID)
	if err != nil {
		if errors.Is(err, ErrExerciseNotFound) {
			return nil, nil, ErrSetNotFound
		}
		return nil, nil, err
	}
	return set, exercise, nil
}

// setsOf loads the ordered sets of one exercise.
func (s *workoutService) setsOf(ctx context.Context, exercise *domain.WorkoutExercise) ([]domain.ExerciseSet, error) {
	all, err := s.exerciseRepo.GetByWorkoutID(ctx, exercise.WorkoutID)
	if err != nil {
		return nil, err
	}
	for _, e := range all {
		if e.ID == exercise.ID {
			return e.Sets, nil
		}
	}
	return nil, ErrExerciseNotFound
}

// clamp keeps an insertion index within [0, n].
func clamp(index, n int) int {
	return max(0, min(index, n))
}
