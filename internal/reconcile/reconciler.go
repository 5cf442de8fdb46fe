package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/repository"
)

// ErrVersionConflict is returned when the submission was based on an older
// version of the workout than the one persisted.
var ErrVersionConflict = errors.New("workout was modified since it was loaded")

// Reconciler saves whole workout trees atomically.
type Reconciler struct {
	tx        repository.Transactor
	workouts  repository.WorkoutRepository
	exercises repository.ExerciseRepository
	sets      repository.SetRepository
	logger    *slog.Logger
}

func New(repos repository.Repositories, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		tx:        repos.Tx,
		workouts:  repos.Workouts,
		exercises: repos.Exercises,
		sets:      repos.Sets,
		logger:    logger,
	}
}

// Save makes the persisted tree of submitted.ID match submitted and returns
// the re-read tree. A non-zero submitted.Version must equal the persisted
// version; zero skips the check. Workouts of other owners are reported as
// repository.ErrNotFound. Any failure rolls back every write.
func (r *Reconciler) Save(ctx context.Context, ownerID string, submitted *domain.Workout) (*domain.Workout, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Save", trace.WithAttributes(
		attribute.String("workout.id", submitted.ID),
	))
	defer span.End()

	var (
		saved *domain.Workout
		plan  Plan
	)
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := r.workouts.GetByID(ctx, submitted.ID)
		if err != nil {
			return err
		}
		if current.OwnerID != ownerID {
			return repository.ErrNotFound
		}
		if submitted.Version != 0 && submitted.Version != current.Version {
			return fmt.Errorf("%w: submitted version %d, current %d", ErrVersionConflict, submitted.Version, current.Version)
		}

		current.Name = submitted.Name
		current.Note = submitted.Note
		current.Version++
		if err := r.workouts.Update(ctx, current); err != nil {
			return err
		}

		persisted, err := r.exercises.GetByWorkoutID(ctx, current.ID)
		if err != nil {
			return err
		}
		plan = Diff(persisted, submitted.Exercises)
		if err := r.apply(ctx, current.ID, plan); err != nil {
			return err
		}

		exercises, err := r.exercises.GetByWorkoutID(ctx, current.ID)
		if err != nil {
			return err
		}
		current.Exercises = exercises
		saved = current
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		measureSave(ctx, Plan{}, errors.Is(err, ErrVersionConflict))
		return nil, err
	}

	measureSave(ctx, plan, false)
	r.logger.Debug("workout reconciled",
		"workout_id", saved.ID,
		"version", saved.Version,
		"writes", plan.Count(),
	)
	return saved, nil
}

// apply executes the plan. Deletes run first so positions they free are not
// contested; exercises are created before the sets that reference them.
func (r *Reconciler) apply(ctx context.Context, workoutID string, plan Plan) error {
	if err := r.exercises.DeleteMany(ctx, plan.ExerciseDeletes); err != nil {
		return fmt.Errorf("delete exercises: %w", err)
	}
	if err := r.sets.DeleteMany(ctx, plan.SetDeletes); err != nil {
		return fmt.Errorf("delete sets: %w", err)
	}
	for i := range plan.ExerciseCreates {
		e := &plan.ExerciseCreates[i]
		e.WorkoutID = workoutID
		if _, err := r.exercises.Create(ctx, e); err != nil {
			return fmt.Errorf("create exercise: %w", err)
		}
	}
	for i := range plan.ExerciseUpdates {
		if err := r.exercises.Update(ctx, &plan.ExerciseUpdates[i]); err != nil {
			return fmt.Errorf("update exercise %s: %w", plan.ExerciseUpdates[i].ID, err)
		}
	}
	for i := range plan.SetCreates {
		if _, err := r.sets.Create(ctx, &plan.SetCreates[i]); err != nil {
			return fmt.Errorf("create set: %w", err)
		}
	}
	for i := range plan.SetUpdates {
		if err := r.sets.Update(ctx, &plan.SetUpdates[i]); err != nil {
			return fmt.Errorf("update set %s: %w", plan.SetUpdates[i].ID, err)
		}
	}
	return nil
}
