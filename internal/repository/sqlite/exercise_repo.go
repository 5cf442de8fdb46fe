package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/repository"
)

type exerciseRepository struct {
	store *Store
}

// Create inserts the exercise and its nested sets. Callers wanting both writes
// to be atomic wrap the call in WithTransaction.
func (r *exerciseRepository) Create(ctx context.Context, exercise *domain.WorkoutExercise) (string, error) {
	if exercise.WorkoutID == "" || exercise.ReferenceID == "" {
		return "", errors.New("exercise requires workoutId and referenceId")
	}
	exercise.ID = newID()
	q := r.store.conn(ctx)
	_, err := q.ExecContext(ctx,
		`INSERT INTO workout_exercises (id, workout_id, reference_id, note, sort_order) VALUES (?, ?, ?, ?, ?)`,
		exercise.ID, exercise.WorkoutID, exercise.ReferenceID, exercise.Note, exercise.Order)
	if err != nil {
		return "", err
	}
	for i := range exercise.Sets {
		exercise.Sets[i].WorkoutExerciseID = exercise.ID
		if err := insertSet(ctx, q, &exercise.Sets[i]); err != nil {
			return "", err
		}
	}
	return exercise.ID, nil
}

func (r *exerciseRepository) GetByID(ctx context.Context, id string) (*domain.WorkoutExercise, error) {
	var e domain.WorkoutExercise
	err := r.store.conn(ctx).QueryRowContext(ctx,
		`SELECT id, workout_id, reference_id, note, sort_order FROM workout_exercises WHERE id = ?`, id).
		Scan(&e.ID, &e.WorkoutID, &e.ReferenceID, &e.Note, &e.Order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *exerciseRepository) GetByWorkoutID(ctx context.Context, workoutID string) ([]domain.WorkoutExercise, error) {
	q := r.store.conn(ctx)
	exercises, err := r.listExercises(ctx, q, workoutID)
	if err != nil || len(exercises) == 0 {
		return exercises, err
	}

	index := make(map[string]int, len(exercises))
	for i := range exercises {
		index[exercises[i].ID] = i
	}
	sets, err := listSetsOfWorkout(ctx, q, workoutID)
	if err != nil {
		return nil, err
	}
	for _, s := range sets {
		i := index[s.WorkoutExerciseID]
		exercises[i].Sets = append(exercises[i].Sets, s)
	}
	return exercises, nil
}

// listExercises closes its rows before returning; with a single connection a
// second query cannot start while they are open.
func (r *exerciseRepository) listExercises(ctx context.Context, q querier, workoutID string) ([]domain.WorkoutExercise, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, workout_id, reference_id, note, sort_order FROM workout_exercises
		 WHERE workout_id = ? ORDER BY sort_order, id`, workoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exercises := []domain.WorkoutExercise{}
	for rows.Next() {
		e := domain.WorkoutExercise{Sets: []domain.ExerciseSet{}}
		if err := rows.Scan(&e.ID, &e.WorkoutID, &e.ReferenceID, &e.Note, &e.Order); err != nil {
			return nil, err
		}
		exercises = append(exercises, e)
	}
	return exercises, rows.Err()
}

func (r *exerciseRepository) Update(ctx context.Context, exercise *domain.WorkoutExercise) error {
	if exercise.ID == "" {
		return errors.New("exercise ID is required for update")
	}
	res, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE workout_exercises SET reference_id = ?, note = ?, sort_order = ? WHERE id = ?`,
		exercise.ReferenceID, exercise.Note, exercise.Order, exercise.ID)
	if err != nil {
		return err
	}
	return expectRows(res, 1)
}

// DeleteMany relies on ON DELETE CASCADE to remove the sets.
func (r *exerciseRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := r.store.conn(ctx).ExecContext(ctx,
		`DELETE FROM workout_exercises WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return err
	}
	return expectRows(res, len(ids))
}

func (r *exerciseRepository) ShiftOrders(ctx context.Context, workoutID string, from, delta int) error {
	_, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE workout_exercises SET sort_order = sort_order + ? WHERE workout_id = ? AND sort_order >= ?`,
		delta, workoutID, from)
	return err
}

func (r *exerciseRepository) SetOrders(ctx context.Context, workoutID string, orders []domain.OrderEntry) error {
	q := r.store.conn(ctx)
	for _, o := range orders {
		res, err := q.ExecContext(ctx,
			`UPDATE workout_exercises SET sort_order = ? WHERE id = ? AND workout_id = ?`, o.Order, o.ID, workoutID)
		if err != nil {
			return err
		}
		if err := expectRows(res, 1); err != nil {
			return err
		}
	}
	return nil
}
