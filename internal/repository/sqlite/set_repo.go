package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/repository"
)

type setRepository struct {
	store *Store
}

const setColumns = `id, workout_exercise_id, weight, reps, rest, rpe, kind, sort_order`

func (r *setRepository) Create(ctx context.Context, set *domain.ExerciseSet) (string, error) {
	if set.WorkoutExerciseID == "" {
		return "", errors.New("set requires workoutExerciseId")
	}
	if err := insertSet(ctx, r.store.conn(ctx), set); err != nil {
		return "", err
	}
	return set.ID, nil
}

func (r *setRepository) GetByID(ctx context.Context, id string) (*domain.ExerciseSet, error) {
	row := r.store.conn(ctx).QueryRowContext(ctx, `SELECT `+setColumns+` FROM exercise_sets WHERE id = ?`, id)
	s, err := scanSet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *setRepository) Update(ctx context.Context, set *domain.ExerciseSet) error {
	if set.ID == "" {
		return errors.New("set ID is required for update")
	}
	res, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE exercise_sets SET weight = ?, reps = ?, rest = ?, rpe = ?, kind = ?, sort_order = ?
		 WHERE id = ? AND workout_exercise_id = ?`,
		set.Weight, set.Reps, set.Rest, set.RPE, string(set.Kind), set.Order, set.ID, set.WorkoutExerciseID)
	if err != nil {
		return err
	}
	return expectRows(res, 1)
}

func (r *setRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := r.store.conn(ctx).ExecContext(ctx,
		`DELETE FROM exercise_sets WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return err
	}
	return expectRows(res, len(ids))
}

func (r *setRepository) ShiftOrders(ctx context.Context, exerciseID string, from, delta int) error {
	_, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE exercise_sets SET sort_order = sort_order + ? WHERE workout_exercise_id = ? AND sort_order >= ?`,
		delta, exerciseID, from)
	return err
}

func insertSet(ctx context.Context, q querier, set *domain.ExerciseSet) error {
	set.ID = newID()
	if set.Kind == "" {
		set.Kind = domain.SetKindNormal
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO exercise_sets (`+setColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		set.ID, set.WorkoutExerciseID, set.Weight, set.Reps, set.Rest, set.RPE, string(set.Kind), set.Order)
	return err
}

// listSetsOfWorkout returns every set under the workout, ordered within each exercise.
func listSetsOfWorkout(ctx context.Context, q querier, workoutID string) ([]domain.ExerciseSet, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT s.id, s.workout_exercise_id, s.weight, s.reps, s.rest, s.rpe, s.kind, s.sort_order
		 FROM exercise_sets s JOIN workout_exercises e ON e.id = s.workout_exercise_id
		 WHERE e.workout_id = ? ORDER BY s.workout_exercise_id, s.sort_order, s.id`, workoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []domain.ExerciseSet
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *s)
	}
	return sets, rows.Err()
}

func scanSet(sc scanner) (*domain.ExerciseSet, error) {
	var (
		s    domain.ExerciseSet
		kind string
	)
	if err := sc.Scan(&s.ID, &s.WorkoutExerciseID, &s.Weight, &s.Reps, &s.Rest, &s.RPE, &kind, &s.Order); err != nil {
		return nil, err
	}
	s.Kind = domain.SetKind(kind)
	return &s, nil
}
