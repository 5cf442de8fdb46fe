package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/repository"
)

type workoutRepository struct {
	store *Store
}

const workoutColumns = `id, owner_id, name, note, version, created_at, updated_at`

func (r *workoutRepository) Create(ctx context.Context, workout *domain.Workout) (string, error) {
	if workout.OwnerID == "" || workout.Name == "" {
		return "", errors.New("workout requires ownerId and name")
	}
	workout.ID = newID()
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now
	if workout.Version == 0 {
		workout.Version = 1
	}

	_, err := r.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO workouts (`+workoutColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		workout.ID, workout.OwnerID, workout.Name, workout.Note, workout.Version, formatTime(now), formatTime(now))
	if err != nil {
		return "", err
	}
	return workout.ID, nil
}

func (r *workoutRepository) GetByID(ctx context.Context, id string) (*domain.Workout, error) {
	row := r.store.conn(ctx).QueryRowContext(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE id = ?`, id)
	w, err := scanWorkout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

func (r *workoutRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]domain.Workout, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT `+workoutColumns+` FROM workouts WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workouts := []domain.Workout{}
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		workouts = append(workouts, *w)
	}
	return workouts, rows.Err()
}

func (r *workoutRepository) Update(ctx context.Context, workout *domain.Workout) error {
	if workout.ID == "" {
		return errors.New("workout ID is required for update")
	}
	workout.UpdatedAt = time.Now().UTC()
	res, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE workouts SET name = ?, note = ?, version = ?, updated_at = ? WHERE id = ?`,
		workout.Name, workout.Note, workout.Version, formatTime(workout.UpdatedAt), workout.ID)
	if err != nil {
		return err
	}
	return expectRows(res, 1)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkout(s scanner) (*domain.Workout, error) {
	var (
		w                domain.Workout
		created, updated string
	)
	if err := s.Scan(&w.ID, &w.OwnerID, &w.Name, &w.Note, &w.Version, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if w.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if w.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &w, nil
}
