package mongo

import (
	"alcyxob/workout-sync/internal/domain"
	"alcyxob/workout-sync/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const setCollectionName = "exercise_sets"

// mongoSetRepository implements repository.SetRepository
type mongoSetRepository struct {
	collection *mongo.Collection
}

// NewMongoSetRepository creates a new ExerciseSet repository backed by MongoDB.
func NewMongoSetRepository(db *mongo.Database) repository.SetRepository {
	return &mongoSetRepository{
		collection: db.Collection(setCollectionName),
	}
}

func (r *mongoSetRepository) Create(ctx context.Context, set *domain.ExerciseSet) (string, error) {
	if set.WorkoutExerciseID == "" {
		return "", errors.New("set requires workoutExerciseId")
	}
	set.ID = newID()
	if _, err := r.collection.InsertOne(ctx, set); err != nil {
		return "", err
	}
	return set.ID, nil
}

func (r *mongoSetRepository) GetByID(ctx context.Context, id string) (*domain.ExerciseSet, error) {
	var set domain.ExerciseSet
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&set)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &set, nil
}

// Update replaces the set document; the parent exercise cannot change.
func (r *mongoSetRepository) Update(ctx context.Context, set *domain.ExerciseSet) error {
	if set.ID == "" {
		return errors.New("set ID is required for update")
	}
	filter := bson.M{"_id": set.ID, "workoutExerciseId": set.WorkoutExerciseID}
	result, err := r.collection.ReplaceOne(ctx, filter, set)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoSetRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	result, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return err
	}
	if result.DeletedCount != int64(len(ids)) {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoSetRepository) ShiftOrders(ctx context.Context, exerciseID string, from, delta int) error {
	filter := bson.M{"workoutExerciseId": exerciseID, "order": bson.M{"$gte": from}}
	_, err := r.collection.UpdateMany(ctx, filter, bson.M{"$inc": bson.M{"order": delta}})
	return err
}

// EnsureSetIndexes creates necessary indexes for the exercise_sets collection.
func EnsureSetIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workoutExerciseId", Value: 1}, {Key: "order", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
