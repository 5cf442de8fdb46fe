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

const exerciseCollectionName = "workout_exercises"

// mongoExerciseRepository implements repository.ExerciseRepository.
// Sets live in their own collection; the repository reads and cascades to it.
type mongoExerciseRepository struct {
	collection *mongo.Collection
	sets       *mongo.Collection
}

// NewMongoExerciseRepository creates a new WorkoutExercise repository backed by MongoDB.
func NewMongoExerciseRepository(db *mongo.Database) repository.ExerciseRepository {
	return &mongoExerciseRepository{
		collection: db.Collection(exerciseCollectionName),
		sets:       db.Collection(setCollectionName),
	}
}

// Create inserts the exercise and its nested sets.
func (r *mongoExerciseRepository) Create(ctx context.Context, exercise *domain.WorkoutExercise) (string, error) {
	if exercise.WorkoutID == "" || exercise.ReferenceID == "" {
		return "", errors.New("exercise requires workoutId and referenceId")
	}

	exercise.ID = newID()
	if _, err := r.collection.InsertOne(ctx, exercise); err != nil {
		return "", err
	}

	if len(exercise.Sets) == 0 {
		return exercise.ID, nil
	}
	docs := make([]interface{}, len(exercise.Sets))
	for i := range exercise.Sets {
		exercise.Sets[i].ID = newID()
		exercise.Sets[i].WorkoutExerciseID = exercise.ID
		docs[i] = exercise.Sets[i]
	}
	if _, err := r.sets.InsertMany(ctx, docs); err != nil {
		return "", err
	}
	return exercise.ID, nil
}

// GetByID retrieves an exercise without its sets.
func (r *mongoExerciseRepository) GetByID(ctx context.Context, id string) (*domain.WorkoutExercise, error) {
	var exercise domain.WorkoutExercise
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&exercise)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &exercise, nil
}

// GetByWorkoutID loads the ordered exercises of a workout together with their ordered sets.
func (r *mongoExerciseRepository) GetByWorkoutID(ctx context.Context, workoutID string) ([]domain.WorkoutExercise, error) {
	exercises := []domain.WorkoutExercise{}
	byOrder := options.Find().SetSort(bson.D{{Key: "order", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"workoutId": workoutID}, byOrder)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	if err = cursor.All(ctx, &exercises); err != nil {
		return nil, err
	}
	if len(exercises) == 0 {
		return exercises, nil
	}

	ids := make([]string, len(exercises))
	index := make(map[string]int, len(exercises))
	for i := range exercises {
		ids[i] = exercises[i].ID
		index[exercises[i].ID] = i
		exercises[i].Sets = []domain.ExerciseSet{}
	}

	var sets []domain.ExerciseSet
	setCursor, err := r.sets.Find(ctx, bson.M{"workoutExerciseId": bson.M{"$in": ids}}, byOrder)
	if err != nil {
		return nil, err
	}
	defer setCursor.Close(ctx)
	if err = setCursor.All(ctx, &sets); err != nil {
		return nil, err
	}
	for _, s := range sets {
		i := index[s.WorkoutExerciseID]
		exercises[i].Sets = append(exercises[i].Sets, s)
	}
	return exercises, nil
}

// Update overwrites the editable fields of an exercise.
func (r *mongoExerciseRepository) Update(ctx context.Context, exercise *domain.WorkoutExercise) error {
	if exercise.ID == "" {
		return errors.New("exercise ID is required for update")
	}
	updateDoc := bson.M{
		"$set": bson.M{
			"referenceId": exercise.ReferenceID,
			"note":        exercise.Note,
			"order":       exercise.Order,
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": exercise.ID}, updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteMany removes the exercises and every set under them.
func (r *mongoExerciseRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.sets.DeleteMany(ctx, bson.M{"workoutExerciseId": bson.M{"$in": ids}}); err != nil {
		return err
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

// ShiftOrders moves every exercise at or after from by delta positions.
func (r *mongoExerciseRepository) ShiftOrders(ctx context.Context, workoutID string, from, delta int) error {
	filter := bson.M{"workoutId": workoutID, "order": bson.M{"$gte": from}}
	_, err := r.collection.UpdateMany(ctx, filter, bson.M{"$inc": bson.M{"order": delta}})
	return err
}

// SetOrders writes explicit orders in one bulk write.
func (r *mongoExerciseRepository) SetOrders(ctx context.Context, workoutID string, orders []domain.OrderEntry) error {
	if len(orders) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(orders))
	for i, o := range orders {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": o.ID, "workoutId": workoutID}).
			SetUpdate(bson.M{"$set": bson.M{"order": o.Order}})
	}
	result, err := r.collection.BulkWrite(ctx, models)
	if err != nil {
		return err
	}
	if result.MatchedCount != int64(len(orders)) {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureExerciseIndexes creates necessary indexes for the workout_exercises collection.
func EnsureExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Loading a workout's exercises in order
			Keys:    bson.D{{Key: "workoutId", Value: 1}, {Key: "order", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
