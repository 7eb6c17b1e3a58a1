package repositories

import (
	"context"
	"errors"
	"time"

	"task-manager/apperrors"
	"task-manager/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewID returns a fresh opaque identifier shared by every store backend.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

func unavailable(op string, err error) error {
	return apperrors.Wrap(apperrors.KindUnavailable, err, op)
}

type MongoTaskRepository struct {
	collection *mongo.Collection
}

func NewMongoTaskRepository(db *mongo.Database) *MongoTaskRepository {
	return &MongoTaskRepository{collection: db.Collection("tasks")}
}

func (r *MongoTaskRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return unavailable("failed to create task indexes", err)
	}
	return nil
}

func taskFilterDoc(f TaskFilter) bson.M {
	doc := bson.M{}
	if f.AssigneeID != "" {
		doc["assignedTo"] = f.AssigneeID
	}
	status := bson.M{}
	if f.Status != "" {
		status["$eq"] = string(f.Status)
	}
	if f.ExcludeStatus != "" {
		status["$ne"] = string(f.ExcludeStatus)
	}
	if len(status) > 0 {
		doc["status"] = status
	}
	if f.Priority != "" {
		doc["priority"] = string(f.Priority)
	}
	if f.DueBefore != nil {
		doc["dueDate"] = bson.M{"$lt": *f.DueBefore}
	}
	return doc
}

func (r *MongoTaskRepository) Insert(ctx context.Context, task *models.Task) error {
	if _, err := r.collection.InsertOne(ctx, task); err != nil {
		return unavailable("failed to create task", err)
	}
	return nil
}

func (r *MongoTaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("task %s not found", id)
	}
	if err != nil {
		return nil, unavailable("failed to load task", err)
	}
	return &task, nil
}

func (r *MongoTaskRepository) Find(ctx context.Context, filter TaskFilter, opts FindOptions) ([]models.Task, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := r.collection.Find(ctx, taskFilterDoc(filter), findOpts)
	if err != nil {
		return nil, unavailable("failed to retrieve tasks", err)
	}
	defer cursor.Close(ctx)

	tasks := []models.Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, unavailable("failed to decode tasks", err)
	}
	return tasks, nil
}

func (r *MongoTaskRepository) Count(ctx context.Context, filter TaskFilter) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, taskFilterDoc(filter))
	if err != nil {
		return 0, unavailable("failed to count tasks", err)
	}
	return n, nil
}

func (r *MongoTaskRepository) Update(ctx context.Context, task *models.Task, expectedVersion int64) error {
	filter := bson.M{"_id": task.ID}
	if expectedVersion != AnyVersion {
		filter["version"] = expectedVersion
	}
	update := bson.M{
		"$set": bson.M{
			"title":         task.Title,
			"description":   task.Description,
			"priority":      task.Priority,
			"status":        task.Status,
			"dueDate":       task.DueDate,
			"assignedTo":    task.AssignedTo,
			"todoChecklist": task.Checklist,
			"progress":      task.Progress,
			"attachments":   task.Attachments,
			"updatedAt":     task.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	var updated models.Task
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r.missOnUpdate(ctx, task.ID, expectedVersion)
	}
	if err != nil {
		return unavailable("failed to update task", err)
	}
	*task = updated
	return nil
}

// missOnUpdate tells a missing task apart from a version mismatch.
func (r *MongoTaskRepository) missOnUpdate(ctx context.Context, id string, expectedVersion int64) error {
	if expectedVersion == AnyVersion {
		return apperrors.NotFound("task %s not found", id)
	}
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.Newf(apperrors.KindStaleWrite,
		"task %s was modified concurrently (expected version %d, current %d)", id, expectedVersion, current.Version)
}

func (r *MongoTaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return unavailable("failed to delete task", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.NotFound("task %s not found", id)
	}
	return nil
}

func (r *MongoTaskRepository) CountReferences(ctx context.Context, userID string) (int64, error) {
	filter := bson.M{"$or": []bson.M{{"createdBy": userID}, {"assignedTo": userID}}}
	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, unavailable("failed to count task references", err)
	}
	return n, nil
}

func (r *MongoTaskRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.collection.Database().Client().Ping(ctx, nil); err != nil {
		return unavailable("mongo ping failed", err)
	}
	return nil
}
