package mongostore

import (
	"context"
	"time"

	"github.com/chepyr/go-task-board/internal/db"
	"github.com/chepyr/go-task-board/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type taskDocument struct {
	ID             string            `bson:"_id"`
	Title          string            `bson:"title"`
	Description    string            `bson:"description"`
	Status         models.TaskStatus `bson:"status"`
	Priority       models.Priority   `bson:"priority"`
	AssignedTo     string            `bson:"assigned_to"`
	AssignedToName string            `bson:"assigned_to_name"`
	CreatedBy      string            `bson:"created_by"`
	CreatedAt      time.Time         `bson:"created_at"`
	UpdatedAt      time.Time         `bson:"updated_at"`
	Version        int64             `bson:"version"`
}

func toTaskDocument(t *models.Task) taskDocument {
	return taskDocument{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		Priority:       t.Priority,
		AssignedTo:     t.AssignedTo,
		AssignedToName: t.AssignedToName,
		CreatedBy:      t.CreatedBy,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		Version:        t.Version,
	}
}

func (d taskDocument) toModel() *models.Task {
	return &models.Task{
		ID:             d.ID,
		Title:          d.Title,
		Description:    d.Description,
		Status:         d.Status,
		Priority:       d.Priority,
		AssignedTo:     d.AssignedTo,
		AssignedToName: d.AssignedToName,
		CreatedBy:      d.CreatedBy,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		Version:        d.Version,
	}
}

type TaskStore struct {
	collection *mongo.Collection
}

var _ db.TaskRepositoryInterface = (*TaskStore)(nil)

func NewTaskStore(database *mongo.Database) *TaskStore {
	return &TaskStore{collection: database.Collection(tasksCollection)}
}

func (s *TaskStore) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = primitive.NewObjectID().Hex()
	}
	_, err := s.collection.InsertOne(ctx, toTaskDocument(task))
	return mapError(err, db.ErrDuplicateTitle)
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*models.Task, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindByTitle returns nil, nil when no task has this exact title.
func (s *TaskStore) FindByTitle(ctx context.Context, title string) (*models.Task, error) {
	task, err := s.findOne(ctx, bson.M{"title": title})
	if err == db.ErrNotFound {
		return nil, nil
	}
	return task, err
}

func (s *TaskStore) findOne(ctx context.Context, filter bson.M) (*models.Task, error) {
	var doc taskDocument
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapError(err, nil)
	}
	return doc.toModel(), nil
}

// UpdateIfVersion replaces the stored fields only when the stored version
// still equals expectedVersion. The match and the write are one server-side
// operation.
func (s *TaskStore) UpdateIfVersion(ctx context.Context, task *models.Task, expectedVersion int64) error {
	doc := toTaskDocument(task)
	update := bson.M{"$set": bson.M{
		"title":            doc.Title,
		"description":      doc.Description,
		"status":           doc.Status,
		"priority":         doc.Priority,
		"assigned_to":      doc.AssignedTo,
		"assigned_to_name": doc.AssignedToName,
		"updated_at":       doc.UpdatedAt,
		"version":          doc.Version,
	}}
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": task.ID, "version": expectedVersion}, update)
	if err != nil {
		return mapError(err, db.ErrDuplicateTitle)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": task.ID}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if count == 0 {
		return db.ErrNotFound
	}
	return db.ErrVersionMismatch
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

// List returns tasks newest first.
func (s *TaskStore) List(ctx context.Context, filter db.TaskFilter) ([]*models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, taskQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	tasks := make([]*models.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.toModel())
	}
	return tasks, nil
}

func taskQuery(filter db.TaskFilter) bson.M {
	query := bson.M{}
	if filter.AssignedTo != "" {
		query["assigned_to"] = filter.AssignedTo
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		query["status"] = bson.M{"$in": statuses}
	}
	return query
}
