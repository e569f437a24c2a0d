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

type activityDocument struct {
	ID         string                `bson:"_id"`
	Action     models.ActivityAction `bson:"action"`
	TaskID     string                `bson:"task_id"`
	TaskTitle  string                `bson:"task_title"`
	UserID     string                `bson:"user_id"`
	UserName   string                `bson:"user_name"`
	Details    string                `bson:"details"`
	Resolution string                `bson:"resolution,omitempty"`
	CreatedAt  time.Time             `bson:"created_at"`
}

type ActivityStore struct {
	collection *mongo.Collection
}

var _ db.ActivityRepositoryInterface = (*ActivityStore)(nil)

func NewActivityStore(database *mongo.Database) *ActivityStore {
	return &ActivityStore{collection: database.Collection(activitiesCollection)}
}

func (s *ActivityStore) Insert(ctx context.Context, a *models.Activity) error {
	if a.ID == "" {
		a.ID = primitive.NewObjectID().Hex()
	}
	_, err := s.collection.InsertOne(ctx, activityDocument{
		ID:         a.ID,
		Action:     a.Action,
		TaskID:     a.TaskID,
		TaskTitle:  a.TaskTitle,
		UserID:     a.UserID,
		UserName:   a.UserName,
		Details:    a.Details,
		Resolution: a.Resolution,
		CreatedAt:  a.Timestamp,
	})
	return err
}

func (s *ActivityStore) ListRecent(ctx context.Context, limit int) ([]*models.Activity, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []activityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	activities := make([]*models.Activity, 0, len(docs))
	for _, d := range docs {
		activities = append(activities, &models.Activity{
			ID:         d.ID,
			Action:     d.Action,
			TaskID:     d.TaskID,
			TaskTitle:  d.TaskTitle,
			UserID:     d.UserID,
			UserName:   d.UserName,
			Details:    d.Details,
			Resolution: d.Resolution,
			Timestamp:  d.CreatedAt,
		})
	}
	return activities, nil
}
