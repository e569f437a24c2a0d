// Package mongostore implements the record store, user directory and
// activity log on MongoDB. It honours the same contracts as internal/db,
// including the sentinel errors, so the board cannot tell them apart.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/chepyr/go-task-board/internal/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	tasksCollection      = "tasks"
	usersCollection      = "users"
	activitiesCollection = "activities"
)

// Connect opens a client and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique indexes that back the title and email
// invariants, plus the lookup indexes used by listing. It is idempotent.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{tasksCollection, mongo.IndexModel{Keys: bson.D{{Key: "title", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{tasksCollection, mongo.IndexModel{Keys: bson.D{{Key: "assigned_to", Value: 1}, {Key: "status", Value: 1}}}},
		{usersCollection, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{activitiesCollection, mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}}},
	}
	for _, idx := range indexes {
		if _, err := database.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.collection, err)
		}
	}
	return nil
}

// mapError translates driver errors into the db sentinels. duplicate is the
// sentinel for a unique index violation on this collection.
func mapError(err, duplicate error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return db.ErrNotFound
	case duplicate != nil && mongo.IsDuplicateKeyError(err):
		return duplicate
	}
	return err
}
