package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Client struct {
	DB *mongo.Database
}

// New connects and pings. Transactions require the server to run as a replica set.
func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := m.Ping(ctx, readpref.Primary()); err != nil {
		_ = m.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on for uniqueness and paging.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		conversationsCollection: {
			{
				Keys: bsonKeys("direct_key", 1),
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"direct_key": bson.M{"$type": "string"}}),
			},
			{Keys: bsonKeys("participants", 1, "updated_at", -1)},
			{Keys: bsonKeys("kind", 1, "participants", 1)},
		},
		messagesCollection: {
			{Keys: bsonKeys("conversation_id", 1, "created_at", 1, "_id", 1)},
			{Keys: bsonKeys("conversation_id", 1, "read_at", 1)},
		},
		usersCollection: {
			{
				Keys: bsonKeys("handle", 1),
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"handle": bson.M{"$gt": ""}}),
			},
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: indexes on %s: %w", name, err)
		}
	}
	return nil
}
