// Package inbox de-duplicates events consumed from the broker.
package inbox

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store remembers which events a consumer already handled.
type Store interface {
	// Seen records eventID and reports whether it had been recorded before.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Release forgets eventID so that a failed delivery can be handled again.
	Release(ctx context.Context, eventID string) error
}

type MongoStore struct {
	col      *mongo.Collection
	consumer string
}

func NewMongoStore(ctx context.Context, db *mongo.Database, consumer string) (*MongoStore, error) {
	col := db.Collection("app_inbox")
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &MongoStore{col: col, consumer: consumer}, nil
}

func (s *MongoStore) Seen(ctx context.Context, eventID string) (bool, error) {
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": time.Now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return false, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, err
}

func (s *MongoStore) Release(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"event_id": eventID, "consumer": s.consumer})
	return err
}

// PostgresStore uses the inbox_events table created with the Postgres schema.
type PostgresStore struct {
	db       *sqlx.DB
	consumer string
}

func NewPostgresStore(db *sqlx.DB, consumer string) *PostgresStore {
	return &PostgresStore{db: db, consumer: consumer}
}

func (s *PostgresStore) Seen(ctx context.Context, eventID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO inbox_events (event_id, consumer, received_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		eventID, s.consumer, time.Now().UTC())
	if err != nil {
		return false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted == 0, nil
}

func (s *PostgresStore) Release(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM inbox_events WHERE event_id = $1 AND consumer = $2`, eventID, s.consumer)
	return err
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
