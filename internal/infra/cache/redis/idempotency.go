package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"convo/internal/app/middleware"
)

const keyPrefix = "convo:idem:"

type Options struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// IdempotencyStore keeps send results under convo:idem:<key> and lets Redis expire them.
type IdempotencyStore struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewIdempotencyStore(client goredis.Cmdable, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

type storedRecord struct {
	Payload    []byte    `json:"payload"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	rec, err := decodeRecord(key, raw)
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+rec.Key, raw, s.ttl).Err()
}

func encodeRecord(rec middleware.IdempotencyRecord) ([]byte, error) {
	return json.Marshal(storedRecord{Payload: rec.Payload, OccurredAt: rec.OccurredAt.UTC()})
}

func decodeRecord(key string, raw []byte) (middleware.IdempotencyRecord, error) {
	var stored storedRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return middleware.IdempotencyRecord{}, fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return middleware.IdempotencyRecord{Key: key, Payload: stored.Payload, OccurredAt: stored.OccurredAt}, nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
