package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/app/middleware"
)

func TestRecordEncoding_PreservesPayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	raw, err := encodeRecord(middleware.IdempotencyRecord{Key: "k", Payload: []byte(`{"id":"m-1"}`), OccurredAt: at})
	require.NoError(t, err)

	rec, err := decodeRecord("k", raw)
	require.NoError(t, err)
	assert.Equal(t, "k", rec.Key)
	assert.JSONEq(t, `{"id":"m-1"}`, string(rec.Payload))
	assert.True(t, at.Equal(rec.OccurredAt))

	_, err = decodeRecord("k", []byte("not json"))
	assert.Error(t, err)
}

func TestGet_UnreachableServerFails(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	store := NewIdempotencyStore(client, time.Hour)

	_, found, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, found)
}
