package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: "conversations_direct_key_key"}
	assert.True(t, isUniqueViolation(dup))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", dup)))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestLockable_OnlyInWriteUnits(t *testing.T) {
	ctx := context.Background()
	assert.False(t, lockable(ctx))
	assert.False(t, lockable(context.WithValue(ctx, txKey{}, boundTx{readOnly: true})))
	assert.True(t, lockable(context.WithValue(ctx, txKey{}, boundTx{})))
}

func TestByID_LocksRowInWriteUnit(t *testing.T) {
	q := psql.Select(conversationColumns...).From("conversations").Where(sq.Eq{"id": "c-1"}).Suffix("FOR UPDATE")
	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, kind, name, direct_key, created_at, updated_at, last_message_at, version FROM conversations WHERE id = $1 FOR UPDATE", sql)
	assert.Equal(t, []any{"c-1"}, args)
}

func TestNullTime(t *testing.T) {
	assert.False(t, nullTime(time.Time{}).Valid)
	at := time.Date(2026, 3, 1, 10, 0, 0, 1000, time.FixedZone("x", 3600))
	nt := nullTime(at)
	require.True(t, nt.Valid)
	assert.Equal(t, time.UTC, nt.Time.Location())
	assert.True(t, at.Equal(fromNullTime(nt)))
}

func TestSchemaDeclaresCascades(t *testing.T) {
	assert.Contains(t, schema, "REFERENCES conversations (id) ON DELETE CASCADE")
	assert.Contains(t, schema, "direct_key      TEXT UNIQUE")
	assert.Contains(t, schema, "PRIMARY KEY (conversation_id, user_id)")
}
