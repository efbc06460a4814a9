package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	appoutbox "convo/internal/app/outbox"
	infraoutbox "convo/internal/infra/outbox"
)

// OutboxStore keeps relay records in outbox_events. Add writes through the transaction
// bound to ctx; the relay methods use their own statements.
type OutboxStore struct {
	db *sqlx.DB
}

func NewOutboxStore(db *sqlx.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = exec(ctx, conn(ctx, s.db), psql.Insert("outbox_events").
		Columns("id", "name", "payload", "occurred_at", "aggregate", "headers", "state", "next_attempt_at", "created_at").
		Values(record.ID, record.Name, record.Payload, record.OccurredAt.UTC(), record.Aggregate, string(headers),
			infraoutbox.StateNew, now, now))
	return err
}

type outboxRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Payload    []byte    `db:"payload"`
	OccurredAt time.Time `db:"occurred_at"`
	Aggregate  string    `db:"aggregate"`
	Headers    []byte    `db:"headers"`
	Attempts   int       `db:"attempts"`
}

const claimQuery = `
UPDATE outbox_events SET state = $1, claimed_by = $2, claimed_at = $3
WHERE id = (
    SELECT id FROM outbox_events
    WHERE (state IN ($4, $5) AND next_attempt_at <= $3)
       OR (state = $1 AND claimed_at <= $6)
    ORDER BY created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`

// Claim takes the oldest due record. SKIP LOCKED lets several relays poll the table.
func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Pending, error) {
	now := time.Now().UTC()
	var row outboxRow
	err := s.db.GetContext(ctx, &row, claimQuery,
		infraoutbox.StateClaimed, workerID, now, infraoutbox.StateNew, infraoutbox.StateFailed, now.Add(-infraoutbox.ClaimTimeout))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	headers := map[string]string{}
	if len(row.Headers) > 0 {
		if err := json.Unmarshal(row.Headers, &headers); err != nil {
			return nil, err
		}
	}
	return &infraoutbox.Pending{
		EventRecord: appoutbox.EventRecord{
			ID:         row.ID,
			Name:       row.Name,
			Payload:    row.Payload,
			OccurredAt: row.OccurredAt.UTC(),
			Aggregate:  row.Aggregate,
			Headers:    headers,
		},
		Attempts: row.Attempts,
	}, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := exec(ctx, s.db, psql.Update("outbox_events").
		Set("state", infraoutbox.StateSent).
		Set("sent_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}))
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := exec(ctx, s.db, psql.Update("outbox_events").
		Set("state", infraoutbox.StateFailed).
		Set("next_attempt_at", next.UTC()).
		Set("last_error", errMsg).
		Set("attempts", sq.Expr("attempts + 1")).
		Where(sq.Eq{"id": id}))
	return err
}

var (
	_ appoutbox.Outbox  = (*OutboxStore)(nil)
	_ infraoutbox.Store = (*OutboxStore)(nil)
)
