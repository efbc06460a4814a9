package memory

import (
	"context"
	"errors"
	"time"

	appoutbox "convo/internal/app/outbox"
	infraoutbox "convo/internal/infra/outbox"
)

type outboxEntry struct {
	record      appoutbox.EventRecord
	state       string
	attempts    int
	nextAttempt time.Time
	claimedBy   string
	lastError   string
}

type outboxWriter struct {
	unit *Unit
}

func (w outboxWriter) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := w.unit.writable(); err != nil {
		return err
	}
	w.unit.state.outbox = append(w.unit.state.outbox, &outboxEntry{
		record:      record,
		state:       infraoutbox.StateNew,
		nextAttempt: time.Now(),
	})
	return nil
}

// OutboxRelay exposes committed outbox records of a Store to the relay worker. Sent
// records are dropped from memory.
type OutboxRelay struct {
	store *Store
}

func NewOutboxRelay(store *Store) *OutboxRelay {
	return &OutboxRelay{store: store}
}

func (r *OutboxRelay) Claim(ctx context.Context, workerID string) (*infraoutbox.Pending, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now()
	for _, e := range r.store.state.outbox {
		if e.state == infraoutbox.StateClaimed || e.nextAttempt.After(now) {
			continue
		}
		e.state = infraoutbox.StateClaimed
		e.claimedBy = workerID
		return &infraoutbox.Pending{EventRecord: e.record, Attempts: e.attempts}, nil
	}
	return nil, nil
}

func (r *OutboxRelay) MarkSent(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	list := r.store.state.outbox
	for i, e := range list {
		if e.record.ID == id {
			r.store.state.outbox = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return errOutboxRecordMissing
}

func (r *OutboxRelay) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.state.outbox {
		if e.record.ID == id {
			e.state = infraoutbox.StateFailed
			e.attempts++
			e.nextAttempt = next
			e.lastError = errMsg
			return nil
		}
	}
	return errOutboxRecordMissing
}

// Pending returns the records not yet relayed, oldest first.
func (r *OutboxRelay) Pending() []appoutbox.EventRecord {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]appoutbox.EventRecord, 0, len(r.store.state.outbox))
	for _, e := range r.store.state.outbox {
		out = append(out, e.record)
	}
	return out
}

var errOutboxRecordMissing = errors.New("memory: outbox record not found")

var (
	_ appoutbox.Outbox  = outboxWriter{}
	_ infraoutbox.Store = (*OutboxRelay)(nil)
)
