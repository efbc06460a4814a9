package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	appoutbox "convo/internal/app/outbox"
)

// Producer publishes one relayed event to a broker.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Pending is a claimed outbox record.
type Pending struct {
	appoutbox.EventRecord
	Attempts int
}

// Store is the relay side of an outbox.
type Store interface {
	// Claim returns the next due record, or nil when none is due.
	Claim(ctx context.Context, workerID string) (*Pending, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// Worker relays committed outbox records as CloudEvents. It polls on Interval and also
// wakes up when Flush is called after a command committed.
type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger

	nudge chan struct{}
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

func NewWorker(store Store, producer Producer) *Worker {
	return &Worker{Store: store, Producer: producer, nudge: make(chan struct{}, 1)}
}

// Flush asks the running worker to drain now. It never blocks.
func (w *Worker) Flush(context.Context) error {
	if w.nudge == nil {
		return nil
	}
	select {
	case w.nudge <- struct{}{}:
	default:
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.nudge == nil {
		w.nudge = make(chan struct{}, 1)
	}
	id := w.workerID()
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.nudge:
		}
		if err := w.Drain(ctx, id); err != nil {
			return err
		}
	}
}

// Drain relays due records until none is left or the batch size is reached.
func (w *Worker) Drain(ctx context.Context, workerID string) error {
	for i := 0; i < w.batchSize(); i++ {
		processed, err := w.processOnce(ctx, workerID)
		if err != nil || !processed {
			return err
		}
	}
	return nil
}

func (w *Worker) processOnce(ctx context.Context, workerID string) (bool, error) {
	rec, err := w.Store.Claim(ctx, workerID)
	if err != nil || rec == nil {
		return false, err
	}
	topic := w.topicFor(rec.Name)
	payload, headers, err := w.formatPayload(rec)
	if err == nil {
		err = w.Producer.Publish(ctx, topic, rec.Aggregate, payload, headers)
	}
	if err != nil {
		if w.Logger != nil {
			w.Logger.Warn("outbox publish failed", "event_id", rec.ID, "event", rec.Name, "attempts", rec.Attempts, "error", err)
		}
		if markErr := w.Store.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), err.Error()); markErr != nil {
			return false, markErr
		}
		return true, nil
	}
	return true, w.Store.MarkSent(ctx, rec.ID)
}

func (w *Worker) formatPayload(rec *Pending) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.Name + ".v1",
		"source":          w.source(),
		"subject":         rec.Aggregate,
		"time":            rec.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := rec.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps "message.sent" onto "<prefix>message.events.v1".
func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return w.TopicPrefix + base + ".events.v1"
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return uuid.NewString()
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 100
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://convo"
}

var _ appoutbox.Relay = (*Worker)(nil)
