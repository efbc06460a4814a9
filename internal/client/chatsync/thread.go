package chatsync

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"convo/internal/app/dto"
)

const (
	DefaultThreadInterval = 3 * time.Second
	tempIDPrefix          = "tmp-"
)

// Entry is a message in the local copy of a thread. Pending entries were sent
// optimistically and carry a temporary id until the server acknowledges them.
type Entry struct {
	dto.Message
	Pending bool
}

// Thread mirrors the active conversation. Poll merges by id, so overlapping pages and
// repeated ticks never duplicate a message.
type Thread struct {
	API      API
	Self     string
	Interval time.Duration
	Logger   *slog.Logger

	mu      sync.Mutex
	target  Target
	entries []Entry
	index   map[string]struct{}
	cursor  time.Time
}

func NewThread(api API, self string, target Target) *Thread {
	return &Thread{API: api, Self: self, target: target, index: make(map[string]struct{})}
}

// Poll fetches messages newer than the cursor. The cursor only advances with polled
// messages: an acknowledged send must not skip messages committed just before it.
func (t *Thread) Poll(ctx context.Context) error {
	t.mu.Lock()
	target, cursor := t.target, t.cursor
	t.mu.Unlock()

	page, err := t.API.ListMessages(ctx, target, cursor)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if page.ConversationID != "" {
		t.target = Target{ConversationID: page.ConversationID}
	}
	for _, m := range page.Messages {
		if m.CreatedAt.After(t.cursor) {
			t.cursor = m.CreatedAt
		}
		if _, dup := t.index[m.ID]; dup {
			continue
		}
		t.index[m.ID] = struct{}{}
		t.entries = append(t.entries, Entry{Message: m})
	}
	t.sortLocked()
	return nil
}

// Run polls until ctx ends. Poll failures are logged and retried on the next tick.
func (t *Thread) Run(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultThreadInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := t.Poll(ctx); err != nil && ctx.Err() == nil && t.Logger != nil {
			t.Logger.Debug("thread poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type Outgoing struct {
	Content   string
	ImageURLs []string
	Share     *dto.Share
}

// Send inserts a pending entry, then reconciles it with the acknowledgment or removes it
// when the send fails. The temporary id doubles as the idempotency key.
func (t *Thread) Send(ctx context.Context, out Outgoing) (dto.Message, error) {
	tempID := tempIDPrefix + uuid.NewString()
	kind := "text"
	if out.Share != nil {
		kind = "share"
	}
	pending := dto.Message{
		ID:        tempID,
		SenderID:  t.Self,
		Kind:      kind,
		Content:   out.Content,
		ImageURLs: out.ImageURLs,
		Share:     out.Share,
		CreatedAt: time.Now().UTC(),
	}

	t.mu.Lock()
	target := t.target
	pending.ConversationID = target.ConversationID
	t.entries = append(t.entries, Entry{Message: pending, Pending: true})
	t.mu.Unlock()

	res, err := t.API.SendMessage(ctx, SendRequest{
		To:             target.To,
		ConversationID: target.ConversationID,
		Content:        out.Content,
		ImageURLs:      out.ImageURLs,
		Share:          out.Share,
	}, tempID)

	t.mu.Lock()
	defer t.mu.Unlock()
	pos := t.positionLocked(tempID)
	if err != nil {
		if pos >= 0 {
			t.entries = append(t.entries[:pos], t.entries[pos+1:]...)
		}
		return dto.Message{}, err
	}
	if res.ConversationID != "" {
		t.target = Target{ConversationID: res.ConversationID}
	}
	confirmed := pending
	confirmed.ID = res.ID
	confirmed.ConversationID = res.ConversationID
	confirmed.CreatedAt = res.CreatedAt
	if _, merged := t.index[res.ID]; merged {
		if pos >= 0 {
			t.entries = append(t.entries[:pos], t.entries[pos+1:]...)
		}
		return confirmed, nil
	}
	t.index[res.ID] = struct{}{}
	if pos >= 0 {
		t.entries[pos] = Entry{Message: confirmed}
	} else {
		t.entries = append(t.entries, Entry{Message: confirmed})
	}
	t.sortLocked()
	return confirmed, nil
}

// Messages returns a snapshot: confirmed entries by creation time, pending ones last.
func (t *Thread) Messages() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

func (t *Thread) ConversationID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target.ConversationID
}

func (t *Thread) positionLocked(id string) int {
	for i, e := range t.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (t *Thread) sortLocked() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		a, b := t.entries[i], t.entries[j]
		if a.Pending != b.Pending {
			return !a.Pending
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
