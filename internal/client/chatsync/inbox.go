package chatsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"convo/internal/app/dto"
)

const DefaultListInterval = 15 * time.Second

// Inbox mirrors the conversation list. Each poll replaces the server rows wholesale;
// optimistic rows survive until the server reports the same thread.
type Inbox struct {
	API      API
	Interval time.Duration
	Logger   *slog.Logger

	mu         sync.Mutex
	server     []dto.ConversationSummary
	optimistic map[string]dto.ConversationSummary
	items      []dto.ConversationSummary
}

func NewInbox(api API) *Inbox {
	return &Inbox{API: api, optimistic: make(map[string]dto.ConversationSummary)}
}

func (in *Inbox) Poll(ctx context.Context) error {
	list, err := in.API.ListConversations(ctx)
	if err != nil {
		return err
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.server = append([]dto.ConversationSummary(nil), list.Items...)
	ids := make(map[string]struct{}, len(in.server))
	counterparts := make(map[string]struct{}, len(in.server))
	for _, row := range in.server {
		ids[row.ID] = struct{}{}
		if !row.IsGroup && row.CounterpartID != "" {
			counterparts[row.CounterpartID] = struct{}{}
		}
	}
	for id, row := range in.optimistic {
		_, known := ids[id]
		_, replaced := counterparts[row.CounterpartID]
		if known || (!row.IsGroup && replaced) {
			delete(in.optimistic, id)
		}
	}
	in.rebuildLocked()
	return nil
}

// Upsert inserts a local row ahead of the server, e.g. a direct thread just started.
func (in *Inbox) Upsert(row dto.ConversationSummary) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.optimistic == nil {
		in.optimistic = make(map[string]dto.ConversationSummary)
	}
	in.optimistic[row.ID] = row
	in.rebuildLocked()
}

func (in *Inbox) Items() []dto.ConversationSummary {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]dto.ConversationSummary(nil), in.items...)
}

func (in *Inbox) Run(ctx context.Context) error {
	interval := in.Interval
	if interval <= 0 {
		interval = DefaultListInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := in.Poll(ctx); err != nil && ctx.Err() == nil && in.Logger != nil {
			in.Logger.Debug("conversation list poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (in *Inbox) rebuildLocked() {
	merged := make([]dto.ConversationSummary, 0, len(in.server)+len(in.optimistic))
	for _, row := range in.server {
		if _, shadowed := in.optimistic[row.ID]; !shadowed {
			merged = append(merged, row)
		}
	}
	for _, row := range in.optimistic {
		merged = append(merged, row)
	}
	in.items = dto.CollapseDirectThreads(merged)
}
