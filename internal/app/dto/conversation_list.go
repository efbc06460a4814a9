package dto

import (
	"sort"
	"time"
)

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ID          string        `json:"id"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	IsGroup     bool          `json:"isGroup"`
	Name        string        `json:"name,omitempty"`
	DisplayName string        `json:"displayName"`
	Members     []Participant `json:"members"`
	// CounterpartID is the other member of a direct thread.
	CounterpartID string       `json:"counterpartId,omitempty"`
	LastMessage   *LastMessage `json:"lastMessage,omitempty"`
	UnreadCount   int          `json:"unreadCount"`
}

type LastMessage struct {
	Content       string    `json:"content"`
	Kind          string    `json:"kind"`
	HasAttachment bool      `json:"hasAttachment"`
	SenderIsMe    bool      `json:"senderIsMe"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ConversationList struct {
	Items []ConversationSummary `json:"items"`
}

// Activity is the recency key: the last message time, else UpdatedAt.
func (s ConversationSummary) Activity() time.Time {
	if s.LastMessage != nil && !s.LastMessage.CreatedAt.IsZero() {
		return s.LastMessage.CreatedAt
	}
	return s.UpdatedAt
}

// CollapseDirectThreads keeps only the most recent direct row per counterpart and returns
// the rows ordered by activity, newest first. Both the server projection and the polling
// client apply it, the latter because it may hold an optimistic row for a new thread.
func CollapseDirectThreads(items []ConversationSummary) []ConversationSummary {
	sorted := append([]ConversationSummary(nil), items...)
	SortByActivity(sorted)
	seen := make(map[string]struct{}, len(sorted))
	out := sorted[:0]
	for _, item := range sorted {
		if !item.IsGroup && item.CounterpartID != "" {
			if _, dup := seen[item.CounterpartID]; dup {
				continue
			}
			seen[item.CounterpartID] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}

func SortByActivity(items []ConversationSummary) {
	sort.SliceStable(items, func(i, j int) bool {
		ai, aj := items[i].Activity(), items[j].Activity()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return items[i].ID > items[j].ID
	})
}
