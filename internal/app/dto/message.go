package dto

import (
	"time"

	"convo/internal/domain/conversation"
)

// Message is the wire shape of a thread entry. System notices carry System=true and are
// rendered as captions without a sender bubble.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Kind           string     `json:"kind"`
	System         bool       `json:"system"`
	Content        string     `json:"content"`
	ImageURLs      []string   `json:"imageUrls,omitempty"`
	Share          *Share     `json:"share,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ReadAt         *time.Time `json:"readAt"`
}

type Share struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// MessagePage is one window of history, oldest first. NextCursor is the timestamp of
// the newest returned message and is empty for an empty page.
type MessagePage struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
	NextCursor     string    `json:"nextCursor,omitempty"`
}

type SendResult struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Upload struct {
	URL string `json:"url"`
}

// CursorLayout is the wire format of message cursors.
const CursorLayout = time.RFC3339Nano

func FormatCursor(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(CursorLayout)
}

func ParseCursor(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(CursorLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func MapMessage(m conversation.Message) Message {
	out := Message{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		Kind:           string(m.Kind),
		System:         m.IsSystem(),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
	if len(m.ImageURLs) > 0 {
		out.ImageURLs = append([]string(nil), m.ImageURLs...)
	}
	if m.Share != nil {
		out.Share = &Share{Type: string(m.Share.Type), ID: m.Share.TargetID}
	}
	if m.ReadAt != nil {
		at := *m.ReadAt
		out.ReadAt = &at
	}
	return out
}

func MapMessagePage(conversationID conversation.ID, msgs []conversation.Message) MessagePage {
	page := MessagePage{ConversationID: string(conversationID), Messages: make([]Message, 0, len(msgs))}
	for _, m := range msgs {
		page.Messages = append(page.Messages, MapMessage(m))
	}
	if n := len(msgs); n > 0 {
		page.NextCursor = FormatCursor(msgs[n-1].CreatedAt)
	}
	return page
}
