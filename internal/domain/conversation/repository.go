package conversation

import (
	"context"
	"time"

	"convo/internal/domain/user"
)

// Repository persists conversations and their membership.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Conversation, error)
	ByDirectKey(ctx context.Context, key string) (*Conversation, error)
	// Create fails with ErrDirectKeyTaken when another direct thread owns the key.
	Create(ctx context.Context, c *Conversation) error
	// Save writes name, membership and timestamps, failing with ErrConcurrentUpdate on a
	// stale version.
	Save(ctx context.Context, c *Conversation) error
	Delete(ctx context.Context, id ID) error
	// GroupsWithin lists group conversations whose members are all contained in members.
	GroupsWithin(ctx context.Context, members []user.ID) ([]*Conversation, error)
	ListForParticipant(ctx context.Context, userID user.ID, limit int) ([]*Conversation, error)
}

// Page selects a window of a conversation history. After and Before are exclusive.
// With neither set the newest Limit messages are returned. Results are always ordered
// oldest to newest.
type Page struct {
	After  time.Time
	Before time.Time
	Limit  int
}

// MessageRepository persists messages. Messages are append-only apart from ReadAt.
type MessageRepository interface {
	Append(ctx context.Context, m Message) error
	List(ctx context.Context, conversationID ID, page Page) ([]Message, error)
	// MarkRead stamps every unread message not sent by reader and returns how many changed.
	MarkRead(ctx context.Context, conversationID ID, reader user.ID, at time.Time) (int, error)
	Latest(ctx context.Context, conversationIDs []ID) (map[ID]Message, error)
	UnreadCounts(ctx context.Context, conversationIDs []ID, reader user.ID) (map[ID]int, error)
	DeleteByConversation(ctx context.Context, conversationID ID) error
}
