package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	usersCollection         = "users"
)

// Timestamps are stored as unix microseconds: BSON dates only keep milliseconds and
// message ordering depends on microsecond steps.
type conversationDocument struct {
	ID            string   `bson:"_id"`
	Kind          string   `bson:"kind"`
	Name          string   `bson:"name,omitempty"`
	DirectKey     string   `bson:"direct_key,omitempty"`
	Participants  []string `bson:"participants"`
	CreatedAt     int64    `bson:"created_at"`
	UpdatedAt     int64    `bson:"updated_at"`
	LastMessageAt int64    `bson:"last_message_at,omitempty"`
	Version       int64    `bson:"version"`
}

func newConversationDocument(c *conversation.Conversation) conversationDocument {
	participants := make([]string, len(c.Participants))
	for i, id := range c.Participants {
		participants[i] = string(id)
	}
	return conversationDocument{
		ID:            string(c.ID),
		Kind:          string(c.Kind),
		Name:          c.Name,
		DirectKey:     c.DirectKey,
		Participants:  participants,
		CreatedAt:     toMicros(c.CreatedAt),
		UpdatedAt:     toMicros(c.UpdatedAt),
		LastMessageAt: toMicros(c.LastMessageAt),
		Version:       c.Version,
	}
}

func (d conversationDocument) toAggregate() *conversation.Conversation {
	participants := make([]user.ID, len(d.Participants))
	for i, id := range d.Participants {
		participants[i] = user.ID(id)
	}
	return &conversation.Conversation{
		ID:            conversation.ID(d.ID),
		Kind:          conversation.Kind(d.Kind),
		Name:          d.Name,
		DirectKey:     d.DirectKey,
		Participants:  participants,
		CreatedAt:     fromMicros(d.CreatedAt),
		UpdatedAt:     fromMicros(d.UpdatedAt),
		LastMessageAt: fromMicros(d.LastMessageAt),
		Version:       d.Version,
	}
}

type shareDocument struct {
	Type     string `bson:"type"`
	TargetID string `bson:"target_id"`
}

type messageDocument struct {
	ID             string         `bson:"_id"`
	ConversationID string         `bson:"conversation_id"`
	SenderID       string         `bson:"sender_id"`
	Kind           string         `bson:"kind"`
	Content        string         `bson:"content"`
	ImageURLs      []string       `bson:"image_urls,omitempty"`
	Share          *shareDocument `bson:"share,omitempty"`
	CreatedAt      int64          `bson:"created_at"`
	ReadAt         *int64         `bson:"read_at"`
}

func newMessageDocument(m conversation.Message) messageDocument {
	doc := messageDocument{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		Kind:           string(m.Kind),
		Content:        m.Content,
		ImageURLs:      m.ImageURLs,
		CreatedAt:      toMicros(m.CreatedAt),
	}
	if m.Share != nil {
		doc.Share = &shareDocument{Type: string(m.Share.Type), TargetID: m.Share.TargetID}
	}
	if m.ReadAt != nil {
		at := toMicros(*m.ReadAt)
		doc.ReadAt = &at
	}
	return doc
}

func (d messageDocument) toMessage() conversation.Message {
	m := conversation.Message{
		ID:             conversation.MessageID(d.ID),
		ConversationID: conversation.ID(d.ConversationID),
		SenderID:       user.ID(d.SenderID),
		Kind:           conversation.MessageKind(d.Kind),
		Content:        d.Content,
		ImageURLs:      d.ImageURLs,
		CreatedAt:      fromMicros(d.CreatedAt),
	}
	if d.Share != nil {
		m.Share = &conversation.Share{Type: conversation.ShareType(d.Share.Type), TargetID: d.Share.TargetID}
	}
	if d.ReadAt != nil {
		at := fromMicros(*d.ReadAt)
		m.ReadAt = &at
	}
	return m
}

type userDocument struct {
	ID          string `bson:"_id"`
	Handle      string `bson:"handle,omitempty"`
	DisplayName string `bson:"display_name"`
	AvatarURL   string `bson:"avatar_url,omitempty"`
	UpdatedAt   int64  `bson:"updated_at"`
}

func newUserDocument(u user.User) userDocument {
	return userDocument{
		ID:          string(u.ID),
		Handle:      u.Handle,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		UpdatedAt:   toMicros(u.UpdatedAt),
	}
}

func (d userDocument) toUser() user.User {
	return user.User{
		ID:          user.ID(d.ID),
		Handle:      d.Handle,
		DisplayName: d.DisplayName,
		AvatarURL:   d.AvatarURL,
		UpdatedAt:   fromMicros(d.UpdatedAt),
	}
}

func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

// bsonKeys builds an ordered key document from name/direction pairs.
func bsonKeys(pairs ...any) bson.D {
	keys := make(bson.D, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		keys = append(keys, bson.E{Key: pairs[i].(string), Value: pairs[i+1]})
	}
	return keys
}
