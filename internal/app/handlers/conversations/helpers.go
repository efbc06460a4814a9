package conversations

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"convo/internal/app/dto"
	"convo/internal/app/handlers/support"
	appoutbox "convo/internal/app/outbox"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// loadForMember returns the conversation when caller belongs to it.
func loadForMember(ctx context.Context, unit uow.UnitOfWork, id conversation.ID, caller user.ID) (*conversation.Conversation, error) {
	c, err := unit.Conversations().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Authorize(caller); err != nil {
		return nil, err
	}
	return c, nil
}

func mapConversation(ctx context.Context, dir user.Directory, c *conversation.Conversation) (dto.Conversation, error) {
	known, err := dir.ByIDs(ctx, c.Participants)
	if err != nil {
		return dto.Conversation{}, err
	}
	return dto.MapConversation(c, known), nil
}

func label(known map[user.ID]user.User, id user.ID) string {
	if u, ok := known[id]; ok {
		return u.Label()
	}
	return string(id)
}

// mutation carries what every membership or naming change writes in one unit.
type mutation struct {
	unit    uow.UnitOfWork
	encoder appoutbox.EventEncoder
	now     time.Time
}

// appendNotice writes a system message and bumps the conversation recency.
func (m mutation) appendNotice(ctx context.Context, c *conversation.Conversation, actor user.ID, text string) error {
	at := c.NextMessageTime(m.now)
	msg := conversation.SystemMessage(conversation.MessageID(uuid.NewString()), c.ID, actor, text, at)
	if err := m.unit.Messages().Append(ctx, msg); err != nil {
		return err
	}
	c.RecordMessage(msg.CreatedAt)
	return nil
}

func (m mutation) save(ctx context.Context, c *conversation.Conversation) error {
	if err := m.unit.Conversations().Save(ctx, c); err != nil {
		return err
	}
	return support.RecordEvents(ctx, m.unit, m.encoder, c.Events())
}

// teardown deletes the messages, the membership and the conversation itself.
func (m mutation) teardown(ctx context.Context, c *conversation.Conversation, actor user.ID) error {
	if err := m.unit.Messages().DeleteByConversation(ctx, c.ID); err != nil {
		return err
	}
	if err := m.unit.Conversations().Delete(ctx, c.ID); err != nil {
		return err
	}
	c.MarkDeleted(actor, m.now)
	return support.RecordEvents(ctx, m.unit, m.encoder, c.Events())
}
