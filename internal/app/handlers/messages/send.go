package messages

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"convo/internal/app/commands"
	"convo/internal/app/dto"
	"convo/internal/app/handlers/conversations"
	"convo/internal/app/handlers/support"
	appoutbox "convo/internal/app/outbox"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

const sendMessageKey = "messages.send"

type SharePayload struct {
	Type string
	ID   string
}

// SendMessageCommand appends a user message. IdemKey, when set, makes retries of the same
// send replay the first result.
type SendMessageCommand struct {
	CallerID user.ID
	Target
	Content   string
	ImageURLs []string
	Share     *SharePayload
	IdemKey   string
}

func (c SendMessageCommand) Key() string     { return sendMessageKey }
func (c SendMessageCommand) Caller() user.ID { return c.CallerID }

func (c SendMessageCommand) IdempotencyKey() string {
	key := strings.TrimSpace(c.IdemKey)
	if key == "" {
		return ""
	}
	return sendMessageKey + ":" + string(c.CallerID) + ":" + key
}

func (c SendMessageCommand) ResultPrototype() any {
	return &dto.SendResult{}
}

func (c SendMessageCommand) Validate() error {
	if err := c.Target.Validate(); err != nil {
		return err
	}
	_, err := c.compose("", "", time.Time{})
	return err
}

func (c SendMessageCommand) compose(id conversation.MessageID, conversationID conversation.ID, at time.Time) (conversation.Message, error) {
	var share *conversation.Share
	if c.Share != nil {
		share = &conversation.Share{Type: conversation.ShareType(c.Share.Type), TargetID: c.Share.ID}
	}
	return conversation.Compose(conversation.ComposeParams{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       c.CallerID,
		Content:        c.Content,
		ImageURLs:      c.ImageURLs,
		Share:          share,
		CreatedAt:      at,
	})
}

type SendMessageHandler struct {
	UoWFactory uow.Factory
	Resolver   *conversations.Resolver
	Encoder    appoutbox.EventEncoder
	Clock      func() time.Time
	Logger     *slog.Logger
}

func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (dto.SendResult, error) {
	var result dto.SendResult
	err := support.WithUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		c, err := resolveTarget(ctx, unit, h.Resolver, cmd.CallerID, cmd.Target)
		if err != nil {
			return err
		}
		msg, err := cmd.compose(conversation.MessageID(uuid.NewString()), c.ID, c.NextMessageTime(h.now()))
		if err != nil {
			return err
		}
		if err := unit.Messages().Append(ctx, msg); err != nil {
			return err
		}
		c.RecordMessage(msg.CreatedAt)
		if err := unit.Conversations().Save(ctx, c); err != nil {
			return err
		}
		evs := append(c.Events(), conversation.MessageSent{
			MessageID:      msg.ID,
			ConversationID: c.ID,
			SenderID:       msg.SenderID,
			Kind:           msg.Kind,
			At:             msg.CreatedAt,
		})
		if err := support.RecordEvents(ctx, unit, h.Encoder, evs); err != nil {
			return err
		}
		result = dto.SendResult{ID: string(msg.ID), ConversationID: string(c.ID), CreatedAt: msg.CreatedAt}
		return nil
	})
	if err != nil {
		return dto.SendResult{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("message sent", "message_id", result.ID, "conversation_id", result.ConversationID, "sender_id", cmd.CallerID)
	}
	return result, nil
}

func (h *SendMessageHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

var _ commands.Handler[SendMessageCommand, dto.SendResult] = (*SendMessageHandler)(nil)
