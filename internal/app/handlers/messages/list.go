package messages

import (
	"context"
	"log/slog"
	"time"

	"convo/internal/app/commands"
	"convo/internal/app/dto"
	"convo/internal/app/handlers/conversations"
	"convo/internal/app/handlers/support"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/shared/fault"
	"convo/internal/domain/user"
)

const (
	listMessagesKey = "messages.list"
	PageSize        = 50
)

var ErrCursorConflict = fault.Invalid("messages: cursor and before cannot be combined")

// ListMessagesCommand reads one page of a thread. It is a command because viewing marks
// the messages read and a list by recipient may create the direct thread.
type ListMessagesCommand struct {
	CallerID user.ID
	Target
	After  time.Time
	Before time.Time
}

func (c ListMessagesCommand) Key() string     { return listMessagesKey }
func (c ListMessagesCommand) Caller() user.ID { return c.CallerID }

func (c ListMessagesCommand) Validate() error {
	if err := c.Target.Validate(); err != nil {
		return err
	}
	if !c.After.IsZero() && !c.Before.IsZero() {
		return ErrCursorConflict
	}
	return nil
}

type ListMessagesHandler struct {
	UoWFactory uow.Factory
	Resolver   *conversations.Resolver
	Clock      func() time.Time
	Logger     *slog.Logger
}

func (h *ListMessagesHandler) Handle(ctx context.Context, cmd ListMessagesCommand) (dto.MessagePage, error) {
	var page dto.MessagePage
	var marked int
	err := support.WithUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		c, err := resolveTarget(ctx, unit, h.Resolver, cmd.CallerID, cmd.Target)
		if err != nil {
			return err
		}
		marked, err = unit.Messages().MarkRead(ctx, c.ID, cmd.CallerID, h.now())
		if err != nil {
			return err
		}
		msgs, err := unit.Messages().List(ctx, c.ID, conversation.Page{After: cmd.After, Before: cmd.Before, Limit: PageSize})
		if err != nil {
			return err
		}
		page = dto.MapMessagePage(c.ID, msgs)
		return nil
	})
	if err != nil {
		return dto.MessagePage{}, err
	}
	if h.Logger != nil && marked > 0 {
		h.Logger.Debug("messages marked read", "conversation_id", page.ConversationID, "reader_id", cmd.CallerID, "count", marked)
	}
	return page, nil
}

func (h *ListMessagesHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC().Truncate(time.Microsecond)
	}
	return time.Now().UTC().Truncate(time.Microsecond)
}

var _ commands.Handler[ListMessagesCommand, dto.MessagePage] = (*ListMessagesHandler)(nil)
