package messages

import (
	"context"
	"strings"

	"convo/internal/app/handlers/conversations"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/shared/fault"
	"convo/internal/domain/user"
)

var (
	ErrTargetRequired  = fault.Invalid("messages: either to or conversationId is required")
	ErrAmbiguousTarget = fault.Invalid("messages: to and conversationId are mutually exclusive")
	ErrSingleRecipient = fault.Invalid("messages: to accepts a single recipient")
)

// Target names the conversation of a list or send: a recipient whose direct thread is
// resolved or created, or an existing conversation id.
type Target struct {
	To             string
	ConversationID conversation.ID
}

func (t Target) Validate() error {
	to := strings.TrimSpace(t.To)
	id := strings.TrimSpace(string(t.ConversationID))
	switch {
	case to == "" && id == "":
		return ErrTargetRequired
	case to != "" && id != "":
		return ErrAmbiguousTarget
	case strings.Contains(to, ","):
		return ErrSingleRecipient
	}
	return nil
}

func resolveTarget(ctx context.Context, unit uow.UnitOfWork, resolver *conversations.Resolver, caller user.ID, t Target) (*conversation.Conversation, error) {
	if to := strings.TrimSpace(t.To); to != "" {
		res, err := resolver.Resolve(ctx, unit, caller, []string{to})
		if err != nil {
			return nil, err
		}
		return res.Conversation, nil
	}
	c, err := unit.Conversations().ByID(ctx, conversation.ID(strings.TrimSpace(string(t.ConversationID))))
	if err != nil {
		return nil, err
	}
	if err := c.Authorize(caller); err != nil {
		return nil, err
	}
	return c, nil
}
