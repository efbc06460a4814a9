package conversations

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"convo/internal/app/commands"
	"convo/internal/app/dto"
	"convo/internal/app/handlers/support"
	appoutbox "convo/internal/app/outbox"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

const startConversationKey = "conversations.start"

// Resolution is the conversation a set of recipients maps onto.
type Resolution struct {
	Conversation *conversation.Conversation
	Existed      bool
}

// Resolver maps a caller and a list of recipients onto exactly one conversation,
// creating it when no match exists. A single recipient always lands in the unique direct
// thread of the pair; two or more reuse a group with exactly the same membership.
type Resolver struct {
	Users   user.Directory
	Encoder appoutbox.EventEncoder
	Clock   func() time.Time
	NewID   func() string
}

func (r *Resolver) Resolve(ctx context.Context, unit uow.UnitOfWork, caller user.ID, recipients []string) (Resolution, error) {
	targets, err := support.ResolveRecipients(ctx, r.Users, caller, recipients)
	if err != nil {
		return Resolution{}, err
	}
	if len(targets) == 0 {
		return Resolution{}, conversation.ErrNoRecipients
	}
	if len(targets) == 1 {
		return r.direct(ctx, unit, caller, targets[0])
	}
	if _, err := support.RequireUsers(ctx, r.Users, targets); err != nil {
		return Resolution{}, err
	}
	return r.group(ctx, unit, caller, targets)
}

func (r *Resolver) direct(ctx context.Context, unit uow.UnitOfWork, caller, peer user.ID) (Resolution, error) {
	repo := unit.Conversations()
	key := conversation.DirectKey(caller, peer)
	existing, err := repo.ByDirectKey(ctx, key)
	if err == nil {
		return Resolution{Conversation: existing, Existed: true}, nil
	}
	if !errors.Is(err, conversation.ErrNotFound) {
		return Resolution{}, err
	}

	c, err := conversation.NewDirect(conversation.DirectParams{
		ID:        conversation.ID(r.newID()),
		Initiator: caller,
		Peer:      peer,
		Now:       r.now(),
	})
	if err != nil {
		return Resolution{}, err
	}
	if err := repo.Create(ctx, c); err != nil {
		if !errors.Is(err, conversation.ErrDirectKeyTaken) {
			return Resolution{}, err
		}
		// Lost the race. Some stores abort the transaction on the violation, in which
		// case the conflict bubbles up and the command is retried in a fresh unit.
		winner, lookupErr := repo.ByDirectKey(ctx, key)
		if lookupErr != nil {
			return Resolution{}, conversation.ErrDirectKeyTaken
		}
		return Resolution{Conversation: winner, Existed: true}, nil
	}
	if err := support.RecordEvents(ctx, unit, r.Encoder, c.Events()); err != nil {
		return Resolution{}, err
	}
	return Resolution{Conversation: c}, nil
}

func (r *Resolver) group(ctx context.Context, unit uow.UnitOfWork, caller user.ID, targets []user.ID) (Resolution, error) {
	repo := unit.Conversations()
	desired := conversation.MemberSet(append([]user.ID{caller}, targets...))
	candidates, err := repo.GroupsWithin(ctx, desired)
	if err != nil {
		return Resolution{}, err
	}
	var match *conversation.Conversation
	for _, candidate := range candidates {
		if len(candidate.Participants) != len(desired) {
			continue
		}
		if match == nil || candidate.UpdatedAt.After(match.UpdatedAt) {
			match = candidate
		}
	}
	if match != nil {
		return Resolution{Conversation: match, Existed: true}, nil
	}

	c, err := conversation.NewGroup(conversation.GroupParams{
		ID:      conversation.ID(r.newID()),
		Creator: caller,
		Members: targets,
		Now:     r.now(),
	})
	if err != nil {
		return Resolution{}, err
	}
	if err := repo.Create(ctx, c); err != nil {
		return Resolution{}, err
	}
	if err := support.RecordEvents(ctx, unit, r.Encoder, c.Events()); err != nil {
		return Resolution{}, err
	}
	return Resolution{Conversation: c}, nil
}

func (r *Resolver) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Resolver) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

// StartConversationCommand opens or reuses the conversation between the caller and the
// recipients, given as ids or handles.
type StartConversationCommand struct {
	CallerID   user.ID
	Recipients []string
}

func (c StartConversationCommand) Key() string     { return startConversationKey }
func (c StartConversationCommand) Caller() user.ID { return c.CallerID }

func (c StartConversationCommand) Validate() error {
	for _, raw := range c.Recipients {
		if trimmed(raw) != "" {
			return nil
		}
	}
	return conversation.ErrNoRecipients
}

type StartConversationHandler struct {
	UoWFactory uow.Factory
	Resolver   *Resolver
	Logger     *slog.Logger
}

func (h *StartConversationHandler) Handle(ctx context.Context, cmd StartConversationCommand) (dto.StartResult, error) {
	var result dto.StartResult
	err := support.WithUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		res, err := h.Resolver.Resolve(ctx, unit, cmd.CallerID, cmd.Recipients)
		if err != nil {
			return err
		}
		view, err := mapConversation(ctx, h.Resolver.Users, res.Conversation)
		if err != nil {
			return err
		}
		result = dto.StartResult{Conversation: view, IsGroup: res.Conversation.IsGroup(), Existed: res.Existed}
		return nil
	})
	if err != nil {
		return dto.StartResult{}, err
	}
	if h.Logger != nil && !result.Existed {
		h.Logger.Info("conversation started", "conversation_id", result.Conversation.ID, "caller_id", cmd.CallerID, "is_group", result.IsGroup)
	}
	return result, nil
}

var _ commands.Handler[StartConversationCommand, dto.StartResult] = (*StartConversationHandler)(nil)
