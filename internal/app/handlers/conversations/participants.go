package conversations

import (
	"context"
	"log/slog"
	"time"

	"convo/internal/app/dto"
	"convo/internal/app/handlers/support"
	appoutbox "convo/internal/app/outbox"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/shared/fault"
	"convo/internal/domain/user"
)

const (
	addParticipantsKey    = "conversations.participants.add"
	removeParticipantKey  = "conversations.participants.remove"
	leaveConversationKey  = "conversations.leave"
	renameConversationKey = "conversations.rename"
)

var (
	ErrConversationRequired = fault.Invalid("conversations: conversation id is required")
	ErrUserRequired         = fault.Invalid("conversations: user is required")
)

type AddParticipantsCommand struct {
	CallerID       user.ID
	ConversationID conversation.ID
	Users          []string
}

func (c AddParticipantsCommand) Key() string     { return addParticipantsKey }
func (c AddParticipantsCommand) Caller() user.ID { return c.CallerID }

func (c AddParticipantsCommand) Validate() error {
	if trimmed(string(c.ConversationID)) == "" {
		return ErrConversationRequired
	}
	for _, raw := range c.Users {
		if trimmed(raw) != "" {
			return nil
		}
	}
	return conversation.ErrNothingToAdd
}

type RemoveParticipantCommand struct {
	CallerID       user.ID
	ConversationID conversation.ID
	User           string
}

func (c RemoveParticipantCommand) Key() string     { return removeParticipantKey }
func (c RemoveParticipantCommand) Caller() user.ID { return c.CallerID }

func (c RemoveParticipantCommand) Validate() error {
	if trimmed(string(c.ConversationID)) == "" {
		return ErrConversationRequired
	}
	if trimmed(c.User) == "" {
		return ErrUserRequired
	}
	return nil
}

type LeaveConversationCommand struct {
	CallerID       user.ID
	ConversationID conversation.ID
}

func (c LeaveConversationCommand) Key() string     { return leaveConversationKey }
func (c LeaveConversationCommand) Caller() user.ID { return c.CallerID }

func (c LeaveConversationCommand) Validate() error {
	if trimmed(string(c.ConversationID)) == "" {
		return ErrConversationRequired
	}
	return nil
}

// ParticipantManager changes membership and naming. Each operation writes the change, its
// system notice and the recency bump, or the whole teardown, in a single unit.
type ParticipantManager struct {
	UoWFactory uow.Factory
	Users      user.Directory
	Encoder    appoutbox.EventEncoder
	Clock      func() time.Time
	Logger     *slog.Logger
}

func (m *ParticipantManager) Add(ctx context.Context, cmd AddParticipantsCommand) (dto.MembershipResult, error) {
	var result dto.MembershipResult
	var added []user.ID
	err := support.WithUnit(ctx, m.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		c, err := loadForMember(ctx, unit, cmd.ConversationID, cmd.CallerID)
		if err != nil {
			return err
		}
		if !c.IsGroup() {
			return conversation.ErrAddToDirect
		}
		candidates, err := support.ResolveIdentifiers(ctx, m.Users, cmd.CallerID, cmd.Users)
		if err != nil {
			return err
		}
		fresh := make([]user.ID, 0, len(candidates))
		for _, id := range candidates {
			if !c.HasParticipant(id) {
				fresh = append(fresh, id)
			}
		}
		if len(fresh) == 0 {
			return conversation.ErrNothingToAdd
		}
		if _, err := support.RequireUsers(ctx, m.Users, fresh); err != nil {
			return err
		}
		known, err := m.Users.ByIDs(ctx, append([]user.ID{cmd.CallerID}, fresh...))
		if err != nil {
			return err
		}

		tx := m.mutation(unit)
		added, err = c.AddParticipants(cmd.CallerID, fresh, tx.now)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(added))
		for _, id := range added {
			names = append(names, label(known, id))
		}
		notice := conversation.AddedNotice(label(known, cmd.CallerID), names)
		if err := tx.appendNotice(ctx, c, cmd.CallerID, notice); err != nil {
			return err
		}
		if err := tx.save(ctx, c); err != nil {
			return err
		}
		result, err = m.result(ctx, c, true)
		return err
	})
	if err != nil {
		return dto.MembershipResult{}, err
	}
	m.log("participants added", "conversation_id", cmd.ConversationID, "caller_id", cmd.CallerID, "added", len(added))
	return result, nil
}

func (m *ParticipantManager) Remove(ctx context.Context, cmd RemoveParticipantCommand) (dto.MembershipResult, error) {
	var result dto.MembershipResult
	err := support.WithUnit(ctx, m.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		c, err := loadForMember(ctx, unit, cmd.ConversationID, cmd.CallerID)
		if err != nil {
			return err
		}
		resolved, err := support.ResolveIdentifiers(ctx, m.Users, "", []string{cmd.User})
		if err != nil {
			return err
		}
		if len(resolved) == 0 {
			return user.ErrNotFound
		}
		target := resolved[0]
		if target == cmd.CallerID {
			result, err = m.leave(ctx, unit, c, cmd.CallerID)
			return err
		}
		if _, err := support.RequireUsers(ctx, m.Users, []user.ID{target}); err != nil {
			return err
		}
		if !c.HasParticipant(target) {
			return conversation.ErrTargetNotParticipant
		}
		known, err := m.Users.ByIDs(ctx, []user.ID{cmd.CallerID, target})
		if err != nil {
			return err
		}

		tx := m.mutation(unit)
		teardown, err := c.RemoveParticipant(cmd.CallerID, target, tx.now)
		if err != nil {
			return err
		}
		if teardown {
			result = dto.MembershipResult{Deleted: true, Changed: true}
			return tx.teardown(ctx, c, cmd.CallerID)
		}
		notice := conversation.RemovedNotice(label(known, cmd.CallerID), label(known, target))
		if err := tx.appendNotice(ctx, c, cmd.CallerID, notice); err != nil {
			return err
		}
		if err := tx.save(ctx, c); err != nil {
			return err
		}
		result, err = m.result(ctx, c, true)
		return err
	})
	if err != nil {
		return dto.MembershipResult{}, err
	}
	m.log("participant removed", "conversation_id", cmd.ConversationID, "caller_id", cmd.CallerID, "deleted", result.Deleted)
	return result, nil
}

func (m *ParticipantManager) Leave(ctx context.Context, cmd LeaveConversationCommand) (dto.MembershipResult, error) {
	var result dto.MembershipResult
	err := support.WithUnit(ctx, m.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		c, err := loadForMember(ctx, unit, cmd.ConversationID, cmd.CallerID)
		if err != nil {
			return err
		}
		result, err = m.leave(ctx, unit, c, cmd.CallerID)
		return err
	})
	if err != nil {
		return dto.MembershipResult{}, err
	}
	m.log("conversation left", "conversation_id", cmd.ConversationID, "caller_id", cmd.CallerID, "deleted", result.Deleted)
	return result, nil
}

// leave tears a direct thread down at once. A group loses the caller and is torn down
// only when it falls below two members. The result describes the conversation as seen by
// the remaining members.
func (m *ParticipantManager) leave(ctx context.Context, unit uow.UnitOfWork, c *conversation.Conversation, caller user.ID) (dto.MembershipResult, error) {
	tx := m.mutation(unit)
	if !c.IsGroup() {
		return dto.MembershipResult{Deleted: true, Changed: true}, tx.teardown(ctx, c, caller)
	}
	teardown, err := c.RemoveParticipant(caller, caller, tx.now)
	if err != nil {
		return dto.MembershipResult{}, err
	}
	if teardown {
		return dto.MembershipResult{Deleted: true, Changed: true}, tx.teardown(ctx, c, caller)
	}
	known, err := m.Users.ByIDs(ctx, []user.ID{caller})
	if err != nil {
		return dto.MembershipResult{}, err
	}
	if err := tx.appendNotice(ctx, c, caller, conversation.LeftNotice(label(known, caller))); err != nil {
		return dto.MembershipResult{}, err
	}
	if err := tx.save(ctx, c); err != nil {
		return dto.MembershipResult{}, err
	}
	return m.result(ctx, c, true)
}

func (m *ParticipantManager) result(ctx context.Context, c *conversation.Conversation, changed bool) (dto.MembershipResult, error) {
	view, err := mapConversation(ctx, m.Users, c)
	if err != nil {
		return dto.MembershipResult{}, err
	}
	return dto.MembershipResult{Conversation: &view, Changed: changed}, nil
}

func (m *ParticipantManager) mutation(unit uow.UnitOfWork) mutation {
	now := time.Now()
	if m.Clock != nil {
		now = m.Clock()
	}
	return mutation{unit: unit, encoder: m.Encoder, now: now}
}

func (m *ParticipantManager) log(msg string, args ...any) {
	if m.Logger != nil {
		m.Logger.Info(msg, args...)
	}
}
