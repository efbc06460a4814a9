package conversations

import (
	"context"

	"convo/internal/app/dto"
	"convo/internal/app/handlers/support"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

// RenameConversationCommand sets or clears a group name. A nil or blank Name removes it.
type RenameConversationCommand struct {
	CallerID       user.ID
	ConversationID conversation.ID
	Name           *string
}

func (c RenameConversationCommand) Key() string     { return renameConversationKey }
func (c RenameConversationCommand) Caller() user.ID { return c.CallerID }

func (c RenameConversationCommand) Validate() error {
	if trimmed(string(c.ConversationID)) == "" {
		return ErrConversationRequired
	}
	return nil
}

func (m *ParticipantManager) Rename(ctx context.Context, cmd RenameConversationCommand) (dto.MembershipResult, error) {
	var result dto.MembershipResult
	var change conversation.Rename
	err := support.WithUnit(ctx, m.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		c, err := loadForMember(ctx, unit, cmd.ConversationID, cmd.CallerID)
		if err != nil {
			return err
		}
		name := ""
		if cmd.Name != nil {
			name = *cmd.Name
		}
		tx := m.mutation(unit)
		change, err = c.Rename(cmd.CallerID, name, tx.now)
		if err != nil {
			return err
		}
		if !change.Changed() {
			result, err = m.result(ctx, c, false)
			return err
		}
		known, err := m.Users.ByIDs(ctx, []user.ID{cmd.CallerID})
		if err != nil {
			return err
		}
		notice := conversation.RenameNotice(label(known, cmd.CallerID), change)
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
	if change.Changed() {
		m.log("conversation renamed", "conversation_id", cmd.ConversationID, "caller_id", cmd.CallerID)
	}
	return result, nil
}
