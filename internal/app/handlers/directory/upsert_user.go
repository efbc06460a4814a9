package directory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"convo/internal/app/commands"
	"convo/internal/app/uow"
	"convo/internal/domain/user"
)

const upsertUserKey = "directory.users.upsert"

// UpsertUserCommand mirrors an account change published by the identity service.
type UpsertUserCommand struct {
	ID          string
	Handle      string
	DisplayName string
	AvatarURL   string
	UpdatedAt   time.Time
}

func (c UpsertUserCommand) Key() string { return upsertUserKey }

// TxOptions keeps directory writes outside conversation units.
func (c UpsertUserCommand) TxOptions() uow.TxOptions {
	return uow.TxOptions{Bypass: true}
}

func (c UpsertUserCommand) Validate() error {
	_, err := c.user()
	return err
}

func (c UpsertUserCommand) user() (user.User, error) {
	return user.New(user.UpsertParams{
		ID:          c.ID,
		Handle:      c.Handle,
		DisplayName: c.DisplayName,
		AvatarURL:   c.AvatarURL,
		UpdatedAt:   c.UpdatedAt,
	})
}

type UpsertUserHandler struct {
	Users  user.Store
	Logger *slog.Logger
}

// Handle stores the record unless a newer version is already known.
func (h *UpsertUserHandler) Handle(ctx context.Context, cmd UpsertUserCommand) (user.User, error) {
	u, err := cmd.user()
	if err != nil {
		return user.User{}, err
	}
	current, err := h.Users.ByID(ctx, u.ID)
	switch {
	case err == nil && current.UpdatedAt.After(u.UpdatedAt):
		return *current, nil
	case err != nil && !errors.Is(err, user.ErrNotFound):
		return user.User{}, err
	}
	if err := h.Users.Upsert(ctx, u); err != nil {
		return user.User{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("directory user upserted", "user_id", u.ID, "handle", u.Handle)
	}
	return u, nil
}

var _ commands.Handler[UpsertUserCommand, user.User] = (*UpsertUserHandler)(nil)
