package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"convo/internal/app/commands"
	"convo/internal/app/handlers/directory"
	"convo/internal/domain/user"
	"convo/internal/infra/inbox"
)

var errMalformedEvent = errors.New("kafka: malformed user event")

// userEvent is the CloudEvents envelope published by the identity service.
type userEvent struct {
	ID   string   `json:"id"`
	Type string   `json:"type"`
	Data userData `json:"data"`
}

type userData struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DirectoryHandler mirrors user.created and user.updated events into the user directory.
type DirectoryHandler struct {
	Commands commands.Bus
	Inbox    inbox.Store
	Logger   *slog.Logger
}

func (h *DirectoryHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt userEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.drop(msg, fmt.Errorf("%w: %v", errMalformedEvent, err))
		return nil
	}
	if !isUserEvent(evt.Type) {
		return nil
	}
	if evt.ID == "" || evt.Data.ID == "" {
		h.drop(msg, errMalformedEvent)
		return nil
	}
	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	_, err := commands.Dispatch[directory.UpsertUserCommand, user.User](ctx, h.Commands, directory.UpsertUserCommand{
		ID:          evt.Data.ID,
		Handle:      evt.Data.Handle,
		DisplayName: evt.Data.DisplayName,
		AvatarURL:   evt.Data.AvatarURL,
		UpdatedAt:   evt.Data.UpdatedAt,
	})
	if err != nil {
		if h.Inbox != nil {
			if relErr := h.Inbox.Release(ctx, evt.ID); relErr != nil {
				return errors.Join(err, relErr)
			}
		}
		return err
	}
	return nil
}

func (h *DirectoryHandler) drop(msg *sarama.ConsumerMessage, err error) {
	if h.Logger != nil {
		h.Logger.Warn("user event dropped", "topic", msg.Topic, "offset", msg.Offset, "error", err)
	}
}

func isUserEvent(eventType string) bool {
	switch strings.TrimSuffix(eventType, ".v1") {
	case "user.created", "user.updated":
		return true
	}
	return false
}

var _ MessageHandler = (*DirectoryHandler)(nil)
