package dto

import (
	"time"

	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

type Participant struct {
	ID          string `json:"id"`
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type Conversation struct {
	ID           string        `json:"id"`
	Kind         string        `json:"kind"`
	IsGroup      bool          `json:"isGroup"`
	Name         string        `json:"name,omitempty"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type StartResult struct {
	Conversation Conversation `json:"conversation"`
	IsGroup      bool         `json:"isGroup"`
	Existed      bool         `json:"existed"`
}

// MembershipResult answers membership and naming changes. Deleted means the
// conversation was torn down and Conversation is nil.
type MembershipResult struct {
	Conversation *Conversation `json:"conversation,omitempty"`
	Deleted      bool          `json:"deleted"`
	Changed      bool          `json:"changed"`
}

func MapParticipant(id user.ID, directory map[user.ID]user.User) Participant {
	u, ok := directory[id]
	if !ok {
		return Participant{ID: string(id), DisplayName: string(id)}
	}
	return Participant{
		ID:          string(u.ID),
		Handle:      u.Handle,
		DisplayName: u.Label(),
		AvatarURL:   u.AvatarURL,
	}
}

func MapConversation(c *conversation.Conversation, directory map[user.ID]user.User) Conversation {
	out := Conversation{
		ID:           string(c.ID),
		Kind:         string(c.Kind),
		IsGroup:      c.IsGroup(),
		Name:         c.Name,
		Participants: make([]Participant, 0, len(c.Participants)),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	for _, id := range c.Participants {
		out.Participants = append(out.Participants, MapParticipant(id, directory))
	}
	return out
}
