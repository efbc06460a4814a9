package conversation

import (
	"time"

	"convo/internal/domain/user"
)

type Started struct {
	ConversationID ID        `json:"conversation_id"`
	Kind           Kind      `json:"kind"`
	Participants   []user.ID `json:"participants"`
	At             time.Time `json:"at"`
}

func (e Started) EventName() string     { return "conversation.started" }
func (e Started) AggregateID() string   { return string(e.ConversationID) }
func (e Started) OccurredAt() time.Time { return e.At }

type ParticipantsAdded struct {
	ConversationID ID        `json:"conversation_id"`
	ActorID        user.ID   `json:"actor_id"`
	Added          []user.ID `json:"added"`
	At             time.Time `json:"at"`
}

func (e ParticipantsAdded) EventName() string     { return "conversation.participants_added" }
func (e ParticipantsAdded) AggregateID() string   { return string(e.ConversationID) }
func (e ParticipantsAdded) OccurredAt() time.Time { return e.At }

type ParticipantRemoved struct {
	ConversationID ID        `json:"conversation_id"`
	ActorID        user.ID   `json:"actor_id"`
	UserID         user.ID   `json:"user_id"`
	Left           bool      `json:"left"`
	At             time.Time `json:"at"`
}

func (e ParticipantRemoved) EventName() string     { return "conversation.participant_removed" }
func (e ParticipantRemoved) AggregateID() string   { return string(e.ConversationID) }
func (e ParticipantRemoved) OccurredAt() time.Time { return e.At }

type Renamed struct {
	ConversationID ID        `json:"conversation_id"`
	ActorID        user.ID   `json:"actor_id"`
	Name           string    `json:"name"`
	At             time.Time `json:"at"`
}

func (e Renamed) EventName() string     { return "conversation.renamed" }
func (e Renamed) AggregateID() string   { return string(e.ConversationID) }
func (e Renamed) OccurredAt() time.Time { return e.At }

type Deleted struct {
	ConversationID ID        `json:"conversation_id"`
	ActorID        user.ID   `json:"actor_id"`
	At             time.Time `json:"at"`
}

func (e Deleted) EventName() string     { return "conversation.deleted" }
func (e Deleted) AggregateID() string   { return string(e.ConversationID) }
func (e Deleted) OccurredAt() time.Time { return e.At }

type MessageSent struct {
	MessageID      MessageID   `json:"message_id"`
	ConversationID ID          `json:"conversation_id"`
	SenderID       user.ID     `json:"sender_id"`
	Kind           MessageKind `json:"kind"`
	At             time.Time   `json:"at"`
}

func (e MessageSent) EventName() string     { return "message.sent" }
func (e MessageSent) AggregateID() string   { return string(e.ConversationID) }
func (e MessageSent) OccurredAt() time.Time { return e.At }
