package conversation

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"convo/internal/domain/shared/events"
	"convo/internal/domain/shared/fault"
	"convo/internal/domain/user"
)

const (
	// MinParticipants is the membership floor; below it a conversation is torn down.
	MinParticipants = 2
	MaxNameLength   = 100
)

var (
	ErrNotFound             = fault.New(fault.NotFound, "conversation: not found")
	ErrNotParticipant       = fault.New(fault.Forbidden, "conversation: caller is not a participant")
	ErrNoRecipients         = fault.Invalid("conversation: no valid recipients")
	ErrNothingToAdd         = fault.Invalid("conversation: no new participants to add")
	ErrTargetNotParticipant = fault.Invalid("conversation: user is not a participant")
	ErrRenameDirect         = fault.Invalid("conversation: direct conversations cannot be renamed")
	// ErrAddToDirect rejects adding members to a direct thread, which always keeps exactly
	// its two users. Start a group with the wider membership instead.
	ErrAddToDirect      = fault.Invalid("conversation: cannot add participants to a direct conversation")
	ErrSelfConversation = fault.Invalid("conversation: cannot start a conversation with yourself")
	ErrGroupTooSmall    = fault.Invalid("conversation: a group needs at least three participants")
	ErrDirectKeyTaken   = fault.New(fault.Conflict, "conversation: direct key already taken")
	ErrConcurrentUpdate = fault.New(fault.Conflict, "conversation: concurrent update")
)

type ID string

type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// Conversation is a direct or group thread together with its membership.
// Kind is fixed at creation; a group that shrinks to two members stays a group.
type Conversation struct {
	ID            ID
	Kind          Kind
	Name          string
	DirectKey     string
	Participants  []user.ID
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastMessageAt time.Time
	Version       int64

	recorder events.Recorder
}

// DirectKey is the order independent key of a two party thread.
func DirectKey(a, b user.ID) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + ":" + string(b)
}

type DirectParams struct {
	ID        ID
	Initiator user.ID
	Peer      user.ID
	Now       time.Time
}

func NewDirect(params DirectParams) (*Conversation, error) {
	if params.Initiator == "" || params.Peer == "" {
		return nil, ErrNoRecipients
	}
	if params.Initiator == params.Peer {
		return nil, ErrSelfConversation
	}
	now := normalizeTime(params.Now)
	c := &Conversation{
		ID:           params.ID,
		Kind:         KindDirect,
		DirectKey:    DirectKey(params.Initiator, params.Peer),
		Participants: []user.ID{params.Initiator, params.Peer},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.recorder.Record(Started{ConversationID: c.ID, Kind: c.Kind, Participants: c.members(), At: now})
	return c, nil
}

type GroupParams struct {
	ID      ID
	Creator user.ID
	Members []user.ID
	Now     time.Time
}

func NewGroup(params GroupParams) (*Conversation, error) {
	members := MemberSet(append([]user.ID{params.Creator}, params.Members...))
	if len(members) < MinParticipants+1 {
		return nil, ErrGroupTooSmall
	}
	now := normalizeTime(params.Now)
	c := &Conversation{
		ID:           params.ID,
		Kind:         KindGroup,
		Participants: members,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.recorder.Record(Started{ConversationID: c.ID, Kind: c.Kind, Participants: c.members(), At: now})
	return c, nil
}

// MemberSet drops blanks and duplicates while keeping first-seen order.
func MemberSet(ids []user.ID) []user.ID {
	seen := make(map[user.ID]struct{}, len(ids))
	out := make([]user.ID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (c *Conversation) IsGroup() bool {
	return c.Kind == KindGroup
}

func (c *Conversation) HasParticipant(id user.ID) bool {
	return slices.Contains(c.Participants, id)
}

// Authorize fails with ErrNotParticipant unless the caller is a member.
func (c *Conversation) Authorize(caller user.ID) error {
	if caller == "" || !c.HasParticipant(caller) {
		return ErrNotParticipant
	}
	return nil
}

// Others returns the members except the viewer, in membership order.
func (c *Conversation) Others(viewer user.ID) []user.ID {
	out := make([]user.ID, 0, len(c.Participants))
	for _, id := range c.Participants {
		if id != viewer {
			out = append(out, id)
		}
	}
	return out
}

// AddParticipants appends users that are not members yet and returns them.
func (c *Conversation) AddParticipants(actor user.ID, candidates []user.ID, now time.Time) ([]user.ID, error) {
	if err := c.Authorize(actor); err != nil {
		return nil, err
	}
	if c.Kind == KindDirect {
		return nil, ErrAddToDirect
	}
	added := make([]user.ID, 0, len(candidates))
	for _, id := range MemberSet(candidates) {
		if id == actor || c.HasParticipant(id) {
			continue
		}
		added = append(added, id)
	}
	if len(added) == 0 {
		return nil, ErrNothingToAdd
	}
	now = normalizeTime(now)
	c.Participants = append(c.Participants, added...)
	c.touch(now)
	c.recorder.Record(ParticipantsAdded{ConversationID: c.ID, ActorID: actor, Added: slices.Clone(added), At: now})
	return added, nil
}

// RemoveParticipant drops target from the membership. The returned flag reports that the
// conversation fell below MinParticipants and must be torn down.
func (c *Conversation) RemoveParticipant(actor, target user.ID, now time.Time) (bool, error) {
	if err := c.Authorize(actor); err != nil {
		return false, err
	}
	idx := slices.Index(c.Participants, target)
	if idx < 0 {
		return false, ErrTargetNotParticipant
	}
	now = normalizeTime(now)
	c.Participants = slices.Delete(slices.Clone(c.Participants), idx, idx+1)
	c.touch(now)
	c.recorder.Record(ParticipantRemoved{ConversationID: c.ID, ActorID: actor, UserID: target, Left: actor == target, At: now})
	return len(c.Participants) < MinParticipants, nil
}

// Rename is what changed in a Rename call.
type Rename struct {
	Old string
	New string
}

func (r Rename) Changed() bool {
	return r.Old != r.New
}

// Rename applies a normalized name. Renaming to the current value is a no-op and
// leaves UpdatedAt untouched.
func (c *Conversation) Rename(actor user.ID, raw string, now time.Time) (Rename, error) {
	if err := c.Authorize(actor); err != nil {
		return Rename{}, err
	}
	if c.Kind == KindDirect {
		return Rename{}, ErrRenameDirect
	}
	change := Rename{Old: c.Name, New: NormalizeName(raw)}
	if !change.Changed() {
		return change, nil
	}
	now = normalizeTime(now)
	c.Name = change.New
	c.touch(now)
	c.recorder.Record(Renamed{ConversationID: c.ID, ActorID: actor, Name: change.New, At: now})
	return change, nil
}

// NextMessageTime returns a timestamp strictly after the newest message so that cursor
// reads never skip a message sharing its predecessor's timestamp.
func (c *Conversation) NextMessageTime(now time.Time) time.Time {
	now = normalizeTime(now)
	if !c.LastMessageAt.IsZero() && !now.After(c.LastMessageAt) {
		return c.LastMessageAt.Add(time.Microsecond)
	}
	return now
}

// RecordMessage bumps recency after a message was appended at the given time.
func (c *Conversation) RecordMessage(at time.Time) {
	if at.After(c.LastMessageAt) {
		c.LastMessageAt = at
	}
	c.touch(at)
}

// MarkDeleted records the teardown of the conversation.
func (c *Conversation) MarkDeleted(actor user.ID, now time.Time) {
	c.recorder.Record(Deleted{ConversationID: c.ID, ActorID: actor, At: normalizeTime(now)})
}

// Events drains the events recorded since the last call.
func (c *Conversation) Events() []events.DomainEvent {
	return c.recorder.Drain()
}

func (c *Conversation) touch(now time.Time) {
	c.UpdatedAt = now
}

func (c *Conversation) members() []user.ID {
	return slices.Clone(c.Participants)
}

// Clone returns a deep copy without pending events.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Participants = slices.Clone(c.Participants)
	cp.recorder = events.Recorder{}
	return &cp
}

// NormalizeName trims the input and caps it at MaxNameLength runes. An empty result means
// the group has no name.
func NormalizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	return name
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}
