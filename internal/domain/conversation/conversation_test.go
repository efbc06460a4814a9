package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/domain/shared/fault"
	"convo/internal/domain/user"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestDirectKey_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, "a-1:b-2", DirectKey("a-1", "b-2"))
	assert.Equal(t, "a-1:b-2", DirectKey("b-2", "a-1"))
}

func TestNewDirect(t *testing.T) {
	c, err := NewDirect(DirectParams{ID: "c1", Initiator: "alice", Peer: "bob", Now: t0})
	require.NoError(t, err)
	assert.Equal(t, KindDirect, c.Kind)
	assert.Equal(t, "alice:bob", c.DirectKey)
	assert.Equal(t, []user.ID{"alice", "bob"}, c.Participants)
	assert.False(t, c.IsGroup())

	evs := c.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, "conversation.started", evs[0].EventName())
	assert.Empty(t, c.Events())

	_, err = NewDirect(DirectParams{ID: "c2", Initiator: "alice", Peer: "alice"})
	assert.ErrorIs(t, err, ErrSelfConversation)
}

func TestNewGroup(t *testing.T) {
	c, err := NewGroup(GroupParams{ID: "g1", Creator: "alice", Members: []user.ID{"bob", "carol", "bob", ""}, Now: t0})
	require.NoError(t, err)
	assert.Equal(t, KindGroup, c.Kind)
	assert.Empty(t, c.DirectKey)
	assert.Equal(t, []user.ID{"alice", "bob", "carol"}, c.Participants)

	_, err = NewGroup(GroupParams{ID: "g2", Creator: "alice", Members: []user.ID{"bob"}})
	assert.ErrorIs(t, err, ErrGroupTooSmall)
}

func TestAddParticipants(t *testing.T) {
	c := mustGroup(t)

	added, err := c.AddParticipants("alice", []user.ID{"bob", "dave", "alice", "erin", "dave"}, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []user.ID{"dave", "erin"}, added)
	assert.Len(t, c.Participants, 5)
	assert.Equal(t, t0.Add(time.Minute), c.UpdatedAt)

	_, err = c.AddParticipants("alice", []user.ID{"bob"}, t0)
	assert.ErrorIs(t, err, ErrNothingToAdd)
	assert.Equal(t, fault.InvalidRequest, fault.KindOf(err))

	_, err = c.AddParticipants("mallory", []user.ID{"zed"}, t0)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestAddParticipants_DirectRejected(t *testing.T) {
	c, err := NewDirect(DirectParams{ID: "d1", Initiator: "alice", Peer: "bob", Now: t0})
	require.NoError(t, err)

	_, err = c.AddParticipants("alice", []user.ID{"carol"}, t0)
	assert.ErrorIs(t, err, ErrAddToDirect)
	assert.Equal(t, []user.ID{"alice", "bob"}, c.Participants)
}

func TestRemoveParticipant_ReportsTeardown(t *testing.T) {
	c := mustGroup(t)

	teardown, err := c.RemoveParticipant("alice", "carol", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, teardown)
	assert.Equal(t, []user.ID{"alice", "bob"}, c.Participants)
	assert.True(t, c.IsGroup(), "a shrunk group keeps its kind")

	_, err = c.RemoveParticipant("alice", "carol", t0)
	assert.ErrorIs(t, err, ErrTargetNotParticipant)

	teardown, err = c.RemoveParticipant("alice", "bob", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, teardown)
}

func TestRename(t *testing.T) {
	c := mustGroup(t)
	c.Events()

	change, err := c.Rename("alice", "  Leg Day Crew  ", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Rename{Old: "", New: "Leg Day Crew"}, change)
	assert.Equal(t, "Leg Day Crew", c.Name)
	assert.Len(t, c.Events(), 1)

	updated := c.UpdatedAt
	change, err = c.Rename("alice", "Leg Day Crew", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, change.Changed())
	assert.Equal(t, updated, c.UpdatedAt)
	assert.Empty(t, c.Events())

	change, err = c.Rename("bob", "   ", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Rename{Old: "Leg Day Crew", New: ""}, change)

	direct, err := NewDirect(DirectParams{ID: "d", Initiator: "alice", Peer: "bob"})
	require.NoError(t, err)
	_, err = direct.Rename("alice", "nope", t0)
	assert.ErrorIs(t, err, ErrRenameDirect)
}

func TestNormalizeName_Caps(t *testing.T) {
	long := strings.Repeat("é", MaxNameLength+20)
	assert.Equal(t, MaxNameLength, len([]rune(NormalizeName(long))))
	assert.Equal(t, "", NormalizeName(" \t "))
}

func TestNextMessageTime_IsStrictlyIncreasing(t *testing.T) {
	c := mustGroup(t)
	first := c.NextMessageTime(t0)
	c.RecordMessage(first)

	second := c.NextMessageTime(t0)
	assert.True(t, second.After(first))
	c.RecordMessage(second)

	later := t0.Add(time.Hour)
	assert.Equal(t, later, c.NextMessageTime(later))
}

func mustGroup(t *testing.T) *Conversation {
	t.Helper()
	c, err := NewGroup(GroupParams{ID: "g", Creator: "alice", Members: []user.ID{"bob", "carol"}, Now: t0})
	require.NoError(t, err)
	return c
}
