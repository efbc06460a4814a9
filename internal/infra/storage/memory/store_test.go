package memory

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "convo/internal/app/outbox"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

var t0 = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newDirect(t *testing.T, id conversation.ID, a, b user.ID) *conversation.Conversation {
	t.Helper()
	c, err := conversation.NewDirect(conversation.DirectParams{ID: id, Initiator: a, Peer: b, Now: t0})
	require.NoError(t, err)
	return c
}

func TestStore_RollbackDiscardsStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	unit, err := s.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Conversations().Create(ctx, newDirect(t, "c1", "a", "b")))
	require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "conversation.started"}))
	require.NoError(t, unit.Rollback(ctx))

	read, err := s.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	_, err = read.Conversations().ByID(ctx, "c1")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
	assert.ErrorIs(t, read.Conversations().Create(ctx, newDirect(t, "c2", "a", "b")), ErrReadOnly)
	require.NoError(t, read.Rollback(ctx))

	assert.Empty(t, NewOutboxRelay(s).Pending())
}

func TestStore_DirectKeyAndVersion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	unit, err := s.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Conversations().Create(ctx, newDirect(t, "c1", "a", "b")))
	assert.ErrorIs(t, unit.Conversations().Create(ctx, newDirect(t, "c2", "b", "a")), conversation.ErrDirectKeyTaken)
	require.NoError(t, unit.Commit(ctx))

	unit, err = s.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	fresh, err := unit.Conversations().ByID(ctx, "c1")
	require.NoError(t, err)
	stale := fresh.Clone()
	fresh.RecordMessage(t0.Add(time.Minute))
	require.NoError(t, unit.Conversations().Save(ctx, fresh))
	assert.ErrorIs(t, unit.Conversations().Save(ctx, stale), conversation.ErrConcurrentUpdate)
	require.NoError(t, unit.Commit(ctx))
}

func TestStore_MessagesWindowAndReadState(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	unit, err := s.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Conversations().Create(ctx, newDirect(t, "c1", "a", "b")))
	for i := 0; i < 5; i++ {
		sender := user.ID("a")
		if i%2 == 1 {
			sender = "b"
		}
		msg := conversation.Message{ID: conversation.MessageID(strconv.Itoa(i + 1)), ConversationID: "c1", SenderID: sender, Kind: conversation.KindText, CreatedAt: t0.Add(time.Duration(i) * time.Second)}
		require.NoError(t, unit.Messages().Append(ctx, msg))
	}

	newest, err := unit.Messages().List(ctx, "c1", conversation.Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []conversation.MessageID{"4", "5"}, ids(newest))

	after, err := unit.Messages().List(ctx, "c1", conversation.Page{After: t0, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []conversation.MessageID{"2", "3"}, ids(after))

	before, err := unit.Messages().List(ctx, "c1", conversation.Page{Before: t0.Add(3 * time.Second), Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []conversation.MessageID{"2", "3"}, ids(before))

	counts, err := unit.Messages().UnreadCounts(ctx, []conversation.ID{"c1"}, "b")
	require.NoError(t, err)
	assert.Equal(t, 3, counts["c1"])

	marked, err := unit.Messages().MarkRead(ctx, "c1", "b", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, marked)
	counts, err = unit.Messages().UnreadCounts(ctx, []conversation.ID{"c1"}, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, counts["c1"], "b's own messages stay unread for a")

	latest, err := unit.Messages().Latest(ctx, []conversation.ID{"c1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, conversation.MessageID("5"), latest["c1"].ID)
	assert.NotContains(t, latest, conversation.ID("missing"))
	require.NoError(t, unit.Commit(ctx))
}

func TestOutboxRelay_ClaimAndAcknowledge(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	unit, err := s.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "message.sent"}))
	require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e2", Name: "message.sent"}))
	require.NoError(t, unit.Commit(ctx))

	relay := NewOutboxRelay(s)
	first, err := relay.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "e1", first.ID)

	second, err := relay.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "e2", second.ID)

	none, err := relay.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, relay.MarkSent(ctx, "e1"))
	require.NoError(t, relay.MarkFailed(ctx, "e2", time.Now().Add(-time.Second), "broker down"))
	retried, err := relay.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, 1, retried.Attempts)
	assert.Len(t, relay.Pending(), 1)
}

func ids(msgs []conversation.Message) []conversation.MessageID {
	out := make([]conversation.MessageID, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
