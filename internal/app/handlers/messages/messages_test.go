package messages

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/app/handlers/conversations"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/shared/fault"
	"convo/internal/domain/user"
	"convo/internal/infra/storage/memory"
)

var readOnly = uow.TxOptions{ReadOnly: true}

type fixture struct {
	store   *memory.Store
	users   *memory.UserDirectory
	send    *SendMessageHandler
	list    *ListMessagesHandler
	inbox   *conversations.ListConversationsHandler
	manager *conversations.ParticipantManager
	now     time.Time
	frozen  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewStore(),
		users: memory.NewUserDirectory(),
		now:   time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	for _, u := range []user.User{
		{ID: "u-alice", Handle: "alice", DisplayName: "Alice"},
		{ID: "u-bob", Handle: "bob", DisplayName: "Bob"},
		{ID: "u-carol", Handle: "carol", DisplayName: "Carol"},
	} {
		require.NoError(t, f.users.Upsert(context.Background(), u))
	}
	resolver := &conversations.Resolver{Users: f.users, Clock: f.clock}
	f.send = &SendMessageHandler{UoWFactory: f.store, Resolver: resolver, Clock: f.clock}
	f.list = &ListMessagesHandler{UoWFactory: f.store, Resolver: resolver, Clock: f.clock}
	f.inbox = &conversations.ListConversationsHandler{UoWFactory: f.store, Users: f.users}
	f.manager = &conversations.ParticipantManager{UoWFactory: f.store, Users: f.users, Clock: f.clock}
	return f
}

func (f *fixture) clock() time.Time {
	if !f.frozen {
		f.now = f.now.Add(time.Millisecond)
	}
	return f.now
}

func (f *fixture) sendText(t *testing.T, caller user.ID, target Target, content string) string {
	t.Helper()
	res, err := f.send.Handle(context.Background(), SendMessageCommand{CallerID: caller, Target: target, Content: content})
	require.NoError(t, err)
	return res.ConversationID
}

func TestAliceAndBob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	convID := f.sendText(t, "u-alice", Target{To: "bob"}, "  hi bob  ")

	page, err := f.list.Handle(ctx, ListMessagesCommand{CallerID: "u-bob", Target: Target{To: "@alice"}})
	require.NoError(t, err)
	assert.Equal(t, convID, page.ConversationID)
	require.Len(t, page.Messages, 1)
	msg := page.Messages[0]
	assert.Equal(t, "hi bob", msg.Content)
	assert.Equal(t, "u-alice", msg.SenderID)
	assert.Equal(t, "text", msg.Kind)
	assert.NotNil(t, msg.ReadAt, "bob viewing marks alice's message read")
	assert.NotEmpty(t, page.NextCursor)

	rows, err := f.inbox.Handle(ctx, conversations.ListConversationsQuery{CallerID: "u-bob"})
	require.NoError(t, err)
	require.Len(t, rows.Items, 1)
	assert.Zero(t, rows.Items[0].UnreadCount)
	assert.Equal(t, "Alice", rows.Items[0].DisplayName)

	unit, err := f.store.Begin(ctx, readOnly)
	require.NoError(t, err)
	c, err := unit.Conversations().ByID(ctx, conversation.ID(convID))
	require.NoError(t, unit.Rollback(ctx))
	require.NoError(t, err)
	assert.Equal(t, "u-alice:u-bob", c.DirectKey)
}

func TestList_NeverMarksOwnMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.sendText(t, "u-alice", Target{To: "u-bob"}, "one")
	f.sendText(t, "u-bob", Target{ConversationID: conversation.ID(convID)}, "two")

	page, err := f.list.Handle(ctx, ListMessagesCommand{CallerID: "u-alice", Target: Target{ConversationID: conversation.ID(convID)}})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Nil(t, page.Messages[0].ReadAt, "own message stays unread until bob looks")
	assert.NotNil(t, page.Messages[1].ReadAt)

	rows, err := f.inbox.Handle(ctx, conversations.ListConversationsQuery{CallerID: "u-bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, rows.Items[0].UnreadCount)
}

func TestList_CursorPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.frozen = true
	target := Target{To: "u-bob"}
	var convID string
	for i := 1; i <= 120; i++ {
		convID = f.sendText(t, "u-alice", target, fmt.Sprintf("m%03d", i))
	}
	byID := Target{ConversationID: conversation.ID(convID)}

	latest, err := f.list.Handle(ctx, ListMessagesCommand{CallerID: "u-bob", Target: byID})
	require.NoError(t, err)
	require.Len(t, latest.Messages, PageSize)
	assert.Equal(t, "m071", latest.Messages[0].Content)
	assert.Equal(t, "m120", latest.Messages[PageSize-1].Content)

	seen := map[string]bool{}
	for _, m := range latest.Messages {
		seen[m.Content] = true
	}
	before := latest.Messages[0].CreatedAt
	for {
		page, err := f.list.Handle(ctx, ListMessagesCommand{CallerID: "u-bob", Target: byID, Before: before})
		require.NoError(t, err)
		if len(page.Messages) == 0 {
			break
		}
		for i, m := range page.Messages {
			assert.False(t, seen[m.Content], "duplicate %s", m.Content)
			seen[m.Content] = true
			if i > 0 {
				assert.True(t, m.CreatedAt.After(page.Messages[i-1].CreatedAt))
			}
		}
		before = page.Messages[0].CreatedAt
	}
	assert.Len(t, seen, 120)

	var forward []string
	var after time.Time
	for {
		page, err := f.list.Handle(ctx, ListMessagesCommand{CallerID: "u-bob", Target: byID, After: after})
		require.NoError(t, err)
		if after.IsZero() {
			after = page.Messages[0].CreatedAt.Add(-time.Microsecond)
			continue
		}
		if len(page.Messages) == 0 {
			break
		}
		for _, m := range page.Messages {
			forward = append(forward, m.Content)
		}
		after = page.Messages[len(page.Messages)-1].CreatedAt
	}
	require.Len(t, forward, 120-70)
	assert.Equal(t, "m071", forward[0])
}

func TestList_ForwardCursorFromStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.frozen = true
	var convID string
	for i := 1; i <= 60; i++ {
		convID = f.sendText(t, "u-alice", Target{To: "u-bob"}, fmt.Sprintf("m%03d", i))
	}
	epoch := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	page, err := f.list.Handle(ctx, ListMessagesCommand{CallerID: "u-alice", Target: Target{ConversationID: conversation.ID(convID)}, After: epoch})
	require.NoError(t, err)
	require.Len(t, page.Messages, PageSize)
	assert.Equal(t, "m001", page.Messages[0].Content)
	assert.Equal(t, "m050", page.Messages[PageSize-1].Content)
}

func TestSend_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := conversation.ID(f.sendText(t, "u-alice", Target{To: "u-bob"}, "hello"))

	cases := []struct {
		name string
		cmd  SendMessageCommand
		want error
	}{
		{"empty", SendMessageCommand{Content: "   "}, conversation.ErrEmptyMessage},
		{"too long", SendMessageCommand{Content: strings.Repeat("x", conversation.MaxContentLength+1)}, conversation.ErrContentTooLong},
		{"bad image", SendMessageCommand{ImageURLs: []string{"ftp://x/y.png"}}, conversation.ErrInvalidImageURL},
		{"bad share", SendMessageCommand{Share: &SharePayload{Type: "story", ID: "1"}}, conversation.ErrInvalidShare},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := tc.cmd
			cmd.CallerID = "u-alice"
			cmd.Target = Target{ConversationID: convID}
			assert.ErrorIs(t, cmd.Validate(), tc.want)
			_, err := f.send.Handle(ctx, cmd)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, fault.InvalidRequest, fault.KindOf(err))
		})
	}

	_, err := f.send.Handle(ctx, SendMessageCommand{CallerID: "u-carol", Target: Target{ConversationID: convID}, Content: "let me in"})
	assert.ErrorIs(t, err, conversation.ErrNotParticipant)

	_, err = f.send.Handle(ctx, SendMessageCommand{CallerID: "u-alice", Target: Target{To: "u-ghost"}, Content: "anyone?"})
	assert.ErrorIs(t, err, conversation.ErrNoRecipients)

	assert.ErrorIs(t, SendMessageCommand{CallerID: "u-alice", Content: "x"}.Validate(), ErrTargetRequired)
	assert.ErrorIs(t, SendMessageCommand{CallerID: "u-alice", Target: Target{To: "a", ConversationID: "b"}, Content: "x"}.Validate(), ErrAmbiguousTarget)
}

func TestSend_ShareAndImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.send.Handle(ctx, SendMessageCommand{
		CallerID:  "u-alice",
		Target:    Target{To: "u-bob"},
		ImageURLs: []string{"https://cdn.example.com/a.png"},
		Share:     &SharePayload{Type: "POST", ID: " p-1 "},
	})
	require.NoError(t, err)

	page, err := f.list.Handle(ctx, ListMessagesCommand{CallerID: "u-bob", Target: Target{ConversationID: conversation.ID(res.ConversationID)}})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	got := page.Messages[0]
	assert.Equal(t, "share", got.Kind)
	require.NotNil(t, got.Share)
	assert.Equal(t, "post", got.Share.Type)
	assert.Equal(t, "p-1", got.Share.ID)
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, got.ImageURLs)
}

func TestSend_TimestampsStrictlyIncrease(t *testing.T) {
	f := newFixture(t)
	f.frozen = true
	ctx := context.Background()
	var last time.Time
	for i := 0; i < 5; i++ {
		res, err := f.send.Handle(ctx, SendMessageCommand{CallerID: "u-alice", Target: Target{To: "u-bob"}, Content: "same instant"})
		require.NoError(t, err)
		assert.True(t, res.CreatedAt.After(last))
		last = res.CreatedAt
	}
}

func TestList_NotFoundAfterTeardown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := conversation.ID(f.sendText(t, "u-alice", Target{To: "u-bob"}, "bye"))

	_, err := f.manager.Leave(ctx, conversations.LeaveConversationCommand{CallerID: "u-alice", ConversationID: convID})
	require.NoError(t, err)

	_, err = f.list.Handle(ctx, ListMessagesCommand{CallerID: "u-bob", Target: Target{ConversationID: convID}})
	assert.ErrorIs(t, err, conversation.ErrNotFound)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}

func TestSendMessageCommand_IdempotencyKey(t *testing.T) {
	assert.Empty(t, SendMessageCommand{CallerID: "u-alice"}.IdempotencyKey())
	assert.Equal(t, "messages.send:u-alice:k1", SendMessageCommand{CallerID: "u-alice", IdemKey: " k1 "}.IdempotencyKey())
}
