package conversations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

func (f *fixture) seedMessage(t *testing.T, id conversation.ID, sender user.ID, content string) {
	t.Helper()
	ctx := context.Background()
	unit, err := f.store.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	c, err := unit.Conversations().ByID(ctx, id)
	require.NoError(t, err)
	msg, err := conversation.Compose(conversation.ComposeParams{
		ID:             conversation.MessageID(content),
		ConversationID: id,
		SenderID:       sender,
		Content:        content,
		CreatedAt:      c.NextMessageTime(f.clock()),
	})
	require.NoError(t, err)
	require.NoError(t, unit.Messages().Append(ctx, msg))
	c.RecordMessage(msg.CreatedAt)
	require.NoError(t, unit.Conversations().Save(ctx, c))
	require.NoError(t, unit.Commit(ctx))
}

func TestList_ProjectsRowsByActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	direct := f.startWith(t, "u-alice", "u-bob")
	group := f.startWith(t, "u-alice", "u-bob", "u-carol", "u-dave", "u-erin")
	quiet := f.startWith(t, "u-alice", "u-carol")

	f.seedMessage(t, group, "u-bob", "gym at 6?")
	f.seedMessage(t, direct, "u-bob", "hey")
	f.seedMessage(t, direct, "u-alice", "hi!")
	f.seedMessage(t, direct, "u-bob", "how are you")

	list, err := f.list.Handle(ctx, ListConversationsQuery{CallerID: "u-alice"})
	require.NoError(t, err)
	require.Len(t, list.Items, 3)

	first := list.Items[0]
	assert.Equal(t, string(direct), first.ID)
	assert.False(t, first.IsGroup)
	assert.Equal(t, "Bob", first.DisplayName)
	assert.Equal(t, "u-bob", first.CounterpartID)
	require.NotNil(t, first.LastMessage)
	assert.Equal(t, "how are you", first.LastMessage.Content)
	assert.False(t, first.LastMessage.SenderIsMe)
	assert.Equal(t, 2, first.UnreadCount)

	second := list.Items[1]
	assert.Equal(t, string(group), second.ID)
	assert.True(t, second.IsGroup)
	assert.Equal(t, "Bob, Carol, Dave +1 more", second.DisplayName)
	assert.Len(t, second.Members, 5)
	assert.Equal(t, 1, second.UnreadCount)

	third := list.Items[2]
	assert.Equal(t, string(quiet), third.ID)
	assert.Nil(t, third.LastMessage)
	assert.Equal(t, "Carol", third.DisplayName)
	assert.Zero(t, third.UnreadCount)
}

func TestList_NamedGroupAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.list.Handle(ctx, ListConversationsQuery{CallerID: "u-alice"})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	group := f.startWith(t, "u-alice", "u-bob", "u-carol")
	_, err = f.manager.Rename(ctx, RenameConversationCommand{CallerID: "u-alice", ConversationID: group, Name: strptr("Leg Day Crew")})
	require.NoError(t, err)

	list, err := f.list.Handle(ctx, ListConversationsQuery{CallerID: "u-bob"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Leg Day Crew", list.Items[0].DisplayName)
	require.NotNil(t, list.Items[0].LastMessage)
	assert.Equal(t, "system", list.Items[0].LastMessage.Kind)
}

func TestSummarize_GroupTitleWithoutDirectory(t *testing.T) {
	c, err := conversation.NewGroup(conversation.GroupParams{ID: "g", Creator: "me", Members: []user.ID{"x", "y"}, Now: time.Now()})
	require.NoError(t, err)
	row := Summarize(c, "me", nil)
	assert.Equal(t, "x, y", row.DisplayName)
	assert.Empty(t, row.CounterpartID)
}
