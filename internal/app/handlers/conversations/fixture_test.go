package conversations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convo/internal/app/dto"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
	"convo/internal/infra/storage/memory"
)

type fixture struct {
	store    *memory.Store
	users    *memory.UserDirectory
	relay    *memory.OutboxRelay
	start    *StartConversationHandler
	manager  *ParticipantManager
	list     *ListConversationsHandler
	now      time.Time
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewStore(),
		users: memory.NewUserDirectory(),
		now:   time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	f.relay = memory.NewOutboxRelay(f.store)
	for _, u := range []user.User{
		{ID: "u-alice", Handle: "alice", DisplayName: "Alice"},
		{ID: "u-bob", Handle: "bob", DisplayName: "Bob"},
		{ID: "u-carol", Handle: "carol", DisplayName: "Carol"},
		{ID: "u-dave", Handle: "dave", DisplayName: "Dave"},
		{ID: "u-erin", Handle: "erin"},
	} {
		require.NoError(t, f.users.Upsert(context.Background(), u))
	}
	f.resolver = &Resolver{Users: f.users, Clock: f.clock}
	f.start = &StartConversationHandler{UoWFactory: f.store, Resolver: f.resolver}
	f.manager = &ParticipantManager{UoWFactory: f.store, Users: f.users, Clock: f.clock}
	f.list = &ListConversationsHandler{UoWFactory: f.store, Users: f.users}
	return f
}

func (f *fixture) clock() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fixture) startWith(t *testing.T, caller user.ID, recipients ...string) conversation.ID {
	t.Helper()
	res, err := f.start.Handle(context.Background(), StartConversationCommand{CallerID: caller, Recipients: recipients})
	require.NoError(t, err)
	return conversation.ID(res.Conversation.ID)
}

func (f *fixture) load(t *testing.T, id conversation.ID) (*conversation.Conversation, error) {
	t.Helper()
	unit, err := f.store.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(context.Background())
	return unit.Conversations().ByID(context.Background(), id)
}

func (f *fixture) history(t *testing.T, id conversation.ID) []conversation.Message {
	t.Helper()
	unit, err := f.store.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(context.Background())
	msgs, err := unit.Messages().List(context.Background(), id, conversation.Page{})
	require.NoError(t, err)
	return msgs
}

func contents(msgs []conversation.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func participantIDs(ps []dto.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func strptr(s string) *string { return &s }
