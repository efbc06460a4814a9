package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "convo/internal/app/outbox"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
)

var ErrReadOnly = errors.New("memory: unit is read-only")

// Store is a transactional in-memory store. Write units hold the store lock and work on
// a staged copy of the state, published on Commit; read units share the lock and see the
// committed state.
type Store struct {
	mu    sync.RWMutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

type state struct {
	conversations map[conversation.ID]*conversation.Conversation
	directKeys    map[string]conversation.ID
	// messages are kept ordered by (CreatedAt, ID) per conversation.
	messages map[conversation.ID][]conversation.Message
	outbox   []*outboxEntry
}

func newState() *state {
	return &state{
		conversations: make(map[conversation.ID]*conversation.Conversation),
		directKeys:    make(map[string]conversation.ID),
		messages:      make(map[conversation.ID][]conversation.Message),
	}
}

func (s *state) clone() *state {
	cp := newState()
	for id, c := range s.conversations {
		cp.conversations[id] = c.Clone()
	}
	for key, id := range s.directKeys {
		cp.directKeys[key] = id
	}
	for id, msgs := range s.messages {
		list := make([]conversation.Message, len(msgs))
		for i, m := range msgs {
			list[i] = m.Clone()
		}
		cp.messages[id] = list
	}
	cp.outbox = make([]*outboxEntry, len(s.outbox))
	for i, e := range s.outbox {
		entry := *e
		cp.outbox[i] = &entry
	}
	return cp
}

// Begin opens a unit. A write unit blocks other writers until it ends and stages a full
// copy of the state, so its cost grows with everything stored. The driver is meant for
// tests and local runs; larger deployments use mongo or postgres.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.ReadOnly {
		s.mu.RLock()
		return &Unit{store: s, state: s.state, readOnly: true}, nil
	}
	s.mu.Lock()
	return &Unit{store: s, state: s.state.clone()}, nil
}

// Unit is a uow.UnitOfWork over one state snapshot.
type Unit struct {
	store    *Store
	state    *state
	readOnly bool
	done     bool
}

func (u *Unit) Conversations() conversation.Repository {
	return conversationRepo{unit: u}
}

func (u *Unit) Messages() conversation.MessageRepository {
	return messageRepo{unit: u}
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return outboxWriter{unit: u}
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	if !u.readOnly {
		u.store.state = u.state
	}
	u.release()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.release()
	return nil
}

func (u *Unit) release() {
	u.done = true
	if u.readOnly {
		u.store.mu.RUnlock()
		return
	}
	u.store.mu.Unlock()
}

func (u *Unit) writable() error {
	if u.readOnly {
		return ErrReadOnly
	}
	if u.done {
		return errors.New("memory: unit already finished")
	}
	return nil
}

var (
	_ uow.Factory    = (*Store)(nil)
	_ uow.UnitOfWork = (*Unit)(nil)
)
