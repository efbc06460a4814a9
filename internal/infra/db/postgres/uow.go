package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	appoutbox "convo/internal/app/outbox"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

// Factory opens one database transaction per unit. Repositories find it through the
// context bound by uow.Bind.
type Factory struct {
	DB *sqlx.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx, err := f.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, err
	}
	return &Unit{
		bound:         boundTx{tx: tx, readOnly: opts.ReadOnly},
		conversations: NewConversationRepository(f.DB),
		messages:      NewMessageRepository(f.DB),
		outbox:        NewOutboxStore(f.DB),
	}, nil
}

type Unit struct {
	bound boundTx

	conversations *ConversationRepository
	messages      *MessageRepository
	outbox        *OutboxStore
}

func (u *Unit) Conversations() conversation.Repository {
	return u.conversations
}

func (u *Unit) Messages() conversation.MessageRepository {
	return u.messages
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return u.outbox
}

func (u *Unit) Commit(ctx context.Context) error {
	err := u.bound.tx.Commit()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (u *Unit) Rollback(ctx context.Context) error {
	err := u.bound.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, txKey{}, u.bound)
}

var (
	_ uow.Factory         = Factory{}
	_ uow.UnitOfWork      = (*Unit)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
