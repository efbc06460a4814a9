package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "convo/internal/app/outbox"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory runs every unit inside a multi-document transaction. Repositories pick the
// session up from the context bound by uow.Bind.
type Factory struct {
	DB     *mongo.Database
	Outbox appoutbox.Outbox
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadPreference(readpref.Primary()).
		SetWriteConcern(writeconcern.Majority())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadConcern(readconcern.Snapshot())
	} else {
		txnOpts = txnOpts.SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:       session,
		conversations: &ConversationRepository{col: f.DB.Collection(conversationsCollection)},
		messages:      &MessageRepository{col: f.DB.Collection(messagesCollection)},
		outbox:        f.Outbox,
	}, nil
}

type Unit struct {
	session mongo.Session

	conversations *ConversationRepository
	messages      *MessageRepository
	outbox        appoutbox.Outbox
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

// Commit retries an unknown commit result, which the server allows, and reports a
// transaction the server aborted as ErrConcurrentUpdate.
func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return commitWithRetry(func() error { return u.session.CommitTransaction(ctx) })
}

func commitWithRetry(commit func() error) error {
	var err error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		err = commit()
		if err == nil || !hasLabel(err, unknownCommitLabel) {
			break
		}
	}
	return mapWriteError(err, conversation.ErrConcurrentUpdate)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext makes the session visible to repositories running under ctx.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var (
	_ uow.Factory         = Factory{}
	_ uow.UnitOfWork      = (*Unit)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
