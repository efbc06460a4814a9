package uow

import (
	"context"

	appoutbox "convo/internal/app/outbox"
	"convo/internal/domain/conversation"
)

// UnitOfWork groups the repositories that must change together. Everything written
// through one unit becomes visible on Commit or not at all.
type UnitOfWork interface {
	Conversations() conversation.Repository
	Messages() conversation.MessageRepository
	Outbox() appoutbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory starts units of work.
type Factory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
	// Bypass runs the command without a unit of work, for handlers that never touch the store.
	Bypass bool
}

// ContextInjector is implemented by units that carry a driver session in the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

// Bind stores the unit in ctx, letting drivers attach their session first.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}
