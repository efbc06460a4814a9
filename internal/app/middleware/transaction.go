package middleware

import (
	"context"

	"convo/internal/app/commands"
	"convo/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// TxScoped is implemented by commands that choose their own unit options.
type TxScoped interface {
	TxOptions() uow.TxOptions
}

// CommandTxOptions reads the options declared by the command, defaulting to a write unit.
func CommandTxOptions(cmd commands.Command) uow.TxOptions {
	if scoped, ok := cmd.(TxScoped); ok {
		return scoped.TxOptions()
	}
	return uow.TxOptions{}
}

// Transaction runs each command inside its own unit of work and commits on success.
func Transaction(factory uow.Factory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			if opts.Bypass {
				return next.Dispatch(ctx, cmd)
			}
			unit, err := factory.Begin(ctx, opts)
			if err != nil {
				return nil, err
			}
			execCtx := uow.Bind(ctx, unit)
			committed := false
			defer func() {
				if !committed {
					_ = unit.Rollback(execCtx)
				}
			}()

			res, err := next.Dispatch(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if err := unit.Commit(execCtx); err != nil {
				return nil, err
			}
			committed = true
			return res, nil
		})
	}
}
