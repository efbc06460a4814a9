package middleware

import (
	"context"

	"convo/internal/app/commands"
	"convo/internal/app/queries"
	"convo/internal/domain/shared/fault"
	"convo/internal/domain/user"
)

var ErrCallerRequired = fault.New(fault.Unauthorized, "middleware: authenticated caller required")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// CallerScoped is implemented by messages issued on behalf of an authenticated user.
type CallerScoped interface {
	Caller() user.ID
}

// RequireCaller rejects caller scoped messages that carry no caller.
type RequireCaller struct{}

func (RequireCaller) Authorize(_ context.Context, message any) error {
	scoped, ok := message.(CallerScoped)
	if !ok {
		return nil
	}
	if scoped.Caller() == "" {
		return ErrCallerRequired
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		return commands.BusFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		return queries.BusFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
