package chatsync

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Loop drives the active thread and the conversation list side by side.
type Loop struct {
	Thread *Thread
	Inbox  *Inbox
}

// Run blocks until ctx ends. Either poller may be nil.
func (l Loop) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if l.Thread != nil {
		g.Go(func() error { return l.Thread.Run(ctx) })
	}
	if l.Inbox != nil {
		g.Go(func() error { return l.Inbox.Run(ctx) })
	}
	return g.Wait()
}
