package support

import (
	"context"

	appoutbox "convo/internal/app/outbox"
	"convo/internal/app/uow"
	"convo/internal/domain/shared/events"
)

// RecordEvents appends the events to the outbox of unit.
func RecordEvents(ctx context.Context, unit uow.UnitOfWork, encoder appoutbox.EventEncoder, evs []events.DomainEvent) error {
	if len(evs) == 0 {
		return nil
	}
	return appoutbox.Record(ctx, unit.Outbox(), encoder, evs)
}
