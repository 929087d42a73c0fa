package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/now"

	"github.com/jibzus/bluefleet-sub001/apperror"
	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	trackingModel "github.com/jibzus/bluefleet-sub001/models/tracking"
	"github.com/jibzus/bluefleet-sub001/services/capability"
)

// RecordManual appends an administrator-entered position for an accepted charter
func (p *Poller) RecordManual(ctx context.Context, actor capability.Actor, bookingID string, pos trackingModel.Position) (*trackingModel.TrackingEvent, error) {
	if !actor.IsAdmin() {
		return nil, apperror.Authorization("only an administrator can record positions manually")
	}
	if !pos.Valid() {
		return nil, apperror.Validation("latitude must be within [-90, 90] and longitude within [-180, 180]")
	}

	b, err := p.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err, "booking %s", bookingID)
	}
	if b.Status != booking.BookingStatusAccepted {
		return nil, apperror.State("booking %s is %s, positions are recorded for ACCEPTED charters only", b.ID, b.Status)
	}

	current := p.Now()
	if pos.RecordedAt.After(current) {
		return nil, apperror.Validation("recorded_at cannot be in the future")
	}

	ev := p.newEvent(*b, pos, "manual", actor.ID, current)
	if err := p.store.AppendTrackingEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("append tracking event: %w", err)
	}
	logger.Info(fmt.Sprintf("Manual position recorded for booking %s by %s", b.ID, actor.ID))
	return ev, nil
}

// Events lists a charter's positions in time order, limited to one UTC day when day is set
func (p *Poller) Events(ctx context.Context, actor capability.Actor, bookingID string, day *time.Time) ([]trackingModel.TrackingEvent, error) {
	if err := p.authorizeView(ctx, actor, bookingID); err != nil {
		return nil, err
	}

	var from, to time.Time
	if day != nil {
		d := now.New(day.UTC())
		from = d.BeginningOfDay()
		to = d.EndOfDay().Add(time.Nanosecond)
	}
	events, err := p.store.ListTrackingEvents(ctx, bookingID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list tracking events: %w", err)
	}
	if events == nil {
		events = []trackingModel.TrackingEvent{}
	}
	return events, nil
}

func (p *Poller) Latest(ctx context.Context, actor capability.Actor, bookingID string) (*trackingModel.TrackingEvent, error) {
	if err := p.authorizeView(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	ev, err := p.store.LatestTrackingEvent(ctx, bookingID)
	if err != nil {
		return nil, storeError(err, "position for booking %s", bookingID)
	}
	return ev, nil
}

func (p *Poller) authorizeView(ctx context.Context, actor capability.Actor, bookingID string) error {
	b, err := p.store.GetBooking(ctx, bookingID)
	if err != nil {
		return storeError(err, "booking %s", bookingID)
	}
	if !capability.ForBooking(actor, b).CanView() {
		return apperror.Authorization("only the parties or an administrator can view tracking")
	}
	return nil
}

func storeError(err error, format string, args ...interface{}) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperror.NotFound(format+" not found", args...)
	}
	return fmt.Errorf("load "+format+": %w", append(args, err)...)
}
