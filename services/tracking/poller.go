// Package tracking records vessel positions for active charters. A scheduler
// triggers Run; each tick fetches one AIS fix per eligible booking.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	trackingModel "github.com/jibzus/bluefleet-sub001/models/tracking"
	"github.com/jibzus/bluefleet-sub001/obs"
)

type Store interface {
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	ListTrackable(ctx context.Context, now time.Time) ([]database.Trackable, error)
	AppendTrackingEvent(ctx context.Context, ev *trackingModel.TrackingEvent) error
	ListTrackingEvents(ctx context.Context, bookingID string, from, to time.Time) ([]trackingModel.TrackingEvent, error)
	LatestTrackingEvent(ctx context.Context, bookingID string) (*trackingModel.TrackingEvent, error)
}

// PositionSource returns nil, nil when it has no fix for the identifier
type PositionSource interface {
	FetchVesselPosition(ctx context.Context, identifier string) (*trackingModel.Position, error)
}

type Result string

const (
	ResultTracked Result = "tracked"
	ResultSkipped Result = "skipped"
	ResultNoData  Result = "no_data"
	ResultFailed  Result = "failed"
)

const reasonTimeout = "timeout"

type Outcome struct {
	BookingID string `json:"booking_id"`
	VesselID  string `json:"vessel_id"`
	Result    Result `json:"result"`
	Reason    string `json:"reason,omitempty"`
	EventID   string `json:"event_id,omitempty"`
}

type Summary struct {
	Eligible   int       `json:"eligible"`
	Tracked    int       `json:"tracked"`
	Skipped    int       `json:"skipped"`
	NoData     int       `json:"no_data"`
	Failed     int       `json:"failed"`
	Outcomes   []Outcome `json:"outcomes"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Poller struct {
	store        Store
	source       PositionSource
	sourceName   string
	workers      int
	fetchTimeout time.Duration
	tickDeadline time.Duration
	ticks        singleflight.Group

	Now func() time.Time
}

func NewPoller(store Store, source PositionSource, cfg config.TrackingConfig) *Poller {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	name := cfg.Source
	if name == "" {
		name = "ais"
	}
	return &Poller{
		store:        store,
		source:       source,
		sourceName:   name,
		workers:      workers,
		fetchTimeout: cfg.FetchTimeout,
		tickDeadline: cfg.TickDeadline,
		Now:          time.Now,
	}
}

// Run executes one tick. A trigger that arrives while a tick is running
// receives that tick's summary instead of starting another.
func (p *Poller) Run(ctx context.Context) (*Summary, error) {
	v, err, shared := p.ticks.Do("tick", func() (interface{}, error) {
		return p.tick(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("Tracking trigger joined the in-flight tick")
	}
	return v.(*Summary), nil
}

func (p *Poller) tick(parent context.Context) (*Summary, error) {
	// the tick outlives the triggering request; only the deadline bounds it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), p.tickDeadline)
	defer cancel()
	ctx, span := obs.Tracer().Start(ctx, "tracking.tick")
	defer span.End()

	now := p.Now()
	items, err := p.store.ListTrackable(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list trackable bookings: %w", err)
	}

	outcomes := make([]Outcome, len(items))
	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for i, item := range items {
		i, item := i, item
		if ctx.Err() != nil {
			outcomes[i] = failed(item, reasonTimeout)
			continue
		}
		g.Go(func() error {
			outcomes[i] = p.track(ctx, item, now)
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{Eligible: len(items), Outcomes: outcomes, StartedAt: now, FinishedAt: p.Now()}
	for _, o := range outcomes {
		switch o.Result {
		case ResultTracked:
			summary.Tracked++
		case ResultSkipped:
			summary.Skipped++
		case ResultNoData:
			summary.NoData++
		default:
			summary.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("tracking.eligible", summary.Eligible),
		attribute.Int("tracking.tracked", summary.Tracked),
		attribute.Int("tracking.failed", summary.Failed),
	)
	logger.Info(fmt.Sprintf("Tracking tick: eligible=%d tracked=%d skipped=%d no_data=%d failed=%d",
		summary.Eligible, summary.Tracked, summary.Skipped, summary.NoData, summary.Failed))
	return summary, nil
}

type fetchResult struct {
	pos *trackingModel.Position
	err error
}

// track never returns an error; every problem becomes the booking's outcome
func (p *Poller) track(ctx context.Context, item database.Trackable, now time.Time) Outcome {
	identifier := item.Vessel.Specs.AISIdentifier()
	if identifier == "" {
		return Outcome{BookingID: item.Booking.ID, VesselID: item.Booking.VesselID, Result: ResultSkipped, Reason: "vessel has no AIS identifier"}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	// a source that ignores its context must not hold the tick past its deadline
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("position source panicked: %v", r)}
			}
		}()
		pos, err := p.source.FetchVesselPosition(fetchCtx, identifier)
		done <- fetchResult{pos: pos, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-fetchCtx.Done():
		return failed(item, reasonTimeout)
	}

	switch {
	case res.err != nil:
		if errors.Is(res.err, context.DeadlineExceeded) || fetchCtx.Err() != nil {
			return failed(item, reasonTimeout)
		}
		logger.Warning(fmt.Sprintf("AIS fetch for booking %s failed: %v", item.Booking.ID, res.err))
		return failed(item, res.err.Error())
	case res.pos == nil:
		return Outcome{BookingID: item.Booking.ID, VesselID: item.Booking.VesselID, Result: ResultNoData}
	case !res.pos.Valid():
		return failed(item, fmt.Sprintf("position out of range (%f, %f)", res.pos.Latitude, res.pos.Longitude))
	}

	ev := p.newEvent(item.Booking, *res.pos, p.sourceName, "system:tracking-poller", now)
	if err := p.store.AppendTrackingEvent(ctx, ev); err != nil {
		logger.Error(fmt.Sprintf("Failed to append tracking event for booking %s", item.Booking.ID), err)
		return failed(item, "store: "+err.Error())
	}
	return Outcome{BookingID: item.Booking.ID, VesselID: item.Booking.VesselID, Result: ResultTracked, EventID: ev.ID}
}

func (p *Poller) newEvent(b booking.Booking, pos trackingModel.Position, source, createdBy string, now time.Time) *trackingModel.TrackingEvent {
	recordedAt := pos.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = now
	}
	return &trackingModel.TrackingEvent{
		ID:         uuid.NewString(),
		VesselID:   b.VesselID,
		BookingID:  b.ID,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		RecordedAt: recordedAt.UTC(),
		Source:     source,
		Metadata:   pos.Metadata,
		CreatedBy:  createdBy,
		CreatedAt:  now,
	}
}

func failed(item database.Trackable, reason string) Outcome {
	return Outcome{BookingID: item.Booking.ID, VesselID: item.Booking.VesselID, Result: ResultFailed, Reason: reason}
}
