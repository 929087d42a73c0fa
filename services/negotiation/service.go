// Package negotiation owns the booking state machine:
// REQUESTED and COUNTERED until one party accepts or anyone with standing cancels.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jibzus/bluefleet-sub001/apperror"
	"github.com/jibzus/bluefleet-sub001/broker"
	"github.com/jibzus/bluefleet-sub001/config"
	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/jibzus/bluefleet-sub001/models/contract"
	"github.com/jibzus/bluefleet-sub001/models/vessel"
	"github.com/jibzus/bluefleet-sub001/services/capability"
)

type Store interface {
	GetVessel(ctx context.Context, id string) (*vessel.Vessel, error)
	CreateBooking(ctx context.Context, b *booking.Booking) error
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	ListBookings(ctx context.Context, f database.BookingFilter) ([]booking.Booking, error)
	UpdateBooking(ctx context.Context, b *booking.Booking, from booking.BookingStatus, expectedRevision int) error
	AcceptBooking(ctx context.Context, b *booking.Booking, from booking.BookingStatus, expectedRevision int, enforceOverlap bool, c *contract.Contract) error
	ListBookingHistory(ctx context.Context, bookingID string) ([]booking.BookingStatusEvent, error)
}

type Service struct {
	store     Store
	publisher broker.Publisher
	cfg       *config.Config

	// Now is the clock used for every time check
	Now func() time.Time
}

func NewService(store Store, cfg *config.Config, publisher broker.Publisher) *Service {
	if publisher == nil {
		publisher = broker.Noop{}
	}
	return &Service{store: store, publisher: publisher, cfg: cfg, Now: time.Now}
}

type ProposeInput struct {
	VesselID   string
	Window     booking.Window
	Terms      booking.Terms
	PriceMinor *int64
	Currency   string
}

// TermsPatch carries the term fields a counter replaces. Nil fields keep their value.
type TermsPatch struct {
	Purpose *string
	Clauses *[]string
	Crew    *string
	Cargo   *string
	Route   *string
}

func (p *TermsPatch) empty() bool {
	return p == nil || (p.Purpose == nil && p.Clauses == nil && p.Crew == nil && p.Cargo == nil && p.Route == nil)
}

type CounterInput struct {
	StartAt    *time.Time
	EndAt      *time.Time
	Terms      *TermsPatch
	PriceMinor *int64
	Currency   string
}

func (in CounterInput) empty() bool {
	return in.StartAt == nil && in.EndAt == nil && in.Terms.empty() && in.PriceMinor == nil
}

func (s *Service) validateWindow(w booking.Window, now time.Time) error {
	if w.StartAt.IsZero() || w.EndAt.IsZero() {
		return apperror.Validation("charter window start and end are required")
	}
	if !w.StartAt.After(now) {
		return apperror.Validation("charter window must start in the future")
	}
	if !w.EndAt.After(w.StartAt) {
		return apperror.Validation("charter window must end after it starts")
	}
	return nil
}

func (s *Service) validatePurpose(purpose string) error {
	min := s.cfg.Booking.MinPurposeLength
	if utf8.RuneCountInString(strings.TrimSpace(purpose)) < min {
		return apperror.Validation("purpose must be at least %d characters", min)
	}
	return nil
}

func (s *Service) validatePrice(price *int64, currency string) (string, error) {
	if price == nil {
		return currency, nil
	}
	if *price <= 0 {
		return "", apperror.Validation("price must be positive")
	}
	if *price > booking.MaxPriceMinor {
		return "", apperror.Validation("price must be at most %d minor units", booking.MaxPriceMinor)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.cfg.Platform.DefaultCurrency
	}
	if len(currency) != 3 {
		return "", apperror.Validation("currency must be an ISO 4217 code")
	}
	return currency, nil
}

// Propose creates a REQUESTED booking on behalf of an operator
func (s *Service) Propose(ctx context.Context, actor capability.Actor, in ProposeInput) (*booking.Booking, error) {
	now := s.Now()
	if actor.ID == "" {
		return nil, apperror.Authorization("an authenticated operator is required")
	}
	if strings.TrimSpace(in.VesselID) == "" {
		return nil, apperror.Validation("vessel_id is required")
	}
	if err := s.validateWindow(in.Window, now); err != nil {
		return nil, err
	}
	if err := s.validatePurpose(in.Terms.Purpose); err != nil {
		return nil, err
	}
	currency, err := s.validatePrice(in.PriceMinor, in.Currency)
	if err != nil {
		return nil, err
	}

	v, err := s.store.GetVessel(ctx, in.VesselID)
	if err != nil {
		return nil, storeError(err, "vessel %s", in.VesselID)
	}
	if v.OwnerID == actor.ID {
		return nil, apperror.Validation("owners cannot charter their own vessel")
	}

	b := &booking.Booking{
		ID:             uuid.NewString(),
		VesselID:       v.ID,
		OperatorID:     actor.ID,
		OwnerID:        v.OwnerID,
		Window:         in.Window,
		Terms:          in.Terms,
		PriceMinor:     in.PriceMinor,
		Currency:       currency,
		Status:         booking.BookingStatusRequested,
		LastModifiedBy: actor.ID,
		Revision:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	b.Terms.Purpose = strings.TrimSpace(b.Terms.Purpose)
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	logger.Info(fmt.Sprintf("Booking %s proposed for vessel %s by %s", b.ID, b.VesselID, actor.ID))
	return b, nil
}

// Counter replaces part of the window or terms and hands the turn to the other party
func (s *Service) Counter(ctx context.Context, actor capability.Actor, bookingID string, in CounterInput) (*booking.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err, "booking %s", bookingID)
	}
	if !capability.ForBooking(actor, b).IsParty() {
		return nil, apperror.Authorization("only the vessel owner or the operator can counter")
	}
	if !b.Status.IsNegotiable() {
		return nil, apperror.State("booking %s is %s and can no longer be countered", b.ID, b.Status)
	}
	if in.empty() {
		return nil, apperror.Validation("a counter must change the window, terms or price")
	}

	now := s.Now()
	if in.StartAt != nil {
		b.StartAt = *in.StartAt
	}
	if in.EndAt != nil {
		b.EndAt = *in.EndAt
	}
	if err := s.validateWindow(b.Window, now); err != nil {
		return nil, err
	}
	if p := in.Terms; p != nil {
		if p.Purpose != nil {
			if err := s.validatePurpose(*p.Purpose); err != nil {
				return nil, err
			}
			b.Terms.Purpose = strings.TrimSpace(*p.Purpose)
		}
		if p.Clauses != nil {
			b.Terms.Clauses = append([]string(nil), (*p.Clauses)...)
		}
		if p.Crew != nil {
			b.Terms.Crew = *p.Crew
		}
		if p.Cargo != nil {
			b.Terms.Cargo = *p.Cargo
		}
		if p.Route != nil {
			b.Terms.Route = *p.Route
		}
	}
	if in.PriceMinor != nil {
		currency := in.Currency
		if currency == "" {
			currency = b.Currency
		}
		if currency, err = s.validatePrice(in.PriceMinor, currency); err != nil {
			return nil, err
		}
		b.PriceMinor = in.PriceMinor
		b.Currency = currency
	}

	from, rev := b.Status, b.Revision
	b.Status = booking.BookingStatusCountered
	b.LastModifiedBy = actor.ID
	b.Revision++
	b.UpdatedAt = now
	if err := s.store.UpdateBooking(ctx, b, from, rev); err != nil {
		return nil, s.writeError(ctx, err, b.ID)
	}

	logger.Info(fmt.Sprintf("Booking %s countered by %s (revision %d)", b.ID, actor.ID, b.Revision))
	return b, nil
}

// Accept closes negotiation and issues the contract in the same write
func (s *Service) Accept(ctx context.Context, actor capability.Actor, bookingID string) (*booking.Booking, *contract.Contract, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, storeError(err, "booking %s", bookingID)
	}
	if !capability.ForBooking(actor, b).IsParty() {
		return nil, nil, apperror.Authorization("only the vessel owner or the operator can accept")
	}
	if !b.Status.IsNegotiable() {
		return nil, nil, apperror.State("booking %s is %s and can no longer be accepted", b.ID, b.Status)
	}
	if actor.ID != b.Counterparty(b.LastModifiedBy) {
		return nil, nil, apperror.Authorization("the latest proposal is yours; the counterparty must accept it")
	}

	v, err := s.store.GetVessel(ctx, b.VesselID)
	if err != nil {
		return nil, nil, storeError(err, "vessel %s", b.VesselID)
	}
	if !v.Covers(b.Window) {
		return nil, nil, apperror.Conflict("vessel %s is not available for the whole charter window", v.ID)
	}

	now := s.Now()
	c := &contract.Contract{
		ID:         uuid.NewString(),
		BookingID:  b.ID,
		OwnerID:    b.OwnerID,
		OperatorID: b.OperatorID,
		Status:     contract.ContractStatusAwaitingSignatures,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	from, rev := b.Status, b.Revision
	b.Status = booking.BookingStatusAccepted
	b.LastModifiedBy = actor.ID
	b.Revision++
	b.UpdatedAt = now
	err = s.store.AcceptBooking(ctx, b, from, rev, s.cfg.Features.EnforceOverlapCheck, c)
	switch {
	case errors.Is(err, database.ErrOverlap):
		return nil, nil, apperror.Conflict("vessel %s already has an accepted booking overlapping this window", b.VesselID)
	case err != nil:
		return nil, nil, s.writeError(ctx, err, b.ID)
	}

	logger.Success(fmt.Sprintf("Booking %s accepted by %s, contract %s issued", b.ID, actor.ID, c.ID))
	s.publish(ctx, broker.BookingAccepted, map[string]interface{}{
		"booking_id":  b.ID,
		"contract_id": c.ID,
		"vessel_id":   b.VesselID,
		"owner_id":    b.OwnerID,
		"operator_id": b.OperatorID,
		"start_at":    b.StartAt,
		"end_at":      b.EndAt,
	})
	return b, c, nil
}

// Cancel ends a non-terminal booking
func (s *Service) Cancel(ctx context.Context, actor capability.Actor, bookingID string) (*booking.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err, "booking %s", bookingID)
	}
	if !capability.ForBooking(actor, b).CanView() {
		return nil, apperror.Authorization("only the parties or an administrator can cancel")
	}
	if b.Status.IsTerminal() {
		return nil, apperror.State("booking %s is already %s", b.ID, b.Status)
	}

	from, rev := b.Status, b.Revision
	b.Status = booking.BookingStatusCancelled
	b.LastModifiedBy = actor.ID
	b.Revision++
	b.UpdatedAt = s.Now()
	if err := s.store.UpdateBooking(ctx, b, from, rev); err != nil {
		return nil, s.writeError(ctx, err, b.ID)
	}

	logger.Info(fmt.Sprintf("Booking %s cancelled by %s", b.ID, actor.ID))
	return b, nil
}

func (s *Service) Get(ctx context.Context, actor capability.Actor, bookingID string) (*booking.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err, "booking %s", bookingID)
	}
	if !capability.ForBooking(actor, b).CanView() {
		return nil, apperror.Authorization("not a party to booking %s", b.ID)
	}
	return b, nil
}

// List returns the actor's bookings. Administrators see every booking.
func (s *Service) List(ctx context.Context, actor capability.Actor, f database.BookingFilter) ([]booking.Booking, error) {
	if !actor.IsAdmin() {
		f.PartyID = actor.ID
	}
	if f.Status != "" && !f.Status.IsValid() {
		return nil, apperror.Validation("unknown status %q", f.Status)
	}
	return s.store.ListBookings(ctx, f)
}

func (s *Service) History(ctx context.Context, actor capability.Actor, bookingID string) ([]booking.BookingStatusEvent, error) {
	if _, err := s.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.store.ListBookingHistory(ctx, bookingID)
}

// writeError explains a failed conditional write by re-reading the booking
func (s *Service) writeError(ctx context.Context, err error, bookingID string) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperror.NotFound("booking or vessel not found")
	}
	if !errors.Is(err, database.ErrStaleWrite) {
		return fmt.Errorf("write booking %s: %w", bookingID, err)
	}
	cur, getErr := s.store.GetBooking(ctx, bookingID)
	if getErr == nil && cur.Status.IsTerminal() {
		return apperror.State("booking %s is already %s", bookingID, cur.Status)
	}
	return apperror.Conflict("booking %s was modified concurrently, reload and retry", bookingID)
}

func (s *Service) publish(ctx context.Context, key string, data interface{}) {
	if err := s.publisher.Publish(ctx, key, data); err != nil {
		logger.Warning(fmt.Sprintf("Failed to publish %s: %v", key, err))
	}
}

func storeError(err error, format string, args ...interface{}) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperror.NotFound(format+" not found", args...)
	}
	return fmt.Errorf("load "+format+": %w", append(args, err)...)
}
