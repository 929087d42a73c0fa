// Package escrow is the ledger for charter payments: PENDING until a provider
// confirms payment, FUNDED until release, RELEASED afterwards. It authorizes
// transitions only; payouts run elsewhere on escrow.released.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jibzus/bluefleet-sub001/apperror"
	"github.com/jibzus/bluefleet-sub001/broker"
	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/logger"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	escrowModel "github.com/jibzus/bluefleet-sub001/models/escrow"
	"github.com/jibzus/bluefleet-sub001/services/capability"
)

type Store interface {
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	GetEscrow(ctx context.Context, id string) (*escrowModel.Escrow, error)
	GetEscrowByBooking(ctx context.Context, bookingID string) (*escrowModel.Escrow, error)
	MarkFunded(ctx context.Context, escrowID string, ev *escrowModel.Event) (*escrowModel.Escrow, bool, error)
	MarkReleased(ctx context.Context, escrowID string, ev *escrowModel.Event) (*escrowModel.Escrow, error)
	RecordDispute(ctx context.Context, escrowID string, ev *escrowModel.Event) (*escrowModel.Escrow, error)
}

// PaymentConfirmed is the provider-neutral funded event produced by webhook ingestion
type PaymentConfirmed struct {
	EscrowID          string
	Provider          string
	ProviderReference string
}

type Service struct {
	store     Store
	publisher broker.Publisher

	Now func() time.Time
}

func NewService(store Store, publisher broker.Publisher) *Service {
	if publisher == nil {
		publisher = broker.Noop{}
	}
	return &Service{store: store, publisher: publisher, Now: time.Now}
}

// ApplyPaymentConfirmed funds a PENDING escrow. Confirmations for an escrow that
// is already FUNDED or RELEASED are acknowledged without any change and report
// applied=false. An unknown escrow is a NotVisible error so the provider retries.
func (s *Service) ApplyPaymentConfirmed(ctx context.Context, ev PaymentConfirmed) (*escrowModel.Escrow, bool, error) {
	if strings.TrimSpace(ev.EscrowID) == "" {
		return nil, false, apperror.Validation("payment confirmation carries no escrow id")
	}

	e, applied, err := s.store.MarkFunded(ctx, ev.EscrowID, &escrowModel.Event{
		ActorID:           "provider:" + ev.Provider,
		Provider:          ev.Provider,
		ProviderReference: ev.ProviderReference,
		CreatedAt:         s.Now(),
	})
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, apperror.NotVisible("escrow %s is not visible yet", ev.EscrowID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("fund escrow %s: %w", ev.EscrowID, err)
	}

	if !applied {
		logger.Info(fmt.Sprintf("Escrow %s already %s, duplicate confirmation %s/%s ignored", e.ID, e.Status, ev.Provider, ev.ProviderReference))
		return e, false, nil
	}

	logger.Success(fmt.Sprintf("Escrow %s funded via %s (%s)", e.ID, ev.Provider, ev.ProviderReference))
	s.publish(ctx, broker.EscrowFunded, map[string]interface{}{
		"escrow_id":          e.ID,
		"booking_id":         e.BookingID,
		"provider":           ev.Provider,
		"provider_reference": ev.ProviderReference,
		"funded_at":          e.FundedAt,
	})
	return e, true, nil
}

// Release authorizes payout of a FUNDED escrow. Before the charter ends only an
// administrator may release.
func (s *Service) Release(ctx context.Context, actor capability.Actor, escrowID, reason string) (*escrowModel.Escrow, error) {
	e, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, storeError(err, "escrow %s", escrowID)
	}
	if e.Status != escrowModel.EscrowStatusFunded {
		return nil, apperror.State("escrow %s is %s, only FUNDED escrows can be released", e.ID, e.Status)
	}

	b, err := s.store.GetBooking(ctx, e.BookingID)
	if err != nil {
		return nil, storeError(err, "booking %s", e.BookingID)
	}
	caps := capability.ForBooking(actor, b)
	if !caps.CanView() {
		return nil, apperror.Authorization("only the parties or an administrator can release escrow")
	}

	now := s.Now()
	if now.Before(b.EndAt) && !caps.IsAdmin {
		return nil, apperror.EarlyRelease("charter ends at %s, only an administrator can release before then", b.EndAt.Format(time.RFC3339))
	}

	released, err := s.store.MarkReleased(ctx, e.ID, &escrowModel.Event{
		ActorID:   actor.ID,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: now,
	})
	switch {
	case errors.Is(err, database.ErrStaleWrite):
		return nil, apperror.State("escrow %s is no longer FUNDED", e.ID)
	case err != nil:
		return nil, storeError(err, "escrow %s", e.ID)
	}

	logger.Success(fmt.Sprintf("Escrow %s released by %s", released.ID, actor.ID))
	s.publish(ctx, broker.EscrowReleased, map[string]interface{}{
		"escrow_id":          released.ID,
		"booking_id":         released.BookingID,
		"released_by":        actor.ID,
		"early":              now.Before(b.EndAt),
		"amount_minor":       released.AmountMinor,
		"platform_fee_minor": released.PlatformFeeMinor,
		"currency":           released.Currency,
	})
	return released, nil
}

// Dispute logs a disputed entry on a FUNDED escrow without moving its status
func (s *Service) Dispute(ctx context.Context, actor capability.Actor, escrowID, reason string) (*escrowModel.Escrow, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("a dispute needs a reason")
	}

	e, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, storeError(err, "escrow %s", escrowID)
	}
	b, err := s.store.GetBooking(ctx, e.BookingID)
	if err != nil {
		return nil, storeError(err, "booking %s", e.BookingID)
	}
	if !capability.ForBooking(actor, b).CanView() {
		return nil, apperror.Authorization("only the parties or an administrator can dispute escrow")
	}
	if e.Status != escrowModel.EscrowStatusFunded {
		return nil, apperror.State("escrow %s is %s, only FUNDED escrows can be disputed", e.ID, e.Status)
	}

	disputed, err := s.store.RecordDispute(ctx, e.ID, &escrowModel.Event{
		ActorID:   actor.ID,
		Reason:    reason,
		CreatedAt: s.Now(),
	})
	switch {
	case errors.Is(err, database.ErrStaleWrite):
		return nil, apperror.State("escrow %s is no longer FUNDED", e.ID)
	case err != nil:
		return nil, storeError(err, "escrow %s", e.ID)
	}

	logger.Warning(fmt.Sprintf("Escrow %s disputed by %s: %s", e.ID, actor.ID, reason))
	return disputed, nil
}

func (s *Service) Get(ctx context.Context, actor capability.Actor, escrowID string) (*escrowModel.Escrow, error) {
	e, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, storeError(err, "escrow %s", escrowID)
	}
	if err := s.authorizeView(ctx, actor, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) GetByBooking(ctx context.Context, actor capability.Actor, bookingID string) (*escrowModel.Escrow, error) {
	e, err := s.store.GetEscrowByBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err, "escrow for booking %s", bookingID)
	}
	if err := s.authorizeView(ctx, actor, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) authorizeView(ctx context.Context, actor capability.Actor, e *escrowModel.Escrow) error {
	if actor.IsAdmin() {
		return nil
	}
	b, err := s.store.GetBooking(ctx, e.BookingID)
	if err != nil {
		return storeError(err, "booking %s", e.BookingID)
	}
	if !capability.ForBooking(actor, b).CanView() {
		return apperror.Authorization("not a party to escrow %s", e.ID)
	}
	return nil
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
