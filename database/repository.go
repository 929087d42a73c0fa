package database

import (
	"context"
	"errors"
	"time"

	"github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/jibzus/bluefleet-sub001/models/contract"
	"github.com/jibzus/bluefleet-sub001/models/escrow"
	logModel "github.com/jibzus/bluefleet-sub001/models/log"
	"github.com/jibzus/bluefleet-sub001/models/tracking"
	"github.com/jibzus/bluefleet-sub001/models/vessel"
	"github.com/jibzus/bluefleet-sub001/models/webhook"
)

// Store errors. Services translate them into apperror kinds.
var (
	ErrNotFound        = errors.New("record not found")
	ErrStaleWrite      = errors.New("record changed since it was read")
	ErrOverlap         = errors.New("vessel already chartered for an overlapping window")
	ErrDuplicateSigner = errors.New("signer already signed this contract")
	ErrContractSealed  = errors.New("contract is already fully signed")
)

// BookingFilter narrows ListBookings. Zero values mean no restriction.
type BookingFilter struct {
	PartyID  string
	VesselID string
	Status   booking.BookingStatus
	Limit    int
	Offset   int
}

// Trackable is a charter the poller should fetch a position for
type Trackable struct {
	Booking  booking.Booking
	Vessel   vessel.Vessel
	EscrowID string
}

// Repository is the full persistence surface. Postgres (Store) and the
// in-memory store (memstore) both implement it with the same semantics.
type Repository interface {
	GetVessel(ctx context.Context, id string) (*vessel.Vessel, error)
	SaveVessel(ctx context.Context, v *vessel.Vessel) error

	CreateBooking(ctx context.Context, b *booking.Booking) error
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]booking.Booking, error)
	// UpdateBooking writes b only if the stored row still has expectedRevision
	// and a negotiable status, and records the transition from "from".
	UpdateBooking(ctx context.Context, b *booking.Booking, from booking.BookingStatus, expectedRevision int) error
	// AcceptBooking is UpdateBooking plus the overlap check under a vessel lock
	// and the creation of c, all in one transaction.
	AcceptBooking(ctx context.Context, b *booking.Booking, from booking.BookingStatus, expectedRevision int, enforceOverlap bool, c *contract.Contract) error
	ListBookingHistory(ctx context.Context, bookingID string) ([]booking.BookingStatusEvent, error)

	GetContract(ctx context.Context, id string) (*contract.Contract, error)
	GetContractByBooking(ctx context.Context, bookingID string) (*contract.Contract, error)
	// AddSignature appends sig under a contract lock. When it completes the
	// contract, pending is inserted unless an escrow already exists for the
	// booking, and the contract is sealed and linked to it.
	AddSignature(ctx context.Context, contractID string, sig *contract.Signature, pending *escrow.Escrow) (*contract.Contract, bool, error)

	GetEscrow(ctx context.Context, id string) (*escrow.Escrow, error)
	GetEscrowByBooking(ctx context.Context, bookingID string) (*escrow.Escrow, error)
	// MarkFunded moves PENDING to FUNDED and logs ev. It reports false, without
	// error, when the escrow was already funded or released.
	MarkFunded(ctx context.Context, escrowID string, ev *escrow.Event) (*escrow.Escrow, bool, error)
	MarkReleased(ctx context.Context, escrowID string, ev *escrow.Event) (*escrow.Escrow, error)
	// RecordDispute logs a disputed entry while the escrow is FUNDED and returns
	// ErrStaleWrite once it has moved on.
	RecordDispute(ctx context.Context, escrowID string, ev *escrow.Event) (*escrow.Escrow, error)

	ListTrackable(ctx context.Context, now time.Time) ([]Trackable, error)
	AppendTrackingEvent(ctx context.Context, ev *tracking.TrackingEvent) error
	// ListTrackingEvents returns events in [from, to) ordered by time. Zero bounds are open.
	ListTrackingEvents(ctx context.Context, bookingID string, from, to time.Time) ([]tracking.TrackingEvent, error)
	LatestTrackingEvent(ctx context.Context, bookingID string) (*tracking.TrackingEvent, error)

	SaveWebhookReceipt(ctx context.Context, r *webhook.Receipt) error
	SaveRequestLog(ctx context.Context, l *logModel.Log) error
}
