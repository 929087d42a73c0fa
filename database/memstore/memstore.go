// Package memstore is an in-memory database.Repository for local runs and tests.
// It reproduces the conditional-write semantics of the Postgres store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/jibzus/bluefleet-sub001/models/contract"
	"github.com/jibzus/bluefleet-sub001/models/escrow"
	logModel "github.com/jibzus/bluefleet-sub001/models/log"
	"github.com/jibzus/bluefleet-sub001/models/tracking"
	"github.com/jibzus/bluefleet-sub001/models/vessel"
	"github.com/jibzus/bluefleet-sub001/models/webhook"
)

type Store struct {
	mu sync.RWMutex

	vessels   map[string]vessel.Vessel
	bookings  map[string]booking.Booking
	history   map[string][]booking.BookingStatusEvent
	contracts map[string]contract.Contract
	escrows   map[string]escrow.Escrow
	tracking  map[string][]tracking.TrackingEvent
	receipts  []webhook.Receipt
	logs      []logModel.Log

	nextID uint
}

var _ database.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		vessels:   make(map[string]vessel.Vessel),
		bookings:  make(map[string]booking.Booking),
		history:   make(map[string][]booking.BookingStatusEvent),
		contracts: make(map[string]contract.Contract),
		escrows:   make(map[string]escrow.Escrow),
		tracking:  make(map[string][]tracking.TrackingEvent),
	}
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func copyBooking(b booking.Booking) booking.Booking {
	b.Terms.Clauses = append([]string(nil), b.Terms.Clauses...)
	if b.PriceMinor != nil {
		p := *b.PriceMinor
		b.PriceMinor = &p
	}
	return b
}

func copyContract(c contract.Contract) contract.Contract {
	c.Signatures = append([]contract.Signature(nil), c.Signatures...)
	return c
}

func copyEscrow(e escrow.Escrow) escrow.Escrow {
	e.Events = append([]escrow.Event(nil), e.Events...)
	return e
}

/*=============================================================================
| Vessels
===============================================================================*/

func (s *Store) GetVessel(_ context.Context, id string) (*vessel.Vessel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vessels[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	v.Availability = append([]vessel.AvailabilityWindow(nil), v.Availability...)
	return &v, nil
}

func (s *Store) SaveVessel(_ context.Context, v *vessel.Vessel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	cp.Availability = make([]vessel.AvailabilityWindow, len(v.Availability))
	for i, w := range v.Availability {
		w.ID = s.id()
		w.VesselID = v.ID
		cp.Availability[i] = w
	}
	sort.Slice(cp.Availability, func(i, j int) bool {
		return cp.Availability[i].StartAt.Before(cp.Availability[j].StartAt)
	})
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.vessels[v.ID] = cp
	return nil
}

/*=============================================================================
| Bookings
===============================================================================*/

func (s *Store) CreateBooking(_ context.Context, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return database.ErrStaleWrite
	}
	s.bookings[b.ID] = copyBooking(*b)
	s.appendHistory(b, "")
	return nil
}

func (s *Store) appendHistory(b *booking.Booking, from booking.BookingStatus) {
	ev := booking.NewStatusEvent(b, from, b.LastModifiedBy)
	ev.ID = s.id()
	s.history[b.ID] = append(s.history[b.ID], ev)
}

func (s *Store) GetBooking(_ context.Context, id string) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := copyBooking(b)
	return &cp, nil
}

func (s *Store) ListBookings(_ context.Context, f database.BookingFilter) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []booking.Booking
	for _, b := range s.bookings {
		if f.PartyID != "" && b.OwnerID != f.PartyID && b.OperatorID != f.PartyID {
			continue
		}
		if f.VesselID != "" && b.VesselID != f.VesselID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, copyBooking(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) updateNegotiable(b *booking.Booking, from booking.BookingStatus, expectedRevision int) error {
	cur, ok := s.bookings[b.ID]
	if !ok || cur.Revision != expectedRevision || !cur.Status.IsNegotiable() {
		return database.ErrStaleWrite
	}
	next := copyBooking(*b)
	next.CreatedAt = cur.CreatedAt
	next.VesselID, next.OwnerID, next.OperatorID = cur.VesselID, cur.OwnerID, cur.OperatorID
	s.bookings[b.ID] = next
	s.appendHistory(b, from)
	return nil
}

func (s *Store) UpdateBooking(_ context.Context, b *booking.Booking, from booking.BookingStatus, expectedRevision int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateNegotiable(b, from, expectedRevision)
}

func (s *Store) AcceptBooking(_ context.Context, b *booking.Booking, from booking.BookingStatus, expectedRevision int, enforceOverlap bool, c *contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vessels[b.VesselID]; !ok {
		return database.ErrNotFound
	}
	if enforceOverlap {
		for _, other := range s.bookings {
			if other.ID == b.ID || other.VesselID != b.VesselID || other.Status != booking.BookingStatusAccepted {
				continue
			}
			if b.Window.Overlaps(other.Window) {
				return database.ErrOverlap
			}
		}
	}
	for _, existing := range s.contracts {
		if existing.BookingID == c.BookingID {
			return database.ErrStaleWrite
		}
	}
	if err := s.updateNegotiable(b, from, expectedRevision); err != nil {
		return err
	}
	s.contracts[c.ID] = copyContract(*c)
	return nil
}

func (s *Store) ListBookingHistory(_ context.Context, bookingID string) ([]booking.BookingStatusEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]booking.BookingStatusEvent(nil), s.history[bookingID]...), nil
}

/*=============================================================================
| Contracts
===============================================================================*/

func (s *Store) GetContract(_ context.Context, id string) (*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := copyContract(c)
	return &cp, nil
}

func (s *Store) GetContractByBooking(_ context.Context, bookingID string) (*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.contracts {
		if c.BookingID == bookingID {
			cp := copyContract(c)
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) escrowByBooking(bookingID string) (escrow.Escrow, bool) {
	for _, e := range s.escrows {
		if e.BookingID == bookingID {
			return e, true
		}
	}
	return escrow.Escrow{}, false
}

func (s *Store) AddSignature(_ context.Context, contractID string, sig *contract.Signature, pending *escrow.Escrow) (*contract.Contract, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[contractID]
	if !ok {
		return nil, false, database.ErrNotFound
	}
	if c.Status == contract.ContractStatusFullySigned {
		return nil, false, database.ErrContractSealed
	}
	if c.HasSigned(sig.SignerID) {
		return nil, false, database.ErrDuplicateSigner
	}

	c = copyContract(c)
	sig.ID = s.id()
	sig.ContractID = c.ID
	c.Signatures = append(c.Signatures, *sig)
	c.UpdatedAt = sig.SignedAt

	executed := c.IsExecuted()
	if executed {
		opened, exists := s.escrowByBooking(c.BookingID)
		if !exists {
			pending.BookingID = c.BookingID
			pending.ContractID = c.ID
			opened = copyEscrow(*pending)
			if opened.CreatedAt.IsZero() {
				opened.CreatedAt = sig.SignedAt
			}
			s.escrows[opened.ID] = opened
		}
		signedAt := sig.SignedAt
		escrowID := opened.ID
		c.Status = contract.ContractStatusFullySigned
		c.SignedAt = &signedAt
		c.EscrowID = &escrowID
	}
	s.contracts[c.ID] = c

	cp := copyContract(c)
	return &cp, executed, nil
}

/*=============================================================================
| Escrows
===============================================================================*/

func (s *Store) GetEscrow(_ context.Context, id string) (*escrow.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escrows[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := copyEscrow(e)
	return &cp, nil
}

func (s *Store) GetEscrowByBooking(_ context.Context, bookingID string) (*escrow.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escrowByBooking(bookingID)
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := copyEscrow(e)
	return &cp, nil
}

func (s *Store) MarkFunded(_ context.Context, escrowID string, ev *escrow.Event) (*escrow.Escrow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.escrows[escrowID]
	if !ok {
		return nil, false, database.ErrNotFound
	}
	if e.Status.IsFundedOrLater() {
		cp := copyEscrow(e)
		return &cp, false, nil
	}

	e = copyEscrow(e)
	at := ev.CreatedAt
	e.Status = escrow.EscrowStatusFunded
	e.FundedAt = &at
	e.Provider = ev.Provider
	e.ProviderReference = ev.ProviderReference
	e.UpdatedAt = at

	ev.ID = s.id()
	ev.EscrowID = escrowID
	ev.Type = escrow.EventFunded
	e.Events = append(e.Events, *ev)
	s.escrows[escrowID] = e

	cp := copyEscrow(e)
	return &cp, true, nil
}

func (s *Store) MarkReleased(_ context.Context, escrowID string, ev *escrow.Event) (*escrow.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.escrows[escrowID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if e.Status != escrow.EscrowStatusFunded {
		return nil, database.ErrStaleWrite
	}

	e = copyEscrow(e)
	at := ev.CreatedAt
	e.Status = escrow.EscrowStatusReleased
	e.ReleasedAt = &at
	e.ReleasedBy = ev.ActorID
	e.UpdatedAt = at

	ev.ID = s.id()
	ev.EscrowID = escrowID
	ev.Type = escrow.EventReleased
	e.Events = append(e.Events, *ev)
	s.escrows[escrowID] = e

	cp := copyEscrow(e)
	return &cp, nil
}

func (s *Store) RecordDispute(_ context.Context, escrowID string, ev *escrow.Event) (*escrow.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.escrows[escrowID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if e.Status != escrow.EscrowStatusFunded {
		return nil, database.ErrStaleWrite
	}
	e = copyEscrow(e)
	ev.ID = s.id()
	ev.EscrowID = escrowID
	ev.Type = escrow.EventDisputed
	e.Events = append(e.Events, *ev)
	s.escrows[escrowID] = e

	cp := copyEscrow(e)
	return &cp, nil
}

/*=============================================================================
| Tracking
===============================================================================*/

func (s *Store) ListTrackable(_ context.Context, now time.Time) ([]database.Trackable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []database.Trackable
	for _, b := range s.bookings {
		if b.Status != booking.BookingStatusAccepted || !b.Window.Includes(now) {
			continue
		}
		e, ok := s.escrowByBooking(b.ID)
		if !ok || e.Status != escrow.EscrowStatusFunded {
			continue
		}
		v, ok := s.vessels[b.VesselID]
		if !ok {
			v = vessel.Vessel{ID: b.VesselID}
		}
		out = append(out, database.Trackable{Booking: copyBooking(b), Vessel: v, EscrowID: e.ID})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Booking.StartAt.Equal(out[j].Booking.StartAt) {
			return out[i].Booking.ID < out[j].Booking.ID
		}
		return out[i].Booking.StartAt.Before(out[j].Booking.StartAt)
	})
	return out, nil
}

func (s *Store) AppendTrackingEvent(_ context.Context, ev *tracking.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	events := append(s.tracking[ev.BookingID], *ev)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].RecordedAt.Before(events[j].RecordedAt)
	})
	s.tracking[ev.BookingID] = events
	return nil
}

func (s *Store) ListTrackingEvents(_ context.Context, bookingID string, from, to time.Time) ([]tracking.TrackingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []tracking.TrackingEvent
	for _, ev := range s.tracking[bookingID] {
		if !from.IsZero() && ev.RecordedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !ev.RecordedAt.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) LatestTrackingEvent(_ context.Context, bookingID string) (*tracking.TrackingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.tracking[bookingID]
	if len(events) == 0 {
		return nil, database.ErrNotFound
	}
	ev := events[len(events)-1]
	return &ev, nil
}

/*=============================================================================
| Audit
===============================================================================*/

func (s *Store) SaveWebhookReceipt(_ context.Context, r *webhook.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	s.receipts = append(s.receipts, *r)
	return nil
}

// Receipts returns the recorded webhook receipts in arrival order
func (s *Store) Receipts() []webhook.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]webhook.Receipt(nil), s.receipts...)
}

func (s *Store) SaveRequestLog(_ context.Context, l *logModel.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.id()
	s.logs = append(s.logs, *l)
	return nil
}

// RequestLogs returns the stored request logs
func (s *Store) RequestLogs() []logModel.Log {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]logModel.Log(nil), s.logs...)
}
