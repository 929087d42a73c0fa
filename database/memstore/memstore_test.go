package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/jibzus/bluefleet-sub001/models/contract"
	"github.com/jibzus/bluefleet-sub001/models/escrow"
	"github.com/jibzus/bluefleet-sub001/models/tracking"
	"github.com/jibzus/bluefleet-sub001/models/vessel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) *booking.Booking {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveVessel(ctx, &vessel.Vessel{ID: "v1", OwnerID: "owner", Name: "Aurora"}))
	b := &booking.Booking{
		ID: "b1", VesselID: "v1", OwnerID: "owner", OperatorID: "op",
		Window:         booking.Window{StartAt: t0, EndAt: t0.Add(48 * time.Hour)},
		Terms:          booking.Terms{Purpose: "offshore survey"},
		Status:         booking.BookingStatusRequested,
		LastModifiedBy: "op",
		Revision:       1,
		CreatedAt:      t0,
	}
	require.NoError(t, s.CreateBooking(ctx, b))
	return b
}

func TestUpdateBookingRejectsStaleRevision(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := seed(t, s)

	next := *b
	next.Status = booking.BookingStatusCountered
	next.Revision = 2
	require.NoError(t, s.UpdateBooking(ctx, &next, booking.BookingStatusRequested, 1))

	again := *b
	again.Status = booking.BookingStatusCancelled
	again.Revision = 2
	assert.ErrorIs(t, s.UpdateBooking(ctx, &again, booking.BookingStatusRequested, 1), database.ErrStaleWrite)

	history, err := s.ListBookingHistory(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, booking.BookingStatusCountered, history[1].ToStatus)
}

func TestConcurrentAcceptOnlyOneWins(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := seed(t, s)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := *b
			next.Status = booking.BookingStatusAccepted
			next.Revision = 2
			c := &contract.Contract{ID: "c" + string(rune('a'+i)), BookingID: b.ID, Status: contract.ContractStatusAwaitingSignatures}
			errs[i] = s.AcceptBooking(ctx, &next, booking.BookingStatusRequested, 1, true, c)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, database.ErrStaleWrite)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestAcceptDetectsOverlap(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := seed(t, s)

	accepted := *b
	accepted.Status = booking.BookingStatusAccepted
	accepted.Revision = 2
	require.NoError(t, s.AcceptBooking(ctx, &accepted, booking.BookingStatusRequested, 1, true, &contract.Contract{ID: "c1", BookingID: b.ID}))

	other := &booking.Booking{
		ID: "b2", VesselID: "v1", OwnerID: "owner", OperatorID: "op2",
		Window:   booking.Window{StartAt: t0.Add(24 * time.Hour), EndAt: t0.Add(72 * time.Hour)},
		Status:   booking.BookingStatusRequested,
		Revision: 1,
	}
	require.NoError(t, s.CreateBooking(ctx, other))

	next := *other
	next.Status = booking.BookingStatusAccepted
	next.Revision = 2
	err := s.AcceptBooking(ctx, &next, booking.BookingStatusRequested, 1, true, &contract.Contract{ID: "c2", BookingID: other.ID})
	assert.ErrorIs(t, err, database.ErrOverlap)

	require.NoError(t, s.AcceptBooking(ctx, &next, booking.BookingStatusRequested, 1, false, &contract.Contract{ID: "c2", BookingID: other.ID}))
}

func TestAddSignatureOpensEscrowOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := seed(t, s)
	accepted := *b
	accepted.Status = booking.BookingStatusAccepted
	accepted.Revision = 2
	require.NoError(t, s.AcceptBooking(ctx, &accepted, booking.BookingStatusRequested, 1, true,
		&contract.Contract{ID: "c1", BookingID: b.ID, OwnerID: "owner", OperatorID: "op", Status: contract.ContractStatusAwaitingSignatures}))

	c, executed, err := s.AddSignature(ctx, "c1", &contract.Signature{SignerID: "owner", Role: contract.SignerRoleOwner, SignedAt: t0},
		&escrow.Escrow{ID: "e1", Status: escrow.EscrowStatusPending})
	require.NoError(t, err)
	assert.False(t, executed)
	assert.Nil(t, c.SignedAt)

	_, _, err = s.AddSignature(ctx, "c1", &contract.Signature{SignerID: "owner", SignedAt: t0}, &escrow.Escrow{ID: "e1"})
	assert.ErrorIs(t, err, database.ErrDuplicateSigner)

	c, executed, err = s.AddSignature(ctx, "c1", &contract.Signature{SignerID: "op", Role: contract.SignerRoleOperator, SignedAt: t0.Add(time.Hour)},
		&escrow.Escrow{ID: "e1", Status: escrow.EscrowStatusPending})
	require.NoError(t, err)
	assert.True(t, executed)
	require.NotNil(t, c.SignedAt)
	require.NotNil(t, c.EscrowID)
	assert.Equal(t, "e1", *c.EscrowID)

	_, _, err = s.AddSignature(ctx, "c1", &contract.Signature{SignerID: "third", SignedAt: t0}, &escrow.Escrow{ID: "e2"})
	assert.ErrorIs(t, err, database.ErrContractSealed)

	e, err := s.GetEscrowByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "e1", e.ID)
}

func TestMarkFundedIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.escrows["e1"] = escrow.Escrow{ID: "e1", BookingID: "b1", Status: escrow.EscrowStatusPending}

	e, applied, err := s.MarkFunded(ctx, "e1", &escrow.Event{Provider: "paystack", ProviderReference: "ref", CreatedAt: t0})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, escrow.EscrowStatusFunded, e.Status)

	e, applied, err = s.MarkFunded(ctx, "e1", &escrow.Event{Provider: "paystack", ProviderReference: "ref", CreatedAt: t0})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Len(t, e.Events, 1)

	_, _, err = s.MarkFunded(ctx, "missing", &escrow.Event{CreatedAt: t0})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRecordDisputeOnlyWhileFunded(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.escrows["e1"] = escrow.Escrow{ID: "e1", BookingID: "b1", Status: escrow.EscrowStatusPending}

	_, err := s.RecordDispute(ctx, "e1", &escrow.Event{ActorID: "owner", Reason: "late", CreatedAt: t0})
	assert.ErrorIs(t, err, database.ErrStaleWrite)

	_, _, err = s.MarkFunded(ctx, "e1", &escrow.Event{CreatedAt: t0})
	require.NoError(t, err)
	e, err := s.RecordDispute(ctx, "e1", &escrow.Event{ActorID: "owner", Reason: "late", CreatedAt: t0})
	require.NoError(t, err)
	require.Len(t, e.Events, 2)
	assert.Equal(t, escrow.EventDisputed, e.Events[1].Type)

	_, err = s.MarkReleased(ctx, "e1", &escrow.Event{ActorID: "admin", CreatedAt: t0})
	require.NoError(t, err)
	_, err = s.RecordDispute(ctx, "e1", &escrow.Event{ActorID: "owner", Reason: "again", CreatedAt: t0})
	assert.ErrorIs(t, err, database.ErrStaleWrite)

	_, err = s.RecordDispute(ctx, "missing", &escrow.Event{CreatedAt: t0})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestTrackingEventsOrderedAndBounded(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, h := range []int{3, 1, 2} {
		require.NoError(t, s.AppendTrackingEvent(ctx, &tracking.TrackingEvent{
			ID: "t" + string(rune('0'+h)), BookingID: "b1", RecordedAt: t0.Add(time.Duration(h) * time.Hour),
		}))
	}

	all, err := s.ListTrackingEvents(ctx, "b1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t1", all[0].ID)
	assert.Equal(t, "t3", all[2].ID)

	some, err := s.ListTrackingEvents(ctx, "b1", t0.Add(2*time.Hour), t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "t2", some[0].ID)

	latest, err := s.LatestTrackingEvent(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "t3", latest.ID)
}
