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

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the Postgres repository
type Store struct {
	db *gorm.DB
}

var _ Repository = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return err
	}
}

/*=============================================================================
| Vessels
===============================================================================*/

func (s *Store) GetVessel(ctx context.Context, id string) (*vessel.Vessel, error) {
	var v vessel.Vessel
	err := s.db.WithContext(ctx).
		Preload("Availability", func(db *gorm.DB) *gorm.DB { return db.Order("start_at ASC") }).
		First(&v, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (s *Store) SaveVessel(ctx context.Context, v *vessel.Vessel) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Availability").Save(v).Error; err != nil {
			return err
		}
		if err := tx.Where("vessel_id = ?", v.ID).Delete(&vessel.AvailabilityWindow{}).Error; err != nil {
			return err
		}
		for i := range v.Availability {
			v.Availability[i].ID = 0
			v.Availability[i].VesselID = v.ID
		}
		if len(v.Availability) == 0 {
			return nil
		}
		return tx.Create(&v.Availability).Error
	})
}

/*=============================================================================
| Bookings
===============================================================================*/

var bookingWriteColumns = []string{
	"start_at", "end_at", "terms", "price_minor", "currency",
	"status", "last_modified_by", "revision", "updated_at",
}

func (s *Store) CreateBooking(ctx context.Context, b *booking.Booking) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(b).Error; err != nil {
			return err
		}
		ev := booking.NewStatusEvent(b, "", b.LastModifiedBy)
		return tx.Create(&ev).Error
	})
}

func (s *Store) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	var b booking.Booking
	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *Store) ListBookings(ctx context.Context, f BookingFilter) ([]booking.Booking, error) {
	q := s.db.WithContext(ctx).Model(&booking.Booking{})
	if f.PartyID != "" {
		q = q.Where("owner_id = ? OR operator_id = ?", f.PartyID, f.PartyID)
	}
	if f.VesselID != "" {
		q = q.Where("vessel_id = ?", f.VesselID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []booking.Booking
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// updateNegotiable is the conditional write shared by counter, cancel and accept
func updateNegotiable(tx *gorm.DB, b *booking.Booking, from booking.BookingStatus, expectedRevision int) error {
	res := tx.Model(b).
		Where("revision = ? AND status IN ?", expectedRevision, booking.NegotiableStatuses()).
		Select(bookingWriteColumns).
		Updates(b)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	ev := booking.NewStatusEvent(b, from, b.LastModifiedBy)
	return tx.Create(&ev).Error
}

func (s *Store) UpdateBooking(ctx context.Context, b *booking.Booking, from booking.BookingStatus, expectedRevision int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateNegotiable(tx, b, from, expectedRevision)
	})
}

func (s *Store) AcceptBooking(ctx context.Context, b *booking.Booking, from booking.BookingStatus, expectedRevision int, enforceOverlap bool, c *contract.Contract) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serializes accepts for the same vessel
		var v vessel.Vessel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&v, "id = ?", b.VesselID).Error; err != nil {
			return translate(err)
		}

		if enforceOverlap {
			var n int64
			err := tx.Model(&booking.Booking{}).
				Where("vessel_id = ? AND id <> ? AND status = ?", b.VesselID, b.ID, booking.BookingStatusAccepted).
				Where("start_at < ? AND end_at > ?", b.EndAt, b.StartAt).
				Count(&n).Error
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrOverlap
			}
		}

		if err := updateNegotiable(tx, b, from, expectedRevision); err != nil {
			return err
		}
		if err := tx.Omit("Signatures").Create(c).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrStaleWrite
			}
			return err
		}
		return nil
	})
}

func (s *Store) ListBookingHistory(ctx context.Context, bookingID string) ([]booking.BookingStatusEvent, error) {
	var out []booking.BookingStatusEvent
	err := s.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

/*=============================================================================
| Contracts
===============================================================================*/

func preloadSignatures(db *gorm.DB) *gorm.DB {
	return db.Order("signed_at ASC, id ASC")
}

func (s *Store) GetContract(ctx context.Context, id string) (*contract.Contract, error) {
	var c contract.Contract
	err := s.db.WithContext(ctx).Preload("Signatures", preloadSignatures).First(&c, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) GetContractByBooking(ctx context.Context, bookingID string) (*contract.Contract, error) {
	var c contract.Contract
	err := s.db.WithContext(ctx).Preload("Signatures", preloadSignatures).First(&c, "booking_id = ?", bookingID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) AddSignature(ctx context.Context, contractID string, sig *contract.Signature, pending *escrow.Escrow) (*contract.Contract, bool, error) {
	executed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c contract.Contract
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", contractID).Error; err != nil {
			return translate(err)
		}
		if c.Status == contract.ContractStatusFullySigned {
			return ErrContractSealed
		}
		if err := preloadSignatures(tx.Where("contract_id = ?", c.ID)).Find(&c.Signatures).Error; err != nil {
			return err
		}
		if c.HasSigned(sig.SignerID) {
			return ErrDuplicateSigner
		}

		sig.ContractID = c.ID
		if err := tx.Create(sig).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateSigner
			}
			return err
		}
		c.Signatures = append(c.Signatures, *sig)
		if !c.IsExecuted() {
			return nil
		}
		executed = true

		pending.BookingID = c.BookingID
		pending.ContractID = c.ID
		err := tx.Omit("Events").
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "booking_id"}}, DoNothing: true}).
			Create(pending).Error
		if err != nil {
			return err
		}
		var opened escrow.Escrow
		if err := tx.Select("id").First(&opened, "booking_id = ?", c.BookingID).Error; err != nil {
			return err
		}

		return tx.Model(&contract.Contract{}).
			Where("id = ? AND status = ?", c.ID, contract.ContractStatusAwaitingSignatures).
			Updates(map[string]interface{}{
				"status":     contract.ContractStatusFullySigned,
				"signed_at":  sig.SignedAt,
				"escrow_id":  opened.ID,
				"updated_at": sig.SignedAt,
			}).Error
	})
	if err != nil {
		return nil, false, err
	}

	c, err := s.GetContract(ctx, contractID)
	return c, executed, err
}

/*=============================================================================
| Escrows
===============================================================================*/

func preloadEvents(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func (s *Store) GetEscrow(ctx context.Context, id string) (*escrow.Escrow, error) {
	var e escrow.Escrow
	if err := s.db.WithContext(ctx).Preload("Events", preloadEvents).First(&e, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *Store) GetEscrowByBooking(ctx context.Context, bookingID string) (*escrow.Escrow, error) {
	var e escrow.Escrow
	if err := s.db.WithContext(ctx).Preload("Events", preloadEvents).First(&e, "booking_id = ?", bookingID).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *Store) MarkFunded(ctx context.Context, escrowID string, ev *escrow.Event) (*escrow.Escrow, bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&escrow.Escrow{}).
			Where("id = ? AND status = ?", escrowID, escrow.EscrowStatusPending).
			Updates(map[string]interface{}{
				"status":             escrow.EscrowStatusFunded,
				"funded_at":          ev.CreatedAt,
				"provider":           ev.Provider,
				"provider_reference": ev.ProviderReference,
				"updated_at":         ev.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&escrow.Escrow{}).Where("id = ?", escrowID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
			return nil
		}

		applied = true
		ev.EscrowID = escrowID
		ev.Type = escrow.EventFunded
		return tx.Create(ev).Error
	})
	if err != nil {
		return nil, false, err
	}

	e, err := s.GetEscrow(ctx, escrowID)
	return e, applied, err
}

func (s *Store) MarkReleased(ctx context.Context, escrowID string, ev *escrow.Event) (*escrow.Escrow, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&escrow.Escrow{}).
			Where("id = ? AND status = ?", escrowID, escrow.EscrowStatusFunded).
			Updates(map[string]interface{}{
				"status":      escrow.EscrowStatusReleased,
				"released_at": ev.CreatedAt,
				"released_by": ev.ActorID,
				"updated_at":  ev.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleWrite
		}
		ev.EscrowID = escrowID
		ev.Type = escrow.EventReleased
		return tx.Create(ev).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetEscrow(ctx, escrowID)
}

func (s *Store) RecordDispute(ctx context.Context, escrowID string, ev *escrow.Event) (*escrow.Escrow, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// holds off a concurrent release until the entry is written
		var e escrow.Escrow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").First(&e, "id = ?", escrowID).Error; err != nil {
			return translate(err)
		}
		if e.Status != escrow.EscrowStatusFunded {
			return ErrStaleWrite
		}
		ev.EscrowID = escrowID
		ev.Type = escrow.EventDisputed
		return tx.Create(ev).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetEscrow(ctx, escrowID)
}

/*=============================================================================
| Tracking
===============================================================================*/

func (s *Store) ListTrackable(ctx context.Context, now time.Time) ([]Trackable, error) {
	db := s.db.WithContext(ctx)

	var bookings []booking.Booking
	err := db.
		Where("status = ? AND start_at <= ? AND end_at > ?", booking.BookingStatusAccepted, now, now).
		Where("EXISTS (SELECT 1 FROM escrows e WHERE e.booking_id = bookings.id AND e.status = ?)", escrow.EscrowStatusFunded).
		Order("start_at ASC").
		Find(&bookings).Error
	if err != nil || len(bookings) == 0 {
		return nil, err
	}

	bookingIDs := make([]string, 0, len(bookings))
	vesselIDs := make([]string, 0, len(bookings))
	for _, b := range bookings {
		bookingIDs = append(bookingIDs, b.ID)
		vesselIDs = append(vesselIDs, b.VesselID)
	}

	var escrows []escrow.Escrow
	if err := db.Select("id", "booking_id").Where("booking_id IN ?", bookingIDs).Find(&escrows).Error; err != nil {
		return nil, err
	}
	escrowByBooking := make(map[string]string, len(escrows))
	for _, e := range escrows {
		escrowByBooking[e.BookingID] = e.ID
	}

	var vessels []vessel.Vessel
	if err := db.Where("id IN ?", vesselIDs).Find(&vessels).Error; err != nil {
		return nil, err
	}
	vesselByID := make(map[string]vessel.Vessel, len(vessels))
	for _, v := range vessels {
		vesselByID[v.ID] = v
	}

	out := make([]Trackable, 0, len(bookings))
	for _, b := range bookings {
		v, ok := vesselByID[b.VesselID]
		if !ok {
			v = vessel.Vessel{ID: b.VesselID}
		}
		out = append(out, Trackable{Booking: b, Vessel: v, EscrowID: escrowByBooking[b.ID]})
	}
	return out, nil
}

func (s *Store) AppendTrackingEvent(ctx context.Context, ev *tracking.TrackingEvent) error {
	return s.db.WithContext(ctx).Create(ev).Error
}

func (s *Store) ListTrackingEvents(ctx context.Context, bookingID string, from, to time.Time) ([]tracking.TrackingEvent, error) {
	q := s.db.WithContext(ctx).Where("booking_id = ?", bookingID)
	if !from.IsZero() {
		q = q.Where("recorded_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("recorded_at < ?", to)
	}

	var out []tracking.TrackingEvent
	err := q.Order("recorded_at ASC, created_at ASC").Find(&out).Error
	return out, err
}

func (s *Store) LatestTrackingEvent(ctx context.Context, bookingID string) (*tracking.TrackingEvent, error) {
	var ev tracking.TrackingEvent
	err := s.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("recorded_at DESC, created_at DESC").
		First(&ev).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ev, nil
}

/*=============================================================================
| Audit
===============================================================================*/

func (s *Store) SaveWebhookReceipt(ctx context.Context, r *webhook.Receipt) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) SaveRequestLog(ctx context.Context, l *logModel.Log) error {
	return s.db.WithContext(ctx).Create(l).Error
}
