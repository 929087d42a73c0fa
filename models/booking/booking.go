package booking

import (
	"math"
	"time"
)

// Window is a half-open charter period [StartAt, EndAt)
type Window struct {
	StartAt time.Time `gorm:"not null;index" json:"start_at"`
	EndAt   time.Time `gorm:"not null;index" json:"end_at"`
}

// Overlaps reports whether two half-open windows share any instant
func (w Window) Overlaps(other Window) bool {
	return w.StartAt.Before(other.EndAt) && w.EndAt.After(other.StartAt)
}

// Contains reports whether other lies entirely inside w
func (w Window) Contains(other Window) bool {
	return !other.StartAt.Before(w.StartAt) && !other.EndAt.After(w.EndAt)
}

// Includes reports whether the instant t lies in [StartAt, EndAt)
func (w Window) Includes(t time.Time) bool {
	return !t.Before(w.StartAt) && t.Before(w.EndAt)
}

// MaxPriceMinor bounds a price so basis-point arithmetic on it stays within int64
const MaxPriceMinor = math.MaxInt64 / 10000

// Terms are the negotiated charter conditions
type Terms struct {
	Purpose string   `json:"purpose"`
	Clauses []string `json:"clauses,omitempty"`
	Crew    string   `json:"crew,omitempty"`
	Cargo   string   `json:"cargo,omitempty"`
	Route   string   `json:"route,omitempty"`
}

// Booking is a single charter proposal negotiated between an operator and a vessel owner
type Booking struct {
	ID         string `gorm:"type:varchar(64);primaryKey" json:"id"`
	VesselID   string `gorm:"type:varchar(64);not null;index" json:"vessel_id"`
	OperatorID string `gorm:"type:varchar(64);not null;index" json:"operator_id"`
	OwnerID    string `gorm:"type:varchar(64);not null;index" json:"owner_id"`

	Window `gorm:"embedded"`
	Terms  Terms `gorm:"type:jsonb;serializer:json;not null" json:"terms"`

	// Pricing override in minor units, set at proposal or by a counter
	PriceMinor *int64 `gorm:"" json:"price_minor,omitempty"`
	Currency   string `gorm:"type:varchar(3)" json:"currency,omitempty"`

	Status         BookingStatus `gorm:"size:20;not null;index" json:"status"`
	LastModifiedBy string        `gorm:"type:varchar(64);not null" json:"last_modified_by"`
	Revision       int           `gorm:"not null;default:1" json:"revision"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName sets the table name for the Booking model
func (Booking) TableName() string {
	return "bookings"
}

// Counterparty returns the other party relative to actorID
func (b Booking) Counterparty(actorID string) string {
	if actorID == b.OwnerID {
		return b.OperatorID
	}
	return b.OwnerID
}
