package booking

import (
	"time"
)

// BookingStatusEvent represents a status change event for a booking
type BookingStatusEvent struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID string `gorm:"type:varchar(64);not null;index" json:"booking_id"`

	FromStatus BookingStatus `gorm:"size:20" json:"from_status,omitempty"`
	ToStatus   BookingStatus `gorm:"size:20;not null" json:"to_status"`
	Revision   int           `gorm:"not null" json:"revision"`
	CreatedBy  string        `gorm:"type:varchar(64);not null" json:"created_by"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// TableName sets the table name for the BookingStatusEvent model
func (BookingStatusEvent) TableName() string {
	return "booking_status_events"
}

// NewStatusEvent snapshots the transition that produced b
func NewStatusEvent(b *Booking, from BookingStatus, actorID string) BookingStatusEvent {
	return BookingStatusEvent{
		BookingID:  b.ID,
		FromStatus: from,
		ToStatus:   b.Status,
		Revision:   b.Revision,
		CreatedBy:  actorID,
		CreatedAt:  b.UpdatedAt,
	}
}
