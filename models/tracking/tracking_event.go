package tracking

import (
	"time"
)

// Position is a single AIS fix
type Position struct {
	Latitude   float64                `json:"latitude"`
	Longitude  float64                `json:"longitude"`
	RecordedAt time.Time              `json:"recorded_at"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Valid reports whether the coordinates are within WGS84 bounds
func (p Position) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// TrackingEvent is an immutable, append-only position record for an active charter
type TrackingEvent struct {
	ID         string                 `gorm:"type:varchar(64);primaryKey" json:"id"`
	VesselID   string                 `gorm:"type:varchar(64);not null;index" json:"vessel_id"`
	BookingID  string                 `gorm:"type:varchar(64);not null;index:idx_tracking_booking_time" json:"booking_id"`
	Latitude   float64                `gorm:"not null" json:"latitude"`
	Longitude  float64                `gorm:"not null" json:"longitude"`
	RecordedAt time.Time              `gorm:"not null;index:idx_tracking_booking_time" json:"recorded_at"`
	Source     string                 `gorm:"type:varchar(64);not null" json:"source"`
	Metadata   map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"metadata,omitempty"`
	CreatedBy  string                 `gorm:"type:varchar(64)" json:"created_by,omitempty"`
	CreatedAt  time.Time              `gorm:"autoCreateTime" json:"created_at"`
}

func (TrackingEvent) TableName() string {
	return "tracking_events"
}
