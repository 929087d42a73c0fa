package vessel

import (
	"sort"
	"strings"
	"time"

	"github.com/jibzus/bluefleet-sub001/models/booking"
)

// Specs carries the vessel particulars published by the listing service
type Specs struct {
	MMSI         string  `json:"mmsi,omitempty"`
	IMO          string  `json:"imo,omitempty"`
	CallSign     string  `json:"call_sign,omitempty"`
	LengthMeters float64 `json:"length_meters,omitempty"`
}

// AISIdentifier returns the maritime identifier used for position lookups,
// preferring MMSI over IMO. Empty when the vessel carries neither.
func (s Specs) AISIdentifier() string {
	if v := strings.TrimSpace(s.MMSI); v != "" {
		return v
	}
	return strings.TrimSpace(s.IMO)
}

// Vessel is the read model of a listed vessel. Listing CRUD lives in another service.
type Vessel struct {
	ID      string `gorm:"type:varchar(64);primaryKey" json:"id"`
	OwnerID string `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	Name    string `gorm:"type:varchar(255);not null" json:"name"`
	Specs   Specs  `gorm:"type:jsonb;serializer:json" json:"specs"`

	Availability []AvailabilityWindow `gorm:"foreignKey:VesselID" json:"availability"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Vessel) TableName() string {
	return "vessels"
}

// AvailabilityWindow is a period the owner declared the vessel charterable
type AvailabilityWindow struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	VesselID string    `gorm:"type:varchar(64);not null;index" json:"vessel_id"`
	StartAt  time.Time `gorm:"not null" json:"start_at"`
	EndAt    time.Time `gorm:"not null" json:"end_at"`
}

func (AvailabilityWindow) TableName() string {
	return "vessel_availability_windows"
}

// Covers reports whether the declared windows together contain w. Windows that
// touch or overlap are merged first, so back-to-back declarations count as one.
func (v Vessel) Covers(w booking.Window) bool {
	for _, span := range v.availableSpans() {
		if span.Contains(w) {
			return true
		}
	}
	return false
}

func (v Vessel) availableSpans() []booking.Window {
	spans := make([]booking.Window, 0, len(v.Availability))
	for _, a := range v.Availability {
		if a.EndAt.After(a.StartAt) {
			spans = append(spans, booking.Window{StartAt: a.StartAt, EndAt: a.EndAt})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].StartAt.Before(spans[j].StartAt) })

	merged := spans[:0]
	for _, s := range spans {
		if n := len(merged); n > 0 && !s.StartAt.After(merged[n-1].EndAt) {
			if s.EndAt.After(merged[n-1].EndAt) {
				merged[n-1].EndAt = s.EndAt
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
