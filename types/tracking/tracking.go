package tracking

import (
	"time"

	"github.com/jibzus/bluefleet-sub001/types"
)

// ManualPositionRequest is an administrator-entered fix
type ManualPositionRequest struct {
	Latitude   *float64               `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude  *float64               `json:"longitude" validate:"required,gte=-180,lte=180"`
	RecordedAt *time.Time             `json:"recorded_at"`
	Metadata   map[string]interface{} `json:"metadata"`
}

func (r ManualPositionRequest) Validate() error {
	return types.ValidateStruct(r)
}

// EventsQuery narrows the event list to one UTC day
type EventsQuery struct {
	Day string `query:"day" validate:"omitempty,datetime=2006-01-02"`
}

func (q EventsQuery) Validate() error {
	return types.ValidateStruct(q)
}

// ParsedDay returns nil when no day was given
func (q EventsQuery) ParsedDay() *time.Time {
	if q.Day == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", q.Day)
	if err != nil {
		return nil
	}
	return &d
}
