package booking

import (
	"time"

	"github.com/jibzus/bluefleet-sub001/types"
)

type TermsRequest struct {
	Purpose string   `json:"purpose" validate:"required,max=2000"`
	Clauses []string `json:"clauses" validate:"omitempty,max=50,dive,required,max=2000"`
	Crew    string   `json:"crew" validate:"omitempty,max=2000"`
	Cargo   string   `json:"cargo" validate:"omitempty,max=2000"`
	Route   string   `json:"route" validate:"omitempty,max=2000"`
}

// ProposeRequest is the body of POST /api/bookings
type ProposeRequest struct {
	VesselID   string       `json:"vessel_id" validate:"required,max=64"`
	StartAt    time.Time    `json:"start_at" validate:"required"`
	EndAt      time.Time    `json:"end_at" validate:"required"`
	Terms      TermsRequest `json:"terms"`
	PriceMinor *int64       `json:"price_minor" validate:"omitempty,gt=0"`
	Currency   string       `json:"currency" validate:"omitempty,len=3,alpha"`
}

func (r ProposeRequest) Validate() error {
	return types.ValidateStruct(r)
}

// TermsPatchRequest replaces only the fields present in the body
type TermsPatchRequest struct {
	Purpose *string   `json:"purpose" validate:"omitempty,max=2000"`
	Clauses *[]string `json:"clauses" validate:"omitempty,max=50,dive,required,max=2000"`
	Crew    *string   `json:"crew" validate:"omitempty,max=2000"`
	Cargo   *string   `json:"cargo" validate:"omitempty,max=2000"`
	Route   *string   `json:"route" validate:"omitempty,max=2000"`
}

// CounterRequest is the body of POST /api/bookings/:id/counter
type CounterRequest struct {
	StartAt    *time.Time         `json:"start_at"`
	EndAt      *time.Time         `json:"end_at"`
	Terms      *TermsPatchRequest `json:"terms"`
	PriceMinor *int64             `json:"price_minor" validate:"omitempty,gt=0"`
	Currency   string             `json:"currency" validate:"omitempty,len=3,alpha"`
}

func (r CounterRequest) Validate() error {
	return types.ValidateStruct(r)
}

// ListQuery is the query string of GET /api/bookings
type ListQuery struct {
	VesselID string `query:"vessel_id" validate:"omitempty,max=64"`
	Status   string `query:"status" validate:"omitempty,oneof=REQUESTED COUNTERED ACCEPTED CANCELLED"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=200"`
	Offset   int    `query:"offset" validate:"omitempty,min=0"`
}

func (q ListQuery) Validate() error {
	return types.ValidateStruct(q)
}
