package ais

import "time"

// positionResponse is the AIS provider's latest-position payload
type positionResponse struct {
	MMSI      string     `json:"mmsi"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Timestamp *time.Time `json:"timestamp"`
	Speed     *float64   `json:"speed"`
	Course    *float64   `json:"course"`
	Heading   *float64   `json:"heading"`
	Status    string     `json:"nav_status"`
}
