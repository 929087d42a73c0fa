package vessel

import (
	"testing"
	"time"

	"github.com/jibzus/bluefleet-sub001/models/booking"
	"github.com/stretchr/testify/assert"
)

func TestCovers(t *testing.T) {
	d0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	at := func(days int) time.Time { return d0.Add(time.Duration(days) * 24 * time.Hour) }
	avail := func(from, to int) AvailabilityWindow { return AvailabilityWindow{StartAt: at(from), EndAt: at(to)} }

	v := Vessel{ID: "v1", Availability: []AvailabilityWindow{
		avail(10, 20), avail(0, 10), avail(15, 18), avail(25, 30), avail(40, 40),
	}}

	tests := []struct {
		name     string
		from, to int
		want     bool
	}{
		{"inside one window", 1, 9, true},
		{"across back-to-back windows", 5, 15, true},
		{"exactly the merged span", 0, 20, true},
		{"over a gap", 18, 27, false},
		{"past the last window", 26, 31, false},
		{"before the first window", -1, 3, false},
		{"empty declared window is ignored", 40, 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Covers(booking.Window{StartAt: at(tt.from), EndAt: at(tt.to)}))
		})
	}

	assert.False(t, Vessel{}.Covers(booking.Window{StartAt: at(0), EndAt: at(1)}))
}
