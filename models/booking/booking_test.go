package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	w := Window{StartAt: t0, EndAt: t0.Add(10 * time.Hour)}
	span := func(from, to int) Window {
		return Window{StartAt: t0.Add(time.Duration(from) * time.Hour), EndAt: t0.Add(time.Duration(to) * time.Hour)}
	}

	assert.True(t, w.Contains(span(0, 10)))
	assert.True(t, w.Contains(span(2, 3)))
	assert.False(t, w.Contains(span(-1, 3)))
	assert.False(t, w.Contains(span(9, 11)))

	assert.True(t, w.Overlaps(span(9, 11)))
	assert.False(t, w.Overlaps(span(10, 12)), "half-open windows that touch do not overlap")

	assert.True(t, w.Includes(t0))
	assert.False(t, w.Includes(w.EndAt))
}

func TestCounterparty(t *testing.T) {
	b := Booking{OwnerID: "owner", OperatorID: "op"}
	assert.Equal(t, "op", b.Counterparty("owner"))
	assert.Equal(t, "owner", b.Counterparty("op"))
}
