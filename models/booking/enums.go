package booking

// BookingStatus is the negotiation state of a booking
type BookingStatus string

const (
	BookingStatusRequested BookingStatus = "REQUESTED"
	BookingStatusCountered BookingStatus = "COUNTERED"
	BookingStatusAccepted  BookingStatus = "ACCEPTED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Helper methods for BookingStatus
func (bs BookingStatus) String() string {
	return string(bs)
}

func (bs BookingStatus) IsValid() bool {
	switch bs {
	case BookingStatusRequested, BookingStatusCountered, BookingStatusAccepted, BookingStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the booking can no longer change
func (bs BookingStatus) IsTerminal() bool {
	return bs == BookingStatusAccepted || bs == BookingStatusCancelled
}

// IsNegotiable returns true while counter and accept are allowed
func (bs BookingStatus) IsNegotiable() bool {
	return bs == BookingStatusRequested || bs == BookingStatusCountered
}

// NegotiableStatuses lists the statuses a conditional write may start from
func NegotiableStatuses() []BookingStatus {
	return []BookingStatus{BookingStatusRequested, BookingStatusCountered}
}
