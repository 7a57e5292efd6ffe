package model

import "time"

// Booking statuses.  PENDING and ACTIVE bookings hold seats on their event;
// CANCELLED and REFUNDED bookings have had their seats released.
const (
	BookingPending   = "PENDING"
	BookingActive    = "ACTIVE"
	BookingCancelled = "CANCELLED"
	BookingRefunded  = "REFUNDED"
)

// HoldsSeats reports whether a booking in the given status still counts
// towards its event's reserved_seats.
func HoldsSeats(status string) bool {
	return status == BookingPending || status == BookingActive
}

// Booking is a claim of Seats seats on an event by a user.  UserID is nil
// once the owning account has been deleted.
type Booking struct {
	ID             uint64    `json:"id"`
	UserID         *uint64   `json:"user_id"`
	EventID        uint64    `json:"event_id"`
	Seats          int       `json:"seats"`
	UnitPrice      Money     `json:"unit_price"`
	Status         string    `json:"status"`
	RefundAmount   Money     `json:"refund_amount"`
	IdempotencyKey *string   `json:"-"`
	BookingTime    time.Time `json:"booking_time"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Total is the full price of the booking.
func (b Booking) Total() Money { return b.UnitPrice.Mul(b.Seats) }
