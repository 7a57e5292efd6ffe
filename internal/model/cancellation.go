package model

import "time"

// Cancellation reverses a booking's seat claim.  There is at most one per
// booking.  Deleting a cancellation does not restore the seats it released.
type Cancellation struct {
	ID               uint64    `json:"id"`
	UserID           *uint64   `json:"user_id"`
	BookingID        uint64    `json:"booking_id"`
	CancellationTime time.Time `json:"cancellation_time"`
	RefundAmount     Money     `json:"refund_amount"`
	Reason           *string   `json:"reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
