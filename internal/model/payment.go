package model

import "time"

// Payment methods.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

// Payment records the settlement of a booking.  A booking has at most one
// payment; the payment is removed with its booking.
type Payment struct {
	ID            uint64    `json:"id"`
	BookingID     uint64    `json:"booking_id"`
	TransactionID string    `json:"transaction_id"`
	AmountPaid    Money     `json:"amount_paid"`
	PaymentMethod string    `json:"payment_method"`
	PaymentTime   time.Time `json:"payment_time"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
