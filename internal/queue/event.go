// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"fmt"
	"strings"
	"time"
)

// QueueName is the durable RabbitMQ queue carrying booking lifecycle events.
const QueueName = "booking.events"

// Event types carried in BookingEvent.Type.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"
	TypeBookingDeleted   = "booking.deleted"
	TypeEventDeleted     = "event.deleted"
)

// BookingEvent is published after a ledger transaction commits.  It
// contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.  Amounts are
// decimal strings ("120.00").
type BookingEvent struct {
	Type          string    `json:"type"`
	BookingID     uint64    `json:"booking_id,omitempty"`
	EventID       uint64    `json:"event_id"`
	EventName     string    `json:"event_name,omitempty"`
	UserID        *uint64   `json:"user_id,omitempty"`
	Seats         int       `json:"seats,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	ReservedSeats int       `json:"reserved_seats"`
	TotalSeats    int       `json:"total_seats"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// LogLine renders the event as one human readable line for the booking log.
func (e BookingEvent) LogLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s event=%d", e.OccurredAt.UTC().Format(time.RFC3339), e.Type, e.EventID)
	if e.EventName != "" {
		fmt.Fprintf(&b, " name=%q", e.EventName)
	}
	if e.BookingID != 0 {
		fmt.Fprintf(&b, " booking=%d", e.BookingID)
	}
	if e.UserID != nil {
		fmt.Fprintf(&b, " user=%d", *e.UserID)
	}
	if e.Seats != 0 {
		fmt.Fprintf(&b, " seats=%d", e.Seats)
	}
	if e.Amount != "" {
		fmt.Fprintf(&b, " amount=%s", e.Amount)
	}
	fmt.Fprintf(&b, " reserved=%d/%d", e.ReservedSeats, e.TotalSeats)
	if e.Reason != "" {
		fmt.Fprintf(&b, " reason=%q", e.Reason)
	}
	return b.String()
}
