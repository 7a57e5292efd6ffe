package model

import "time"

// Event statuses.
const (
	EventActive    = "ACTIVE"
	EventCancelled = "CANCELLED"
)

// Event is a bookable trip/event with a fixed seat capacity.  It corresponds
// to a row in the `events` table.
//
// ReservedSeats is a denormalised counter: it always equals the sum of seats
// over the event's bookings that still hold seats.  Only the reservation
// ledger writes it; clients can never set it directly.
type Event struct {
	ID            uint64    `json:"id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description,omitempty"`
	Status        string    `json:"status"`
	StartLocation string    `json:"start_location"`
	Destination   string    `json:"destination"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	TotalSeats    int       `json:"total_seats"`
	ReservedSeats int       `json:"reserved_seats"`
	PricePerSeat  Money     `json:"price_per_seat"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AvailableSeats returns the remaining capacity.
func (e Event) AvailableSeats() int { return e.TotalSeats - e.ReservedSeats }

// EventSeats is the reserved/total pair returned with every booking
// operation so callers can display the up-to-date occupancy.
type EventSeats struct {
	EventID       uint64 `json:"event_id"`
	ReservedSeats int    `json:"reserved_seats"`
	TotalSeats    int    `json:"total_seats"`
}
