package ledger

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/queue"
	"github.com/iliyamo/event-reservations/internal/repository"
)

// CancelBookingParams is the input of CancelBooking.  Non-admin requesters
// may only cancel their own bookings.
type CancelBookingParams struct {
	BookingID   uint64
	RequesterID uint64
	IsAdmin     bool
	Reason      string
}

// CancellationResult is returned by CancelBooking.
type CancellationResult struct {
	Cancellation model.Cancellation `json:"cancellation"`
	Booking      model.Booking      `json:"booking"`
	Event        model.EventSeats   `json:"event"`
}

// CancelBooking records a cancellation and releases the booking's seats in
// the same transaction.  The refund equals the amount paid, if any.
func (l *Ledger) CancelBooking(ctx context.Context, p CancelBookingParams) (*CancellationResult, error) {
	fields := []zap.Field{zap.Uint64("booking_id", p.BookingID), zap.Uint64("requester_id", p.RequesterID)}

	var out *CancellationResult
	err := l.withTx(ctx, "cancel_booking", func(tx *sql.Tx) error {
		out = nil
		ev, b, err := l.lockBooking(ctx, tx, p.BookingID)
		if err != nil {
			return err
		}
		if !p.IsAdmin && (b.UserID == nil || *b.UserID != p.RequesterID) {
			return ErrForbidden
		}
		exists, err := l.cancellations.ExistsForBookingTx(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		if exists || !model.HoldsSeats(b.Status) {
			return ErrAlreadyCancelled
		}

		var refund model.Money
		pay, err := l.payments.GetByBookingTx(ctx, tx, b.ID)
		switch {
		case err == nil:
			refund = pay.AmountPaid
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		now := l.now()
		c := model.Cancellation{
			UserID:           b.UserID,
			BookingID:        b.ID,
			CancellationTime: now,
			RefundAmount:     refund,
		}
		if p.Reason != "" {
			reason := p.Reason
			c.Reason = &reason
		}
		if err := l.cancellations.CreateTx(ctx, tx, &c); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyCancelled
			}
			return err
		}

		status := model.BookingCancelled
		if refund > 0 {
			status = model.BookingRefunded
		}
		if err := l.bookings.SetStatusTx(ctx, tx, b.ID, status, refund); err != nil {
			return err
		}
		b.Status = status
		b.RefundAmount = refund

		ok, err := l.events.ReleaseSeatsTx(ctx, tx, ev.ID, b.Seats)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvariantViolation
		}
		ev.ReservedSeats -= b.Seats

		out = &CancellationResult{Cancellation: c, Booking: *b, Event: seatsOf(ev)}
		return nil
	})
	if err != nil {
		return nil, l.translate("cancel_booking", err, fields...)
	}

	l.log.Info("ledger: booking cancelled", append(fields,
		zap.Uint64("event_id", out.Event.EventID),
		zap.Int("seats", out.Booking.Seats),
		zap.Int("reserved_seats", out.Event.ReservedSeats))...)
	ev := queue.BookingEvent{
		Type:          queue.TypeBookingCancelled,
		BookingID:     out.Booking.ID,
		EventID:       out.Event.EventID,
		UserID:        out.Booking.UserID,
		Seats:         out.Booking.Seats,
		Amount:        out.Cancellation.RefundAmount.String(),
		ReservedSeats: out.Event.ReservedSeats,
		TotalSeats:    out.Event.TotalSeats,
		OccurredAt:    out.Cancellation.CancellationTime,
	}
	if out.Cancellation.Reason != nil {
		ev.Reason = *out.Cancellation.Reason
	}
	l.notify(ctx, ev)
	return out, nil
}

// lockBooking takes the event lock and then the booking lock.  The event id
// is read without a lock first so the order matches CreateBooking.
func (l *Ledger) lockBooking(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Event, *model.Booking, error) {
	eventID, err := l.bookings.EventIDTx(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, notFound("booking", bookingID, err)
	}
	ev, err := l.events.LockTx(ctx, tx, eventID)
	if err != nil {
		return nil, nil, notFound("event", eventID, err)
	}
	b, err := l.bookings.LockTx(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, notFound("booking", bookingID, err)
	}
	return ev, b, nil
}
