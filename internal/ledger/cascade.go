package ledger

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/queue"
)

// CascadeSummary reports what a delete removed or detached.
type CascadeSummary struct {
	Bookings              int64             `json:"bookings_deleted"`
	Payments              int64             `json:"payments_deleted"`
	Cancellations         int64             `json:"cancellations_deleted"`
	DetachedBookings      int64             `json:"bookings_detached,omitempty"`
	DetachedCancellations int64             `json:"cancellations_detached,omitempty"`
	SeatsReleased         int               `json:"seats_released,omitempty"`
	Event                 *model.EventSeats `json:"event,omitempty"`
}

// DeleteEvent removes an event together with its bookings and their
// payments and cancellations.  Users are not touched.
func (l *Ledger) DeleteEvent(ctx context.Context, eventID uint64) (*CascadeSummary, error) {
	fields := []zap.Field{zap.Uint64("event_id", eventID)}

	var (
		out  *CascadeSummary
		name string
	)
	err := l.withTx(ctx, "delete_event", func(tx *sql.Tx) error {
		out = nil
		ev, err := l.events.LockTx(ctx, tx, eventID)
		if err != nil {
			return notFound("event", eventID, err)
		}
		name = ev.Name
		s := &CascadeSummary{}
		if s.Payments, err = l.payments.DeleteByEventTx(ctx, tx, eventID); err != nil {
			return err
		}
		if s.Cancellations, err = l.cancellations.DeleteByEventTx(ctx, tx, eventID); err != nil {
			return err
		}
		if s.Bookings, err = l.bookings.DeleteByEventTx(ctx, tx, eventID); err != nil {
			return err
		}
		if err := l.events.DeleteTx(ctx, tx, eventID); err != nil {
			return notFound("event", eventID, err)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, l.translate("delete_event", err, fields...)
	}

	l.log.Info("ledger: event deleted", append(fields,
		zap.Int64("bookings", out.Bookings),
		zap.Int64("payments", out.Payments),
		zap.Int64("cancellations", out.Cancellations))...)
	l.notify(ctx, queue.BookingEvent{Type: queue.TypeEventDeleted, EventID: eventID, EventName: name})
	return out, nil
}

// DeleteEventByName resolves the unique event name and deletes it.
func (l *Ledger) DeleteEventByName(ctx context.Context, name string) (*CascadeSummary, error) {
	ev, err := l.events.GetByName(ctx, name)
	if err != nil {
		return nil, l.translate("delete_event", notFound("event", 0, err), zap.String("event_name", name))
	}
	return l.DeleteEvent(ctx, ev.ID)
}

// DeleteUser removes an account.  Its bookings and cancellations stay in
// place with the user reference cleared, so no event counter changes.
// The address and refresh tokens go with the user.
func (l *Ledger) DeleteUser(ctx context.Context, userID uint64) (*CascadeSummary, error) {
	fields := []zap.Field{zap.Uint64("user_id", userID)}

	var out *CascadeSummary
	err := l.withTx(ctx, "delete_user", func(tx *sql.Tx) error {
		out = nil
		if err := l.users.LockForDeleteTx(ctx, tx, userID); err != nil {
			return notFound("user", userID, err)
		}
		s := &CascadeSummary{}
		var err error
		if s.DetachedBookings, err = l.bookings.DetachUserTx(ctx, tx, userID); err != nil {
			return err
		}
		if s.DetachedCancellations, err = l.cancellations.DetachUserTx(ctx, tx, userID); err != nil {
			return err
		}
		if _, err = l.users.DeleteAddressTx(ctx, tx, userID); err != nil {
			return err
		}
		if _, err = l.tokens.DeleteForUserTx(ctx, tx, userID); err != nil {
			return err
		}
		if err := l.users.DeleteTx(ctx, tx, userID); err != nil {
			return notFound("user", userID, err)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, l.translate("delete_user", err, fields...)
	}
	l.log.Info("ledger: user deleted", append(fields,
		zap.Int64("bookings_detached", out.DetachedBookings),
		zap.Int64("cancellations_detached", out.DetachedCancellations))...)
	return out, nil
}

// DeleteBooking removes a booking with its payment and cancellation.  When
// the booking still holds seats they are released, so the counter never
// keeps seats for a booking that no longer exists.
func (l *Ledger) DeleteBooking(ctx context.Context, bookingID uint64) (*CascadeSummary, error) {
	fields := []zap.Field{zap.Uint64("booking_id", bookingID)}

	var (
		out    *CascadeSummary
		userID *uint64
	)
	err := l.withTx(ctx, "delete_booking", func(tx *sql.Tx) error {
		out = nil
		ev, b, err := l.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		userID = b.UserID
		s := &CascadeSummary{}
		if s.Payments, err = l.payments.DeleteByBookingTx(ctx, tx, b.ID); err != nil {
			return err
		}
		if s.Cancellations, err = l.cancellations.DeleteByBookingTx(ctx, tx, b.ID); err != nil {
			return err
		}
		if err := l.bookings.DeleteTx(ctx, tx, b.ID); err != nil {
			return notFound("booking", b.ID, err)
		}
		s.Bookings = 1
		if model.HoldsSeats(b.Status) {
			ok, err := l.events.ReleaseSeatsTx(ctx, tx, ev.ID, b.Seats)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvariantViolation
			}
			ev.ReservedSeats -= b.Seats
			s.SeatsReleased = b.Seats
		}
		seats := seatsOf(ev)
		s.Event = &seats
		out = s
		return nil
	})
	if err != nil {
		return nil, l.translate("delete_booking", err, fields...)
	}

	l.log.Info("ledger: booking deleted", append(fields,
		zap.Uint64("event_id", out.Event.EventID),
		zap.Int("seats_released", out.SeatsReleased),
		zap.Int("reserved_seats", out.Event.ReservedSeats))...)
	l.notify(ctx, queue.BookingEvent{
		Type:          queue.TypeBookingDeleted,
		BookingID:     bookingID,
		EventID:       out.Event.EventID,
		UserID:        userID,
		Seats:         out.SeatsReleased,
		ReservedSeats: out.Event.ReservedSeats,
		TotalSeats:    out.Event.TotalSeats,
	})
	return out, nil
}

// DeletePayment removes a payment.  The booking and the event counter are
// unaffected.
func (l *Ledger) DeletePayment(ctx context.Context, paymentID uint64) error {
	if err := l.payments.Delete(ctx, paymentID); err != nil {
		return l.translate("delete_payment", notFound("payment", paymentID, err), zap.Uint64("payment_id", paymentID))
	}
	l.log.Info("ledger: payment deleted", zap.Uint64("payment_id", paymentID))
	return nil
}

// DeleteCancellation removes a cancellation record.  The seat release it
// caused is not undone and the booking keeps its status.
func (l *Ledger) DeleteCancellation(ctx context.Context, cancellationID uint64) error {
	if err := l.cancellations.Delete(ctx, cancellationID); err != nil {
		return l.translate("delete_cancellation", notFound("cancellation", cancellationID, err), zap.Uint64("cancellation_id", cancellationID))
	}
	l.log.Info("ledger: cancellation deleted", zap.Uint64("cancellation_id", cancellationID))
	return nil
}
