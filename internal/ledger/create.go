package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/queue"
	"github.com/iliyamo/event-reservations/internal/repository"
)

// PaymentInfo describes the payment recorded together with a booking.
// Empty TransactionID gets a generated UUID; zero Amount means the full
// booking price.
type PaymentInfo struct {
	TransactionID string
	Method        string
	Amount        model.Money
}

// CreateBookingParams is the input of CreateBooking.  A zero UnitPrice
// books at the event's current price.
type CreateBookingParams struct {
	EventID        uint64
	UserID         uint64
	Seats          int
	UnitPrice      model.Money
	Payment        *PaymentInfo
	IdempotencyKey string
}

// BookingResult is returned by CreateBooking.  Replayed is set when the
// idempotency key matched an earlier booking and nothing was written.
type BookingResult struct {
	Booking  model.Booking    `json:"booking"`
	Payment  *model.Payment   `json:"payment,omitempty"`
	Event    model.EventSeats `json:"event"`
	Replayed bool             `json:"replayed"`
}

// CreateBooking reserves p.Seats seats on an event for a user.  The event
// row is locked for the whole check-and-increment, and the increment
// itself is conditional on the remaining capacity, so two requests can
// never both claim the last seats.
func (l *Ledger) CreateBooking(ctx context.Context, p CreateBookingParams) (*BookingResult, error) {
	fields := []zap.Field{zap.Uint64("event_id", p.EventID), zap.Uint64("user_id", p.UserID), zap.Int("seats", p.Seats)}
	if p.Seats <= 0 {
		return nil, l.translate("create_booking", ErrInvalidSeats, fields...)
	}

	var out *BookingResult
	err := l.withTx(ctx, "create_booking", func(tx *sql.Tx) error {
		out = nil
		if p.IdempotencyKey != "" {
			prev, err := l.replay(ctx, tx, p)
			if err != nil {
				return err
			}
			if prev != nil {
				out = prev
				return nil
			}
		}

		ev, err := l.events.LockTx(ctx, tx, p.EventID)
		if err != nil {
			return notFound("event", p.EventID, err)
		}
		if ev.Status != model.EventActive {
			return ErrEventNotActive
		}
		if err := l.users.ExistsTx(ctx, tx, p.UserID); err != nil {
			return notFound("user", p.UserID, err)
		}

		unit := p.UnitPrice
		if unit == 0 {
			unit = ev.PricePerSeat
		} else if unit != ev.PricePerSeat {
			return ErrPriceMismatch
		}

		if available := ev.AvailableSeats(); p.Seats > available {
			return &CapacityError{EventID: ev.ID, Requested: p.Seats, Available: available}
		}
		if unit.Mul(p.Seats) > model.MaxMoney {
			return ErrAmountOutOfRange
		}
		ok, err := l.events.ReserveSeatsTx(ctx, tx, ev.ID, p.Seats)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrencyConflict
		}
		ev.ReservedSeats += p.Seats

		now := l.now()
		uid := p.UserID
		b := model.Booking{
			UserID:      &uid,
			EventID:     ev.ID,
			Seats:       p.Seats,
			UnitPrice:   unit,
			Status:      model.BookingActive,
			BookingTime: now,
		}
		if p.IdempotencyKey != "" {
			key := p.IdempotencyKey
			b.IdempotencyKey = &key
		}
		if err := l.bookings.CreateTx(ctx, tx, &b); err != nil {
			if p.IdempotencyKey != "" && repository.IsDuplicateKey(err) {
				// a concurrent request with the same key won; the retry replays it
				return ErrConcurrencyConflict
			}
			return err
		}

		res := &BookingResult{Booking: b, Event: seatsOf(ev)}
		if p.Payment != nil {
			pay, err := l.recordPayment(ctx, tx, &b, p.Payment, now)
			if err != nil {
				return err
			}
			res.Payment = pay
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, l.translate("create_booking", err, fields...)
	}

	if out.Replayed {
		l.log.Info("ledger: booking replayed", append(fields, zap.Uint64("booking_id", out.Booking.ID))...)
		return out, nil
	}
	l.log.Info("ledger: booking created", append(fields,
		zap.Uint64("booking_id", out.Booking.ID),
		zap.Int("reserved_seats", out.Event.ReservedSeats),
		zap.Int("total_seats", out.Event.TotalSeats))...)
	l.notify(ctx, queue.BookingEvent{
		Type:          queue.TypeBookingCreated,
		BookingID:     out.Booking.ID,
		EventID:       out.Booking.EventID,
		UserID:        out.Booking.UserID,
		Seats:         out.Booking.Seats,
		Amount:        out.Booking.Total().String(),
		ReservedSeats: out.Event.ReservedSeats,
		TotalSeats:    out.Event.TotalSeats,
		OccurredAt:    out.Booking.BookingTime,
	})
	return out, nil
}

// replay returns the booking an earlier request stored under the same
// idempotency key, or nil when the key is unused.  A key reused for a
// different event, seat count or unit price is rejected.
func (l *Ledger) replay(ctx context.Context, tx *sql.Tx, p CreateBookingParams) (*BookingResult, error) {
	b, err := l.bookings.FindByIdempotencyKeyTx(ctx, tx, p.UserID, p.IdempotencyKey)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if b.EventID != p.EventID || b.Seats != p.Seats || (p.UnitPrice != 0 && p.UnitPrice != b.UnitPrice) {
		return nil, ErrIdempotencyKeyReused
	}
	ev, err := l.events.GetTx(ctx, tx, b.EventID)
	if err != nil {
		return nil, notFound("event", b.EventID, err)
	}
	res := &BookingResult{Booking: *b, Event: seatsOf(ev), Replayed: true}
	pay, err := l.payments.GetByBookingTx(ctx, tx, b.ID)
	switch {
	case err == nil:
		res.Payment = pay
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	return res, nil
}

func (l *Ledger) recordPayment(ctx context.Context, tx *sql.Tx, b *model.Booking, in *PaymentInfo, now time.Time) (*model.Payment, error) {
	if !model.ValidPaymentMethod(in.Method) {
		return nil, ErrConstraintViolation
	}
	pay := model.Payment{
		BookingID:     b.ID,
		TransactionID: in.TransactionID,
		AmountPaid:    in.Amount,
		PaymentMethod: in.Method,
		PaymentTime:   now,
	}
	if pay.TransactionID == "" {
		pay.TransactionID = uuid.NewString()
	}
	if pay.AmountPaid == 0 {
		pay.AmountPaid = b.Total()
	}
	if pay.AmountPaid > model.MaxMoney {
		return nil, ErrAmountOutOfRange
	}
	if err := l.payments.CreateTx(ctx, tx, &pay); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicatePayment
		}
		return nil, err
	}
	return &pay, nil
}
