// Package ledger is the reservation ledger: the only code path that writes
// events.reserved_seats.  Every operation runs as one MySQL transaction
// that locks the event row first (event before booking, always), so
// operations on the same event are serialised by InnoDB while different
// events proceed independently.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/queue"
	"github.com/iliyamo/event-reservations/internal/repository"
)

// Notifier receives booking lifecycle events after the transaction that
// produced them has committed.  Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, ev queue.BookingEvent) error
}

// Ledger enforces seat capacity and keeps reserved_seats equal to the
// seats held by PENDING and ACTIVE bookings.
type Ledger struct {
	db          *sql.DB
	log         *zap.Logger
	notifier    Notifier
	clock       func() time.Time
	maxAttempts int

	events        *repository.EventRepo
	bookings      *repository.BookingRepo
	payments      *repository.PaymentRepo
	cancellations *repository.CancellationRepo
	users         *repository.UserRepo
	tokens        *repository.TokenRepo
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithNotifier publishes committed changes to n.
func WithNotifier(n Notifier) Option { return func(l *Ledger) { l.notifier = n } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.clock = now } }

// WithMaxAttempts sets how many times a transaction is run when it loses a
// lock race.  Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(l *Ledger) {
		if n >= 1 {
			l.maxAttempts = n
		}
	}
}

// New builds a ledger over db.  A nil logger disables logging.
func New(db *sql.DB, log *zap.Logger, opts ...Option) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{
		db:            db,
		log:           log,
		clock:         time.Now,
		maxAttempts:   2,
		events:        repository.NewEventRepo(db),
		bookings:      repository.NewBookingRepo(db),
		payments:      repository.NewPaymentRepo(db),
		cancellations: repository.NewCancellationRepo(db),
		users:         repository.NewUserRepo(db),
		tokens:        repository.NewTokenRepo(db),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// now returns the current time at DATETIME precision.
func (l *Ledger) now() time.Time { return l.clock().UTC().Truncate(time.Second) }

// withTx runs fn in a transaction and retries the whole transaction when
// it lost a race (conditional update missed, deadlock, lock wait timeout).
// fn must be safe to run more than once.
func (l *Ledger) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		err = l.runTx(ctx, fn)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt < l.maxAttempts {
			l.log.Warn("ledger: retrying transaction", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		}
	}
	return err
}

func (l *Ledger) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (l *Ledger) notify(ctx context.Context, ev queue.BookingEvent) {
	if l.notifier == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = l.now()
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := l.notifier.Notify(nctx, ev); err != nil {
		l.log.Warn("ledger: notify failed", zap.String("type", ev.Type), zap.Uint64("event_id", ev.EventID),
			zap.Uint64("booking_id", ev.BookingID), zap.Error(err))
	}
}

func seatsOf(e *model.Event) model.EventSeats {
	return model.EventSeats{EventID: e.ID, ReservedSeats: e.ReservedSeats, TotalSeats: e.TotalSeats}
}
