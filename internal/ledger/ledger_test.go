package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/queue"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev queue.BookingEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) sent() []queue.BookingEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]queue.BookingEvent(nil), n.events...)
}

type fixture struct {
	ledger   *Ledger
	mock     sqlmock.Sqlmock
	notifier *recordingNotifier
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	core, logs := observer.New(zapcore.InfoLevel)
	n := &recordingNotifier{}
	l := New(db, zap.New(core), WithNotifier(n), WithClock(func() time.Time { return fixedNow }))
	return &fixture{ledger: l, mock: mock, notifier: n, logs: logs}
}

func (f *fixture) done(t *testing.T) {
	t.Helper()
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

var eventCols = []string{"id", "name", "description", "status", "start_location", "destination",
	"starts_at", "ends_at", "total_seats", "reserved_seats", "price_per_seat", "created_at", "updated_at"}

func eventRow(id uint64, status string, total, reserved int, price string) *sqlmock.Rows {
	return sqlmock.NewRows(eventCols).AddRow(int64(id), "Lisbon Coast Trip", nil, status, "Porto", "Lisbon",
		fixedNow.Add(48*time.Hour), fixedNow.Add(72*time.Hour), int64(total), int64(reserved), []byte(price),
		fixedNow, fixedNow)
}

var bookingCols = []string{"id", "user_id", "event_id", "seats", "unit_price", "status", "refund_amount",
	"idempotency_key", "booking_time", "created_at", "updated_at"}

func bookingRow(id, userID, eventID uint64, seats int, status string) *sqlmock.Rows {
	var uid any
	if userID != 0 {
		uid = int64(userID)
	}
	return sqlmock.NewRows(bookingCols).AddRow(int64(id), uid, int64(eventID), int64(seats), []byte("12.50"),
		status, []byte("0.00"), nil, fixedNow, fixedNow, fixedNow)
}

var paymentCols = []string{"id", "booking_id", "transaction_id", "amount_paid", "payment_method",
	"payment_time", "created_at", "updated_at"}

const (
	qLockEvent     = `SELECT .* FROM events WHERE id = \? FOR UPDATE`
	qGetEvent      = `SELECT .* FROM events WHERE id = \?`
	qUserShared    = `SELECT id FROM users WHERE id = \? LOCK IN SHARE MODE`
	qReserve       = `UPDATE events SET reserved_seats = reserved_seats \+ \? WHERE id = \? AND total_seats - reserved_seats >= \?`
	qRelease       = `UPDATE events SET reserved_seats = reserved_seats - \? WHERE id = \? AND reserved_seats >= \?`
	qInsertBooking = `INSERT INTO bookings`
	qInsertPayment = `INSERT INTO payments`
	qBookingEvent  = `SELECT event_id FROM bookings WHERE id = \?`
	qLockBooking   = `SELECT .* FROM bookings WHERE id = \? FOR UPDATE`
	qCancelExists  = `SELECT id FROM cancellations WHERE booking_id = \?`
	qPaymentOf     = `SELECT .* FROM payments WHERE booking_id = \?`
)

func (f *fixture) expectLockedEvent(id uint64, total, reserved int) {
	f.mock.ExpectQuery(qLockEvent).WithArgs(id).WillReturnRows(eventRow(id, model.EventActive, total, reserved, "12.50"))
}

func (f *fixture) expectUser(id uint64) {
	f.mock.ExpectQuery(qUserShared).WithArgs(id).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(id)))
}

func TestCreateBookingRejectsOverbooking(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 28)
	f.expectUser(7)
	f.mock.ExpectRollback()

	res, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 3})
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Nil(t, res)

	var ce *CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.Requested)
	assert.Equal(t, 2, ce.Available)
	assert.Empty(t, f.notifier.sent())
	f.done(t)
}

func TestCreateBookingExactFit(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 28)
	f.expectUser(7)
	f.mock.ExpectExec(qReserve).WithArgs(2, 1, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(qInsertBooking).
		WithArgs(7, 1, 2, "12.50", model.BookingActive, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(55, 1))
	f.mock.ExpectCommit()

	res, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(55), res.Booking.ID)
	assert.Equal(t, model.BookingActive, res.Booking.Status)
	assert.Equal(t, model.Money(1250), res.Booking.UnitPrice)
	assert.Equal(t, fixedNow, res.Booking.BookingTime)
	assert.Equal(t, model.EventSeats{EventID: 1, ReservedSeats: 30, TotalSeats: 30}, res.Event)
	assert.False(t, res.Replayed)
	assert.Nil(t, res.Payment)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, queue.TypeBookingCreated, sent[0].Type)
	assert.Equal(t, uint64(55), sent[0].BookingID)
	assert.Equal(t, "25.00", sent[0].Amount)
	assert.Equal(t, 30, sent[0].ReservedSeats)
	f.done(t)

	// the event is now full; one more seat is rejected
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 30)
	f.expectUser(7)
	f.mock.ExpectRollback()
	_, err = f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 1})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	f.done(t)
}

func TestCreateBookingWithPayment(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 0)
	f.expectUser(7)
	f.mock.ExpectExec(qReserve).WithArgs(2, 1, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(qInsertBooking).WillReturnResult(sqlmock.NewResult(55, 1))
	f.mock.ExpectExec(qInsertPayment).
		WithArgs(55, sqlmock.AnyArg(), "25.00", model.PaymentCard, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(9, 1))
	f.mock.ExpectCommit()

	res, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{
		EventID: 1, UserID: 7, Seats: 2, UnitPrice: 1250,
		Payment: &PaymentInfo{Method: model.PaymentCard},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	assert.Equal(t, uint64(9), res.Payment.ID)
	assert.Equal(t, model.Money(2500), res.Payment.AmountPaid)
	assert.Len(t, res.Payment.TransactionID, 36)
	f.done(t)
}

func TestCreateBookingDuplicatePaymentRollsBack(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 0)
	f.expectUser(7)
	f.mock.ExpectExec(qReserve).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(qInsertBooking).WillReturnResult(sqlmock.NewResult(55, 1))
	f.mock.ExpectExec(qInsertPayment).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	f.mock.ExpectRollback()

	_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{
		EventID: 1, UserID: 7, Seats: 2,
		Payment: &PaymentInfo{Method: model.PaymentCash, TransactionID: "tx-1"},
	})
	assert.ErrorIs(t, err, ErrDuplicatePayment)
	assert.Empty(t, f.notifier.sent())
	f.done(t)
}

func TestCreateBookingValidation(t *testing.T) {
	t.Run("seats must be positive", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 0})
		assert.ErrorIs(t, err, ErrInvalidSeats)
		f.done(t)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery(qLockEvent).WithArgs(1).WillReturnRows(sqlmock.NewRows(eventCols))
		f.mock.ExpectRollback()
		_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 1})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.EqualError(t, err, "event 1 not found")
		f.done(t)
	})

	t.Run("cancelled event", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectBegin()
		f.mock.ExpectQuery(qLockEvent).WithArgs(1).WillReturnRows(eventRow(1, model.EventCancelled, 30, 0, "12.50"))
		f.mock.ExpectRollback()
		_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 1})
		assert.ErrorIs(t, err, ErrEventNotActive)
		f.done(t)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectBegin()
		f.expectLockedEvent(1, 30, 0)
		f.mock.ExpectQuery(qUserShared).WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		f.mock.ExpectRollback()
		_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 1})
		assert.ErrorIs(t, err, ErrNotFound)
		f.done(t)
	})

	t.Run("price mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.mock.ExpectBegin()
		f.expectLockedEvent(1, 30, 0)
		f.expectUser(7)
		f.mock.ExpectRollback()
		_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 1, UnitPrice: 999})
		assert.ErrorIs(t, err, ErrPriceMismatch)
		f.done(t)
	})
}

func TestCreateBookingRetriesLostRace(t *testing.T) {
	f := newFixture(t)
	// first attempt: the conditional update misses
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 0)
	f.expectUser(7)
	f.mock.ExpectExec(qReserve).WithArgs(20, 1, 20).WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectRollback()
	// retry observes the winner's seats
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 20)
	f.expectUser(7)
	f.mock.ExpectRollback()

	_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 20})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	f.done(t)
}

func TestCreateBookingRetriesDeadlock(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qLockEvent).WithArgs(1).WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	f.mock.ExpectRollback()
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 0)
	f.expectUser(7)
	f.mock.ExpectExec(qReserve).WithArgs(4, 1, 4).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(qInsertBooking).WillReturnResult(sqlmock.NewResult(56, 1))
	f.mock.ExpectCommit()

	res, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Event.ReservedSeats)
	assert.Equal(t, 1, f.logs.FilterMessage("ledger: retrying transaction").Len())
	f.done(t)
}

func TestCreateBookingGivesUpAfterSecondConflict(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		f.mock.ExpectBegin()
		f.expectLockedEvent(1, 30, 0)
		f.expectUser(7)
		f.mock.ExpectExec(qReserve).WillReturnResult(sqlmock.NewResult(0, 0))
		f.mock.ExpectRollback()
	}
	_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 1})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	f.done(t)
}

func TestCreateBookingReplaysIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`SELECT .* FROM bookings WHERE user_id = \? AND idempotency_key = \?`).
		WithArgs(7, "req-1").
		WillReturnRows(bookingRow(55, 7, 1, 2, model.BookingActive))
	f.mock.ExpectQuery(qGetEvent).WithArgs(1).WillReturnRows(eventRow(1, model.EventActive, 30, 2, "12.50"))
	f.mock.ExpectQuery(qPaymentOf).WithArgs(55).WillReturnRows(sqlmock.NewRows(paymentCols))
	f.mock.ExpectCommit()

	res, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{
		EventID: 1, UserID: 7, Seats: 2, IdempotencyKey: "req-1",
	})
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, uint64(55), res.Booking.ID)
	assert.Equal(t, 2, res.Event.ReservedSeats)
	assert.Empty(t, f.notifier.sent())
	f.done(t)
}

func TestCreateBookingRejectsReusedIdempotencyKey(t *testing.T) {
	cases := map[string]CreateBookingParams{
		"other event":      {EventID: 9, UserID: 7, Seats: 2, IdempotencyKey: "req-1"},
		"other seat count": {EventID: 1, UserID: 7, Seats: 20, IdempotencyKey: "req-1"},
		"other unit price": {EventID: 1, UserID: 7, Seats: 2, UnitPrice: model.Cents(999), IdempotencyKey: "req-1"},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.mock.ExpectBegin()
			f.mock.ExpectQuery(`SELECT .* FROM bookings WHERE user_id = \? AND idempotency_key = \?`).
				WithArgs(7, "req-1").
				WillReturnRows(bookingRow(55, 7, 1, 2, model.BookingActive))
			f.mock.ExpectRollback()

			res, err := f.ledger.CreateBooking(context.Background(), p)
			assert.ErrorIs(t, err, ErrIdempotencyKeyReused)
			assert.Nil(t, res)
			assert.Empty(t, f.notifier.sent())
			f.done(t)
		})
	}
}

func TestCreateBookingRejectsUnstorableAmount(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 100000000, 0)
	f.expectUser(7)
	f.mock.ExpectRollback()

	_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 80000000})
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
	f.done(t)
}

func TestCreateBookingHidesStoreErrors(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qLockEvent).WillReturnError(errors.New("dial tcp 10.0.0.3:3306: connection refused"))
	f.mock.ExpectRollback()

	_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 1})
	require.ErrorIs(t, err, ErrInternal)
	assert.NotContains(t, err.Error(), "10.0.0.3")
	assert.Equal(t, 1, f.logs.FilterMessage("ledger: store failure").Len())
	f.done(t)
}

func (f *fixture) expectLockedBooking(bookingID, userID, eventID uint64, seats int, status string, reserved int) {
	f.mock.ExpectQuery(qBookingEvent).WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow(int64(eventID)))
	f.expectLockedEvent(eventID, 30, reserved)
	f.mock.ExpectQuery(qLockBooking).WithArgs(bookingID).
		WillReturnRows(bookingRow(bookingID, userID, eventID, seats, status))
}

func TestCancelBookingReleasesSeats(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedBooking(55, 7, 1, 3, model.BookingActive, 10)
	f.mock.ExpectQuery(qCancelExists).WithArgs(55).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectQuery(qPaymentOf).WithArgs(55).WillReturnRows(sqlmock.NewRows(paymentCols).
		AddRow(int64(9), int64(55), "tx-1", []byte("37.50"), "card", fixedNow, fixedNow, fixedNow))
	f.mock.ExpectExec(`INSERT INTO cancellations`).
		WithArgs(7, 55, sqlmock.AnyArg(), "37.50", "changed plans").
		WillReturnResult(sqlmock.NewResult(3, 1))
	f.mock.ExpectExec(`UPDATE bookings SET status = \?, refund_amount = \? WHERE id = \?`).
		WithArgs(model.BookingRefunded, "37.50", 55).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(qRelease).WithArgs(3, 1, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	res, err := f.ledger.CancelBooking(context.Background(), CancelBookingParams{
		BookingID: 55, RequesterID: 7, Reason: "changed plans",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Cancellation.ID)
	assert.Equal(t, model.Money(3750), res.Cancellation.RefundAmount)
	assert.Equal(t, model.BookingRefunded, res.Booking.Status)
	assert.Equal(t, 7, res.Event.ReservedSeats)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, queue.TypeBookingCancelled, sent[0].Type)
	assert.Equal(t, "changed plans", sent[0].Reason)
	f.done(t)
}

func TestCancelBookingWithoutPaymentIsCancelled(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedBooking(55, 7, 1, 3, model.BookingActive, 10)
	f.mock.ExpectQuery(qCancelExists).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectQuery(qPaymentOf).WillReturnRows(sqlmock.NewRows(paymentCols))
	f.mock.ExpectExec(`INSERT INTO cancellations`).
		WithArgs(7, 55, sqlmock.AnyArg(), "0.00", nil).
		WillReturnResult(sqlmock.NewResult(4, 1))
	f.mock.ExpectExec(`UPDATE bookings SET status`).
		WithArgs(model.BookingCancelled, "0.00", 55).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(qRelease).WithArgs(3, 1, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	res, err := f.ledger.CancelBooking(context.Background(), CancelBookingParams{BookingID: 55, RequesterID: 1, IsAdmin: true})
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, res.Booking.Status)
	assert.Nil(t, res.Cancellation.Reason)
	f.done(t)
}

func TestCancelBookingTwice(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedBooking(55, 7, 1, 3, model.BookingCancelled, 7)
	f.mock.ExpectQuery(qCancelExists).WithArgs(55).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	f.mock.ExpectRollback()

	_, err := f.ledger.CancelBooking(context.Background(), CancelBookingParams{BookingID: 55, RequesterID: 7})
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Empty(t, f.notifier.sent())
	f.done(t)
}

func TestCancelBookingAfterCancellationRecordDeleted(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedBooking(55, 7, 1, 3, model.BookingCancelled, 7)
	f.mock.ExpectQuery(qCancelExists).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectRollback()

	_, err := f.ledger.CancelBooking(context.Background(), CancelBookingParams{BookingID: 55, RequesterID: 7})
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	f.done(t)
}

func TestCancelBookingRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedBooking(55, 7, 1, 3, model.BookingActive, 10)
	f.mock.ExpectRollback()

	_, err := f.ledger.CancelBooking(context.Background(), CancelBookingParams{BookingID: 55, RequesterID: 8})
	assert.ErrorIs(t, err, ErrForbidden)
	f.done(t)
}

func TestCancelBookingUnknown(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qBookingEvent).WithArgs(99).WillReturnRows(sqlmock.NewRows([]string{"event_id"}))
	f.mock.ExpectRollback()

	_, err := f.ledger.CancelBooking(context.Background(), CancelBookingParams{BookingID: 99, RequesterID: 7})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "booking 99 not found")
	f.done(t)
}

func TestCancelBookingCounterUnderflowIsInvariantViolation(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedBooking(55, 7, 1, 3, model.BookingActive, 1)
	f.mock.ExpectQuery(qCancelExists).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectQuery(qPaymentOf).WillReturnRows(sqlmock.NewRows(paymentCols))
	f.mock.ExpectExec(`INSERT INTO cancellations`).WillReturnResult(sqlmock.NewResult(4, 1))
	f.mock.ExpectExec(`UPDATE bookings SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(qRelease).WithArgs(3, 1, 3).WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectRollback()

	_, err := f.ledger.CancelBooking(context.Background(), CancelBookingParams{BookingID: 55, RequesterID: 7})
	assert.ErrorIs(t, err, ErrInvariantViolation)
	entries := f.logs.FilterMessage("ledger: invariant violation").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	f.done(t)
}

func TestDeleteEventCascades(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 5)
	f.mock.ExpectExec(`DELETE p FROM payments p JOIN bookings b ON b.id = p.booking_id WHERE b.event_id = \?`).
		WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`DELETE c FROM cancellations c JOIN bookings b ON b.id = c.booking_id WHERE b.event_id = \?`).
		WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`DELETE FROM bookings WHERE event_id = \?`).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 2))
	f.mock.ExpectExec(`DELETE FROM events WHERE id = \?`).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	s, err := f.ledger.DeleteEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Bookings)
	assert.Equal(t, int64(1), s.Payments)
	assert.Equal(t, int64(1), s.Cancellations)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, queue.TypeEventDeleted, sent[0].Type)
	assert.Equal(t, "Lisbon Coast Trip", sent[0].EventName)
	f.done(t)
}

func TestDeleteEventByNameUnknown(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(`SELECT .* FROM events WHERE name = \?`).WithArgs("Nowhere").WillReturnRows(sqlmock.NewRows(eventCols))

	_, err := f.ledger.DeleteEventByName(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "event not found")
	f.done(t)
}

func TestDeleteUserDetachesBookings(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`SELECT id FROM users WHERE id = \? FOR UPDATE`).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	f.mock.ExpectExec(`UPDATE bookings SET user_id = NULL WHERE user_id = \?`).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 2))
	f.mock.ExpectExec(`UPDATE cancellations SET user_id = NULL WHERE user_id = \?`).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`DELETE FROM addresses WHERE user_id = \?`).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`DELETE FROM refresh_tokens WHERE user_id = \?`).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 3))
	f.mock.ExpectExec(`DELETE FROM users WHERE id = \?`).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	s, err := f.ledger.DeleteUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.DetachedBookings)
	assert.Equal(t, int64(1), s.DetachedCancellations)
	assert.Zero(t, s.Bookings)
	f.done(t)
}

func TestDeleteUserUnknown(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`SELECT id FROM users WHERE id = \? FOR UPDATE`).WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectRollback()

	_, err := f.ledger.DeleteUser(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
	f.done(t)
}

func TestDeleteBookingReleasesHeldSeats(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedBooking(55, 7, 1, 3, model.BookingActive, 10)
	f.mock.ExpectExec(`DELETE FROM payments WHERE booking_id = \?`).WithArgs(55).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`DELETE FROM cancellations WHERE booking_id = \?`).WithArgs(55).WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec(`DELETE FROM bookings WHERE id = \?`).WithArgs(55).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(qRelease).WithArgs(3, 1, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	s, err := f.ledger.DeleteBooking(context.Background(), 55)
	require.NoError(t, err)
	assert.Equal(t, 3, s.SeatsReleased)
	assert.Equal(t, int64(1), s.Payments)
	require.NotNil(t, s.Event)
	assert.Equal(t, 7, s.Event.ReservedSeats)
	f.done(t)
}

func TestDeleteCancelledBookingKeepsCounter(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedBooking(55, 0, 1, 3, model.BookingCancelled, 7)
	f.mock.ExpectExec(`DELETE FROM payments WHERE booking_id = \?`).WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec(`DELETE FROM cancellations WHERE booking_id = \?`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`DELETE FROM bookings WHERE id = \?`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	s, err := f.ledger.DeleteBooking(context.Background(), 55)
	require.NoError(t, err)
	assert.Zero(t, s.SeatsReleased)
	assert.Equal(t, 7, s.Event.ReservedSeats)
	f.done(t)
}

func TestDeletePaymentAndCancellationTouchNothingElse(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectExec(`DELETE FROM payments WHERE id = \?`).WithArgs(9).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`DELETE FROM cancellations WHERE id = \?`).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`DELETE FROM payments WHERE id = \?`).WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, f.ledger.DeletePayment(context.Background(), 9))
	require.NoError(t, f.ledger.DeleteCancellation(context.Background(), 3))
	err := f.ledger.DeletePayment(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "payment 10 not found")
	f.done(t)
}

const qHeldSeats = `SELECT COALESCE\(SUM\(seats\), 0\) FROM bookings WHERE event_id = \? AND status IN \('PENDING','ACTIVE'\)`

func TestAuditReportsDrift(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qGetEvent).WithArgs(1).WillReturnRows(eventRow(1, model.EventActive, 30, 10, "12.50"))
	f.mock.ExpectQuery(qHeldSeats).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(7)))
	f.mock.ExpectCommit()

	r, err := f.ledger.Audit(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Drift)
	assert.False(t, r.Consistent())
	assert.False(t, r.Repaired)
	f.done(t)
}

func TestRepairRewritesCounter(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 10)
	f.mock.ExpectQuery(qHeldSeats).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(7)))
	f.mock.ExpectExec(`UPDATE events SET reserved_seats = \? WHERE id = \?`).WithArgs(7, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	r, err := f.ledger.Repair(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, r.Repaired)
	assert.Equal(t, 7, r.ReservedSeats)
	assert.Equal(t, 3, r.Drift)
	f.done(t)
}

func TestNotifyFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	f.mock.ExpectBegin()
	f.expectLockedEvent(1, 30, 0)
	f.expectUser(7)
	f.mock.ExpectExec(qReserve).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(qInsertBooking).WillReturnResult(sqlmock.NewResult(57, 1))
	f.mock.ExpectCommit()

	_, err := f.ledger.CreateBooking(context.Background(), CreateBookingParams{EventID: 1, UserID: 7, Seats: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, f.logs.FilterMessage("ledger: notify failed").Len())
	f.done(t)
}
