package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-reservations/internal/model"
)

// BookingRepo provides access to the bookings table.  Bookings are only
// created, cancelled and deleted through the reservation ledger, which
// calls the *Tx methods inside its transactions.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = "id, user_id, event_id, seats, unit_price, status, refund_amount, idempotency_key, booking_time, created_at, updated_at"

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b      model.Booking
		userID sql.NullInt64
		key    sql.NullString
	)
	err := row.Scan(&b.ID, &userID, &b.EventID, &b.Seats, &b.UnitPrice, &b.Status,
		&b.RefundAmount, &key, &b.BookingTime, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	b.UserID = uintPtr(userID)
	b.IdempotencyKey = strPtr(key)
	return &b, nil
}

// GetByID returns a booking or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id = ? ORDER BY booking_time DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CreateTx inserts a booking within the scope of an existing transaction
// and populates the generated ID.  The caller must commit or rollback.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, event_id, seats, unit_price, status, idempotency_key, booking_time) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.EventID, b.Seats, b.UnitPrice, b.Status,
		nullString(b.IdempotencyKey), b.BookingTime)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.CreatedAt = b.BookingTime
	b.UpdatedAt = b.BookingTime
	return nil
}

// FindByIdempotencyKeyTx returns the booking a user created earlier with
// the same idempotency key, or ErrNotFound.
func (r *BookingRepo) FindByIdempotencyKeyTx(ctx context.Context, tx *sql.Tx, userID uint64, key string) (*model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id = ? AND idempotency_key = ?", userID, key))
}

// EventIDTx resolves the event a booking belongs to without locking it, so
// the caller can lock the event before the booking.
func (r *BookingRepo) EventIDTx(ctx context.Context, tx *sql.Tx, id uint64) (uint64, error) {
	var eventID uint64
	err := tx.QueryRowContext(ctx, "SELECT event_id FROM bookings WHERE id = ?", id).Scan(&eventID)
	if err != nil {
		return 0, notFound(err)
	}
	return eventID, nil
}

// LockTx reads the booking with an exclusive row lock.
func (r *BookingRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ? FOR UPDATE", id))
}

// SetStatusTx records the new status and refund amount of a booking.
func (r *BookingRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, refund model.Money) error {
	_, err := tx.ExecContext(ctx, "UPDATE bookings SET status = ?, refund_amount = ? WHERE id = ?", status, refund, id)
	return err
}

// HeldSeatsTx sums the seats of the event's bookings that still hold
// seats.  This is the value reserved_seats must always equal.
func (r *BookingRepo) HeldSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(seats), 0) FROM bookings WHERE event_id = ? AND status IN ('PENDING','ACTIVE')",
		eventID).Scan(&n)
	return n, err
}

// DeleteTx removes a single booking.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", id)
	ok, err := affected(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteByEventTx removes every booking of an event and returns how many
// rows went away.
func (r *BookingRepo) DeleteByEventTx(ctx context.Context, tx *sql.Tx, eventID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM bookings WHERE event_id = ?", eventID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DetachUserTx clears the user reference of every booking owned by a user
// that is being deleted.  The bookings themselves stay.
func (r *BookingRepo) DetachUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, "UPDATE bookings SET user_id = NULL WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
