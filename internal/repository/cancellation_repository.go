package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-reservations/internal/model"
)

// CancellationRepo provides access to the cancellations table.  The
// unique key on booking_id guarantees at most one cancellation per booking.
type CancellationRepo struct {
	db *sql.DB
}

func NewCancellationRepo(db *sql.DB) *CancellationRepo { return &CancellationRepo{db: db} }

const cancellationColumns = "id, user_id, booking_id, cancellation_time, refund_amount, reason, created_at, updated_at"

func scanCancellation(row rowScanner) (*model.Cancellation, error) {
	var (
		c      model.Cancellation
		userID sql.NullInt64
		reason sql.NullString
	)
	err := row.Scan(&c.ID, &userID, &c.BookingID, &c.CancellationTime, &c.RefundAmount, &reason,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	c.UserID = uintPtr(userID)
	c.Reason = strPtr(reason)
	return &c, nil
}

// GetByBooking returns the cancellation of a booking or ErrNotFound.
func (r *CancellationRepo) GetByBooking(ctx context.Context, bookingID uint64) (*model.Cancellation, error) {
	return scanCancellation(r.db.QueryRowContext(ctx,
		"SELECT "+cancellationColumns+" FROM cancellations WHERE booking_id = ?", bookingID))
}

// ExistsForBookingTx reports whether the booking already has a cancellation.
func (r *CancellationRepo) ExistsForBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (bool, error) {
	var id uint64
	err := tx.QueryRowContext(ctx, "SELECT id FROM cancellations WHERE booking_id = ?", bookingID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts the cancellation and populates its ID.  A second
// cancellation for the same booking yields ErrConflict.
func (r *CancellationRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Cancellation) error {
	const q = `INSERT INTO cancellations (user_id, booking_id, cancellation_time, refund_amount, reason) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, c.UserID, c.BookingID, c.CancellationTime, c.RefundAmount, nullString(c.Reason))
	if err != nil {
		if IsDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.CreatedAt = c.CancellationTime
	c.UpdatedAt = c.CancellationTime
	return nil
}

// DeleteByBookingTx removes the cancellation of one booking.
func (r *CancellationRepo) DeleteByBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM cancellations WHERE booking_id = ?", bookingID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByEventTx removes the cancellations of every booking of an event.
func (r *CancellationRepo) DeleteByEventTx(ctx context.Context, tx *sql.Tx, eventID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"DELETE c FROM cancellations c JOIN bookings b ON b.id = c.booking_id WHERE b.event_id = ?", eventID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DetachUserTx clears the user reference of a deleted user's cancellations.
func (r *CancellationRepo) DetachUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, "UPDATE cancellations SET user_id = NULL WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a cancellation by id.  The booking keeps its status and
// the event counter is left alone.
func (r *CancellationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cancellations WHERE id = ?", id)
	ok, err := affected(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
