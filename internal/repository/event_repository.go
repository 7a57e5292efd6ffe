package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/event-reservations/internal/model"
)

// EventRepo provides access to the events table.  Reads and catalogue
// writes live here; the *Tx methods are the building blocks the
// reservation ledger composes inside its own transactions.  No method
// outside the ledger changes reserved_seats.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// EventPatch lists the admin-editable fields of an event.  Nil fields keep
// their current value.
type EventPatch struct {
	Description   *string
	Status        *string
	StartLocation *string
	Destination   *string
	StartsAt      *time.Time
	EndsAt        *time.Time
	TotalSeats    *int
	PricePerSeat  *model.Money
}

const eventColumns = "id, name, description, status, start_location, destination, starts_at, ends_at, total_seats, reserved_seats, price_per_seat, created_at, updated_at"

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		e    model.Event
		desc sql.NullString
	)
	err := row.Scan(&e.ID, &e.Name, &desc, &e.Status, &e.StartLocation, &e.Destination,
		&e.StartsAt, &e.EndsAt, &e.TotalSeats, &e.ReservedSeats, &e.PricePerSeat,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	e.Description = strPtr(desc)
	return &e, nil
}

// Create inserts a new event with reserved_seats = 0 and populates the
// generated ID and timestamps on e.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	if e.Status == "" {
		e.Status = model.EventActive
	}
	const q = `INSERT INTO events (name, description, status, start_location, destination, starts_at, ends_at, total_seats, price_per_seat) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.Name, nullString(e.Description), e.Status,
		e.StartLocation, e.Destination, e.StartsAt, e.EndsAt, e.TotalSeats, e.PricePerSeat)
	if err != nil {
		if IsDuplicateKey(err) {
			return ErrEventNameExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*e = *got
	return nil
}

// GetByID returns the event or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	return scanEvent(r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id))
}

// GetByName returns the event with the given unique name or ErrNotFound.
func (r *EventRepo) GetByName(ctx context.Context, name string) (*model.Event, error) {
	return scanEvent(r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE name = ?", strings.TrimSpace(name)))
}

// List returns events ordered by start time.  When onlyActive is set,
// cancelled events are skipped.
func (r *EventRepo) List(ctx context.Context, onlyActive bool, limit, offset int) ([]model.Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := "SELECT " + eventColumns + " FROM events"
	args := []any{}
	if onlyActive {
		q += " WHERE status = ?"
		args = append(args, model.EventActive)
	}
	q += " ORDER BY starts_at, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Update applies an admin patch.  The row is locked first so the capacity
// check against reserved_seats cannot race a concurrent booking.
func (r *EventRepo) Update(ctx context.Context, id uint64, p EventPatch) (*model.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cur, err := r.LockTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p.TotalSeats != nil && *p.TotalSeats < cur.ReservedSeats {
		return nil, ErrCapacityBelowReserved
	}

	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.StartLocation != nil {
		add("start_location", *p.StartLocation)
	}
	if p.Destination != nil {
		add("destination", *p.Destination)
	}
	if p.StartsAt != nil {
		add("starts_at", *p.StartsAt)
	}
	if p.EndsAt != nil {
		add("ends_at", *p.EndsAt)
	}
	if p.TotalSeats != nil {
		add("total_seats", *p.TotalSeats)
	}
	if p.PricePerSeat != nil {
		add("price_per_seat", *p.PricePerSeat)
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := tx.ExecContext(ctx, "UPDATE events SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
			if IsCheckViolation(err) {
				return nil, ErrCapacityBelowReserved
			}
			return nil, err
		}
	}
	updated, err := scanEvent(tx.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return updated, nil
}

// GetTx reads the event inside a transaction without locking it.
func (r *EventRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	return scanEvent(tx.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id))
}

// LockTx reads the event and holds an exclusive row lock on it until the
// transaction ends.  Every ledger operation takes this lock first.
func (r *EventRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	return scanEvent(tx.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ? FOR UPDATE", id))
}

// ReserveSeatsTx increments reserved_seats only if the capacity still
// allows it.  It reports false when no row was changed.
func (r *EventRepo) ReserveSeatsTx(ctx context.Context, tx *sql.Tx, id uint64, seats int) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE events SET reserved_seats = reserved_seats + ? WHERE id = ? AND total_seats - reserved_seats >= ?",
		seats, id, seats)
	return affected(res, err)
}

// ReleaseSeatsTx decrements reserved_seats only if it would not go below
// zero.  It reports false when no row was changed.
func (r *EventRepo) ReleaseSeatsTx(ctx context.Context, tx *sql.Tx, id uint64, seats int) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE events SET reserved_seats = reserved_seats - ? WHERE id = ? AND reserved_seats >= ?",
		seats, id, seats)
	return affected(res, err)
}

// SetReservedSeatsTx overwrites the counter.  Only the ledger's repair
// path calls it.
func (r *EventRepo) SetReservedSeatsTx(ctx context.Context, tx *sql.Tx, id uint64, reserved int) error {
	_, err := tx.ExecContext(ctx, "UPDATE events SET reserved_seats = ? WHERE id = ?", reserved, id)
	return err
}

// DeleteTx removes the event row.
func (r *EventRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	ok, err := affected(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
