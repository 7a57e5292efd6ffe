package ledger

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

// AuditReport compares an event's reserved_seats counter with the seats
// actually held by its PENDING and ACTIVE bookings.
type AuditReport struct {
	EventID       uint64 `json:"event_id"`
	TotalSeats    int    `json:"total_seats"`
	ReservedSeats int    `json:"reserved_seats"`
	ActiveSeats   int    `json:"active_seats"`
	Drift         int    `json:"drift"`
	Repaired      bool   `json:"repaired"`
}

// Consistent reports whether the counter matches the bookings.
func (r AuditReport) Consistent() bool { return r.Drift == 0 }

// Audit recomputes the held seats of an event without changing anything.
func (l *Ledger) Audit(ctx context.Context, eventID uint64) (*AuditReport, error) {
	var out *AuditReport
	err := l.withTx(ctx, "audit", func(tx *sql.Tx) error {
		ev, err := l.events.GetTx(ctx, tx, eventID)
		if err != nil {
			return notFound("event", eventID, err)
		}
		held, err := l.bookings.HeldSeatsTx(ctx, tx, eventID)
		if err != nil {
			return err
		}
		out = &AuditReport{
			EventID:       ev.ID,
			TotalSeats:    ev.TotalSeats,
			ReservedSeats: ev.ReservedSeats,
			ActiveSeats:   held,
			Drift:         ev.ReservedSeats - held,
		}
		return nil
	})
	if err != nil {
		return nil, l.translate("audit", err, zap.Uint64("event_id", eventID))
	}
	if !out.Consistent() {
		l.log.Error("ledger: reserved seats drift", zap.Uint64("event_id", eventID),
			zap.Int("reserved_seats", out.ReservedSeats), zap.Int("active_seats", out.ActiveSeats))
	}
	return out, nil
}

// Repair rewrites reserved_seats to the held seats under the event lock.
// It refuses when the bookings themselves exceed the capacity.
func (l *Ledger) Repair(ctx context.Context, eventID uint64) (*AuditReport, error) {
	var out *AuditReport
	err := l.withTx(ctx, "repair", func(tx *sql.Tx) error {
		out = nil
		ev, err := l.events.LockTx(ctx, tx, eventID)
		if err != nil {
			return notFound("event", eventID, err)
		}
		held, err := l.bookings.HeldSeatsTx(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if held > ev.TotalSeats {
			return ErrInvariantViolation
		}
		r := &AuditReport{
			EventID:       ev.ID,
			TotalSeats:    ev.TotalSeats,
			ReservedSeats: ev.ReservedSeats,
			ActiveSeats:   held,
			Drift:         ev.ReservedSeats - held,
		}
		if r.Drift != 0 {
			if err := l.events.SetReservedSeatsTx(ctx, tx, ev.ID, held); err != nil {
				return err
			}
			r.ReservedSeats = held
			r.Repaired = true
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, l.translate("repair", err, zap.Uint64("event_id", eventID))
	}
	if out.Repaired {
		l.log.Warn("ledger: reserved seats repaired", zap.Uint64("event_id", eventID), zap.Int("drift", out.Drift),
			zap.Int("reserved_seats", out.ReservedSeats))
	}
	return out, nil
}
