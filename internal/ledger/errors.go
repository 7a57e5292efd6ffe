package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/repository"
)

// Error kinds returned by the ledger.  Callers compare with errors.Is; raw
// store errors never cross the ledger boundary.
var (
	ErrCapacityExceeded     = errors.New("not enough available seats for this event")
	ErrAlreadyCancelled     = errors.New("booking already cancelled")
	ErrNotFound             = errors.New("not found")
	ErrConstraintViolation  = errors.New("constraint violation")
	ErrConcurrencyConflict  = errors.New("concurrent update conflict")
	ErrForbidden            = errors.New("forbidden")
	ErrEventNotActive       = errors.New("event is not active")
	ErrInvalidSeats         = errors.New("seats must be greater than zero")
	ErrPriceMismatch        = errors.New("unit price does not match the event price")
	ErrDuplicatePayment     = errors.New("payment transaction already recorded")
	ErrIdempotencyKeyReused = errors.New("idempotency key already used for a different booking request")
	ErrAmountOutOfRange     = errors.New("booking amount exceeds the largest storable amount")
	ErrInvariantViolation   = errors.New("reservation counter invariant violated")
	ErrInternal             = errors.New("internal error")
)

var kinds = []error{
	ErrCapacityExceeded, ErrAlreadyCancelled, ErrNotFound, ErrConstraintViolation,
	ErrConcurrencyConflict, ErrForbidden, ErrEventNotActive, ErrInvalidSeats,
	ErrPriceMismatch, ErrDuplicatePayment, ErrIdempotencyKeyReused, ErrAmountOutOfRange,
	ErrInvariantViolation, ErrInternal,
}

// CapacityError carries the numbers behind an ErrCapacityExceeded.
type CapacityError struct {
	EventID   uint64
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough available seats for this event: requested %d, available %d", e.Requested, e.Available)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacityExceeded }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     uint64
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(entity string, id uint64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func isKind(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

func retryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || repository.IsRetryable(err)
}

// translate maps an operation failure to a ledger error kind and logs it.
// Store errors are only ever logged.
func (l *Ledger) translate(op string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	fields = append(fields, zap.String("op", op), zap.Error(err))
	switch {
	case errors.Is(err, ErrInvariantViolation):
		l.log.Error("ledger: invariant violation", fields...)
		return err
	case isKind(err):
		l.log.Info("ledger: rejected", fields...)
		return err
	case errors.Is(err, repository.ErrNotFound):
		l.log.Info("ledger: rejected", fields...)
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		l.log.Warn("ledger: aborted", fields...)
		return err
	case repository.IsRetryable(err):
		l.log.Warn("ledger: lock conflict", fields...)
		return ErrConcurrencyConflict
	case repository.IsDuplicateKey(err), repository.IsForeignKeyViolation(err),
		repository.IsCheckViolation(err), errors.Is(err, repository.ErrConflict):
		l.log.Error("ledger: constraint violation", fields...)
		return ErrConstraintViolation
	default:
		l.log.Error("ledger: store failure", fields...)
		return ErrInternal
	}
}
