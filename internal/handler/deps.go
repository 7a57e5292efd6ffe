package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservations/internal/ledger"
	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/repository"
)

// The interfaces below are the slices of the repositories and the ledger
// each handler needs.  *repository.XRepo and *ledger.Ledger satisfy them.

type UserStore interface {
	Create(ctx context.Context, nu repository.NewUser, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context, limit, offset int) ([]model.User, error)
	Update(ctx context.Context, id uint64, p repository.UserPatch, cost int) (*model.User, error)
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	GetByName(ctx context.Context, name string) (*model.Event, error)
	List(ctx context.Context, onlyActive bool, limit, offset int) ([]model.Event, error)
	Update(ctx context.Context, id uint64, p repository.EventPatch) (*model.Event, error)
}

type BookingStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
}

type PaymentReader interface {
	GetByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error)
}

type CancellationReader interface {
	GetByBooking(ctx context.Context, bookingID uint64) (*model.Cancellation, error)
}

// Reservations is the write side of the booking domain.
type Reservations interface {
	CreateBooking(ctx context.Context, p ledger.CreateBookingParams) (*ledger.BookingResult, error)
	CancelBooking(ctx context.Context, p ledger.CancelBookingParams) (*ledger.CancellationResult, error)
	DeleteEvent(ctx context.Context, eventID uint64) (*ledger.CascadeSummary, error)
	DeleteEventByName(ctx context.Context, name string) (*ledger.CascadeSummary, error)
	DeleteUser(ctx context.Context, userID uint64) (*ledger.CascadeSummary, error)
	DeleteBooking(ctx context.Context, bookingID uint64) (*ledger.CascadeSummary, error)
	DeletePayment(ctx context.Context, paymentID uint64) error
	DeleteCancellation(ctx context.Context, cancellationID uint64) error
	Audit(ctx context.Context, eventID uint64) (*ledger.AuditReport, error)
	Repair(ctx context.Context, eventID uint64) (*ledger.AuditReport, error)
}

const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// page reads limit/offset query parameters; limit defaults to 20 and is
// capped at 100.
func page(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
