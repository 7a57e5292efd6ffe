package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/ledger"
	"github.com/iliyamo/event-reservations/internal/middleware"
	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/repository"
)

// IdempotencyKeyHeader lets clients retry a booking request safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// BookingHandler exposes the customer side of the reservation ledger.
type BookingHandler struct {
	Ledger        Reservations
	Bookings      BookingStore
	Payments      PaymentReader
	Cancellations CancellationReader
	Log           *zap.Logger
}

func NewBookingHandler(l Reservations, b BookingStore, p PaymentReader, cx CancellationReader, log *zap.Logger) *BookingHandler {
	return &BookingHandler{Ledger: l, Bookings: b, Payments: p, Cancellations: cx, Log: log}
}

type paymentReq struct {
	TransactionID string       `json:"transaction_id" validate:"omitempty,max=64"`
	Method        string       `json:"payment_method" validate:"required,oneof=cash card transfer"`
	Amount        *model.Money `json:"amount_paid" validate:"omitempty,gt=0"`
}

type createBookingReq struct {
	Seats     int          `json:"seats" validate:"required,gt=0"`
	UnitPrice *model.Money `json:"unit_price" validate:"omitempty,gte=0"`
	Payment   *paymentReq  `json:"payment"`
}

type cancelReq struct {
	Reason string `json:"reason" validate:"max=255"`
}

type bookingDetail struct {
	Booking      *model.Booking      `json:"booking"`
	Payment      *model.Payment      `json:"payment,omitempty"`
	Cancellation *model.Cancellation `json:"cancellation,omitempty"`
}

// Create books seats on an event for the caller.  A repeated
// Idempotency-Key returns the original booking with 200 instead of 201.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	key := strings.TrimSpace(c.Request().Header.Get(IdempotencyKeyHeader))
	if len(key) > 64 {
		return badRequest(c, errors.New("idempotency key longer than 64 characters"))
	}
	var req createBookingReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err)
	}

	p := ledger.CreateBookingParams{
		EventID:        eventID,
		UserID:         uid,
		Seats:          req.Seats,
		IdempotencyKey: key,
	}
	if req.UnitPrice != nil {
		p.UnitPrice = *req.UnitPrice
	}
	if req.Payment != nil {
		p.Payment = &ledger.PaymentInfo{TransactionID: req.Payment.TransactionID, Method: req.Payment.Method}
		if req.Payment.Amount != nil {
			p.Payment.Amount = *req.Payment.Amount
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Ledger.CreateBooking(ctx, p)
	if err != nil {
		return ledgerError(c, h.Log, err)
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, res)
}

// Mine lists the caller's bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Bookings.ListByUser(ctx, uid)
	if err != nil {
		return internalError(c, h.Log, "list bookings failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Get returns one booking with its payment and cancellation.  Only the
// owner or an admin may read it.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		return storeError(c, h.Log, "booking", err)
	}
	if !middleware.IsAdmin(c) && (b.UserID == nil || *b.UserID != uid) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	out := bookingDetail{Booking: b}
	if out.Payment, err = h.Payments.GetByBooking(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return internalError(c, h.Log, "load payment failed", err)
	}
	if out.Cancellation, err = h.Cancellations.GetByBooking(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return internalError(c, h.Log, "load cancellation failed", err)
	}
	return c.JSON(http.StatusOK, out)
}

// Cancel cancels a booking and releases its seats.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req cancelReq
	if c.Request().ContentLength != 0 {
		if err := bindValid(c, &req); err != nil {
			return badRequest(c, err)
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Ledger.CancelBooking(ctx, ledger.CancelBookingParams{
		BookingID:   id,
		RequesterID: uid,
		IsAdmin:     middleware.IsAdmin(c),
		Reason:      strings.TrimSpace(req.Reason),
	})
	if err != nil {
		return ledgerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}
