package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AdminHandler exposes direct deletes and the counter audit.  Every write
// goes through the ledger so reserved_seats stays consistent.
type AdminHandler struct {
	Ledger Reservations
	Log    *zap.Logger
}

func NewAdminHandler(l Reservations, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Ledger: l, Log: log}
}

func (h *AdminHandler) DeleteBooking(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sum, err := h.Ledger.DeleteBooking(ctx, id)
	if err != nil {
		return ledgerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": id, "summary": sum})
}

func (h *AdminHandler) DeletePayment(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Ledger.DeletePayment(ctx, id); err != nil {
		return ledgerError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) DeleteCancellation(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cancellation id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Ledger.DeleteCancellation(ctx, id); err != nil {
		return ledgerError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Audit compares reserved_seats with the seats held by the event's
// bookings.
func (h *AdminHandler) Audit(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rep, err := h.Ledger.Audit(ctx, id)
	if err != nil {
		return ledgerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"report": rep, "consistent": rep.Consistent()})
}

// Repair rewrites reserved_seats from the bookings.
func (h *AdminHandler) Repair(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rep, err := h.Ledger.Repair(ctx, id)
	if err != nil {
		return ledgerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"report": rep})
}
