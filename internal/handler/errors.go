package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/ledger"
	"github.com/iliyamo/event-reservations/internal/middleware"
	"github.com/iliyamo/event-reservations/internal/repository"
)

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
}

func internalError(c echo.Context, log *zap.Logger, op string, err error) error {
	log.Error(op, zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

// ledgerError maps ledger error kinds to HTTP responses.  Only the kinds a
// client can act on are described; everything else is a generic 500.
func ledgerError(c echo.Context, log *zap.Logger, err error) error {
	var capErr *ledger.CapacityError
	switch {
	case errors.As(err, &capErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     ledger.ErrCapacityExceeded.Error(),
			"requested": capErr.Requested,
			"available": capErr.Available,
		})
	case errors.Is(err, ledger.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, ledger.ErrCapacityExceeded),
		errors.Is(err, ledger.ErrAlreadyCancelled),
		errors.Is(err, ledger.ErrConcurrencyConflict),
		errors.Is(err, ledger.ErrEventNotActive),
		errors.Is(err, ledger.ErrDuplicatePayment),
		errors.Is(err, ledger.ErrConstraintViolation):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidSeats),
		errors.Is(err, ledger.ErrPriceMismatch),
		errors.Is(err, ledger.ErrAmountOutOfRange):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrIdempotencyKeyReused):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	default:
		return internalError(c, log, "ledger operation failed", err)
	}
}

// storeError maps repository sentinels for the catalogue and account
// endpoints that do not go through the ledger.
func storeError(c echo.Context, log *zap.Logger, what string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": what + " not found"})
	case errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrEventNameExists),
		errors.Is(err, repository.ErrCapacityBelowReserved):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return internalError(c, log, what+" query failed", err)
	}
}

// HTTPErrorHandler renders errors that reach echo (unknown routes, binder
// failures, panics turned into errors by Recover) in the same
// {"error": "..."} shape the handlers use.
func HTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		} else {
			log.Error("unhandled error", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"error": msg})
		}
		if err != nil {
			log.Warn("write error response failed", zap.Error(err))
		}
	}
}
