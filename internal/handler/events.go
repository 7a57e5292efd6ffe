package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/middleware"
	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/repository"
)

// EventHandler serves the public catalogue and the admin event endpoints.
// Event deletes cascade through the ledger; creates and patches never touch
// reserved_seats.
type EventHandler struct {
	Events EventStore
	Ledger Reservations
	Log    *zap.Logger
}

func NewEventHandler(e EventStore, l Reservations, log *zap.Logger) *EventHandler {
	return &EventHandler{Events: e, Ledger: l, Log: log}
}

type createEventReq struct {
	Name          string      `json:"name" validate:"required,max=255"`
	Description   *string     `json:"description"`
	StartLocation string      `json:"start_location" validate:"required,max=255"`
	Destination   string      `json:"destination" validate:"required,max=255"`
	StartsAt      time.Time   `json:"starts_at" validate:"required"`
	EndsAt        time.Time   `json:"ends_at" validate:"required,gtfield=StartsAt"`
	TotalSeats    int         `json:"total_seats" validate:"required,gt=0"`
	PricePerSeat  model.Money `json:"price_per_seat" validate:"gte=0"`
}

type patchEventReq struct {
	Description   *string      `json:"description"`
	Status        *string      `json:"status" validate:"omitempty,oneof=ACTIVE CANCELLED"`
	StartLocation *string      `json:"start_location" validate:"omitempty,min=1,max=255"`
	Destination   *string      `json:"destination" validate:"omitempty,min=1,max=255"`
	StartsAt      *time.Time   `json:"starts_at"`
	EndsAt        *time.Time   `json:"ends_at"`
	TotalSeats    *int         `json:"total_seats" validate:"omitempty,gt=0"`
	PricePerSeat  *model.Money `json:"price_per_seat" validate:"omitempty,gte=0"`
}

// List returns active events.  all=true includes cancelled ones, but only
// for an authenticated admin; the public route ignores it.
func (h *EventHandler) List(c echo.Context) error {
	limit, offset := page(c)
	onlyActive := c.QueryParam("all") != "true" || !middleware.IsAdmin(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	events, err := h.Events.List(ctx, onlyActive, limit, offset)
	if err != nil {
		return internalError(c, h.Log, "list events failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events, "limit": limit, "offset": offset})
}

func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return storeError(c, h.Log, "event", err)
	}
	return c.JSON(http.StatusOK, ev)
}

// ByName looks an event up by its unique name (?name=).
func (h *EventHandler) ByName(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ev, err := h.Events.GetByName(ctx, name)
	if err != nil {
		return storeError(c, h.Log, "event", err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Create registers a new event with no reserved seats.
func (h *EventHandler) Create(c echo.Context) error {
	var req createEventReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err)
	}
	ev := &model.Event{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Status:        model.EventActive,
		StartLocation: req.StartLocation,
		Destination:   req.Destination,
		StartsAt:      req.StartsAt.UTC(),
		EndsAt:        req.EndsAt.UTC(),
		TotalSeats:    req.TotalSeats,
		PricePerSeat:  req.PricePerSeat,
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Events.Create(ctx, ev); err != nil {
		return storeError(c, h.Log, "event", err)
	}
	h.Log.Info("event created", zap.Uint64("event_id", ev.ID), zap.Int("total_seats", ev.TotalSeats))
	return c.JSON(http.StatusCreated, ev)
}

// Patch edits event fields.  total_seats may not drop below the seats
// already reserved (409).
func (h *EventHandler) Patch(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req patchEventReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err)
	}
	if req.StartsAt != nil && req.EndsAt != nil && !req.EndsAt.After(*req.StartsAt) {
		return badRequest(c, errors.New("ends_at must be after starts_at"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ev, err := h.Events.Update(ctx, id, repository.EventPatch{
		Description:   req.Description,
		Status:        req.Status,
		StartLocation: req.StartLocation,
		Destination:   req.Destination,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		TotalSeats:    req.TotalSeats,
		PricePerSeat:  req.PricePerSeat,
	})
	if err != nil {
		return storeError(c, h.Log, "event", err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Delete removes an event and everything booked on it.
func (h *EventHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sum, err := h.Ledger.DeleteEvent(ctx, id)
	if err != nil {
		return ledgerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": id, "summary": sum})
}

// DeleteByName is Delete addressed by ?name=.
func (h *EventHandler) DeleteByName(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sum, err := h.Ledger.DeleteEventByName(ctx, name)
	if err != nil {
		return ledgerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": name, "summary": sum})
}
