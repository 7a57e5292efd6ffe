package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservations/internal/handler"
	"github.com/iliyamo/event-reservations/internal/middleware"
	"github.com/iliyamo/event-reservations/internal/model"
)

// RegisterBookings registers the customer booking endpoints under /v1.  All
// routes require a valid JWT; USER and ADMIN may book.  The two writes are
// rate limited and purge the event cache once they succeed, since both
// change reserved_seats.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limit, purge echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("/events/:id/bookings", h.Create, limit, purge)
	g.GET("/my-bookings", h.Mine)
	g.GET("/bookings/:id", h.Get)
	g.POST("/bookings/:id/cancel", h.Cancel, limit, purge)
}
