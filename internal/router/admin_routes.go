package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservations/internal/handler"
	"github.com/iliyamo/event-reservations/internal/middleware"
	"github.com/iliyamo/event-reservations/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.
// Every write that can change an event or its seat counts purges the
// event cache after it succeeds.
func RegisterAdmin(e *echo.Echo, ev *handler.EventHandler, u *handler.UserHandler, a *handler.AdminHandler, jwtSecret string, purge echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Events ----
	g.GET("/events", ev.List) // ?all=true includes cancelled events
	g.POST("/events", ev.Create, purge)
	g.PATCH("/events/:id", ev.Patch, purge)
	g.DELETE("/events/:id", ev.Delete, purge)
	g.DELETE("/events", ev.DeleteByName, purge) // ?name=
	g.GET("/events/:id/audit", a.Audit)
	g.POST("/events/:id/repair", a.Repair, purge)

	// ---- Bookings and their records ----
	g.DELETE("/bookings/:id", a.DeleteBooking, purge)
	g.DELETE("/payments/:id", a.DeletePayment)
	g.DELETE("/cancellations/:id", a.DeleteCancellation)

	// ---- Users ----
	g.GET("/users", u.List)
	g.DELETE("/users/:id", u.Delete)
}
