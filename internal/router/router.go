package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservations/internal/handler"
	"github.com/iliyamo/event-reservations/internal/middleware"
	"github.com/iliyamo/event-reservations/internal/model"
)

// RegisterRoutes registers the liveness and readiness probes.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready.Ready)
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// caller's own profile under /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, u *handler.UserHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/admin/register", a.AdminRegister)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout accepts either a refresh token in the body or a bearer token,
	// so it is not behind JWTAuth
	g.POST("/logout", a.Logout)

	me := e.Group("/v1/me",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	me.GET("", u.Me)
	me.PATCH("", u.UpdateMe)
	me.DELETE("", u.DeleteMe)
}

// RegisterPublic registers the unauthenticated event catalogue.  cache is
// applied to every read; pass a pass-through middleware to disable it.
func RegisterPublic(e *echo.Echo, ev *handler.EventHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/events", ev.List, cache)
	e.GET("/v1/events/by-name", ev.ByName, cache)
	e.GET("/v1/events/:id", ev.Get, cache)
}
