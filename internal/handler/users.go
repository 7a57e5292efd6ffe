package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/middleware"
	"github.com/iliyamo/event-reservations/internal/repository"
)

// UserHandler serves the caller's own profile and the admin user listing.
// Account deletion goes through the ledger, which detaches the user's
// bookings and cancellations instead of deleting them.
type UserHandler struct {
	Users      UserStore
	Ledger     Reservations
	BcryptCost int
	Log        *zap.Logger
}

func NewUserHandler(u UserStore, l Reservations, bcryptCost int, log *zap.Logger) *UserHandler {
	return &UserHandler{Users: u, Ledger: l, BcryptCost: bcryptCost, Log: log}
}

type patchUserReq struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	Phone     *string `json:"phone" validate:"omitempty,min=1,max=32"`
	Gender    *string `json:"gender" validate:"omitempty,oneof=M F O"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=72"`
}

func (r patchUserReq) empty() bool {
	return r.FirstName == nil && r.LastName == nil && r.Email == nil &&
		r.Phone == nil && r.Gender == nil && r.Password == nil
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return storeError(c, h.Log, "user", err)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateMe applies a partial profile update.  A taken email is a 409.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req patchUserReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err)
	}
	if req.empty() {
		return badRequest(c, errors.New("nothing to update"))
	}
	if req.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &e
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Update(ctx, uid, repository.UserPatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Gender:    req.Gender,
		Password:  req.Password,
	}, h.BcryptCost)
	if err != nil {
		return storeError(c, h.Log, "user", err)
	}
	return c.JSON(http.StatusOK, u)
}

// DeleteMe removes the caller's account.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.deleteUser(c, uid)
}

// List is the admin user listing, newest first.
func (h *UserHandler) List(c echo.Context) error {
	limit, offset := page(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Users.List(ctx, limit, offset)
	if err != nil {
		return internalError(c, h.Log, "list users failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users, "limit": limit, "offset": offset})
}

// Delete removes any account (admin).
func (h *UserHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	return h.deleteUser(c, id)
}

func (h *UserHandler) deleteUser(c echo.Context, id uint64) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	sum, err := h.Ledger.DeleteUser(ctx, id)
	if err != nil {
		return ledgerError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": id, "summary": sum})
}
