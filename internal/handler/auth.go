package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/config"
	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/repository"
	"github.com/iliyamo/event-reservations/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	Log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

// ----- DTOs -----

type addressReq struct {
	Street     string `json:"street" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

type registerReq struct {
	FirstName   string      `json:"first_name" validate:"required,max=100"`
	LastName    string      `json:"last_name" validate:"required,max=100"`
	Email       string      `json:"email" validate:"required,email,max=255"`
	Password    string      `json:"password" validate:"required,min=8,max=72"`
	DateOfBirth string      `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender      *string     `json:"gender" validate:"omitempty,oneof=M F O"`
	Phone       string      `json:"phone" validate:"required,max=32"`
	Address     *addressReq `json:"address"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    *model.User `json:"user"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

func (r registerReq) newUser(role string) repository.NewUser {
	dob, _ := time.Parse(time.DateOnly, r.DateOfBirth)
	nu := repository.NewUser{
		FirstName:   strings.TrimSpace(r.FirstName),
		LastName:    strings.TrimSpace(r.LastName),
		Email:       strings.ToLower(strings.TrimSpace(r.Email)),
		Password:    r.Password,
		Role:        role,
		DateOfBirth: dob,
		Gender:      r.Gender,
		Phone:       strings.TrimSpace(r.Phone),
	}
	if a := r.Address; a != nil {
		nu.Address = &model.Address{Street: a.Street, City: a.City, PostalCode: a.PostalCode, Country: a.Country}
	}
	return nu
}

// issue signs an access token, stores a fresh refresh token and renders
// the pair.
func (h *AuthHandler) issue(c echo.Context, status int, u *model.User) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return internalError(c, h.Log, "issue access failed", err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return internalError(c, h.Log, "issue refresh failed", err)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return internalError(c, h.Log, "save refresh failed", err)
	}
	return c.JSON(status, authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

func (h *AuthHandler) register(c echo.Context, role string) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.newUser(role), h.Cfg.BcryptCost)
	if err != nil {
		return storeError(c, h.Log, "user", err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return internalError(c, h.Log, "load user failed", err)
	}
	h.Log.Info("user registered", zap.Uint64("user_id", uid), zap.String("role", role))
	return h.issue(c, http.StatusCreated, u)
}

// Register creates a USER account and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	return h.register(c, model.RoleUser)
}

// AdminRegister creates an ADMIN account.  Only available when
// ALLOW_ADMIN_SIGNUP is set, which Load refuses in production.
func (h *AuthHandler) AdminRegister(c echo.Context) error {
	if !h.Cfg.AllowAdminSignup {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "admin signup disabled"})
	}
	return h.register(c, model.RoleAdmin)
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return internalError(c, h.Log, "query failed", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
	}
	return h.issue(c, http.StatusOK, u)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := reqCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return internalError(c, h.Log, "validate refresh failed", err)
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return internalError(c, h.Log, "revoke refresh failed", err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return internalError(c, h.Log, "load user failed", err)
	}
	return h.issue(c, http.StatusOK, u)
}

// Logout revokes the refresh token in the body, or every refresh token of
// the bearer when no body token is given.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC()); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return internalError(c, h.Log, "logout failed", err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(raw))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	uid, _ := claims.UserID()
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return internalError(c, h.Log, "logout failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
