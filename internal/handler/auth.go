package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ctei-manager/internal/auth"
	"github.com/iliyamo/ctei-manager/internal/logging"
	"github.com/iliyamo/ctei-manager/internal/model"
	"github.com/iliyamo/ctei-manager/internal/repository"
)

// AuthHandler serves registration, login and the current-user endpoint.
type AuthHandler struct {
	Users  UserStore
	Hasher *auth.PasswordHasher
	Tokens *auth.TokenCodec
	Log    *zap.Logger
}

func NewAuthHandler(users UserStore, hasher *auth.PasswordHasher, tokens *auth.TokenCodec, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Users: users, Hasher: hasher, Tokens: tokens, Log: logging.OrNop(logger).Named("auth")}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=190"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"fullName" validate:"required,max=120"`
	// Role may request INVESTIGATOR; ADMIN is granted only by an admin.
	Role string `json:"role" validate:"omitempty,oneof=COMMUNITY INVESTIGATOR"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResp struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

// Register creates a user and returns a token right away.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if msg, valid := bindValid(c, &req); !valid {
		return fail(c, http.StatusBadRequest, msg)
	}
	role := auth.RoleCommunity
	if req.Role != "" {
		role = auth.Role(req.Role)
	}
	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		h.Log.Error("hash password", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "registration failed")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	u := &model.User{Email: req.Email, FullName: req.FullName, PasswordHash: hash, Role: role}
	if err := h.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "email already exists")
		}
		h.Log.Error("create user", zap.Error(err))
		return storeError(c, err, "user")
	}
	return h.respondWithToken(c, http.StatusCreated, u)
}

// Login verifies credentials.  Unknown emails, inactive accounts and wrong
// passwords all answer "invalid credentials".  A legacy hash is replaced by
// the current scheme after a successful login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if msg, valid := bindValid(c, &req); !valid {
		return fail(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.Log.Info("login failed", zap.String("reason", "unknown email"))
			return fail(c, http.StatusUnauthorized, "invalid credentials")
		}
		h.Log.Error("load user", zap.Error(err))
		return storeError(c, err, "user")
	}
	if !u.IsActive {
		h.Log.Info("login failed", zap.Int64("userId", u.ID), zap.String("reason", "inactive"))
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	if !h.Hasher.Verify(req.Password, u.PasswordHash) {
		h.Log.Info("login failed", zap.Int64("userId", u.ID), zap.String("reason", "bad password"))
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}

	if h.Hasher.NeedsRehash(u.PasswordHash) {
		if hash, err := h.Hasher.Hash(req.Password); err == nil {
			if err := h.Users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
				h.Log.Warn("password rehash not saved", zap.Int64("userId", u.ID), zap.Error(err))
			} else {
				u.PasswordHash = hash
			}
		}
	}
	return h.respondWithToken(c, http.StatusOK, u)
}

func (h *AuthHandler) respondWithToken(c echo.Context, status int, u *model.User) error {
	tok, claims, err := h.Tokens.Issue(u.Claims())
	if err != nil {
		h.Log.Error("issue token", zap.Int64("userId", u.ID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "could not issue token")
	}
	return c.JSON(status, authResp{
		Success:   true,
		Token:     tok,
		ExpiresAt: time.Unix(claims.Exp, 0).UTC(),
		User:      u,
	})
}

// Me returns the stored record of the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	p, found := principal(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "authorization required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, p.UserID)
	if err != nil {
		return storeError(c, err, "user")
	}
	return ok(c, http.StatusOK, echo.Map{"user": u, "tokenRole": p.Role})
}
