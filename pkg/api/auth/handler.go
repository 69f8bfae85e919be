// Package auth serves registration, cookie-based sessions and the user
// profile.
package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"equity_valuation/pkg/api/middleware"
	"equity_valuation/pkg/api/respond"
	coreauth "equity_valuation/pkg/core/auth"
	"equity_valuation/pkg/core/store"
)

const (
	RefreshCookie  = "refresh_token"
	LoggedInCookie = "logged_in"

	refreshPath = "/api/auth"

	// sessionPrefix marks a refresh cookie that should not outlive the
	// browser session. Raw tokens are base64url and never contain a dot.
	sessionPrefix = "s."
)

// Users is the slice of store.UserRepo the handlers need.
type Users interface {
	Create(ctx context.Context, email, passwordHash, name string) (*store.User, error)
	ByEmail(ctx context.Context, email string) (*store.User, error)
	ByID(ctx context.Context, id uuid.UUID) (*store.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p store.ProfileUpdate) (*store.User, error)
}

// RefreshTokens is the slice of store.RefreshTokenRepo the handlers need.
type RefreshTokens interface {
	Save(ctx context.Context, userID uuid.UUID, hash string, expiresAt time.Time) error
	Consume(ctx context.Context, hash string) (uuid.UUID, error)
	Revoke(ctx context.Context, hash string) error
}

// HumanChecker verifies sign-up challenge tokens.
type HumanChecker interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Handler holds dependencies for the auth endpoints.
type Handler struct {
	Users         Users
	Tokens        RefreshTokens
	Issuer        *coreauth.Issuer
	Human         HumanChecker
	SecureCookies bool
}

// NewHandler creates an auth handler. Cookies are marked Secure outside dev.
func NewHandler(users Users, tokens RefreshTokens, issuer *coreauth.Issuer, human HumanChecker, secure bool) *Handler {
	return &Handler{Users: users, Tokens: tokens, Issuer: issuer, Human: human, SecureCookies: secure}
}

// RegisterRequest is the sign-up body.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=120"`
	TSToken  string `json:"ts_token"`
}

// LoginRequest is the sign-in body. RememberMe defaults to true.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe *bool  `json:"remember_me"`
}

// UserOut is the public view of a user.
type UserOut struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Timezone   string    `json:"timezone,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	IsVerified bool      `json:"is_verified"`
}

func userOut(u *store.User) UserOut {
	return UserOut{ID: u.ID, Email: u.Email, Name: u.Name, Timezone: u.Timezone, AvatarURL: u.AvatarURL, IsVerified: u.IsVerified}
}

// HandleRegister creates an account after the human check.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	if h.Human != nil {
		if err := h.Human.Verify(r.Context(), req.TSToken, clientIP(r)); err != nil {
			log.Info().Err(err).Msg("[AUTH] human check rejected registration")
			respond.Error(w, http.StatusBadRequest, "Human verification failed")
			return
		}
	}

	hash, err := coreauth.HashPassword(req.Password)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	u, err := h.Users.Create(r.Context(), req.Email, hash, strings.TrimSpace(req.Name))
	if errors.Is(err, store.ErrConflict) {
		respond.Error(w, http.StatusBadRequest, "Email already registered")
		return
	}
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	log.Info().Str("user_id", u.ID.String()).Msg("[AUTH] user registered")
	respond.JSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"message": "Registered. Please verify your email to unlock all features.",
	})
}

// HandleLogin checks credentials and starts a cookie session.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	u, err := h.Users.ByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		respond.Err(w, r, coreauth.ErrInvalidCredentials)
		return
	}
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	if err := coreauth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		respond.Err(w, r, err)
		return
	}

	remember := req.RememberMe == nil || *req.RememberMe
	h.clearCookies(w)
	if err := h.startSession(r.Context(), w, u.ID, remember); err != nil {
		respond.Err(w, r, err)
		return
	}
	log.Info().Str("user_id", u.ID.String()).Bool("remember", remember).Msg("[AUTH] login")
	respond.JSON(w, http.StatusOK, userOut(u))
}

// HandleRefresh rotates the refresh cookie and returns a new access token.
// A refresh token works once.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(RefreshCookie)
	if err != nil || c.Value == "" {
		h.unauthenticated(w)
		return
	}
	userID, err := h.Tokens.Consume(r.Context(), coreauth.HashToken(c.Value))
	if errors.Is(err, store.ErrNotFound) {
		h.unauthenticated(w)
		return
	}
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	if _, err := h.Users.ByID(r.Context(), userID); err != nil {
		h.unauthenticated(w)
		return
	}

	remember := !strings.HasPrefix(c.Value, sessionPrefix)
	if err := h.startSession(r.Context(), w, userID, remember); err != nil {
		respond.Err(w, r, err)
		return
	}
	access, exp, err := h.Issuer.AccessToken(userID)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"access_token": access,
		"token_type":   "bearer",
		"expires_at":   exp.UTC(),
	})
}

// HandleLogout revokes the refresh token and clears the cookies.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(RefreshCookie); err == nil && c.Value != "" {
		if err := h.Tokens.Revoke(r.Context(), coreauth.HashToken(c.Value)); err != nil {
			log.Warn().Err(err).Msg("[AUTH] refresh token revoke failed")
		}
	}
	h.clearCookies(w)
	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleMe returns the authenticated user's profile.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.ByID(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, userOut(u))
}

// HandleUpdateMe patches name, timezone and avatar.
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req store.ProfileUpdate
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	if req.Timezone != nil && *req.Timezone != "" {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			respond.Err(w, r, respond.Invalid(errors.New("unknown timezone "+*req.Timezone)))
			return
		}
	}
	u, err := h.Users.UpdateProfile(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, userOut(u))
}

// startSession mints and stores a refresh token and sets both cookies.
// Without remember the refresh cookie lasts for the browser session.
func (h *Handler) startSession(ctx context.Context, w http.ResponseWriter, userID uuid.UUID, remember bool) error {
	rt, err := h.Issuer.NewRefreshToken()
	if err != nil {
		return err
	}
	value := rt.Raw
	if !remember {
		value = sessionPrefix + rt.Raw
	}
	if err := h.Tokens.Save(ctx, userID, coreauth.HashToken(value), rt.ExpiresAt); err != nil {
		return err
	}
	refresh := &http.Cookie{
		Name:     RefreshCookie,
		Value:    value,
		Path:     refreshPath,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	marker := &http.Cookie{
		Name:     LoggedInCookie,
		Value:    "true",
		Path:     "/",
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		maxAge := int(time.Until(rt.ExpiresAt).Seconds())
		refresh.MaxAge, marker.MaxAge = maxAge, maxAge
		refresh.Expires, marker.Expires = rt.ExpiresAt, rt.ExpiresAt
	}
	http.SetCookie(w, refresh)
	http.SetCookie(w, marker)
	return nil
}

func (h *Handler) clearCookies(w http.ResponseWriter) {
	for _, c := range []*http.Cookie{
		{Name: RefreshCookie, Path: refreshPath, HttpOnly: true},
		{Name: LoggedInCookie, Path: "/"},
	} {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		c.Secure = h.SecureCookies
		c.SameSite = http.SameSiteLaxMode
		http.SetCookie(w, c)
	}
}

func (h *Handler) unauthenticated(w http.ResponseWriter) {
	h.clearCookies(w)
	respond.Error(w, http.StatusUnauthorized, "Not authenticated")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
