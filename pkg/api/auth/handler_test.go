package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity_valuation/pkg/api/middleware"
	coreauth "equity_valuation/pkg/core/auth"
	"equity_valuation/pkg/core/store"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*store.User
}

func (m *memUsers) Create(_ context.Context, email, hash, name string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range m.byID {
		if u.Email == email {
			return nil, store.ErrConflict
		}
	}
	u := &store.User{ID: uuid.New(), Email: email, PasswordHash: hash, Name: name}
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) ByEmail(_ context.Context, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) ByID(_ context.Context, id uuid.UUID) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) UpdateProfile(_ context.Context, id uuid.UUID, p store.ProfileUpdate) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Timezone != nil {
		u.Timezone = *p.Timezone
	}
	return u, nil
}

type memTokens struct {
	mu     sync.Mutex
	hashes map[string]uuid.UUID
}

func (m *memTokens) Save(_ context.Context, userID uuid.UUID, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[hash] = userID
	return nil
}

func (m *memTokens) Consume(_ context.Context, hash string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.hashes[hash]
	if !ok {
		return uuid.Nil, store.ErrNotFound
	}
	delete(m.hashes, hash)
	return id, nil
}

func (m *memTokens) Revoke(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, hash)
	return nil
}

type humanFunc func(token string) error

func (f humanFunc) Verify(_ context.Context, token, _ string) error { return f(token) }

func newTestServer(t *testing.T) (*httptest.Server, *memTokens) {
	t.Helper()
	issuer := coreauth.NewIssuer("test-secret-0123456789", time.Minute, time.Hour)
	tokens := &memTokens{hashes: map[string]uuid.UUID{}}
	human := humanFunc(func(token string) error {
		if token == "bot" {
			return coreauth.ErrHumanCheckFailed
		}
		return nil
	})
	h := NewHandler(&memUsers{byID: map[uuid.UUID]*store.User{}}, tokens, issuer, human, false)

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
		r.Post("/refresh", h.HandleRefresh)
		r.Post("/logout", h.HandleLogout)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(issuer))
			r.Get("/me", h.HandleMe)
			r.Put("/me", h.HandleUpdateMe)
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, tokens
}

func do(t *testing.T, method, url string, body any, mutate func(*http.Request)) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// cookie returns the last Set-Cookie for name; login clears before it sets.
func cookie(resp *http.Response, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	srv, tokens := newTestServer(t)
	base := srv.URL + "/api/auth"
	creds := map[string]any{"email": "Ana@Example.com", "password": "correct-horse", "name": "Ana"}

	resp, body := do(t, http.MethodPost, base+"/register", creds, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["ok"])

	resp, body = do(t, http.MethodPost, base+"/register", creds, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email already registered", body["error"])

	resp, body = do(t, http.MethodPost, base+"/login", map[string]any{"email": "ana@example.com", "password": "wrong-password"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", body["error"])

	resp, body = do(t, http.MethodPost, base+"/login", map[string]any{"email": "ana@example.com", "password": "correct-horse"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ana@example.com", body["email"])
	assert.Equal(t, "Ana", body["name"])
	refresh := cookie(resp, RefreshCookie)
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Positive(t, refresh.MaxAge, "remember_me defaults to a persistent cookie")
	require.NotNil(t, cookie(resp, LoggedInCookie))
	assert.Len(t, tokens.hashes, 1)

	withCookie := func(c *http.Cookie) func(*http.Request) {
		return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
	}
	resp, body = do(t, http.MethodPost, base+"/refresh", nil, withCookie(refresh))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access, _ := body["access_token"].(string)
	require.NotEmpty(t, access)
	rotated := cookie(resp, RefreshCookie)
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)

	resp, body = do(t, http.MethodPost, base+"/refresh", nil, withCookie(refresh))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "a refresh token works once")
	assert.Equal(t, "Not authenticated", body["error"])

	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) }
	resp, body = do(t, http.MethodGet, base+"/me", nil, bearer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ana@example.com", body["email"])

	resp, body = do(t, http.MethodPut, base+"/me", map[string]any{"timezone": "Asia/Kolkata"}, bearer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Asia/Kolkata", body["timezone"])

	resp, _ = do(t, http.MethodPut, base+"/me", map[string]any{"timezone": "Mars/Olympus"}, bearer)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodPost, base+"/logout", nil, withCookie(rotated))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Empty(t, tokens.hashes)
	cleared := cookie(resp, RefreshCookie)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestRegisterRejections(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/auth"

	resp, body := do(t, http.MethodPost, base+"/register", map[string]any{"email": "x@example.com", "password": "long-enough", "ts_token": "bot"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Human verification failed", body["error"])

	resp, _ = do(t, http.MethodPost, base+"/register", map[string]any{"email": "x@example.com", "password": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, base+"/register", map[string]any{"email": "not-an-email", "password": "long-enough"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionOnlyLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/auth"
	_, _ = do(t, http.MethodPost, base+"/register", map[string]any{"email": "b@example.com", "password": "long-enough"}, nil)

	resp, _ := do(t, http.MethodPost, base+"/login", map[string]any{"email": "b@example.com", "password": "long-enough", "remember_me": false}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := cookie(resp, RefreshCookie)
	require.NotNil(t, c)
	assert.Zero(t, c.MaxAge)

	resp, _ = do(t, http.MethodPost, base+"/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := cookie(resp, RefreshCookie)
	require.NotNil(t, rotated)
	assert.Zero(t, rotated.MaxAge, "rotation keeps a session cookie a session cookie")
}

func TestRefreshWithoutCookie(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := do(t, http.MethodPost, srv.URL+"/api/auth/refresh", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authenticated", body["error"])
}

func TestMeRequiresBearer(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := do(t, http.MethodGet, srv.URL+"/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
