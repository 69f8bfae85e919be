package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity_valuation/pkg/api/auth"
	"equity_valuation/pkg/api/config"
	"equity_valuation/pkg/api/portfolio"
	"equity_valuation/pkg/api/report"
	"equity_valuation/pkg/api/valuation"
	coreauth "equity_valuation/pkg/core/auth"
	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/pipeline"
	"equity_valuation/pkg/core/store"
)

// newTestRouter wires the real handlers with database-less repositories.
func newTestRouter(t *testing.T) (http.Handler, *coreauth.Issuer) {
	t.Helper()
	issuer := coreauth.NewIssuer("router-test-secret-0123", time.Minute, time.Hour)
	model := calc.DefaultModel()
	orch := pipeline.NewOrchestrator(calc.NewEngine(model), nil)

	h := Handlers{
		Auth:      auth.NewHandler(store.NewUserRepo(nil), store.NewRefreshTokenRepo(nil), issuer, nil, false),
		Config:    config.NewHandler(model, "", false, nil),
		Valuation: valuation.NewHandler(orch, nil, 0),
		Report:    report.NewHandler(store.NewReportRepo(nil, t.TempDir())),
		Portfolio: portfolio.NewHandler(store.NewPortfolioRepo(nil), store.NewTransactionRepo(nil), nil, nil),
	}
	return NewRouter(h, issuer, Options{CORSOrigins: []string{"http://localhost:5173"}}), issuer
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterPublicRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/config/defaults", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := `{"base_revenue": 1000, "projection_years": 2, "revenue_growth": 10, "ebit_margin": 20,
		"interest_exp_pct": 5, "tax_rate": 25, "shares_outstanding": 10, "current_price": 200}`
	for _, path := range []string{"/api/eps", "/api/project-eps"} {
		rec = serve(r, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/price-series/TCS.NSE", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no provider configured")

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "Not found"}`, rec.Body.String())
}

func TestRouterProtectedRoutes(t *testing.T) {
	r, issuer := newTestRouter(t)

	for _, path := range []string{"/api/portfolios", "/api/reports", "/api/auth/me"} {
		rec := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	token, _, err := issuer.AccessToken(uuid.New())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/portfolios", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(r, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "portfolios need the database")

	req = httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code, "reports fall back to files")
}

func TestRouterCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/dcf", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := serve(r, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/dcf", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = serve(r, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
