package report

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity_valuation/pkg/api/middleware"
	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/marketdata"
	"equity_valuation/pkg/core/pipeline"
	corereport "equity_valuation/pkg/core/report"
	"equity_valuation/pkg/core/store"
	"equity_valuation/pkg/core/valuation"
)

func sampleResult(t *testing.T) *pipeline.Result {
	t.Helper()
	a := valuation.AssumptionSet{
		CurrentPrice: 50, BaseRevenue: 1000, LatestNetDebt: 200, SharesOutstanding: 100,
		EBITMargin: 20, DepreciationPct: 3, CapexPct: 4, WCChangePct: 2, TaxRate: 25,
		InterestPct: 12, XYears: 3, GrowthX: 10, YYears: 10, GrowthY: 6, GrowthTerminal: 4,
		BaseYear: "Mar-2024", InterestExpPct: 10,
	}
	res, err := valuation.RunAllValuations(a, valuation.BuildEPSInput(a))
	require.NoError(t, err)
	return &pipeline.Result{
		CompanyInfo:      marketdata.CompanyInfo{Name: "Acme Ltd", Ticker: "ACME.NSE", CurrentPrice: 50},
		Metrics:          &calc.Metrics{Years: []string{"Mar-2024"}, Revenue: []float64{1000}},
		Assumptions:      a,
		ValuationResults: res,
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, v any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	return rec
}

func TestHandleGenerate(t *testing.T) {
	h := NewHandler(nil)
	rec := postJSON(t, h.HandleGenerate, sampleResult(t).ReportData())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Acme_Ltd_ACME.NSE_Report.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	assert.Equal(t, strconv.Itoa(rec.Body.Len()), rec.Header().Get("Content-Length"))
}

func TestHandlePreview(t *testing.T) {
	h := NewHandler(nil)
	rec := postJSON(t, h.HandlePreview, sampleResult(t).ReportData())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Title    string               `json:"title"`
		Sections []corereport.Section `json:"sections"`
		Total    int                  `json:"total_sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Acme Ltd (ACME.NSE) Valuation Report", out.Title)
	require.NotEmpty(t, out.Sections)
	assert.Equal(t, len(out.Sections), out.Total)
	assert.Equal(t, "company-overview", out.Sections[0].ID)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Report__Report.pdf", FileName(corereport.Data{}))
	assert.Equal(t, "Tata_Consultancy_TCS.NSE_Report.pdf",
		FileName(corereport.Data{CompanyInfo: marketdata.CompanyInfo{Name: "Tata Consultancy", Ticker: "TCS.NSE"}}))
}

func TestSavedReports(t *testing.T) {
	repo := store.NewReportRepo(nil, t.TempDir())
	user := uuid.New()
	require.NoError(t, pipeline.ReportRecorder{Repo: repo}.Record(context.Background(), user, sampleResult(t)))

	h := NewHandler(repo)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), user)))
		})
	})
	r.Get("/reports", h.HandleList)
	r.Get("/reports/{ticker}", h.HandleGet)
	r.Get("/reports/{ticker}/pdf", h.HandleSavedPDF)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/reports")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ACME.NSE", list[0].Ticker)
	assert.Equal(t, "Acme Ltd (ACME.NSE) Valuation Report", list[0].Title)

	rec = get("/reports/acme.nse")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	data := saved["report_data"].(map[string]any)
	assert.Contains(t, data, "valuationResults")

	rec = get("/reports/ACME.NSE/pdf")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	assert.Equal(t, http.StatusNotFound, get("/reports/NOPE.NSE").Code)
}
