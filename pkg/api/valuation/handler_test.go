package valuation

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity_valuation/pkg/api/middleware"
	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/ingest"
	"equity_valuation/pkg/core/marketdata"
	"equity_valuation/pkg/core/pipeline"
	"equity_valuation/pkg/core/statement"
)

const statementDoc = `{
	company_name: "Acme Ltd",
	// edited by hand
	meta: {"Current Price": 62, "Market Capitalization": 620},
	pnl: {
		"Sales": [100, 110, 121],
		"Raw Material Cost": [40, 44, 48],
		"Employee Cost": [20, 22, 24],
		"Depreciation": [5, 5, 6],
		"Interest": [3, 3, 3],
		"Tax": [8, 9, 10],
		"Net profit": [25, 28, 31],
	},
	balance_sheet: {
		"Equity Share Capital": [10, 10, 10],
		"Reserves": [90, 110, 130],
		"Borrowings": [50, 40, 30],
		"Cash & Bank": [10, 10, 10],
		"No. of Equity Shares": [100000000, 100000000, 100000000],
	},
	cashflow: {},
	years: ["Mar-2022", "Mar-2023", "Mar-2024"],
}`

func newHandler() *Handler {
	return NewHandler(pipeline.NewOrchestrator(calc.NewEngine(calc.DefaultModel()), nil), nil, 0)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandleStatements(t *testing.T) {
	rec := post(newHandler().HandleStatements, statementDoc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	info := out["company_info"].(map[string]any)
	assert.Equal(t, "Acme Ltd", info["name"])
	results := out["valuationResults"].(map[string]any)
	for _, block := range []string{"dcf", "dcf_sensitivity", "eps"} {
		assert.Contains(t, results, block)
	}
	assumptions := out["assumptions"].(map[string]any)
	assert.Equal(t, 121.0, assumptions["base_revenue"])
}

func TestHandleStatementsOverridesAndErrors(t *testing.T) {
	h := newHandler()

	doc := strings.Replace(statementDoc, `company_name: "Acme Ltd",`,
		`company_name: "Acme Ltd", overrides: {interest_pct: 3, growth_terminal: 5},`, 1)
	rec := post(h.HandleStatements, doc)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "terminal growth")

	rec = post(h.HandleStatements, `{"pnl": {}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	small := NewHandler(h.Pipeline, nil, 64)
	rec = post(small.HandleStatements, statementDoc)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleStatementsStrictReportsGaps(t *testing.T) {
	h := newHandler()
	gappy := strings.Replace(statementDoc, `"Sales": [100, 110, 121]`, `"Sales": [100, "NaT", 121]`, 1)

	rec := post(h.HandleStatements, gappy)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, decode(t, rec)["metrics"], "data_gaps")

	strict := strings.Replace(gappy, `company_name: "Acme Ltd",`, `company_name: "Acme Ltd", strict: true,`, 1)
	rec = post(h.HandleStatements, strict)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gaps := decode(t, rec)["metrics"].(map[string]any)["data_gaps"].([]any)
	require.Len(t, gaps, 1)
	gap := gaps[0].(map[string]any)
	assert.Equal(t, "pnl", gap["statement"])
	assert.Equal(t, "Sales", gap["label"])
	assert.Equal(t, "NaT", gap["raw"])
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func upload(h *Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/upload-excel", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.HandleUploadExcel(rec, req)
	return rec
}

func TestHandleUploadExcel(t *testing.T) {
	h := newHandler()

	body, ct := multipartBody(t, "acme.json", statementDoc, map[string]string{
		"ticker":    "acme.nse",
		"overrides": `{"growth_x": 20}`,
	})
	rec := upload(h, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "ACME.NSE", out["company_info"].(map[string]any)["ticker"])
	assert.Equal(t, 20.0, out["assumptions"].(map[string]any)["growth_x"])

	body, ct = multipartBody(t, "acme.csv", "a,b", nil)
	assert.Equal(t, http.StatusBadRequest, upload(h, body, ct).Code)

	body, ct = multipartBody(t, "", "", map[string]string{"ticker": "X"})
	assert.Equal(t, http.StatusBadRequest, upload(h, body, ct).Code)

	body, ct = multipartBody(t, "acme.xlsx", "not a zip", nil)
	assert.Equal(t, http.StatusBadRequest, upload(h, body, ct).Code)

	body, ct = multipartBody(t, "acme.json", statementDoc, map[string]string{"overrides": `{"tax_rate": 140}`})
	assert.Equal(t, http.StatusBadRequest, upload(h, body, ct).Code)

	body, ct = multipartBody(t, "acme.json", statementDoc, map[string]string{"strict": "maybe"})
	assert.Equal(t, http.StatusBadRequest, upload(h, body, ct).Code)
}

func TestHandleUploadStrictFlagReachesPipeline(t *testing.T) {
	runner := &recordingRunner{}
	h := NewHandler(runner, nil, 0)

	body, ct := multipartBody(t, "acme.json", statementDoc, map[string]string{"strict": "true"})
	require.Equal(t, http.StatusOK, upload(h, body, ct).Code)
	assert.True(t, runner.req.Strict)

	body, ct = multipartBody(t, "acme.json", statementDoc, nil)
	require.Equal(t, http.StatusOK, upload(h, body, ct).Code)
	assert.False(t, runner.req.Strict)
}

type recordingRunner struct {
	req pipeline.Request
}

func (r *recordingRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	r.req = req
	return &pipeline.Result{CompanyInfo: req.CompanyInfo}, nil
}

type fakeProfiles struct {
	err error
}

func (f fakeProfiles) Profile(_ context.Context, symbol string) (*marketdata.ProviderProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	w := &ingest.Workbook{
		CompanyName:  "Tata Consultancy",
		PnL:          statement.FromFloats(map[string][]float64{calc.LabelSales: {100}}),
		BalanceSheet: statement.New(nil),
		CashFlow:     statement.New(nil),
		Quarterly:    statement.New(nil),
		Years:        []string{"Mar-2024"},
		Source:       calc.SourceProvider,
	}
	return &marketdata.ProviderProfile{CompanyInfo: marketdata.CompanyInfo{Name: "Tata Consultancy", Ticker: symbol}, Workbook: w}, nil
}

func TestHandleProfile(t *testing.T) {
	runner := &recordingRunner{}
	user := uuid.New()

	h := NewHandler(runner, fakeProfiles{}, 0)
	req := httptest.NewRequest(http.MethodPost, "/api/yahoo-profile", strings.NewReader(`{"ticker": " tcs.nse ", "overrides": {"growth_y": 7}}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), user))
	rec := httptest.NewRecorder()
	h.HandleProfile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "TCS.NSE", runner.req.CompanyInfo.Ticker)
	assert.Equal(t, user, runner.req.UserID)
	require.NotNil(t, runner.req.Overrides)
	assert.Equal(t, 7.0, *runner.req.Overrides.GrowthY)

	assert.Equal(t, http.StatusBadRequest, post(h.HandleProfile, `{}`).Code)

	upstream := NewHandler(runner, fakeProfiles{err: &marketdata.APIError{StatusCode: 500, Endpoint: "/fundamentals/X"}}, 0)
	assert.Equal(t, http.StatusBadGateway, post(upstream.HandleProfile, `{"ticker": "X"}`).Code)

	disabled := NewHandler(runner, nil, 0)
	assert.Equal(t, http.StatusServiceUnavailable, post(disabled.HandleProfile, `{"ticker": "X"}`).Code)
}

const assumptionJSON = `{
	"base_revenue": 1000, "latest_net_debt": 100, "shares_outstanding": 10,
	"ebit_margin": 20, "depreciation_pct": 3, "capex_pct": 4, "wc_change_pct": 1,
	"tax_rate": 25, "interest_pct": 12, "x_years": 3, "growth_x": 10,
	"y_years": 10, "growth_y": 8, "growth_terminal": 4
}`

func TestHandleDCF(t *testing.T) {
	h := newHandler()

	rec := post(h.HandleDCF, assumptionJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Len(t, out["fcf_table"], 10)
	assert.Positive(t, out["fair_value_per_share"])

	rec = post(h.HandleDCF, strings.Replace(assumptionJSON, `"interest_pct": 12`, `"interest_pct": 4`, 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])

	assert.Equal(t, http.StatusBadRequest, post(h.HandleDCF, `{nope`).Code)
}

func TestHandleDCFRejectsLongHorizons(t *testing.T) {
	h := newHandler()
	for _, years := range []string{"51", "35184372088832", "0"} {
		body := strings.Replace(assumptionJSON, `"y_years": 10`, `"y_years": `+years, 1)

		rec := post(h.HandleDCF, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "dcf y_years=%s", years)
		assert.Contains(t, decode(t, rec)["error"], "y_years")

		rec = post(h.HandleDCFSensitivity, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "sensitivity y_years=%s", years)
	}

	body := strings.Replace(assumptionJSON, `"x_years": 3`, `"x_years": 60`, 1)
	assert.Equal(t, http.StatusBadRequest, post(h.HandleDCF, body).Code)
}

func TestHandleDCFSensitivityNetDebtAlias(t *testing.T) {
	h := newHandler()
	withAlias := strings.Replace(assumptionJSON, `"latest_net_debt": 100`, `"net_debt": 100`, 1)

	a := post(h.HandleDCFSensitivity, assumptionJSON)
	b := post(h.HandleDCFSensitivity, withAlias)
	require.Equal(t, http.StatusOK, a.Code)
	require.Equal(t, http.StatusOK, b.Code)
	assert.JSONEq(t, a.Body.String(), b.Body.String())

	grid := decode(t, a)
	assert.Len(t, grid["fair_values"], 5)
}

func TestHandleEPS(t *testing.T) {
	h := newHandler()
	rec := post(h.HandleEPS, `{
		"base_revenue": 1000, "projection_years": 3, "revenue_growth": 10,
		"ebit_margin": 20, "interest_exp_pct": 5, "tax_rate": 25,
		"shares_outstanding": 10, "current_price": 200, "base_year": "Mar-2024"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Len(t, out["projection_table"], 4)
	assert.Contains(t, out, "sensitivity_price")

	assert.Equal(t, http.StatusBadRequest, post(h.HandleEPS, `{"projection_years": 99}`).Code)
}

func TestHandleWACC(t *testing.T) {
	h := newHandler()
	rec := post(h.HandleWACC, `{
		"unlevered_beta": 1, "risk_free_rate": 7, "market_risk_premium": 6,
		"pre_tax_cost_of_debt": 10, "tax_rate": 25, "debt_to_equity": 0.5
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, 1.38, res["levered_beta"])
	assert.Equal(t, 15.25, res["cost_of_equity"])
	assert.Equal(t, 7.5, res["cost_of_debt"])
	assert.Equal(t, 12.67, res["wacc"])

	rec = post(h.HandleWACC, `{
		"metrics": {"tax_rate": 30, "debt_to_equity": [0.2, 1.0]},
		"unlevered_beta": 0.8, "risk_free_rate": 7, "market_risk_premium": 6, "pre_tax_cost_of_debt": 9
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	in := decode(t, rec)["input"].(map[string]any)
	assert.Equal(t, 30.0, in["tax_rate"])
	assert.Equal(t, 1.0, in["debt_to_equity"])

	assert.Equal(t, http.StatusBadRequest, post(h.HandleWACC, `{"unlevered_beta": -1}`).Code)
}
