// Package valuation serves the statement uploads, the provider profile run
// and the stand-alone projection endpoints.
package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/phuslu/log"

	"equity_valuation/pkg/api/middleware"
	"equity_valuation/pkg/api/respond"
	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/ingest"
	"equity_valuation/pkg/core/marketdata"
	"equity_valuation/pkg/core/pipeline"
	"equity_valuation/pkg/core/utils"
	"equity_valuation/pkg/core/valuation"
)

// DefaultMaxUpload bounds uploaded workbooks when no limit is configured.
const DefaultMaxUpload int64 = 10 << 20

// ErrMarketDataDisabled is returned by the profile endpoint when no provider
// key is configured.
var ErrMarketDataDisabled = errors.New("market data provider not configured")

// Runner executes a valuation run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// ProfileSource fetches provider statements for a symbol.
type ProfileSource interface {
	Profile(ctx context.Context, symbol string) (*marketdata.ProviderProfile, error)
}

// Handler holds dependencies for valuation endpoints.
type Handler struct {
	Pipeline       Runner
	Profiles       ProfileSource
	MaxUploadBytes int64
}

// NewHandler creates a valuation handler. profiles may be nil.
func NewHandler(runner Runner, profiles ProfileSource, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Handler{Pipeline: runner, Profiles: profiles, MaxUploadBytes: maxUpload}
}

// HandleUploadExcel values an uploaded statement file. The multipart field
// "file" holds an .xlsx workbook, an HTML page of statement tables or a
// statement JSON document. Optional fields: "ticker", "overrides" (JSON) and
// "strict" (report coerced cells).
func (h *Handler) HandleUploadExcel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		h.uploadErr(w, r, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Err(w, r, respond.Invalid(errors.New("multipart field \"file\" is required")))
		return
	}
	defer file.Close()

	wb, err := parseUpload(header.Filename, file)
	if err != nil {
		h.uploadErr(w, r, err)
		return
	}

	var overrides *valuation.AssumptionOverrides
	if raw := r.FormValue("overrides"); raw != "" {
		overrides = &valuation.AssumptionOverrides{}
		if err := decodeOverrides(raw, overrides); err != nil {
			respond.Err(w, r, err)
			return
		}
	}

	var strict bool
	if raw := r.FormValue("strict"); raw != "" {
		if strict, err = strconv.ParseBool(raw); err != nil {
			respond.Err(w, r, respond.Invalid(fmt.Errorf("strict must be a boolean, got %q", raw)))
			return
		}
	}

	info := marketdata.CompanyInfo{Ticker: strings.ToUpper(strings.TrimSpace(r.FormValue("ticker")))}
	log.Info().Str("file", header.Filename).Int64("bytes", header.Size).Str("company", wb.CompanyName).Msg("[VALUATION] upload parsed")
	h.run(w, r, wb, info, overrides, strict)
}

// statementsRequest is the envelope accepted alongside the workbook keys of
// a statement JSON document.
type statementsRequest struct {
	CompanyInfo marketdata.CompanyInfo         `json:"company_info"`
	Overrides   *valuation.AssumptionOverrides `json:"overrides"`
	Strict      bool                           `json:"strict"`
}

// HandleStatements values a statement JSON document posted as the body.
// Hand-edited JSON is repaired before decoding.
func (h *Handler) HandleStatements(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.MaxUploadBytes))
	if err != nil {
		h.uploadErr(w, r, err)
		return
	}
	wb, err := ingest.ParseStatementJSON(string(body))
	if err != nil {
		respond.Err(w, r, respond.Invalid(err))
		return
	}
	var env statementsRequest
	if _, err := utils.DecodeLenient(string(body), &env); err != nil {
		log.Debug().Err(err).Msg("[VALUATION] statement envelope ignored")
	}
	if env.Overrides != nil {
		if err := utils.ValidateStruct(env.Overrides); err != nil {
			respond.Err(w, r, respond.Invalid(err))
			return
		}
	}
	h.run(w, r, wb, env.CompanyInfo, env.Overrides, env.Strict)
}

// ProfileRequest asks for a provider-sourced valuation.
type ProfileRequest struct {
	Ticker    string                         `json:"ticker" validate:"required,max=32"`
	Overrides *valuation.AssumptionOverrides `json:"overrides"`
	Strict    bool                           `json:"strict"`
}

// HandleProfile fetches fundamentals and the last price for a ticker and
// values the company.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	if h.Profiles == nil {
		respond.Error(w, http.StatusServiceUnavailable, ErrMarketDataDisabled.Error())
		return
	}
	var req ProfileRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	if req.Overrides != nil {
		if err := utils.ValidateStruct(req.Overrides); err != nil {
			respond.Err(w, r, respond.Invalid(err))
			return
		}
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Ticker))
	prof, err := h.Profiles.Profile(r.Context(), symbol)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	h.run(w, r, prof.Workbook, prof.CompanyInfo, req.Overrides, req.Strict)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, wb *ingest.Workbook, info marketdata.CompanyInfo, overrides *valuation.AssumptionOverrides, strict bool) {
	req := pipeline.RequestFromWorkbook(wb, info)
	req.Overrides = overrides
	req.Strict = strict
	req.UserID = middleware.UserID(r.Context())

	res, err := h.Pipeline.Run(r.Context(), req)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// HandleDCF projects free cash flows for a posted assumption set.
func (h *Handler) HandleDCF(w http.ResponseWriter, r *http.Request) {
	var a valuation.AssumptionSet
	if err := respond.Decode(r, &a); err != nil {
		respond.Err(w, r, err)
		return
	}
	res, err := valuation.ProjectDCF(a)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// sensitivityRequest accepts the older "net_debt" key next to the
// assumption fields.
type sensitivityRequest struct {
	valuation.AssumptionSet
	NetDebt *float64 `json:"net_debt,omitempty"`
}

// HandleDCFSensitivity returns the margin by growth fair value grid.
func (h *Handler) HandleDCFSensitivity(w http.ResponseWriter, r *http.Request) {
	var req sensitivityRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	a := req.AssumptionSet
	if req.NetDebt != nil && a.LatestNetDebt == 0 {
		a.LatestNetDebt = *req.NetDebt
	}
	grid, err := valuation.DCFSensitivity(a)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, grid)
}

// HandleEPS projects earnings per share with its sensitivity tables.
func (h *Handler) HandleEPS(w http.ResponseWriter, r *http.Request) {
	var in valuation.EPSInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Err(w, r, err)
		return
	}
	if in.ProjectionYears < 0 || in.ProjectionYears > 20 {
		respond.Err(w, r, respond.Invalid(fmt.Errorf("projection_years must be between 0 and 20, got %d", in.ProjectionYears)))
		return
	}
	respond.JSON(w, http.StatusOK, valuation.ProjectEPS(in))
}

// WACCRequest carries the market inputs. When Metrics is present, tax rate
// and leverage are read from it unless given explicitly.
type WACCRequest struct {
	Metrics           *calc.Metrics `json:"metrics"`
	UnleveredBeta     float64       `json:"unlevered_beta" validate:"gte=0,lte=5"`
	RiskFreeRate      float64       `json:"risk_free_rate" validate:"gte=0,lte=30"`
	MarketRiskPremium float64       `json:"market_risk_premium" validate:"gte=0,lte=30"`
	PreTaxCostOfDebt  float64       `json:"pre_tax_cost_of_debt" validate:"gte=0,lte=50"`
	TaxRate           *float64      `json:"tax_rate" validate:"omitempty,gte=0,lte=100"`
	DebtToEquity      *float64      `json:"debt_to_equity" validate:"omitempty,gte=0"`
}

// HandleWACC estimates the discount rate with CAPM and a relevered beta.
func (h *Handler) HandleWACC(w http.ResponseWriter, r *http.Request) {
	var req WACCRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	in := valuation.WACCInput{
		UnleveredBeta:     req.UnleveredBeta,
		RiskFreeRate:      req.RiskFreeRate,
		MarketRiskPremium: req.MarketRiskPremium,
		PreTaxCostOfDebt:  req.PreTaxCostOfDebt,
	}
	if req.Metrics != nil {
		in = valuation.WACCInputFromMetrics(*req.Metrics, req.UnleveredBeta, req.RiskFreeRate, req.MarketRiskPremium, req.PreTaxCostOfDebt)
	}
	if req.TaxRate != nil {
		in.TaxRate = *req.TaxRate
	}
	if req.DebtToEquity != nil {
		in.DebtToEquity = *req.DebtToEquity
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"input":  in,
		"result": valuation.EstimateWACC(in),
	})
}

func parseUpload(name string, r io.Reader) (*ingest.Workbook, error) {
	var (
		wb  *ingest.Workbook
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".html", ".htm":
		wb, err = ingest.ParseHTMLTables(r)
	case ".json":
		var raw []byte
		if raw, err = io.ReadAll(r); err != nil {
			return nil, err
		}
		wb, err = ingest.ParseStatementJSON(string(raw))
	case ".xlsx", ".xlsm", "":
		wb, err = ingest.ParseWorkbook(r)
	default:
		err = fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, respond.Invalid(err)
	}
	return wb, nil
}

func decodeOverrides(raw string, o *valuation.AssumptionOverrides) error {
	if err := json.Unmarshal([]byte(raw), o); err != nil {
		return respond.Invalid(fmt.Errorf("overrides: %w", err))
	}
	if err := utils.ValidateStruct(o); err != nil {
		return respond.Invalid(err)
	}
	return nil
}

// uploadErr answers oversized bodies with 413 and everything else through
// the usual mapping.
func (h *Handler) uploadErr(w http.ResponseWriter, r *http.Request, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		respond.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit))
		return
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		err = respond.Invalid(err)
	}
	respond.Err(w, r, err)
}
