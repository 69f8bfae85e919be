// Package pipeline runs one company through metrics, assumptions and the
// valuation models, optionally recording the result.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/phuslu/log"

	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/ingest"
	"equity_valuation/pkg/core/marketdata"
	"equity_valuation/pkg/core/statement"
	"equity_valuation/pkg/core/valuation"
)

// ResultTTL is how long an identical request is answered from memory.
const ResultTTL = 10 * time.Minute

// Request is one valuation run.
type Request struct {
	CompanyInfo marketdata.CompanyInfo         `json:"company_info"`
	Input       calc.Input                     `json:"-"`
	Overrides   *valuation.AssumptionOverrides `json:"overrides,omitempty"`
	// Integrity is passed through to the result when the caller ran the
	// statement tie-outs.
	Integrity []ingest.AuditCheckpoint `json:"-"`
	// UserID, when set, is handed to the Recorder.
	UserID uuid.UUID `json:"-"`
	// Strict attaches the coerced statement cells to the metrics.
	Strict bool `json:"strict,omitempty"`
}

// RequestFromWorkbook builds a request from parsed statements, running the
// integrity checks on the way.
func RequestFromWorkbook(w *ingest.Workbook, info marketdata.CompanyInfo) Request {
	if info.Name == "" {
		info.Name = w.CompanyName
	}
	return Request{
		CompanyInfo: info,
		Input:       w.CalcInput(),
		Integrity:   w.IntegrityChecks(),
	}
}

// Result is the full valuation payload returned to clients.
type Result struct {
	CompanyInfo      marketdata.CompanyInfo   `json:"company_info"`
	Metrics          *calc.Metrics            `json:"metrics"`
	Assumptions      valuation.AssumptionSet  `json:"assumptions"`
	ValuationResults *valuation.Results       `json:"valuationResults"`
	Integrity        []ingest.AuditCheckpoint `json:"integrity,omitempty"`
	Cached           bool                     `json:"cached,omitempty"`
}

// Recorder persists a finished result. Failures are logged, never returned
// to the caller.
type Recorder interface {
	Record(ctx context.Context, userID uuid.UUID, res *Result) error
}

// Orchestrator wires the metrics engine to the valuation models.
type Orchestrator struct {
	engine   *calc.Engine
	recorder Recorder
	results  *cache.Cache
}

// NewOrchestrator creates an orchestrator. recorder may be nil.
func NewOrchestrator(engine *calc.Engine, recorder Recorder) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		recorder: recorder,
		results:  cache.New(ResultTTL, 2*ResultTTL),
	}
}

// Run computes metrics, builds and overrides assumptions, then runs every
// valuation block. Only an invalid discount rate versus terminal growth
// fails the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	key, err := requestKey(req)
	if err != nil {
		log.Warn().Err(err).Msg("[PIPELINE] request not hashable, cache bypassed")
	}
	if key != "" {
		if hit, found := o.results.Get(key); found {
			res := *hit.(*Result)
			res.Cached = true
			log.Debug().Str("ticker", req.CompanyInfo.Ticker).Msg("[PIPELINE] cache hit")
			o.record(ctx, req.UserID, &res)
			return &res, nil
		}
	}

	// 1. Metrics
	engine := o.engine
	if req.Strict && !engine.Strict {
		strict := *engine
		strict.Strict = true
		engine = &strict
	}
	metrics := engine.Compute(req.Input)
	if n := len(metrics.DataGaps); n > 0 {
		log.Warn().Str("ticker", req.CompanyInfo.Ticker).Int("cells", n).Msg("[PIPELINE] statement cells coerced to zero")
	}

	// 2. Assumptions
	assumptions := req.Overrides.Apply(valuation.BuildAssumptions(*metrics))
	if assumptions.CurrentPrice == 0 {
		assumptions.CurrentPrice = req.CompanyInfo.CurrentPrice
	}
	epsIn := req.Overrides.ApplyEPS(valuation.BuildEPSInput(assumptions))

	// 3. Valuations
	results, err := valuation.RunAllValuations(assumptions, epsIn)
	if err != nil {
		return nil, err
	}

	info := req.CompanyInfo
	if info.CurrentPrice == 0 {
		info.CurrentPrice = metrics.CurrentPrice
	}
	if info.MarketCap == 0 {
		info.MarketCap = metrics.MarketCap
	}
	res := &Result{
		CompanyInfo:      info,
		Metrics:          metrics,
		Assumptions:      assumptions,
		ValuationResults: results,
		Integrity:        req.Integrity,
	}
	for _, c := range req.Integrity {
		if c.Status == ingest.StatusMismatch {
			log.Warn().Str("check", c.Name).Str("period", c.Period).Float64("variance", c.Variance).Msg("[PIPELINE] statement tie-out mismatch")
		}
	}
	if key != "" {
		o.results.SetDefault(key, res)
	}

	log.Info().Str("ticker", info.Ticker).Str("source", metrics.Source).
		Float64("fair_value", results.DCF.FairValuePerShare).
		Dur("elapsed", time.Since(start)).Msg("[PIPELINE] valuation complete")
	o.record(ctx, req.UserID, res)
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, userID uuid.UUID, res *Result) {
	if o.recorder == nil || userID == uuid.Nil {
		return
	}
	if err := o.recorder.Record(ctx, userID, res); err != nil {
		log.Error().Err(err).Str("ticker", res.CompanyInfo.Ticker).Msg("[PIPELINE] failed to record result")
	}
}

// requestKey hashes everything that influences the result.
func requestKey(req Request) (string, error) {
	in := req.Input
	deriv := ""
	if in.Derivation != nil {
		deriv = in.Derivation.Name()
	}
	payload := struct {
		Company    marketdata.CompanyInfo         `json:"c"`
		PnL        *statement.Table               `json:"p"`
		Balance    *statement.Table               `json:"b"`
		CashFlow   *statement.Table               `json:"f"`
		Quarterly  *statement.Table               `json:"q"`
		Years      []string                       `json:"y"`
		Quarters   []string                       `json:"qs"`
		Meta       calc.Meta                      `json:"m"`
		Derivation string                         `json:"d"`
		Overrides  *valuation.AssumptionOverrides `json:"o"`
		Integrity  []ingest.AuditCheckpoint       `json:"i"`
		Strict     bool                           `json:"s"`
	}{req.CompanyInfo, in.PnL, in.BalanceSheet, in.CashFlow, in.Quarterly, in.Years, in.Quarters, in.Meta, deriv, req.Overrides, req.Integrity, req.Strict}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
