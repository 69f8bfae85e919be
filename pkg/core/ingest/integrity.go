package ingest

import (
	"math"
	"sort"

	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/statement"
)

// Checkpoint statuses.
const (
	StatusMatch      = "MATCH"
	StatusImmaterial = "IMMATERIAL"
	StatusMismatch   = "MATERIAL_MISMATCH"
)

// MaterialityPct is the variance, in percent of the reported value, above
// which a checkpoint is a material mismatch.
const MaterialityPct = 5.0

// AuditCheckpoint compares a reported total with the sum of its parts.
type AuditCheckpoint struct {
	Name       string  `json:"name"`
	Period     string  `json:"period"`
	Reported   float64 `json:"reported"`
	Calculated float64 `json:"calculated"`
	Variance   float64 `json:"variance"`
	Status     string  `json:"status"`
}

// VerifyIntegrity classifies every name present in both maps.
func VerifyIntegrity(period string, calculated, reported map[string]float64) []AuditCheckpoint {
	names := make([]string, 0, len(reported))
	for name := range reported {
		if _, ok := calculated[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	checks := make([]AuditCheckpoint, 0, len(names))
	for _, name := range names {
		rep, calcVal := reported[name], calculated[name]
		diff := calc.Round2(calcVal - rep)
		status := StatusMatch
		if diff != 0 {
			status = StatusImmaterial
			if math.Abs(calc.SafeDivide(diff, rep)*100) > MaterialityPct || rep == 0 {
				status = StatusMismatch
			}
		}
		checks = append(checks, AuditCheckpoint{
			Name:       name,
			Period:     period,
			Reported:   rep,
			Calculated: calc.Round2(calcVal),
			Variance:   diff,
			Status:     status,
		})
	}
	return checks
}

// IntegrityChecks ties out the latest year: net profit against profit
// before tax less tax, and net cash flow against its three activities.
// Checks whose reported row is absent are skipped.
func (w *Workbook) IntegrityChecks() []AuditCheckpoint {
	n := len(w.Years)
	if n == 0 {
		return []AuditCheckpoint{}
	}
	latest := func(t *statement.Table, label string) float64 {
		return calc.Last(t.Values(label, n))
	}

	calculated := map[string]float64{}
	reported := map[string]float64{}
	if w.PnL.Has(calc.LabelNetProfit) && w.PnL.Has(calc.LabelProfitBeforeTax) {
		reported["Net profit"] = latest(w.PnL, calc.LabelNetProfit)
		calculated["Net profit"] = latest(w.PnL, calc.LabelProfitBeforeTax) - latest(w.PnL, calc.LabelTax)
	}
	if w.CashFlow.Has(calc.LabelCFNet) {
		reported["Net cash flow"] = latest(w.CashFlow, calc.LabelCFNet)
		calculated["Net cash flow"] = latest(w.CashFlow, calc.LabelCFOperating) +
			latest(w.CashFlow, calc.LabelCFInvesting) + latest(w.CashFlow, calc.LabelCFFinancing)
	}
	return VerifyIntegrity(w.Years[n-1], calculated, reported)
}
