// Package ingest turns uploaded workbooks, HTML statement tables and JSON
// documents into statement tables ready for the metrics engine.
package ingest

import (
	"errors"
	"slices"

	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/statement"
)

// Section titles as they appear in the first column of the data sheet.
const (
	DataSheet       = "Data Sheet"
	SectionMeta     = "META"
	SectionPnL      = "PROFIT & LOSS"
	SectionBalance  = "BALANCE SHEET"
	SectionCashFlow = "CASH FLOW:"
	SectionQuarters = "Quarters"

	// MaxValueColumns is how many period columns are read to the right of
	// the label column.
	MaxValueColumns = 10

	unknownCompany = "Unknown Company"
)

var (
	// ErrMissingSheet is returned when the workbook has no data sheet.
	ErrMissingSheet = errors.New("data sheet not found")
	// ErrMissingSection is returned when a required statement table is absent.
	ErrMissingSection = errors.New("statement section not found")
)

// Workbook is a parsed company upload.
type Workbook struct {
	CompanyName  string           `json:"company_name"`
	Meta         map[string]any   `json:"meta"`
	PnL          *statement.Table `json:"pnl"`
	BalanceSheet *statement.Table `json:"balance_sheet"`
	CashFlow     *statement.Table `json:"cashflow"`
	Quarterly    *statement.Table `json:"quarters"`
	Years        []string         `json:"years"`
	Quarters     []string         `json:"qtrs"`
	Source       string           `json:"source,omitempty"`
}

// CalcInput adapts the workbook for calc.Engine.Compute.
func (w *Workbook) CalcInput() calc.Input {
	return calc.Input{
		PnL:          w.PnL,
		BalanceSheet: w.BalanceSheet,
		CashFlow:     w.CashFlow,
		Quarterly:    w.Quarterly,
		Years:        w.Years,
		Quarters:     w.Quarters,
		Meta:         calc.MetaFromMap(w.Meta),
		Derivation:   calc.DerivationFor(w.Source),
	}
}

// commonPeriods keeps the periods of first that appear in every other list,
// in first's order.
func commonPeriods(first []string, others ...[]string) []string {
	out := make([]string, 0, len(first))
	for _, p := range first {
		inAll := true
		for _, o := range others {
			if !slices.Contains(o, p) {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, p)
		}
	}
	return out
}
