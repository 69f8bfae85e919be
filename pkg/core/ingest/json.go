package ingest

import (
	"fmt"

	"equity_valuation/pkg/core/statement"
	"equity_valuation/pkg/core/utils"
)

// ParseStatementJSON decodes a workbook document in the same shape the
// upload endpoint returns. Hand-edited input is tolerated: unquoted keys,
// comments and trailing commas are repaired before decoding.
func ParseStatementJSON(raw string) (*Workbook, error) {
	var w Workbook
	if _, err := utils.DecodeLenient(raw, &w); err != nil {
		return nil, fmt.Errorf("statement json: %w", err)
	}
	if w.PnL == nil || w.BalanceSheet == nil || w.CashFlow == nil {
		return nil, fmt.Errorf("%w: pnl, balance_sheet and cashflow are required", ErrMissingSection)
	}
	if w.Quarterly == nil {
		w.Quarterly = statement.New(nil)
	}
	if w.CompanyName == "" {
		w.CompanyName = unknownCompany
	}
	if w.Meta == nil {
		w.Meta = make(map[string]any)
	}
	if w.Years == nil {
		w.Years = []string{}
	}
	if w.Quarters == nil {
		w.Quarters = []string{}
	}
	return &w, nil
}
