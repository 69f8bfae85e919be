package marketdata

import (
	"fmt"
	"sort"
	"time"

	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/ingest"
	"equity_valuation/pkg/core/statement"
)

const (
	// crore converts reporting-currency units to crores.
	crore = 1e7

	// providerYears is how many annual columns are kept.
	providerYears = 4
)

// ProviderProfile is a provider-sourced company ready for the metrics engine.
type ProviderProfile struct {
	CompanyInfo CompanyInfo      `json:"company_info"`
	Workbook    *ingest.Workbook `json:"workbook"`
}

// field maps one vocabulary label to the provider keys that may carry it,
// first non-null wins.
type field struct {
	label string
	keys  []string
	raw   bool // counts, not money
}

var incomeFields = []field{
	{label: calc.LabelSales, keys: []string{"totalRevenue"}},
	{label: calc.LabelEBITDA, keys: []string{"ebitda"}},
	{label: calc.LabelEBIT, keys: []string{"ebit", "operatingIncome"}},
	{label: calc.LabelInterest, keys: []string{"interestExpense"}},
	{label: calc.LabelNetProfit, keys: []string{"netIncome"}},
	{label: calc.LabelTax, keys: []string{"incomeTaxExpense", "taxProvision"}},
	{label: calc.LabelDepreciation, keys: []string{"reconciledDepreciation", "depreciationAndAmortization"}},
}

var balanceFields = []field{
	{label: calc.LabelEquityCapital, keys: []string{"totalStockholderEquity", "commonStockEquity"}},
	{label: calc.LabelBorrowings, keys: []string{"shortLongTermDebtTotal", "totalDebt"}},
	{label: calc.LabelInvestments, keys: []string{"shortTermInvestments"}},
	{label: calc.LabelCash, keys: []string{"cashAndEquivalents", "cash"}},
	{label: calc.LabelNetBlock, keys: []string{"propertyPlantAndEquipmentNet", "netPPE"}},
	{label: calc.LabelCWIP, keys: []string{"constructionInProgress"}},
	{label: calc.LabelShares, keys: []string{"commonStockSharesOutstanding"}, raw: true},
}

var cashFlowFields = []field{
	{label: calc.LabelCFOperating, keys: []string{"totalCashFromOperatingActivities"}},
	{label: calc.LabelCFInvesting, keys: []string{"totalCashflowsFromInvestingActivities"}},
	{label: calc.LabelCFFinancing, keys: []string{"totalCashFromFinancingActivities"}},
	{label: calc.LabelCFNet, keys: []string{"changeInCash"}},
}

// Statements maps the provider's annual statements onto the workbook
// vocabulary for ProviderDerived metrics. Money is in crores rounded to 2 dp,
// share counts stay raw. The periods are the last four non-empty fiscal years
// of the income statement (balance sheet, then cash flow, when it is empty),
// oldest first, labelled "Mar-YYYY". Every statement is read at those years by
// date, so a year one statement lacks is an empty cell, never a shifted one.
func (f *FundamentalsResponse) Statements(symbol string) (*ingest.Workbook, CompanyInfo, error) {
	if f == nil || f.Financials == nil {
		return nil, CompanyInfo{}, fmt.Errorf("%w: %s has no financials", ErrNoData, symbol)
	}

	info := f.companyInfo(symbol)
	pnlCols := yearlyColumns(f.Financials.IncomeStatement, incomeFields)
	bsCols := yearlyColumns(f.Financials.BalanceSheet, balanceFields)
	cfCols := yearlyColumns(f.Financials.CashFlow, cashFlowFields)

	var years []int
	for _, cols := range []map[int]map[string]interface{}{pnlCols, bsCols, cfCols} {
		if len(cols) > 0 {
			years = lastYears(cols)
			break
		}
	}
	if len(years) == 0 {
		return nil, info, fmt.Errorf("%w: %s statements are empty", ErrNoData, symbol)
	}
	labels := make([]string, len(years))
	for i, y := range years {
		labels[i] = fmt.Sprintf("Mar-%d", y)
	}

	w := &ingest.Workbook{
		CompanyName: info.Name,
		Meta: map[string]any{
			calc.MetaCurrentPrice: info.CurrentPrice,
			calc.MetaMarketCap:    roundCrore(info.MarketCap),
		},
		PnL:          mapStatement(pnlCols, years, incomeFields),
		BalanceSheet: mapStatement(bsCols, years, balanceFields),
		CashFlow:     mapStatement(cfCols, years, cashFlowFields),
		Quarterly:    statement.New(nil),
		Years:        labels,
		Quarters:     []string{},
		Source:       calc.SourceProvider,
	}
	return w, info, nil
}

func (f *FundamentalsResponse) companyInfo(symbol string) CompanyInfo {
	info := CompanyInfo{Ticker: symbol}
	if g := f.General; g != nil {
		info.Name = g.Name
		info.Sector = g.Sector
		info.Industry = g.Industry
		info.Description = g.Description
	}
	if h := f.Highlights; h != nil {
		info.MarketCap = h.MarketCapitalization
	}
	if info.Name == "" {
		info.Name = symbol
	}
	return info
}

// yearlyColumns keys the non-empty dated columns of fs by fiscal year. When
// two columns fall in one year the later date wins.
func yearlyColumns(fs *FinancialStatement, fields []field) map[int]map[string]interface{} {
	cols := make(map[int]map[string]interface{})
	if fs == nil {
		return cols
	}
	ends := make(map[int]time.Time)
	for key, vals := range fs.Yearly {
		end, err := time.Parse(dateLayout, key)
		if err != nil || !anyNonZero(vals, fields) {
			continue
		}
		y := end.Year()
		if prev, ok := ends[y]; ok && prev.After(end) {
			continue
		}
		ends[y] = end
		cols[y] = vals
	}
	return cols
}

func lastYears(cols map[int]map[string]interface{}) []int {
	years := make([]int, 0, len(cols))
	for y := range cols {
		years = append(years, y)
	}
	sort.Ints(years)
	if len(years) > providerYears {
		years = years[len(years)-providerYears:]
	}
	return years
}

// mapStatement reads every field at the given years. A year without a
// column is a nil cell, which the table records as a gap.
func mapStatement(cols map[int]map[string]interface{}, years []int, fields []field) *statement.Table {
	var rows []statement.Row
	for _, fd := range fields {
		values := make([]any, len(years))
		found := false
		for i, y := range years {
			vals, ok := cols[y]
			if !ok {
				continue
			}
			v, ok := lookup(vals, fd.keys)
			if ok {
				found = true
			}
			if !fd.raw {
				v = roundCrore(v)
			}
			values[i] = v
		}
		if found {
			rows = append(rows, statement.Row{Label: fd.label, Values: values})
		}
	}
	return statement.New(rows)
}

func lookup(vals map[string]interface{}, keys []string) (float64, bool) {
	for _, k := range keys {
		raw, ok := vals[k]
		if !ok || raw == nil {
			continue
		}
		return statement.Coerce(raw), true
	}
	return 0, false
}

func anyNonZero(vals map[string]interface{}, fields []field) bool {
	for _, fd := range fields {
		if v, _ := lookup(vals, fd.keys); v != 0 {
			return true
		}
	}
	return false
}

func roundCrore(v float64) float64 {
	return calc.Round2(v / crore)
}
