package calc

import (
	"strings"

	"equity_valuation/pkg/core/statement"
)

// Source tags accepted by DerivationFor.
const (
	SourceExcel    = "excel"
	SourceYahoo    = "yahoo"
	SourceProvider = "provider"
)

// Derived holds the aggregates whose derivation depends on where the
// statements came from.
type Derived struct {
	EBITDA []float64
	EBIT   []float64
	Equity []float64
}

// Derivation computes EBITDA, EBIT and equity for n annual periods.
type Derivation interface {
	Name() string
	Derive(pnl, bs *statement.Table, n int) Derived
}

// SpreadsheetDerived rebuilds EBITDA from the raw cost lines of an
// uploaded workbook.
type SpreadsheetDerived struct{}

func (SpreadsheetDerived) Name() string { return SourceExcel }

func (SpreadsheetDerived) Derive(pnl, bs *statement.Table, n int) Derived {
	revenue := pnl.Values(LabelSales, n)
	rawMaterial := pnl.Values(LabelRawMaterial, n)
	inventory := pnl.Values(LabelChangeInInventory, n)
	power := pnl.Values(LabelPowerAndFuel, n)
	otherMfr := pnl.Values(LabelOtherMfrExp, n)
	employee := pnl.Values(LabelEmployeeCost, n)
	selling := pnl.Values(LabelSellingAdmin, n)
	otherExp := pnl.Values(LabelOtherExpenses, n)
	otherIncome := pnl.Values(LabelOtherIncome, n)
	depreciation := pnl.Values(LabelDepreciation, n)

	d := Derived{
		EBITDA: make([]float64, n),
		EBIT:   make([]float64, n),
		Equity: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		d.EBITDA[i] = Round2(revenue[i] - rawMaterial[i] + inventory[i] - power[i] -
			otherMfr[i] - employee[i] - selling[i] - otherExp[i])
		d.EBIT[i] = Round2(d.EBITDA[i] + otherIncome[i] - depreciation[i])
	}
	capital := bs.Values(LabelEquityCapital, n)
	reserves := bs.Values(LabelReserves, n)
	for i := 0; i < n; i++ {
		d.Equity[i] = Round2(capital[i] + reserves[i])
	}
	return d
}

// ProviderDerived trusts the EBITDA and EBIT rows reported by a market-data
// provider. Providers report total common equity as equity capital, so
// reserves are not added.
type ProviderDerived struct{}

func (ProviderDerived) Name() string { return SourceProvider }

func (ProviderDerived) Derive(pnl, bs *statement.Table, n int) Derived {
	return Derived{
		EBITDA: pnl.Values(LabelEBITDA, n),
		EBIT:   pnl.Values(LabelEBIT, n),
		Equity: bs.Values(LabelEquityCapital, n),
	}
}

// DerivationFor resolves a source tag once at the entry point. Unknown tags
// fall back to the spreadsheet path.
func DerivationFor(source string) Derivation {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case SourceYahoo, SourceProvider:
		return ProviderDerived{}
	default:
		return SpreadsheetDerived{}
	}
}
