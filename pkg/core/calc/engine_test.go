package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity_valuation/pkg/core/statement"
)

func sampleInput() Input {
	pnl := statement.FromFloats(map[string][]float64{
		LabelSales:        {100, 110, 121},
		LabelRawMaterial:  {40, 44, 48},
		LabelEmployeeCost: {20, 22, 24},
		LabelOtherIncome:  {2, 2, 2},
		LabelDepreciation: {5, 5, 6},
		LabelInterest:     {3, 3, 3},
		LabelTax:          {8, 9, 10},
		LabelNetProfit:    {25, 28, 31},
	})
	bs := statement.FromFloats(map[string][]float64{
		LabelEquityCapital: {10, 10, 10},
		LabelReserves:      {90, 110, 130},
		LabelBorrowings:    {50, 40, 30},
		LabelCash:          {10, 10, 10},
		LabelInvestments:   {5, 5, 5},
		LabelShares:        {1e8, 1e8, 0},
	})
	cf := statement.FromFloats(map[string][]float64{
		LabelCFOperating: {20, 25, 30},
	})
	return Input{
		PnL:          pnl,
		BalanceSheet: bs,
		CashFlow:     cf,
		Quarterly:    statement.New(nil),
		Years:        []string{"Mar-2022", "Mar-2023", "Mar-2024"},
		Meta:         Meta{MarketCap: 620, CurrentPrice: 62},
	}
}

func TestComputeSpreadsheetMetrics(t *testing.T) {
	m := NewEngine(DefaultModel()).Compute(sampleInput())
	require.NotNil(t, m)

	assert.Equal(t, SourceExcel, m.Source)
	assert.Equal(t, []float64{40, 44, 49}, m.EBITDA)
	assert.Equal(t, []float64{37, 41, 45}, m.EBIT)
	assert.Equal(t, []float64{100, 120, 140}, m.Equity)
	assert.Equal(t, []float64{35, 25, 15}, m.NetDebt)
	assert.Equal(t, []float64{10, 10, 10}, m.Shares, "zero latest share count is carried forward")
	assert.Equal(t, []float64{10, 10}, m.RevenueGrowth)
	assert.Equal(t, 25.0, m.ROE[0])
	assert.InDeltaSlice(t, []float64{2.5, 2.8, 3.1}, m.EPSValues, 1e-9)
	assert.Equal(t, []float64{20, 25, 30}, m.CFOperating)
	assert.Equal(t, []float64{0, 0, 0}, m.CFNet, "absent rows are zero-filled")

	assert.Equal(t, 15.0, m.LatestNetDebt)
	assert.Equal(t, 10.0, m.SharesOutstanding)
	assert.Equal(t, "Mar-2024", m.BaseYear)
	assert.Equal(t, 20.0, m.PE)
	assert.Equal(t, 22.22, m.TaxRate)
	assert.Equal(t, 635.0, m.EV)
}

func TestComputeTTMFallsBackToAnnual(t *testing.T) {
	m := NewEngine(DefaultModel()).Compute(sampleInput())

	assert.Equal(t, 121.0, m.TTMSales)
	assert.Equal(t, 45.0, m.TTMEBIT)
	assert.Equal(t, 31.0, m.TTMNetProfit)
	assert.Equal(t, 49.0, m.TTMOperatingProfit)
	assert.Equal(t, 121.0, m.LatestRevenue)
	assert.Equal(t, 37.19, m.EBITMargin)
	assert.Equal(t, []string{"Mar-2022", "Mar-2023", "Mar-2024", statement.TTMLabel}, m.YearsWithTTM)
	assert.Equal(t, []float64{100, 110, 121, 121}, m.RevenueWithTTM)
}

func TestComputeTTMFromQuarters(t *testing.T) {
	in := sampleInput()
	in.Quarters = []string{"Jun-2023", "Sep-2023", "Dec-2023", "Mar-2024", "Jun-2024"}
	in.Quarterly = statement.FromFloats(map[string][]float64{
		LabelSales:           {30, 32, 33, 35, 36},
		LabelOperatingProfit: {10, 11, 12, 12, 13},
		LabelOtherIncome:     {1, 1, 1, 1, 1},
		LabelDepreciation:    {2, 2, 2, 2, 2},
		LabelInterest:        {1, 1, 1, 1, 1},
		LabelNetProfit:       {6, 7, 8, 8, 9},
	})

	m := NewEngine(DefaultModel()).Compute(in)

	assert.Equal(t, 136.0, m.TTMSales)
	assert.Equal(t, 48.0, m.TTMOperatingProfit)
	assert.Equal(t, 32.0, m.TTMNetProfit)
	assert.Equal(t, []float64{9, 10, 11, 11, 12}, m.QEBIT)
	assert.Equal(t, 44.0, m.TTMEBIT)
	assert.Equal(t, 4.0, m.TTMInterest)
	assert.Equal(t, 9.09, m.InterestExpPct)
	assert.Equal(t, 11.0, m.TTMInterestCoverage)
	assert.Len(t, m.QSalesGrowth, 4)
}

func TestComputeProviderDerivation(t *testing.T) {
	in := sampleInput()
	in.PnL = statement.FromFloats(map[string][]float64{
		LabelSales:     {100, 110, 121},
		LabelEBITDA:    {30, 33, 36},
		LabelEBIT:      {25, 27, 29},
		LabelNetProfit: {15, 16, 17},
	})
	in.Derivation = DerivationFor("yahoo")

	m := NewEngine(DefaultModel()).Compute(in)

	assert.Equal(t, SourceProvider, m.Source)
	assert.Equal(t, []float64{30, 33, 36}, m.EBITDA)
	assert.Equal(t, []float64{25, 27, 29}, m.EBIT)
	assert.Equal(t, []float64{10, 10, 10}, m.Equity, "provider equity excludes reserves")
}

func TestDerivationFor(t *testing.T) {
	assert.IsType(t, ProviderDerived{}, DerivationFor(" Yahoo "))
	assert.IsType(t, ProviderDerived{}, DerivationFor("provider"))
	assert.IsType(t, SpreadsheetDerived{}, DerivationFor("excel"))
	assert.IsType(t, SpreadsheetDerived{}, DerivationFor("unknown"))
}

func TestComputeEmptyInputIsTotal(t *testing.T) {
	m := NewEngine(DefaultModel()).Compute(Input{})

	assert.Empty(t, m.Years)
	assert.NotNil(t, m.Years)
	assert.Equal(t, 0.0, m.PE)
	assert.Equal(t, 0.0, m.EBITMargin)
	assert.Equal(t, 13.0, m.WACC)
	assert.Equal(t, 2.0, m.CapexPct)
}

func TestComputeStrictReportsGaps(t *testing.T) {
	in := sampleInput()
	in.PnL = statement.FromMap(map[string][]any{
		LabelSales:     {100.0, "NaT", 121.0},
		LabelNetProfit: {"abc", 28.0, 31.0},
	}, []string{LabelSales, LabelNetProfit})

	e := NewEngine(DefaultModel())
	assert.Empty(t, e.Compute(in).DataGaps)

	e.Strict = true
	m := e.Compute(in)
	require.Len(t, m.DataGaps, 2)
	assert.Equal(t, DataGap{Statement: "pnl", Label: LabelSales, Period: 1, Raw: "NaT"}, m.DataGaps[0])
	assert.Equal(t, 0.0, m.Revenue[1])
}
