// Package calc derives financial ratios, growth rates and trailing-twelve-month
// rollups from parsed statements. Every function here is total: missing rows
// are zero-filled, placeholder cells are zero and zero denominators yield zero.
package calc

import (
	"equity_valuation/pkg/core/statement"
)

// Engine computes Metrics. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	Defaults Defaults
	// Strict attaches a report of every coerced cell to the result.
	Strict bool
}

// NewEngine returns an engine using the given model defaults.
func NewEngine(d Defaults) *Engine {
	return &Engine{Defaults: d}
}

// Compute derives the full metric set for one company.
func (e *Engine) Compute(in Input) *Metrics {
	deriv := in.Derivation
	if deriv == nil {
		deriv = SpreadsheetDerived{}
	}
	years := append(make([]string, 0, len(in.Years)), in.Years...)
	n := len(years)
	pnl, bs, cf := in.PnL, in.BalanceSheet, in.CashFlow

	m := &Metrics{
		Source:       deriv.Name(),
		Years:        years,
		MarketCap:    in.Meta.MarketCap,
		CurrentPrice: in.Meta.CurrentPrice,
	}

	// ==========================================================================
	// RAW SERIES
	// ==========================================================================
	revenue := pnl.Values(LabelSales, n)
	netProfit := pnl.Values(LabelNetProfit, n)
	interest := pnl.Values(LabelInterest, n)
	depreciation := pnl.Values(LabelDepreciation, n)
	divAmount := pnl.Values(LabelDividendAmount, n)
	tax := pnl.Values(LabelTax, n)

	debt := bs.Values(LabelBorrowings, n)
	cash := bs.Values(LabelCash, n)
	investments := bs.Values(LabelInvestments, n)
	cwip := bs.Values(LabelCWIP, n)
	netBlock := bs.Values(LabelNetBlock, n)
	shares := NormalizeShares(bs.Values(LabelShares, n))

	m.Revenue = revenue
	m.NetProfit = netProfit
	m.NetBlock = netBlock
	m.CWIP = cwip
	m.Shares = shares
	m.DivAmount = divAmount
	m.CFOperating = cf.Values(LabelCFOperating, n)
	m.CFInvesting = cf.Values(LabelCFInvesting, n)
	m.CFFinancing = cf.Values(LabelCFFinancing, n)
	m.CFNet = cf.Values(LabelCFNet, n)

	d := deriv.Derive(pnl, bs, n)
	m.EBITDA, m.EBIT, m.Equity = d.EBITDA, d.EBIT, d.Equity

	m.NetDebt = make([]float64, n)
	m.CashAndBank = make([]float64, n)
	for i := 0; i < n; i++ {
		m.NetDebt[i] = Round2(debt[i] - cash[i] - investments[i])
		m.CashAndBank[i] = Round2(cash[i] + investments[i])
	}

	// ==========================================================================
	// PER-YEAR RATIOS
	// ==========================================================================
	m.RevenueGrowth = Growth(revenue)
	m.EBITDAGrowth = Growth(m.EBITDA)
	m.NetProfitGrowth = Growth(netProfit)

	m.EBITDAMargin = ratioPct(m.EBITDA, revenue)
	m.NetProfitMargin = ratioPct(netProfit, revenue)
	capital := zipWith(func(eq, dbt float64) float64 { return eq + dbt }, m.Equity, debt)
	m.ROCE = ratioPct(m.EBIT, capital)
	m.ROE = ratioPct(netProfit, m.Equity)
	m.InterestCoverage = ratio(m.EBIT, interest)
	m.DebtToEquity = ratio(debt, m.Equity)
	m.BookValues = ratio(m.Equity, shares)
	m.DivAmountPerShare = ratio(divAmount, shares)

	m.NetAssetValues = zipWith(func(nb, nd float64) float64 { return Round2(nb - nd) }, netBlock, m.NetDebt)
	m.NetAssetValuesPerShare = ratio(m.NetAssetValues, shares)

	m.FCF = make([]float64, n)
	for i := 0; i < n; i++ {
		m.FCF[i] = Round2(netProfit[i] + depreciation[i] - cwip[i])
	}
	m.FCFMargin = ratioPct(m.FCF, revenue)

	m.EPSValues = zipWith(SafeDivide, netProfit, shares)

	// ==========================================================================
	// LATEST VALUES AND RATES
	// ==========================================================================
	m.DivAmountLast = Round2(Last(m.DivAmountPerShare))
	m.LatestNetDebt = Round2(Last(m.NetDebt))
	m.SharesOutstanding = Last(shares)
	if n > 0 {
		m.BaseYear = years[n-1]
	}

	m.EPSCAGR3Y = CAGR(m.EPSValues)
	m.PE = Round2(SafeDivide(m.CurrentPrice, Last(m.EPSValues)))
	if len(m.RevenueGrowth) > 0 {
		m.PEGRatio = Round2(SafeDivide(SafeDivide(m.CurrentPrice, Last(m.EPSValues)), Last(m.RevenueGrowth)))
	}

	m.CapexPct = e.Defaults.DefaultCapexPct
	if n > 0 {
		m.TaxRate = Round2(SafeDivide(Last(tax), Last(m.EBIT)) * 100)
		m.CapexPct = Round2(SafeDivide(Last(cwip), Last(revenue)) * 100)
		m.DepreciationPct = Round2(SafeDivide(Last(depreciation), Last(revenue)) * 100)
	}
	m.RevenueCAGR3Y = CAGR(revenue)
	m.EV = Round2(m.MarketCap + m.LatestNetDebt)

	// ==========================================================================
	// QUARTERLY AND TTM
	// ==========================================================================
	e.quarterly(m, in, debt)

	m.BookValue = Round2(Last(m.BookValues))
	m.TTMPB = Round2(SafeDivide(m.CurrentPrice, Last(m.BookValues)))
	m.NetAssetValuePerShareLast = Last(m.NetAssetValuesPerShare)
	if m.CurrentPrice != 0 {
		m.DivYield = Round2(SafeDivide(m.DivAmountLast, m.CurrentPrice) * 100)
	}

	e.applyDefaults(m)
	if e.Strict {
		m.DataGaps = collectGaps(in)
	}
	return m
}

func (e *Engine) quarterly(m *Metrics, in Input, debt []float64) {
	q := in.Quarterly
	nq := len(in.Quarters)
	if nq == 0 {
		nq = longestRow(q)
	}
	m.Quarters = append(make([]string, 0, len(in.Quarters)), in.Quarters...)

	qSales := q.Values(LabelSales, nq)
	qOtherIncome := q.Values(LabelOtherIncome, nq)
	qDepreciation := q.Values(LabelDepreciation, nq)
	qInterest := q.Values(LabelInterest, nq)
	qNetProfit := q.Values(LabelNetProfit, nq)
	qOP := q.Values(LabelOperatingProfit, nq)

	m.QSales, m.QOperatingProfit, m.QNetProfit = qSales, qOP, qNetProfit
	m.QEBIT = make([]float64, nq)
	for i := 0; i < nq; i++ {
		m.QEBIT[i] = Round2(qOP[i] + qOtherIncome[i] - qDepreciation[i])
	}
	m.QSalesGrowth = Growth(qSales)
	m.QNetProfitGrowth = Growth(qNetProfit)
	m.QEBITDAMargin = ratioPct(qOP, qSales)

	// A zero quarterly sum means no usable quarters; fall back to the latest
	// annual figure, never to an estimate.
	m.TTMSales = fallback(Round2(SumLast4(qSales)), Last(m.Revenue))
	m.TTMOperatingProfit = fallback(Round2(SumLast4(qOP)), Last(m.EBITDA))
	m.TTMNetProfit = fallback(Round2(SumLast4(qNetProfit)), Last(m.NetProfit))
	m.TTMEBIT = fallback(Round2(SumLast4(m.QEBIT)), Last(m.EBIT))
	m.TTMInterest = Round2(SumLast4(qInterest))

	m.EBITMargin = Round2(SafeDivide(m.TTMEBIT, m.TTMSales) * 100)
	m.TTMROCE = Round2(SafeDivide(m.TTMEBIT, Last(m.Equity)+Last(debt)) * 100)
	m.TTMROE = Round2(SafeDivide(m.TTMNetProfit, Last(m.Equity)) * 100)
	m.TTMInterestCoverage = Round2(SafeDivide(m.TTMEBIT, m.TTMInterest))
	if m.TTMEBIT != 0 {
		m.InterestExpPct = Round2(SafeDivide(m.TTMInterest, m.TTMEBIT) * 100)
	}

	m.PriceToSales = Round2(SafeDivide(m.MarketCap, m.TTMSales))
	m.EVToEBIT = Round2(SafeDivide(m.EV, m.TTMEBIT))
	m.EVToEBITDA = Round2(SafeDivide(m.EV, m.TTMOperatingProfit))
	m.TTMEPS = Round2(SafeDivide(m.TTMNetProfit, m.SharesOutstanding))
	m.TTMPE = Round2(SafeDivide(m.MarketCap, m.TTMNetProfit))
	m.LatestRevenue = m.TTMSales

	m.YearsWithTTM = append(append([]string(nil), m.Years...), statement.TTMLabel)
	m.RevenueWithTTM = append(append([]float64(nil), m.Revenue...), m.TTMSales)
	m.EBITDAWithTTM = append(append([]float64(nil), m.EBITDA...), m.TTMOperatingProfit)
	m.NetProfitWithTTM = append(append([]float64(nil), m.NetProfit...), m.TTMNetProfit)
}

func (e *Engine) applyDefaults(m *Metrics) {
	d := e.Defaults
	m.WACC = d.WACC
	m.InterestPct = d.InterestPct
	m.GrowthX = d.GrowthX
	m.GrowthY = d.GrowthY
	m.GrowthTerminal = d.GrowthTerminal
	m.PeriodX = d.PeriodX
	m.PeriodY = d.PeriodY
	m.WCChangePct = d.WCChangePct
	m.FairValuePE = d.FairValuePE
	m.TerminalGrowthRate = d.TerminalGrowthRate
}

func fallback(v, alt float64) float64 {
	if v == 0 {
		return alt
	}
	return v
}

func longestRow(t *statement.Table) int {
	n := 0
	for _, label := range t.Labels() {
		if l := len(t.Raw(label)); l > n {
			n = l
		}
	}
	return n
}

func collectGaps(in Input) []DataGap {
	var gaps []DataGap
	add := func(name string, t *statement.Table) {
		for _, g := range t.Gaps() {
			gaps = append(gaps, DataGap{Statement: name, Label: g.Label, Period: g.Period, Raw: g.Raw})
		}
	}
	add("pnl", in.PnL)
	add("balance_sheet", in.BalanceSheet)
	add("cashflow", in.CashFlow)
	add("quarters", in.Quarterly)
	return gaps
}
