package valuation

import (
	"fmt"
	"regexp"
	"strconv"

	"equity_valuation/pkg/core/calc"
)

const (
	// FairValuePE is the fixed multiple applied to year-3 EPS.
	FairValuePE = 20
	// FairValueYear is the projection index that carries eps_fair_value.
	FairValueYear = 3

	defaultBaseYear = 2024
)

var (
	baseYearPattern = regexp.MustCompile(`20\d{2}`)

	epsAxisOffsets = []float64{-15, -10, -5, 0, 5, 10, 15}
	peAxisOffsets  = []float64{-10, -5, 0, 5, 10}
)

// ParseBaseYear extracts the fiscal year from a period label such as
// "Mar-2024" or "FY2023". Labels without a 20xx year fall back to 2024.
func ParseBaseYear(label string) int {
	if m := baseYearPattern.FindString(label); m != "" {
		if y, err := strconv.Atoi(m); err == nil {
			return y
		}
	}
	return defaultBaseYear
}

type epsLine struct {
	ebit, interest, tax, netProfit, eps float64
}

func (in EPSInput) line(revenue, margin float64) epsLine {
	ebit := revenue * margin / 100
	interest := ebit * in.InterestExpPct / 100
	ebt := ebit - interest
	tax := ebt * in.TaxRate / 100
	np := ebt - tax
	return epsLine{
		ebit:      ebit,
		interest:  interest,
		tax:       tax,
		netProfit: np,
		eps:       calc.SafeDivide(np, in.SharesOutstanding),
	}
}

func (in EPSInput) row(year string, revenue float64, l epsLine) EPSRow {
	r := EPSRow{
		Year:      year,
		Revenue:   calc.Round2(revenue),
		EBIT:      calc.Round2(l.ebit),
		Interest:  calc.Round2(l.interest),
		Tax:       calc.Round2(l.tax),
		NetProfit: calc.Round2(l.netProfit),
		EPS:       calc.Round2(l.eps),
	}
	if l.eps > 0 {
		pe := calc.Round2(in.CurrentPrice / l.eps)
		r.PE = &pe
	}
	return r
}

// ProjectEPS projects earnings per share for ProjectionYears years on top of
// a base row, then builds the EPS and price sensitivity grids.
func ProjectEPS(in EPSInput) *EPSResult {
	base := ParseBaseYear(in.BaseYear)
	n := max(in.ProjectionYears, 0)

	res := &EPSResult{
		ProjectionTable: make([]EPSRow, 0, n+1),
		EPSChart: EPSChart{
			Years:     make([]string, 0, n),
			EPS:       make([]float64, 0, n),
			Revenue:   make([]float64, 0, n),
			NetProfit: make([]float64, 0, n),
		},
	}

	// Row 0: base revenue at current margins
	l0 := in.line(in.BaseRevenue, in.EBITMargin)
	res.ProjectionTable = append(res.ProjectionTable, in.row(fmt.Sprintf("FY%d", base+1), in.BaseRevenue, l0))
	epsSeries := []float64{l0.eps}

	revenue := in.BaseRevenue
	for i := 1; i <= n; i++ {
		revenue *= 1 + in.RevenueGrowth/100
		l := in.line(revenue, in.EBITMargin)
		fy := base + i + 1
		r := in.row(fmt.Sprintf("FY%d", fy), revenue, l)
		if i == FairValueYear {
			r.EPSFairValue = calc.Round2(max(l.eps, 0) * FairValuePE)
			res.EPSFairValue = r.EPSFairValue
		}
		res.ProjectionTable = append(res.ProjectionTable, r)
		epsSeries = append(epsSeries, l.eps)

		res.EPSChart.Years = append(res.EPSChart.Years, fmt.Sprintf("FY%02d", fy%100))
		res.EPSChart.EPS = append(res.EPSChart.EPS, calc.Round2(l.eps))
		res.EPSChart.Revenue = append(res.EPSChart.Revenue, calc.Round2(revenue))
		res.EPSChart.NetProfit = append(res.EPSChart.NetProfit, calc.Round2(l.netProfit))
	}
	res.EPSCAGR = calc.CAGR(epsSeries)

	res.SensitivityEPS = in.epsSensitivity(n)
	res.SensitivityPrice = in.priceSensitivity(l0.eps)
	return res
}

// epsSensitivity compounds revenue uniformly for n years at each growth
// option and reports EPS per margin (row) and growth (column).
func (in EPSInput) epsSensitivity(n int) EPSSensitivity {
	s := EPSSensitivity{
		GrowthOptions: make([]float64, len(SensitivityOffsets)),
		MarginOptions: make([]float64, len(SensitivityOffsets)),
		Matrix:        make([][]float64, len(SensitivityOffsets)),
	}
	for i, off := range SensitivityOffsets {
		s.GrowthOptions[i] = calc.Round1(in.RevenueGrowth + off)
		s.MarginOptions[i] = calc.Round1(in.EBITMargin + off)
	}
	for i, margin := range s.MarginOptions {
		row := make([]float64, len(s.GrowthOptions))
		for j, growth := range s.GrowthOptions {
			rev := in.BaseRevenue
			for y := 0; y < n; y++ {
				rev *= 1 + growth/100
			}
			row[j] = calc.Round2(in.line(rev, margin).eps)
		}
		s.Matrix[i] = row
	}
	return s
}

// priceSensitivity prices the base-year EPS band against a PE band centred
// on the current trailing multiple.
func (in EPSInput) priceSensitivity(eps0 float64) PriceSensitivity {
	pe0 := calc.SafeDivide(in.CurrentPrice, eps0)
	s := PriceSensitivity{
		EPSOptions: make([]float64, len(epsAxisOffsets)),
		PEOptions:  make([]float64, len(peAxisOffsets)),
		Matrix:     make([][]float64, len(epsAxisOffsets)),
	}
	for i, off := range epsAxisOffsets {
		s.EPSOptions[i] = calc.Round1(eps0 + off)
	}
	for j, off := range peAxisOffsets {
		s.PEOptions[j] = calc.Round1(pe0 + off)
	}
	for i, eps := range s.EPSOptions {
		row := make([]float64, len(s.PEOptions))
		for j, pe := range s.PEOptions {
			row[j] = calc.Round2(max(eps*pe, 0))
		}
		s.Matrix[i] = row
	}
	return s
}
