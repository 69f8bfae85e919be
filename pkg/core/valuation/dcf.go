package valuation

import (
	"math"

	"equity_valuation/pkg/core/calc"
)

// PhaseGrowth returns the revenue growth (in points) applied in the given
// projection year. Years 1..XYears use GrowthX, years before YYears use
// GrowthY and everything after uses GrowthTerminal.
func PhaseGrowth(a AssumptionSet, year int) float64 {
	switch {
	case year <= a.XYears:
		return a.GrowthX
	case year < a.YYears:
		return a.GrowthY
	default:
		return a.GrowthTerminal
	}
}

// ProjectDCF runs the three-phase free-cash-flow projection and discounts it
// back at InterestPct.
func ProjectDCF(a AssumptionSet) (*DCFResult, error) {
	if err := checkHorizon(a); err != nil {
		return nil, err
	}
	if err := checkTerminal(a.InterestPct, a.GrowthTerminal); err != nil {
		return nil, err
	}

	wacc := a.InterestPct / 100
	rows := make([]ProjectionRow, 0, max(a.YYears, 0))
	revenue := a.BaseRevenue
	var pvTotal, phase1, lastFCF float64

	for year := 1; year <= a.YYears; year++ {
		g := PhaseGrowth(a, year)
		revenue *= 1 + g/100

		// 1. Operating profit after tax
		ebit := revenue * a.EBITMargin / 100
		tax := ebit * a.TaxRate / 100
		nopat := ebit - tax

		// 2. FCF = NOPAT + D&A - CapEx - ΔWC
		dep := revenue * a.DepreciationPct / 100
		capex := revenue * a.CapexPct / 100
		wc := revenue * a.WCChangePct / 100
		fcf := nopat + dep - capex - wc

		// 3. Discount
		pv := fcf / math.Pow(1+wacc, float64(year))
		pvTotal += pv
		if year <= a.XYears {
			phase1 += pv
		}
		lastFCF = fcf

		rows = append(rows, ProjectionRow{
			Year:          year,
			Revenue:       calc.Round2(revenue),
			EBIT:          calc.Round2(ebit),
			Tax:           calc.Round2(tax),
			NOPAT:         calc.Round2(nopat),
			Depreciation:  calc.Round2(dep),
			Capex:         calc.Round2(capex),
			WCChange:      calc.Round2(wc),
			FCF:           calc.Round2(fcf),
			PVFCF:         calc.Round2(pv),
			PVFCFPerShare: calc.Round2(calc.SafeDivide(pv, a.SharesOutstanding)),
			GrowthApplied: g,
		})
	}

	// 4. Terminal value (Gordon growth on the final explicit FCF)
	// TV = FCF_y * (1+gt) / (wacc - gt), discounted by (1+wacc)^y
	gt := a.GrowthTerminal / 100
	tv := lastFCF * (1 + gt) / (wacc - gt)
	pvTerminal := tv / math.Pow(1+wacc, float64(max(a.YYears, 0)))

	// 5. Aggregation
	ev := pvTotal + pvTerminal
	equity := ev - a.LatestNetDebt
	phase2 := pvTotal - phase1
	shares := a.SharesOutstanding

	return &DCFResult{
		FCFTable:              rows,
		FairValuePerShare:     calc.Round2(calc.SafeDivide(equity, shares)),
		EnterpriseValue:       calc.Round2(ev),
		EquityValue:           calc.Round2(equity),
		LatestNetDebt:         calc.Round2(a.LatestNetDebt),
		SharesOutstanding:     calc.Round2(shares),
		TerminalValuePV:       calc.Round2(pvTerminal),
		TerminalWeight:        calc.Round2(calc.SafeDivide(pvTerminal, ev) * 100),
		Phase1PV:              calc.Round2(phase1),
		Phase2PV:              calc.Round2(phase2),
		FVPhase1PerShare:      calc.Round2(calc.SafeDivide(phase1, shares)),
		FVPhase2PerShare:      calc.Round2(calc.SafeDivide(phase2, shares)),
		TerminalValuePerShare: calc.Round2(calc.SafeDivide(pvTerminal, shares)),
	}, nil
}
