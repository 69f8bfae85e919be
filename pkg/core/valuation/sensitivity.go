package valuation

import (
	"math"

	"equity_valuation/pkg/core/calc"
)

// SensitivityOffsets are the point offsets applied around the base EBIT margin
// and growth rate.
var SensitivityOffsets = []float64{-8, -4, 0, 4, 8}

// DCFSensitivity recomputes fair value per share over a 5×5 grid of EBIT
// margin (rows) and growth (columns). Within a cell the growth value applies
// to every year but the last, which grows at GrowthTerminal.
func DCFSensitivity(a AssumptionSet) (*SensitivityGrid, error) {
	if err := checkHorizon(a); err != nil {
		return nil, err
	}
	if err := checkTerminal(a.InterestPct, a.GrowthTerminal); err != nil {
		return nil, err
	}

	grid := &SensitivityGrid{
		EBITValues:   make([]float64, len(SensitivityOffsets)),
		GrowthValues: make([]float64, len(SensitivityOffsets)),
		FairValues:   make([][]float64, len(SensitivityOffsets)),
	}
	for i, off := range SensitivityOffsets {
		grid.EBITValues[i] = a.EBITMargin + off
		grid.GrowthValues[i] = a.GrowthY + off
	}
	for i, margin := range grid.EBITValues {
		row := make([]float64, len(grid.GrowthValues))
		for j, growth := range grid.GrowthValues {
			row[j] = calc.Round2(flatFairValue(a, margin, growth))
		}
		grid.FairValues[i] = row
	}
	return grid, nil
}

func flatFairValue(a AssumptionSet, margin, growth float64) float64 {
	wacc := a.InterestPct / 100
	revenue := a.BaseRevenue
	var pvTotal, lastFCF float64
	for year := 1; year <= a.YYears; year++ {
		g := growth
		if year == a.YYears {
			g = a.GrowthTerminal
		}
		revenue *= 1 + g/100
		ebit := revenue * margin / 100
		nopat := ebit - ebit*a.TaxRate/100
		fcf := nopat + revenue*a.DepreciationPct/100 - revenue*a.CapexPct/100 - revenue*a.WCChangePct/100
		pvTotal += fcf / math.Pow(1+wacc, float64(year))
		lastFCF = fcf
	}
	gt := a.GrowthTerminal / 100
	tv := lastFCF * (1 + gt) / (wacc - gt)
	pvTerminal := tv / math.Pow(1+wacc, float64(max(a.YYears, 0)))
	return calc.SafeDivide(pvTotal+pvTerminal-a.LatestNetDebt, a.SharesOutstanding)
}
