package valuation

import "equity_valuation/pkg/core/calc"

// Horizons used when assumptions are built from metrics.
const (
	DefaultXYears          = 3
	DefaultYYears          = 10
	DefaultProjectionYears = 3
)

// BuildAssumptions maps computed metrics onto the projection inputs.
func BuildAssumptions(m calc.Metrics) AssumptionSet {
	return AssumptionSet{
		CurrentPrice:      m.CurrentPrice,
		BaseRevenue:       m.LatestRevenue,
		LatestNetDebt:     m.LatestNetDebt,
		SharesOutstanding: m.SharesOutstanding,
		EBITMargin:        m.EBITMargin,
		DepreciationPct:   m.DepreciationPct,
		CapexPct:          m.CapexPct,
		WCChangePct:       m.WCChangePct,
		TaxRate:           m.TaxRate,
		InterestPct:       m.InterestPct,
		XYears:            DefaultXYears,
		GrowthX:           m.GrowthX,
		YYears:            DefaultYYears,
		GrowthY:           m.GrowthY,
		GrowthTerminal:    m.GrowthTerminal,
		BaseYear:          m.BaseYear,
		InterestExpPct:    m.InterestExpPct,
	}
}

// BuildEPSInput derives the earnings projection input from an assumption set.
func BuildEPSInput(a AssumptionSet) EPSInput {
	return EPSInput{
		BaseRevenue:       a.BaseRevenue,
		ProjectionYears:   DefaultProjectionYears,
		RevenueGrowth:     a.GrowthX,
		EBITMargin:        a.EBITMargin,
		InterestExpPct:    a.InterestExpPct,
		TaxRate:           a.TaxRate,
		SharesOutstanding: a.SharesOutstanding,
		CurrentPrice:      a.CurrentPrice,
		BaseYear:          a.BaseYear,
	}
}

// AssumptionOverrides carries user edits from the assumption panel. Nil
// fields leave the computed value untouched.
type AssumptionOverrides struct {
	CurrentPrice      *float64 `json:"current_price,omitempty"`
	BaseRevenue       *float64 `json:"base_revenue,omitempty"`
	LatestNetDebt     *float64 `json:"latest_net_debt,omitempty"`
	SharesOutstanding *float64 `json:"shares_outstanding,omitempty" validate:"omitempty,gte=0"`
	EBITMargin        *float64 `json:"ebit_margin,omitempty"`
	DepreciationPct   *float64 `json:"depreciation_pct,omitempty"`
	CapexPct          *float64 `json:"capex_pct,omitempty"`
	WCChangePct       *float64 `json:"wc_change_pct,omitempty"`
	TaxRate           *float64 `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	InterestPct       *float64 `json:"interest_pct,omitempty" validate:"omitempty,gt=0"`
	XYears            *int     `json:"x_years,omitempty" validate:"omitempty,gte=0,lte=50"`
	GrowthX           *float64 `json:"growth_x,omitempty"`
	YYears            *int     `json:"y_years,omitempty" validate:"omitempty,gte=1,lte=50"`
	GrowthY           *float64 `json:"growth_y,omitempty"`
	GrowthTerminal    *float64 `json:"growth_terminal,omitempty"`
	InterestExpPct    *float64 `json:"interest_exp_pct,omitempty"`
	ProjectionYears   *int     `json:"projection_years,omitempty" validate:"omitempty,gte=1,lte=20"`
}

// Apply returns a copy of a with every non-nil override set.
func (o *AssumptionOverrides) Apply(a AssumptionSet) AssumptionSet {
	if o == nil {
		return a
	}
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&a.CurrentPrice, o.CurrentPrice)
	setF(&a.BaseRevenue, o.BaseRevenue)
	setF(&a.LatestNetDebt, o.LatestNetDebt)
	setF(&a.SharesOutstanding, o.SharesOutstanding)
	setF(&a.EBITMargin, o.EBITMargin)
	setF(&a.DepreciationPct, o.DepreciationPct)
	setF(&a.CapexPct, o.CapexPct)
	setF(&a.WCChangePct, o.WCChangePct)
	setF(&a.TaxRate, o.TaxRate)
	setF(&a.InterestPct, o.InterestPct)
	setF(&a.GrowthX, o.GrowthX)
	setF(&a.GrowthY, o.GrowthY)
	setF(&a.GrowthTerminal, o.GrowthTerminal)
	setF(&a.InterestExpPct, o.InterestExpPct)
	if o.XYears != nil {
		a.XYears = *o.XYears
	}
	if o.YYears != nil {
		a.YYears = *o.YYears
	}
	return a
}

// ApplyEPS applies the EPS-specific override on top of BuildEPSInput.
func (o *AssumptionOverrides) ApplyEPS(in EPSInput) EPSInput {
	if o != nil && o.ProjectionYears != nil {
		in.ProjectionYears = *o.ProjectionYears
	}
	return in
}
