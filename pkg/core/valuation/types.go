package valuation

// AssumptionSet is the flat scalar input shared by the DCF and EPS
// projectors. Percentages are expressed in points (13 means 13%).
type AssumptionSet struct {
	CurrentPrice      float64 `json:"current_price"`
	BaseRevenue       float64 `json:"base_revenue"`
	LatestNetDebt     float64 `json:"latest_net_debt"`
	SharesOutstanding float64 `json:"shares_outstanding"`
	EBITMargin        float64 `json:"ebit_margin"`
	DepreciationPct   float64 `json:"depreciation_pct"`
	CapexPct          float64 `json:"capex_pct"`
	WCChangePct       float64 `json:"wc_change_pct"`
	TaxRate           float64 `json:"tax_rate"`
	InterestPct       float64 `json:"interest_pct"` // discount rate (WACC)
	XYears            int     `json:"x_years"`
	GrowthX           float64 `json:"growth_x"`
	YYears            int     `json:"y_years"`
	GrowthY           float64 `json:"growth_y"`
	GrowthTerminal    float64 `json:"growth_terminal"`
	BaseYear          string  `json:"base_year"`
	InterestExpPct    float64 `json:"interest_exp_pct"`
}

// EPSInput drives the earnings projection.
type EPSInput struct {
	BaseRevenue       float64 `json:"base_revenue"`
	ProjectionYears   int     `json:"projection_years"`
	RevenueGrowth     float64 `json:"revenue_growth"`
	EBITMargin        float64 `json:"ebit_margin"`
	InterestExpPct    float64 `json:"interest_exp_pct"`
	TaxRate           float64 `json:"tax_rate"`
	SharesOutstanding float64 `json:"shares_outstanding"`
	CurrentPrice      float64 `json:"current_price"`
	BaseYear          string  `json:"base_year"`
}

// ProjectionRow is one explicit-forecast year of the DCF. The JSON keys are
// the column headings shown in the report table.
type ProjectionRow struct {
	Year          int     `json:"Year"`
	Revenue       float64 `json:"Revenue"`
	EBIT          float64 `json:"EBIT"`
	Tax           float64 `json:"Tax"`
	NOPAT         float64 `json:"NOPAT"`
	Depreciation  float64 `json:"Depreciation"`
	Capex         float64 `json:"CapEx"`
	WCChange      float64 `json:"WC Change"`
	FCF           float64 `json:"FCF"`
	PVFCF         float64 `json:"PV of FCF"`
	PVFCFPerShare float64 `json:"PV of FCF per Share"`
	GrowthApplied float64 `json:"growth_applied"`
}

// DCFResult is the discounted-cash-flow block of a valuation.
type DCFResult struct {
	FCFTable              []ProjectionRow `json:"fcf_table"`
	FairValuePerShare     float64         `json:"fair_value_per_share"`
	EnterpriseValue       float64         `json:"enterprise_value"`
	EquityValue           float64         `json:"equity_value"`
	LatestNetDebt         float64         `json:"latest_net_debt"`
	SharesOutstanding     float64         `json:"shares_outstanding"`
	TerminalValuePV       float64         `json:"terminal_value_pv"`
	TerminalWeight        float64         `json:"terminal_weight"`
	Phase1PV              float64         `json:"phase1_pv"`
	Phase2PV              float64         `json:"phase2_pv"`
	FVPhase1PerShare      float64         `json:"fv_phase1_per_share"`
	FVPhase2PerShare      float64         `json:"fv_phase2_per_share"`
	TerminalValuePerShare float64         `json:"terminal_value_per_share"`
}

// SensitivityGrid holds fair values over EBIT-margin rows and growth columns.
type SensitivityGrid struct {
	EBITValues   []float64   `json:"ebit_values"`
	GrowthValues []float64   `json:"growth_values"`
	FairValues   [][]float64 `json:"fair_values"`
}

// EPSRow is one year of the earnings projection. PE is nil when EPS is not
// positive.
type EPSRow struct {
	Year         string   `json:"year"`
	Revenue      float64  `json:"revenue"`
	EBIT         float64  `json:"ebit"`
	Interest     float64  `json:"interest"`
	Tax          float64  `json:"tax"`
	NetProfit    float64  `json:"net_profit"`
	EPS          float64  `json:"eps"`
	PE           *float64 `json:"pe"`
	EPSFairValue float64  `json:"eps_fair_value"`
}

// EPSChart carries the projected series for charting.
type EPSChart struct {
	Years     []string  `json:"years"`
	EPS       []float64 `json:"eps"`
	Revenue   []float64 `json:"revenue"`
	NetProfit []float64 `json:"net_profit"`
}

// EPSSensitivity is EPS over margin rows and growth columns.
type EPSSensitivity struct {
	GrowthOptions []float64   `json:"growth_options"`
	MarginOptions []float64   `json:"margin_options"`
	Matrix        [][]float64 `json:"matrix"`
}

// PriceSensitivity is target price over EPS rows and PE columns.
type PriceSensitivity struct {
	EPSOptions []float64   `json:"eps_options"`
	PEOptions  []float64   `json:"pe_options"`
	Matrix     [][]float64 `json:"matrix"`
}

// EPSResult is the earnings-multiple block of a valuation.
type EPSResult struct {
	EPSFairValue     float64          `json:"eps_fair_value"`
	ProjectionTable  []EPSRow         `json:"projection_table"`
	EPSCAGR          float64          `json:"eps_cagr"`
	EPSChart         EPSChart         `json:"eps_chart"`
	SensitivityEPS   EPSSensitivity   `json:"sensitivity_eps"`
	SensitivityPrice PriceSensitivity `json:"sensitivity_price"`
}

// Results bundles the three independent valuation blocks.
type Results struct {
	DCF            *DCFResult       `json:"dcf"`
	DCFSensitivity *SensitivityGrid `json:"dcf_sensitivity"`
	EPS            *EPSResult       `json:"eps"`
}
