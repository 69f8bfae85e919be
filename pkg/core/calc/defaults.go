package calc

// Defaults are the model parameters that are not derived from statements.
// They are loaded once from configuration and handed to NewEngine.
type Defaults struct {
	WACC               float64 `json:"wacc" yaml:"wacc" toml:"wacc" validate:"gt=0"`
	InterestPct        float64 `json:"interest_pct" yaml:"interest_pct" toml:"interest_pct" validate:"gt=0"`
	GrowthX            float64 `json:"growth_x" yaml:"growth_x" toml:"growth_x"`
	GrowthY            float64 `json:"growth_y" yaml:"growth_y" toml:"growth_y"`
	GrowthTerminal     float64 `json:"growth_terminal" yaml:"growth_terminal" toml:"growth_terminal" validate:"ltfield=InterestPct"`
	PeriodX            int     `json:"period_x" yaml:"period_x" toml:"period_x" validate:"gte=1"`
	PeriodY            int     `json:"period_y" yaml:"period_y" toml:"period_y" validate:"gtefield=PeriodX"`
	WCChangePct        float64 `json:"wc_change_pct" yaml:"wc_change_pct" toml:"wc_change_pct"`
	FairValuePE        float64 `json:"fairvalue_pe" yaml:"fairvalue_pe" toml:"fairvalue_pe" validate:"gt=0"`
	TerminalGrowthRate float64 `json:"terminal_growth_rate" yaml:"terminal_growth_rate" toml:"terminal_growth_rate"`
	DefaultCapexPct    float64 `json:"default_capex_pct" yaml:"default_capex_pct" toml:"default_capex_pct"`
}

// DefaultModel returns the built-in parameter set.
func DefaultModel() Defaults {
	return Defaults{
		WACC:               13,
		InterestPct:        13,
		GrowthX:            12,
		GrowthY:            9,
		GrowthTerminal:     3,
		PeriodX:            5,
		PeriodY:            15,
		WCChangePct:        2,
		FairValuePE:        20,
		TerminalGrowthRate: 3,
		DefaultCapexPct:    2,
	}
}
