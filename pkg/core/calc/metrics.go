package calc

import "equity_valuation/pkg/core/statement"

// Meta is the company-level market data that accompanies the statements.
type Meta struct {
	MarketCap    float64 `json:"market_cap"`
	CurrentPrice float64 `json:"current_price"`
}

// MetaFromMap reads the workbook META block. Missing or malformed entries are 0.
func MetaFromMap(m map[string]any) Meta {
	return Meta{
		MarketCap:    statement.Coerce(m[MetaMarketCap]),
		CurrentPrice: statement.Coerce(m[MetaCurrentPrice]),
	}
}

// Input is everything the engine needs for one company.
type Input struct {
	PnL          *statement.Table
	BalanceSheet *statement.Table
	CashFlow     *statement.Table
	Quarterly    *statement.Table
	Years        []statement.PeriodLabel
	Quarters     []statement.PeriodLabel
	Meta         Meta
	Derivation   Derivation
}

// DataGap is one statement cell that was coerced to zero.
type DataGap struct {
	Statement string `json:"statement"`
	Label     string `json:"label"`
	Period    int    `json:"period"`
	Raw       string `json:"raw"`
}

// Metrics is the flat set of derived series and scalars. Field names match
// the JSON contract consumed by the report and the frontend.
type Metrics struct {
	Source string `json:"source"`

	// Annual series
	Years                  []string  `json:"years"`
	Revenue                []float64 `json:"revenue"`
	EBITDA                 []float64 `json:"ebitda"`
	EBIT                   []float64 `json:"ebit"`
	NetProfit              []float64 `json:"net_profit"`
	Equity                 []float64 `json:"equity"`
	NetDebt                []float64 `json:"net_debt"`
	CashAndBank            []float64 `json:"cash_and_bank"`
	NetBlock               []float64 `json:"net_block"`
	CWIP                   []float64 `json:"cwip"`
	Shares                 []float64 `json:"shares"`
	RevenueGrowth          []float64 `json:"revenue_growth"`
	EBITDAGrowth           []float64 `json:"ebitda_growth"`
	NetProfitGrowth        []float64 `json:"net_profit_growth"`
	EBITDAMargin           []float64 `json:"ebitda_margin"`
	NetProfitMargin        []float64 `json:"net_profit_margin"`
	ROCE                   []float64 `json:"roce"`
	ROE                    []float64 `json:"roe"`
	InterestCoverage       []float64 `json:"interest_coverage"`
	DebtToEquity           []float64 `json:"debt_to_equity"`
	BookValues             []float64 `json:"book_values"`
	DivAmount              []float64 `json:"div_amount"`
	DivAmountPerShare      []float64 `json:"div_amount_per_share"`
	NetAssetValues         []float64 `json:"net_asset_values"`
	NetAssetValuesPerShare []float64 `json:"net_asset_values_per_share"`
	FCF                    []float64 `json:"fcf"`
	FCFMargin              []float64 `json:"fcf_margin"`
	EPSValues              []float64 `json:"eps_values"`
	CFOperating            []float64 `json:"cf_opa"`
	CFInvesting            []float64 `json:"cf_inva"`
	CFFinancing            []float64 `json:"cf_fina"`
	CFNet                  []float64 `json:"cf_net"`

	// Series extended with a trailing-twelve-month column
	YearsWithTTM     []string  `json:"years_with_ttm"`
	RevenueWithTTM   []float64 `json:"revenue_with_ttm"`
	EBITDAWithTTM    []float64 `json:"ebitda_with_ttm"`
	NetProfitWithTTM []float64 `json:"net_profit_with_ttm"`

	// Quarterly
	Quarters         []string  `json:"qtrs"`
	QSales           []float64 `json:"q_sales"`
	QOperatingProfit []float64 `json:"q_op"`
	QNetProfit       []float64 `json:"q_np"`
	QEBIT            []float64 `json:"q_ebit"`
	QSalesGrowth     []float64 `json:"q_sales_growth"`
	QNetProfitGrowth []float64 `json:"q_net_profit_growth"`
	QEBITDAMargin    []float64 `json:"q_ebitda_margin"`

	// Trailing twelve months
	TTMSales            float64 `json:"ttm_sales"`
	TTMOperatingProfit  float64 `json:"ttm_op"`
	TTMNetProfit        float64 `json:"ttm_np"`
	TTMEBIT             float64 `json:"ttm_ebit"`
	TTMInterest         float64 `json:"interest_exp"`
	TTMROCE             float64 `json:"ttm_roce"`
	TTMROE              float64 `json:"ttm_roe"`
	TTMInterestCoverage float64 `json:"ttm_interest_coverage"`
	TTMEPS              float64 `json:"ttm_eps"`
	TTMPE               float64 `json:"ttm_pe"`
	TTMPB               float64 `json:"ttm_pb"`

	// Market and multiples
	MarketCap                 float64 `json:"market_cap"`
	CurrentPrice              float64 `json:"current_price"`
	EV                        float64 `json:"ev"`
	EVToEBIT                  float64 `json:"ev_to_ebit"`
	EVToEBITDA                float64 `json:"ev_to_ebitda"`
	PriceToSales              float64 `json:"price_to_sales"`
	PE                        float64 `json:"pe"`
	PEGRatio                  float64 `json:"peg_ratio"`
	BookValue                 float64 `json:"book_value"`
	DivAmountLast             float64 `json:"div_amount_last"`
	DivYield                  float64 `json:"div_yield"`
	NetAssetValuePerShareLast float64 `json:"net_asset_values_per_share_last"`

	// Rates used as projection assumptions
	TaxRate         float64 `json:"tax_rate"`
	CapexPct        float64 `json:"capex_pct"`
	DepreciationPct float64 `json:"depreciation_pct"`
	EBITMargin      float64 `json:"ebit_margin"`
	InterestExpPct  float64 `json:"interest_exp_pct"`
	RevenueCAGR3Y   float64 `json:"revenue_cagr_3y"`
	EPSCAGR3Y       float64 `json:"eps_cagr_3y"`

	// Latest values
	LatestRevenue     float64 `json:"latest_revenue"`
	LatestNetDebt     float64 `json:"latest_net_debt"`
	SharesOutstanding float64 `json:"shares_outstanding"`
	BaseYear          string  `json:"base_year"`

	// Model defaults echoed for the assumption panel
	WACC               float64 `json:"wacc"`
	InterestPct        float64 `json:"interest_pct"`
	GrowthX            float64 `json:"growth_x"`
	GrowthY            float64 `json:"growth_y"`
	GrowthTerminal     float64 `json:"growth_terminal"`
	PeriodX            int     `json:"period_x"`
	PeriodY            int     `json:"period_y"`
	WCChangePct        float64 `json:"wc_change_pct"`
	FairValuePE        float64 `json:"fairvalue_pe"`
	TerminalGrowthRate float64 `json:"terminal_growth_rate"`

	DataGaps []DataGap `json:"data_gaps,omitempty"`
}
