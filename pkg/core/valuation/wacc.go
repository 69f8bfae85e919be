package valuation

import "equity_valuation/pkg/core/calc"

// WACCInput parameters for estimating the discount rate. Rates are in
// percentage points; DebtToEquity is a plain ratio.
type WACCInput struct {
	UnleveredBeta     float64 `json:"unlevered_beta" validate:"gte=0"`
	RiskFreeRate      float64 `json:"risk_free_rate"`
	MarketRiskPremium float64 `json:"market_risk_premium"`
	PreTaxCostOfDebt  float64 `json:"pre_tax_cost_of_debt"`
	TaxRate           float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	DebtToEquity      float64 `json:"debt_to_equity" validate:"gte=0"`
}

// WACCResult holds the estimated rates, rounded to 2 dp.
type WACCResult struct {
	LeveredBeta  float64 `json:"levered_beta"`
	CostOfEquity float64 `json:"cost_of_equity"`
	CostOfDebt   float64 `json:"cost_of_debt"` // after tax
	WACC         float64 `json:"wacc"`
	WeightDebt   float64 `json:"weight_debt"`
	WeightEquity float64 `json:"weight_equity"`
}

// WACCInputFromMetrics seeds leverage and tax from the latest statements.
// Market inputs still come from the caller.
func WACCInputFromMetrics(m calc.Metrics, beta, riskFree, premium, costOfDebt float64) WACCInput {
	return WACCInput{
		UnleveredBeta:     beta,
		RiskFreeRate:      riskFree,
		MarketRiskPremium: premium,
		PreTaxCostOfDebt:  costOfDebt,
		TaxRate:           m.TaxRate,
		DebtToEquity:      max(calc.Last(m.DebtToEquity), 0),
	}
}

// EstimateWACC computes a discount rate using CAPM and the Hamada equation.
func EstimateWACC(in WACCInput) WACCResult {
	t := in.TaxRate / 100

	// 1. Re-lever beta: βL = βU * (1 + (1-t) * D/E)
	leveredBeta := in.UnleveredBeta * (1 + (1-t)*in.DebtToEquity)

	// 2. Cost of equity: Ke = Rf + βL * ERP
	ke := in.RiskFreeRate + leveredBeta*in.MarketRiskPremium

	// 3. After-tax cost of debt
	kd := in.PreTaxCostOfDebt * (1 - t)

	// 4. Weights from D/E: Wd = x/(1+x), We = 1/(1+x)
	wd := in.DebtToEquity / (1 + in.DebtToEquity)
	we := 1 / (1 + in.DebtToEquity)

	return WACCResult{
		LeveredBeta:  calc.Round2(leveredBeta),
		CostOfEquity: calc.Round2(ke),
		CostOfDebt:   calc.Round2(kd),
		WACC:         calc.Round2(ke*we + kd*wd),
		WeightDebt:   calc.Round2(wd * 100),
		WeightEquity: calc.Round2(we * 100),
	}
}
