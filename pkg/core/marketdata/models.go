package marketdata

import "time"

// EODData is one end-of-day bar.
type EODData struct {
	Date          time.Time `json:"-"`
	DateStr       string    `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// EODResponse is the /eod payload, oldest bar first when ordered ascending.
type EODResponse []EODData

// Quote is the /real-time payload. Close carries the last traded price.
type Quote struct {
	Code          string  `json:"code"`
	Timestamp     int64   `json:"timestamp"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	ChangePct     float64 `json:"change_p"`
	Volume        int64   `json:"volume"`
}

// FundamentalsResponse is the subset of /fundamentals the valuation needs.
type FundamentalsResponse struct {
	General    *GeneralInfo `json:"General"`
	Highlights *Highlights  `json:"Highlights"`
	Financials *Financials  `json:"Financials"`
}

// GeneralInfo describes the listed company.
type GeneralInfo struct {
	Code         string `json:"Code"`
	Name         string `json:"Name"`
	Exchange     string `json:"Exchange"`
	CurrencyCode string `json:"CurrencyCode"`
	Sector       string `json:"Sector"`
	Industry     string `json:"Industry"`
	Description  string `json:"Description"`
}

// Highlights carries headline market figures in the reporting currency.
type Highlights struct {
	MarketCapitalization float64 `json:"MarketCapitalization"`
	EBITDA               float64 `json:"EBITDA"`
	PERatio              float64 `json:"PERatio"`
	BookValue            float64 `json:"BookValue"`
	DividendYield        float64 `json:"DividendYield"`
	EarningsShare        float64 `json:"EarningsShare"`
	RevenueTTM           float64 `json:"RevenueTTM"`
}

// Financials contains the three annual statements.
type Financials struct {
	BalanceSheet    *FinancialStatement `json:"Balance_Sheet"`
	CashFlow        *FinancialStatement `json:"Cash_Flow"`
	IncomeStatement *FinancialStatement `json:"Income_Statement"`
}

// FinancialStatement maps a period end date ("2024-03-31") to its line items.
// Values arrive as strings, numbers or null.
type FinancialStatement struct {
	Currency  string                            `json:"currency"`
	Quarterly map[string]map[string]interface{} `json:"quarterly"`
	Yearly    map[string]map[string]interface{} `json:"yearly"`
}

// CompanyInfo is the profile block returned alongside provider statements.
type CompanyInfo struct {
	Name         string  `json:"name"`
	Ticker       string  `json:"ticker"`
	Sector       string  `json:"sector"`
	Industry     string  `json:"industry"`
	Description  string  `json:"description"`
	CurrentPrice float64 `json:"current_price"`
	MarketCap    float64 `json:"market_cap"`
}
