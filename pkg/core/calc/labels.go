package calc

// Line-item vocabulary shared by the workbook parser, the provider mapper and
// the engine. Labels are matched exactly.
const (
	// Profit & loss
	LabelSales             = "Sales"
	LabelRawMaterial       = "Raw Material Cost"
	LabelChangeInInventory = "Change in Inventory"
	LabelPowerAndFuel      = "Power and Fuel"
	LabelOtherMfrExp       = "Other Mfr. Exp"
	LabelEmployeeCost      = "Employee Cost"
	LabelSellingAdmin      = "Selling and admin"
	LabelOtherExpenses     = "Other Expenses"
	LabelOtherIncome       = "Other Income"
	LabelDepreciation      = "Depreciation"
	LabelInterest          = "Interest"
	LabelTax               = "Tax"
	LabelNetProfit         = "Net profit"
	LabelDividendAmount    = "Dividend Amount"
	LabelEBITDA            = "EBITDA"
	LabelEBIT              = "EBIT"

	// Balance sheet
	LabelEquityCapital = "Equity Share Capital"
	LabelReserves      = "Reserves"
	LabelBorrowings    = "Borrowings"
	LabelCash          = "Cash & Bank"
	LabelInvestments   = "Investments"
	LabelCWIP          = "Capital Work in Progress"
	LabelNetBlock      = "Net Block"
	LabelShares        = "No. of Equity Shares"

	// Cash flow
	LabelCFOperating = "Cash from Operating Activity"
	LabelCFInvesting = "Cash from Investing Activity"
	LabelCFFinancing = "Cash from Financing Activity"
	LabelCFNet       = "Net Cash Flow"

	// Quarterly results
	LabelExpenses        = "Expenses"
	LabelOperatingProfit = "Operating Profit"
	LabelProfitBeforeTax = "Profit before tax"
)

// Metadata keys as they appear in the workbook META block.
const (
	MetaMarketCap    = "Market Capitalization"
	MetaCurrentPrice = "Current Price"
)
