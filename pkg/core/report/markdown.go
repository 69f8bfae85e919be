// Package report turns a valuation result into markdown, a PDF and HTML
// preview sections.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/marketdata"
	"equity_valuation/pkg/core/valuation"
)

// Disclaimer closes every report.
const Disclaimer = "This report is generated from the supplied financial statements and model assumptions. " +
	"It is for informational purposes only and is not investment advice."

// Data is everything a report can show. Sections whose inputs are nil are
// left out.
type Data struct {
	CompanyInfo      marketdata.CompanyInfo   `json:"companyInfo"`
	ExecutiveSummary string                   `json:"executiveSummary,omitempty"`
	Metrics          *calc.Metrics            `json:"metrics,omitempty"`
	Assumptions      *valuation.AssumptionSet `json:"assumptions,omitempty"`
	ValuationResults *valuation.Results       `json:"valuationResults,omitempty"`
}

// Title is the document title used for the PDF and saved reports.
func (d Data) Title() string {
	name := d.CompanyInfo.Name
	if name == "" {
		name = "Company"
	}
	if d.CompanyInfo.Ticker != "" {
		return fmt.Sprintf("%s (%s) Valuation Report", name, d.CompanyInfo.Ticker)
	}
	return name + " Valuation Report"
}

// BuildMarkdown renders d as a GFM document with one h2 per section.
func BuildMarkdown(d Data) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title())

	info := d.CompanyInfo
	b.WriteString("## Company Overview\n\n")
	if info.Sector != "" || info.Industry != "" {
		fmt.Fprintf(&b, "**Sector:** %s  \n**Industry:** %s\n\n", orDash(info.Sector), orDash(info.Industry))
	}
	if info.Description != "" {
		b.WriteString(strings.TrimSpace(info.Description) + "\n\n")
	}
	price, mcap := info.CurrentPrice, info.MarketCap
	if d.Metrics != nil {
		price = firstNonZero(price, d.Metrics.CurrentPrice)
		mcap = firstNonZero(mcap, d.Metrics.MarketCap)
	}
	fmt.Fprintf(&b, "- Current price: Rs. %s\n- Market cap: Rs. %s Cr\n\n", num(price), num(mcap))

	if s := strings.TrimSpace(d.ExecutiveSummary); s != "" {
		b.WriteString("## Executive Summary\n\n" + s + "\n\n")
	}
	if d.Metrics != nil {
		writeMetrics(&b, d.Metrics)
	}
	if d.Assumptions != nil {
		writeAssumptions(&b, d.Assumptions)
	}
	if r := d.ValuationResults; r != nil {
		if r.DCF != nil {
			writeDCF(&b, r.DCF)
		}
		if r.DCFSensitivity != nil {
			writeDCFSensitivity(&b, r.DCFSensitivity)
		}
		if r.EPS != nil {
			writeEPS(&b, r.EPS)
		}
	}

	b.WriteString("## Disclaimer\n\n*" + Disclaimer + "*\n")
	return b.String()
}

func writeMetrics(b *strings.Builder, m *calc.Metrics) {
	b.WriteString("## Key Metrics\n\n")
	if len(m.Years) > 0 {
		series := []struct {
			label  string
			values []float64
		}{
			{"Revenue (Cr)", m.Revenue},
			{"Revenue growth %", m.RevenueGrowth},
			{"EBITDA (Cr)", m.EBITDA},
			{"EBITDA margin %", m.EBITDAMargin},
			{"Net profit (Cr)", m.NetProfit},
			{"Net margin %", m.NetProfitMargin},
			{"EPS", m.EPSValues},
			{"ROCE %", m.ROCE},
			{"ROE %", m.ROE},
			{"Debt / equity", m.DebtToEquity},
			{"Free cash flow (Cr)", m.FCF},
		}
		writeRow(b, append([]string{"Metric"}, m.Years...))
		writeRule(b, len(m.Years)+1)
		for _, s := range series {
			row := []string{s.label}
			for i := range m.Years {
				row = append(row, at(s.values, i))
			}
			writeRow(b, row)
		}
		b.WriteString("\n")
	}

	writeRow(b, []string{"Measure", "Value"})
	writeRule(b, 2)
	for _, kv := range [][2]string{
		{"TTM sales (Cr)", num(m.TTMSales)},
		{"TTM net profit (Cr)", num(m.TTMNetProfit)},
		{"TTM EPS", num(m.TTMEPS)},
		{"P/E", num(m.TTMPE)},
		{"P/B", num(m.TTMPB)},
		{"EV (Cr)", num(m.EV)},
		{"EV / EBITDA", num(m.EVToEBITDA)},
		{"EV / EBIT", num(m.EVToEBIT)},
		{"Price / sales", num(m.PriceToSales)},
		{"Dividend yield %", num(m.DivYield)},
		{"Revenue CAGR 3Y %", num(m.RevenueCAGR3Y)},
		{"EPS CAGR 3Y %", num(m.EPSCAGR3Y)},
	} {
		writeRow(b, kv[:])
	}
	b.WriteString("\n")
}

func writeAssumptions(b *strings.Builder, a *valuation.AssumptionSet) {
	b.WriteString("## Assumptions\n\n")
	writeRow(b, []string{"Assumption", "Value"})
	writeRule(b, 2)
	for _, kv := range [][2]string{
		{"Base year", orDash(a.BaseYear)},
		{"Base revenue (Cr)", num(a.BaseRevenue)},
		{"EBIT margin %", num(a.EBITMargin)},
		{"Tax rate %", num(a.TaxRate)},
		{"Depreciation % of revenue", num(a.DepreciationPct)},
		{"Capex % of revenue", num(a.CapexPct)},
		{"Working capital change %", num(a.WCChangePct)},
		{"Discount rate (WACC) %", num(a.InterestPct)},
		{fmt.Sprintf("Growth years 1-%d %%", a.XYears), num(a.GrowthX)},
		{fmt.Sprintf("Growth years %d-%d %%", a.XYears+1, a.YYears), num(a.GrowthY)},
		{"Terminal growth %", num(a.GrowthTerminal)},
		{"Net debt (Cr)", num(a.LatestNetDebt)},
		{"Shares outstanding (Cr)", num(a.SharesOutstanding)},
	} {
		writeRow(b, kv[:])
	}
	b.WriteString("\n")
}

func writeDCF(b *strings.Builder, r *valuation.DCFResult) {
	b.WriteString("## DCF Valuation\n\n")
	writeRow(b, []string{"Year", "Revenue", "EBIT", "NOPAT", "FCF", "PV of FCF", "Growth %"})
	writeRule(b, 7)
	for _, row := range r.FCFTable {
		writeRow(b, []string{
			strconv.Itoa(row.Year), num(row.Revenue), num(row.EBIT), num(row.NOPAT),
			num(row.FCF), num(row.PVFCF), num(row.GrowthApplied),
		})
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "- **Fair value per share:** Rs. %s\n", num(r.FairValuePerShare))
	fmt.Fprintf(b, "- Enterprise value: Rs. %s Cr\n", num(r.EnterpriseValue))
	fmt.Fprintf(b, "- Equity value: Rs. %s Cr\n", num(r.EquityValue))
	fmt.Fprintf(b, "- PV of terminal value: Rs. %s Cr (%s%% of EV)\n", num(r.TerminalValuePV), num(r.TerminalWeight))
	fmt.Fprintf(b, "- Per share: phase 1 %s, phase 2 %s, terminal %s\n\n",
		num(r.FVPhase1PerShare), num(r.FVPhase2PerShare), num(r.TerminalValuePerShare))
}

func writeDCFSensitivity(b *strings.Builder, g *valuation.SensitivityGrid) {
	b.WriteString("## DCF Sensitivity\n\n")
	b.WriteString("Fair value per share by EBIT margin (rows) and growth (columns).\n\n")
	writeGrid(b, "EBIT % / Growth %", g.EBITValues, g.GrowthValues, g.FairValues)
}

func writeEPS(b *strings.Builder, r *valuation.EPSResult) {
	b.WriteString("## EPS Projection\n\n")
	writeRow(b, []string{"Year", "Revenue", "EBIT", "Interest", "Tax", "Net profit", "EPS", "P/E"})
	writeRule(b, 8)
	for _, row := range r.ProjectionTable {
		pe := "-"
		if row.PE != nil {
			pe = num(*row.PE)
		}
		writeRow(b, []string{
			row.Year, num(row.Revenue), num(row.EBIT), num(row.Interest),
			num(row.Tax), num(row.NetProfit), num(row.EPS), pe,
		})
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "- **EPS fair value:** Rs. %s\n- EPS CAGR: %s%%\n\n", num(r.EPSFairValue), num(r.EPSCAGR))

	b.WriteString("## EPS Sensitivity\n\n")
	b.WriteString("EPS by EBIT margin (rows) and revenue growth (columns).\n\n")
	writeGrid(b, "Margin % / Growth %", r.SensitivityEPS.MarginOptions, r.SensitivityEPS.GrowthOptions, r.SensitivityEPS.Matrix)

	b.WriteString("## Price Sensitivity\n\n")
	b.WriteString("Target price by EPS (rows) and P/E multiple (columns).\n\n")
	writeGrid(b, "EPS / PE", r.SensitivityPrice.EPSOptions, r.SensitivityPrice.PEOptions, r.SensitivityPrice.Matrix)
}

func writeGrid(b *strings.Builder, corner string, rows, cols []float64, matrix [][]float64) {
	header := []string{corner}
	for _, c := range cols {
		header = append(header, num(c))
	}
	writeRow(b, header)
	writeRule(b, len(header))
	for i, r := range rows {
		line := []string{"**" + num(r) + "**"}
		for j := range cols {
			if i < len(matrix) {
				line = append(line, at(matrix[i], j))
			} else {
				line = append(line, "-")
			}
		}
		writeRow(b, line)
	}
	b.WriteString("\n")
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("| ")
	for i, c := range cells {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(strings.ReplaceAll(c, "|", "/"))
	}
	b.WriteString(" |\n")
}

func writeRule(b *strings.Builder, n int) {
	b.WriteString("|")
	for i := 0; i < n; i++ {
		if i == 0 {
			b.WriteString(" --- |")
		} else {
			b.WriteString(" ---: |")
		}
	}
	b.WriteString("\n")
}

func at(values []float64, i int) string {
	if i < len(values) {
		return num(values[i])
	}
	return "-"
}

// num formats x with two decimals and thousands separators.
func num(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "-"
	}
	s := strconv.FormatFloat(math.Abs(x), 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var grouped strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(c)
	}
	if x < 0 && s != "0.00" {
		return "-" + grouped.String() + frac
	}
	return grouped.String() + frac
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func firstNonZero(a, b float64) float64 {
	if a != 0 {
		return a
	}
	return b
}
