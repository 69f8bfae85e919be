package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/phuslu/log"

	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/statement"
)

// HTML section keys, matched against data-section or the table caption.
var htmlSections = map[string]string{
	"meta":          SectionMeta,
	"pnl":           SectionPnL,
	"profit & loss": SectionPnL,
	"balance_sheet": SectionBalance,
	"balance sheet": SectionBalance,
	"cashflow":      SectionCashFlow,
	"cash flow":     SectionCashFlow,
	"cash flow:":    SectionCashFlow,
	"quarters":      SectionQuarters,
}

// ParseHTMLTables reads statement tables from an HTML export. Each table is
// identified by a data-section attribute or its caption; its first row holds
// the period headers and every following row is label, value, value...
// The company name comes from an element with data-company, else the first h1.
func ParseHTMLTables(r io.Reader) (*Workbook, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	w := &Workbook{
		CompanyName: strings.TrimSpace(doc.Find("[data-company]").First().Text()),
		Meta:        make(map[string]any),
		Source:      calc.SourceExcel,
	}
	if w.CompanyName == "" {
		w.CompanyName = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if w.CompanyName == "" {
		w.CompanyName = unknownCompany
	}

	tables := make(map[string]*statement.Table)
	periods := make(map[string][]string)
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		key, ok := tbl.Attr("data-section")
		if !ok {
			key = tbl.Find("caption").First().Text()
		}
		section, known := htmlSections[strings.ToLower(strings.TrimSpace(key))]
		if !known {
			return
		}
		if section == SectionMeta {
			readHTMLMeta(tbl, w.Meta)
			return
		}
		tables[section], periods[section] = readHTMLTable(tbl)
	})

	for _, section := range []string{SectionPnL, SectionBalance, SectionCashFlow} {
		if tables[section] == nil {
			return nil, fmt.Errorf("%w: %q", ErrMissingSection, section)
		}
	}
	w.PnL = tables[SectionPnL]
	w.BalanceSheet = tables[SectionBalance]
	w.CashFlow = tables[SectionCashFlow]
	w.Quarterly = tables[SectionQuarters]
	w.Quarters = periods[SectionQuarters]
	if w.Quarterly == nil {
		w.Quarterly, w.Quarters = statement.New(nil), []string{}
	}
	w.Years = commonPeriods(periods[SectionPnL], periods[SectionBalance], periods[SectionCashFlow])

	log.Debug().Str("company", w.CompanyName).Int("tables", len(tables)).Msg("[INGEST] html parsed")
	return w, nil
}

func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(c.Text()))
	})
	return cells
}

func readHTMLTable(tbl *goquery.Selection) (*statement.Table, []string) {
	trs := tbl.Find("tr")
	if trs.Length() == 0 {
		return statement.New(nil), []string{}
	}
	header := rowCells(trs.First())
	periods := make([]string, 0, len(header))
	for _, h := range header[min(1, len(header)):] {
		periods = append(periods, FormatPeriod(h))
	}

	var rows []statement.Row
	trs.Slice(1, trs.Length()).Each(func(_ int, tr *goquery.Selection) {
		cells := rowCells(tr)
		if len(cells) == 0 || cells[0] == "" {
			return
		}
		values := make([]any, len(periods))
		for i := range periods {
			if i+1 < len(cells) {
				values[i] = cells[i+1]
			}
		}
		rows = append(rows, statement.Row{Label: cells[0], Values: values})
	})
	return statement.New(rows), periods
}

func readHTMLMeta(tbl *goquery.Selection, meta map[string]any) {
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := rowCells(tr)
		if len(cells) < 2 || cells[0] == "" || cells[1] == "" {
			return
		}
		if f, err := strconv.ParseFloat(strings.ReplaceAll(cells[1], ",", ""), 64); err == nil {
			meta[cells[0]] = f
		} else {
			meta[cells[0]] = cells[1]
		}
	})
}
