package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/xuri/excelize/v2"

	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/statement"
)

// PeriodLayout is the canonical period label format, e.g. "Mar-2024".
const PeriodLayout = "Jan-2006"

// Serial numbers below this are treated as plain numbers, not dates
// (10000 is 1927-05-18).
const minDateSerial = 10000

var headerLayouts = []string{
	PeriodLayout,
	"Jan-06",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"01-02-06",
	"1/2/06",
	"Jan 2006",
}

// sheet is a ragged grid of raw cell strings.
type sheet [][]string

func (s sheet) cell(r, c int) string {
	if r < 0 || r >= len(s) || c < 0 || c >= len(s[r]) {
		return ""
	}
	return strings.TrimSpace(s[r][c])
}

func (s sheet) find(title string) int {
	for i := range s {
		if strings.EqualFold(s.cell(i, 0), title) {
			return i
		}
	}
	return -1
}

// ParseWorkbook reads an .xlsx upload laid out as a single "Data Sheet":
// company name in B1, a META block of label/value pairs and the four
// statement tables, each with a period header one row below its title.
func ParseWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(DataSheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingSheet, DataSheet)
	}
	rows, err := f.GetRows(DataSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", DataSheet, err)
	}
	s := sheet(rows)

	w := &Workbook{
		CompanyName: s.cell(0, 1),
		Meta:        s.meta(),
		Source:      calc.SourceExcel,
	}
	if w.CompanyName == "" {
		w.CompanyName = unknownCompany
	}

	var pnlYears, bsYears, cfYears []string
	if w.PnL, pnlYears, err = s.table(SectionPnL); err != nil {
		return nil, err
	}
	if w.BalanceSheet, bsYears, err = s.table(SectionBalance); err != nil {
		return nil, err
	}
	if w.CashFlow, cfYears, err = s.table(SectionCashFlow); err != nil {
		return nil, err
	}
	if w.Quarterly, w.Quarters, err = s.table(SectionQuarters); err != nil {
		w.Quarterly, w.Quarters = statement.New(nil), []string{}
	}
	w.Years = commonPeriods(pnlYears, bsYears, cfYears)

	log.Debug().Str("company", w.CompanyName).Int("years", len(w.Years)).
		Int("quarters", len(w.Quarters)).Msg("[INGEST] workbook parsed")
	return w, nil
}

// meta reads label/value pairs below the META marker until the next
// statement section. Numeric values are stored as float64.
func (s sheet) meta() map[string]any {
	out := make(map[string]any)
	start := s.find(SectionMeta)
	if start < 0 {
		return out
	}
	for i := start + 1; i < len(s); i++ {
		label := s.cell(i, 0)
		if isSectionTitle(label) {
			break
		}
		value := s.cell(i, 1)
		if label == "" || value == "" {
			continue
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			out[label] = f
		} else {
			out[label] = value
		}
	}
	return out
}

func isSectionTitle(label string) bool {
	for _, t := range []string{SectionPnL, SectionBalance, SectionCashFlow, SectionQuarters} {
		if strings.EqualFold(label, t) {
			return true
		}
	}
	return false
}

// table extracts one statement. Blank header columns are skipped and the
// table ends at the first row with a blank label.
func (s sheet) table(title string) (*statement.Table, []string, error) {
	start := s.find(title)
	if start < 0 {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingSection, title)
	}
	header := start + 1

	var cols []int
	var periods []string
	seen := make(map[string]int)
	for c := 1; c <= MaxValueColumns; c++ {
		h := FormatPeriod(s.cell(header, c))
		if h == "" {
			continue
		}
		seen[h]++
		if seen[h] > 1 {
			h = fmt.Sprintf("%s_%d", h, seen[h])
		}
		cols = append(cols, c)
		periods = append(periods, h)
	}

	var rows []statement.Row
	for r := header + 1; r < len(s); r++ {
		label := s.cell(r, 0)
		if label == "" {
			break
		}
		values := make([]any, len(cols))
		for i, c := range cols {
			values[i] = s.cell(r, c)
		}
		rows = append(rows, statement.Row{Label: label, Values: values})
	}
	if periods == nil {
		periods = []string{}
	}
	return statement.New(rows), periods, nil
}

// FormatPeriod normalises a header cell to "Mon-YYYY". Excel date serials
// and common date layouts are converted; anything else is returned trimmed.
func FormatPeriod(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if f >= minDateSerial {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				return t.Format(PeriodLayout)
			}
		}
		return raw
	}
	for _, layout := range headerLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(PeriodLayout)
		}
	}
	return raw
}
