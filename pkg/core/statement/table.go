// Package statement holds the labeled time-series container that every
// financial statement is parsed into before metrics are derived.
package statement

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// PeriodLabel names one column of a statement, e.g. "Mar-2024" or "TTM".
type PeriodLabel = string

// TTMLabel is the synthetic period appended to trailing-twelve-month series.
const TTMLabel PeriodLabel = "TTM"

// Table maps a line-item label to one value per period, oldest to newest.
// A Table is immutable once built: constructors copy their input and
// accessors return copies.
type Table struct {
	labels []string
	rows   map[string][]float64
	gaps   []Gap
}

// Gap records a cell that could not be read as a number and was coerced to 0.
type Gap struct {
	Label  string `json:"label"`
	Period int    `json:"period"`
	Raw    string `json:"raw"`
}

// Row is one labeled series used by the ordered constructor.
type Row struct {
	Label  string
	Values []any
}

// New builds a Table from already-numeric rows. Label order follows the
// order of first appearance in rows.
func New(rows []Row) *Table {
	t := &Table{rows: make(map[string][]float64, len(rows))}
	for _, r := range rows {
		label := strings.TrimSpace(r.Label)
		if label == "" {
			continue
		}
		values := make([]float64, len(r.Values))
		for i, v := range r.Values {
			f, ok := coerce(v)
			if !ok {
				t.gaps = append(t.gaps, Gap{Label: label, Period: i, Raw: rawString(v)})
			}
			values[i] = f
		}
		if _, exists := t.rows[label]; !exists {
			t.labels = append(t.labels, label)
		}
		t.rows[label] = values
	}
	return t
}

// FromMap builds a Table from a label->values map. Go maps are unordered,
// so labels are kept in the order given by order when provided; any
// remaining labels follow in sorted order.
func FromMap(m map[string][]any, order []string) *Table {
	seen := make(map[string]bool, len(m))
	rows := make([]Row, 0, len(m))
	for _, label := range order {
		if v, ok := m[label]; ok && !seen[label] {
			rows = append(rows, Row{Label: label, Values: v})
			seen[label] = true
		}
	}
	rest := make([]string, 0, len(m))
	for label := range m {
		if !seen[label] {
			rest = append(rest, label)
		}
	}
	sort.Strings(rest)
	for _, label := range rest {
		rows = append(rows, Row{Label: label, Values: m[label]})
	}
	return New(rows)
}

// FromFloats is a convenience constructor for tests and provider data.
func FromFloats(m map[string][]float64) *Table {
	conv := make(map[string][]any, len(m))
	for k, vs := range m {
		row := make([]any, len(vs))
		for i, v := range vs {
			row[i] = v
		}
		conv[k] = row
	}
	return FromMap(conv, nil)
}

// Labels returns the line-item labels in insertion order.
func (t *Table) Labels() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Has reports whether label is present.
func (t *Table) Has(label string) bool {
	if t == nil {
		return false
	}
	_, ok := t.rows[label]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.labels)
}

// Values returns exactly n values for label. Longer rows are truncated,
// shorter or absent rows are zero-filled.
func (t *Table) Values(label string, n int) []float64 {
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	if t == nil {
		return out
	}
	copy(out, t.rows[label])
	return out
}

// Raw returns the stored row for label without resizing.
func (t *Table) Raw(label string) []float64 {
	if t == nil {
		return nil
	}
	row := t.rows[label]
	out := make([]float64, len(row))
	copy(out, row)
	return out
}

// Gaps lists every cell that was coerced to 0 while building the table.
func (t *Table) Gaps() []Gap {
	if t == nil {
		return nil
	}
	out := make([]Gap, len(t.gaps))
	copy(out, t.gaps)
	return out
}

// MarshalJSON writes the table as a label -> values object.
func (t *Table) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t.rows)
}

// UnmarshalJSON accepts a label -> values object whose cells may be numbers,
// numeric strings or placeholders.
func (t *Table) UnmarshalJSON(data []byte) error {
	var m map[string][]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*t = *FromMap(m, nil)
	return nil
}

// Coerce converts a raw cell to a float. Empty strings, "NaT", "nan" in any
// case, nil and anything non-numeric become 0.
func Coerce(v any) float64 {
	f, _ := coerce(v)
	return f
}

func coerce(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case bool:
		return 0, false
	case string:
		return parseCell(x)
	default:
		return 0, false
	}
}

func parseCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "NaT" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "none") {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "?"
		}
		return string(b)
	}
}
