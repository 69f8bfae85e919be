package calc

import (
	"math"

	"equity_valuation/pkg/core/statement"
)

// =============================================================================
// NUMERIC PRIMITIVES
// =============================================================================

// SafeDivide returns a/b, or 0 when b is zero or the result is not finite.
func SafeDivide(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) || math.IsNaN(a) {
		return 0
	}
	q := a / b
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return q
}

// SafeDivideAny coerces both operands with the statement cell rules first,
// so nil, "", "nan" or "abc" never raise.
func SafeDivideAny(a, b any) float64 {
	return SafeDivide(statement.Coerce(a), statement.Coerce(b))
}

// Round2 rounds half away from zero to two decimals.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Round(x*100) / 100
}

// Round1 rounds to one decimal.
func Round1(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Round(x*10) / 10
}

// Growth returns the period-over-period growth in percent for each
// consecutive pair. A zero base yields 0. Across a sign flip the change is
// measured against the absolute base, so -10 -> 5 is +150.
func Growth(series []float64) []float64 {
	if len(series) < 2 {
		return []float64{}
	}
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev, curr := series[i-1], series[i]
		switch {
		case prev == 0:
			out = append(out, 0)
		case (prev < 0 && curr > 0) || (prev > 0 && curr < 0):
			out = append(out, Round2(SafeDivide(curr-prev, math.Abs(prev))*100))
		default:
			out = append(out, Round2((SafeDivide(curr, prev)-1)*100))
		}
	}
	return out
}

// CAGR is the fixed three-period compound rate anchored four points back
// from the end of series. It is 0 for fewer than four points, a
// non-positive anchor, or a negative end/anchor ratio.
func CAGR(series []float64) float64 {
	if len(series) < 4 {
		return 0
	}
	anchor := series[len(series)-4]
	if anchor <= 0 {
		return 0
	}
	ratio := SafeDivide(series[len(series)-1], anchor)
	if ratio < 0 {
		return 0
	}
	return Round2((math.Pow(ratio, 1.0/3.0) - 1) * 100)
}

// SumLast4 sums the last four values, or all of them when there are fewer.
func SumLast4(series []float64) float64 {
	start := len(series) - 4
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, v := range series[start:] {
		sum += v
	}
	return sum
}

// Last returns the final element or 0 for an empty series.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// NormalizeShares converts raw share counts to crores (1e7). A latest
// value of exactly 0 is a data gap and takes the prior period's count.
func NormalizeShares(raw []float64) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = Round2(SafeDivide(v, 1e7))
	}
	carryForward(out)
	return out
}

func carryForward(shares []float64) {
	if n := len(shares); n > 1 && shares[n-1] == 0 {
		shares[n-1] = shares[n-2]
	}
}

// zipWith applies fn element-wise over equal-length series.
func zipWith(fn func(a, b float64) float64, a, b []float64) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = fn(a[i], b[i])
	}
	return out
}

func ratioPct(num, den []float64) []float64 {
	return zipWith(func(a, b float64) float64 { return Round2(SafeDivide(a, b) * 100) }, num, den)
}

func ratio(num, den []float64) []float64 {
	return zipWith(func(a, b float64) float64 { return Round2(SafeDivide(a, b)) }, num, den)
}
