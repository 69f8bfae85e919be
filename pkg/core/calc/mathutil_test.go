package calc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeDivideIsTotal(t *testing.T) {
	assert.Equal(t, 0.0, SafeDivide(1, 0))
	assert.Equal(t, 0.0, SafeDivide(math.NaN(), 2))
	assert.Equal(t, 0.0, SafeDivide(1, math.NaN()))
	assert.Equal(t, 0.0, SafeDivide(math.Inf(1), 1))
	assert.Equal(t, 2.5, SafeDivide(5, 2))

	assert.Equal(t, 0.0, SafeDivideAny("abc", 2))
	assert.Equal(t, 0.0, SafeDivideAny(10, "nan"))
	assert.Equal(t, 0.0, SafeDivideAny(nil, 3))
	assert.Equal(t, 0.0, SafeDivideAny(10, ""))
	assert.Equal(t, 5.0, SafeDivideAny("1,000", 200))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 1.24, Round2(1.235000001))
	assert.Equal(t, -1.24, Round2(-1.235000001))
	assert.Equal(t, 0.0, Round2(math.Inf(-1)))
	assert.Equal(t, 12.3, Round1(12.34))
}

func TestGrowth(t *testing.T) {
	assert.Equal(t, []float64{10, 10}, Growth([]float64{100, 110, 121}))
	assert.Equal(t, []float64{150}, Growth([]float64{-10, 5}), "sign flip measures against |base|")
	assert.Equal(t, []float64{-200}, Growth([]float64{10, -10}))
	assert.Equal(t, []float64{0}, Growth([]float64{0, 50}), "zero base yields 0")
	assert.Empty(t, Growth([]float64{42}))
	assert.NotNil(t, Growth(nil))
}

func TestCAGRGuards(t *testing.T) {
	assert.Equal(t, 0.0, CAGR([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, CAGR([]float64{10, 0, 0, 20}))
	assert.Equal(t, 0.0, CAGR([]float64{-5, 1, 2, 3}))
	assert.Equal(t, 0.0, CAGR([]float64{10, 5, 1, -20}), "negative ratio")
	assert.Equal(t, 10.0, CAGR([]float64{100, 110, 121, 133.1}))
	// only the last four points count
	assert.Equal(t, 10.0, CAGR([]float64{1, 1, 100, 110, 121, 133.1}))
}

func TestSumLast4AndLast(t *testing.T) {
	assert.Equal(t, 14.0, SumLast4([]float64{1, 2, 3, 4, 5}))
	assert.Equal(t, 3.0, SumLast4([]float64{1, 2}))
	assert.Equal(t, 0.0, SumLast4(nil))
	assert.Equal(t, 0.0, Last(nil))
	assert.Equal(t, 5.0, Last([]float64{1, 5}))
}

func TestNormalizeSharesCarriesForward(t *testing.T) {
	assert.Equal(t, []float64{100, 100}, NormalizeShares([]float64{1e9, 0}))
	assert.Equal(t, []float64{0, 100}, NormalizeShares([]float64{0, 1e9}), "only the latest value is carried")
	assert.Equal(t, []float64{0}, NormalizeShares([]float64{0}))
	assert.Equal(t, []float64{12.35}, NormalizeShares([]float64{123456789}))
}
