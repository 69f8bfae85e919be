package valuation

import (
	"errors"
	"fmt"
)

// ErrInvalidAssumptions is returned when the assumptions make the terminal
// value undefined.
var ErrInvalidAssumptions = errors.New("invalid assumptions")

// InvalidAssumptionsError names the offending discount rate and terminal
// growth. It matches ErrInvalidAssumptions with errors.Is.
type InvalidAssumptionsError struct {
	WACC           float64
	TerminalGrowth float64
}

func (e *InvalidAssumptionsError) Error() string {
	return fmt.Sprintf("%s: discount rate %.2f%% must exceed terminal growth %.2f%%",
		ErrInvalidAssumptions, e.WACC, e.TerminalGrowth)
}

func (e *InvalidAssumptionsError) Unwrap() error { return ErrInvalidAssumptions }

// Projection horizon limits. Overrides carry the same bounds as tags.
const (
	MaxXYears = 50
	MaxYYears = 50
)

func checkHorizon(a AssumptionSet) error {
	if a.XYears < 0 || a.XYears > MaxXYears || a.YYears < 1 || a.YYears > MaxYYears {
		return fmt.Errorf("%w: x_years must be 0..%d and y_years 1..%d, got %d and %d",
			ErrInvalidAssumptions, MaxXYears, MaxYYears, a.XYears, a.YYears)
	}
	return nil
}

func checkTerminal(wacc, growth float64) error {
	if wacc <= growth {
		return &InvalidAssumptionsError{WACC: wacc, TerminalGrowth: growth}
	}
	return nil
}
