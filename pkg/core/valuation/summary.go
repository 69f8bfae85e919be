package valuation

// RunAllValuations computes the DCF, its sensitivity grid and the EPS
// projection. The blocks are independent; the only failure is an invalid
// discount rate versus terminal growth.
func RunAllValuations(a AssumptionSet, eps EPSInput) (*Results, error) {
	// 1. DCF
	dcf, err := ProjectDCF(a)
	if err != nil {
		return nil, err
	}

	// 2. Sensitivity over margin and growth
	grid, err := DCFSensitivity(a)
	if err != nil {
		return nil, err
	}

	// 3. EPS projection
	return &Results{
		DCF:            dcf,
		DCFSensitivity: grid,
		EPS:            ProjectEPS(eps),
	}, nil
}
