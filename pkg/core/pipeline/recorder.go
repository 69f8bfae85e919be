package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"equity_valuation/pkg/core/report"
	"equity_valuation/pkg/core/store"
	"equity_valuation/pkg/core/utils"
)

// ReportRecorder saves each result as the user's report for that ticker.
type ReportRecorder struct {
	Repo *store.ReportRepo
}

// Record implements Recorder.
func (r ReportRecorder) Record(ctx context.Context, userID uuid.UUID, res *Result) error {
	if res.CompanyInfo.Ticker == "" {
		return nil
	}
	data, err := json.Marshal(utils.Sanitize(res))
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	title := report.Data{CompanyInfo: res.CompanyInfo}.Title()
	_, err = r.Repo.Save(ctx, store.Report{
		UserID:      userID,
		CompanyName: res.CompanyInfo.Name,
		Ticker:      res.CompanyInfo.Ticker,
		Title:       title,
		Data:        data,
	})
	return err
}

// ReportData converts a result into the report input.
func (res *Result) ReportData() report.Data {
	a := res.Assumptions
	return report.Data{
		CompanyInfo:      res.CompanyInfo,
		Metrics:          res.Metrics,
		Assumptions:      &a,
		ValuationResults: res.ValuationResults,
	}
}
