// Package report renders valuation reports as PDF or HTML sections and
// serves the reports saved for the signed-in user.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phuslu/log"

	"equity_valuation/pkg/api/middleware"
	"equity_valuation/pkg/api/respond"
	"equity_valuation/pkg/core/pipeline"
	corereport "equity_valuation/pkg/core/report"
	"equity_valuation/pkg/core/store"
)

// Reports reads saved reports.
type Reports interface {
	Get(ctx context.Context, user uuid.UUID, ticker string) (*store.Report, error)
	List(ctx context.Context, user uuid.UUID) ([]store.Report, error)
}

type Handler struct {
	Reports Reports
}

func NewHandler(reports Reports) *Handler {
	return &Handler{Reports: reports}
}

// HandleGenerate renders the posted report data as a PDF attachment.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var data corereport.Data
	if err := respond.Decode(r, &data); err != nil {
		respond.Err(w, r, err)
		return
	}
	writePDF(w, r, data)
}

// HandlePreview returns the report split into h2 sections of HTML.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var data corereport.Data
	if err := respond.Decode(r, &data); err != nil {
		respond.Err(w, r, err)
		return
	}
	sections, err := corereport.PreviewSections(corereport.BuildMarkdown(data))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"title":          data.Title(),
		"sections":       sections,
		"total_sections": len(sections),
	})
}

// Summary is a saved report without its payload.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	CompanyName string    `json:"company_name"`
	Ticker      string    `json:"ticker_symbol"`
	Title       string    `json:"report_title"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HandleList lists the user's saved reports, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Reports.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	out := make([]Summary, 0, len(reports))
	for _, rep := range reports {
		out = append(out, Summary{ID: rep.ID, CompanyName: rep.CompanyName, Ticker: rep.Ticker, Title: rep.Title, UpdatedAt: rep.UpdatedAt})
	}
	respond.JSON(w, http.StatusOK, out)
}

// HandleGet returns one saved report with its valuation payload.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.Get(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "ticker"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, rep)
}

// HandleSavedPDF renders a saved report as a PDF.
func (h *Handler) HandleSavedPDF(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.Get(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "ticker"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	var res pipeline.Result
	if err := json.Unmarshal(rep.Data, &res); err != nil {
		respond.Err(w, r, fmt.Errorf("saved report %s: %w", rep.ID, err))
		return
	}
	writePDF(w, r, res.ReportData())
}

func writePDF(w http.ResponseWriter, r *http.Request, data corereport.Data) {
	start := time.Now()
	pdf, err := corereport.RenderPDF(corereport.BuildMarkdown(data), data.Title())
	if err != nil {
		respond.Err(w, r, fmt.Errorf("render pdf: %w", err))
		return
	}
	log.Info().Str("ticker", data.CompanyInfo.Ticker).Int("bytes", len(pdf)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("[REPORT] pdf rendered")

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", FileName(data)))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		log.Warn().Err(err).Msg("[REPORT] pdf write failed")
	}
}

// FileName is "Company_Name_TICKER_Report.pdf"; the company name defaults
// to "Report".
func FileName(d corereport.Data) string {
	name := strings.TrimSpace(d.CompanyInfo.Name)
	if name == "" {
		name = "Report"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case ' ':
			return '_'
		case '"', '/', '\\':
			return -1
		}
		return r
	}, name)
	return fmt.Sprintf("%s_%s_Report.pdf", name, d.CompanyInfo.Ticker)
}
