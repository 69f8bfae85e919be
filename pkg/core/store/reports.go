package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phuslu/log"
)

// Report is a saved valuation result. Data holds the full pipeline output.
type Report struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	CompanyName  string          `json:"company_name"`
	Ticker       string          `json:"ticker_symbol"`
	Title        string          `json:"report_title"`
	Data         json.RawMessage `json:"report_data"`
	PDFFileName  string          `json:"pdf_file_name,omitempty"`
	PDFSizeBytes int             `json:"pdf_size_bytes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ReportRepo stores one report per (user, ticker). With a pool it uses the
// analysis_reports table; without one it keeps JSON files under dir.
type ReportRepo struct {
	pool    *pgxpool.Pool
	fileDir string
}

// NewReportRepo creates a report repository. A nil pool with an empty dir
// defaults to .cache/reports.
func NewReportRepo(pool *pgxpool.Pool, dir string) *ReportRepo {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "reports")
	}
	if pool == nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn().Str("dir", dir).Err(err).Msg("[STORE] report dir unavailable")
		}
	}
	return &ReportRepo{pool: pool, fileDir: dir}
}

const reportColumns = `id, user_id, company_name, ticker_symbol, report_title, report_data, pdf_file_name, pdf_size_bytes, created_at, updated_at`

func scanReport(row rowScanner) (*Report, error) {
	var rep Report
	var data []byte
	err := row.Scan(&rep.ID, &rep.UserID, &rep.CompanyName, &rep.Ticker, &rep.Title, &data,
		&rep.PDFFileName, &rep.PDFSizeBytes, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	rep.Data = data
	return &rep, nil
}

// Save upserts rep keyed by (UserID, Ticker) and returns the stored row.
func (r *ReportRepo) Save(ctx context.Context, rep Report) (*Report, error) {
	rep.Ticker = strings.ToUpper(strings.TrimSpace(rep.Ticker))
	if rep.Ticker == "" {
		return nil, fmt.Errorf("save report: ticker is required")
	}
	if len(rep.Data) == 0 {
		rep.Data = json.RawMessage("{}")
	}
	if rep.Title == "" {
		rep.Title = fmt.Sprintf("%s Valuation Report", rep.CompanyName)
	}

	if r.pool == nil {
		return r.saveFile(rep)
	}

	query := `
		INSERT INTO analysis_reports (user_id, company_name, ticker_symbol, report_title, report_data, pdf_file_name, pdf_size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT analysis_reports_user_ticker
		DO UPDATE SET
			company_name = EXCLUDED.company_name,
			report_title = EXCLUDED.report_title,
			report_data = EXCLUDED.report_data,
			pdf_file_name = EXCLUDED.pdf_file_name,
			pdf_size_bytes = EXCLUDED.pdf_size_bytes,
			updated_at = NOW()
		RETURNING ` + reportColumns
	out, err := scanReport(r.pool.QueryRow(ctx, query,
		rep.UserID, rep.CompanyName, rep.Ticker, rep.Title, []byte(rep.Data), rep.PDFFileName, rep.PDFSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	return out, nil
}

// Get loads the report user saved for ticker.
func (r *ReportRepo) Get(ctx context.Context, user uuid.UUID, ticker string) (*Report, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if r.pool == nil {
		return r.loadFile(r.path(user, ticker))
	}
	return scanReport(r.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM analysis_reports WHERE user_id = $1 AND ticker_symbol = $2`, user, ticker))
}

// List returns user's reports, most recently updated first.
func (r *ReportRepo) List(ctx context.Context, user uuid.UUID) ([]Report, error) {
	if r.pool == nil {
		return r.listFiles(user)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM analysis_reports WHERE user_id = $1 ORDER BY updated_at DESC`, user)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func (r *ReportRepo) path(user uuid.UUID, ticker string) string {
	return filepath.Join(r.fileDir, user.String()+"_"+unsafeFileChars.ReplaceAllString(ticker, "_")+".json")
}

func (r *ReportRepo) saveFile(rep Report) (*Report, error) {
	now := time.Now().UTC()
	path := r.path(rep.UserID, rep.Ticker)
	if prev, err := r.loadFile(path); err == nil {
		rep.ID, rep.CreatedAt = prev.ID, prev.CreatedAt
	} else {
		rep.ID, rep.CreatedAt = uuid.New(), now
	}
	rep.UpdatedAt = now

	raw, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write report file: %w", err)
	}
	return &rep, nil
}

func (r *ReportRepo) loadFile(path string) (*Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rep Report
	if err := json.Unmarshal(raw, &rep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report file %s: %w", filepath.Base(path), err)
	}
	return &rep, nil
}

func (r *ReportRepo) listFiles(user uuid.UUID) ([]Report, error) {
	matches, err := filepath.Glob(filepath.Join(r.fileDir, user.String()+"_*.json"))
	if err != nil {
		return nil, err
	}
	out := []Report{}
	for _, m := range matches {
		rep, err := r.loadFile(m)
		if err != nil {
			log.Warn().Str("file", m).Err(err).Msg("[STORE] skipping unreadable report")
			continue
		}
		out = append(out, *rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
