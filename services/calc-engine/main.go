package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phuslu/log"

	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/config"
	"equity_valuation/pkg/core/ingest"
	"equity_valuation/pkg/core/marketdata"
	"equity_valuation/pkg/core/pipeline"
	"equity_valuation/pkg/core/report"
	"equity_valuation/pkg/core/utils"
)

const (
	modeCheck     = "check"
	modeMetrics   = "metrics"
	modeValuation = "valuation"
	modeReport    = "report"
)

type options struct {
	file     string
	data     string
	mode     string
	ticker   string
	pdf      string
	defaults string
	strict   bool
}

// checkReport is the output of check mode.
type checkReport struct {
	Integrity []ingest.AuditCheckpoint `json:"integrity"`
	DataGaps  []calc.DataGap           `json:"data_gaps"`
}

func main() {
	var o options
	flag.StringVar(&o.file, "file", "", "Statement file: .xlsx, .html or .json")
	flag.StringVar(&o.data, "json", "", "Inline statement JSON payload (instead of -file)")
	flag.StringVar(&o.mode, "mode", modeValuation, "Mode: check, metrics, valuation or report")
	flag.StringVar(&o.ticker, "ticker", "", "Ticker recorded on the result, e.g. TCS.NSE")
	flag.StringVar(&o.pdf, "pdf", "", "Write the PDF report here (report mode)")
	flag.StringVar(&o.defaults, "defaults", "", "Model defaults file (.yaml or .toml)")
	flag.BoolVar(&o.strict, "strict", false, "List statement cells coerced to zero with the metrics")
	flag.Parse()

	log.DefaultLogger = log.Logger{
		Level:  log.WarnLevel,
		Writer: &log.ConsoleWriter{Writer: os.Stderr, EndWithMessage: true},
	}

	if err := run(context.Background(), o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer) error {
	wb, err := load(o)
	if err != nil {
		return err
	}

	model := calc.DefaultModel()
	if o.defaults != "" {
		if model, err = config.LoadModelDefaults(o.defaults); err != nil {
			return err
		}
	}

	info := marketdata.CompanyInfo{Ticker: strings.ToUpper(strings.TrimSpace(o.ticker))}
	req := pipeline.RequestFromWorkbook(wb, info)
	req.Strict = o.strict
	engine := calc.NewEngine(model)

	switch o.mode {
	case modeCheck:
		engine.Strict = true
		gaps := engine.Compute(req.Input).DataGaps
		if gaps == nil {
			gaps = []calc.DataGap{}
		}
		return writeJSON(out, checkReport{Integrity: req.Integrity, DataGaps: gaps})
	case modeMetrics:
		engine.Strict = o.strict
		return writeJSON(out, engine.Compute(req.Input))
	case modeValuation, modeReport:
	default:
		return fmt.Errorf("unknown mode %q", o.mode)
	}

	res, err := pipeline.NewOrchestrator(engine, nil).Run(ctx, req)
	if err != nil {
		return err
	}
	if o.mode == modeValuation {
		return writeJSON(out, res)
	}

	data := res.ReportData()
	md := report.BuildMarkdown(data)
	if o.pdf == "" {
		_, err := io.WriteString(out, md)
		return err
	}
	pdf, err := report.RenderPDF(md, data.Title())
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.pdf, pdf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", o.pdf, err)
	}
	fmt.Fprintf(out, "Report written to %s (%d bytes)\n", o.pdf, len(pdf))
	return nil
}

func load(o options) (*ingest.Workbook, error) {
	switch {
	case o.data != "":
		return ingest.ParseStatementJSON(o.data)
	case o.file == "":
		return nil, fmt.Errorf("no data provided: pass -file or -json")
	}

	f, err := os.Open(o.file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(o.file)); ext {
	case ".html", ".htm":
		return ingest.ParseHTMLTables(f)
	case ".json":
		raw, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return ingest.ParseStatementJSON(string(raw))
	case ".xlsx", ".xlsm":
		return ingest.ParseWorkbook(f)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(utils.Sanitize(v))
}
