package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/phuslu/log"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"equity_valuation/pkg/core/utils"
)

const (
	pageWidth  = 190.0
	pageHeight = 297.0
	margin     = 10.0
	fontFamily = "Arial"
	bodySize   = 9.0
	lineHeight = 5.0
)

// RenderPDF lays markdown out on A4 pages. The core fonts are cp1252, so
// text is translated from UTF-8 before drawing.
func RenderPDF(markdown, title string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("equity_valuation", true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin+5)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", bodySize)

	source := []byte(markdown)
	doc := utils.Markdown.Parser().Parse(text.NewReader(source))

	r := &pdfRenderer{
		pdf:    pdf,
		source: source,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		size:   bodySize,
	}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	log.Debug().Str("title", title).Int("pdf_size", buf.Len()).Msg("[REPORT] pdf rendered")
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	tr        func(string) string
	size      float64
	bold      bool
	italic    bool
	listLevel int
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(fontFamily, style, r.size)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		r.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(lineHeight + 1)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(lineHeight, r.tr(string(node.Segment.Value(r.source))))
			if node.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			} else if node.SoftLineBreak() {
				r.pdf.Write(lineHeight, " ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", r.size)
			r.pdf.Write(lineHeight, r.tr(nodeText(node, r.source)))
			r.updateFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			r.listLevel++
			break
		}
		r.listLevel--
		if r.listLevel == 0 {
			r.pdf.Ln(2)
		}
	case *ast.ListItem:
		if entering {
			r.pdf.SetX(margin + float64(r.listLevel)*5)
			r.pdf.Write(lineHeight, "- ")
		}
	case *ast.TextBlock:
		if !entering {
			r.pdf.Ln(lineHeight)
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(margin, r.pdf.GetY(), margin+pageWidth, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	case *extast.Table:
		if entering {
			r.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) heading(n *ast.Heading, entering bool) {
	if !entering {
		r.pdf.Ln(lineHeight + 2)
		r.updateFont()
		return
	}
	size := 10.0
	switch n.Level {
	case 1:
		size = 15
	case 2:
		size = 12
	case 3:
		size = 11
	}
	if n.Level == 2 && r.pdf.GetY() > pageHeight-60 {
		r.pdf.AddPage()
	} else {
		r.pdf.Ln(3)
	}
	r.pdf.SetFont(fontFamily, "B", size)
}

// table draws a GFM table with the header row shaded and columns sized to
// their widest cell.
func (r *pdfRenderer) table(n *extast.Table) {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			var row []string
			for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
				row = append(row, r.tr(nodeText(cell, r.source)))
			}
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	const fontSize, rowHeight = 7.5, 5.0
	widths := r.columnWidths(rows, fontSize)
	r.pdf.Ln(1)
	for i, row := range rows {
		if r.pdf.GetY()+rowHeight > pageHeight-margin-5 {
			r.pdf.AddPage()
		}
		style, fill := "", false
		if i == 0 {
			style, fill = "B", true
			r.pdf.SetFillColor(230, 230, 230)
		}
		r.pdf.SetFont(fontFamily, style, fontSize)
		for j := range widths {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			align := "R"
			if j == 0 {
				align = "L"
			}
			r.pdf.CellFormat(widths[j], rowHeight, fit(r.pdf, cell, widths[j]-2), "1", 0, align, fill, 0, "")
		}
		r.pdf.Ln(-1)
	}
	r.pdf.Ln(3)
	r.updateFont()
}

func (r *pdfRenderer) columnWidths(rows [][]string, fontSize float64) []float64 {
	cols := len(rows[0])
	widths := make([]float64, cols)
	r.pdf.SetFont(fontFamily, "B", fontSize)
	for _, row := range rows {
		for j := 0; j < cols && j < len(row); j++ {
			if w := r.pdf.GetStringWidth(row[j]) + 4; w > widths[j] {
				widths[j] = w
			}
		}
	}
	total := 0.0
	for j := range widths {
		widths[j] = min(max(widths[j], 12), pageWidth/2)
		total += widths[j]
	}
	if total > pageWidth {
		for j := range widths {
			widths[j] *= pageWidth / total
		}
	}
	return widths
}

// fit truncates s with an ellipsis until it is narrower than width.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 1 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}

// nodeText concatenates the text segments under n.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
