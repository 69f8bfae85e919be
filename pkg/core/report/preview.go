package report

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"equity_valuation/pkg/core/utils"
)

// Section is one h2 block of a rendered report.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// PreviewSections renders markdown to HTML and splits it at each h2.
// Content before the first h2 is not part of any section.
func PreviewSections(markdown string) ([]Section, error) {
	html, err := utils.MarkdownToHTML(markdown)
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	sections := []Section{}
	var body strings.Builder
	flush := func() {
		if n := len(sections); n > 0 {
			sections[n-1].HTML = strings.TrimSpace(body.String())
		}
		body.Reset()
	}

	var walkErr error
	doc.Find("body").Children().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "h2" {
			flush()
			id, _ := s.Attr("id")
			sections = append(sections, Section{ID: id, Title: strings.TrimSpace(s.Text())})
			return true
		}
		if len(sections) == 0 {
			return true
		}
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			walkErr = err
			return false
		}
		body.WriteString(outer)
		body.WriteString("\n")
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	flush()
	return sections, nil
}
