package utils

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Markdown is the shared goldmark instance: GFM tables and strikethrough,
// with auto heading ids so report sections can be linked.
var Markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// StripFences removes one outer ``` code fence (with or without a language
// tag) and surrounding whitespace.
func StripFences(input string) string {
	s := strings.TrimSpace(input)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}

// MarkdownToHTML renders markdown with the shared configuration.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := Markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
