package scraper

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Sanitize strips HTML markup from feed entry content and returns readable
// plain text. Script, style and embedded-frame nodes are dropped entirely;
// paragraph breaks survive as single newlines.
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	// マークアップなしの本文はそのまま整形する
	if !strings.Contains(raw, "<") {
		return normalizeWhitespace(html.UnescapeString(raw))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return normalizeWhitespace(html.UnescapeString(raw))
	}

	doc.Find("script, style, noscript, iframe").Remove()

	// ブロック要素の境界を改行として残す
	doc.Find("p, br, div, li, h1, h2, h3, h4, h5, h6, tr").Each(func(i int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})

	return normalizeWhitespace(doc.Find("body").Text())
}

// normalizeWhitespace collapses runs of spaces within lines and drops blank
// lines, keeping one newline between surviving lines.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
