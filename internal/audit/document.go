package audit

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// documentAudits runs the binary document checks against the rendered HTML.
// An empty document (non-HTML response) leaves every check unscored.
func documentAudits(html string) map[string]Metric {
	ids := []string{"document-title", "html-has-lang", "meta-viewport", "meta-description"}
	out := make(map[string]Metric, len(ids))

	var doc *goquery.Document
	if strings.TrimSpace(html) != "" {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(html))
	}
	for _, id := range ids {
		d := lookup(id)
		m := Metric{ID: id, Title: d.Title, Description: d.Title, HelpText: d.HelpText, ScoringMode: ModeBinary}
		if doc == nil {
			m.ScoringMode = ModeNotApplicable
			out[id] = m
			continue
		}
		m.Score = Score(binary(checkDocument(doc, id)))
		out[id] = m
	}
	return out
}

func checkDocument(doc *goquery.Document, id string) bool {
	switch id {
	case "document-title":
		return strings.TrimSpace(doc.Find("head title").First().Text()) != ""
	case "html-has-lang":
		lang, _ := doc.Find("html").First().Attr("lang")
		return strings.TrimSpace(lang) != ""
	case "meta-viewport":
		content, ok := metaContent(doc, "viewport")
		return ok && (strings.Contains(content, "width=") || strings.Contains(content, "initial-scale"))
	case "meta-description":
		content, ok := metaContent(doc, "description")
		return ok && strings.TrimSpace(content) != ""
	}
	return false
}

func metaContent(doc *goquery.Document, name string) (string, bool) {
	var content string
	found := false
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(n), name) {
			return true
		}
		content, found = s.Attr("content")
		content = strings.ToLower(content)
		return false
	})
	return content, found
}
