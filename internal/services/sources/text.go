package sources

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// cleanHTML strips HTML tags from a fragment using goquery
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return collapseSpace(s)
	}
	return collapseSpace(doc.Text())
}

// collapseSpace trims s and folds runs of whitespace into one space
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveURL resolves href against base; empty when href is blank or unparseable
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil || ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime accepts the timestamp formats commonly found in datetime attributes
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
