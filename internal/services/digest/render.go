package digest

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/specula/internal/models"
	"github.com/ternarybob/specula/internal/signals"
)

// Entry pairs an analysis with the instrument it describes. Instrument may be nil.
type Entry struct {
	Analysis   *models.AnalysisRecord
	Instrument *models.Instrument
}

func (e Entry) name() string {
	if e.Instrument != nil && e.Instrument.DisplayName != "" && e.Instrument.DisplayName != e.Analysis.InstrumentID {
		return e.Instrument.DisplayName
	}
	return ""
}

func (e Entry) target() string {
	a := e.Analysis
	if a.PriceTargetLow == nil || a.PriceTargetHigh == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f - %.2f", *a.PriceTargetLow, *a.PriceTargetHigh)
}

// RenderMarkdown lays the entries out as a summary table followed by one
// section per instrument
func RenderMarkdown(title string, entries []Entry, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Generated %s. Ratings are keyword heuristics, not forecasts.\n\n", generatedAt.UTC().Format("2006-01-02 15:04 MST"))

	if len(entries) == 0 {
		b.WriteString("No analyses are available yet.\n")
		return b.String()
	}

	b.WriteString("| Instrument | Rating | Direction | Confidence | Target | Tier |\n")
	b.WriteString("|---|---:|---|---:|---|---|\n")
	for _, e := range entries {
		a := e.Analysis
		tier := signals.TierUnknown
		if e.Instrument != nil {
			tier = signals.MarketCapTier(e.Instrument.MarketCap)
		}
		fmt.Fprintf(&b, "| %s | %.1f | %s | %.0f%% | %s | %s |\n",
			escapeCell(a.InstrumentID), a.PotentialRating, a.PredictedDirection, a.Confidence*100, e.target(), tier)
	}

	for _, e := range entries {
		a := e.Analysis
		heading := a.InstrumentID
		if name := e.name(); name != "" {
			heading = fmt.Sprintf("%s (%s)", a.InstrumentID, name)
		}
		fmt.Fprintf(&b, "\n## %s\n\n", heading)

		if a.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", a.Summary)
		}
		fmt.Fprintf(&b, "Signals: %d breaking, %d positive, %d negative, %d neutral.\n\n",
			a.BreakingCount, a.PositiveCount, a.NegativeCount, a.NeutralCount)

		if a.ShortTermOutlook != "" {
			fmt.Fprintf(&b, "**Short term:** %s\n\n", a.ShortTermOutlook)
		}
		if a.LongTermOutlook != "" {
			fmt.Fprintf(&b, "**Long term:** %s\n\n", a.LongTermOutlook)
		}

		if len(a.EvidencePoints) > 0 {
			for _, point := range a.EvidencePoints {
				fmt.Fprintf(&b, "- %s\n", point)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// RenderHTML converts the digest markdown to an HTML email body
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"></head><body style="font-family: Arial, sans-serif; font-size: 14px;">`)
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to convert digest to HTML: %w", err)
	}
	buf.WriteString(`</body></html>`)
	return buf.String(), nil
}
