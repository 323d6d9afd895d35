package digest

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/ternarybob/specula/internal/signals"
)

const (
	pdfFont     = "Arial"
	pdfFontSize = 9
	pdfLineH    = 4.5
)

// RenderPDF produces an A4 report of the entries: a summary table, then one
// block per instrument
func RenderPDF(title string, entries []Entry, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.SetTitle(title, true)
	pdf.SetCreator("specula", true)
	pdf.AddPage()

	// Core fonts are cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(pdfFont, "B", 14)
	pdf.MultiCell(0, 7, tr(title), "", "L", false)
	pdf.SetFont(pdfFont, "I", pdfFontSize)
	pdf.MultiCell(0, pdfLineH, tr("Generated "+generatedAt.UTC().Format("2006-01-02 15:04 MST")+". Ratings are keyword heuristics, not forecasts."), "", "L", false)
	pdf.Ln(3)

	if len(entries) == 0 {
		pdf.SetFont(pdfFont, "", pdfFontSize)
		pdf.MultiCell(0, pdfLineH, "No analyses are available yet.", "", "L", false)
		return output(pdf)
	}

	headers := []string{"Instrument", "Rating", "Direction", "Confidence", "Target", "Tier"}
	widths := []float64{30, 20, 25, 25, 50, 40}

	pdf.SetFont(pdfFont, "B", pdfFontSize)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(pdfFont, "", pdfFontSize)
	for _, e := range entries {
		a := e.Analysis
		tier := signals.TierUnknown
		if e.Instrument != nil {
			tier = signals.MarketCapTier(e.Instrument.MarketCap)
		}
		row := []string{
			a.InstrumentID,
			fmt.Sprintf("%.1f", a.PotentialRating),
			string(a.PredictedDirection),
			fmt.Sprintf("%.0f%%", a.Confidence*100),
			e.target(),
			tier,
		}
		for i, cell := range row {
			pdf.CellFormat(widths[i], 6, tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	for _, e := range entries {
		a := e.Analysis
		pdf.Ln(4)

		heading := a.InstrumentID
		if name := e.name(); name != "" {
			heading += " (" + name + ")"
		}
		pdf.SetFont(pdfFont, "B", 11)
		pdf.MultiCell(0, 6, tr(heading), "", "L", false)

		pdf.SetFont(pdfFont, "", pdfFontSize)
		if a.Summary != "" {
			pdf.MultiCell(0, pdfLineH, tr(a.Summary), "", "L", false)
		}
		if a.ShortTermOutlook != "" {
			pdf.MultiCell(0, pdfLineH, tr("Short term: "+a.ShortTermOutlook), "", "L", false)
		}
		if a.LongTermOutlook != "" {
			pdf.MultiCell(0, pdfLineH, tr("Long term: "+a.LongTermOutlook), "", "L", false)
		}
		for _, point := range a.EvidencePoints {
			pdf.SetX(14)
			pdf.MultiCell(0, pdfLineH, tr("- "+point), "", "L", false)
		}
	}

	return output(pdf)
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}
