package signals

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/specula/internal/models"
)

const (
	// InsufficientDataSummary is the summary of every zero-item analysis
	InsufficientDataSummary = "Insufficient news data for analysis"

	// MaxEvidencePoints caps the evidence titles per analysis
	MaxEvidencePoints = 5

	minEvidenceWordLength = 5
	defaultConfidence     = 0.2
)

// evidenceFillers are long words that carry no content of their own
var evidenceFillers = map[string]bool{
	"about": true, "after": true, "again": true, "being": true, "could": true, "their": true,
	"there": true, "these": true, "those": true, "which": true, "while": true, "would": true,
	"should": true, "other": true, "under": true, "where": true, "today": true, "says": true,
}

// NewDefaultAnalysis is the neutral record used by every zero-data path:
// rating 5, stable, no evidence, no price targets
func NewDefaultAnalysis(instrumentID string, now time.Time) *models.AnalysisRecord {
	return &models.AnalysisRecord{
		InstrumentID:       instrumentID,
		PotentialRating:    5.0,
		PredictedDirection: models.DirectionStable,
		Confidence:         defaultConfidence,
		EvidencePoints:     []string{},
		RelatedItemIDs:     []string{},
		Summary:            InsufficientDataSummary,
		AnalysisDate:       now,
	}
}

// Analyzer derives an opportunity analysis from an instrument's items
type Analyzer struct {
	breaking KeywordSet
}

// NewAnalyzer creates an analyzer using the breaking keywords from rules
func NewAnalyzer(rules *Rules) *Analyzer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Analyzer{breaking: NewKeywordSet(rules.Breaking)}
}

// DirectionFromSentiment maps an average sentiment to a direction
func DirectionFromSentiment(avg float64) models.Direction {
	switch {
	case avg > 0.6:
		return models.DirectionUp
	case avg < 0.4:
		return models.DirectionDown
	default:
		return models.DirectionStable
	}
}

// Analyze builds the record for inst from items. Items are expected newest first.
func (a *Analyzer) Analyze(inst *models.Instrument, items []ScoredItem, now time.Time) *models.AnalysisRecord {
	id := ""
	if inst != nil {
		id = inst.Identifier
	}

	var valid []ScoredItem
	for _, it := range items {
		if it.Item != nil {
			valid = append(valid, it)
		}
	}
	if len(valid) == 0 {
		return NewDefaultAnalysis(id, now)
	}

	var positive, negative, neutral, breaking int
	sum := 0.0
	related := make([]string, 0, len(valid))
	for _, it := range valid {
		s := clamp(it.Sentiment, 0, 1)
		sum += s
		switch {
		case s > 0.6:
			positive++
		case s < 0.4:
			negative++
		default:
			neutral++
		}

		// Re-checked from content rather than taken from the scorer
		if a.breaking.MatchText(it.Item.Text()) {
			breaking++
		}

		if it.Item.ID != "" {
			related = append(related, it.Item.ID)
		}
	}

	n := len(valid)
	avg := sum / float64(n)
	direction := DirectionFromSentiment(avg)

	posRatio := 0.5
	if positive+negative > 0 {
		posRatio = float64(positive) / float64(positive+negative)
	}

	rating := 5 + (avg-0.5)*6 + (float64(breaking)/float64(n))*3 + (posRatio-0.5)*3
	rating = clamp(round(clamp(rating, 1, 10), 1), 1, 10)

	rec := &models.AnalysisRecord{
		InstrumentID:       id,
		PotentialRating:    rating,
		PredictedDirection: direction,
		Confidence:         Confidence(n, positive, negative),
		BreakingCount:      breaking,
		PositiveCount:      positive,
		NegativeCount:      negative,
		NeutralCount:       neutral,
		EvidencePoints:     SelectEvidence(valid, MaxEvidencePoints),
		RelatedItemIDs:     related,
		AnalysisDate:       now,
	}

	if inst.HasPrice() {
		low, high := PriceTargets(PriceTargetInput{
			Price:     *inst.CurrentPrice,
			Rating:    rating,
			Direction: direction,
			MarketCap: inst.MarketCap,
			Positive:  positive,
			Negative:  negative,
			Breaking:  breaking,
		})
		rec.PriceTargetLow = &low
		rec.PriceTargetHigh = &high
	}

	rec.Summary = summaryText(rec, n)
	rec.ShortTermOutlook = shortTermText(rec)
	rec.LongTermOutlook = longTermText(rec, inst)

	return rec
}

// Confidence grows with item volume and with agreement between buckets
func Confidence(items, positive, negative int) float64 {
	if items <= 0 {
		return defaultConfidence
	}
	volume := float64(min(items, 10)) / 10
	agreement := math.Abs(float64(positive-negative)) / float64(items)
	return round(clamp(0.2+0.4*volume+0.3*agreement, 0, 1), 2)
}

// BaseChange returns the expected move fraction for a rating tier
func BaseChange(rating float64) float64 {
	switch {
	case rating >= 8:
		return 0.18
	case rating >= 7:
		return 0.15
	case rating >= 6:
		return 0.12
	case rating >= 5:
		return 0.08
	default:
		return 0.05
	}
}

// PriceTargetInput carries everything the price band depends on
type PriceTargetInput struct {
	Price     float64
	Rating    float64
	Direction models.Direction
	MarketCap *float64
	Positive  int
	Negative  int
	Breaking  int
}

// fallbackBands are direction-consistent multipliers used when the computed band is invalid
var fallbackBands = map[models.Direction][2]float64{
	models.DirectionUp:     {0.99, 1.03},
	models.DirectionDown:   {0.97, 0.99},
	models.DirectionStable: {0.98, 1.02},
}

// PriceTargets returns a (low, high) band around in.Price with low <= high
func PriceTargets(in PriceTargetInput) (float64, float64) {
	p := in.Price
	change := BaseChange(in.Rating) * SizeFactor(in.MarketCap)

	imbalance := 0.0
	if in.Positive+in.Negative > 0 {
		imbalance = float64(in.Positive-in.Negative) / float64(in.Positive+in.Negative)
	}

	var low, high float64
	switch in.Direction {
	case models.DirectionUp:
		change *= 1 + 0.1*imbalance
		high = p * (1 + change)
		low = p * (1 + change/3)
	case models.DirectionDown:
		change *= 1 - 0.1*imbalance
		low = p * (1 - change)
		high = p * (1 - change/3)
	default:
		band := 0.02 + 0.005*float64(min(in.Breaking, 4))
		low = p * (1 - band)
		high = p * (1 + band)
	}

	low, high = roundPrice(low, p), roundPrice(high, p)
	if !isFinite(low) || !isFinite(high) || low >= high {
		bounds, ok := fallbackBands[in.Direction]
		if !ok {
			bounds = fallbackBands[models.DirectionStable]
		}
		low, high = p*bounds[0], p*bounds[1]
		// Rounding may collapse very small prices; keep them unrounded then
		if rl, rh := roundPrice(low, p), roundPrice(high, p); rl < rh {
			low, high = rl, rh
		}
	}
	return low, high
}

func roundPrice(v, reference float64) float64 {
	if reference >= 1 {
		return round(v, 2)
	}
	return round(v, 4)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SelectEvidence picks up to max titles, skipping any that adds no new
// content word of 5+ letters to those already chosen
func SelectEvidence(items []ScoredItem, max int) []string {
	seen := make(map[string]bool)
	evidence := make([]string, 0, max)

	for _, it := range items {
		if len(evidence) >= max {
			break
		}
		if it.Item == nil {
			continue
		}
		title := strings.TrimSpace(it.Item.Title)
		if title == "" {
			continue
		}

		var fresh []string
		for _, w := range tokenize(title) {
			if len([]rune(w)) >= minEvidenceWordLength && !evidenceFillers[w] && !seen[w] {
				fresh = append(fresh, w)
			}
		}
		if len(fresh) == 0 {
			continue
		}
		for _, w := range fresh {
			seen[w] = true
		}
		evidence = append(evidence, title)
	}
	return evidence
}

// RatingTier names the band a rating falls in
func RatingTier(rating float64) string {
	switch {
	case rating >= 8:
		return "Strong"
	case rating >= 6.5:
		return "Favourable"
	case rating >= 4.5:
		return "Neutral"
	case rating >= 3:
		return "Weak"
	default:
		return "Poor"
	}
}

func summaryText(rec *models.AnalysisRecord, items int) string {
	return fmt.Sprintf("%s opportunity (%.1f/10): %s bias from %d item(s), %d positive, %d negative, %d breaking",
		RatingTier(rec.PotentialRating), rec.PotentialRating, rec.PredictedDirection,
		items, rec.PositiveCount, rec.NegativeCount, rec.BreakingCount)
}

func shortTermText(rec *models.AnalysisRecord) string {
	var text string
	switch rec.PredictedDirection {
	case models.DirectionUp:
		text = fmt.Sprintf("Near-term upside bias: %d breaking item(s) and %d positive signal(s) support momentum.",
			rec.BreakingCount, rec.PositiveCount)
	case models.DirectionDown:
		text = fmt.Sprintf("Near-term downside risk: %d breaking item(s) and %d negative signal(s) weigh on sentiment.",
			rec.BreakingCount, rec.NegativeCount)
	default:
		text = fmt.Sprintf("Near-term range-bound: %d breaking item(s) without a clear sentiment edge.",
			rec.BreakingCount)
	}
	if rec.PriceTargetLow != nil && rec.PriceTargetHigh != nil {
		text += fmt.Sprintf(" Target range %.2f to %.2f.", *rec.PriceTargetLow, *rec.PriceTargetHigh)
	}
	return text
}

func longTermText(rec *models.AnalysisRecord, inst *models.Instrument) string {
	if inst == nil {
		return fmt.Sprintf("Long-term view: %s tier on news flow only.", RatingTier(rec.PotentialRating))
	}

	sector := inst.Sector
	if sector == "" {
		sector = "unclassified"
	}
	mood := MoodFromChange(inst.PriceChangePercent)
	return fmt.Sprintf("Long-term view: %s-cap %s name, %s tier on news flow; latest session %s (%s risk).",
		MarketCapTier(inst.MarketCap), strings.ToLower(sector), strings.ToLower(RatingTier(rec.PotentialRating)),
		strings.ToLower(mood.Label), strings.ToLower(mood.Risk))
}
