package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/specula/internal/models"
)

var analysisNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sentimentItem(id, title string, sentiment float64, age time.Duration) ScoredItem {
	return ScoredItem{
		Item: &models.RawItem{
			ID:          id,
			Title:       title,
			SourceName:  "Reuters",
			PublishedAt: analysisNow.Add(-age),
		},
		Instruments: []string{"ACME"},
		Sentiment:   sentiment,
	}
}

func TestNewDefaultAnalysis(t *testing.T) {
	rec := NewDefaultAnalysis("ACME", analysisNow)

	assert.Equal(t, "ACME", rec.InstrumentID)
	assert.Equal(t, 5.0, rec.PotentialRating)
	assert.Equal(t, models.DirectionStable, rec.PredictedDirection)
	assert.Equal(t, InsufficientDataSummary, rec.Summary)
	assert.Empty(t, rec.EvidencePoints)
	assert.Nil(t, rec.PriceTargetLow)
	assert.Nil(t, rec.PriceTargetHigh)
	assert.Equal(t, analysisNow, rec.AnalysisDate)
}

func TestAnalyzer_NoItemsYieldsDefault(t *testing.T) {
	a := NewAnalyzer(nil)
	inst := &models.Instrument{Identifier: "ACME", CurrentPrice: models.Float64Ptr(100)}

	assert.Equal(t, NewDefaultAnalysis("ACME", analysisNow), a.Analyze(inst, nil, analysisNow))
	assert.Equal(t, NewDefaultAnalysis("ACME", analysisNow), a.Analyze(inst, []ScoredItem{{Item: nil}}, analysisNow))
}

func TestAnalyzer_BreakingApproval(t *testing.T) {
	rules := DefaultRules()
	a := NewAnalyzer(rules)
	estimator := NewSentimentEstimator(rules)

	title := "Acme Corp announces FDA approval breakthrough"
	sentiment := estimator.Estimate(title).Score
	require.GreaterOrEqual(t, sentiment, 0.6)

	inst := &models.Instrument{Identifier: "ACME", DisplayName: "Acme Corp", Sector: "Healthcare"}
	rec := a.Analyze(inst, []ScoredItem{sentimentItem("1", title, sentiment, 0)}, analysisNow)

	assert.Equal(t, models.DirectionUp, rec.PredictedDirection)
	assert.GreaterOrEqual(t, rec.BreakingCount, 1)
	assert.Equal(t, 1, rec.PositiveCount)
	assert.Equal(t, 10.0, rec.PotentialRating)
	assert.Equal(t, []string{title}, rec.EvidencePoints)
	assert.Equal(t, []string{"1"}, rec.RelatedItemIDs)
	assert.Nil(t, rec.PriceTargetLow, "no price means no targets")
	assert.NotEmpty(t, rec.Summary)
	assert.NotEmpty(t, rec.ShortTermOutlook)
	assert.Contains(t, rec.LongTermOutlook, "healthcare")
}

func TestAnalyzer_Bounds(t *testing.T) {
	a := NewAnalyzer(nil)
	inst := &models.Instrument{Identifier: "ACME", CurrentPrice: models.Float64Ptr(42.5), MarketCap: models.Float64Ptr(1e9)}

	tests := []struct {
		name      string
		sentiment float64
		direction models.Direction
	}{
		{"all positive", 1.0, models.DirectionUp},
		{"all negative", 0.0, models.DirectionDown},
		{"all neutral", 0.5, models.DirectionStable},
		{"out of range", 7.0, models.DirectionUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []ScoredItem
			for i := 0; i < 15; i++ {
				items = append(items, sentimentItem(string(rune('a'+i)), "Acme recall lawsuit update", tt.sentiment, time.Duration(i)*time.Hour))
			}

			rec := a.Analyze(inst, items, analysisNow)
			assert.Equal(t, tt.direction, rec.PredictedDirection)
			assert.GreaterOrEqual(t, rec.PotentialRating, 1.0)
			assert.LessOrEqual(t, rec.PotentialRating, 10.0)
			assert.GreaterOrEqual(t, rec.Confidence, 0.0)
			assert.LessOrEqual(t, rec.Confidence, 1.0)
			assert.Equal(t, 15, rec.PositiveCount+rec.NegativeCount+rec.NeutralCount)
			assert.Equal(t, 15, rec.BreakingCount)
			assert.LessOrEqual(t, len(rec.EvidencePoints), MaxEvidencePoints)

			require.NotNil(t, rec.PriceTargetLow)
			require.NotNil(t, rec.PriceTargetHigh)
			assert.Less(t, *rec.PriceTargetLow, *rec.PriceTargetHigh)
		})
	}
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.2, Confidence(0, 0, 0))
	assert.Equal(t, 0.54, Confidence(1, 1, 0))
	assert.Equal(t, 0.9, Confidence(10, 10, 0))
	assert.Equal(t, 0.6, Confidence(20, 5, 5))
	assert.Equal(t, 0.9, Confidence(50, 0, 50))
}

func TestDirectionFromSentiment(t *testing.T) {
	assert.Equal(t, models.DirectionUp, DirectionFromSentiment(0.61))
	assert.Equal(t, models.DirectionStable, DirectionFromSentiment(0.6))
	assert.Equal(t, models.DirectionStable, DirectionFromSentiment(0.4))
	assert.Equal(t, models.DirectionDown, DirectionFromSentiment(0.39))
}

func TestPriceTargets(t *testing.T) {
	tests := []struct {
		name     string
		in       PriceTargetInput
		wantLow  float64
		wantHigh float64
	}{
		{
			name:     "up rating 8 unknown cap",
			in:       PriceTargetInput{Price: 100, Rating: 8, Direction: models.DirectionUp},
			wantLow:  106,
			wantHigh: 118,
		},
		{
			name:     "up rating 8 large cap",
			in:       PriceTargetInput{Price: 100, Rating: 8, Direction: models.DirectionUp, MarketCap: models.Float64Ptr(3e12)},
			wantLow:  104.2,
			wantHigh: 112.6,
		},
		{
			name:     "down rating 3 small cap",
			in:       PriceTargetInput{Price: 100, Rating: 3, Direction: models.DirectionDown, MarketCap: models.Float64Ptr(1e9)},
			wantLow:  93,
			wantHigh: 97.67,
		},
		{
			name:     "stable with breaking items",
			in:       PriceTargetInput{Price: 100, Rating: 5, Direction: models.DirectionStable, Breaking: 2},
			wantLow:  97,
			wantHigh: 103,
		},
		{
			name:     "sub-dollar price keeps four decimals",
			in:       PriceTargetInput{Price: 0.5, Rating: 5, Direction: models.DirectionStable},
			wantLow:  0.49,
			wantHigh: 0.51,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			low, high := PriceTargets(tt.in)
			assert.InDelta(t, tt.wantLow, low, 1e-9)
			assert.InDelta(t, tt.wantHigh, high, 1e-9)
			assert.Less(t, low, high)
		})
	}
}

func TestPriceTargets_FallbackBand(t *testing.T) {
	for _, dir := range []models.Direction{models.DirectionUp, models.DirectionDown, models.DirectionStable, "sideways"} {
		low, high := PriceTargets(PriceTargetInput{Price: 0.0001, Rating: 5, Direction: dir})
		assert.Less(t, low, high, "direction %s", dir)
		assert.Greater(t, low, 0.0)
	}
}

func TestSelectEvidence(t *testing.T) {
	items := []ScoredItem{
		sentimentItem("1", "Acme wins record contract", 0.8, 0),
		sentimentItem("2", "Acme wins record contract again", 0.8, time.Hour),
		sentimentItem("3", "   ", 0.5, time.Hour),
		sentimentItem("4", "Regulators probe Acme pricing", 0.3, 2*time.Hour),
		{Item: nil},
		sentimentItem("5", "Acme expands into Europe", 0.7, 3*time.Hour),
	}

	assert.Equal(t, []string{
		"Acme wins record contract",
		"Regulators probe Acme pricing",
		"Acme expands into Europe",
	}, SelectEvidence(items, 5))

	assert.Len(t, SelectEvidence(items, 1), 1)
}

func TestRatingTier(t *testing.T) {
	assert.Equal(t, "Strong", RatingTier(8.5))
	assert.Equal(t, "Favourable", RatingTier(7))
	assert.Equal(t, "Neutral", RatingTier(5))
	assert.Equal(t, "Weak", RatingTier(3.5))
	assert.Equal(t, "Poor", RatingTier(1))
}
