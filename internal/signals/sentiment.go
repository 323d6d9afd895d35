package signals

// SentimentResult is the lexical sentiment of a text
type SentimentResult struct {
	Score        float64 `json:"score"` // [0,1], 0.5 neutral
	Positive     float64 `json:"positive"`
	Negative     float64 `json:"negative"`
	Neutral      float64 `json:"neutral"`
	PositiveHits int     `json:"positive_hits"`
	NegativeHits int     `json:"negative_hits"`
	Words        int     `json:"words"`
}

// NeutralSentiment is returned when a text carries too little signal
func NeutralSentiment() SentimentResult {
	return SentimentResult{Score: 0.5, Positive: 0.5, Negative: 0.2, Neutral: 0.3}
}

const (
	// minSentimentHits is the number of sentiment words a long text needs
	minSentimentHits = 3
	// headlineWords is the length below which a text counts as a headline
	headlineWords = 20
)

// SentimentEstimator tallies positive and negative words. Deterministic.
type SentimentEstimator struct {
	positive KeywordSet
	negative KeywordSet
}

// NewSentimentEstimator builds the lexicons from rules
func NewSentimentEstimator(rules *Rules) *SentimentEstimator {
	if rules == nil {
		rules = DefaultRules()
	}
	return &SentimentEstimator{
		positive: NewKeywordSet(rules.Positive),
		negative: NewKeywordSet(rules.Negative),
	}
}

// Estimate scores text. Headlines (under 20 words) are scored from a single
// sentiment word; longer texts need at least 3 or they stay neutral.
func (e *SentimentEstimator) Estimate(text string) SentimentResult {
	t := newNormalizedText(text)
	pos := e.positive.count(t)
	neg := e.negative.count(t)
	hits := pos + neg

	if hits == 0 || (t.WordCount() >= headlineWords && hits < minSentimentHits) {
		result := NeutralSentiment()
		result.PositiveHits = pos
		result.NegativeHits = neg
		result.Words = t.WordCount()
		return result
	}

	posFrac := float64(pos) / float64(hits)
	return SentimentResult{
		Score:        clamp(0.5+(posFrac-0.5)*0.8, 0, 1),
		Positive:     posFrac,
		Negative:     1 - posFrac,
		Neutral:      0,
		PositiveHits: pos,
		NegativeHits: neg,
		Words:        t.WordCount(),
	}
}
