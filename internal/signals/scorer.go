package signals

import (
	"math"
	"strings"
	"time"

	"github.com/ternarybob/specula/internal/models"
)

// ScoreWeights are the linear weights of the relevance formula
type ScoreWeights struct {
	Recency  float64
	Breaking float64
	Source   float64
}

// DefaultScoreWeights returns 0.5 recency, 0.3 breaking, 0.2 source
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Recency: 0.5, Breaking: 0.3, Source: 0.2}
}

// ScorerConfig configures a Scorer
type ScorerConfig struct {
	Weights             ScoreWeights
	RecencyDecayHours   float64            // e-folding time of recency, default 6
	DefaultSourceWeight float64            // weight of unlisted sources, 0 means 0.5
	SourceWeights       map[string]float64 // merged over the rules table
}

// Scorer computes the relevance of an item:
// Wr*recency + Wb*breaking + Ws*sourceWeight
type Scorer struct {
	weights             ScoreWeights
	decayHours          float64
	defaultSourceWeight float64
	sourceWeights       map[string]float64
	breaking            KeywordSet
}

// NewScorer creates a scorer from config and keyword rules
func NewScorer(cfg ScorerConfig, rules *Rules) *Scorer {
	if rules == nil {
		rules = DefaultRules()
	}
	if cfg.Weights == (ScoreWeights{}) {
		cfg.Weights = DefaultScoreWeights()
	}
	if cfg.RecencyDecayHours <= 0 {
		cfg.RecencyDecayHours = 6
	}
	if cfg.DefaultSourceWeight <= 0 {
		cfg.DefaultSourceWeight = 0.5
	}

	s := &Scorer{
		weights:             cfg.Weights,
		decayHours:          cfg.RecencyDecayHours,
		defaultSourceWeight: clamp(cfg.DefaultSourceWeight, 0, 1),
		sourceWeights:       make(map[string]float64, len(rules.SourceWeights)+len(cfg.SourceWeights)),
		breaking:            NewKeywordSet(rules.Breaking),
	}
	for name, w := range rules.SourceWeights {
		s.sourceWeights[strings.ToLower(strings.TrimSpace(name))] = clamp(w, 0, 1)
	}
	for name, w := range cfg.SourceWeights {
		s.sourceWeights[strings.ToLower(strings.TrimSpace(name))] = clamp(w, 0, 1)
	}
	return s
}

// Recency returns clamp(exp(-ageHours/decay), 0, 1). Future timestamps count as age 0.
func (s *Scorer) Recency(publishedAt, now time.Time) float64 {
	ageHours := now.Sub(publishedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return clamp(math.Exp(-ageHours/s.decayHours), 0, 1)
}

// IsBreaking reports whether text contains a breaking keyword
func (s *Scorer) IsBreaking(text string) bool {
	return s.breaking.MatchText(text)
}

// SourceWeight returns the credibility weight of a source name
func (s *Scorer) SourceWeight(source string) float64 {
	if w, ok := s.sourceWeights[strings.ToLower(strings.TrimSpace(source))]; ok {
		return w
	}
	return s.defaultSourceWeight
}

// Score returns the relevance score of item at time now
func (s *Scorer) Score(item *models.RawItem, now time.Time) float64 {
	breaking := 0.0
	if s.IsBreaking(item.Text()) {
		breaking = 1
	}
	return s.weights.Recency*s.Recency(item.PublishedAt, now) +
		s.weights.Breaking*breaking +
		s.weights.Source*s.SourceWeight(item.SourceName)
}
