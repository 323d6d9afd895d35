package ingest

import (
	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/signals"
)

// Config controls one ingestion cycle
type Config struct {
	DedupWindow      int
	CorpusSize       int
	DiscoveryEnabled bool
	RankDemoItems    bool
	ExtraStopwords   []string
	Scorer           signals.ScorerConfig
	Aggregator       signals.AggregatorConfig
}

// DefaultConfig mirrors the defaults of common.NewDefaultConfig
func DefaultConfig() Config {
	return NewConfig(common.NewDefaultConfig())
}

// NewConfig maps the application config onto the cycle config
func NewConfig(cfg *common.Config) Config {
	return Config{
		DedupWindow:      cfg.Ingest.DedupWindow,
		CorpusSize:       cfg.Ingest.CorpusSize,
		DiscoveryEnabled: cfg.Ingest.DiscoveryEnabled,
		RankDemoItems:    cfg.Ingest.RankDemoItems,
		ExtraStopwords:   cfg.Signals.ExtraStopwords,
		Scorer: signals.ScorerConfig{
			Weights: signals.ScoreWeights{
				Recency:  cfg.Scoring.RecencyWeight,
				Breaking: cfg.Scoring.BreakingWeight,
				Source:   cfg.Scoring.SourceWeight,
			},
			RecencyDecayHours:   cfg.Scoring.RecencyDecayHours,
			DefaultSourceWeight: cfg.Scoring.DefaultSourceWeight,
			SourceWeights:       cfg.Scoring.SourceWeights,
		},
		Aggregator: signals.AggregatorConfig{
			TopK:           cfg.Ranking.TopK,
			MaxItems:       cfg.Ranking.MaxItems,
			MinRepresented: cfg.Ranking.MinRepresented,
			FallbackLimit:  cfg.Ranking.FallbackLimit,
		},
	}
}
