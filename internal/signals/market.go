package signals

import (
	"math"
	"sort"

	"github.com/ternarybob/specula/internal/models"
)

// Market-cap tier thresholds in USD
const (
	LargeCapThreshold = 200e9
	SmallCapThreshold = 2e9
)

// Market-cap tiers
const (
	TierLarge   = "large"
	TierMid     = "mid"
	TierSmall   = "small"
	TierUnknown = "unknown"
)

// MarketCapTier classifies a market cap; nil or non-positive is unknown
func MarketCapTier(marketCap *float64) string {
	if marketCap == nil || *marketCap <= 0 {
		return TierUnknown
	}
	switch {
	case *marketCap >= LargeCapThreshold:
		return TierLarge
	case *marketCap < SmallCapThreshold:
		return TierSmall
	default:
		return TierMid
	}
}

// SizeFactor scales price-target moves: large caps move less, small caps more
func SizeFactor(marketCap *float64) float64 {
	switch MarketCapTier(marketCap) {
	case TierLarge:
		return 0.7
	case TierSmall:
		return 1.4
	default:
		return 1.0
	}
}

// PriceMood labels a daily percentage change
type PriceMood struct {
	Label string `json:"label"` // Bearish, Slightly Bearish, Neutral, Slightly Bullish, Bullish
	Risk  string `json:"risk"`  // Medium, Medium-High, High
}

// MoodFromChange labels a daily percent change. Risk is asymmetric: a sharp
// fall is High, a sharp rise only Medium-High, and a flat or unknown session
// is Medium.
func MoodFromChange(changePct *float64) PriceMood {
	mood := PriceMood{Label: "Neutral", Risk: "Medium"}
	if changePct == nil || math.IsNaN(*changePct) {
		return mood
	}

	switch c := *changePct; {
	case c < -5:
		mood = PriceMood{Label: "Bearish", Risk: "High"}
	case c < -2:
		mood = PriceMood{Label: "Slightly Bearish", Risk: "Medium-High"}
	case c > 5:
		mood = PriceMood{Label: "Bullish", Risk: "Medium-High"}
	case c > 2:
		mood = PriceMood{Label: "Slightly Bullish", Risk: "Medium"}
	}
	return mood
}

// TopLosers returns instruments with a negative daily change, worst first.
// A non-empty industry filters by a word-start match on industry or sector.
func TopLosers(instruments []*models.Instrument, industry string, limit int) []*models.Instrument {
	var losers []*models.Instrument
	for _, inst := range instruments {
		if inst == nil || inst.PriceChangePercent == nil || *inst.PriceChangePercent >= 0 {
			continue
		}
		if industry != "" {
			kw := []string{industry}
			if !matchesFieldFold(inst.Industry, kw) && !matchesFieldFold(inst.Sector, kw) {
				continue
			}
		}
		losers = append(losers, inst)
	}

	sort.SliceStable(losers, func(i, j int) bool {
		ci, cj := *losers[i].PriceChangePercent, *losers[j].PriceChangePercent
		if ci != cj {
			return ci < cj
		}
		return losers[i].Identifier < losers[j].Identifier
	})

	if limit > 0 && len(losers) > limit {
		losers = losers[:limit]
	}
	return losers
}
