package signals

import (
	"sort"
	"strings"

	"github.com/ternarybob/specula/internal/models"
)

// ScoredItem is a raw item with the signals derived from it in one cycle
type ScoredItem struct {
	Item        *models.RawItem
	Instruments []string // detected identifiers, sorted
	Category    string
	Relevance   float64
	Sentiment   float64 // [0,1]
	Breaking    bool
}

// key identifies the item for per-instrument dedup
func (s ScoredItem) key() string {
	if s.Item.ID != "" {
		return s.Item.ID
	}
	return s.Item.CanonicalURL
}

// Pick is one instrument selected for a category
type Pick struct {
	Identifier string
	Instrument *models.Instrument // nil if the identifier is not registered
	Score      float64            // sum of relevance over the category's items
	Items      []ScoredItem       // newest first, at most MaxItems
	Fallback   bool               // selected from sector/industry metadata, not mentions
}

// CategorySelection is the ranked result for one category
type CategorySelection struct {
	Category    string
	Represented int // instruments with at least one mention in the category
	Picks       []Pick
}

// AggregatorConfig controls selection sizes
type AggregatorConfig struct {
	TopK           int // default 5
	MaxItems       int // default 10
	MinRepresented int // categories with fewer mentioned instruments use fallbacks, default 3
	FallbackLimit  int // default 5
}

// DefaultAggregatorConfig returns K=5, M=10, fallback below 3, at most 5 fallbacks
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{TopK: 5, MaxItems: 10, MinRepresented: 3, FallbackLimit: 5}
}

// Aggregator groups scored items by (category, instrument) and ranks them
type Aggregator struct {
	config     AggregatorConfig
	categories []string
	fallbacks  map[string][]string
}

// NewAggregator creates an aggregator. categories fixes the output order;
// fallbacks is the category -> sector/industry keyword table.
func NewAggregator(config AggregatorConfig, categories []string, fallbacks []FallbackRule) *Aggregator {
	defaults := DefaultAggregatorConfig()
	if config.TopK <= 0 {
		config.TopK = defaults.TopK
	}
	if config.MaxItems <= 0 {
		config.MaxItems = defaults.MaxItems
	}
	if config.MinRepresented < 0 {
		config.MinRepresented = 0
	}
	if config.FallbackLimit < 0 {
		config.FallbackLimit = 0
	}

	a := &Aggregator{
		config:     config,
		categories: append([]string(nil), categories...),
		fallbacks:  make(map[string][]string, len(fallbacks)),
	}
	for _, f := range fallbacks {
		name := strings.ToLower(strings.TrimSpace(f.Category))
		a.fallbacks[name] = append(a.fallbacks[name], f.Keywords...)
	}
	return a
}

type group struct {
	identifier string
	score      float64
	items      []ScoredItem
	seen       map[string]bool
}

// Aggregate ranks instruments per category. Every category in the
// configured order is returned, possibly with no picks.
func (a *Aggregator) Aggregate(items []ScoredItem, reg *Registry) []CategorySelection {
	groups := make(map[string]map[string]*group)

	for _, it := range items {
		if it.Item == nil {
			continue
		}
		byInstrument, ok := groups[it.Category]
		if !ok {
			byInstrument = make(map[string]*group)
			groups[it.Category] = byInstrument
		}
		for _, id := range it.Instruments {
			g, ok := byInstrument[id]
			if !ok {
				g = &group{identifier: id, seen: make(map[string]bool)}
				byInstrument[id] = g
			}
			if g.seen[it.key()] {
				continue
			}
			g.seen[it.key()] = true
			g.score += it.Relevance
			g.items = append(g.items, it)
		}
	}

	selections := make([]CategorySelection, 0, len(a.categories))
	for _, category := range a.orderedCategories(groups) {
		selections = append(selections, a.selectCategory(category, groups[category], reg))
	}
	return selections
}

// orderedCategories returns configured categories followed by any others seen, sorted
func (a *Aggregator) orderedCategories(groups map[string]map[string]*group) []string {
	out := append([]string(nil), a.categories...)
	known := make(map[string]bool, len(out))
	for _, c := range out {
		known[c] = true
	}
	var extra []string
	for c := range groups {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (a *Aggregator) selectCategory(category string, byInstrument map[string]*group, reg *Registry) CategorySelection {
	ranked := make([]*group, 0, len(byInstrument))
	for _, g := range byInstrument {
		ranked = append(ranked, g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].identifier < ranked[j].identifier
	})

	selection := CategorySelection{Category: category, Represented: len(ranked)}
	for _, g := range ranked {
		if len(selection.Picks) >= a.config.TopK {
			break
		}
		pick := Pick{
			Identifier: g.identifier,
			Score:      g.score,
			Items:      newestFirst(g.items, a.config.MaxItems),
		}
		if reg != nil {
			pick.Instrument, _ = reg.Lookup(g.identifier)
		}
		selection.Picks = append(selection.Picks, pick)
	}

	if len(ranked) < a.config.MinRepresented {
		for _, inst := range a.fallbackCandidates(category, reg, byInstrument) {
			if len(selection.Picks) >= a.config.TopK {
				break
			}
			selection.Picks = append(selection.Picks, Pick{
				Identifier: inst.Identifier,
				Instrument: inst,
				Fallback:   true,
			})
		}
	}

	return selection
}

// fallbackCandidates returns registered instruments whose sector or industry
// matches the category's fallback keywords, excluding those already mentioned,
// ordered by market cap descending (unknown last) and capped at FallbackLimit
func (a *Aggregator) fallbackCandidates(category string, reg *Registry, exclude map[string]*group) []*models.Instrument {
	keywords := a.fallbacks[category]
	if reg == nil || len(keywords) == 0 || a.config.FallbackLimit == 0 {
		return nil
	}

	var candidates []*models.Instrument
	for _, inst := range reg.Instruments() {
		if _, mentioned := exclude[inst.Identifier]; mentioned {
			continue
		}
		if matchesFieldFold(inst.Industry, keywords) || matchesFieldFold(inst.Sector, keywords) {
			candidates = append(candidates, inst)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i].MarketCap, candidates[j].MarketCap
		switch {
		case ci != nil && cj != nil && *ci != *cj:
			return *ci > *cj
		case ci != nil && cj == nil:
			return true
		case ci == nil && cj != nil:
			return false
		}
		return candidates[i].Identifier < candidates[j].Identifier
	})

	if len(candidates) > a.config.FallbackLimit {
		candidates = candidates[:a.config.FallbackLimit]
	}
	return candidates
}

// InstrumentItems collects every scored item mentioning id across all
// categories, newest first, at most max
func InstrumentItems(id string, items []ScoredItem, max int) []ScoredItem {
	seen := make(map[string]bool)
	var out []ScoredItem
	for _, it := range items {
		if it.Item == nil || seen[it.key()] {
			continue
		}
		for _, mentioned := range it.Instruments {
			if mentioned == id {
				seen[it.key()] = true
				out = append(out, it)
				break
			}
		}
	}
	return newestFirst(out, max)
}

// newestFirst sorts a copy by PublishedAt descending and truncates to max
func newestFirst(items []ScoredItem, max int) []ScoredItem {
	out := append([]ScoredItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Item.PublishedAt, out[j].Item.PublishedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].key() < out[j].key()
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
