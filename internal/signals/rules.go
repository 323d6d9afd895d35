package signals

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Category names
const (
	CategoryTechnology  = "technology"
	CategoryPharma      = "pharma"
	CategorySpace       = "space"
	CategoryElectronics = "electronics"
	CategoryGeneral     = "general"
)

// CategoryRule maps a category to the keywords that select it.
// Rules are evaluated in order and the first match wins.
type CategoryRule struct {
	Category string   `yaml:"category" toml:"category"`
	Keywords []string `yaml:"keywords" toml:"keywords"`
}

// FallbackRule maps a category to sector/industry keywords used when the
// category has too few instruments mentioned in items
type FallbackRule struct {
	Category string   `yaml:"category" toml:"category"`
	Keywords []string `yaml:"keywords" toml:"keywords"`
}

// Rules holds every keyword list the engine uses. All of it is data.
type Rules struct {
	// Replace discards the built-in lists for every non-empty section
	// instead of extending them. Only meaningful in rule files.
	Replace bool `yaml:"replace" toml:"replace"`

	Categories    []CategoryRule     `yaml:"categories" toml:"categories"`
	Fallbacks     []FallbackRule     `yaml:"fallbacks" toml:"fallbacks"`
	Breaking      []string           `yaml:"breaking" toml:"breaking"`
	Positive      []string           `yaml:"positive" toml:"positive"`
	Negative      []string           `yaml:"negative" toml:"negative"`
	Stopwords     []string           `yaml:"stopwords" toml:"stopwords"`
	SourceWeights map[string]float64 `yaml:"source_weights" toml:"source_weights"`
}

// DefaultRules returns the built-in keyword lists
func DefaultRules() *Rules {
	return &Rules{
		Categories: []CategoryRule{
			{
				Category: CategoryTechnology,
				Keywords: []string{
					"software", "cloud", "ai", "artificial intelligence", "machine learning",
					"cybersecurity", "saas", "internet", "data center", "tech", "technology",
					"digital", "platform", "streaming", "e-commerce",
				},
			},
			{
				Category: CategoryPharma,
				Keywords: []string{
					"fda", "drug", "drugs", "pharma", "pharmaceutical", "biotech", "biotechnology",
					"clinical", "trial", "vaccine", "therapy", "treatment", "patients",
					"medicine", "oncology", "healthcare",
				},
			},
			{
				Category: CategorySpace,
				Keywords: []string{
					"space", "aerospace", "satellite", "satellites", "rocket", "orbit", "orbital",
					"nasa", "spacecraft", "lunar", "mars",
				},
			},
			{
				Category: CategoryElectronics,
				Keywords: []string{
					"semiconductor", "semiconductors", "chip", "chips", "chipmaker", "electronics",
					"hardware", "processor", "gpu", "display", "battery", "batteries", "device", "devices",
				},
			},
		},
		Fallbacks: []FallbackRule{
			{Category: CategoryTechnology, Keywords: []string{"technology", "software", "internet", "information technology", "communication services"}},
			{Category: CategoryPharma, Keywords: []string{"healthcare", "biotech", "pharmaceutical", "drug", "diagnostics", "medical"}},
			{Category: CategorySpace, Keywords: []string{"aerospace", "defense", "space", "satellite"}},
			{Category: CategoryElectronics, Keywords: []string{"semiconductor", "electronic", "hardware", "communication equipment"}},
		},
		Breaking: []string{
			"breaking", "announces", "announced", "acquisition", "acquires", "merger",
			"fda", "approval", "approved", "launch", "launches", "recall", "bankruptcy",
			"halts", "lawsuit",
		},
		Positive: []string{
			"surge", "surges", "soar", "soars", "rally", "rallies", "gain", "gains", "beat", "beats",
			"growth", "strong", "record", "upgrade", "upgraded", "bullish", "breakthrough",
			"approval", "approved", "profit", "profits", "outperform", "positive", "success",
			"successful", "expands", "expansion", "wins", "partnership", "innovative", "boost",
			"boosts", "raises", "jumps",
		},
		Negative: []string{
			"drop", "drops", "plunge", "plunges", "fall", "falls", "decline", "declines", "loss",
			"losses", "miss", "misses", "downgrade", "downgraded", "bearish", "lawsuit", "recall",
			"investigation", "weak", "cut", "cuts", "layoffs", "bankruptcy", "fraud", "delay",
			"delays", "concern", "concerns", "warning", "selloff", "negative", "fails", "failure",
			"rejected", "slumps", "tumbles",
		},
		Stopwords: append([]string(nil), DefaultStopwords...),
		SourceWeights: map[string]float64{
			"reuters":             0.9,
			"bloomberg":           0.9,
			"wall street journal": 0.85,
			"financial times":     0.85,
			"associated press":    0.8,
			"cnbc":                0.75,
			"marketwatch":         0.7,
			"barron's":            0.7,
			"yahoo finance":       0.6,
			"seeking alpha":       0.55,
			"benzinga":            0.55,
			"newsletter":          0.5,
			"reddit":              0.3,
			"twitter":             0.3,
			"stocktwits":          0.25,
			"demo":                0.1,
		},
	}
}

// LoadRules reads a YAML (.yaml/.yml) or TOML (.toml) rules file and merges it
// over the built-in defaults. An empty path returns the defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var file Rules
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported rules file extension %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	if err := file.validate(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	rules.Merge(&file)
	return rules, nil
}

func (r *Rules) validate() error {
	for i, c := range r.Categories {
		if strings.TrimSpace(c.Category) == "" {
			return fmt.Errorf("categories[%d]: category name is required", i)
		}
		if strings.EqualFold(c.Category, CategoryGeneral) {
			return fmt.Errorf("categories[%d]: %q is the implicit fallback and cannot carry keywords", i, CategoryGeneral)
		}
	}
	for name, w := range r.SourceWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("source_weights[%s]: weight %v outside [0,1]", name, w)
		}
	}
	return nil
}

// Merge applies other over r. With other.Replace, non-empty sections replace
// r's; otherwise keywords are appended, new categories are added after the
// existing ones, and source weights are overridden per key.
func (r *Rules) Merge(other *Rules) {
	if other == nil {
		return
	}

	if other.Replace {
		if len(other.Categories) > 0 {
			r.Categories = other.Categories
		}
		if len(other.Fallbacks) > 0 {
			r.Fallbacks = other.Fallbacks
		}
		if len(other.Breaking) > 0 {
			r.Breaking = other.Breaking
		}
		if len(other.Positive) > 0 {
			r.Positive = other.Positive
		}
		if len(other.Negative) > 0 {
			r.Negative = other.Negative
		}
		if len(other.Stopwords) > 0 {
			r.Stopwords = other.Stopwords
		}
		if len(other.SourceWeights) > 0 {
			r.SourceWeights = map[string]float64{}
		}
	} else {
		r.Categories = mergeCategoryRules(r.Categories, other.Categories)
		r.Fallbacks = mergeFallbackRules(r.Fallbacks, other.Fallbacks)
		r.Breaking = append(r.Breaking, other.Breaking...)
		r.Positive = append(r.Positive, other.Positive...)
		r.Negative = append(r.Negative, other.Negative...)
		r.Stopwords = append(r.Stopwords, other.Stopwords...)
	}

	if r.SourceWeights == nil {
		r.SourceWeights = map[string]float64{}
	}
	for name, w := range other.SourceWeights {
		r.SourceWeights[strings.ToLower(strings.TrimSpace(name))] = w
	}
}

func mergeCategoryRules(base, extra []CategoryRule) []CategoryRule {
	for _, e := range extra {
		found := false
		for i := range base {
			if strings.EqualFold(base[i].Category, e.Category) {
				base[i].Keywords = append(base[i].Keywords, e.Keywords...)
				found = true
				break
			}
		}
		if !found {
			base = append(base, e)
		}
	}
	return base
}

func mergeFallbackRules(base, extra []FallbackRule) []FallbackRule {
	for _, e := range extra {
		found := false
		for i := range base {
			if strings.EqualFold(base[i].Category, e.Category) {
				base[i].Keywords = append(base[i].Keywords, e.Keywords...)
				found = true
				break
			}
		}
		if !found {
			base = append(base, e)
		}
	}
	return base
}
