package sources

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/models"
)

// DemoSourceName is the source name carried by synthetic items
const DemoSourceName = "demo"

type demoProfile struct {
	Identifier  string
	DisplayName string
	Sector      string
	Industry    string
}

var demoProfiles = []demoProfile{
	{"AAPL", "Apple Inc.", "Technology", "Consumer Electronics"},
	{"MSFT", "Microsoft Corporation", "Technology", "Software"},
	{"NVDA", "NVIDIA Corporation", "Technology", "Semiconductors"},
	{"AMD", "Advanced Micro Devices Inc.", "Technology", "Semiconductors"},
	{"INTC", "Intel Corporation", "Technology", "Semiconductors"},
	{"QCOM", "QUALCOMM Incorporated", "Technology", "Semiconductors"},
	{"CSCO", "Cisco Systems Inc.", "Technology", "Communication Equipment"},
	{"NET", "Cloudflare Inc.", "Technology", "Software - Infrastructure"},
	{"SNOW", "Snowflake Inc.", "Technology", "Software - Infrastructure"},
	{"DDOG", "Datadog Inc.", "Technology", "Software - Application"},
	{"AMGN", "Amgen Inc.", "Healthcare", "Biotechnology"},
	{"DNA", "Ginkgo Bioworks Holdings Inc.", "Healthcare", "Biotechnology"},
	{"DHR", "Danaher Corporation", "Healthcare", "Diagnostics & Research"},
	{"ME", "23andMe Holding Co.", "Healthcare", "Diagnostics & Research"},
	{"ASTS", "AST SpaceMobile Inc.", "Technology", "Telecom Services"},
	{"RKLB", "Rocket Lab USA Inc.", "Industrials", "Aerospace & Defense"},
	{"LMT", "Lockheed Martin Corporation", "Industrials", "Aerospace & Defense"},
	{"AMZN", "Amazon.com Inc.", "Consumer Cyclical", "Internet Retail"},
	{"SBUX", "Starbucks Corporation", "Consumer Cyclical", "Restaurants"},
	{"PYPL", "PayPal Holdings Inc.", "Financial Services", "Credit Services"},
}

// Headline templates grouped by tone; %s is the company name
var (
	demoPositive = []string{
		"%s shares surge after record quarterly revenue",
		"Analysts upgrade %s citing strong growth",
		"%s beats estimates and raises guidance",
		"%s wins major contract, stock jumps",
		"%s announces breakthrough, investors bullish",
	}
	demoNegative = []string{
		"%s reports earnings below expectations",
		"Analyst downgrades %s citing growth concerns",
		"%s reduces full-year guidance, shares drop",
		"Regulatory scrutiny weighs on %s",
		"%s faces margin pressure amid rising costs",
	}
	demoNeutral = []string{
		"%s expands operations in global markets",
		"%s to present at industry conference",
		"%s names new chief operating officer",
	}
)

// Topic phrases appended per industry so the categorizer has something to match
var demoTopics = map[string][]string{
	"Semiconductors":            {"new GPU chips", "next-generation processor", "chip supply"},
	"Communication Equipment":   {"network hardware devices", "chip supply"},
	"Consumer Electronics":      {"new devices", "display and battery upgrades"},
	"Software":                  {"AI platform", "cloud software demand"},
	"Software - Infrastructure": {"cloud platform", "cybersecurity software"},
	"Software - Application":    {"AI platform", "SaaS subscriptions"},
	"Biotechnology":             {"FDA approval", "clinical trial results", "new therapy"},
	"Diagnostics & Research":    {"clinical trial data", "FDA review"},
	"Aerospace & Defense":       {"satellite launch", "rocket program", "space contract"},
	"Telecom Services":          {"satellite network", "orbital launch"},
	"Internet Retail":           {"e-commerce growth", "cloud and AI investment"},
}

// DemoSource produces seeded synthetic headlines and instrument profiles.
// Output is deterministic for a given seed and clock.
type DemoSource struct {
	seed               int64
	itemsPerInstrument int
	now                func() time.Time
	logger             arbor.ILogger
}

// DemoOption configures a DemoSource
type DemoOption func(*DemoSource)

// WithDemoClock overrides the clock used to timestamp items
func WithDemoClock(now func() time.Time) DemoOption {
	return func(s *DemoSource) {
		s.now = now
	}
}

// NewDemoSource creates the synthetic source
func NewDemoSource(cfg common.DemoSourceConfig, logger arbor.ILogger, opts ...DemoOption) *DemoSource {
	s := &DemoSource{
		seed:               cfg.Seed,
		itemsPerInstrument: cfg.ItemsPerInstrument,
		now:                time.Now,
		logger:             logger,
	}
	if s.itemsPerInstrument <= 0 {
		s.itemsPerInstrument = 3
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DemoSource) Name() string {
	return DemoSourceName
}

func (s *DemoSource) rng(salt int64) *rand.Rand {
	return rand.New(rand.NewSource(s.seed*31 + salt))
}

// Instruments returns the demo profiles with synthetic quotes for the current day
func (s *DemoSource) Instruments(ctx context.Context) ([]*models.Instrument, error) {
	day := s.now().UTC().Truncate(24 * time.Hour)
	r := s.rng(day.Unix())

	out := make([]*models.Instrument, 0, len(demoProfiles))
	for _, p := range demoProfiles {
		price := round2(10 + r.Float64()*490)
		changePct := round2(r.Float64()*20 - 10)
		previous := round2(price / (1 + changePct/100))
		marketCap := math.Round(1e9 + r.Float64()*1999e9)

		out = append(out, &models.Instrument{
			Identifier:         p.Identifier,
			DisplayName:        p.DisplayName,
			Exchange:           "NASDAQ",
			Sector:             p.Sector,
			Industry:           p.Industry,
			MarketCap:          models.Float64Ptr(marketCap),
			CurrentPrice:       models.Float64Ptr(price),
			PreviousClose:      models.Float64Ptr(previous),
			PriceChangePercent: models.Float64Ptr(changePct),
			Provenance:         models.ProvenanceDemo,
		})
	}
	return out, nil
}

// Fetch returns itemsPerInstrument synthetic headlines per profile
func (s *DemoSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	now := s.now()
	r := s.rng(now.Unix())
	stamp := now.UTC().Format("20060102T1504")

	items := make([]models.RawItem, 0, len(demoProfiles)*s.itemsPerInstrument)
	for _, p := range demoProfiles {
		name := shortName(p.DisplayName)
		for i := 0; i < s.itemsPerInstrument; i++ {
			var templates []string
			switch roll := r.Float64(); {
			case roll < 0.45:
				templates = demoPositive
			case roll < 0.8:
				templates = demoNegative
			default:
				templates = demoNeutral
			}

			title := fmt.Sprintf(templates[r.Intn(len(templates))], name)
			body := fmt.Sprintf("%s (%s)", p.DisplayName, p.Identifier)
			if topics := demoTopics[p.Industry]; len(topics) > 0 {
				body += " update on " + topics[r.Intn(len(topics))]
			}
			if r.Float64() < 0.15 {
				title = "Breaking: " + title
			}

			items = append(items, models.RawItem{
				Title:        title,
				Body:         body,
				CanonicalURL: fmt.Sprintf("https://demo.specula.invalid/news/%s/%s-%d", stamp, strings.ToLower(p.Identifier), i),
				SourceName:   DemoSourceName,
				PublishedAt:  now.Add(-time.Duration(r.Intn(12*60)) * time.Minute),
				Provenance:   models.ProvenanceDemo,
			})
		}
	}

	s.logger.Debug().
		Int("items", len(items)).
		Int64("seed", s.seed).
		Msg("Generated demo items")

	return items, nil
}

// shortName drops corporate suffixes so headlines read naturally
func shortName(displayName string) string {
	name := displayName
	for _, suffix := range []string{" Incorporated", " Corporation", " Holdings Inc.", " Holding Co.", " Inc."} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
