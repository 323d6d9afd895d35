// -----------------------------------------------------------------------
// Ingest Service - one fetch, dedup, rank and analyse cycle
// -----------------------------------------------------------------------

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/models"
	"github.com/ternarybob/specula/internal/signals"
)

// LastCycleReportKey is the KV key holding the JSON of the latest CycleReport
const LastCycleReportKey = "last_cycle_report"

// Service runs ingestion cycles. Cycles are serialised; the signal stages
// operate on an immutable registry snapshot taken per cycle.
type Service struct {
	storage   interfaces.StorageManager
	sources   []interfaces.Source
	providers []interfaces.InstrumentProvider
	registry  *signals.RegistryCache

	detector    *signals.Detector
	categorizer *signals.Categorizer
	scorer      *signals.Scorer
	sentiment   *signals.SentimentEstimator
	aggregator  *signals.Aggregator
	analyzer    *signals.Analyzer
	validate    *validator.Validate

	config Config
	logger arbor.ILogger
	now    func() time.Time
	mu     sync.Mutex
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides time.Now, used by tests for deterministic recency
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithInstrumentProviders adds instrument seeders that are not sources
func WithInstrumentProviders(providers ...interfaces.InstrumentProvider) Option {
	return func(s *Service) {
		s.providers = append(s.providers, providers...)
	}
}

// NewService creates the ingest service. A nil rules value uses the built-in keyword lists.
// Sources that also implement InstrumentProvider seed the registry.
func NewService(storage interfaces.StorageManager, sources []interfaces.Source, rules *signals.Rules, config Config, logger arbor.ILogger, opts ...Option) *Service {
	if rules == nil {
		rules = signals.DefaultRules()
	}

	stopwords := append(append([]string(nil), rules.Stopwords...), config.ExtraStopwords...)
	categorizer := signals.NewCategorizer(rules.Categories)

	s := &Service{
		storage:     storage,
		sources:     sources,
		registry:    signals.NewRegistryCache(storage.InstrumentStorage()),
		detector:    signals.NewDetector(stopwords...),
		categorizer: categorizer,
		scorer:      signals.NewScorer(config.Scorer, rules),
		sentiment:   signals.NewSentimentEstimator(rules),
		aggregator:  signals.NewAggregator(config.Aggregator, categorizer.Categories(), rules.Fallbacks),
		analyzer:    signals.NewAnalyzer(rules),
		validate:    validator.New(),
		config:      config,
		logger:      logger,
		now:         time.Now,
	}

	for _, src := range sources {
		if p, ok := src.(interfaces.InstrumentProvider); ok {
			s.providers = append(s.providers, p)
		}
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.config.Aggregator.MaxItems <= 0 {
		s.config.Aggregator.MaxItems = signals.DefaultAggregatorConfig().MaxItems
	}
	if s.config.CorpusSize <= 0 {
		s.config.CorpusSize = DefaultConfig().CorpusSize
	}

	return s
}

// Registry exposes the registry cache, e.g. for invalidation after manual edits
func (s *Service) Registry() *signals.RegistryCache {
	return s.registry
}

// RunCycle runs one full cycle. Recoverable failures (a source, a write, one
// instrument's analysis) are counted in the report; only a registry that
// cannot be built or a cancelled context returns an error.
func (s *Service) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	report := &models.CycleReport{
		StartedAt:      now,
		SourcesTotal:   len(s.sources),
		CategoryCounts: make(map[string]int),
	}

	s.logger.Info().Int("sources", len(s.sources)).Msg("Ingest cycle started")

	// Registry is rebuilt from the store at least once per cycle
	s.registry.Invalidate()

	// 1. Seed instruments
	report.InstrumentsSeeded = s.seedInstruments(ctx)

	// 2. Fetch
	batch := s.fetchAll(ctx, report)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest cycle cancelled: %w", err)
	}
	report.ItemsFetched = len(batch)

	// 3. Validate
	valid := s.validateItems(batch, now, report)

	// 4. Dedup and persist
	fresh, duplicates := NewDeduplicator(s.storage.ItemStorage(), s.config.DedupWindow, s.logger).Filter(ctx, valid)
	report.ItemsDuplicate = duplicates
	accepted := s.persistItems(ctx, fresh, report)

	// 5. Discovery
	if s.config.DiscoveryEnabled {
		report.InstrumentsDiscovered = s.discoverInstruments(ctx, accepted)
	}

	reg, err := s.registry.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build instrument registry: %w", err)
	}

	// 6. Corpus
	corpus := s.loadCorpus(ctx, accepted)
	report.CorpusSize = len(corpus)

	// 7. Score
	scored := s.scoreItems(corpus, reg, now)
	for _, it := range scored {
		report.CategoryCounts[it.Category]++
	}

	// 8. Rank
	selections := s.aggregator.Aggregate(scored, reg)

	// 9. Analyse
	s.analyseSelections(ctx, selections, scored, reg, now, report)

	// 10. Report
	report.FinishedAt = s.now()
	s.storeReport(ctx, report)

	s.logger.Info().
		Int("items_fetched", report.ItemsFetched).
		Int("items_persisted", report.ItemsPersisted).
		Int("items_duplicate", report.ItemsDuplicate).
		Int("items_malformed", report.ItemsMalformed).
		Int("sources_failed", report.SourcesFailed).
		Int("corpus_size", report.CorpusSize).
		Int("analyses_upserted", report.AnalysesUpserted).
		Strs("selected", report.SelectedInstruments).
		Dur("duration", report.Duration()).
		Msg("Ingest cycle completed")

	return report, nil
}

// LastReport returns the report stored by the most recent cycle
func (s *Service) LastReport(ctx context.Context) (*models.CycleReport, error) {
	data, err := s.storage.KeyValueStorage().Get(ctx, LastCycleReportKey)
	if err != nil {
		return nil, err
	}
	var report models.CycleReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to decode cycle report: %w", err)
	}
	return &report, nil
}

func (s *Service) seedInstruments(ctx context.Context) int {
	store := s.storage.InstrumentStorage()
	created := 0

	for _, provider := range s.providers {
		instruments, err := provider.Instruments(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Instrument provider failed, skipping")
			continue
		}

		for _, inst := range instruments {
			if inst == nil || strings.TrimSpace(inst.Identifier) == "" {
				continue
			}

			existing, err := store.GetInstrument(ctx, inst.Identifier)
			switch {
			case err == interfaces.ErrNotFound:
				if _, err := store.CreateInstrument(ctx, inst); err != nil {
					s.logger.Warn().Err(err).Str("identifier", inst.Identifier).Msg("Failed to seed instrument")
					continue
				}
				created++
			case err != nil:
				s.logger.Warn().Err(err).Str("identifier", inst.Identifier).Msg("Failed to read instrument")
			default:
				if mergeMarketData(existing, inst) {
					if err := store.UpdateInstrument(ctx, existing); err != nil {
						s.logger.Warn().Err(err).Str("identifier", inst.Identifier).Msg("Failed to refresh instrument")
					}
				}
			}
		}
	}

	if created > 0 {
		s.logger.Info().Int("count", created).Msg("Instruments seeded")
	}
	return created
}

// mergeMarketData copies known quote and classification fields from src into
// dst. Unknown values never erase known ones.
func mergeMarketData(dst, src *models.Instrument) bool {
	changed := false
	setFloat := func(dst **float64, src *float64) {
		if src != nil && (*dst == nil || **dst != *src) {
			v := *src
			*dst = &v
			changed = true
		}
	}
	setString := func(dst *string, src string) {
		if src != "" && *dst != src {
			*dst = src
			changed = true
		}
	}

	setFloat(&dst.MarketCap, src.MarketCap)
	setFloat(&dst.CurrentPrice, src.CurrentPrice)
	setFloat(&dst.PreviousClose, src.PreviousClose)
	setFloat(&dst.PriceChangePercent, src.PriceChangePercent)
	setString(&dst.Sector, src.Sector)
	setString(&dst.Industry, src.Industry)
	setString(&dst.Exchange, src.Exchange)
	if dst.DisplayName == dst.Identifier {
		setString(&dst.DisplayName, src.DisplayName)
	}
	return changed
}

// fetchAll fans out to every source. A failing or panicking source is
// counted and skipped; the batch keeps configured source order.
func (s *Service) fetchAll(ctx context.Context, report *models.CycleReport) []models.RawItem {
	results := make([][]models.RawItem, len(s.sources))
	errs := make([]error, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()

			start := time.Now()
			items, err := src.Fetch(gctx)
			if err != nil {
				errs[i] = err
				return nil // non-fatal
			}
			for j := range items {
				if items[j].SourceName == "" {
					items[j].SourceName = src.Name()
				}
			}
			results[i] = items

			s.logger.Debug().
				Str("source", src.Name()).
				Int("items", len(items)).
				Dur("duration", time.Since(start)).
				Msg("Source fetched")
			return nil
		})
	}
	_ = g.Wait()

	var batch []models.RawItem
	for i, src := range s.sources {
		if errs[i] != nil {
			report.SourcesFailed++
			report.FailedSources = append(report.FailedSources, src.Name())
			s.logger.Warn().Err(errs[i]).Str("source", src.Name()).Msg("Source fetch failed, skipping for this cycle")
			continue
		}
		batch = append(batch, results[i]...)
	}
	return batch
}

func (s *Service) validateItems(batch []models.RawItem, now time.Time, report *models.CycleReport) []models.RawItem {
	valid := make([]models.RawItem, 0, len(batch))
	for _, item := range batch {
		item.Title = strings.TrimSpace(item.Title)
		item.CanonicalURL = strings.TrimSpace(item.CanonicalURL)

		if err := s.validate.Struct(&item); err != nil {
			report.ItemsMalformed++
			s.logger.Debug().Err(err).Str("source", item.SourceName).Str("url", item.CanonicalURL).Msg("Malformed item dropped")
			continue
		}

		if item.PublishedAt.IsZero() {
			item.PublishedAt = now
		}
		if item.Provenance == "" {
			item.Provenance = models.ProvenanceLive
		}
		item.IngestedAt = now
		valid = append(valid, item)
	}
	return valid
}

func (s *Service) persistItems(ctx context.Context, fresh []models.RawItem, report *models.CycleReport) []*models.RawItem {
	accepted := make([]*models.RawItem, 0, len(fresh))
	for i := range fresh {
		stored, err := s.storage.ItemStorage().CreateItem(ctx, &fresh[i])
		if err != nil {
			report.ItemWriteFails++
			s.logger.Warn().Err(err).Str("url", fresh[i].CanonicalURL).Msg("Failed to persist item, dropping")
			continue
		}
		accepted = append(accepted, stored)
	}
	report.ItemsPersisted = len(accepted)
	return accepted
}

// discoverInstruments creates auto-discovered instruments for unknown
// identifiers found in this cycle's items
func (s *Service) discoverInstruments(ctx context.Context, accepted []*models.RawItem) int {
	reg, err := s.registry.Get(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Registry unavailable, skipping discovery")
		return 0
	}

	candidates := make(map[string]bool)
	for _, item := range accepted {
		if item.IsDemo() && !s.config.RankDemoItems {
			continue
		}
		for _, id := range s.detector.Discover(item.Text(), reg) {
			candidates[id] = true
		}
	}

	created := 0
	for id := range candidates {
		_, err := s.storage.InstrumentStorage().CreateInstrument(ctx, &models.Instrument{
			Identifier:  id,
			DisplayName: id,
			Provenance:  models.ProvenanceAutoDiscovered,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("identifier", id).Msg("Failed to create discovered instrument")
			continue
		}
		created++
	}

	if created > 0 {
		s.registry.Invalidate()
		s.logger.Info().Int("count", created).Msg("Instruments auto-discovered")
	}
	return created
}

// loadCorpus returns recent persisted items for ranking, falling back to
// this cycle's items when the store cannot be listed
func (s *Service) loadCorpus(ctx context.Context, accepted []*models.RawItem) []*models.RawItem {
	corpus, err := s.storage.ItemStorage().ListRecentItems(ctx, s.config.CorpusSize)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list recent items, ranking this cycle's items only")
		corpus = accepted
	}

	if s.config.RankDemoItems {
		return corpus
	}
	filtered := make([]*models.RawItem, 0, len(corpus))
	for _, item := range corpus {
		if !item.IsDemo() {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func (s *Service) scoreItems(corpus []*models.RawItem, reg *signals.Registry, now time.Time) []signals.ScoredItem {
	scored := make([]signals.ScoredItem, 0, len(corpus))
	for _, item := range corpus {
		text := item.Text()
		scored = append(scored, signals.ScoredItem{
			Item:        item,
			Instruments: s.detector.Detect(text, reg),
			Category:    s.categorizer.Categorize(item.Title, item.Body),
			Relevance:   s.scorer.Score(item, now),
			Sentiment:   s.sentiment.Estimate(text).Score,
			Breaking:    s.scorer.IsBreaking(text),
		})
	}
	return scored
}

func (s *Service) analyseSelections(ctx context.Context, selections []signals.CategorySelection, scored []signals.ScoredItem, reg *signals.Registry, now time.Time, report *models.CycleReport) {
	seen := make(map[string]bool)
	for _, selection := range selections {
		for _, pick := range selection.Picks {
			if seen[pick.Identifier] {
				continue
			}
			seen[pick.Identifier] = true
			report.SelectedInstruments = append(report.SelectedInstruments, pick.Identifier)

			inst := pick.Instrument
			if inst == nil {
				inst, _ = reg.Lookup(pick.Identifier)
			}
			if inst == nil {
				inst = &models.Instrument{Identifier: pick.Identifier}
			}

			if err := s.analyseInstrument(ctx, inst, scored, now); err != nil {
				report.AnalysisWriteFails++
				s.logger.Warn().Err(err).Str("instrument", pick.Identifier).Str("category", selection.Category).Msg("Analysis failed, skipping instrument")
				continue
			}
			report.AnalysesUpserted++
		}
	}
}

// analyseInstrument isolates one instrument: a panic is returned as an error
func (s *Service) analyseInstrument(ctx context.Context, inst *models.Instrument, scored []signals.ScoredItem, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during analysis: %v", r)
		}
	}()

	items := signals.InstrumentItems(inst.Identifier, scored, s.config.Aggregator.MaxItems)
	record := s.analyzer.Analyze(inst, items, now)
	if err := s.storage.AnalysisStorage().UpsertAnalysis(ctx, record); err != nil {
		return err
	}

	s.logger.Debug().
		Str("instrument", inst.Identifier).
		Float64("rating", record.PotentialRating).
		Str("direction", string(record.PredictedDirection)).
		Float64("confidence", record.Confidence).
		Int("items", len(items)).
		Msg("Analysis upserted")
	return nil
}

func (s *Service) storeReport(ctx context.Context, report *models.CycleReport) {
	data, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode cycle report")
		return
	}
	if err := s.storage.KeyValueStorage().Set(ctx, LastCycleReportKey, string(data), "Report of the most recent ingest cycle"); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to store cycle report")
	}
}
