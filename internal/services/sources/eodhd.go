package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/eodhd"
	"github.com/ternarybob/specula/internal/models"
)

// KeyEODHDAPIKey is the KV key consulted when no api_key is configured
const KeyEODHDAPIKey = "eodhd_api_key"

const (
	defaultEODHDSourceName = "EODHD"
	defaultEODHDExchange   = "US"
	eodhdNewsLookback      = 48 * time.Hour
)

// EODHDSource reads symbol news from EODHD and, when quote refresh is on,
// seeds the followed symbols with live quotes and company profiles.
type EODHDSource struct {
	name     string
	client   *eodhd.Client
	symbols  []common.Ticker
	exchange string
	limit    int
	quotes   bool
	now      func() time.Time
	logger   arbor.ILogger

	mu       sync.Mutex
	profiles map[string]*eodhd.GeneralInfo
}

// NewEODHDSource creates the source. Symbols that are not valid identifiers are dropped.
func NewEODHDSource(cfg common.EODHDSourceConfig, sourcesCfg common.SourcesConfig, logger arbor.ILogger, opts ...eodhd.ClientOption) *EODHDSource {
	name := strings.TrimSpace(cfg.SourceName)
	if name == "" {
		name = defaultEODHDSourceName
	}
	exchange := strings.ToUpper(strings.TrimSpace(cfg.Exchange))
	if exchange == "" {
		exchange = defaultEODHDExchange
	}

	parsed := common.ParseTickers(cfg.Symbols)
	if skipped := len(cfg.Symbols) - len(parsed); skipped > 0 {
		logger.Warn().Int("skipped", skipped).Strs("symbols", cfg.Symbols).Msg("Ignoring invalid EODHD symbols")
	}

	var symbols []common.Ticker
	seen := make(map[string]bool)
	for _, ticker := range parsed {
		if seen[ticker.Code] {
			continue
		}
		seen[ticker.Code] = true
		symbols = append(symbols, ticker)
	}

	timeout, _ := sourcesCfg.RequestTimeoutDuration()
	clientOpts := []eodhd.ClientOption{
		eodhd.WithBaseURL(cfg.BaseURL),
		eodhd.WithLogger(logger),
		eodhd.WithRetry(sourcesCfg.MaxRetries, 0),
	}
	if timeout > 0 {
		clientOpts = append(clientOpts, eodhd.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	clientOpts = append(clientOpts, opts...)

	return &EODHDSource{
		name:     name,
		client:   eodhd.NewClient(cfg.APIKey, clientOpts...),
		symbols:  symbols,
		exchange: exchange,
		limit:    cfg.NewsLimit,
		quotes:   cfg.RefreshQuotes,
		now:      time.Now,
		logger:   logger,
		profiles: make(map[string]*eodhd.GeneralInfo),
	}
}

func (s *EODHDSource) Name() string {
	return s.name
}

// symbol maps an identifier to EODHD's CODE.EXCHANGE form
func (s *EODHDSource) symbol(t common.Ticker) string {
	return t.Code + "." + s.exchange
}

// Fetch requests recent news for all followed symbols
func (s *EODHDSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	if len(s.symbols) == 0 {
		return nil, nil
	}

	symbols := make([]string, 0, len(s.symbols))
	for _, t := range s.symbols {
		symbols = append(symbols, s.symbol(t))
	}

	now := s.now()
	opts := []eodhd.QueryOption{eodhd.WithDateRange(now.Add(-eodhdNewsLookback), now)}
	if s.limit > 0 {
		opts = append(opts, eodhd.WithLimit(s.limit))
	}

	news, err := s.client.GetNews(ctx, symbols, opts...)
	if err != nil {
		return nil, fmt.Errorf("fetch news %s: %w", s.name, err)
	}

	items := make([]models.RawItem, 0, len(news))
	for _, article := range news {
		title := collapseSpace(article.Title)
		link := strings.TrimSpace(article.Link)
		if title == "" || link == "" {
			continue
		}
		item := models.RawItem{
			Title:        title,
			Body:         collapseSpace(article.Content),
			CanonicalURL: link,
			SourceName:   s.name,
			PublishedAt:  now,
			Provenance:   models.ProvenanceLive,
		}
		if !article.Date.IsZero() {
			item.PublishedAt = article.Date
		}
		items = append(items, item)
	}

	s.logger.Debug().
		Str("source", s.name).
		Int("items", len(items)).
		Msg("News fetched")

	return items, nil
}

// Instruments returns the followed symbols with their latest quote and profile.
// The last good profile is reused when a fundamentals lookup fails.
func (s *EODHDSource) Instruments(ctx context.Context) ([]*models.Instrument, error) {
	if !s.quotes || len(s.symbols) == 0 {
		return nil, nil
	}

	var (
		out     []*models.Instrument
		lastErr error
	)
	for _, t := range s.symbols {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		quote, err := s.client.GetRealTimeQuote(ctx, s.symbol(t))
		if err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Str("symbol", t.Code).Msg("Quote lookup failed")
			continue
		}

		inst := &models.Instrument{
			Identifier:  t.Code,
			DisplayName: t.Code,
			Exchange:    t.Exchange,
			Provenance:  models.ProvenanceRegistered,
		}
		if v := quote.Close.Float64(); v > 0 {
			inst.CurrentPrice = models.Float64Ptr(v)
		}
		if v := quote.PreviousClose.Float64(); v > 0 {
			inst.PreviousClose = models.Float64Ptr(v)
		}
		if inst.CurrentPrice != nil && inst.PreviousClose != nil {
			inst.PriceChangePercent = models.Float64Ptr(quote.ChangePercent.Float64())
		}

		if profile, marketCap := s.profile(ctx, t); profile != nil {
			if profile.Name != "" {
				inst.DisplayName = profile.Name
			}
			if inst.Exchange == "" {
				inst.Exchange = profile.Exchange
			}
			inst.Sector = firstNonEmpty(profile.GicSector, profile.Sector)
			inst.Industry = firstNonEmpty(profile.GicIndustry, profile.Industry)
			if marketCap > 0 {
				inst.MarketCap = models.Float64Ptr(marketCap)
			}
		}

		out = append(out, inst)
	}

	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("quotes %s: %w", s.name, lastErr)
	}
	return out, nil
}

// profile returns the company profile and the fetched market cap, zero when unknown
func (s *EODHDSource) profile(ctx context.Context, t common.Ticker) (*eodhd.GeneralInfo, float64) {
	s.mu.Lock()
	cached, ok := s.profiles[t.Code]
	s.mu.Unlock()

	fundamentals, err := s.client.GetFundamentals(ctx, s.symbol(t))
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", t.Code).Msg("Fundamentals lookup failed")
		if ok {
			return cached, 0
		}
		return nil, 0
	}

	marketCap := 0.0
	if fundamentals.Highlights != nil {
		marketCap = fundamentals.Highlights.MarketCapitalization.Float64()
		if marketCap == 0 {
			marketCap = fundamentals.Highlights.MarketCapitalizationMln.Float64() * 1e6
		}
	}
	if fundamentals.General == nil {
		return cached, marketCap
	}

	s.mu.Lock()
	s.profiles[t.Code] = fundamentals.General
	s.mu.Unlock()
	return fundamentals.General, marketCap
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
