package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/models"
)

const defaultRenderWait = 2 * time.Second

// RenderedPageSource renders a JavaScript page in headless Chrome before extracting headlines
type RenderedPageSource struct {
	extractor *extractor
	wait      time.Duration
	timeout   time.Duration
	userAgent string
	now       func() time.Time
	logger    arbor.ILogger
}

// NewRenderedPageSource creates a rendered page source
func NewRenderedPageSource(cfg common.PageSourceConfig, sourcesCfg common.SourcesConfig, logger arbor.ILogger) (*RenderedPageSource, error) {
	ex, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}

	wait := defaultRenderWait
	if cfg.RenderWait != "" {
		d, err := time.ParseDuration(cfg.RenderWait)
		if err != nil {
			return nil, fmt.Errorf("page source %q: invalid render_wait: %w", cfg.Name, err)
		}
		wait = d
	}

	timeout, err := sourcesCfg.RequestTimeoutDuration()
	if err != nil {
		timeout = 30 * time.Second
	}

	return &RenderedPageSource{
		extractor: ex,
		wait:      wait,
		timeout:   timeout + wait,
		userAgent: sourcesCfg.UserAgent,
		now:       time.Now,
		logger:    logger,
	}, nil
}

func (s *RenderedPageSource) Name() string {
	return s.extractor.name
}

// Fetch starts a browser, waits for the page to render and extracts the DOM
func (s *RenderedPageSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if s.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.userAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		s.logger.Debug().Msgf(format, args...)
	}))
	defer browserCancel()

	runCtx, cancel := context.WithTimeout(browserCtx, s.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(s.extractor.cfg.URL),
		chromedp.Sleep(s.wait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("render page %s: %w", s.Name(), err)
	}

	items, err := s.extractor.extract([]byte(html), s.now())
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", s.Name(), err)
	}

	s.logger.Debug().
		Str("source", s.Name()).
		Int("items", len(items)).
		Msg("Rendered page scraped")

	return items, nil
}
