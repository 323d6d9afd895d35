package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/models"
)

// extractor turns a page of headline blocks into raw items using CSS selectors
type extractor struct {
	cfg       common.PageSourceConfig
	name      string
	base      *url.URL
	converter *md.Converter
}

func newExtractor(cfg common.PageSourceConfig) (*extractor, error) {
	if strings.TrimSpace(cfg.ItemSelector) == "" {
		return nil, fmt.Errorf("page source %q: item_selector is required", cfg.Name)
	}
	base, err := url.Parse(cfg.URL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("page source %q: invalid url %q", cfg.Name, cfg.URL)
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = hostOf(cfg.URL)
	}

	return &extractor{
		cfg:       cfg,
		name:      name,
		base:      base,
		converter: md.NewConverter(base.Scheme+"://"+base.Host, true, nil),
	}, nil
}

// extract parses html; items missing a title or link are kept so validation can count them
func (e *extractor) extract(html []byte, now time.Time) ([]models.RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var items []models.RawItem
	doc.Find(e.cfg.ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		titleSel := sel
		if e.cfg.TitleSelector != "" {
			titleSel = sel.Find(e.cfg.TitleSelector).First()
		}
		title := collapseSpace(titleSel.Text())
		if title == "" {
			return
		}

		item := models.RawItem{
			Title:        title,
			CanonicalURL: resolveURL(e.base, e.link(sel)),
			SourceName:   e.name,
			PublishedAt:  now,
			Provenance:   models.ProvenanceLive,
		}

		if e.cfg.SummarySelector != "" {
			item.Body = e.summary(sel.Find(e.cfg.SummarySelector).First())
		}

		if e.cfg.TimeSelector != "" {
			ts := sel.Find(e.cfg.TimeSelector).First()
			raw, ok := ts.Attr("datetime")
			if !ok {
				raw = ts.Text()
			}
			if t, ok := parseTime(raw); ok {
				item.PublishedAt = t
			}
		}

		items = append(items, item)
	})

	return items, nil
}

func (e *extractor) link(sel *goquery.Selection) string {
	if e.cfg.LinkSelector != "" {
		href, _ := sel.Find(e.cfg.LinkSelector).First().Attr("href")
		return href
	}
	if href, ok := sel.Attr("href"); ok {
		return href
	}
	href, _ := sel.Find("a[href]").First().Attr("href")
	return href
}

func (e *extractor) summary(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	html, err := sel.Html()
	if err != nil {
		return collapseSpace(sel.Text())
	}
	text, err := e.converter.ConvertString(html)
	if err != nil {
		return collapseSpace(sel.Text())
	}
	return strings.TrimSpace(text)
}

// PageSource scrapes headlines from a static HTML page
type PageSource struct {
	extractor *extractor
	fetcher   *Fetcher
	now       func() time.Time
	logger    arbor.ILogger
}

// NewPageSource creates a page source; the config must name an item selector
func NewPageSource(cfg common.PageSourceConfig, fetcher *Fetcher, logger arbor.ILogger) (*PageSource, error) {
	ex, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}
	return &PageSource{
		extractor: ex,
		fetcher:   fetcher,
		now:       time.Now,
		logger:    logger,
	}, nil
}

func (s *PageSource) Name() string {
	return s.extractor.name
}

// Fetch downloads the page and extracts its headline blocks
func (s *PageSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	body, err := s.fetcher.Get(ctx, s.extractor.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", s.Name(), err)
	}

	items, err := s.extractor.extract(body, s.now())
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", s.Name(), err)
	}

	s.logger.Debug().
		Str("source", s.Name()).
		Int("items", len(items)).
		Msg("Page scraped")

	return items, nil
}
