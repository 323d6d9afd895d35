package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/models"
)

// RSSSource reads headlines from an RSS or Atom feed
type RSSSource struct {
	name    string
	feedURL string
	fetcher *Fetcher
	parser  *gofeed.Parser
	now     func() time.Time
	logger  arbor.ILogger
}

// NewRSSSource creates a feed source; the name defaults to the feed host
func NewRSSSource(cfg common.RSSSourceConfig, fetcher *Fetcher, logger arbor.ILogger) *RSSSource {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = hostOf(cfg.URL)
	}
	return &RSSSource{
		name:    name,
		feedURL: cfg.URL,
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
		now:     time.Now,
		logger:  logger,
	}
}

func (s *RSSSource) Name() string {
	return s.name
}

// Fetch downloads and parses the feed
func (s *RSSSource) Fetch(ctx context.Context) ([]models.RawItem, error) {
	body, err := s.fetcher.Get(ctx, s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", s.name, err)
	}

	feed, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.name, err)
	}

	base, _ := url.Parse(s.feedURL)
	if feed.Link != "" {
		if link, err := url.Parse(feed.Link); err == nil && link.IsAbs() {
			base = link
		}
	}

	now := s.now()
	items := make([]models.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}

		item := models.RawItem{
			Title:        collapseSpace(entry.Title),
			Body:         cleanHTML(entry.Description),
			CanonicalURL: resolveURL(base, entry.Link),
			SourceName:   s.name,
			PublishedAt:  now,
			Provenance:   models.ProvenanceLive,
		}
		if item.Body == "" {
			item.Body = cleanHTML(entry.Content)
		}
		if item.CanonicalURL == "" && strings.HasPrefix(entry.GUID, "http") {
			item.CanonicalURL = entry.GUID
		}

		switch {
		case entry.PublishedParsed != nil:
			item.PublishedAt = *entry.PublishedParsed
		case entry.UpdatedParsed != nil:
			item.PublishedAt = *entry.UpdatedParsed
		}

		items = append(items, item)
	}

	s.logger.Debug().
		Str("source", s.name).
		Int("items", len(items)).
		Msg("Feed parsed")

	return items, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
