package ingest

import (
	"context"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/models"
)

// MinDedupWindow is the smallest number of recent items checked for duplicates
const MinDedupWindow = 200

// NormalizeURL lowercases scheme and host, trims whitespace and drops an
// in-page anchor fragment. Route fragments ("#/a", "#!/a") address distinct
// pages in hash-routed sites and are kept, as are path and query.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if !isRouteFragment(u.Fragment) {
		u.Fragment = ""
		u.RawFragment = ""
	}
	return u.String()
}

func isRouteFragment(fragment string) bool {
	return strings.HasPrefix(fragment, "/") || strings.HasPrefix(fragment, "!")
}

// DedupWindow returns max(configured, MinDedupWindow, 2*batch) so the lookback
// grows with ingestion rate
func DedupWindow(configured, batch int) int {
	window := configured
	if window < MinDedupWindow {
		window = MinDedupWindow
	}
	if 2*batch > window {
		window = 2 * batch
	}
	return window
}

// Deduplicator rejects items whose canonical URL was seen in the recent
// window of persisted items or earlier in the same batch. Older duplicates
// slip through.
type Deduplicator struct {
	items  interfaces.ItemStorage
	window int
	logger arbor.ILogger
}

// NewDeduplicator creates a deduplicator over the item store
func NewDeduplicator(items interfaces.ItemStorage, window int, logger arbor.ILogger) *Deduplicator {
	return &Deduplicator{items: items, window: window, logger: logger}
}

// Filter splits batch into fresh items and the count of duplicates.
// A failing store lookup degrades to in-batch dedup only.
func (d *Deduplicator) Filter(ctx context.Context, batch []models.RawItem) ([]models.RawItem, int) {
	window := DedupWindow(d.window, len(batch))
	seen := make(map[string]bool, window+len(batch))

	recent, err := d.items.ListRecentItems(ctx, window)
	if err != nil {
		d.logger.Warn().Err(err).Int("window", window).Msg("Dedup lookback failed, checking batch only")
	}
	for _, item := range recent {
		seen[NormalizeURL(item.CanonicalURL)] = true
	}

	fresh := make([]models.RawItem, 0, len(batch))
	duplicates := 0
	for _, item := range batch {
		key := NormalizeURL(item.CanonicalURL)
		if seen[key] {
			duplicates++
			continue
		}
		seen[key] = true
		fresh = append(fresh, item)
	}

	d.logger.Debug().
		Int("window", window).
		Int("recent", len(recent)).
		Int("fresh", len(fresh)).
		Int("duplicates", duplicates).
		Msg("Dedup complete")

	return fresh, duplicates
}
