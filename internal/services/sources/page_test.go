package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
)

const headlinePage = `<html><body>
<div class="story">
  <h2><a href="/news/acme">Acme Corp wins FDA approval</a></h2>
  <p class="dek">The <strong>drug</strong> treats rare disease</p>
  <time datetime="2026-10-19T08:30:00Z">Oct 19</time>
</div>
<div class="story">
  <h2><a href="https://other.example.org/orbt">Orbital Dynamics books satellite contract</a></h2>
</div>
<div class="story"><h2>  </h2></div>
</body></html>`

func storyConfig(url string) common.PageSourceConfig {
	return common.PageSourceConfig{
		Name:            "Markets",
		URL:             url,
		ItemSelector:    "div.story",
		TitleSelector:   "h2",
		SummarySelector: "p.dek",
		TimeSelector:    "time",
	}
}

func TestPageSource_Fetch(t *testing.T) {
	srv := serveString(t, "text/html", headlinePage)

	src, err := NewPageSource(storyConfig(srv.URL+"/markets"), newTestFetcher(), arbor.NewLogger())
	require.NoError(t, err)
	src.now = func() time.Time { return fetchNow }

	assert.Equal(t, "Markets", src.Name())

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2, "blocks without a title are skipped")

	first := items[0]
	assert.Equal(t, "Acme Corp wins FDA approval", first.Title)
	assert.Equal(t, srv.URL+"/news/acme", first.CanonicalURL)
	assert.Contains(t, first.Body, "drug")
	assert.Contains(t, first.Body, "treats rare disease")
	assert.True(t, first.PublishedAt.Equal(time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)))
	assert.Equal(t, "Markets", first.SourceName)

	second := items[1]
	assert.Equal(t, "https://other.example.org/orbt", second.CanonicalURL)
	assert.Empty(t, second.Body)
	assert.True(t, second.PublishedAt.Equal(fetchNow))
}

func TestExtractor_LinkSelection(t *testing.T) {
	html := []byte(`<html><body>
<a class="headline" href="item-1">Chipworks ships new GPU</a>
<li class="row"><span>Rocket launch delayed</span><a href="/x">more</a><a class="primary" href="/rocket">read</a></li>
</body></html>`)

	t.Run("item is the anchor", func(t *testing.T) {
		ex, err := newExtractor(common.PageSourceConfig{URL: "https://example.com/tech/", ItemSelector: "a.headline"})
		require.NoError(t, err)

		items, err := ex.extract(html, fetchNow)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "https://example.com/tech/item-1", items[0].CanonicalURL)
		assert.Equal(t, "example.com", items[0].SourceName)
	})

	t.Run("first anchor by default", func(t *testing.T) {
		ex, err := newExtractor(common.PageSourceConfig{URL: "https://example.com/", ItemSelector: "li.row", TitleSelector: "span"})
		require.NoError(t, err)

		items, err := ex.extract(html, fetchNow)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Rocket launch delayed", items[0].Title)
		assert.Equal(t, "https://example.com/x", items[0].CanonicalURL)
	})

	t.Run("explicit link selector", func(t *testing.T) {
		ex, err := newExtractor(common.PageSourceConfig{URL: "https://example.com/", ItemSelector: "li.row", TitleSelector: "span", LinkSelector: "a.primary"})
		require.NoError(t, err)

		items, err := ex.extract(html, fetchNow)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "https://example.com/rocket", items[0].CanonicalURL)
	})
}

func TestNewExtractor_Validation(t *testing.T) {
	_, err := newExtractor(common.PageSourceConfig{Name: "a", URL: "https://example.com"})
	assert.Error(t, err, "item selector is required")

	_, err = newExtractor(common.PageSourceConfig{Name: "b", URL: "not a url", ItemSelector: "li"})
	assert.Error(t, err, "url must be absolute")
}

func TestNewRenderedPageSource(t *testing.T) {
	cfg := storyConfig("https://example.com/live")
	cfg.Render = true

	src, err := NewRenderedPageSource(cfg, common.SourcesConfig{RequestTimeout: "10s"}, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, "Markets", src.Name())
	assert.Equal(t, defaultRenderWait, src.wait)
	assert.Equal(t, 10*time.Second+defaultRenderWait, src.timeout)

	cfg.RenderWait = "500ms"
	src, err = NewRenderedPageSource(cfg, common.SourcesConfig{}, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, src.wait)

	cfg.RenderWait = "soon"
	_, err = NewRenderedPageSource(cfg, common.SourcesConfig{}, arbor.NewLogger())
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-10-19T08:30:00Z", time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC), true},
		{"Mon, 19 Oct 2026 08:30:00 +0000", time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC), true},
		{"2026-10-19", time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, got.Equal(tt.want))
		})
	}
}
