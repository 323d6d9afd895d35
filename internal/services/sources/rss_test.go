package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/models"
)

var fetchNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Market Wire</title>
  <link>https://news.example.com/</link>
  <description>Headlines</description>
  <item>
    <title>Acme Corp announces FDA approval</title>
    <link>https://news.example.com/acme</link>
    <description>&lt;p&gt;Shares &lt;b&gt;jump&lt;/b&gt; on the news&lt;/p&gt;</description>
    <pubDate>Mon, 19 Oct 2026 09:00:00 +0000</pubDate>
  </item>
  <item>
    <title>  Chipworks ships
      new GPU </title>
    <link>/chipworks</link>
  </item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Space Desk</title>
  <link href="https://space.example.com/"/>
  <updated>2026-10-19T07:00:00Z</updated>
  <id>urn:uuid:feed</id>
  <entry>
    <title>Orbital Dynamics books satellite contract</title>
    <link href="https://space.example.com/orbt"/>
    <id>urn:uuid:orbt</id>
    <updated>2026-10-19T07:00:00Z</updated>
    <content type="html">&lt;p&gt;Rocket &lt;em&gt;launch&lt;/em&gt; window opens&lt;/p&gt;</content>
  </entry>
</feed>`

func serveString(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRSSSource(name, url string) *RSSSource {
	src := NewRSSSource(common.RSSSourceConfig{Name: name, URL: url}, newTestFetcher(), arbor.NewLogger())
	src.now = func() time.Time { return fetchNow }
	return src
}

func TestRSSSource_FetchRSS(t *testing.T) {
	srv := serveString(t, "application/rss+xml", rssFeed)
	src := newTestRSSSource("Wire", srv.URL)

	assert.Equal(t, "Wire", src.Name())

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "Acme Corp announces FDA approval", first.Title)
	assert.Equal(t, "Shares jump on the news", first.Body)
	assert.Equal(t, "https://news.example.com/acme", first.CanonicalURL)
	assert.True(t, first.PublishedAt.Equal(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Wire", first.SourceName)
	assert.Equal(t, models.ProvenanceLive, first.Provenance)

	second := items[1]
	assert.Equal(t, "Chipworks ships new GPU", second.Title)
	assert.Equal(t, "https://news.example.com/chipworks", second.CanonicalURL)
	assert.Empty(t, second.Body)
	assert.True(t, second.PublishedAt.Equal(fetchNow), "missing dates fall back to now")
}

func TestRSSSource_FetchAtom(t *testing.T) {
	srv := serveString(t, "application/atom+xml", atomFeed)
	src := newTestRSSSource("", srv.URL)

	assert.Equal(t, "127.0.0.1", src.Name())

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Rocket launch window opens", items[0].Body)
	assert.Equal(t, "https://space.example.com/orbt", items[0].CanonicalURL)
	assert.True(t, items[0].PublishedAt.Equal(time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)))
}

func TestRSSSource_InvalidFeed(t *testing.T) {
	srv := serveString(t, "text/plain", "this is not a feed")

	_, err := newTestRSSSource("Broken", srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Broken")
}

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "already plain", "already plain"},
		{"tags stripped", "<p>Hello <b>world</b></p>", "Hello world"},
		{"whitespace collapsed", "<div>\n  a\n\n  b  </div>", "a b"},
		{"entities decoded", "R&amp;D spend", "R&D spend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanHTML(tt.in))
		})
	}
}
