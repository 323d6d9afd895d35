package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/models"
)

func TestBuild(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Sources.RSS = []common.RSSSourceConfig{
		{Name: "Wire", URL: "https://news.example.com/rss"},
		{Name: "No URL"},
	}
	cfg.Sources.Pages = []common.PageSourceConfig{
		{Name: "Markets", URL: "https://example.com/markets", ItemSelector: "article"},
		{Name: "Broken", URL: "https://example.com/broken"},
		{Name: "Live", URL: "https://example.com/live", ItemSelector: "li", Render: true},
	}
	cfg.Sources.IMAP.Enabled = true
	cfg.Sources.EODHD = common.EODHDSourceConfig{Enabled: true, APIKey: "demo", Symbols: []string{"ACME"}}
	cfg.Sources.Demo.Enabled = true

	built := Build(cfg, nil, arbor.NewLogger())

	names := make([]string, 0, len(built))
	for _, src := range built {
		names = append(names, src.Name())
	}
	assert.Equal(t, []string{"Wire", "Markets", "Live", "Newsletter", "EODHD", DemoSourceName}, names)

	assert.IsType(t, &RSSSource{}, built[0])
	assert.IsType(t, &PageSource{}, built[1])
	assert.IsType(t, &RenderedPageSource{}, built[2])
	assert.IsType(t, &IMAPSource{}, built[3])
	assert.IsType(t, &EODHDSource{}, built[4])

	_, isProvider := built[5].(interfaces.InstrumentProvider)
	assert.True(t, isProvider, "demo source seeds instruments")
}

func TestBuild_Empty(t *testing.T) {
	cfg := common.NewDefaultConfig()
	assert.Empty(t, Build(cfg, nil, arbor.NewLogger()))
	assert.Nil(t, Providers(cfg))

	cfg.Sources.EODHD.Enabled = true
	assert.Empty(t, Build(cfg, nil, arbor.NewLogger()), "eodhd without api key is skipped")
}

func TestStaticProvider(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Instruments = []common.InstrumentConfig{
		{Identifier: "NYSE:acme", DisplayName: "Acme Corp", Sector: "Healthcare", Industry: "Biotechnology", MarketCap: 5e9, CurrentPrice: 100},
		{Identifier: "orbt"},
		{Identifier: "not-valid"},
	}

	providers := Providers(cfg)
	require.Len(t, providers, 1)

	instruments, err := providers[0].Instruments(context.Background())
	require.NoError(t, err)
	require.Len(t, instruments, 2)

	acme := instruments[0]
	assert.Equal(t, "ACME", acme.Identifier)
	assert.Equal(t, "NYSE", acme.Exchange)
	assert.Equal(t, models.ProvenanceRegistered, acme.Provenance)
	require.NotNil(t, acme.MarketCap)
	assert.Equal(t, 5e9, *acme.MarketCap)
	assert.True(t, acme.HasPrice())

	orbt := instruments[1]
	assert.Equal(t, "ORBT", orbt.DisplayName)
	assert.Nil(t, orbt.MarketCap)
	assert.Nil(t, orbt.CurrentPrice)
}
