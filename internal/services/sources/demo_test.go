package sources

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/models"
)

func newTestDemoSource(seed int64, now time.Time) *DemoSource {
	return NewDemoSource(common.DemoSourceConfig{Seed: seed, ItemsPerInstrument: 2}, arbor.NewLogger(),
		WithDemoClock(func() time.Time { return now }))
}

func TestDemoSource_Deterministic(t *testing.T) {
	ctx := context.Background()

	first, err := newTestDemoSource(42, fetchNow).Fetch(ctx)
	require.NoError(t, err)
	second, err := newTestDemoSource(42, fetchNow).Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := newTestDemoSource(7, fetchNow).Fetch(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	instA, err := newTestDemoSource(42, fetchNow).Instruments(ctx)
	require.NoError(t, err)
	instB, err := newTestDemoSource(42, fetchNow.Add(time.Hour)).Instruments(ctx)
	require.NoError(t, err)
	assert.Equal(t, instA, instB, "quotes are stable within a day")
}

func TestDemoSource_Items(t *testing.T) {
	src := newTestDemoSource(42, fetchNow)
	assert.Equal(t, DemoSourceName, src.Name())

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, len(demoProfiles)*2)

	seen := make(map[string]bool)
	for _, item := range items {
		assert.Equal(t, models.ProvenanceDemo, item.Provenance)
		assert.Equal(t, DemoSourceName, item.SourceName)
		assert.True(t, item.IsDemo())
		assert.NotEmpty(t, item.Title)
		assert.False(t, item.PublishedAt.After(fetchNow))

		u, err := url.Parse(item.CanonicalURL)
		require.NoError(t, err)
		assert.True(t, u.IsAbs())
		assert.False(t, seen[item.CanonicalURL], "duplicate url %s", item.CanonicalURL)
		seen[item.CanonicalURL] = true
	}

	// Items name their instrument so detection can attribute them
	assert.True(t, strings.Contains(items[0].Body, "(AAPL)"))
}

func TestDemoSource_NewCycleNewURLs(t *testing.T) {
	ctx := context.Background()

	first, err := newTestDemoSource(42, fetchNow).Fetch(ctx)
	require.NoError(t, err)
	later, err := newTestDemoSource(42, fetchNow.Add(30*time.Minute)).Fetch(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first[0].CanonicalURL, later[0].CanonicalURL)
}

func TestDemoSource_Instruments(t *testing.T) {
	instruments, err := newTestDemoSource(42, fetchNow).Instruments(context.Background())
	require.NoError(t, err)
	require.Len(t, instruments, len(demoProfiles))

	for _, inst := range instruments {
		assert.True(t, common.IsIdentifier(inst.Identifier), inst.Identifier)
		assert.Equal(t, models.ProvenanceDemo, inst.Provenance)
		assert.True(t, inst.HasPrice())
		require.NotNil(t, inst.MarketCap)
		assert.Greater(t, *inst.MarketCap, 0.0)
		require.NotNil(t, inst.PriceChangePercent)
		assert.InDelta(t, 0, *inst.PriceChangePercent, 10)
	}
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "Apple", shortName("Apple Inc."))
	assert.Equal(t, "Microsoft", shortName("Microsoft Corporation"))
	assert.Equal(t, "Ginkgo Bioworks", shortName("Ginkgo Bioworks Holdings Inc."))
	assert.Equal(t, "QUALCOMM", shortName("QUALCOMM Incorporated"))
}
