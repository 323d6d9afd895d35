package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestInstrumentStorage_CreateIsIdempotent(t *testing.T) {
	store := newTestManager(t).InstrumentStorage()
	ctx := context.Background()

	created, err := store.CreateInstrument(ctx, &models.Instrument{
		Identifier:  " acme ",
		DisplayName: "Acme Corp",
		Provenance:  models.ProvenanceRegistered,
	})
	require.NoError(t, err)
	assert.Equal(t, "ACME", created.Identifier)
	assert.False(t, created.CreatedAt.IsZero())

	again, err := store.CreateInstrument(ctx, &models.Instrument{
		Identifier:  "ACME",
		DisplayName: "Something Else",
		Provenance:  models.ProvenanceAutoDiscovered,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", again.DisplayName)
	assert.Equal(t, models.ProvenanceRegistered, again.Provenance)

	all, err := store.ListInstruments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = store.CreateInstrument(ctx, &models.Instrument{Identifier: "  "})
	assert.Error(t, err)
}

func TestInstrumentStorage_ListOrderedAndUpdate(t *testing.T) {
	store := newTestManager(t).InstrumentStorage()
	ctx := context.Background()

	for _, id := range []string{"ORBT", "ACME", "CHPX"} {
		_, err := store.CreateInstrument(ctx, &models.Instrument{Identifier: id})
		require.NoError(t, err)
	}

	all, err := store.ListInstruments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ACME", all[0].Identifier)
	assert.Equal(t, "CHPX", all[1].Identifier)
	assert.Equal(t, "ORBT", all[2].Identifier)

	require.NoError(t, store.UpdateInstrument(ctx, &models.Instrument{
		Identifier:   "ACME",
		CurrentPrice: models.Float64Ptr(101.5),
		Industry:     "Biotechnology",
	}))
	got, err := store.GetInstrument(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got.CurrentPrice)
	assert.Equal(t, 101.5, *got.CurrentPrice)
	assert.Equal(t, "Biotechnology", got.Industry)

	_, err = store.GetInstrument(ctx, "NOPE")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.ErrorIs(t, store.UpdateInstrument(ctx, &models.Instrument{Identifier: "NOPE"}), interfaces.ErrNotFound)
}

func TestItemStorage_CreateAndListRecent(t *testing.T) {
	store := newTestManager(t).ItemStorage()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 4; i++ {
		item, err := store.CreateItem(ctx, &models.RawItem{
			Title:        "Headline",
			CanonicalURL: "https://news.example.com/a",
			IngestedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		assert.Contains(t, item.ID, "item_")
		ids = append(ids, item.ID)
	}
	assert.Len(t, map[string]bool{ids[0]: true, ids[1]: true, ids[2]: true, ids[3]: true}, 4, "ids are unique")

	count, err := store.CountItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	recent, err := store.ListRecentItems(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[3], recent[0].ID)
	assert.Equal(t, ids[2], recent[1].ID)

	none, err := store.ListRecentItems(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAnalysisStorage_Upsert(t *testing.T) {
	store := newTestManager(t).AnalysisStorage()
	ctx := context.Background()

	first := &models.AnalysisRecord{InstrumentID: "ACME", PotentialRating: 6, PredictedDirection: models.DirectionUp}
	require.NoError(t, store.UpsertAnalysis(ctx, first))
	created := first.CreatedAt

	second := &models.AnalysisRecord{InstrumentID: "acme", PotentialRating: 8, PredictedDirection: models.DirectionUp}
	require.NoError(t, store.UpsertAnalysis(ctx, second))

	got, err := store.GetAnalysis(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.PotentialRating)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.False(t, got.AnalysisDate.Before(first.AnalysisDate), "analysis date never moves backwards")

	_, err = store.GetAnalysis(ctx, "NOPE")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestAnalysisStorage_ListTopAnalyses(t *testing.T) {
	store := newTestManager(t).AnalysisStorage()
	ctx := context.Background()

	require.NoError(t, store.UpsertAnalysis(ctx, &models.AnalysisRecord{InstrumentID: "DOWN", PotentialRating: 9.5, PredictedDirection: models.DirectionDown}))

	// No upward records: every record qualifies
	top, err := store.ListTopAnalyses(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "DOWN", top[0].InstrumentID)

	require.NoError(t, store.UpsertAnalysis(ctx, &models.AnalysisRecord{InstrumentID: "ACME", PotentialRating: 7, Confidence: 0.4, PredictedDirection: models.DirectionUp}))
	require.NoError(t, store.UpsertAnalysis(ctx, &models.AnalysisRecord{InstrumentID: "ORBT", PotentialRating: 7, Confidence: 0.8, PredictedDirection: models.DirectionUp}))
	require.NoError(t, store.UpsertAnalysis(ctx, &models.AnalysisRecord{InstrumentID: "CHPX", PotentialRating: 8, Confidence: 0.2, PredictedDirection: models.DirectionUp}))

	top, err = store.ListTopAnalyses(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "CHPX", top[0].InstrumentID)
	assert.Equal(t, "ORBT", top[1].InstrumentID)
	assert.Equal(t, "ACME", top[2].InstrumentID)

	top, err = store.ListTopAnalyses(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestKVStorage(t *testing.T) {
	kv := newTestManager(t).KeyValueStorage()
	ctx := context.Background()

	created, err := kv.Upsert(ctx, "IMAP_Host", "imap.example.com", "mail server")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = kv.Upsert(ctx, "imap_host", "mail.example.com", "mail server")
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, kv.Set(ctx, "imap_username", "reader", ""))
	require.NoError(t, kv.Set(ctx, "last_cycle_report", "{}", ""))

	value, err := kv.Get(ctx, "imap_host")
	require.NoError(t, err)
	assert.Equal(t, "mail.example.com", value)

	pairs, err := kv.ListByPrefix(ctx, "IMAP_")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "imap_host", pairs[0].Key)
	assert.Equal(t, "imap_username", pairs[1].Key)

	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, kv.Delete(ctx, "imap_host"))
	_, err = kv.Get(ctx, "imap_host")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
	assert.ErrorIs(t, kv.Delete(ctx, "imap_host"), interfaces.ErrKeyNotFound)
}
