package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/models"
)

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.InMemory = true
	cfg.Scheduler.Enabled = false
	cfg.Sources.Demo.Enabled = true
	cfg.Variables = common.VariablesConfig{}
	cfg.Instruments = []common.InstrumentConfig{
		{Identifier: "ACME", DisplayName: "Acme Corp", Industry: "Biotechnology", CurrentPrice: 100},
	}
	return cfg
}

func TestNew_RunsDemoCycle(t *testing.T) {
	a, err := New(testConfig(), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.Sources, 1)
	assert.Equal(t, "demo", a.Sources[0].Name())

	ctx := context.Background()
	report, err := a.IngestService.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SourcesTotal)
	assert.Zero(t, report.SourcesFailed)
	assert.Equal(t, 60, report.ItemsPersisted)

	acme, err := a.StorageManager.InstrumentStorage().GetInstrument(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, models.ProvenanceRegistered, acme.Provenance)

	_, err = a.StorageManager.InstrumentStorage().GetInstrument(ctx, "NVDA")
	require.NoError(t, err, "demo profiles are seeded")

	last, err := a.IngestService.LastReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.ItemsPersisted, last.ItemsPersisted)

	d, err := a.DigestService.Build(ctx)
	require.NoError(t, err)
	assert.Contains(t, d.Markdown, "# Specula top picks")
}

func TestNew_InvalidRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: [unclosed"), 0644))

	cfg := testConfig()
	cfg.Signals.RulesFile = path

	_, err := New(cfg, arbor.NewLogger())
	assert.Error(t, err)
}

func TestNew_LoadsSourceCredentials(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("EODHD_API_KEY=secret\nIMAP_HOST=imap.example.com\n"), 0644))

	cfg := testConfig()
	cfg.Variables.EnvFile = envFile
	cfg.Sources.EODHD.Enabled = true
	cfg.Sources.EODHD.Symbols = []string{"ACME"}

	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	host, err := a.StorageManager.KeyValueStorage().Get(context.Background(), "imap_host")
	require.NoError(t, err)
	assert.Equal(t, "imap.example.com", host)

	names := make([]string, 0, len(a.Sources))
	for _, src := range a.Sources {
		names = append(names, src.Name())
	}
	assert.Equal(t, []string{"EODHD", "demo"}, names)
}

func TestStartScheduler_Disabled(t *testing.T) {
	a, err := New(testConfig(), arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.StartScheduler())
	assert.False(t, a.SchedulerService.IsRunning())
}

func TestStartScheduler_Enabled(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Schedule = "0 0 1 1 *"
	cfg.Scheduler.RunOnStart = false

	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)

	require.NoError(t, a.StartScheduler())
	assert.True(t, a.SchedulerService.IsRunning())

	require.NoError(t, a.Close())
	assert.False(t, a.SchedulerService.IsRunning())
}
