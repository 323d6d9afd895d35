package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/services/digest"
	"github.com/ternarybob/specula/internal/services/ingest"
	"github.com/ternarybob/specula/internal/services/mailer"
	"github.com/ternarybob/specula/internal/services/scheduler"
	"github.com/ternarybob/specula/internal/services/sources"
	"github.com/ternarybob/specula/internal/signals"
	"github.com/ternarybob/specula/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	Rules   *signals.Rules
	Sources []interfaces.Source

	IngestService    *ingest.Service
	MailerService    *mailer.Service
	DigestService    *digest.Service
	SchedulerService interfaces.SchedulerService
}

// New initializes storage, keyword rules, sources and services.
// The scheduler is created but not started.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Int("sources", len(app.Sources)).
		Int("categories", len(app.Rules.Categories)).
		Msg("Application initialized")

	return app, nil
}

// initDatabase opens the badger-backed storage layer
func (a *App) initDatabase() error {
	storageManager, err := storage.Open(context.Background(), a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("path", a.Config.Storage.Badger.Path).
		Bool("in_memory", a.Config.Storage.Badger.InMemory).
		Msg("Storage layer initialized")
	return nil
}

// initServices wires rules, sources, the ingest service, the digest and the scheduler
func (a *App) initServices() error {
	rules, err := signals.LoadRules(a.Config.Signals.RulesFile)
	if err != nil {
		return err
	}
	a.Rules = rules

	a.Sources = sources.Build(a.Config, a.StorageManager.KeyValueStorage(), a.Logger)

	a.IngestService = ingest.NewService(
		a.StorageManager,
		a.Sources,
		a.Rules,
		ingest.NewConfig(a.Config),
		a.Logger,
		ingest.WithInstrumentProviders(sources.Providers(a.Config)...),
	)

	a.MailerService = mailer.NewService(a.Config.Digest.SMTP, a.StorageManager.KeyValueStorage(), a.Logger)
	a.DigestService = digest.NewService(a.StorageManager, a.MailerService, a.Config.Digest, a.Logger)

	var runner scheduler.CycleRunner = a.IngestService
	if a.Config.Digest.Enabled {
		runner = digest.NewNotifier(a.IngestService, a.DigestService, a.Logger)
	}

	a.SchedulerService = scheduler.NewService(
		runner,
		a.Logger,
		scheduler.WithRunOnStart(a.Config.Scheduler.RunOnStart),
	)

	return nil
}

// StartScheduler starts cron-driven cycles when the scheduler is enabled
func (a *App) StartScheduler() error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler disabled by configuration")
		return nil
	}
	return a.SchedulerService.Start(a.Config.Scheduler.Schedule)
}

// Close stops the scheduler and closes storage
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
