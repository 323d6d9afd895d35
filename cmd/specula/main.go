package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/specula/internal/app"
	"github.com/ternarybob/specula/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	runOnce      = flag.Bool("once", false, "Run a single ingestion cycle, print the report and exit")
	topN         = flag.Int("top", 0, "Print the N highest rated analyses and exit")
	losersN      = flag.Int("losers", 0, "Print the N instruments with the largest daily drop and exit")
	industry     = flag.String("industry", "", "Industry or sector filter for -losers")
	showDigest   = flag.Bool("digest", false, "Print the digest of the current top analyses as markdown and exit")
	sendDigest   = flag.Bool("send-digest", false, "Mail the digest to the configured recipients and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Specula version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence:
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Initialize logger
	// 3. Print banner
	if len(configFiles) == 0 {
		if _, err := os.Stat("specula.toml"); err == nil {
			configFiles = append(configFiles, "specula.toml")
		} else if _, err := os.Stat("deployments/local/specula.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/specula.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		common.GetLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.LoadVersionFromFile())

	logger.Debug().
		Strs("config_files", configFiles).
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Bool("production", config.IsProduction()).
		Str("schedule", config.Scheduler.Schedule).
		Msg("Resolved configuration")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case *topN > 0:
		err = printTopAnalyses(ctx, application, *topN)
	case *losersN > 0:
		err = printTopLosers(ctx, application, *industry, *losersN)
	case *showDigest:
		err = printDigest(ctx, application)
	case *sendDigest:
		err = application.DigestService.Send(ctx)
	case *runOnce:
		err = runSingleCycle(ctx, application)
	default:
		err = serve(ctx, application)
	}

	if closeErr := application.Close(); closeErr != nil {
		logger.Error().Err(closeErr).Msg("Shutdown failed")
	}
	if err != nil {
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// serve runs the scheduler until SIGINT/SIGTERM
func serve(ctx context.Context, application *app.App) error {
	if err := application.StartScheduler(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	application.Logger.Info().Msg("Specula running - Press Ctrl+C to stop")
	<-ctx.Done()
	application.Logger.Info().Msg("Interrupt signal received")

	return nil
}
