package storage

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/storage/badger"
)

// Open creates the storage manager and loads source credentials into its KV
// store. Files under Variables.Dir load first so the .env file overrides them.
// Credential load failures are logged, not returned.
func Open(ctx context.Context, logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	manager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	if err := manager.LoadVariablesFromFiles(ctx, config.Variables.Dir); err != nil {
		logger.Warn().Err(err).Str("dir", config.Variables.Dir).Msg("Failed to load variables from files")
	}
	if err := manager.LoadEnvFile(ctx, config.Variables.EnvFile); err != nil {
		logger.Warn().Err(err).Str("path", config.Variables.EnvFile).Msg("Failed to load env file")
	}
	return manager, nil
}
