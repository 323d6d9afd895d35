package badger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/specula/internal/common"
)

// BadgerDB owns the badgerhold store shared by every specula storage
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
}

func storeOptions(config *common.BadgerConfig) badgerhold.Options {
	options := badgerhold.DefaultOptions
	options.Logger = nil
	options.Logger = nil

	if config.InMemory {
		options.Options = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
		return options
	}

	options.Dir = config.Path
	options.ValueDir = config.Path
	return options
}

// prepareDir wipes the store when reset_on_startup is set and makes sure the
// parent directory exists
func prepareDir(logger arbor.ILogger, config *common.BadgerConfig) error {
	if config.ResetOnStartup {
		if err := os.RemoveAll(config.Path); err != nil {
			logger.Warn().Err(err).Str("path", config.Path).Msg("Could not reset database")
		} else {
			logger.Debug().Str("path", config.Path).Msg("Database reset on startup")
		}
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// NewBadgerDB opens the store. Path is ignored for in-memory stores.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if !config.InMemory {
		if err := prepareDir(logger, config); err != nil {
			return nil, err
		}
	}

	store, err := badgerhold.Open(storeOptions(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %q: %w", config.Path, err)
	}

	logger.Debug().
		Str("path", config.Path).
		Bool("in_memory", config.InMemory).
		Msg("Badger database opened")

	return &BadgerDB{store: store, logger: logger, config: config}, nil
}

func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}
	return b.store.Close()
}
