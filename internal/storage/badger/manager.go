package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	instrument interfaces.InstrumentStorage
	item       interfaces.ItemStorage
	analysis   interfaces.AnalysisStorage
	kv         interfaces.KeyValueStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		instrument: NewInstrumentStorage(db, logger),
		item:       NewItemStorage(db, logger),
		analysis:   NewAnalysisStorage(db, logger),
		kv:         NewKVStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Bool("in_memory", config.InMemory).Msg("Badger storage manager initialized")

	return manager, nil
}

// InstrumentStorage returns the Instrument storage interface
func (m *Manager) InstrumentStorage() interfaces.InstrumentStorage {
	return m.instrument
}

// ItemStorage returns the Item storage interface
func (m *Manager) ItemStorage() interfaces.ItemStorage {
	return m.item
}

// AnalysisStorage returns the Analysis storage interface
func (m *Manager) AnalysisStorage() interfaces.AnalysisStorage {
	return m.analysis
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
