package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/specula/internal/models"
)

// ErrNotFound is returned when an instrument or analysis does not exist
var ErrNotFound = errors.New("not found")

// InstrumentStorage persists the instrument registry source of truth
type InstrumentStorage interface {
	// ListInstruments returns every known instrument ordered by identifier
	ListInstruments(ctx context.Context) ([]*models.Instrument, error)

	// GetInstrument returns ErrNotFound when the identifier is unknown
	GetInstrument(ctx context.Context, identifier string) (*models.Instrument, error)

	// CreateInstrument is idempotent by identifier: an existing record is returned unchanged
	CreateInstrument(ctx context.Context, instrument *models.Instrument) (*models.Instrument, error)

	// UpdateInstrument overwrites quote and classification data of an existing instrument
	UpdateInstrument(ctx context.Context, instrument *models.Instrument) error
}

// ItemStorage persists accepted raw items
type ItemStorage interface {
	// ListRecentItems returns up to limit items, most recently ingested first
	ListRecentItems(ctx context.Context, limit int) ([]*models.RawItem, error)

	// CreateItem assigns an ID and persists the item
	CreateItem(ctx context.Context, item *models.RawItem) (*models.RawItem, error)

	// CountItems returns the number of persisted items
	CountItems(ctx context.Context) (int, error)
}

// AnalysisStorage persists one analysis record per instrument
type AnalysisStorage interface {
	// GetAnalysis returns ErrNotFound when no analysis exists for the instrument
	GetAnalysis(ctx context.Context, instrumentID string) (*models.AnalysisRecord, error)

	// UpsertAnalysis creates or overwrites the record, bumping AnalysisDate
	UpsertAnalysis(ctx context.Context, record *models.AnalysisRecord) error

	// ListTopAnalyses returns records by rating then confidence, restricted to
	// upward predictions unless none exist
	ListTopAnalyses(ctx context.Context, limit int) ([]*models.AnalysisRecord, error)
}

// StorageManager groups the stores behind one database connection
type StorageManager interface {
	InstrumentStorage() InstrumentStorage
	ItemStorage() ItemStorage
	AnalysisStorage() AnalysisStorage
	KeyValueStorage() KeyValueStorage
	DB() interface{}
	Close() error

	// Seed the KV store with source credentials; missing files are skipped
	LoadVariablesFromFiles(ctx context.Context, dirPath string) error
	LoadEnvFile(ctx context.Context, filePath string) error
}
