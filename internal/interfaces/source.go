package interfaces

import (
	"context"

	"github.com/ternarybob/specula/internal/models"
)

// Source produces raw items for one ingestion cycle.
// A failing source is skipped for the cycle; it never aborts the others.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.RawItem, error)
}

// InstrumentProvider is implemented by sources that also know instrument
// profiles (sector, industry, market data) to seed into the registry
type InstrumentProvider interface {
	Instruments(ctx context.Context) ([]*models.Instrument, error)
}
