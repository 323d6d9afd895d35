package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/models"
)

// InstrumentStorage implements the InstrumentStorage interface for Badger
type InstrumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewInstrumentStorage creates a new InstrumentStorage instance
func NewInstrumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.InstrumentStorage {
	return &InstrumentStorage{
		db:     db,
		logger: logger,
	}
}

func normalizeIdentifier(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func (s *InstrumentStorage) ListInstruments(ctx context.Context) ([]*models.Instrument, error) {
	var instruments []models.Instrument
	if err := s.db.Store().Find(&instruments, badgerhold.Where("Identifier").Ne("").SortBy("Identifier")); err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}

	result := make([]*models.Instrument, len(instruments))
	for i := range instruments {
		result[i] = &instruments[i]
	}
	return result, nil
}

func (s *InstrumentStorage) GetInstrument(ctx context.Context, identifier string) (*models.Instrument, error) {
	var inst models.Instrument
	if err := s.db.Store().Get(normalizeIdentifier(identifier), &inst); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	return &inst, nil
}

// CreateInstrument inserts the instrument unless the identifier already exists,
// in which case the stored record is returned untouched
func (s *InstrumentStorage) CreateInstrument(ctx context.Context, instrument *models.Instrument) (*models.Instrument, error) {
	if instrument == nil {
		return nil, fmt.Errorf("instrument is required")
	}
	id := normalizeIdentifier(instrument.Identifier)
	if id == "" {
		return nil, fmt.Errorf("instrument identifier is required")
	}

	existing, err := s.GetInstrument(ctx, id)
	if err == nil {
		return existing, nil
	}
	if err != interfaces.ErrNotFound {
		return nil, err
	}

	inst := *instrument
	inst.Identifier = id
	now := time.Now()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	inst.UpdatedAt = now

	if err := s.db.Store().Insert(id, &inst); err != nil {
		// Lost a race with a concurrent create
		if err == badgerhold.ErrKeyExists {
			return s.GetInstrument(ctx, id)
		}
		return nil, fmt.Errorf("failed to create instrument: %w", err)
	}

	s.logger.Debug().Str("identifier", id).Str("provenance", inst.Provenance).Msg("Instrument created")
	return &inst, nil
}

func (s *InstrumentStorage) UpdateInstrument(ctx context.Context, instrument *models.Instrument) error {
	if instrument == nil {
		return fmt.Errorf("instrument is required")
	}
	id := normalizeIdentifier(instrument.Identifier)

	existing, err := s.GetInstrument(ctx, id)
	if err != nil {
		return err
	}

	inst := *instrument
	inst.Identifier = id
	inst.CreatedAt = existing.CreatedAt
	inst.UpdatedAt = time.Now()

	if err := s.db.Store().Update(id, &inst); err != nil {
		return fmt.Errorf("failed to update instrument: %w", err)
	}
	return nil
}
