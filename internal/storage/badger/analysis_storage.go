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

// AnalysisStorage implements the AnalysisStorage interface for Badger
type AnalysisStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAnalysisStorage creates a new AnalysisStorage instance
func NewAnalysisStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AnalysisStorage {
	return &AnalysisStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AnalysisStorage) GetAnalysis(ctx context.Context, instrumentID string) (*models.AnalysisRecord, error) {
	var rec models.AnalysisRecord
	if err := s.db.Store().Get(normalizeIdentifier(instrumentID), &rec); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &rec, nil
}

// UpsertAnalysis keeps CreatedAt of an existing record and always bumps AnalysisDate
func (s *AnalysisStorage) UpsertAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	if record == nil {
		return fmt.Errorf("analysis record is required")
	}
	id := normalizeIdentifier(record.InstrumentID)
	if id == "" {
		return fmt.Errorf("analysis instrument id is required")
	}

	now := time.Now()
	rec := *record
	rec.InstrumentID = id
	rec.CreatedAt = now
	if rec.AnalysisDate.IsZero() {
		rec.AnalysisDate = now
	}

	var existing models.AnalysisRecord
	err := s.db.Store().Get(id, &existing)
	switch {
	case err == nil:
		rec.CreatedAt = existing.CreatedAt
		if !rec.AnalysisDate.After(existing.AnalysisDate) {
			rec.AnalysisDate = now
		}
	case err != badgerhold.ErrNotFound:
		return fmt.Errorf("failed to check analysis existence: %w", err)
	}

	if err := s.db.Store().Upsert(id, &rec); err != nil {
		return fmt.Errorf("failed to upsert analysis: %w", err)
	}

	*record = rec
	return nil
}

// ListTopAnalyses prefers upward predictions and falls back to every record
// when none exist
func (s *AnalysisStorage) ListTopAnalyses(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	if limit <= 0 {
		return []*models.AnalysisRecord{}, nil
	}

	var records []models.AnalysisRecord
	query := badgerhold.Where("PredictedDirection").Eq(models.DirectionUp).
		SortBy("PotentialRating", "Confidence").Reverse().Limit(limit)
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list top analyses: %w", err)
	}

	if len(records) == 0 {
		query = badgerhold.Where("InstrumentID").Ne("").
			SortBy("PotentialRating", "Confidence").Reverse().Limit(limit)
		if err := s.db.Store().Find(&records, query); err != nil {
			return nil, fmt.Errorf("failed to list analyses: %w", err)
		}
	}

	result := make([]*models.AnalysisRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}

	if len(result) > 0 {
		s.logger.Debug().Int("count", len(result)).Str("top", strings.Join(identifiers(result), ",")).Msg("Listed top analyses")
	}
	return result, nil
}

func identifiers(records []*models.AnalysisRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.InstrumentID
	}
	return ids
}
