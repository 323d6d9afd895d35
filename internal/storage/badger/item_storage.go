package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/models"
)

// ItemStorage implements the ItemStorage interface for Badger
type ItemStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewItemStorage creates a new ItemStorage instance
func NewItemStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ItemStorage {
	return &ItemStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ItemStorage) ListRecentItems(ctx context.Context, limit int) ([]*models.RawItem, error) {
	if limit <= 0 {
		return []*models.RawItem{}, nil
	}

	var items []models.RawItem
	query := badgerhold.Where("ID").Ne("").SortBy("IngestedAt", "ID").Reverse().Limit(limit)
	if err := s.db.Store().Find(&items, query); err != nil {
		return nil, fmt.Errorf("failed to list recent items: %w", err)
	}

	result := make([]*models.RawItem, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

// CreateItem stores a copy of item under a fresh ID. Items are never updated.
func (s *ItemStorage) CreateItem(ctx context.Context, item *models.RawItem) (*models.RawItem, error) {
	if item == nil {
		return nil, fmt.Errorf("item is required")
	}

	stored := *item
	stored.ID = common.NewItemID()
	if stored.IngestedAt.IsZero() {
		stored.IngestedAt = time.Now()
	}

	if err := s.db.Store().Insert(stored.ID, &stored); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return &stored, nil
}

func (s *ItemStorage) CountItems(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.RawItem{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return int(count), nil
}
