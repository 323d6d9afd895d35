package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/specula/internal/interfaces"
)

// KVStorage stores settings as KeyValuePair records keyed by lowercase key
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStorage {
	return &KVStorage{db: db, logger: logger}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (s *KVStorage) load(key string) (*interfaces.KeyValuePair, error) {
	var pair interfaces.KeyValuePair
	err := s.db.Store().Get(key, &pair)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return &pair, nil
}

func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	pair, err := s.load(normalizeKey(key))
	if err != nil {
		return "", err
	}
	return pair.Value, nil
}

func (s *KVStorage) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	return s.load(normalizeKey(key))
}

func (s *KVStorage) Set(ctx context.Context, key, value, description string) error {
	_, err := s.Upsert(ctx, key, value, description)
	return err
}

// Upsert writes the pair and reports whether the key is new
func (s *KVStorage) Upsert(ctx context.Context, key, value, description string) (bool, error) {
	key = normalizeKey(key)
	if key == "" {
		return false, fmt.Errorf("key is required")
	}

	now := time.Now()
	pair := interfaces.KeyValuePair{
		Key:         key,
		Value:       value,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	existing, err := s.load(key)
	switch {
	case errors.Is(err, interfaces.ErrKeyNotFound):
	case err != nil:
		return false, err
	default:
		pair.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(key, &pair); err != nil {
		return false, fmt.Errorf("failed to write key %s: %w", key, err)
	}

	created := existing == nil
	if created {
		s.logger.Debug().Str("key", key).Msg("Setting created")
	}
	return created, nil
}

func (s *KVStorage) Delete(ctx context.Context, key string) error {
	key = normalizeKey(key)
	err := s.db.Store().Delete(key, &interfaces.KeyValuePair{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (s *KVStorage) GetAll(ctx context.Context) (map[string]string, error) {
	var pairs []interfaces.KeyValuePair
	if err := s.db.Store().Find(&pairs, nil); err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}

	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		values[pair.Key] = pair.Value
	}
	return values, nil
}

func (s *KVStorage) ListByPrefix(ctx context.Context, prefix string) ([]interfaces.KeyValuePair, error) {
	prefix = normalizeKey(prefix)

	var pairs []interfaces.KeyValuePair
	query := badgerhold.Where("Key").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
		key, ok := ra.Field().(string)
		return ok && strings.HasPrefix(key, prefix), nil
	}).SortBy("Key")
	if err := s.db.Store().Find(&pairs, query); err != nil {
		return nil, fmt.Errorf("failed to list settings with prefix %s: %w", prefix, err)
	}
	return pairs, nil
}
