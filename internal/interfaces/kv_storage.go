package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by lookups and deletes of a missing key
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair is one stored setting. Keys are lowercase; credentials
// (imap_*, smtp_*, eodhd_api_key) and the last cycle report live here.
type KeyValuePair struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage is a case-insensitive settings store
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	GetPair(ctx context.Context, key string) (*KeyValuePair, error)
	Set(ctx context.Context, key, value, description string) error

	// Upsert reports whether the key was newly created. CreatedAt survives updates.
	Upsert(ctx context.Context, key, value, description string) (bool, error)
	Delete(ctx context.Context, key string) error
	GetAll(ctx context.Context) (map[string]string, error)

	// ListByPrefix returns matching pairs ordered by key
	ListByPrefix(ctx context.Context, prefix string) ([]KeyValuePair, error)
}
