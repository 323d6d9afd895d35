package signals

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/models"
)

// minDisplayNameLength keeps very short display names out of substring matching
const minDisplayNameLength = 3

// Registry is an immutable snapshot of known instruments for one cycle
type Registry struct {
	byID    map[string]*models.Instrument
	names   map[string]string
	ordered []*models.Instrument
	builtAt time.Time
}

// NewRegistry indexes the given instruments. Entries whose identifier is not
// 1-5 letters are skipped.
func NewRegistry(instruments []*models.Instrument) *Registry {
	r := &Registry{
		byID:    make(map[string]*models.Instrument, len(instruments)),
		names:   make(map[string]string, len(instruments)),
		builtAt: time.Now(),
	}

	for _, inst := range instruments {
		if inst == nil {
			continue
		}
		id := strings.ToUpper(strings.TrimSpace(inst.Identifier))
		if !common.IsIdentifier(id) {
			continue
		}
		copied := *inst
		copied.Identifier = id
		r.byID[id] = &copied

		name := strings.ToLower(strings.TrimSpace(inst.DisplayName))
		if len(name) >= minDisplayNameLength && name != strings.ToLower(id) {
			r.names[name] = id
		}
	}

	r.ordered = make([]*models.Instrument, 0, len(r.byID))
	for _, inst := range r.byID {
		r.ordered = append(r.ordered, inst)
	}
	sort.Slice(r.ordered, func(i, j int) bool {
		return r.ordered[i].Identifier < r.ordered[j].Identifier
	})

	return r
}

// KnownIdentifiers returns the set of known identifiers
func (r *Registry) KnownIdentifiers() map[string]struct{} {
	out := make(map[string]struct{}, len(r.byID))
	for id := range r.byID {
		out[id] = struct{}{}
	}
	return out
}

// NameToIdentifier returns lowercased display name -> identifier
func (r *Registry) NameToIdentifier() map[string]string {
	out := make(map[string]string, len(r.names))
	for name, id := range r.names {
		out[name] = id
	}
	return out
}

// IsKnown reports whether id is a registered identifier
func (r *Registry) IsKnown(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Lookup returns the instrument for id
func (r *Registry) Lookup(id string) (*models.Instrument, bool) {
	inst, ok := r.byID[id]
	return inst, ok
}

// Instruments returns all instruments ordered by identifier
func (r *Registry) Instruments() []*models.Instrument {
	return append([]*models.Instrument(nil), r.ordered...)
}

// Len returns the number of instruments
func (r *Registry) Len() int {
	return len(r.byID)
}

// BuiltAt returns when the snapshot was built
func (r *Registry) BuiltAt() time.Time {
	return r.builtAt
}

// InstrumentLister is the part of the instrument store the cache needs
type InstrumentLister interface {
	ListInstruments(ctx context.Context) ([]*models.Instrument, error)
}

// RegistryCache holds the current Registry behind an atomic pointer.
// Rebuilds replace the whole snapshot; readers never see a partial one.
type RegistryCache struct {
	source  InstrumentLister
	current atomic.Pointer[Registry]
	stale   atomic.Bool
	mu      sync.Mutex // single writer
}

// NewRegistryCache creates an empty, stale cache over source
func NewRegistryCache(source InstrumentLister) *RegistryCache {
	c := &RegistryCache{source: source}
	c.stale.Store(true)
	return c
}

// Get returns the current snapshot, rebuilding first if it is stale
func (c *RegistryCache) Get(ctx context.Context) (*Registry, error) {
	if reg := c.current.Load(); reg != nil && !c.stale.Load() {
		return reg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have rebuilt while we waited
	if reg := c.current.Load(); reg != nil && !c.stale.Load() {
		return reg, nil
	}
	return c.rebuildLocked(ctx)
}

// Rebuild unconditionally rebuilds the snapshot from the store
func (c *RegistryCache) Rebuild(ctx context.Context) (*Registry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuildLocked(ctx)
}

func (c *RegistryCache) rebuildLocked(ctx context.Context) (*Registry, error) {
	// Cleared before listing so an Invalidate during the rebuild is kept
	c.stale.Store(false)

	instruments, err := c.source.ListInstruments(ctx)
	if err != nil {
		c.stale.Store(true)
		return nil, fmt.Errorf("failed to list instruments for registry: %w", err)
	}

	reg := NewRegistry(instruments)
	c.current.Store(reg)
	return reg, nil
}

// Invalidate marks the snapshot stale; the next Get rebuilds it
func (c *RegistryCache) Invalidate() {
	c.stale.Store(true)
}

// Snapshot returns the last built snapshot without rebuilding, or nil
func (c *RegistryCache) Snapshot() *Registry {
	return c.current.Load()
}
