package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/meikuraledutech/workflow"
	"golang.org/x/sync/singleflight"
)

// Cache holds the component types fetched from a Source. It is populated
// once per session; a failed load leaves it empty and may be retried.
// After a successful load the contents never change.
type Cache struct {
	src    Source
	logger *slog.Logger
	group  singleflight.Group

	mu     sync.RWMutex
	loaded bool
	types  []ComponentType
	index  map[string]int
	err    error
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates an empty cache backed by src.
func New(src Source, opts ...Option) *Cache {
	c := &Cache{
		src:    src,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewStatic creates a cache that is already loaded with types.
func NewStatic(types ...ComponentType) (*Cache, error) {
	c := New(nil)
	if err := c.install(types); err != nil {
		return nil, err
	}
	return c, nil
}

// Load fetches the catalog if it has not been loaded yet. Concurrent
// callers share a single fetch. Failures are reported as
// CATALOG_UNAVAILABLE.
func (c *Cache) Load(ctx context.Context) ([]ComponentType, error) {
	c.mu.RLock()
	if c.loaded {
		defer c.mu.RUnlock()
		return c.snapshot(), nil
	}
	c.mu.RUnlock()

	_, err, _ := c.group.Do("load", func() (any, error) {
		c.mu.RLock()
		done := c.loaded
		c.mu.RUnlock()
		if done {
			return nil, nil
		}
		if c.src == nil {
			return nil, c.fail(fmt.Errorf("no catalog source configured"))
		}
		types, err := c.src.Load(ctx)
		if err != nil {
			return nil, c.fail(err)
		}
		if err := c.install(types); err != nil {
			return nil, c.fail(err)
		}
		c.logger.Info("component catalog loaded", "count", len(types))
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot(), nil
}

func (c *Cache) fail(cause error) error {
	err := workflow.Errorf(workflow.ErrCatalogUnavailable, "component catalog unavailable: "+cause.Error(), cause, nil)
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.logger.Warn("component catalog load failed", "error", cause)
	return err
}

func (c *Cache) install(types []ComponentType) error {
	index := make(map[string]int, len(types))
	list := make([]ComponentType, len(types))
	for i, t := range types {
		if _, dup := index[t.TypeID]; dup {
			return fmt.Errorf("duplicate component type %q", t.TypeID)
		}
		index[t.TypeID] = i
		list[i] = t.Clone()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = list
	c.index = index
	c.loaded = true
	c.err = nil
	return nil
}

func (c *Cache) snapshot() []ComponentType {
	out := make([]ComponentType, len(c.types))
	for i, t := range c.types {
		out[i] = t.Clone()
	}
	return out
}

// Loaded reports whether the catalog is available.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Err returns the last load failure, or nil.
func (c *Cache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Types returns the loaded component types in source order, or nil before
// a successful load.
func (c *Cache) Types() []ComponentType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil
	}
	return c.snapshot()
}

// Lookup returns the component type with typeID.
func (c *Cache) Lookup(typeID string) (ComponentType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return ComponentType{}, workflow.Errorf(workflow.ErrCatalogUnavailable, "", c.err, nil)
	}
	i, ok := c.index[typeID]
	if !ok {
		return ComponentType{}, workflow.Errorf(workflow.ErrComponentTypeNotFound,
			fmt.Sprintf("component type %q not found", typeID), nil, map[string]any{"type_id": typeID})
	}
	return c.types[i].Clone(), nil
}
