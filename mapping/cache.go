package mapping

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/poiesic/termbridge/concepts"
	"github.com/poiesic/termbridge/similarity"
)

// View is one consistent read state: a generation together with the concept
// snapshot it answers for and the engine that scores pairs it lacks.
type View struct {
	Snapshot   *concepts.Snapshot
	Generation *Generation

	basis  Basis
	engine *similarity.Engine
}

// Cache holds the published view. Reads are lock-free; publishing and
// invalidation swap the whole view.
type Cache struct {
	current atomic.Pointer[View]
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewCache creates an empty cache.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{logger: logger.With("component", "mapping-cache")}
}

// Current returns the published view, or nil before the first publish.
func (c *Cache) Current() *View {
	return c.current.Load()
}

// Publish makes v the view every subsequent read observes.
func (c *Cache) Publish(v *View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(v)
	c.logger.Debug("published generation", "build_id", v.Generation.BuildID, "pairs", len(v.Generation.Entries))
}

// Invalidate moves the view to latest, dropping every entry that references
// a system whose concepts differ between the two snapshots. A view already
// on latest is left alone.
func (c *Cache) Invalidate(latest *concepts.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.current.Load()
	if v == nil || v.Snapshot == latest {
		return
	}
	changed := v.Snapshot.Diff(latest)
	next := *v
	next.Snapshot = latest
	next.Generation = v.Generation.Without(changed...)
	c.current.Store(&next)
	c.logger.Info("invalidated cache entries", "systems", changed, "remaining", len(next.Generation.Entries))
}
