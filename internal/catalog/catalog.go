// Package catalog implements the process-wide table registry: an explicit
// Catalog value owned by the database manager, rather than ambient global
// state. Tables borrow a reference to the catalog at registration and
// consult it only to resolve foreign-key targets and to find tables that
// reference them on delete or primary-key change.
package catalog

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/memrel/memrel/internal/row"
	"github.com/memrel/memrel/internal/schema"
)

// TableHandle is the slice of a Table[T] the catalog needs: enough to
// resolve FK targets and to check referencing rows, without the catalog
// knowing the table's element type.
type TableHandle interface {
	Name() string
	Schema() *schema.Schema
	ContainsPrimaryKey(key any) bool
	// SnapshotRows copies out every row under the table's own read lock, so
	// a referencing check never reaches into another table's private
	// storage.
	SnapshotRows() []row.Row
}

type refCacheEntry struct {
	version uint64
	tables  []TableHandle
}

// Catalog is a concurrent registry from row-type tag to the currently
// active table handle for that type.
type Catalog struct {
	tables  sync.Map // tag (string) -> TableHandle
	version atomic.Uint64

	rebuildMu sync.Mutex // serializes cache rebuild per catalog
	refCache  sync.Map   // target tag (string) -> *refCacheEntry
}

// New returns an empty Catalog.
func New() *Catalog { return &Catalog{} }

// Register installs or replaces the active table handle for a row type and
// bumps the catalog version so cached referencing sets are invalidated.
func (c *Catalog) Register(tag string, handle TableHandle) {
	c.tables.Store(tag, handle)
	c.version.Add(1)
}

// Deregister removes the active handle for a row type, e.g. when a table is
// dropped or its owning database disposed.
func (c *Catalog) Deregister(tag string) {
	c.tables.Delete(tag)
	c.version.Add(1)
}

// Lookup returns the current table handle for a row type, if any.
func (c *Catalog) Lookup(tag string) (TableHandle, bool) {
	v, ok := c.tables.Load(tag)
	if !ok {
		return nil, false
	}
	return v.(TableHandle), true
}

// Version returns the monotonically increasing registry version.
func (c *Catalog) Version() uint64 { return c.version.Load() }

// ReferencingTables returns every currently registered table whose schema
// declares a foreign-key column pointing at targetTag. The result is
// rebuilt only when the catalog version has advanced since the last build
// for this target; rebuilds are serialized by rebuildMu so concurrent
// callers don't race to scan the registry.
func (c *Catalog) ReferencingTables(targetTag string) []TableHandle {
	if cached, ok := c.refCache.Load(targetTag); ok {
		entry := cached.(*refCacheEntry)
		if entry.version == c.Version() {
			return entry.tables
		}
	}

	c.rebuildMu.Lock()
	defer c.rebuildMu.Unlock()

	// Another goroutine may have rebuilt while we waited for the lock.
	curVersion := c.Version()
	if cached, ok := c.refCache.Load(targetTag); ok {
		entry := cached.(*refCacheEntry)
		if entry.version == curVersion {
			return entry.tables
		}
	}

	var matches []TableHandle
	c.tables.Range(func(_, v any) bool {
		h := v.(TableHandle)
		for _, col := range h.Schema().Columns {
			if col.ForeignKey && strings.EqualFold(col.References, targetTag) {
				matches = append(matches, h)
				break
			}
		}
		return true
	})

	c.refCache.Store(targetTag, &refCacheEntry{version: curVersion, tables: matches})
	return matches
}
