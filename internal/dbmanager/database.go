// Package dbmanager implements the database manager: named databases, each
// an ordered collection of tables sharing one process-wide catalog, plus
// the compressed-JSON snapshot codec and retention rule. Configuration is
// a plain validated struct (PersistenceConfig), and the manager is a named
// registry of in-memory databases rather than a single disk-engine-backed
// one.
package dbmanager

import (
	"strings"
	"sync"

	"github.com/memrel/memrel/internal/catalog"
	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/table"
)

// Database is a named, ordered collection of tables. Table lookup is by
// name using ordinal (byte-exact) equality after trimming surrounding
// whitespace.
type Database struct {
	name string

	mu     sync.RWMutex
	order  []string
	tables map[string]table.AnyTable
	cat    *catalog.Catalog
}

func newDatabase(name string, cat *catalog.Catalog) *Database {
	return &Database{
		name:   name,
		tables: map[string]table.AnyTable{},
		cat:    cat,
	}
}

func trimName(name string) string { return strings.TrimSpace(name) }

// Name returns the database's registered name.
func (d *Database) Name() string { return d.name }

// GetTable returns the AnyTable handle for name, if present.
func (d *Database) GetTable(name string) (table.AnyTable, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.tables[trimName(name)]
	return h, ok
}

// Tables returns an independent snapshot of this database's table handles,
// in creation order.
func (d *Database) Tables() []table.AnyTable {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]table.AnyTable, 0, len(d.order))
	for _, n := range d.order {
		out = append(out, d.tables[n])
	}
	return out
}

// addTable installs a newly constructed table handle, failing with
// TableAlreadyExists on a name collision.
func (d *Database) addTable(name string, h table.AnyTable) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := trimName(name)
	if _, exists := d.tables[n]; exists {
		return kernelerr.New(kernelerr.TableAlreadyExists,
			"database %s: table %q already exists", d.name, name)
	}
	d.tables[n] = h
	d.order = append(d.order, n)
	return nil
}

// DropTable removes the named table, closing (and so deregistering from the
// catalog) whatever was there. Reports whether a table was removed.
func (d *Database) DropTable(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := trimName(name)
	h, ok := d.tables[n]
	if !ok {
		return false
	}
	h.Close()
	delete(d.tables, n)
	for i, on := range d.order {
		if on == n {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties every table in the database but keeps the database and its
// tables registered.
func (d *Database) Clear() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, h := range d.tables {
		h.Clear()
	}
}

// dispose closes every table, deregistering each from the shared catalog.
func (d *Database) dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.tables {
		h.Close()
	}
	d.tables = map[string]table.AnyTable{}
	d.order = nil
}
