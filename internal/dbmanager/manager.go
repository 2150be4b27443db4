package dbmanager

import (
	"sync"

	"github.com/memrel/memrel/internal/catalog"
	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/row"
	"github.com/memrel/memrel/internal/schema"
	"github.com/memrel/memrel/internal/table"
)

// rowFactory builds a fresh, empty table for a previously registered row
// type tag. Registered by RegisterRowType so a later LoadDatabase/
// DeserializeDatabases can reconstruct typed tables from an opaque
// TypeName string: round-tripping a dump requires the same registry of row
// types be registered again before loading.
type rowFactory func(name, tag string, cat *catalog.Catalog) (table.AnyTable, error)

// Manager owns the named-database registry, the persistence configuration
// registry, and the single process-wide Catalog shared by every database it
// manages.
type Manager struct {
	catalog *catalog.Catalog

	mu        sync.RWMutex
	order     []string
	databases map[string]*Database
	configs   map[string]PersistenceConfig
	factories map[string]rowFactory
}

// New returns an empty Manager with its own shared Catalog.
func New() *Manager {
	return &Manager{
		catalog:   catalog.New(),
		databases: map[string]*Database{},
		configs:   map[string]PersistenceConfig{},
		factories: map[string]rowFactory{},
	}
}

// Catalog returns the catalog shared by every database this manager owns.
func (m *Manager) Catalog() *catalog.Catalog { return m.catalog }

// CreateDatabase idempotently creates a database, returning the existing one
// if already present.
func (m *Manager) CreateDatabase(name string) *Database {
	n := trimName(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if db, ok := m.databases[n]; ok {
		return db
	}
	db := newDatabase(n, m.catalog)
	m.databases[n] = db
	m.order = append(m.order, n)
	return db
}

// CreateDatabaseWithConfig creates the database (idempotently) and installs
// config as its persistence configuration, replacing any prior
// configuration for the same name.
func (m *Manager) CreateDatabaseWithConfig(config PersistenceConfig) (*Database, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	db := m.CreateDatabase(config.DatabaseName)
	m.mu.Lock()
	m.configs[trimName(config.DatabaseName)] = config
	m.mu.Unlock()
	return db, nil
}

// DropDatabase removes and disposes the named database. Reports whether
// anything was removed.
func (m *Manager) DropDatabase(name string) bool {
	n := trimName(name)
	m.mu.Lock()
	db, ok := m.databases[n]
	if ok {
		delete(m.databases, n)
		delete(m.configs, n)
		for i, on := range m.order {
			if on == n {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if ok {
		db.dispose()
	}
	return ok
}

// Exists reports whether the named database is currently registered.
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.databases[trimName(name)]
	return ok
}

// Databases returns an independent snapshot of every registered database
// name, in registration order.
func (m *Manager) Databases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// getDatabase resolves a database by name, failing with DatabaseNotFound.
func (m *Manager) getDatabase(name string) (*Database, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	db, ok := m.databases[trimName(name)]
	if !ok {
		return nil, kernelerr.New(kernelerr.DatabaseNotFound, "database %q not found", name)
	}
	return db, nil
}

// GetDatabase resolves a database by name, failing with DatabaseNotFound.
// Exported for callers (the query gateway's database-selection step) that
// need a *Database handle without going through the typed CreateTable/
// GetTable helpers.
func (m *Manager) GetDatabase(name string) (*Database, error) {
	return m.getDatabase(name)
}

// DefaultDatabase resolves the database a caller should use when none was
// named explicitly: the first database registered on this manager. Fails
// with DatabaseNotFound if none has been registered.
func (m *Manager) DefaultDatabase() (*Database, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return nil, kernelerr.New(kernelerr.DatabaseNotFound, "no database registered")
	}
	return m.databases[m.order[0]], nil
}

// RegisterRowType records how to build an empty table for row type T under
// tag, so a snapshot load can reconstruct tables of this type without the
// caller re-stating it per table. CreateTable also calls this implicitly.
func RegisterRowType[T any](m *Manager, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[tag] = func(name, tag string, cat *catalog.Catalog) (table.AnyTable, error) {
		return table.New[T](name, tag, cat, false, nil)
	}
}

// CreateTable creates a table of row type T named name in database dbName,
// failing with TableAlreadyExists on a name collision or DatabaseNotFound if
// the database does not exist.
func CreateTable[T any](m *Manager, dbName, name, tag string) (*table.Table[T], error) {
	db, err := m.getDatabase(dbName)
	if err != nil {
		return nil, err
	}
	RegisterRowType[T](m, tag)

	t, err := table.New[T](name, tag, m.catalog, false, nil)
	if err != nil {
		return nil, err
	}
	if err := db.addTable(name, t); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// GetTable resolves a table by name within a database, failing with
// TableNotFound if absent or if its row type does not match T.
func GetTable[T any](m *Manager, dbName, name string) (*table.Table[T], error) {
	db, err := m.getDatabase(dbName)
	if err != nil {
		return nil, err
	}
	h, ok := db.GetTable(name)
	if !ok {
		return nil, kernelerr.New(kernelerr.TableNotFound, "database %q: table %q not found", dbName, name)
	}
	t, ok := h.(*table.Table[T])
	if !ok {
		return nil, kernelerr.New(kernelerr.TableNotFound,
			"database %q: table %q does not have the requested row type", dbName, name)
	}
	return t, nil
}

// DropTable removes every table named name from the database.
func (m *Manager) DropTable(dbName, name string) error {
	db, err := m.getDatabase(dbName)
	if err != nil {
		return err
	}
	db.DropTable(name)
	return nil
}

// ClearDatabase empties every table in the named database but keeps the
// database and its tables registered.
func (m *Manager) ClearDatabase(name string) error {
	db, err := m.getDatabase(name)
	if err != nil {
		return err
	}
	db.Clear()
	return nil
}

// CreateDynamicTable installs a transient table built directly from an
// explicit schema (schema.FromColumns) rather than reflecting over a Go
// struct: a descriptor-driven table has no backing struct type, so every
// row is a row.Dynamic. Mirrors CreateTable's name-collision/
// DatabaseNotFound behavior.
func CreateDynamicTable(m *Manager, dbName, name, tag string, s *schema.Schema) (*table.Table[*row.Dynamic], error) {
	db, err := m.getDatabase(dbName)
	if err != nil {
		return nil, err
	}

	t, err := table.New[*row.Dynamic](name, tag, m.catalog, true, s)
	if err != nil {
		return nil, err
	}
	if err := db.addTable(name, t); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// ConfigFor resolves a database's persistence configuration, if it was
// created via CreateDatabaseWithConfig. Exported so a caller that builds a
// scheduler for an already-registered database (rather than constructing
// the config itself, as cmd/memrelserver does) can look it up instead of
// threading it through separately.
func (m *Manager) ConfigFor(name string) (PersistenceConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[trimName(name)]
	return c, ok
}
