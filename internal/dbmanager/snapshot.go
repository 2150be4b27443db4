package dbmanager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/memrel/memrel/internal/kernelerr"
)

// tableSnapshot is the exact per-table JSON shape:
// {"TypeName": "<row type tag>", "Rows": [<row>, ...]}.
type tableSnapshot struct {
	TypeName string           `json:"TypeName"`
	Rows     []map[string]any `json:"Rows"`
}

type databaseSnapshot map[string]tableSnapshot
type managerSnapshot map[string]databaseSnapshot

func (m *Manager) snapshotOf(db *Database) databaseSnapshot {
	snap := databaseSnapshot{}
	for _, h := range db.Tables() {
		if h.Transient() {
			continue
		}
		snap[h.Name()] = tableSnapshot{TypeName: h.Schema().Tag, Rows: h.AllRows()}
	}
	return snap
}

func (m *Manager) snapshotAll() managerSnapshot {
	m.mu.RLock()
	names := make([]string, 0, len(m.databases))
	dbs := make([]*Database, 0, len(m.databases))
	for n, db := range m.databases {
		names = append(names, n)
		dbs = append(dbs, db)
	}
	m.mu.RUnlock()

	out := managerSnapshot{}
	for i, n := range names {
		out[n] = m.snapshotOf(dbs[i])
	}
	return out
}

// applySnapshot rebuilds a fresh Database from a databaseSnapshot, using
// each table's TypeName to find its registered row-type factory. Fails with
// SchemaInvalid if a row type in the snapshot has no registered factory:
// callers must RegisterRowType (or CreateTable) for every row type before
// loading a dump that contains it.
func (m *Manager) applySnapshot(name string, snap databaseSnapshot) (*Database, error) {
	db := newDatabase(trimName(name), m.catalog)
	for tableName, ts := range snap {
		m.mu.RLock()
		factory, ok := m.factories[ts.TypeName]
		m.mu.RUnlock()
		if !ok {
			db.dispose()
			return nil, kernelerr.New(kernelerr.SchemaInvalid,
				"row type %q has no registered factory; register it before loading", ts.TypeName)
		}
		t, err := factory(tableName, ts.TypeName, m.catalog)
		if err != nil {
			db.dispose()
			return nil, err
		}
		if len(ts.Rows) > 0 {
			if _, err := t.InsertMapRange(ts.Rows); err != nil {
				t.Close()
				db.dispose()
				return nil, err
			}
		}
		if err := db.addTable(tableName, t); err != nil {
			t.Close()
			db.dispose()
			return nil, err
		}
	}
	return db, nil
}

// SerializeDatabases returns the uncompressed JSON of every registered
// database.
func (m *Manager) SerializeDatabases() (string, error) {
	b, err := json.Marshal(m.snapshotAll())
	if err != nil {
		return "", kernelerr.Wrap(kernelerr.IOError, err, "serialize databases")
	}
	return string(b), nil
}

// DeserializeDatabases replaces every currently registered database with
// the contents of data, atomically: either every database in data loads
// successfully and replaces the registry, or none do. The restored
// databases are registered in name order.
func (m *Manager) DeserializeDatabases(data string) error {
	var snap managerSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "deserialize databases")
	}

	rebuilt := make(map[string]*Database, len(snap))
	order := make([]string, 0, len(snap))
	for name, dbSnap := range snap {
		db, err := m.applySnapshot(name, dbSnap)
		if err != nil {
			for _, d := range rebuilt {
				d.dispose()
			}
			return err
		}
		rebuilt[trimName(name)] = db
		order = append(order, trimName(name))
	}
	sort.Strings(order)

	m.mu.Lock()
	old := m.databases
	m.databases = rebuilt
	m.order = order
	m.mu.Unlock()
	for _, d := range old {
		d.dispose()
	}
	return nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// DumpDatabase writes one database as compressed JSON to the given path.
func (m *Manager) DumpDatabase(name, path string) error {
	db, err := m.getDatabase(name)
	if err != nil {
		return err
	}
	b, err := json.Marshal(m.snapshotOf(db))
	if err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "marshal database %q", name)
	}
	gz, err := gzipCompress(b)
	if err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "compress database %q", name)
	}
	if err := os.WriteFile(path, gz, 0o644); err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "write dump %q", path)
	}
	return nil
}

// DumpDatabaseWithConfig computes a timestamped filename
// {prefix}_YYYYMMDD_HHMMSS.json.gz in config.DumpDirectory, writes the
// database's dump there, then applies retention. Returns the path written.
func (m *Manager) DumpDatabaseWithConfig(config PersistenceConfig) (string, error) {
	ts := time.Now().UTC().Format("20060102_150405")
	fileName := fmt.Sprintf("%s_%s.json.gz", config.DumpFilePrefix, ts)
	path := filepath.Join(config.DumpDirectory, fileName)

	if err := m.DumpDatabase(config.DatabaseName, path); err != nil {
		return "", err
	}
	if err := m.TrimSnapshotHistory(config); err != nil {
		return path, err
	}
	return path, nil
}

// LoadDatabase creates or overwrites database name from a compressed JSON
// file at path.
func (m *Manager) LoadDatabase(name, path string) error {
	gz, err := os.ReadFile(path)
	if err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "read dump %q", path)
	}
	b, err := gzipDecompress(gz)
	if err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "decompress dump %q", path)
	}
	var snap databaseSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "unmarshal dump %q", path)
	}

	db, err := m.applySnapshot(name, snap)
	if err != nil {
		return err
	}

	m.mu.Lock()
	old, existed := m.databases[db.name]
	m.databases[db.name] = db
	if !existed {
		m.order = append(m.order, db.name)
	}
	m.mu.Unlock()
	if existed {
		old.dispose()
	}
	return nil
}

// SaveAllDatabases writes every registered database as compressed JSON to
// path.
func (m *Manager) SaveAllDatabases(path string) error {
	b, err := json.Marshal(m.snapshotAll())
	if err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "marshal databases")
	}
	gz, err := gzipCompress(b)
	if err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "compress databases")
	}
	if err := os.WriteFile(path, gz, 0o644); err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "write dump %q", path)
	}
	return nil
}

// LoadAllDatabases replaces every registered database with the compressed
// JSON file at path, atomically, per the same all-or-nothing rule as
// DeserializeDatabases.
func (m *Manager) LoadAllDatabases(path string) error {
	gz, err := os.ReadFile(path)
	if err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "read dump %q", path)
	}
	b, err := gzipDecompress(gz)
	if err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "decompress dump %q", path)
	}
	return m.DeserializeDatabases(string(b))
}

// TrimSnapshotHistory deletes the oldest files matching
// {prefix}_*.json.gz in config.DumpDirectory until at most
// config.MaxSnapshotHistory remain, ordered by modification time (UTC)
// descending. A MaxSnapshotHistory of 0 deletes every matching file.
func (m *Manager) TrimSnapshotHistory(config PersistenceConfig) error {
	pattern := filepath.Join(config.DumpDirectory, config.DumpFilePrefix+"_*.json.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return kernelerr.Wrap(kernelerr.IOError, err, "glob %q", pattern)
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	files := make([]fileInfo, 0, len(matches))
	for _, p := range matches {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: p, modTime: st.ModTime().UTC()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	if config.MaxSnapshotHistory >= len(files) {
		return nil
	}
	for _, f := range files[config.MaxSnapshotHistory:] {
		if err := os.Remove(f.path); err != nil {
			return kernelerr.Wrap(kernelerr.IOError, err, "remove %q", f.path)
		}
	}
	return nil
}
