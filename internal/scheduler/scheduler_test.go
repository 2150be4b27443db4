package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memrel/memrel/internal/dbmanager"
)

type widget struct {
	ID   int32  `db:"id,pk,auto"`
	Name string `db:"name,required"`
}

func newWidgetShop(t *testing.T, m *dbmanager.Manager) *dbmanager.Database {
	t.Helper()
	db := m.CreateDatabase("shop")
	_, err := dbmanager.CreateTable[widget](m, "shop", "widgets", "widget")
	require.NoError(t, err)
	return db
}

func config(dir string) dbmanager.PersistenceConfig {
	return dbmanager.PersistenceConfig{
		DatabaseName:       "shop",
		DumpDirectory:      dir,
		DumpFilePrefix:     "shop",
		SnapshotInterval:   time.Minute,
		MaxSnapshotHistory: 5,
	}
}

func TestScheduler_TriggerWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	m := dbmanager.New()
	newWidgetShop(t, m)

	s, err := New(m, config(dir))
	require.NoError(t, err)

	s.Trigger()
	require.NoError(t, s.LastError())

	matches, err := filepath.Glob(filepath.Join(dir, "shop_*.json.gz"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestScheduler_TriggerSkipsWhenInFlight(t *testing.T) {
	dir := t.TempDir()
	m := dbmanager.New()
	newWidgetShop(t, m)

	s, err := New(m, config(dir))
	require.NoError(t, err)

	require.True(t, s.beginBackup())
	s.Trigger()
	s.endBackup()

	matches, err := filepath.Glob(filepath.Join(dir, "shop_*.json.gz"))
	require.NoError(t, err)
	require.Len(t, matches, 0)
}

func TestScheduler_RestoreLatestRestoresNewestBackup(t *testing.T) {
	dir := t.TempDir()
	m := dbmanager.New()
	m.CreateDatabase("shop")
	tbl, err := dbmanager.CreateTable[widget](m, "shop", "widgets", "widget")
	require.NoError(t, err)

	cfg := config(dir)
	s, err := New(m, cfg)
	require.NoError(t, err)

	_, err = tbl.Insert(widget{Name: "Alpha"})
	require.NoError(t, err)
	s.Trigger()
	require.NoError(t, s.LastError())

	_, err = tbl.Insert(widget{Name: "Beta"})
	require.NoError(t, err)
	s.Trigger()
	require.NoError(t, s.LastError())

	m2 := dbmanager.New()
	dbmanager.RegisterRowType[widget](m2, "widget")
	s2, err := New(m2, cfg)
	require.NoError(t, err)

	require.True(t, s2.RestoreLatest())

	got, err := dbmanager.GetTable[widget](m2, "shop", "widgets")
	require.NoError(t, err)
	rows := got.AsSequence()
	require.Len(t, rows, 2)
	require.Equal(t, "Alpha", rows[0].Name)
	require.Equal(t, "Beta", rows[1].Name)
}

func TestScheduler_RestoreLatestNoFilesReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	m := dbmanager.New()

	s, err := New(m, config(dir))
	require.NoError(t, err)

	require.False(t, s.RestoreLatest())
}

func TestScheduler_StartStop(t *testing.T) {
	dir := t.TempDir()
	m := dbmanager.New()
	newWidgetShop(t, m)

	s, err := New(m, config(dir))
	require.NoError(t, err)

	s.Start()
	s.Start()
	s.Stop()
}
