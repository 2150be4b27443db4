package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memrel/memrel/internal/dbmanager"
	"github.com/memrel/memrel/internal/row"
)

func writeDescriptor(t *testing.T, root, dbName, tableName string, desc tableDescriptor) {
	t.Helper()
	dir := filepath.Join(root, dbName, "Tables")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(desc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, tableName+".json"), data, 0o644))
}

func TestLoad_MissingRootIsNotAnError(t *testing.T) {
	m := dbmanager.New()
	n, err := Load(m, filepath.Join(t.TempDir(), "Metadata"))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestLoad_InstallsTransientTableFromDescriptor(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "Orders", "Customer", tableDescriptor{
		DatabaseName: "Orders",
		TableName:    "Customer",
		Fields: []fieldDescriptor{
			{Name: "Id", DataType: "INT", AutoGenerated: true},
			{Name: "Name", DataType: "NVARCHAR", Length: 100},
			{Name: "Balance", DataType: "DECIMAL"},
			{Name: "Active", DataType: "BIT", AllowBlank: true},
		},
	})

	m := dbmanager.New()
	n, err := Load(m, root)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.True(t, m.Exists("Orders"))
	tbl, err := dbmanager.GetTable[*row.Dynamic](m, "Orders", "Customer")
	require.NoError(t, err)
	require.True(t, tbl.Transient())

	s := tbl.Schema()
	col, ok := s.ColumnByName("Name")
	require.True(t, ok)
	require.True(t, col.Required)

	col, ok = s.ColumnByName("Active")
	require.True(t, ok)
	require.False(t, col.Required)

	pk := s.PK()
	require.Equal(t, "Id", pk.Name)
	require.True(t, pk.AutoIncrement)

	_, err = tbl.InsertMap(map[string]any{"Name": "Ada", "Balance": "12.50", "Active": true})
	require.NoError(t, err)
	require.Len(t, tbl.AllRows(), 1)
}

func TestLoad_UnknownDataTypeErrors(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "Orders", "Bad", tableDescriptor{
		DatabaseName: "Orders",
		TableName:    "Bad",
		Fields: []fieldDescriptor{
			{Name: "Weird", DataType: "XML"},
		},
	})

	m := dbmanager.New()
	_, err := Load(m, root)
	require.Error(t, err)
}

func TestLoad_TransientTableSkippedBySnapshot(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, "Orders", "Customer", tableDescriptor{
		DatabaseName: "Orders",
		TableName:    "Customer",
		Fields: []fieldDescriptor{
			{Name: "Id", DataType: "INT", AutoGenerated: true},
			{Name: "Name", DataType: "NVARCHAR"},
		},
	})

	m := dbmanager.New()
	_, err := Load(m, root)
	require.NoError(t, err)

	data, err := m.SerializeDatabases()
	require.NoError(t, err)
	require.NotContains(t, data, "Customer")
}
