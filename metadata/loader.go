// Package metadata is the optional bootstrap collaborator: it walks a
// filesystem tree of table descriptors and installs each one as a transient
// table through the normal dbmanager API, without the caller writing a Go
// struct for the row type. Built on table.New's and schema.FromColumns's
// schemaOverride path, which exists for exactly this use, and on plain
// os/filepath directory discovery rather than anything more elaborate.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/memrel/memrel/internal/dbmanager"
	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/schema"
)

// fieldDescriptor is one column of a Table descriptor file.
type fieldDescriptor struct {
	Name          string `json:"Name"`
	DataType      string `json:"DataType"`
	Length        int    `json:"Length"`
	AllowBlank    bool   `json:"AllowBlank"`
	AutoGenerated bool   `json:"AutoGenerated"`
}

// tableDescriptor is the shape of one Metadata/<db>/Tables/*.json file.
type tableDescriptor struct {
	DatabaseName string            `json:"DatabaseName"`
	TableName    string            `json:"TableName"`
	Fields       []fieldDescriptor `json:"Fields"`
}

// dataTypeToLogical maps a descriptor's DataType string (one of INT,
// BIGINT, DECIMAL, BIT, DATE, DATETIME, NVARCHAR, VARCHAR,
// UNIQUEIDENTIFIER) to the column's logical type.
func dataTypeToLogical(dt string) (schema.LogicalType, error) {
	switch dt {
	case "INT":
		return schema.Integer, nil
	case "BIGINT":
		return schema.Long, nil
	case "DECIMAL":
		return schema.Decimal, nil
	case "BIT":
		return schema.Bool, nil
	case "DATE", "DATETIME":
		return schema.DateTime, nil
	case "NVARCHAR", "VARCHAR":
		return schema.String, nil
	case "UNIQUEIDENTIFIER":
		return schema.UUID, nil
	default:
		return 0, kernelerr.New(kernelerr.SchemaInvalid, "metadata: unknown DataType %q", dt)
	}
}

// columnsFrom builds a schema.Column list from a descriptor's Fields. A
// field marked AutoGenerated is treated as the table's auto-incrementing
// primary key, matching the identity-column convention the descriptor
// format otherwise leaves implicit (it carries no explicit primary-key
// marker of its own).
func columnsFrom(desc tableDescriptor) ([]schema.Column, error) {
	cols := make([]schema.Column, 0, len(desc.Fields))
	for _, f := range desc.Fields {
		lt, err := dataTypeToLogical(f.DataType)
		if err != nil {
			return nil, fmt.Errorf("table %s.%s: field %s: %w", desc.DatabaseName, desc.TableName, f.Name, err)
		}
		col := schema.Column{
			Name:     f.Name,
			Type:     lt,
			Required: !f.AllowBlank,
		}
		if f.AutoGenerated {
			col.PrimaryKey = true
			col.AutoIncrement = true
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// Load walks root/<dbName>/Tables/*.json for every dbName subdirectory of
// root (root is the "Metadata" directory itself) and installs each
// descriptor as a transient table via dbmanager.CreateDynamicTable,
// creating its database first if not already registered. Returns the
// number of tables installed. A missing root is not an error: the
// collaborator is optional.
func Load(m *dbmanager.Manager, root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("metadata: read %s: %w", root, err)
	}

	installed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		tablesDir := filepath.Join(root, e.Name(), "Tables")
		matches, err := filepath.Glob(filepath.Join(tablesDir, "*.json"))
		if err != nil {
			return installed, fmt.Errorf("metadata: glob %s: %w", tablesDir, err)
		}
		for _, path := range matches {
			n, err := loadOne(m, path)
			if err != nil {
				return installed, err
			}
			installed += n
		}
	}
	return installed, nil
}

func loadOne(m *dbmanager.Manager, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("metadata: read %s: %w", path, err)
	}

	var desc tableDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return 0, fmt.Errorf("metadata: parse %s: %w", path, err)
	}
	if desc.DatabaseName == "" || desc.TableName == "" {
		return 0, fmt.Errorf("metadata: %s: DatabaseName and TableName are required", path)
	}

	cols, err := columnsFrom(desc)
	if err != nil {
		return 0, fmt.Errorf("metadata: %s: %w", path, err)
	}

	tag := fmt.Sprintf("metadata:%s.%s", desc.DatabaseName, desc.TableName)
	s, err := schema.FromColumns(tag, cols)
	if err != nil {
		return 0, fmt.Errorf("metadata: %s: %w", path, err)
	}

	m.CreateDatabase(desc.DatabaseName)
	if _, err := dbmanager.CreateDynamicTable(m, desc.DatabaseName, desc.TableName, tag, s); err != nil {
		return 0, fmt.Errorf("metadata: %s: install table %s: %w", path, desc.TableName, err)
	}
	return 1, nil
}
