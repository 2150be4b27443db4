package dbmanager

import (
	"time"

	"github.com/memrel/memrel/internal/kernelerr"
)

// PersistenceConfig is one database's optional persistence configuration:
// where to write snapshots, how often, and how many to retain.
type PersistenceConfig struct {
	DatabaseName            string
	DumpDirectory           string
	DumpFilePrefix          string
	EnableAutomaticSnapshots bool
	SnapshotInterval        time.Duration
	MaxSnapshotHistory      int
	AutoRestoreLatestDump   bool
}

// Validate enforces the structural constraints on a persistence configuration.
func (c PersistenceConfig) Validate() error {
	if trimName(c.DatabaseName) == "" {
		return kernelerr.New(kernelerr.InvalidArgument, "persistence config: databaseName is required")
	}
	if c.SnapshotInterval <= 0 {
		return kernelerr.New(kernelerr.InvalidArgument, "persistence config: snapshotInterval must be > 0")
	}
	if c.MaxSnapshotHistory < 1 {
		return kernelerr.New(kernelerr.InvalidArgument, "persistence config: maxSnapshotHistory must be >= 1")
	}
	return nil
}
