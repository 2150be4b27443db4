package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// fileConfig is the optional YAML config-file shape for memrelserver,
// loaded in place of (or as defaults for) the command-line flags. Every
// field is optional; a flag explicitly passed on the command line always
// wins over the file.
type fileConfig struct {
	Addr string `mapstructure:"addr"`
	DB   string `mapstructure:"db"`

	Persistence struct {
		DumpDir            string        `mapstructure:"dump_dir"`
		SnapshotInterval   time.Duration `mapstructure:"snapshot_interval"`
		MaxSnapshotHistory int           `mapstructure:"max_snapshot_history"`
		EnableSnapshots    bool          `mapstructure:"enable_snapshots"`
		RestoreOnStart     bool          `mapstructure:"restore_on_start"`
	} `mapstructure:"persistence"`

	QueueSize   int    `mapstructure:"queue_size"`
	MetadataDir string `mapstructure:"metadata_dir"`

	// enableSnapshotsSet/restoreOnStartSet record whether the corresponding
	// boolean key was actually present in the file, since a YAML-absent
	// bool and an explicit "false" both unmarshal to the zero value.
	enableSnapshotsSet bool
	restoreOnStartSet  bool
}

// loadFileConfig reads a YAML config file at path into a fileConfig.
func loadFileConfig(path string) (*fileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.enableSnapshotsSet = v.IsSet("persistence.enable_snapshots")
	cfg.restoreOnStartSet = v.IsSet("persistence.restore_on_start")
	return &cfg, nil
}

// applyFileConfig overlays fc onto the flag.Value pointers, skipping any
// flag the caller explicitly set on the command line so an explicit flag
// always beats the config file.
func applyFileConfig(fc *fileConfig, addr, dbName, dumpDir *string, snapshotInterval *time.Duration,
	maxSnapshotHistory *int, enableSnapshots, restoreOnStart *bool, queueSize *int, metadataDir *string,
) {
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	set := func(name string, apply func()) {
		if !explicit[name] {
			apply()
		}
	}

	if fc.Addr != "" {
		set("addr", func() { *addr = fc.Addr })
	}
	if fc.DB != "" {
		set("db", func() { *dbName = fc.DB })
	}
	if fc.Persistence.DumpDir != "" {
		set("dump-dir", func() { *dumpDir = fc.Persistence.DumpDir })
	}
	if fc.Persistence.SnapshotInterval > 0 {
		set("snapshot-interval", func() { *snapshotInterval = fc.Persistence.SnapshotInterval })
	}
	if fc.Persistence.MaxSnapshotHistory > 0 {
		set("max-snapshot-history", func() { *maxSnapshotHistory = fc.Persistence.MaxSnapshotHistory })
	}
	if fc.enableSnapshotsSet {
		set("enable-snapshots", func() { *enableSnapshots = fc.Persistence.EnableSnapshots })
	}
	if fc.restoreOnStartSet {
		set("restore-on-start", func() { *restoreOnStart = fc.Persistence.RestoreOnStart })
	}
	if fc.QueueSize > 0 {
		set("queue-size", func() { *queueSize = fc.QueueSize })
	}
	if fc.MetadataDir != "" {
		set("metadata-dir", func() { *metadataDir = fc.MetadataDir })
	}
}
