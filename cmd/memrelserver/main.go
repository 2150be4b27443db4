// Command memrelserver starts the TCP SQL server: a dbmanager.Manager
// holding one named database, an optional snapshot scheduler, and a
// server/gateway.Gateway fed by server/wire's length-prefixed TCP listener.
// Configuration comes from command-line flags, optionally overlaid with an
// -config YAML file (viper-backed, see config.go); an explicit flag always
// wins over the file.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/memrel/memrel/internal/dbmanager"
	"github.com/memrel/memrel/internal/scheduler"
	"github.com/memrel/memrel/metadata"
	"github.com/memrel/memrel/server/gateway"
	"github.com/memrel/memrel/server/wire"
)

func main() {
	var (
		addr               = flag.String("addr", "127.0.0.1:8866", "server address")
		dbName             = flag.String("db", "main", "name of the database to serve")
		dumpDir            = flag.String("dump-dir", "./data", "directory for snapshot dumps")
		snapshotInterval   = flag.Duration("snapshot-interval", 5*time.Minute, "interval between automatic snapshots")
		maxSnapshotHistory = flag.Int("max-snapshot-history", 5, "number of snapshots to retain")
		enableSnapshots    = flag.Bool("enable-snapshots", true, "run the periodic snapshot scheduler")
		restoreOnStart     = flag.Bool("restore-on-start", true, "restore the newest snapshot before serving")
		queueSize          = flag.Int("queue-size", 64, "gateway request queue depth")
		metadataDir        = flag.String("metadata-dir", "", "optional Metadata/<db>/Tables/*.json descriptor tree to bootstrap")
		configPath         = flag.String("config", "", "optional YAML config file; explicit flags still take precedence")
	)
	flag.Parse()

	if *configPath != "" {
		fc, err := loadFileConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		applyFileConfig(fc, addr, dbName, dumpDir, snapshotInterval, maxSnapshotHistory,
			enableSnapshots, restoreOnStart, queueSize, metadataDir)
	}

	if err := os.MkdirAll(*dumpDir, 0o755); err != nil {
		log.Fatalf("create dump dir: %v", err)
	}

	config := dbmanager.PersistenceConfig{
		DatabaseName:       *dbName,
		DumpDirectory:      *dumpDir,
		DumpFilePrefix:     *dbName,
		SnapshotInterval:   *snapshotInterval,
		MaxSnapshotHistory: *maxSnapshotHistory,
	}

	m := dbmanager.New()
	if _, err := m.CreateDatabaseWithConfig(config); err != nil {
		log.Fatalf("create database: %v", err)
	}

	registeredConfig, _ := m.ConfigFor(*dbName)
	sched, err := scheduler.New(m, registeredConfig)
	if err != nil {
		log.Fatalf("create scheduler: %v", err)
	}

	if *restoreOnStart {
		if sched.RestoreLatest() {
			slog.Info("memrelserver: restored latest snapshot", "database", *dbName)
		}
	}

	if *metadataDir != "" {
		n, err := metadata.Load(m, *metadataDir)
		if err != nil {
			log.Fatalf("load metadata: %v", err)
		}
		slog.Info("memrelserver: bootstrapped tables from metadata", "dir", *metadataDir, "count", n)
	}

	if *enableSnapshots {
		sched.Start()
		defer sched.Stop()
	}

	gw := gateway.New(gateway.ManagerResolver{Manager: m}, *queueSize)
	defer gw.Close()

	if err := wire.Run(wire.Config{Addr: *addr}, gw); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
