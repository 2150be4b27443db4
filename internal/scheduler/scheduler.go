// Package scheduler runs one database's periodic snapshot backups. It owns
// no storage of its own: every tick asks a *dbmanager.Manager to dump and
// prune, exactly as a caller invoking the synchronous Database/table layers
// directly would. Background failures are logged via log/slog rather than
// propagated, matching this module's ambient logging convention elsewhere.
// The mutex-guarded start/stop/in-flight lifecycle wraps a recurring tick
// driven by robfig/cron/v3's ConstantDelaySchedule rather than a bare
// time.Ticker.
package scheduler

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/memrel/memrel/internal/dbmanager"
)

// Scheduler periodically dumps one database to config.DumpDirectory and
// prunes old dumps beyond its configured retention.
type Scheduler struct {
	manager *dbmanager.Manager
	config  dbmanager.PersistenceConfig

	cron    *cron.Cron
	entryID cron.EntryID

	mu        sync.Mutex
	running   bool
	inFlight  bool
	lastError error
}

// New validates config and constructs a Scheduler bound to manager. It does
// not start the timer; call Start.
func New(manager *dbmanager.Manager, config dbmanager.PersistenceConfig) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{manager: manager, config: config}, nil
}

// Start begins the periodic timer, driven by a cron.ConstantDelaySchedule
// built from config.SnapshotInterval. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	c := cron.New()
	entryID := c.Schedule(cron.ConstantDelaySchedule{Delay: s.config.SnapshotInterval}, cron.FuncJob(s.tick))
	c.Start()

	s.cron = c
	s.entryID = entryID
	s.running = true
}

// Stop halts the timer and blocks until any in-flight tick completes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// tick is the cron job body: skip if a backup is already running, otherwise
// dump the database and prune history. Failures are logged, never returned
// to a caller that has no way to act on a background failure anyway.
func (s *Scheduler) tick() {
	if !s.beginBackup() {
		slog.Debug("scheduler: tick skipped, backup already in flight", "database", s.config.DatabaseName)
		return
	}
	defer s.endBackup()

	path, err := s.manager.DumpDatabaseWithConfig(s.config)
	if err != nil {
		slog.Warn("scheduler: snapshot failed", "database", s.config.DatabaseName, "err", err)
		s.mu.Lock()
		s.lastError = err
		s.mu.Unlock()
		return
	}
	slog.Info("scheduler: snapshot written", "database", s.config.DatabaseName, "path", path)
}

func (s *Scheduler) beginBackup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Scheduler) endBackup() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// Trigger runs one backup immediately, outside the regular cron cadence,
// subject to the same in-flight skip rule as tick.
func (s *Scheduler) Trigger() {
	s.tick()
}

// LastError returns the error from the most recent failed snapshot, if any.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// RestoreLatest opens the newest file matching
// {DumpFilePrefix}_*.json.gz in config.DumpDirectory and loads it into the
// manager under config.DatabaseName. Reports whether a restore happened; a
// missing or corrupt dump logs and returns false so startup can proceed
// without data rather than fail outright.
func (s *Scheduler) RestoreLatest() bool {
	pattern := filepath.Join(s.config.DumpDirectory, s.config.DumpFilePrefix+"_*.json.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		slog.Warn("scheduler: restore glob failed", "pattern", pattern, "err", err)
		return false
	}
	if len(matches) == 0 {
		return false
	}

	type fileInfo struct {
		path    string
		modTime int64
	}
	files := make([]fileInfo, 0, len(matches))
	for _, p := range matches {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: p, modTime: st.ModTime().UTC().UnixNano()})
	}
	if len(files) == 0 {
		return false
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime > files[j].modTime })

	latest := files[0].path
	if err := s.manager.LoadDatabase(s.config.DatabaseName, latest); err != nil {
		slog.Warn("scheduler: restore failed", "database", s.config.DatabaseName, "path", latest, "err", err)
		return false
	}
	slog.Info("scheduler: restored", "database", s.config.DatabaseName, "path", latest)
	return true
}
