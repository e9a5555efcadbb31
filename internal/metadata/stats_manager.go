package metadata

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/record"
)

// StatsFile returns the file name of a table's statistics resource.
func StatsFile(table string) string {
	return table + ".stat"
}

// StatsManager loads statistics resources from a directory and caches them.
type StatsManager struct {
	dir        string
	tableStats map[string]*StatInfo
	mutex      sync.RWMutex
}

// NewStatsManager creates a new StatsManager instance
func NewStatsManager(dir string) *StatsManager {
	return &StatsManager{
		dir:        dir,
		tableStats: make(map[string]*StatInfo),
	}
}

// GetStatInfo returns statistical information for a given table
func (sm *StatsManager) GetStatInfo(table string, schema *record.Schema) (*StatInfo, error) {
	sm.mutex.RLock()
	si, exists := sm.tableStats[table]
	sm.mutex.RUnlock()
	if exists {
		return si, nil
	}

	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	if si, exists = sm.tableStats[table]; exists {
		return si, nil
	}

	path := filepath.Join(sm.dir, StatsFile(table))
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "statistics for %s", table)
	}
	defer f.Close()

	si, err = ParseStats(f, schema)
	if err != nil {
		return nil, errors.Wrapf(err, "statistics for %s", table)
	}
	log.Printf("[STATS] Loaded %s: %d records", path, si.RecordsOutput())
	sm.tableStats[table] = si
	return si, nil
}

// SaveStatInfo writes the statistics resource for table and caches it.
func (sm *StatsManager) SaveStatInfo(table string, si *StatInfo) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if err := os.MkdirAll(sm.dir, 0755); err != nil {
		return errors.Wrap(err, "creating statistics directory")
	}
	path := filepath.Join(sm.dir, StatsFile(table))
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "statistics for %s", table)
	}
	if err := WriteStats(f, si); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "statistics for %s", table)
	}
	sm.tableStats[table] = si
	log.Printf("[STATS] Saved %s: %d records", path, si.RecordsOutput())
	return nil
}

// Invalidate drops the cached statistics of table.
func (sm *StatsManager) Invalidate(table string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	delete(sm.tableStats, table)
}
