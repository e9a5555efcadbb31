package metadata

import (
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/spill"
)

// Manager is the catalog: base tables plus their statistics.
type Manager struct {
	tableManager *TableManager
	statsManager *StatsManager
}

func NewManager(space *spill.Space, statsDir string) *Manager {
	return &Manager{
		tableManager: NewTableManager(space),
		statsManager: NewStatsManager(statsDir),
	}
}

// CreateTable stores rows and writes exact statistics for them.
func (m *Manager) CreateTable(table string, schema *record.Schema, rows []record.Tuple) error {
	if err := m.tableManager.CreateTable(table, schema, rows); err != nil {
		return err
	}
	si, err := ComputeStats(schema, rows)
	if err != nil {
		return err
	}
	return m.statsManager.SaveStatInfo(table, si)
}

func (m *Manager) GetSchema(table string) (*record.Schema, error) {
	return m.tableManager.GetSchema(table)
}

func (m *Manager) GetStatInfo(table string) (*StatInfo, error) {
	schema, err := m.tableManager.GetSchema(table)
	if err != nil {
		return nil, err
	}
	return m.statsManager.GetStatInfo(table, schema)
}

func (m *Manager) Tables() *TableManager {
	return m.tableManager
}

func (m *Manager) Stats() *StatsManager {
	return m.statsManager
}
