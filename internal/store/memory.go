package store

import "sync"

// Memory is an in-process StateStore used by tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	exits   map[string]ExitRecord
	flags   map[string]bool
	signals []SignalRecord
}

func NewMemory() *Memory {
	return &Memory{
		exits: make(map[string]ExitRecord),
		flags: make(map[string]bool),
	}
}

func (m *Memory) LoadExits() (map[string]ExitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]ExitRecord, len(m.exits))
	for k, v := range m.exits {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SaveExit(rec ExitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exits[rec.Symbol] = rec
	return nil
}

func (m *Memory) DeleteExit(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.exits, symbol)
	return nil
}

func (m *Memory) LoadFlag(name string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.flags[name]
	return v, ok, nil
}

func (m *Memory) SaveFlag(name string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[name] = value
	return nil
}

func (m *Memory) AppendSignal(rec SignalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, rec)
	return nil
}

func (m *Memory) RecentSignals(limit int) ([]SignalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.signals) {
		limit = len(m.signals)
	}
	out := make([]SignalRecord, limit)
	copy(out, m.signals[len(m.signals)-limit:])
	return out, nil
}

func (m *Memory) Close() error { return nil }
