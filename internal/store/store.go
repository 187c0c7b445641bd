package store

import "time"

// ExitRecord is the durable per-symbol partial-exit state. It is created
// when a BUY fills, rewritten on every mutation, and deleted when the
// position fully closes. It must survive restarts.
type ExitRecord struct {
	Symbol        string
	EntryPrice    float64
	QtyOriginal   float64
	QtyRemaining  float64
	ATRAtEntry    float64
	PartialTarget float64
	PartialFilled bool
	TrailingStop  float64 // 0 means not armed yet
	RegisteredAt  time.Time
}

// SignalRecord is one logged decision, kept for the dashboard.
type SignalRecord struct {
	Symbol     string
	Signal     string
	Confidence float64
	Consensus  int
	Reason     string
	At         time.Time
}

// Flag names used by the engine.
const (
	FlagRunning = "running"
)

// StateStore is the durable key-value state the core depends on. Any
// backing store works as long as writes are synchronous: the engine calls
// Save* immediately after each in-memory mutation.
type StateStore interface {
	LoadExits() (map[string]ExitRecord, error)
	SaveExit(rec ExitRecord) error
	DeleteExit(symbol string) error

	// LoadFlag returns (value, found). Missing flags are not an error.
	LoadFlag(name string) (bool, bool, error)
	SaveFlag(name string, value bool) error

	Close() error
}

// SignalLog is the append-only decision log read by the dashboard.
// Kept separate from StateStore: losing it costs observability, not money.
type SignalLog interface {
	AppendSignal(rec SignalRecord) error
	RecentSignals(limit int) ([]SignalRecord, error)
	Close() error
}
