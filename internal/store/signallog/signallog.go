package signallog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"alphabot/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS signal_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol     TEXT NOT NULL,
	signal     TEXT NOT NULL,
	confidence REAL NOT NULL,
	consensus  INTEGER NOT NULL,
	reason     TEXT,
	at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signal_log_at ON signal_log(at);
`

// Store is an append-only sqlite signal log implementing store.SignalLog.
type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("signallog: path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) AppendSignal(rec store.SignalRecord) error {
	reason := rec.Reason
	if len(reason) > 512 {
		reason = reason[:512]
	}
	_, err := s.db.Exec(
		`INSERT INTO signal_log(symbol, signal, confidence, consensus, reason, at) VALUES (?,?,?,?,?,?)`,
		rec.Symbol, rec.Signal, rec.Confidence, rec.Consensus, reason, rec.At.Unix(),
	)
	return err
}

func (s *Store) RecentSignals(limit int) ([]store.SignalRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(
		`SELECT symbol, signal, confidence, consensus, reason, at
		 FROM signal_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []store.SignalRecord
	for rows.Next() {
		var rec store.SignalRecord
		var at int64
		if err := rows.Scan(&rec.Symbol, &rec.Signal, &rec.Confidence, &rec.Consensus, &rec.Reason, &at); err != nil {
			return nil, err
		}
		rec.At = time.Unix(at, 0)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// oldest first, matching insertion order
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

func (s *Store) Close() error { return s.db.Close() }
