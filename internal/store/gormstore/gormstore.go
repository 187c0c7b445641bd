package gormstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"alphabot/internal/store"
)

type exitModel struct {
	Symbol        string  `gorm:"primaryKey;size:16"`
	EntryPrice    float64 `gorm:"not null"`
	QtyOriginal   float64 `gorm:"not null"`
	QtyRemaining  float64 `gorm:"not null"`
	ATRAtEntry    float64
	PartialTarget float64
	PartialFilled bool
	TrailingStop  float64
	RegisteredAt  time.Time
	UpdatedAt     time.Time
}

func (exitModel) TableName() string { return "partial_exits" }

type flagModel struct {
	Name      string `gorm:"primaryKey;size:32"`
	Value     bool
	UpdatedAt time.Time
}

func (flagModel) TableName() string { return "flags" }

// Store implements store.StateStore on a sqlite file in WAL mode.
// One writer (the scan loop) means no transactions are needed beyond what
// gorm does per statement.
type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gormstore: state path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&exitModel{}, &flagModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) LoadExits() (map[string]store.ExitRecord, error) {
	var rows []exitModel
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]store.ExitRecord, len(rows))
	for _, r := range rows {
		out[r.Symbol] = store.ExitRecord{
			Symbol:        r.Symbol,
			EntryPrice:    r.EntryPrice,
			QtyOriginal:   r.QtyOriginal,
			QtyRemaining:  r.QtyRemaining,
			ATRAtEntry:    r.ATRAtEntry,
			PartialTarget: r.PartialTarget,
			PartialFilled: r.PartialFilled,
			TrailingStop:  r.TrailingStop,
			RegisteredAt:  r.RegisteredAt,
		}
	}
	return out, nil
}

func (s *Store) SaveExit(rec store.ExitRecord) error {
	row := exitModel{
		Symbol:        rec.Symbol,
		EntryPrice:    rec.EntryPrice,
		QtyOriginal:   rec.QtyOriginal,
		QtyRemaining:  rec.QtyRemaining,
		ATRAtEntry:    rec.ATRAtEntry,
		PartialTarget: rec.PartialTarget,
		PartialFilled: rec.PartialFilled,
		TrailingStop:  rec.TrailingStop,
		RegisteredAt:  rec.RegisteredAt,
		UpdatedAt:     time.Now(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Store) DeleteExit(symbol string) error {
	return s.db.Delete(&exitModel{}, "symbol = ?", symbol).Error
}

func (s *Store) LoadFlag(name string) (bool, bool, error) {
	var row flagModel
	err := s.db.First(&row, "name = ?", name).Error
	if err == gorm.ErrRecordNotFound {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return row.Value, true, nil
}

func (s *Store) SaveFlag(name string, value bool) error {
	row := flagModel{Name: name, Value: value, UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

