package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/devadigapratham/filamentlog/logger"
	"github.com/devadigapratham/filamentlog/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

const createFilamentsTable = `
CREATE TABLE IF NOT EXISTS filaments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    maker TEXT NOT NULL,
    type TEXT NOT NULL,
    color TEXT NOT NULL,
    weight REAL NOT NULL,
    date TEXT DEFAULT CURRENT_DATE
)`

// journalState records the last raft log index applied to the filaments
// table. It holds at most one row.
type journalState struct {
	ID          int    `gorm:"primaryKey"`
	LastApplied uint64 `gorm:"not null;default:0"`
}

func (journalState) TableName() string { return "journal_state" }

// Store is the append-only entry store backed by a local sqlite file
type Store struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// Open opens (creating if needed) the sqlite file at path and bootstraps
// the tables.
func Open(path string, logg *logger.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	gormLog := gormLogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store %s: %w", path, err)
	}

	// Single writer, single connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	s := &Store{
		db:  db,
		log: logg.With("component", "store", "path", path),
		now: time.Now,
	}
	if err := s.bootstrap(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) bootstrap() error {
	if err := s.db.Exec(createFilamentsTable).Error; err != nil {
		return fmt.Errorf("failed to create filaments table: %w", err)
	}
	if err := s.db.AutoMigrate(&journalState{}); err != nil {
		return fmt.Errorf("failed to create journal_state table: %w", err)
	}
	return nil
}

// DB exposes the underlying handle
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append inserts a fully resolved entry and sets its ID. An empty Date is
// filled with today's date.
func (s *Store) Append(ctx context.Context, e *models.FilamentEntry) error {
	if err := s.insert(s.db.WithContext(ctx), e); err != nil {
		return err
	}
	s.log.Debug("entry appended", "id", e.ID, "maker", e.Maker, "type", e.Type, "color", e.Color)
	return nil
}

func (s *Store) insert(tx *gorm.DB, e *models.FilamentEntry) error {
	if e == nil {
		return fmt.Errorf("entry is nil")
	}
	if !e.Complete() {
		return models.ErrIncompleteEntry
	}
	if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
		return models.ErrInvalidWeight
	}
	if e.Date == "" {
		e.Date = models.FormatDate(s.now())
	}
	// ids are always assigned by sqlite
	e.ID = 0
	if err := tx.Create(e).Error; err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// ApplyJournaled inserts e as the effect of raft log index. Indexes at or
// below the last applied one are skipped so log replay never duplicates
// rows. The insert and the index update commit together.
func (s *Store) ApplyJournaled(ctx context.Context, e *models.FilamentEntry, index uint64) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st journalState
		if err := tx.FirstOrCreate(&st, journalState{ID: 1}).Error; err != nil {
			return fmt.Errorf("failed to load journal state: %w", err)
		}
		if index <= st.LastApplied {
			return nil
		}
		if err := s.insert(tx, e); err != nil {
			return err
		}
		applied = true
		return tx.Model(&st).Update("last_applied", index).Error
	})
	return applied, err
}

// LastApplied returns the last raft index applied, zero if none
func (s *Store) LastApplied(ctx context.Context) (uint64, error) {
	var st journalState
	err := s.db.WithContext(ctx).First(&st, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return st.LastApplied, nil
}

// Restore loads entries from a journal snapshot. Existing rows are kept;
// rows whose id is already present are skipped.
func (s *Store) Restore(ctx context.Context, entries []models.FilamentEntry, index uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(entries) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(&entries, 100).Error; err != nil {
				return fmt.Errorf("failed to restore entries: %w", err)
			}
		}
		var st journalState
		if err := tx.FirstOrCreate(&st, journalState{ID: 1}).Error; err != nil {
			return err
		}
		if index > st.LastApplied {
			return tx.Model(&st).Update("last_applied", index).Error
		}
		return nil
	})
}

// Candidates returns every entry whose fields equal each specified
// criterion, newest first.
func (s *Store) Candidates(ctx context.Context, c models.Criteria) ([]models.FilamentEntry, error) {
	q := s.db.WithContext(ctx).Model(&models.FilamentEntry{})
	if c.Maker != "" {
		q = q.Where("maker = ?", c.Maker)
	}
	if c.Type != "" {
		q = q.Where("type = ?", c.Type)
	}
	if c.Color != "" {
		q = q.Where("color = ?", c.Color)
	}

	var out []models.FilamentEntry
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	return out, nil
}

// Get returns the entry with the given id
func (s *Store) Get(ctx context.Context, id int64) (*models.FilamentEntry, error) {
	var e models.FilamentEntry
	err := s.db.WithContext(ctx).First(&e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Count returns the number of stored entries
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.FilamentEntry{}).Count(&n).Error
	return n, err
}

// List returns the newest entries first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]models.FilamentEntry, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.FilamentEntry
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// All returns every entry in insertion order
func (s *Store) All(ctx context.Context) ([]models.FilamentEntry, error) {
	var out []models.FilamentEntry
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Since returns entries dated on or after from, oldest first
func (s *Store) Since(ctx context.Context, from time.Time) ([]models.FilamentEntry, error) {
	var out []models.FilamentEntry
	err := s.db.WithContext(ctx).
		Where("date >= ?", models.FormatDate(from)).
		Order("date ASC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query entries since %s: %w", models.FormatDate(from), err)
	}
	return out, nil
}
