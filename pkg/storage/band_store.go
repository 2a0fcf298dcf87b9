package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dougsko/automagic/pkg/bandplan"
	"github.com/dougsko/automagic/pkg/logging"
	_ "github.com/mattn/go-sqlite3"
)

// Key identifies one configurable band/mode slot.
type Key struct {
	Band int           `json:"band"`
	Mode bandplan.Mode `json:"mode"`
}

// Valid reports whether the key addresses a slot of the store.
func (k Key) Valid() bool {
	return k.Band >= 0 && k.Band < bandplan.NumBands && modeIndex(k.Mode) >= 0
}

// Settings holds the waterfall and power settings of one band/mode slot.
type Settings struct {
	LowerKHz       int `json:"lower_khz"`
	UpperKHz       int `json:"upper_khz"`
	RefLevel       int `json:"ref_level"`
	RefLevelZoomed int `json:"ref_level_zoomed"`
	PowerPercent   int `json:"power_percent"`
}

// BandStore keeps the per band, per mode settings in memory and persists them
// to a SQLite key/value table.
type BandStore struct {
	db     *sql.DB
	dbPath string

	mu       sync.RWMutex
	settings [3][bandplan.NumBands]Settings
	values   map[string]string
}

func modeIndex(m bandplan.Mode) int {
	switch m {
	case bandplan.ModeCW:
		return 0
	case bandplan.ModePhone:
		return 1
	case bandplan.ModeDigital:
		return 2
	default:
		return -1
	}
}

// DefaultSettings returns the first-run settings of a band: full band plan
// span, 0 dB reference levels and full power.
func DefaultSettings(b bandplan.Band) Settings {
	return Settings{
		LowerKHz:     b.LowerKHz,
		UpperKHz:     b.UpperKHz,
		PowerPercent: 100,
	}
}

func newBandStore() *BandStore {
	s := &BandStore{values: make(map[string]string)}
	for mi := range s.settings {
		for _, b := range bandplan.Bands() {
			s.settings[mi][b.Index] = DefaultSettings(b)
		}
	}
	return s
}

// NewMemoryStore creates a store without persistence. Load and Save are
// no-ops.
func NewMemoryStore() *BandStore {
	return newBandStore()
}

// NewBandStore opens (creating if needed) the SQLite database at dbPath.
// The in-memory settings start from defaults; call Load to hydrate them.
func NewBandStore(dbPath string) (*BandStore, error) {
	store := newBandStore()
	store.dbPath = dbPath

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize band store: %w", err)
	}

	return store, nil
}

// initialize sets up the database connection and creates tables
func (s *BandStore) initialize() error {
	if s.dbPath == "" {
		s.dbPath = "./automagic.db"
	}

	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := s.dbPath + "?_busy_timeout=10000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := s.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	logging.Infof("storage", "band store initialized: %s", s.dbPath)
	return nil
}

// createTables creates the database schema
func (s *BandStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the settings of a slot. Invalid keys yield zero settings;
// callers are expected to reject unknown bands before getting here.
func (s *BandStore) Get(k Key) Settings {
	if !k.Valid() {
		return Settings{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[modeIndex(k.Mode)][k.Band]
}

// Set replaces the settings of a slot. Invalid keys are ignored.
func (s *BandStore) Set(k Key, v Settings) {
	if !k.Valid() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[modeIndex(k.Mode)][k.Band] = v
}

// Update applies fn to the settings of a slot under the store lock.
func (s *BandStore) Update(k Key, fn func(*Settings)) {
	if !k.Valid() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings[modeIndex(k.Mode)][k.Band])
}

// Entry is one row of a store snapshot.
type Entry struct {
	Key      Key      `json:"key"`
	BandName string   `json:"band_name"`
	Settings Settings `json:"settings"`
}

// Snapshot returns every slot, ordered by mode then band.
func (s *BandStore) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(bandplan.Modes)*bandplan.NumBands)
	for _, m := range bandplan.Modes {
		for _, b := range bandplan.Bands() {
			entries = append(entries, Entry{
				Key:      Key{Band: b.Index, Mode: m},
				BandName: b.Name,
				Settings: s.settings[modeIndex(m)][b.Index],
			})
		}
	}
	return entries
}

// Close closes the database connection
func (s *BandStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
