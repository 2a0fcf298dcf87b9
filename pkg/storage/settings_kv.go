package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/dougsko/automagic/pkg/bandplan"
	"go.uber.org/multierr"
)

// Scalar keys kept next to the band arrays.
const (
	KeyBarefoot = "Barefoot"
	KeyTop      = "Top"
	KeyLeft     = "Left"
)

type field int

const (
	fieldLower field = iota
	fieldUpper
	fieldRef
	fieldRefZoomed
	fieldPower
)

var fields = []field{fieldLower, fieldUpper, fieldRef, fieldRefZoomed, fieldPower}

// arrayKey returns the persisted key name of one per-mode array, e.g.
// "LowerEdgesCW" or "RefLevelsPhoneZ".
func arrayKey(f field, m bandplan.Mode) string {
	switch f {
	case fieldLower:
		return "LowerEdges" + m.String()
	case fieldUpper:
		return "UpperEdges" + m.String()
	case fieldRef:
		return "RefLevels" + m.String()
	case fieldRefZoomed:
		return "RefLevels" + m.String() + "Z"
	default:
		return "PwrLevels" + m.String()
	}
}

func (st *Settings) field(f field) *int {
	switch f {
	case fieldLower:
		return &st.LowerKHz
	case fieldUpper:
		return &st.UpperKHz
	case fieldRef:
		return &st.RefLevel
	case fieldRefZoomed:
		return &st.RefLevelZoomed
	default:
		return &st.PowerPercent
	}
}

// EncodeList joins integers with ';'.
func EncodeList(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ";")
}

// DecodeList parses a ';' separated integer list.
func DecodeList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ";")
	values := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

// Load hydrates the in-memory settings from the database. Missing keys keep
// their defaults; a list shorter than the band table fills only its prefix
// and surplus elements are ignored. Unparsable lists keep their defaults, as
// do edge pairs that are not positive and ascending. Both are reported
// together in the returned error.
func (s *BandStore) Load() error {
	if s.db == nil {
		return nil
	}

	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("failed to scan setting: %w", err)
		}
		stored[k] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs error
	for _, m := range bandplan.Modes {
		mi := modeIndex(m)
		for _, f := range fields {
			raw, ok := stored[arrayKey(f, m)]
			if !ok {
				continue
			}
			values, err := DecodeList(raw)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("failed to parse %s: %w", arrayKey(f, m), err))
				continue
			}
			for band := 0; band < len(values) && band < bandplan.NumBands; band++ {
				*s.settings[mi][band].field(f) = values[band]
			}
		}

		for band := 0; band < bandplan.NumBands; band++ {
			st := &s.settings[mi][band]
			if st.LowerKHz > 0 && st.LowerKHz < st.UpperKHz {
				continue
			}
			def := DefaultSettings(bandplan.ByIndex(band))
			errs = multierr.Append(errs, fmt.Errorf("invalid %s %s edges %d..%d kHz, using %d..%d",
				bandplan.ByIndex(band).Name, m, st.LowerKHz, st.UpperKHz, def.LowerKHz, def.UpperKHz))
			st.LowerKHz, st.UpperKHz = def.LowerKHz, def.UpperKHz
		}
	}

	for _, k := range []string{KeyBarefoot, KeyTop, KeyLeft} {
		if v, ok := stored[k]; ok {
			s.values[k] = v
		}
	}

	return errs
}

// Save writes all arrays and scalar values in one transaction.
func (s *BandStore) Save() error {
	if s.db == nil {
		return nil
	}

	s.mu.RLock()
	pending := make(map[string]string)
	for _, m := range bandplan.Modes {
		mi := modeIndex(m)
		for _, f := range fields {
			values := make([]int, bandplan.NumBands)
			for band := range values {
				values[band] = *s.settings[mi][band].field(f)
			}
			pending[arrayKey(f, m)] = EncodeList(values)
		}
	}
	for k, v := range s.values {
		pending[k] = v
	}
	s.mu.RUnlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range pending {
		if err := putValue(tx, k, v); err != nil {
			return fmt.Errorf("failed to store %s: %w", k, err)
		}
	}

	return tx.Commit()
}

func putValue(tx *sql.Tx, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := tx.Exec(query, key, value)
	return err
}

// GetBool returns a scalar boolean, or def when it is unset or unparsable.
func (s *BandStore) GetBool(key string, def bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// SetBool records a scalar boolean; it is persisted by the next Save.
func (s *BandStore) SetBool(key string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = strconv.FormatBool(v)
}

// GetInt returns a scalar integer, or def when it is unset or unparsable.
func (s *BandStore) GetInt(key string, def int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// SetInt records a scalar integer; it is persisted by the next Save.
func (s *BandStore) SetInt(key string, v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = strconv.Itoa(v)
}
