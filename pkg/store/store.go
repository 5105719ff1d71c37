// Package store persists named device settings in SQLite.
//
// Each setting is stored as the CBOR encoding of its value, so what is read
// back is exactly what the codec would have sent on the wire: Undefined map
// entries are dropped and unsafe integers come back as floats.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
)

// ErrInvalidName indicates an empty setting name.
var ErrInvalidName = errors.New("invalid setting name")

// Setting is one stored setting.
type Setting struct {
	Name      string
	Value     cbor.Value
	UpdatedAt time.Time
}

// Store provides SQLite persistence for device settings.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new store with the given database path.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would see its own empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`PRAGMA journal_mode = WAL;`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		name TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the setting stored under name. The boolean is false when no
// such setting exists. A stored blob that no longer decodes is reported as
// the decoder's StructuralError.
func (s *Store) Get(name string) (cbor.Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte
	err := s.db.QueryRow(`SELECT value FROM settings WHERE name = ?`, name).Scan(&blob)
	if err == sql.ErrNoRows {
		return cbor.Null(), false, nil
	}
	if err != nil {
		return cbor.Null(), false, err
	}

	v, err := cbor.Decode(blob)
	if err != nil {
		return cbor.Null(), true, fmt.Errorf("setting %q: %w", name, err)
	}
	return v, true, nil
}

// Put stores v under name, replacing any previous value. It reports
// whether the setting was newly created. Replaced settings keep their
// position in List.
func (s *Store) Put(name string, v cbor.Value) (bool, error) {
	if name == "" {
		return false, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	created, err := put(tx, name, cbor.Encode(v))
	if err != nil {
		return false, err
	}
	return created, tx.Commit()
}

// Update replaces the setting stored under name with fn's result in one
// transaction. fn receives the current value, or Null and false when the
// setting does not exist yet. Update returns the value as it was stored and
// whether the setting was newly created.
func (s *Store) Update(name string, fn func(current cbor.Value, exists bool) cbor.Value) (cbor.Value, bool, error) {
	if name == "" {
		return cbor.Null(), false, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return cbor.Null(), false, err
	}
	defer tx.Rollback()

	current, exists := cbor.Null(), true
	var blob []byte
	err = tx.QueryRow(`SELECT value FROM settings WHERE name = ?`, name).Scan(&blob)
	switch {
	case err == sql.ErrNoRows:
		exists = false
	case err != nil:
		return cbor.Null(), false, err
	default:
		if current, err = cbor.Decode(blob); err != nil {
			return cbor.Null(), false, fmt.Errorf("setting %q: %w", name, err)
		}
	}

	data := cbor.Encode(fn(current, exists))
	if _, err := put(tx, name, data); err != nil {
		return cbor.Null(), false, err
	}
	if err := tx.Commit(); err != nil {
		return cbor.Null(), false, err
	}

	stored, err := cbor.Decode(data)
	if err != nil {
		return cbor.Null(), false, err
	}
	return stored, !exists, nil
}

// Load stores every entry of the map m in one transaction.
func (s *Store) Load(m cbor.Value) error {
	if m.Kind() != cbor.KindMap {
		return fmt.Errorf("settings must be a map, got %s", m.Kind())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range m.Pairs() {
		if p.Value.IsUndefined() {
			continue
		}
		if p.Key == "" {
			return ErrInvalidName
		}
		if _, err := put(tx, p.Key, cbor.Encode(p.Value)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func put(tx *sql.Tx, name string, data []byte) (bool, error) {
	var exists int
	err := tx.QueryRow(`SELECT COUNT(*) FROM settings WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(`
		INSERT INTO settings (name, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, name, data, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to store setting %q: %w", name, err)
	}
	return exists == 0, nil
}

// Delete removes the setting stored under name and reports whether it
// existed.
func (s *Store) Delete(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`DELETE FROM settings WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns all settings in insertion order.
func (s *Store) List() ([]Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name, value, updated_at FROM settings ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var st Setting
		var blob []byte
		if err := rows.Scan(&st.Name, &blob, &st.UpdatedAt); err != nil {
			return nil, err
		}
		st.Value, err = cbor.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", st.Name, err)
		}
		settings = append(settings, st)
	}

	return settings, rows.Err()
}

// Snapshot returns all settings as one CBOR map in insertion order.
func (s *Store) Snapshot() (cbor.Value, error) {
	settings, err := s.List()
	if err != nil {
		return cbor.Null(), err
	}
	pairs := make([]cbor.Pair, len(settings))
	for i, st := range settings {
		pairs[i] = cbor.Pair{Key: st.Name, Value: st.Value}
	}
	return cbor.Map(pairs...), nil
}

// Count returns the number of stored settings.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&count)
	return count, err
}
