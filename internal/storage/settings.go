package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docdesk/internal/domain"
)

// SettingsStore is a key/value table for console preferences.
type SettingsStore struct {
	db *DB
}

// NewSettingsStore creates a new SettingsStore.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the stored value, or "" when the key was never set.
func (s *SettingsStore) Get(key string) (string, error) {
	var v string
	err := s.db.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// ── Preview layouts ────────────────────────────────────────

// LayoutStore keeps UI metadata edited in preview mode.
type LayoutStore struct {
	db *DB
}

// NewLayoutStore creates a new LayoutStore.
func NewLayoutStore(db *DB) *LayoutStore {
	return &LayoutStore{db: db}
}

func (s *LayoutStore) SaveLayout(collection string, ui domain.UIMetadata) error {
	raw, err := json.Marshal(ui)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	_, err = s.db.conn.Exec(
		`INSERT INTO preview_layouts (collection, ui_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(collection) DO UPDATE SET ui_json = excluded.ui_json, updated_at = excluded.updated_at`,
		collection, string(raw), time.Now(),
	)
	return err
}

// GetLayout returns nil, nil when no layout was saved for collection.
func (s *LayoutStore) GetLayout(collection string) (*domain.UIMetadata, error) {
	var raw string
	err := s.db.conn.QueryRow(`SELECT ui_json FROM preview_layouts WHERE collection = ?`, collection).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ui := &domain.UIMetadata{}
	if err := json.Unmarshal([]byte(raw), ui); err != nil {
		return nil, fmt.Errorf("decode layout for %s: %w", collection, err)
	}
	return ui, nil
}

func (s *LayoutStore) DeleteLayout(collection string) error {
	_, err := s.db.conn.Exec(`DELETE FROM preview_layouts WHERE collection = ?`, collection)
	return err
}

var (
	_ domain.SettingsStore      = (*SettingsStore)(nil)
	_ domain.PreviewLayoutStore = (*LayoutStore)(nil)
)
