package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const (
	SettingCustomDeskTheme  = "custom_desk_theme"
	SettingDefaultDeskTheme = "default_desk_theme"
)

var defaultSettings = map[string]string{
	SettingDefaultDeskTheme: "light",
}

func (s *Store) ensureDefaultSettings() error {
	for k, v := range defaultSettings {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO settings(key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("seed setting %s: %w", k, err)
		}
	}
	return nil
}

// GetSetting returns sql.ErrNoRows when key was never written.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings(key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteSetting(key string) error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// DefaultDeskTheme is the preference reported for users who never saved one.
func (s *Store) DefaultDeskTheme() string {
	v, err := s.GetSetting(SettingDefaultDeskTheme)
	if err != nil || strings.TrimSpace(v) == "" {
		return defaultSettings[SettingDefaultDeskTheme]
	}
	return v
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
