package db

import (
	"fmt"
	"strings"
)

// GetDeskTheme returns sql.ErrNoRows when the user never saved a preference.
func (s *Store) GetDeskTheme(userID int64) (string, error) {
	var theme string
	if err := s.db.QueryRow(`SELECT theme FROM desk_themes WHERE user_id = ?`, userID).Scan(&theme); err != nil {
		return "", err
	}
	return theme, nil
}

func (s *Store) SetDeskTheme(userID int64, theme string) error {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return fmt.Errorf("set desk theme: empty theme")
	}
	_, err := s.db.Exec(`INSERT INTO desk_themes(user_id, theme, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET theme = excluded.theme, updated_at = CURRENT_TIMESTAMP`, userID, theme)
	if err != nil {
		return fmt.Errorf("set desk theme: %w", err)
	}
	return nil
}
