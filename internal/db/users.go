package db

import (
	"database/sql"
	"fmt"
	"strings"
)

func normalizeUsername(username string) string {
	return strings.TrimSpace(strings.ToLower(username))
}

func (s *Store) CreateUser(username, role string) (int64, error) {
	username = normalizeUsername(username)
	if username == "" {
		return 0, fmt.Errorf("create user: empty username")
	}
	res, err := s.db.Exec(`INSERT INTO users(username, role) VALUES (?, ?)`, username, role)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user id: %w", err)
	}
	return id, nil
}

// EnsureUser returns the id of username, creating it with role when missing.
func (s *Store) EnsureUser(username, role string) (int64, error) {
	u, err := s.GetUserByUsername(username)
	if err == nil {
		return u.ID, nil
	}
	if !IsNotFound(err) {
		return 0, err
	}
	return s.CreateUser(username, role)
}

func (s *Store) GetUserByUsername(username string) (User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT id, username, role, disabled, created_at, updated_at FROM users WHERE username = ?`, normalizeUsername(username)))
}

func (s *Store) GetUserByID(id int64) (User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT id, username, role, disabled, created_at, updated_at FROM users WHERE id = ?`, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(row rowScanner) (User, error) {
	var u User
	var disabled int
	if err := row.Scan(&u.ID, &u.Username, &u.Role, &disabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Disabled = disabled == 1
	return u, nil
}

func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`SELECT id, username, role, disabled, created_at, updated_at FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) SetUserDisabled(username string, disabled bool) error {
	v := 0
	if disabled {
		v = 1
	}
	res, err := s.db.Exec(`UPDATE users SET disabled = ?, updated_at = CURRENT_TIMESTAMP WHERE username = ?`, v, normalizeUsername(username))
	if err != nil {
		return fmt.Errorf("set disabled: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) AdminCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE role = 'admin' AND disabled = 0`).Scan(&n)
	return n, err
}
