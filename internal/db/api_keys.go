package db

import (
	"database/sql"
	"fmt"
)

func (s *Store) CreateAPIKey(userID int64, key, secretHash string) error {
	_, err := s.db.Exec(`INSERT INTO api_keys(api_key, user_id, secret_hash, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		key, userID, secretHash)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *Store) GetAPIKey(key string) (APIKey, error) {
	var k APIKey
	var last sqlNullTime
	err := s.db.QueryRow(`SELECT api_key, user_id, secret_hash, created_at, last_used_at FROM api_keys WHERE api_key = ?`, key).
		Scan(&k.Key, &k.UserID, &k.SecretHash, &k.CreatedAt, &last)
	if err != nil {
		return APIKey{}, err
	}
	k.LastUsedAt = last.ptr()
	return k, nil
}

func (s *Store) TouchAPIKey(key string) error {
	if _, err := s.db.Exec(`UPDATE api_keys SET last_used_at = CURRENT_TIMESTAMP WHERE api_key = ?`, key); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func (s *Store) ListAPIKeys(userID int64) ([]APIKey, error) {
	rows, err := s.db.Query(`SELECT api_key, user_id, secret_hash, created_at, last_used_at FROM api_keys WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	out := make([]APIKey, 0)
	for rows.Next() {
		var k APIKey
		var last sqlNullTime
		if err := rows.Scan(&k.Key, &k.UserID, &k.SecretHash, &k.CreatedAt, &last); err != nil {
			return nil, err
		}
		k.LastUsedAt = last.ptr()
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAPIKey(key string) error {
	res, err := s.db.Exec(`DELETE FROM api_keys WHERE api_key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
