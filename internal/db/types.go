package db

import (
	"fmt"
	"time"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type APIKey struct {
	Key        string     `json:"api_key"`
	UserID     int64      `json:"user_id"`
	SecretHash string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

type AuditLog struct {
	ID          int64     `json:"id"`
	ActorUserID *int64    `json:"actor_user_id"`
	Action      string    `json:"action"`
	Target      string    `json:"target"`
	Metadata    string    `json:"metadata"`
	CreatedAt   time.Time `json:"created_at"`
	Username    *string   `json:"username,omitempty"`
}

type sqlNullTime struct {
	Time  time.Time
	Valid bool
}

func (nt *sqlNullTime) Scan(value any) error {
	if value == nil {
		nt.Time, nt.Valid = time.Time{}, false
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		nt.Time, nt.Valid = v, true
		return nil
	case string:
		if v == "" {
			nt.Time, nt.Valid = time.Time{}, false
			return nil
		}
		t, err := time.Parse("2006-01-02 15:04:05", v)
		if err != nil {
			t, err = time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return err
			}
		}
		nt.Time, nt.Valid = t, true
		return nil
	case []byte:
		return nt.Scan(string(v))
	default:
		return fmt.Errorf("unsupported Scan value for sqlNullTime: %T", value)
	}
}

func (nt sqlNullTime) ptr() *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
