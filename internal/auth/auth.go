package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Principal is the caller of a provider method. Guests carry no user id.
type Principal struct {
	UserID   int64
	Username string
	Role     string
	Guest    bool
}

var GuestPrincipal = Principal{Username: "Guest", Guest: true}

func (p Principal) IsAdmin() bool {
	return !p.Guest && p.Role == RoleAdmin
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("random bytes: %w", err)
	}
	return b, nil
}

// NewAPIKey returns a fresh key and secret pair.
func NewAPIKey() (key, secret string, err error) {
	k, err := randomBytes(8)
	if err != nil {
		return "", "", err
	}
	s, err := randomBytes(16)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(k), hex.EncodeToString(s), nil
}

// ParseTokenHeader splits an "Authorization: token key:secret" value.
func ParseTokenHeader(header string) (key, secret string, ok bool) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "token") {
		return "", "", false
	}
	key, secret, found = strings.Cut(strings.TrimSpace(rest), ":")
	if !found || key == "" || secret == "" {
		return "", "", false
	}
	return key, secret, true
}

func TokenHeader(key, secret string) string {
	return "token " + key + ":" + secret
}
