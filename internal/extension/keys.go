package extension

import (
	"fmt"

	"github.com/matthewsawatzky/themeswitch/internal/auth"
	"github.com/matthewsawatzky/themeswitch/internal/db"
)

// Credentials is a freshly issued API key. The secret is only available at
// issue time; the store keeps its argon2id hash.
type Credentials struct {
	Username string
	Key      string
	Secret   string
}

// IssueKey creates username when needed and gives it a new key pair. An
// empty secret generates one.
func IssueKey(store *db.Store, username, role, secret string) (Credentials, error) {
	if role == "" {
		role = auth.RoleUser
	}
	userID, err := store.EnsureUser(username, role)
	if err != nil {
		return Credentials{}, err
	}
	key, generated, err := auth.NewAPIKey()
	if err != nil {
		return Credentials{}, err
	}
	if secret == "" {
		secret = generated
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		return Credentials{}, err
	}
	if err := store.CreateAPIKey(userID, key, hash); err != nil {
		return Credentials{}, err
	}
	u, err := store.GetUserByID(userID)
	if err != nil {
		return Credentials{}, fmt.Errorf("reload user: %w", err)
	}
	return Credentials{Username: u.Username, Key: key, Secret: secret}, nil
}
