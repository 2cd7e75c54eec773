package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/matthewsawatzky/themeswitch/internal/auth"
	"github.com/matthewsawatzky/themeswitch/internal/db"
	"github.com/matthewsawatzky/themeswitch/internal/extension"
)

func (a *App) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	store := a.shell.Store
	switch r.Method {
	case http.MethodGet:
		a.writeJSON(w, http.StatusOK, map[string]any{"settings": map[string]string{
			db.SettingDefaultDeskTheme: store.DefaultDeskTheme(),
		}})
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "GET, POST")
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		DefaultDeskTheme string `json:"default_desk_theme"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	name := strings.TrimSpace(req.DefaultDeskTheme)
	if name == "" {
		a.writeError(w, http.StatusBadRequest, "default_desk_theme required")
		return
	}
	if _, ok := a.shell.Engine.State().Catalog.Get(name); !ok {
		a.writeError(w, http.StatusBadRequest, "unknown theme")
		return
	}
	if err := store.SetSetting(db.SettingDefaultDeskTheme, name); err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	_ = store.RecordAudit(a.actor(r), "admin.settings.update", db.SettingDefaultDeskTheme, name)
	a.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if !a.enforceMethod(w, r, http.MethodGet) {
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}
	users, err := a.shell.Store.ListUsers()
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *App) handleAdminDisableUser(w http.ResponseWriter, r *http.Request) {
	if !a.enforceMethod(w, r, http.MethodPost) {
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}
	var req struct {
		Username string `json:"username"`
		Disabled bool   `json:"disabled"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	store := a.shell.Store
	target, err := store.GetUserByUsername(req.Username)
	if err != nil {
		a.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if target.Role == auth.RoleAdmin && req.Disabled && !target.Disabled {
		admins, err := store.AdminCount()
		if err == nil && admins <= 1 {
			a.writeError(w, http.StatusBadRequest, "cannot disable last active admin")
			return
		}
	}
	if err := store.SetUserDisabled(req.Username, req.Disabled); err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	_ = store.RecordAudit(a.actor(r), "admin.user.disable", target.Username, strconv.FormatBool(req.Disabled))
	a.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleAdminKeys lists a user's keys on GET and issues a new pair on POST.
// The secret is returned once.
func (a *App) handleAdminKeys(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	store := a.shell.Store
	switch r.Method {
	case http.MethodGet:
		u, err := store.GetUserByUsername(r.URL.Query().Get("username"))
		if err != nil {
			a.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		keys, err := store.ListAPIKeys(u.ID)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, "failed to list keys")
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
	case http.MethodPost:
		var req struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		}
		if err := decodeJSONBody(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		req.Username = strings.TrimSpace(strings.ToLower(req.Username))
		if req.Username == "" {
			a.writeError(w, http.StatusBadRequest, "username required")
			return
		}
		switch req.Role {
		case auth.RoleAdmin, auth.RoleUser:
		default:
			req.Role = auth.RoleUser
		}
		creds, err := extension.IssueKey(store, req.Username, req.Role, "")
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "failed to issue key")
			return
		}
		_ = store.RecordAudit(a.actor(r), "admin.key.create", creds.Username, creds.Key)
		a.writeJSON(w, http.StatusOK, map[string]any{
			"username":   creds.Username,
			"api_key":    creds.Key,
			"api_secret": creds.Secret,
		})
	default:
		w.Header().Set("Allow", "GET, POST")
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleAdminRevokeKey(w http.ResponseWriter, r *http.Request) {
	if !a.enforceMethod(w, r, http.MethodPost) {
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}
	var req struct {
		Key string `json:"api_key"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := a.shell.Store.DeleteAPIKey(req.Key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			a.writeError(w, http.StatusNotFound, "key not found")
			return
		}
		a.writeError(w, http.StatusInternalServerError, "failed to revoke key")
		return
	}
	_ = a.shell.Store.RecordAudit(a.actor(r), "admin.key.revoke", req.Key, "")
	a.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if !a.enforceMethod(w, r, http.MethodGet) {
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}
	logs, err := a.shell.Store.ListAudit(r.URL.Query().Get("action"), parseLimit(r, 200))
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to list audit logs")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
