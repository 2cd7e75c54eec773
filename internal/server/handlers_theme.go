package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/matthewsawatzky/themeswitch/internal/db"
	"github.com/matthewsawatzky/themeswitch/internal/engine"
	"github.com/matthewsawatzky/themeswitch/internal/preview"
)

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != a.route("/") {
		a.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !a.enforceMethod(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := a.shell.Document.Render(w); err != nil {
		a.logger.Error("render document failed", "error", err)
	}
}

func (a *App) handleMe(w http.ResponseWriter, r *http.Request) {
	if !a.enforceMethod(w, r, http.MethodGet) {
		return
	}
	p := a.currentPrincipal(r)
	role := "guest"
	if !p.Guest {
		role = p.Role
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": !p.Guest,
		"username":      p.Username,
		"role":          role,
		"version":       a.opts.Version,
	})
}

func (a *App) handleThemes(w http.ResponseWriter, r *http.Request) {
	if !a.enforceMethod(w, r, http.MethodGet) {
		return
	}
	state := a.shell.Engine.State()
	all := state.Catalog.All()
	entries := make([]themeEntry, 0, len(all))
	for _, d := range all {
		palette, ok := state.Previews[d.ID]
		if !ok {
			palette = preview.For(d)
		}
		entries = append(entries, themeEntry{Descriptor: d, Palette: palette, Active: d.ID == state.Current})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"current": state.Current, "themes": entries})
}

func (a *App) handleTheme(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.writeJSON(w, http.StatusOK, a.shell.Engine.State())
	case http.MethodPost:
		var req selectRequest
		if err := decodeJSONBody(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		if strings.TrimSpace(req.Theme) == "" {
			a.writeError(w, http.StatusBadRequest, "theme required")
			return
		}
		if err := a.shell.Select(r.Context(), req.Theme, a.actor(r), "web"); err != nil {
			a.writeSelectError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, a.shell.Engine.State())
	default:
		w.Header().Set("Allow", "GET, POST")
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleStep(w http.ResponseWriter, r *http.Request) {
	if !a.enforceMethod(w, r, http.MethodPost) {
		return
	}
	var req stepRequest
	if err := decodeJSONBody(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Delta == 0 {
		a.writeError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}
	if _, err := a.shell.Step(r.Context(), req.Delta, a.actor(r), "web"); err != nil {
		a.writeSelectError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, a.shell.Engine.State())
}

func (a *App) writeSelectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownTheme):
		a.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrNoDescriptor):
		a.writeError(w, http.StatusConflict, "no theme in that direction")
	default:
		a.logger.Error("theme switch failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "failed to switch theme")
	}
}

func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !a.enforceMethod(w, r, http.MethodGet) {
		return
	}
	logs, err := a.shell.Store.ListAudit(db.ActionThemeSelect, parseLimit(r, 50))
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"history": logs})
}

func parseLimit(r *http.Request, def int) int {
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 2000 {
			return n
		}
	}
	return def
}
