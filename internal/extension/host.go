package extension

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/matthewsawatzky/themeswitch/internal/auth"
	"github.com/matthewsawatzky/themeswitch/internal/db"
	"github.com/matthewsawatzky/themeswitch/internal/provider"
	"github.com/matthewsawatzky/themeswitch/internal/util"
)

const (
	methodPrefix = "/api/method/"
	AssetPrefix  = "/assets/themes/"
)

type ctxKey struct{}

type Options struct {
	App       string
	ThemesDir string
	Store     *db.Store
	Logger    *slog.Logger
}

type Host struct {
	app       string
	themesDir string
	store     *db.Store
	logger    *slog.Logger
}

func New(opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Host{app: opts.App, themesDir: opts.ThemesDir, store: opts.Store, logger: opts.Logger}
}

func (h *Host) App() string {
	return h.app
}

func (h *Host) Register(mux *http.ServeMux, prefix string) {
	prefix = strings.TrimRight(prefix, "/")
	mux.Handle(prefix+methodPrefix, http.StripPrefix(prefix, h.Authenticate(http.HandlerFunc(h.handleMethod))))
	mux.Handle(prefix+AssetPrefix, http.StripPrefix(prefix+AssetPrefix, http.HandlerFunc(h.handleAsset)))
}

func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux, "")
	return mux
}

// Authenticate resolves "Authorization: token key:secret" into a principal.
// Requests without the header run as Guest. Bad secrets count towards a
// per key and address lockout.
func (h *Host) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, auth.GuestPrincipal)))
			return
		}
		key, secret, ok := auth.ParseTokenHeader(header)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}
		attemptKey := "api:" + key + "@" + util.RemoteIP(r)
		locked, retry, err := h.store.CheckAuthAllowed(attemptKey)
		if err != nil {
			h.logger.Error("auth lockout check failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authentication failure")
			return
		}
		if locked {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)+1))
			writeError(w, http.StatusTooManyRequests, "too many failed attempts")
			return
		}
		principal, ok := h.verify(key, secret)
		if !ok {
			if lock, err := h.store.RegisterAuthFailure(attemptKey); err == nil && lock > 0 {
				h.logger.Warn("api key locked", "key", key, "remote", util.RemoteIP(r), "for", lock)
			}
			writeError(w, http.StatusUnauthorized, "invalid api key or secret")
			return
		}
		_ = h.store.ResetAuthFailures(attemptKey)
		_ = h.store.TouchAPIKey(key)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, principal)))
	})
}

func (h *Host) verify(key, secret string) (auth.Principal, bool) {
	k, err := h.store.GetAPIKey(key)
	if err != nil {
		return auth.Principal{}, false
	}
	ok, err := auth.VerifySecret(k.SecretHash, secret)
	if err != nil || !ok {
		return auth.Principal{}, false
	}
	u, err := h.store.GetUserByID(k.UserID)
	if err != nil || u.Disabled {
		return auth.Principal{}, false
	}
	return auth.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}, true
}

func PrincipalFrom(r *http.Request) auth.Principal {
	p, ok := r.Context().Value(ctxKey{}).(auth.Principal)
	if !ok {
		return auth.GuestPrincipal
	}
	return p
}

func (h *Host) handleMethod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, methodPrefix)
	result, err := h.dispatch(PrincipalFrom(r), name, map[string]string{"theme_name": r.Form.Get("theme_name")})
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": result})
}

var errUnknownMethod = errors.New("method not found")

func (h *Host) dispatch(p auth.Principal, method string, args map[string]string) (any, error) {
	switch method {
	case provider.MethodPath(h.app, provider.ListThemes):
		return h.availableThemes(), nil
	case provider.MethodPath(h.app, provider.GetPreference):
		return h.preference(p), nil
	case provider.MethodPath(h.app, provider.SavePreference):
		return h.savePreference(p, args["theme_name"]), nil
	}
	return nil, fmt.Errorf("%w: %s", errUnknownMethod, method)
}

func (h *Host) Caller(p auth.Principal) provider.Caller {
	return provider.CallerFunc(func(ctx context.Context, app string, capability provider.Capability, args map[string]string) (json.RawMessage, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := h.dispatch(p, provider.MethodPath(app, capability), args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
}

// Owner is the principal CLI and desk sessions act as when no API key is
// configured. The user is created on first use.
func (h *Host) Owner(username string) (auth.Principal, error) {
	id, err := h.store.EnsureUser(username, auth.RoleAdmin)
	if err != nil {
		return auth.Principal{}, err
	}
	u, err := h.store.GetUserByID(id)
	if err != nil {
		return auth.Principal{}, err
	}
	if u.Disabled {
		return auth.GuestPrincipal, nil
	}
	return auth.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}

func (h *Host) Principal(key, secret string) (auth.Principal, bool) {
	return h.verify(key, secret)
}

func (h *Host) availableThemes() any {
	themes, err := LoadThemes(h.themesDir)
	if err != nil {
		h.logger.Error("some desk themes failed to load", "dir", h.themesDir, "error", err)
	}
	if len(themes) == 0 {
		h.logger.Info("no desk themes found", "dir", h.themesDir)
		return []any{}
	}
	h.logger.Info("desk themes loaded", "count", len(themes))
	return themes
}

func (h *Host) preference(p auth.Principal) provider.Status {
	fallback := h.store.DefaultDeskTheme()
	if p.Guest {
		return provider.Status{Status: "success", Theme: fallback}
	}
	theme, err := h.store.GetDeskTheme(p.UserID)
	if err != nil {
		if !db.IsNotFound(err) {
			h.logger.Error("read desk theme failed", "user", p.Username, "error", err)
			return provider.Status{Status: "error", Message: err.Error(), Theme: fallback}
		}
		theme = fallback
	}
	return provider.Status{Status: "success", Theme: theme}
}

func (h *Host) savePreference(p auth.Principal, themeName string) provider.Status {
	if p.Guest {
		h.logger.Warn("cannot save theme for guest user")
		return provider.Status{Status: "error", Message: "Guest user cannot save preferences"}
	}
	if err := h.store.SetDeskTheme(p.UserID, themeName); err != nil {
		h.logger.Error("save desk theme failed", "user", p.Username, "error", err)
		return provider.Status{Status: "error", Message: err.Error()}
	}
	h.logger.Info("saved desk theme", "user", p.Username, "theme", themeName)
	return provider.Status{Status: "success", Message: "Theme preference saved"}
}

func (h *Host) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rel := util.NormalizeRelPath(r.URL.Path)
	if rel == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	abs, err := util.SafeJoin(h.themesDir, rel)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, abs)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
