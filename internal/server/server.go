package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/matthewsawatzky/themeswitch/internal/auth"
	"github.com/matthewsawatzky/themeswitch/internal/colorscheme"
	"github.com/matthewsawatzky/themeswitch/internal/extension"
	"github.com/matthewsawatzky/themeswitch/internal/shell"
)

type App struct {
	opts   Options
	shell  *shell.Shell
	logger *slog.Logger
}

func New(opts Options) *App {
	opts.BasePath = strings.TrimRight(opts.BasePath, "/")
	if opts.BasePath == "" {
		opts.BasePath = "/"
	}
	if !strings.HasPrefix(opts.BasePath, "/") {
		opts.BasePath = "/" + opts.BasePath
	}
	logger := opts.Logger
	if logger == nil {
		logger = opts.Shell.Logger
	}
	return &App{opts: opts, shell: opts.Shell, logger: logger}
}

func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(a.route("/"), a.handleIndex)
	mux.Handle(a.route("/api/me"), a.withPrincipal(a.handleMe))
	mux.HandleFunc(a.route("/api/themes"), a.handleThemes)
	mux.Handle(a.route("/api/theme"), a.withPrincipal(a.handleTheme))
	mux.Handle(a.route("/api/theme/step"), a.withPrincipal(a.handleStep))
	mux.HandleFunc(a.route("/api/theme/history"), a.handleHistory)
	mux.HandleFunc(a.route("/api/events"), a.handleEvents)

	if host := a.shell.Host; host != nil {
		host.Register(mux, a.prefix())
		mux.Handle(a.route("/api/admin/settings"), a.withPrincipal(a.handleAdminSettings))
		mux.Handle(a.route("/api/admin/users"), a.withPrincipal(a.handleAdminUsers))
		mux.Handle(a.route("/api/admin/users/disable"), a.withPrincipal(a.handleAdminDisableUser))
		mux.Handle(a.route("/api/admin/keys"), a.withPrincipal(a.handleAdminKeys))
		mux.Handle(a.route("/api/admin/keys/revoke"), a.withPrincipal(a.handleAdminRevokeKey))
		mux.Handle(a.route("/api/admin/audit"), a.withPrincipal(a.handleAdminAudit))
	}
	return a.recoverer(a.securityHeaders(a.clientHint(mux)))
}

func Run(ctx context.Context, opts Options) error {
	app := New(opts)
	if _, err := app.shell.Engine.Open(ctx); err != nil {
		return err
	}

	addr := net.JoinHostPort(opts.Bind, strconv.Itoa(opts.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if opts.HTTPS {
			errCh <- httpServer.ListenAndServeTLS(opts.CertFile, opts.KeyFile)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()
	app.logger.Info("serving desk", "addr", addr, "base_path", app.opts.BasePath, "https", opts.HTTPS)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) route(p string) string {
	if a.opts.BasePath == "/" {
		return p
	}
	if p == "/" {
		return a.opts.BasePath + "/"
	}
	return a.opts.BasePath + p
}

func (a *App) prefix() string {
	if a.opts.BasePath == "/" {
		return ""
	}
	return a.opts.BasePath
}

func (a *App) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline' https:; script-src 'self'; connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// clientHint asks browsers for their color scheme and hands it to the
// automatic theme.
func (a *App) clientHint(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-CH", colorscheme.HintHeader)
		w.Header().Add("Vary", colorscheme.HintHeader)
		ctx := colorscheme.WithClientHint(r.Context(), r.Header.Get(colorscheme.HintHeader))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *App) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Error("panic recovered", "panic", rec, "path", r.URL.Path)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (a *App) withPrincipal(h http.HandlerFunc) http.Handler {
	if a.shell.Host == nil {
		return h
	}
	return a.shell.Host.Authenticate(h)
}

func (a *App) currentPrincipal(r *http.Request) auth.Principal {
	if a.shell.Host == nil {
		return auth.GuestPrincipal
	}
	return extension.PrincipalFrom(r)
}

func (a *App) actor(r *http.Request) *int64 {
	p := a.currentPrincipal(r)
	if p.Guest {
		return nil
	}
	id := p.UserID
	return &id
}

func (a *App) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if a.currentPrincipal(r).IsAdmin() {
		return true
	}
	a.writeError(w, http.StatusForbidden, "admin access required")
	return false
}

func (a *App) enforceMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decodeJSONBody(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func (a *App) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (a *App) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]any{"error": message})
}
