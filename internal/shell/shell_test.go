package shell

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matthewsawatzky/themeswitch/internal/applicator"
	"github.com/matthewsawatzky/themeswitch/internal/config"
	"github.com/matthewsawatzky/themeswitch/internal/db"
	"github.com/matthewsawatzky/themeswitch/internal/prefs"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	dir := filepath.Join(cfg.ThemesDir, "ocean")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ocean.json"), []byte(`{"theme": "Ocean", "css_content": ".navbar{background:#003f5c}"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShellInProcessProvider(t *testing.T) {
	s, err := New(testConfig(t), Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	if s.Host == nil || s.Principal.Guest || s.Principal.Username != OwnerName {
		t.Fatalf("principal = %+v, want local owner", s.Principal)
	}
	if s.Actor() == nil {
		t.Fatal("Actor() = nil for the local owner")
	}

	var notices []Notice
	stop := s.Notices.Subscribe(func(n Notice) { notices = append(notices, n) })
	defer stop()

	ctx := context.Background()
	state, err := s.Engine.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := state.Catalog.Get("ocean"); !ok {
		t.Fatalf("catalog %v has no ocean", state.Catalog.IDs())
	}
	if _, err := s.Engine.Select(ctx, "ocean"); err != nil {
		t.Fatalf("Select(ocean) error = %v", err)
	}
	if got, _ := s.Document.RootAttr(applicator.AttrCustom); got != "ocean" {
		t.Fatalf("data-custom-theme = %q, want ocean", got)
	}
	if len(notices) != 1 || notices[0].Message != "Theme Applied Instantly" {
		t.Fatalf("notices = %+v", notices)
	}

	// A second shell over the same data dir reads the preference back
	// through the extension.
	s.Close()
	again, err := New(s.Config, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer again.Close()
	state, err = again.Engine.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if state.Current != "ocean" || state.Source != prefs.SourceRemote {
		t.Fatalf("state = %+v, want ocean from remote", state)
	}
}

func TestShellRemoteProvider(t *testing.T) {
	var saved string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token k:s" {
			t.Errorf("Authorization = %q", got)
		}
		_ = r.ParseForm()
		var msg any
		switch {
		case strings.HasSuffix(r.URL.Path, "erpnext.user_extension.get_available_themes"):
			msg = []map[string]any{{"name": "midnight", "label": "Midnight", "theme_url": "/files/midnight.css"}}
		case strings.HasSuffix(r.URL.Path, "erpnext.user_extension.save_theme_preference"):
			saved = r.Form.Get("theme_name")
			msg = map[string]any{"status": "success", "message": "Theme preference saved"}
		case strings.HasSuffix(r.URL.Path, "erpnext.user_extension.get_user_theme_preference"):
			msg = map[string]any{"status": "not_found"}
		default:
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": msg})
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.ProviderURL = srv.URL
	cfg.InstalledApps = []string{"erpnext"}
	cfg.APIKey, cfg.APISecret = "k", "s"
	cfg.ColorScheme = config.SchemeDark

	fetched := ""
	s, err := New(cfg, Options{
		Logger: quietLogger(),
		Fetcher: fetcherFunc(func(_ context.Context, ref string) (string, error) {
			fetched = ref
			return ".navbar{color:#000}", nil
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()
	if !s.Principal.Guest {
		t.Fatalf("principal = %+v, want guest for a remote provider", s.Principal)
	}

	ctx := context.Background()
	if _, err := s.Engine.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.Engine.Select(ctx, "automatic"); err != nil {
		t.Fatalf("Select(automatic) error = %v", err)
	}
	if got, _ := s.Document.RootAttr(applicator.AttrTheme); got != "dark" {
		t.Fatalf("data-theme = %q, want dark from color_scheme", got)
	}
	if _, err := s.Engine.Select(ctx, "midnight"); err != nil {
		t.Fatalf("Select(midnight) error = %v", err)
	}
	if fetched != "/files/midnight.css" || saved != "midnight" {
		t.Fatalf("fetched = %q, saved = %q", fetched, saved)
	}
}

func TestStylesheetBase(t *testing.T) {
	cfg := config.Default(t.TempDir())
	if got := stylesheetBase(cfg); got != "http://127.0.0.1:7341" {
		t.Fatalf("stylesheetBase() = %q", got)
	}
	cfg.ProviderURL = "https://desk.example.com"
	if got := stylesheetBase(cfg); got != "https://desk.example.com" {
		t.Fatalf("stylesheetBase() = %q", got)
	}
	cfg.StylesheetBase = "https://cdn.example.com"
	if got := stylesheetBase(cfg); got != "https://cdn.example.com" {
		t.Fatalf("stylesheetBase() = %q", got)
	}
}

type fetcherFunc func(ctx context.Context, ref string) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, ref string) (string, error) { return f(ctx, ref) }

func TestShellSelectRecordsHistory(t *testing.T) {
	s, err := New(testConfig(t), Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if _, err := s.Engine.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Select(ctx, "dark", nil, "cli"); err != nil {
		t.Fatalf("Select(dark) error = %v", err)
	}
	if _, err := s.Step(ctx, 1, nil, "cli"); err != nil {
		t.Fatalf("Step(1) error = %v", err)
	}
	logs, err := s.Store.ListAudit(db.ActionThemeSelect, 10)
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(logs) != 2 || logs[0].Target != "automatic" || logs[1].Target != "dark" {
		t.Fatalf("logs = %+v, want automatic then dark", logs)
	}
	if !strings.Contains(logs[1].Metadata, `"from":"light"`) || logs[1].Username == nil || *logs[1].Username != OwnerName {
		t.Fatalf("dark entry = %+v", logs[1])
	}
}
