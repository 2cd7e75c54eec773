package extension

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matthewsawatzky/themeswitch/internal/auth"
	"github.com/matthewsawatzky/themeswitch/internal/db"
	"github.com/matthewsawatzky/themeswitch/internal/provider"
	"github.com/matthewsawatzky/themeswitch/internal/theme"
)

func newTestHost(t *testing.T) (*httptest.Server, *db.Store) {
	t.Helper()
	store, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	h := New(Options{App: "themeswitch", ThemesDir: seedThemes(t), Store: store})
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func TestHostListsThemes(t *testing.T) {
	srv, _ := newTestHost(t)
	caller := provider.NewHTTPCaller(srv.URL, provider.HTTPOptions{})
	payload, err := caller.Call(context.Background(), "themeswitch", provider.ListThemes, nil)
	if err != nil {
		t.Fatalf("Call(list) error: %v", err)
	}
	themes, err := theme.DecodeCustom(payload)
	if err != nil {
		t.Fatalf("DecodeCustom: %v", err)
	}
	if len(themes) != 3 || themes[1].ID != "ocean" || !strings.Contains(themes[1].StylePayload, "#003f5c") {
		t.Fatalf("themes = %+v", themes)
	}
	if _, err := caller.Call(context.Background(), "erpnext", provider.ListThemes, nil); err == nil {
		t.Fatalf("other apps' methods should not be served")
	}
}

func TestHostPreferences(t *testing.T) {
	srv, store := newTestHost(t)
	ctx := context.Background()

	guest := provider.NewHTTPCaller(srv.URL, provider.HTTPOptions{})
	payload, err := guest.Call(ctx, "themeswitch", provider.GetPreference, nil)
	if err != nil || provider.PreferredTheme(payload) != "light" {
		t.Fatalf("guest preference = %s, %v, want light", payload, err)
	}
	payload, err = guest.Call(ctx, "themeswitch", provider.SavePreference, map[string]string{"theme_name": "ocean"})
	if err != nil || provider.StatusSuccess(payload) {
		t.Fatalf("guest save = %s, %v, want error status", payload, err)
	}

	creds, err := IssueKey(store, "Alice", "", "")
	if err != nil {
		t.Fatalf("IssueKey: %v", err)
	}
	user := provider.NewHTTPCaller(srv.URL, provider.HTTPOptions{APIKey: creds.Key, APISecret: creds.Secret})
	payload, err = user.Call(ctx, "themeswitch", provider.SavePreference, map[string]string{"theme_name": "ocean"})
	if err != nil || !provider.StatusSuccess(payload) {
		t.Fatalf("user save = %s, %v", payload, err)
	}
	payload, err = user.Call(ctx, "themeswitch", provider.GetPreference, nil)
	if err != nil || provider.PreferredTheme(payload) != "ocean" {
		t.Fatalf("user preference = %s, %v, want ocean", payload, err)
	}
	if k, _ := store.GetAPIKey(creds.Key); k.LastUsedAt == nil {
		t.Fatalf("api key use should be recorded")
	}
}

func TestHostRejectsBadSecretsAndLocks(t *testing.T) {
	srv, store := newTestHost(t)
	creds, err := IssueKey(store, "bob", "", "a-very-secret-value")
	if err != nil {
		t.Fatalf("IssueKey: %v", err)
	}
	bad := provider.NewHTTPCaller(srv.URL, provider.HTTPOptions{APIKey: creds.Key, APISecret: "wrong-secret"})
	var callErr *provider.CallError
	for i := 0; i < 5; i++ {
		_, err := bad.Call(context.Background(), "themeswitch", provider.GetPreference, nil)
		if !errors.As(err, &callErr) || callErr.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: error = %v, want 401", i+1, err)
		}
	}
	good := provider.NewHTTPCaller(srv.URL, provider.HTTPOptions{APIKey: creds.Key, APISecret: creds.Secret})
	_, err = good.Call(context.Background(), "themeswitch", provider.GetPreference, nil)
	if !errors.As(err, &callErr) || callErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("locked key error = %v, want 429", err)
	}
}

func TestHostServesAssets(t *testing.T) {
	srv, _ := newTestHost(t)
	tests := []struct {
		path string
		want int
	}{
		{path: "/assets/themes/ocean/ocean.css", want: http.StatusOK},
		{path: "/assets/themes/ocean/missing.css", want: http.StatusNotFound},
		{path: "/assets/themes/ocean", want: http.StatusNotFound},
		{path: "/assets/themes/", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Fatalf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestHostInProcessCaller(t *testing.T) {
	store, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	h := New(Options{App: "themeswitch", ThemesDir: seedThemes(t), Store: store})
	owner, err := h.Owner("administrator")
	if err != nil || owner.Guest || !owner.IsAdmin() {
		t.Fatalf("Owner() = %+v, %v", owner, err)
	}

	resolver := provider.NewResolver(h.Caller(owner), provider.Options{})
	ctx := context.Background()
	res, ok, err := resolver.Resolve(ctx, provider.SavePreference, []string{"erpnext", "themeswitch"}, map[string]string{"theme_name": "sunset"}, provider.StatusSuccess)
	if err != nil || !ok || res.App != "themeswitch" {
		t.Fatalf("Resolve(save) = %+v, %v, %v", res, ok, err)
	}
	res, ok, _ = resolver.Resolve(ctx, provider.GetPreference, []string{"themeswitch"}, nil, provider.PreferenceFound)
	if !ok || provider.PreferredTheme(res.Payload) != "sunset" {
		t.Fatalf("preference = %s, want sunset", res.Payload)
	}
	res, ok, _ = resolver.Resolve(ctx, provider.ListThemes, []string{"themeswitch"}, nil, provider.NonEmptyList)
	if !ok {
		t.Fatalf("expected theme list")
	}
	themes, _ := theme.DecodeCustom(res.Payload)
	if len(themes) != 3 {
		t.Fatalf("themes = %d, want 3", len(themes))
	}

	guest := provider.NewResolver(h.Caller(auth.GuestPrincipal), provider.Options{})
	if _, ok, _ := guest.Resolve(ctx, provider.SavePreference, []string{"themeswitch"}, map[string]string{"theme_name": "dark"}, provider.StatusSuccess); ok {
		t.Fatalf("guest save should not succeed")
	}
}
