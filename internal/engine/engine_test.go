package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/matthewsawatzky/themeswitch/internal/applicator"
	"github.com/matthewsawatzky/themeswitch/internal/db"
	"github.com/matthewsawatzky/themeswitch/internal/document"
	"github.com/matthewsawatzky/themeswitch/internal/prefs"
	"github.com/matthewsawatzky/themeswitch/internal/provider"
)

type notes struct {
	mu    sync.Mutex
	infos []string
	warns []string
}

func (n *notes) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *notes) Warn(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warns = append(n.warns, msg)
}

// fakeDesk answers provider calls from a per-app table. Missing entries fail
// like an unknown remote method.
type fakeDesk struct {
	mu        sync.Mutex
	responses map[string]map[provider.Capability]string
	saved     []string
}

func (f *fakeDesk) call(_ context.Context, app string, c provider.Capability, args map[string]string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.responses[app][c]
	if !ok {
		return nil, errors.New("method not found")
	}
	if c == provider.SavePreference {
		f.saved = append(f.saved, app+"="+args["theme_name"])
	}
	return json.RawMessage(body), nil
}

type harness struct {
	engine *Engine
	doc    *document.Document
	store  *db.Store
	notes  *notes
	desk   *fakeDesk
}

func newHarness(t *testing.T, desk *fakeDesk, apps ...string) harness {
	t.Helper()
	store, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return newHarnessWithStore(t, store, desk, apps...)
}

func newHarnessWithStore(t *testing.T, store *db.Store, desk *fakeDesk, apps ...string) harness {
	t.Helper()
	doc := document.New()
	n := &notes{}
	resolver := provider.NewResolver(provider.CallerFunc(desk.call), provider.Options{})
	app := applicator.New(doc, applicator.Options{Notifier: n})
	eng := New(Deps{
		Applicator: app,
		Prefs:      prefs.New(resolver, prefs.Options{Candidates: apps, Local: store, Document: doc}),
		Resolver:   resolver,
		Candidates: apps,
		Notifier:   n,
	})
	return harness{engine: eng, doc: doc, store: store, notes: n, desk: desk}
}

func customStyles(doc *document.Document) []document.Style {
	return doc.StylesByClass(applicator.StyleClass)
}

func TestOpenMergesFirstWorkingProvider(t *testing.T) {
	desk := &fakeDesk{responses: map[string]map[provider.Capability]string{
		"appB": {provider.ListThemes: `[{"name":"Ocean","css_content":".navbar{background:#0077be}"}]`},
	}}
	h := newHarness(t, desk, "appA", "appB")
	st, err := h.engine.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if got := strings.Join(st.Catalog.IDs(), ","); got != "light,dark,automatic,ocean" {
		t.Fatalf("catalog = %s", got)
	}
	if st.Current != "light" || st.Source != prefs.SourceNone {
		t.Fatalf("state = %+v, want light with no saved preference", st)
	}
	if mode, _ := h.doc.RootAttr(applicator.AttrMode); mode != "light" {
		t.Fatalf("data-theme-mode = %q, want light", mode)
	}
	for _, id := range st.Catalog.IDs() {
		if p, ok := st.Previews[id]; !ok || !p.Complete() {
			t.Fatalf("preview for %s incomplete: %+v", id, p)
		}
	}
}

func TestOpenWithoutProvidersKeepsBuiltins(t *testing.T) {
	h := newHarness(t, &fakeDesk{})
	st, err := h.engine.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if st.Catalog.Len() != 3 || st.Current != "light" {
		t.Fatalf("state = %+v, want builtin catalog with light", st)
	}
}

func TestOpenAppliesSavedCustomTheme(t *testing.T) {
	desk := &fakeDesk{responses: map[string]map[provider.Capability]string{
		"hrms": {
			provider.ListThemes:    `[{"name":"ocean","css_content":"body{color:blue}"}]`,
			provider.GetPreference: `{"status":"success","theme":"ocean"}`,
		},
	}}
	h := newHarness(t, desk, "hrms")
	st, err := h.engine.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if st.Current != "ocean" || st.Source != prefs.SourceRemote {
		t.Fatalf("state = %+v", st)
	}
	if styles := customStyles(h.doc); len(styles) != 1 || styles[0].ID != "custom-theme-ocean" {
		t.Fatalf("styles = %+v", styles)
	}
}

func TestOpenUnknownSavedThemeRendersLight(t *testing.T) {
	desk := &fakeDesk{responses: map[string]map[provider.Capability]string{
		"hrms": {provider.GetPreference: `{"status":"success","theme":"vanished"}`},
	}}
	h := newHarness(t, desk, "hrms")
	st, err := h.engine.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if st.Current != "light" || st.Persisted != "vanished" {
		t.Fatalf("state = %+v, want light with persisted value kept", st)
	}
	if len(h.desk.saved) != 0 {
		t.Fatalf("open must not rewrite the saved preference, saved %v", h.desk.saved)
	}
}

func TestSelectSwitchesAndPersists(t *testing.T) {
	desk := &fakeDesk{responses: map[string]map[provider.Capability]string{
		"hrms": {
			provider.ListThemes:     `[{"name":"ocean","css_content":".navbar{background:#0077be}"}]`,
			provider.SavePreference: `{"status":"success"}`,
		},
	}}
	h := newHarness(t, desk, "hrms")
	ctx := context.Background()
	if _, err := h.engine.Open(ctx); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if _, err := h.engine.Select(ctx, "dark"); err != nil {
		t.Fatalf("Select(dark) error: %v", err)
	}
	if _, err := h.engine.Select(ctx, "Ocean"); err != nil {
		t.Fatalf("Select(Ocean) error: %v", err)
	}
	if styles := customStyles(h.doc); len(styles) != 1 || styles[0].ID != "custom-theme-ocean" {
		t.Fatalf("styles after ocean = %+v", styles)
	}
	if th, _ := h.doc.RootAttr(applicator.AttrTheme); th != "dark" {
		t.Fatalf("data-theme = %q, custom theme should keep dark", th)
	}
	if _, err := h.engine.Select(ctx, "light"); err != nil {
		t.Fatalf("Select(light) error: %v", err)
	}
	if n := len(customStyles(h.doc)); n != 0 {
		t.Fatalf("%d custom styles after light", n)
	}
	if got := strings.Join(h.desk.saved, ","); got != "hrms=dark,hrms=ocean,hrms=light" {
		t.Fatalf("saved = %s", got)
	}
	if v, _ := h.store.GetSetting(prefs.LocalKey); v != "light" {
		t.Fatalf("local cache = %q, want light", v)
	}
	if len(h.notes.infos) != 3 || h.notes.infos[0] != "Theme Applied Instantly" {
		t.Fatalf("infos = %q", h.notes.infos)
	}
}

func TestSelectActiveThemeOnlyResaves(t *testing.T) {
	desk := &fakeDesk{responses: map[string]map[provider.Capability]string{
		"hrms": {provider.SavePreference: `{"status":"success"}`},
	}}
	h := newHarness(t, desk, "hrms")
	ctx := context.Background()
	if _, err := h.engine.Open(ctx); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	gen := h.doc.Generation()
	if _, err := h.engine.Select(ctx, "light"); err != nil {
		t.Fatalf("Select(light) error: %v", err)
	}
	if h.doc.Generation() != gen {
		t.Fatalf("reselecting the active theme touched the document")
	}
	if len(h.desk.saved) != 1 {
		t.Fatalf("saved = %v, want one confirmation", h.desk.saved)
	}
}

func TestSelectUnknownTheme(t *testing.T) {
	h := newHarness(t, &fakeDesk{})
	if _, err := h.engine.Select(context.Background(), "nope"); !errors.Is(err, ErrUnknownTheme) {
		t.Fatalf("Select(nope) error = %v, want ErrUnknownTheme", err)
	}
}

func TestSaveFailureStillCachesLocally(t *testing.T) {
	desk := &fakeDesk{responses: map[string]map[provider.Capability]string{
		"appA": {provider.SavePreference: `{"status":"error"}`},
	}}
	h := newHarness(t, desk, "appA", "appB")
	ctx := context.Background()
	if _, err := h.engine.Select(ctx, "dark"); err != nil {
		t.Fatalf("Select(dark) error: %v", err)
	}
	if v, _ := h.store.GetSetting(prefs.LocalKey); v != "dark" {
		t.Fatalf("local cache = %q, want dark", v)
	}

	// A fresh session against the same cache, with the remote still down.
	next := newHarnessWithStore(t, h.store, &fakeDesk{}, "appA")
	st, err := next.engine.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if st.Current != "dark" || st.Source != prefs.SourceLocal {
		t.Fatalf("state = %+v, want dark from local cache", st)
	}
}

func TestSelectReportsPreviousTheme(t *testing.T) {
	h := newHarness(t, &fakeDesk{})
	ctx := context.Background()
	ids := []string{"dark", "automatic", "automatic", "light"}
	var wg sync.WaitGroup
	switches := make([]Switch, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sw, err := h.engine.Select(ctx, id)
			if err != nil {
				t.Errorf("Select(%q) error: %v", id, err)
			}
			switches[i] = sw
		}(i, id)
	}
	wg.Wait()

	// Selections are serialised, so every From is light or some earlier To.
	var froms, tos []string
	for _, sw := range switches {
		froms = append(froms, sw.From)
		tos = append(tos, sw.To.ID)
	}
	current := h.engine.State().Current
	want := append([]string{"light"}, tos...)
	for i, id := range want {
		if id == current {
			want = append(want[:i], want[i+1:]...)
			break
		}
	}
	sort.Strings(froms)
	sort.Strings(want)
	if strings.Join(froms, ",") != strings.Join(want, ",") {
		t.Fatalf("from = %v, want %v (current %q)", froms, want, current)
	}
}

func TestStep(t *testing.T) {
	h := newHarness(t, &fakeDesk{})
	ctx := context.Background()
	if _, err := h.engine.Step(ctx, -1); !errors.Is(err, ErrNoDescriptor) {
		t.Fatalf("Step(-1) from light error = %v, want ErrNoDescriptor", err)
	}
	sw, err := h.engine.Step(ctx, 1)
	if err != nil || sw.To.ID != "dark" || sw.From != "light" {
		t.Fatalf("Step(1) = %+v, %v, want light to dark", sw, err)
	}
	if h.engine.Current().ID != "dark" {
		t.Fatalf("Current() = %q, want dark", h.engine.Current().ID)
	}
}

func TestFetchFailureKeepsEngineUsable(t *testing.T) {
	desk := &fakeDesk{responses: map[string]map[provider.Capability]string{
		"hrms": {provider.ListThemes: `[{"name":"remote","theme_url":"/missing.css"}]`},
	}}
	h := newHarness(t, desk, "hrms")
	ctx := context.Background()
	if _, err := h.engine.Open(ctx); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := h.engine.Select(ctx, "remote"); err != nil {
		t.Fatalf("Select(remote) error: %v", err)
	}
	if h.engine.State().Current != "remote" {
		t.Fatalf("selection should stand after a failed fetch")
	}
	if len(h.notes.warns) != 1 || len(h.notes.infos) != 0 {
		t.Fatalf("warns = %q, infos = %q", h.notes.warns, h.notes.infos)
	}
	if n := len(customStyles(h.doc)); n != 0 {
		t.Fatalf("%d custom styles after failed fetch", n)
	}
}
