package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matthewsawatzky/themeswitch/internal/applicator"
	"github.com/matthewsawatzky/themeswitch/internal/colorscheme"
	"github.com/matthewsawatzky/themeswitch/internal/prefs"
	"github.com/matthewsawatzky/themeswitch/internal/preview"
	"github.com/matthewsawatzky/themeswitch/internal/provider"
	"github.com/matthewsawatzky/themeswitch/internal/theme"
)

var (
	ErrUnknownTheme = errors.New("unknown theme")
	ErrNoDescriptor = errors.New("no theme in that direction")
)

const appliedNotice = "Theme Applied Instantly"

type Deps struct {
	Applicator *applicator.Applicator
	Prefs      *prefs.Store
	Resolver   *provider.Resolver
	Candidates []string
	Notifier   applicator.Notifier
	Logger     *slog.Logger
}

type State struct {
	Current    string                     `json:"current"`
	Persisted  string                     `json:"persisted,omitempty"`
	Source     prefs.Source               `json:"source,omitempty"`
	Appearance colorscheme.Appearance     `json:"appearance"`
	Catalog    theme.Catalog              `json:"-"`
	Previews   map[string]preview.Palette `json:"previews"`
}

type Engine struct {
	applicator *applicator.Applicator
	prefs      *prefs.Store
	resolver   *provider.Resolver
	candidates []string
	notifier   applicator.Notifier
	logger     *slog.Logger

	selectMu sync.Mutex
	mu       sync.RWMutex
	state    State
}

func New(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = logNotifier{logger: deps.Logger}
	}
	catalog := theme.BuildCatalog(nil)
	return &Engine{
		applicator: deps.Applicator,
		prefs:      deps.Prefs,
		resolver:   deps.Resolver,
		candidates: provider.Candidates(deps.Candidates),
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		state: State{
			Current:    theme.Light,
			Appearance: colorscheme.Light,
			Catalog:    catalog,
			Previews:   previews(catalog),
		},
	}
}

// Open loads the saved preference and the provider catalog concurrently,
// rebuilds the catalog and applies the current theme. Provider failures
// leave a builtin-only catalog; only cancellation of ctx is returned.
func (e *Engine) Open(ctx context.Context) (State, error) {
	e.selectMu.Lock()
	defer e.selectMu.Unlock()

	var (
		persisted string
		source    prefs.Source
		found     bool
		customs   []theme.Descriptor
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if e.prefs != nil {
			persisted, source, found = e.prefs.Load(gctx)
		}
		return gctx.Err()
	})
	g.Go(func() error {
		var err error
		customs, err = e.listCustom(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return e.State(), err
	}

	catalog := theme.BuildCatalog(customs)
	current, ok := catalog.Get(persisted)
	if !found || !ok {
		if found {
			e.logger.Warn("saved theme is not in the catalog, rendering light", "theme", persisted)
		}
		current, _ = catalog.Get(theme.Light)
	}

	applied, err := e.applicator.Apply(ctx, current, nil)
	var fetchErr *applicator.StyleFetchError
	if err != nil && !errors.As(err, &fetchErr) {
		return e.State(), err
	}

	e.mu.Lock()
	e.state = State{
		Current:    current.ID,
		Persisted:  persisted,
		Source:     source,
		Appearance: applied.Appearance,
		Catalog:    catalog,
		Previews:   previews(catalog),
	}
	e.mu.Unlock()
	e.logger.Info("theme engine opened", "current", current.ID, "source", source, "themes", catalog.Len())
	return e.State(), nil
}

func (e *Engine) listCustom(ctx context.Context) ([]theme.Descriptor, error) {
	if e.resolver == nil {
		return nil, nil
	}
	res, ok, err := e.resolver.Resolve(ctx, provider.ListThemes, e.candidates, nil, provider.NonEmptyList)
	if err != nil || !ok {
		return nil, err
	}
	customs, err := theme.DecodeCustom(res.Payload)
	if err != nil {
		e.logger.Warn("provider theme list unreadable", "app", res.App, "error", err)
		return nil, nil
	}
	return customs, nil
}

func previews(c theme.Catalog) map[string]preview.Palette {
	out := make(map[string]preview.Palette, c.Len())
	for _, d := range c.All() {
		out[d.ID] = preview.For(d)
	}
	return out
}

type Switch struct {
	From       string
	To         theme.Descriptor
	Appearance colorscheme.Appearance
}

// Select applies id and persists it. Selecting the active theme only
// re-saves the preference.
func (e *Engine) Select(ctx context.Context, id string) (Switch, error) {
	e.selectMu.Lock()
	defer e.selectMu.Unlock()

	snap := e.State()
	d, ok := snap.Catalog.Get(id)
	if !ok {
		return Switch{}, fmt.Errorf("%w: %q", ErrUnknownTheme, id)
	}
	return e.selectLocked(ctx, snap, d)
}

func (e *Engine) Step(ctx context.Context, delta int) (Switch, error) {
	e.selectMu.Lock()
	defer e.selectMu.Unlock()

	snap := e.State()
	d, ok := snap.Catalog.Neighbor(snap.Current, delta)
	if !ok {
		return Switch{}, ErrNoDescriptor
	}
	return e.selectLocked(ctx, snap, d)
}

func (e *Engine) selectLocked(ctx context.Context, snap State, d theme.Descriptor) (Switch, error) {
	sw := Switch{From: snap.Current, To: d, Appearance: snap.Appearance}
	if d.ID == snap.Current {
		if e.prefs != nil {
			e.prefs.Save(ctx, d.ID)
		}
		e.logger.Debug("theme already active, preference confirmed", "theme", d.ID)
		return sw, nil
	}

	applied, err := e.applicator.Apply(ctx, d, nil)
	var fetchErr *applicator.StyleFetchError
	if err != nil && !errors.As(err, &fetchErr) {
		return Switch{}, err
	}
	e.mu.Lock()
	e.state.Current = d.ID
	e.state.Persisted = d.ID
	e.state.Appearance = applied.Appearance
	e.mu.Unlock()
	sw.Appearance = applied.Appearance

	if e.prefs != nil {
		e.prefs.Save(ctx, d.ID)
	}
	if fetchErr == nil {
		e.notifier.Info(appliedNotice)
	}
	return sw, nil
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.state
	s.Previews = make(map[string]preview.Palette, len(e.state.Previews))
	for k, v := range e.state.Previews {
		s.Previews[k] = v
	}
	return s
}

func (e *Engine) Current() theme.Descriptor {
	s := e.State()
	d, _ := s.Catalog.Get(s.Current)
	return d
}

type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Info(msg string) { n.logger.Info(msg) }
func (n logNotifier) Warn(msg string) { n.logger.Warn(msg) }
