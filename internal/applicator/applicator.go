package applicator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/matthewsawatzky/themeswitch/internal/colorscheme"
	"github.com/matthewsawatzky/themeswitch/internal/cssadapt"
	"github.com/matthewsawatzky/themeswitch/internal/document"
	"github.com/matthewsawatzky/themeswitch/internal/theme"
)

const (
	StyleClass    = "custom-theme-style"
	StyleIDPrefix = "custom-theme-"

	AttrMode   = "data-theme-mode"
	AttrTheme  = "data-theme"
	AttrCustom = "data-custom-theme"

	ModeCustom = "custom"
)

var ownedVarMarkers = []string{"theme", "primary", "color", "bg", "background", "text"}

type Notifier interface {
	Info(msg string)
	Warn(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Info(string) {}
func (nopNotifier) Warn(string) {}

// StyleFetchError reports a stylesheet that could not be loaded. The theme's
// markers and variables are still applied.
type StyleFetchError struct {
	Theme string
	Ref   string
	Err   error
}

func (e *StyleFetchError) Error() string {
	return fmt.Sprintf("load stylesheet for %s from %s: %v", e.Theme, e.Ref, e.Err)
}

func (e *StyleFetchError) Unwrap() error { return e.Err }

type Options struct {
	Fetcher  Fetcher
	Adapter  cssadapt.Transformer
	Schemes  *colorscheme.Resolver
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

type Applied struct {
	Theme      string
	Mode       string
	Appearance colorscheme.Appearance
	Event      document.Event
}

type Applicator struct {
	doc      *document.Document
	fetcher  Fetcher
	adapter  cssadapt.Transformer
	schemes  *colorscheme.Resolver
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	owned map[string]struct{}
}

func New(doc *document.Document, opts Options) *Applicator {
	if opts.Adapter == nil {
		opts.Adapter = cssadapt.NewDeskAdapter()
	}
	if opts.Schemes == nil {
		opts.Schemes = colorscheme.NewResolver(colorscheme.Light)
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Applicator{
		doc:      doc,
		fetcher:  opts.Fetcher,
		adapter:  opts.Adapter,
		schemes:  opts.Schemes,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		now:      opts.Now,
		owned:    map[string]struct{}{},
	}
}

func StyleID(themeID string) string {
	return StyleIDPrefix + themeID
}

func (a *Applicator) RemoveCustom() {
	a.mu.Lock()
	a.removeCustomLocked()
	a.mu.Unlock()
	a.doc.Reflow()
}

func (a *Applicator) removeCustomLocked() {
	if n := a.doc.RemoveStylesByClass(StyleClass); n > 0 {
		a.logger.Debug("removed custom styles", "count", n)
	}
	a.doc.RemoveRootAttr(AttrCustom)
	for name := range a.owned {
		a.doc.RemoveVar(name)
	}
	a.owned = map[string]struct{}{}
	for _, name := range a.doc.VarNames() {
		if ownsVar(name) {
			a.doc.RemoveVar(name)
		}
	}
}

func ownsVar(name string) bool {
	if !strings.HasPrefix(name, "--") {
		return false
	}
	lower := strings.ToLower(name)
	for _, marker := range ownedVarMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Apply makes d the active theme. done, when non-nil, runs once the apply
// has settled, including when a referenced stylesheet fails to load.
func (a *Applicator) Apply(ctx context.Context, d theme.Descriptor, done func()) (Applied, error) {
	if done != nil {
		defer done()
	}
	if d.Kind == theme.KindCustom {
		return a.applyCustom(ctx, d)
	}
	return a.applyBuiltin(ctx, d)
}

func (a *Applicator) applyBuiltin(ctx context.Context, d theme.Descriptor) (Applied, error) {
	appearance := colorscheme.Light
	switch d.ID {
	case theme.Dark:
		appearance = colorscheme.Dark
	case theme.Automatic:
		appearance = a.schemes.Resolve(ctx).Appearance
	}

	a.mu.Lock()
	a.removeCustomLocked()
	a.doc.SetRootAttr(AttrMode, d.ID)
	a.doc.SetRootAttr(AttrTheme, string(appearance))
	a.mu.Unlock()
	a.doc.Reflow()

	ev := a.doc.Dispatch(document.Event{Name: document.ThemeChanged, Theme: d.ID, Timestamp: a.now()})
	a.logger.Info("theme applied", "theme", d.ID, "appearance", appearance)
	return Applied{Theme: d.ID, Mode: d.ID, Appearance: appearance, Event: ev}, nil
}

func (a *Applicator) applyCustom(ctx context.Context, d theme.Descriptor) (Applied, error) {
	a.mu.Lock()
	a.removeCustomLocked()
	a.mu.Unlock()

	css := d.StylePayload
	var fetchErr error
	if strings.TrimSpace(css) == "" && strings.TrimSpace(d.StyleReference) != "" {
		css, fetchErr = a.fetch(ctx, d)
		if fetchErr == nil && d.AuthoredForWebsite() {
			css = a.adapter.Transform(css)
		}
	}

	// Another apply may have injected while the fetch was in flight; the
	// last one to get here wins.
	a.mu.Lock()
	a.removeCustomLocked()
	if fetchErr == nil && strings.TrimSpace(css) != "" {
		a.doc.AppendStyle(StyleID(d.ID), StyleClass, closeSafe(css))
	}
	for name, value := range d.CSSVariables {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !strings.HasPrefix(name, "--") {
			name = "--" + name
		}
		a.doc.SetVar(name, value)
		a.owned[name] = struct{}{}
	}
	a.doc.SetRootAttr(AttrMode, ModeCustom)
	a.doc.SetRootAttr(AttrCustom, d.ID)
	appearance, ok := colorscheme.ParseAppearance(a.rootAttr(AttrTheme))
	a.mu.Unlock()
	if !ok {
		appearance = colorscheme.Light
	}
	a.doc.Reflow()

	ev := a.doc.Dispatch(document.Event{Name: document.ThemeChanged, Theme: d.ID, Timestamp: a.now()})
	applied := Applied{Theme: d.ID, Mode: ModeCustom, Appearance: appearance, Event: ev}
	if fetchErr != nil {
		a.notifier.Warn("Error loading custom theme: " + fetchErr.Error())
		a.logger.Warn("custom theme stylesheet failed", "theme", d.ID, "ref", d.StyleReference, "error", fetchErr)
		return applied, &StyleFetchError{Theme: d.ID, Ref: d.StyleReference, Err: fetchErr}
	}
	a.logger.Info("theme applied", "theme", d.ID, "mode", ModeCustom)
	return applied, nil
}

// closeSafe CSS-escapes "<" so the text cannot end its style element.
func closeSafe(css string) string {
	return strings.ReplaceAll(css, "<", `\3c `)
}

func (a *Applicator) fetch(ctx context.Context, d theme.Descriptor) (string, error) {
	if a.fetcher == nil {
		return "", fmt.Errorf("no stylesheet fetcher configured")
	}
	return a.fetcher.Fetch(ctx, d.StyleReference)
}

func (a *Applicator) rootAttr(key string) string {
	v, _ := a.doc.RootAttr(key)
	return v
}
