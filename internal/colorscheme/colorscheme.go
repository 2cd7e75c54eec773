package colorscheme

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

type Appearance string

const (
	Light Appearance = "light"
	Dark  Appearance = "dark"
)

func ParseAppearance(v string) (Appearance, bool) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(v), `"`)) {
	case "dark":
		return Dark, true
	case "light":
		return Light, true
	}
	return "", false
}

type Preference struct {
	Appearance Appearance
	Source     string
}

// Detector reports the platform appearance. Higher priorities are asked
// first.
type Detector interface {
	Name() string
	Priority() int
	Available() bool
	Detect(ctx context.Context) (Appearance, bool)
}

type Resolver struct {
	mu        sync.RWMutex
	detectors []Detector
	fallback  Appearance
}

func NewResolver(fallback Appearance, detectors ...Detector) *Resolver {
	if fallback == "" {
		fallback = Light
	}
	r := &Resolver{fallback: fallback}
	for _, d := range detectors {
		r.Register(d)
	}
	return r
}

func (r *Resolver) Register(d Detector) {
	if d == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors = append(r.detectors, d)
	sort.SliceStable(r.detectors, func(i, j int) bool {
		return r.detectors[i].Priority() > r.detectors[j].Priority()
	})
}

func (r *Resolver) Resolve(ctx context.Context) Preference {
	r.mu.RLock()
	detectors := append([]Detector(nil), r.detectors...)
	r.mu.RUnlock()
	for _, d := range detectors {
		if !d.Available() {
			continue
		}
		if a, ok := d.Detect(ctx); ok {
			return Preference{Appearance: a, Source: d.Name()}
		}
	}
	return Preference{Appearance: r.fallback}
}

type Fixed struct {
	Value Appearance
}

func (f Fixed) Name() string { return "fixed" }
func (f Fixed) Priority() int { return 100 }
func (f Fixed) Available() bool { return f.Value == Light || f.Value == Dark }
func (f Fixed) Detect(context.Context) (Appearance, bool) {
	return f.Value, f.Available()
}

const EnvVar = "THEMESWITCH_COLOR_SCHEME"

type Env struct {
	Var    string
	Lookup func(string) (string, bool)
}

func (e Env) Name() string { return "env" }
func (e Env) Priority() int { return 50 }
func (e Env) Available() bool { return true }

func (e Env) Detect(context.Context) (Appearance, bool) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	name := e.Var
	if name == "" {
		name = EnvVar
	}
	v, ok := lookup(name)
	if !ok {
		return "", false
	}
	return ParseAppearance(v)
}

const HintHeader = "Sec-CH-Prefers-Color-Scheme"

type hintKey struct{}

func WithClientHint(ctx context.Context, hint string) context.Context {
	if strings.TrimSpace(hint) == "" {
		return ctx
	}
	return context.WithValue(ctx, hintKey{}, hint)
}

type ClientHint struct{}

func (ClientHint) Name() string { return "client-hint" }
func (ClientHint) Priority() int { return 80 }
func (ClientHint) Available() bool { return true }

func (ClientHint) Detect(ctx context.Context) (Appearance, bool) {
	hint, _ := ctx.Value(hintKey{}).(string)
	return ParseAppearance(hint)
}

type Terminal struct {
	File *os.File
}

func (t Terminal) Name() string { return "terminal" }
func (t Terminal) Priority() int { return 10 }

func (t Terminal) file() *os.File {
	if t.File != nil {
		return t.File
	}
	return os.Stdout
}

func (t Terminal) Available() bool {
	return term.IsTerminal(int(t.file().Fd()))
}

func (t Terminal) Detect(context.Context) (Appearance, bool) {
	if termenv.NewOutput(t.file()).HasDarkBackground() {
		return Dark, true
	}
	return Light, true
}
