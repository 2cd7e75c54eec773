package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/matthewsawatzky/themeswitch/internal/applicator"
	"github.com/matthewsawatzky/themeswitch/internal/auth"
	"github.com/matthewsawatzky/themeswitch/internal/colorscheme"
	"github.com/matthewsawatzky/themeswitch/internal/config"
	"github.com/matthewsawatzky/themeswitch/internal/db"
	"github.com/matthewsawatzky/themeswitch/internal/document"
	"github.com/matthewsawatzky/themeswitch/internal/engine"
	"github.com/matthewsawatzky/themeswitch/internal/extension"
	"github.com/matthewsawatzky/themeswitch/internal/prefs"
	"github.com/matthewsawatzky/themeswitch/internal/provider"
	"github.com/matthewsawatzky/themeswitch/internal/theme"
)

const OwnerName = "administrator"

type Options struct {
	Logger *slog.Logger
	// Terminal enables background detection on stdout for the automatic
	// theme.
	Terminal bool
	// Caller replaces the configured provider transport.
	Caller provider.Caller
	// Fetcher replaces the HTTP stylesheet fetcher.
	Fetcher applicator.Fetcher
}

type Shell struct {
	Config     config.Config
	Logger     *slog.Logger
	Store      *db.Store
	Document   *document.Document
	Applicator *applicator.Applicator
	Engine     *engine.Engine
	Host       *extension.Host
	Notices    *Notices
	Principal  auth.Principal
}

func New(cfg config.Config, opts Options) (*Shell, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	s := &Shell{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Document:  document.New(),
		Notices:   &Notices{logger: logger},
		Principal: auth.GuestPrincipal,
	}
	if cfg.ExtensionEnabled {
		s.Host = extension.New(extension.Options{App: cfg.ExtensionApp, ThemesDir: cfg.ThemesDir, Store: store, Logger: logger})
	}

	caller, err := s.caller(opts.Caller)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	var resolver *provider.Resolver
	if caller != nil {
		resolver = provider.NewResolver(caller, provider.Options{CandidateTimeout: cfg.Timeout(), Logger: logger})
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		f, err := applicator.NewHTTPFetcher(applicator.HTTPFetcherOptions{BaseURL: stylesheetBase(cfg)})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("stylesheet fetcher: %w", err)
		}
		fetcher = f
	}

	s.Applicator = applicator.New(s.Document, applicator.Options{
		Fetcher:  fetcher,
		Schemes:  schemes(cfg, opts.Terminal),
		Notifier: s.Notices,
		Logger:   logger,
	})
	s.Engine = engine.New(engine.Deps{
		Applicator: s.Applicator,
		Prefs:      prefs.New(resolver, prefs.Options{Candidates: cfg.Apps(), Local: store, Document: s.Document, Logger: logger}),
		Resolver:   resolver,
		Candidates: cfg.Apps(),
		Notifier:   s.Notices,
		Logger:     logger,
	})
	return s, nil
}

// caller picks the provider transport: a remote desk when provider_url is
// set, otherwise the in-process extension host.
func (s *Shell) caller(override provider.Caller) (provider.Caller, error) {
	cfg := s.Config
	switch {
	case override != nil:
		return override, nil
	case cfg.ProviderURL != "":
		return provider.NewHTTPCaller(cfg.ProviderURL, provider.HTTPOptions{APIKey: cfg.APIKey, APISecret: cfg.APISecret}), nil
	case s.Host != nil:
		p, err := s.localPrincipal()
		if err != nil {
			return nil, err
		}
		s.Principal = p
		return s.Host.Caller(p), nil
	}
	return nil, nil
}

func (s *Shell) localPrincipal() (auth.Principal, error) {
	if s.Config.APIKey != "" {
		p, ok := s.Host.Principal(s.Config.APIKey, s.Config.APISecret)
		if !ok {
			s.Logger.Warn("configured api key rejected, continuing as guest", "key", s.Config.APIKey)
			return auth.GuestPrincipal, nil
		}
		return p, nil
	}
	p, err := s.Host.Owner(OwnerName)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("resolve local owner: %w", err)
	}
	return p, nil
}

func stylesheetBase(cfg config.Config) string {
	switch {
	case cfg.StylesheetBase != "":
		return cfg.StylesheetBase
	case cfg.ProviderURL != "":
		return cfg.ProviderURL
	}
	scheme := "http"
	if cfg.HTTPS {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port))
}

func schemes(cfg config.Config, terminal bool) *colorscheme.Resolver {
	r := colorscheme.NewResolver(colorscheme.Light, colorscheme.Env{}, colorscheme.ClientHint{})
	if a, ok := colorscheme.ParseAppearance(cfg.ColorScheme); ok {
		r.Register(colorscheme.Fixed{Value: a})
	}
	if terminal {
		r.Register(colorscheme.Terminal{})
	}
	return r
}

func (s *Shell) Actor() *int64 {
	if s.Principal.Guest || s.Principal.UserID == 0 {
		return nil
	}
	id := s.Principal.UserID
	return &id
}

func (s *Shell) Select(ctx context.Context, id string, actor *int64, via string) error {
	sw, err := s.Engine.Select(ctx, id)
	if err != nil {
		return err
	}
	s.audit(sw, actor, via)
	return nil
}

func (s *Shell) Step(ctx context.Context, delta int, actor *int64, via string) (theme.Descriptor, error) {
	sw, err := s.Engine.Step(ctx, delta)
	if err != nil {
		return theme.Descriptor{}, err
	}
	s.audit(sw, actor, via)
	return sw.To, nil
}

func (s *Shell) audit(sw engine.Switch, actor *int64, via string) {
	if actor == nil {
		actor = s.Actor()
	}
	meta, _ := json.Marshal(map[string]string{"from": sw.From, "via": via, "appearance": string(sw.Appearance)})
	if err := s.Store.RecordAudit(actor, db.ActionThemeSelect, sw.To.ID, string(meta)); err != nil {
		s.Logger.Warn("record theme switch failed", "theme", sw.To.ID, "error", err)
	}
}

func (s *Shell) Close() error {
	return s.Store.Close()
}

type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Notices struct {
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[int]func(Notice)
	next      int
}

func (n *Notices) Info(msg string) { n.publish(Notice{Level: "info", Message: msg}) }
func (n *Notices) Warn(msg string) { n.publish(Notice{Level: "warn", Message: msg}) }

func (n *Notices) publish(notice Notice) {
	if notice.Level == "warn" {
		n.logger.Warn(notice.Message)
	} else {
		n.logger.Info(notice.Message)
	}
	n.mu.Lock()
	fns := make([]func(Notice), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(notice)
	}
}

func (n *Notices) Subscribe(fn func(Notice)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = map[int]func(Notice){}
	}
	id := n.next
	n.next++
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}
