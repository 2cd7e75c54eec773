package prefs

import (
	"context"
	"log/slog"
	"strings"

	"github.com/matthewsawatzky/themeswitch/internal/applicator"
	"github.com/matthewsawatzky/themeswitch/internal/document"
	"github.com/matthewsawatzky/themeswitch/internal/provider"
)

const LocalKey = "custom_desk_theme"

type LocalCache interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

type Source string

const (
	SourceNone     Source = ""
	SourceRemote   Source = "remote"
	SourceDocument Source = "document"
	SourceLocal    Source = "local"
)

type Options struct {
	Candidates []string
	Local      LocalCache
	Document   *document.Document
	Logger     *slog.Logger
}

type Store struct {
	resolver   *provider.Resolver
	candidates []string
	local      LocalCache
	doc        *document.Document
	logger     *slog.Logger
}

func New(resolver *provider.Resolver, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		resolver:   resolver,
		candidates: provider.Candidates(opts.Candidates),
		local:      opts.Local,
		doc:        opts.Document,
		logger:     opts.Logger,
	}
}

// Load returns the persisted theme id and where it came from. ok is false
// when no source has one. A cancelled ctx skips the fallbacks.
func (s *Store) Load(ctx context.Context) (id string, src Source, ok bool) {
	if s.resolver != nil {
		res, found, err := s.resolver.Resolve(ctx, provider.GetPreference, s.candidates, nil, provider.PreferenceFound)
		if err != nil {
			return "", SourceNone, false
		}
		if found {
			return provider.PreferredTheme(res.Payload), SourceRemote, true
		}
	}
	if s.doc != nil {
		if v, ok := s.doc.RootAttr(applicator.AttrCustom); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), SourceDocument, true
		}
	}
	if s.local != nil {
		v, err := s.local.GetSetting(LocalKey)
		if err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), SourceLocal, true
		}
	}
	return "", SourceNone, false
}

type SaveOutcome struct {
	Remote   bool
	Provider string
	Local    bool
}

// Save offers id to every provider candidate until one reports success, then
// writes the local cache regardless. Failures are logged, never returned.
func (s *Store) Save(ctx context.Context, id string) SaveOutcome {
	var out SaveOutcome
	if s.resolver != nil {
		args := map[string]string{"theme_name": id}
		res, found, err := s.resolver.Resolve(ctx, provider.SavePreference, s.candidates, args, provider.StatusSuccess)
		switch {
		case err != nil:
			s.logger.Warn("save preference interrupted", "theme", id, "error", err)
		case found:
			out.Remote, out.Provider = true, res.App
		default:
			s.logger.Warn("no provider accepted theme preference", "theme", id)
		}
	}
	if s.local != nil {
		if err := s.local.SetSetting(LocalKey, id); err != nil {
			s.logger.Warn("local theme cache write failed", "theme", id, "error", err)
		} else {
			out.Local = true
		}
	}
	return out
}
