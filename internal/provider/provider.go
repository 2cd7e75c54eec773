package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Capability string

const (
	GetPreference  Capability = "get_desk_theme_preference"
	ListThemes     Capability = "get_available_themes"
	SavePreference Capability = "save_desk_theme_preference"
)

const DefaultCandidateTimeout = 10 * time.Second

const tracerName = "github.com/matthewsawatzky/themeswitch/internal/provider"

var FallbackApps = []string{"doctyped_cheatsheets", "erpnext", "hrms", "lms", "wiki"}

func MethodPath(app string, capability Capability) string {
	return app + ".user_extension." + string(capability)
}

func Candidates(installed []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(installed))
	for _, app := range installed {
		app = strings.TrimSpace(app)
		if app == "" {
			continue
		}
		if _, ok := seen[app]; ok {
			continue
		}
		seen[app] = struct{}{}
		out = append(out, app)
	}
	if len(out) == 0 {
		return append([]string(nil), FallbackApps...)
	}
	return out
}

type Caller interface {
	Call(ctx context.Context, app string, capability Capability, args map[string]string) (json.RawMessage, error)
}

type CallerFunc func(ctx context.Context, app string, capability Capability, args map[string]string) (json.RawMessage, error)

func (f CallerFunc) Call(ctx context.Context, app string, capability Capability, args map[string]string) (json.RawMessage, error) {
	return f(ctx, app, capability, args)
}

type AcceptFunc func(payload json.RawMessage) bool

type Result struct {
	App     string
	Payload json.RawMessage
}

type Options struct {
	CandidateTimeout time.Duration
	Logger           *slog.Logger
	Tracer           trace.Tracer
}

type Resolver struct {
	caller  Caller
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewResolver(caller Caller, opts Options) *Resolver {
	if opts.CandidateTimeout <= 0 {
		opts.CandidateTimeout = DefaultCandidateTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	return &Resolver{caller: caller, timeout: opts.CandidateTimeout, logger: opts.Logger, tracer: opts.Tracer}
}

// Resolve asks each candidate in turn and returns the first payload accepted
// by accept. Exhausting the list is reported as ok == false with a nil error;
// only cancellation of ctx is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, capability Capability, candidates []string, args map[string]string, accept AcceptFunc) (Result, bool, error) {
	if accept == nil {
		accept = NonEmpty
	}
	ctx, span := r.tracer.Start(ctx, "provider.resolve", trace.WithAttributes(
		attribute.String("provider.capability", string(capability)),
		attribute.Int("provider.candidates", len(candidates)),
	))
	defer span.End()

	for i, app := range candidates {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return Result{}, false, err
		}
		payload, err := r.try(ctx, i, app, capability, args)
		if err != nil {
			if ctx.Err() != nil {
				span.SetStatus(codes.Error, ctx.Err().Error())
				return Result{}, false, ctx.Err()
			}
			r.logger.Debug("provider candidate failed", "app", app, "capability", capability, "error", err)
			continue
		}
		if !accept(payload) {
			r.logger.Debug("provider candidate returned no usable result", "app", app, "capability", capability)
			continue
		}
		span.SetAttributes(attribute.String("provider.app", app))
		return Result{App: app, Payload: payload}, true, nil
	}
	r.logger.Debug("no provider available", "capability", capability, "candidates", len(candidates))
	return Result{}, false, nil
}

func (r *Resolver) try(ctx context.Context, index int, app string, capability Capability, args map[string]string) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	callCtx, span := r.tracer.Start(callCtx, "provider.call", trace.WithAttributes(
		attribute.String("provider.app", app),
		attribute.Int("provider.index", index),
		attribute.String("provider.method", MethodPath(app, capability)),
	))
	defer span.End()

	payload, err := r.caller.Call(callCtx, app, capability, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w", MethodPath(app, capability), err)
	}
	return payload, nil
}

type Status struct {
	Status  string `json:"status"`
	Theme   string `json:"theme,omitempty"`
	Message string `json:"message,omitempty"`
}

func decodeStatus(payload json.RawMessage) (Status, bool) {
	var s Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return Status{}, false
	}
	return s, true
}

func StatusSuccess(payload json.RawMessage) bool {
	s, ok := decodeStatus(payload)
	return ok && s.Status == "success"
}

func PreferenceFound(payload json.RawMessage) bool {
	s, ok := decodeStatus(payload)
	return ok && s.Status == "success" && strings.TrimSpace(s.Theme) != ""
}

func NonEmptyList(payload json.RawMessage) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return false
	}
	return len(items) > 0
}

// NonEmpty rejects empty, null, false, zero and empty-string payloads.
func NonEmpty(payload json.RawMessage) bool {
	switch strings.TrimSpace(string(payload)) {
	case "", "null", "false", "0", `""`, "[]", "{}":
		return false
	}
	return true
}

func PreferredTheme(payload json.RawMessage) string {
	s, _ := decodeStatus(payload)
	return strings.TrimSpace(s.Theme)
}
