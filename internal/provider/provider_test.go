package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type scriptedCaller struct {
	answers map[string]func() (json.RawMessage, error)
	calls   []string
	active  int32
	maxSeen int32
}

func (c *scriptedCaller) Call(ctx context.Context, app string, capability Capability, args map[string]string) (json.RawMessage, error) {
	n := atomic.AddInt32(&c.active, 1)
	defer atomic.AddInt32(&c.active, -1)
	if n > c.maxSeen {
		c.maxSeen = n
	}
	c.calls = append(c.calls, app)
	fn, ok := c.answers[app]
	if !ok {
		return nil, errors.New("method not found")
	}
	return fn()
}

func TestCandidates(t *testing.T) {
	tests := []struct {
		name      string
		installed []string
		want      []string
	}{
		{name: "nil falls back", installed: nil, want: FallbackApps},
		{name: "blank entries fall back", installed: []string{" ", ""}, want: FallbackApps},
		{name: "keeps order and drops duplicates", installed: []string{"hrms", " wiki ", "hrms"}, want: []string{"hrms", "wiki"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Candidates(tt.installed)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Candidates(%q) = %q, want %q", tt.installed, got, tt.want)
			}
		})
	}

	got := Candidates(nil)
	got[0] = "changed"
	if FallbackApps[0] != "doctyped_cheatsheets" {
		t.Fatalf("Candidates must not alias FallbackApps")
	}
}

func TestResolveFirstSuccessWins(t *testing.T) {
	caller := &scriptedCaller{answers: map[string]func() (json.RawMessage, error){
		"appA": func() (json.RawMessage, error) { return nil, errors.New("boom") },
		"appB": func() (json.RawMessage, error) { return json.RawMessage(`[{"name":"Ocean"}]`), nil },
		"appC": func() (json.RawMessage, error) { return json.RawMessage(`[{"name":"Forest"}]`), nil },
	}}
	r := NewResolver(caller, Options{})

	res, ok, err := r.Resolve(context.Background(), ListThemes, []string{"appA", "appB", "appC"}, nil, NonEmptyList)
	if err != nil || !ok {
		t.Fatalf("Resolve() = %v, %v, want success", ok, err)
	}
	if res.App != "appB" {
		t.Fatalf("Resolve() app = %q, want appB", res.App)
	}
	if !reflect.DeepEqual(caller.calls, []string{"appA", "appB"}) {
		t.Fatalf("calls = %q, want [appA appB]", caller.calls)
	}
	if caller.maxSeen != 1 {
		t.Fatalf("saw %d concurrent calls, want 1", caller.maxSeen)
	}
}

func TestResolveSkipsUnusablePayloads(t *testing.T) {
	caller := &scriptedCaller{answers: map[string]func() (json.RawMessage, error){
		"a": func() (json.RawMessage, error) { return json.RawMessage(`[]`), nil },
		"b": func() (json.RawMessage, error) { return json.RawMessage(`{"status":"success","theme":""}`), nil },
		"c": func() (json.RawMessage, error) { return json.RawMessage(`{"status":"error","theme":"dark"}`), nil },
		"d": func() (json.RawMessage, error) { return json.RawMessage(`{"status":"success","theme":"ocean"}`), nil },
	}}
	r := NewResolver(caller, Options{})
	res, ok, err := r.Resolve(context.Background(), GetPreference, []string{"a", "b", "c", "d"}, nil, PreferenceFound)
	if err != nil || !ok {
		t.Fatalf("Resolve() = %v, %v, want success", ok, err)
	}
	if got := PreferredTheme(res.Payload); got != "ocean" {
		t.Fatalf("PreferredTheme() = %q, want ocean", got)
	}
}

func TestResolveExhaustionIsNotAnError(t *testing.T) {
	caller := &scriptedCaller{answers: map[string]func() (json.RawMessage, error){}}
	r := NewResolver(caller, Options{})
	for _, candidates := range [][]string{nil, {"x", "y", "z"}} {
		_, ok, err := r.Resolve(context.Background(), SavePreference, candidates, map[string]string{"theme_name": "dark"}, StatusSuccess)
		if err != nil || ok {
			t.Fatalf("Resolve(%q) = %v, %v, want false, nil", candidates, ok, err)
		}
	}
	if len(caller.calls) != 3 {
		t.Fatalf("expected every candidate to be tried, got %q", caller.calls)
	}
}

func TestResolveBoundsEachCandidate(t *testing.T) {
	caller := CallerFunc(func(ctx context.Context, app string, capability Capability, args map[string]string) (json.RawMessage, error) {
		if app == "hung" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return json.RawMessage(`{"status":"success"}`), nil
	})
	r := NewResolver(caller, Options{CandidateTimeout: 20 * time.Millisecond})
	res, ok, err := r.Resolve(context.Background(), SavePreference, []string{"hung", "ok"}, nil, StatusSuccess)
	if err != nil || !ok || res.App != "ok" {
		t.Fatalf("Resolve() = %+v, %v, %v, want app ok", res, ok, err)
	}
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	caller := CallerFunc(func(ctx context.Context, app string, capability Capability, args map[string]string) (json.RawMessage, error) {
		calls++
		return nil, errors.New("unreachable")
	})
	_, ok, err := NewResolver(caller, Options{}).Resolve(ctx, ListThemes, []string{"a", "b"}, nil, NonEmptyList)
	if !errors.Is(err, context.Canceled) || ok {
		t.Fatalf("Resolve() = %v, %v, want context.Canceled", ok, err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls after cancellation, got %d", calls)
	}
}

func TestResolveRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	caller := CallerFunc(func(ctx context.Context, app string, capability Capability, args map[string]string) (json.RawMessage, error) {
		if app == "a" {
			return nil, errors.New("down")
		}
		return json.RawMessage(`["x"]`), nil
	})
	r := NewResolver(caller, Options{Tracer: tp.Tracer("test")})
	if _, ok, _ := r.Resolve(context.Background(), ListThemes, []string{"a", "b"}, nil, NonEmptyList); !ok {
		t.Fatalf("expected resolution to succeed")
	}
	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	names := []string{spans[0].Name(), spans[1].Name(), spans[2].Name()}
	want := []string{"provider.call", "provider.call", "provider.resolve"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("span names = %q, want %q", names, want)
	}
}

func TestAcceptHelpers(t *testing.T) {
	tests := []struct {
		name    string
		accept  AcceptFunc
		payload string
		want    bool
	}{
		{name: "status success", accept: StatusSuccess, payload: `{"status":"success"}`, want: true},
		{name: "status error", accept: StatusSuccess, payload: `{"status":"error"}`, want: false},
		{name: "status not object", accept: StatusSuccess, payload: `true`, want: false},
		{name: "preference found", accept: PreferenceFound, payload: `{"status":"success","theme":"dark"}`, want: true},
		{name: "preference blank", accept: PreferenceFound, payload: `{"status":"success","theme":"  "}`, want: false},
		{name: "list", accept: NonEmptyList, payload: `[1]`, want: true},
		{name: "empty list", accept: NonEmptyList, payload: `[]`, want: false},
		{name: "list null", accept: NonEmptyList, payload: `null`, want: false},
		{name: "non empty null", accept: NonEmpty, payload: `null`, want: false},
		{name: "non empty string", accept: NonEmpty, payload: `"x"`, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.accept(json.RawMessage(tt.payload)); got != tt.want {
				t.Fatalf("accept(%s) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestHTTPCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "token k:s" {
			t.Errorf("Authorization = %q", got)
		}
		switch r.URL.Path {
		case "/api/method/hrms.user_extension.save_desk_theme_preference":
			_ = r.ParseForm()
			fmt.Fprintf(w, `{"message":{"status":"success","theme":%q}}`, r.PostForm.Get("theme_name"))
		case "/api/method/wiki.user_extension.get_available_themes":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(strings.Repeat("x", 600)))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c := NewHTTPCaller(srv.URL+"/", HTTPOptions{APIKey: "k", APISecret: "s"})
	payload, err := c.Call(context.Background(), "hrms", SavePreference, map[string]string{"theme_name": "ocean"})
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if PreferredTheme(payload) != "ocean" || !StatusSuccess(payload) {
		t.Fatalf("unexpected payload %s", payload)
	}

	_, err = c.Call(context.Background(), "wiki", ListThemes, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError, got %v", err)
	}
	if callErr.StatusCode != http.StatusNotFound || len(callErr.Body) != maxErrorBody {
		t.Fatalf("unexpected CallError %+v", callErr)
	}

	if _, err := c.Call(context.Background(), "lms", ListThemes, nil); err == nil {
		t.Fatalf("expected missing message to fail")
	}
}
