package document

import (
	"strings"
	"testing"
)

func TestRootAttributes(t *testing.T) {
	d := New()
	d.SetRootAttr("data-theme-mode", "dark")
	d.SetRootAttr("data-theme-mode", "light")
	got, ok := d.RootAttr("data-theme-mode")
	if !ok || got != "light" {
		t.Fatalf("RootAttr(data-theme-mode) = %q, %v, want light", got, ok)
	}
	d.RemoveRootAttr("data-theme-mode")
	if _, ok := d.RootAttr("data-theme-mode"); ok {
		t.Fatalf("expected attribute to be removed")
	}
	d.RemoveRootAttr("data-theme-mode")
}

func TestVarsRoundTripThroughStyleAttribute(t *testing.T) {
	d := New()
	d.SetVar("primary-color", "#123456")
	d.SetVar("--navbar-bg", "#000")
	d.SetVar("--navbar-bg", "#111")

	vars := d.Vars()
	if vars["--primary-color"] != "#123456" {
		t.Fatalf("--primary-color = %q, want #123456", vars["--primary-color"])
	}
	if vars["--navbar-bg"] != "#111" {
		t.Fatalf("--navbar-bg = %q, want #111", vars["--navbar-bg"])
	}
	style, _ := d.RootAttr("style")
	if style != "--primary-color: #123456; --navbar-bg: #111;" {
		t.Fatalf("style attribute = %q", style)
	}
	if !d.RemoveVar("--primary-color") {
		t.Fatalf("expected RemoveVar to report removal")
	}
	if d.RemoveVar("--primary-color") {
		t.Fatalf("expected second RemoveVar to be a no-op")
	}
	d.RemoveVar("navbar-bg")
	if _, ok := d.RootAttr("style"); ok {
		t.Fatalf("expected empty style attribute to be dropped")
	}
}

func TestParseSeedsVarsFromStyleAttribute(t *testing.T) {
	page := `<html style="--bg-image: url('a;b'); --font: &quot;x:y;z&quot;; color: red"><head></head><body></body></html>`
	d, err := Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	vars := d.Vars()
	if len(vars) != 2 || vars["--bg-image"] != "url('a;b')" || vars["--font"] != `"x:y;z"` {
		t.Fatalf("Vars() = %v", vars)
	}
	d.RemoveVar("--bg-image")
	d.RemoveVar("--font")
	style, _ := d.RootAttr("style")
	if style != "color: red;" {
		t.Fatalf("style attribute = %q, want color: red;", style)
	}
}

func TestStylesByClass(t *testing.T) {
	d := New()
	d.AppendStyle("custom-theme-ocean", "custom-theme-style", "body{color:red}")
	d.AppendStyle("other", "unrelated", "p{}")

	styles := d.StylesByClass("custom-theme-style")
	if len(styles) != 1 {
		t.Fatalf("StylesByClass() returned %d styles, want 1", len(styles))
	}
	if styles[0].ID != "custom-theme-ocean" || styles[0].Text != "body{color:red}" {
		t.Fatalf("unexpected style %+v", styles[0])
	}
	if _, ok := d.StyleByID("other"); !ok {
		t.Fatalf("expected StyleByID(other) to find the element")
	}
	if n := d.RemoveStylesByClass("custom-theme-style"); n != 1 {
		t.Fatalf("RemoveStylesByClass() = %d, want 1", n)
	}
	if n := d.RemoveStylesByClass("custom-theme-style"); n != 0 {
		t.Fatalf("second RemoveStylesByClass() = %d, want 0", n)
	}
	if _, ok := d.StyleByID("other"); !ok {
		t.Fatalf("unrelated style should survive")
	}
}

func TestParseKeepsExistingMarkup(t *testing.T) {
	page := `<html data-theme="dark" style="--text-color: #fff;"><head><style class="custom-theme-style">a{}</style></head><body></body></html>`
	d, err := Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if v, _ := d.RootAttr("data-theme"); v != "dark" {
		t.Fatalf("data-theme = %q, want dark", v)
	}
	if d.Vars()["--text-color"] != "#fff" {
		t.Fatalf("expected parsed --text-color variable")
	}
	if len(d.StylesByClass("custom-theme-style")) != 1 {
		t.Fatalf("expected parsed style element")
	}
	out := d.String()
	if !strings.Contains(out, `<style class="custom-theme-style">a{}</style>`) {
		t.Fatalf("render lost style element: %s", out)
	}
}

func TestReflowAndDispatch(t *testing.T) {
	d := New()
	if g := d.Reflow(); g != 1 {
		t.Fatalf("Reflow() = %d, want 1", g)
	}
	var got []Event
	cancel := d.Subscribe(func(e Event) { got = append(got, e) })
	d.Dispatch(Event{Theme: "dark"})
	cancel()
	d.Dispatch(Event{Theme: "light"})

	if len(got) != 1 {
		t.Fatalf("received %d events, want 1", len(got))
	}
	e := got[0]
	if e.Name != ThemeChanged || e.Theme != "dark" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("unexpected event %+v", e)
	}
}
