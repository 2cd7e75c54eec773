package extension

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func seedThemes(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ocean", "ocean.json"), `{"theme": "Ocean", "css_content": "ignored{}"}`)
	writeFile(t, filepath.Join(dir, "ocean", "ocean.css"), ":root{--primary-color:#0077be}.navbar{background-color:#003f5c}")
	writeFile(t, filepath.Join(dir, "forest", "forest.toml"), "theme = \"Deep Forest\"\ncss_content = \"body{background:#0b3d0b}\"\n")
	writeFile(t, filepath.Join(dir, "sunset", "sunset.yaml"), "theme: sunset\nis_desk_theme: false\npreview_colors:\n  primary: \"#ff5e3a\"\n")
	writeFile(t, filepath.Join(dir, "sunset", "sunset.css"), ".navbar{color:#fff}")
	writeFile(t, filepath.Join(dir, "light", "light.json"), `{"theme": "light", "css_content": "x{}"}`)
	writeFile(t, filepath.Join(dir, "empty", "empty.json"), `{"theme": "empty"}`)
	writeFile(t, filepath.Join(dir, "broken", "broken.json"), `{"theme": `)
	writeFile(t, filepath.Join(dir, "nomanifest", "nomanifest.css"), "x{}")
	writeFile(t, filepath.Join(dir, "__pycache__", "__pycache__.json"), `{"theme": "cache"}`)
	return dir
}

func TestLoadThemes(t *testing.T) {
	dir := seedThemes(t)
	themes, err := LoadThemes(dir)
	if err == nil || !strings.Contains(err.Error(), "theme broken") {
		t.Fatalf("LoadThemes() error = %v, want broken folder reported", err)
	}
	var ids []string
	for _, d := range themes {
		ids = append(ids, d.ID)
	}
	if got := strings.Join(ids, ","); got != "deep_forest,ocean,sunset" {
		t.Fatalf("ids = %s, want deep_forest,ocean,sunset", got)
	}

	forest, ocean, sunset := themes[0], themes[1], themes[2]
	if forest.Label != "Deep Forest" || forest.Description != "Desk theme: Deep Forest (from manifest css_content)" {
		t.Fatalf("forest = %+v", forest)
	}
	if ocean.StylePayload != ":root{--primary-color:#0077be}.navbar{background-color:#003f5c}" {
		t.Fatalf("css file should win over css_content, got %q", ocean.StylePayload)
	}
	if ocean.CSSVariables["--primary-color"] != "#0077be" {
		t.Fatalf("variables not parsed: %v", ocean.CSSVariables)
	}
	if ocean.PreviewComponents["navbar_bg"] == "" || ocean.IsDeskTheme == nil || !*ocean.IsDeskTheme {
		t.Fatalf("ocean preview or desk flag missing: %+v", ocean)
	}
	if sunset.IsDeskTheme == nil || *sunset.IsDeskTheme || !sunset.AuthoredForWebsite() {
		t.Fatalf("sunset should be marked as a website theme")
	}
	if sunset.PreviewColors["primary"] != "#ff5e3a" || sunset.PreviewComponents["button_primary"] != "#ff5e3a" {
		t.Fatalf("manifest preview colors not used: %+v", sunset.PreviewComponents)
	}
}

func TestLoadThemesMissingDir(t *testing.T) {
	themes, err := LoadThemes(filepath.Join(t.TempDir(), "none"))
	if err != nil || len(themes) != 0 {
		t.Fatalf("LoadThemes(missing) = %v, %v", themes, err)
	}
}

func TestInstall(t *testing.T) {
	src := seedThemes(t)
	dst := filepath.Join(t.TempDir(), "themes")
	writeFile(t, filepath.Join(dst, "ocean", "stale.css"), "old")

	installed, err := Install(src, dst)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if got := strings.Join(installed, ","); got != "broken,empty,forest,light,ocean,sunset" {
		t.Fatalf("installed = %s", got)
	}
	if _, err := os.Stat(filepath.Join(dst, "ocean", "stale.css")); !os.IsNotExist(err) {
		t.Fatalf("existing theme folder should be replaced")
	}
	if b, err := os.ReadFile(filepath.Join(dst, "sunset", "sunset.css")); err != nil || string(b) != ".navbar{color:#fff}" {
		t.Fatalf("sunset.css = %q, %v", b, err)
	}
}
