package extension

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/matthewsawatzky/themeswitch/internal/preview"
	"github.com/matthewsawatzky/themeswitch/internal/theme"
)

// manifestExts are tried in order for <dir>/<name>/<name>.<ext>.
var manifestExts = []string{".json", ".toml", ".yaml", ".yml"}

type Manifest struct {
	Theme         string            `json:"theme" toml:"theme" yaml:"theme"`
	Info          string            `json:"info" toml:"info" yaml:"info"`
	CSSContent    string            `json:"css_content" toml:"css_content" yaml:"css_content"`
	ThemeURL      string            `json:"theme_url" toml:"theme_url" yaml:"theme_url"`
	IsDeskTheme   *bool             `json:"is_desk_theme" toml:"is_desk_theme" yaml:"is_desk_theme"`
	PreviewColors map[string]string `json:"preview_colors" toml:"preview_colors" yaml:"preview_colors"`
	CSSVariables  map[string]string `json:"css_variables" toml:"css_variables" yaml:"css_variables"`
}

func skipFolder(name string) bool {
	return name == "__pycache__" || strings.HasPrefix(name, ".")
}

func manifestPath(dir, folder string) (string, bool) {
	for _, ext := range manifestExts {
		p := filepath.Join(dir, folder, folder+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func readManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(b, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	default:
		err = json.Unmarshal(b, &m)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// LoadThemes reads every theme folder under dir in name order. A folder's
// .css file wins over the manifest's css_content; folders without a
// manifest or without CSS and builtin names are skipped. Broken folders are
// reported together while the rest still load. A missing dir yields no
// themes.
func LoadThemes(dir string) ([]theme.Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read themes dir: %w", err)
	}
	var (
		out  []theme.Descriptor
		errs []error
	)
	for _, e := range entries {
		if !e.IsDir() || skipFolder(e.Name()) {
			continue
		}
		d, ok, err := loadFolder(dir, e.Name())
		if err != nil {
			errs = append(errs, fmt.Errorf("theme %s: %w", e.Name(), err))
			continue
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, errors.Join(errs...)
}

func loadFolder(dir, folder string) (theme.Descriptor, bool, error) {
	mp, ok := manifestPath(dir, folder)
	if !ok {
		return theme.Descriptor{}, false, nil
	}
	m, err := readManifest(mp)
	if err != nil {
		return theme.Descriptor{}, false, err
	}
	label := strings.TrimSpace(m.Theme)
	if label == "" {
		label = folder
	}
	id := strings.ToLower(strings.ReplaceAll(label, " ", "_"))
	if theme.IsBuiltinID(id) {
		return theme.Descriptor{}, false, nil
	}

	css, source := m.CSSContent, "manifest css_content"
	if b, err := os.ReadFile(filepath.Join(dir, folder, folder+".css")); err == nil {
		css, source = string(b), "external CSS file"
	} else if !errors.Is(err, fs.ErrNotExist) {
		return theme.Descriptor{}, false, err
	}
	if strings.TrimSpace(css) == "" {
		return theme.Descriptor{}, false, nil
	}

	info := strings.TrimSpace(m.Info)
	if info == "" {
		info = fmt.Sprintf("Desk theme: %s (from %s)", label, source)
	}
	desk := true
	if m.IsDeskTheme != nil {
		desk = *m.IsDeskTheme
	}
	colors := m.PreviewColors
	if len(colors) == 0 {
		colors = preview.ExtractColors(css)
	}
	vars := m.CSSVariables
	if len(vars) == 0 {
		vars = preview.ParseVariables(css)
	}
	return theme.Descriptor{
		ID:                id,
		Label:             label,
		Description:       info,
		Kind:              theme.KindCustom,
		StylePayload:      css,
		StyleReference:    m.ThemeURL,
		IsDeskTheme:       &desk,
		PreviewColors:     colors,
		PreviewComponents: preview.Components(colors),
		CSSVariables:      vars,
	}, true, nil
}

func Install(src, dst string) ([]string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("read source themes: %w", err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, fmt.Errorf("create themes dir: %w", err)
	}
	var installed []string
	for _, e := range entries {
		if !e.IsDir() || skipFolder(e.Name()) {
			continue
		}
		if _, ok := manifestPath(src, e.Name()); !ok {
			continue
		}
		target := filepath.Join(dst, e.Name())
		if err := os.RemoveAll(target); err != nil {
			return installed, fmt.Errorf("replace %s: %w", e.Name(), err)
		}
		if err := copyTree(filepath.Join(src, e.Name()), target); err != nil {
			return installed, fmt.Errorf("copy %s: %w", e.Name(), err)
		}
		installed = append(installed, e.Name())
	}
	return installed, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
