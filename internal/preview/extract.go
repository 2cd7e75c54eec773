package preview

import (
	"regexp"
	"strings"
)

// Color roles produced by ExtractColors.
var defaultColors = map[string]string{
	"primary":    "#007bff",
	"secondary":  "#6c757d",
	"success":    "#28a745",
	"warning":    "#ffc107",
	"danger":     "#dc3545",
	"background": "#ffffff",
	"surface":    "#f8f9fa",
	"text":       "#212529",
	"text_muted": "#6c757d",
	"navbar":     "#ffffff",
	"sidebar":    "#f8f9fa",
	"border":     "#dee2e6",
}

type rolePatterns struct {
	role     string
	patterns []*regexp.Regexp
}

func rules(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?is)`+e))
	}
	return out
}

var colorRules = []rolePatterns{
	{"primary", rules(
		`--primary[^:]*:\s*([^;\n]+)`,
		`\.btn-primary[^{]*\{[^}]*background[^:]*:\s*([^;\n]+)`,
		`\.primary[^{]*\{[^}]*color[^:]*:\s*([^;\n]+)`,
		`\.text-primary[^{]*\{[^}]*color[^:]*:\s*([^;\n]+)`,
	)},
	{"background", rules(
		`--bg[^:]*:\s*([^;\n]+)`,
		`body[^{]*\{[^}]*background[^:]*:\s*([^;\n]+)`,
		`\.bg-light[^{]*\{[^}]*background[^:]*:\s*([^;\n]+)`,
		`html[^{]*\{[^}]*background[^:]*:\s*([^;\n]+)`,
	)},
	{"text", rules(
		`--text[^:]*:\s*([^;\n]+)`,
		`body[^{]*\{[^}]*color[^:]*:\s*([^;\n]+)`,
		`\.text-dark[^{]*\{[^}]*color[^:]*:\s*([^;\n]+)`,
	)},
	{"navbar", rules(
		`\.navbar[^{]*\{[^}]*background[^:]*:\s*([^;\n]+)`,
		`--navbar-bg[^:]*:\s*([^;\n]+)`,
		`\.navbar-light[^{]*\{[^}]*background[^:]*:\s*([^;\n]+)`,
	)},
	{"sidebar", rules(
		`\.sidebar[^{]*\{[^}]*background[^:]*:\s*([^;\n]+)`,
		`--sidebar-bg[^:]*:\s*([^;\n]+)`,
		`\.layout-side-section[^{]*\{[^}]*background[^:]*:\s*([^;\n]+)`,
	)},
	{"secondary", rules(
		`--secondary[^:]*:\s*([^;\n]+)`,
		`\.btn-secondary[^{]*\{[^}]*background[^:]*:\s*([^;\n]+)`,
		`\.text-muted[^{]*\{[^}]*color[^:]*:\s*([^;\n]+)`,
	)},
}

var variableRoles = []struct {
	role  string
	names []string
}{
	{"primary", []string{"--primary", "--primary-color", "--color-primary"}},
	{"secondary", []string{"--secondary", "--secondary-color", "--color-secondary"}},
	{"background", []string{"--bg", "--background", "--bg-color", "--background-color"}},
	{"text", []string{"--text", "--text-color", "--color-text", "--foreground"}},
	{"navbar", []string{"--navbar", "--navbar-bg", "--header-bg"}},
	{"sidebar", []string{"--sidebar", "--sidebar-bg", "--menu-bg"}},
}

var (
	colorFormat = regexp.MustCompile(`(?i)^(#[0-9a-f]{3}|#[0-9a-f]{6}|rgba?\([^)]+\)|hsla?\([^)]+\))$`)
	colorNames  = map[string]struct{}{
		"white": {}, "black": {}, "red": {}, "green": {}, "blue": {}, "yellow": {}, "cyan": {},
		"magenta": {}, "silver": {}, "gray": {}, "maroon": {}, "olive": {}, "lime": {}, "aqua": {},
		"teal": {}, "navy": {}, "fuchsia": {}, "purple": {}, "transparent": {}, "inherit": {},
		"currentcolor": {},
	}
)

func CleanColor(v string) string {
	v = strings.TrimRight(strings.TrimSpace(v), ";")
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "var(") || strings.HasPrefix(v, "calc(") {
		return ""
	}
	if colorFormat.MatchString(v) {
		return v
	}
	if _, ok := colorNames[strings.ToLower(v)]; ok {
		return v
	}
	return ""
}

// ExtractColors derives named color roles from a stylesheet, starting from a
// neutral default set.
func ExtractColors(css string) map[string]string {
	colors := make(map[string]string, len(defaultColors))
	for k, v := range defaultColors {
		colors[k] = v
	}
	if strings.TrimSpace(css) == "" {
		return colors
	}
	for _, rule := range colorRules {
		for _, re := range rule.patterns {
			m := re.FindStringSubmatch(css)
			if m == nil {
				continue
			}
			if c := CleanColor(m[1]); c != "" {
				colors[rule.role] = c
				break
			}
		}
	}
	vars := ParseVariables(css)
	for _, vr := range variableRoles {
		for _, name := range vr.names {
			if c := CleanColor(vars[name]); c != "" {
				colors[vr.role] = c
				break
			}
		}
	}
	return colors
}

func Components(colors map[string]string) map[string]string {
	get := func(key, fallback string) string {
		if v, ok := colors[key]; ok && v != "" {
			return v
		}
		return fallback
	}
	return map[string]string{
		"navbar_bg":           get("navbar", get("surface", "#f8f9fa")),
		"navbar_text":         get("text", "#212529"),
		"sidebar_bg":          get("sidebar", get("surface", "#f8f9fa")),
		"sidebar_text":        get("text", "#495057"),
		"main_bg":             get("background", "#ffffff"),
		"main_text":           get("text", "#212529"),
		"card_bg":             get("surface", get("background", "#ffffff")),
		"card_border":         get("border", "#dee2e6"),
		"button_primary":      get("primary", "#007bff"),
		"button_primary_text": "#ffffff",
	}
}
