package preview

import (
	"regexp"
	"strings"

	"github.com/matthewsawatzky/themeswitch/internal/theme"
)

type Palette struct {
	NavbarBg          string `json:"navbar_bg"`
	NavbarText        string `json:"navbar_text"`
	SidebarBg         string `json:"sidebar_bg"`
	SidebarText       string `json:"sidebar_text"`
	MainBg            string `json:"main_bg"`
	MainText          string `json:"main_text"`
	CardBg            string `json:"card_bg"`
	CardBorder        string `json:"card_border"`
	ButtonPrimary     string `json:"button_primary"`
	ButtonPrimaryText string `json:"button_primary_text"`
	// Enhanced is set when any color came from theme data rather than the
	// static defaults.
	Enhanced bool `json:"has_custom_colors"`
}

func (p *Palette) fields() []*string {
	return []*string{
		&p.NavbarBg, &p.NavbarText, &p.SidebarBg, &p.SidebarText, &p.MainBg,
		&p.MainText, &p.CardBg, &p.CardBorder, &p.ButtonPrimary, &p.ButtonPrimaryText,
	}
}

func (p *Palette) fill(src Palette) bool {
	filled := false
	dst := p.fields()
	for i, v := range src.fields() {
		if strings.TrimSpace(*dst[i]) == "" && strings.TrimSpace(*v) != "" {
			*dst[i] = strings.TrimSpace(*v)
			filled = true
		}
	}
	return filled
}

func (p Palette) Complete() bool {
	for _, v := range p.fields() {
		if strings.TrimSpace(*v) == "" {
			return false
		}
	}
	return true
}

// For resolves the preview palette of d. Sources, highest first: preview
// components, flat preview colors, CSS variables, the hue heuristic over the
// inline stylesheet, then the static default. Each field falls through
// independently.
func For(d theme.Descriptor) Palette {
	var p Palette
	layers := []Palette{
		fromComponents(d.PreviewComponents),
		fromColors(d.PreviewColors),
		fromVariables(d.CSSVariables),
	}
	if d.Kind == theme.KindCustom {
		layers = append(layers, Heuristic(d.ID, d.StylePayload))
	}
	for _, layer := range layers {
		if p.fill(layer) {
			p.Enhanced = true
		}
	}
	p.fill(Default(d))
	return p
}

func fromComponents(m map[string]string) Palette {
	return Palette{
		NavbarBg:          m["navbar_bg"],
		NavbarText:        m["navbar_text"],
		SidebarBg:         m["sidebar_bg"],
		SidebarText:       m["sidebar_text"],
		MainBg:            m["main_bg"],
		MainText:          m["main_text"],
		CardBg:            m["card_bg"],
		CardBorder:        m["card_border"],
		ButtonPrimary:     m["button_primary"],
		ButtonPrimaryText: m["button_primary_text"],
	}
}

func fromColors(m map[string]string) Palette {
	if len(m) == 0 {
		return Palette{}
	}
	border := ""
	if m["primary"] != "" {
		// Eight-digit hex: the primary color at low alpha.
		border = m["primary"] + "20"
	}
	buttonText := firstOf(m, "background")
	if buttonText == "" {
		buttonText = "#ffffff"
	}
	return Palette{
		NavbarBg:          firstOf(m, "navbar", "background", "primary"),
		NavbarText:        m["text"],
		SidebarBg:         firstOf(m, "sidebar", "background"),
		SidebarText:       m["text"],
		MainBg:            m["background"],
		MainText:          m["text"],
		CardBg:            m["background"],
		CardBorder:        border,
		ButtonPrimary:     m["primary"],
		ButtonPrimaryText: buttonText,
	}
}

func fromVariables(m map[string]string) Palette {
	if len(m) == 0 {
		return Palette{}
	}
	vars := make(map[string]string, len(m))
	for k, v := range m {
		k = strings.TrimSpace(k)
		if !strings.HasPrefix(k, "--") {
			k = "--" + k
		}
		vars[k] = v
	}
	return Palette{
		NavbarBg:          firstOf(vars, "--navbar-bg", "--bg-color", "--primary-color"),
		NavbarText:        firstOf(vars, "--navbar-text", "--text-color"),
		SidebarBg:         firstOf(vars, "--sidebar-bg", "--bg-color"),
		SidebarText:       firstOf(vars, "--sidebar-text", "--text-color"),
		MainBg:            firstOf(vars, "--bg-color", "--main-bg"),
		MainText:          firstOf(vars, "--text-color", "--main-text"),
		CardBg:            firstOf(vars, "--card-bg", "--bg-color"),
		CardBorder:        vars["--border-color"],
		ButtonPrimary:     firstOf(vars, "--primary-color", "--btn-primary-bg"),
		ButtonPrimaryText: firstOf(vars, "--btn-primary-text", "--primary-text"),
	}
}

func firstOf(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

var huePalettes = []struct {
	keyword string
	palette Palette
}{
	{"purple", Palette{"#4a148c", "#ffffff", "#6a1b9a", "#ffffff", "#f3e5f5", "#4a148c", "#ffffff", "#9c27b0", "#9c27b0", "#ffffff", false}},
	{"blue", Palette{"#0d47a1", "#ffffff", "#1565c0", "#ffffff", "#e3f2fd", "#0d47a1", "#ffffff", "#2196f3", "#2196f3", "#ffffff", false}},
	{"green", Palette{"#1b5e20", "#ffffff", "#2e7d32", "#ffffff", "#e8f5e8", "#1b5e20", "#ffffff", "#4caf50", "#4caf50", "#ffffff", false}},
	{"red", Palette{"#b71c1c", "#ffffff", "#c62828", "#ffffff", "#ffebee", "#b71c1c", "#ffffff", "#f44336", "#f44336", "#ffffff", false}},
}

func hueFor(id string) (Palette, bool) {
	for _, h := range huePalettes {
		if strings.Contains(id, h.keyword) {
			return h.palette, true
		}
	}
	return Palette{}, false
}

// Heuristic guesses a partial palette from a theme id and its stylesheet. It
// returns an empty palette when css is blank. Variables declared in css take
// precedence over the hue guess.
func Heuristic(id, css string) Palette {
	if strings.TrimSpace(css) == "" {
		return Palette{}
	}
	p, _ := hueFor(strings.ToLower(id))
	vars := ParseVariables(css)
	if len(vars) == 0 {
		return p
	}
	override := func(dst *string, keys ...string) {
		if v := firstOf(vars, keys...); v != "" {
			*dst = v
		}
	}
	override(&p.NavbarBg, "--navbar-bg", "--primary-color")
	override(&p.NavbarText, "--navbar-text", "--text-on-primary")
	override(&p.SidebarBg, "--sidebar-bg", "--secondary-color")
	override(&p.SidebarText, "--sidebar-text", "--text-on-secondary")
	override(&p.MainBg, "--bg-color", "--background")
	override(&p.MainText, "--text-color", "--text")
	override(&p.CardBg, "--card-bg", "--surface")
	override(&p.CardBorder, "--border-color", "--outline")
	override(&p.ButtonPrimary, "--btn-primary", "--accent")
	override(&p.ButtonPrimaryText, "--btn-primary-text", "--text-on-accent")
	return p
}

var variablePattern = regexp.MustCompile(`(--[\w-]+)\s*:\s*([^;}\n]+)`)

func ParseVariables(css string) map[string]string {
	out := map[string]string{}
	for _, m := range variablePattern.FindAllStringSubmatch(css, -1) {
		value := strings.TrimSpace(m[2])
		if value == "" {
			continue
		}
		out[m[1]] = value
	}
	return out
}

const accentGradient = "linear-gradient(135deg, #667eea 0%, #764ba2 100%)"

var (
	lightPalette     = Palette{"#ffffff", "#495057", "#f8f9fa", "#495057", "#ffffff", "#212529", "#ffffff", "#dee2e6", "#007bff", "#ffffff", false}
	darkPalette      = Palette{"#2d3436", "#ddd", "#353739", "#ddd", "#282c34", "#ffffff", "#3c4142", "#525659", "#007bff", "#ffffff", false}
	automaticPalette = Palette{accentGradient, "#ffffff", "#f8f9fa", "#495057", "#ffffff", "#212529", "#ffffff", "#dee2e6", accentGradient, "#ffffff", false}
	customPalette    = Palette{"#37474f", "#ffffff", "#455a64", "#ffffff", "#eceff1", "#37474f", "#ffffff", "#607d8b", "#607d8b", "#ffffff", false}
)

func Default(d theme.Descriptor) Palette {
	switch {
	case d.ID == theme.Dark:
		return darkPalette
	case d.ID == theme.Automatic:
		return automaticPalette
	case d.Kind == theme.KindCustom:
		id := strings.ToLower(d.ID)
		for _, keyword := range []string{"purple", "blue", "green"} {
			if strings.Contains(id, keyword) {
				p, _ := hueFor(keyword)
				return p
			}
		}
		return customPalette
	default:
		return lightPalette
	}
}
