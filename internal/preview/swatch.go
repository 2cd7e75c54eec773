package preview

import (
	"regexp"

	"github.com/charmbracelet/lipgloss"
)

var hexColor = regexp.MustCompile(`#[0-9a-fA-F]{6}\b|#[0-9a-fA-F]{3}\b`)

// terminalColor picks the first hex color in v, so gradients render as
// their starting color.
func terminalColor(v string) lipgloss.TerminalColor {
	if m := hexColor.FindString(v); m != "" {
		return lipgloss.Color(m)
	}
	return lipgloss.NoColor{}
}

// Swatch renders a one-line miniature of the desk in p's colors.
func Swatch(p Palette) string {
	block := func(bg, fg, text string) string {
		return lipgloss.NewStyle().
			Background(terminalColor(bg)).
			Foreground(terminalColor(fg)).
			Padding(0, 1).
			Render(text)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		block(p.NavbarBg, p.NavbarText, "nav"),
		block(p.SidebarBg, p.SidebarText, "side"),
		block(p.MainBg, p.MainText, "main"),
		block(p.CardBg, p.CardBorder, "card"),
		block(p.ButtonPrimary, p.ButtonPrimaryText, "btn"),
	)
}
