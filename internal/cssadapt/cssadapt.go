package cssadapt

import (
	"strings"
)

type Transformer interface {
	Transform(css string) string
}

type TransformerFunc func(css string) string

func (f TransformerFunc) Transform(css string) string { return f(css) }

var Identity Transformer = TransformerFunc(func(css string) string { return css })

type Mapping struct {
	From string
	To   string
}

var DeskMappings = []Mapping{
	{From: "body", To: ".layout-main, body"},
	{From: ".container", To: ".layout-main .container, .layout-side-section"},
	{From: ".navbar", To: ".navbar, .desk .navbar"},
	{From: ".btn", To: ".btn, .desk .btn"},
	{From: ".card", To: ".widget, .desk .card"},
	{From: ".form-control", To: ".form-control, .desk .form-control"},
	{From: ".bg-light", To: ".layout-side-section, .bg-light"},
	{From: ".bg-primary", To: ".navbar-nav .active, .bg-primary"},
}

// DeskAdapter rewrites selectors in a single pass and wraps the result in a
// scope block. Declarations and at-rule preludes are left untouched.
type DeskAdapter struct {
	Mappings []Mapping
	Scope    string
}

func NewDeskAdapter() DeskAdapter {
	return DeskAdapter{Mappings: DeskMappings, Scope: ".layout-main"}
}

func (a DeskAdapter) Transform(css string) string {
	var b strings.Builder
	b.Grow(len(css) + 64)
	depthInRule := 0
	segStart := 0
	for i := 0; i < len(css); i++ {
		switch css[i] {
		case '{':
			seg := css[segStart:i]
			if depthInRule == 0 && !strings.HasPrefix(strings.TrimSpace(seg), "@") {
				b.WriteString(a.rewriteSelector(seg))
			} else {
				b.WriteString(seg)
			}
			b.WriteByte('{')
			if !strings.HasPrefix(strings.TrimSpace(seg), "@") {
				depthInRule++
			}
			segStart = i + 1
		case '}':
			b.WriteString(css[segStart : i+1])
			if depthInRule > 0 {
				depthInRule--
			}
			segStart = i + 1
		}
	}
	b.WriteString(css[segStart:])
	if a.Scope == "" {
		return b.String()
	}
	return a.Scope + " {\n" + b.String() + "\n}"
}

func (a DeskAdapter) rewriteSelector(sel string) string {
	var b strings.Builder
	i := 0
	for i < len(sel) {
		if m, ok := a.matchAt(sel, i); ok {
			b.WriteString(m.To)
			i += len(m.From)
			continue
		}
		b.WriteByte(sel[i])
		i++
	}
	return b.String()
}

// matchAt picks the longest mapping that forms a whole compound selector
// starting at i.
func (a DeskAdapter) matchAt(sel string, i int) (Mapping, bool) {
	if i > 0 && !isBoundary(sel[i-1]) {
		return Mapping{}, false
	}
	var best Mapping
	found := false
	for _, m := range a.Mappings {
		if !strings.HasPrefix(sel[i:], m.From) {
			continue
		}
		end := i + len(m.From)
		if end < len(sel) && !isBoundary(sel[end]) {
			continue
		}
		if !found || len(m.From) > len(best.From) {
			best = m
			found = true
		}
	}
	return best, found
}

func isBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', ',', '>', '+', '~':
		return true
	}
	return false
}
