package theme

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Kind string

const (
	KindBuiltin Kind = "builtin"
	KindCustom  Kind = "custom"
)

const (
	Light     = "light"
	Dark      = "dark"
	Automatic = "automatic"
)

type Descriptor struct {
	ID                string    `json:"name"`
	Label             string    `json:"label"`
	Description       string    `json:"info"`
	Kind              Kind      `json:"kind"`
	StylePayload      string    `json:"css_content,omitempty"`
	StyleReference    string    `json:"theme_url,omitempty"`
	IsDeskTheme       *bool     `json:"is_desk_theme,omitempty"`
	PreviewColors     StringMap `json:"preview_colors,omitempty"`
	PreviewComponents StringMap `json:"preview_components,omitempty"`
	CSSVariables      StringMap `json:"css_variables,omitempty"`
}

func (d Descriptor) IsBuiltin() bool {
	return d.Kind == KindBuiltin
}

// AuthoredForWebsite reports whether the stylesheet targets website markup and
// needs selector adaptation before it is injected into the desk.
func (d Descriptor) AuthoredForWebsite() bool {
	return d.IsDeskTheme != nil && !*d.IsDeskTheme
}

func (d Descriptor) HasStyle() bool {
	return strings.TrimSpace(d.StylePayload) != "" || strings.TrimSpace(d.StyleReference) != ""
}

func Builtins() []Descriptor {
	return []Descriptor{
		{ID: Light, Label: "Frappe Light", Description: "Light Theme", Kind: KindBuiltin},
		{ID: Dark, Label: "Timeless Night", Description: "Dark Theme", Kind: KindBuiltin},
		{ID: Automatic, Label: "Automatic", Description: "Uses system's theme to switch between light and dark mode", Kind: KindBuiltin},
	}
}

func IsBuiltinID(id string) bool {
	switch id {
	case Light, Dark, Automatic:
		return true
	}
	return false
}

// StringMap decodes a JSON object of scalars into strings. Non-scalar and
// null values are dropped.
type StringMap map[string]string

func (m *StringMap) UnmarshalJSON(b []byte) error {
	switch strings.Join(strings.Fields(string(b)), "") {
	case "null", "[]":
		*m = nil
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode string map: %w", err)
	}
	out := make(StringMap, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	*m = out
	return nil
}

type wireDescriptor struct {
	Name              string          `json:"name"`
	Label             string          `json:"label"`
	Info              string          `json:"info"`
	CSSContent        string          `json:"css_content"`
	ThemeURL          string          `json:"theme_url"`
	IsDeskTheme       json.RawMessage `json:"is_desk_theme"`
	PreviewColors     StringMap       `json:"preview_colors"`
	PreviewComponents StringMap       `json:"preview_components"`
	CSSVariables      StringMap       `json:"css_variables"`
}

func DecodeCustom(raw json.RawMessage) ([]Descriptor, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode theme list: %w", err)
	}
	out := make([]Descriptor, 0, len(items))
	for _, item := range items {
		var w wireDescriptor
		if err := json.Unmarshal(item, &w); err != nil {
			continue
		}
		out = append(out, Descriptor{
			ID:                w.Name,
			Label:             w.Label,
			Description:       w.Info,
			Kind:              KindCustom,
			StylePayload:      w.CSSContent,
			StyleReference:    w.ThemeURL,
			IsDeskTheme:       parseFlag(w.IsDeskTheme),
			PreviewColors:     w.PreviewColors,
			PreviewComponents: w.PreviewComponents,
			CSSVariables:      w.CSSVariables,
		})
	}
	return out, nil
}

func parseFlag(raw json.RawMessage) *bool {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	var v bool
	switch strings.ToLower(s) {
	case "true", "1":
		v = true
	case "false", "0":
		v = false
	default:
		return nil
	}
	return &v
}
