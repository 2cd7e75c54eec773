package theme

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Catalog struct {
	order []Descriptor
	index map[string]int
}

// BuildCatalog seeds the builtins and appends normalised customs. Customs
// with an empty id or an id already present are dropped.
func BuildCatalog(custom []Descriptor) Catalog {
	var c Catalog
	for _, d := range Builtins() {
		c.add(d)
	}
	for _, d := range custom {
		d = normalise(d)
		if d.ID == "" {
			continue
		}
		if _, exists := c.index[d.ID]; exists {
			continue
		}
		c.add(d)
	}
	return c
}

func normalise(d Descriptor) Descriptor {
	d.ID = strings.ToLower(strings.TrimSpace(d.ID))
	d.Kind = KindCustom
	d.Label = strings.TrimSpace(d.Label)
	if d.Label == "" {
		d.Label = titleCase(d.ID)
	}
	d.Description = strings.TrimSpace(d.Description)
	if d.Description == "" {
		d.Description = d.Label + " Custom Theme"
	}
	return d
}

func titleCase(id string) string {
	parts := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, part := range parts {
		r, size := utf8.DecodeRuneInString(part)
		parts[i] = string(unicode.ToTitle(r)) + part[size:]
	}
	return strings.Join(parts, " ")
}

func (c *Catalog) add(d Descriptor) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	c.index[d.ID] = len(c.order)
	c.order = append(c.order, d)
}

func (c Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.order))
	copy(out, c.order)
	return out
}

func (c Catalog) IDs() []string {
	ids := make([]string, len(c.order))
	for i, d := range c.order {
		ids[i] = d.ID
	}
	return ids
}

func (c Catalog) Get(id string) (Descriptor, bool) {
	if c.index == nil {
		return Descriptor{}, false
	}
	idx, ok := c.index[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Descriptor{}, false
	}
	return c.order[idx], true
}

func (c Catalog) Len() int {
	return len(c.order)
}

func (c Catalog) Customs() []Descriptor {
	out := make([]Descriptor, 0, len(c.order))
	for _, d := range c.order {
		if d.Kind == KindCustom {
			out = append(out, d)
		}
	}
	return out
}

// Neighbor returns the theme step places away from id in catalog order, as
// used for arrow-key navigation. Moving past either end yields false.
func (c Catalog) Neighbor(id string, step int) (Descriptor, bool) {
	idx, ok := c.index[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Descriptor{}, false
	}
	next := idx + step
	if next < 0 || next >= len(c.order) {
		return Descriptor{}, false
	}
	return c.order[next], true
}
