package document

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const ThemeChanged = "theme-changed"

const blankPage = `<!doctype html><html><head><meta charset="utf-8"><title>Desk</title></head><body><div class="navbar"></div><div class="layout-side-section"></div><div class="layout-main"><div class="container"></div></div></body></html>`

type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Theme     string    `json:"theme"`
	Timestamp time.Time `json:"timestamp"`
}

type Style struct {
	ID    string `json:"id"`
	Class string `json:"class"`
	Text  string `json:"text"`
}

type declaration struct {
	name  string
	value string
}

type Document struct {
	mu         sync.Mutex
	root       *html.Node
	htmlEl     *html.Node
	head       *html.Node
	decls      []declaration
	generation uint64

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

func New() *Document {
	d, err := Parse(strings.NewReader(blankPage))
	if err != nil {
		panic(fmt.Sprintf("parse blank page: %v", err))
	}
	return d
}

func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	d := &Document{root: root, subs: map[int]func(Event){}}
	d.htmlEl = findElement(root, atom.Html)
	if d.htmlEl == nil {
		return nil, fmt.Errorf("parse document: missing html element")
	}
	d.head = findElement(d.htmlEl, atom.Head)
	if d.head == nil {
		d.head = &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
		d.htmlEl.InsertBefore(d.head, d.htmlEl.FirstChild)
	}
	raw, _ := getAttr(d.htmlEl, "style")
	d.decls = parseDeclarations(raw)
	return d, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

func removeAttr(n *html.Node, key string) bool {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Document) SetRootAttr(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	setAttr(d.htmlEl, key, value)
	if key == "style" {
		d.decls = parseDeclarations(value)
	}
}

func (d *Document) RootAttr(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return getAttr(d.htmlEl, key)
}

func (d *Document) RemoveRootAttr(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	removeAttr(d.htmlEl, key)
	if key == "style" {
		d.decls = nil
	}
}

func (d *Document) SetVar(name, value string) {
	name = normalizeVar(name)
	if name == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.decls {
		if d.decls[i].name == name {
			d.decls[i].value = value
			d.syncStyle()
			return
		}
	}
	d.decls = append(d.decls, declaration{name: name, value: value})
	d.syncStyle()
}

func (d *Document) RemoveVar(name string) bool {
	name = normalizeVar(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.decls {
		if d.decls[i].name == name {
			d.decls = append(d.decls[:i], d.decls[i+1:]...)
			d.syncStyle()
			return true
		}
	}
	return false
}

func (d *Document) Vars() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := map[string]string{}
	for _, decl := range d.decls {
		if strings.HasPrefix(decl.name, "--") {
			out[decl.name] = decl.value
		}
	}
	return out
}

func (d *Document) VarNames() []string {
	vars := d.Vars()
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func normalizeVar(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if !strings.HasPrefix(name, "--") {
		name = "--" + name
	}
	return name
}

// syncStyle writes the declaration list back to the root style attribute.
// The list is never re-read from the attribute.
func (d *Document) syncStyle() {
	if len(d.decls) == 0 {
		removeAttr(d.htmlEl, "style")
		return
	}
	setAttr(d.htmlEl, "style", formatDeclarations(d.decls))
}

func parseDeclarations(raw string) []declaration {
	out := make([]declaration, 0)
	for _, part := range splitOutside(raw, ';') {
		name, value, ok := cutOutside(part, ':')
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, declaration{name: name, value: strings.TrimSpace(value)})
	}
	return out
}

func splitOutside(s string, sep byte) []string {
	var parts []string
	start := 0
	for {
		i := indexOutside(s[start:], sep)
		if i < 0 {
			return append(parts, s[start:])
		}
		parts = append(parts, s[start:start+i])
		start += i + 1
	}
}

func cutOutside(s string, sep byte) (string, string, bool) {
	i := indexOutside(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

func indexOutside(s string, sep byte) int {
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case c == sep && depth == 0:
			return i
		}
	}
	return -1
}

func formatDeclarations(decls []declaration) string {
	var b strings.Builder
	for i, decl := range decls {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(decl.name)
		b.WriteString(": ")
		b.WriteString(decl.value)
		b.WriteByte(';')
	}
	return b.String()
}

func (d *Document) AppendStyle(id, class, text string) {
	n := &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
	if id != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "id", Val: id})
	}
	if class != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	d.mu.Lock()
	defer d.mu.Unlock()
	d.head.AppendChild(n)
}

func (d *Document) RemoveStylesByClass(class string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	matches := d.stylesByClass(class)
	for _, n := range matches {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return len(matches)
}

func (d *Document) StylesByClass(class string) []Style {
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := d.stylesByClass(class)
	out := make([]Style, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toStyle(n))
	}
	return out
}

func (d *Document) StyleByID(id string) (Style, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.DataAtom == atom.Style {
			if v, ok := getAttr(n, "id"); ok && v == id {
				found = n
				return false
			}
		}
		return true
	})
	if found == nil {
		return Style{}, false
	}
	return toStyle(found), true
}

func (d *Document) stylesByClass(class string) []*html.Node {
	out := make([]*html.Node, 0, 1)
	walk(d.root, func(n *html.Node) bool {
		if n.DataAtom == atom.Style && hasClass(n, class) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func toStyle(n *html.Node) Style {
	s := Style{}
	s.ID, _ = getAttr(n, "id")
	s.Class, _ = getAttr(n, "class")
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	s.Text = b.String()
	return s
}

func hasClass(n *html.Node, class string) bool {
	v, ok := getAttr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n.Type == html.ElementNode && !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func (d *Document) Reflow() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	return d.generation
}

func (d *Document) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// Subscribe registers fn for dispatched events. The returned func cancels the
// subscription.
func (d *Document) Subscribe(fn func(Event)) func() {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	return func() {
		d.subMu.Lock()
		defer d.subMu.Unlock()
		delete(d.subs, id)
	}
}

func (d *Document) Dispatch(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Name == "" {
		e.Name = ThemeChanged
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	d.subMu.Lock()
	keys := make([]int, 0, len(d.subs))
	for k := range d.subs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, d.subs[k])
	}
	d.subMu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
	return e
}

func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var b strings.Builder
	_ = d.Render(&b)
	return b.String()
}
