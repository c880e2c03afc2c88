package render

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// Node is an element of the component tree.
type Node interface {
	Render(rc *Context) (string, error)
}

// NodeFunc adapts a function to Node.
type NodeFunc func(rc *Context) (string, error)

// Render calls f.
func (f NodeFunc) Render(rc *Context) (string, error) {
	return f(rc)
}

// Text renders escaped text.
type Text string

// Render implements Node.
func (t Text) Render(*Context) (string, error) {
	return html.EscapeString(string(t)), nil
}

// Raw renders markup as is.
type Raw string

// Render implements Node.
func (r Raw) Render(*Context) (string, error) {
	return string(r), nil
}

// Fragment renders its children one after another.
type Fragment []Node

// Render implements Node.
func (f Fragment) Render(rc *Context) (string, error) {
	var b strings.Builder
	for _, child := range f {
		if child == nil {
			continue
		}
		s, err := child.Render(rc)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// Element renders an HTML element. Attributes are written in name order.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Children []Node
}

// El is shorthand for an Element without attributes.
func El(tag string, children ...Node) *Element {
	return &Element{Tag: tag, Children: children}
}

// Render implements Node.
func (e *Element) Render(rc *Context) (string, error) {
	if e.Tag == "" {
		return "", fmt.Errorf("element without a tag")
	}
	inner, err := Fragment(e.Children).Render(rc)
	if err != nil {
		return "", fmt.Errorf("<%s>: %w", e.Tag, err)
	}

	names := make([]string, 0, len(e.Attrs))
	for name := range e.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<" + e.Tag)
	for _, name := range names {
		fmt.Fprintf(&b, ` %s="%s"`, name, html.EscapeString(e.Attrs[name]))
	}
	b.WriteString(">")
	b.WriteString(inner)
	b.WriteString("</" + e.Tag + ">")
	return b.String(), nil
}
