package xpath

import (
	"sort"
	"strings"
)

// Node is an element of an instance tree
type Node interface {
	Name() string
	Text() string // Text content directly under the element
	Attr(name string) (string, bool)
	AttrNames() []string
	Children() []Node
}

// Element is an in-memory Node
type Element struct {
	Tag   string
	Value string
	Attrs map[string]string
	Kids  []Node
}

// NewElement creates an element with optional text content
func NewElement(tag, value string) *Element {
	return &Element{Tag: tag, Value: value}
}

// SetAttr sets an attribute and returns the element
func (e *Element) SetAttr(name, value string) *Element {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[name] = value
	return e
}

// Append adds child elements and returns the element
func (e *Element) Append(children ...Node) *Element {
	e.Kids = append(e.Kids, children...)
	return e
}

// Name implements Node
func (e *Element) Name() string { return e.Tag }

// Text implements Node
func (e *Element) Text() string { return e.Value }

// Attr implements Node
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// AttrNames implements Node
func (e *Element) AttrNames() []string {
	names := make([]string, 0, len(e.Attrs))
	for name := range e.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Children implements Node
func (e *Element) Children() []Node { return e.Kids }

// item is anything a node-set can hold: Node, attrItem, *docItem or *storageItem
type item interface{}

type attrItem struct {
	name  string
	value string
}

// docItem is the document node returned by instance()
type docItem struct {
	inst Instance
}

// storageItem is the root element of a storage-backed instance
type storageItem struct {
	inst Instance
}

func itemName(it item) string {
	switch n := it.(type) {
	case Node:
		return n.Name()
	case attrItem:
		return n.name
	case *storageItem:
		return n.inst.rootName
	default:
		return ""
	}
}

// stringValue is the XPath string-value of a node
func stringValue(it item) string {
	switch n := it.(type) {
	case attrItem:
		return n.value
	case Node:
		var b strings.Builder
		writeText(&b, n)
		return b.String()
	case *docItem:
		if n.inst.root != nil {
			return stringValue(n.inst.root)
		}
		return ""
	default:
		// Storage roots are not materialised just to compute their text
		return ""
	}
}

func writeText(b *strings.Builder, n Node) {
	b.WriteString(n.Text())
	for _, child := range n.Children() {
		writeText(b, child)
	}
}
