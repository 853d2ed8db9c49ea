package ccd

import (
	"encoding/xml"
	"strings"
	"unicode"
)

// Element is a generic XML node. Character data is kept as unnamed child
// elements so mixed content (narrative text with <br/> breaks) preserves
// document order.
type Element struct {
	Name     string
	Attrs    []xml.Attr
	Children []*Element

	// text is set only on unnamed character-data nodes.
	text string
}

// UnmarshalXML builds the element subtree, recording attributes and
// interleaved character data.
func (e *Element) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	e.Name = start.Name.Local
	e.Attrs = start.Attr

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := &Element{}
			if err := child.UnmarshalXML(d, t); err != nil {
				return err
			}
			e.Children = append(e.Children, child)
		case xml.CharData:
			text := string(t)
			if text != "" {
				e.Children = append(e.Children, &Element{text: text})
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (e *Element) isText() bool { return e.Name == "" }

// Attr returns the value of the first attribute with the given local name.
func (e *Element) Attr(local string) string {
	if e == nil {
		return ""
	}
	for _, a := range e.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// AttrNS returns the value of an attribute matched by namespace and local name.
func (e *Element) AttrNS(space, local string) string {
	if e == nil {
		return ""
	}
	for _, a := range e.Attrs {
		if a.Name.Local == local && a.Name.Space == space {
			return a.Value
		}
	}
	return ""
}

// Find returns the first direct child element with the given local name.
func (e *Element) Find(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindAll returns all direct child elements with the given local name.
func (e *Element) FindAll(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// FindPath walks a chain of direct children, returning the element at the end
// of the path or nil.
func (e *Element) FindPath(names ...string) *Element {
	cur := e
	for _, name := range names {
		cur = cur.Find(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Descendants returns every element in the subtree with the given local name,
// in document order. The receiver itself is not considered.
func (e *Element) Descendants(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	var walk func(n *Element)
	walk = func(n *Element) {
		for _, c := range n.Children {
			if c.isText() {
				continue
			}
			if c.Name == name {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

// Walk visits every element in the subtree, including the receiver.
func (e *Element) Walk(fn func(*Element)) {
	if e == nil {
		return
	}
	if !e.isText() {
		fn(e)
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// FlatText concatenates every text node in the subtree in document order,
// then trims the result. This mirrors the XPath string() value of a node.
func (e *Element) FlatText() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	var walk func(n *Element)
	walk = func(n *Element) {
		if n.isText() {
			b.WriteString(n.text)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(e)
	return strings.TrimSpace(b.String())
}

// CollapsedText returns FlatText with interior whitespace runs collapsed to
// single spaces.
func (e *Element) CollapsedText() string {
	return collapseSpaces(e.FlatText())
}

func collapseSpaces(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, " ")
}

// cleanText trims a string and returns "" when nothing remains.
func cleanText(s string) string {
	return strings.TrimSpace(s)
}

// titleCase capitalizes the first letter of each space-separated word and
// lowercases the rest, matching how coded statuses like "active" or
// "COMPLETED" are presented.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
