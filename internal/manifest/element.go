// Package manifest parses imsmanifest.xml files into a normalized course model.
package manifest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxDepth bounds element nesting so adversarial manifests cannot force
// unbounded traversal. Excess depth is reported as malformed XML.
const maxDepth = 100

// Element is a generic attributed XML tree node: tag name, attribute map,
// ordered children (tags may repeat), and accumulated text content.
// Attributes are keyed by their local name, so a namespaced attribute like
// adlcp:scormtype is found under "scormtype" regardless of prefix.
// Built once per parse and read-only afterward.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Children []*Element
	Text     string
}

// Child returns the first direct child with the given local tag name, or nil.
func (e *Element) Child(tag string) *Element {
	for _, c := range e.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// ChildrenByTag returns all direct children with the given local tag name,
// in document order.
func (e *Element) ChildrenByTag(tag string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// Attr returns the attribute value for name, or "".
func (e *Element) Attr(name string) string {
	return e.Attrs[name]
}

// AttrFold returns the attribute value whose local name matches name
// case-insensitively, or "". SCORM packages write scormtype both as
// adlcp:scormtype (1.2) and adlcp:scormType (2004).
func (e *Element) AttrFold(name string) string {
	if v, ok := e.Attrs[name]; ok {
		return v
	}
	for k, v := range e.Attrs {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// TrimmedText returns the element's text content with surrounding whitespace removed.
func (e *Element) TrimmedText() string {
	return strings.TrimSpace(e.Text)
}

// parseTree reads an XML document from r into an Element tree.
// Attribute namespace prefixes are dropped; element tags use local names.
func parseTree(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	var root *Element
	var stack []*Element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) >= maxDepth {
				return nil, fmt.Errorf("element nesting exceeds %d levels", maxDepth)
			}
			el := &Element{Tag: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				el.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("document contains no elements")
	}
	return root, nil
}
