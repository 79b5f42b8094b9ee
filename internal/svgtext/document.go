package svgtext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ErrNoTargets is returned when a template has no text to replace.
var ErrNoTargets = errors.New("svg has no text elements")

// Fallback size used when a document declares no usable dimensions.
const (
	FallbackWidth  = 1920
	FallbackHeight = 1080
)

// Size is a pixel size.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Parse reads an SVG document.
func Parse(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse svg: %w", err)
	}
	if doc.Root() == nil {
		return nil, errors.New("failed to parse svg: no root element")
	}
	return doc, nil
}

func isTextElement(el *etree.Element) bool {
	return el.Tag == "text" || el.Tag == "tspan"
}

func textContent(el *etree.Element) string {
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, tok := range e.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(el)
	return b.String()
}

// Targets returns the text and tspan elements with visible content in
// document order. A text element and its tspans are separate targets.
func Targets(doc *etree.Document) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		if isTextElement(el) && strings.TrimSpace(textContent(el)) != "" {
			out = append(out, el)
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	return out
}

// Result describes what Rewrite changed.
type Result struct {
	Targets     int
	TopLines    int
	BottomLines int
	Warnings    []string
}

// Rewrite puts top into the first target and bottom into the third. The
// second target is normally the first one's own tspan. When the document
// has fewer than three targets the bottom text is skipped with a warning.
func Rewrite(doc *etree.Document, top, bottom string, opts Options) (Result, error) {
	targets := Targets(doc)
	res := Result{Targets: len(targets)}
	if len(targets) == 0 {
		return res, ErrNoTargets
	}

	res.TopLines = WrapInto(targets[0], top, opts)
	if len(targets) < 3 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("bottom text skipped: need 3 text targets, found %d", len(targets)))
		return res, nil
	}
	res.BottomLines = WrapInto(targets[2], bottom, opts)
	return res, nil
}

// Dimensions derives the raster size: viewBox width and height first,
// then the width and height attributes, then the fallback size.
func Dimensions(doc *etree.Document) Size {
	root := doc.Root()
	if root == nil {
		return Size{FallbackWidth, FallbackHeight}
	}

	parts := strings.FieldsFunc(root.SelectAttrValue("viewBox", ""), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(parts) == 4 {
		w, okW := parseLength(parts[2])
		h, okH := parseLength(parts[3])
		if okW && okH && int(w) > 0 && int(h) > 0 {
			return Size{int(w), int(h)}
		}
	}

	w, okW := parseLength(root.SelectAttrValue("width", ""))
	h, okH := parseLength(root.SelectAttrValue("height", ""))
	if okW && okH && int(w) > 0 && int(h) > 0 {
		return Size{int(w), int(h)}
	}
	return Size{FallbackWidth, FallbackHeight}
}
