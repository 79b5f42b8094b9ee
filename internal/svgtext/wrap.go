// Package svgtext rewrites the caption text of an SVG meme template.
package svgtext

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
)

const (
	DefaultMaxChars   = 30
	DefaultLineHeight = 2.0
	defaultFontSize   = 12.0
)

// Options controls line wrapping.
type Options struct {
	// MaxChars is the widest line in runes. Zero or less disables wrapping.
	MaxChars int
	// LineHeight multiplies the font size to get the line spacing.
	LineHeight float64
}

// DefaultOptions returns the stock wrap settings.
func DefaultOptions() Options {
	return Options{MaxChars: DefaultMaxChars, LineHeight: DefaultLineHeight}
}

// Wrap greedily packs the words of text into lines of at most maxChars
// runes. A word longer than maxChars gets a line of its own.
func Wrap(text string, maxChars int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxChars <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var (
		lines []string
		cur   strings.Builder
		width int
	)
	for _, w := range words {
		n := utf8.RuneCountInString(w)
		if width > 0 && width+1+n <= maxChars {
			cur.WriteByte(' ')
			cur.WriteString(w)
			width += 1 + n
			continue
		}
		if width > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		cur.WriteString(w)
		width = n
	}
	return append(lines, cur.String())
}

// parseLength reads a number with an optional px or pt suffix.
func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "px"), "pt")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// fontSize reads font-size from the attribute, then from an inline style.
func fontSize(el *etree.Element) float64 {
	raw := el.SelectAttrValue("font-size", "")
	if raw == "" {
		for _, decl := range strings.Split(el.SelectAttrValue("style", ""), ";") {
			name, value, ok := strings.Cut(decl, ":")
			if ok && strings.TrimSpace(name) == "font-size" {
				raw = value
				break
			}
		}
	}
	if v, ok := parseLength(raw); ok && v > 0 {
		return v
	}
	return defaultFontSize
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WrapInto replaces el's content with one tspan per wrapped line. Each
// tspan repeats el's x. The first line sits at el's y; later lines step
// down by font-size × line height, absolutely when y is numeric and with
// dy otherwise. A missing x or y counts as 0. It returns the number of
// lines written.
func WrapInto(el *etree.Element, text string, opts Options) int {
	if opts.LineHeight <= 0 {
		opts.LineHeight = DefaultLineHeight
	}
	x := el.SelectAttrValue("x", "0")
	y := el.SelectAttrValue("y", "0")
	yVal, yNumeric := parseLength(y)
	spacing := fontSize(el) * opts.LineHeight

	for len(el.Child) > 0 {
		el.RemoveChildAt(0)
	}

	lines := Wrap(text, opts.MaxChars)
	for i, line := range lines {
		tspan := el.CreateElement("tspan")
		if el.Space != "" {
			tspan.Space = el.Space
		}
		tspan.CreateAttr("x", x)
		switch {
		case i == 0:
			tspan.CreateAttr("y", y)
		case yNumeric:
			tspan.CreateAttr("y", formatNumber(yVal+float64(i)*spacing))
		default:
			tspan.CreateAttr("dy", formatNumber(spacing))
		}
		tspan.SetText(line)
	}
	return len(lines)
}
