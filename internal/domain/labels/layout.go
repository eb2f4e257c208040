// Package labels lays out and renders fixed-size price labels.
package labels

import (
	"strings"
	"unicode/utf8"

	"pricetags/internal/core/types"
)

const (
	// WrapWidth is the character budget per description line.
	WrapWidth = 40

	MaxFontSize = 10.0
	MinFontSize = 6.0

	// minBarcodeLen: EANs this short or shorter are internal codes, not barcodes.
	minBarcodeLen = 5
)

// Measurer returns the rendered width of text at a font size, in the same unit
// as the width budget given to FitDescription.
type Measurer interface {
	StringWidth(text string, size float64) float64
}

// MeasurerFunc adapts a function to Measurer.
type MeasurerFunc func(text string, size float64) float64

func (f MeasurerFunc) StringWidth(text string, size float64) float64 { return f(text, size) }

// Fit is the chosen description layout.
type Fit struct {
	Lines [2]string
	Size  float64

	// Overflow is set when even MinFontSize does not fit.
	Overflow bool
}

// SingleLine reports whether the second line is empty.
func (f Fit) SingleLine() bool { return f.Lines[1] == "" }

// FitDescription uppercases and trims text, wraps it into exactly two lines and
// picks the largest font size in [MinFontSize, MaxFontSize] whose lines both fit
// maxWidth. Falls back to MinFontSize when nothing fits.
func FitDescription(text string, maxWidth float64, m Measurer) Fit {
	lines := TwoLines(strings.ToUpper(strings.TrimSpace(text)))

	for size := MaxFontSize; size >= MinFontSize; size-- {
		if m.StringWidth(lines[0], size) <= maxWidth && m.StringWidth(lines[1], size) <= maxWidth {
			return Fit{Lines: lines, Size: size}
		}
	}
	return Fit{Lines: lines, Size: MinFontSize, Overflow: true}
}

// TwoLines wraps text at WrapWidth and folds the result into exactly two lines:
// a short text gets an empty second line, overflow is merged into the second.
func TwoLines(text string) [2]string {
	wrapped := Wrap(text, WrapWidth)
	switch len(wrapped) {
	case 0:
		return [2]string{"", ""}
	case 1:
		return [2]string{wrapped[0], ""}
	default:
		return [2]string{wrapped[0], strings.Join(wrapped[1:], " ")}
	}
}

// Wrap greedily fills lines of at most width characters, breaking on
// whitespace. Words longer than width are split.
func Wrap(text string, width int) []string {
	var (
		lines []string
		cur   strings.Builder
		n     int
	)

	flush := func() {
		if n > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			n = 0
		}
	}

	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > width {
			room := width - n
			if n > 0 {
				room--
			}
			if room <= 0 {
				flush()
				continue
			}
			head, tail := splitRunes(word, room)
			if n > 0 {
				cur.WriteByte(' ')
				n++
			}
			cur.WriteString(head)
			n += room
			flush()
			word = tail
		}

		wl := utf8.RuneCountInString(word)
		if n > 0 && n+1+wl > width {
			flush()
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(word)
		n += wl
	}
	flush()

	return lines
}

func splitRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}

// FormatPrice renders the price block text, e.g. "R$ 19,50".
func FormatPrice(m types.Money) string {
	return types.FormatPrice(m)
}

// ShouldRenderBarcode reports whether an EAN is long enough to be drawn.
func ShouldRenderBarcode(ean string) bool {
	return utf8.RuneCountInString(ean) > minBarcodeLen
}
