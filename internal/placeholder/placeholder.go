// Package placeholder shields code inside a reasoning trace from translation.
//
// Fenced blocks and inline code spans are swapped for numbered markers
// ([PH0], [PH1], ...) before the text is sent to the model and swapped back
// afterwards. HTML-like tags are deliberately left in place: traces are full of
// comparisons such as "i < n && n > 0" that a tag pattern would swallow.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reFencedCode = regexp.MustCompile("(?s)```.*?```")
	reInlineCode = regexp.MustCompile("`[^`\n]+`")
	reMarker     = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Protected is text with its code replaced by markers.
type Protected struct {
	Text    string
	Markers []string
}

// Protect replaces fenced code first, then inline spans, numbering markers in
// replacement order.
func Protect(text string) Protected {
	var markers []string
	replace := func(match string) string {
		id := marker(len(markers))
		markers = append(markers, match)
		return id
	}

	text = reFencedCode.ReplaceAllStringFunc(text, replace)
	text = reInlineCode.ReplaceAllStringFunc(text, replace)

	return Protected{Text: text, Markers: markers}
}

// Restore puts the captured code back. Unknown indices are left untouched.
func (p Protected) Restore(text string) string {
	if len(p.Markers) == 0 {
		return text
	}
	return reMarker.ReplaceAllStringFunc(text, func(match string) string {
		sub := reMarker.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(p.Markers) {
			return match
		}
		return p.Markers[idx]
	})
}

// Missing lists marker indices that do not appear in text.
func (p Protected) Missing(text string) []int {
	var missing []int
	for i := range p.Markers {
		if !strings.Contains(text, marker(i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

// InstructionHint is appended to a prompt whenever markers are present.
func InstructionHint() string {
	return "Keep every [PHn] marker exactly as written. Do not translate, move or remove them."
}

func marker(i int) string {
	return fmt.Sprintf("[PH%d]", i)
}
