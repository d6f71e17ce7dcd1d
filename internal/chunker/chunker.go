// Package chunker splits long reasoning traces into pieces small enough for a
// single translation request.
//
// Paragraphs are packed greedily into chunks of at most maxChars runes. A
// paragraph that is too long on its own is split at the last sentence end,
// then at the last whitespace, and only as a last resort at maxChars.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Separator joins translated chunks back together.
const Separator = "\n\n"

var paragraphRe = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

// Chunk returns text unchanged as a single chunk when maxChars <= 0 or the
// text already fits.
func Chunk(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, para := range paragraphRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)

		if n > maxChars {
			flush()
			chunks = append(chunks, splitLong(para, maxChars)...)
			continue
		}

		sepLen := 0
		if currentLen > 0 {
			sepLen = utf8.RuneCountInString(Separator)
		}
		if currentLen+sepLen+n > maxChars {
			flush()
			sepLen = 0
		}
		if sepLen > 0 {
			current.WriteString(Separator)
		}
		current.WriteString(para)
		currentLen += sepLen + n
	}
	flush()

	return chunks
}

// Join reassembles translated chunks.
func Join(chunks []string) string {
	return strings.Join(chunks, Separator)
}

func splitLong(para string, maxChars int) []string {
	var out []string
	runes := []rune(para)
	for len(runes) > maxChars {
		cut := splitPoint(runes[:maxChars])
		piece := strings.TrimSpace(string(runes[:cut]))
		if piece != "" {
			out = append(out, piece)
		}
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		out = append(out, rest)
	}
	return out
}

// splitPoint returns the rune index at which window should be cut.
func splitPoint(window []rune) int {
	for i := len(window) - 2; i > 0; i-- {
		if isSentenceEnd(window[i]) && unicode.IsSpace(window[i+1]) {
			return i + 1
		}
	}
	for i := len(window) - 1; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return len(window)
}

// The danda (।) ends sentences in Hindi and other Devanagari scripts.
func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '।', '॥':
		return true
	}
	return false
}
