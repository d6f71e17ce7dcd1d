// Package postprocess removes model artifacts from translated reasoning traces.
//
// Reasoning models such as qwen3 prepend a <think> block to every answer and
// frequently restate the last line of the prompt ("Hindi translation:") before
// the actual text. Clean strips both before the engine validates the output.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes, in order: thinking blocks, a leading prompt echo, and outer
// quotes around a single-line answer. The result is trimmed.
func Clean(text string) string {
	text = StripThinking(text)
	text = removePromptEcho(text)
	text = removeQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// RE2 has no backreferences, so every tag pair is spelled out.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<think>.*?</think>|<thinking>.*?</thinking>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// An opening tag with no closing tag means the model was cut off mid-thought.
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<think>|<thinking>|<reasoning>|<reflection>).*$`,
)

// StripThinking removes complete and truncated thinking blocks.
func StripThinking(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// CountThinking returns the number of complete thinking blocks in text.
func CountThinking(text string) int {
	return len(thinkingBlockRe.FindAllStringIndex(text, -1))
}

var thinkingTagRe = regexp.MustCompile(`(?i)</?(?:think|thinking|reasoning|reflection)>`)

// CleanTrace cleans the translation of source. Traces generated in thinking
// mode carry their own <think> block, whose translation must survive; only the
// model's extra leading blocks are removed. A source without any thinking tag
// is cleaned with Clean.
func CleanTrace(text, source string) string {
	if !thinkingTagRe.MatchString(source) {
		return Clean(text)
	}
	keep := CountThinking(source)
	text = strings.TrimSpace(text)
	for CountThinking(text) > keep {
		loc := thinkingBlockRe.FindStringIndex(text)
		text = strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	}
	return strings.TrimSpace(removePromptEcho(text))
}

// echoRe matches introductory phrases anchored at the start and terminated by a
// colon: "Hindi translation:", "Here is the translation:", "Sure, here's the
// Hindi translation:". The optional single word before "translation" covers
// the target-language name.
var echoRe = regexp.MustCompile(
	`(?i)^(?:(?:certainly|sure|of course)[,.!]?\s+)?(?:here(?:'s| is)\s+)?(?:the\s+)?(?:\p{L}+\s+)?(?:translation|translated text)\s*:`,
)

func removePromptEcho(text string) string {
	text = strings.TrimSpace(text)
	if loc := echoRe.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[1]:])
	}
	return text
}

var quotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'«', '»'},
	{'“', '”'},
	{'‘', '’'},
}

// removeQuoteWrapping strips one matching pair of outer quotes. Multi-line text
// is left alone: a trace that happens to open and close with a quoted line is
// content, not wrapping.
func removeQuoteWrapping(text string) string {
	if strings.ContainsRune(text, '\n') {
		return text
	}
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	for _, p := range quotePairs {
		if runes[0] == p[0] && runes[n-1] == p[1] {
			return strings.TrimSpace(string(runes[1 : n-1]))
		}
	}
	return text
}
