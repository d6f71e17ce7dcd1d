// Package validator checks that a translation result is in the expected target language.
package validator

import (
	"fmt"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// minValidationLength is the minimum rune count required to attempt language detection.
// Shorter texts produce unreliable results and are accepted without validation.
const minValidationLength = 20

// minTargetShare is the fraction of words that must be in the target language
// when a trace mixes the target language with untranslated technical terms.
const minTargetShare = 0.5

// Validator checks that a translation result is written in the expected target language.
// The underlying language detector is expensive to build; reuse the instance.
type Validator struct {
	detector lingua.LanguageDetector
}

// New creates a Validator backed by the lingua-go language detector.
func New() *Validator {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()
	return &Validator{detector: detector}
}

// DetectISO returns the ISO 639-1 code of the dominant language of text.
func (v *Validator) DetectISO(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	lang, ok := v.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// IsValid returns true when translatedText appears to be written in targetLang.
//
// Short texts (fewer than minValidationLength runes) and texts whose language
// cannot be determined pass without error. Traces keep technical terms in
// English, so a text whose dominant language differs from targetLang still
// passes when at least half of its words are in targetLang.
func (v *Validator) IsValid(translatedText, targetLang string) (bool, error) {
	if targetLang == "" {
		return true, nil
	}

	text := strings.TrimSpace(translatedText)
	if text == "" {
		return false, fmt.Errorf("translation is empty")
	}

	if len([]rune(text)) < minValidationLength {
		return true, nil
	}

	detected, ok := v.DetectISO(text)
	if !ok {
		return true, nil
	}
	if strings.EqualFold(detected, targetLang) {
		return true, nil
	}

	if v.targetShare(text, targetLang) >= minTargetShare {
		return true, nil
	}

	return false, fmt.Errorf("expected %s but detected %s", strings.ToLower(targetLang), detected)
}

func (v *Validator) targetShare(text, targetLang string) float64 {
	total, matched := 0, 0
	for _, section := range v.detector.DetectMultipleLanguagesOf(text) {
		total += section.WordCount()
		if strings.EqualFold(section.Language().IsoCode639_1().String(), targetLang) {
			matched += section.WordCount()
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}
