// Package langdetect identifies the language of transcribed text.
package langdetect

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// Unknown is the code returned when the language cannot be determined.
const Unknown = "auto"

// Shorter inputs are too ambiguous to classify.
const minRunes = 3

var detector = sync.OnceValue(func() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		WithLowAccuracyMode().
		Build()
})

// Detect returns the ISO 639-1 code (lower case) and English name of the
// language of text, or Unknown and "Auto Detect" when undetermined.
func Detect(text string) (code, name string) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minRunes {
		return Unknown, "Auto Detect"
	}

	lang, ok := detector().DetectLanguageOf(text)
	if !ok {
		return Unknown, "Auto Detect"
	}
	return strings.ToLower(lang.IsoCode639_1().String()), lang.String()
}
