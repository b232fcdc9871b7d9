package parser

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

const languageSampleRunes = 2000

// LanguageDetector tags extracted text with an ISO 639-1 code.
// A nil detector reports no language.
type LanguageDetector struct {
	detector lingua.LanguageDetector
}

// NewLanguageDetector builds a detector restricted to the named languages
// (English names or ISO 639-1 codes, case-insensitive). Fewer than two
// recognized languages yields nil.
func NewLanguageDetector(names []string) *LanguageDetector {
	known := map[string]lingua.Language{}
	for _, lang := range lingua.AllLanguages() {
		known[strings.ToLower(lang.String())] = lang
		known[strings.ToLower(lang.IsoCode639_1().String())] = lang
	}

	seen := map[lingua.Language]struct{}{}
	var languages []lingua.Language
	for _, name := range names {
		lang, ok := known[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		languages = append(languages, lang)
	}
	if len(languages) < 2 {
		return nil
	}

	return &LanguageDetector{
		detector: lingua.NewLanguageDetectorBuilder().FromLanguages(languages...).Build(),
	}
}

// Detect returns the lowercase ISO 639-1 code, or "" when unsure.
func (d *LanguageDetector) Detect(text string) string {
	if d == nil || d.detector == nil {
		return ""
	}
	runes := []rune(text)
	if len(runes) > languageSampleRunes {
		text = string(runes[:languageSampleRunes])
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
