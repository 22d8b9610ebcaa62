package translate

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Detector identifies the language of a text among a fixed candidate set
type Detector struct {
	det lingua.LanguageDetector
}

// NewDetector builds a detector restricted to the given ISO 639-1 codes.
// Restricting the set keeps detection fast and accurate on short texts.
func NewDetector(codes []string) (*Detector, error) {
	seen := make(map[lingua.Language]bool)
	var langs []lingua.Language
	for _, code := range codes {
		lang, err := parseLanguage(code)
		if err != nil {
			return nil, err
		}
		if !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	if len(langs) < 2 {
		return nil, fmt.Errorf("translate: need at least two candidate languages, got %d", len(langs))
	}

	det := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		Build()
	return &Detector{det: det}, nil
}

// Detect returns the lowercase ISO 639-1 code of text. ok is false when no
// candidate is a reliable match.
func (d *Detector) Detect(text string) (code string, ok bool) {
	lang, ok := d.det.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return isoCode(lang), true
}

func parseLanguage(code string) (lingua.Language, error) {
	for _, lang := range lingua.AllLanguages() {
		if strings.EqualFold(lang.IsoCode639_1().String(), code) {
			return lang, nil
		}
	}
	return lingua.Unknown, fmt.Errorf("translate: unknown language code %q", code)
}

func isoCode(lang lingua.Language) string {
	return strings.ToLower(lang.IsoCode639_1().String())
}

// languageName returns a human readable name for a code, for prompts
func languageName(code string) string {
	lang, err := parseLanguage(code)
	if err != nil {
		return code
	}
	name := strings.ToLower(lang.String())
	return strings.ToUpper(name[:1]) + name[1:]
}
