// Package langdetect identifies the language of transcript text.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"go.aimuz.me/scribe/transcript"
)

// Auto is returned when the language cannot be determined.
const Auto = "auto"

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})
	return detector
}

// Detect returns the ISO 639-1 code and English display name of the
// language of text, or ("auto", "Auto") when undetermined.
func Detect(text string) (code, name string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Auto, "Auto"
	}

	lang, ok := getDetector().DetectLanguageOf(text)
	if !ok {
		return Auto, "Auto"
	}
	code = strings.ToLower(lang.IsoCode639_1().String())
	return code, DisplayName(code)
}

// DisplayName returns the English name for an ISO language code.
func DisplayName(code string) string {
	if code == "" || code == Auto {
		return "Auto"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// Normalize turns a language code or English language name ("english",
// "EN", "en-US") into a lower-case ISO 639-1 code. It returns "" for
// unknown or empty input.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, Auto) {
		return ""
	}

	if tag, err := language.Parse(s); err == nil {
		base, conf := tag.Base()
		if conf != language.No {
			if code := base.String(); len(code) == 2 {
				return code
			}
		}
	}

	for _, lang := range lingua.AllLanguages() {
		if strings.EqualFold(lang.String(), s) {
			return strings.ToLower(lang.IsoCode639_1().String())
		}
	}
	return ""
}

// TagSegments fills empty Language fields. Segments too short to classify
// get fallback.
func TagSegments(segs []transcript.Segment, fallback string) {
	for i := range segs {
		if segs[i].Language != "" {
			continue
		}
		code, _ := Detect(segs[i].Text)
		if code == Auto {
			code = fallback
		}
		segs[i].Language = code
	}
}
