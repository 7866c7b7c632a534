// Package langid provides local best-effort language detection, used when
// the enrichment service did not supply a language for extracted text.
package langid

import (
	"sync"

	"github.com/pemistahl/lingua-go"
)

// candidateLanguages limits the lingua models loaded; covers the languages
// commonly seen in SCORM course content.
var candidateLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Dutch,
	lingua.Japanese,
	lingua.Chinese,
	lingua.Korean,
	lingua.Russian,
	lingua.Arabic,
}

// Detector names the language of a text sample. Model loading is deferred
// to the first Detect call since it is comparatively expensive.
type Detector struct {
	once sync.Once
	det  lingua.LanguageDetector
}

// NewDetector returns an unloaded Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns the natural-language name of text's language (e.g.
// "English"), or "" when the text is too short or ambiguous to classify.
func (d *Detector) Detect(text string) string {
	if text == "" {
		return ""
	}
	d.once.Do(func() {
		d.det = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidateLanguages...).
			Build()
	})
	lang, ok := d.det.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return lang.String()
}
