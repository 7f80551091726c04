package factory

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// ModelID canonicalizes a model name into the lookup key used by model
// stores: letters and digits only, lowercased. "sampleModel", "sample_model",
// "sample-model" and "sample model" all map to "samplemodel".
func ModelID(modelName string) string {
	normalized := norm.NFC.String(modelName)

	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}

	// Casers keep state, so one per call.
	return cases.Lower(language.Und).String(b.String())
}
