// Package translate defines the translator collaborator contract and the
// segmentation of source code into translation steps.
package translate

import (
	"context"
	"errors"
)

// Translation is the product of translating one source fragment.
type Translation struct {
	TargetFragment string `json:"target_fragment"`
	Explanation    string `json:"explanation"`
}

// Translator turns a source fragment into a target-language fragment.
// Implementations are stateless with respect to sessions and must honor
// ctx cancellation; calls may be slow.
type Translator interface {
	Translate(ctx context.Context, fragment, targetLanguage string) (Translation, error)
}

// Distinct translator failure kinds. Anything else returned by a Translator
// is treated as an internal (transient) translator failure.
var (
	ErrMalformedFragment = errors.New("malformed source fragment")
	ErrUnsupportedTarget = errors.New("unsupported target language")
)

// Separator returns the text placed between committed target fragments when
// accumulating partial target code. Brace languages get a blank line between
// fragments so emitted declarations stay readable; everything else joins on
// a single newline.
func Separator(targetLanguage string) string {
	switch targetLanguage {
	case "go", "rust", "java", "c", "cpp":
		return "\n\n"
	default:
		return "\n"
	}
}
