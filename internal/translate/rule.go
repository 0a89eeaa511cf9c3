package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rosettalab/xlate/internal/lang"
)

// rewriteRule is a literal substitution applied when translating into a
// given target language.
type rewriteRule struct{ from, to string }

// rewrites holds the per-target substitution tables. The rule translator is
// intentionally shallow: it exists to provide a deterministic, offline
// collaborator for development and tests, not to produce correct programs.
var rewrites = map[string][]rewriteRule{
	"go": {
		{"def ", "func "},
		{"elif ", "} else if "},
		{"print(", "fmt.Println("},
		{"None", "nil"},
		{"True", "true"},
		{"False", "false"},
	},
	"python": {
		{"func ", "def "},
		{"fmt.Println(", "print("},
		{"nil", "None"},
		{"true", "True"},
		{"false", "False"},
	},
	"rust": {
		{"def ", "fn "},
		{"func ", "fn "},
		{"print(", "println!("},
		{"elif ", "} else if "},
	},
	"javascript": {
		{"def ", "function "},
		{"func ", "function "},
		{"print(", "console.log("},
		{"None", "null"},
	},
}

// RuleTranslator is a deterministic, in-process translator built on literal
// rewrite tables. Same input, same output, every time.
type RuleTranslator struct{}

// NewRuleTranslator returns the offline rule-based translator.
func NewRuleTranslator() *RuleTranslator { return &RuleTranslator{} }

// Translate applies the target language's rewrite table to the fragment.
func (t *RuleTranslator) Translate(ctx context.Context, fragment, targetLanguage string) (Translation, error) {
	if err := ctx.Err(); err != nil {
		return Translation{}, err
	}
	if strings.TrimSpace(fragment) == "" {
		return Translation{}, ErrMalformedFragment
	}
	if !lang.Known(targetLanguage) {
		return Translation{}, fmt.Errorf("%w: %s", ErrUnsupportedTarget, targetLanguage)
	}

	out := fragment
	applied := 0
	for _, r := range rewrites[targetLanguage] {
		if strings.Contains(out, r.from) {
			out = strings.ReplaceAll(out, r.from, r.to)
			applied++
		}
	}

	explanation := fmt.Sprintf("rule translation to %s: %d rewrite(s) applied", targetLanguage, applied)
	return Translation{TargetFragment: out, Explanation: explanation}, nil
}
