package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rosettalab/xlate/internal/models"
)

// HeuristicVerifier is an in-process verifier used when no external checker
// is configured. Syntax checks are real (bracket balance); the remaining
// kinds run shallow text heuristics and lean toward passing, since a wrong
// "fail" from a heuristic would abort sessions needlessly.
type HeuristicVerifier struct{}

// NewHeuristicVerifier returns the in-process fallback verifier.
func NewHeuristicVerifier() *HeuristicVerifier { return &HeuristicVerifier{} }

func (v *HeuristicVerifier) Verify(ctx context.Context, fragment string, kind models.VerificationKind) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	switch kind {
	case models.KindSyntax:
		return checkBalance(fragment), nil
	case models.KindType:
		return Outcome{Passed: true, Details: "no type checker configured; skipped"}, nil
	case models.KindProvability:
		return Outcome{Passed: true, Details: "no prover configured; skipped"}, nil
	case models.KindPerformance:
		return checkPerformance(fragment), nil
	case models.KindQuality:
		return checkQuality(fragment), nil
	}
	return Outcome{}, fmt.Errorf("unknown verification kind: %q", kind)
}

var pairs = map[byte]byte{')': '(', ']': '[', '}': '{'}

func checkBalance(fragment string) Outcome {
	var stack []byte
	var quote byte
	for i := 0; i < len(fragment); i++ {
		c := fragment[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
				return Outcome{
					Passed:  false,
					Details: fmt.Sprintf("unbalanced %q at offset %d", string(c), i),
				}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return Outcome{Passed: false, Details: fmt.Sprintf("%d unclosed bracket(s)", len(stack))}
	}
	if quote != 0 {
		return Outcome{Passed: false, Details: "unterminated string literal"}
	}
	return Outcome{Passed: true, Details: "brackets and quotes balanced"}
}

func checkPerformance(fragment string) Outcome {
	// Deeply nested loops are the only thing a text heuristic can flag.
	depth, maxDepth := 0, 0
	for _, line := range strings.Split(fragment, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "for ") || strings.HasPrefix(t, "while ") {
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		}
		if t == "}" && depth > 0 {
			depth--
		}
	}
	if maxDepth >= 3 {
		return Outcome{
			Passed:      false,
			Details:     fmt.Sprintf("loop nesting depth %d", maxDepth),
			Suggestions: []string{"consider flattening nested loops or precomputing inner work"},
		}
	}
	return Outcome{Passed: true, Details: "no obvious hot spots"}
}

func checkQuality(fragment string) Outcome {
	var notes []string
	if strings.Contains(fragment, "TODO") || strings.Contains(fragment, "FIXME") {
		notes = append(notes, "remove TODO/FIXME markers before committing")
	}
	for _, line := range strings.Split(fragment, "\n") {
		if len(line) > 120 {
			notes = append(notes, "wrap lines longer than 120 characters")
			break
		}
	}
	if len(notes) > 0 {
		return Outcome{Passed: false, Details: "style issues found", Suggestions: notes}
	}
	return Outcome{Passed: true, Details: "no style issues"}
}
