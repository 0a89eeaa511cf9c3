// Package verify defines the verifier collaborator contract and the
// per-level verification matrix applied to every translation step.
package verify

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/rosettalab/xlate/internal/models"
)

// ErrUnavailable signals that the verifier's backing tool cannot be reached.
// It is distinct from a failed verification: a check that ran and said "no"
// returns Outcome{Passed: false} with a nil error.
var ErrUnavailable = errors.New("verifier unavailable")

// Outcome is the verdict of a single verifier invocation.
type Outcome struct {
	Passed      bool
	Details     string
	Suggestions []string
}

// Verifier judges a target-code fragment for one verification kind.
// Calls may block on external tooling and must honor ctx.
type Verifier interface {
	Verify(ctx context.Context, fragment string, kind models.VerificationKind) (Outcome, error)
}

// KindsFor returns the verifier kinds invoked per step at the given level,
// in canonical order.
func KindsFor(level models.VerificationLevel) []models.VerificationKind {
	switch level {
	case models.LevelBasic:
		return []models.VerificationKind{models.KindSyntax}
	case models.LevelStandard:
		return []models.VerificationKind{models.KindSyntax, models.KindType}
	case models.LevelComprehensive:
		return append([]models.VerificationKind(nil), models.KindOrder...)
	}
	return nil
}

// Fatal reports whether a non-passing result prevents committing the step.
// Syntax and type failures are always fatal. At comprehensive level the
// advisory kinds become fatal when they fail without supplying suggestions;
// advisoryFatal is the policy knob controlling that rule.
func Fatal(level models.VerificationLevel, r models.VerificationResult, advisoryFatal bool) bool {
	if r.Passed {
		return false
	}
	switch r.Kind {
	case models.KindSyntax, models.KindType:
		return true
	}
	return level == models.LevelComprehensive && advisoryFatal && len(r.Suggestions) == 0
}

// RunMatrix invokes every kind the level requires, in parallel, and returns
// the results ordered canonically regardless of completion order. Any
// invocation error aborts the matrix; no partial results are returned.
func RunMatrix(ctx context.Context, v Verifier, fragment string, stepIndex int, level models.VerificationLevel) ([]models.VerificationResult, error) {
	kinds := KindsFor(level)
	results := make([]models.VerificationResult, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			out, err := v.Verify(gctx, fragment, kind)
			if err != nil {
				return err
			}
			results[i] = models.VerificationResult{
				StepIndex:   stepIndex,
				Kind:        kind,
				Passed:      out.Passed,
				Details:     out.Details,
				Suggestions: out.Suggestions,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
