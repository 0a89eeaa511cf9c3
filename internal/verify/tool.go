package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rosettalab/xlate/internal/models"
)

// ToolVerifier shells out to an external checker binary. The tool is invoked
// as `<path> <kind>` with the fragment on stdin; exit code 0 means passed,
// exit code 1 means failed with details on stdout (lines prefixed
// "suggest: " become suggestions). Any other failure mode - missing binary,
// crash, non-1 exit - is reported as ErrUnavailable, never as a verdict.
//
// Each invocation is a fresh child process; nothing is shared between
// sessions.
type ToolVerifier struct {
	path string
}

// NewToolVerifier creates a verifier backed by the checker at path.
func NewToolVerifier(path string) *ToolVerifier {
	return &ToolVerifier{path: path}
}

func (v *ToolVerifier) Verify(ctx context.Context, fragment string, kind models.VerificationKind) (Outcome, error) {
	cmd := exec.CommandContext(ctx, v.path, string(kind))
	cmd.Stdin = strings.NewReader(fragment)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return Outcome{Passed: true, Details: strings.TrimSpace(stdout.String())}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return parseFailure(stdout.String()), nil
	}

	return Outcome{}, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, v.path, kind, err)
}

// parseFailure splits tool output into details and suggestion lines.
func parseFailure(out string) Outcome {
	var details []string
	var suggestions []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if rest, ok := strings.CutPrefix(line, "suggest: "); ok {
			suggestions = append(suggestions, rest)
		} else if line != "" {
			details = append(details, line)
		}
	}
	return Outcome{
		Passed:      false,
		Details:     strings.Join(details, "\n"),
		Suggestions: suggestions,
	}
}
