package translate

import (
	"strings"

	"github.com/rosettalab/xlate/internal/models"
)

// Segment splits source into translation fragments according to the step
// size. Splitting respects bracket nesting and string literals, so a
// semicolon inside a nested call or a quoted string never ends a statement.
// The result always has at least one fragment for non-blank source; blank
// source yields nil.
func Segment(source string, size models.StepSize) []string {
	if strings.TrimSpace(source) == "" {
		return nil
	}

	switch size {
	case models.StepExpression:
		return splitTopLevel(source, true)
	case models.StepStatement:
		return splitTopLevel(source, false)
	case models.StepFunction:
		return splitFunctions(source)
	}
	return []string{strings.TrimSpace(source)}
}

// splitTopLevel breaks source on statement terminators (newline, semicolon)
// at nesting depth zero. When expressions is true, top-level commas also
// terminate a fragment, which approximates expression boundaries well enough
// for the translator collaborators in use.
func splitTopLevel(source string, expressions bool) []string {
	var frags []string
	var cur strings.Builder
	depth := 0
	var quote byte

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			frags = append(frags, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(source); i++ {
		c := source[i]

		if quote != 0 {
			cur.WriteByte(c)
			if c == '\\' && i+1 < len(source) {
				i++
				cur.WriteByte(source[i])
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'', '`':
			quote = c
			cur.WriteByte(c)
		case '(', '[', '{':
			depth++
			cur.WriteByte(c)
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
			cur.WriteByte(c)
		case ';', '\n':
			if depth == 0 {
				flush()
			} else {
				cur.WriteByte(c)
			}
		case ',':
			if expressions && depth == 0 {
				flush()
			} else {
				cur.WriteByte(c)
			}
		default:
			cur.WriteByte(c)
		}
	}
	flush()

	if len(frags) == 0 {
		// Entire source was one nested construct.
		if s := strings.TrimSpace(source); s != "" {
			frags = append(frags, s)
		}
	}
	return frags
}

// funcStarters are the prefixes that begin a top-level function or
// declaration in the supported languages.
var funcStarters = []string{
	"func ", "def ", "fn ", "function ", "pub fn ",
	"public ", "private ", "protected ", "static ",
	"class ", "impl ", "struct ", "type ",
}

// splitFunctions groups source into one fragment per top-level function or
// declaration. Lines before the first declaration (imports, constants) form
// the preamble fragment, which becomes step zero when present.
func splitFunctions(source string) []string {
	lines := strings.Split(source, "\n")

	var frags []string
	var cur []string
	flush := func() {
		joined := strings.TrimRight(strings.Join(cur, "\n"), "\n")
		if strings.TrimSpace(joined) != "" {
			frags = append(frags, joined)
		}
		cur = nil
	}

	for _, line := range lines {
		if startsDeclaration(line) && len(cur) > 0 {
			flush()
		}
		cur = append(cur, line)
	}
	flush()

	if len(frags) == 0 {
		frags = append(frags, strings.TrimSpace(source))
	}
	return frags
}

func startsDeclaration(line string) bool {
	if len(line) == 0 || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	for _, p := range funcStarters {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
