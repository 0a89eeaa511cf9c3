// Package lang infers programming languages from source text or filenames.
// Detection is a pure substring-scoring heuristic; there is no learning and
// no external tooling involved.
package lang

import (
	"sort"
	"strings"
)

// Unknown is returned when no language pattern matches.
const Unknown = "unknown"

// priority is the stable tie-break order: when two languages score equally,
// the one listed earlier wins.
var priority = []string{"go", "rust", "typescript", "javascript", "python", "java", "cpp", "c"}

// patterns maps each language to the substrings that vote for it. Weights
// are implicit: one point per occurrence of each pattern.
var patterns = map[string][]string{
	"go": {
		"func ", "package ", ":= ", "go func", "chan ", "defer ",
		"fmt.", "interface{", "struct {",
	},
	"python": {
		"def ", "import ", "self.", "elif ", "lambda ", "None",
		"__init__", "print(", "yield ",
	},
	"rust": {
		"fn ", "let mut ", "impl ", "pub fn", "match ", "::<",
		"&mut ", "println!", "-> Result",
	},
	"javascript": {
		"function ", "const ", "=> ", "console.log", "var ", "async ",
		"require(", "module.exports",
	},
	"typescript": {
		"interface ", ": string", ": number", ": boolean", "export type",
		"readonly ", "implements ", "<T>",
	},
	"java": {
		"public class", "private ", "void ", "System.out", "extends ",
		"@Override", "new ", "static final",
	},
	"c": {
		"#include <", "int main(", "printf(", "malloc(", "sizeof(",
		"->", "void *", "char *",
	},
	"cpp": {
		"std::", "#include <", "cout <<", "template<", "namespace ",
		"nullptr", "::iterator", "virtual ",
	},
}

// extensions maps filename suffixes to language tags. Longest matching
// suffix wins, so ".d.ts" beats ".ts".
var extensions = map[string]string{
	".go":   "go",
	".py":   "python",
	".rs":   "rust",
	".js":   "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".d.ts": "typescript",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".hpp":  "cpp",
}

// Detect returns the best-scoring language tag for the given source text,
// or Unknown when nothing matches. It never fails; the caller decides
// whether Unknown is fatal.
func Detect(text string) string {
	best, bestScore := Unknown, 0
	for _, tag := range priority {
		score := 0
		for _, p := range patterns[tag] {
			score += strings.Count(text, p)
		}
		if score > bestScore {
			best, bestScore = tag, score
		}
	}
	return best
}

// DetectByExtension returns the language tag for a filename, or "" when the
// suffix is not recognized.
func DetectByExtension(filename string) string {
	name := strings.ToLower(filename)
	bestSuffix, bestTag := "", ""
	for suffix, tag := range extensions {
		if strings.HasSuffix(name, suffix) && len(suffix) > len(bestSuffix) {
			bestSuffix, bestTag = suffix, tag
		}
	}
	return bestTag
}

// Supported returns the sorted set of detectable language tags.
func Supported() []string {
	tags := make([]string, 0, len(patterns))
	for tag := range patterns {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Known reports whether tag is a detectable language.
func Known(tag string) bool {
	_, ok := patterns[tag]
	return ok
}
