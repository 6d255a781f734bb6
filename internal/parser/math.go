package parser

import "regexp"

// mathPatterns flag LaTeX-style math in extracted text. Presence feeds
// Page.HasMath so downstream consumers know a page needs math-aware
// rendering.
var mathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)\$\$.*?\$\$`),
	regexp.MustCompile(`(?s)\$[^$\n]+\$`),
	regexp.MustCompile(`(?s)\\begin\{(?:equation|align|math)\}.*?\\end\{(?:equation|align|math)\}`),
	regexp.MustCompile(`\\frac\{[^}]*\}\{[^}]*\}`),
	regexp.MustCompile(`\\(?:sum|int|prod|sqrt)\b`),
	regexp.MustCompile(`\\(?:alpha|beta|gamma|lambda|sigma|theta)\b`),
}

// DetectMath reports whether text contains LaTeX-style math notation.
func DetectMath(text string) bool {
	for _, re := range mathPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
