// Package text provides the text-preprocessing collaborator for the
// synthesis service: normalization and sentence-aligned chunking.
package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Whitespace pattern collapsing runs of spaces, tabs, and newlines.
const whitespaceRegexPattern = `\s+`

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Preprocessor normalizes raw text into a form suitable for synthesis and
// for fingerprinting. It is safe for concurrent use.
type Preprocessor struct {
	whitespacePattern    *regexp.Regexp
	abbreviationReplacer *strings.Replacer
	punctuationReplacer  *strings.Replacer
}

// NewPreprocessor creates a preprocessor with compiled patterns and replacers.
func NewPreprocessor() *Preprocessor {
	abbreviations := []string{
		"Mr.", "Mister",
		"Mrs.", "Misses",
		"Ms.", "Miss",
		"Dr.", "Doctor",
		"St.", "Saint",
		"Co.", "Company",
		"Ltd.", "Limited",
		"Corp.", "Corporation",
		"Inc.", "Incorporated",
	}

	punctuation := []string{
		emDash, "-",
		enDash, "-",
		figureDash, "-",
		ellipsisChar, ellipsis,
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	}

	return &Preprocessor{
		whitespacePattern:    regexp.MustCompile(whitespaceRegexPattern),
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
		punctuationReplacer:  strings.NewReplacer(punctuation...),
	}
}

// Process normalizes text: abbreviations are expanded, whitespace collapsed,
// smart punctuation replaced, and a sentence-ending period appended when
// missing. Identical inputs always produce identical outputs, which the
// request fingerprint depends on.
func (p *Preprocessor) Process(text string) string {
	if text == "" {
		return text
	}

	normalized := p.abbreviationReplacer.Replace(text)
	normalized = p.whitespacePattern.ReplaceAllString(normalized, " ")
	normalized = p.punctuationReplacer.Replace(normalized)
	normalized = strings.TrimSpace(normalized)

	return ensureSentenceEnding(normalized)
}

// ensureSentenceEnding appends a period unless the text already ends with
// sentence-closing punctuation.
func ensureSentenceEnding(text string) string {
	if text == "" {
		return ""
	}

	lastRune, _ := utf8.DecodeLastRuneInString(text)

	switch lastRune {
	case '.', '!', '?':
		return text
	default:
		return text + "."
	}
}
