// internal/drafting/safety/sanitize.go
package safety

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	FlagControlCharacters   = "control_characters_removed"
	FlagInvisibleCharacters = "invisible_characters_removed"
	FlagExcessiveWhitespace = "excessive_whitespace"
	FlagInjectionNeutralize = "injection_neutralized"
	FlagTrimmed             = "trimmed"
	FlagTruncated           = "truncated"
)

// lowRiskFlags raise the risk level to at least low.
var lowRiskFlags = map[string]bool{
	FlagControlCharacters:   true,
	FlagInvisibleCharacters: true,
	FlagExcessiveWhitespace: true,
	FlagTruncated:           true,
}

var (
	// ASCII controls except \t \n \r.
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	// Zero-width characters, bidi embeddings and isolates, invisible operators, BOM, soft hyphen.
	invisibleChars = regexp.MustCompile(`[\x{200B}-\x{200F}\x{202A}-\x{202E}\x{2060}-\x{2064}\x{2066}-\x{2069}\x{FEFF}\x{00AD}]`)
	manySpaces     = regexp.MustCompile(` {3,}`)
	manyNewlines   = regexp.MustCompile(`(?:\r?\n){4,}`)
)

// visibleSpaces maps Unicode separators to their ASCII equivalent. The text
// changes but no flag is raised.
var visibleSpaces = strings.NewReplacer(
	"\u2028", "\n",
	"\u2029", "\n",
	"\u202F", " ",
)

// neutralizer rewrites markup that would let customer text impersonate a chat role.
type neutralizer struct {
	pattern     *regexp.Regexp
	replacement string
}

var neutralizers = []neutralizer{
	{regexp.MustCompile(`<\|[a-zA-Z_]+\|>`), ""},
	{regexp.MustCompile(`(?i)<\s*(/?)\s*(system|assistant|user|instructions?|prompt)\s*>`), "[$1$2]"},
	{regexp.MustCompile("(?i)```\\s*(system|instructions?|prompt)\\b"), "```text"},
}

type sanitizeResult struct {
	text     string
	flags    []string
	modified bool
}

func (r *sanitizeResult) apply(flag string, next string) {
	if next == r.text {
		return
	}
	r.text = next
	r.modified = true
	r.flags = append(r.flags, flag)
}

func (r *sanitizeResult) normalize(next string) {
	if next == r.text {
		return
	}
	r.text = next
	r.modified = true
}

// stripHidden removes control and invisible characters. It runs before
// injection detection so zero-width obfuscation cannot hide a phrase.
func stripHidden(text string) *sanitizeResult {
	r := &sanitizeResult{text: text}
	if !utf8.ValidString(r.text) {
		r.apply(FlagControlCharacters, strings.ToValidUTF8(r.text, ""))
	}
	r.apply(FlagControlCharacters, controlChars.ReplaceAllString(r.text, ""))
	r.normalize(visibleSpaces.Replace(r.text))
	r.apply(FlagInvisibleCharacters, invisibleChars.ReplaceAllString(r.text, ""))
	return r
}

// finish neutralizes role markup, normalizes whitespace, trims and caps length.
func (r *sanitizeResult) finish(maxLength int, neutralize bool) {
	if neutralize {
		next := r.text
		for _, n := range neutralizers {
			next = n.pattern.ReplaceAllString(next, n.replacement)
		}
		r.apply(FlagInjectionNeutralize, next)
	}

	normalized := manySpaces.ReplaceAllString(r.text, "  ")
	normalized = manyNewlines.ReplaceAllString(normalized, "\n\n\n")
	r.apply(FlagExcessiveWhitespace, normalized)

	r.apply(FlagTrimmed, strings.TrimSpace(r.text))

	if maxLength > 0 && utf8.RuneCountInString(r.text) > maxLength {
		r.apply(FlagTruncated, truncateRunes(r.text, maxLength))
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
