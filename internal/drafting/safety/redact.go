// internal/drafting/safety/redact.go
package safety

import (
	"fmt"
	"strings"
	"unicode"

	"support-drafts/internal/models"
)

type RedactionMode string

const (
	RedactLabel  RedactionMode = "label"
	RedactMask   RedactionMode = "mask"
	RedactRemove RedactionMode = "remove"
)

const maskChar = '*'

var redactionLabels = map[models.PIIType]string{
	models.PIIEmail:      "[EMAIL]",
	models.PIIPhone:      "[PHONE]",
	models.PIISSN:        "[SSN]",
	models.PIICreditCard: "[CREDIT_CARD]",
	models.PIIIPAddress:  "[IP_ADDRESS]",
	models.PIIAddress:    "[ADDRESS]",
}

func (m RedactionMode) valid() bool {
	switch m {
	case RedactLabel, RedactMask, RedactRemove:
		return true
	}
	return false
}

// Redact replaces each detected PII span according to mode.
func Redact(text string, mode RedactionMode) string {
	return redactMatches(text, DetectPII(text), mode)
}

func redactMatches(text string, matches []models.PIIMatch, mode RedactionMode) string {
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, m := range matches {
		b.WriteString(text[cursor:m.Start])
		b.WriteString(replacementFor(m, mode))
		cursor = m.End
	}
	b.WriteString(text[cursor:])
	return b.String()
}

func replacementFor(m models.PIIMatch, mode RedactionMode) string {
	switch mode {
	case RedactRemove:
		return ""
	case RedactMask:
		if m.Type == models.PIICreditCard {
			return maskKeepingLastDigits(m.Value, 4)
		}
		return maskAlphanumerics(m.Value)
	default:
		if label, ok := redactionLabels[m.Type]; ok {
			return label
		}
		return fmt.Sprintf("[%s]", strings.ToUpper(string(m.Type)))
	}
}

// maskAlphanumerics masks letters and digits and keeps separators in place.
func maskAlphanumerics(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return maskChar
		}
		return r
	}, value)
}

func maskKeepingLastDigits(value string, keep int) string {
	total := len(onlyDigits(value))
	seen := 0
	return strings.Map(func(r rune) rune {
		if r < '0' || r > '9' {
			return r
		}
		seen++
		if seen > total-keep {
			return r
		}
		return maskChar
	}, value)
}
