// internal/drafting/safety/pii.go
package safety

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"support-drafts/internal/models"
)

// piiDetector finds candidate spans with a pattern and keeps those the validator accepts.
type piiDetector struct {
	typ      models.PIIType
	pattern  *regexp.Regexp
	validate func(value string) bool
	// digitBounded rejects spans glued to surrounding digits, for patterns
	// that cannot start with \b.
	digitBounded bool
}

var piiDetectors = []piiDetector{
	{
		typ:     models.PIIEmail,
		pattern: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
	},
	{
		typ:          models.PIIPhone,
		pattern:      regexp.MustCompile(`(?:\+?1[\s.\-]?)?(?:(?:\(\d{3}\)\s?|\d{3}[\s.\-])\d{3}[\s.\-]\d{4}|\d{10})`),
		digitBounded: true,
	},
	{
		typ:      models.PIISSN,
		pattern:  regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		validate: validSSN,
	},
	{
		typ:      models.PIICreditCard,
		pattern:  regexp.MustCompile(`\b(?:\d[ \-]?){12,18}\d\b`),
		validate: plausibleCardNumber,
	},
	{
		typ:      models.PIIIPAddress,
		pattern:  regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		validate: routableIPv4,
	},
	{
		typ: models.PIIAddress,
		pattern: regexp.MustCompile(`\b\d{1,6}\s+(?:[A-Za-z][A-Za-z0-9.'\-]*\s+){1,4}?` +
			`(?:Street|street|St|Avenue|avenue|Ave|Road|road|Rd|Boulevard|boulevard|Blvd|Lane|lane|Ln|Drive|drive|Dr|` +
			`Court|court|Ct|Way|way|Place|place|Pl|Terrace|terrace|Circle|circle|Cir|Parkway|parkway|Pkwy|Highway|highway|Hwy)\b\.?`),
	},
}

// validSSN excludes area 000, 666 and 9xx, group 00 and serial 0000.
func validSSN(value string) bool {
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return false
	}
	area, group, serial := parts[0], parts[1], parts[2]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	return group != "00" && serial != "0000"
}

// plausibleCardNumber accepts 13 to 19 digits that are not all the same digit.
// There is no Luhn check; detection favours recall.
func plausibleCardNumber(value string) bool {
	digits := onlyDigits(value)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	return strings.Trim(digits, digits[:1]) != ""
}

// routableIPv4 rejects out-of-range octets, loopback, all-zero and broadcast.
func routableIPv4(value string) bool {
	octets := strings.Split(value, ".")
	if len(octets) != 4 {
		return false
	}
	for _, o := range octets {
		n, err := strconv.Atoi(o)
		if err != nil || n > 255 {
			return false
		}
	}
	switch {
	case octets[0] == "127":
		return false
	case value == "0.0.0.0", value == "255.255.255.255":
		return false
	}
	return true
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigitAt(text string, i int) bool {
	return i >= 0 && i < len(text) && text[i] >= '0' && text[i] <= '9'
}

// DetectPII runs every detector and returns non-overlapping matches sorted by position.
// When spans overlap the earlier one wins, and the longer one on a tie.
func DetectPII(text string) []models.PIIMatch {
	if text == "" {
		return nil
	}

	var candidates []models.PIIMatch
	for _, d := range piiDetectors {
		for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			if d.digitBounded && (isDigitAt(text, start-1) || isDigitAt(text, end)) {
				continue
			}
			value := text[start:end]
			if d.validate != nil && !d.validate(value) {
				continue
			}
			candidates = append(candidates, models.PIIMatch{Type: d.typ, Value: value, Start: start, End: end})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		return candidates[i].End-candidates[i].Start > candidates[j].End-candidates[j].Start
	})

	merged := make([]models.PIIMatch, 0, len(candidates))
	lastEnd := -1
	for _, c := range candidates {
		if c.Start < lastEnd {
			continue
		}
		merged = append(merged, c)
		lastEnd = c.End
	}
	return merged
}

// PIITypes returns the distinct types in order of first appearance.
func PIITypes(matches []models.PIIMatch) []models.PIIType {
	seen := make(map[models.PIIType]bool, len(matches))
	types := make([]models.PIIType, 0, len(matches))
	for _, m := range matches {
		if seen[m.Type] {
			continue
		}
		seen[m.Type] = true
		types = append(types, m.Type)
	}
	return types
}
