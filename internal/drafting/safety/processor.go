// internal/drafting/safety/processor.go
package safety

import (
	"fmt"
	"unicode/utf8"

	"support-drafts/internal/models"
)

const DefaultMaxLength = 10000

type Options struct {
	MaxLength     int
	RedactionMode RedactionMode
}

func DefaultOptions() Options {
	return Options{
		MaxLength:     DefaultMaxLength,
		RedactionMode: RedactLabel,
	}
}

// Validate fills zero values with defaults and rejects unknown settings.
func (o *Options) Validate() error {
	if o.MaxLength == 0 {
		o.MaxLength = DefaultMaxLength
	}
	if o.MaxLength < 0 {
		return fmt.Errorf("max length must be positive, got %d", o.MaxLength)
	}
	if o.RedactionMode == "" {
		o.RedactionMode = RedactLabel
	}
	if !o.RedactionMode.valid() {
		return fmt.Errorf("unknown redaction mode %q", o.RedactionMode)
	}
	return nil
}

// Processor sanitizes and classifies raw customer text. It holds no
// per-request state and is safe for concurrent use.
type Processor struct {
	opts  Options
	rules []InjectionRule
}

func NewProcessor(opts Options) (*Processor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Processor{opts: opts, rules: DefaultInjectionRules}, nil
}

// WithRules returns a copy of p evaluating the given rule table instead of the default.
func (p *Processor) WithRules(rules []InjectionRule) *Processor {
	cp := *p
	cp.rules = rules
	return &cp
}

// Report is the full result of processing, including the fired injection rules
// and PII spans that ProcessedInput only summarizes.
type Report struct {
	Input     *models.ProcessedInput
	Injection []InjectionHit
	PII       []models.PIIMatch
}

// Process never fails; empty input yields an empty, risk-none result.
func (p *Processor) Process(raw string) *models.ProcessedInput {
	return p.Inspect(raw).Input
}

func (p *Processor) Inspect(raw string) *Report {
	if raw == "" {
		return &Report{Input: emptyInput()}
	}

	result := stripHidden(raw)
	hits := detectInjection(p.rules, result.text)
	result.finish(p.opts.MaxLength, true)

	flags := make([]string, 0, len(result.flags)+len(hits))
	flags = append(flags, result.flags...)
	for _, h := range hits {
		flags = append(flags, InjectionFlag(h.Rule))
	}

	risk := aggregateRisk(result.flags, hits)
	matches := DetectPII(result.text)

	input := &models.ProcessedInput{
		SanitizedText: result.text,
		RedactedText:  redactMatches(result.text, matches, p.opts.RedactionMode),
		PIITypes:      PIITypes(matches),
		RiskLevel:     risk,
		Flags:         flags,
		WasModified:   result.modified,
		ShouldBlock:   risk == models.RiskHigh,
	}
	return &Report{Input: input, Injection: hits, PII: matches}
}

// aggregateRisk takes the highest injection tier, falling back to low when
// only low-risk sanitization flags fired.
func aggregateRisk(sanitizeFlags []string, hits []InjectionHit) models.RiskLevel {
	risk := models.RiskNone
	for _, h := range hits {
		if h.Risk.Rank() > risk.Rank() {
			risk = h.Risk
		}
	}
	if risk != models.RiskNone {
		return risk
	}
	for _, f := range sanitizeFlags {
		if lowRiskFlags[f] {
			return models.RiskLow
		}
	}
	return models.RiskNone
}

func emptyInput() *models.ProcessedInput {
	return &models.ProcessedInput{
		PIITypes:  []models.PIIType{},
		RiskLevel: models.RiskNone,
		Flags:     []string{},
	}
}

// QueryLength is the rune length used for clarity scoring and fallback decisions.
func QueryLength(in *models.ProcessedInput) int {
	if in == nil {
		return 0
	}
	return utf8.RuneCountInString(in.SanitizedText)
}
