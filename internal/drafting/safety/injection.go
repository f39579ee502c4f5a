// internal/drafting/safety/injection.go
package safety

import (
	"regexp"

	"support-drafts/internal/models"
)

// InjectionRule is one named prompt-injection pattern with its risk tier.
type InjectionRule struct {
	Name    string
	Pattern *regexp.Regexp
	Risk    models.RiskLevel
}

// InjectionHit records a rule that fired and the snippet it matched.
type InjectionHit struct {
	Rule    string           `json:"rule"`
	Risk    models.RiskLevel `json:"risk"`
	Snippet string           `json:"snippet"`
}

// DefaultInjectionRules is evaluated in order; every rule that matches is reported.
var DefaultInjectionRules = []InjectionRule{
	{
		Name:    "ignore_instructions",
		Pattern: regexp.MustCompile(`(?i)\b(ignore|disregard|forget|skip|override)\s+(?:(?:all|any|the|your|my|of|these|those)\s+)*(previous|prior|above|earlier|preceding|original|system)\s+(instructions?|prompts?|rules|directions|guidelines|context)\b`),
		Risk:    models.RiskHigh,
	},
	{
		Name: "ignore_instructions_multilingual",
		Pattern: regexp.MustCompile(`(?i)(ignora(?:r)?\s+(?:todas\s+)?(?:las\s+)?instrucciones\s+(?:anteriores|previas)` +
			`|ignore[rz]?\s+(?:toutes\s+)?(?:les\s+)?instructions\s+(?:pr[ée]c[ée]dentes|ant[ée]rieures)` +
			`|ignoriere?\s+(?:alle\s+)?(?:vorherigen|bisherigen|obigen)\s+(?:anweisungen|instruktionen)` +
			`|ignor[ea]\s+(?:todas\s+)?(?:as\s+)?instru[çc][õo]es\s+anteriores)`),
		Risk: models.RiskHigh,
	},
	{
		Name:    "jailbreak_keywords",
		Pattern: regexp.MustCompile(`(?i)\b(jailbreak(?:ed|ing)?|DAN\s+mode|do\s+anything\s+now|developer\s+mode|god\s+mode|unfiltered\s+mode|without\s+any\s+restrictions)\b`),
		Risk:    models.RiskHigh,
	},
	{
		Name:    "role_override",
		Pattern: regexp.MustCompile(`(?i)(\byou\s+are\s+now\s+(?:a|an|the|in|my)\b|\bfrom\s+now\s+on,?\s+you\s+(?:are|will|must)\b|\b(?:new|updated|real)\s+(?:system\s+)?instructions?\s*:)`),
		Risk:    models.RiskHigh,
	},
	{
		Name:    "chat_markup",
		Pattern: regexp.MustCompile(`<\|(?:im_start|im_end|system|endoftext)\|>`),
		Risk:    models.RiskHigh,
	},
	{
		Name:    "role_play",
		Pattern: regexp.MustCompile(`(?i)\b(pretend\s+(?:to\s+be|you\s+are)|act\s+as\s+(?:if\s+you\s+(?:are|were)\s+)?(?:an?\s+)?(?:unrestricted|unfiltered|evil|admin|administrator|developer|system|different))`),
		Risk:    models.RiskMedium,
	},
	{
		Name:    "fenced_system_block",
		Pattern: regexp.MustCompile("(?i)```\\s*(system|instructions?|prompt)\\b"),
		Risk:    models.RiskMedium,
	},
	{
		Name:    "xml_system_tag",
		Pattern: regexp.MustCompile(`(?i)<\s*/?\s*(system|instructions?|prompt|assistant)\s*>`),
		Risk:    models.RiskMedium,
	},
	{
		Name:    "prompt_exfiltration",
		Pattern: regexp.MustCompile(`(?i)(\brepeat\s+after\s+me\b|\brepeat\s+(?:the|your)\s+(?:text|words|instructions|prompt)\s+above\b|\b(?:reveal|show|print|display|output|tell\s+me)\s+(?:me\s+)?(?:your|the)\s+(?:system\s+|hidden\s+|initial\s+)?(?:prompt|instructions|rules)\b)`),
		Risk:    models.RiskMedium,
	},
	{
		Name:    "encoded_payload",
		Pattern: regexp.MustCompile(`[A-Za-z0-9+/]{80,}={0,2}`),
		Risk:    models.RiskLow,
	},
}

const maxSnippetLength = 80

// detectInjection evaluates rules in order without touching the text.
func detectInjection(rules []InjectionRule, text string) []InjectionHit {
	var hits []InjectionHit
	for _, rule := range rules {
		match := rule.Pattern.FindString(text)
		if match == "" {
			continue
		}
		hits = append(hits, InjectionHit{
			Rule:    rule.Name,
			Risk:    rule.Risk,
			Snippet: truncateRunes(match, maxSnippetLength),
		})
	}
	return hits
}

// InjectionFlag is the flag recorded for a fired rule.
func InjectionFlag(rule string) string {
	return "injection:" + rule
}
