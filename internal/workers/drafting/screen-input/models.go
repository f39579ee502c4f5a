// internal/workers/drafting/screen-input/models.go
package screeninput

import "support-drafts/internal/models"

type Input struct {
	Message string `json:"message"`
}

// Output never carries the original text, only the redacted form.
type Output struct {
	RedactedText string           `json:"redactedText"`
	PIITypes     []models.PIIType `json:"piiTypes"`
	HasPII       bool             `json:"hasPii"`
	RiskLevel    models.RiskLevel `json:"riskLevel"`
	Flags        []string         `json:"flags"`
	WasModified  bool             `json:"wasModified"`
	ShouldBlock  bool             `json:"shouldBlock"`
}
