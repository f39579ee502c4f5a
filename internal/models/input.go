// internal/models/input.go
package models

// RawInput is the customer message as received, before any processing.
type RawInput struct {
	TicketID       string `json:"ticketId"`
	Message        string `json:"message"`
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
}

type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders risk levels so callers can take the maximum of several.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

type PIIType string

const (
	PIIEmail      PIIType = "email"
	PIIPhone      PIIType = "phone"
	PIISSN        PIIType = "ssn"
	PIICreditCard PIIType = "credit_card"
	PIIIPAddress  PIIType = "ip_address"
	PIIAddress    PIIType = "address"
)

// PIIMatch is one detected span of personal data. Start and End are byte offsets.
type PIIMatch struct {
	Type  PIIType `json:"type"`
	Value string  `json:"-"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// ProcessedInput is built once per request by the safety processor and never mutated.
type ProcessedInput struct {
	SanitizedText string    `json:"sanitizedText"`
	RedactedText  string    `json:"redactedText"`
	PIITypes      []PIIType `json:"piiTypes"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	Flags         []string  `json:"flags"`
	WasModified   bool      `json:"wasModified"`
	ShouldBlock   bool      `json:"shouldBlock"`
}

// HasPII reports whether any PII type was detected.
func (p *ProcessedInput) HasPII() bool {
	return len(p.PIITypes) > 0
}
