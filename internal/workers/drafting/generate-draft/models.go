// internal/workers/drafting/generate-draft/models.go
package generatedraft

import "support-drafts/internal/models"

type Input struct {
	TicketID       string `json:"ticketId"`
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	Message        string `json:"message"`
	Regenerate     bool   `json:"regenerate"`
}

// Output is merged into the process variables. The flat fields drive
// gateways; Draft carries the full result for the review task.
type Output struct {
	Draft           *models.DraftOutput    `json:"draft"`
	DraftState      models.DraftState      `json:"draftState"`
	ConfidenceLevel models.ConfidenceLevel `json:"confidenceLevel"`
	NeedsReview     bool                   `json:"needsReview"`
	IsFallback      bool                   `json:"isFallback"`
}
