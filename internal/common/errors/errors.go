// Package errors provides standardized error handling for the draft API and BPMN workflow integration.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInputBlocked        ErrorCode = "INPUT_BLOCKED"
	ErrCodeInvalidDraftRequest ErrorCode = "INVALID_DRAFT_REQUEST"

	ErrCodeTicketNotFound    ErrorCode = "TICKET_NOT_FOUND"
	ErrCodeTicketFetchFailed ErrorCode = "TICKET_FETCH_FAILED"

	ErrCodeEmbeddingFailed        ErrorCode = "EMBEDDING_FAILED"
	ErrCodeSimilaritySearchFailed ErrorCode = "SIMILARITY_SEARCH_FAILED"

	ErrCodeCompletionFailed  ErrorCode = "COMPLETION_FAILED"
	ErrCodeCompletionTimeout ErrorCode = "COMPLETION_TIMEOUT"

	ErrCodeEventPublishFailed     ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	ErrCodeRateLimited          ErrorCode = "RATE_LIMITED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e after merging the given keys into its metadata.
func (e *StandardError) WithMetadata(kv map[string]interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{}, len(kv))
	}
	for k, v := range kv {
		e.Metadata[k] = v
	}
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInputBlockedError reports input that screening rejected. flags are rule names, never raw text.
func NewInputBlockedError(riskLevel string, flags []string) *StandardError {
	e := newError(ErrCodeInputBlocked, "Input was blocked by safety screening", "", false, nil)
	return e.WithMetadata(map[string]interface{}{
		"riskLevel": riskLevel,
		"flags":     flags,
	})
}

func NewInvalidDraftRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidDraftRequest, "Invalid draft request", details, false, nil)
}

func NewTicketNotFoundError(ticketID string) *StandardError {
	e := newError(ErrCodeTicketNotFound, "Ticket not found", fmt.Sprintf("ticket %s does not exist", ticketID), false, nil)
	return e.WithMetadata(map[string]interface{}{"ticketId": ticketID})
}

func NewTicketFetchFailedError(ticketID string, err error) *StandardError {
	e := newError(ErrCodeTicketFetchFailed, "Failed to load ticket", errDetails(err), true, err)
	return e.WithMetadata(map[string]interface{}{"ticketId": ticketID})
}

func NewEmbeddingFailedError(err error) *StandardError {
	return newError(ErrCodeEmbeddingFailed, "Embedding generation failed", errDetails(err), true, err)
}

func NewSimilaritySearchFailedError(target string, err error) *StandardError {
	e := newError(ErrCodeSimilaritySearchFailed, "Similarity search failed", errDetails(err), true, err)
	return e.WithMetadata(map[string]interface{}{"target": target})
}

func NewCompletionFailedError(err error) *StandardError {
	return newError(ErrCodeCompletionFailed, "Completion request failed", errDetails(err), true, err)
}

func NewCompletionTimeoutError(err error) *StandardError {
	return newError(ErrCodeCompletionTimeout, "Completion request timed out", errDetails(err), true, err)
}

func NewEventPublishFailedError(topic string, err error) *StandardError {
	e := newError(ErrCodeEventPublishFailed, "Failed to publish draft event", errDetails(err), true, err)
	return e.WithMetadata(map[string]interface{}{"topic": topic})
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	e := newError(ErrCodeNotificationSendFailed, "Failed to send notification", errDetails(err), true, err)
	return e.WithMetadata(map[string]interface{}{"channel": channel})
}

func NewConfigurationInvalidError(details string) *StandardError {
	return newError(ErrCodeConfigurationInvalid, "Invalid configuration", details, false, nil)
}

func NewRateLimitedError() *StandardError {
	return newError(ErrCodeRateLimited, "Too many requests", "", true, nil)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes used in the process models.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInputBlocked:           "INPUT_BLOCKED",
	ErrCodeInvalidDraftRequest:    "INVALID_DRAFT_REQUEST",
	ErrCodeTicketNotFound:         "TICKET_NOT_FOUND",
	ErrCodeTicketFetchFailed:      "TICKET_FETCH_FAILED",
	ErrCodeEmbeddingFailed:        "EMBEDDING_FAILED",
	ErrCodeSimilaritySearchFailed: "SIMILARITY_SEARCH_FAILED",
	ErrCodeCompletionFailed:       "COMPLETION_FAILED",
	ErrCodeCompletionTimeout:      "COMPLETION_TIMEOUT",
	ErrCodeEventPublishFailed:     "EVENT_PUBLISH_FAILED",
	ErrCodeNotificationSendFailed: "NOTIFICATION_SEND_FAILED",
	ErrCodeConfigurationInvalid:   "CONFIGURATION_INVALID",
}

// IsBPMNErrorCode reports whether code is thrown to the process engine.
func IsBPMNErrorCode(code string) bool {
	for _, c := range BPMNErrorMapping {
		if c == code {
			return true
		}
	}
	return false
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTicketFetchFailed,
		ErrCodeEmbeddingFailed,
		ErrCodeSimilaritySearchFailed,
		ErrCodeCompletionFailed,
		ErrCodeEventPublishFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeCompletionTimeout:
		return 1

	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "BLOCKED"):
		return "SAFETY"
	case strings.Contains(codeStr, "TICKET"):
		return "TICKET_STORE"
	case strings.Contains(codeStr, "EMBEDDING") || strings.Contains(codeStr, "SEARCH"):
		return "RETRIEVAL"
	case strings.Contains(codeStr, "COMPLETION"):
		return "AI"
	case strings.Contains(codeStr, "EVENT") || strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code to the status returned by the draft API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidDraftRequest:
		return http.StatusBadRequest
	case ErrCodeTicketNotFound:
		return http.StatusNotFound
	case ErrCodeInputBlocked:
		return http.StatusUnprocessableEntity
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeCompletionTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeTicketFetchFailed,
		ErrCodeEmbeddingFailed,
		ErrCodeSimilaritySearchFailed,
		ErrCodeCompletionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
