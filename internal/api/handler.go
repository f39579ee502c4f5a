// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "support-drafts/internal/common/errors"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/common/validation"
	"support-drafts/internal/drafting/service"
	"support-drafts/internal/models"
)

const maxBodyBytes = 1 << 20

// DraftService is satisfied by *service.Service.
type DraftService interface {
	Draft(ctx context.Context, cmd service.Command) (*service.Result, error)
	Screen(text string) *models.ProcessedInput
}

// ReadinessCheck reports whether one dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type DraftRequest struct {
	TicketID       string `json:"ticketId"`
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	Regenerate     bool   `json:"regenerate"`
}

type ScreeningRequest struct {
	Text string `json:"text"`
}

type ErrorResponse struct {
	Error    string                       `json:"error"`
	Code     string                       `json:"code"`
	Details  string                       `json:"details,omitempty"`
	Metadata map[string]interface{}       `json:"metadata,omitempty"`
	Fields   []validation.ValidationError `json:"fields,omitempty"`
}

type Handler struct {
	drafts         DraftService
	validator      *validation.Validator
	checks         map[string]ReadinessCheck
	requestTimeout time.Duration
	logger         logger.Logger
}

func NewHandler(drafts DraftService, validator *validation.Validator, checks map[string]ReadinessCheck, requestTimeout time.Duration, log logger.Logger) *Handler {
	return &Handler{
		drafts:         drafts,
		validator:      validator,
		checks:         checks,
		requestTimeout: requestTimeout,
		logger:         log.With(map[string]interface{}{"component": "api"}),
	}
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready runs every readiness check and answers 503 when any fails.
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	return c.JSON(status, map[string]interface{}{"status": state, "checks": results})
}

// CreateDraft handles POST /api/v1/drafts.
func (h *Handler) CreateDraft(c echo.Context) error {
	body, ok, err := h.readValidated(c, validation.SchemaDraftRequest)
	if !ok {
		return err
	}

	var req DraftRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return writeError(c, apperrors.NewInvalidDraftRequestError("invalid JSON body"))
	}

	ctx := c.Request().Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	res, err := h.drafts.Draft(ctx, service.Command{
		TicketID:       req.TicketID,
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Regenerate:     req.Regenerate,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res.Draft)
}

// Screen handles POST /api/v1/screenings.
func (h *Handler) Screen(c echo.Context) error {
	body, ok, err := h.readValidated(c, validation.SchemaScreeningRequest)
	if !ok {
		return err
	}

	var req ScreeningRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return writeError(c, apperrors.NewInvalidDraftRequestError("invalid JSON body"))
	}

	return c.JSON(http.StatusOK, h.drafts.Screen(req.Text))
}

// readValidated reads the body and validates it against schemaName. When ok
// is false an error response has been written and err is the write result.
func (h *Handler) readValidated(c echo.Context, schemaName string) (body []byte, ok bool, err error) {
	body, err = io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return nil, false, writeError(c, apperrors.NewInvalidDraftRequestError("unreadable body"))
	}

	result, err := h.validator.ValidateJSON(schemaName, body)
	if err != nil {
		return nil, false, writeError(c, apperrors.NewInternalError(err))
	}
	if !result.Valid {
		return nil, false, c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  "request validation failed",
			Code:   string(apperrors.ErrCodeInvalidDraftRequest),
			Fields: result.Errors,
		})
	}
	return body, true, nil
}

func writeError(c echo.Context, err error) error {
	stdErr := apperrors.Normalize(err)
	resp := ErrorResponse{
		Error:    stdErr.Message,
		Code:     string(stdErr.Code),
		Metadata: stdErr.Metadata,
	}
	if stdErr.Code == apperrors.ErrCodeInvalidDraftRequest {
		resp.Details = stdErr.Details
	}
	return c.JSON(apperrors.HTTPStatus(stdErr.Code), resp)
}
