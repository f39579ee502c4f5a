// internal/workers/drafting/generate-draft/handler.go
package generatedraft

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "support-drafts/internal/common/errors"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/common/metrics"
	"support-drafts/internal/common/validation"
	"support-drafts/internal/drafting/service"
)

const (
	TaskType = "generate-draft"
)

// DraftService is satisfied by *service.Service.
type DraftService interface {
	Draft(ctx context.Context, cmd service.Command) (*service.Result, error)
}

type Handler struct {
	config       *Config
	drafts       DraftService
	validator    *validation.Validator
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, drafts DraftService, validator *validation.Validator, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		drafts:       drafts,
		validator:    validator,
		errorHandler: apperrors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// parseInput validates the job variables before decoding them.
func (h *Handler) parseInput(variables string) (*Input, error) {
	result, err := h.validator.ValidateJSON(validation.SchemaGenerateDraftJob, []byte(variables))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidDraftRequestError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidDraftRequestError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidDraftRequestError("input cannot be nil")
	}

	res, err := h.drafts.Draft(ctx, service.Command{
		TicketID:       input.TicketID,
		OrganizationID: input.OrganizationID,
		UserID:         input.UserID,
		Message:        input.Message,
		Regenerate:     input.Regenerate,
	})
	if err != nil {
		return nil, err
	}

	d := res.Draft
	h.logger.Info("draft generated", map[string]interface{}{
		"ticketId":        input.TicketID,
		"state":           string(d.Metadata.State),
		"confidenceLevel": string(d.ConfidenceLevel),
		"sourceCount":     len(d.Sources),
	})

	return &Output{
		Draft:           d,
		DraftState:      d.Metadata.State,
		ConfidenceLevel: d.ConfidenceLevel,
		NeedsReview:     d.NeedsReview,
		IsFallback:      d.IsFallback,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		h.fail(ctx, client, job, apperrors.NewInternalError(err))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
