// internal/workers/drafting/screen-input/handler.go
package screeninput

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
	"support-drafts/internal/models"
)

const (
	TaskType = "screen-input"
)

// Screener is satisfied by *service.Service.
type Screener interface {
	Screen(text string) *models.ProcessedInput
}

type Handler struct {
	config       *Config
	screener     Screener
	validator    *validation.Validator
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, screener Screener, validator *validation.Validator, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		screener:     screener,
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

	output, err := h.execute(input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
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

func (h *Handler) parseInput(variables string) (*Input, error) {
	result, err := h.validator.ValidateJSON(validation.SchemaScreenInputJob, []byte(variables))
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

func (h *Handler) execute(input *Input) (*Output, error) {
	in := h.screener.Screen(input.Message)

	h.logger.Info("input screened", map[string]interface{}{
		"riskLevel": string(in.RiskLevel),
		"flags":     in.Flags,
		"piiTypes":  in.PIITypes,
	})

	if in.ShouldBlock && h.config.ThrowOnBlock {
		return nil, apperrors.NewInputBlockedError(string(in.RiskLevel), in.Flags)
	}

	return &Output{
		RedactedText: in.RedactedText,
		PIITypes:     in.PIITypes,
		HasPII:       len(in.PIITypes) > 0,
		RiskLevel:    in.RiskLevel,
		Flags:        in.Flags,
		WasModified:  in.WasModified,
		ShouldBlock:  in.ShouldBlock,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(input *Input) (*Output, error) {
	return h.execute(input)
}
