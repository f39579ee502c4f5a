// internal/escalation/notifier.go
package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"support-drafts/internal/common/config"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/models"
)

var ErrNotificationFailed = errors.New("NOTIFICATION_SEND_FAILED")

// AlertPublisher is satisfied by *aws.SNSClient.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, topicARN, subject, message string, attributes map[string]string) (string, error)
}

// Mailer is satisfied by *aws.SESClient.
type Mailer interface {
	SendText(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

// Notifier alerts the support lead about drafts that need a human. Alert
// bodies carry ids, reasons and redacted text only.
type Notifier struct {
	sns      AlertPublisher
	ses      Mailer
	topicARN string
	from     string
	to       []string
	logger   logger.Logger
}

// NewNotifier builds a notifier. mailer may be nil when e-mail is disabled.
func NewNotifier(cfg config.NotificationConfig, sns AlertPublisher, mailer Mailer, log logger.Logger) *Notifier {
	n := &Notifier{
		sns:      sns,
		topicARN: cfg.SNS.TopicARN,
		logger: log.With(map[string]interface{}{
			"component": "escalation",
		}),
	}
	if cfg.SES.Enabled && mailer != nil && len(cfg.SES.ToEmails) > 0 {
		n.ses = mailer
		n.from = cfg.SES.FromEmail
		n.to = append([]string(nil), cfg.SES.ToEmails...)
	}
	return n
}

// ShouldEscalate reports whether a finished draft warrants an alert: every
// fallback, and generated drafts at low confidence that need review.
func ShouldEscalate(out *models.DraftOutput) bool {
	if out == nil {
		return false
	}
	if out.IsFallback {
		return true
	}
	return out.NeedsReview && out.ConfidenceLevel == models.ConfidenceLow
}

// NotifyDraft sends an alert for out when ShouldEscalate holds. It reports
// whether an alert was sent.
func (n *Notifier) NotifyDraft(ctx context.Context, raw models.RawInput, in *models.ProcessedInput, out *models.DraftOutput) (bool, error) {
	if !ShouldEscalate(out) {
		return false, nil
	}

	reason := "low_confidence"
	if out.IsFallback {
		reason = string(out.FallbackReason)
	}

	subject := fmt.Sprintf("Draft needs review: ticket %s (%s)", raw.TicketID, reason)

	var b strings.Builder
	writeHeader(&b, raw)
	fmt.Fprintf(&b, "State: %s\n", out.Metadata.State)
	fmt.Fprintf(&b, "Reason: %s\n", reason)
	fmt.Fprintf(&b, "Confidence: %.2f (%s)\n", out.Confidence, out.ConfidenceLevel)
	if len(out.SuggestedActions) > 0 {
		b.WriteString("Suggested actions:\n")
		for _, a := range out.SuggestedActions {
			fmt.Fprintf(&b, "  - %s\n", a)
		}
	}
	writeRedacted(&b, in)

	return true, n.send(ctx, subject, b.String(), map[string]string{
		"ticketId":       raw.TicketID,
		"organizationId": raw.OrganizationID,
		"reason":         reason,
	})
}

// NotifyBlocked alerts about input the safety processor refused.
func (n *Notifier) NotifyBlocked(ctx context.Context, raw models.RawInput, in *models.ProcessedInput) error {
	subject := fmt.Sprintf("Input blocked: ticket %s", raw.TicketID)

	var b strings.Builder
	writeHeader(&b, raw)
	fmt.Fprintf(&b, "Risk level: %s\n", in.RiskLevel)
	if len(in.Flags) > 0 {
		fmt.Fprintf(&b, "Flags: %s\n", strings.Join(in.Flags, ", "))
	}
	writeRedacted(&b, in)

	return n.send(ctx, subject, b.String(), map[string]string{
		"ticketId":       raw.TicketID,
		"organizationId": raw.OrganizationID,
		"reason":         "input_blocked",
	})
}

func (n *Notifier) send(ctx context.Context, subject, body string, attrs map[string]string) error {
	var errs []error

	if n.sns != nil && n.topicARN != "" {
		id, err := n.sns.PublishAlert(ctx, n.topicARN, subject, body, attrs)
		if err != nil {
			errs = append(errs, fmt.Errorf("sns: %w", err))
		} else {
			n.logger.Info("escalation alert published", map[string]interface{}{
				"messageId": id,
				"ticketId":  attrs["ticketId"],
				"reason":    attrs["reason"],
			})
		}
	}

	if n.ses != nil {
		if _, err := n.ses.SendText(ctx, n.from, n.to, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("ses: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrNotificationFailed, errors.Join(errs...))
	}
	return nil
}

func writeHeader(b *strings.Builder, raw models.RawInput) {
	fmt.Fprintf(b, "Ticket: %s\n", raw.TicketID)
	fmt.Fprintf(b, "Organization: %s\n", raw.OrganizationID)
	if raw.UserID != "" {
		fmt.Fprintf(b, "Requested by: %s\n", raw.UserID)
	}
}

func writeRedacted(b *strings.Builder, in *models.ProcessedInput) {
	if in == nil || in.RedactedText == "" {
		return
	}
	b.WriteString("\nCustomer message (redacted):\n")
	b.WriteString(in.RedactedText)
	b.WriteString("\n")
}
