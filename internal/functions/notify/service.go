// internal/functions/notify/service.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"congregation-functions/internal/common/errors"
	"congregation-functions/internal/common/logger"
	"congregation-functions/internal/common/metrics"
	"congregation-functions/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"
)

// SESService is the slice of the SES client the dispatcher needs.
type SESService interface {
	SendTemplatedEmail(ctx context.Context, params *ses.SendTemplatedEmailInput, optFns ...func(*ses.Options)) (*ses.SendTemplatedEmailOutput, error)
}

// Service dispatches one templated email per event. Failures after the event
// is accepted (recipient lookups, the provider call) degrade the result
// instead of failing it, so the operation that raised the event is never
// blocked by notification trouble.
type Service struct {
	config    *Config
	directory *Directory
	ses       SESService
	logger    logger.Logger
}

func NewService(cfg *Config, directory *Directory, sesClient SESService, log logger.Logger) *Service {
	return &Service{
		config:    cfg,
		directory: directory,
		ses:       sesClient,
		logger:    log,
	}
}

// Dispatch resolves recipients for the event and sends a single templated
// email. Validation and unknown-type failures return a hard error; the
// template lookup runs before any recipient work so an unknown type is
// always rejected, recipients or not.
func (s *Service) Dispatch(ctx context.Context, event *Event) (*DispatchResult, error) {
	start := time.Now()

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	if event.Type == "" {
		return nil, errors.NewValidationFailedError("eventType is required")
	}
	if len(event.Data) == 0 {
		return nil, errors.NewValidationFailedError("eventData is required")
	}

	entry, ok := LookupEvent(event.Type)
	if !ok {
		metrics.NotificationsDispatched.WithLabelValues(event.Type, "unknown-type").Inc()
		return nil, errors.NewUnknownEventTypeError(event.Type)
	}

	dispatchID := uuid.New().String()
	log := s.logger.WithFields(map[string]interface{}{
		"dispatch_id": dispatchID,
		"event_type":  event.Type,
	})

	subject := entry.Subject
	var to, cc []models.Recipient

	if event.TestMode {
		// Test sends go to the caller only, never to the real audience.
		subject = "[TEST] " + subject
		to = []models.Recipient{{Email: event.TestRecipient}}
	} else {
		resolved, err := entry.To(ctx, s.directory, event.Data)
		if err != nil {
			log.Error("recipient resolution failed", map[string]interface{}{"error": err.Error()})
			metrics.NotificationsDispatched.WithLabelValues(event.Type, "degraded").Inc()
			return s.degraded(dispatchID, errors.NewRecipientResolutionFailedError(event.Type, err)), nil
		}
		to = resolved

		if len(to) == 0 {
			log.Info("no recipients resolved, skipping send", nil)
			metrics.NotificationsDispatched.WithLabelValues(event.Type, "no-recipients").Inc()
			return &DispatchResult{
				DispatchID: dispatchID,
				Status:     StatusNoRecipients,
				Message:    fmt.Sprintf("No recipients for event type %s", event.Type),
			}, nil
		}

		cc, err = entry.CC(ctx, s.directory, event.Data)
		if err != nil {
			// The primary audience is still reachable, so only the copy is
			// dropped.
			log.Warn("cc resolution failed, sending without cc", map[string]interface{}{"error": err.Error()})
			cc = nil
		}
	}

	templateData, err := s.buildTemplateData(event, subject)
	if err != nil {
		log.Error("template data encoding failed", map[string]interface{}{"error": err.Error()})
		metrics.NotificationsDispatched.WithLabelValues(event.Type, "degraded").Inc()
		return s.degraded(dispatchID, errors.NewDeliveryFailedError(err)), nil
	}

	input := &ses.SendTemplatedEmailInput{
		Source:   aws.String(s.config.FromEmail),
		Template: aws.String(entry.TemplateID),
		Destination: &types.Destination{
			ToAddresses: recipientEmails(to),
			CcAddresses: recipientEmails(cc),
		},
		TemplateData: aws.String(templateData),
	}

	if _, err := s.ses.SendTemplatedEmail(ctx, input); err != nil {
		log.Error("delivery provider rejected the send", map[string]interface{}{
			"template": entry.TemplateID,
			"error":    err.Error(),
		})
		metrics.NotificationsDispatched.WithLabelValues(event.Type, "failed").Inc()
		return s.degraded(dispatchID, errors.NewDeliveryFailedError(err)), nil
	}

	metrics.NotificationsDispatched.WithLabelValues(event.Type, "sent").Inc()
	metrics.NotificationDispatchDuration.WithLabelValues(event.Type).Observe(time.Since(start).Seconds())

	log.Info("notification dispatched", map[string]interface{}{
		"template":   entry.TemplateID,
		"to_count":   len(to),
		"cc_count":   len(cc),
		"test_mode":  event.TestMode,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	return &DispatchResult{
		DispatchID: dispatchID,
		Status:     StatusSent,
		Message:    fmt.Sprintf("Notification sent for event type %s", event.Type),
		To:         to,
		CC:         cc,
		SentAt:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// buildTemplateData flattens the event payload and injects the subject line
// as a template variable, since the provider's templated send carries the
// subject inside the template itself.
func (s *Service) buildTemplateData(event *Event, subject string) (string, error) {
	vars := FlattenEventData(event.Data)
	ApplyReservedRemap(vars, event.Type)
	vars["SUBJECT"] = subject

	encoded, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("encode template data: %w", err)
	}
	return string(encoded), nil
}

func (s *Service) degraded(dispatchID string, stdErr *errors.StandardError) *DispatchResult {
	return &DispatchResult{
		DispatchID: dispatchID,
		Status:     StatusDegraded,
		Message:    stdErr.Error(),
	}
}

func recipientEmails(recipients []models.Recipient) []string {
	if len(recipients) == 0 {
		return nil
	}
	emails := make([]string, 0, len(recipients))
	for _, r := range recipients {
		emails = append(emails, r.Email)
	}
	return emails
}
