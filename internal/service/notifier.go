package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bienestar-dev/eventos-api/pkg/jobs"
)

// Notification describes a domain event worth telling participants about:
// lifecycle transitions, approval decisions, certificate issuance.
type Notification struct {
	Type          string                 `json:"type"`
	ParticipantID string                 `json:"participant_id,omitempty"`
	OfferingID    string                 `json:"offering_id,omitempty"`
	EnrollmentID  string                 `json:"enrollment_id,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// Notification types emitted by the services.
const (
	NotifyOfferingTransition  = "offering.transition"
	NotifyEnrollmentCreated   = "enrollment.created"
	NotifyEnrollmentCancelled = "enrollment.cancelled"
	NotifySubmissionReviewed  = "submission.reviewed"
	NotifyPaymentReviewed     = "payment.reviewed"
	NotifyCertificateIssued   = "certificate.issued"
)

// Notifier publishes notifications without blocking the request path.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// QueueNotifier hands notifications to the background job queue.
type QueueNotifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewQueueNotifier constructs a queue-backed notifier.
func NewQueueNotifier(queue *jobs.Queue, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{queue: queue, logger: logger}
}

// Notify enqueues the notification. Failures are logged and dropped; domain
// writes never roll back because a notification could not be queued.
func (n *QueueNotifier) Notify(_ context.Context, notification Notification) {
	if notification.OccurredAt.IsZero() {
		notification.OccurredAt = time.Now().UTC()
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    notification.Type,
		Payload: notification,
	}
	if err := n.queue.Enqueue(job); err != nil {
		n.logger.Warn("failed to enqueue notification",
			zap.String("type", notification.Type),
			zap.Error(err))
	}
}

// LogNotifier writes notifications to the structured log. It is the delivery
// sink the queue workers run, and the fallback when no queue is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify records the notification.
func (n *LogNotifier) Notify(_ context.Context, notification Notification) {
	n.logger.Info("notification",
		zap.String("type", notification.Type),
		zap.String("participant_id", notification.ParticipantID),
		zap.String("offering_id", notification.OfferingID),
		zap.String("enrollment_id", notification.EnrollmentID),
		zap.Any("data", notification.Data))
}

// DispatchHandler adapts a Notifier into a queue job handler.
func DispatchHandler(sink Notifier) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		notification, ok := job.Payload.(Notification)
		if !ok {
			return nil
		}
		sink.Notify(ctx, notification)
		return nil
	}
}
