package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-ops/invigil-api/pkg/config"
	"github.com/campus-ops/invigil-api/pkg/jobs"
)

// AssignmentEventKind enumerates roster changes worth telling people about.
type AssignmentEventKind string

const (
	EventAssigned            AssignmentEventKind = "assigned"
	EventUnassigned          AssignmentEventKind = "unassigned"
	EventShiftUpdated        AssignmentEventKind = "shift_updated"
	EventCancelRequested     AssignmentEventKind = "cancel_requested"
	EventCancelApproved      AssignmentEventKind = "cancel_approved"
	EventCancelRejected      AssignmentEventKind = "cancel_rejected"
	EventConfirmationChanged AssignmentEventKind = "confirmation_changed"
)

// AssignmentEvent carries the context a notification needs.
type AssignmentEvent struct {
	Kind          AssignmentEventKind
	InvigilatorID string
	DisplayName   string
	ExamVenueID   string
	Start         *time.Time
	End           *time.Time
	Detail        string
}

// Notifier delivers a single assignment event to its recipient.
type Notifier interface {
	Notify(ctx context.Context, event AssignmentEvent) error
}

// LogNotifier records events in the application log. It is the delivery
// transport when no external channel is configured.
type LogNotifier struct {
	logger *zap.Logger
	sender string
}

// NewLogNotifier constructs the logging transport.
func NewLogNotifier(sender string, logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger, sender: sender}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, event AssignmentEvent) error {
	n.logger.Sugar().Infow("assignment notification",
		"sender", n.sender,
		"kind", event.Kind,
		"invigilator_id", event.InvigilatorID,
		"display_name", event.DisplayName,
		"exam_venue_id", event.ExamVenueID,
		"detail", event.Detail,
	)
	return nil
}

// NotificationService fans assignment events out through a background queue
// so roster mutations never block on delivery.
type NotificationService struct {
	notifier Notifier
	queue    *jobs.Queue
	enabled  bool
	logger   *zap.Logger
}

// NewNotificationService constructs the service and its delivery queue.
func NewNotificationService(notifier Notifier, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(cfg.SenderName, logger)
	}

	s := &NotificationService{notifier: notifier, enabled: cfg.Enabled, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.QueueBuffer,
		Logger:     logger,
	})
	return s
}

// Start begins background delivery.
func (s *NotificationService) Start(ctx context.Context) {
	if s.enabled {
		s.queue.Start(ctx)
	}
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	if s.enabled {
		s.queue.Stop()
	}
}

// Dispatch enqueues an event for delivery. Delivery failures are retried by
// the queue and never surface to the caller.
func (s *NotificationService) Dispatch(event AssignmentEvent) {
	if !s.enabled {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: string(event.Kind), Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Sugar().Warnw("failed to enqueue notification", "kind", event.Kind, "error", err)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(AssignmentEvent)
	if !ok {
		s.logger.Sugar().Errorw("invalid notification payload", "job_id", job.ID)
		return nil
	}
	return s.notifier.Notify(ctx, event)
}
