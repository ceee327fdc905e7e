package service

import (
	"context"
	"strings"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/internal/pkg/mailer"
	"workflow-agent-be/pkg/events"
	pktNats "workflow-agent-be/pkg/nats" // Renamed to avoid collision
)

// EventDelivery defines how to push real-time session updates.
// Typically implemented by the WebSocket Hub.
type EventDelivery interface {
	SendToSession(sessionID string, eventType string, data map[string]interface{})
}

// NotificationService bridges the NATS event bus to live subscribers and to
// the ops alert channel for terminal failures.
type NotificationService struct {
	subscriber *pktNats.Subscriber
	delivery   EventDelivery
	mailer     mailer.IEmailService
	logger     logger.ILogger
}

func NewNotificationService(sub *pktNats.Subscriber, delivery EventDelivery, mail mailer.IEmailService, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		delivery:   delivery,
		mailer:     mail,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() {
	err := s.subscriber.Subscribe("events.chat.>", "chat-notify-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to start chat event subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("NotificationService", "Notification service started, listening to events.chat.>", nil)
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	// The subscriber reports the full NATS subject as the type.
	typeCode := strings.TrimPrefix(event.EventType(), "events.")
	payload := event.Payload()

	sessionID, _ := payload["session_id"].(string)
	if sessionID == "" {
		s.logger.Warn("NotificationService", "Chat event without session_id, dropping", map[string]interface{}{"type": typeCode})
		return nil
	}

	if s.delivery != nil {
		s.delivery.SendToSession(sessionID, typeCode, payload)
	}

	if typeCode == events.TypeChatTurnFailed && s.mailer != nil {
		reason, _ := payload["reason"].(string)
		detail, _ := payload["detail"].(string)
		if err := s.mailer.SendTurnFailureAlert(sessionID, reason, detail); err != nil {
			s.logger.Warn("NotificationService", "Failed to send ops failure alert", map[string]interface{}{
				"session_id": sessionID,
				"error":      err,
			})
		}
	}

	return nil
}
