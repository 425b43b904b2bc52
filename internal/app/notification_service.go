package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"rezgo/internal/bus"
	"rezgo/internal/config"
	"rezgo/internal/connectors"
	"rezgo/internal/notifications"
)

const notificationTitleFeedEnded = "Champion select ended"

// NotificationService listens to bus events and emits user-facing
// notifications.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	sender        notifications.Sender
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    connectors.ConnectionState
	lastConnStateSet bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	connSub := s.bus.Subscribe(connectors.TopicConnStatus)
	endedSub := s.bus.Subscribe(connectors.TopicFeedEnded)

	go func() {
		defer s.bus.Unsubscribe(connSub, connectors.TopicConnStatus)
		defer s.bus.Unsubscribe(endedSub, connectors.TopicFeedEnded)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				status, ok := raw.(connectors.ConnStatus)
				if !ok {
					continue
				}
				s.handleConnStatus(status)
			case _, ok := <-endedSub:
				if !ok {
					return
				}
				s.handleFeedEnded()
			}
		}
	}()
}

func (s *NotificationService) handleConnStatus(status connectors.ConnStatus) {
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.connStatusMu.Unlock()

	// Intermediate discovery states stay silent.
	if status.State != connectors.ConnectionStateConnected &&
		status.State != connectors.ConnectionStateDisconnected {
		return
	}
	if !s.notificationPrefs().ConnectionStatus {
		return
	}

	details := "No connection details"
	if status.Address != "" {
		details = fmt.Sprintf("%s:%s", status.Address, status.Port)
	}
	if status.State == connectors.ConnectionStateDisconnected {
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("League client - %s", status.State),
		Content: details,
	})
}

func (s *NotificationService) handleFeedEnded() {
	if !s.notificationPrefs().FeedEnded {
		return
	}

	s.send(notifications.Payload{
		Title:   notificationTitleFeedEnded,
		Content: "The session feed delivered its final event",
	})
}

func (s *NotificationService) notificationPrefs() config.NotificationConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
		cfg.FillMissingDefaults()
	}

	return cfg.Notifications
}

func (s *NotificationService) send(notification notifications.Payload) {
	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}
	s.logger.Debug("sending notification", "title", title)
	s.sender.Send(notifications.Payload{
		Title:   title,
		Content: content,
	})
}
