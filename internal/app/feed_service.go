package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rezgo/internal/bus"
	"rezgo/internal/connectors"
	"rezgo/internal/lcu"
)

// feedSource is the connector surface the service consumes.
type feedSource interface {
	Start() error
	Stop()
	OnConnect() <-chan lcu.ConnectionInfo
	OnDisconnect() <-chan struct{}
	OnFeedEvent() <-chan lcu.FeedEvent
	OnFeedEnded() <-chan struct{}
}

// FeedService republishes connector lifecycle and feed events onto the
// message bus so UI-facing consumers never touch the connector directly.
type FeedService struct {
	logger *slog.Logger
	bus    bus.MessageBus
	source feedSource

	// pinned reports whether an install directory was configured, which
	// skips the process discovery phase.
	pinned bool
}

func NewFeedService(logger *slog.Logger, messageBus bus.MessageBus, source feedSource, pinned bool) *FeedService {
	return &FeedService{
		logger: logger,
		bus:    messageBus,
		source: source,
		pinned: pinned,
	}
}

// Start launches the connector and the republishing loop. The loop runs
// until the context is done or the connector shuts down.
func (s *FeedService) Start(ctx context.Context) error {
	if err := s.source.Start(); err != nil {
		return fmt.Errorf("start connector: %w", err)
	}

	initial := connectors.ConnectionStateSearching
	if s.pinned {
		initial = connectors.ConnectionStateWatching
	}
	s.publishStatus(connectors.ConnStatus{State: initial})

	go s.loop(ctx)

	return nil
}

func (s *FeedService) loop(ctx context.Context) {
	defer s.source.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case info, ok := <-s.source.OnConnect():
			if !ok {
				return
			}
			s.logger.Info("client connected", "address", info.Host, "port", info.Port)
			s.publishStatus(connectors.ConnStatus{
				State:   connectors.ConnectionStateConnected,
				Address: info.Host,
				Port:    info.Port,
			})
		case _, ok := <-s.source.OnDisconnect():
			if !ok {
				return
			}
			s.logger.Info("client disconnected")
			s.publishStatus(connectors.ConnStatus{State: connectors.ConnectionStateDisconnected})
		case ev, ok := <-s.source.OnFeedEvent():
			if !ok {
				return
			}
			s.bus.Publish(connectors.TopicRawFrame, connectors.RawFrame{Data: ev.Raw, Len: len(ev.Raw)})
			s.bus.Publish(connectors.TopicFeedEvent, connectors.FeedEvent{
				Body:      ev.Body,
				Terminal:  ev.Terminal,
				Timestamp: time.Now(),
			})
		case _, ok := <-s.source.OnFeedEnded():
			if !ok {
				return
			}
			s.bus.Publish(connectors.TopicFeedEnded, struct{}{})
		}
	}
}

func (s *FeedService) publishStatus(status connectors.ConnStatus) {
	status.Timestamp = time.Now()
	s.bus.Publish(connectors.TopicConnStatus, status)
}
