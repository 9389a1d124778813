package devserver

import (
	"context"
	"sync"
	"time"

	"github.com/medvolt/scanblur/internal/client/push"
	"github.com/medvolt/scanblur/internal/devserver/hub"
	"github.com/medvolt/scanblur/internal/logging"
)

// simulator stands in for the external blur worker: after a fixed delay it
// announces "<key>-blurred" for every scheduled key. Each key is processed
// once even when both the push event and the REST call announce it.
type simulator struct {
	delay  time.Duration
	hub    *hub.Hub
	logger logging.Logger

	mu        sync.Mutex
	scheduled map[string]struct{}
}

func newSimulator(delay time.Duration, h *hub.Hub, logger logging.Logger) *simulator {
	return &simulator{
		delay:     delay,
		hub:       h,
		logger:    logger,
		scheduled: make(map[string]struct{}),
	}
}

func (s *simulator) Schedule(originalKey string) {
	s.mu.Lock()
	if _, ok := s.scheduled[originalKey]; ok {
		s.mu.Unlock()
		return
	}
	s.scheduled[originalKey] = struct{}{}
	s.mu.Unlock()

	s.logger.Info(context.Background(), "blur scheduled", "key", originalKey, "delay", s.delay)
	time.AfterFunc(s.delay, func() {
		blurredKey := originalKey + "-blurred"
		s.hub.Broadcast(push.EventImageBlurred, push.ImageBlurred{
			OriginalKey: originalKey,
			BlurredKey:  blurredKey,
		})
		s.logger.Info(context.Background(), "blur announced", "key", originalKey, "blurred", blurredKey)
	})
}
