package ui

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/medvolt/scanblur/internal/client/push"
	"github.com/medvolt/scanblur/internal/logging"
)

// TimeStore is the single backend call the clock needs.
type TimeStore interface {
	StoreTime(ctx context.Context) error
}

// TimeClock is the stored-time feature: a fire-and-forget REST call whose
// result arrives later as a time-ready push event. It shares no state with
// the upload session; its failures never touch the upload flow.
type TimeClock struct {
	backend TimeStore
	logger  logging.Logger

	mu     sync.Mutex
	stored string
}

func NewTimeClock(backend TimeStore, logger logging.Logger) *TimeClock {
	return &TimeClock{backend: backend, logger: logger}
}

// Store asks the backend to persist the current time. A non-nil error is a
// local report only.
func (c *TimeClock) Store(ctx context.Context) error {
	return c.backend.StoreTime(ctx)
}

// Attach subscribes to time-ready events; the returned func detaches.
func (c *TimeClock) Attach(ch *push.Channel) func() {
	id := ch.Subscribe(push.EventTimeReady, func(env push.Envelope) {
		var p push.TimeReady
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.logger.Warn(context.Background(), "malformed time-ready event", "error", err)
			return
		}
		c.mu.Lock()
		c.stored = p.Time
		c.mu.Unlock()
	})
	return func() { ch.Unsubscribe(push.EventTimeReady, id) }
}

// StoredTime returns the last pushed value, if any.
func (c *TimeClock) StoredTime() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored, c.stored != ""
}
