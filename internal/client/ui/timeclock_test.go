package ui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/medvolt/scanblur/internal/client/auth"
	"github.com/medvolt/scanblur/internal/client/push"
	"github.com/medvolt/scanblur/internal/logging"
)

type stubTimeStore struct{ err error }

func (s stubTimeStore) StoreTime(ctx context.Context) error { return s.err }

type noProvider struct{}

func (noProvider) Token(ctx context.Context) (auth.Credential, error) {
	return auth.Credential{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}
func (noProvider) Invalidate() {}

func TestStoreReportsLocalError(t *testing.T) {
	boom := errors.New("backend down")
	clock := NewTimeClock(stubTimeStore{err: boom}, logging.NewJSON(io.Discard))

	require.ErrorIs(t, clock.Store(context.Background()), boom)

	_, ok := clock.StoredTime()
	require.False(t, ok)
}

func TestTimeReadyEventUpdatesClock(t *testing.T) {
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conns <- conn
	}))
	defer ts.Close()

	log := logging.NewJSON(io.Discard)
	channel := push.NewChannel(ts.URL, noProvider{}, log, &push.Options{
		MinDelay: 10 * time.Millisecond,
		MaxDelay: 50 * time.Millisecond,
	})

	clock := NewTimeClock(stubTimeStore{}, log)
	detach := clock.Attach(channel)
	defer detach()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go channel.Run(ctx)
	defer channel.Close()

	var conn *websocket.Conn
	select {
	case conn = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("channel never connected")
	}

	payload, _ := json.Marshal(push.TimeReady{Time: "2026-08-31T12:00:00Z"})
	frame, _ := json.Marshal(push.Envelope{Event: push.EventTimeReady, Data: payload})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	require.Eventually(t, func() bool {
		got, ok := clock.StoredTime()
		return ok && got == "2026-08-31T12:00:00Z"
	}, 2*time.Second, 10*time.Millisecond)
}
