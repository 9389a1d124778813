package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/medvolt/scanblur/internal/client/api"
	"github.com/medvolt/scanblur/internal/client/auth"
	"github.com/medvolt/scanblur/internal/client/push"
	"github.com/medvolt/scanblur/internal/client/storage"
	"github.com/medvolt/scanblur/internal/logging"
)

type staticProvider struct{}

func (staticProvider) Token(ctx context.Context) (auth.Credential, error) {
	return auth.Credential{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}
func (staticProvider) Invalidate() {}

// stubBackend implements the full REST + websocket + storage contract on one
// httptest server. On receiving image-uploaded-to-s3 it answers with
// image-blurred for "<key>" -> "<key>-blurred", mimicking the worker.
type stubBackend struct {
	ts *httptest.Server

	mu      sync.Mutex
	objects map[string][]byte
}

func newStubBackend(t *testing.T) *stubBackend {
	t.Helper()
	b := &stubBackend{objects: map[string][]byte{}}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/get-upload-url", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"uploadUrl": b.ts.URL + "/storage/abc.nii.gz",
			"fileName":  "abc.nii.gz",
		})
	})
	mux.HandleFunc("/get-image-url", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"url": b.ts.URL + "/storage/" + r.URL.Query().Get("key"),
		})
	})
	mux.HandleFunc("/invoke-blur-process", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/storage/", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/storage/"):]
		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			b.mu.Lock()
			b.objects[key] = data
			b.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			b.mu.Lock()
			data, ok := b.objects[key]
			b.mu.Unlock()
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(data)
		}
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var env push.Envelope
				if json.Unmarshal(data, &env) != nil || env.Event != push.EventImageUploaded {
					continue
				}
				var up push.ImageUploaded
				if json.Unmarshal(env.Data, &up) != nil {
					continue
				}

				// "Process" the object, then announce the artifact.
				b.mu.Lock()
				original := b.objects[up.OriginalKey]
				blurredKey := up.OriginalKey + "-blurred"
				b.objects[blurredKey] = append([]byte("blurred:"), original...)
				b.mu.Unlock()

				payload, _ := json.Marshal(push.ImageBlurred{OriginalKey: up.OriginalKey, BlurredKey: blurredKey})
				frame, _ := json.Marshal(push.Envelope{Event: push.EventImageBlurred, Data: payload})
				_ = conn.WriteMessage(websocket.TextMessage, frame)
			}
		}()
	})

	b.ts = httptest.NewServer(mux)
	t.Cleanup(b.ts.Close)
	return b
}

func TestRoundTripThroughRealCollaborators(t *testing.T) {
	backend := newStubBackend(t)
	log := logging.NewJSON(io.Discard)
	provider := staticProvider{}

	restClient := api.NewClient(backend.ts.URL, provider, log)
	channel := push.NewChannel(backend.ts.URL, provider, log, &push.Options{
		MinDelay: 10 * time.Millisecond,
		MaxDelay: 50 * time.Millisecond,
	})

	states := make(chan State, 64)
	m := NewManager(restClient, provider, storage.NewClient(), channel, log,
		WithChangeListener(func(s State) { states <- s }))
	detach := m.Attach(channel)
	defer detach()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go channel.Run(ctx)
	defer channel.Close()
	go m.Run(ctx)

	m.Upload("scan.nii.gz", "application/gzip", []byte("volume-bytes"))

	var final State
	deadline := time.After(5 * time.Second)
	for final.Phase != PhaseReady {
		select {
		case s := <-states:
			if s.Phase == PhaseFailed {
				t.Fatalf("session failed: %+v", s.LastError)
			}
			final = s
		case <-deadline:
			t.Fatalf("session never reached Ready (now %s)", m.Snapshot().Phase)
		}
	}

	require.Equal(t, "abc.nii.gz", final.OriginalKey)
	require.Equal(t, "abc.nii.gz-blurred", final.BlurredKey)
	require.NotEmpty(t, final.DownloadURL)

	var buf bytes.Buffer
	require.NoError(t, m.Download(ctx, &buf))
	require.Equal(t, "blurred:volume-bytes", buf.String())
}
