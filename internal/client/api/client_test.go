package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medvolt/scanblur/internal/client/auth"
	"github.com/medvolt/scanblur/internal/logging"
)

// staticProvider hands out a fixed token and counts invalidations.
type staticProvider struct {
	token        string
	err          error
	invalidated  atomic.Int64
	tokensServed atomic.Int64
}

func (p *staticProvider) Token(ctx context.Context) (auth.Credential, error) {
	if p.err != nil {
		return auth.Credential{}, p.err
	}
	p.tokensServed.Add(1)
	return auth.Credential{Value: p.token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (p *staticProvider) Invalidate() { p.invalidated.Add(1) }

func discardLogger() logging.Logger { return logging.NewJSON(io.Discard) }

func TestRequestUploadTarget(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/get-upload-url", r.URL.Path)
		require.Equal(t, "scan.nii.gz", r.URL.Query().Get("fileName"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"uploadUrl": "https://bucket.example/put?sig=1",
			"fileName":  "abc.nii.gz",
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, &staticProvider{token: "tok"}, discardLogger())

	target, err := c.RequestUploadTarget(context.Background(), "scan.nii.gz")
	require.NoError(t, err)
	require.Equal(t, "https://bucket.example/put?sig=1", target.PutURL)
	require.Equal(t, "abc.nii.gz", target.ObjectKey)
}

func TestRequestUploadTargetDenied(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "unsupported extension"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, &staticProvider{token: "tok"}, discardLogger())

	_, err := c.RequestUploadTarget(context.Background(), "scan.txt")
	require.True(t, errors.Is(err, ErrUploadTargetDenied))
	require.Contains(t, err.Error(), "unsupported extension")
}

func TestRequestDownloadURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/get-image-url", r.URL.Path)
		require.Equal(t, "abc-blurred.nii.gz", r.URL.Query().Get("key"))
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://bucket.example/get?sig=2"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, &staticProvider{token: "tok"}, discardLogger())

	u, err := c.RequestDownloadURL(context.Background(), "abc-blurred.nii.gz")
	require.NoError(t, err)
	require.Equal(t, "https://bucket.example/get?sig=2", u)
}

func TestRequestDownloadURLDenied(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such key", http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, &staticProvider{token: "tok"}, discardLogger())

	_, err := c.RequestDownloadURL(context.Background(), "nope")
	require.True(t, errors.Is(err, ErrDownloadTargetDenied))
}

func TestStoreTimeAndInvokeBlur(t *testing.T) {
	var storeHits, invokeHits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/store-time":
			storeHits.Add(1)
			require.Equal(t, http.MethodPost, r.Method)
		case "/invoke-blur-process":
			invokeHits.Add(1)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "abc.nii.gz", body["originalKey"])
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, &staticProvider{token: "tok"}, discardLogger())

	require.NoError(t, c.StoreTime(context.Background()))
	require.NoError(t, c.InvokeBlurProcess(context.Background(), "abc.nii.gz"))
	require.Equal(t, int64(1), storeHits.Load())
	require.Equal(t, int64(1), invokeHits.Load())
}

func TestRetryOnceAfter401(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := &staticProvider{token: "tok"}
	c := NewClient(ts.URL, p, discardLogger())

	require.NoError(t, c.StoreTime(context.Background()))
	require.Equal(t, int64(2), hits.Load())
	require.Equal(t, int64(1), p.invalidated.Load())
}

func TestNoEndlessRetryOn401(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	p := &staticProvider{token: "tok"}
	c := NewClient(ts.URL, p, discardLogger())

	err := c.StoreTime(context.Background())
	require.Error(t, err)
	require.Equal(t, int64(2), p.tokensServed.Load(), "exactly one retry")
}

func TestTokenFailurePropagates(t *testing.T) {
	c := NewClient("http://unused", &staticProvider{err: auth.ErrAuthFailure}, discardLogger())

	err := c.StoreTime(context.Background())
	require.True(t, errors.Is(err, auth.ErrAuthFailure))
}
