// Package api is the REST client for the orchestration backend. It injects
// bearer credentials from an auth.Provider and maps non-2xx answers onto the
// package's sentinel errors, surfacing the backend message when one is sent.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/medvolt/scanblur/internal/client/auth"
	"github.com/medvolt/scanblur/internal/logging"
)

// UploadTarget is the backend's answer to an upload-URL request. ObjectKey is
// authoritative: the backend may rename whatever the client proposed.
type UploadTarget struct {
	PutURL    string
	ObjectKey string
}

type Client struct {
	baseURL    string
	provider   auth.Provider
	httpClient *http.Client
	logger     logging.Logger
}

func NewClient(baseURL string, provider auth.Provider, logger logging.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		provider:   provider,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// StoreTime asks the backend to persist the current server time. The stored
// value arrives later as a time-ready push event; this call only enqueues.
func (c *Client) StoreTime(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/store-time", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrBackend, readMessage(resp))
	}
	return nil
}

type uploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	FileName  string `json:"fileName"`
}

// RequestUploadTarget mints a presigned PUT URL for a new object. The
// returned ObjectKey is the correlation identifier for every later event
// concerning this upload.
func (c *Client) RequestUploadTarget(ctx context.Context, fileNameHint string) (UploadTarget, error) {
	q := url.Values{"fileName": {fileNameHint}}
	resp, err := c.do(ctx, http.MethodGet, "/get-upload-url", q, nil)
	if err != nil {
		return UploadTarget{}, fmt.Errorf("%w: %v", ErrUploadTargetDenied, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UploadTarget{}, fmt.Errorf("%w: %s", ErrUploadTargetDenied, readMessage(resp))
	}

	var body uploadURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return UploadTarget{}, fmt.Errorf("%w: %v", ErrUploadTargetDenied, err)
	}
	if body.UploadURL == "" || body.FileName == "" {
		return UploadTarget{}, fmt.Errorf("%w: incomplete answer", ErrUploadTargetDenied)
	}

	return UploadTarget{PutURL: body.UploadURL, ObjectKey: body.FileName}, nil
}

// InvokeBlurProcess tells the backend the object exists and processing can be
// enqueued. The push-channel emission is the primary notification path; this
// REST call covers backends that do not listen on the channel.
func (c *Client) InvokeBlurProcess(ctx context.Context, originalKey string) error {
	payload, _ := json.Marshal(map[string]string{"originalKey": originalKey})
	resp, err := c.do(ctx, http.MethodPost, "/invoke-blur-process", nil, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrBackend, readMessage(resp))
	}
	return nil
}

type imageURLResponse struct {
	URL string `json:"url"`
}

// RequestDownloadURL mints a presigned GET URL for the given object key. The
// URL is time-limited; callers must re-request rather than cache it.
func (c *Client) RequestDownloadURL(ctx context.Context, key string) (string, error) {
	q := url.Values{"key": {key}}
	resp, err := c.do(ctx, http.MethodGet, "/get-image-url", q, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadTargetDenied, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s", ErrDownloadTargetDenied, readMessage(resp))
	}

	var body imageURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadTargetDenied, err)
	}
	if body.URL == "" {
		return "", fmt.Errorf("%w: empty url", ErrDownloadTargetDenied)
	}
	return body.URL, nil
}

// do performs one authenticated request. A 401 answer invalidates the cached
// credential and the request is retried once with a fresh token.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	resp, err := c.doOnce(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	_ = resp.Body.Close()

	c.logger.Debug(ctx, "credential rejected, retrying with fresh token", "path", path)
	c.provider.Invalidate()
	return c.doOnce(ctx, method, path, query, body)
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	cred, err := c.provider.Token(ctx)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cred.Value)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// readMessage extracts a human-readable error from the response: a JSON
// {"message": ...} body when present, the raw body otherwise, falling back
// to the HTTP status line.
func readMessage(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Message != "" {
		return body.Message
	}
	if len(bytes.TrimSpace(b)) > 0 {
		return fmt.Sprintf("%s: %s", resp.Status, bytes.TrimSpace(b))
	}
	return resp.Status
}
