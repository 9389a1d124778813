// Package storage performs the direct byte transfers against presigned
// object-storage URLs. Presigned URLs carry their own authorization, so no
// bearer header is ever attached here.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrTransferFailed indicates the direct PUT/GET against storage failed.
	// Transfers are never retried at this layer.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrURLExpired indicates a presigned URL was rejected as expired or
	// unauthorized; the caller should request a fresh one.
	ErrURLExpired = errors.New("presigned url expired")
)

// DefaultContentType is used when the caller does not declare a MIME type.
const DefaultContentType = "application/octet-stream"

// Client wraps the HTTP client used for presigned transfers.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

// PutBytes uploads data to a presigned PUT URL.
func (c *Client) PutBytes(ctx context.Context, putURL string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = DefaultContentType
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s; body: %s", ErrTransferFailed, resp.Status, string(b))
	}
	return nil
}

// FetchTo downloads the object behind a presigned GET URL into w.
// A 401/403 answer maps to ErrURLExpired so the caller can mint a fresh URL
// instead of treating it as a hard failure.
func (c *Client) FetchTo(ctx context.Context, getURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrURLExpired, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s; body: %s", ErrTransferFailed, resp.Status, string(b))
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}
