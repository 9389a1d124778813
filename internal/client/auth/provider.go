// Package auth implements the client-side bearer-credential lifecycle:
// acquiring a token from the auth provider, caching it process-wide, and
// refreshing silently before it expires.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/medvolt/scanblur/internal/logging"
)

// ErrAuthFailure indicates the token could not be acquired or refreshed.
// The user has to re-login; callers must not retry silently.
var ErrAuthFailure = errors.New("authentication failure")

// Provider supplies bearer credentials. Token never returns an expired
// credential: implementations refresh transparently when the cached one is
// inside the safety margin.
type Provider interface {
	Token(ctx context.Context) (Credential, error)

	// Invalidate drops the cached credential so the next Token call
	// performs a fresh acquisition (e.g. after a 401 from the backend).
	Invalidate()
}

// HTTPProvider acquires tokens via an OAuth-style client-credentials grant
// against the configured auth domain. Concurrent callers during an in-flight
// refresh share a single refresh outcome.
type HTTPProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	audience     string
	margin       time.Duration
	httpClient   *http.Client
	logger       logging.Logger

	mu     sync.Mutex
	cached Credential
	group  singleflight.Group
}

// NewHTTPProvider builds a provider for the given auth domain. The domain may
// be bare ("tenant.eu.auth0.com") or carry an explicit http/https scheme.
func NewHTTPProvider(domain, clientID, clientSecret, audience string, margin time.Duration, logger logging.Logger) *HTTPProvider {
	base := domain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &HTTPProvider{
		tokenURL:     strings.TrimRight(base, "/") + "/oauth/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		audience:     audience,
		margin:       margin,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
	}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Audience     string `json:"audience,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns the cached credential when it is still comfortably valid,
// otherwise refreshes. Only one refresh runs at a time; every waiter shares
// its outcome.
func (p *HTTPProvider) Token(ctx context.Context) (Credential, error) {
	p.mu.Lock()
	cached := p.cached
	p.mu.Unlock()

	if !cached.ExpiresWithin(p.margin) {
		return cached, nil
	}

	ch := p.group.DoChan("refresh", func() (any, error) {
		return p.fetch(ctx)
	})

	select {
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	}
}

// Invalidate drops the cached credential.
func (p *HTTPProvider) Invalidate() {
	p.mu.Lock()
	p.cached = Credential{}
	p.mu.Unlock()
}

func (p *HTTPProvider) fetch(ctx context.Context) (Credential, error) {
	body, err := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Audience:     p.audience,
	})
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, bytes.NewReader(body))
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return Credential{}, fmt.Errorf("%w: token endpoint returned %s: %s", ErrAuthFailure, resp.Status, string(b))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	if tr.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: empty access token", ErrAuthFailure)
	}

	cred := Credential{Value: tr.AccessToken, ExpiresAt: expiry(tr)}

	p.mu.Lock()
	p.cached = cred
	p.mu.Unlock()

	p.logger.Debug(ctx, "credential refreshed", "expires_at", cred.ExpiresAt)
	return cred, nil
}

// expiry prefers the declared expires_in; when the endpoint omits it the JWT
// exp claim is used instead. The client never validates signatures, it only
// reads the expiry.
func expiry(tr tokenResponse) time.Time {
	if tr.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tr.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}

	// No usable expiry; treat as short-lived so the next call re-checks.
	return time.Now().Add(time.Minute)
}
