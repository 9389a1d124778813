// Package devserver is a local stand-in for the production backend: the REST
// contract, the push hub and a simulated blur worker, enough to run the
// client end-to-end against a MinIO instance.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/medvolt/scanblur/internal/client/push"
	"github.com/medvolt/scanblur/internal/devserver/auth"
	"github.com/medvolt/scanblur/internal/devserver/config"
	"github.com/medvolt/scanblur/internal/devserver/hub"
	"github.com/medvolt/scanblur/internal/devserver/timestore"
	"github.com/medvolt/scanblur/internal/logging"
)

// Presigner mints the short-lived storage URLs.
type Presigner interface {
	PresignedPutURL(ctx context.Context, fileNameHint string) (string, string, error)
	PresignedGetURL(ctx context.Context, key string) (string, error)
}

type Server struct {
	cfg     *config.Config
	logger  logging.Logger
	presign Presigner
	store   timestore.Store
	hub     *hub.Hub
	blur    *simulator
}

func New(cfg *config.Config, logger logging.Logger, presigner Presigner, store timestore.Store) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		presign: presigner,
		store:   store,
	}
	s.hub = hub.New(logger, s.handleEnvelope)
	s.blur = newSimulator(cfg.BlurDelay, s.hub, logger)
	return s
}

// Hub exposes the push hub, mainly for tests.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/oauth/token", s.handleToken)
	r.Get("/ws", s.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth([]byte(s.cfg.JWTSecret)))
		r.Post("/store-time", s.handleStoreTime)
		r.Get("/get-upload-url", s.handleUploadURL)
		r.Get("/get-image-url", s.handleImageURL)
		r.Post("/invoke-blur-process", s.handleInvokeBlur)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "devserver listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Audience     string `json:"audience"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed token request")
		return
	}

	if req.GrantType != "client_credentials" {
		writeError(w, http.StatusBadRequest, "unsupported grant_type")
		return
	}
	if req.ClientID != s.cfg.ClientID {
		writeError(w, http.StatusUnauthorized, "unknown client")
		return
	}
	if s.cfg.ClientSecret != "" && req.ClientSecret != s.cfg.ClientSecret {
		writeError(w, http.StatusUnauthorized, "invalid client secret")
		return
	}

	token, err := auth.GenerateToken(req.ClientID, s.cfg.Audience, []byte(s.cfg.JWTSecret), s.cfg.TokenTTL)
	if err != nil {
		s.logger.Error(r.Context(), "token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.TokenTTL.Seconds()),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.ClientIDFromRequest(r, []byte(s.cfg.JWTSecret)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
		return
	}
	s.hub.ServeHTTP(w, r)
}

func (s *Server) handleStoreTime(w http.ResponseWriter, r *http.Request) {
	value := time.Now().UTC().Format(time.RFC3339)
	if err := s.store.Save(r.Context(), value); err != nil {
		s.logger.Error(r.Context(), "saving time failed", "error", err)
		writeError(w, http.StatusInternalServerError, "saving time failed")
		return
	}

	s.hub.Broadcast(push.EventTimeReady, push.TimeReady{Time: value})
	writeJSON(w, http.StatusOK, map[string]string{"message": "time stored"})
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("fileName")

	key, url, err := s.presign.PresignedPutURL(r.Context(), fileName)
	if err != nil {
		s.logger.Error(r.Context(), "presigning put url failed", "error", err)
		writeError(w, http.StatusInternalServerError, "presigning upload url failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"uploadUrl": url,
		"fileName":  key,
	})
}

func (s *Server) handleImageURL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	url, err := s.presign.PresignedGetURL(r.Context(), key)
	if err != nil {
		s.logger.Error(r.Context(), "presigning get url failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "presigning download url failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleInvokeBlur(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OriginalKey string `json:"originalKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OriginalKey == "" {
		writeError(w, http.StatusBadRequest, "originalKey is required")
		return
	}

	s.blur.Schedule(req.OriginalKey)
	writeJSON(w, http.StatusOK, map[string]string{"message": "processing started"})
}

// handleEnvelope receives client-originated push events. The push emission
// and the REST call both announce the same upload; the simulator dedupes.
func (s *Server) handleEnvelope(env push.Envelope) {
	if env.Event != push.EventImageUploaded {
		return
	}

	var p push.ImageUploaded
	if err := json.Unmarshal(env.Data, &p); err != nil || p.OriginalKey == "" {
		s.hub.Broadcast(push.EventUploadError, push.ProcessingError{Message: "malformed upload announcement"})
		return
	}
	s.blur.Schedule(p.OriginalKey)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
