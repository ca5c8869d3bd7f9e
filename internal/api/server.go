// Package api exposes the approval engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/better-wallet/multisig/internal/config"
	"github.com/better-wallet/multisig/internal/logger"
	"github.com/better-wallet/multisig/internal/metrics"
	"github.com/better-wallet/multisig/internal/middleware"
	"github.com/better-wallet/multisig/internal/multisig"
	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/google/uuid"
)

// Pinger reports backend health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	config      *config.Config
	service     *multisig.Service
	health      Pinger
	rateLimiter *middleware.RateLimiter
	callerAuth  *middleware.CallerAuth
	httpServer  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, service *multisig.Service, health Pinger) *Server {
	return &Server{
		config:      cfg,
		service:     service,
		health:      health,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitEnabled),
		callerAuth:  middleware.NewCallerAuth(cfg.JWTSecret, cfg.JWTIssuer),
	}
}

// Handler builds the routed and middleware-wrapped handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// unauthenticated
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	mux.Handle("/v1/multisig-wallets",
		s.callerAuth.Authenticate(http.HandlerFunc(s.handleWallets)))
	mux.Handle("/v1/multisig-wallets/",
		s.callerAuth.Authenticate(http.HandlerFunc(s.handleWalletOperationsRouter)))
	mux.Handle("/v1/approvals/",
		s.callerAuth.Authenticate(http.HandlerFunc(s.handleApprovalOperationsRouter)))

	// Chain: Metrics -> RequestID -> Logging -> RateLimit -> LimitBody -> Routes
	return metrics.InstrumentHandler(
		middleware.RequestID(
			middleware.Logging(
				s.rateLimiter.Limit(
					middleware.LimitBody(mux)))))
}

// Start serves HTTP until Shutdown. The rate limiter's eviction loop stops with ctx.
func (s *Server) Start(ctx context.Context) error {
	go s.rateLimiter.Run(ctx)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info(ctx, "starting HTTP server", "port", s.config.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			logger.Error(r.Context(), "health check failed", "error", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// caller returns the authenticated user, writing 401 when absent
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		s.writeError(w, r, apperrors.ErrUnauthorized)
		return uuid.Nil, false
	}
	return caller, true
}

// decodeJSON decodes a request body, rejecting unknown fields and trailing data
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	dec.UseNumber()

	err := dec.Decode(v)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errors.New("request body must contain a single JSON object")
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, apperrors.New(apperrors.ErrCodeBadRequest, "Request body too large", http.StatusRequestEntityTooLarge))
			return false
		}
		s.writeError(w, r, apperrors.ErrBadRequest.WithDetail(err.Error()))
		return false
	}
	return true
}

func (s *Server) parseID(w http.ResponseWriter, r *http.Request, raw, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		s.writeError(w, r, apperrors.NewWithDetail(
			apperrors.ErrCodeBadRequest,
			"Invalid "+what+" ID",
			err.Error(),
			http.StatusBadRequest,
		))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, apperrors.New(
		apperrors.ErrCodeBadRequest,
		"Method not allowed",
		http.StatusMethodNotAllowed,
	))
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError renders err as an AppError. Errors that are not AppErrors are logged
// and reported as a generic internal error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		logger.Error(r.Context(), "unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
		appErr = apperrors.ErrInternalError
	}
	s.writeJSON(w, appErr.StatusCode, appErr)
}
