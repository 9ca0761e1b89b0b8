package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/citypay/mail-handler/internal/handler"
	"github.com/citypay/mail-handler/internal/request"
)

// shutdownTimeout is the maximum time to wait for in-flight requests
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

// maxRequestBody caps the accepted request size (1 MB). Bodies are inline
// text; anything larger is a mistake.
const maxRequestBody = 1 << 20

// ServerConfig holds the configuration for the HTTP front-end.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8080").
	ListenAddr string

	// Handler runs the batch-send invocations.
	Handler *handler.Handler

	// TLSConfig, when set, makes the server listen over TLS.
	TLSConfig *tls.Config

	// AuthToken enables bearer-token authentication when non-empty.
	AuthToken string
}

// Server accepts JSON send requests over HTTP and delegates them to the
// batch handler.
type Server struct {
	config   ServerConfig
	auth     *Authenticator
	listener net.Listener
}

// New creates a new Server with the given configuration.
func New(cfg ServerConfig) *Server {
	return &Server{
		config: cfg,
		auth:   NewAuthenticator(cfg.AuthToken),
	}
}

// errorResponse is the JSON body returned for rejected invocations.
type errorResponse struct {
	Error string `json:"error"`
}

// ListenAndServe starts the server and blocks until the context is
// cancelled, then shuts down gracefully, waiting up to 30 seconds for
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	if s.config.TLSConfig != nil {
		ln = tls.NewListener(ln, s.config.TLSConfig)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/send", s.handleSend)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	srv := &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	slog.Info("HTTP server listening",
		"addr", ln.Addr().String(),
		"auth_enabled", s.auth.Enabled(),
		"tls_enabled", s.config.TLSConfig != nil,
	)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown timeout reached, forcing close", "error", err)
			srv.Close()
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleSend decodes a batch request and runs it through the handler,
// mapping the batch callbacks onto HTTP responses: a batch-aborting error
// becomes a 4xx JSON error, completion becomes a 200 results array.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if s.auth.Enabled() {
		if err := s.auth.Verify(r.Header.Get("Authorization")); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
	}

	var req request.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	s.config.Handler.Handle(r.Context(), &req,
		func(err error) {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, handler.ErrValidation):
				status = http.StatusBadRequest
			case errors.Is(err, handler.ErrVerification):
				status = http.StatusForbidden
			}
			writeJSON(w, status, errorResponse{Error: err.Error()})
		},
		func(results []request.Result) {
			writeJSON(w, http.StatusOK, results)
		},
	)
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
