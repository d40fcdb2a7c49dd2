package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"trade-journal-go/internal/config"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server exposes the journal over HTTP.
type Server struct {
	server  *http.Server
	handler *APIHandler
	logger  *zap.Logger
}

// NewServer creates a Server listening on the configured port.
func NewServer(cfg *config.Config, handler *APIHandler, logger *zap.Logger) *Server {
	s := &Server{
		handler: handler,
		logger:  logger.Named("api-server"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.routes(cfg.CORS),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes(corsCfg config.CORS) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handler.HealthHandler)
	mux.HandleFunc("GET /brokers", s.handler.BrokersHandler)
	mux.HandleFunc("GET /trades", s.handler.TradesHandler)
	mux.HandleFunc("POST /trades/upload", s.handler.UploadHandler)
	mux.HandleFunc("GET /trades/analysis", s.handler.AnalysisHandler)
	mux.HandleFunc("POST /ai/review", s.handler.ReviewHandler)

	c := cors.New(cors.Options{
		AllowedOrigins:   AllowedOrigins(corsCfg.FrontendURL),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return requestID(accessLog(s.logger, c.Handler(mux)))
}

// AllowedOrigins lists the local development origins plus the configured frontend.
func AllowedOrigins(frontendURL string) []string {
	origins := []string{"http://localhost:3000", "https://localhost:3000"}
	if frontendURL == "" {
		return origins
	}
	for _, o := range origins {
		if o == frontendURL {
			return origins
		}
	}
	return append(origins, frontendURL)
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
