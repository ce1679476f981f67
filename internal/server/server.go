package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"plandraft/internal/logger"

	"github.com/gin-gonic/gin"
)

type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	CORSOrigins       []string
}

func NewRouter(h *Handler, log *logger.Logger, corsOrigins []string) *gin.Engine {
	if log == nil {
		log = logger.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), AttachRequestID(), RequestLogger(log), CORS(corsOrigins))

	r.GET("/health", h.Health)
	r.POST("/generate", h.Generate)
	r.POST("/generate-ab", h.GenerateAB)
	return r
}

type Server struct {
	server          *http.Server
	shutdownTimeout time.Duration
	log             *logger.Logger
}

func New(cfg Config, h *Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(h, log, cfg.CORSOrigins),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.server.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		timeout := s.shutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.log.Info("HTTP server shutting down")
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
