package http

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

type Server struct {
	log  *logger.Logger
	http *http.Server
}

func NewServer(baseLog *logger.Logger, router *gin.Engine) *Server {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}
	return &Server{
		log: baseLog.With("component", "HTTPServer"),
		http: &http.Server{
			Addr:              ":" + port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			// No blanket write timeout; the SSE endpoint holds
			// connections open indefinitely.
		},
	}
}

// Run serves until ctx is canceled, then drains with a 15s grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http server shutdown incomplete", "error", err)
		return err
	}
	s.log.Info("http server stopped")
	return <-errCh
}
