package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/replytrainer/internal/logging"
	"github.com/replytrainer/internal/trainer"
	"github.com/replytrainer/pkg/models"
)

// Trainer is the service surface exposed over HTTP
type Trainer interface {
	GenerateCandidates(ctx context.Context, req models.GenerationRequest) (*trainer.GenerateResult, error)
	SaveTrainerFeedback(ctx context.Context, sessionID *string, items []trainer.FeedbackItem) (*trainer.FeedbackResult, error)
}

// Server represents the API server
type Server struct {
	echo    *echo.Echo
	port    int
	trainer Trainer
}

// NewServer creates a new API server
func NewServer(port int, svc Trainer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(logging.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("1M"))

	server := &Server{
		echo:    e,
		port:    port,
		trainer: svc,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.POST("/candidates", s.generateCandidates)
	v1.POST("/feedback", s.saveFeedback)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("API server listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("Shutting down API server")
	return s.echo.Shutdown(shutdownCtx)
}
