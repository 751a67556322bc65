package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/api/handlers"
	"visitwise-edge-go/internal/config"
	"visitwise-edge-go/internal/services/liveview"
)

// Server exposes the local status API and the MJPEG live view.
type Server struct {
	cfg    *config.Config
	log    zerolog.Logger
	router *gin.Engine
	server *http.Server

	statusHandler *handlers.StatusHandler
	liveHandler   *handlers.LiveHandler
}

func NewServer(cfg *config.Config, log zerolog.Logger, deviceID handlers.DeviceID, health handlers.HealthSource, uploads handlers.PendingSource, publisher *liveview.Publisher) *Server {
	gin.SetMode(gin.ReleaseMode)

	return &Server{
		cfg:           cfg,
		log:           log,
		router:        gin.New(),
		statusHandler: handlers.NewStatusHandler(deviceID, health, uploads, publisher),
		liveHandler:   handlers.NewLiveHandler(publisher),
	}
}

func (s *Server) Setup() {
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.router,
	}
}

// Start blocks serving HTTP until Shutdown. http.ErrServerClosed is the
// normal exit and is filtered out.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Status API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Stopping status API")
	return s.server.Shutdown(ctx)
}
