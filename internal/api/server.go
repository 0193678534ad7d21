// Package api exposes the classification engine and the stored results over
// HTTP.
package api

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/david/proposaland/internal/auth"
	"github.com/david/proposaland/internal/db"
	"github.com/david/proposaland/internal/engine"
	"github.com/david/proposaland/internal/metrics"
	"github.com/david/proposaland/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Store is the persistence the server needs. A nil Store disables the
// stored-results endpoints and persist requests.
type Store interface {
	SaveScored(ctx context.Context, opps []models.ScoredOpportunity) error
	ListScored(ctx context.Context, params db.ListParams) (*db.ListResult, error)
	GetScored(ctx context.Context, id uuid.UUID) (*models.ScoredOpportunity, error)
	GetStats(ctx context.Context) (*db.Stats, error)
}

type Server struct {
	Engine *engine.Engine
	Store  Store
	Auth   *auth.Authenticator
	Echo   *echo.Echo
	logger *zap.Logger
}

func NewServer(eng *engine.Engine, store Store, authn *auth.Authenticator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.BodyLimit("8M"))

	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s := &Server{
		Engine: eng,
		Store:  store,
		Auth:   authn,
		Echo:   e,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.Echo.Group("/api/v1")
	api.GET("/patterns", s.handlePatterns)
	api.POST("/references", s.handleReferences)
	api.POST("/keywords", s.handleKeywords)
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.GET("/stats", s.handleGetStats)

	protected := api.Group("")
	protected.Use(s.Auth.Middleware)
	protected.POST("/classify", s.handleClassify)
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("request", fields...)
			return nil
		},
	})
}

func (s *Server) Start(addr string) error {
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	s.logger.Info("server starting", zap.String("addr", addr))
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
