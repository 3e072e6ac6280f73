// Package http provides the gin HTTP server, its middleware and the health endpoints.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/pseudonymizer/internal/config"
	"github.com/allisson/pseudonymizer/internal/metrics"
	pseudonymHTTP "github.com/allisson/pseudonymizer/internal/pseudonym/http"
)

// readinessTimeout bounds each component probe of GET /ready.
const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one dependency for GET /ready.
type ReadinessCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check ReadinessCheck
}

// Server is the API server.
type Server struct {
	*listener
	db     *sql.DB
	router *gin.Engine
	checks []namedCheck
}

// NewServer creates a new HTTP server. The database is always part of readiness; other
// components are added with AddReadinessCheck.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		listener: newListener("http server", host, port, logger),
		db:       db,
	}
}

// AddReadinessCheck registers a component reported by GET /ready.
func (s *Server) AddReadinessCheck(name string, check ReadinessCheck) {
	s.checks = append(s.checks, namedCheck{name: name, check: check})
}

// SetupRouter configures the Gin router with all routes and middleware.
// Middleware order: recovery, request id, logger, audit context, metrics, CORS, request
// timeout. /v1 routes are additionally rate limited per caller.
func (s *Server) SetupRouter(
	cfg *config.Config,
	pseudonymHandler *pseudonymHTTP.PseudonymHandler,
	metricsProvider *metrics.Provider,
) {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))
	router.Use(AuditContextMiddleware())

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider))
	}

	if cfg.CORSEnabled {
		if len(cfg.CORSAllowOrigins) == 0 {
			s.logger.Warn("CORS enabled but no origins configured, CORS will not be applied")
		} else {
			s.logger.Info("CORS enabled", slog.Any("origins", cfg.CORSAllowOrigins))
			router.Use(CORSMiddleware(cfg.CORSAllowOrigins))
		}
	}

	if cfg.ServerRequestTimeout > 0 {
		router.Use(RequestTimeoutMiddleware(cfg.ServerRequestTimeout))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/live", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if cfg.RateLimitEnabled {
		v1.Use(CallerRateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}
	{
		v1.POST("/pseudonymize", pseudonymHandler.PseudonymizeHandler)
		v1.POST("/depseudonymize", pseudonymHandler.DepseudonymizeHandler)
		v1.DELETE("/session/:id", pseudonymHandler.DeleteSessionHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start serves the router built by SetupRouter until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not initialized, call SetupRouter first")
	}
	return s.serve(s.router)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.shutdown(ctx)
}

// healthHandler reports liveness only. It never touches a dependency.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler probes the database and every registered component.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	components := make(map[string]string, len(s.checks)+1)
	ready := true

	if s.db == nil || s.db.PingContext(ctx) != nil {
		components["database"] = "error"
		ready = false
	} else {
		components["database"] = "ok"
	}

	for _, nc := range s.checks {
		if err := nc.check(ctx); err != nil {
			s.logger.Warn("readiness check failed",
				slog.String("component", nc.name),
				slog.Any("error", err),
			)
			components[nc.name] = "error"
			ready = false
			continue
		}
		components[nc.name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}
