package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/taskmaster/tracker/docs"
	httpHandlers "github.com/taskmaster/tracker/internal/adapters/http"
	"github.com/taskmaster/tracker/internal/application/services"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  *logger.Logger
	backend *Backend
}

// New creates a new server instance
func New(cfg *config.Config, backend *Backend, appLogger *logger.Logger) (*Server, error) {
	if err := cfg.JWT.RequireSecret(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.Validator = NewValidator()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	// Initialize services
	userService := services.NewUserService(backend.Users, appLogger)
	authService := services.NewAuthService(userService, backend.Revocations, cfg.JWT, appLogger)
	taskService := services.NewTaskService(backend.Tasks, backend.Events, appLogger)

	// Initialize handlers
	authHandler := httpHandlers.NewAuthHandler(authService, appLogger)
	taskHandler := httpHandlers.NewTaskHandler(taskService, appLogger)

	server := &Server{
		echo:    e,
		config:  cfg,
		logger:  appLogger,
		backend: backend,
	}

	server.setupMiddleware()
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}
	server.setupRoutes(authHandler, taskHandler, authService)

	return server, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(authHandler *httpHandlers.AuthHandler, taskHandler *httpHandlers.TaskHandler, authService ports.AuthService) {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readinessCheck)
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	api := s.echo.Group("/api")
	requireAuth := s.authMiddleware(authService)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/profile", authHandler.Profile, requireAuth)
	auth.PUT("/profile", authHandler.UpdateProfile, requireAuth)

	tasks := api.Group("/tasks", requireAuth)
	tasks.GET("", taskHandler.ListTasks)
	tasks.POST("", taskHandler.CreateTask)
	tasks.GET("/stats", taskHandler.GetStats)
	tasks.GET("/analytics", taskHandler.GetAnalytics)
	tasks.GET("/:id", taskHandler.GetTask)
	tasks.PUT("/:id", taskHandler.UpdateTask)
	tasks.PATCH("/:id", taskHandler.UpdateTask)
	tasks.DELETE("/:id", taskHandler.DeleteTask)
	tasks.GET("/:id/progress", taskHandler.GetProgressHistory)
	tasks.PATCH("/:id/progress", taskHandler.UpdateProgress)
	tasks.POST("/:id/time", taskHandler.AddTimeEntry)
	tasks.POST("/:id/daily-update", taskHandler.AddDailyUpdate)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	s.echo.Use(metricsMiddleware(s.backend.Registry))

	metricsHandler := promhttp.HandlerFor(s.backend.Registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"storage": s.backend.Storage,
		"version": s.config.App.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readinessCheck(c echo.Context) error {
	status := "ready"
	checks := make(map[string]string, len(s.backend.Checkers))

	for _, checker := range s.backend.Checkers {
		if err := checker.HealthCheck(c.Request().Context()); err != nil {
			status = "not_ready"
			checks[checker.Name()] = err.Error()
			s.logger.Warnw("Readiness check failed", "dependency", checker.Name(), "error", err)
			continue
		}
		checks[checker.Name()] = "ok"
	}

	code := http.StatusOK
	if status != "ready" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Handler exposes the router, mainly for httptest
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.Server.IdleTimeout

	s.logger.Infow("Starting server", "address", address)
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler writes {success:false, message} for every failure
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, msg := httpHandlers.StatusFor(err)

		fields := []interface{}{
			"error", err,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", code,
		}
		if user, uerr := httpHandlers.CurrentUser(c); uerr == nil {
			fields = append(fields, "user_id", user.ID)
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "task_id", id)
		}

		if code >= http.StatusInternalServerError {
			logger.Errorw("Internal server error", fields...)
		} else {
			logger.Debugw("Request rejected", fields...)
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, httpHandlers.ErrorResponse{Success: false, Message: msg})
		}
		if err != nil {
			logger.Errorw("Error sending response", "error", err)
		}
	}
}
