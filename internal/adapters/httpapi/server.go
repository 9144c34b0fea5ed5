// Package httpapi exposes the task and publish services as a JSON API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	size "github.com/gin-contrib/size"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/reelforge/internal/ports/primary"
	"github.com/example/reelforge/internal/version"
)

// Config configures the HTTP server.
type Config struct {
	Addr             string
	Mode             string // gin mode: debug, release, test
	RequestSizeLimit int64
	ShutdownTimeout  time.Duration
}

// Server is the HTTP front of the task and publish services.
type Server struct {
	tasks   primary.TaskService
	publish primary.PublishService
	logs    primary.LogService
	cfg     Config
	logger  *zap.Logger
	router  *gin.Engine
	httpSrv *http.Server
}

// NewServer creates a new Server and registers its routes. logs may be nil.
func NewServer(tasks primary.TaskService, publish primary.PublishService, logs primary.LogService, cfg Config, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Mode == "" {
		cfg.Mode = gin.ReleaseMode
	}
	if cfg.RequestSizeLimit <= 0 {
		cfg.RequestSizeLimit = 1 << 20
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{tasks: tasks, publish: publish, logs: logs, cfg: cfg, logger: logger}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(s.cfg.Mode)
	router := gin.New()
	router.Use(requestLogger(s.logger), recovery())
	router.Use(size.RequestSizeLimiter(s.cfg.RequestSizeLimit))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "build": version.Get()})
	})

	api := router.Group("/api")
	api.Use(actorFromHeader)
	s.registerTaskRoutes(api)
	s.registerPublishRoutes(api)

	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, fmt.Errorf("%w: route %s %s", errRouteNotFound, c.Request.Method, c.Request.URL.Path))
	})
	return router
}

// Start listens in the background. Listen errors other than a clean shutdown
// are reported on the returned channel.
func (s *Server) Start() <-chan error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 30 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}
