// Package health exposes liveness and readiness over HTTP and runs the
// operator health checks used by botctl.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
)

// ModelState is the part of the model service the readiness probe reads
type ModelState interface {
	IsLoaded() bool
	Describe() core.ModelInfo
}

// Server serves /healthz and /readyz
type Server struct {
	listen string
	model  ModelState
	engine *gin.Engine
	logger *zap.Logger

	mu       sync.RWMutex
	adapters map[string]bool
}

// NewServer creates a new health server
func NewServer(listen string, model ModelState, logger *zap.Logger) *Server {
	s := &Server{
		listen:   listen,
		model:    model,
		logger:   logger,
		adapters: make(map[string]bool),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	engine.GET("/healthz", s.handleLiveness)
	engine.GET("/readyz", s.handleReadiness)
	s.engine = engine
	return s
}

// Track registers an adapter whose running state gates readiness
func (s *Server) Track(adapter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.adapters[adapter]; !ok {
		s.adapters[adapter] = false
	}
}

// SetRunning records whether an adapter is running
func (s *Server) SetRunning(adapter string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[adapter] = running
}

// Ready reports whether the model is loaded and every tracked adapter runs
func (s *Server) Ready() bool {
	if s.model == nil || !s.model.IsLoaded() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.adapters) == 0 {
		return false
	}
	for _, running := range s.adapters {
		if !running {
			return false
		}
	}
	return true
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Health endpoint listening", zap.String("listen", s.listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("health server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down health server: %w", err)
	}
	return nil
}

func (s *Server) handleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadiness(c *gin.Context) {
	s.mu.RLock()
	adapters := make(gin.H, len(s.adapters))
	for name, running := range s.adapters {
		adapters[name] = running
	}
	s.mu.RUnlock()

	var info core.ModelInfo
	if s.model != nil {
		info = s.model.Describe()
	}

	body := gin.H{
		"status": "ready",
		"model": gin.H{
			"provider": info.Provider,
			"name":     info.Name,
			"loaded":   s.model != nil && s.model.IsLoaded(),
		},
		"adapters": adapters,
	}
	if !s.Ready() {
		body["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Health request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
