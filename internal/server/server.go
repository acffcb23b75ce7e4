package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/providers/observability"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const shutdownTimeout = 10 * time.Second

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
}

// Server serves the HTTP API of one engine.
type Server struct {
	engine *engine.Engine
	router *gin.Engine
	// runCtx parents the runs the server starts, so they outlive requests.
	runCtx context.Context
}

// Option configures a [Server].
type Option func(*Server)

// WithRunContext sets the context jobs started by the server run under.
// Cancelling it terminates those jobs.
func WithRunContext(ctx context.Context) Option {
	return func(s *Server) {
		s.runCtx = ctx
	}
}

// New builds the router for e.
func New(e *engine.Engine, opts ...Option) *Server {
	s := &Server{engine: e, runCtx: context.Background()}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(e.Observer()))
	router.Use(cors())

	router.GET("/health", s.handleHealth)
	router.GET("/nodes", s.handleNodes)
	router.POST("/compatibility", s.handleCompatibility)
	router.POST("/jobs", s.handleSubmit)
	router.GET("/jobs/:id", s.handleStatus)
	router.GET("/jobs/:id/events", s.handleEvents)
	router.POST("/jobs/:id/terminate", s.handleTerminate)

	s.router = router
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	if observer := s.engine.Observer(); observer != nil {
		observer.Info(ctx, "HTTP server listening", observability.String("http.addr", addr))
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	}
}

func sendResponse(c *gin.Context, statusCode int, response APIResponse) {
	c.JSON(statusCode, response)
}

func sendSuccess(c *gin.Context, data map[string]any) {
	sendResponse(c, http.StatusOK, APIResponse{Success: true, Data: data})
}

func sendCreated(c *gin.Context, data map[string]any) {
	sendResponse(c, http.StatusCreated, APIResponse{Success: true, Data: data})
}

func sendError(c *gin.Context, statusCode int, errorMsg string) {
	sendResponse(c, statusCode, APIResponse{Success: false, Error: errorMsg})
}

// sendEngineError reports err with the status its code maps to.
func sendEngineError(c *gin.Context, err error) {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		sendResponse(c, http.StatusUnprocessableEntity, APIResponse{Error: engineErr.Error(), Code: string(engineErr.Code)})
		return
	}
	sendError(c, http.StatusInternalServerError, err.Error())
}
