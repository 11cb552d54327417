// Package web provides the HTTP status page and control API for the
// thermostat daemon.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/sweeney/smart-thermostat/internal/logic"
	"github.com/sweeney/smart-thermostat/internal/status"
)

// Control accepts user requests. The daemon forwards them into the event
// loop, so a call returns once the controller has handled the request.
type Control interface {
	SetTarget(ctx context.Context, temperature float64) error
	SetMode(ctx context.Context, mode logic.Mode) error
}

// RequestTimeout bounds how long a control request waits for the event loop.
const RequestTimeout = 10 * time.Second

// Server serves the status page and control API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	control    Control
	log        logr.Logger
}

// TargetRequest is the body of POST /api/target.
type TargetRequest struct {
	Temperature *float64 `json:"temperature" binding:"required"`
}

// ModeRequest is the body of POST /api/mode.
type ModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// New creates a Server that reads state from tracker and forwards requests
// to control.
func New(addr string, tracker *status.Tracker, control Control, log logr.Logger) *Server {
	s := &Server{
		tracker: tracker,
		control: control,
		log:     log.WithName("web"),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests)

	router.GET("/", s.handleIndex)
	router.GET("/index.html", s.handleIndex)
	router.GET("/index.json", s.handleJSON)

	api := router.Group("/api")
	api.POST("/target", s.handleTarget)
	api.POST("/mode", s.handleMode)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.V(1).Info("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := renderHTML(c.Writer, snap); err != nil {
		s.log.Error(err, "render status page")
	}
}

func (s *Server) handleJSON(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Data(http.StatusOK, "application/json", status.FormatJSON(snap))
}

func (s *Server) handleTarget(c *gin.Context) {
	var req TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: temperature required"})
		return
	}
	t := *req.Temperature
	if t < logic.MinTarget || t > logic.MaxTarget {
		c.JSON(http.StatusBadRequest, gin.H{"error": "temperature out of range"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
	defer cancel()
	if err := s.control.SetTarget(ctx, t); err != nil {
		s.dispatchFailed(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleMode(c *gin.Context) {
	var req ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: mode required"})
		return
	}
	mode, err := logic.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
	defer cancel()
	if err := s.control.SetMode(ctx, mode); err != nil {
		s.dispatchFailed(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}

// dispatchFailed reports a request that reached the controller but whose
// device commands failed, or that never got an answer from the event loop.
func (s *Server) dispatchFailed(c *gin.Context, err error) {
	s.log.Error(err, "control request failed", "path", c.Request.URL.Path)
	code := http.StatusBadGateway
	if errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusGatewayTimeout
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
