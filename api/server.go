// Package api exposes run orchestration over HTTP and streams engine events
// to websocket clients.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/signalsim/backtest"
	"github.com/rustyeddy/signalsim/internal/logging"
	"github.com/rustyeddy/signalsim/journal"
	"github.com/rustyeddy/signalsim/sim"
)

// Options configures the runs the server starts. Every run reads the same
// Provider.
type Options struct {
	Addr           string
	Provider       sim.Provider
	InitialCapital float64
	Commission     float64
	Horizon        int
	Journal        journal.Journal
	Logger         *slog.Logger
}

// Server is the HTTP front end. It owns at most one engine run and one
// comparison at a time.
type Server struct {
	engine *gin.Engine
	server *http.Server
	hub    *Hub
	opts   Options
	logger *slog.Logger

	events chan sim.Event

	// ctx bounds background runs; cancel is called on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	run *sim.Engine
	cmp *comparison
}

type comparison struct {
	running  bool
	progress backtest.Progress
	results  backtest.Results
	err      string
}

// NewServer builds the router. Call Start to listen, or use Handler in
// tests.
func NewServer(opts Options) (*Server, error) {
	if opts.Provider == nil {
		return nil, errors.New("api: Provider is required")
	}
	logger := logging.OrDefault(opts.Logger)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware(logger))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		engine: engine,
		hub:    NewHub(logger),
		opts:   opts,
		logger: logger,
		events: make(chan sim.Event, 256),
		ctx:    ctx,
		cancel: cancel,
		server: &http.Server{
			Addr:    opts.Addr,
			Handler: engine,
		},
	}

	s.setupRoutes()
	go s.hub.Run(ctx)
	go s.pump()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	{
		api.POST("/run", s.postRun)
		api.POST("/stop", s.postStop)
		api.POST("/reset", s.postReset)
		api.GET("/progress", s.getProgress)
		api.GET("/stats", s.getStats)
		api.GET("/equity", s.getEquity)
		api.GET("/transactions", s.getTransactions)
		api.POST("/compare", s.postCompare)
		api.GET("/compare", s.getCompare)
		api.GET("/strategies", s.getStrategies)
	}

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/ws", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})
}

// Handler is the router, for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Hub is the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// pump forwards engine events to websocket clients.
func (s *Server) pump() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.hub.Publish("run", ev)
		}
	}
}

// Start listens until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("api listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops background runs and closes the listener.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.run != nil && s.run.State() == sim.Running {
		_ = s.run.Stop()
	}
	s.mu.Unlock()
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func loggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Debug("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
