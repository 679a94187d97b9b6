package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/signalsim/backtest"
	"github.com/rustyeddy/signalsim/portfolio"
	"github.com/rustyeddy/signalsim/sim"
	"github.com/rustyeddy/signalsim/strategies"
)

type runRequest struct {
	Strategy string `json:"strategy"`
}

func (s *Server) postRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Strategy == "" {
		req.Strategy = "basic"
	}
	strategy, err := strategies.ByName(req.Strategy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil && s.run.State() == sim.Running {
		c.JSON(http.StatusConflict, gin.H{"error": sim.ErrConcurrentRun.Error(), "run_id": s.run.RunID()})
		return
	}

	e, err := sim.NewEngine(sim.Options{
		Strategy:       strategy,
		Provider:       s.opts.Provider,
		InitialCapital: s.opts.InitialCapital,
		Commission:     s.opts.Commission,
		Horizon:        s.opts.Horizon,
		Journal:        s.opts.Journal,
		Logger:         s.logger,
		Events:         s.events,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := e.Start(s.ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.run = e

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":   e.RunID(),
		"strategy": strategy.Name(),
		"state":    e.State(),
	})
}

// current returns the latest engine, or writes 404 when none exists.
func (s *Server) current(c *gin.Context) (*sim.Engine, bool) {
	s.mu.Lock()
	e := s.run
	s.mu.Unlock()
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run"})
		return nil, false
	}
	return e, true
}

func (s *Server) postStop(c *gin.Context) {
	e, ok := s.current(c)
	if !ok {
		return
	}
	if err := e.Stop(); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": e.RunID(), "state": "stopping"})
}

func (s *Server) postReset(c *gin.Context) {
	e, ok := s.current(c)
	if !ok {
		return
	}
	if err := e.Reset(); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": e.State()})
}

func (s *Server) getProgress(c *gin.Context) {
	s.mu.Lock()
	e := s.run
	s.mu.Unlock()
	if e == nil {
		c.JSON(http.StatusOK, gin.H{"state": sim.NotStarted, "progress": sim.Progress{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":   e.RunID(),
		"strategy": e.Strategy().Name(),
		"state":    e.State(),
		"progress": e.Progress(),
	})
}

func (s *Server) getStats(c *gin.Context) {
	e, ok := s.current(c)
	if !ok {
		return
	}
	resp := gin.H{
		"run_id":     e.RunID(),
		"live":       e.Stats(),
		"statistics": e.Statistics(),
	}
	if err := e.Err(); err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getEquity(c *gin.Context) {
	e, ok := s.current(c)
	if !ok {
		return
	}
	curve := e.Equity()
	if curve == nil {
		curve = []portfolio.Valuation{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": e.RunID(), "count": len(curve), "data": curve})
}

func (s *Server) getTransactions(c *gin.Context) {
	e, ok := s.current(c)
	if !ok {
		return
	}
	txs := e.Transactions()
	if txs == nil {
		txs = []portfolio.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": e.RunID(), "count": len(txs), "data": txs})
}

func (s *Server) postCompare(c *gin.Context) {
	s.mu.Lock()
	if s.cmp != nil && s.cmp.running {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "comparison already running"})
		return
	}
	s.cmp = &comparison{running: true}
	s.mu.Unlock()

	cmp := &backtest.Comparison{
		Provider:       s.opts.Provider,
		InitialCapital: s.opts.InitialCapital,
		Commission:     s.opts.Commission,
		Horizon:        s.opts.Horizon,
		Journal:        s.opts.Journal,
		Logger:         s.logger,
		Progress: func(p backtest.Progress) {
			s.mu.Lock()
			s.cmp.progress = p
			s.mu.Unlock()
			s.hub.Publish("compare", p)
		},
	}

	go func() {
		results, err := cmp.Run(s.ctx)

		s.mu.Lock()
		s.cmp.running = false
		s.cmp.results = results
		if err != nil {
			s.cmp.err = err.Error()
		}
		s.mu.Unlock()

		s.hub.Publish("compare_done", results.Summaries())
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started", "strategies": strategies.Names()})
}

func (s *Server) getCompare(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no comparison"})
		return
	}
	resp := gin.H{
		"running":  s.cmp.running,
		"progress": s.cmp.progress,
		"results":  s.cmp.results,
	}
	if s.cmp.err != "" {
		resp["error"] = s.cmp.err
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getStrategies(c *gin.Context) {
	all := strategies.All()
	out := make([]gin.H, 0, len(all))
	for _, st := range all {
		out = append(out, gin.H{"name": st.Name(), "description": st.Description()})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "data": out})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrConcurrentRun), errors.Is(err, sim.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
