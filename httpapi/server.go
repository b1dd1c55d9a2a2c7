// Package httpapi exposes the aggregate, source health, filter and recent log
// lines over a small JSON API, plus /healthz and /metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"spothunter/aggregate"
	"spothunter/buffer"
	"spothunter/filter"
	"spothunter/scheduler"
	"spothunter/stats"
)

// Controller is the slice of the scheduler the API drives.
type Controller interface {
	Status() []scheduler.SourceStatus
	Filter() *filter.Filter
	SetFilter(f *filter.Filter)
	Refresh()
}

// Deps collects the server's collaborators. Tracker, Logs and Gatherer are
// optional.
type Deps struct {
	Board      *aggregate.Board
	Controller Controller
	Tracker    *stats.Tracker
	Logs       *buffer.RingBuffer
	Gatherer   prometheus.Gatherer
	// StateFile receives the filter on every successful PUT. Empty skips saving.
	StateFile string
	Logger    zerolog.Logger
}

// Server wraps the gin engine and its http.Server.
type Server struct {
	deps       Deps
	engine     *gin.Engine
	httpServer *http.Server
}

type sourceView struct {
	scheduler.SourceStatus
	TotalSpots uint64 `json:"total_spots"`
}

type errorBody struct {
	Error string `json:"error"`
}

// New builds the routes. The server does not listen until Start.
func New(addr string, deps Deps) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		deps:   deps,
		engine: engine,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}

	engine.GET("/healthz", s.health)
	if deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	api := engine.Group("/api")
	api.GET("/spots", s.spots)
	api.GET("/sources", s.sources)
	api.GET("/filter", s.getFilter)
	api.PUT("/filter", s.putFilter)
	api.POST("/refresh", s.refresh)
	api.GET("/logs", s.logs)
	return s
}

// Start listens until Shutdown. Returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.deps.Logger.Info().Str("addr", s.httpServer.Addr).Msg("http server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains connections within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP lets tests drive the engine without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) spots(c *gin.Context) {
	out := s.deps.Board.Latest()
	if out == nil {
		out = []aggregate.DisplaySpot{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) sources(c *gin.Context) {
	var totals map[string]uint64
	if s.deps.Tracker != nil {
		totals = s.deps.Tracker.GetSourceCounts()
	}
	statuses := s.deps.Controller.Status()
	out := make([]sourceView, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, sourceView{SourceStatus: st, TotalSpots: totals[string(st.Source)]})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getFilter(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Controller.Filter().State())
}

func (s *Server) putFilter(c *gin.Context) {
	var req filter.State
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid filter body: " + err.Error()})
		return
	}
	f, err := filter.FromState(req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, filter.ErrUnknownBand) || errors.Is(err, filter.ErrUnknownMode) {
			status = http.StatusBadRequest
		}
		c.JSON(status, errorBody{Error: err.Error()})
		return
	}
	if s.deps.StateFile != "" {
		if err := filter.Save(s.deps.StateFile, f); err != nil {
			s.deps.Logger.Error().Err(err).Str("path", s.deps.StateFile).Msg("saving filter failed")
			c.JSON(http.StatusInternalServerError, errorBody{Error: "filter not saved"})
			return
		}
	}
	s.deps.Controller.SetFilter(f)
	s.deps.Logger.Info().Strs("bands", f.State().Bands).Strs("modes", f.State().Modes).Msg("filter applied")
	c.JSON(http.StatusOK, f.State())
}

func (s *Server) refresh(c *gin.Context) {
	s.deps.Controller.Refresh()
	c.Status(http.StatusAccepted)
}

// logs returns up to ?n= recent lines, oldest first.
func (s *Server) logs(c *gin.Context) {
	if s.deps.Logs == nil {
		c.JSON(http.StatusOK, []string{})
		return
	}
	n := 100
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, errorBody{Error: "n must be a positive integer"})
			return
		}
		n = v
	}
	lines := s.deps.Logs.Texts(n)
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, lines)
}
