package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labstack/echo/v4"

	"github.com/duet-sh/duet/internal/config"
	"github.com/duet-sh/duet/internal/health"
	"github.com/duet-sh/duet/internal/metrics"
	"github.com/duet-sh/duet/internal/slot"
	"github.com/duet-sh/duet/internal/supervisor"
)

// Router exposes the embeddable status API.
// Endpoints:
//
//	GET  {basePath}/status   sessions, restart records, health, ports
//	GET  {basePath}/healthz  200 when both slots probe running
//	POST {basePath}/stop     query: key=frontend|backend (clean stop, clears replay)
//	GET  {basePath}/metrics  Prometheus exposition
type Router struct {
	sup      *supervisor.Supervisor
	mon      *health.Monitor
	ports    func(slot.Kind) int
	basePath string
}

func NewRouter(sup *supervisor.Supervisor, mon *health.Monitor, ports func(slot.Kind) int, basePath string) *Router {
	return &Router{sup: sup, mon: mon, ports: ports, basePath: sanitizeBase(basePath)}
}

// Handler returns a gin-powered http.Handler that can be mounted anywhere.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealthz)
	group.POST("/stop", r.handleStop)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

type statusResp struct {
	Sessions []supervisor.Status `json:"sessions"`
	Health   map[string]string   `json:"health"`
	Ports    map[string]int      `json:"ports"`
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStatus(c *gin.Context) {
	resp := statusResp{
		Sessions: r.sup.Statuses(),
		Health:   make(map[string]string),
		Ports:    make(map[string]int),
	}
	for _, kind := range slot.Kinds() {
		resp.Health[kind.String()] = r.mon.State(kind).String()
		resp.Ports[kind.String()] = r.ports(kind)
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleHealthz(c *gin.Context) {
	for _, kind := range slot.Kinds() {
		if r.mon.State(kind) != health.StateRunning {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": r.mon.State(kind).String(), "slot": kind.String()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "running"})
}

func (r *Router) handleStop(c *gin.Context) {
	key := c.Query("key")
	if key != slot.Frontend.String() && key != slot.Backend.String() {
		c.JSON(http.StatusBadRequest, errorResp{Error: "key must be frontend or backend"})
		return
	}
	r.sup.Stop(key)
	c.JSON(http.StatusOK, okResp{OK: true})
}

// NewServer starts a standalone HTTP server for the router. With
// engine="echo" the gin handler is mounted inside an echo server
// (echo.WrapHandler); any other value serves gin directly.
func NewServer(cfg config.ServerConfig, sup *supervisor.Supervisor, mon *health.Monitor, ports func(slot.Kind) int) *http.Server {
	r := NewRouter(sup, mon, ports, cfg.BasePath)
	h := r.Handler()
	if cfg.Engine == "echo" {
		e := echo.New()
		e.HideBanner = true
		e.Any(r.basePath, echo.WrapHandler(h))
		e.Any(r.basePath+"/*", echo.WrapHandler(h))
		h = e
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
