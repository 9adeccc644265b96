package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/sigsift/internal/lifecycle"
	"github.com/loykin/sigsift/internal/registry"
	"github.com/loykin/sigsift/pkg/template"
)

// Router provides embeddable HTTP handlers for inspecting and configuring
// filter nodes.
// Endpoints:
//   GET  {basePath}/nodes               list live nodes with their configs
//   GET  {basePath}/nodes/:id/config    current effective config
//   PUT  {basePath}/nodes/:id/config    body: partial payload JSON (merge)
//   GET  {basePath}/nodes/:id/template  capture a template payload
//   POST {basePath}/nodes/:id/template  apply a template payload (replace)
//   POST {basePath}/pass                run one compute-and-push pass now
//   POST {basePath}/sweep               destroy nodes whose circuit is gone
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	reg      *registry.Registry
	orc      *lifecycle.Orchestrator
	runPass  func()
	sweep    func() int
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
// runPass and sweep are optional; the corresponding endpoints return 503
// when unset.
func NewRouter(reg *registry.Registry, orc *lifecycle.Orchestrator, runPass func(), sweep func() int, basePath string) *Router {
	bp := sanitizeBase(basePath)
	return &Router{reg: reg, orc: orc, runPass: runPass, sweep: sweep, basePath: bp}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/nodes", r.handleNodes)
	group.GET("/nodes/:id/config", r.handleGetConfig)
	group.PUT("/nodes/:id/config", r.handlePutConfig)
	group.GET("/nodes/:id/template", r.handleGetTemplate)
	group.POST("/nodes/:id/template", r.handlePostTemplate)
	group.POST("/pass", r.handlePass)
	group.POST("/sweep", r.handleSweep)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Shut it down via http.Server's Close or Shutdown.
func NewServer(addr, basePath string, reg *registry.Registry, orc *lifecycle.Orchestrator, runPass func(), sweep func() int) (*http.Server, error) {
	r := NewRouter(reg, orc, runPass, sweep, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type nodeResp struct {
	ID               uint64 `json:"id"`
	Mode             string `json:"mode"`
	QualitySensitive bool   `json:"quality_sensitive"`
}

func nodeView(id registry.NodeID, cfg registry.Config) nodeResp {
	return nodeResp{ID: uint64(id), Mode: string(cfg.Mode), QualitySensitive: cfg.QualitySensitive}
}

func (r *Router) handleNodes(c *gin.Context) {
	ids := r.reg.IDs()
	out := make([]nodeResp, 0, len(ids))
	for _, id := range ids {
		out = append(out, nodeView(id, r.reg.GetConfig(registry.Live(id))))
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleGetConfig(c *gin.Context) {
	id, ok := parseNode(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, nodeView(id, r.reg.GetConfig(registry.Live(id))))
}

func (r *Router) handlePutConfig(c *gin.Context) {
	id, ok := parseNode(c)
	if !ok {
		return
	}
	var p template.Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	r.orc.UpdateConfig(registry.Live(id), p.Patch())
	writeJSON(c, http.StatusOK, nodeView(id, r.reg.GetConfig(registry.Live(id))))
}

func (r *Router) handleGetTemplate(c *gin.Context) {
	id, ok := parseNode(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, r.orc.Capture(registry.Live(id)))
}

func (r *Router) handlePostTemplate(c *gin.Context) {
	id, ok := parseNode(c)
	if !ok {
		return
	}
	var p template.Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	r.orc.ApplyTemplate(registry.Live(id), p)
	writeJSON(c, http.StatusOK, nodeView(id, r.reg.GetConfig(registry.Live(id))))
}

func (r *Router) handlePass(c *gin.Context) {
	if r.runPass == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "no scheduler attached"})
		return
	}
	r.runPass()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type sweepResp struct {
	Removed int `json:"removed"`
}

func (r *Router) handleSweep(c *gin.Context) {
	if r.sweep == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "no circuit attached"})
		return
	}
	writeJSON(c, http.StatusOK, sweepResp{Removed: r.sweep()})
}
