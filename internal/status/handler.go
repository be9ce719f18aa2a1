// Package status exposes sync control and introspection endpoints.
package status

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fineprint-agent/internal/connectivity"
	"fineprint-agent/internal/engine"
	"fineprint-agent/internal/shared/server/respond"
)

// Handler wires sync control endpoints to the engine and monitor.
type Handler struct {
	Engine  *engine.Engine
	Monitor *connectivity.Monitor
}

// NewHandler constructs a Handler.
func NewHandler(eng *engine.Engine, monitor *connectivity.Monitor) *Handler {
	return &Handler{Engine: eng, Monitor: monitor}
}

// RegisterRoutes attaches status and control routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", h.status)
	rg.POST("/sync", h.sync)
	rg.POST("/connectivity", h.reportConnectivity)
	rg.POST("/cleanup", h.cleanup)
	rg.DELETE("/queues", h.clearQueues)
}

func (h *Handler) status(c *gin.Context) {
	respond.OK(c, h.Engine.CurrentStatus(c.Request.Context()))
}

func (h *Handler) sync(c *gin.Context) {
	respond.OK(c, h.Engine.StartSync(c.Request.Context()))
}

type connectivityRequest struct {
	Online  bool   `json:"online"`
	Quality string `json:"quality"`
}

// reportConnectivity lets the frontend push reachability changes it
// observes, in place of or alongside the agent's own probe.
func (h *Handler) reportConnectivity(c *gin.Context) {
	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	if req.Online {
		h.Monitor.ReportOnline(connectivity.Quality(req.Quality))
	} else {
		h.Monitor.ReportOffline()
	}
	respond.OK(c, h.Monitor.Status())
}

func (h *Handler) cleanup(c *gin.Context) {
	respond.OK(c, h.Engine.CleanupStorage(c.Request.Context()))
}

func (h *Handler) clearQueues(c *gin.Context) {
	h.Engine.ClearQueues(c.Request.Context())
	c.Status(http.StatusNoContent)
}
