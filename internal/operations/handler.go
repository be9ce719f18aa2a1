// Package operations exposes the sync queue over the local API so the
// frontend can buffer mutations while offline.
package operations

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"fineprint-agent/internal/shared/server/respond"
	"fineprint-agent/internal/syncqueue"
)

// Handler wires HTTP handlers to the sync queue.
type Handler struct {
	Queue  *syncqueue.Queue
	Notify func()
}

// NewHandler constructs a Handler.
func NewHandler(queue *syncqueue.Queue, notify func()) *Handler {
	return &Handler{Queue: queue, Notify: notify}
}

// RegisterRoutes attaches operation routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/operations", h.enqueue)
	rg.GET("/operations", h.list)
	rg.DELETE("/operations/:id", h.remove)
}

type enqueueRequest struct {
	Kind    string          `json:"kind"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Handler) enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	op, err := h.Queue.Enqueue(c.Request.Context(), syncqueue.Kind(req.Kind), syncqueue.Action(req.Action), req.Payload)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	c.Set("operationId", op.ID)
	if h.Notify != nil {
		h.Notify()
	}
	respond.JSON(c, http.StatusCreated, op)
}

func (h *Handler) list(c *gin.Context) {
	respond.OK(c, h.Queue.Snapshot())
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.Queue.Remove(c.Request.Context(), c.Param("id")); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "operation not found", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
