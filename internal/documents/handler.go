package documents

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fineprint-agent/internal/cache"
	"fineprint-agent/internal/shared/server/respond"
	"fineprint-agent/internal/workqueue"
)

const maxUploadSize = 10 << 20 // 10MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document and queue routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents/:id/analysis", h.analysis)
	rg.GET("/queue", h.listQueue)
	rg.PATCH("/queue/:id", h.updateQueueItem)
	rg.DELETE("/queue/:id", h.removeQueueItem)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	in := IngestInput{
		FileName: fileHeader.Filename,
		UserID:   strings.TrimSpace(c.PostForm("userId")),
		Options: workqueue.AnalysisOptions{
			Priority:     strings.TrimSpace(c.PostForm("priority")),
			AnalysisType: strings.TrimSpace(c.PostForm("analysisType")),
		},
	}
	if v := c.PostForm("deepScan"); v != "" {
		in.Options.DeepScan, _ = strconv.ParseBool(v)
	}
	if v := c.PostForm("compareMode"); v != "" {
		in.Options.CompareMode, _ = strconv.ParseBool(v)
	}

	item, err := h.Svc.Ingest(c.Request.Context(), in, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrUnsupported):
			respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_format", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to queue document", nil)
		}
		return
	}

	c.Set("documentId", item.DocumentID)
	respond.JSON(c, http.StatusAccepted, toItemResponse(item))
}

func (h *Handler) analysis(c *gin.Context) {
	documentID := c.Param("id")
	c.Set("documentId", documentID)

	entry, err := h.Svc.Analysis(c.Request.Context(), documentID)
	if err == nil {
		respond.JSON(c, http.StatusOK, toAnalysisResponse(entry))
		return
	}
	if !errors.Is(err, cache.ErrNotFound) {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read analysis", nil)
		return
	}

	// Not cached: report queue progress if the document is still queued.
	if item, ok := h.Svc.Queue.ByDocument(documentID); ok {
		respond.JSON(c, http.StatusAccepted, toItemResponse(item))
		return
	}
	respond.Error(c, http.StatusNotFound, "not_found", "no analysis for document", nil)
}

func (h *Handler) listQueue(c *gin.Context) {
	items := h.Svc.Queue.Snapshot()
	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toItemResponse(item))
	}
	respond.OK(c, resp)
}

type updateItemRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateQueueItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	status := workqueue.Status(strings.TrimSpace(req.Status))
	switch status {
	case workqueue.StatusPending, workqueue.StatusProcessing, workqueue.StatusCompleted, workqueue.StatusFailed:
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", "unknown status", nil)
		return
	}

	id := c.Param("id")
	if err := h.Svc.Queue.SetStatus(c.Request.Context(), id, status, ""); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "queue item not found", nil)
		return
	}

	item, _ := h.Svc.Queue.Get(id)
	respond.OK(c, toItemResponse(item))
}

func (h *Handler) removeQueueItem(c *gin.Context) {
	if err := h.Svc.Queue.Remove(c.Request.Context(), c.Param("id")); err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "queue item not found", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
