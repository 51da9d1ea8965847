package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jlorenzo681/documind/internal/documents"
	"github.com/jlorenzo681/documind/internal/shared/server/middleware"
	"github.com/jlorenzo681/documind/internal/shared/server/respond"
	"github.com/jlorenzo681/documind/internal/shared/storage/object"
	"github.com/jlorenzo681/documind/internal/tasks"
)

// TaskRunner is the part of tasks.Runner the HTTP layer uses.
type TaskRunner interface {
	Submit(ctx context.Context, req tasks.SubmitRequest) (tasks.Task, error)
	Status(ctx context.Context, id string) (tasks.Task, error)
	Cancel(ctx context.Context, id string) (tasks.Task, error)
	OpenReport(ctx context.Context, t tasks.Task) (io.ReadCloser, error)
}

// Handler serves the analysis and results APIs.
type Handler struct {
	Runner TaskRunner
	// BasePath prefixes report links, e.g. /api/v1.
	BasePath string
}

// NewHandler constructs a Handler.
func NewHandler(runner TaskRunner, basePath string) *Handler {
	return &Handler{Runner: runner, BasePath: basePath}
}

// RegisterRoutes attaches analysis and results routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.GET("/analyze/:id/status", h.status)
	rg.POST("/analyze/:id/cancel", h.cancel)
	rg.GET("/results/:id", h.result)
	rg.GET("/results/:id/summary", h.summary)
	rg.GET("/results/:id/report", h.report)
}

func (h *Handler) analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := tasks.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	task, err := h.Runner.Submit(ctx, tasks.SubmitRequest{
		DocumentID: req.DocumentID,
		Tasks:      req.Tasks,
		Questions:  req.Questions,
		Priority:   req.Priority,
	})
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
		case errors.Is(err, tasks.ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	c.Set("taskId", task.ID)
	c.Set("documentId", task.DocumentID)
	c.Set("statusTransition", "->queued")
	respond.Accepted(c, AnalyzeResponse{
		TaskID:               task.ID,
		DocumentID:           task.DocumentID,
		Status:               task.Status,
		Tasks:                task.Tasks,
		EstimatedTimeSeconds: tasks.EstimateSeconds(task.Tasks),
		CreatedAt:            task.CreatedAt,
	})
}

func (h *Handler) status(c *gin.Context) {
	task, ok := h.lookup(c)
	if !ok {
		return
	}
	respond.OK(c, toStatus(task))
}

func (h *Handler) cancel(c *gin.Context) {
	c.Set("taskId", c.Param("id"))
	task, err := h.Runner.Cancel(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, tasks.ErrTerminal):
		respond.OK(c, gin.H{"message": fmt.Sprintf("Task already %s", task.Status)})
	case errors.Is(err, tasks.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Task not found", nil)
	case err != nil:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to cancel analysis", nil)
	default:
		respond.OK(c, gin.H{"message": "Analysis cancelled"})
	}
}

func (h *Handler) result(c *gin.Context) {
	task, ok := h.finished(c)
	if !ok {
		return
	}
	respond.OK(c, toResult(task, h.reportURL(task.ID)))
}

func (h *Handler) summary(c *gin.Context) {
	task, ok := h.finished(c)
	if !ok {
		return
	}
	if task.Result == nil || task.Result.Summary == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "Summary not available", nil)
		return
	}
	respond.OK(c, gin.H{"task_id": task.ID, "summary": task.Result.Summary})
}

func (h *Handler) report(c *gin.Context) {
	task, ok := h.finished(c)
	if !ok {
		return
	}
	if task.Result == nil || task.Result.FinalReportPath == "" {
		respond.Error(c, http.StatusNotFound, "not_found", "Report not available", nil)
		return
	}
	rc, err := h.Runner.OpenReport(c.Request.Context(), task)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Report file not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open report", nil)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="documind_report_%s.pdf"`, task.ID),
	})
}

func (h *Handler) lookup(c *gin.Context) (tasks.Task, bool) {
	c.Set("taskId", c.Param("id"))
	task, err := h.Runner.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Task not found", nil)
		} else {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch task", nil)
		}
		return tasks.Task{}, false
	}
	return task, true
}

// finished writes the non-success responses for tasks without a usable result.
func (h *Handler) finished(c *gin.Context) (tasks.Task, bool) {
	task, ok := h.lookup(c)
	if !ok {
		return task, false
	}
	switch task.Status {
	case tasks.StatusQueued, tasks.StatusProcessing:
		respond.Accepted(c, gin.H{
			"task_id": task.ID,
			"status":  task.Status,
			"message": "Analysis still in progress",
		})
		return task, false
	case tasks.StatusFailed:
		respond.Error(c, http.StatusInternalServerError, "analysis_failed", task.Error, nil)
		return task, false
	case tasks.StatusCancelled:
		respond.Error(c, http.StatusGone, "cancelled", "Analysis was cancelled", nil)
		return task, false
	}
	return task, true
}

func (h *Handler) reportURL(id string) string {
	return h.BasePath + "/results/" + id + "/report"
}
