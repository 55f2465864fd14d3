package jobs

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tga-backend/internal/project"
	"tga-backend/internal/shared/server/middleware"
	"tga-backend/internal/shared/server/respond"
	"tga-backend/internal/shared/telemetry"
)

const defaultMaxUpload = 50 << 20 // 50MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	Hub            *Hub
	MaxUploadBytes int64
	// AllowedOrigins lists browser origins that may open the event stream.
	AllowedOrigins []string
	// EventPoll is how often the event stream rereads jobs that are not
	// running in this process.
	EventPoll time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, hub *Hub, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{Svc: svc, Hub: hub, MaxUploadBytes: maxUpload}
}

// RegisterRoutes attaches project routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects", h.submit)
	rg.GET("/projects", h.list)
	rg.GET("/projects/:id/status", h.status)
	rg.GET("/projects/:id/results", h.results)
	rg.GET("/projects/:id/download", h.download)
	rg.POST("/projects/:id/cancel", h.cancel)
	rg.GET("/projects/:id/events", h.events)
}

func (h *Handler) submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("dwgFile")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("upload exceeds %d bytes", h.MaxUploadBytes), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "dwgFile is required", nil)
		return
	}
	raw := strings.TrimSpace(c.PostForm("projectConfig"))
	if raw == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "projectConfig is required", nil)
		return
	}
	cfg, err := project.Decode([]byte(raw))
	if err != nil {
		respond.Invalid(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Svc.Submit(ctx, Submission{Project: cfg, FileName: fileHeader.Filename, File: file})
	if err != nil {
		switch {
		case errors.Is(err, project.ErrInvalidConfig):
			respond.Invalid(c, err)
		case errors.Is(err, ErrUnsupportedFile):
			respond.Error(c, http.StatusBadRequest, "unsupported_file", "dwgFile must be a .dwg or .dxf drawing", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal", "failed to submit project", nil)
		}
		return
	}

	c.Set(middleware.StatusTransitionKey, "->"+string(job.Status))
	respond.JSON(c, http.StatusAccepted, gin.H{
		"projectId": job.ID,
		"status":    job.Status,
		"statusUrl": c.FullPath() + "/" + job.ID + "/status",
	})
}

func (h *Handler) status(c *gin.Context) {
	job, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeLookupError(c, err)
		return
	}
	respond.OK(c, NewStatusView(job))
}

func (h *Handler) results(c *gin.Context) {
	id := c.Param("id")
	job, err := h.Svc.Results(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotCompleted) {
			respond.Error(c, http.StatusConflict, "not_ready", "project processing has not completed", gin.H{
				"status":       job.Status,
				"currentStage": job.CurrentStage(),
				"progress":     job.Progress(),
			})
			return
		}
		h.writeLookupError(c, err)
		return
	}
	respond.OK(c, NewResultsView(job, downloadPath(c, id)))
}

func (h *Handler) download(c *gin.Context) {
	rc, name, err := h.Svc.OpenOutput(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotCompleted):
			respond.Error(c, http.StatusConflict, "not_ready", "project processing has not completed", nil)
		case errors.Is(err, ErrNoOutput):
			respond.Error(c, http.StatusNotFound, "not_found", "no output stored for project", nil)
		default:
			h.writeLookupError(c, err)
		}
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Type", "application/zip")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		telemetry.Warn("job.download_interrupted", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"job_id":     c.Param("id"),
			"err":        err,
		})
	}
}

func (h *Handler) cancel(c *gin.Context) {
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Svc.Cancel(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotCancellable) {
			respond.Error(c, http.StatusConflict, "not_cancellable", "project is not running in this process", nil)
			return
		}
		h.writeLookupError(c, err)
		return
	}
	respond.JSON(c, http.StatusAccepted, NewStatusView(job))
}

func (h *Handler) list(c *gin.Context) {
	limit, err := queryInt(c, "limit", 20)
	if err != nil || limit < 1 || limit > 100 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be between 1 and 100", nil)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "offset must be >= 0", nil)
		return
	}

	jobs, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "failed to list projects", nil)
		return
	}
	items := make([]SummaryView, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, NewSummaryView(j))
	}
	respond.OK(c, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *Handler) writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "project not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal", "failed to load project", nil)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func downloadPath(c *gin.Context, id string) string {
	p := c.Request.URL.Path
	if i := strings.LastIndex(p, "/results"); i >= 0 {
		return p[:i] + "/download"
	}
	return "/projects/" + id + "/download"
}
