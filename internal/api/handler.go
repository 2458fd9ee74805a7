package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"battery_project/internal/archive"
	"battery_project/internal/batch"
	"battery_project/internal/config"
	"battery_project/internal/domain"
	"battery_project/internal/extractor"
	"battery_project/internal/pipeline"
	"battery_project/internal/session"
	"battery_project/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests
type Handler struct {
	cfg        *config.Config
	store      *session.Store
	controller *batch.Controller
	info       extractor.InfoClient
}

// NewHandler creates a new handler
func NewHandler(cfg *config.Config, store *session.Store, controller *batch.Controller, info extractor.InfoClient) *Handler {
	return &Handler{cfg: cfg, store: store, controller: controller, info: info}
}

// UploadImages handles POST /api/images (multipart, repeated "images" field)
func (h *Handler) UploadImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No images supplied"})
		return
	}

	jobs := make([]domain.ImageJob, 0, len(files))
	for _, fh := range files {
		if fh.Size > h.cfg.MaxImageBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, h.cfg.MaxImageBytes),
			})
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot read " + fh.Filename})
			return
		}
		payload, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot read " + fh.Filename})
			return
		}

		job := h.controller.Enqueue(fh.Filename, fh.Header.Get("Content-Type"), payload)
		job.Payload = nil
		jobs = append(jobs, job)
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

// UploadArchive handles POST /api/archive (one "archive" ZIP field)
func (h *Handler) UploadArchive(c *gin.Context) {
	fh, err := c.FormFile("archive")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No archive supplied"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot read archive"})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot read archive"})
		return
	}

	entries, err := archive.ExpandZip(data, h.cfg.MaxImageBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobs := make([]domain.ImageJob, 0, len(entries))
	for _, e := range entries {
		job := h.controller.Enqueue(e.Name, e.MIME, e.Payload)
		job.Payload = nil
		jobs = append(jobs, job)
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

// RunBatch handles POST /api/batch/run
func (h *Handler) RunBatch(c *gin.Context) {
	if err := h.controller.RunBatch(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	counts := h.controller.StatusCounts()
	c.JSON(http.StatusOK, gin.H{
		"status":   "done",
		"progress": h.controller.Progress(),
		"counts":   counts,
	})
}

// GetProgress handles GET /api/batch/progress
func (h *Handler) GetProgress(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"progress":    h.controller.Progress(),
		"concurrency": h.controller.Concurrency(),
	})
}

// GetJobs handles GET /api/jobs
func (h *Handler) GetJobs(c *gin.Context) {
	jobs := h.controller.Jobs()
	c.JSON(http.StatusOK, gin.H{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

// RequeueJob handles POST /api/jobs/:id/requeue
func (h *Handler) RequeueJob(c *gin.Context) {
	if err := h.controller.Requeue(c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// ResolveDuplicate handles POST /api/jobs/:id/resolve?action=process|skip
func (h *Handler) ResolveDuplicate(c *gin.Context) {
	if err := h.controller.ResolveDuplicate(c.Param("id"), c.Query("action")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

// GetBatteries handles GET /api/batteries
func (h *Handler) GetBatteries(c *gin.Context) {
	batteries := h.store.Batteries()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(batteries),
		"batteries": batteries,
	})
}

// GetSeries handles GET /api/batteries/:id/series
func (h *Handler) GetSeries(c *gin.Context) {
	series, ok := h.store.Series(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown battery"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(series),
		"series": series,
	})
}

// GetView handles GET /api/batteries/:id/view?range=1d|1w|1m|all
func (h *Handler) GetView(c *gin.Context) {
	r, err := domain.ParseRangeFilter(c.Query("range"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	series, ok := h.store.Series(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown battery"})
		return
	}

	view := pipeline.BuildView(series, r, time.Now(), h.cfg.GapThreshold)
	c.JSON(http.StatusOK, view)
}

// GetSelection handles GET /api/batteries/:id/selection?start=..&end=..
// Start and end are epoch milliseconds from a chart brush; the response maps
// them back to canonical series indices.
func (h *Handler) GetSelection(c *gin.Context) {
	start, err1 := strconv.ParseInt(c.Query("start"), 10, 64)
	end, err2 := strconv.ParseInt(c.Query("end"), 10, 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end must be epoch milliseconds"})
		return
	}

	series, ok := h.store.Series(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown battery"})
		return
	}

	first, last, ok := pipeline.ResolveSelection(series, start, end)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"selected": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"selected":    true,
		"first_index": first,
		"last_index":  last,
		"first_ts":    series[first].Timestamp,
		"last_ts":     series[last].Timestamp,
	})
}

// GetChartInfo handles GET /api/batteries/:id/chartinfo. Stale or missing
// info is regenerated inline; a failed regeneration serves whatever is
// cached, since chart info is advisory and never a user-facing error.
func (h *Handler) GetChartInfo(c *gin.Context) {
	batteryID := c.Param("id")
	info, stale := h.store.ChartInfo(batteryID)
	if info == nil && !stale {
		// Store has never seen this battery.
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown battery"})
		return
	}

	if stale && h.info != nil {
		metrics := h.store.MetricNames(batteryID)
		series, _ := h.store.Series(batteryID)
		insights := fmt.Sprintf("%d merged readings", len(series))

		fresh, err := h.info.ChartInfo(c.Request.Context(), metrics, "all", insights)
		if err != nil {
			logger.Warnf("Chart info refresh failed for %s: %v", batteryID, err)
		} else {
			h.store.SetChartInfo(batteryID, fresh)
			info = &fresh
		}
	}

	if info == nil {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "chart_info": info})
}

// ExportSession handles GET /api/session/export
func (h *Handler) ExportSession(c *gin.Context) {
	data, err := h.store.Export()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=battery-session.json")
	c.Data(http.StatusOK, "application/json", data)
}

// ImportSession handles POST /api/session/import (raw JSON body or a
// "session" form file). A malformed blob is rejected wholesale.
func (h *Handler) ImportSession(c *gin.Context) {
	var data []byte
	if fh, err := c.FormFile("session"); err == nil {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot read session file"})
			return
		}
		data, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot read session file"})
			return
		}
	} else {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil || len(body) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Empty import body"})
			return
		}
		data = body
	}

	if err := h.store.Import(data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "imported",
		"batteries": h.store.Batteries(),
	})
}

// ClearSession handles POST /api/session/clear
func (h *Handler) ClearSession(c *gin.Context) {
	h.store.Clear()
	h.controller.Reset()
	logger.Info("Session cleared")
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// GetStats handles GET /api/stats
func (h *Handler) GetStats(c *gin.Context) {
	counts := h.controller.StatusCounts()
	stats := domain.Stats{
		Batteries:      len(h.store.Batteries()),
		TotalPoints:    h.store.TotalPoints(),
		JobsQueued:     counts[domain.StatusQueued],
		JobsProcessing: counts[domain.StatusProcessing],
		JobsSuccess:    counts[domain.StatusSuccess],
		JobsDuplicate:  counts[domain.StatusDuplicate],
		JobsError:      counts[domain.StatusError],
		Progress:       h.controller.Progress(),
		Concurrency:    h.controller.Concurrency(),
	}
	c.JSON(http.StatusOK, stats)
}
