package api

import (
	"battery_project/internal/batch"
	"battery_project/internal/config"
	"battery_project/internal/extractor"
	"battery_project/internal/session"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, cfg *config.Config, store *session.Store, controller *batch.Controller, info extractor.InfoClient) {
	h := NewHandler(cfg, store, controller, info)

	api := r.Group("/api")
	{
		// Uploads
		api.POST("/images", h.UploadImages)
		api.POST("/archive", h.UploadArchive)

		// Batch processing
		api.POST("/batch/run", h.RunBatch)
		api.GET("/batch/progress", h.GetProgress)

		// Jobs
		jobs := api.Group("/jobs")
		{
			jobs.GET("", h.GetJobs)
			jobs.POST("/:id/requeue", h.RequeueJob)
			jobs.POST("/:id/resolve", h.ResolveDuplicate)
		}

		// Batteries
		batteries := api.Group("/batteries")
		{
			batteries.GET("", h.GetBatteries)
			batteries.GET("/:id/series", h.GetSeries)
			batteries.GET("/:id/view", h.GetView)
			batteries.GET("/:id/selection", h.GetSelection)
			batteries.GET("/:id/chartinfo", h.GetChartInfo)
		}

		// Session state
		sess := api.Group("/session")
		{
			sess.GET("/export", h.ExportSession)
			sess.POST("/import", h.ImportSession)
			sess.POST("/clear", h.ClearSession)
		}

		api.GET("/stats", h.GetStats)
	}
}
