package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *Handlers) {
	api := r.Group("/api")

	// Snapshot routes
	api.GET("/snapshots", h.ListSnapshots)
	api.DELETE("/snapshots", h.DeleteSnapshots)
	api.GET("/snapshots/:name", h.GetSnapshot)
	api.GET("/snapshots/:name/previous", h.CompareWithPrevious)
	api.POST("/snapshots/:name/restore", h.RestoreSnapshot)

	// Diff and file routes
	api.GET("/diff", h.DiffSnapshots)
	api.GET("/files", h.ListFiles)
}
