package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/luiza-sangalli/segment/internal/models"
	"github.com/luiza-sangalli/segment/internal/pipeline"
	"github.com/luiza-sangalli/segment/internal/session"
	"github.com/luiza-sangalli/segment/internal/stats"
)

type statsResponse struct {
	Status string `json:"status"`
	stats.Stats
	Timestamp string `json:"timestamp"`
}

type sessionsResponse struct {
	Status string `json:"status"`
	session.Report
	Timestamp string `json:"timestamp"`
}

// RegisterQueryRoutes registers the read endpoints over the recent-events buffer.
//
// GET /recent?limit=10  newest entries, oldest first
// GET /stats            counters over the buffer
// GET /sessions         top sessions by last activity
func RegisterQueryRoutes(r gin.IRoutes, svc *pipeline.Service) {
	r.GET("/recent", func(c *gin.Context) {
		limit := pipeline.DefaultRecentLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		events, total := svc.Recent(limit)
		c.JSON(http.StatusOK, models.RecentResponse{
			Status:      "success",
			TotalEvents: total,
			Capacity:    svc.Capacity(),
			Events:      events,
			Timestamp:   timestamp(),
		})
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, statsResponse{
			Status:    "success",
			Stats:     svc.Stats(),
			Timestamp: timestamp(),
		})
	})

	r.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, sessionsResponse{
			Status:    "success",
			Report:    svc.Sessions(),
			Timestamp: timestamp(),
		})
	})
}
