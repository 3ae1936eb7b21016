package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luiza-sangalli/segment/internal/filter"
	"github.com/luiza-sangalli/segment/internal/pipeline"
)

// RegisterFilterRoutes registers the filter configuration endpoints.
//
// GET /filters  returns the current rule set
// POST /filters merges recognised keys; unknown keys are ignored.
// guard runs before the update handler.
func RegisterFilterRoutes(r gin.IRoutes, svc *pipeline.Service, guard gin.HandlerFunc) {
	r.GET("/filters", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "success",
			"filters":   svc.Filters(),
			"timestamp": timestamp(),
		})
	})

	r.POST("/filters", guard, func(c *gin.Context) {
		var partial map[string]json.RawMessage
		if err := c.ShouldBindJSON(&partial); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
			return
		}

		cfg, keys, err := svc.UpdateFilters(partial)
		if err != nil {
			if errors.Is(err, filter.ErrInvalidValue) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error: " + err.Error()})
			return
		}
		if keys == nil {
			keys = []string{}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":          "success",
			"message":         "filters updated",
			"updated_keys":    keys,
			"updated_filters": cfg,
			"timestamp":       timestamp(),
		})
	})
}
