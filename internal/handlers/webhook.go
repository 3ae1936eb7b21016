package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/luiza-sangalli/segment/internal/models"
	"github.com/luiza-sangalli/segment/internal/pipeline"
)

// maxBodyBytes bounds a single webhook payload.
const maxBodyBytes = 1 << 20

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// RegisterWebhookRoutes registers the ingestion endpoints.
//
// POST /segment
// - Body must be a JSON object; anything else is 400 and is not buffered
// - Every valid event is buffered, then filtered; 200 either way
// - 500 when processing of an accepted event fails
//
// POST /test
// - Echoes the body back; nothing is buffered or filtered
func RegisterWebhookRoutes(r gin.IRoutes, svc *pipeline.Service, log *logrus.Entry) {
	r.POST("/segment", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

		var doc models.Document
		if err := c.ShouldBindJSON(&doc); err != nil || doc == nil {
			log.WithError(err).Warn("invalid webhook payload")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		res, err := svc.Ingest(c.Request.Context(), doc)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error: " + err.Error()})
			return
		}

		if res.Status == models.StatusFiltered {
			c.JSON(http.StatusOK, models.IngestResponse{
				Status:    models.StatusFiltered,
				Message:   "event filtered by configured rules",
				EventType: res.EventType,
				Stage:     string(res.Decision.Stage),
				Timestamp: timestamp(),
			})
			return
		}

		c.JSON(http.StatusOK, models.IngestResponse{
			Status:    models.StatusSuccess,
			Message:   "event processed successfully",
			EventType: res.EventType,
			Timestamp: timestamp(),
			Result:    res.Outcome,
		})
	})

	r.POST("/test", func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
			return
		}

		var data any = map[string]any{}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &data); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
				return
			}
		}
		log.WithField("data", data).Info("test webhook received")

		c.JSON(http.StatusOK, gin.H{
			"status":        "success",
			"message":       "test webhook is working",
			"received_data": data,
			"timestamp":     timestamp(),
		})
	})
}
