package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/scraper"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports "busy" while an extraction holds the session.
func Health(rn *scraper.Runner, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		busy := rn.Busy()

		status := "healthy"
		if busy {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Engine:  rn.Engine(),
			Busy:    busy,
			Version: Version,
		})
	}
}
