package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/models"
)

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	scrapeErr := models.AsScrapeError(err)

	c.JSON(mapErrorToStatus(scrapeErr), models.ExtractResponse{
		Success:   false,
		Retryable: scrapeErr.Retryable(),
		Error:     scrapeErr.ToDetail(),
		Timing:    timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeLaunch:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeNoRecord:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeUnknownSource:
		return http.StatusNotFound // 404
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
