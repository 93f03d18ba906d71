package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/sources"
)

// Sources returns a handler for GET /api/v1/sources.
func Sources(reg *sources.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		all := reg.All()
		resp := models.SourcesResponse{Sources: make([]models.SourceInfo, 0, len(all))}
		for _, s := range all {
			resp.Sources = append(resp.Sources, SourceInfo(s))
		}
		c.JSON(http.StatusOK, resp)
	}
}

// SourceInfo describes a source for API and tool listings.
func SourceInfo(s *sources.Source) models.SourceInfo {
	return models.SourceInfo{
		ID:          s.ID,
		Label:       s.Label,
		Kind:        string(s.Kind),
		BaseURL:     s.BaseURL,
		Paginated:   s.Paginated(),
		DetailPages: s.Detail != nil,
	}
}
