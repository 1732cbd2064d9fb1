package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/internal/services"
	"github.com/schoolgate/schoolgate/pkg/response"
)

// StatisticsHandler serves dashboard aggregates.
type StatisticsHandler struct {
	stats *services.StatisticsService
}

func NewStatisticsHandler(stats *services.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{stats: stats}
}

// GET /api/statistics/dashboard
func (h *StatisticsHandler) Dashboard(c *gin.Context) {
	stats, err := h.stats.Dashboard(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}
