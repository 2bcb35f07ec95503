package handlers

import (
	"net/http"
	"strconv"

	"buildcost/models"
	"buildcost/storage"

	"github.com/gin-gonic/gin"
)

// GetActivityLogsHandler lists activity log entries
// @Summary Get activity logs
// @Description List recent activity log entries, optionally scoped to one project. Planner soft-fail reports land here.
// @Tags ActivityLogs
// @Produce json
// @Param project_id query int false "Project ID filter"
// @Param limit query int false "Max rows (default 100)"
// @Success 200 {array} models.ActivityLogGorm
// @Failure 500 {object} models.ErrorResponse
// @Router /api/activity-logs [get]
func GetActivityLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gormDB := storage.GetGormDB()
		if gormDB == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Activity log unavailable"})
			return
		}

		limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if err != nil || limit <= 0 || limit > 1000 {
			limit = 100
		}

		query := gormDB.Order("created_at DESC").Limit(limit)
		if projectID, err := strconv.Atoi(c.DefaultQuery("project_id", "0")); err == nil && projectID > 0 {
			query = query.Where("project_id = ?", projectID)
		}

		var logs []models.ActivityLogGorm
		if err := query.Find(&logs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load activity logs", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, logs)
	}
}
