package models

import (
	"time"
)

// GORM-compatible models with proper tags

// ActivityLogGorm represents the activity_log table with GORM tags. This is
// the operational log the engine's soft-fail paths report into (planner
// errors, cost recompute failures, admin overrides on locked projects).
type ActivityLogGorm struct {
	ID         uint      `gorm:"primaryKey;column:id" json:"id"`
	ProjectID  int       `gorm:"column:project_id" json:"project_id"`
	UserID     int       `gorm:"column:user_id" json:"user_id"`
	ActionType string    `gorm:"column:action_type;not null" json:"action_type"`
	Message    string    `gorm:"column:message;not null" json:"message"`
	IPAddress  string    `gorm:"column:ip_address" json:"ip_address"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for ActivityLogGorm
func (ActivityLogGorm) TableName() string {
	return "activity_log"
}

// Activity log action types.
const (
	LogActionSuccess      = "success"
	LogActionError        = "error"
	LogActionPlannerError = "planner_error"
	LogActionAdminEdit    = "admin_edit"
)
