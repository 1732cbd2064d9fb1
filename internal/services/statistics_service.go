package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/models"
)

// DashboardStats aggregates the counters shown on the back-office dashboard.
type DashboardStats struct {
	ActiveStudents     int64 `json:"active_students"`
	TotalStudents      int64 `json:"total_students"`
	ActiveClasses      int64 `json:"active_classes"`
	ActiveTeachers     int64 `json:"active_teachers"`
	PendingRequests    int64 `json:"pending_requests"`
	NotificationsToday int64 `json:"notifications_today"`
	RespondedToday     int64 `json:"responded_today"`
}

// StatisticsService computes aggregate counters for dashboards.
type StatisticsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatisticsService constructs a StatisticsService instance.
func NewStatisticsService(db *gorm.DB) (*StatisticsService, error) {
	if db == nil {
		return nil, errors.New("statistics service: db is required")
	}
	return &StatisticsService{db: db, now: time.Now}, nil
}

// Dashboard runs the counter queries and returns a snapshot.
func (s *StatisticsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	ctx = ensureContext(ctx)

	stats := &DashboardStats{}
	startOfDay := s.now().UTC().Truncate(24 * time.Hour)

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.ActiveStudents, s.db.WithContext(ctx).Model(&models.Student{}).Where("is_active = ?", true)},
		{&stats.TotalStudents, s.db.WithContext(ctx).Model(&models.Student{})},
		{&stats.ActiveClasses, s.db.WithContext(ctx).Model(&models.Class{}).Where("is_active = ?", true)},
		{&stats.ActiveTeachers, s.db.WithContext(ctx).Model(&models.User{}).Where("role = ? AND is_active = ?", models.RoleTeacher, true)},
		{&stats.PendingRequests, s.db.WithContext(ctx).Model(&models.Notification{}).Where("type = ? AND status = ?", models.NotificationTypeRequest, models.StatusPending)},
		{&stats.NotificationsToday, s.db.WithContext(ctx).Model(&models.Notification{}).Where("request_date >= ?", startOfDay)},
		{&stats.RespondedToday, s.db.WithContext(ctx).Model(&models.Notification{}).Where("response_date >= ?", startOfDay)},
	}

	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("statistics service: count: %w", err)
		}
	}

	return stats, nil
}
