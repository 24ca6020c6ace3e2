package store

import (
	"context"
	"time"

	"github.com/go-authgate/meshgate/internal/models"

	"gorm.io/gorm"
)

// AuditLogFilters contains filter criteria for querying audit logs
type AuditLogFilters struct {
	EventType    models.EventType     `json:"event_type,omitempty"`
	ActorUserID  string               `json:"actor_user_id,omitempty"`
	TenantID     string               `json:"tenant_id,omitempty"`
	ResourceType models.ResourceType  `json:"resource_type,omitempty"`
	ResourceID   string               `json:"resource_id,omitempty"`
	Severity     models.EventSeverity `json:"severity,omitempty"`
	Success      *bool                `json:"success,omitempty"`
	StartTime    time.Time            `json:"start_time,omitzero"`
	EndTime      time.Time            `json:"end_time,omitzero"`
	ActorIP      string               `json:"actor_ip,omitempty"`
	Search       string               `json:"search,omitempty"` // Search in action, resource_name, actor_username
}

// AuditLogStats contains statistics about audit logs
type AuditLogStats struct {
	TotalEvents      int64                          `json:"total_events"`
	EventsByType     map[models.EventType]int64     `json:"events_by_type"`
	EventsBySeverity map[models.EventSeverity]int64 `json:"events_by_severity"`
	SuccessCount     int64                          `json:"success_count"`
	FailureCount     int64                          `json:"failure_count"`
}

func (s *Store) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(log).Error
}

// CreateAuditLogBatch writes a batch in chunks of 100 rows.
func (s *Store) CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(logs, 100).Error
}

// GetAuditLogsPaginated returns audit logs matching filters, newest first.
func (s *Store) GetAuditLogsPaginated(
	ctx context.Context,
	params PaginationParams,
	filters AuditLogFilters,
) ([]models.AuditLog, PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.EventType != "" {
		query = query.Where("event_type = ?", filters.EventType)
	}
	if filters.ActorUserID != "" {
		query = query.Where("actor_user_id = ?", filters.ActorUserID)
	}
	if filters.TenantID != "" {
		query = query.Where("tenant_id = ?", filters.TenantID)
	}
	if filters.ResourceType != "" {
		query = query.Where("resource_type = ?", filters.ResourceType)
	}
	if filters.ResourceID != "" {
		query = query.Where("resource_id = ?", filters.ResourceID)
	}
	if filters.Severity != "" {
		query = query.Where("severity = ?", filters.Severity)
	}
	if filters.Success != nil {
		query = query.Where("success = ?", *filters.Success)
	}
	if !filters.StartTime.IsZero() {
		query = query.Where("event_time >= ?", filters.StartTime)
	}
	if !filters.EndTime.IsZero() {
		query = query.Where("event_time <= ?", filters.EndTime)
	}
	if filters.ActorIP != "" {
		query = query.Where("actor_ip = ?", filters.ActorIP)
	}
	if filters.Search != "" {
		like := "%" + filters.Search + "%"
		query = query.Where(
			"action LIKE ? OR resource_name LIKE ? OR actor_username LIKE ?",
			like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var logs []models.AuditLog
	err := query.
		Order("event_time DESC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&logs).Error
	if err != nil {
		return nil, PaginationResult{}, err
	}

	return logs, CalculatePagination(total, params.Page, params.PageSize), nil
}

// DeleteOldAuditLogs removes entries older than cutoff.
func (s *Store) DeleteOldAuditLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}

// GetAuditLogStats aggregates audit logs between start and end.
func (s *Store) GetAuditLogStats(
	ctx context.Context,
	startTime, endTime time.Time,
) (AuditLogStats, error) {
	stats := AuditLogStats{
		EventsByType:     make(map[models.EventType]int64),
		EventsBySeverity: make(map[models.EventSeverity]int64),
	}

	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.AuditLog{})
		if !startTime.IsZero() {
			q = q.Where("event_time >= ?", startTime)
		}
		if !endTime.IsZero() {
			q = q.Where("event_time <= ?", endTime)
		}
		return q
	}

	if err := base().Count(&stats.TotalEvents).Error; err != nil {
		return stats, err
	}

	var byType []struct {
		EventType models.EventType
		Count     int64
	}
	if err := base().
		Select("event_type, COUNT(*) AS count").
		Group("event_type").
		Scan(&byType).Error; err != nil {
		return stats, err
	}
	for _, row := range byType {
		stats.EventsByType[row.EventType] = row.Count
	}

	var bySeverity []struct {
		Severity models.EventSeverity
		Count    int64
	}
	if err := base().
		Select("severity, COUNT(*) AS count").
		Group("severity").
		Scan(&bySeverity).Error; err != nil {
		return stats, err
	}
	for _, row := range bySeverity {
		stats.EventsBySeverity[row.Severity] = row.Count
	}

	if err := base().Where("success = ?", true).Count(&stats.SuccessCount).Error; err != nil {
		return stats, err
	}
	stats.FailureCount = stats.TotalEvents - stats.SuccessCount

	return stats, nil
}
