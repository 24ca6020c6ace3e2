package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-authgate/meshgate/internal/middleware"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/services"
	"github.com/go-authgate/meshgate/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// queryValueTrue represents the string "true" used in query parameters
	queryValueTrue = "true"

	maxExportRows = 10000
)

// AuditHandler handles audit log operations
type AuditHandler struct {
	auditService *services.AuditService
	logger       *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *services.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger.Named("audit"),
	}
}

// parseFilters reads the shared filter query parameters. Org admins are
// always confined to their own tenant.
func parseFilters(c *gin.Context) store.AuditLogFilters {
	filters := store.AuditLogFilters{
		EventType:    models.EventType(c.Query("event_type")),
		ActorUserID:  c.Query("actor_user_id"),
		TenantID:     c.Query("tenant_id"),
		ResourceType: models.ResourceType(c.Query("resource_type")),
		ResourceID:   c.Query("resource_id"),
		Severity:     models.EventSeverity(c.Query("severity")),
		ActorIP:      c.Query("actor_ip"),
		Search:       c.Query("search"),
	}

	if successStr := c.Query("success"); successStr != "" {
		success := successStr == queryValueTrue
		filters.Success = &success
	}
	filters.StartTime = parseTime(c.Query("start_time"))
	filters.EndTime = parseTime(c.Query("end_time"))

	if user := middleware.CurrentUser(c); user != nil && user.Role == models.RoleOrgAdmin {
		filters.TenantID = user.TenantID
	}
	return filters
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (h *AuditHandler) logAccess(c *gin.Context, event models.EventType, action string, details models.AuditDetails) {
	h.auditService.Log(c.Request.Context(), services.AuditLogEntry{
		EventType:     event,
		Severity:      models.SeverityInfo,
		ResourceType:  models.ResourceAuditLog,
		Action:        action,
		Details:       details,
		Success:       true,
		RequestPath:   c.Request.URL.Path,
		RequestMethod: c.Request.Method,
		UserAgent:     c.Request.UserAgent(),
	})
}

// ListAuditLogs handles GET /api/admin/audit
//
//	@Summary		List audit logs
//	@Description	Org admins only ever see their own tenant.
//	@Tags			Audit
//	@Produce		json
//	@Security		BearerAuth
//	@Param			event_type		query		string	false	"Event type"
//	@Param			actor_user_id	query		string	false	"Actor user ID"
//	@Param			tenant_id		query		string	false	"Tenant ID"
//	@Param			severity		query		string	false	"Severity"	Enums(INFO, WARNING, ERROR, CRITICAL)
//	@Param			success			query		bool	false	"Outcome"
//	@Param			start_time		query		string	false	"RFC 3339 lower bound"
//	@Param			end_time		query		string	false	"RFC 3339 upper bound"
//	@Param			search			query		string	false	"Free text"
//	@Param			page			query		int		false	"Page number"	default(1)
//	@Param			page_size		query		int		false	"Page size"		default(20)
//	@Success		200				{object}	object{logs=[]object,pagination=store.PaginationResult}
//	@Failure		403				{object}	object{error=string}
//	@Router			/api/admin/audit [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	params := store.NewPaginationParams(page, pageSize, c.Query("search"))
	filters := parseFilters(c)

	logs, pagination, err := h.auditService.GetAuditLogs(c.Request.Context(), params, filters)
	if err != nil {
		h.logger.Error("failed to list audit logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve audit logs"})
		return
	}

	h.logAccess(c, models.EventTypeAuditLogView, "Viewed audit logs", models.AuditDetails{
		"page":      params.Page,
		"page_size": params.PageSize,
		"filters":   filters,
	})

	c.JSON(http.StatusOK, gin.H{
		"logs":       logs,
		"pagination": pagination,
	})
}

// GetAuditLogStats handles GET /api/admin/audit/stats. Without a range it
// covers the last 30 days.
//
//	@Summary		Audit log statistics
//	@Tags			Audit
//	@Produce		json
//	@Security		BearerAuth
//	@Param			start_time	query		string	false	"RFC 3339 lower bound"
//	@Param			end_time	query		string	false	"RFC 3339 upper bound"
//	@Success		200			{object}	object{stats=object,start_time=string,end_time=string}
//	@Failure		403			{object}	object{error=string}
//	@Router			/api/admin/audit/stats [get]
func (h *AuditHandler) GetAuditLogStats(c *gin.Context) {
	startTime := parseTime(c.Query("start_time"))
	endTime := parseTime(c.Query("end_time"))
	if startTime.IsZero() && endTime.IsZero() {
		endTime = time.Now()
		startTime = endTime.Add(-30 * 24 * time.Hour)
	}

	stats, err := h.auditService.GetAuditLogStats(c.Request.Context(), startTime, endTime)
	if err != nil {
		h.logger.Error("failed to compute audit stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve audit log statistics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":      stats,
		"start_time": startTime,
		"end_time":   endTime,
	})
}

// ExportAuditLogs handles GET /api/admin/audit/export as CSV.
//
//	@Summary		Export audit logs
//	@Description	Accepts the same filters as the list endpoint.
//	@Tags			Audit
//	@Produce		text/csv
//	@Security		BearerAuth
//	@Param			event_type	query		string	false	"Event type"
//	@Param			tenant_id	query		string	false	"Tenant ID"
//	@Param			start_time	query		string	false	"RFC 3339 lower bound"
//	@Param			end_time	query		string	false	"RFC 3339 upper bound"
//	@Success		200			{file}		file
//	@Failure		403			{object}	object{error=string}
//	@Router			/api/admin/audit/export [get]
func (h *AuditHandler) ExportAuditLogs(c *gin.Context) {
	filters := parseFilters(c)
	logs, _, err := h.auditService.GetAuditLogs(c.Request.Context(),
		store.PaginationParams{Page: 1, PageSize: maxExportRows}, filters)
	if err != nil {
		h.logger.Error("failed to export audit logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve audit logs"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(
		"attachment; filename=audit_logs_%s.csv",
		time.Now().Format("2006-01-02"),
	))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	if err := writer.Write([]string{
		"Event Time", "Event Type", "Severity", "Actor Username", "Actor IP",
		"Tenant", "Resource Type", "Resource ID", "Action", "Success", "Error Message",
	}); err != nil {
		return
	}
	for _, log := range logs {
		if err := writer.Write([]string{
			log.EventTime.Format(time.RFC3339),
			string(log.EventType),
			string(log.Severity),
			log.ActorUsername,
			log.ActorIP,
			log.TenantID,
			string(log.ResourceType),
			log.ResourceID,
			log.Action,
			strconv.FormatBool(log.Success),
			log.ErrorMessage,
		}); err != nil {
			return
		}
	}

	h.logAccess(c, models.EventTypeAuditLogExported, "Exported audit logs to CSV", models.AuditDetails{
		"record_count": len(logs),
		"filters":      filters,
	})
}
