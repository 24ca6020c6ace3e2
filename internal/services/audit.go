package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/store"
	"github.com/go-authgate/meshgate/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const auditBatchSize = 100

// AuditLogEntry represents the data needed to create an audit log entry
type AuditLogEntry struct {
	EventType     models.EventType
	Severity      models.EventSeverity
	ActorUserID   string
	ActorUsername string
	ActorIP       string
	TenantID      string
	ResourceType  models.ResourceType
	ResourceID    string
	ResourceName  string
	Action        string
	Details       models.AuditDetails
	Success       bool
	ErrorMessage  string
	UserAgent     string
	RequestPath   string
	RequestMethod string
}

// AuditService handles audit logging operations
type AuditService struct {
	store      *store.Store
	logger     *zap.Logger
	enabled    bool
	bufferSize int

	// Async logging channel
	logChan chan *models.AuditLog

	// Batch buffer
	batchBuffer []*models.AuditLog
	batchMutex  sync.Mutex
	batchTicker *time.Ticker

	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

// NewAuditService creates a new audit service. A disabled service accepts
// every call and writes nothing.
func NewAuditService(s *store.Store, logger *zap.Logger, enabled bool, bufferSize int) *AuditService {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	service := &AuditService{
		store:       s,
		logger:      logger.Named("audit"),
		enabled:     enabled,
		bufferSize:  bufferSize,
		logChan:     make(chan *models.AuditLog, bufferSize),
		batchBuffer: make([]*models.AuditLog, 0, auditBatchSize),
		batchTicker: time.NewTicker(time.Second),
		shutdownCh:  make(chan struct{}),
	}

	if enabled {
		service.wg.Add(1)
		go service.worker()
		service.logger.Info("audit service started", zap.Int("buffer_size", bufferSize))
	} else {
		service.batchTicker.Stop()
		service.logger.Info("audit service is disabled")
	}

	return service
}

func (s *AuditService) worker() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.logChan:
			s.addToBatch(entry)

		case <-s.batchTicker.C:
			s.flushBatch()

		case <-s.shutdownCh:
			// Drain whatever is still queued before the final flush.
			for {
				select {
				case entry := <-s.logChan:
					s.addToBatch(entry)
				default:
					s.flushBatch()
					return
				}
			}
		}
	}
}

func (s *AuditService) addToBatch(entry *models.AuditLog) {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()

	s.batchBuffer = append(s.batchBuffer, entry)
	if len(s.batchBuffer) >= auditBatchSize {
		s.flushBatchUnsafe()
	}
}

func (s *AuditService) flushBatch() {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()
	s.flushBatchUnsafe()
}

// flushBatchUnsafe flushes the batch buffer without locking (caller must hold lock)
func (s *AuditService) flushBatchUnsafe() {
	if len(s.batchBuffer) == 0 {
		return
	}

	toWrite := make([]*models.AuditLog, len(s.batchBuffer))
	copy(toWrite, s.batchBuffer)
	s.batchBuffer = s.batchBuffer[:0]

	if err := s.store.CreateAuditLogBatch(context.Background(), toWrite); err != nil {
		s.logger.Error("failed to write audit log batch",
			zap.Int("entries", len(toWrite)),
			zap.Error(err),
		)
	}
}

func (s *AuditService) buildAuditLog(ctx context.Context, entry AuditLogEntry) *models.AuditLog {
	if entry.ActorIP == "" {
		entry.ActorIP = util.GetIPFromContext(ctx)
	}
	if entry.ActorUsername == "" {
		entry.ActorUsername = util.GetUsernameFromContext(ctx)
	}
	if entry.ActorUserID == "" {
		if user := util.GetUserFromContext(ctx); user != nil {
			entry.ActorUserID = user.ID
		}
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}

	now := time.Now()
	return &models.AuditLog{
		ID:            uuid.New().String(),
		EventType:     entry.EventType,
		EventTime:     now,
		Severity:      entry.Severity,
		ActorUserID:   entry.ActorUserID,
		ActorUsername: entry.ActorUsername,
		ActorIP:       entry.ActorIP,
		TenantID:      entry.TenantID,
		ResourceType:  entry.ResourceType,
		ResourceID:    entry.ResourceID,
		ResourceName:  entry.ResourceName,
		Action:        entry.Action,
		Details:       maskSensitiveDetails(entry.Details),
		Success:       entry.Success,
		ErrorMessage:  entry.ErrorMessage,
		UserAgent:     entry.UserAgent,
		RequestPath:   entry.RequestPath,
		RequestMethod: entry.RequestMethod,
		CreatedAt:     now,
	}
}

// Log records an audit log entry asynchronously. When the buffer is full
// the entry is dropped with a warning rather than blocking the caller.
func (s *AuditService) Log(ctx context.Context, entry AuditLogEntry) {
	if !s.enabled {
		return
	}

	auditLog := s.buildAuditLog(ctx, entry)
	select {
	case s.logChan <- auditLog:
	default:
		s.logger.Warn("audit log buffer full, dropping event",
			zap.String("event_type", string(entry.EventType)),
			zap.String("action", entry.Action),
		)
	}
}

// LogSync records an audit log entry synchronously (for critical events)
func (s *AuditService) LogSync(ctx context.Context, entry AuditLogEntry) error {
	if !s.enabled {
		return nil
	}
	return s.store.CreateAuditLog(ctx, s.buildAuditLog(ctx, entry))
}

// GetAuditLogs retrieves audit logs with pagination and filtering
func (s *AuditService) GetAuditLogs(
	ctx context.Context,
	params store.PaginationParams,
	filters store.AuditLogFilters,
) ([]models.AuditLog, store.PaginationResult, error) {
	return s.store.GetAuditLogsPaginated(ctx, params, filters)
}

// CleanupOldLogs deletes audit logs older than the retention period
func (s *AuditService) CleanupOldLogs(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.DeleteOldAuditLogs(ctx, time.Now().Add(-retention))
}

func (s *AuditService) GetAuditLogStats(
	ctx context.Context,
	startTime, endTime time.Time,
) (store.AuditLogStats, error) {
	return s.store.GetAuditLogStats(ctx, startTime, endTime)
}

// Shutdown flushes pending entries and stops the worker.
func (s *AuditService) Shutdown(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	s.batchTicker.Stop()
	close(s.shutdownCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service shut down gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit service shutdown timeout: %w", ctx.Err())
	}
}

// maskSensitiveDetails masks sensitive information in audit log details
func maskSensitiveDetails(details models.AuditDetails) models.AuditDetails {
	if details == nil {
		return details
	}

	masked := make(models.AuditDetails, len(details))
	for key, value := range details {
		if isSensitiveField(key) {
			masked[key] = "***REDACTED***"
			continue
		}

		if isPartialMaskField(key) {
			if str, ok := value.(string); ok && len(str) > 12 {
				masked[key] = str[:8] + "..." + str[len(str)-4:]
				continue
			}
		}

		masked[key] = value
	}

	return masked
}

func isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	sensitiveFields := []string{
		"password",
		"client_secret",
		"token",
		"auth_key",
		"secret",
		"pepper",
	}

	for _, field := range sensitiveFields {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}

func isPartialMaskField(key string) bool {
	key = strings.ToLower(key)
	partialMaskFields := []string{
		"fingerprint",
		"external_device_id",
	}

	for _, field := range partialMaskFields {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}
