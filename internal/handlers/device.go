package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-authgate/meshgate/internal/middleware"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DeviceHandler struct {
	devices   *services.DeviceService
	reconcile *services.ReconcileService
	monitor   *services.StatusMonitor
	notifier  *services.DeviceNotifier
	logger    *zap.Logger
}

func NewDeviceHandler(
	devices *services.DeviceService,
	reconcile *services.ReconcileService,
	monitor *services.StatusMonitor,
	notifier *services.DeviceNotifier,
	logger *zap.Logger,
) *DeviceHandler {
	return &DeviceHandler{
		devices:   devices,
		reconcile: reconcile,
		monitor:   monitor,
		notifier:  notifier,
		logger:    logger.Named("devices"),
	}
}

// ListDevices handles GET /api/devices
//
//	@Summary		List devices
//	@Description	Users see their own devices; managers see every device in their scope.
//	@Tags			Devices
//	@Produce		json
//	@Security		BearerAuth
//	@Param			status		query		string	false	"Filter by status"	Enums(pending, active, revoked)
//	@Param			owner_id	query		string	false	"Filter by owner (managers only)"
//	@Param			search		query		string	false	"Match name or hostname"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Success		200			{object}	object{devices=[]models.Device,pagination=store.PaginationResult}
//	@Failure		401			{object}	object{error=string}
//	@Router			/api/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	devices, pagination, err := h.devices.ListDevices(c.Request.Context(), middleware.CurrentUser(c),
		services.ListDevicesParams{
			Status:   models.DeviceStatus(c.Query("status")),
			OwnerID:  c.Query("owner_id"),
			Search:   c.Query("search"),
			Page:     page,
			PageSize: pageSize,
		})
	if err != nil {
		respondError(c, h.logger, "list_devices", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices":    devices,
		"pagination": pagination,
	})
}

// GetDevice handles GET /api/devices/:id
//
//	@Summary		Get device
//	@Tags			Devices
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Device ID"
//	@Success		200	{object}	object{device=models.Device}
//	@Failure		404	{object}	object{error=string}	"Unknown or outside the caller's scope"
//	@Router			/api/devices/{id} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.devices.GetDevice(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get_device", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": device})
}

// ListEvents handles GET /api/devices/:id/events
//
//	@Summary		List device events
//	@Tags			Devices
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"Device ID"
//	@Param			limit	query		int		false	"Maximum events, newest first"	default(50)
//	@Success		200		{object}	object{events=[]models.DeviceEvent}
//	@Failure		404		{object}	object{error=string}
//	@Router			/api/devices/{id}/events [get]
func (h *DeviceHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.devices.ListEvents(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), limit)
	if err != nil {
		respondError(c, h.logger, "list_events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// RevokeDevice handles POST /api/devices/:id/revoke
//
//	@Summary		Revoke device
//	@Tags			Devices
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string					true	"Device ID"
//	@Param			request	body		object{reason=string}	false	"Optional reason"
//	@Success		200		{object}	object{success=bool,device=models.Device}
//	@Failure		403		{object}	object{error=string}
//	@Failure		404		{object}	object{error=string}
//	@Router			/api/devices/{id}/revoke [post]
func (h *DeviceHandler) RevokeDevice(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	// The body is optional.
	_ = c.ShouldBindJSON(&body)

	device, err := h.devices.RevokeDevice(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), body.Reason)
	if err != nil {
		respondError(c, h.logger, "revoke_device", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "device": device})
}

// Sync handles POST /api/devices/sync: one refresh of active devices followed
// by one reconcile sweep of pending ones.
//
//	@Summary		Synchronize with the directory
//	@Tags			Devices
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	object{success=bool,active=services.SyncSummary,pending=services.SyncSummary}
//	@Failure		403	{object}	object{error=string}
//	@Failure		500	{object}	object{error=string}
//	@Router			/api/devices/sync [post]
func (h *DeviceHandler) Sync(c *gin.Context) {
	active, err := h.reconcile.SyncAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "sync_all", err)
		return
	}
	pending, err := h.reconcile.ReconcilePending(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "reconcile_pending", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"active":  active,
		"pending": pending,
	})
}

// Status handles GET /api/devices/status
//
//	@Summary		Connection status
//	@Description	Status of the caller's device matching fingerprint, or of their first active device. Without a fingerprint one is derived from request headers.
//	@Tags			Devices
//	@Produce		json
//	@Security		BearerAuth
//	@Param			fingerprint	query		string	false	"Client fingerprint"
//	@Success		200			{object}	services.ConnectionStatus
//	@Router			/api/devices/status [get]
func (h *DeviceHandler) Status(c *gin.Context) {
	user := middleware.CurrentUser(c)
	status, err := h.monitor.Check(c.Request.Context(), user.ID, deviceFingerprint(c, c.Query("fingerprint")))
	if err != nil {
		respondError(c, h.logger, "status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// StatusStream handles GET /api/devices/status/stream as server-sent events.
// It ends when the client goes away.
//
//	@Summary		Connection status stream
//	@Description	Server-sent "status" events, sent on every poll interval and whenever one of the caller's devices changes.
//	@Tags			Devices
//	@Produce		text/event-stream
//	@Security		BearerAuth
//	@Param			fingerprint	query		string	false	"Client fingerprint"
//	@Success		200			{object}	services.ConnectionStatus
//	@Router			/api/devices/status/stream [get]
func (h *DeviceHandler) StatusStream(c *gin.Context) {
	user := middleware.CurrentUser(c)
	poller := h.monitor.NewPoller(h.notifier, user.ID, deviceFingerprint(c, c.Query("fingerprint")))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	err := poller.Run(ctx, func(status *services.ConnectionStatus) error {
		c.SSEvent("status", status)
		c.Writer.Flush()
		return ctx.Err()
	})
	if err != nil && ctx.Err() == nil {
		h.logger.Warn("status stream ended", zap.String("user_id", user.ID), zap.Error(err))
	}
}
