package handlers

import (
	"net/http"
	"strings"

	"github.com/go-authgate/meshgate/internal/fingerprint"
	"github.com/go-authgate/meshgate/internal/middleware"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Enrollment actions accepted by POST /api/enrollment.
const (
	ActionGenerateToken       = "generate_token"
	ActionEnroll              = "enroll"
	ActionVerify              = "verify"
	ActionCreatePendingDevice = "create_pending_device"
	ActionCheckStatus         = "check_tailscale_status"
)

// enrollmentRequest is the union of every action's fields.
type enrollmentRequest struct {
	Action       string            `json:"action"        enums:"generate_token,enroll,verify,create_pending_device,check_tailscale_status"`
	DeviceID     string            `json:"device_id"`
	DeviceName   string            `json:"device_name"`
	DeviceType   models.DeviceType `json:"device_type"`
	OS           string            `json:"os"`
	HostnameHint string            `json:"hostname_hint"`
	Token        string            `json:"token"`
	Fingerprint  string            `json:"fingerprint"`
	UserID       string            `json:"user_id"`
	TenantID     string            `json:"tenant_id"`
	AuthKey      string            `json:"auth_key"`
}

type EnrollmentHandler struct {
	enrollment *services.EnrollmentService
	reconcile  *services.ReconcileService
	devices    *services.DeviceService
	verifyRL   *middleware.RateLimiter
	generateRL *middleware.RateLimiter
	logger     *zap.Logger
}

// NewEnrollmentHandler wires the action endpoint. Either limiter may be nil
// to disable limiting for that action group.
func NewEnrollmentHandler(
	enrollment *services.EnrollmentService,
	reconcile *services.ReconcileService,
	devices *services.DeviceService,
	verifyRL, generateRL *middleware.RateLimiter,
	logger *zap.Logger,
) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollment: enrollment,
		reconcile:  reconcile,
		devices:    devices,
		verifyRL:   verifyRL,
		generateRL: generateRL,
		logger:     logger.Named("enrollment"),
	}
}

// Handle serves POST /api/enrollment. The route runs OptionalAuth; every
// action except verify then requires a user.
//
//	@Summary		Enrollment action
//	@Description	Dispatches on action: generate_token, enroll, verify, create_pending_device or check_tailscale_status. Only verify is allowed without a bearer token. enroll derives a fingerprint from request headers when none is supplied.
//	@Tags			Enrollment
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		enrollmentRequest																														true	"Action and its fields"
//	@Success		200		{object}	object{success=bool,device_id=string,token=string,expires_at=string,has_auth_key=bool,status=string}									"generate_token, enroll (existing device) or check_tailscale_status"
//	@Success		201		{object}	object{success=bool,device_id=string,status=string,created=bool}															"enroll created a device, or create_pending_device succeeded"
//	@Failure		400		{object}	object{error=string}																										"Validation failed, unknown action or no pre-authorization key"
//	@Failure		401		{object}	object{error=string}																										"Authentication required"
//	@Failure		403		{object}	object{error=string}																										"Forbidden"
//	@Failure		404		{object}	object{error=string}																										"Invalid or expired token, or unknown device or user"
//	@Failure		409		{object}	object{error=string}																										"Device has been revoked"
//	@Failure		429		{object}	object{error=string}																										"Rate limit exceeded"
//	@Router			/api/enrollment [post]
func (h *EnrollmentHandler) Handle(c *gin.Context) {
	var req enrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return
	}

	if req.Action == ActionVerify {
		if h.verifyRL != nil && !h.verifyRL.Allow(c) {
			return
		}
		h.verify(c, req)
		return
	}

	user := middleware.CurrentUser(c)
	if user == nil {
		c.Header("WWW-Authenticate", `Bearer realm="meshgate"`)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	switch req.Action {
	case ActionGenerateToken:
		if h.generateRL != nil && !h.generateRL.Allow(c) {
			return
		}
		h.generateToken(c, user, req)
	case ActionEnroll:
		if h.generateRL != nil && !h.generateRL.Allow(c) {
			return
		}
		h.silentEnroll(c, user, req)
	case ActionCreatePendingDevice:
		h.createPending(c, user, req)
	case ActionCheckStatus:
		h.checkStatus(c, user, req)
	case "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + req.Action})
	}
}

func (h *EnrollmentHandler) generateToken(c *gin.Context, user *models.User, req enrollmentRequest) {
	ticket, err := h.enrollment.GenerateToken(c.Request.Context(), services.GenerateTokenRequest{
		OwnerID:      user.ID,
		TenantID:     user.TenantID,
		DeviceName:   req.DeviceName,
		DeviceType:   req.DeviceType,
		OS:           req.OS,
		HostnameHint: req.HostnameHint,
	})
	if err != nil {
		respondError(c, h.logger, ActionGenerateToken, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"device_id":    ticket.DeviceID,
		"token":        ticket.Token,
		"expires_at":   ticket.ExpiresAt,
		"has_auth_key": ticket.HasExternalKey,
		"status":       ticket.Status,
	})
}

func (h *EnrollmentHandler) verify(c *gin.Context, req enrollmentRequest) {
	result, err := h.enrollment.Verify(c.Request.Context(), services.VerifyRequest{
		Token:       req.Token,
		Fingerprint: req.Fingerprint,
		DeviceType:  req.DeviceType,
	})
	if err != nil {
		respondError(c, h.logger, ActionVerify, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"device_id":   result.DeviceID,
		"device_name": result.DeviceName,
		"tenant_name": result.TenantName,
		"auth_key":    result.ExternalAuthKey,
		"tags":        result.ExternalTags,
		"group":       result.ExternalGroup,
		"expires_at":  result.ExpiresAt,
	})
}

func (h *EnrollmentHandler) silentEnroll(c *gin.Context, user *models.User, req enrollmentRequest) {
	result, err := h.enrollment.SilentEnroll(c.Request.Context(), services.SilentEnrollRequest{
		OwnerID:     user.ID,
		TenantID:    user.TenantID,
		DeviceName:  req.DeviceName,
		DeviceType:  req.DeviceType,
		OS:          req.OS,
		Fingerprint: deviceFingerprint(c, req.Fingerprint),
	})
	if err != nil {
		respondError(c, h.logger, ActionEnroll, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"success":   true,
		"device_id": result.DeviceID,
		"status":    result.Status,
		"created":   result.Created,
	})
}

func (h *EnrollmentHandler) createPending(c *gin.Context, user *models.User, req enrollmentRequest) {
	ticket, err := h.enrollment.CreatePendingForUser(c.Request.Context(), user, services.CreatePendingRequest{
		TargetUserID: req.UserID,
		TenantID:     req.TenantID,
		DeviceName:   req.DeviceName,
		DeviceType:   req.DeviceType,
		OS:           req.OS,
		AuthKey:      req.AuthKey,
		HostnameHint: req.HostnameHint,
	})
	if err != nil {
		respondError(c, h.logger, ActionCreatePendingDevice, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"device_id":    ticket.DeviceID,
		"token":        ticket.Token,
		"expires_at":   ticket.ExpiresAt,
		"has_auth_key": ticket.HasExternalKey,
		"status":       ticket.Status,
	})
}

// checkStatus reconciles one device. Only its owner or a manager in scope may
// ask; anyone else sees it as missing.
func (h *EnrollmentHandler) checkStatus(c *gin.Context, user *models.User, req enrollmentRequest) {
	if req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id is required"})
		return
	}
	if _, err := h.devices.GetDevice(c.Request.Context(), user, req.DeviceID); err != nil {
		respondError(c, h.logger, ActionCheckStatus, err)
		return
	}

	result, err := h.reconcile.Reconcile(c.Request.Context(), req.DeviceID)
	if err != nil {
		respondError(c, h.logger, ActionCheckStatus, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"connected": result.Connected,
		"status":    result.Status,
		"hostname":  result.Hostname,
		"ip":        result.IP,
	})
}

// deviceFingerprint prefers the fingerprint the client computed and falls
// back to one derived from the request headers.
func deviceFingerprint(c *gin.Context, supplied string) string {
	if supplied = strings.TrimSpace(supplied); supplied != "" {
		return supplied
	}
	return fingerprint.Generate(fingerprint.FromRequest(c.Request))
}
