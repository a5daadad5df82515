// Package httpserver exposes the mobile session and sync API over JSON/REST.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unityaid/mobile-sync/internal/config"
	"github.com/unityaid/mobile-sync/internal/model"
	"github.com/unityaid/mobile-sync/internal/service"
)

// Pinger reports storage connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler wires services into gin routes.
type Handler struct {
	sessions service.SessionManager
	registry service.DeviceRegistry
	engine   service.SyncEngine
	db       Pinger
	log      *zap.Logger
	version  string
}

// New constructs a Handler with injected services.
func New(sessions service.SessionManager, registry service.DeviceRegistry, engine service.SyncEngine, db Pinger, log *zap.Logger, version string) *Handler {
	return &Handler{sessions: sessions, registry: registry, engine: engine, db: db, log: log, version: version}
}

// Routes builds the router with middleware and all endpoint groups.
func (h *Handler) Routes(cfg config.HTTPServer) *gin.Engine {
	r := gin.New()
	r.Use(Recover(h.log), Logging(h.log), Timeout(cfg.RequestTimeout))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", h.Health)

	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.Use(Auth(h.sessions))
		auth.POST("/logout", h.Logout)
	}

	sync := r.Group("/sync", Auth(h.sessions))
	{
		sync.POST("/initial", h.InitialSync)
		sync.POST("/incremental", h.IncrementalSync)
		sync.POST("/bulk-upload", h.BulkUpload)
		sync.GET("/logs", h.SyncLogs)
	}

	devices := r.Group("/devices", Auth(h.sessions))
	{
		devices.GET("", h.ListDevices)
		devices.POST("/push-token", h.UpdatePushToken)
	}

	return r
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	model.DeviceDescriptor
}

type userResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	Role          model.Role `json:"role"`
	Organization  string     `json:"organization,omitempty"`
	PreferredLang string     `json:"preferred_language"`
	Verified      bool       `json:"is_verified"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID: u.ID.String(), Email: u.Email, Username: u.Username, Role: u.Role,
		Organization: u.Organization, PreferredLang: u.PreferredLang, Verified: u.Verified,
	}
}

// Login authenticates, registers the device, and returns both credentials.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	tokens, user, device, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password, req.DeviceDescriptor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":          toUserResponse(user),
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"device_id":     device.ID.String(),
		"expires_in":    int(time.Until(tokens.ExpiresAt).Seconds()),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	DeviceID     string `json:"device_id"`
}

// Refresh rotates a refresh token presented by its bound device.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	tokens, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken, req.DeviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    int(time.Until(tokens.ExpiresAt).Seconds()),
	})
}

type logoutRequest struct {
	DeviceID string `json:"device_id"`
}

// Logout invalidates the session; scoped to one device when device_id is set.
func (h *Handler) Logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req) // empty body means all devices
	if err := h.sessions.Logout(c.Request.Context(), currentUser(c), req.DeviceID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "successfully logged out"})
}

// --- Sync ---

type initialSyncRequest struct {
	DataTypes []string `json:"data_types"`
	DeviceID  string   `json:"device_id"`
}

// InitialSync returns a capped role-scoped snapshot.
func (h *Handler) InitialSync(c *gin.Context) {
	var req initialSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	snap, err := h.engine.InitialSync(c.Request.Context(), currentUser(c), req.DeviceID, req.DataTypes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type incrementalSyncRequest struct {
	LastSyncDate string   `json:"last_sync_date"`
	DataTypes    []string `json:"data_types"`
	DeviceID     string   `json:"device_id"`
}

// IncrementalSync returns records updated after last_sync_date.
func (h *Handler) IncrementalSync(c *gin.Context) {
	var req incrementalSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	snap, err := h.engine.IncrementalSync(c.Request.Context(), currentUser(c), req.DeviceID, req.LastSyncDate, req.DataTypes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type bulkUploadRequest struct {
	DataType string            `json:"data_type"`
	DeviceID string            `json:"device_id"`
	Items    []json.RawMessage `json:"items"`
}

// BulkUpload ingests offline-collected records with per-item outcomes.
func (h *Handler) BulkUpload(c *gin.Context) {
	var req bulkUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	res, err := h.engine.BulkUpload(c.Request.Context(), currentUser(c), req.DeviceID, req.DataType, req.Items)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SyncLogs lists the caller's sync history, newest first.
func (h *Handler) SyncLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	logs, err := h.engine.History(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": logs, "count": len(logs)})
}

// --- Devices ---

// ListDevices returns the caller's active devices.
func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.registry.ListDevices(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if devices == nil {
		devices = []model.Device{}
	}
	c.JSON(http.StatusOK, gin.H{"results": devices, "count": len(devices)})
}

type pushTokenRequest struct {
	DeviceID  string `json:"device_id"`
	PushToken string `json:"push_token"`
}

// UpdatePushToken replaces the push notification token on one device.
func (h *Handler) UpdatePushToken(c *gin.Context) {
	var req pushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if err := h.registry.UpdatePushToken(c.Request.Context(), currentUser(c), req.DeviceID, req.PushToken); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "push token updated"})
}

// --- Health ---

// Health reports service and database status.
func (h *Handler) Health(c *gin.Context) {
	overall, database := "healthy", "healthy"
	status := http.StatusOK
	if err := h.db.Ping(c.Request.Context()); err != nil {
		overall, database = "unhealthy", "unhealthy"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"database":  database,
	})
}
