package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khabaroff/webhook-inbox/src/middleware"
	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/khabaroff/webhook-inbox/src/repositories"
	"github.com/khabaroff/webhook-inbox/src/services"
)

// AdminHandler serves the admin login and the read-only event API
type AdminHandler struct {
	adminService *services.AdminService
	eventService *services.EventService
	tokens       *middleware.TokenManager
	secureCookie bool
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService *services.AdminService, eventService *services.EventService, tokens *middleware.TokenManager, secureCookie bool) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		eventService: eventService,
		tokens:       tokens,
		secureCookie: secureCookie,
	}
}

// AdminLoginRequest is the login body
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginResponse carries the issued token
type AdminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// HandleAdminLogin checks credentials and issues a token
func (ah *AdminHandler) HandleAdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid request body"})
		return
	}

	if err := ah.adminService.Authenticate(req.Username, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid username or password"})
		return
	}

	token, err := ah.tokens.Generate(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to generate token"})
		return
	}

	ttl := ah.tokens.TTL()
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AdminTokenCookie, token, int(ttl.Seconds()), "/", "", ah.secureCookie, true)

	c.JSON(http.StatusOK, AdminLoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	})
}

// HandleAdminLogout clears the token cookie
func (ah *AdminHandler) HandleAdminLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AdminTokenCookie, "", -1, "/", "", ah.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": "logged out"})
}

// HandleListEvents lists events, newest first, filtered by status and provider
func (ah *AdminHandler) HandleListEvents(c *gin.Context) {
	filter := models.EventFilter{
		Provider: c.Query("provider"),
		Status:   models.EventStatus(c.Query("status")),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid status"})
		return
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}

	events, err := ah.eventService.ListEvents(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to list events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"events": events,
		"count":  len(events),
	})
}

// HandleGetEvent returns one event by provider and id
func (ah *AdminHandler) HandleGetEvent(c *gin.Context) {
	key := models.EventKey{Provider: c.Param("provider"), ID: c.Param("id")}

	event, err := ah.eventService.GetEvent(c.Request.Context(), key)
	if errors.Is(err, repositories.ErrEventNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "event not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to get event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "event": event})
}

// HandleStats returns event counts per status
func (ah *AdminHandler) HandleStats(c *gin.Context) {
	counts, err := ah.eventService.CountByStatus(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to count events"})
		return
	}

	total := 0
	byStatus := make(map[string]int, len(models.AllStatuses))
	for _, status := range models.AllStatuses {
		byStatus[string(status)] = counts[status]
		total += counts[status]
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"counts": byStatus,
		"total":  total,
	})
}
