package handlers

import (
	"net/http"

	"example.com/eventwave/internal/preferences"
	"example.com/eventwave/internal/services"

	"github.com/gin-gonic/gin"
)

// SettingsHandler serves user preferences
type SettingsHandler struct {
	browser *services.Browser
	prefs   *preferences.Preferences
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(browser *services.Browser, prefs *preferences.Preferences) *SettingsHandler {
	return &SettingsHandler{browser: browser, prefs: prefs}
}

// Settings is the user-editable configuration
type Settings struct {
	SearchRadiusKm       float64 `json:"search_radius_km"`
	NotificationsEnabled bool    `json:"notifications_enabled"`
}

// SettingsRequest updates settings. Absent fields are left alone.
type SettingsRequest struct {
	SearchRadiusKm       *float64 `json:"search_radius_km"`
	NotificationsEnabled *bool    `json:"notifications_enabled"`
}

// GetSettings returns the current settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.load(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings changes the radius and the notifications flag
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if req.SearchRadiusKm != nil {
		if err := h.browser.SetSearchRadius(ctx, *req.SearchRadiusKm); err != nil {
			abortWithError(c, err)
			return
		}
	}
	if req.NotificationsEnabled != nil {
		if err := h.prefs.SetNotificationsEnabled(ctx, *req.NotificationsEnabled); err != nil {
			abortWithError(c, err)
			return
		}
	}

	settings, err := h.load(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *SettingsHandler) load(c *gin.Context) (Settings, error) {
	ctx := c.Request.Context()
	radius, err := h.prefs.SearchRadius(ctx)
	if err != nil {
		return Settings{}, err
	}
	enabled, err := h.prefs.NotificationsEnabled(ctx)
	if err != nil {
		return Settings{}, err
	}
	return Settings{SearchRadiusKm: radius, NotificationsEnabled: enabled}, nil
}

// RegisterRoutes registers the handler's routes
func (h *SettingsHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/settings", h.GetSettings)
	api.PUT("/settings", h.UpdateSettings)
}
