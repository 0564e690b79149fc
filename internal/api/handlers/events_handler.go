package handlers

import (
	"io"
	"net/http"
	"strconv"

	"example.com/eventwave/internal/models"
	"example.com/eventwave/internal/services"
	"example.com/eventwave/internal/tracing"
	"example.com/eventwave/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// EventHandler serves the event list, browsing state and cache actions
type EventHandler struct {
	svc     *services.EventService
	browser *services.Browser
	tracer  tracing.Tracer
}

// NewEventHandler creates a new event handler
func NewEventHandler(svc *services.EventService, browser *services.Browser, tracer tracing.Tracer) *EventHandler {
	return &EventHandler{svc: svc, browser: browser, tracer: tracer}
}

// StateRequest updates the browsing filters. Absent fields are left alone.
type StateRequest struct {
	Category      *string `json:"category" validate:"omitempty,category"`
	Query         *string `json:"query"`
	FavoritesOnly *bool   `json:"favorites_only"`
}

// LocationRequest reports the user position
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
}

// ListEvents returns the visible events
func (h *EventHandler) ListEvents(c *gin.Context) {
	events, err := h.browser.Visible(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// StreamEvents pushes the visible list as server-sent events on every change
func (h *EventHandler) StreamEvents(c *gin.Context) {
	updates := h.browser.Watch(c.Request.Context())
	c.Stream(func(io.Writer) bool {
		events, ok := <-updates
		if !ok {
			return false
		}
		c.SSEvent("events", events)
		return true
	})
}

// ListFavorites returns every favorite event, regardless of location
func (h *EventHandler) ListFavorites(c *gin.Context) {
	events, err := h.svc.GetFavorites(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// GetEvent returns one event
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// Refresh refreshes around the current location. With async=true it only
// queues the refresh.
func (h *EventHandler) Refresh(c *gin.Context) {
	async, _ := strconv.ParseBool(c.Query("async"))
	if async {
		h.svc.RefreshAsync(h.browser.State().Location)
		c.JSON(http.StatusAccepted, h.svc.Status())
		return
	}

	txn := h.tracer.StartTransaction("api-refresh")
	defer h.tracer.EndTransaction(txn)

	c.JSON(http.StatusOK, h.browser.Refresh(c.Request.Context()))
}

// ToggleFavorite flips the favorite flag of one event
func (h *EventHandler) ToggleFavorite(c *gin.Context) {
	event, err := h.browser.ToggleFavorite(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// ViewEvent records the event in the history
func (h *EventHandler) ViewEvent(c *gin.Context) {
	event, err := h.browser.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// GetState returns the browsing state
func (h *EventHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.browser.State())
}

// UpdateState changes category, query or favorites-only
func (h *EventHandler) UpdateState(c *gin.Context) {
	var req StateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		abortWithError(c, errors.Wrap(services.ErrUnknownCategory, *req.Category))
		return
	}

	if req.Category != nil {
		if err := h.browser.SetCategory(*req.Category); err != nil {
			abortWithError(c, err)
			return
		}
	}
	if req.FavoritesOnly != nil && *req.FavoritesOnly != h.browser.State().FavoritesOnly {
		h.browser.SetFavoritesOnly(*req.FavoritesOnly)
	}
	if req.Query != nil {
		h.browser.SetQuery(*req.Query)
	}
	c.JSON(http.StatusOK, h.browser.State())
}

// UpdateLocation records the user position and queues a refresh
func (h *EventHandler) UpdateLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	loc := models.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := h.browser.SetLocation(c.Request.Context(), loc); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.browser.State())
}

// GetHistory returns the viewing history, newest first
func (h *EventHandler) GetHistory(c *gin.Context) {
	history, err := h.browser.History(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": history, "count": len(history)})
}

// ClearHistory empties the viewing history
func (h *EventHandler) ClearHistory(c *gin.Context) {
	if err := h.browser.ClearHistory(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCache drops stored events, history and refresh markers
func (h *EventHandler) ClearCache(c *gin.Context) {
	if err := h.browser.ClearCache(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStatus returns the refresh status
func (h *EventHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.browser.Status())
}

// ListCategories returns the category filters, "Tous" first
func (h *EventHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": models.Categories})
}

// RegisterRoutes registers the handler's routes
func (h *EventHandler) RegisterRoutes(api *gin.RouterGroup) {
	events := api.Group("/events")
	events.GET("", h.ListEvents)
	events.GET("/stream", h.StreamEvents)
	events.GET("/favorites", h.ListFavorites)
	events.POST("/refresh", h.Refresh)
	events.GET("/:id", h.GetEvent)
	events.POST("/:id/favorite", h.ToggleFavorite)
	events.POST("/:id/view", h.ViewEvent)

	api.GET("/state", h.GetState)
	api.PUT("/state", h.UpdateState)
	api.PUT("/location", h.UpdateLocation)
	api.GET("/history", h.GetHistory)
	api.DELETE("/history", h.ClearHistory)
	api.DELETE("/cache", h.ClearCache)
	api.GET("/status", h.GetStatus)
	api.GET("/categories", h.ListCategories)
}
