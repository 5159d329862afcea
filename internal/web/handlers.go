package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tobur/calendar-module/internal/provider"
	"github.com/Tobur/calendar-module/internal/scheduler"
	"github.com/Tobur/calendar-module/internal/store"
	"github.com/Tobur/calendar-module/internal/syncer"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	store      *store.Store
	engine     *syncer.Engine
	dispatcher *syncer.Dispatcher
	scheduler  *scheduler.Scheduler
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store, engine *syncer.Engine, dispatcher *syncer.Dispatcher, sched *scheduler.Scheduler) *Handlers {
	return &Handlers{
		store:      st,
		engine:     engine,
		dispatcher: dispatcher,
		scheduler:  sched,
	}
}

// HealthCheck reports service and database health.
func (h *Handlers) HealthCheck(c *gin.Context) {
	if err := h.store.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Notification receives a provider push notification. The channel is
// correlated through the X-Goog-Resource-ID header; the body carries
// nothing useful. The response is always 200 so the provider does not
// retry or tear the channel down, even when the identifier is unknown
// or processing fails.
func (h *Handlers) Notification(c *gin.Context) {
	resourceID := c.GetHeader("X-Goog-Resource-ID")
	if resourceID == "" {
		c.String(http.StatusOK, "OK")
		return
	}

	if err := h.dispatcher.Dispatch(resourceID); err != nil {
		log.Printf("Failed to dispatch notification for resource %s: %v", resourceID, err)
	}
	c.String(http.StatusOK, "OK")
}

// ListCalendars returns all known resource calendars.
func (h *Handlers) ListCalendars(c *gin.Context) {
	calendars, err := h.store.ListResourceCalendars()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list calendars"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calendars": calendars})
}

// ListCalendarEvents returns the stored events of one calendar.
func (h *Handlers) ListCalendarEvents(c *gin.Context) {
	cal, err := h.store.GetResourceCalendarByID(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Calendar not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load calendar"})
		return
	}

	events, err := h.store.ListEventsByCalendar(cal.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// createEventRequest is the payload for booking a room.
type createEventRequest struct {
	Summary     string    `json:"summary" binding:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       time.Time `json:"start" binding:"required"`
	End         time.Time `json:"end" binding:"required"`
	Attendees   []string  `json:"attendees"`
}

// CreateEvent books the room: the event is created at the provider with
// the resource as an attendee and mirrored locally.
func (h *Handlers) CreateEvent(c *gin.Context) {
	cal, err := h.store.GetResourceCalendarByID(c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Calendar not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load calendar"})
		return
	}

	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	body := provider.EventBody{
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Start:       req.Start,
		End:         req.End,
	}
	for _, email := range req.Attendees {
		body.Attendees = append(body.Attendees, provider.Attendee{Email: email})
	}

	event, err := h.engine.Insert(c.Request.Context(), cal, body)
	if errors.Is(err, store.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("Failed to create event on calendar %s: %v", cal.ResourceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create event"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// TriggerDownload starts a full event download across all calendars.
func (h *Handlers) TriggerDownload(c *gin.Context) {
	go func() {
		if err := h.scheduler.DownloadAllEvents(context.Background()); err != nil {
			log.Printf("Manual download failed: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"message": "Download started"})
}

// TriggerDiscovery starts resource discovery for all credentials.
func (h *Handlers) TriggerDiscovery(c *gin.Context) {
	go func() {
		if err := h.scheduler.DiscoverAllResources(context.Background()); err != nil {
			log.Printf("Manual discovery failed: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"message": "Discovery started"})
}

// TriggerSubscribe ensures subscriptions for all calendars.
func (h *Handlers) TriggerSubscribe(c *gin.Context) {
	go func() {
		if err := h.scheduler.SubscribeAll(context.Background()); err != nil {
			log.Printf("Manual subscribe failed: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"message": "Subscribe started"})
}
