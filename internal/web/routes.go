package web

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes.
func SetupRoutes(r *gin.Engine, h *Handlers, rps float64, burst int) {
	// Health endpoint (no rate limit)
	r.GET("/health", h.HealthCheck)

	// Provider push notifications. Exempt from the JSON content-type
	// check: the provider posts an empty body with its own headers.
	r.POST("/notification", RateLimiter(rps, burst), h.Notification)

	// Read and booking API
	apiRateLimiter := RateLimiter(rps, burst)
	apiGroup := r.Group("/api")
	apiGroup.Use(apiRateLimiter)
	apiGroup.Use(RequireJSONContentType())
	{
		apiGroup.GET("/calendars", h.ListCalendars)
		apiGroup.GET("/calendars/:id/events", h.ListCalendarEvents)
		apiGroup.POST("/calendars/:id/events", h.CreateEvent)
	}

	// Manual job triggers with stricter rate limiting (each fans out
	// network calls across every calendar or credential)
	triggerRateLimiter := RateLimiter(2, 5)
	triggerGroup := r.Group("/api/jobs")
	triggerGroup.Use(triggerRateLimiter)
	{
		triggerGroup.POST("/download", h.TriggerDownload)
		triggerGroup.POST("/discover", h.TriggerDiscovery)
		triggerGroup.POST("/subscribe", h.TriggerSubscribe)
	}
}
