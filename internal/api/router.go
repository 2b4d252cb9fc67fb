package api

import (
	"github.com/gin-gonic/gin"

	"sensebridge/internal/logging"
)

// NewRouter builds the status/intake surface for detectors, the button
// handler, and the GUI.
func NewRouter(logger *logging.Logger, h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/healthz", h.Health)

	api := r.Group("/api/v0")
	{
		// Intake boundary
		api.POST("/events", h.SubmitEvent)

		// Ambient threshold tracker
		api.GET("/ambient", h.GetAmbient)
		api.POST("/ambient/samples", h.UpdateAmbient)
		api.POST("/ambient/calibrate", h.Calibrate)

		// Status and telemetry
		api.GET("/status", h.GetStatus)
		api.GET("/telemetry/recent", h.GetRecentTelemetry)
	}

	// Live telemetry push for the GUI
	r.GET("/ws", h.TelemetryWS)

	return r
}
