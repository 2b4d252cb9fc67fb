package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sensebridge/internal/ambient"
	"sensebridge/internal/dispatcher"
	"sensebridge/internal/logging"
	"sensebridge/internal/models"
	"sensebridge/internal/queue"
	"sensebridge/internal/ratelimit"
	"sensebridge/internal/telemetry"
)

// Handler exposes the pipeline over HTTP.
type Handler struct {
	intake        *queue.Intake
	disp          *dispatcher.Dispatcher
	deduper       *ratelimit.Deduper
	tracker       *ambient.Tracker
	hub           *telemetry.Hub
	logger        *logging.Logger
	sensitivity   float64
	minConfidence float64
	upgrader      websocket.Upgrader
}

// NewHandler wires the pipeline components into the HTTP surface.
func NewHandler(intake *queue.Intake, disp *dispatcher.Dispatcher, dd *ratelimit.Deduper, tracker *ambient.Tracker, hub *telemetry.Hub, logger *logging.Logger, sensitivity, minConfidence float64) *Handler {
	return &Handler{
		intake:        intake,
		disp:          disp,
		deduper:       dd,
		tracker:       tracker,
		hub:           hub,
		logger:        logger,
		sensitivity:   sensitivity,
		minConfidence: minConfidence,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type submitEventRequest struct {
	EventType  string  `json:"event_type" binding:"required"`
	Confidence float64 `json:"confidence"`
	Payload    string  `json:"payload"`
}

// SubmitEvent is the intake boundary for detectors, the speech pipeline, and
// the physical button. Never blocks: a full queue is a 429, not a stall.
func (h *Handler) SubmitEvent(c *gin.Context) {
	var req submitEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid event submission: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confidence must be in [0,1]"})
		return
	}

	intent := models.NewEventIntent(req.EventType, req.Confidence, req.Payload)
	if err := h.intake.Submit(intent); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "event queue full"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submit failed"})
		return
	}

	h.logger.Infof("Notification queued: %s (confidence: %.2f)", req.EventType, req.Confidence)
	c.JSON(http.StatusAccepted, gin.H{"id": intent.ID.String()})
}

// GetAmbient reports the baseline, the trigger threshold (optionally for a
// caller-supplied sensitivity), and the detector confidence floor.
func (h *Handler) GetAmbient(c *gin.Context) {
	sensitivity := h.sensitivity
	if s := c.Query("sensitivity"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sensitivity must be in [0,1]"})
			return
		}
		sensitivity = v
	}

	level := h.tracker.Level()
	c.JSON(http.StatusOK, gin.H{
		"level":          level,
		"sensitivity":    sensitivity,
		"threshold":      ambient.Threshold(level, sensitivity),
		"window_len":     h.tracker.WindowLen(),
		"min_confidence": h.minConfidence,
	})
}

type ambientSampleRequest struct {
	Level float64 `json:"level"`
}

// UpdateAmbient pushes one background level sample into the rolling window.
func (h *Handler) UpdateAmbient(c *gin.Context) {
	var req ambientSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.tracker.Update(req.Level)
	c.JSON(http.StatusOK, gin.H{"level": h.tracker.Level()})
}

type calibrateRequest struct {
	Samples []float64 `json:"samples"`
}

// Calibrate sets the baseline from a batch of samples. An empty batch falls
// back to the conservative default and reports calibrated=false.
func (h *Handler) Calibrate(c *gin.Context) {
	var req calibrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	level, err := h.tracker.Calibrate(req.Samples)
	if err != nil {
		h.logger.Warnf("Calibration failed, using default level: %v", err)
		c.JSON(http.StatusOK, gin.H{"level": level, "calibrated": false})
		return
	}
	h.logger.Infof("Ambient noise level calibrated to: %.6f", level)
	c.JSON(http.StatusOK, gin.H{"level": level, "calibrated": true})
}

// GetStatus reports the pipeline state for the GUI.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":          h.disp.Running(),
		"queue_len":        h.intake.Len(),
		"queue_dropped":    h.intake.Dropped(),
		"dedup_suppressed": h.deduper.Suppressed(),
		"ambient_level":    h.tracker.Level(),
		"telemetry":        h.hub.Counts(),
	})
}

// GetRecentTelemetry returns the retained telemetry ring, newest last.
func (h *Handler) GetRecentTelemetry(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Recent())
}

// TelemetryWS upgrades the connection and streams telemetry events until the
// client goes away.
func (h *Handler) TelemetryWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	h.hub.AddConnection(conn)

	// reader loop only to observe close; the hub does all writes
	go func() {
		defer func() {
			h.hub.RemoveConnection(conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
