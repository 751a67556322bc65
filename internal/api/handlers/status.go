package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"visitwise-edge-go/internal/models"
)

// DeviceID yields the current identity token.
type DeviceID func() string

// HealthSource provides the liveness tracker's view of the pipeline.
type HealthSource interface {
	Snapshot() (lastSuccess time.Time, corruptCount int, rebootLatched bool)
}

// PendingSource reports the upload backlog depth.
type PendingSource interface {
	Pending() int
}

// ViewerSource reports connected live view clients.
type ViewerSource interface {
	Viewers() int
}

type StatusHandler struct {
	deviceID DeviceID
	health   HealthSource
	uploads  PendingSource
	viewers  ViewerSource
}

func NewStatusHandler(deviceID DeviceID, health HealthSource, uploads PendingSource, viewers ViewerSource) *StatusHandler {
	return &StatusHandler{
		deviceID: deviceID,
		health:   health,
		uploads:  uploads,
		viewers:  viewers,
	}
}

type DeviceInfoResponse struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
	Viewers  int    `json:"viewers"`
}

func (h *StatusHandler) DeviceInfo(c *gin.Context) {
	viewers := 0
	if h.viewers != nil {
		viewers = h.viewers.Viewers()
	}
	c.JSON(http.StatusOK, DeviceInfoResponse{
		DeviceID: h.deviceID(),
		Status:   "running",
		Viewers:  viewers,
	})
}

func (h *StatusHandler) Health(c *gin.Context) {
	lastSuccess, corruptCount, rebootLatched := h.health.Snapshot()

	status := "healthy"
	switch {
	case rebootLatched:
		status = "rebooting"
	case corruptCount > 0:
		status = "degraded"
	}

	pending := 0
	if h.uploads != nil {
		pending = h.uploads.Pending()
	}

	c.JSON(http.StatusOK, models.HealthStatus{
		DeviceID:       h.deviceID(),
		Status:         status,
		LastSuccess:    lastSuccess,
		CorruptCount:   corruptCount,
		RebootLatched:  rebootLatched,
		PendingUploads: pending,
	})
}
