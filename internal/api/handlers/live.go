package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visitwise-edge-go/internal/services/liveview"
)

type LiveHandler struct {
	publisher *liveview.Publisher
}

func NewLiveHandler(publisher *liveview.Publisher) *LiveHandler {
	return &LiveHandler{publisher: publisher}
}

// Stream hands the connection to the MJPEG publisher. Streaming bypasses
// gin's JSON rendering entirely.
func (h *LiveHandler) Stream(c *gin.Context) {
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live view disabled"})
		return
	}
	h.publisher.StreamHTTP(c.Writer, c.Request)
}
