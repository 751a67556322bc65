package messaging

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/models"
)

// DeviceID yields the current identity token for event attribution.
type DeviceID func() string

// Events publishes clip lifecycle events, fire-and-forget. A nil *Events
// is valid and drops everything, so callers never need to branch on
// whether event publishing is enabled.
type Events struct {
	svc      *Service
	deviceID DeviceID
	prefix   string
	log      zerolog.Logger
}

func NewEvents(svc *Service, deviceID DeviceID, prefix string, log zerolog.Logger) *Events {
	return &Events{svc: svc, deviceID: deviceID, prefix: prefix, log: log}
}

func (e *Events) MotionDetected() {
	e.publish("motion", models.Event{Kind: models.EventMotionDetected})
}

func (e *Events) ClipUploaded(clip string) {
	e.publish("clips", models.Event{Kind: models.EventClipUploaded, Clip: clip})
}

func (e *Events) ClipCorrupt(clip string, size int64) {
	e.publish("clips", models.Event{Kind: models.EventClipCorrupt, Clip: clip, SizeBytes: size})
}

func (e *Events) UploadFailed(clip string, reason string) {
	e.publish("clips", models.Event{Kind: models.EventUploadFailed, Clip: clip, Reason: reason})
}

func (e *Events) RebootTriggered(reason string) {
	e.publish("health", models.Event{Kind: models.EventRebootTrigger, Reason: reason})
}

func (e *Events) publish(topic string, event models.Event) {
	if e == nil || e.svc == nil {
		return
	}

	event.DeviceID = e.deviceID()
	event.Timestamp = time.Now().UTC()

	subject := fmt.Sprintf("%s.%s.%s", e.prefix, event.DeviceID, topic)
	if err := e.svc.Publish(subject, event); err != nil {
		e.log.Debug().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}
