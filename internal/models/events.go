package models

import "time"

// Event kinds published to NATS. Fire-and-forget; consumers are optional.
const (
	EventMotionDetected = "motion_detected"
	EventClipUploaded   = "clip_uploaded"
	EventClipCorrupt    = "clip_corrupt"
	EventUploadFailed   = "upload_failed"
	EventRebootTrigger  = "reboot_triggered"
)

type Event struct {
	DeviceID  string    `json:"device_id"`
	Kind      string    `json:"kind"`
	Clip      string    `json:"clip,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus is the snapshot served by the local status API.
type HealthStatus struct {
	DeviceID       string    `json:"device_id"`
	Status         string    `json:"status"`
	LastSuccess    time.Time `json:"last_success"`
	CorruptCount   int       `json:"corrupt_count"`
	RebootLatched  bool      `json:"reboot_latched"`
	PendingUploads int       `json:"pending_uploads"`
}
