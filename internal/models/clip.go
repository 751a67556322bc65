package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ClipState tracks where a clip is in its lifecycle. The lifecycle is
// linear: Recording -> Converting -> {Converted | CorruptDiscarded |
// ConvertFailed} -> {UploadPending -> Uploaded | UploadFailed} -> deleted.
type ClipState string

const (
	ClipRecording        ClipState = "recording"
	ClipConverting       ClipState = "converting"
	ClipConverted        ClipState = "converted"
	ClipCorruptDiscarded ClipState = "corrupt_discarded"
	ClipConvertFailed    ClipState = "convert_failed"
	ClipUploadPending    ClipState = "upload_pending"
	ClipUploaded         ClipState = "uploaded"
	ClipUploadFailed     ClipState = "upload_failed"
)

// Clip identifies one recording by its start timestamp. Raw and converted
// files are co-located and share the base name, differing only by extension.
type Clip struct {
	BaseName  string
	RawPath   string
	Timestamp time.Time
	State     ClipState
}

// NewClip derives a clip name from the recording start time with
// millisecond precision so back-to-back recordings never collide.
func NewClip(dir, rawExt string, start time.Time) *Clip {
	base := fmt.Sprintf("motion_%s_%03d",
		start.Format("20060102_150405"), start.Nanosecond()/1e6)
	return &Clip{
		BaseName:  base,
		RawPath:   filepath.Join(dir, base+rawExt),
		Timestamp: start,
		State:     ClipRecording,
	}
}

// ConvertedPath returns the sibling path for the given converted extension.
func (c *Clip) ConvertedPath(convertedExt string) string {
	return strings.TrimSuffix(c.RawPath, filepath.Ext(c.RawPath)) + convertedExt
}

// RawSibling maps a converted clip path back to its raw remnant.
func RawSibling(convertedPath, rawExt string) string {
	return strings.TrimSuffix(convertedPath, filepath.Ext(convertedPath)) + rawExt
}
