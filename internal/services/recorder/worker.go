package recorder

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/config"
	"visitwise-edge-go/internal/fileops"
	"visitwise-edge-go/internal/models"
	"visitwise-edge-go/internal/services/motion"
)

// signalWait bounds each wait on the motion signal so the worker loop can
// observe shutdown between wakeups.
const signalWait = 500 * time.Millisecond

// CaptureDevice records one fixed-length clip to disk. Recording blocks
// until the clip is complete.
type CaptureDevice interface {
	Record(path string, duration time.Duration) error
}

// Converter transcodes a raw clip and returns the converted path.
type Converter interface {
	Convert(rawPath string) (string, error)
}

// HealthSink observes per-clip outcomes for liveness escalation.
type HealthSink interface {
	RecordSuccess()
	RecordCorrupt()
}

// Submitter receives converted clips for delivery.
type Submitter interface {
	Submit(path string)
}

// EventSink publishes clip lifecycle events. May be nil.
type EventSink interface {
	MotionDetected()
	ClipCorrupt(clip string, size int64)
}

// Worker is the single consumer of the motion signal. It drains one
// pending signal at a time, records a clip, validates and converts it,
// then hands the result to the uploader. Motion raised while a clip is
// in flight coalesces into at most one follow-up recording.
type Worker struct {
	cfg       *config.Config
	log       zerolog.Logger
	signal    *motion.Signal
	device    CaptureDevice
	converter Converter
	health    HealthSink
	uploads   Submitter
	remover   *fileops.Remover
	events    EventSink
}

func NewWorker(cfg *config.Config, log zerolog.Logger, signal *motion.Signal, device CaptureDevice, converter Converter, health HealthSink, uploads Submitter, remover *fileops.Remover, events EventSink) *Worker {
	return &Worker{
		cfg:       cfg,
		log:       log,
		signal:    signal,
		device:    device,
		converter: converter,
		health:    health,
		uploads:   uploads,
		remover:   remover,
		events:    events,
	}
}

// Run consumes motion signals until stop closes. A clip already being
// recorded finishes; the in-flight recording is never truncated.
func (w *Worker) Run(stop <-chan struct{}) {
	w.log.Info().Dur("clip_duration", w.cfg.ClipDuration).Msg("Recording worker started")
	for {
		select {
		case <-stop:
			w.log.Info().Msg("Recording worker stopped")
			return
		default:
		}
		if !w.signal.Wait(signalWait) {
			continue
		}
		w.handleMotion()
	}
}

func (w *Worker) handleMotion() {
	clip := models.NewClip(w.cfg.ClipDir, w.cfg.RawExt, time.Now())
	log := w.log.With().Str("clip", clip.BaseName).Logger()
	log.Info().Msg("Motion event, recording clip")
	if w.events != nil {
		w.events.MotionDetected()
	}

	if err := w.device.Record(clip.RawPath, w.cfg.ClipDuration); err != nil {
		log.Error().Err(err).Msg("Recording failed")
		w.discardCorrupt(clip, 0)
		return
	}

	info, err := os.Stat(clip.RawPath)
	if err != nil {
		log.Error().Err(err).Msg("Recorded clip missing")
		w.health.RecordCorrupt()
		if w.events != nil {
			w.events.ClipCorrupt(clip.RawPath, 0)
		}
		return
	}
	if info.Size() < w.cfg.MinClipBytes {
		log.Warn().
			Int64("size", info.Size()).
			Int64("min", w.cfg.MinClipBytes).
			Msg("Clip below minimum size, discarding as corrupt")
		w.discardCorrupt(clip, info.Size())
		return
	}

	clip.State = models.ClipConverting
	converted, err := w.converter.Convert(clip.RawPath)
	if err != nil {
		log.Error().Err(err).Msg("Conversion failed, discarding raw clip")
		clip.State = models.ClipConvertFailed
		w.remover.RemoveIfExists(clip.RawPath)
		return
	}

	clip.State = models.ClipUploadPending
	w.health.RecordSuccess()
	w.remover.RemoveIfExists(clip.RawPath)
	log.Info().Str("converted", converted).Msg("Clip converted, queueing upload")
	w.uploads.Submit(converted)
}

func (w *Worker) discardCorrupt(clip *models.Clip, size int64) {
	clip.State = models.ClipCorruptDiscarded
	w.remover.RemoveIfExists(clip.RawPath)
	w.health.RecordCorrupt()
	if w.events != nil {
		w.events.ClipCorrupt(clip.RawPath, size)
	}
}
