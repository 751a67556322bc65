package motion

import (
	"errors"
	"image"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"visitwise-edge-go/internal/config"
	"visitwise-edge-go/internal/services/camera"
)

// FrameSource produces grayscale snapshots. Satisfied by *camera.Device.
type FrameSource interface {
	CaptureGray(dst *gocv.Mat) error
}

// Viewer receives the current frame for the live debug stream.
type Viewer interface {
	Publish(frame gocv.Mat)
}

// Monitor is the detection loop. It polls the camera at a fixed cadence,
// diffs consecutive frames and raises the motion signal when a moving
// region is large enough. It never blocks on signal consumption.
type Monitor struct {
	cfg    *config.Config
	log    zerolog.Logger
	source FrameSource
	signal *Signal
	viewer Viewer
}

func NewMonitor(cfg *config.Config, log zerolog.Logger, source FrameSource, signal *Signal, viewer Viewer) *Monitor {
	return &Monitor{
		cfg:    cfg,
		log:    log,
		source: source,
		signal: signal,
		viewer: viewer,
	}
}

// Run loops until stop closes. It returns a non-nil error only on a
// device-level capture failure, which the pipeline treats as fatal: there
// is nothing to monitor without a camera.
func (m *Monitor) Run(stop <-chan struct{}) error {
	prev := gocv.NewMat()
	defer prev.Close()
	cur := gocv.NewMat()
	defer cur.Close()

	m.log.Info().
		Dur("poll_interval", m.cfg.PollInterval).
		Float64("min_area", m.cfg.MinMotionArea).
		Msg("Motion monitor started")

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			m.log.Info().Msg("Motion monitor stopped")
			return nil
		case <-ticker.C:
		}

		if err := m.source.CaptureGray(&cur); err != nil {
			if errors.Is(err, camera.ErrEmptyFrame) {
				m.log.Debug().Msg("Skipping empty frame")
				continue
			}
			return err
		}

		if m.viewer != nil {
			m.viewer.Publish(cur)
		}

		// First sample only seeds the previous frame.
		if prev.Empty() {
			cur.CopyTo(&prev)
			continue
		}

		if HasMotion(prev, cur, m.cfg.MotionThreshold, m.cfg.DilateIterations, m.cfg.MinMotionArea) {
			if m.signal.Raise() {
				m.log.Info().Msg("Motion detected, recording signalled")
			}
		}

		cur.CopyTo(&prev)
	}
}

// HasMotion diffs two grayscale frames and reports whether any moving
// region exceeds minArea: absolute difference, binary threshold, dilation
// to merge nearby fragments, then external contour extraction.
func HasMotion(prev, cur gocv.Mat, threshold float32, dilateIterations int, minArea float64) bool {
	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(prev, cur, &delta)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(delta, &thresh, threshold, 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	for i := 0; i < dilateIterations; i++ {
		gocv.Dilate(thresh, &thresh, kernel)
	}

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) > minArea {
			return true
		}
	}
	return false
}
