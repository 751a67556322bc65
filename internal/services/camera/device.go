package camera

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"visitwise-edge-go/internal/config"
)

// ErrEmptyFrame is returned for a transient empty read; callers skip the
// sample and try again on the next poll.
var ErrEmptyFrame = errors.New("camera returned an empty frame")

// Device owns the single camera handle. The motion monitor's frame grabs
// and the recording worker's clip encodes go through the same handle, so
// every operation takes the device mutex: a recording blocks frame capture
// for its full duration, which also means no motion sample is taken while
// the encoder owns the sensor.
type Device struct {
	cfg *config.Config
	log zerolog.Logger

	mu     sync.Mutex
	cam    *gocv.VideoCapture
	closed bool
}

// Open opens the configured capture device and applies resolution and
// frame-rate settings. An unopenable device is fatal at startup.
func Open(cfg *config.Config, log zerolog.Logger) (*Device, error) {
	var cam *gocv.VideoCapture
	var err error

	if id, convErr := strconv.Atoi(cfg.CameraDevice); convErr == nil {
		cam, err = gocv.OpenVideoCapture(id)
	} else {
		cam, err = gocv.OpenVideoCapture(cfg.CameraDevice)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device %s: %w", cfg.CameraDevice, err)
	}

	cam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.FrameWidth))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.FrameHeight))
	cam.Set(gocv.VideoCaptureFPS, cfg.FrameRate)

	log.Info().
		Str("device", cfg.CameraDevice).
		Int("width", cfg.FrameWidth).
		Int("height", cfg.FrameHeight).
		Float64("fps", cfg.FrameRate).
		Msg("Capture device opened")

	return &Device{cfg: cfg, log: log, cam: cam}, nil
}

// CaptureGray reads one frame and converts it to grayscale in dst.
func (d *Device) CaptureGray(dst *gocv.Mat) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("capture device is closed")
	}

	frame := gocv.NewMat()
	defer frame.Close()

	if ok := d.cam.Read(&frame); !ok {
		return errors.New("failed to read frame from capture device")
	}
	if frame.Empty() {
		return ErrEmptyFrame
	}

	if frame.Channels() > 1 {
		gocv.CvtColor(frame, dst, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(dst)
	}
	return nil
}

// Record encodes a fixed-duration clip to path. It holds the device for
// the whole recording; frame capture resumes when it returns.
func (d *Device) Record(path string, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("capture device is closed")
	}

	width := int(d.cam.Get(gocv.VideoCaptureFrameWidth))
	height := int(d.cam.Get(gocv.VideoCaptureFrameHeight))
	if width <= 0 || height <= 0 {
		width = d.cfg.FrameWidth
		height = d.cfg.FrameHeight
	}

	writer, err := gocv.VideoWriterFile(path, d.cfg.CaptureCodec, d.cfg.FrameRate, width, height, true)
	if err != nil {
		return fmt.Errorf("failed to create video writer: %w", err)
	}
	defer writer.Close()

	img := gocv.NewMat()
	defer img.Close()

	frameInterval := time.Duration(float64(time.Second) / d.cfg.FrameRate)
	start := time.Now()
	nextFrame := start
	frames := 0

	for time.Since(start) < duration {
		if now := time.Now(); now.Before(nextFrame) {
			time.Sleep(nextFrame.Sub(now))
		}

		if ok := d.cam.Read(&img); !ok || img.Empty() {
			// Do not advance the frame clock on a failed read.
			time.Sleep(frameInterval)
			continue
		}

		if err := writer.Write(img); err != nil {
			d.log.Warn().Err(err).Int("frame", frames).Msg("Failed to write frame")
		}
		frames++
		nextFrame = nextFrame.Add(frameInterval)
	}

	if frames == 0 {
		return errors.New("no frames were recorded")
	}

	d.log.Debug().Str("path", path).Int("frames", frames).Msg("Recording finished")
	return nil
}

// Close releases the camera. Safe to call more than once; errors are
// swallowed since the device may already be wedged during shutdown.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true

	if err := d.cam.Close(); err != nil {
		d.log.Warn().Err(err).Msg("Error closing capture device")
	}
}
