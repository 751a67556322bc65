package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/config"
	"visitwise-edge-go/internal/fileops"
	"visitwise-edge-go/internal/identity"
	"visitwise-edge-go/internal/logging"
	"visitwise-edge-go/internal/sdnotify"
	"visitwise-edge-go/internal/services/camera"
	"visitwise-edge-go/internal/services/converter"
	"visitwise-edge-go/internal/services/janitor"
	"visitwise-edge-go/internal/services/liveness"
	"visitwise-edge-go/internal/services/liveview"
	"visitwise-edge-go/internal/services/messaging"
	"visitwise-edge-go/internal/services/motion"
	"visitwise-edge-go/internal/services/recorder"
	"visitwise-edge-go/internal/services/uploader"
)

// Pipeline owns the full capture chain: motion monitor, recording
// worker, converter, upload pool, retention janitor and liveness
// supervisor, all sharing one camera device.
type Pipeline struct {
	cfg *config.Config
	log zerolog.Logger

	identity   *identity.Provider
	device     *camera.Device
	signal     *motion.Signal
	monitor    *motion.Monitor
	worker     *recorder.Worker
	uploads    *uploader.Service
	janitor    *janitor.Service
	supervisor *liveness.Supervisor
	publisher  *liveview.Publisher
	notifier   *sdnotify.Notifier

	stop    chan struct{}
	fatalCh chan error
	wg      sync.WaitGroup
}

// New wires the pipeline. It fails fast on the two conditions recording
// cannot recover from: an unwritable clip directory and a camera that
// will not open.
func New(cfg *config.Config, provider *identity.Provider, events *messaging.Events) (*Pipeline, error) {
	deviceID := provider.DeviceID()

	if err := probeClipDir(cfg.ClipDir); err != nil {
		return nil, err
	}

	log := logging.NewServiceLogger(deviceID, "pipeline")

	device, err := camera.Open(cfg, logging.NewServiceLogger(deviceID, "camera"))
	if err != nil {
		return nil, fmt.Errorf("failed to open camera: %w", err)
	}

	notifier := sdnotify.New()
	tracker := liveness.NewTracker()
	rebooter := liveness.NewCommandRebooter(cfg.RebootCommand)
	remover := fileops.NewRemover(cfg, logging.NewServiceLogger(deviceID, "fileops"))
	publisher := liveview.NewPublisher(logging.NewServiceLogger(deviceID, "liveview"), cfg.StreamQuality)
	signal := motion.NewSignal()

	supervisor := liveness.NewSupervisor(cfg, logging.NewServiceLogger(deviceID, "liveness"), tracker, notifier, rebooter, events)
	uploads := uploader.NewService(cfg, logging.NewServiceLogger(deviceID, "uploader"), provider.DeviceID, remover, events)
	convert := converter.NewService(cfg, logging.NewServiceLogger(deviceID, "converter"))
	worker := recorder.NewWorker(cfg, logging.NewServiceLogger(deviceID, "recorder"), signal, device, convert, supervisor, uploads, remover, events)
	monitor := motion.NewMonitor(cfg, logging.NewServiceLogger(deviceID, "motion"), device, signal, publisher)
	sweeper := janitor.NewService(cfg, logging.NewServiceLogger(deviceID, "janitor"), remover)

	return &Pipeline{
		cfg:        cfg,
		log:        log,
		identity:   provider,
		device:     device,
		signal:     signal,
		monitor:    monitor,
		worker:     worker,
		uploads:    uploads,
		janitor:    sweeper,
		supervisor: supervisor,
		publisher:  publisher,
		notifier:   notifier,
		stop:       make(chan struct{}),
		fatalCh:    make(chan error, 1),
	}, nil
}

// probeClipDir creates the clip directory and proves it is writable by
// round-tripping a probe file. Recording to a read-only filesystem would
// otherwise fail only on the first motion event.
func probeClipDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create clip directory %s: %w", dir, err)
	}
	probe := filepath.Join(dir, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("clip directory %s is not writable: %w", dir, err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("failed to remove probe file: %w", err)
	}
	return nil
}

// DeviceID returns the current identity token.
func (p *Pipeline) DeviceID() string {
	return p.identity.DeviceID()
}

// Tracker exposes health state for the status API.
func (p *Pipeline) Tracker() *liveness.Tracker {
	return p.supervisor.Tracker()
}

// Uploads exposes the upload pool for backlog reporting.
func (p *Pipeline) Uploads() *uploader.Service {
	return p.uploads
}

// Publisher exposes the live view stream.
func (p *Pipeline) Publisher() *liveview.Publisher {
	return p.publisher
}

// Start launches every service goroutine.
func (p *Pipeline) Start() {
	p.log.Info().Str("clip_dir", p.cfg.ClipDir).Msg("Starting pipeline")

	p.uploads.Start(p.stop)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.supervisor.Run(p.stop)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.janitor.Run(p.stop)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.worker.Run(p.stop)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.monitor.Run(p.stop); err != nil {
			select {
			case p.fatalCh <- err:
			default:
			}
		}
	}()
}

// Fatal delivers an unrecoverable pipeline error, if one occurs.
func (p *Pipeline) Fatal() <-chan error {
	return p.fatalCh
}

// Shutdown stops all services and releases the camera. An in-flight
// recording is given until ctx expires to finish; after that the
// process exits and the janitor cleans up the stranded clip on the
// next boot.
func (p *Pipeline) Shutdown(ctx context.Context) {
	p.log.Info().Msg("Shutting down pipeline")
	close(p.stop)

	if err := p.notifier.Stopping(); err != nil {
		p.log.Debug().Err(err).Msg("Failed to notify stopping")
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.uploads.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("Pipeline stopped")
	case <-ctx.Done():
		p.log.Warn().Dur("timeout", p.cfg.ShutdownTimeout).Msg("Shutdown timed out with work in flight")
	}

	p.device.Close()
}
