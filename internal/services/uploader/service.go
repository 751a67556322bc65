package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/config"
	"visitwise-edge-go/internal/fileops"
	"visitwise-edge-go/internal/models"
)

// DeviceID yields the current identity token for the upload parameter.
type DeviceID func() string

// EventSink receives upload outcome events. May be nil.
type EventSink interface {
	ClipUploaded(clip string)
	UploadFailed(clip string, reason string)
}

// Service is a fixed-size pool of upload workers over a bounded backlog.
// Delivery is best-effort and at-most-one-attempt: a failed upload is
// logged and the clip is left on disk for the retention janitor. There is
// no re-queue and no retry of the upload itself.
type Service struct {
	cfg      *config.Config
	log      zerolog.Logger
	deviceID DeviceID
	remover  *fileops.Remover
	events   EventSink
	client   *http.Client

	jobs chan string
	stop <-chan struct{}
	wg   sync.WaitGroup
}

func NewService(cfg *config.Config, log zerolog.Logger, deviceID DeviceID, remover *fileops.Remover, events EventSink) *Service {
	return &Service{
		cfg:      cfg,
		log:      log,
		deviceID: deviceID,
		remover:  remover,
		events:   events,
		client:   &http.Client{Timeout: cfg.UploadTimeout},
		jobs:     make(chan string, cfg.UploadBacklog),
	}
}

// Start launches the worker pool. Workers drain until stop closes.
func (s *Service) Start(stop <-chan struct{}) {
	s.stop = stop
	for i := 0; i < s.cfg.UploadWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.log.Info().
		Int("workers", s.cfg.UploadWorkers).
		Int("backlog", s.cfg.UploadBacklog).
		Str("url", s.cfg.UploadURL).
		Msg("Upload pool started")
}

// Submit hands a converted clip to the pool. When the backlog is
// saturated this blocks until a worker frees a slot or shutdown begins;
// it never silently drops a clip.
func (s *Service) Submit(path string) {
	select {
	case s.jobs <- path:
	case <-s.stop:
		s.log.Warn().Str("clip", path).Msg("Shutdown in progress, leaving clip on disk")
	}
}

// Pending reports the current backlog depth.
func (s *Service) Pending() int {
	return len(s.jobs)
}

// Wait blocks until all workers have exited.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case path := <-s.jobs:
			s.upload(path)
		case <-s.stop:
			return
		}
	}
}

func (s *Service) upload(path string) {
	log := s.log.With().Str("clip", path).Logger()

	if err := s.post(path); err != nil {
		log.Warn().Err(err).Msg("Upload failed, leaving clip for retention janitor")
		if s.events != nil {
			s.events.UploadFailed(path, err.Error())
		}
		return
	}

	log.Info().Msg("Clip uploaded")
	if s.events != nil {
		s.events.ClipUploaded(path)
	}

	// Best-effort local cleanup; a stubborn file ages out via the janitor.
	s.remover.RemoveIfExists(path)
	if raw := models.RawSibling(path, s.cfg.RawExt); raw != path {
		s.remover.RemoveIfExists(raw)
	}
}

// post sends the clip as a multipart form with the device identity as a
// query parameter. Exactly HTTP 200 is success.
func (s *Service) post(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read clip: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write clip data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	deviceID := s.deviceID()
	target, err := url.Parse(s.cfg.UploadURL)
	if err != nil {
		return fmt.Errorf("invalid upload URL: %w", err)
	}
	query := target.Query()
	query.Set("deviceId", deviceID)
	target.RawQuery = query.Encode()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.UploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	s.log.Debug().Str("clip", path).Str("device_id", deviceID).Msg("Uploading clip")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
