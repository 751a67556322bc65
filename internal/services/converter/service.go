package converter

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/config"
)

// Service wraps the external ffmpeg invocation that turns a raw capture
// into an uploadable container. One attempt per clip; the caller decides
// what to do with the input on failure.
type Service struct {
	cfg *config.Config
	log zerolog.Logger
}

func NewService(cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

// Convert transcodes rawPath synchronously and returns the converted
// path. A non-zero ffmpeg exit status is a failure; the raw input is left
// in place either way.
func (s *Service) Convert(rawPath string) (string, error) {
	outPath := strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + s.cfg.ConvertedExt

	args := []string{
		"-y",
		"-i", rawPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-an",
		"-movflags", "+faststart",
		"-loglevel", "error",
		outPath,
	}

	cmd := exec.Command(s.cfg.FFmpegBin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg conversion of %s failed: %w: %s",
			rawPath, err, strings.TrimSpace(stderr.String()))
	}

	s.log.Debug().
		Str("raw", rawPath).
		Str("converted", outPath).
		Dur("elapsed", time.Since(start)).
		Msg("Clip converted")

	return outPath, nil
}
