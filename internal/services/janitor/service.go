package janitor

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/config"
	"visitwise-edge-go/internal/fileops"
)

// Service is the retention janitor. It deletes any regular file in the
// clip directory older than the retention TTL, regardless of the file's
// state; age is the only criterion, making it the single safety net for
// whatever the pipeline leaves behind.
type Service struct {
	cfg     *config.Config
	log     zerolog.Logger
	remover *fileops.Remover
}

func NewService(cfg *config.Config, log zerolog.Logger, remover *fileops.Remover) *Service {
	return &Service{cfg: cfg, log: log, remover: remover}
}

// Run sweeps immediately, then on every tick until stop closes. The
// startup sweep clears clips stranded by a previous crash or reboot.
func (s *Service) Run(stop <-chan struct{}) {
	s.log.Info().
		Dur("ttl", s.cfg.CleanupTTL).
		Dur("interval", s.cfg.CleanupInterval).
		Msg("Retention janitor started")

	s.Sweep()

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			s.log.Info().Msg("Retention janitor stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep deletes expired files once. Errors on individual files are
// logged and skipped; a failing file gets another chance next sweep.
func (s *Service) Sweep() {
	entries, err := os.ReadDir(s.cfg.ClipDir)
	if err != nil {
		s.log.Warn().Err(err).Str("dir", s.cfg.ClipDir).Msg("Failed to read clip directory")
		return
	}

	cutoff := time.Now().Add(-s.cfg.CleanupTTL)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.log.Debug().Err(err).Str("file", entry.Name()).Msg("Failed to stat file, skipping")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.cfg.ClipDir, entry.Name())
		if err := s.remover.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to remove expired file")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("Swept expired clips")
	}
}
