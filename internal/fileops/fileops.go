package fileops

import (
	"errors"
	"fmt"
	"os"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/config"
)

// Remover deletes local clip files with a bounded retry policy. Deletes
// are idempotent: a file that is already gone counts as success, so the
// remover can race the retention janitor without error noise.
type Remover struct {
	attempts uint64
	interval backoff.BackOff
	log      zerolog.Logger
}

func NewRemover(cfg *config.Config, log zerolog.Logger) *Remover {
	return &Remover{
		attempts: cfg.DeleteAttempts,
		interval: newPolicy(cfg),
		log:      log,
	}
}

func newPolicy(cfg *config.Config) backoff.BackOff {
	ebo := backoff.NewExponentialBackOff()
	if cfg.DeleteBackoff > 0 {
		ebo.InitialInterval = cfg.DeleteBackoff
	}
	return ebo
}

// Remove deletes path, retrying transient failures. On a permission error
// it attempts to relax the file mode before the next try. Returns nil when
// the file no longer exists after the attempts, or the last error.
func (r *Remover) Remove(path string) error {
	op := func() error {
		err := os.Remove(path)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if errors.Is(err, os.ErrPermission) {
			if chmodErr := os.Chmod(path, 0666); chmodErr != nil {
				r.log.Debug().Err(chmodErr).Str("path", path).Msg("Failed to relax file permissions")
			}
		}
		return err
	}

	policy := backoff.WithMaxRetries(newFresh(r.interval), r.attempts)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("failed to delete %s after %d attempts: %w", path, r.attempts+1, err)
	}
	return nil
}

// RemoveIfExists removes path and logs instead of returning when deletion
// keeps failing; the file is left for the retention janitor.
func (r *Remover) RemoveIfExists(path string) {
	if err := r.Remove(path); err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("Leaving file for retention janitor")
	}
}

// newFresh resets the shared interval settings into a fresh policy so
// retries from concurrent workers do not share backoff state.
func newFresh(base backoff.BackOff) backoff.BackOff {
	if ebo, ok := base.(*backoff.ExponentialBackOff); ok {
		fresh := backoff.NewExponentialBackOff()
		fresh.InitialInterval = ebo.InitialInterval
		return fresh
	}
	base.Reset()
	return base
}
