package fileops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/config"
)

func newTestRemover(t *testing.T) *Remover {
	t.Helper()
	cfg := &config.Config{
		DeleteAttempts: 2,
		DeleteBackoff:  time.Millisecond,
	}
	return NewRemover(cfg, zerolog.Nop())
}

func TestRemoveExistingFile(t *testing.T) {
	r := newTestRemover(t)
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	if err := r.Remove(path); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected file to be gone")
	}
}

func TestRemoveMissingFileIsSuccess(t *testing.T) {
	r := newTestRemover(t)
	path := filepath.Join(t.TempDir(), "already-gone.mp4")

	if err := r.Remove(path); err != nil {
		t.Errorf("expected idempotent success for missing file, got %v", err)
	}
}

func TestRemoveRelaxesPermissions(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	r := newTestRemover(t)
	dir := filepath.Join(t.TempDir(), "locked")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	// Deleting requires write permission on the parent directory.
	if err := os.Chmod(dir, 0555); err != nil {
		t.Fatalf("failed to chmod dir: %v", err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	if err := r.Remove(path); err == nil {
		t.Error("expected remove to fail against a read-only directory")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to survive failed delete: %v", err)
	}
}
