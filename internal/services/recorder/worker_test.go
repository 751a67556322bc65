package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/config"
	"visitwise-edge-go/internal/fileops"
	"visitwise-edge-go/internal/services/motion"
)

type fakeDevice struct {
	mu       sync.Mutex
	size     int64
	err      error
	active   int
	maxSeen  int
	recorded []string
}

func (d *fakeDevice) Record(path string, duration time.Duration) error {
	d.mu.Lock()
	d.active++
	if d.active > d.maxSeen {
		d.maxSeen = d.active
	}
	d.recorded = append(d.recorded, path)
	size, err := d.size, d.err
	d.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	d.mu.Lock()
	d.active--
	d.mu.Unlock()

	if err != nil {
		return err
	}
	return os.WriteFile(path, make([]byte, size), 0o644)
}

func (d *fakeDevice) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.recorded)
}

type fakeConverter struct {
	mu     sync.Mutex
	err    error
	inputs []string
}

func (c *fakeConverter) Convert(rawPath string) (string, error) {
	c.mu.Lock()
	c.inputs = append(c.inputs, rawPath)
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	out := strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + ".mp4"
	if err := os.WriteFile(out, []byte("mp4"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func (c *fakeConverter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inputs)
}

type fakeHealth struct {
	mu      sync.Mutex
	success int
	corrupt int
}

func (h *fakeHealth) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.success++
}

func (h *fakeHealth) RecordCorrupt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.corrupt++
}

func (h *fakeHealth) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.success, h.corrupt
}

type fakeSubmitter struct {
	mu    sync.Mutex
	clips []string
}

func (s *fakeSubmitter) Submit(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips = append(s.clips, path)
}

func (s *fakeSubmitter) submitted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.clips))
	copy(out, s.clips)
	return out
}

type testRig struct {
	worker    *Worker
	signal    *motion.Signal
	device    *fakeDevice
	converter *fakeConverter
	health    *fakeHealth
	uploads   *fakeSubmitter
	stop      chan struct{}
	done      chan struct{}
}

func newRig(t *testing.T, device *fakeDevice, converter *fakeConverter) *testRig {
	t.Helper()
	cfg := &config.Config{
		ClipDir:      t.TempDir(),
		ClipDuration: 10 * time.Millisecond,
		MinClipBytes: 4096,
		RawExt:       ".avi",
		ConvertedExt: ".mp4",
	}
	rig := &testRig{
		signal:    motion.NewSignal(),
		device:    device,
		converter: converter,
		health:    &fakeHealth{},
		uploads:   &fakeSubmitter{},
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	log := zerolog.Nop()
	rig.worker = NewWorker(cfg, log, rig.signal, device, converter, rig.health, rig.uploads, fileops.NewRemover(cfg, log), nil)
	go func() {
		rig.worker.Run(rig.stop)
		close(rig.done)
	}()
	t.Cleanup(func() {
		close(rig.stop)
		<-rig.done
	})
	return rig
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHealthyClipIsConvertedAndQueued(t *testing.T) {
	device := &fakeDevice{size: 8192}
	rig := newRig(t, device, &fakeConverter{})

	rig.signal.Raise()
	waitFor(t, func() bool { return len(rig.uploads.submitted()) == 1 })

	clip := rig.uploads.submitted()[0]
	if filepath.Ext(clip) != ".mp4" {
		t.Errorf("submitted %q, want converted path", clip)
	}
	raw := strings.TrimSuffix(clip, ".mp4") + ".avi"
	if _, err := os.Stat(raw); !os.IsNotExist(err) {
		t.Error("raw clip should be removed after conversion")
	}
	success, corrupt := rig.health.counts()
	if success != 1 || corrupt != 0 {
		t.Errorf("health success=%d corrupt=%d, want 1/0", success, corrupt)
	}
}

func TestUndersizedClipIsDiscardedAsCorrupt(t *testing.T) {
	device := &fakeDevice{size: 100}
	converter := &fakeConverter{}
	rig := newRig(t, device, converter)

	rig.signal.Raise()
	waitFor(t, func() bool {
		_, corrupt := rig.health.counts()
		return corrupt == 1
	})

	if converter.count() != 0 {
		t.Error("corrupt clip must not reach the converter")
	}
	if len(rig.uploads.submitted()) != 0 {
		t.Error("corrupt clip must not reach the uploader")
	}
	entries, _ := os.ReadDir(rig.worker.cfg.ClipDir)
	if len(entries) != 0 {
		t.Errorf("corrupt raw clip should be deleted, found %d files", len(entries))
	}
}

func TestRecordErrorCountsAsCorrupt(t *testing.T) {
	device := &fakeDevice{err: errors.New("capture stalled")}
	rig := newRig(t, device, &fakeConverter{})

	rig.signal.Raise()
	waitFor(t, func() bool {
		_, corrupt := rig.health.counts()
		return corrupt == 1
	})

	if len(rig.uploads.submitted()) != 0 {
		t.Error("failed recording must not be queued for upload")
	}
}

func TestConvertFailureDropsClipWithoutCorruptMark(t *testing.T) {
	device := &fakeDevice{size: 8192}
	converter := &fakeConverter{err: errors.New("ffmpeg exit 1")}
	rig := newRig(t, device, converter)

	rig.signal.Raise()
	waitFor(t, func() bool { return converter.count() == 1 })
	waitFor(t, func() bool {
		entries, _ := os.ReadDir(rig.worker.cfg.ClipDir)
		return len(entries) == 0
	})

	success, corrupt := rig.health.counts()
	if success != 0 || corrupt != 0 {
		t.Errorf("convert failure is not a camera health signal, got success=%d corrupt=%d", success, corrupt)
	}
	if len(rig.uploads.submitted()) != 0 {
		t.Error("failed conversion must not be queued for upload")
	}
}

func TestMotionDuringRecordingCoalesces(t *testing.T) {
	device := &fakeDevice{size: 8192}
	rig := newRig(t, device, &fakeConverter{})

	rig.signal.Raise()
	waitFor(t, func() bool { return device.count() == 1 })

	// A burst of motion while the first clip is in flight coalesces
	// into at most one follow-up recording.
	for i := 0; i < 10; i++ {
		rig.signal.Raise()
		time.Sleep(time.Millisecond)
	}

	waitFor(t, func() bool { return len(rig.uploads.submitted()) >= 2 })
	time.Sleep(100 * time.Millisecond)

	device.mu.Lock()
	maxSeen := device.maxSeen
	device.mu.Unlock()
	if maxSeen > 1 {
		t.Errorf("recordings overlapped, max concurrent = %d", maxSeen)
	}
	if n := device.count(); n > 3 {
		t.Errorf("burst of 10 signals produced %d recordings, want coalesced", n)
	}
}

func TestSuccessAfterCorruptResetsNothingHere(t *testing.T) {
	// The worker only reports outcomes; streak accounting lives in the
	// liveness tracker. Verify both signals are forwarded in order.
	device := &fakeDevice{size: 100}
	rig := newRig(t, device, &fakeConverter{})

	rig.signal.Raise()
	waitFor(t, func() bool {
		_, corrupt := rig.health.counts()
		return corrupt == 1
	})

	device.mu.Lock()
	device.size = 8192
	device.mu.Unlock()

	rig.signal.Raise()
	waitFor(t, func() bool {
		success, _ := rig.health.counts()
		return success == 1
	})
}
