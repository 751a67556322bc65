package liveness

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/config"
)

type mockNotifier struct {
	mu         sync.Mutex
	ready      int
	heartbeats int
	stopping   int
}

func (m *mockNotifier) Ready() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready++
	return nil
}

func (m *mockNotifier) Heartbeat() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeats++
	return nil
}

func (m *mockNotifier) Stopping() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopping++
	return nil
}

func (m *mockNotifier) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready, m.heartbeats
}

type mockRebooter struct {
	mu    sync.Mutex
	fired int
}

func (m *mockRebooter) Reboot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fired++
	return nil
}

func (m *mockRebooter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fired
}

func newTestSupervisor(cfg *config.Config) (*Supervisor, *mockNotifier, *mockRebooter) {
	notifier := &mockNotifier{}
	rebooter := &mockRebooter{}
	sup := NewSupervisor(cfg, zerolog.Nop(), NewTracker(), notifier, rebooter, nil)
	return sup, notifier, rebooter
}

func TestCorruptThresholdTriggersRebootOnce(t *testing.T) {
	cfg := &config.Config{CorruptThreshold: 3}
	sup, _, rebooter := newTestSupervisor(cfg)

	sup.RecordCorrupt()
	sup.RecordCorrupt()
	if rebooter.count() != 0 {
		t.Fatal("reboot must not fire below the threshold")
	}

	sup.RecordCorrupt()
	if rebooter.count() != 1 {
		t.Fatalf("expected exactly one reboot at the threshold, got %d", rebooter.count())
	}

	// The counter is not reset, so further corruption must not re-fire.
	sup.RecordCorrupt()
	if rebooter.count() != 1 {
		t.Errorf("reboot fired again after the latch, got %d", rebooter.count())
	}
}

func TestSuccessResetsCorruptStreak(t *testing.T) {
	cfg := &config.Config{CorruptThreshold: 3}
	sup, _, rebooter := newTestSupervisor(cfg)

	sup.RecordCorrupt()
	sup.RecordCorrupt()
	sup.RecordSuccess()
	sup.RecordCorrupt()
	sup.RecordCorrupt()

	if rebooter.count() != 0 {
		t.Error("a success between corrupt clips must reset the streak")
	}

	_, count, _ := sup.Tracker().Snapshot()
	if count != 2 {
		t.Errorf("expected corrupt count 2 after reset, got %d", count)
	}
}

func TestIdleCeilingTriggersReboot(t *testing.T) {
	cfg := &config.Config{CorruptThreshold: 3, MaxIdle: 10 * time.Millisecond}
	sup, _, rebooter := newTestSupervisor(cfg)

	sup.Tracker().RecordSuccess(time.Now().Add(-time.Second))
	sup.checkIdle()

	if rebooter.count() != 1 {
		t.Fatalf("expected idle escalation to reboot, got %d", rebooter.count())
	}

	sup.checkIdle()
	if rebooter.count() != 1 {
		t.Error("idle escalation must not fire a second reboot")
	}
}

func TestBothEscalationPathsShareOneLatch(t *testing.T) {
	cfg := &config.Config{CorruptThreshold: 1, MaxIdle: time.Nanosecond}
	sup, _, rebooter := newTestSupervisor(cfg)

	sup.Tracker().RecordSuccess(time.Now().Add(-time.Hour))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sup.RecordCorrupt()
	}()
	go func() {
		defer wg.Done()
		sup.checkIdle()
	}()
	wg.Wait()

	if rebooter.count() != 1 {
		t.Errorf("racing escalation paths fired %d reboots, want 1", rebooter.count())
	}
}

func TestRunSendsReadyAndHeartbeats(t *testing.T) {
	cfg := &config.Config{
		CorruptThreshold:  3,
		HeartbeatInterval: 5 * time.Millisecond,
		IdleCheckInterval: time.Hour,
		MaxIdle:           time.Hour,
	}
	sup, notifier, _ := newTestSupervisor(cfg)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		sup.Run(stop)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	close(stop)
	<-done

	ready, heartbeats := notifier.counts()
	if ready != 1 {
		t.Errorf("expected one ready notification, got %d", ready)
	}
	if heartbeats == 0 {
		t.Error("expected at least one heartbeat")
	}
}

func TestTrackerSnapshotConsistency(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				tracker.RecordCorrupt()
				tracker.RecordSuccess(time.Now())
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		last, count, _ := tracker.Snapshot()
		if count < 0 {
			t.Fatalf("negative corrupt count %d", count)
		}
		if last.IsZero() {
			t.Fatal("zero last-success timestamp")
		}
	}
	close(stop)
	wg.Wait()
}
