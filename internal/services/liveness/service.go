package liveness

import (
	"time"

	"github.com/rs/zerolog"

	"visitwise-edge-go/internal/config"
)

// Notifier is the process-supervisor liveness sink. Satisfied by
// *sdnotify.Notifier.
type Notifier interface {
	Ready() error
	Heartbeat() error
	Stopping() error
}

// Rebooter performs the OS-level restart. Irreversible; the supervisor
// guards it with the tracker latch so it fires at most once.
type Rebooter interface {
	Reboot() error
}

// EventSink receives escalation events. May be nil.
type EventSink interface {
	RebootTriggered(reason string)
}

// Supervisor owns device-health escalation: it heartbeats the process
// supervisor, watches for prolonged silence, and is the single place a
// reboot can be triggered from.
type Supervisor struct {
	cfg      *config.Config
	log      zerolog.Logger
	tracker  *Tracker
	notifier Notifier
	rebooter Rebooter
	events   EventSink
}

func NewSupervisor(cfg *config.Config, log zerolog.Logger, tracker *Tracker, notifier Notifier, rebooter Rebooter, events EventSink) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		log:      log,
		tracker:  tracker,
		notifier: notifier,
		rebooter: rebooter,
		events:   events,
	}
}

// Tracker exposes the shared health state for status reporting.
func (s *Supervisor) Tracker() *Tracker {
	return s.tracker
}

// RecordSuccess is called by the recording worker after a successful
// recording+conversion.
func (s *Supervisor) RecordSuccess() {
	s.tracker.RecordSuccess(time.Now())
}

// RecordCorrupt is called by the recording worker for an undersized raw
// clip. The threshold check happens here, synchronously at the increment,
// and the counter is deliberately not reset: the process is about to
// restart.
func (s *Supervisor) RecordCorrupt() {
	count := s.tracker.RecordCorrupt()
	s.log.Warn().Int("corrupt_count", count).Msg("Corrupt clip recorded")

	if count >= s.cfg.CorruptThreshold {
		s.escalate("corrupt clip threshold reached")
	}
}

// Run sends the ready notification, then heartbeats and checks the idle
// ceiling until stop closes. The stopping notification is sent by the
// pipeline during shutdown, after the camera is released.
func (s *Supervisor) Run(stop <-chan struct{}) {
	if err := s.notifier.Ready(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to notify ready")
	}

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	idleCheck := time.NewTicker(s.cfg.IdleCheckInterval)
	defer idleCheck.Stop()

	s.log.Info().
		Dur("heartbeat_interval", s.cfg.HeartbeatInterval).
		Dur("max_idle", s.cfg.MaxIdle).
		Int("corrupt_threshold", s.cfg.CorruptThreshold).
		Msg("Liveness supervisor started")

	for {
		select {
		case <-stop:
			s.log.Info().Msg("Liveness supervisor stopped")
			return
		case <-heartbeat.C:
			if err := s.notifier.Heartbeat(); err != nil {
				s.log.Debug().Err(err).Msg("Heartbeat notification failed")
			}
		case <-idleCheck.C:
			s.checkIdle()
		}
	}
}

func (s *Supervisor) checkIdle() {
	lastSuccess, _, _ := s.tracker.Snapshot()
	idle := time.Since(lastSuccess)
	if idle > s.cfg.MaxIdle {
		s.log.Error().
			Dur("idle", idle).
			Dur("max_idle", s.cfg.MaxIdle).
			Msg("No successful clip within idle ceiling")
		s.escalate("idle ceiling exceeded")
	}
}

// escalate fires the reboot action at most once per process lifetime,
// whichever escalation path reaches the latch first.
func (s *Supervisor) escalate(reason string) {
	if !s.tracker.TryLatch() {
		return
	}

	s.log.Error().Str("reason", reason).Msg("Device health escalation, rebooting")
	if s.events != nil {
		s.events.RebootTriggered(reason)
	}

	if err := s.rebooter.Reboot(); err != nil {
		s.log.Error().Err(err).Msg("Reboot command failed")
	}
}
