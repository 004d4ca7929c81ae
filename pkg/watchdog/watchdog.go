// Package watchdog supervises the controller process from the outside. It
// only ever reads the heartbeat file, so a deadlocked controller cannot
// take the watchdog down with it.
package watchdog

import (
	"context"
	"os/exec"
	"time"

	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/config"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/heartbeat"
	"github.com/sirupsen/logrus"
)

// Monitor polls the heartbeat and decides when to restart the controller.
type Monitor struct {
	cfg config.WatchdogConfig

	// injectable for tests
	now     func() time.Time
	read    func(path string) (*heartbeat.Beat, error)
	restart func(reason string) error

	lastGoodRead   time.Time
	connFalseSince time.Time
	lastDaily      string
}

func New(cfg config.WatchdogConfig) *Monitor {
	m := &Monitor{
		cfg:  cfg,
		now:  time.Now,
		read: heartbeat.Read,
	}
	m.restart = m.execRestart
	return m
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	now := m.now()
	m.lastGoodRead = now
	// Never fire the unconditional restart right after boot.
	m.lastDaily = now.Format(time.DateOnly)

	ticker := time.NewTicker(m.cfg.WatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.check(m.now())
		case <-ctx.Done():
			return
		}
	}
}

// check runs one supervision round. Exported behavior is tested through
// Check in tests with injected clocks.
func (m *Monitor) check(now time.Time) {
	if reason := m.evaluate(now); reason != "" {
		logrus.Warnf("triggering restart: %s", reason)
		if err := m.restart(reason); err != nil {
			logrus.Errorf("restart command failed: %s", err)
		}
		// Fresh baselines, otherwise every following tick fires again
		// before the controller had a chance to come back.
		m.lastGoodRead = now
		m.connFalseSince = time.Time{}
	}
}

func (m *Monitor) evaluate(now time.Time) string {
	if now.Hour() == m.cfg.RestartHour && m.lastDaily != now.Format(time.DateOnly) {
		m.lastDaily = now.Format(time.DateOnly)
		return "unconditional daily restart"
	}

	beat, err := m.read(m.cfg.HeartbeatFile)
	if err != nil {
		if now.Sub(m.lastGoodRead) > m.cfg.StaleAfter {
			return "heartbeat unreadable: " + err.Error()
		}
		return ""
	}
	m.lastGoodRead = now

	if now.Sub(beat.LastCycle) > m.cfg.StaleAfter {
		return "control loop stale since " + beat.LastCycle.Format(time.RFC3339)
	}

	if !beat.MqttConnected {
		if m.connFalseSince.IsZero() {
			m.connFalseSince = now
		} else if now.Sub(m.connFalseSince) > m.cfg.ConnGrace {
			return "messaging disconnected beyond grace period"
		}
	} else {
		m.connFalseSince = time.Time{}
	}
	return ""
}

func (m *Monitor) execRestart(reason string) error {
	logrus.WithFields(logrus.Fields{
		"cmd":    m.cfg.RestartCmd,
		"reason": reason,
	}).Info("running restart command")
	return exec.Command("sh", "-c", m.cfg.RestartCmd).Run()
}
