// Package heartbeat is the one-way liveness channel from the controller to
// the watchdog process. It is a file on purpose: the watchdog must keep
// working when the controller is deadlocked, so no socket, no shared lock.
package heartbeat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Beat is what the controller writes after every successful control cycle.
type Beat struct {
	LastCycle     time.Time `json:"lastCycle"`
	MqttConnected bool      `json:"mqttConnected"`
	PID           int       `json:"pid"`
	WrittenAt     time.Time `json:"writtenAt"`
}

// Writer writes beats atomically to a fixed path.
type Writer struct {
	path string
	pid  int
}

func NewWriter(path string) *Writer {
	return &Writer{path: path, pid: os.Getpid()}
}

// Write replaces the heartbeat file. Atomic rename so the watchdog never
// reads a torn file.
func (w *Writer) Write(lastCycle time.Time, mqttConnected bool) error {
	b, err := json.Marshal(Beat{
		LastCycle:     lastCycle,
		MqttConnected: mqttConnected,
		PID:           w.pid,
		WrittenAt:     time.Now(),
	})
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating heartbeat dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".heartbeat-*")
	if err != nil {
		return fmt.Errorf("error creating heartbeat temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing heartbeat: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing heartbeat: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("error replacing heartbeat file: %w", err)
	}
	return nil
}

// Read parses the heartbeat file.
func Read(path string) (*Beat, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	beat := &Beat{}
	if err := json.Unmarshal(b, beat); err != nil {
		return nil, fmt.Errorf("malformed heartbeat file %s: %w", path, err)
	}
	return beat, nil
}
