// Package persistence snapshots the energy ledger and the operational
// counters to disk so restarts do not lose the running totals.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/energy"
	"github.com/sirupsen/logrus"
)

// Operational are the long-lived counters mutated every control cycle.
type Operational struct {
	PumpRuntimeHours         float64   `json:"pumpRuntimeHours"`
	HeatingCycles            int64     `json:"heatingCyclesCount"`
	TotalHeatingTime         float64   `json:"totalHeatingTimeSeconds"`
	TotalHeatingTimeLifetime float64   `json:"totalHeatingTimeLifetimeSeconds"`
	LastSave                 time.Time `json:"lastSaveTime"`
}

// Snapshot is the persisted document.
type Snapshot struct {
	Ledger      energy.Ledger `json:"ledger"`
	Operational Operational   `json:"operational"`
}

// Store reads and writes snapshots at a fixed path.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes the snapshot atomically: temp file in the same directory,
// fsync, then rename, so a crash mid-write never corrupts the only copy.
func (s *Store) Save(snap Snapshot) error {
	snap.Operational.LastSave = time.Now()
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("error creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("error replacing state file: %w", err)
	}
	return nil
}

// Load reads the last snapshot. Any failure yields a zeroed snapshot and
// a warning; startup must never be blocked on persisted state.
func (s *Store) Load() Snapshot {
	snap := Snapshot{}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.Warnf("error reading state file, starting from zero: %s", err)
		}
		return snap
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		logrus.Warnf("malformed state file %s, starting from zero: %s", s.path, err)
		return Snapshot{}
	}
	return snap
}
