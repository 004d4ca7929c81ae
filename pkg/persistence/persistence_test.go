package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/energy"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path)

	snap := Snapshot{
		Ledger: energy.Ledger{
			StoredEnergyKWh:       18.2,
			CollectedHourKWh:      0.4,
			CollectedTodayKWh:     7.3,
			SolarTodayKWh:         6.0,
			CartridgeTodayKWh:     1.0,
			PelletTodayKWh:        0.3,
			LastStoredEnergy:      18.2,
			LastCalculation:       time.Date(2026, 6, 1, 12, 30, 0, 0, time.UTC),
			LastMidnightResetDate: "2026-06-01",
		},
		Operational: Operational{
			PumpRuntimeHours:         1543.25,
			HeatingCycles:            89,
			TotalHeatingTime:         3600,
			TotalHeatingTimeLifetime: 5552400,
		},
	}
	assert.NoError(t, store.Save(snap))

	got := store.Load()
	assert.Equal(t, snap.Ledger, got.Ledger)
	assert.Equal(t, snap.Operational.PumpRuntimeHours, got.Operational.PumpRuntimeHours)
	assert.Equal(t, snap.Operational.HeatingCycles, got.Operational.HeatingCycles)
	assert.Equal(t, snap.Operational.TotalHeatingTime, got.Operational.TotalHeatingTime)
	assert.Equal(t, snap.Operational.TotalHeatingTimeLifetime, got.Operational.TotalHeatingTimeLifetime)
	assert.False(t, got.Operational.LastSave.IsZero())
}

func TestLoadMissingFileDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist.json"))
	got := store.Load()
	assert.Zero(t, got.Ledger.CollectedTodayKWh)
	assert.Zero(t, got.Operational.HeatingCycles)
}

func TestLoadMalformedFileWarnsAndDefaults(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	path := filepath.Join(t.TempDir(), "state.json")
	assert.NoError(t, os.WriteFile(path, []byte("{ not json"), 0o644))

	got := NewStore(path).Load()
	assert.Zero(t, got.Ledger.CollectedTodayKWh)
	assert.Zero(t, got.Operational.PumpRuntimeHours)
	assert.Len(t, hook.Entries, 1)
	assert.Contains(t, hook.Entries[0].Message, "malformed state file")
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "state.json"))
	assert.NoError(t, store.Save(Snapshot{}))

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}
