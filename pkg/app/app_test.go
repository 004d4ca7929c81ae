package app

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/config"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/energy"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/engine"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/hwdriver"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/state"
	"github.com/stretchr/testify/assert"
)

func testApp(t *testing.T, driver hwdriver.Driver) *App {
	dir := t.TempDir()
	cfg := &config.CliConfig{
		SetTempTank:      55,
		DTStart:          8,
		DTStop:           4,
		TempKok:          100,
		TankMaxTemp:      85,
		SolarMargin:      2,
		OverheatMargin:   10,
		OverheatRearm:    "auto",
		SamplingInterval: 30 * time.Second,
		StateFile:        filepath.Join(dir, "state.json"),
		HeartbeatFile:    filepath.Join(dir, "heartbeat.json"),
	}
	assert.NoError(t, cfg.Validate())
	a := New(cfg, driver)
	a.ledger = energy.NewLedger(cfg.SolarMargin)
	return a
}

func TestRunCycleOperationalCounters(t *testing.T) {
	d := hwdriver.NewDummy()
	d.SetTemp(hwdriver.SensorCollector, 60)
	d.SetTemp(hwdriver.SensorTankTop, 50)
	d.SetTemp(hwdriver.SensorTankBottom, 40)

	a := testApp(t, d)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.Local)
	a.runCycle(now)
	a.runCycle(now.Add(30 * time.Second))

	assert.True(t, d.Relay(hwdriver.RelayPrimaryPump))
	assert.Equal(t, int64(1), a.operational.HeatingCycles, "one on-transition, not one per cycle")
	assert.InDelta(t, 60.0/3600, a.operational.PumpRuntimeHours, 1e-9)
	assert.Equal(t, 60.0, a.operational.TotalHeatingTime)
	assert.Equal(t, 60.0, a.operational.TotalHeatingTimeLifetime)

	snap := a.stateStore.Snapshot()
	assert.Equal(t, state.ModeHeating, snap.Mode)
	assert.Equal(t, 60.0, *snap.CollectorTemp)
}

func TestCommandsAppliedAtomicallyBetweenCycles(t *testing.T) {
	d := hwdriver.NewDummy()
	d.SetTemp(hwdriver.SensorCollector, 30)
	d.SetTemp(hwdriver.SensorTankTop, 50)
	d.SetTemp(hwdriver.SensorTankBottom, 40)

	a := testApp(t, d)
	a.ApplyCommand(engine.Command{Type: engine.CmdSetMode, Mode: engine.UserManual})
	a.ApplyCommand(engine.Command{Type: engine.CmdPumpStart})

	a.runCycle(time.Now())
	snap := a.stateStore.Snapshot()
	assert.Equal(t, state.ModeManual, snap.Mode)
	assert.True(t, snap.PrimaryPump)
	assert.True(t, d.Relay(hwdriver.RelayPrimaryPump))
	assert.Empty(t, a.pending)
}

func TestMalformedCommandPayloadIgnored(t *testing.T) {
	a := testApp(t, hwdriver.NewDummy())
	a.handleCommandPayload([]byte("{ nope"))
	assert.Empty(t, a.pending)

	a.handleCommandPayload([]byte(`{"command":"set_mode","mode":"eco"}`))
	assert.Len(t, a.pending, 1)
	assert.Equal(t, engine.CmdSetMode, a.pending[0].Type)
}

// failingDriver reads fine but cannot switch relays.
type failingDriver struct {
	*hwdriver.Dummy
	writes []string
}

func (f *failingDriver) SetRelay(id string, on bool) error {
	f.writes = append(f.writes, id)
	return errors.New("relay board not responding")
}

func TestRelayWriteFaultDegradesTowardOff(t *testing.T) {
	d := &failingDriver{Dummy: hwdriver.NewDummy()}
	d.SetTemp(hwdriver.SensorCollector, 60)
	d.SetTemp(hwdriver.SensorTankTop, 50)
	d.SetTemp(hwdriver.SensorTankBottom, 40)

	a := testApp(t, d)
	a.runCycle(time.Now())

	snap := a.stateStore.Snapshot()
	assert.False(t, snap.PrimaryPump, "published state reflects the safe fallback")
	assert.False(t, snap.CartridgeHeater)
	assert.False(t, a.eng.Pump())
	// Initial write plus the two forced-off writes.
	assert.GreaterOrEqual(t, len(d.writes), 3)
}

func TestMidnightResetClearsDailyHeatingTime(t *testing.T) {
	d := hwdriver.NewDummy()
	d.SetTemp(hwdriver.SensorCollector, 60)
	d.SetTemp(hwdriver.SensorTankTop, 50)
	d.SetTemp(hwdriver.SensorTankBottom, 40)

	a := testApp(t, d)
	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.Local)
	a.runCycle(noon)
	a.runCycle(noon.Add(30 * time.Second))
	assert.True(t, a.operational.TotalHeatingTime > 0)
	lifetime := a.operational.TotalHeatingTimeLifetime

	midnight := time.Date(2026, 6, 2, 0, 0, 2, 0, time.Local)
	a.runCycle(midnight)
	// Reset happens before the cycle's own runtime is added.
	assert.Equal(t, 30.0, a.operational.TotalHeatingTime)
	assert.True(t, a.operational.TotalHeatingTimeLifetime > lifetime)
	assert.Equal(t, "2026-06-02", a.ledger.LastMidnightResetDate)
}
