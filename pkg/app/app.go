package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/config"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/energy"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/engine"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/heartbeat"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/hwdriver"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/meter"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/mqtt"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/persistence"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/sensors"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/state"
	"github.com/sirupsen/logrus"
)

// App wires the control cycle, the publication cycle and the save cycle
// together. The control cycle is the single writer of engine, ledger and
// operational state; the publication cycle reads snapshots. The one
// exception is the hourly counter handover, which both sides touch under
// mu (see publishHourly).
type App struct {
	wg     *sync.WaitGroup
	config *config.CliConfig

	driver     hwdriver.Driver
	aggregator *sensors.Aggregator
	eng        *engine.Engine
	stateStore *state.Store
	persist    *persistence.Store
	hb         *heartbeat.Writer
	gateway    *mqtt.Gateway
	meterCache *meter.Cache
	mbus       *meter.Mbus

	mu          sync.Mutex
	ledger      *energy.Ledger
	operational persistence.Operational

	cmdMu   sync.Mutex
	pending []engine.Command

	wasPumpOn bool
}

func New(cfg *config.CliConfig, driver hwdriver.Driver) *App {
	return &App{
		wg:     &sync.WaitGroup{},
		config: cfg,
		driver: driver,
		aggregator: sensors.New(
			hwdriver.SensorCollector,
			hwdriver.SensorTankTop,
			hwdriver.SensorTankBottom,
		),
		eng: engine.New(engine.Params{
			SetTempTank:    cfg.SetTempTank,
			DTStart:        cfg.DTStart,
			DTStop:         cfg.DTStop,
			TempKok:        cfg.TempKok,
			TankMaxTemp:    cfg.TankMaxTemp,
			SolarMargin:    cfg.SolarMargin,
			OverheatMargin: cfg.OverheatMargin,
			OverheatRearm:  config.OverheatRearm(cfg.OverheatRearm),
			HeaterAuto:     cfg.HeaterAuto,
		}),
		stateStore: state.NewStore(),
		persist:    persistence.NewStore(cfg.StateFile),
		hb:         heartbeat.NewWriter(cfg.HeartbeatFile),
		meterCache: &meter.Cache{},
	}
}

func (a *App) Start(ctx context.Context) error {
	snap := a.persist.Load()
	a.ledger = &snap.Ledger
	a.ledger.SolarMargin = a.config.SolarMargin
	a.operational = snap.Operational
	logrus.WithFields(logrus.Fields{
		"collectedToday":   a.ledger.CollectedTodayKWh,
		"pumpRuntimeHours": a.operational.PumpRuntimeHours,
	}).Info("state restored")

	gateway, err := mqtt.Start(ctx, a.wg, a.config.MqttAddress)
	if err != nil {
		return err
	}
	a.gateway = gateway
	err = gateway.SubscribeCommands(a.handleCommandPayload)
	if err != nil {
		return err
	}

	a.wg.Add(3)
	go a.controlLoop(ctx)
	go a.publicationLoop(ctx)
	go a.saveLoop(ctx)

	if a.config.MeterAddress != 0 {
		a.mbus = meter.NewMbus(a.config.MeterDevice)
		a.wg.Add(1)
		go a.meterLoop(ctx)
	}
	return nil
}

func (a *App) Wait() {
	a.wg.Wait()
}

// StateStore exposes read-only snapshots for external consumers.
func (a *App) StateStore() *state.Store {
	return a.stateStore
}

// ApplyCommand queues a manual command. It is drained atomically at the
// top of the next control cycle so no observer sees a half-applied
// command.
func (a *App) ApplyCommand(cmd engine.Command) {
	a.cmdMu.Lock()
	a.pending = append(a.pending, cmd)
	a.cmdMu.Unlock()
}

func (a *App) handleCommandPayload(payload []byte) {
	cmd := engine.Command{}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		logrus.Warnf("ignoring malformed command payload: %s", err)
		return
	}
	a.ApplyCommand(cmd)
}

func (a *App) drainCommands() []engine.Command {
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	cmds := a.pending
	a.pending = nil
	return cmds
}

func (a *App) controlLoop(ctx context.Context) {
	defer a.wg.Done()
	a.runCycle(time.Now())
	ticker := time.NewTicker(a.config.SamplingInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			a.runCycle(now)
		case <-ctx.Done():
			return
		}
	}
}

// runCycle is one pass of the sampling/control pipeline: commands, read,
// transition, relay writes, energy accounting, heartbeat.
func (a *App) runCycle(now time.Time) {
	for _, cmd := range a.drainCommands() {
		if err := a.eng.Apply(cmd); err != nil {
			logrus.Warnf("command rejected: %s", err)
		}
	}

	samples := a.aggregator.ReadAll(a.driver, now)
	sys := a.eng.Step(samples)
	sys = a.writeRelays(sys)

	collector := samples[hwdriver.SensorCollector]
	tankTop := samples[hwdriver.SensorTankTop]
	tankBottom := samples[hwdriver.SensorTankBottom]

	a.mu.Lock()
	if tankTop.Valid && tankBottom.Valid {
		a.ledger.RecordCycle(now, tankTop.Value, tankBottom.Value,
			sys.PrimaryPump, sys.CartridgeHeater, collector.Value)
	}
	if a.ledger.NeedsMidnightReset(now) {
		a.ledger.ResetDay(now)
		a.operational.TotalHeatingTime = 0
	}
	a.updateOperational(sys)
	a.mu.Unlock()

	if collector.Valid {
		sys.CollectorTemp = &collector.Value
	}
	if tankTop.Valid {
		sys.TankTopTemp = &tankTop.Value
	}
	if tankBottom.Valid {
		sys.TankBottomTemp = &tankBottom.Value
	}
	sys.LastCycle = now
	a.stateStore.Set(sys)

	connected := a.gateway != nil && a.gateway.Connected()
	if err := a.hb.Write(now, connected); err != nil {
		logrus.Errorf("error writing heartbeat: %s", err)
	}
}

// writeRelays pushes the relay intents to the hardware. A failed write on
// the pump or heater means the physical state is unknown, so everything
// degrades toward OFF.
func (a *App) writeRelays(sys state.System) state.System {
	err := a.driver.SetRelay(hwdriver.RelayPrimaryPump, sys.PrimaryPump)
	if err == nil {
		err = a.driver.SetRelay(hwdriver.RelayCartridgeHeater, sys.CartridgeHeater)
	}
	if err != nil {
		logrus.Errorf("relay write failed, forcing safe state: %s", err)
		a.eng.ForceSafe()
		sys.PrimaryPump = false
		sys.CartridgeHeater = false
		if err := a.driver.SetRelay(hwdriver.RelayPrimaryPump, false); err != nil {
			logrus.Errorf("error forcing pump off: %s", err)
		}
		if err := a.driver.SetRelay(hwdriver.RelayCartridgeHeater, false); err != nil {
			logrus.Errorf("error forcing heater off: %s", err)
		}
	}
	return sys
}

func (a *App) updateOperational(sys state.System) {
	interval := a.config.SamplingInterval
	if sys.PrimaryPump {
		a.operational.PumpRuntimeHours += interval.Hours()
		a.operational.TotalHeatingTime += interval.Seconds()
		a.operational.TotalHeatingTimeLifetime += interval.Seconds()
		if !a.wasPumpOn {
			a.operational.HeatingCycles++
		}
	}
	a.wasPumpOn = sys.PrimaryPump
}

// publicationLoop publishes read-only snapshots, clock-hour aligned: a
// lightweight status at a bounded cadence, and inside the final seconds
// of each hour the complete hourly totals exactly once.
func (a *App) publicationLoop(ctx context.Context) {
	defer a.wg.Done()
	timer := time.NewTimer(nextStatusDelay(time.Now(), a.config.StatusInterval))
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			now := time.Now()
			if inHourlyWindow(now) {
				a.publishHourly(now)
				timer.Reset(untilHourEnd(now) + time.Second)
				continue
			}
			a.publishStatus(now)
			timer.Reset(nextStatusDelay(now, a.config.StatusInterval))
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) publishStatus(now time.Time) {
	payload := a.statusPayload(now)
	if err := a.gateway.Publish(mqtt.TopicStatus, payload, 0, false); err != nil {
		logrus.Warnf("status publish dropped: %s", err)
	}
}

// publishHourly emits the complete hourly totals once per hour and hands
// the hour counter back to zero. The idempotency stamp tolerates the
// window being evaluated more than once.
func (a *App) publishHourly(now time.Time) {
	a.mu.Lock()
	if !a.ledger.MarkHourlyPublished(now) {
		a.mu.Unlock()
		return
	}
	payload := a.ledger.Map()
	payload["hour"] = now.Format("2006-01-02T15")
	a.ledger.ResetHour()
	a.mu.Unlock()

	if err := a.gateway.Publish(mqtt.TopicHourly, payload, 1, true); err != nil {
		logrus.Warnf("hourly publish dropped: %s", err)
	}
}

func (a *App) statusPayload(now time.Time) map[string]interface{} {
	payload := a.stateStore.Snapshot().Map()
	a.mu.Lock()
	for k, v := range a.ledger.Map() {
		payload[k] = v
	}
	payload["pumpRuntimeHours"] = a.operational.PumpRuntimeHours
	payload["heatingCyclesCount"] = a.operational.HeatingCycles
	a.mu.Unlock()
	if faulted := a.aggregator.Faulted(); len(faulted) > 0 {
		payload["sensorErrors"] = faulted
	}
	if data := a.meterCache.Get(); data != nil {
		payload["heaterPowerW"] = data.CurrentW
		payload["heaterEnergyWh"] = data.TotalWH
	}
	payload["time"] = now.Format(time.RFC3339)
	return payload
}

func (a *App) saveLoop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.config.SaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.save()
		case <-ctx.Done():
			a.save() // final save at shutdown
			return
		}
	}
}

func (a *App) save() {
	a.mu.Lock()
	snap := persistence.Snapshot{
		Ledger:      *a.ledger,
		Operational: a.operational,
	}
	a.mu.Unlock()
	if err := a.persist.Save(snap); err != nil {
		logrus.Errorf("error saving state: %s", err)
	}
}

func (a *App) meterLoop(ctx context.Context) {
	defer a.wg.Done()
	defer a.mbus.Close()
	ticker := time.NewTicker(a.config.MeterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			data, err := a.mbus.ReadValues(a.config.MeterAddress)
			if err != nil {
				logrus.Warnf("error reading heater meter: %s", err)
				continue
			}
			a.meterCache.Set(data)
		case <-ctx.Done():
			return
		}
	}
}
