package engine

import (
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/config"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/hwdriver"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/sensors"
	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/state"
	"github.com/sirupsen/logrus"
)

// heaterHysteresis is the fixed band for the cartridge heater thermostat.
const heaterHysteresis = 2.0

// Params are the control parameters, immutable during a run.
type Params struct {
	SetTempTank    float64
	DTStart        float64
	DTStop         float64
	TempKok        float64
	TankMaxTemp    float64
	SolarMargin    float64
	OverheatMargin float64
	OverheatRearm  config.OverheatRearm
	HeaterAuto     bool
}

// UserMode is the operator-selected base mode. The published mode also
// reflects pump activity and safety overrides, see resolveMode.
type UserMode string

const (
	UserAuto   UserMode = "auto"
	UserManual UserMode = "manual"
	UserEco    UserMode = "eco"
	UserTest   UserMode = "test"
)

// Engine is the hysteresis and safety state machine. It is the only owner
// of the operating mode and the relay intents. Not safe for concurrent
// use: Apply and Step both run on the control cycle goroutine.
type Engine struct {
	params Params

	userMode UserMode
	pump     bool
	heater   bool

	overheatLatched bool // collector reached TempKok
	manualStop      bool // operator issued emergency_stop
	degraded        bool // frozen on invalid sensor data, gates the warning
}

func New(params Params) *Engine {
	return &Engine{
		params:   params,
		userMode: UserAuto,
	}
}

// Step runs one control cycle over the latest samples and returns the
// resulting system state. Relay writes are the caller's job; Step only
// decides the intents.
func (e *Engine) Step(samples map[string]sensors.Sample) state.System {
	collector := samples[hwdriver.SensorCollector]
	tankTop := samples[hwdriver.SensorTankTop]
	tankBottom := samples[hwdriver.SensorTankBottom]

	e.stepOverheat(collector)

	emergency := e.overheatLatched || e.manualStop
	switch {
	case emergency:
		// Dominant condition. Forced off no matter the mode.
		e.pump = false
		e.heater = false

	case e.userMode == UserManual || e.userMode == UserTest:
		// Relays move only on explicit commands.

	case !collector.Valid || !tankBottom.Valid:
		// Cannot compute dT, freeze current relay state.
		if !e.degraded {
			logrus.WithFields(logrus.Fields{
				"collectorValid": collector.Valid,
				"tankValid":      tankBottom.Valid,
			}).Warn("degraded operation: relay state frozen on sensor fault")
			e.degraded = true
		}

	default:
		e.degraded = false
		e.stepHysteresis(collector.Value, tankBottom.Value)
		e.stepHeater(tankTop)
	}

	// The tank ceiling veto holds in every mode, manual included.
	if tankTop.Valid && tankTop.Value >= e.params.TankMaxTemp && e.heater {
		logrus.WithFields(logrus.Fields{
			"tankTop": tankTop.Value,
			"max":     e.params.TankMaxTemp,
		}).Warn("cartridge heater vetoed: tank at safety ceiling")
		e.heater = false
	}
	if emergency {
		e.heater = false
		e.pump = false
	}

	return state.System{
		Mode:              e.resolveMode(emergency),
		PrimaryPump:       e.pump,
		CartridgeHeater:   e.heater,
		ManualControl:     e.userMode == UserManual,
		Overheated:        e.overheatLatched,
		TestMode:          e.userMode == UserTest,
		EmergencyShutdown: emergency,
	}
}

// stepOverheat latches the emergency condition when the collector boils
// and clears it per the configured re-arm policy.
func (e *Engine) stepOverheat(collector sensors.Sample) {
	if !collector.Valid {
		return
	}
	if collector.Value >= e.params.TempKok {
		if !e.overheatLatched {
			logrus.WithFields(logrus.Fields{
				"collector": collector.Value,
				"tempKok":   e.params.TempKok,
			}).Error("emergency shutdown: collector at boiling threshold")
		}
		e.overheatLatched = true
		return
	}
	if e.overheatLatched && e.params.OverheatRearm == config.RearmAuto &&
		collector.Value < e.params.TempKok-e.params.OverheatMargin {
		logrus.WithFields(logrus.Fields{
			"collector": collector.Value,
		}).Info("overheat cleared, re-arming")
		e.overheatLatched = false
	}
}

// stepHysteresis applies the dT band. The start condition is only
// evaluated while the pump is off, the stop condition only while it is
// on; inside the band nothing moves.
func (e *Engine) stepHysteresis(collector, tank float64) {
	dT := collector - tank
	if !e.pump && dT >= e.params.DTStart {
		logrus.WithFields(logrus.Fields{
			"dT":      dT,
			"dTStart": e.params.DTStart,
		}).Info("pump on")
		e.pump = true
		return
	}
	if e.pump && dT <= e.params.DTStop {
		logrus.WithFields(logrus.Fields{
			"dT":     dT,
			"dTStop": e.params.DTStop,
		}).Info("pump off")
		e.pump = false
	}
}

// stepHeater runs the cartridge heater thermostat when enabled. Eco mode
// never engages the heater.
func (e *Engine) stepHeater(tankTop sensors.Sample) {
	if !e.params.HeaterAuto || e.userMode != UserAuto || !tankTop.Valid {
		return
	}
	if !e.heater && tankTop.Value < e.params.SetTempTank-heaterHysteresis {
		e.heater = true
	}
	if e.heater && tankTop.Value >= e.params.SetTempTank {
		e.heater = false
	}
}

// resolveMode maps internal flags to the published mode. Precedence:
// test > manual > overheated > heating > standby/eco.
func (e *Engine) resolveMode(emergency bool) state.Mode {
	switch {
	case e.userMode == UserTest:
		return state.ModeTest
	case e.userMode == UserManual:
		return state.ModeManual
	case emergency:
		return state.ModeOverheated
	case e.pump:
		return state.ModeHeating
	case e.userMode == UserEco:
		return state.ModeEco
	}
	return state.ModeStandby
}

// Pump reports the current pump intent.
func (e *Engine) Pump() bool { return e.pump }

// Heater reports the current heater intent.
func (e *Engine) Heater() bool { return e.heater }

// ForceSafe drops both relay intents. Used when a relay write fails and
// the actual hardware state is unknown.
func (e *Engine) ForceSafe() {
	e.pump = false
	e.heater = false
}
