package config

import (
	"fmt"
	"time"
)

// OverheatRearm selects how the controller leaves the overheated state.
type OverheatRearm string

const (
	// RearmAuto leaves overheated once the collector has cooled
	// OverheatMargin below TempKok.
	RearmAuto OverheatRearm = "auto"
	// RearmManual stays overheated until an operator issues set_mode.
	RearmManual OverheatRearm = "manual"
)

// CliConfig is loaded with multiconfig from flags and environment.
type CliConfig struct {
	// Address of the modbus TCP unit with the PT1000 inputs and relay coils.
	// Empty selects the dummy driver.
	Address string
	SlaveID int `default:"1"`

	MqttAddress string `default:":1883"`

	SetTempTank    float64 `default:"55"`
	DTStart        float64 `default:"8"`
	DTStop         float64 `default:"4"`
	TempKok        float64 `default:"100"`
	TankMaxTemp    float64 `default:"85"`
	SolarMargin    float64 `default:"2"`
	OverheatMargin float64 `default:"10"`
	OverheatRearm  string  `default:"auto"`
	HeaterAuto     bool    `default:"false"`

	SamplingInterval time.Duration `default:"30s"`
	StatusInterval   time.Duration `default:"60s"`
	SaveInterval     time.Duration `default:"5m"`

	StateFile     string `default:"/var/lib/solarcontroller/state.json"`
	HeartbeatFile string `default:"/run/solarcontroller/heartbeat.json"`

	// MeterAddress is the primary address of an optional M-Bus electricity
	// meter on the cartridge heater circuit. 0 disables polling.
	MeterAddress  int           `default:"0"`
	MeterDevice   string        `default:"/dev/ttyAMA0"`
	MeterInterval time.Duration `default:"1m"`

	LogLevel string `default:"info"`
}

func (c *CliConfig) Validate() error {
	if c.DTStart <= c.DTStop {
		return fmt.Errorf("degenerate hysteresis band: DTStart (%.1f) must be above DTStop (%.1f)", c.DTStart, c.DTStop)
	}
	if c.TempKok <= c.SetTempTank {
		return fmt.Errorf("TempKok (%.1f) must be above SetTempTank (%.1f)", c.TempKok, c.SetTempTank)
	}
	switch OverheatRearm(c.OverheatRearm) {
	case RearmAuto, RearmManual:
	default:
		return fmt.Errorf("unknown OverheatRearm %q", c.OverheatRearm)
	}
	if c.SamplingInterval <= 0 {
		return fmt.Errorf("SamplingInterval must be positive")
	}
	return nil
}

// WatchdogConfig is loaded by cmd/watchdog. It deliberately shares nothing
// with CliConfig except the heartbeat file location.
type WatchdogConfig struct {
	HeartbeatFile string        `default:"/run/solarcontroller/heartbeat.json"`
	WatchInterval time.Duration `default:"10s"`
	StaleAfter    time.Duration `default:"2m"`
	ConnGrace     time.Duration `default:"5m"`
	RestartHour   int           `default:"4"`
	RestartCmd    string        `default:"systemctl restart solarcontroller"`

	LogLevel string `default:"info"`
}

func (c *WatchdogConfig) Validate() error {
	if c.StaleAfter < c.WatchInterval {
		return fmt.Errorf("StaleAfter (%s) must not be below WatchInterval (%s)", c.StaleAfter, c.WatchInterval)
	}
	if c.RestartHour < 0 || c.RestartHour > 23 {
		return fmt.Errorf("RestartHour must be 0-23, got %d", c.RestartHour)
	}
	return nil
}
