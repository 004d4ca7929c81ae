package hwdriver

import "errors"

// Sensor and relay ids as wired in the installation.
const (
	SensorCollector  = "collector"
	SensorTankTop    = "tank_top"
	SensorTankBottom = "tank_bottom"

	RelayPrimaryPump     = "primary_pump"
	RelayCartridgeHeater = "cartridge_heater"
)

// ErrSensorFault marks a failed or implausible reading so callers can tell
// it apart from a valid zero-degree value with errors.Is.
var ErrSensorFault = errors.New("sensor fault")

// Driver is the hardware access layer for sensors and relays.
type Driver interface {
	// ReadSensor returns the temperature in °C for a sensor id.
	ReadSensor(id string) (float64, error)
	// SetRelay switches a relay. An error means the relay state is unknown.
	SetRelay(id string, on bool) error
}
