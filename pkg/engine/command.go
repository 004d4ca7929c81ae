package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// CommandType identifies a manual command delivered through the control
// API or the MQTT command topic.
type CommandType string

const (
	CmdPumpStart     CommandType = "pump_start"
	CmdPumpStop      CommandType = "pump_stop"
	CmdHeaterOn      CommandType = "heater_on"
	CmdHeaterOff     CommandType = "heater_off"
	CmdEmergencyStop CommandType = "emergency_stop"
	CmdSetMode       CommandType = "set_mode"
)

// Command is a pre-validated manual command.
type Command struct {
	Type CommandType `json:"command"`
	Mode UserMode    `json:"mode,omitempty"`
}

// Apply mutates the engine according to cmd. It runs on the control cycle
// goroutine, between two Steps, so a half-applied command is never
// observable from the outside.
func (e *Engine) Apply(cmd Command) error {
	switch cmd.Type {
	case CmdPumpStart, CmdPumpStop:
		if e.userMode != UserManual && e.userMode != UserTest {
			return fmt.Errorf("pump command %s ignored in mode %s", cmd.Type, e.userMode)
		}
		if e.overheatLatched || e.manualStop {
			return fmt.Errorf("pump command %s ignored during emergency shutdown", cmd.Type)
		}
		e.pump = cmd.Type == CmdPumpStart

	case CmdHeaterOn, CmdHeaterOff:
		if e.userMode != UserManual && e.userMode != UserTest {
			return fmt.Errorf("heater command %s ignored in mode %s", cmd.Type, e.userMode)
		}
		if e.overheatLatched || e.manualStop {
			return fmt.Errorf("heater command %s ignored during emergency shutdown", cmd.Type)
		}
		e.heater = cmd.Type == CmdHeaterOn

	case CmdEmergencyStop:
		logrus.Warn("emergency stop commanded")
		e.manualStop = true
		e.pump = false
		e.heater = false

	case CmdSetMode:
		switch cmd.Mode {
		case UserAuto, UserManual, UserEco, UserTest:
		default:
			return fmt.Errorf("unknown mode %q", cmd.Mode)
		}
		logrus.Infof("mode set to %s", cmd.Mode)
		e.userMode = cmd.Mode
		// An explicit mode change is the operator acknowledgement that
		// clears latched shutdowns. A still-boiling collector re-latches
		// on the next cycle.
		e.manualStop = false
		e.overheatLatched = false

	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
	return nil
}
