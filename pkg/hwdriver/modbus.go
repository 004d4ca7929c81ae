package hwdriver

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/goburrow/modbus"
	"github.com/sirupsen/logrus"
)

// Input register addresses for the PT1000 converter, values scaled by 100.
var sensorRegisters = map[string]uint16{
	SensorCollector:  0,
	SensorTankTop:    1,
	SensorTankBottom: 2,
}

// Relay coil addresses.
var relayCoils = map[string]uint16{
	RelayPrimaryPump:     0,
	RelayCartridgeHeater: 1,
}

const (
	coilValueOn  uint16 = 0xff00
	coilValueOff uint16 = 0
)

// Modbus drives the sensor/relay unit over modbus TCP.
type Modbus struct {
	client modbus.Client
	close  func() error
}

// NewModbus connects to a modbus TCP unit. The handler timeout bounds every
// hardware call so a dead unit cannot stall the control cycle.
func NewModbus(address string, slaveID byte) *Modbus {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = 10 * time.Second
	return &Modbus{
		client: modbus.NewClient(handler),
		close:  handler.Close,
	}
}

func (m *Modbus) ReadSensor(id string) (float64, error) {
	addr, ok := sensorRegisters[id]
	if !ok {
		return 0, fmt.Errorf("unknown sensor %q", id)
	}
	b, err := m.client.ReadInputRegisters(addr, 1)
	if err != nil {
		m.closeIfNeeded(err)
		return 0, fmt.Errorf("%w: reading %s address %d: %v", ErrSensorFault, id, addr, err)
	}
	return float64(Decode(b)) / 100.0, nil
}

func (m *Modbus) SetRelay(id string, on bool) error {
	addr, ok := relayCoils[id]
	if !ok {
		return fmt.Errorf("unknown relay %q", id)
	}
	_, err := m.client.WriteSingleCoil(addr, CoilValue(on))
	if err != nil {
		m.closeIfNeeded(err)
		return fmt.Errorf("error writing relay %s coil %d value %t: %w", id, addr, on, err)
	}
	return nil
}

func (m *Modbus) closeIfNeeded(e error) {
	if errors.Is(e, syscall.EPIPE) {
		logrus.Warn("reconnect due to broken pipe")
		if err := m.close(); err != nil {
			logrus.Errorf("error closing modbus handler: %s", err)
		}
	}
	if errors.Is(e, os.ErrDeadlineExceeded) {
		logrus.Warn("reconnect due to i/o timeout")
		if err := m.close(); err != nil {
			logrus.Errorf("error closing modbus handler: %s", err)
		}
	}
}

// Decode reads a big endian signed integer (high byte first, high word first).
func Decode(data []byte) int {
	switch len(data) {
	case 1:
		var i int8
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	case 2:
		var i int16
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	case 4:
		var i int32
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	case 8:
		var i int64
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	}
	return 0
}

func CoilValue(b bool) uint16 {
	if b {
		return coilValueOn
	}
	return coilValueOff
}
