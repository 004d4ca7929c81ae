package hwdriver

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Dummy is an in-memory driver for tests and bench runs without hardware.
type Dummy struct {
	mu     sync.Mutex
	temps  map[string]float64
	relays map[string]bool
	faults map[string]bool
}

func NewDummy() *Dummy {
	return &Dummy{
		temps: map[string]float64{
			SensorCollector:  20.0,
			SensorTankTop:    45.0,
			SensorTankBottom: 35.0,
		},
		relays: map[string]bool{},
		faults: map[string]bool{},
	}
}

func (d *Dummy) ReadSensor(id string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults[id] {
		return 0, fmt.Errorf("%w: %s forced faulty", ErrSensorFault, id)
	}
	v, ok := d.temps[id]
	if !ok {
		return 0, fmt.Errorf("unknown sensor %q", id)
	}
	return v, nil
}

func (d *Dummy) SetRelay(id string, on bool) error {
	d.mu.Lock()
	d.relays[id] = on
	d.mu.Unlock()
	logrus.Infof("dummy: SetRelay %s: %t", id, on)
	return nil
}

// SetTemp sets the value the next ReadSensor returns.
func (d *Dummy) SetTemp(id string, v float64) {
	d.mu.Lock()
	d.temps[id] = v
	d.mu.Unlock()
}

// SetFault forces ReadSensor for id to fail until cleared.
func (d *Dummy) SetFault(id string, faulty bool) {
	d.mu.Lock()
	d.faults[id] = faulty
	d.mu.Unlock()
}

// Relay reports the last written relay state.
func (d *Dummy) Relay(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.relays[id]
}
