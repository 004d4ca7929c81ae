// Package meter polls the optional M-Bus electricity meter sitting on the
// cartridge heater circuit so the dashboard can show actual element draw.
package meter

import (
	"sync"
	"time"

	"github.com/jonaz/gombus"
)

// Data is one decoded meter readout.
type Data struct {
	PrimaryID int       `json:"id"`
	Time      time.Time `json:"time"`
	CurrentW  float64   `json:"w,omitempty"`
	TotalWH   float64   `json:"wh,omitempty"`
	VoltageV  float64   `json:"v,omitempty"`
	CurrentA  float64   `json:"a,omitempty"`
}

// Cache holds the last good readout. The poll loop writes, the
// publication loop reads.
type Cache struct {
	data *Data
	sync.RWMutex
}

func (c *Cache) Get() *Data {
	c.RLock()
	defer c.RUnlock()
	return c.data
}

func (c *Cache) Set(d *Data) {
	c.Lock()
	c.data = d
	c.Unlock()
}

// Mbus reads the heater meter over a serial M-Bus converter.
type Mbus struct {
	device string
	conn   gombus.Conn
	mutex  *sync.Mutex
}

func NewMbus(device string) *Mbus {
	return &Mbus{
		device: device,
		mutex:  &sync.Mutex{},
	}
}

func (m *Mbus) init() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.conn != nil {
		return nil
	}
	c, err := gombus.DialSerial(m.device)
	if err != nil {
		return err
	}
	m.conn = c
	return nil
}

func (m *Mbus) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}

// ReadValues polls the meter at the given primary address.
func (m *Mbus) ReadValues(primaryAddr int) (*Data, error) {
	err := m.init()
	if err != nil {
		return nil, err
	}

	frame, err := m.read(primaryAddr)
	if err != nil {
		return nil, err
	}

	data := &Data{
		PrimaryID: primaryAddr,
		Time:      time.Now(),
	}
	// Single phase energy meter on the heater circuit, record order:
	// total energy, power, voltage, current.
	if len(frame.DataRecords) > 3 {
		data.TotalWH = frame.DataRecords[0].Value
		data.CurrentW = frame.DataRecords[1].Value
		data.VoltageV = frame.DataRecords[2].Value
		data.CurrentA = frame.DataRecords[3].Value
	}
	return data, nil
}

func (m *Mbus) read(primaryAddr int) (*gombus.DecodedFrame, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, err := m.conn.Write(gombus.SndNKE(uint8(primaryAddr)))
	if err != nil {
		return nil, err
	}

	err = m.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	if err != nil {
		return nil, err
	}

	_, err = gombus.ReadSingleCharFrame(m.conn)
	if err != nil {
		return nil, err
	}

	return gombus.ReadSingleFrame(m.conn, primaryAddr)
}
