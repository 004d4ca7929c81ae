package state

import (
	"sync"
	"time"
)

// Mode is the operating mode of the controller. Exactly one is active.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeManual     Mode = "manual"
	ModeEco        Mode = "eco"
	ModeTest       Mode = "test"
	ModeHeating    Mode = "heating"
	ModeStandby    Mode = "standby"
	ModeOverheated Mode = "overheated"
)

// System is the controller state as published to the outside world. The
// control cycle is the only writer; everyone else reads copies via Store.
type System struct {
	Mode              Mode `json:"mode"`
	PrimaryPump       bool `json:"primaryPump"`
	CartridgeHeater   bool `json:"cartridgeHeater"`
	ManualControl     bool `json:"manualControl"`
	Overheated        bool `json:"overheated"`
	TestMode          bool `json:"testMode"`
	EmergencyShutdown bool `json:"emergencyShutdown"`

	CollectorTemp  *float64 `json:"collectorTemp,omitempty"`
	TankTopTemp    *float64 `json:"tankTopTemp,omitempty"`
	TankBottomTemp *float64 `json:"tankBottomTemp,omitempty"`

	LastCycle time.Time `json:"lastCycle"`
}

// Map flattens the state for the MQTT status payload.
func (s System) Map() map[string]interface{} {
	m := make(map[string]interface{})
	m["mode"] = string(s.Mode)
	m["primaryPump"] = boolToInt(s.PrimaryPump)
	m["cartridgeHeater"] = boolToInt(s.CartridgeHeater)
	m["manualControl"] = boolToInt(s.ManualControl)
	m["overheated"] = boolToInt(s.Overheated)
	m["testMode"] = boolToInt(s.TestMode)
	m["emergencyShutdown"] = boolToInt(s.EmergencyShutdown)
	if s.CollectorTemp != nil {
		m["collectorTemp"] = *s.CollectorTemp
	}
	if s.TankTopTemp != nil {
		m["tankTopTemp"] = *s.TankTopTemp
	}
	if s.TankBottomTemp != nil {
		m["tankBottomTemp"] = *s.TankBottomTemp
	}
	return m
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Store holds the last published System snapshot. Set is called from the
// control cycle only; Snapshot is safe from any goroutine.
type Store struct {
	mu   sync.RWMutex
	snap System
}

func NewStore() *Store {
	return &Store{snap: System{Mode: ModeStandby}}
}

func (s *Store) Set(snap System) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *Store) Snapshot() System {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
