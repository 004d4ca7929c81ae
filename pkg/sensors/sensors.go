package sensors

import (
	"time"

	"github.com/DonHugo/sun-heat-and-ftx-sub006/pkg/hwdriver"
	"github.com/sirupsen/logrus"
)

// Readings outside this range are treated as sensor faults.
const (
	MinValidTemp = -50.0
	MaxValidTemp = 200.0
)

// Sample is one temperature reading. Valid is false for a faulted sensor;
// Value is meaningless then.
type Sample struct {
	SensorID string
	Value    float64
	Valid    bool
	Time     time.Time
}

// Aggregator reads all configured sensors each cycle and tracks which of
// them are currently faulted so a fault is logged once per episode.
type Aggregator struct {
	ids    []string
	errors *errorSet
}

func New(ids ...string) *Aggregator {
	if len(ids) == 0 {
		ids = []string{hwdriver.SensorCollector, hwdriver.SensorTankTop, hwdriver.SensorTankBottom}
	}
	return &Aggregator{
		ids:    ids,
		errors: newErrorSet(),
	}
}

// ReadAll queries every configured sensor and always returns a complete
// map: failed or implausible readings come back as invalid samples, never
// as missing keys.
func (a *Aggregator) ReadAll(driver hwdriver.Driver, now time.Time) map[string]Sample {
	samples := make(map[string]Sample, len(a.ids))
	for _, id := range a.ids {
		v, err := driver.ReadSensor(id)
		if err == nil && (v < MinValidTemp || v > MaxValidTemp) {
			err = hwdriver.ErrSensorFault
			v = 0
		}
		if err != nil {
			if a.errors.Add(id) {
				logrus.WithFields(logrus.Fields{
					"sensor": id,
				}).Warnf("sensor fault: %s", err)
			}
			samples[id] = Sample{SensorID: id, Valid: false, Time: now}
			continue
		}
		if a.errors.Remove(id) {
			logrus.WithFields(logrus.Fields{
				"sensor": id,
				"value":  v,
			}).Info("sensor recovered")
		}
		samples[id] = Sample{SensorID: id, Value: v, Valid: true, Time: now}
	}
	return samples
}

// Faulted returns the ids currently in the error set.
func (a *Aggregator) Faulted() []string {
	return a.errors.List()
}
