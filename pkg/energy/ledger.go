package energy

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Physical constants of the installation.
const (
	TankVolumeLiters = 500.0
	SpecificHeatJKgK = 4186.0
	ReferenceTempC   = 21.0
	joulesPerKWh     = 3.6e6
	halfTankMassKg   = TankVolumeLiters / 2
)

// maxCycleGap guards attribution after downtime: energy that accumulated
// while the controller was not running cannot be assigned to a source.
const maxCycleGap = 10 * time.Minute

// Source identifies where a measured energy gain came from.
type Source string

const (
	SourceSolar     Source = "solar"
	SourceCartridge Source = "cartridge"
	// SourcePellet is the residual bucket: the tank warmed with neither
	// pump nor cartridge active, so an externally fired source did it.
	SourcePellet Source = "pellet"
)

// Ledger converts tank temperatures into energy figures and attributes
// collected energy to heat sources over hour/day windows. Mutated by the
// control cycle only; exported fields are what gets persisted.
type Ledger struct {
	StoredEnergyKWh       float64   `json:"storedEnergyKwh"`
	StoredTopKWh          float64   `json:"storedTopKwh"`
	StoredBottomKWh       float64   `json:"storedBottomKwh"`
	CollectedHourKWh      float64   `json:"energyCollectedHour"`
	CollectedTodayKWh     float64   `json:"energyCollectedToday"`
	SolarTodayKWh         float64   `json:"solarToday"`
	CartridgeTodayKWh     float64   `json:"cartridgeToday"`
	PelletTodayKWh        float64   `json:"pelletToday"`
	LastCalculation       time.Time `json:"lastEnergyCalculation"`
	LastStoredEnergy      float64   `json:"lastStoredEnergy"`
	LastMidnightResetDate string    `json:"lastMidnightResetDate"`

	// SolarMargin is how far the collector must be above the tank for a
	// gain to count as solar. Not persisted, set from config.
	SolarMargin float64 `json:"-"`

	lastHourlyStamp string
}

func NewLedger(solarMargin float64) *Ledger {
	return &Ledger{SolarMargin: solarMargin}
}

// StoredEnergy returns the tank content in kWh relative to the reference
// temperature for the given average tank temperature.
func StoredEnergy(tankAvgTemp float64) float64 {
	return TankVolumeLiters * SpecificHeatJKgK * (tankAvgTemp - ReferenceTempC) / joulesPerKWh
}

// storedHalf is the energy of one tank half, used for the top/bottom split.
func storedHalf(temp float64) float64 {
	return halfTankMassKg * SpecificHeatJKgK * (temp - ReferenceTempC) / joulesPerKWh
}

// RecordCycle folds one control cycle into the ledger. Only positive
// stored-energy deltas contribute to the collection counters; a negative
// delta (tapping, losses) moves the baseline only. The baseline always
// advances regardless of attribution.
func (l *Ledger) RecordCycle(now time.Time, tankTop, tankBottom float64, pumpOn, heaterOn bool, collectorTemp float64) {
	stored := StoredEnergy((tankTop + tankBottom) / 2)
	l.StoredEnergyKWh = stored
	l.StoredTopKWh = storedHalf(tankTop)
	l.StoredBottomKWh = storedHalf(tankBottom)

	defer func() {
		l.LastCalculation = now
		l.LastStoredEnergy = stored
	}()

	if l.LastCalculation.IsZero() || now.Sub(l.LastCalculation) > maxCycleGap {
		return // first cycle or gap too large, baseline only
	}

	deltaE := stored - l.LastStoredEnergy
	if deltaE <= 0 {
		return
	}

	l.CollectedHourKWh += deltaE
	l.CollectedTodayKWh += deltaE

	source := SourcePellet
	switch {
	case pumpOn && collectorTemp > tankBottom+l.SolarMargin:
		source = SourceSolar
		l.SolarTodayKWh += deltaE
	case heaterOn:
		source = SourceCartridge
		l.CartridgeTodayKWh += deltaE
	default:
		l.PelletTodayKWh += deltaE
	}
	logrus.WithFields(logrus.Fields{
		"kwh":    deltaE,
		"source": source,
	}).Debug("energy collected")
}

// midnightWindow is how close to local midnight NeedsMidnightReset fires.
const midnightWindow = 10 * time.Second

// NeedsMidnightReset is true only inside a small window around local
// midnight and only if today's reset has not happened yet, so duplicate
// evaluations near the boundary stay idempotent.
func (l *Ledger) NeedsMidnightReset(now time.Time) bool {
	if l.LastMidnightResetDate == now.Format(time.DateOnly) {
		return false
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return now.Sub(midnight) <= midnightWindow || midnight.Add(24*time.Hour).Sub(now) <= midnightWindow
}

// ResetDay zeroes the today counters and stamps the date.
func (l *Ledger) ResetDay(now time.Time) {
	logrus.WithFields(logrus.Fields{
		"collectedToday": l.CollectedTodayKWh,
		"solar":          l.SolarTodayKWh,
		"cartridge":      l.CartridgeTodayKWh,
		"pellet":         l.PelletTodayKWh,
	}).Info("midnight reset")
	l.CollectedTodayKWh = 0
	l.SolarTodayKWh = 0
	l.CartridgeTodayKWh = 0
	l.PelletTodayKWh = 0
	l.LastMidnightResetDate = now.Format(time.DateOnly)
}

// MarkHourlyPublished claims the hourly publication for the hour of now.
// The first caller per hour gets true; later duplicates near the boundary
// get false.
func (l *Ledger) MarkHourlyPublished(now time.Time) bool {
	stamp := now.Format("2006-01-02T15")
	if l.lastHourlyStamp == stamp {
		return false
	}
	l.lastHourlyStamp = stamp
	return true
}

// ResetHour zeroes the hour counter after the hourly totals went out.
func (l *Ledger) ResetHour() {
	l.CollectedHourKWh = 0
}

// Map flattens the ledger for the MQTT payloads.
func (l *Ledger) Map() map[string]interface{} {
	return map[string]interface{}{
		"storedEnergyKwh":      round2(l.StoredEnergyKWh),
		"storedTopKwh":         round2(l.StoredTopKWh),
		"storedBottomKwh":      round2(l.StoredBottomKWh),
		"energyCollectedHour":  round2(l.CollectedHourKWh),
		"energyCollectedToday": round2(l.CollectedTodayKWh),
		"solarToday":           round2(l.SolarTodayKWh),
		"cartridgeToday":       round2(l.CartridgeTodayKWh),
		"pelletToday":          round2(l.PelletTodayKWh),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
