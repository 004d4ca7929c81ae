package energy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStoredEnergy(t *testing.T) {
	// 500 l warmed 1 degree = 500*4186/3.6e6 kWh
	assert.InDelta(t, 0.5814, StoredEnergy(22.0), 0.0001)
	assert.InDelta(t, 0.0, StoredEnergy(ReferenceTempC), 0.0001)
	assert.True(t, StoredEnergy(15.0) < 0)
}

func TestRecordCycleAttribution(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.Local)

	var tests = []struct {
		name      string
		pump      bool
		heater    bool
		collector float64
		expected  func(l *Ledger) float64
	}{
		{
			name:      "solar when pump on and collector hot",
			pump:      true,
			collector: 70,
			expected:  func(l *Ledger) float64 { return l.SolarTodayKWh },
		},
		{
			name:      "cartridge when pump off and heater on",
			heater:    true,
			collector: 30,
			expected:  func(l *Ledger) float64 { return l.CartridgeTodayKWh },
		},
		{
			name:      "pellet when neither explains the gain",
			collector: 30,
			expected:  func(l *Ledger) float64 { return l.PelletTodayKWh },
		},
		{
			name:      "pump on but collector colder than tank is not solar",
			pump:      true,
			collector: 40,
			expected:  func(l *Ledger) float64 { return l.PelletTodayKWh },
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(2.0)
			l.RecordCycle(now, 50, 40, tt.pump, tt.heater, tt.collector)
			assert.Zero(t, l.CollectedTodayKWh, "first cycle is baseline only")

			l.RecordCycle(now.Add(30*time.Second), 51, 41, tt.pump, tt.heater, tt.collector)
			gain := StoredEnergy(46) - StoredEnergy(45)
			assert.InDelta(t, gain, l.CollectedTodayKWh, 1e-9)
			assert.InDelta(t, gain, l.CollectedHourKWh, 1e-9)
			assert.InDelta(t, gain, tt.expected(l), 1e-9)
		})
	}
}

func TestNegativeDeltaNeverDecreasesCounters(t *testing.T) {
	l := NewLedger(2.0)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.Local)

	l.RecordCycle(now, 50, 40, true, false, 70)
	l.RecordCycle(now.Add(30*time.Second), 52, 42, true, false, 70)
	today := l.CollectedTodayKWh
	assert.True(t, today > 0)

	// Hot water tapped, tank temperature drops.
	l.RecordCycle(now.Add(60*time.Second), 45, 35, true, false, 70)
	assert.Equal(t, today, l.CollectedTodayKWh)
	assert.Equal(t, StoredEnergy(40), l.LastStoredEnergy, "baseline still advances")

	// Recovery from the lower baseline counts again.
	l.RecordCycle(now.Add(90*time.Second), 46, 36, true, false, 70)
	assert.True(t, l.CollectedTodayKWh > today)
}

func TestRecordCycleGapBaselinesOnly(t *testing.T) {
	l := NewLedger(2.0)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.Local)

	l.RecordCycle(now, 50, 40, true, false, 70)
	// Controller was down for an hour, the gain is unattributable.
	l.RecordCycle(now.Add(time.Hour), 60, 50, true, false, 70)
	assert.Zero(t, l.CollectedTodayKWh)
	assert.Equal(t, StoredEnergy(55), l.LastStoredEnergy)
}

func TestMidnightResetOncePerDay(t *testing.T) {
	l := NewLedger(2.0)
	l.CollectedTodayKWh = 12.5
	l.SolarTodayKWh = 10
	l.CartridgeTodayKWh = 2.5
	l.CollectedHourKWh = 0.7

	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.Local)
	assert.False(t, l.NeedsMidnightReset(noon))

	midnight := time.Date(2026, 6, 2, 0, 0, 3, 0, time.Local)
	resets := 0
	// The check runs several times inside the window.
	for i := 0; i < 5; i++ {
		if l.NeedsMidnightReset(midnight.Add(time.Duration(i) * time.Second)) {
			l.ResetDay(midnight)
			resets++
		}
	}
	assert.Equal(t, 1, resets)
	assert.Zero(t, l.CollectedTodayKWh)
	assert.Zero(t, l.SolarTodayKWh)
	assert.Zero(t, l.CartridgeTodayKWh)
	assert.Equal(t, "2026-06-02", l.LastMidnightResetDate)
	assert.Equal(t, 0.7, l.CollectedHourKWh, "hour counter is reset by the hourly flow, not midnight")
}

func TestMidnightWindowJustBefore(t *testing.T) {
	l := NewLedger(2.0)
	l.LastMidnightResetDate = "2026-06-01"

	// 23:59:55 is inside the window and the date has not flipped yet.
	justBefore := time.Date(2026, 6, 1, 23, 59, 55, 0, time.Local)
	assert.False(t, l.NeedsMidnightReset(justBefore), "same date already stamped")

	l.LastMidnightResetDate = "2026-05-31"
	assert.True(t, l.NeedsMidnightReset(justBefore))
}

func TestHourlyIdempotency(t *testing.T) {
	l := NewLedger(2.0)
	ts := time.Date(2026, 6, 1, 13, 59, 55, 0, time.Local)

	assert.True(t, l.MarkHourlyPublished(ts))
	assert.False(t, l.MarkHourlyPublished(ts.Add(2*time.Second)))
	assert.True(t, l.MarkHourlyPublished(ts.Add(time.Hour)))
}
