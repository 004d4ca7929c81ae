package hwdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	var tests = []struct {
		name     string
		expected int
		given    []byte
	}{
		{
			name:     "8bit negative",
			expected: -12,
			given:    []byte{0xf4},
		},
		{
			name:     "16bit negative half degree",
			expected: -1250,
			given:    []byte{0xfb, 0x1e},
		},
		{
			name:     "16bit positive",
			expected: 8215,
			given:    []byte{0x20, 0x17},
		},
		{
			name:     "32bit positive",
			expected: 514773,
			given:    []byte{0x00, 0x07, 0xda, 0xd5},
		},
		{
			name:     "32bit negative",
			expected: -29,
			given:    []byte{0xff, 0xff, 0xff, 0xe3},
		},
		{
			name:     "empty",
			expected: 0,
			given:    nil,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decode(tt.given))
		})
	}
}

func TestCoilValue(t *testing.T) {
	assert.Equal(t, uint16(0xff00), CoilValue(true))
	assert.Equal(t, uint16(0), CoilValue(false))
}

func TestDummyFault(t *testing.T) {
	d := NewDummy()
	d.SetFault(SensorCollector, true)
	_, err := d.ReadSensor(SensorCollector)
	assert.ErrorIs(t, err, ErrSensorFault)

	d.SetFault(SensorCollector, false)
	v, err := d.ReadSensor(SensorCollector)
	assert.NoError(t, err)
	assert.Equal(t, 20.0, v)
}
