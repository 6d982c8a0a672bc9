package service_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/service"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func frequencyOnly(threshold int) types.Settings {
	st := types.DefaultSettings()
	st.AlertOnBackgroundAccess = false
	st.AlertOnScreenOffAccess = false
	st.FrequentAccessThreshold = threshold
	return st
}

func TestClassifierPriority(t *testing.T) {
	st := types.DefaultSettings()

	tests := []struct {
		name       string
		background bool
		screenOff  bool
		settings   func(types.Settings) types.Settings
		want       types.Verdict
	}{
		{
			name:       "background beats screen off",
			background: true, screenOff: true,
			want: types.Verdict{Suspicious: true, Reason: service.ReasonBackground, AlertType: types.AlertBackgroundAccess},
		},
		{
			name:      "screen off alone",
			screenOff: true,
			want:      types.Verdict{Suspicious: true, Reason: service.ReasonScreenOff, AlertType: types.AlertScreenOffAccess},
		},
		{
			name:       "background rule disabled falls through",
			background: true, screenOff: true,
			settings: func(s types.Settings) types.Settings { s.AlertOnBackgroundAccess = false; return s },
			want:     types.Verdict{Suspicious: true, Reason: service.ReasonScreenOff, AlertType: types.AlertScreenOffAccess},
		},
		{
			name: "foreground with screen on",
			want: types.Verdict{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := st.Clone()
			if tt.settings != nil {
				s = tt.settings(s)
			}
			c := service.NewClassifier()
			got := c.Classify("com.example.x", types.SensorCamera, t0, tt.background, tt.screenOff, s)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifierFrequencyWithinHour(t *testing.T) {
	c := service.NewClassifier()
	st := frequencyOnly(10)

	var last types.Verdict
	for i := 0; i < 11; i++ {
		at := t0.Add(time.Duration(i) * 59 * time.Minute / 10)
		last = c.Classify("com.example.x", types.SensorMicrophone, at, false, false, st)
		if i < 10 {
			assert.False(t, last.Suspicious, "access %d", i+1)
		}
	}
	assert.True(t, last.Suspicious)
	assert.Equal(t, types.AlertFrequentAccess, last.AlertType)
	assert.True(t, strings.Contains(last.Reason, "11"), last.Reason)
}

func TestClassifierFrequencySpreadOverTwoHours(t *testing.T) {
	c := service.NewClassifier()
	st := frequencyOnly(10)

	for i := 0; i < 11; i++ {
		at := t0.Add(time.Duration(i) * 12 * time.Minute)
		v := c.Classify("com.example.x", types.SensorMicrophone, at, false, false, st)
		assert.False(t, v.Suspicious, "access %d", i+1)
	}
	assert.LessOrEqual(t, c.WindowSize("com.example.x", types.SensorMicrophone), 6)
}

func TestClassifierWindowBoundaryIsInclusive(t *testing.T) {
	c := service.NewClassifier()
	st := frequencyOnly(10)

	c.Classify("a", types.SensorCamera, t0, false, false, st)
	c.Classify("a", types.SensorCamera, t0.Add(time.Hour), false, false, st)
	assert.Equal(t, 2, c.WindowSize("a", types.SensorCamera))

	c.Classify("a", types.SensorCamera, t0.Add(time.Hour+time.Millisecond), false, false, st)
	assert.Equal(t, 2, c.WindowSize("a", types.SensorCamera))
}

func TestClassifierLateAccessCountsOnlyEarlierHour(t *testing.T) {
	c := service.NewClassifier()
	st := frequencyOnly(2)

	c.Classify("a", types.SensorCamera, t0.Add(50*time.Minute), false, false, st)
	c.Classify("a", types.SensorCamera, t0.Add(55*time.Minute), false, false, st)

	v := c.Classify("a", types.SensorCamera, t0.Add(10*time.Minute), false, false, st)
	assert.False(t, v.Suspicious, "newer accesses counted against a late one")
	assert.Equal(t, 3, c.WindowSize("a", types.SensorCamera))

	v = c.Classify("a", types.SensorCamera, t0.Add(56*time.Minute), false, false, st)
	assert.True(t, v.Suspicious)
	assert.Equal(t, service.FrequentReason(4), v.Reason)
}

func TestClassifierWindowsAreKeyedByAppAndSensor(t *testing.T) {
	c := service.NewClassifier()
	st := frequencyOnly(1)

	c.Classify("a", types.SensorCamera, t0, false, false, st)
	v := c.Classify("a", types.SensorLocation, t0, false, false, st)
	assert.False(t, v.Suspicious)
	v = c.Classify("b", types.SensorCamera, t0, false, false, st)
	assert.False(t, v.Suspicious)
	v = c.Classify("a", types.SensorCamera, t0.Add(time.Second), false, false, st)
	assert.True(t, v.Suspicious)
	assert.Equal(t, service.FrequentReason(2), v.Reason)
}

func TestClassifierFrequencyDisabled(t *testing.T) {
	c := service.NewClassifier()
	st := frequencyOnly(1)
	st.AlertOnFrequentAccess = false

	for i := 0; i < 5; i++ {
		v := c.Classify("a", types.SensorCamera, t0.Add(time.Duration(i)*time.Second), false, false, st)
		assert.False(t, v.Suspicious)
	}
	// Windows still fill so enabling the rule later sees history.
	assert.Equal(t, 5, c.WindowSize("a", types.SensorCamera))
}

func TestClassifierPrune(t *testing.T) {
	c := service.NewClassifier()
	st := frequencyOnly(10)

	c.Classify("old", types.SensorCamera, t0, false, false, st)
	c.Classify("new", types.SensorCamera, t0.Add(90*time.Minute), false, false, st)
	assert.Equal(t, 2, c.Keys())

	assert.Equal(t, 1, c.Prune(t0.Add(2*time.Hour)))
	assert.Equal(t, 1, c.Keys())
	assert.Equal(t, 0, c.WindowSize("old", types.SensorCamera))

	c.Reset()
	assert.Equal(t, 0, c.Keys())
}
