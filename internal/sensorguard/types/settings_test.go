package types_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

func TestDefaultSettings_Valid(t *testing.T) {
	s := types.DefaultSettings()
	require.NoError(t, s.Validate())
	assert.False(t, s.Enabled)
	assert.Equal(t, 10, s.FrequentAccessThreshold)
	assert.True(t, s.Monitors(types.SensorCamera))
	assert.False(t, s.Monitors(types.SensorGyroscope))
}

func TestValidate_RejectsNonPositiveThreshold(t *testing.T) {
	for _, v := range []int{0, -1} {
		s := types.DefaultSettings()
		s.FrequentAccessThreshold = v
		err := s.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrInvalidSettings))
	}
}

func TestValidate_RejectsUnknownSensor(t *testing.T) {
	s := types.DefaultSettings()
	s.Monitor["THERMOMETER"] = true
	assert.ErrorIs(t, s.Validate(), types.ErrInvalidSettings)
}

func TestValidate_RejectsBlankWhitelistEntry(t *testing.T) {
	s := types.DefaultSettings()
	s.Whitelist = []string{"com.ok", "  "}
	assert.ErrorIs(t, s.Validate(), types.ErrInvalidSettings)
}

func TestNormalized_DedupesAndSortsWhitelist(t *testing.T) {
	s := types.Settings{
		FrequentAccessThreshold: 5,
		Whitelist:               []string{" com.b ", "com.a", "com.b", ""},
	}
	n := s.Normalized()
	assert.Equal(t, []string{"com.a", "com.b"}, n.Whitelist)
	assert.Len(t, n.Monitor, len(types.AllSensors()))
	assert.False(t, n.Monitors(types.SensorCamera))
}

func TestClone_IsDeep(t *testing.T) {
	s := types.DefaultSettings()
	s.Whitelist = []string{"com.a"}
	c := s.Clone()
	c.Monitor[types.SensorCamera] = false
	c.Whitelist[0] = "com.changed"

	assert.True(t, s.Monitors(types.SensorCamera))
	assert.Equal(t, "com.a", s.Whitelist[0])
}

func TestEnabledSensors_ProcessingOrder(t *testing.T) {
	s := types.DefaultSettings()
	s.Monitor[types.SensorGyroscope] = true
	s.Monitor[types.SensorMicrophone] = false
	assert.Equal(t, []types.SensorType{
		types.SensorCamera,
		types.SensorLocation,
		types.SensorBodySensors,
		types.SensorGyroscope,
	}, s.EnabledSensors())
}

func TestIsWhitelisted_ExactMatch(t *testing.T) {
	s := types.DefaultSettings()
	s.Whitelist = []string{"com.example.x"}
	assert.True(t, s.IsWhitelisted("com.example.x"))
	assert.False(t, s.IsWhitelisted("com.example"))
	assert.False(t, s.IsWhitelisted("com.example.xy"))
	_, ok := s.WhitelistSet()["com.example.x"]
	assert.True(t, ok)
}

func TestParseSensorType(t *testing.T) {
	st, err := types.ParseSensorType(" camera ")
	require.NoError(t, err)
	assert.Equal(t, types.SensorCamera, st)
	assert.Equal(t, "body_sensors", types.SensorBodySensors.Column())
	assert.Equal(t, "body sensors", types.SensorBodySensors.Label())

	_, err = types.ParseSensorType("lidar")
	assert.Error(t, err)
}

func TestAlertTypeForReason(t *testing.T) {
	cases := map[string]types.AlertType{
		"Background sensor access":        types.AlertBackgroundAccess,
		"Sensor access while screen off":  types.AlertScreenOffAccess,
		"Frequent access (11 times/hour)": types.AlertFrequentAccess,
		"something odd":                   types.AlertSuspiciousPattern,
	}
	for reason, want := range cases {
		assert.Equal(t, want, types.AlertTypeForReason(reason), reason)
	}
}
