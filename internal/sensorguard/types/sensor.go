package types

import (
	"fmt"
	"strings"
	"time"
)

// SensorType identifies a sensitive sensor whose access is monitored.
type SensorType string

const (
	SensorCamera        SensorType = "CAMERA"
	SensorMicrophone    SensorType = "MICROPHONE"
	SensorLocation      SensorType = "LOCATION"
	SensorBodySensors   SensorType = "BODY_SENSORS"
	SensorAccelerometer SensorType = "ACCELEROMETER"
	SensorGyroscope     SensorType = "GYROSCOPE"
)

// allSensors is also the per-tick processing order.
var allSensors = []SensorType{
	SensorCamera,
	SensorMicrophone,
	SensorLocation,
	SensorBodySensors,
	SensorAccelerometer,
	SensorGyroscope,
}

// AllSensors returns every known sensor type in processing order.
func AllSensors() []SensorType {
	out := make([]SensorType, len(allSensors))
	copy(out, allSensors)
	return out
}

// ParseSensorType accepts the canonical upper-case name, case-insensitively.
func ParseSensorType(s string) (SensorType, error) {
	st := SensorType(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown sensor type %q", s)
	}
	return st, nil
}

func (s SensorType) Valid() bool {
	for _, k := range allSensors {
		if k == s {
			return true
		}
	}
	return false
}

// Column is the stem used for per-sensor columns in the stats and summary tables.
func (s SensorType) Column() string {
	return strings.ToLower(string(s))
}

// Label is the lower-case human form used in alert messages ("body sensors").
func (s SensorType) Label() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), "_", " ")
}

// AccessEvent is a single access observed by the access oracle. It is never
// persisted as-is.
type AccessEvent struct {
	AppID  string
	Sensor SensorType
	At     time.Time
}
