package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrInvalidSettings = errors.New("invalid settings")

// DefaultFrequentAccessThreshold is accesses per hour per (app, sensor).
const DefaultFrequentAccessThreshold = 10

// Settings is the single monitoring configuration object. It is replaced
// wholesale on update, never patched in place.
type Settings struct {
	Enabled bool                `json:"enabled"`
	Monitor map[SensorType]bool `json:"monitor"`

	AlertOnBackgroundAccess bool `json:"alert_on_background_access"`
	AlertOnScreenOffAccess  bool `json:"alert_on_screen_off_access"`
	AlertOnFrequentAccess   bool `json:"alert_on_frequent_access"`

	FrequentAccessThreshold int `json:"frequent_access_threshold"`

	Whitelist []string `json:"whitelist"`
}

// DefaultSettings monitors the permission-guarded sensors with every alert
// trigger on. Monitoring itself starts disabled.
func DefaultSettings() Settings {
	return Settings{
		Enabled: false,
		Monitor: map[SensorType]bool{
			SensorCamera:        true,
			SensorMicrophone:    true,
			SensorLocation:      true,
			SensorBodySensors:   true,
			SensorAccelerometer: false,
			SensorGyroscope:     false,
		},
		AlertOnBackgroundAccess: true,
		AlertOnScreenOffAccess:  true,
		AlertOnFrequentAccess:   true,
		FrequentAccessThreshold: DefaultFrequentAccessThreshold,
		Whitelist:               []string{},
	}
}

// Validate rejects values that must never reach the classifier.
func (s Settings) Validate() error {
	if s.FrequentAccessThreshold <= 0 {
		return fmt.Errorf("%w: frequent_access_threshold must be positive, got %d",
			ErrInvalidSettings, s.FrequentAccessThreshold)
	}
	for k := range s.Monitor {
		if !k.Valid() {
			return fmt.Errorf("%w: unknown sensor type %q", ErrInvalidSettings, k)
		}
	}
	for _, app := range s.Whitelist {
		if strings.TrimSpace(app) == "" {
			return fmt.Errorf("%w: whitelist contains an empty app id", ErrInvalidSettings)
		}
	}
	return nil
}

// Normalized returns a deep copy with every sensor present in Monitor and the
// whitelist trimmed, deduplicated and sorted.
func (s Settings) Normalized() Settings {
	out := s
	out.Monitor = make(map[SensorType]bool, len(allSensors))
	for _, k := range allSensors {
		out.Monitor[k] = s.Monitor[k]
	}

	seen := make(map[string]struct{}, len(s.Whitelist))
	out.Whitelist = make([]string, 0, len(s.Whitelist))
	for _, app := range s.Whitelist {
		app = strings.TrimSpace(app)
		if app == "" {
			continue
		}
		if _, ok := seen[app]; ok {
			continue
		}
		seen[app] = struct{}{}
		out.Whitelist = append(out.Whitelist, app)
	}
	sort.Strings(out.Whitelist)
	return out
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.Monitor = make(map[SensorType]bool, len(s.Monitor))
	for k, v := range s.Monitor {
		out.Monitor[k] = v
	}
	out.Whitelist = append([]string(nil), s.Whitelist...)
	return out
}

func (s Settings) Monitors(sensor SensorType) bool {
	return s.Monitor[sensor]
}

// EnabledSensors returns the monitored sensors in processing order.
func (s Settings) EnabledSensors() []SensorType {
	var out []SensorType
	for _, k := range allSensors {
		if s.Monitor[k] {
			out = append(out, k)
		}
	}
	return out
}

// WhitelistSet builds an exact-match lookup set.
func (s Settings) WhitelistSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Whitelist))
	for _, app := range s.Whitelist {
		set[app] = struct{}{}
	}
	return set
}

func (s Settings) IsWhitelisted(appID string) bool {
	for _, app := range s.Whitelist {
		if app == appID {
			return true
		}
	}
	return false
}
