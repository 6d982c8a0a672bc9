package types

import "strings"

// AlertType categorises a privacy alert.
type AlertType string

const (
	AlertBackgroundAccess  AlertType = "BACKGROUND_ACCESS"
	AlertScreenOffAccess   AlertType = "SCREEN_OFF_ACCESS"
	AlertFrequentAccess    AlertType = "FREQUENT_ACCESS"
	AlertFirstTimeAccess   AlertType = "FIRST_TIME_ACCESS"
	AlertSuspiciousPattern AlertType = "SUSPICIOUS_PATTERN"
)

func (a AlertType) Valid() bool {
	switch a {
	case AlertBackgroundAccess, AlertScreenOffAccess, AlertFrequentAccess,
		AlertFirstTimeAccess, AlertSuspiciousPattern:
		return true
	}
	return false
}

// Verdict is the classifier's decision for one access. AlertType is set only
// when Suspicious is true.
type Verdict struct {
	Suspicious bool
	Reason     string
	AlertType  AlertType
}

// AlertTypeForReason derives an alert type from reason text. The classifier
// tags every suspicious verdict explicitly; this mapping is only used for
// callers that supply a bare reason.
func AlertTypeForReason(reason string) AlertType {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "background"):
		return AlertBackgroundAccess
	case strings.Contains(r, "screen off"):
		return AlertScreenOffAccess
	case strings.Contains(r, "frequent"):
		return AlertFrequentAccess
	default:
		return AlertSuspiciousPattern
	}
}
