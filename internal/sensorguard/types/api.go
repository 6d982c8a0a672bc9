package types

import "time"

type LogEntry struct {
	ID               int64      `json:"id"`
	AppID            string     `json:"app_id"`
	AppName          string     `json:"app_name"`
	Sensor           SensorType `json:"sensor"`
	AccessedAt       time.Time  `json:"accessed_at"`
	WasBackground    bool       `json:"was_background"`
	WasScreenOff     bool       `json:"was_screen_off"`
	Suspicious       bool       `json:"suspicious"`
	SuspiciousReason *string    `json:"suspicious_reason"`
}

type Alert struct {
	ID           string     `json:"id"`
	AppID        string     `json:"app_id"`
	AppName      string     `json:"app_name"`
	Type         AlertType  `json:"type"`
	Sensor       SensorType `json:"sensor"`
	Message      string     `json:"message"`
	Timestamp    time.Time  `json:"timestamp"`
	Acknowledged bool       `json:"acknowledged"`
}

type AppStats struct {
	AppID           string                   `json:"app_id"`
	AppName         string                   `json:"app_name"`
	Counts          map[SensorType]int64     `json:"counts"`
	LastAccess      map[SensorType]time.Time `json:"last_access"`
	BackgroundCount int64                    `json:"background_count"`
	LastUpdated     time.Time                `json:"last_updated"`
}

type DailySummary struct {
	Date               string               `json:"date"`
	Totals             map[SensorType]int64 `json:"totals"`
	DistinctApps       map[SensorType]int64 `json:"distinct_apps"`
	BackgroundAccesses int64                `json:"background_accesses"`
	AlertsTriggered    int64                `json:"alerts_triggered"`
}

type StatusResponse struct {
	OK                   bool   `json:"ok"`
	State                string `json:"state"`
	Enabled              bool   `json:"enabled"`
	UnacknowledgedAlerts int64  `json:"unacknowledged_alerts"`
	ServerTime           string `json:"server_time"`
}

type EnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type AckResponse struct {
	OK           bool  `json:"ok"`
	Acknowledged int64 `json:"acknowledged"`
}

type ClearResponse struct {
	OK     bool   `json:"ok"`
	Target string `json:"target"`
}

type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
