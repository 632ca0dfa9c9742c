package models

import "time"

// Severity classifies operator alerts.
type Severity string

const (
	SeverityOutage         Severity = "outage"
	SeverityLatencyAnomaly Severity = "latency-anomaly"
	SeverityLifecycle      Severity = "lifecycle"
	SeverityFatal          Severity = "fatal"
)

// Alert is a transient notification produced by the engine.
type Alert struct {
	ID        string
	Severity  Severity
	Target    string
	Summary   string
	Fields    []AlertField
	CreatedAt time.Time
}

// AlertField is an ordered key/value detail rendered under the summary.
type AlertField struct {
	Name  string
	Value string
}

// Field looks up a field value by name.
func (a Alert) Field(name string) (string, bool) {
	for _, f := range a.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}
