package models

import "time"

// WebhookMessage is the root payload Alertmanager delivers to a webhook
// receiver (schema version 4).
type WebhookMessage struct {
	Version           string            `json:"version"`
	GroupKey          string            `json:"groupKey"`
	TruncatedAlerts   int               `json:"truncatedAlerts"`
	Status            string            `json:"status"` // "firing" or "resolved"
	Receiver          string            `json:"receiver"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`
	Alerts            []Alert           `json:"alerts"`
}

// Labels identify an alert. Alertmanager guarantees "alertname" is present.
type Labels map[string]string

// Annotations carry informational key/value pairs such as summary and
// description. All of them are optional.
type Annotations map[string]string

// Alert is a single alert within a webhook message.
type Alert struct {
	Status       string      `json:"status"`
	Labels       Labels      `json:"labels"`
	Annotations  Annotations `json:"annotations"`
	StartsAt     time.Time   `json:"startsAt"`
	EndsAt       time.Time   `json:"endsAt"`
	GeneratorURL string      `json:"generatorURL"`
	Fingerprint  string      `json:"fingerprint"`
}

// Name returns the alertname label, or an empty string if it is missing.
func (a *Alert) Name() string {
	return a.Label("alertname")
}

// Label returns a label value, or an empty string. Safe on a nil map.
func (a *Alert) Label(name string) string {
	if a.Labels == nil {
		return ""
	}
	return a.Labels[name]
}

// Annotation returns an annotation value, or an empty string. Safe on a nil
// map; summary and description are user-defined and frequently absent.
func (a *Alert) Annotation(name string) string {
	if a.Annotations == nil {
		return ""
	}
	return a.Annotations[name]
}

// Summary returns the summary annotation, falling back to description.
func (a *Alert) Summary() string {
	if s := a.Annotation("summary"); s != "" {
		return s
	}
	return a.Annotation("description")
}
