package liveness

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/fleetpulse/internal/version"
)

var _ Notifier = (*AlertmanagerNotifier)(nil)

// alertmanagerPayload matches the Prometheus Alertmanager webhook receiver format.
type alertmanagerPayload struct {
	Version string              `json:"version"`
	Status  string              `json:"status"`
	Alerts  []alertmanagerAlert `json:"alerts"`
}

type alertmanagerAlert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
	EndsAt      time.Time         `json:"endsAt"`
}

// AlertmanagerNotifier delivers notifications in Alertmanager webhook format.
type AlertmanagerNotifier struct {
	client *http.Client
	cfg    AlertmanagerConfig
}

// NewAlertmanagerNotifier creates a new Alertmanager-format notifier.
func NewAlertmanagerNotifier(cfg AlertmanagerConfig) *AlertmanagerNotifier {
	return &AlertmanagerNotifier{
		client: &http.Client{Timeout: notifyTimeout},
		cfg:    cfg,
	}
}

// Notify sends alert as a single firing or resolved Alertmanager alert.
func (n *AlertmanagerNotifier) Notify(ctx context.Context, alert *Alert, eventType string) error {
	status := "firing"
	if eventType == EventResolved {
		status = "resolved"
	}

	am := alertmanagerAlert{
		Status: status,
		Labels: map[string]string{
			"alertname": "DeviceOffline",
			"target_id": alert.TargetID,
			"kind":      string(alert.Kind),
			"source":    "fleetpulse",
		},
		Annotations: map[string]string{"summary": alert.Message},
		StartsAt:    alert.TriggeredAt,
	}
	if alert.ResolvedAt != nil {
		am.EndsAt = *alert.ResolvedAt
	}

	body, err := json.Marshal(alertmanagerPayload{
		Version: "4",
		Status:  status,
		Alerts:  []alertmanagerAlert{am},
	})
	if err != nil {
		return fmt.Errorf("marshal alertmanager payload: %w", err)
	}
	if err := postJSON(ctx, n.client, n.cfg.URL, n.cfg.Secret, "FleetPulse-Alertmanager/"+version.Short(), nil, body); err != nil {
		return fmt.Errorf("alertmanager: %w", err)
	}
	return nil
}

// Type returns the notifier type identifier.
func (n *AlertmanagerNotifier) Type() string {
	return "alertmanager"
}
