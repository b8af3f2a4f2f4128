package liveness

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notification event types.
const (
	EventTriggered = "triggered"
	EventResolved  = "resolved"
)

// Notifier delivers alert notifications through a specific channel type.
type Notifier interface {
	// Notify sends an alert notification. eventType is EventTriggered or EventResolved.
	Notify(ctx context.Context, alert *Alert, eventType string) error
	// Type returns the notifier type identifier ("webhook", "alertmanager").
	Type() string
}

const notifyTimeout = 10 * time.Second

// Signature computes the hex HMAC-SHA256 of body sent in the X-Signature header.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// postJSON delivers body to url, signing it when secret is set.
func postJSON(ctx context.Context, client *http.Client, url, secret, userAgent string, headers map[string]string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if secret != "" {
		req.Header.Set("X-Signature", Signature(secret, body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// BuildNotifiers creates notifiers for every configured endpoint.
func BuildNotifiers(cfg NotificationsConfig) []Notifier {
	out := make([]Notifier, 0, len(cfg.Webhooks)+len(cfg.Alertmanager))
	for _, wh := range cfg.Webhooks {
		out = append(out, NewWebhookNotifier(wh))
	}
	for _, am := range cfg.Alertmanager {
		out = append(out, NewAlertmanagerNotifier(am))
	}
	return out
}
