package liveness

import (
	"errors"
	"time"
)

// Sentinel errors.
var (
	ErrSweepInProgress = errors.New("sweep already in progress")
	ErrStaleState      = errors.New("device state was modified concurrently")
	ErrTargetNotFound  = errors.New("target not found")
	ErrNotOffline      = errors.New("device is not offline")
	ErrNotAcknowledged = errors.New("device is not acknowledged")
)

// DeviceStatus is the persisted liveness status of a target.
type DeviceStatus string

const (
	StatusUnknown    DeviceStatus = ""
	StatusOnline     DeviceStatus = "online"
	StatusOffline    DeviceStatus = "offline"
	StatusOfflineAck DeviceStatus = "offline_ack"
)

// category groups statuses for change detection: acknowledged-offline is
// still offline, and never-probed is its own category.
type category int

const (
	categoryUnknown category = iota
	categoryOnline
	categoryOffline
)

func (s DeviceStatus) category() category {
	switch s {
	case StatusOnline:
		return categoryOnline
	case StatusOffline, StatusOfflineAck:
		return categoryOffline
	default:
		return categoryUnknown
	}
}

// DeviceState is the persisted per-target liveness record.
//
// OfflineSince is non-nil exactly when Status is offline, and
// OfflineAlertSent is false whenever Status is not offline.
type DeviceState struct {
	TargetID               string       `json:"target_id"`
	Status                 DeviceStatus `json:"status"`
	PreviousStatus         DeviceStatus `json:"previous_status"`
	LastPing               *time.Time   `json:"last_ping,omitempty"`
	ResponseTimeMs         *float64     `json:"response_time_ms,omitempty"`
	OfflineSince           *time.Time   `json:"offline_since,omitempty"`
	OfflineDurationMinutes int          `json:"offline_duration_minutes"`
	OfflineAlertSent       bool         `json:"offline_alert_sent"`
	LastStatusChange       *time.Time   `json:"last_status_change,omitempty"`
	UptimePercent          *float64     `json:"uptime_percent,omitempty"`
	UpdatedAt              time.Time    `json:"updated_at"`
	// Version is the optimistic concurrency token checked by SaveState.
	Version int64 `json:"-"`
}

// TargetRecord pairs a target with its current state.
type TargetRecord struct {
	Target Target      `json:"target"`
	State  DeviceState `json:"state"`
}

// TransitionKind classifies a reconciliation that produced an event.
type TransitionKind string

const (
	TransitionWentOffline  TransitionKind = "went_offline"
	TransitionRecovered    TransitionKind = "recovered"
	TransitionStillOffline TransitionKind = "still_offline"
)

// Transition describes a state change worth telling downstream consumers.
type Transition struct {
	TargetID       string         `json:"target_id"`
	Kind           TransitionKind `json:"kind"`
	From           DeviceStatus   `json:"from"`
	To             DeviceStatus   `json:"to"`
	OfflineMinutes int            `json:"offline_minutes"`
	At             time.Time      `json:"at"`
	AlertWorthy    bool           `json:"alert_worthy"`
}

// AlertKind distinguishes a fresh outage from one that crossed the
// duration threshold.
type AlertKind string

const (
	AlertNewlyOffline     AlertKind = "newly_offline"
	AlertOfflineThreshold AlertKind = "offline_threshold"
)

// AlertEvent is emitted for alert-worthy transitions. Delivery and
// deduplication at rest belong to the AlertSink.
type AlertEvent struct {
	TargetID       string     `json:"target_id"`
	Address        string     `json:"address"`
	Name           string     `json:"name"`
	Kind           AlertKind  `json:"kind"`
	OfflineMinutes int        `json:"offline_minutes"`
	OfflineSince   *time.Time `json:"offline_since,omitempty"`
	At             time.Time  `json:"at"`
}

// HistoryRecord is one append-only probe result row.
type HistoryRecord struct {
	ID        int64        `json:"id,omitempty"`
	TargetID  string       `json:"target_id"`
	Status    DeviceStatus `json:"status"`
	LatencyMs *float64     `json:"latency_ms,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}
