package liveness

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/summary", Handler: m.handleSummary},
		{Method: "GET", Path: "/stats", Handler: m.handleStats},
		{Method: "POST", Path: "/sweep", Handler: m.handleSweep},
		{Method: "GET", Path: "/devices", Handler: m.handleListDevices},
		{Method: "GET", Path: "/devices/{id}", Handler: m.handleGetDevice},
		{Method: "GET", Path: "/devices/{id}/history", Handler: m.handleDeviceHistory},
		{Method: "POST", Path: "/devices/{id}/check", Handler: m.handleCheckDevice},
		{Method: "POST", Path: "/devices/{id}/acknowledge", Handler: m.handleAcknowledge},
		{Method: "DELETE", Path: "/devices/{id}/acknowledge", Handler: m.handleUnacknowledge},
		{Method: "GET", Path: "/alerts", Handler: m.handleListAlerts},
	}
}

// handleSummary returns the most recent cached sweep summary.
//
//	@Summary		Latest sweep summary
//	@Description	Returns the last successful sweep summary, or an empty summary when none is cached.
//	@Tags			liveness
//	@Produce		json
//	@Success		200 {object} SweepSummary
//	@Failure		503 {object} map[string]any
//	@Router			/liveness/summary [get]
func (m *Module) handleSummary(w http.ResponseWriter, _ *http.Request) {
	if m.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "liveness cache not available")
		return
	}
	summary, _ := m.cache.Latest()
	writeJSON(w, http.StatusOK, summary)
}

// handleStats returns progress of the current or last sweep.
//
//	@Summary		Sweep progress
//	@Description	Returns the latest sweep progress snapshot.
//	@Tags			liveness
//	@Produce		json
//	@Success		200 {object} SweepStats
//	@Failure		404 {object} map[string]any
//	@Router			/liveness/stats [get]
func (m *Module) handleStats(w http.ResponseWriter, _ *http.Request) {
	if m.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "liveness cache not available")
		return
	}
	stats, ok := m.cache.LatestStats()
	if !ok {
		writeError(w, http.StatusNotFound, "no sweep has run recently")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleSweep runs a sweep now and returns its summary.
//
//	@Summary		Trigger sweep
//	@Description	Runs one sweep of the active fleet. Rejected while another sweep is running.
//	@Tags			liveness
//	@Produce		json
//	@Success		200 {object} SweepSummary
//	@Failure		409 {object} map[string]any
//	@Failure		429 {object} map[string]any
//	@Router			/liveness/sweep [post]
func (m *Module) handleSweep(w http.ResponseWriter, r *http.Request) {
	if m.orch == nil {
		writeError(w, http.StatusServiceUnavailable, "liveness engine not available")
		return
	}
	var res *rate.Reservation
	reservedAt := time.Now()
	if m.limiter != nil {
		res = m.limiter.ReserveN(reservedAt, 1)
		if delay := res.DelayFrom(reservedAt); delay > 0 {
			res.CancelAt(reservedAt)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "sweep requested too frequently")
			return
		}
	}

	// The sweep outlives a dropped client so state writes are not cut short.
	summary, err := m.orch.TrySweep(context.WithoutCancel(r.Context()))
	if errors.Is(err, ErrSweepInProgress) {
		// A refused trigger gives its token back.
		if res != nil {
			res.CancelAt(reservedAt)
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleListDevices returns targets with their current state.
//
//	@Summary		List devices
//	@Description	Returns all targets with liveness state, optionally filtered by status.
//	@Tags			liveness
//	@Produce		json
//	@Param			status query string false "online, offline, offline_ack or unknown"
//	@Param			limit query int false "Max results (1-1000)" default(100)
//	@Success		200 {array} TargetRecord
//	@Failure		400 {object} map[string]any
//	@Router			/liveness/devices [get]
func (m *Module) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "liveness store not available")
		return
	}
	var filter *DeviceStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st, ok := parseStatus(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(s))
			return
		}
		filter = &st
	}

	recs, err := m.store.ListRecords(r.Context(), filter, parseLimit(r, 100))
	if err != nil {
		m.logger.Warn("failed to list devices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if recs == nil {
		recs = []TargetRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleGetDevice returns one target with its state.
//
//	@Summary		Device state
//	@Tags			liveness
//	@Produce		json
//	@Param			id path string true "Target ID"
//	@Success		200 {object} TargetRecord
//	@Failure		404 {object} map[string]any
//	@Router			/liveness/devices/{id} [get]
func (m *Module) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "liveness store not available")
		return
	}
	id := r.PathValue("id")
	rec, err := m.store.GetRecord(r.Context(), id)
	if err != nil {
		m.logger.Warn("failed to get device", zap.String("target_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeviceHistory returns recent probe results for a target.
//
//	@Summary		Device history
//	@Tags			liveness
//	@Produce		json
//	@Param			id path string true "Target ID"
//	@Param			limit query int false "Max results (1-1000)" default(100)
//	@Success		200 {array} HistoryRecord
//	@Failure		404 {object} map[string]any
//	@Router			/liveness/devices/{id}/history [get]
func (m *Module) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "liveness store not available")
		return
	}
	id := r.PathValue("id")
	rec, err := m.store.GetRecord(r.Context(), id)
	if err != nil {
		m.logger.Warn("failed to get device", zap.String("target_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}

	history, err := m.store.ListHistory(r.Context(), id, parseLimit(r, 100))
	if err != nil {
		m.logger.Warn("failed to list history", zap.String("target_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if history == nil {
		history = []HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, history)
}

// handleCheckDevice probes one target immediately.
//
//	@Summary		Check device now
//	@Tags			liveness
//	@Produce		json
//	@Param			id path string true "Target ID"
//	@Success		200 {object} CheckResult
//	@Failure		404 {object} map[string]any
//	@Router			/liveness/devices/{id}/check [post]
func (m *Module) handleCheckDevice(w http.ResponseWriter, r *http.Request) {
	if m.orch == nil {
		writeError(w, http.StatusServiceUnavailable, "liveness engine not available")
		return
	}
	id := r.PathValue("id")
	res, err := m.orch.CheckTarget(context.WithoutCancel(r.Context()), id)
	if err != nil {
		m.writeOperatorError(w, id, "check device", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAcknowledge marks an offline device as acknowledged.
//
//	@Summary		Acknowledge offline device
//	@Tags			liveness
//	@Produce		json
//	@Param			id path string true "Target ID"
//	@Success		200 {object} DeviceState
//	@Failure		404 {object} map[string]any
//	@Failure		409 {object} map[string]any
//	@Router			/liveness/devices/{id}/acknowledge [post]
func (m *Module) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if m.orch == nil {
		writeError(w, http.StatusServiceUnavailable, "liveness engine not available")
		return
	}
	id := r.PathValue("id")
	st, err := m.orch.Acknowledge(r.Context(), id)
	if err != nil {
		m.writeOperatorError(w, id, "acknowledge device", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleUnacknowledge returns an acknowledged device to monitoring.
//
//	@Summary		Unacknowledge device
//	@Tags			liveness
//	@Produce		json
//	@Param			id path string true "Target ID"
//	@Success		200 {object} DeviceState
//	@Failure		404 {object} map[string]any
//	@Failure		409 {object} map[string]any
//	@Router			/liveness/devices/{id}/acknowledge [delete]
func (m *Module) handleUnacknowledge(w http.ResponseWriter, r *http.Request) {
	if m.orch == nil {
		writeError(w, http.StatusServiceUnavailable, "liveness engine not available")
		return
	}
	id := r.PathValue("id")
	st, err := m.orch.Unacknowledge(r.Context(), id)
	if err != nil {
		m.writeOperatorError(w, id, "unacknowledge device", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleListAlerts returns alert rows, newest first.
//
//	@Summary		List alerts
//	@Tags			liveness
//	@Produce		json
//	@Param			active query bool false "Only unresolved alerts"
//	@Param			limit query int false "Max results (1-1000)" default(100)
//	@Success		200 {array} Alert
//	@Router			/liveness/alerts [get]
func (m *Module) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		writeError(w, http.StatusServiceUnavailable, "liveness store not available")
		return
	}
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	alerts, err := m.store.ListAlerts(r.Context(), activeOnly, parseLimit(r, 100))
	if err != nil {
		m.logger.Warn("failed to list alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (m *Module) writeOperatorError(w http.ResponseWriter, id, action string, err error) {
	switch {
	case errors.Is(err, ErrTargetNotFound):
		writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, ErrNotOffline), errors.Is(err, ErrNotAcknowledged), errors.Is(err, ErrStaleState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		m.logger.Warn("failed to "+action, zap.String("target_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

func parseStatus(s string) (DeviceStatus, bool) {
	switch s {
	case "unknown":
		return StatusUnknown, true
	case string(StatusOnline), string(StatusOffline), string(StatusOfflineAck):
		return DeviceStatus(s), true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://fleetpulse.dev/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}
