package liveness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Alert is a persisted alert row owned by the alert dispatcher. At most
// one unresolved row exists per target.
type Alert struct {
	ID          string     `json:"id"`
	TargetID    string     `json:"target_id"`
	Kind        AlertKind  `json:"kind"`
	Message     string     `json:"message"`
	TriggeredAt time.Time  `json:"triggered_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Store provides database access for the liveness engine. It implements
// TargetSource, StateSink, HistorySink, and UptimeRefresher.
type Store struct {
	db *sql.DB
}

// Compile-time interface guards.
var (
	_ TargetSource    = (*Store)(nil)
	_ StateSink       = (*Store)(nil)
	_ HistorySink     = (*Store)(nil)
	_ UptimeRefresher = (*Store)(nil)
)

// NewStore creates a Store backed by db. The liveness migrations must
// already be applied.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// sqlite caps bound parameters per statement; IN lists are chunked below it.
const maxInParams = 500

const recordColumns = `
	t.id, t.address, t.name, t.active,
	s.status, s.previous_status, s.last_ping, s.response_time_ms,
	s.offline_since, s.offline_duration_minutes, s.offline_alert_sent,
	s.last_status_change, s.uptime_percent, s.version, s.updated_at`

const recordFrom = `
	FROM liveness_targets t
	JOIN liveness_device_state s ON s.target_id = t.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (TargetRecord, error) {
	var (
		rec                                TargetRecord
		active, alertSent                  int
		status, previous                   string
		lastPing, offlineSince, lastChange sql.NullTime
		responseTime, uptime               sql.NullFloat64
	)
	err := row.Scan(
		&rec.Target.ID, &rec.Target.Address, &rec.Target.Name, &active,
		&status, &previous, &lastPing, &responseTime,
		&offlineSince, &rec.State.OfflineDurationMinutes, &alertSent,
		&lastChange, &uptime, &rec.State.Version, &rec.State.UpdatedAt,
	)
	if err != nil {
		return TargetRecord{}, err
	}
	rec.Target.Active = active != 0
	rec.State.TargetID = rec.Target.ID
	rec.State.Status = DeviceStatus(status)
	rec.State.PreviousStatus = DeviceStatus(previous)
	rec.State.LastPing = timeOrNil(lastPing)
	rec.State.ResponseTimeMs = floatOrNil(responseTime)
	rec.State.OfflineSince = timeOrNil(offlineSince)
	rec.State.OfflineAlertSent = alertSent != 0
	rec.State.LastStatusChange = timeOrNil(lastChange)
	rec.State.UptimePercent = floatOrNil(uptime)
	return rec, nil
}

// -- Targets --

// UpsertTarget inserts or updates a target and makes sure it has a state
// row. It reports whether the target was newly created.
func (s *Store) UpsertTarget(ctx context.Context, t Target) (created bool, err error) {
	now := time.Now().UTC()
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM liveness_targets WHERE id = ?`, t.ID,
		).Scan(&n); err != nil {
			return err
		}
		created = n == 0

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO liveness_targets (id, address, name, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				address = excluded.address,
				name = excluded.name,
				active = excluded.active,
				updated_at = excluded.updated_at`,
			t.ID, t.Address, t.Name, boolInt(t.Active), now, now,
		); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO liveness_device_state (target_id, updated_at) VALUES (?, ?)`,
			t.ID, now,
		)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("upsert target %s: %w", t.ID, err)
	}
	return created, nil
}

// GetRecord returns a target with its state. Returns nil, nil if not found.
func (s *Store) GetRecord(ctx context.Context, id string) (*TargetRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+recordFrom+` WHERE t.id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &rec, nil
}

// ListRecords returns targets with their state ordered by id, optionally
// filtered by status. limit <= 0 returns all rows.
func (s *Store) ListRecords(ctx context.Context, status *DeviceStatus, limit int) ([]TargetRecord, error) {
	query := `SELECT ` + recordColumns + recordFrom
	var args []any
	if status != nil {
		query += ` WHERE s.status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY t.id LIMIT ?`
	args = append(args, sqlLimit(limit))
	return s.queryRecords(ctx, query, args...)
}

// CountActiveTargets implements TargetSource.
func (s *Store) CountActiveTargets(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+recordFrom+`
		WHERE t.active = 1 AND s.status != ?`, string(StatusOfflineAck),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active targets: %w", err)
	}
	return n, nil
}

// ListActiveTargets implements TargetSource. Rows come back in id order
// starting after afterID, excluding inactive and acknowledged targets.
func (s *Store) ListActiveTargets(ctx context.Context, afterID string, limit int) ([]TargetRecord, error) {
	recs, err := s.queryRecords(ctx, `SELECT `+recordColumns+recordFrom+`
		WHERE t.active = 1 AND s.status != ? AND t.id > ?
		ORDER BY t.id LIMIT ?`,
		string(StatusOfflineAck), afterID, sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list active targets: %w", err)
	}
	return recs, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]TargetRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TargetRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// -- State --

// SaveState implements StateSink. The write only applies when the row
// still carries st.Version; otherwise ErrStaleState is returned. The
// updated_at column moves only when touch is true.
func (s *Store) SaveState(ctx context.Context, st DeviceState, touch bool) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE liveness_device_state SET
			status = ?,
			previous_status = ?,
			last_ping = ?,
			response_time_ms = ?,
			offline_since = ?,
			offline_duration_minutes = ?,
			offline_alert_sent = ?,
			last_status_change = ?,
			version = version + 1,
			updated_at = CASE WHEN ? = 1 THEN ? ELSE updated_at END
		WHERE target_id = ? AND version = ?`,
		string(st.Status), string(st.PreviousStatus), nullTime(st.LastPing), nullFloat(st.ResponseTimeMs),
		nullTime(st.OfflineSince), st.OfflineDurationMinutes, boolInt(st.OfflineAlertSent),
		nullTime(st.LastStatusChange), boolInt(touch), now,
		st.TargetID, st.Version,
	)
	if err != nil {
		return fmt.Errorf("save state %s: %w", st.TargetID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save state %s: %w", st.TargetID, err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM liveness_device_state WHERE target_id = ?`, st.TargetID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("save state %s: %w", st.TargetID, err)
	}
	if exists == 0 {
		return fmt.Errorf("save state %s: %w", st.TargetID, ErrTargetNotFound)
	}
	return fmt.Errorf("save state %s: %w", st.TargetID, ErrStaleState)
}

// -- History --

// AppendHistory implements HistorySink, writing records in one transaction.
func (s *Store) AppendHistory(ctx context.Context, records []HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO liveness_history (target_id, status, latency_ms, checked_at, day)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range records {
			r := &records[i]
			at := r.CheckedAt.UTC()
			if _, err := stmt.ExecContext(ctx, r.TargetID, string(r.Status), nullFloat(r.LatencyMs), at, dayNumber(at)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// ListHistory returns the newest history rows for a target, newest first.
func (s *Store) ListHistory(ctx context.Context, targetID string, limit int) ([]HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_id, status, latency_ms, checked_at
		FROM liveness_history WHERE target_id = ?
		ORDER BY checked_at DESC, id DESC LIMIT ?`,
		targetID, sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var (
			r       HistoryRecord
			status  string
			latency sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.TargetID, &status, &latency, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.Status = DeviceStatus(status)
		r.LatencyMs = floatOrNil(latency)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteHistoryBefore removes history rows checked before cutoff.
func (s *Store) DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM liveness_history WHERE checked_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old history: %w", err)
	}
	return res.RowsAffected()
}

// RefreshUptime implements UptimeRefresher, recomputing the weighted
// seven-day uptime for each target from its history.
func (s *Store) RefreshUptime(ctx context.Context, targetIDs []string, now time.Time) error {
	firstDay := dayNumber(now) - (uptimeWindowDays - 1)

	for start := 0; start < len(targetIDs); start += maxInParams {
		ids := targetIDs[start:min(start+maxInParams, len(targetIDs))]
		buckets, err := s.dayBuckets(ctx, ids, firstDay)
		if err != nil {
			return fmt.Errorf("refresh uptime: %w", err)
		}

		err = withTx(ctx, s.db, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx,
				`UPDATE liveness_device_state SET uptime_percent = ? WHERE target_id = ?`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, id := range ids {
				var pct any
				if v, ok := WeightedUptime(buckets[id], now); ok {
					pct = v
				}
				if _, err := stmt.ExecContext(ctx, pct, id); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("refresh uptime: %w", err)
		}
	}
	return nil
}

func (s *Store) dayBuckets(ctx context.Context, ids []string, firstDay int64) (map[string][]DayBucket, error) {
	args := make([]any, 0, len(ids)+1)
	args = append(args, firstDay)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT target_id, day, COUNT(*), SUM(CASE WHEN status = 'online' THEN 1 ELSE 0 END)
		FROM liveness_history
		WHERE day >= ? AND target_id IN (`+placeholders(len(ids))+`)
		GROUP BY target_id, day`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]DayBucket)
	for rows.Next() {
		var (
			id  string
			day int64
			b   DayBucket
		)
		if err := rows.Scan(&id, &day, &b.Total, &b.Online); err != nil {
			return nil, err
		}
		b.Day = time.Unix(day*86400, 0).UTC()
		out[id] = append(out[id], b)
	}
	return out, rows.Err()
}

// -- Alerts --

// InsertAlert stores a new alert row.
func (s *Store) InsertAlert(ctx context.Context, a *Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO liveness_alerts (id, target_id, kind, message, triggered_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.TargetID, string(a.Kind), a.Message, a.TriggeredAt.UTC(), nullTime(a.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetActiveAlert returns the unresolved alert for a target. Returns nil, nil if none.
func (s *Store) GetActiveAlert(ctx context.Context, targetID string) (*Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, target_id, kind, message, triggered_at, resolved_at
		FROM liveness_alerts WHERE target_id = ? AND resolved_at IS NULL
		ORDER BY triggered_at DESC LIMIT 1`,
		targetID,
	)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active alert: %w", err)
	}
	return &a, nil
}

// ResolveAlert marks an alert resolved at the given time.
func (s *Store) ResolveAlert(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE liveness_alerts SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return nil
}

// ListAlerts returns alerts newest first, optionally only unresolved ones.
func (s *Store) ListAlerts(ctx context.Context, activeOnly bool, limit int) ([]Alert, error) {
	query := `SELECT id, target_id, kind, message, triggered_at, resolved_at FROM liveness_alerts`
	if activeOnly {
		query += ` WHERE resolved_at IS NULL`
	}
	query += ` ORDER BY triggered_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteResolvedAlertsBefore removes alerts resolved before cutoff.
func (s *Store) DeleteResolvedAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM liveness_alerts WHERE resolved_at IS NOT NULL AND resolved_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old alerts: %w", err)
	}
	return res.RowsAffected()
}

func scanAlert(row rowScanner) (Alert, error) {
	var (
		a        Alert
		kind     string
		resolved sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.TargetID, &kind, &a.Message, &a.TriggeredAt, &resolved); err != nil {
		return Alert{}, err
	}
	a.Kind = AlertKind(kind)
	a.ResolvedAt = timeOrNil(resolved)
	return a, nil
}

// -- helpers --

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// sqlLimit maps a non-positive limit to sqlite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func timeOrNil(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func floatOrNil(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
