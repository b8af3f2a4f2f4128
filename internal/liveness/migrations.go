package liveness

import (
	"database/sql"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create liveness targets and device state tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS liveness_targets (
						id TEXT PRIMARY KEY,
						address TEXT NOT NULL,
						name TEXT NOT NULL DEFAULT '',
						active INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL,
						updated_at DATETIME NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS liveness_device_state (
						target_id TEXT PRIMARY KEY REFERENCES liveness_targets(id) ON DELETE CASCADE,
						status TEXT NOT NULL DEFAULT '',
						previous_status TEXT NOT NULL DEFAULT '',
						last_ping DATETIME,
						response_time_ms REAL,
						offline_since DATETIME,
						offline_duration_minutes INTEGER NOT NULL DEFAULT 0,
						offline_alert_sent INTEGER NOT NULL DEFAULT 0,
						last_status_change DATETIME,
						uptime_percent REAL,
						version INTEGER NOT NULL DEFAULT 0,
						updated_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_liveness_state_status ON liveness_device_state(status)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version:     2,
			Description: "create liveness history table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS liveness_history (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						target_id TEXT NOT NULL REFERENCES liveness_targets(id) ON DELETE CASCADE,
						status TEXT NOT NULL,
						latency_ms REAL,
						checked_at DATETIME NOT NULL,
						day INTEGER NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_liveness_history_target_day ON liveness_history(target_id, day)`,
					`CREATE INDEX IF NOT EXISTS idx_liveness_history_checked ON liveness_history(checked_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version:     3,
			Description: "create liveness alerts table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS liveness_alerts (
						id TEXT PRIMARY KEY,
						target_id TEXT NOT NULL REFERENCES liveness_targets(id) ON DELETE CASCADE,
						kind TEXT NOT NULL,
						message TEXT NOT NULL,
						triggered_at DATETIME NOT NULL,
						resolved_at DATETIME
					)`,
					`CREATE INDEX IF NOT EXISTS idx_liveness_alerts_target ON liveness_alerts(target_id, resolved_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
