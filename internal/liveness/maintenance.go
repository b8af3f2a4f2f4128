package liveness

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startMaintenance launches a background goroutine that periodically
// deletes probe history and resolved alerts past the retention window.
func (m *Module) startMaintenance() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.runMaintenance(time.Now())
			}
		}
	}()
}

// runMaintenance executes a single maintenance cycle.
func (m *Module) runMaintenance(now time.Time) {
	if m.store == nil || m.cfg.HistoryRetention <= 0 {
		return
	}
	parent := m.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	cutoff := now.Add(-m.cfg.HistoryRetention)

	deletedHistory, err := m.store.DeleteHistoryBefore(ctx, cutoff)
	if err != nil {
		m.logger.Warn("failed to delete old history", zap.Error(err))
	} else if deletedHistory > 0 {
		m.logger.Info("purged old probe history", zap.Int64("count", deletedHistory))
	}

	deletedAlerts, err := m.store.DeleteResolvedAlertsBefore(ctx, cutoff)
	if err != nil {
		m.logger.Warn("failed to delete old alerts", zap.Error(err))
	} else if deletedAlerts > 0 {
		m.logger.Info("purged old resolved alerts", zap.Int64("count", deletedAlerts))
	}
}
