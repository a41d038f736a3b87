package device

import (
	"context"
	"time"

	"github.com/euklyde/iothink-core/internal/infrastructure/logging"
)

// Maintenance drives the periodic inactivity sweep. It is the external
// timer of the lifecycle: the sweep itself lives on the Service so it can
// also be invoked directly (e.g. in tests).
type Maintenance struct {
	service   *Service
	interval  time.Duration
	threshold time.Duration
	logger    *logging.Logger
}

// NewMaintenance creates the sweep runner.
func NewMaintenance(service *Service, interval, threshold time.Duration, logger *logging.Logger) *Maintenance {
	return &Maintenance{
		service:   service,
		interval:  interval,
		threshold: threshold,
		logger:    logger.With("component", "maintenance"),
	}
}

// Run executes the sweep on a fixed interval until the context is cancelled.
// A sweep that races a concurrent touch may demote a freshly-seen device for
// one cycle; the next broker auth check self-heals it.
func (m *Maintenance) Run(ctx context.Context) {
	m.logger.Info("maintenance sweep started",
		"interval", m.interval.String(),
		"threshold", m.threshold.String(),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("maintenance sweep stopped")
			return
		case <-ticker.C:
			if _, err := m.service.Sweep(ctx, m.threshold); err != nil {
				m.logger.Error("inactivity sweep failed", "error", err)
			}
		}
	}
}
