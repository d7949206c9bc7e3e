package app

import (
	"time"

	"github.com/openctemio/console/internal/metrics"
)

// observeModuleOperation records a lifecycle operation started at start.
func observeModuleOperation(op string, start time.Time, err error) {
	metrics.ModuleOperationsTotal.WithLabelValues(op, metrics.Result(err)).Inc()
	metrics.ModuleOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
