package logger

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var logsDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "console",
		Subsystem: "logger",
		Name:      "logs_dropped_total",
		Help:      "Total number of logs dropped by sampling",
	},
	[]string{"level"},
)

func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// DroppedTotal returns the number of logs dropped at a level so far.
func DroppedTotal(level string) float64 {
	m, err := logsDroppedTotal.GetMetricWithLabelValues(level)
	if err != nil {
		return 0
	}
	var metric dto.Metric
	if err := m.Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}
