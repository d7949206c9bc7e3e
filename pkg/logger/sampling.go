package logger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SamplingConfig configures log sampling. Identical messages (same level and
// text) beyond Threshold per Tick are kept at Rate. Warnings and errors are
// never sampled.
type SamplingConfig struct {
	Enabled   bool
	Tick      time.Duration
	Threshold uint64
	Rate      float64
}

// Default values for sampling configuration
const (
	DefaultSamplingTick      = time.Second
	DefaultSamplingThreshold = 100
	DefaultSamplingRate      = 0.1
	maxSamplingKeys          = 10000
)

type samplingState struct {
	mu        sync.Mutex
	counts    map[string]uint64
	lastReset time.Time
}

type samplingHandler struct {
	handler slog.Handler
	config  SamplingConfig
	state   *samplingState
	now     func() time.Time
}

// NewSamplingHandler wraps h with threshold based sampling. It returns h
// unchanged when sampling is disabled.
func NewSamplingHandler(h slog.Handler, cfg SamplingConfig) slog.Handler {
	if !cfg.Enabled {
		return h
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultSamplingTick
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultSamplingThreshold
	}
	return &samplingHandler{
		handler: h,
		config:  cfg,
		state:   &samplingState{counts: make(map[string]uint64), lastReset: time.Now()},
		now:     time.Now,
	}
}

func (h *samplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *samplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn || h.keep(r) {
		return h.handler.Handle(ctx, r)
	}
	logsDroppedTotal.WithLabelValues(levelToString(r.Level)).Inc()
	return nil
}

func (h *samplingHandler) keep(r slog.Record) bool {
	s := h.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := h.now(); now.Sub(s.lastReset) >= h.config.Tick {
		clear(s.counts)
		s.lastReset = now
	}

	key := r.Level.String() + ":" + r.Message
	count, ok := s.counts[key]
	if !ok && len(s.counts) >= maxSamplingKeys {
		return true
	}
	count++
	s.counts[key] = count

	if count <= h.config.Threshold {
		return true
	}
	switch {
	case h.config.Rate >= 1:
		return true
	case h.config.Rate <= 0:
		return false
	}
	return count%uint64(1/h.config.Rate) == 0
}

// Derived handlers share the counters of their parent.
func (h *samplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &samplingHandler{handler: h.handler.WithAttrs(attrs), config: h.config, state: h.state, now: h.now}
}

func (h *samplingHandler) WithGroup(name string) slog.Handler {
	return &samplingHandler{handler: h.handler.WithGroup(name), config: h.config, state: h.state, now: h.now}
}
