package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("connecting", "db_password", "hunter2", "module_name", "billing")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[REDACTED]", entry["db_password"])
	assert.Equal(t, "billing", entry["module_name"])
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := context.WithValue(context.Background(), ContextKeyRequestID, "req-1")
	ctx = context.WithValue(ctx, ContextKeyAccountID, int64(42))
	log.WithContext(ctx).Info("installing")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.EqualValues(t, 42, entry["account_id"])
}

func TestSamplingHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
		Sampling: SamplingConfig{
			Enabled:   true,
			Tick:      time.Hour,
			Threshold: 2,
			Rate:      0.5,
		},
	})
	before := DroppedTotal("info")

	for range 6 {
		log.Info("tick")
	}
	log.Warn("tick")

	lines := strings.Count(buf.String(), "\n")
	// 2 under threshold, counts 4 and 6 sampled, the warning always kept.
	assert.Equal(t, 5, lines)
	assert.Equal(t, before+2, DroppedTotal("info"))
}

func TestSamplingHandler_DisabledReturnsInner(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "text", Output: &buf})
	for range 200 {
		log.Info("same")
	}
	assert.Equal(t, 200, strings.Count(buf.String(), "\n"))
}
