package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, GroupMoveSubtree, cfg.Modules.GroupMoveMode)
	assert.Equal(t, 8, cfg.Modules.ScanConcurrency)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("MODULES_GROUP_MOVE", "explicit")
	t.Setenv("MODULES_ROOT", "/srv/modules")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, GroupMoveExplicit, cfg.Modules.GroupMoveMode)
	assert.Equal(t, "/srv/modules", cfg.Modules.Root)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "missing secret", env: map[string]string{"AUTH_JWT_SECRET": ""}, wantErr: "AUTH_JWT_SECRET"},
		{name: "bad driver", env: map[string]string{"STORAGE_DRIVER": "mongo"}, wantErr: "STORAGE_DRIVER"},
		{name: "bad group move", env: map[string]string{"MODULES_GROUP_MOVE": "leaves"}, wantErr: "MODULES_GROUP_MOVE"},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "trace"}, wantErr: "LOG_LEVEL"},
		{name: "bad concurrency", env: map[string]string{"MODULES_SCAN_CONCURRENCY": "0"}, wantErr: "MODULES_SCAN_CONCURRENCY"},
		{
			name:    "short secret in production",
			env:     map[string]string{"APP_ENV": "production"},
			wantErr: "at least 32 characters",
		},
		{
			name:    "memory storage in production",
			env:     map[string]string{"APP_ENV": "production", "STORAGE_DRIVER": "memory", "AUTH_JWT_SECRET": "0123456789abcdef0123456789abcdef"},
			wantErr: "memory storage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTH_JWT_SECRET", "test-secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
