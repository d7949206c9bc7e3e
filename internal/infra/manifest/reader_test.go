package manifest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/console/internal/infra/manifest"
	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
)

const crmManifest = `
name: crm
title: CRM
version: 1.4.0
source: official
dependencies: [accounts]
keywords: [sales]
homepage: https://example.com
menus:
  - key: crm
    name: CRM
    type: dir
    children:
      - key: crm.customers
        name: Customers
        type: menu
        path: /crm/customers
        required: true
`

func writeModule(t *testing.T, root, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, dir, module.ManifestFile), []byte(content), 0o600))
}

func TestReader_DiscoverAndRead(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeModule(t, root, "crm", crmManifest)
	writeModule(t, root, ".hidden", crmManifest)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("docs"), 0o600))

	r, err := manifest.NewReader(root)
	require.NoError(t, err)

	paths, err := r.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"crm"}, paths)

	m, err := r.Read(ctx, "crm")
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.Equal(t, "crm", m.Name)
	assert.Equal(t, module.SourceOfficial, m.Source)
	assert.Equal(t, []string{"accounts"}, m.Dependencies)

	seeds := m.MenuSeeds()
	require.Len(t, seeds, 2)
	assert.Equal(t, menu.Seed{
		Key:       "crm.customers",
		ParentKey: "crm",
		Name:      "Customers",
		Type:      menu.TypeMenu,
		Path:      "/crm/customers",
		Required:  true,
	}, seeds[1])
}

func TestReader_ReadErrors(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeModule(t, root, "broken", "name: [unclosed")
	r, err := manifest.NewReader(root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "invalid yaml", path: "broken", wantErr: module.ErrInvalidManifest},
		{name: "missing manifest", path: "nothing", wantErr: module.ErrInvalidManifest},
		{name: "escapes root", path: "../etc", wantErr: manifest.ErrOutsideRoot},
		{name: "root itself", path: ".", wantErr: manifest.ErrOutsideRoot},
		{name: "absolute", path: "/etc", wantErr: manifest.ErrOutsideRoot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Read(ctx, tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestReader_Remove(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeModule(t, root, "crm", crmManifest)
	r, err := manifest.NewReader(root)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Remove(ctx, ".."), manifest.ErrOutsideRoot)
	require.NoError(t, r.Remove(ctx, "crm"))

	_, err = os.Stat(filepath.Join(root, "crm"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(root)
	assert.NoError(t, err)
}

func TestNewReader_RequiresDirectory(t *testing.T) {
	_, err := manifest.NewReader(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
