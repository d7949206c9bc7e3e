package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/console/internal/app"
	"github.com/openctemio/console/internal/infra/http/handler"
	"github.com/openctemio/console/internal/infra/http/middleware"
	"github.com/openctemio/console/internal/infra/manifest"
	"github.com/openctemio/console/internal/infra/memstore"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/role"
	"github.com/openctemio/console/pkg/domain/shared"
	"github.com/openctemio/console/pkg/logger"
	"github.com/openctemio/console/pkg/validator"
)

const accountsManifest = `
name: accounts
title: Accounts
version: 1.0.0
core: true
menus:
  - key: accounts
    name: Accounts
    type: dir
    children:
      - key: accounts.users
        name: Users
        type: menu
        required: true
      - key: accounts.settings
        name: Settings
        type: menu
        sort: 1
`

const crmManifest = `
name: crm
title: CRM
version: 1.0.0
dependencies: [accounts]
menus:
  - key: crm
    name: CRM
    type: dir
    children:
      - key: crm.customers
        name: Customers
        type: menu
`

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type errorData struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing"`
}

type fixture struct {
	store    *memstore.Store
	modules  *handler.ModuleHandler
	roleMenu *handler.RoleMenuHandler
	role     *role.Role
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	for name, content := range map[string]string{"accounts": accountsManifest, "crm": crmManifest} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, name, module.ManifestFile), []byte(content), 0o600))
	}
	reader, err := manifest.NewReader(root)
	require.NoError(t, err)

	store := memstore.New()
	log := logger.NewNop()
	v := validator.New()
	lifecycle := app.NewModuleLifecycleService(store.Modules(), store.Entitlements(), reader, log,
		app.WithSourceRemover(reader))
	assembly := app.NewPermissionAssemblyService(store.Roles(), store.Grants(), store.Menus(), store.Modules(), log)

	return &fixture{
		store:    store,
		modules:  handler.NewModuleHandler(lifecycle, v, log),
		roleMenu: handler.NewRoleMenuHandler(assembly, v, log),
		role:     store.PutRole(shared.AccountTypeOperator, "admin", "Administrator", 0),
	}
}

func (f *fixture) call(t *testing.T, h http.HandlerFunc, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req = req.WithContext(middleware.WithAccount(req.Context(), 1, shared.AccountTypeOperator))
	rec := httptest.NewRecorder()
	h(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	assert.Equal(t, rec.Code, env.Code)
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// moduleIDs scans the fixture modules and returns their ids by name.
func (f *fixture) scan(t *testing.T) map[string]shared.ID {
	t.Helper()
	code, _ := f.call(t, f.modules.Scan, `{}`)
	require.Equal(t, http.StatusOK, code)

	mods, err := f.store.Modules().List(context.Background())
	require.NoError(t, err)
	ids := make(map[string]shared.ID, len(mods))
	for _, m := range mods {
		ids[m.Name()] = m.ID()
	}
	return ids
}

func (f *fixture) install(t *testing.T, id shared.ID) {
	t.Helper()
	code, env := f.call(t, f.modules.Install, `{"module_id":`+id.String()+`}`)
	require.Equal(t, http.StatusOK, code, string(env.Data))
}

func TestModuleHandler_Scan(t *testing.T) {
	f := newFixture(t)

	code, env := f.call(t, f.modules.Scan, ``)
	require.Equal(t, http.StatusOK, code)
	report := decodeData[handler.BatchReportResponse](t, env)
	require.Len(t, report.Success, 2)
	assert.Equal(t, "accounts", report.Success[0].ModuleName)
	assert.Equal(t, "crm", report.Success[1].ModuleName)
	assert.Empty(t, report.Failed)

	wire := decodeData[struct {
		Success []map[string]string `json:"success"`
	}](t, env)
	assert.Equal(t, map[string]string{"module_name": "crm", "path": "crm"}, wire.Success[1])

	code, env = f.call(t, f.modules.Scan, `{"module_path":"nowhere"}`)
	require.Equal(t, http.StatusOK, code)
	failed := decodeData[struct {
		Failed []map[string]string `json:"failed"`
	}](t, env)
	require.Len(t, failed.Failed, 1)
	assert.Equal(t, "nowhere", failed.Failed[0]["path"])
	assert.NotEmpty(t, failed.Failed[0]["message"])

	code, env = f.call(t, f.modules.Scan, `{"module_path":"../etc"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", decodeData[errorData](t, env).Error)
}

func TestModuleHandler_InstallLifecycle(t *testing.T) {
	f := newFixture(t)
	ids := f.scan(t)

	code, env := f.call(t, f.modules.Install, `{"module_id":`+ids["crm"].String()+`}`)
	require.Equal(t, http.StatusFailedDependency, code)
	data := decodeData[errorData](t, env)
	assert.Equal(t, "DEPENDENCY_UNSATISFIED", data.Error)
	assert.Equal(t, []string{"accounts"}, data.Missing)

	code, env = f.call(t, f.modules.Install, `{"module_id":`+ids["accounts"].String()+`}`)
	require.Equal(t, http.StatusOK, code)
	installed := decodeData[handler.InstallResponse](t, env)
	assert.Equal(t, "accounts", installed.ModuleName)
	assert.Equal(t, 3, installed.ImportedMenus)
	assert.False(t, installed.AlreadyInstalled)

	f.install(t, ids["crm"])
	code, env = f.call(t, f.modules.Install, `{"module_id":`+ids["crm"].String()+`}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decodeData[handler.InstallResponse](t, env).AlreadyInstalled)

	code, env = f.call(t, f.modules.List, ``)
	require.Equal(t, http.StatusOK, code)
	list := decodeData[[]handler.InstalledModuleResponse](t, env)
	require.Len(t, list, 2)
	assert.Equal(t, "accounts", list[0].ModuleName)
	assert.Equal(t, "crm", list[1].ModuleName)

	code, env = f.call(t, f.modules.Uninstall, `{"module_id":`+ids["accounts"].String()+`}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "CORE_MODULE_PROTECTED", decodeData[errorData](t, env).Error)

	code, env = f.call(t, f.modules.Uninstall, `{"module_id":`+ids["crm"].String()+`}`)
	require.Equal(t, http.StatusOK, code)
	removed := decodeData[handler.UninstallResponse](t, env)
	assert.Equal(t, "crm", removed.ModuleName)
	assert.Equal(t, 1, removed.RemovedEntitlements)
	assert.Equal(t, 2, removed.RemovedMenus)
	assert.False(t, removed.Purged)
}

func TestModuleHandler_RequestErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		h        func(*handler.ModuleHandler) http.HandlerFunc
		body     string
		wantCode int
		wantErr  string
	}{
		{"malformed json", func(h *handler.ModuleHandler) http.HandlerFunc { return h.Install }, `{`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing module id", func(h *handler.ModuleHandler) http.HandlerFunc { return h.Install }, `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown module", func(h *handler.ModuleHandler) http.HandlerFunc { return h.Install }, `{"module_id":99}`, http.StatusNotFound, "NOT_FOUND"},
		{"bad status", func(h *handler.ModuleHandler) http.HandlerFunc { return h.SetStatus }, `{"module_id":1,"status":"paused"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"empty sort", func(h *handler.ModuleHandler) http.HandlerFunc { return h.Sort }, `{"module_ids":[]}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := f.call(t, tt.h(f.modules), tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantErr, decodeData[errorData](t, env).Error)
		})
	}
}

func TestModuleHandler_RegistryAndStatus(t *testing.T) {
	f := newFixture(t)
	ids := f.scan(t)

	code, env := f.call(t, f.modules.SetStatus, `{"module_id":`+ids["crm"].String()+`,"status":"disabled"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "disabled", decodeData[handler.ModuleResponse](t, env).Status)

	code, env = f.call(t, f.modules.Registry, ``)
	require.Equal(t, http.StatusOK, code)
	registry := decodeData[[]handler.ModuleResponse](t, env)
	require.Len(t, registry, 2)
	for _, m := range registry {
		if m.ModuleName == "crm" {
			assert.Equal(t, []string{"accounts"}, m.Dependencies)
			assert.Equal(t, "disabled", m.Status)
		}
	}
}

// menuIDsByKey walks the assembled tree and indexes every menu by key.
func menuIDsByKey(tree app.RoleMenus) map[string]shared.ID {
	out := make(map[string]shared.ID)
	var walk func(views []*app.MenuView)
	walk = func(views []*app.MenuView) {
		for _, v := range views {
			out[v.MenuKey] = v.MenuID
			walk(v.Children)
		}
	}
	for _, bucket := range tree.ModulesWithMenus {
		walk(bucket.Menus)
	}
	return out
}

func TestRoleMenuHandler_Flow(t *testing.T) {
	f := newFixture(t)
	ids := f.scan(t)
	f.install(t, ids["accounts"])
	f.install(t, ids["crm"])
	roleID := f.role.ID().String()

	code, env := f.call(t, f.roleMenu.Menus, `{"role_id":`+roleID+`}`)
	require.Equal(t, http.StatusOK, code)
	tree := decodeData[app.RoleMenus](t, env)
	require.Len(t, tree.ModulesWithMenus, 2)
	assert.Empty(t, tree.CheckedMenuIDs)
	menus := menuIDsByKey(tree)
	require.Len(t, menus, 5)

	grantAll := `{"role_id":` + roleID + `,"menu_ids":[` + menus["accounts.users"].String() + `,` +
		menus["accounts.settings"].String() + `,` + menus["crm.customers"].String() + `]}`
	code, env = f.call(t, f.roleMenu.UpdateMenus, grantAll)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[app.UpdateMenusOutput](t, env).Added, 3)

	code, env = f.call(t, f.roleMenu.UpdateMenus, `{"role_id":`+roleID+`,"menu_ids":[`+menus["crm.customers"].String()+`]}`)
	require.Equal(t, http.StatusOK, code)
	diff := decodeData[app.UpdateMenusOutput](t, env)
	assert.Equal(t, []shared.ID{menus["accounts.settings"]}, diff.Removed)
	assert.Equal(t, []shared.ID{menus["accounts.users"]}, diff.ForcedKept)
	assert.Empty(t, diff.Added)

	move := `{"role_id":` + roleID + `,"menu_ids":[` + menus["crm"].String() + `],"target_module_id":` + ids["accounts"].String() + `}`
	code, env = f.call(t, f.roleMenu.Move, move)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, decodeData[handler.CountResponse](t, env).Count)

	code, env = f.call(t, f.roleMenu.Menus, `{"role_id":`+roleID+`,"account_type":"operator"}`)
	require.Equal(t, http.StatusOK, code)
	tree = decodeData[app.RoleMenus](t, env)
	require.Len(t, tree.ModulesWithMenus, 1)
	assert.Equal(t, ids["accounts"], tree.ModulesWithMenus[0].ModuleID)
	assert.Equal(t, ids["accounts"], tree.MenuMoveMap[menus["crm.customers"]])

	code, env = f.call(t, f.roleMenu.MoveBack, `{"role_id":`+roleID+`,"menu_ids":[`+menus["crm"].String()+`]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, decodeData[handler.CountResponse](t, env).Count)

	code, _ = f.call(t, f.roleMenu.Move, move)
	require.Equal(t, http.StatusOK, code)
	code, env = f.call(t, f.roleMenu.MoveAllBack, `{"role_id":`+roleID+`,"module_id":`+ids["accounts"].String()+`}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, decodeData[handler.CountResponse](t, env).Count)
}

func TestRoleMenuHandler_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		h        func(*handler.RoleMenuHandler) http.HandlerFunc
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown role", func(h *handler.RoleMenuHandler) http.HandlerFunc { return h.Menus }, `{"role_id":42}`, http.StatusNotFound, "NOT_FOUND"},
		{"bad account type", func(h *handler.RoleMenuHandler) http.HandlerFunc { return h.Menus }, `{"role_id":1,"account_type":"Robot!"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"move without menus", func(h *handler.RoleMenuHandler) http.HandlerFunc { return h.Move }, `{"role_id":1,"menu_ids":[],"target_module_id":1}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown menu", func(h *handler.RoleMenuHandler) http.HandlerFunc { return h.UpdateMenus }, `{"role_id":1,"menu_ids":[77]}`, http.StatusNotFound, "NOT_FOUND"},
		{"move-all-back unknown module", func(h *handler.RoleMenuHandler) http.HandlerFunc { return h.MoveAllBack }, `{"role_id":1,"module_id":9}`, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := f.call(t, tt.h(f.roleMenu), tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantErr, decodeData[errorData](t, env).Error)
		})
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name     string
		opts     []handler.HealthHandlerOption
		wantCode int
	}{
		{"no dependencies", nil, http.StatusOK},
		{"healthy", []handler.HealthHandlerOption{handler.WithDatabase(stubPinger{}), handler.WithRedis(stubPinger{})}, http.StatusOK},
		{"redis down", []handler.HealthHandlerOption{handler.WithDatabase(stubPinger{}), handler.WithRedis(stubPinger{err: assert.AnError})}, http.StatusServiceUnavailable},
		{"nil pinger ignored", []handler.HealthHandlerOption{handler.WithDatabase(nil)}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.NewHealthHandler(tt.opts...).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp handler.ReadyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			for name, check := range resp.Checks {
				if check.Status != "ok" {
					assert.Equal(t, "redis", name)
					assert.NotEmpty(t, check.Error)
				}
			}
		})
	}
}
