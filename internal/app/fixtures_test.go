package app

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/openctemio/console/internal/infra/memstore"
	"github.com/openctemio/console/pkg/domain/menu"
	"github.com/openctemio/console/pkg/domain/module"
	"github.com/openctemio/console/pkg/domain/shared"
	"github.com/openctemio/console/pkg/logger"
)

const operator = shared.AccountType("operator")

type fakeManifestReader struct {
	manifests map[string]*module.Manifest
	errs      map[string]error
}

func newFakeReader() *fakeManifestReader {
	return &fakeManifestReader{
		manifests: make(map[string]*module.Manifest),
		errs:      make(map[string]error),
	}
}

func (r *fakeManifestReader) Discover(context.Context) ([]string, error) {
	var paths []string
	for p := range r.manifests {
		paths = append(paths, p)
	}
	for p := range r.errs {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths, nil
}

func (r *fakeManifestReader) Read(_ context.Context, path string) (*module.Manifest, error) {
	if err, ok := r.errs[path]; ok {
		return nil, err
	}
	m, ok := r.manifests[path]
	if !ok {
		return nil, fmt.Errorf("no manifest at %s", path)
	}
	return m, nil
}

type fakeRemover struct {
	removed []string
}

func (r *fakeRemover) Remove(_ context.Context, path string) error {
	r.removed = append(r.removed, path)
	return nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	all   int
	roles []shared.ID
}

func (c *countingInvalidator) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all++
	return nil
}

func (c *countingInvalidator) InvalidateRole(_ context.Context, roleID shared.ID, _ shared.AccountType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles = append(c.roles, roleID)
	return nil
}

func manifest(name string, deps ...string) *module.Manifest {
	return &module.Manifest{
		Name:         name,
		Title:        name,
		Version:      "1.0.0",
		Dependencies: deps,
		Menus: []module.MenuManifest{
			{
				Key:  name,
				Name: name,
				Type: menu.TypeDir,
				Children: []module.MenuManifest{
					{Key: name + ".list", Name: "List", Type: menu.TypeMenu, Sort: 1},
					{Key: name + ".home", Name: "Home", Type: menu.TypeMenu, Sort: 0, Required: true},
				},
			},
		},
	}
}

func coreManifest(name string) *module.Manifest {
	m := manifest(name)
	m.Core = true
	return m
}

type lifecycleFixture struct {
	store   *memstore.Store
	reader  *fakeManifestReader
	remover *fakeRemover
	trees   *countingInvalidator
	svc     *ModuleLifecycleService
}

func newLifecycleFixture(opts ...LifecycleOption) *lifecycleFixture {
	f := &lifecycleFixture{
		store:   memstore.New(),
		reader:  newFakeReader(),
		remover: &fakeRemover{},
		trees:   &countingInvalidator{},
	}
	opts = append([]LifecycleOption{
		WithScanConcurrency(2),
		WithTreeInvalidator(f.trees),
		WithSourceRemover(f.remover),
	}, opts...)
	f.svc = NewModuleLifecycleService(f.store.Modules(), f.store.Entitlements(), f.reader, logger.NewNop(), opts...)
	return f
}

// register scans the given manifests, keyed by path, and returns the ids by name.
func (f *lifecycleFixture) register(manifests map[string]*module.Manifest) map[string]shared.ID {
	for p, m := range manifests {
		f.reader.manifests[p] = m
	}
	if _, err := f.svc.Scan(context.Background(), ScanInput{Path: ScanAll}); err != nil {
		panic(err)
	}
	mods, _ := f.store.Modules().List(context.Background())
	ids := make(map[string]shared.ID, len(mods))
	for _, m := range mods {
		ids[m.Name()] = m.ID()
	}
	return ids
}
