package module

import (
	"context"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Repository persists the module registry.
type Repository interface {
	// GetByID retrieves a module by its ID.
	GetByID(ctx context.Context, id shared.ID) (*Module, error)

	// GetByName retrieves a module by its unique name.
	GetByName(ctx context.Context, name string) (*Module, error)

	// List returns all registered modules ordered by sort then id.
	List(ctx context.Context) ([]*Module, error)

	// Upsert inserts a module, or refreshes the descriptive metadata of the
	// module with the same name. Install state, status and sort of an existing
	// row are preserved. Returns the stored module.
	Upsert(ctx context.Context, m *Module) (*Module, error)

	// UpdateStatus enables or disables a module.
	UpdateStatus(ctx context.Context, id shared.ID, status Status) error

	// Delete hard-deletes a registry row.
	Delete(ctx context.Context, id shared.ID) error
}

// ManifestReader turns module directories into manifests.
type ManifestReader interface {
	// Discover lists candidate module directories, relative to the module root.
	Discover(ctx context.Context) ([]string, error)

	// Read parses the manifest of one module directory.
	Read(ctx context.Context, path string) (*Manifest, error)
}

// SourceRemover physically removes a module's source directory.
type SourceRemover interface {
	Remove(ctx context.Context, path string) error
}
