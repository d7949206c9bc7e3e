package module

import (
	"fmt"
	"strings"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Domain errors.
var (
	ErrModuleNotFound        = fmt.Errorf("%w: module not found", shared.ErrNotFound)
	ErrModuleDisabled        = fmt.Errorf("%w: module is disabled", shared.ErrValidation)
	ErrInvalidManifest       = fmt.Errorf("%w: invalid module manifest", shared.ErrValidation)
	ErrCoreModuleProtected   = fmt.Errorf("%w: core module cannot be uninstalled", shared.ErrForbidden)
	ErrDependencyUnsatisfied = fmt.Errorf("%w: module dependencies are not installed", shared.ErrConflict)
	ErrModuleStillEntitled   = fmt.Errorf("%w: module is still installed for other accounts", shared.ErrConflict)
)

// DependencyError names the prerequisite modules that block an install.
type DependencyError struct {
	Module  string
	Missing []string
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("module %s requires %s", e.Module, strings.Join(e.Missing, ", "))
}

// Unwrap lets errors.Is match ErrDependencyUnsatisfied.
func (e *DependencyError) Unwrap() error {
	return ErrDependencyUnsatisfied
}
