package menu

import (
	"fmt"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Domain errors.
var (
	ErrMenuNotFound        = fmt.Errorf("%w: menu not found", shared.ErrNotFound)
	ErrAccountTypeMismatch = fmt.Errorf("%w: menu belongs to another account type", shared.ErrValidation)
)
