//go:build !swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
)

// SwaggerEnabled reports whether the swagger UI is compiled in.
const SwaggerEnabled = false

// MountSwagger is a no-op by default. Build with -tags=swagger to enable.
func MountSwagger(chi.Router) {}
