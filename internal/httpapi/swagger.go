//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"essaylens/internal/httpapi/docs"
)

// SwaggerEnabled reports whether the swagger UI is compiled in.
const SwaggerEnabled = true

// MountSwagger serves the generated OpenAPI document and the swagger UI under
// /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
		httpSwagger.InstanceName(docs.SwaggerInfo.InstanceName()),
	))
}
