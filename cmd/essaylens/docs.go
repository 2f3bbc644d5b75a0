package main

// General API documentation for swaggo. Regenerate internal/httpapi/docs with
//
//	swag init -g cmd/essaylens/docs.go -o internal/httpapi/docs --parseDependency
//
// @title           essaylens API
// @version         1.0
// @description     Local HTTP API for essay-feedback model inference.
//
// @contact.name   essaylens maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
