// Package api встраивает OpenAPI-документ, который отдаёт Swagger UI.
package api

import _ "embed"

//go:embed openapi.json
var OpenAPISpec []byte
