// Package api carries the OpenAPI description of the REST surface.
package api

import _ "embed"

// OpenAPISpec is the contents of openapi.yaml
//
//go:embed openapi.yaml
var OpenAPISpec []byte
