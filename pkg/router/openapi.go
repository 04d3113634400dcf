package router

import (
	"net/http"

	"crisis-chat/backend/api"
	"crisis-chat/backend/pkg/validator"

	"github.com/gin-gonic/gin"
)

// openAPIValidator loads OPENAPI_SCHEMA_PATH when set, else the embedded
// document, and serves the document at /api/docs/openapi.yaml
func (r *Router) openAPIValidator() *validator.OpenAPIValidator {
	var (
		v   *validator.OpenAPIValidator
		err error
	)
	if path := r.Config.OpenAPI.SchemaPath; path != "" {
		v, err = validator.NewOpenAPIValidatorFromFile(path)
		if err == nil {
			r.Engine.StaticFile("/api/docs/openapi.yaml", path)
		}
	} else {
		v, err = validator.NewOpenAPIValidator(api.OpenAPISpec)
		if err == nil {
			r.Engine.GET("/api/docs/openapi.yaml", func(c *gin.Context) {
				c.Data(http.StatusOK, "application/yaml", api.OpenAPISpec)
			})
		}
	}
	if err != nil {
		r.Logger.Error("Failed to initialize OpenAPI validator, requests will not be validated", "error", err.Error())
		return nil
	}

	r.Logger.Info("OpenAPI validation enabled", "url", "/api/docs/openapi.yaml")
	return v
}
