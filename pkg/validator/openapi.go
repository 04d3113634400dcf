package validator

import (
	"context"
	"fmt"
	"os"
	"sync"

	apperrors "crisis-chat/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator validates requests against an OpenAPI document
type OpenAPIValidator struct {
	swagger    *openapi3.T
	router     routers.Router
	schemaPath string
	mutex      sync.RWMutex
}

// NewOpenAPIValidator creates a validator from an in-memory document
func NewOpenAPIValidator(data []byte) (*OpenAPIValidator, error) {
	swagger, router, err := load(func(loader *openapi3.Loader) (*openapi3.T, error) {
		return loader.LoadFromData(data)
	})
	if err != nil {
		return nil, err
	}
	return &OpenAPIValidator{swagger: swagger, router: router}, nil
}

// NewOpenAPIValidatorFromFile creates a validator from a document on disk; it can be reloaded
func NewOpenAPIValidatorFromFile(path string) (*OpenAPIValidator, error) {
	swagger, router, err := load(func(loader *openapi3.Loader) (*openapi3.T, error) {
		return loader.LoadFromFile(path)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", path, err)
	}
	return &OpenAPIValidator{swagger: swagger, router: router, schemaPath: path}, nil
}

func load(read func(*openapi3.Loader) (*openapi3.T, error)) (*openapi3.T, routers.Router, error) {
	loader := openapi3.NewLoader()
	swagger, err := read(loader)
	if err != nil {
		return nil, nil, err
	}
	if err := swagger.Validate(loader.Context); err != nil {
		return nil, nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}
	return swagger, router, nil
}

// ReloadSchema reloads the document from disk
func (v *OpenAPIValidator) ReloadSchema() error {
	if v.schemaPath == "" {
		return nil
	}
	if _, err := os.Stat(v.schemaPath); err != nil {
		return err
	}

	swagger, router, err := load(func(loader *openapi3.Loader) (*openapi3.T, error) {
		return loader.LoadFromFile(v.schemaPath)
	})
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.swagger = swagger
	v.router = router
	return nil
}

// Document returns the loaded OpenAPI document
func (v *OpenAPIValidator) Document() *openapi3.T {
	v.mutex.RLock()
	defer v.mutex.RUnlock()
	return v.swagger
}

// Middleware rejects requests that do not match the document with INVALID_INPUT.
// Routes the document does not describe pass through unchecked.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.ValidateRequest(c); err != nil {
			c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ValidateRequest checks the request against the document
func (v *OpenAPIValidator) ValidateRequest(c *gin.Context) error {
	v.mutex.RLock()
	router := v.router
	v.mutex.RUnlock()

	route, pathParams, err := router.FindRoute(c.Request)
	if err != nil {
		return nil
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    c.Request,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			MultiError:         false,
		},
	}

	if err := openapi3filter.ValidateRequest(context.WithoutCancel(c.Request.Context()), input); err != nil {
		return apperrors.InvalidInput("request does not match the API schema").Wrap(err).
			WithDetails(map[string]string{"reason": err.Error()})
	}
	return nil
}
