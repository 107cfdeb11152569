package portal

import (
	"context"
	"net/http"
	"strings"

	"github.com/sheetstruct/sheetstruct/schema"
)

// Memory is an in-process Portal backed by maps: schemas by type name and
// objects by path ("/Type/value" or "/value"). Useful for schema-supplied
// runs and tests.
type Memory struct {
	Schemas map[string]map[string]any
	Objects map[string]map[string]any
}

func NewMemory(schemas map[string]map[string]any, objects map[string]map[string]any) *Memory {
	if schemas == nil {
		schemas = map[string]map[string]any{}
	}
	if objects == nil {
		objects = map[string]map[string]any{}
	}
	return &Memory{Schemas: schemas, Objects: objects}
}

func (m *Memory) GetSchema(_ context.Context, typeName string) (map[string]any, error) {
	return m.Schemas[schema.TypeName(typeName)], nil
}

func (m *Memory) GetObject(_ context.Context, path string) (*Response, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if body, in := m.Objects[path]; in {
		return &Response{Status: http.StatusOK, Body: body}, nil
	}
	return &Response{Status: http.StatusNotFound}, nil
}

func (m *Memory) GetSuperTypeMap(_ context.Context) (map[string][]string, error) {
	return schema.SuperTypeMap(m.Schemas), nil
}
