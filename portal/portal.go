// Package portal abstracts the remote object store the conversion engine
// resolves schemas and references against.
package portal

import "context"

// Response is the outcome of one object fetch. Body is only meaningful for
// 2xx statuses.
type Response struct {
	Status int
	Body   map[string]any
}

// OK reports whether the response carries a usable object body.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Portal is the remote collaborator interface: schemas by type name, objects
// by path, and the super-type map used for subtype expansion. GetSchema
// returns (nil, nil) for unknown types; GetObject returns the HTTP-ish
// status for misses rather than an error. Errors mean the portal itself was
// unreachable.
type Portal interface {
	GetSchema(ctx context.Context, typeName string) (map[string]any, error)
	GetObject(ctx context.Context, path string) (*Response, error)
	GetSuperTypeMap(ctx context.Context) (map[string][]string, error)
}
