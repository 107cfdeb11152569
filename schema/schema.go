// Package schema turns per-type JSON Schemas into flat per-column coercion
// tables, reconciles caller headers against them, and runs the final
// validation pass over materialized rows.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrReservedCharacterInPropertyName reports a schema property whose
	// name contains the array marker character.
	ErrReservedCharacterInPropertyName = errors.New("reserved character in property name")

	// ErrUnsupportedArrayItemsSpec reports an array schema whose items are
	// absent, a list, or otherwise not one single item schema.
	ErrUnsupportedArrayItemsSpec = errors.New("unsupported array items spec")
)

// TypeInfo is the schema-derived metadata for one flattened column path.
type TypeInfo struct {
	Path     string // canonical flattened key, array markers included
	Type     string
	Types    []string // set when the schema declares a list of types
	Format   string
	Enum     []any
	LinkTo   string
	Coercion Coercion
}

// Schema wraps one type's JSON Schema document together with its flattened
// coercion table.
type Schema struct {
	Name string
	Data map[string]any

	infos   map[string]*TypeInfo
	aliases map[string]string // marker-stripped key -> canonical key

	compiled   *compiledSchema
	compileErr error
}

// New flattens the given schema document. The name is the portal type name
// the schema describes.
func New(name string, data map[string]any) (*Schema, error) {
	s := &Schema{
		Name:    name,
		Data:    data,
		infos:   map[string]*TypeInfo{},
		aliases: map[string]string{},
	}
	if data != nil {
		if err := s.flatten(data, ""); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// flatten walks the schema depth first, recording a TypeInfo for every scalar
// leaf under its dotted, array-marked path. Keys containing array markers are
// additionally registered under their marker-stripped alias.
func (s *Schema) flatten(doc map[string]any, parent string) error {
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		if parent != "" {
			st, _ := doc["type"].(string)
			if st == "" {
				st = "string"
			}
			if st == "array" {
				parent += string(arrayMark)
			}
			s.register(parent, doc)
		}
		return nil
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		pv, ok := props[name].(map[string]any)
		if !ok || len(pv) == 0 {
			continue
		}
		key := name
		if parent != "" {
			key = parent + string(dotDelim) + name
		}
		if strings.ContainsRune(name, arrayMark) {
			return fmt.Errorf("%w: %s", ErrReservedCharacterInPropertyName, key)
		}
		pvType, _ := pv["type"].(string)
		if pvType == "object" {
			if _, in := pv["properties"]; in {
				if err := s.flatten(pv, key); err != nil {
					return err
				}
				continue
			}
		}
		if pvType == "array" {
			for pvType == "array" {
				items, ok := pv["items"].(map[string]any)
				if !ok {
					return fmt.Errorf("%w: %s", ErrUnsupportedArrayItemsSpec, key)
				}
				key += string(arrayMark)
				pv = items
				pvType, _ = pv["type"].(string)
			}
			if err := s.flatten(pv, key); err != nil {
				return err
			}
			continue
		}
		s.register(key, pv)
	}
	return nil
}

func (s *Schema) register(key string, doc map[string]any) {
	ti := &TypeInfo{Path: key}
	switch t := doc["type"].(type) {
	case string:
		ti.Type = t
	case []any:
		for _, v := range t {
			if sv, ok := v.(string); ok {
				ti.Types = append(ti.Types, sv)
			}
		}
		if len(ti.Types) > 0 {
			ti.Type = ti.Types[0]
		}
	}
	ti.Format, _ = doc["format"].(string)
	ti.LinkTo, _ = doc["linkTo"].(string)
	if enum, ok := doc["enum"].([]any); ok {
		ti.Enum = enum
	}
	ti.Coercion = derive(ti)
	s.infos[key] = ti
	if strings.ContainsRune(key, arrayMark) {
		s.aliases[strings.ReplaceAll(key, string(arrayMark), "")] = key
	}
}

// TypeInfo resolves a caller column header to its TypeInfo: first the exact
// key, then the marker-stripped alias for headers that do not fully specify
// array depth. Returns nil for columns the schema does not describe.
func (s *Schema) TypeInfo(column string) *TypeInfo {
	if ti, in := s.infos[column]; in {
		return ti
	}
	if canon, in := s.aliases[column]; in {
		return s.infos[canon]
	}
	u := UnadornColumn(column)
	if ti, in := s.infos[u]; in {
		return ti
	}
	if canon, in := s.aliases[u]; in {
		return s.infos[canon]
	}
	return nil
}

// Properties returns the top-level property schema for name, or nil.
func (s *Schema) Properties(name string) map[string]any {
	props, _ := s.Data["properties"].(map[string]any)
	pv, _ := props[name].(map[string]any)
	return pv
}

// Required reports whether the given flattened column is schema-required.
func (s *Schema) Required(column string) bool {
	req, _ := s.Data["required"].([]any)
	for _, r := range req {
		if r == column {
			return true
		}
	}
	return false
}

// IdentifyingProperties returns the properties usable to look an object of
// this type up by value: the schema-declared set, always uuid, and
// identifier when the schema declares it.
func (s *Schema) IdentifyingProperties() []string {
	seen := map[string]bool{"uuid": true}
	out := []string{"uuid"}
	if ips, ok := s.Data["identifyingProperties"].([]any); ok {
		for _, ip := range ips {
			if name, ok := ip.(string); ok && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	if !seen["identifier"] && s.Properties("identifier") != nil {
		out = append(out, "identifier")
	}
	return out
}
