package structured

import (
	"context"
	"strings"

	"github.com/valyala/fastjson"

	"github.com/sheetstruct/sheetstruct/colpath"
	"github.com/sheetstruct/sheetstruct/merge"
	"github.com/sheetstruct/sheetstruct/prototype"
	"github.com/sheetstruct/sheetstruct/schema"
)

const (
	arrayValueDelimiter = '|'
	arrayValueEscape    = '\\'
)

// rowTemplate is built once per table from its full header set: the
// rationalized headers, their parsed paths, and the placeholder skeleton
// every row starts from.
type rowTemplate struct {
	typeName     string
	sch          *schema.Schema // nil when the type has no schema anywhere
	proto        map[string]any
	rationalized map[string]string
	paths        map[string]colpath.Path
}

func newRowTemplate(typeName string, columns []string, sch *schema.Schema) (*rowTemplate, error) {
	t := &rowTemplate{
		typeName:     typeName,
		sch:          sch,
		rationalized: make(map[string]string, len(columns)),
		paths:        make(map[string]colpath.Path, len(columns)),
	}
	rationalized := make([]string, 0, len(columns))
	for _, column := range columns {
		rc := column
		if sch != nil {
			rc = sch.Rationalize(column)
		}
		t.rationalized[column] = rc
		t.paths[column] = colpath.Parse(rc)
		rationalized = append(rationalized, rc)
	}
	proto, err := prototype.Build(colpath.ParseMany(rationalized))
	if err != nil {
		return nil, err
	}
	t.proto = proto
	return t, nil
}

func (t *rowTemplate) createRow() map[string]any {
	return prototype.Copy(t.proto).(map[string]any)
}

// setValue materializes one cell into the row: rationalize the header, look
// its TypeInfo up, coerce, and write at the column's path. Individual column
// failures never abort the row.
func (d *DataSet) setValue(ctx context.Context, t *rowTemplate, row map[string]any, column, value string, rowNum int) {
	path := t.paths[column]
	if len(path) == 0 {
		return
	}
	var ti *schema.TypeInfo
	if t.sch != nil {
		ti = t.sch.TypeInfo(t.rationalized[column])
	}
	src := Src{Type: t.typeName, Column: column, Row: rowNum}

	last := path.Last()
	if last.Array && last.Index == colpath.Next {
		// open-ended append under a trailing bare "#"
		vals, ok := parseJSONArray(value)
		if !ok {
			for _, part := range splitArrayValue(value) {
				vals = append(vals, d.coerce(ctx, ti, t, part, src))
			}
		}
		writeMerge(row, path[:len(path)-1], vals)
		return
	}

	if n := trailingIndexCount(path); n > 0 {
		if vals, ok := parseJSONArray(value); ok {
			// a whole-array JSON literal replaces the array itself
			writeSet(row, path[:len(path)-n], vals)
			return
		}
	}
	if obj, ok := parseJSONObject(value); ok {
		writeSet(row, path, obj)
		return
	}
	writeSet(row, path, d.coerce(ctx, ti, t, value, src))
}

func (d *DataSet) coerce(ctx context.Context, ti *schema.TypeInfo, t *rowTemplate, value string, src Src) any {
	if ti == nil {
		return value
	}
	if ti.Coercion.Kind == schema.CoerceRef {
		return d.resolveRef(ctx, t, ti, value, src)
	}
	return ti.Coercion.Apply(value)
}

// resolveRef resolves a linkTo value against the batch and the portal. The
// stored value stays the caller's reference string either way; failures are
// soft diagnostics.
func (d *DataSet) resolveRef(ctx context.Context, t *rowTemplate, ti *schema.TypeInfo, value string, src Src) any {
	linkTo := ti.Coercion.LinkTo
	if value == "" {
		if t.sch != nil && t.sch.Required(ti.Path) {
			d.noteError(GroupRef, Issue{Src: src, Error: "/" + linkTo + "/<null>"})
		}
		return value
	}
	if res := d.resolver.Resolve(ctx, linkTo, value); !res.Found {
		d.noteError(GroupRef, Issue{Src: src, Error: "/" + linkTo + "/" + value})
	}
	return value
}

func trailingIndexCount(path colpath.Path) int {
	n := 0
	for i := len(path) - 1; i >= 0 && path[i].Array; i-- {
		n++
	}
	return n
}

// setAt writes val at the path within cur, creating missing intermediate
// containers on demand. A null placeholder (or scalar) standing where an
// object is needed gets reinitialized to an empty object. Returns the
// possibly replaced container.
func setAt(cur any, segs colpath.Path, val any, doMerge bool) any {
	if len(segs) == 0 {
		if doMerge {
			arr, _ := cur.([]any)
			return merge.Arrays(arr, val.([]any))
		}
		return val
	}
	seg := segs[0]
	if !seg.Array {
		m, ok := cur.(map[string]any)
		if !ok {
			m = map[string]any{}
		}
		m[seg.Name] = setAt(m[seg.Name], segs[1:], val, doMerge)
		return m
	}
	idx := seg.Index
	if idx == colpath.Next {
		idx = 0
	}
	arr, ok := cur.([]any)
	if !ok {
		arr = []any{}
	}
	for len(arr) <= idx {
		arr = append(arr, nil)
	}
	arr[idx] = setAt(arr[idx], segs[1:], val, doMerge)
	return arr
}

func writeSet(row map[string]any, path colpath.Path, val any) {
	if len(path) == 0 {
		return
	}
	setAt(row, path, val, false)
}

func writeMerge(row map[string]any, path colpath.Path, vals []any) {
	setAt(row, path, vals, true)
}

// splitArrayValue splits a "|"-delimited cell into its elements, honoring
// backslash escapes and dropping empty tokens.
func splitArrayValue(value string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if tok := strings.TrimSpace(b.String()); tok != "" {
			out = append(out, tok)
		}
		b.Reset()
	}
	escaped := false
	for _, r := range value {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == arrayValueEscape:
			escaped = true
		case r == arrayValueDelimiter:
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

func parseJSONArray(value string) ([]any, bool) {
	s := strings.TrimSpace(value)
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	v, err := fastjson.Parse(s)
	if err != nil || v.Type() != fastjson.TypeArray {
		return nil, false
	}
	return fromFastJSON(v).([]any), true
}

func parseJSONObject(value string) (map[string]any, bool) {
	s := strings.TrimSpace(value)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	v, err := fastjson.Parse(s)
	if err != nil || v.Type() != fastjson.TypeObject {
		return nil, false
	}
	return fromFastJSON(v).(map[string]any), true
}

func fromFastJSON(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		m := map[string]any{}
		o.Visit(func(k []byte, e *fastjson.Value) {
			m[string(k)] = fromFastJSON(e)
		})
		return m
	case fastjson.TypeArray:
		a, _ := v.Array()
		out := make([]any, len(a))
		for i, e := range a {
			out[i] = fromFastJSON(e)
		}
		return out
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	case fastjson.TypeNumber:
		f, _ := v.Float64()
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}
