package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
)

// CoercionKind enumerates the value conversions a schema can call for.
// The kind is chosen once, at flatten time, not re-dispatched per value.
type CoercionKind int

const (
	CoerceString CoercionKind = iota
	CoerceBoolean
	CoerceInteger
	CoerceNumber
	CoerceDate
	CoerceDateTime
	CoerceEnum
	CoerceRef
)

// Coercion converts a raw cell string into its schema-declared JSON value.
// Apply is total: values that do not parse pass through unchanged.
type Coercion struct {
	Kind   CoercionKind
	Enum   []any
	LinkTo string
}

// derive selects the coercion for a flattened leaf, by priority: enum,
// linkTo, date format, date-time format, declared primitive type.
func derive(ti *TypeInfo) Coercion {
	if len(ti.Enum) > 0 {
		return Coercion{Kind: CoerceEnum, Enum: ti.Enum}
	}
	if ti.LinkTo != "" {
		return Coercion{Kind: CoerceRef, LinkTo: ti.LinkTo}
	}
	switch ti.Format {
	case "date":
		return Coercion{Kind: CoerceDate}
	case "date-time":
		return Coercion{Kind: CoerceDateTime}
	}
	types := ti.Types
	if len(types) == 0 {
		types = []string{ti.Type}
	}
	for _, t := range types {
		switch t {
		case "boolean":
			return Coercion{Kind: CoerceBoolean}
		case "integer":
			return Coercion{Kind: CoerceInteger}
		case "number":
			return Coercion{Kind: CoerceNumber}
		case "string":
			return Coercion{Kind: CoerceString}
		}
	}
	return Coercion{Kind: CoerceString}
}

var (
	dateFormats     = []string{"%Y-%m-%d", "%m/%d/%Y", "%d-%b-%Y"}
	dateTimeFormats = []string{
		"%Y-%m-%dT%H:%M:%S%z",
		"%Y-%m-%dT%H:%M:%S",
		"%Y-%m-%d %H:%M:%S",
		"%Y-%m-%d",
	}
)

// Apply converts value according to the coercion kind, returning the raw
// value unchanged when it cannot be converted. Reference coercion is a
// passthrough here; resolution is the materializer's job.
func (c Coercion) Apply(value string) any {
	switch c.Kind {
	case CoerceBoolean:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true":
			return true
		case "false":
			return false
		}
		return value
	case CoerceInteger:
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && f == float64(int64(f)) {
			return int64(f)
		}
		return value
	case CoerceNumber:
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
		return value
	case CoerceDate:
		for _, layout := range dateFormats {
			if t, err := timefmt.Parse(strings.TrimSpace(value), layout); err == nil {
				return timefmt.Format(t, "%Y-%m-%d")
			}
		}
		return value
	case CoerceDateTime:
		for _, layout := range dateTimeFormats {
			if t, err := timefmt.Parse(strings.TrimSpace(value), layout); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
		return value
	case CoerceEnum:
		return toEnum(value, c.Enum)
	default:
		// string, ref
		return value
	}
}

// toEnum matches value against the enum members: exact, then
// case-insensitive, then unique case-insensitive prefix.
func toEnum(value string, enum []any) any {
	lower := strings.ToLower(value)
	var prefix any
	prefixes := 0
	for _, member := range enum {
		str := enumString(member)
		if str == value {
			return member
		}
		ls := strings.ToLower(str)
		if ls == lower {
			return member
		}
		if lower != "" && strings.HasPrefix(ls, lower) {
			prefix = member
			prefixes++
		}
	}
	if prefixes == 1 {
		return prefix
	}
	return value
}

func enumString(member any) string {
	if s, ok := member.(string); ok {
		return s
	}
	return fmt.Sprint(member)
}
