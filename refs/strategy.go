package refs

import (
	"regexp"

	"github.com/sheetstruct/sheetstruct/schema"
)

// Options describes how a reference lookup should proceed for one
// (type, value) pair: which external paths to try and in what order, and an
// optional pre-validator that can rule individual identifying properties out
// before any lookup is issued.
type Options struct {
	SpecifiedType bool
	Root          bool
	RootFirst     bool
	Subtypes      bool
	Validator     Validator
}

// Validator reports whether an identifying property could still match the
// value; returning false rules the property out, true leaves the resolver's
// default syntactic checks to decide.
type Validator func(propSchema map[string]any, property, value string) bool

// Strategy picks lookup options per type and value.
type Strategy interface {
	Options(typeName string, sch *schema.Schema, value string) Options
}

// DefaultStrategy tries the specified type, its subtypes, and finally the
// root path.
type DefaultStrategy struct{}

func (DefaultStrategy) Options(string, *schema.Schema, string) Options {
	return Options{SpecifiedType: true, Root: true, Subtypes: true}
}

// PatternStrategy narrows lookups using the schema's own identifying-value
// patterns: an accession-shaped value is only findable at the root path,
// while a value matching the submitted_id pattern is only findable under its
// specified type. Anything else falls back to the default behavior.
type PatternStrategy struct{}

func (PatternStrategy) Options(typeName string, sch *schema.Schema, value string) Options {
	def := Options{SpecifiedType: true, Root: true, Subtypes: true, Validator: vetoMismatchedAccession}
	if sch == nil || value == "" {
		return def
	}
	if accession := sch.Properties("accession"); accession != nil {
		if matchesPattern(accession, value) {
			return Options{Root: true, Validator: vetoMismatchedAccession}
		}
	}
	if submittedID := sch.Properties("submitted_id"); submittedID != nil {
		if matchesPattern(submittedID, value) {
			return Options{SpecifiedType: true, Validator: vetoMismatchedAccession}
		}
	}
	return def
}

// vetoMismatchedAccession rules the accession identifying property out when
// the value does not have its declared shape.
func vetoMismatchedAccession(propSchema map[string]any, property, value string) bool {
	if property != "accession" {
		return true
	}
	if format, _ := propSchema["format"].(string); format != "accession" {
		return true
	}
	if _, ok := propSchema["pattern"].(string); !ok {
		return true
	}
	return matchesPattern(propSchema, value)
}

func matchesPattern(propSchema map[string]any, value string) bool {
	pattern, ok := propSchema["pattern"].(string)
	if !ok {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}
