package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Validation issue kinds, as reported to callers.
const (
	IssueMissingProperties    = "missing_properties"
	IssueExtraneousProperties = "extraneous_properties"
	IssueUnclassified         = "unclassified_error"
)

// ValidationIssue is one problem found by validating a materialized row
// against the full JSON Schema.
type ValidationIssue struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type compiledSchema struct {
	inner *jsonschema.Schema
}

var errorPrinter = message.NewPrinter(language.English)

func (s *Schema) compile() (*compiledSchema, error) {
	if s.compiled != nil || s.compileErr != nil {
		return s.compiled, s.compileErr
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", s.Data); err != nil {
		s.compileErr = err
		return nil, err
	}
	inner, err := c.Compile("schema.json")
	if err != nil {
		s.compileErr = err
		return nil, err
	}
	s.compiled = &compiledSchema{inner: inner}
	return s.compiled, nil
}

// Validate runs the instance through full JSON-Schema validation
// (required/additionalProperties/type/pattern and the rest). It is
// side-effect-free on the instance and returns one issue per leaf failure.
func (s *Schema) Validate(instance map[string]any) ([]ValidationIssue, error) {
	if s.Data == nil {
		return nil, nil
	}
	compiled, err := s.compile()
	if err != nil {
		return nil, fmt.Errorf("could not compile schema %s: %w", s.Name, err)
	}
	err = compiled.inner.Validate(instance)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []ValidationIssue{{Kind: IssueUnclassified, Message: err.Error()}}, nil
	}
	var issues []ValidationIssue
	collectIssues(ve, &issues)
	return issues, nil
}

func collectIssues(ve *jsonschema.ValidationError, issues *[]ValidationIssue) {
	if len(ve.Causes) == 0 {
		*issues = append(*issues, classifyIssue(ve))
		return
	}
	for _, cause := range ve.Causes {
		collectIssues(cause, issues)
	}
}

func classifyIssue(ve *jsonschema.ValidationError) ValidationIssue {
	where := "/" + strings.Join(ve.InstanceLocation, "/")
	switch k := ve.ErrorKind.(type) {
	case *kind.Required:
		return ValidationIssue{
			Kind:    IssueMissingProperties,
			Message: fmt.Sprintf("%s: missing required properties: %s", where, strings.Join(k.Missing, ", ")),
		}
	case *kind.AdditionalProperties:
		return ValidationIssue{
			Kind:    IssueExtraneousProperties,
			Message: fmt.Sprintf("%s: extraneous properties: %s", where, strings.Join(k.Properties, ", ")),
		}
	default:
		return ValidationIssue{
			Kind:    IssueUnclassified,
			Message: fmt.Sprintf("%s: %s", where, ve.ErrorKind.LocalizedString(errorPrinter)),
		}
	}
}
