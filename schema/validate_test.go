package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationSchema(t *testing.T) *Schema {
	t.Helper()
	return testSchema(t, map[string]any{
		"type":                 "object",
		"required":             []any{"submitted_id"},
		"additionalProperties": false,
		"properties": map[string]any{
			"submitted_id": map[string]any{"type": "string"},
			"count":        map[string]any{"type": "integer"},
		},
	})
}

func TestValidateOK(t *testing.T) {
	s := validationSchema(t)
	issues, err := s.Validate(map[string]any{"submitted_id": "X", "count": int64(3)})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestValidateMissingRequired(t *testing.T) {
	s := validationSchema(t)
	issues, err := s.Validate(map[string]any{"count": int64(3)})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueMissingProperties, issues[0].Kind)
	assert.Contains(t, issues[0].Message, "submitted_id")
}

func TestValidateExtraneousProperty(t *testing.T) {
	s := validationSchema(t)
	issues, err := s.Validate(map[string]any{"submitted_id": "X", "bogus": "y"})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueExtraneousProperties, issues[0].Kind)
	assert.Contains(t, issues[0].Message, "bogus")
}

func TestValidateWrongType(t *testing.T) {
	s := validationSchema(t)
	issues, err := s.Validate(map[string]any{"submitted_id": "X", "count": "three"})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueUnclassified, issues[0].Kind)
	assert.Contains(t, issues[0].Message, "/count")
}

func TestValidateNilSchemaData(t *testing.T) {
	s, err := New("Unknown", nil)
	require.NoError(t, err)
	issues, err := s.Validate(map[string]any{"anything": 1})
	require.NoError(t, err)
	assert.Empty(t, issues)
}
