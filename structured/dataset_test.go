package structured

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetstruct/sheetstruct/portal"
	"github.com/sheetstruct/sheetstruct/prototype"
)

func addOne(t *testing.T, d *DataSet, table Table) {
	t.Helper()
	require.NoError(t, d.AddTable(context.Background(), table))
}

func TestAddTableNoSchema(t *testing.T) {
	d := NewDataSet(nil, Options{})
	addOne(t, d, Table{
		Type:    "Thing",
		Columns: []string{"abc.def", "pqr", "vw#.xy"},
		Rows:    [][]string{{"alpha", "1234", "781"}},
	})

	require.Len(t, d.Data["Thing"], 1)
	assert.Equal(t, map[string]any{
		"abc": map[string]any{"def": "alpha"},
		"pqr": "1234",
		"vw":  []any{map[string]any{"xy": "781"}},
	}, d.Data["Thing"][0])
}

func TestAddTableExplicitIndexPlaceholders(t *testing.T) {
	d := NewDataSet(nil, Options{})
	addOne(t, d, Table{
		Type:    "Thing",
		Columns: []string{"xyzzy#2"},
		Rows:    [][]string{{"456"}},
	})

	require.Len(t, d.Data["Thing"], 1)
	assert.Equal(t, map[string]any{
		"xyzzy": []any{nil, nil, "456"},
	}, d.Data["Thing"][0])
}

func TestAddTableArrayMergeWithIndices(t *testing.T) {
	d := NewDataSet(nil, Options{
		Schemas: map[string]map[string]any{
			"Thing": {
				"properties": map[string]any{
					"somearray": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "integer"},
					},
				},
			},
		},
	})
	addOne(t, d, Table{
		Type:    "Thing",
		Columns: []string{"somearray#", "somearray#3", "somearray#4"},
		Rows:    [][]string{{"123|456|789", "0", "203"}},
	})

	require.Len(t, d.Data["Thing"], 1)
	assert.Equal(t, map[string]any{
		"somearray": []any{int64(123), int64(456), int64(789), int64(0), int64(203)},
	}, d.Data["Thing"][0])
}

func TestAddTableInconsistentColumns(t *testing.T) {
	d := NewDataSet(nil, Options{})
	err := d.AddTable(context.Background(), Table{
		Type:    "Thing",
		Columns: []string{"abc", "abc.def"},
		Rows:    [][]string{{"x", "y"}},
	})
	assert.ErrorIs(t, err, prototype.ErrInconsistentColumns)
	assert.Empty(t, d.Data["Thing"])
}

func TestAddTableCoercions(t *testing.T) {
	d := NewDataSet(nil, Options{
		Schemas: map[string]map[string]any{
			"Thing": {
				"properties": map[string]any{
					"name":     map[string]any{"type": "string"},
					"count":    map[string]any{"type": "integer"},
					"ratio":    map[string]any{"type": "number"},
					"flag":     map[string]any{"type": "boolean"},
					"when":     map[string]any{"type": "string", "format": "date"},
					"status":   map[string]any{"type": "string", "enum": []any{"draft", "released"}},
					"mystery":  map[string]any{"type": "string"},
				},
			},
		},
	})
	addOne(t, d, Table{
		Type:    "Thing",
		Columns: []string{"name", "count", "ratio", "flag", "when", "status", "mystery"},
		Rows:    [][]string{{"n1", "42", "0.5", "true", "01/02/2024", "REL", "whatever"}},
	})

	assert.Equal(t, map[string]any{
		"name":    "n1",
		"count":   int64(42),
		"ratio":   0.5,
		"flag":    true,
		"when":    "2024-01-02",
		"status":  "released",
		"mystery": "whatever",
	}, d.Data["Thing"][0])
}

func TestAddTableJSONLiterals(t *testing.T) {
	d := NewDataSet(nil, Options{})
	addOne(t, d, Table{
		Type:    "Thing",
		Columns: []string{"misc", "somearray#0"},
		Rows:    [][]string{{`{"a": 1, "b": [true, null]}`, `[1, 2, 3]`}},
	})

	assert.Equal(t, map[string]any{
		"misc":      map[string]any{"a": int64(1), "b": []any{true, nil}},
		"somearray": []any{int64(1), int64(2), int64(3)},
	}, d.Data["Thing"][0])
}

func TestAddTablePrune(t *testing.T) {
	d := NewDataSet(nil, Options{Prune: true})
	addOne(t, d, Table{
		Type:    "Thing",
		Columns: []string{"abc.def", "abc.ghi", "xyzzy#2"},
		Rows:    [][]string{{"alpha", "", ""}},
	})

	assert.Equal(t, map[string]any{
		"abc": map[string]any{"def": "alpha"},
	}, d.Data["Thing"][0])
}

func TestAddTableRowWidthWarning(t *testing.T) {
	d := NewDataSet(nil, Options{})
	addOne(t, d, Table{
		Type:    "Thing",
		Columns: []string{"a", "b"},
		Rows:    [][]string{{"only-one"}},
	})

	warnings := d.ReaderWarnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, 1, warnings[0].Src.Row)
	assert.Contains(t, warnings[0].Warning, "1 cells for 2 columns")
}

func TestAddTablesResolvesInternalRefs(t *testing.T) {
	schemas := map[string]map[string]any{
		"Donor": {
			"identifyingProperties": []any{"submitted_id"},
			"properties": map[string]any{
				"submitted_id": map[string]any{"type": "string"},
			},
		},
		"File": {
			"properties": map[string]any{
				"submitted_id": map[string]any{"type": "string"},
				"donor":        map[string]any{"type": "string", "linkTo": "Donor"},
			},
		},
	}
	d := NewDataSet(nil, Options{Schemas: schemas, Order: []string{"Donor"}})

	// File listed first; the configured order still loads donors before files
	err := d.AddTables(context.Background(), []Table{
		{
			Type:    "File",
			Columns: []string{"submitted_id", "donor"},
			Rows:    [][]string{{"XY_FILE_0001", "XY_DONOR_ABCD"}},
		},
		{
			Type:    "Donor",
			Columns: []string{"submitted_id"},
			Rows:    [][]string{{"XY_DONOR_ABCD"}},
		},
	})
	require.NoError(t, err)

	assert.Empty(t, d.RefErrors())
	assert.Equal(t, "XY_DONOR_ABCD", d.Data["File"][0]["donor"])

	c := d.Counters()
	assert.Equal(t, 1, c.Total)
	assert.Equal(t, 1, c.Internal)
	assert.Equal(t, 0, c.Lookups)
}

func TestAddTableRefNotFound(t *testing.T) {
	schemas := map[string]map[string]any{
		"File": {
			"properties": map[string]any{
				"donor": map[string]any{"type": "string", "linkTo": "Donor"},
			},
		},
	}
	d := NewDataSet(nil, Options{Schemas: schemas})
	addOne(t, d, Table{
		Type:    "File",
		Columns: []string{"donor"},
		Rows:    [][]string{{"XY_DONOR_NOPE"}},
	})

	// unresolved refs are soft: the value stays, the error is recorded
	assert.Equal(t, "XY_DONOR_NOPE", d.Data["File"][0]["donor"])
	require.Len(t, d.RefErrors(), 1)
	issue := d.RefErrors()[0]
	assert.Equal(t, "/Donor/XY_DONOR_NOPE", issue.Error)
	assert.Equal(t, "donor", issue.Src.Column)
	assert.Equal(t, "File.donor [1]: /Donor/XY_DONOR_NOPE", FormatIssue(issue))
}

func TestAddTableRefRequiredEmpty(t *testing.T) {
	schemas := map[string]map[string]any{
		"File": {
			"required": []any{"donor"},
			"properties": map[string]any{
				"donor": map[string]any{"type": "string", "linkTo": "Donor"},
			},
		},
	}
	d := NewDataSet(nil, Options{Schemas: schemas})
	addOne(t, d, Table{
		Type:    "File",
		Columns: []string{"donor"},
		Rows:    [][]string{{""}},
	})

	require.Len(t, d.RefErrors(), 1)
	assert.Equal(t, "/Donor/<null>", d.RefErrors()[0].Error)
}

func TestAddTableRefViaPortal(t *testing.T) {
	p := portal.NewMemory(
		map[string]map[string]any{
			"File": {
				"properties": map[string]any{
					"donor": map[string]any{"type": "string", "linkTo": "Donor"},
				},
			},
		},
		map[string]map[string]any{
			"/Donor/XY_DONOR_ABCD": {"uuid": "u-1"},
		},
	)
	d := NewDataSet(p, Options{})
	addOne(t, d, Table{
		Type:    "File",
		Columns: []string{"donor"},
		Rows:    [][]string{{"XY_DONOR_ABCD"}},
	})

	assert.Empty(t, d.RefErrors())
	c := d.Counters()
	assert.Equal(t, 1, c.External)
	assert.Equal(t, 1, c.Found)
}

func TestValidate(t *testing.T) {
	schemas := map[string]map[string]any{
		"Thing": {
			"type":     "object",
			"required": []any{"submitted_id"},
			"properties": map[string]any{
				"submitted_id": map[string]any{"type": "string"},
				"count":        map[string]any{"type": "integer"},
			},
		},
	}
	d := NewDataSet(nil, Options{Schemas: schemas})
	addOne(t, d, Table{
		Type:    "Thing",
		Columns: []string{"count"},
		Rows:    [][]string{{"3"}},
	})
	require.NoError(t, d.Validate(context.Background()))

	issues := d.ValidationErrors()
	require.Len(t, issues, 1)
	assert.Equal(t, "missing_properties", issues[0].Kind)
	assert.Contains(t, issues[0].Error, "submitted_id")
	assert.Equal(t, "<unidentified>", issues[0].Src.ID)

	// idempotent: a second pass records nothing new
	require.NoError(t, d.Validate(context.Background()))
	assert.Len(t, d.ValidationErrors(), 1)
}

func TestValidateStripsDeletionSentinel(t *testing.T) {
	schemas := map[string]map[string]any{
		"Thing": {
			"type": "object",
			"properties": map[string]any{
				"submitted_id": map[string]any{"type": "string"},
				"count":        map[string]any{"type": "integer"},
			},
		},
	}
	d := NewDataSet(nil, Options{Schemas: schemas})
	addOne(t, d, Table{
		Type:    "Thing",
		Columns: []string{"submitted_id", "count"},
		Rows:    [][]string{{"XY_THING_0001", DeletionSentinel}},
	})
	require.NoError(t, d.Validate(context.Background()))

	// the sentinel would fail the integer type check if it were validated
	assert.Empty(t, d.ValidationErrors())
	// but it stays in the materialized row for the portal to act on
	assert.Equal(t, DeletionSentinel, d.Data["Thing"][0]["count"])
}

func TestSplitArrayValue(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitArrayValue("a|b|c"))
	assert.Equal(t, []string{"a|b", "c"}, splitArrayValue(`a\|b|c`))
	assert.Equal(t, []string{"a", "b"}, splitArrayValue("a||b|"))
	assert.Equal(t, []string{"spaced out"}, splitArrayValue("  spaced out  "))
	assert.Nil(t, splitArrayValue(""))
}

func TestRowTemplateIdentityWithoutValues(t *testing.T) {
	d := NewDataSet(nil, Options{})
	addOne(t, d, Table{
		Type:    "Thing",
		Columns: []string{"abc.def", "vw#.xy"},
		Rows:    [][]string{{"", ""}},
	})

	// empty cells still pass through the template's placeholder shape
	row := d.Data["Thing"][0]
	assert.Equal(t, map[string]any{"def": ""}, row["abc"])
}
