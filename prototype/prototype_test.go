package prototype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetstruct/sheetstruct/colpath"
)

func build(t *testing.T, headers ...string) map[string]any {
	t.Helper()
	proto, err := Build(colpath.ParseMany(headers))
	require.NoError(t, err)
	return proto
}

func TestBuildObjectsAndArrays(t *testing.T) {
	proto := build(t, "abc.def", "pqr", "vw#.xy")
	assert.Equal(t, map[string]any{
		"abc": map[string]any{"def": nil},
		"pqr": nil,
		"vw":  []any{map[string]any{"xy": nil}},
	}, proto)
}

func TestBuildExplicitIndexSizesArray(t *testing.T) {
	proto := build(t, "xyzzy#2")
	assert.Equal(t, map[string]any{"xyzzy": []any{nil, nil, nil}}, proto)
}

func TestBuildTrailingBareMarkerIsEmptyArray(t *testing.T) {
	proto := build(t, "somearray#")
	assert.Equal(t, map[string]any{"somearray": []any{}}, proto)
}

func TestBuildBareMarkerReconciledBySiblingIndex(t *testing.T) {
	proto := build(t, "somearray#", "somearray#3", "somearray#4")
	assert.Equal(t, map[string]any{"somearray": []any{nil, nil, nil, nil, nil}}, proto)
}

func TestBuildIntermediateSlotsGetPlaceholders(t *testing.T) {
	proto := build(t, "a#2.b")
	assert.Equal(t, map[string]any{"a": []any{
		map[string]any{"b": nil},
		map[string]any{"b": nil},
		map[string]any{"b": nil},
	}}, proto)
}

func TestBuildInconsistentColumns(t *testing.T) {
	_, err := Build(colpath.ParseMany([]string{"abc", "abc.def"}))
	assert.ErrorIs(t, err, ErrInconsistentColumns)

	_, err = Build(colpath.ParseMany([]string{"abc.def", "abc"}))
	assert.ErrorIs(t, err, ErrInconsistentColumns)

	_, err = Build(colpath.ParseMany([]string{"abc#0", "abc.def"}))
	assert.ErrorIs(t, err, ErrInconsistentColumns)
}

func TestBuildNonSequentialArrayIndex(t *testing.T) {
	_, err := Build(colpath.ParseMany([]string{"a#0", "a#2"}))
	assert.ErrorIs(t, err, ErrNonSequentialArrayIndex)

	// appending the next slot is fine
	_, err = Build(colpath.ParseMany([]string{"a#0", "a#1"}))
	assert.NoError(t, err)
}

func TestBuildIdempotent(t *testing.T) {
	once := build(t, "a.b", "c#0")
	twice := build(t, "a.b", "c#0", "a.b", "c#0")
	assert.Equal(t, once, twice)
}

func TestCopyDoesNotAlias(t *testing.T) {
	proto := build(t, "abc.def", "vw#.xy")
	row := Copy(proto).(map[string]any)
	row["abc"].(map[string]any)["def"] = "alpha"
	row["vw"].([]any)[0].(map[string]any)["xy"] = "781"
	assert.Nil(t, proto["abc"].(map[string]any)["def"])
	assert.Nil(t, proto["vw"].([]any)[0].(map[string]any)["xy"])
}
