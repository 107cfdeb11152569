// Package structured converts already-parsed tabular rows into nested,
// schema-coerced JSON objects, resolving references within the batch and
// against the portal, and validating the result.
package structured

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sheetstruct/sheetstruct/portal"
	"github.com/sheetstruct/sheetstruct/prototype"
	"github.com/sheetstruct/sheetstruct/refs"
	"github.com/sheetstruct/sheetstruct/schema"
)

// DeletionSentinel marks a cell whose property should be removed on the
// portal side; it is stripped before validation so it never trips type or
// pattern checks.
const DeletionSentinel = "*delete*"

// Table is one logical sheet: every row shares the type and the column
// headers.
type Table struct {
	Type    string     `json:"type"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Options configures a DataSet. Schemas overrides (or replaces) the
// portal's schemas per type name. Order lists types that should be
// materialized first, so commonly-referenced types resolve internally; it is
// advisory, not a dependency requirement. Prune drops null/empty values
// from materialized rows.
type Options struct {
	Schemas  map[string]map[string]any
	Order    []string
	Prune    bool
	Strategy refs.Strategy
}

// DataSet accumulates materialized rows per type, plus the warnings, errors
// and resolver counters of one ingestion run. It is owned by a single run
// and is not safe for concurrent use.
type DataSet struct {
	Data map[string][]map[string]any

	portal   portal.Portal
	opts     Options
	resolver *refs.Resolver

	warnings map[string][]Issue
	errs     map[string][]Issue

	schemaCache map[string]*schema.Schema
	validated   bool
}

func NewDataSet(p portal.Portal, opts Options) *DataSet {
	d := &DataSet{
		Data:        map[string][]map[string]any{},
		portal:      p,
		opts:        opts,
		warnings:    map[string][]Issue{},
		errs:        map[string][]Issue{},
		schemaCache: map[string]*schema.Schema{},
	}
	d.resolver = refs.NewResolver(refs.Config{
		Portal:     p,
		Schemas:    d,
		Data:       d.Data,
		Strategy:   opts.Strategy,
		SuperTypes: d.localSuperTypes(),
	})
	return d
}

// localSuperTypes builds the super-type map from caller-supplied schemas;
// when none are supplied the resolver fetches the map from the portal.
func (d *DataSet) localSuperTypes() map[string][]string {
	if len(d.opts.Schemas) == 0 {
		return nil
	}
	return schema.SuperTypeMap(d.opts.Schemas)
}

// SchemaFor returns the flattened schema for a type, preferring
// caller-supplied schemas over the portal's, caching either way. A nil
// schema with nil error means the type has none.
func (d *DataSet) SchemaFor(ctx context.Context, typeName string) (*schema.Schema, error) {
	typeName = schema.TypeName(typeName)
	if sch, in := d.schemaCache[typeName]; in {
		return sch, nil
	}
	doc := d.opts.Schemas[typeName]
	if doc == nil && d.portal != nil {
		var err error
		doc, err = d.portal.GetSchema(ctx, typeName)
		if err != nil {
			slog.Debug("could not fetch schema", "type", typeName, "err", err)
			doc = nil
		}
	}
	if doc == nil {
		d.schemaCache[typeName] = nil
		return nil, nil
	}
	sch, err := schema.New(typeName, doc)
	if err != nil {
		return nil, err
	}
	d.schemaCache[typeName] = sch
	return sch, nil
}

// AddTables materializes every table, honoring the configured priority
// order. Tables whose headers or schema are structurally broken are skipped;
// their errors are joined into the returned error while the remaining
// tables still load.
func (d *DataSet) AddTables(ctx context.Context, tables []Table) error {
	ordered := make([]Table, len(tables))
	copy(ordered, tables)
	rank := map[string]int{}
	for i, typeName := range d.opts.Order {
		rank[schema.TypeName(typeName)] = i
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return tableRank(rank, ordered[i]) < tableRank(rank, ordered[j])
	})

	var failures []error
	for _, t := range ordered {
		if err := d.AddTable(ctx, t); err != nil {
			slog.Warn("skipping table", "type", t.Type, "err", err)
			failures = append(failures, fmt.Errorf("table %s: %w", t.Type, err))
		}
	}
	return errors.Join(failures...)
}

func tableRank(rank map[string]int, t Table) int {
	if r, in := rank[schema.TypeName(t.Type)]; in {
		return r
	}
	return len(rank) + 1
}

// AddTable materializes one table's rows into Data. Structural header or
// schema errors abort this table only.
func (d *DataSet) AddTable(ctx context.Context, t Table) error {
	sch, err := d.SchemaFor(ctx, t.Type)
	if err != nil {
		return err
	}
	typeName := schema.TypeName(t.Type)
	if sch != nil && sch.Name != "" {
		typeName = sch.Name
	}

	tmpl, err := newRowTemplate(typeName, t.Columns, sch)
	if err != nil {
		return err
	}

	for rowIdx, cells := range t.Rows {
		rowNum := rowIdx + 1
		if len(cells) != len(t.Columns) {
			d.noteWarning(GroupReader, Issue{
				Src:     Src{Type: typeName, Row: rowNum},
				Warning: fmt.Sprintf("row has %d cells for %d columns", len(cells), len(t.Columns)),
			})
		}
		row := tmpl.createRow()
		for i, column := range t.Columns {
			if i >= len(cells) {
				break
			}
			d.setValue(ctx, tmpl, row, column, cells[i], rowNum)
		}
		if d.opts.Prune {
			if pruned, ok := pruneValue(row).(map[string]any); ok {
				row = pruned
			} else {
				row = map[string]any{}
			}
		}
		d.Data[typeName] = append(d.Data[typeName], row)
	}
	return nil
}

// Validate runs every materialized row through full JSON-Schema validation,
// after logically stripping deletion sentinels so intentionally-unset
// properties do not fail. It is idempotent and leaves Data untouched.
func (d *DataSet) Validate(ctx context.Context) error {
	if d.validated {
		return nil
	}
	d.validated = true

	typeNames := make([]string, 0, len(d.Data))
	for typeName := range d.Data {
		typeNames = append(typeNames, typeName)
	}
	sort.Strings(typeNames)

	for _, typeName := range typeNames {
		sch, err := d.SchemaFor(ctx, typeName)
		if err != nil || sch == nil {
			continue
		}
		for rowIdx, row := range d.Data[typeName] {
			inst := prototype.Copy(row).(map[string]any)
			stripDeletions(inst)
			issues, err := sch.Validate(inst)
			if err != nil {
				return err
			}
			for _, issue := range issues {
				d.noteError(GroupValidation, Issue{
					Src: Src{
						Type: typeName,
						Row:  rowIdx + 1,
						ID:   identifyingValue(sch, row),
					},
					Error: issue.Message,
					Kind:  issue.Kind,
				})
			}
		}
	}
	return nil
}

// identifyingValue picks the row's best-available identifying value for
// tagging validation issues.
func identifyingValue(sch *schema.Schema, row map[string]any) string {
	for _, ip := range sch.IdentifyingProperties() {
		if v, ok := row[ip].(string); ok && v != "" {
			return v
		}
	}
	return "<unidentified>"
}

func (d *DataSet) Warnings() map[string][]Issue { return d.warnings }
func (d *DataSet) Errors() map[string][]Issue   { return d.errs }

func (d *DataSet) ReaderWarnings() []Issue   { return d.warnings[GroupReader] }
func (d *DataSet) RefErrors() []Issue        { return d.errs[GroupRef] }
func (d *DataSet) ValidationErrors() []Issue { return d.errs[GroupValidation] }

// Counters returns the reference resolver's counters for this run.
func (d *DataSet) Counters() refs.Counters { return d.resolver.Counters() }

// Resolver exposes the run's resolver, mainly so callers can resolve ad-hoc
// references against the loaded batch.
func (d *DataSet) Resolver() *refs.Resolver { return d.resolver }

func (d *DataSet) noteWarning(group string, issue Issue) { noteIssue(d.warnings, group, issue) }
func (d *DataSet) noteError(group string, issue Issue)   { noteIssue(d.errs, group, issue) }

// pruneValue strips null, empty-string, deletion-sentinel and empty
// container values, returning nil when nothing remains.
func pruneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			if p := pruneValue(e); p == nil {
				delete(t, k)
			} else {
				t[k] = p
			}
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []any:
		out := t[:0]
		for _, e := range t {
			if p := pruneValue(e); p != nil {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case string:
		if t == "" || t == DeletionSentinel {
			return nil
		}
		return t
	default:
		return t
	}
}

// stripDeletions removes deletion-sentinel values in place, including
// sentinel elements of arrays.
func stripDeletions(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			if s, ok := e.(string); ok && s == DeletionSentinel {
				delete(t, k)
				continue
			}
			stripDeletions(e)
		}
	case []any:
		for i, e := range t {
			if s, ok := e.(string); ok && s == DeletionSentinel {
				t[i] = nil
				continue
			}
			stripDeletions(e)
		}
	}
}
