// Package refs resolves linkTo values to concrete objects: first against the
// rows already materialized in the current batch, then against the remote
// portal. Results, including definitive misses, are cached for the lifetime
// of one ingestion run.
//
// A Resolver is owned by a single run and is not safe for concurrent use.
package refs

import (
	"context"
	"regexp"

	"github.com/google/uuid"

	"github.com/sheetstruct/sheetstruct/portal"
	"github.com/sheetstruct/sheetstruct/schema"
)

// Result is the outcome of one reference resolution. A Found result carries
// the resolved type and, when known, the referenced object's uuid. UUID may
// be empty for internal matches whose row has no uuid yet.
type Result struct {
	Type  string `json:"type"`
	UUID  string `json:"uuid,omitempty"`
	Found bool   `json:"found"`
}

// Counters exposes the resolver's observability counts for one run.
type Counters struct {
	Total                      int `json:"total"`
	Found                      int `json:"found"`
	NotFound                   int `json:"not_found"`
	Lookups                    int `json:"lookup_count"`
	CacheHit                   int `json:"cache_hit"`
	CacheMiss                  int `json:"cache_miss"`
	Internal                   int `json:"internal"`
	External                   int `json:"external"`
	InvalidIdentifyingProperty int `json:"invalid_identifying_property"`
}

// SchemaSource supplies flattened schemas by type name; a nil schema (with
// nil error) means the type has none.
type SchemaSource interface {
	SchemaFor(ctx context.Context, typeName string) (*schema.Schema, error)
}

// Config assembles a Resolver. Portal may be nil (internal-only resolution).
// Data is the live batch, shared with the data set that owns the run; it may
// grow between calls. SuperTypes, when nil, is fetched from the portal on
// first use.
type Config struct {
	Portal     portal.Portal
	Schemas    SchemaSource
	Data       map[string][]map[string]any
	Strategy   Strategy
	SuperTypes map[string][]string
}

type cacheKey struct {
	Type  string
	Value string
}

type entryKind int

const (
	entryInternalFound entryKind = iota
	entryInternalNotFound
	entryExternal // terminal, found or not
)

type cacheEntry struct {
	kind entryKind
	res  Result
}

type Resolver struct {
	portal   portal.Portal
	schemas  SchemaSource
	data     map[string][]map[string]any
	strategy Strategy

	superTypes  map[string][]string
	superLoaded bool

	cache    map[cacheKey]cacheEntry
	counters Counters
}

func NewResolver(cfg Config) *Resolver {
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = DefaultStrategy{}
	}
	return &Resolver{
		portal:      cfg.Portal,
		schemas:     cfg.Schemas,
		data:        cfg.Data,
		strategy:    strategy,
		superTypes:  cfg.SuperTypes,
		superLoaded: cfg.SuperTypes != nil,
		cache:       map[cacheKey]cacheEntry{},
	}
}

// Counters returns a snapshot of the run's counters.
func (r *Resolver) Counters() Counters {
	return r.counters
}

// Resolve looks the (typeName, value) reference up. Cached external results
// are terminal; a cached internal miss is retried against the batch, which
// may have grown since it was cached.
func (r *Resolver) Resolve(ctx context.Context, typeName, value string) Result {
	r.counters.Total++
	metricResolutions.Inc()

	k := cacheKey{Type: typeName, Value: value}
	if e, in := r.cache[k]; in && e.kind != entryInternalNotFound {
		r.counters.CacheHit++
		metricCache.WithLabelValues("hit").Inc()
		r.countOutcome(e.res)
		return e.res
	}
	r.counters.CacheMiss++
	metricCache.WithLabelValues("miss").Inc()

	sch := r.schemaFor(ctx, typeName)
	opts := r.strategy.Options(typeName, sch, value)

	if !r.mayMatch(ctx, typeName, value, opts) {
		r.counters.InvalidIdentifyingProperty++
		metricInvalid.Inc()
		return r.finish(ctx, typeName, value, cacheEntry{
			kind: entryExternal,
			res:  Result{Type: typeName},
		})
	}

	if res, ok := r.resolveInternal(ctx, typeName, value, opts); ok {
		r.counters.Internal++
		return r.finish(ctx, typeName, value, cacheEntry{kind: entryInternalFound, res: res})
	}

	if r.portal == nil {
		return r.finish(ctx, typeName, value, cacheEntry{
			kind: entryInternalNotFound,
			res:  Result{Type: typeName},
		})
	}

	for _, lp := range r.lookupPaths(ctx, typeName, value, opts) {
		r.counters.Lookups++
		metricLookups.Inc()
		res, err := r.portal.GetObject(ctx, lp.path)
		if err != nil || !res.OK() {
			// portal trouble counts as a miss for this attempt only
			continue
		}
		id, _ := res.Body["uuid"].(string)
		if id == "" {
			continue
		}
		r.counters.External++
		return r.finish(ctx, typeName, value, cacheEntry{
			kind: entryExternal,
			res:  Result{Type: lp.typeName, UUID: id, Found: true},
		})
	}

	return r.finish(ctx, typeName, value, cacheEntry{
		kind: entryExternal,
		res:  Result{Type: typeName},
	})
}

// finish caches the entry under the requested type and every known subtype
// alias, updates outcome counters, and returns the result.
func (r *Resolver) finish(ctx context.Context, typeName, value string, e cacheEntry) Result {
	r.cache[cacheKey{Type: typeName, Value: value}] = e
	for _, sub := range r.subTypes(ctx, typeName) {
		r.cache[cacheKey{Type: sub, Value: value}] = e
	}
	r.countOutcome(e.res)
	return e.res
}

func (r *Resolver) countOutcome(res Result) {
	if res.Found {
		r.counters.Found++
		metricOutcomes.WithLabelValues("found").Inc()
	} else {
		r.counters.NotFound++
		metricOutcomes.WithLabelValues("not_found").Inc()
	}
}

// resolveInternal scans already-materialized rows of the candidate type (and
// its subtypes when the strategy allows) for any identifying property equal
// to the value.
func (r *Resolver) resolveInternal(ctx context.Context, typeName, value string, opts Options) (Result, bool) {
	for _, t := range r.candidateTypes(ctx, typeName, opts) {
		rows := r.data[t]
		if len(rows) == 0 {
			continue
		}
		iprops := r.identifyingProperties(ctx, t)
		for _, row := range rows {
			for _, ip := range iprops {
				if !valueMatches(row[ip], value) {
					continue
				}
				id, _ := row["uuid"].(string)
				return Result{Type: t, UUID: id, Found: true}, true
			}
		}
	}
	return Result{}, false
}

func valueMatches(have any, want string) bool {
	switch v := have.(type) {
	case string:
		return v == want
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// mayMatch pre-validates the value against the identifying-property
// patterns and formats declared by the candidate type and its subtypes. A
// value that cannot syntactically match any identifying property is rejected
// without issuing a lookup.
func (r *Resolver) mayMatch(ctx context.Context, typeName, value string, opts Options) bool {
	if value == "" {
		return false
	}
	constrained := false
	for _, t := range r.candidateTypes(ctx, typeName, opts) {
		sch := r.schemaFor(ctx, t)
		if sch == nil {
			return true
		}
		for _, ip := range sch.IdentifyingProperties() {
			doc := sch.Properties(ip)
			if doc == nil {
				continue
			}
			if opts.Validator != nil && !opts.Validator(doc, ip, value) {
				constrained = true
				continue
			}
			if pattern, ok := doc["pattern"].(string); ok {
				constrained = true
				if re, err := regexp.Compile(pattern); err == nil && !re.MatchString(value) {
					continue
				}
				return true
			}
			if format, _ := doc["format"].(string); format == "uuid" {
				constrained = true
				if _, err := uuid.Parse(value); err != nil {
					continue
				}
				return true
			}
			// no syntactic constraint declared; cannot rule the value out
			return true
		}
	}
	return !constrained
}

type lookupPath struct {
	path     string
	typeName string
}

// lookupPaths builds the ordered external candidate paths the strategy asks
// for: optionally the root path first, then the specified type, then each
// subtype, then the root path last.
func (r *Resolver) lookupPaths(ctx context.Context, typeName, value string, opts Options) []lookupPath {
	var paths []lookupPath
	if opts.RootFirst {
		paths = append(paths, lookupPath{path: "/" + value, typeName: typeName})
	}
	if opts.SpecifiedType {
		paths = append(paths, lookupPath{path: "/" + typeName + "/" + value, typeName: typeName})
	}
	if opts.Subtypes {
		for _, sub := range r.subTypes(ctx, typeName) {
			paths = append(paths, lookupPath{path: "/" + sub + "/" + value, typeName: sub})
		}
	}
	if opts.Root && !opts.RootFirst {
		paths = append(paths, lookupPath{path: "/" + value, typeName: typeName})
	}
	return paths
}

func (r *Resolver) candidateTypes(ctx context.Context, typeName string, opts Options) []string {
	types := []string{typeName}
	if opts.Subtypes {
		types = append(types, r.subTypes(ctx, typeName)...)
	}
	return types
}

func (r *Resolver) subTypes(ctx context.Context, typeName string) []string {
	if !r.superLoaded {
		r.superLoaded = true
		if r.portal != nil {
			if m, err := r.portal.GetSuperTypeMap(ctx); err == nil {
				r.superTypes = m
			}
		}
	}
	return r.superTypes[typeName]
}

func (r *Resolver) schemaFor(ctx context.Context, typeName string) *schema.Schema {
	if r.schemas == nil {
		return nil
	}
	sch, err := r.schemas.SchemaFor(ctx, typeName)
	if err != nil {
		return nil
	}
	return sch
}

func (r *Resolver) identifyingProperties(ctx context.Context, typeName string) []string {
	if sch := r.schemaFor(ctx, typeName); sch != nil {
		return sch.IdentifyingProperties()
	}
	return []string{"uuid", "identifier"}
}
