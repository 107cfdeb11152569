// Package prototype builds the nested placeholder skeleton implied by the
// full set of column paths of one table. The skeleton is built once, then
// deep-copied per row so rows can be filled in without restructuring.
package prototype

import (
	"errors"
	"fmt"

	"github.com/sheetstruct/sheetstruct/colpath"
)

var (
	// ErrInconsistentColumns reports two headers that disagree on whether a
	// shared position is an object key or an array index (or a scalar).
	ErrInconsistentColumns = errors.New("inconsistent columns")

	// ErrNonSequentialArrayIndex reports an explicit array index that would
	// skip slots never allocated by an earlier column.
	ErrNonSequentialArrayIndex = errors.New("non-sequential array index")
)

type nodeKind int

const (
	kindLeaf nodeKind = iota
	kindObject
	kindArray
)

// node is the mutable build-time form of the skeleton. terminal marks nodes
// at which some column path ends; such nodes may not later be reshaped.
type node struct {
	kind     nodeKind
	obj      map[string]*node
	arr      []*node
	open     bool // array introduced by an unspecified "#" marker
	terminal bool
}

// Build constructs the skeleton for the given paths. It is idempotent with
// respect to duplicate paths and independent of row contents.
func Build(paths []colpath.Path) (map[string]any, error) {
	root := &node{kind: kindObject, obj: map[string]*node{}}
	for _, p := range paths {
		if len(p) == 0 {
			continue
		}
		if err := place(root, p, p); err != nil {
			return nil, err
		}
	}
	return root.finalize().(map[string]any), nil
}

func place(cur *node, segs colpath.Path, full colpath.Path) error {
	if len(segs) == 0 {
		if cur.kind != kindLeaf && cur.terminal {
			return nil
		}
		if cur.kind != kindLeaf {
			return fmt.Errorf("%w: %s used as both scalar and container", ErrInconsistentColumns, full)
		}
		cur.terminal = true
		return nil
	}

	seg := segs[0]
	if !seg.Array {
		if cur.kind == kindArray {
			return fmt.Errorf("%w: %s names a property inside an array position", ErrInconsistentColumns, full)
		}
		if cur.kind == kindLeaf {
			if cur.terminal {
				return fmt.Errorf("%w: %s used as both scalar and container", ErrInconsistentColumns, full)
			}
			cur.kind = kindObject
			cur.obj = map[string]*node{}
		}
		child, in := cur.obj[seg.Name]
		if !in {
			child = &node{}
			cur.obj[seg.Name] = child
		}
		return place(child, segs[1:], full)
	}

	// array index segment
	if cur.kind == kindObject {
		return fmt.Errorf("%w: %s indexes into an object position", ErrInconsistentColumns, full)
	}
	if cur.kind == kindLeaf {
		if cur.terminal {
			return fmt.Errorf("%w: %s used as both scalar and array", ErrInconsistentColumns, full)
		}
		cur.kind = kindArray
		cur.arr = nil
	}

	if seg.Index == colpath.Next {
		cur.open = true
		if len(segs) == 1 {
			// trailing bare "#": contributes no slots; values are
			// appended at materialization time
			return nil
		}
		if len(cur.arr) == 0 {
			cur.arr = append(cur.arr, filler(segs[1:]))
		}
		return place(cur.arr[0], segs[1:], full)
	}

	idx := seg.Index
	switch {
	case idx < len(cur.arr):
		// slot already allocated
	case idx == len(cur.arr):
		cur.arr = append(cur.arr, filler(segs[1:]))
	case len(cur.arr) == 0 || cur.open:
		// first introduction sizes the array; an open-ended array is
		// reconciled by any explicit sibling index
		for len(cur.arr) <= idx {
			cur.arr = append(cur.arr, filler(segs[1:]))
		}
	default:
		return fmt.Errorf("%w: %s skips unallocated slots (have %d)",
			ErrNonSequentialArrayIndex, full, len(cur.arr))
	}
	return place(cur.arr[idx], segs[1:], full)
}

// filler allocates the placeholder shape implied by the remaining segments,
// without marking anything terminal.
func filler(segs colpath.Path) *node {
	if len(segs) == 0 {
		return &node{}
	}
	seg := segs[0]
	if !seg.Array {
		return &node{kind: kindObject, obj: map[string]*node{seg.Name: filler(segs[1:])}}
	}
	n := &node{kind: kindArray}
	if seg.Index == colpath.Next {
		n.open = true
		if len(segs) > 1 {
			n.arr = append(n.arr, filler(segs[1:]))
		}
		return n
	}
	for len(n.arr) <= seg.Index {
		n.arr = append(n.arr, filler(segs[1:]))
	}
	return n
}

func (n *node) finalize() any {
	switch n.kind {
	case kindObject:
		m := make(map[string]any, len(n.obj))
		for k, v := range n.obj {
			m[k] = v.finalize()
		}
		return m
	case kindArray:
		a := make([]any, len(n.arr))
		for i, v := range n.arr {
			a[i] = v.finalize()
		}
		return a
	default:
		return nil
	}
}

// Copy deep-copies a skeleton (or any value materialized from one).
func Copy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = Copy(e)
		}
		return m
	case []any:
		a := make([]any, len(t))
		for i, e := range t {
			a[i] = Copy(e)
		}
		return a
	default:
		return v
	}
}
