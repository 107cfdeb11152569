package schema

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sheetstruct/sheetstruct/colpath"
)

const (
	dotDelim  = '.'
	arrayMark = '#'
)

var arrayIndexRegexp = regexp.MustCompile(`#\d+`)

// UnadornColumn strips every array marker and index from a column header:
// "abc#0.def#" becomes "abc.def".
func UnadornColumn(column string) string {
	return strings.ReplaceAll(arrayIndexRegexp.ReplaceAllString(column, "#"), "#", "")
}

// NormalizeColumn reduces explicit array indices to bare markers:
// "abc#0.def#" becomes "abc#.def#".
func NormalizeColumn(column string) string {
	return arrayIndexRegexp.ReplaceAllString(column, "#")
}

// arrayIndices splits trailing array qualifiers off one dotted component,
// innermost last. "a#0#" yields ("a", [0, Next]). Components without
// qualifiers yield ok == false.
func arrayIndices(component string) (string, []int, bool) {
	var indices []int
	for {
		p := strings.LastIndexByte(component, arrayMark)
		if p <= 0 {
			break
		}
		idx := colpath.Next
		if tail := component[p+1:]; tail != "" {
			n, err := strconv.Atoi(tail)
			if err != nil {
				break
			}
			idx = n
		}
		component = component[:p]
		indices = append([]int{idx}, indices...)
	}
	if len(indices) == 0 {
		return "", nil, false
	}
	return component, indices, true
}

// Rationalize reconciles a caller header's array annotations against the
// schema's canonical flattened key for the same property. Caller indices are
// preserved; when the canonical key declares deeper array nesting the header
// is padded with unspecified markers. Headers the schema does not know pass
// through unchanged.
func (s *Schema) Rationalize(column string) string {
	canon, in := s.aliases[UnadornColumn(column)]
	if !in {
		return column
	}
	canonComps := strings.Split(canon, string(dotDelim))
	comps := strings.Split(column, string(dotDelim))
	for i := range comps {
		if i >= len(canonComps) {
			break
		}
		markers := strings.Count(canonComps[i], string(arrayMark))
		if markers == 0 {
			continue
		}
		name, indices, ok := arrayIndices(comps[i])
		if !ok {
			name = comps[i]
		}
		if len(indices) >= markers {
			continue
		}
		var b strings.Builder
		b.WriteString(name)
		for _, idx := range indices {
			b.WriteByte(arrayMark)
			if idx != colpath.Next {
				b.WriteString(strconv.Itoa(idx))
			}
		}
		b.WriteString(strings.Repeat(string(arrayMark), markers-len(indices)))
		comps[i] = b.String()
	}
	return strings.Join(comps, string(dotDelim))
}
