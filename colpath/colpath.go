// Package colpath parses spreadsheet column headers into typed paths.
//
// Headers use dot notation for nested objects and a "#" suffix notation for
// array elements, e.g. "donor.age", "aliases#0", "vw#.xy". A "#" with no
// following digits means "some element, index unspecified".
package colpath

import (
	"strconv"
	"strings"
)

const (
	// Delim separates nested object property names within a header.
	Delim = '.'
	// ArrayMark introduces an array index within a header component.
	ArrayMark = '#'

	// Next is the index of a segment whose position within its array was
	// left unspecified (a bare "#" in the header).
	Next = -1
)

// Segment is one step of a column path: either a property name or an array
// index. Index is only meaningful when Array is true.
type Segment struct {
	Name  string
	Index int
	Array bool
}

// Path is the parsed form of a column header, outermost segment first.
type Path []Segment

// Last returns the final segment of the path.
func (p Path) Last() Segment {
	return p[len(p)-1]
}

// String renders the path back into header notation.
func (p Path) String() string {
	var b strings.Builder
	for _, s := range p {
		if s.Array {
			b.WriteByte(ArrayMark)
			if s.Index != Next {
				b.WriteString(strconv.Itoa(s.Index))
			}
		} else {
			if b.Len() > 0 {
				b.WriteByte(Delim)
			}
			b.WriteString(s.Name)
		}
	}
	return b.String()
}

// Parse converts a column header into a Path. It is total: malformed headers
// degrade by dropping empty tokens rather than failing, and parsing the same
// header twice yields the same path. The first segment of a path is always a
// property name; a header that would begin with an array index keeps that
// token as a name instead.
func Parse(header string) Path {
	var path Path
	i := 0
	for i < len(header) {
		switch header[i] {
		case Delim:
			i++
		case ArrayMark:
			i++
			j := i
			for j < len(header) && isDigit(header[j]) {
				j++
			}
			if len(path) == 0 {
				// Leading array marker has nothing to index into;
				// drop it and let the digits (if any) form a name.
				if j > i {
					path = append(path, Segment{Name: header[i:j]})
				}
				i = j
				continue
			}
			if j == i {
				path = append(path, Segment{Index: Next, Array: true})
			} else {
				n, _ := strconv.Atoi(header[i:j])
				path = append(path, Segment{Index: n, Array: true})
			}
			i = j
		default:
			j := i
			for j < len(header) && header[j] != Delim && header[j] != ArrayMark {
				j++
			}
			tok := header[i:j]
			if allDigits(tok) && len(path) > 0 {
				n, _ := strconv.Atoi(tok)
				path = append(path, Segment{Index: n, Array: true})
			} else {
				path = append(path, Segment{Name: tok})
			}
			i = j
		}
	}
	return path
}

// ParseMany parses every header of one table, preserving column order.
func ParseMany(headers []string) []Path {
	paths := make([]Path, 0, len(headers))
	for _, h := range headers {
		paths = append(paths, Parse(h))
	}
	return paths
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
