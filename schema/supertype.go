package schema

import "strings"

// SuperTypeMap inverts each schema's rdfs:subClassOf declaration into a map
// from super-type to all of its sub-types, direct and descendant, in breadth
// first order. The abstract root type "Item" is not a useful super type and
// is skipped.
func SuperTypeMap(schemas map[string]map[string]any) map[string][]string {
	direct := map[string][]string{}
	for typeName, doc := range schemas {
		superName, _ := doc["rdfs:subClassOf"].(string)
		if superName == "" {
			continue
		}
		superName = strings.TrimSuffix(strings.TrimPrefix(superName, "/profiles/"), ".json")
		if superName == "Item" {
			continue
		}
		if !contains(direct[superName], typeName) {
			direct[superName] = append(direct[superName], typeName)
		}
	}

	expanded := make(map[string][]string, len(direct))
	for superName := range direct {
		var result []string
		queue := append([]string{}, direct[superName]...)
		for len(queue) > 0 {
			sub := queue[0]
			queue = queue[1:]
			result = append(result, sub)
			queue = append(queue, direct[sub]...)
		}
		expanded[superName] = result
	}
	return expanded
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// TypeName normalizes a sheet or file base name into a portal type name:
// spaces removed, snake_case and kebab-case upper-camel-cased.
func TypeName(name string) string {
	name = strings.ReplaceAll(name, " ", "")
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		name = name[:dot]
	}
	var b strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case r == '_' || r == '-':
			upper = true
		case upper:
			b.WriteRune(asciiUpper(r))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func asciiUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
