package scim

import (
	"regexp"
	"strings"
)

// Filter is a single parsed filter predicate.
type Filter struct {
	Attribute string
	Operator  string
	Value     string
}

// filterPattern matches exactly one `attribute op "value"` predicate. Boolean
// composition (and/or) is unsupported: real-world provisioning callers send
// single-predicate filters only.
var filterPattern = regexp.MustCompile(`^\s*(\w+(?:\.\w+)?)\s+(?i:(eq|ne|co|sw|ew|gt|lt|ge|le))\s+"([^"]*)"\s*$`)

// ParseFilter parses a SCIM filter expression. It returns nil when the
// expression doesn't match the supported grammar; there is no partial
// parsing.
func ParseFilter(expr string) *Filter {
	m := filterPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil
	}
	return &Filter{
		Attribute: strings.ToLower(m[1]),
		Operator:  strings.ToLower(m[2]),
		Value:     m[3],
	}
}
