package fb

import (
	"database/sql/driver"
	"strings"
)

// ParameterError represents an error with parameter binding
type ParameterError struct {
	Name    string
	Message string
}

func (e *ParameterError) Error() string {
	if e.Name != "" {
		return "parameter '" + e.Name + "': " + e.Message
	}
	return "parameter: " + e.Message
}

// NamedParams holds a query rewritten from named to positional placeholders
type NamedParams struct {
	// Query uses ? placeholders only
	Query string

	// Names contains the parameter names in order of their first appearance
	Names []string

	// Order lists the name bound to each ? of Query. A name used twice
	// appears twice.
	Order []string
}

// ParseNamedParams rewrites :name and @name placeholders to ?. Literals, quoted
// identifiers and comments are left alone. Names are case-insensitive.
//
// Returns nil if the query has no named parameters.
func ParseNamedParams(query string) *NamedParams {
	result := &NamedParams{}
	seen := make(map[string]bool)

	var out strings.Builder
	out.Grow(len(query))
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			end := skipQuoted(query, i)
			out.WriteString(query[i:end])
			i = end
		case strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			out.WriteString(query[i : i+end])
			i += end
		case strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = len(query) - i
			} else {
				end += 4
			}
			out.WriteString(query[i : i+end])
			i += end
		case (c == ':' || c == '@') && i+1 < len(query) && isIdentStart(query[i+1]):
			end := i + 1
			for end < len(query) && isIdentChar(query[end]) {
				end++
			}
			name := strings.ToUpper(query[i+1 : end])
			result.Order = append(result.Order, name)
			if !seen[name] {
				seen[name] = true
				result.Names = append(result.Names, name)
			}
			out.WriteByte('?')
			i = end
		default:
			out.WriteByte(c)
			i++
		}
	}

	if len(result.Order) == 0 {
		return nil
	}
	result.Query = out.String()
	return result
}

// Bind orders named args to match Query's placeholders. Every name must be
// supplied and every supplied arg must be used.
func (p *NamedParams) Bind(args []driver.NamedValue) ([]any, error) {
	byName := make(map[string]any, len(args))
	for _, a := range args {
		if a.Name == "" {
			return nil, &ParameterError{Message: "cannot mix named and positional parameters"}
		}
		byName[strings.ToUpper(a.Name)] = a.Value
	}
	for name := range byName {
		if !containsName(p.Names, name) {
			return nil, &ParameterError{Name: name, Message: "not used by the query"}
		}
	}
	values := make([]any, len(p.Order))
	for i, name := range p.Order {
		v, ok := byName[name]
		if !ok {
			return nil, &ParameterError{Name: name, Message: "no value supplied"}
		}
		values[i] = v
	}
	return values, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// isIdentStart returns true if c can start a parameter name
func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
