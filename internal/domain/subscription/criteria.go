package subscription

import (
	"strings"

	"github.com/ngsanogo/keneyapp/internal/core"
)

// Criteria is the validated form of a subscription topic expression. The
// language is deliberately closed: a resource type followed by an optional
// conjunction of equality or membership tests over the per-type field
// allow-list, e.g. "Patient?active=true" or "Observation?status=final,amended".
// Everything is validated at create time so matching never fails late.
type Criteria struct {
	Kind  core.Kind
	Conds []Condition
}

// Condition is one field test. A single value is an equality test; multiple
// values are a membership test.
type Condition struct {
	Field  string
	Values []string
}

// ParseCriteria parses and fully validates a criteria expression.
func ParseCriteria(expr string) (Criteria, error) {
	typePart, queryPart, hasQuery := strings.Cut(expr, "?")
	typePart = strings.TrimSpace(typePart)
	if typePart == "" {
		return Criteria{}, core.NewValidationError("criteria", "must name a resource type")
	}
	kind, ok := core.KindFromWireType(typePart)
	if !ok {
		return Criteria{}, core.NewValidationError("criteria", "unsupported resource type %q", typePart)
	}

	c := Criteria{Kind: kind}
	if !hasQuery || queryPart == "" {
		return c, nil
	}

	for _, pair := range strings.Split(queryPart, "&") {
		field, value, ok := strings.Cut(pair, "=")
		if !ok || field == "" || value == "" {
			return Criteria{}, core.NewValidationError("criteria", "malformed parameter %q", pair)
		}
		if !core.SearchableField(kind, field) {
			return Criteria{}, core.NewValidationError("criteria", "field %q is not searchable on %s", field, typePart)
		}
		values := strings.Split(value, ",")
		for _, v := range values {
			if v == "" {
				return Criteria{}, core.NewValidationError("criteria", "empty value in parameter %q", pair)
			}
		}
		c.Conds = append(c.Conds, Condition{Field: field, Values: values})
	}
	return c, nil
}

// Matches evaluates the criteria against a canonical resource's fields,
// never against the serialized wire form. Resources of another kind never
// match.
func (c Criteria) Matches(r core.Resource) bool {
	if r.Kind() != c.Kind {
		return false
	}
	for _, cond := range c.Conds {
		got, ok := core.FieldValue(r, cond.Field)
		if !ok {
			return false
		}
		matched := false
		for _, v := range cond.Values {
			if got == v {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
