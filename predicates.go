package recordquery

import "strings"

// Predicate is one node of a structured filter expression. It is a closed
// interface: only types within this package implement it.
//
// A predicate tree is the structured alternative to the append-only Builder:
// Render serializes it to the same filter grammar, and a Mirror compiles it
// to a local SQL query. By construction its rendered output never needs
// repair.
type Predicate interface {
	isPredicate()
}

// Cond is a single field/operator/value comparison.
// Values follow the same validity rule as the Builder: nil and empty
// strings make the condition contribute nothing.
type Cond struct {
	Field string
	Op    Op
	Value any
}

func (Cond) isPredicate() {}

// And joins predicates with &&.
type And struct {
	Predicates []Predicate
}

func (And) isPredicate() {}

// Or joins predicates with ||.
type Or struct {
	Predicates []Predicate
}

func (Or) isPredicate() {}

// Raw splices a verbatim filter-grammar fragment into the expression.
// It can be rendered but not compiled for local execution.
type Raw struct {
	Expr string
}

func (Raw) isPredicate() {}

// AndPredicates combines predicates with a logical AND.
func AndPredicates(preds ...Predicate) And {
	return And{Predicates: preds}
}

// OrPredicates combines predicates with a logical OR.
func OrPredicates(preds ...Predicate) Or {
	return Or{Predicates: preds}
}

// Render serializes a predicate tree to filter text. Conditions are encoded
// exactly as the Builder encodes them (same validity filter, same quoting,
// no escaping). Groups are parenthesized only when two or more children
// survive; children that render to nothing are skipped, and a tree where
// nothing survives renders to the empty string.
//
// The result is already minimal: normalizeFilter leaves it unchanged.
func Render(p Predicate) string {
	switch v := p.(type) {
	case Cond:
		text, quote, ok := encodeValue(v.Value)
		if !ok {
			return ""
		}
		if quote {
			return v.Field + string(v.Op) + `"` + text + `"`
		}
		return v.Field + string(v.Op) + text

	case And:
		return renderGroup(v.Predicates, " && ")

	case Or:
		return renderGroup(v.Predicates, " || ")

	case Raw:
		return v.Expr

	default:
		return ""
	}
}

func renderGroup(preds []Predicate, conn string) string {
	var parts []string
	for _, p := range preds {
		if s := Render(p); s != "" {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, conn) + ")"
	}
}
