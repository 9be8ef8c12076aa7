// Package recordquery builds filter expressions for a remote record store's
// query language and can evaluate the same predicates against a local,
// SQLite-backed mirror of a collection.
package recordquery

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Builder accumulates a filter expression through chained calls.
// The type parameter F constrains which field names are legal at compile
// time; use a dedicated string type per collection to get that check, or
// plain string to opt out.
//
// Building is a dumb append-only log: condition calls, connective calls and
// bracket calls never inspect the buffer, so the intermediate text may
// contain dangling connectives or empty groups. Build repairs all of that
// and returns a minimal valid expression.
//
// A Builder is not safe for concurrent use; build and finalize one
// expression before starting the next on the same handle.
type Builder[F ~string] struct {
	buf       strings.Builder
	lastValue string

	// fields, when non-nil, is the set of legal field names. Conditions
	// naming a field outside the set are dropped silently.
	fields map[string]struct{}
}

// New returns a fresh builder with an empty buffer.
func New[F ~string]() *Builder[F] {
	return &Builder[F]{}
}

// NewForType returns a builder that checks field names at runtime against
// the json tags of T's exported struct fields. Conditions on unknown fields
// contribute nothing to the expression, consistent with how absent values
// are treated.
func NewForType[T any]() *Builder[string] {
	var zero T
	return &Builder[string]{fields: jsonFieldSet(reflect.TypeOf(zero))}
}

// jsonFieldSet collects the JSON key names of a struct type. Returns an
// empty set for non-struct types, so every field lookup fails rather than
// silently passing.
func jsonFieldSet(typ reflect.Type) map[string]struct{} {
	fields := make(map[string]struct{})
	if typ == nil || typ.Kind() != reflect.Struct {
		return fields
	}
	for i := range typ.NumField() {
		field := typ.Field(i)
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		jsonName, _, _ := strings.Cut(jsonTag, ",")
		if jsonName == "" {
			jsonName = field.Name
		}
		fields[jsonName] = struct{}{}
	}
	return fields
}

// encodeValue renders a condition value as filter text.
// ok is false when the value is absent (nil or an empty string) and must
// not be encoded. Booleans are always valid and never quoted. Values of
// other types are rendered with fmt.Sprint and quoted like strings.
func encodeValue(v any) (text string, quote bool, ok bool) {
	switch t := v.(type) {
	case nil:
		return "", false, false
	case bool:
		return strconv.FormatBool(t), false, true
	case string:
		return t, true, t != ""
	default:
		s := fmt.Sprint(t)
		return s, true, s != ""
	}
}

// cond appends one field/operator/value fragment, or nothing when the value
// is absent or the field fails the runtime field check. Quoted values are
// emitted verbatim: embedded double quotes and backslashes are NOT escaped.
func (b *Builder[F]) cond(field F, op Op, value any) *Builder[F] {
	if !b.fieldOK(field) {
		return b
	}
	text, quote, ok := encodeValue(value)
	b.lastValue = text
	if !ok {
		return b
	}
	b.buf.WriteString(string(field))
	b.buf.WriteString(string(op))
	if quote {
		b.buf.WriteByte('"')
		b.buf.WriteString(text)
		b.buf.WriteByte('"')
	} else {
		b.buf.WriteString(text)
	}
	return b
}

func (b *Builder[F]) fieldOK(field F) bool {
	if b.fields == nil {
		return true
	}
	_, ok := b.fields[string(field)]
	return ok
}

// Equal appends field = value.
func (b *Builder[F]) Equal(field F, value any) *Builder[F] { return b.cond(field, OpEq, value) }

// NotEqual appends field != value.
func (b *Builder[F]) NotEqual(field F, value any) *Builder[F] { return b.cond(field, OpNEq, value) }

// GreaterThan appends field > value.
func (b *Builder[F]) GreaterThan(field F, value any) *Builder[F] { return b.cond(field, OpGT, value) }

// GreaterThanOrEqual appends field >= value.
func (b *Builder[F]) GreaterThanOrEqual(field F, value any) *Builder[F] {
	return b.cond(field, OpGTE, value)
}

// LessThan appends field < value.
func (b *Builder[F]) LessThan(field F, value any) *Builder[F] { return b.cond(field, OpLT, value) }

// LessThanOrEqual appends field <= value.
func (b *Builder[F]) LessThanOrEqual(field F, value any) *Builder[F] {
	return b.cond(field, OpLTE, value)
}

// Like appends field ~ value (contains).
func (b *Builder[F]) Like(field F, value any) *Builder[F] { return b.cond(field, OpLike, value) }

// NotLike appends field !~ value.
func (b *Builder[F]) NotLike(field F, value any) *Builder[F] {
	return b.cond(field, OpNotLike, value)
}

// AnyEqual appends field ?= value.
func (b *Builder[F]) AnyEqual(field F, value any) *Builder[F] { return b.cond(field, OpAnyEq, value) }

// AnyNotEqual appends field ?!= value.
func (b *Builder[F]) AnyNotEqual(field F, value any) *Builder[F] {
	return b.cond(field, OpAnyNEq, value)
}

// AnyGreaterThan appends field ?> value.
func (b *Builder[F]) AnyGreaterThan(field F, value any) *Builder[F] {
	return b.cond(field, OpAnyGT, value)
}

// AnyGreaterThanOrEqual appends field ?>= value.
func (b *Builder[F]) AnyGreaterThanOrEqual(field F, value any) *Builder[F] {
	return b.cond(field, OpAnyGTE, value)
}

// AnyLessThan appends field ?< value.
func (b *Builder[F]) AnyLessThan(field F, value any) *Builder[F] {
	return b.cond(field, OpAnyLT, value)
}

// AnyLessThanOrEqual appends field ?<= value.
func (b *Builder[F]) AnyLessThanOrEqual(field F, value any) *Builder[F] {
	return b.cond(field, OpAnyLTE, value)
}

// AnyLike appends field ?~ value.
func (b *Builder[F]) AnyLike(field F, value any) *Builder[F] { return b.cond(field, OpAnyLike, value) }

// AnyNotLike appends field ?!~ value.
func (b *Builder[F]) AnyNotLike(field F, value any) *Builder[F] {
	return b.cond(field, OpAnyNotLike, value)
}

// And appends the && connective unconditionally. Whether it is legal where
// it lands is resolved by Build.
func (b *Builder[F]) And() *Builder[F] {
	b.buf.WriteString(" && ")
	return b
}

// Or appends the || connective unconditionally.
func (b *Builder[F]) Or() *Builder[F] {
	b.buf.WriteString(" || ")
	return b
}

// OpenBracket starts a group.
func (b *Builder[F]) OpenBracket() *Builder[F] {
	b.buf.WriteByte('(')
	return b
}

// CloseBracket ends a group.
func (b *Builder[F]) CloseBracket() *Builder[F] {
	b.buf.WriteByte(')')
	return b
}

// In appends one ~ condition per valid value, joined with ||, in the order
// given. Absent values are skipped; if none survive, nothing is appended.
func (b *Builder[F]) In(field F, values []any) *Builder[F] {
	if !b.fieldOK(field) {
		return b
	}
	first := true
	for _, v := range values {
		if _, _, ok := encodeValue(v); !ok {
			continue
		}
		if !first {
			b.Or()
		}
		b.cond(field, OpLike, v)
		first = false
	}
	return b
}

// Custom appends a raw expression fragment verbatim, bypassing the operator
// vocabulary. Empty fragments are ignored.
func (b *Builder[F]) Custom(raw string) *Builder[F] {
	if raw != "" {
		b.buf.WriteString(raw)
	}
	return b
}

// GetQuery returns the current raw buffer without normalizing or resetting.
// Useful for diagnostics while an expression is under construction.
func (b *Builder[F]) GetQuery() string {
	return b.buf.String()
}

// LastValue returns the text of the most recently encoded condition value,
// or the empty string if the last value was absent (or nothing was encoded
// since the last Build).
func (b *Builder[F]) LastValue() string {
	return b.lastValue
}

// Build normalizes the accumulated buffer into a minimal valid expression,
// returns it, and resets the builder so the handle can be reused for an
// unrelated expression. A buffer holding only connectives and bracket pairs
// builds to the empty string.
func (b *Builder[F]) Build() string {
	out := normalizeFilter(b.buf.String())
	b.buf.Reset()
	b.lastValue = ""
	return out
}
