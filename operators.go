package recordquery

// Op is a comparison operator of the record store filter grammar.
// The constant's value is the literal symbol emitted into filter text.
type Op string

// Supported filter operators. The '?'-prefixed variants match when any
// element of a multi-value field satisfies the comparison.
const (
	OpEq  Op = "="
	OpNEq Op = "!="
	OpGT  Op = ">"
	OpGTE Op = ">="
	OpLT  Op = "<"
	OpLTE Op = "<="

	// OpLike and OpNotLike have "contains" semantics on the remote store.
	OpLike    Op = "~"
	OpNotLike Op = "!~"

	OpAnyEq      Op = "?="
	OpAnyNEq     Op = "?!="
	OpAnyGT      Op = "?>"
	OpAnyGTE     Op = "?>="
	OpAnyLT      Op = "?<"
	OpAnyLTE     Op = "?<="
	OpAnyLike    Op = "?~"
	OpAnyNotLike Op = "?!~"
)
