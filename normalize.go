package recordquery

import (
	"regexp"
	"strings"
)

// Rewrite rules for normalizeFilter, applied in this exact order on every
// pass. The order and the tie-breaks (rule 4 keeps the second connective,
// rule 7 inserts &&) are part of the output contract; see the regression
// tests before touching either.
//
// The rules are plain text rewrites: they do not know about quoting, so
// connective lookalikes and whitespace runs inside quoted values are visible
// to them. That matches the source system's behavior and is accepted.
var (
	// 1. () collapses to nothing.
	reEmptyGroup = regexp.MustCompile(`\(\s*\)`)
	// 2. a connective dangling before ) is dropped.
	reConnBeforeClose = regexp.MustCompile(`\s*(?:&&|\|\|)\s*\)`)
	// 3. a connective dangling after ( is dropped.
	reConnAfterOpen = regexp.MustCompile(`\(\s*(?:&&|\|\|)\s*`)
	// 4. two adjacent connectives collapse to the second one.
	reDoubleConn = regexp.MustCompile(`(?:&&|\|\|)\s*(&&|\|\|)`)
	// 5, 6. connectives anchored at either end of the string are dropped.
	reLeadingConn  = regexp.MustCompile(`^\s*(?:&&|\|\|)\s*`)
	reTrailingConn = regexp.MustCompile(`\s*(?:&&|\|\|)\s*$`)
	// 7. a condition token right after ) lost its connective when an empty
	// group was removed; reconnect with &&.
	reMissingConn = regexp.MustCompile(`\)\s*([A-Za-z_][A-Za-z0-9_.]*[=!<>~?])`)
	// 8. exactly one space around connectives, single spaces elsewhere.
	reConnSpacing = regexp.MustCompile(`\s*(&&|\|\|)\s*`)
	reSpaceRun    = regexp.MustCompile(`\s{2,}`)
)

// normalizeFilter repairs a raw expression buffer into a minimal valid
// expression: no empty groups, no dangling or doubled connectives, balanced
// spacing. It is a pure function and idempotent, so finalizing an already
// clean expression leaves it unchanged.
//
// Any single rewrite can expose a new match for an earlier rule (removing an
// empty group may leave a connective that only then touches a bracket), so
// the whole rule list is reapplied until a pass changes nothing. Every
// changing pass removes or rewrites at least one token, so len(s)+1 passes
// always suffice; the explicit bound keeps pathological inputs from looping.
func normalizeFilter(s string) string {
	for range len(s) + 1 {
		next := rewritePass(s)
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// rewritePass applies all rewrite rules to the whole string, once, in order.
func rewritePass(s string) string {
	s = reEmptyGroup.ReplaceAllString(s, "")
	s = reConnBeforeClose.ReplaceAllString(s, ")")
	s = reConnAfterOpen.ReplaceAllString(s, "(")
	s = reDoubleConn.ReplaceAllString(s, "$1")
	s = reLeadingConn.ReplaceAllString(s, "")
	s = reTrailingConn.ReplaceAllString(s, "")
	s = reMissingConn.ReplaceAllString(s, ") && $1")
	s = reConnSpacing.ReplaceAllString(s, " $1 ")
	s = reSpaceRun.ReplaceAllString(s, " ")
	s = dropUnmatchedBrackets(s)
	return s
}

// dropUnmatchedBrackets removes brackets that open or close nothing, so the
// output is always balanced even when the caller never closed a group.
// Rules 1-7 never change the balance of a balanced buffer, so this is a
// no-op for well-formed input. Like the other rules it is quote-blind.
func dropUnmatchedBrackets(s string) string {
	unmatched := make(map[int]struct{})
	var open []int
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			open = append(open, i)
		case ')':
			if len(open) == 0 {
				unmatched[i] = struct{}{}
			} else {
				open = open[:len(open)-1]
			}
		}
	}
	for _, i := range open {
		unmatched[i] = struct{}{}
	}
	if len(unmatched) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if _, ok := unmatched[i]; !ok {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
