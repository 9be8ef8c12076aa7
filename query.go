package recordquery

import (
	"fmt"
	"strings"
)

// Query describes a local read against a Mirror.
type Query struct {
	Predicate Predicate
	OrderBy   []OrderBy
	Limit     int
}

// OrderDirection defines the sorting direction.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// OrderBy specifies a field to sort the results by.
type OrderBy struct {
	// Field is the record field to sort by, or the special value "id" for
	// the record id.
	Field     string
	Direction OrderDirection
}

// Sort renders the remote list API's sort expression, e.g.
// Sort(OrderBy{"created", OrderDesc}, OrderBy{"name", OrderAsc}) yields
// "-created,name". Entries with an empty field are skipped.
func Sort(orders ...OrderBy) string {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.Field == "" {
			continue
		}
		if o.Direction == OrderDesc {
			parts = append(parts, "-"+o.Field)
		} else {
			parts = append(parts, o.Field)
		}
	}
	return strings.Join(parts, ",")
}

// build constructs the SQL query string and arguments for a mirror table.
// It assumes q is not nil. validFields, when non-nil, silently drops
// conditions naming unknown fields, matching the builder's omission rule.
func (q *Query) build(tableName string, validFields map[string]struct{}) (string, []any, error) {
	var queryBuilder strings.Builder
	args := []any{}

	queryBuilder.WriteString(fmt.Sprintf("SELECT id, json FROM %s", tableName))

	if q.Predicate != nil {
		whereClause, whereArgs, err := compilePredicate(q.Predicate, validFields)
		if err != nil {
			return "", nil, err
		}
		if whereClause != "" {
			queryBuilder.WriteString(" WHERE ")
			queryBuilder.WriteString(whereClause)
			args = append(args, whereArgs...)
		}
	}

	if len(q.OrderBy) > 0 {
		var orderClauses []string
		for _, o := range q.OrderBy {
			dir := o.Direction
			if dir == "" {
				dir = OrderAsc
			}
			if dir != OrderAsc && dir != OrderDesc {
				return "", nil, fmt.Errorf("invalid order direction: %s", o.Direction)
			}
			// The id column is safe as-is. Field names go through
			// json_extract with a parameter, but still must not smuggle
			// SQL past it.
			if o.Field == "id" {
				orderClauses = append(orderClauses, fmt.Sprintf("id %s", dir))
				continue
			}
			if strings.ContainsAny(o.Field, ";)") {
				return "", nil, fmt.Errorf("invalid character in order by field: %s", o.Field)
			}
			orderClauses = append(orderClauses, fmt.Sprintf("json_extract(json, ?) %s", dir))
			args = append(args, "$."+o.Field)
		}
		queryBuilder.WriteString(" ORDER BY ")
		queryBuilder.WriteString(strings.Join(orderClauses, ", "))
	}

	if q.Limit > 0 {
		queryBuilder.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	return queryBuilder.String(), args, nil
}

// compilePredicate walks the predicate tree and builds a WHERE clause body.
// Conditions with absent values (and, when validFields is set, unknown
// fields) compile to nothing rather than failing. Operators with no local
// equivalent are an error: the caller asked for a read the mirror cannot
// answer.
func compilePredicate(p Predicate, validFields map[string]struct{}) (string, []any, error) {
	switch v := p.(type) {
	case Cond:
		if validFields != nil {
			if _, ok := validFields[v.Field]; !ok {
				return "", nil, nil
			}
		}
		text, _, ok := encodeValue(v.Value)
		if !ok {
			return "", nil, nil
		}
		path := "$." + v.Field

		switch v.Op {
		case OpEq, OpNEq, OpGT, OpGTE, OpLT, OpLTE:
			sql := fmt.Sprintf("json_extract(json, ?) %s ?", v.Op)
			return sql, []any{path, v.Value}, nil
		case OpLike:
			return "json_extract(json, ?) LIKE '%' || ? || '%'", []any{path, text}, nil
		case OpNotLike:
			return "json_extract(json, ?) NOT LIKE '%' || ? || '%'", []any{path, text}, nil
		default:
			return "", nil, fmt.Errorf("operator %s is not locally executable", v.Op)
		}

	case Raw:
		return "", nil, fmt.Errorf("raw fragments cannot be compiled for local execution")

	case And:
		return joinClauses(v.Predicates, "AND", validFields)

	case Or:
		return joinClauses(v.Predicates, "OR", validFields)

	default:
		return "", nil, fmt.Errorf("unknown predicate type: %T", p)
	}
}

func joinClauses(preds []Predicate, joiner string, validFields map[string]struct{}) (string, []any, error) {
	var clauses []string
	var allArgs []any

	for _, pred := range preds {
		clause, args, err := compilePredicate(pred, validFields)
		if err != nil {
			return "", nil, err
		}
		if clause == "" {
			continue
		}
		clauses = append(clauses, clause)
		allArgs = append(allArgs, args...)
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}

	return fmt.Sprintf("(%s)", strings.Join(clauses, ") "+joiner+" (")), allArgs, nil
}
