package store

import (
	"fmt"
	"strings"
)

type condOp int

const (
	opEq condOp = iota
	opLte
	opGte
	opEqOrNull
)

// Cond is one WHERE predicate. Conditions passed together are ANDed.
type Cond struct {
	Column string
	op     condOp
	Value  any
}

// Eq matches rows where column equals value.
func Eq(column string, value any) Cond { return Cond{Column: column, op: opEq, Value: value} }

// Lte matches rows where column is at most value. NULL never matches.
func Lte(column string, value any) Cond { return Cond{Column: column, op: opLte, Value: value} }

// Gte matches rows where column is at least value. NULL never matches.
func Gte(column string, value any) Cond { return Cond{Column: column, op: opGte, Value: value} }

// EqOrNull matches rows where column equals value or is NULL.
func EqOrNull(column string, value any) Cond {
	return Cond{Column: column, op: opEqOrNull, Value: value}
}

// where renders conds as a WHERE clause with placeholders starting after
// the argument count already in args.
func where(conds []Cond, args []any) (string, []any) {
	if len(conds) == 0 {
		return "", args
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		args = append(args, c.Value)
		ph := fmt.Sprintf("$%d", len(args))
		switch c.op {
		case opLte:
			parts = append(parts, c.Column+" <= "+ph)
		case opGte:
			parts = append(parts, c.Column+" >= "+ph)
		case opEqOrNull:
			parts = append(parts, "("+c.Column+" = "+ph+" OR "+c.Column+" IS NULL)")
		default:
			parts = append(parts, c.Column+" = "+ph)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}
