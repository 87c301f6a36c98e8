package xtable

import (
	"fmt"
	"strings"
)

// Clause is a SurrealQL boolean expression with its bound variables.
type Clause struct {
	Expr string
	Vars map[string]any
}

// IsEmpty reports whether the clause constrains nothing.
func (c Clause) IsEmpty() bool {
	return strings.TrimSpace(c.Expr) == ""
}

// And joins non-empty clauses with AND.
func And(clauses ...Clause) Clause {
	return join(" AND ", clauses)
}

// Or joins non-empty clauses with OR.
func Or(clauses ...Clause) Clause {
	return join(" OR ", clauses)
}

func join(op string, clauses []Clause) Clause {
	parts := make([]string, 0, len(clauses))
	vars := map[string]any{}
	for _, c := range clauses {
		if c.IsEmpty() {
			continue
		}
		parts = append(parts, c.Expr)
		for k, v := range c.Vars {
			vars[k] = v
		}
	}
	switch len(parts) {
	case 0:
		return Clause{}
	case 1:
		return Clause{Expr: parts[0], Vars: vars}
	}
	for i, p := range parts {
		parts[i] = "(" + p + ")"
	}
	return Clause{Expr: strings.Join(parts, op), Vars: vars}
}

// VarNamer hands out variable names that are unique within one query.
type VarNamer struct {
	n int
}

// Next returns a fresh name derived from prefix.
func (v *VarNamer) Next(prefix string) string {
	v.n++
	return fmt.Sprintf("%s_%d", prefix, v.n)
}
