package db

import (
	"fmt"
	"strings"

	"github.com/carelink/carelink/internal/platform/policy"
)

// WhereBuilder assembles a WHERE clause from AND'ed groups. Each group
// is either a single equality or an OR of alternatives, so a visibility
// scope, exact filters and a free-text search compile to
// (scope OR ...) AND field = ? AND (col ILIKE ? OR ...), preserving the
// grouping.
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// Scope adds the actor's visibility scope as one AND'ed group. A None
// scope compiles to FALSE so the query returns nothing; Unrestricted
// adds no clause.
func (b *WhereBuilder) Scope(s policy.Scope) *WhereBuilder {
	if s.Unrestricted {
		return b
	}
	if s.None {
		b.clauses = append(b.clauses, "FALSE")
		return b
	}
	parts := make([]string, 0, len(s.Any))
	for _, clause := range s.Any {
		conds := make([]string, 0, len(clause))
		for _, c := range clause {
			b.args = append(b.args, c.Value)
			conds = append(conds, fmt.Sprintf("%s = $%d", c.Field, len(b.args)))
		}
		if len(conds) == 1 {
			parts = append(parts, conds[0])
		} else if len(conds) > 1 {
			parts = append(parts, "("+strings.Join(conds, " AND ")+")")
		}
	}
	if len(parts) > 0 {
		b.clauses = append(b.clauses, "("+strings.Join(parts, " OR ")+")")
	}
	return b
}

// Eq adds an exact-match filter.
func (b *WhereBuilder) Eq(field string, value interface{}) *WhereBuilder {
	b.args = append(b.args, value)
	b.clauses = append(b.clauses, fmt.Sprintf("%s = $%d", field, len(b.args)))
	return b
}

// Search adds a case-insensitive substring match as an OR group over
// the given columns.
func (b *WhereBuilder) Search(term string, columns ...string) *WhereBuilder {
	if term == "" || len(columns) == 0 {
		return b
	}
	b.args = append(b.args, "%"+term+"%")
	n := len(b.args)
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, fmt.Sprintf("%s ILIKE $%d", col, n))
	}
	b.clauses = append(b.clauses, "("+strings.Join(parts, " OR ")+")")
	return b
}

// SQL returns the assembled clause including the leading WHERE, or ""
// when no clauses were added.
func (b *WhereBuilder) SQL() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// Args returns the positional arguments matching the placeholders in SQL.
func (b *WhereBuilder) Args() []interface{} {
	return b.args
}

// Next returns the next placeholder index for callers appending their
// own LIMIT/OFFSET arguments after the WHERE clause.
func (b *WhereBuilder) Next() int {
	return len(b.args) + 1
}
