package query

import (
	"strings"

	"github.com/reposync/admin-backend/internal/directory"
)

const (
	opEqual          = "eq"
	opContains       = "co"
	opStartsWith     = "sw"
	opEndsWith       = "ew"
	opGreaterOrEqual = "ge"
	opLessThan       = "lt"
)

func compare(attr, op, value string) string {
	return directory.AttributePath(attr) + " " + op + " " + quote(value)
}

func quote(v string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '"', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(v[i])
	}
	b.WriteByte('"')
	return b.String()
}

func anyOf(clauses []string) string {
	return join(clauses, " or ")
}

func allOf(clauses []string) string {
	return join(clauses, " and ")
}

func join(clauses []string, sep string) string {
	switch len(clauses) {
	case 0:
		return ""
	case 1:
		return clauses[0]
	}
	return "(" + strings.Join(clauses, sep) + ")"
}
