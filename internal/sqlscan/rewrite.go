// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlscan

import (
	"strings"
)

// Qualify prefixes every whole-word occurrence of table in sql with
// "schema.". Occurrences that are already qualified, alias definitions,
// function calls, string literals and comments are left alone.
func Qualify(sql, table, schema string) string {
	toks := Tokenize(sql)
	var b strings.Builder
	last := 0
	for i, t := range toks {
		if !matchesName(t, table) {
			continue
		}
		if i > 0 && (toks[i-1].Type == TOKEN_DOT || toks[i-1].IsWord("AS")) {
			continue
		}
		if i+1 < len(toks) && toks[i+1].Type == TOKEN_LPAREN {
			continue
		}
		b.WriteString(sql[last:t.Start])
		b.WriteString(schema)
		b.WriteByte('.')
		b.WriteString(t.Literal)
		last = t.End
	}
	if last == 0 {
		return sql
	}
	b.WriteString(sql[last:])
	return b.String()
}

// matchesName compares in catalog form: bare words fold to lower case,
// quoted identifiers keep their case.
func matchesName(t Token, table string) bool {
	switch t.Type {
	case TOKEN_IDENT, TOKEN_QUOTED_IDENT:
		return identName(t) == table
	}
	return false
}
