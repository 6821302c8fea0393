// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlscan

import (
	"strings"
)

// TableRef is a table reference found after FROM or JOIN. Schema is empty
// for unqualified references. Start and End span the whole reference in the
// scanned text.
type TableRef struct {
	Schema string
	Name   string
	Start  int
	End    int
}

// Qualified reports whether the reference names a schema.
func (r TableRef) Qualified() bool { return r.Schema != "" }

func (r TableRef) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

var reserved = map[string]bool{
	"ALL": true, "AND": true, "AS": true, "CROSS": true, "EXCEPT": true,
	"FETCH": true, "FOR": true, "FROM": true, "FULL": true, "GROUP": true,
	"HAVING": true, "INNER": true, "INTERSECT": true, "JOIN": true,
	"LATERAL": true, "LEFT": true, "LIMIT": true, "NATURAL": true, "OFFSET": true,
	"ON": true, "ONLY": true, "OR": true, "ORDER": true, "OUTER": true,
	"RIGHT": true, "SELECT": true, "TABLESAMPLE": true, "UNION": true,
	"USING": true, "VALUES": true, "WHERE": true, "WINDOW": true, "WITH": true,
}

func isReserved(word string) bool {
	return reserved[strings.ToUpper(word)]
}

// TableRefs scans sql for table references following FROM and JOIN.
//
// FROM only introduces tables inside a query: the FROM in
// EXTRACT(YEAR FROM ts) is skipped because its parenthesis group holds no
// SELECT. Comma-separated FROM lists are followed; function calls and
// subqueries in FROM position are not references.
func TableRefs(sql string) []TableRef {
	toks := Tokenize(sql)
	var refs []TableRef
	groups := []bool{false}
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Type == TOKEN_LPAREN:
			groups = append(groups, false)
		case t.Type == TOKEN_RPAREN:
			if len(groups) > 1 {
				groups = groups[:len(groups)-1]
			}
		case t.IsWord("SELECT"):
			groups[len(groups)-1] = true
		case t.IsWord("JOIN"):
			i = collectRefs(toks, i+1, false, &refs) - 1
		case t.IsWord("FROM") && groups[len(groups)-1]:
			i = collectRefs(toks, i+1, true, &refs) - 1
		}
	}
	return refs
}

// collectRefs reads one reference at j, or a comma list of them when list
// is set, and returns the index of the first token it did not consume.
func collectRefs(toks []Token, j int, list bool, refs *[]TableRef) int {
	for {
		for j < len(toks) && (toks[j].IsWord("ONLY") || toks[j].IsWord("LATERAL")) {
			j++
		}
		ref, next, ok := readRef(toks, j)
		if !ok {
			return j
		}
		*refs = append(*refs, ref)
		j = next
		if !list {
			return j
		}
		j = skipAlias(toks, j)
		if j < len(toks) && toks[j].Type == TOKEN_COMMA {
			j++
			continue
		}
		return j
	}
}

// readRef reads name[.name[.name]] at j. A trailing "(" means a function
// call, which is not a table reference.
func readRef(toks []Token, j int) (TableRef, int, bool) {
	var parts []Token
	k := j
	for k < len(toks) && isNameToken(toks[k]) {
		parts = append(parts, toks[k])
		k++
		if k+1 < len(toks) && toks[k].Type == TOKEN_DOT && isNameToken(toks[k+1]) {
			k++
			continue
		}
		break
	}
	if len(parts) == 0 {
		return TableRef{}, j, false
	}
	if k < len(toks) && toks[k].Type == TOKEN_LPAREN {
		return TableRef{}, j, false
	}

	ref := TableRef{Start: parts[0].Start, End: parts[len(parts)-1].End}
	last := len(parts) - 1
	ref.Name = identName(parts[last])
	if last >= 1 {
		ref.Schema = identName(parts[last-1])
	}
	return ref, k, true
}

// skipAlias skips "[AS] alias [(col, ...)]" after a FROM-list item.
func skipAlias(toks []Token, j int) int {
	if j < len(toks) && toks[j].IsWord("AS") {
		j++
	}
	if j < len(toks) && isNameToken(toks[j]) {
		j++
		if j < len(toks) && toks[j].Type == TOKEN_LPAREN {
			depth := 0
			for ; j < len(toks); j++ {
				switch toks[j].Type {
				case TOKEN_LPAREN:
					depth++
				case TOKEN_RPAREN:
					depth--
				}
				if depth == 0 {
					return j + 1
				}
			}
		}
	}
	return j
}

func isNameToken(t Token) bool {
	switch t.Type {
	case TOKEN_QUOTED_IDENT:
		return true
	case TOKEN_IDENT:
		return !isReserved(t.Literal)
	}
	return false
}

// identName folds bare identifiers to lower case and unquotes quoted ones,
// matching how PostgreSQL resolves names.
func identName(t Token) string {
	if t.Type == TOKEN_QUOTED_IDENT {
		s := strings.TrimPrefix(t.Literal, `"`)
		s = strings.TrimSuffix(s, `"`)
		return strings.ReplaceAll(s, `""`, `"`)
	}
	return strings.ToLower(t.Literal)
}
