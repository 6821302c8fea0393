// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlscan

import (
	"strings"
)

// Statement is a cleaned SQL text plus what the lexer could tell about it.
// Text keeps the caller's casing; Upper exists for keyword inspection only.
type Statement struct {
	Text    string
	Upper   string
	Keyword string
	Refs    []TableRef
}

// Inspect cleans sql and extracts its leading keyword and table references.
func Inspect(sql string) Statement {
	text := Clean(sql)
	return Statement{
		Text:    text,
		Upper:   strings.ToUpper(text),
		Keyword: LeadingKeyword(text),
		Refs:    TableRefs(text),
	}
}

// Unqualified returns the distinct unqualified table names, in order of
// first appearance.
func (s Statement) Unqualified() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range s.Refs {
		if r.Schema != "" || seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
	}
	return names
}

// Clean trims surrounding whitespace and any trailing statement terminators.
func Clean(sql string) string {
	s := strings.TrimSpace(sql)
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	return s
}

// LeadingKeyword returns the first bare word of sql in upper case, or ""
// when the statement does not start with one. Leading comments are skipped.
func LeadingKeyword(sql string) string {
	tok := NewLexer(sql).NextToken()
	if tok.Type != TOKEN_IDENT {
		return ""
	}
	return strings.ToUpper(tok.Literal)
}

// ContainsQualifier reports whether "schema." occurs anywhere in sql,
// ignoring case. This is a plain substring test: occurrences inside string
// literals and comments count.
func ContainsQualifier(sql, schema string) bool {
	return strings.Contains(strings.ToLower(sql), strings.ToLower(schema)+".")
}

// QualifiedSchemas returns the candidates for which ContainsQualifier holds,
// preserving candidate order.
func QualifiedSchemas(sql string, candidates []string) []string {
	var out []string
	for _, c := range candidates {
		if ContainsQualifier(sql, c) {
			out = append(out, c)
		}
	}
	return out
}
