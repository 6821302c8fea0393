// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlscan provides the lexical heuristics the gatekeeper uses to
// inspect raw SQL text: trimming, leading keyword detection, table reference
// extraction and schema qualification rewriting.
//
// It is deliberately not a parser. Tokens carry byte spans into the original
// text so rewrites touch identifiers only, never string literals, quoted
// identifiers, or comments.
package sqlscan

// TokenType represents the type of a lexical token.
type TokenType int

// TOKEN_EOF and friends enumerate all token types produced by the lexer.
const (
	TOKEN_EOF          TokenType = iota // end of input
	TOKEN_IDENT                         // bare word: keyword or identifier
	TOKEN_QUOTED_IDENT                  // "Identifier"
	TOKEN_STRING                        // 'text', E'text', $$text$$
	TOKEN_NUMBER                        // 123, 4.5
	TOKEN_PARAM                         // $1
	TOKEN_DOT                           // .
	TOKEN_COMMA                         // ,
	TOKEN_LPAREN                        // (
	TOKEN_RPAREN                        // )
	TOKEN_SEMICOLON                     // ;
	TOKEN_OTHER                         // any other operator or punctuation
)

// Token is a lexical token with its byte span [Start, End) in the input.
type Token struct {
	Type    TokenType
	Literal string
	Start   int
	End     int
}

// IsWord reports whether the token is a bare word equal to kw, ignoring case.
func (t Token) IsWord(kw string) bool {
	return t.Type == TOKEN_IDENT && equalFoldASCII(t.Literal, kw)
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}
	return true
}

func lower(ch byte) byte {
	if ch >= 'A' && ch <= 'Z' {
		return ch + ('a' - 'A')
	}
	return ch
}
