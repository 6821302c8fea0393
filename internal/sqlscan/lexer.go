// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlscan

import "strings"

// Lexer tokenizes PostgreSQL-flavored SQL text.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Tokenize returns every token in input, excluding the trailing EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		if tok.Type == TOKEN_EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
		l.pos = len(l.input)
		l.readPos = len(l.input) + 1
		return
	}
	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	if l.atEOF() {
		return Token{Type: TOKEN_EOF, Start: start, End: start}
	}

	var typ TokenType
	switch {
	case l.ch == '\'':
		l.readString(false)
		typ = TOKEN_STRING
	case (l.ch == 'E' || l.ch == 'e') && l.peekChar() == '\'':
		l.readChar()
		l.readString(true)
		typ = TOKEN_STRING
	case l.ch == '"':
		l.readQuotedIdentifier()
		typ = TOKEN_QUOTED_IDENT
	case l.ch == '$' && isDigit(l.peekChar()):
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
		typ = TOKEN_PARAM
	case l.ch == '$' && l.readDollarQuoted():
		typ = TOKEN_STRING
	case isLetter(l.ch):
		l.readIdentifier()
		typ = TOKEN_IDENT
	case isDigit(l.ch):
		l.readNumber()
		typ = TOKEN_NUMBER
	default:
		switch l.ch {
		case '.':
			typ = TOKEN_DOT
		case ',':
			typ = TOKEN_COMMA
		case '(':
			typ = TOKEN_LPAREN
		case ')':
			typ = TOKEN_RPAREN
		case ';':
			typ = TOKEN_SEMICOLON
		default:
			typ = TOKEN_OTHER
		}
		l.readChar()
	}

	return Token{Type: typ, Literal: l.input[start:l.pos], Start: start, End: l.pos}
}

// skipWhitespaceAndComments skips whitespace and SQL comments. Block
// comments nest, as in PostgreSQL.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			depth := 1
			for !l.atEOF() && depth > 0 {
				switch {
				case l.ch == '/' && l.peekChar() == '*':
					l.readChar()
					depth++
				case l.ch == '*' && l.peekChar() == '/':
					l.readChar()
					depth--
				}
				l.readChar()
			}
		default:
			return
		}
	}
}

// readString consumes a single-quoted literal starting at the opening quote.
// Doubled quotes are escapes; with backslash set, so is \'.
func (l *Lexer) readString(backslash bool) {
	l.readChar() // opening quote
	for !l.atEOF() {
		switch {
		case backslash && l.ch == '\\':
			l.readChar()
		case l.ch == '\'':
			if l.peekChar() == '\'' {
				l.readChar()
			} else {
				l.readChar()
				return
			}
		}
		l.readChar()
	}
}

// readQuotedIdentifier consumes a double-quoted identifier.
func (l *Lexer) readQuotedIdentifier() {
	l.readChar() // opening quote
	for !l.atEOF() {
		if l.ch == '"' {
			if l.peekChar() == '"' {
				l.readChar()
			} else {
				l.readChar()
				return
			}
		}
		l.readChar()
	}
}

// readDollarQuoted consumes $tag$...$tag$ when the current position opens
// one. It reports false, consuming nothing, when it does not.
func (l *Lexer) readDollarQuoted() bool {
	end := l.pos + 1
	for end < len(l.input) && (isLetter(l.input[end]) || isDigit(l.input[end])) {
		end++
	}
	if end >= len(l.input) || l.input[end] != '$' {
		return false
	}
	tag := l.input[l.pos : end+1]
	stop := len(l.input)
	if i := strings.Index(l.input[end+1:], tag); i >= 0 {
		stop = end + 1 + i + len(tag)
	}
	for l.pos < stop {
		l.readChar()
	}
	return true
}

// readIdentifier reads a bare word.
func (l *Lexer) readIdentifier() {
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '$' {
		l.readChar()
	}
}

// readNumber reads an unsigned numeric literal.
func (l *Lexer) readNumber() {
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			l.readChar()
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
