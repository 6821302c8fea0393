package sqlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{
			name:  "simple select",
			input: "SELECT * FROM company.employees",
			want:  []TokenType{TOKEN_IDENT, TOKEN_OTHER, TOKEN_IDENT, TOKEN_IDENT, TOKEN_DOT, TOKEN_IDENT},
		},
		{
			name:  "string with doubled quote",
			input: "SELECT 'it''s' AS x",
			want:  []TokenType{TOKEN_IDENT, TOKEN_STRING, TOKEN_IDENT, TOKEN_IDENT},
		},
		{
			name:  "escape string",
			input: `SELECT E'a\'b'`,
			want:  []TokenType{TOKEN_IDENT, TOKEN_STRING},
		},
		{
			name:  "quoted identifier",
			input: `SELECT "Weird ""name"""`,
			want:  []TokenType{TOKEN_IDENT, TOKEN_QUOTED_IDENT},
		},
		{
			name:  "dollar quoted",
			input: "SELECT $fn$ FROM t $fn$, $$x$$",
			want:  []TokenType{TOKEN_IDENT, TOKEN_STRING, TOKEN_COMMA, TOKEN_STRING},
		},
		{
			name:  "parameter",
			input: "WHERE id = $1",
			want:  []TokenType{TOKEN_IDENT, TOKEN_IDENT, TOKEN_OTHER, TOKEN_PARAM},
		},
		{
			name:  "comments skipped",
			input: "-- lead\nSELECT /* a /* nested */ b */ 1.5e3;",
			want:  []TokenType{TOKEN_IDENT, TOKEN_NUMBER, TOKEN_SEMICOLON},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenTypes(Tokenize(tt.input)))
		})
	}
}

func TestTokenSpans(t *testing.T) {
	input := "SELECT  name FROM x"
	toks := Tokenize(input)
	for _, tok := range toks {
		assert.Equal(t, tok.Literal, input[tok.Start:tok.End])
	}
	assert.Equal(t, 8, toks[1].Start)
}

func TestUnterminatedInputDoesNotHang(t *testing.T) {
	for _, in := range []string{"SELECT 'open", `SELECT "open`, "SELECT /* open", "SELECT $x$ open"} {
		toks := Tokenize(in)
		assert.NotEmpty(t, toks, in)
	}
}
