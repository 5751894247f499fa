package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLex verifies that a short uC snippet tokenizes to the expected type
// sequence and that keyword/identifier lexing does not get confused by
// shared prefixes, mirroring hhramberg-go-vslc/src/frontend/lexer_test.go's
// tuple-sequence comparison style.
func TestLex(t *testing.T) {
	src := "int x = 1 + 2;\n"
	toks, err := Lex(src)
	require.NoError(t, err)

	want := []TokenType{KW_INT, IDENTIFIER, '=', INT_CONST, '+', INT_CONST, ';', EOF}
	require.Len(t, toks, len(want))
	for i, w := range want {
		require.Equalf(t, w, toks[i].Type, "token %d (%q)", i, toks[i].Val)
	}
}

func TestLexCompoundOperators(t *testing.T) {
	toks, err := Lex("a += 1; b-- ; c == d; e != f;")
	require.NoError(t, err)

	var got []TokenType
	for _, tok := range toks {
		got = append(got, tok.Type)
	}
	require.Contains(t, got, OP_ADDEQ)
	require.Contains(t, got, OP_DEC)
	require.Contains(t, got, OP_EQ)
	require.Contains(t, got, OP_NE)
}

func TestLexUnterminatedStringFails(t *testing.T) {
	_, err := Lex(`"unterminated`)
	require.Error(t, err)
}

func TestLexIllegalCharacterFails(t *testing.T) {
	_, err := Lex("int x = 1 $ 2;")
	require.Error(t, err)
}

func TestLexLineAndColumnTracking(t *testing.T) {
	toks, err := Lex("int\nx;\n")
	require.NoError(t, err)
	require.Equal(t, KW_INT, toks[0].Type)
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, IDENTIFIER, toks[1].Type)
	require.Equal(t, 2, toks[1].Line)
}
