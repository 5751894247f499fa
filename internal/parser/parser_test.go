package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ucc/internal/ast"
)

// TestParseMinimalProgram checks that a one-function program parses to a
// Program -> GlobalDecl -> FuncDef shape, the skeleton every later stage
// (internal/sema, internal/ucir) walks.
func TestParseMinimalProgram(t *testing.T) {
	src := `
int main() {
	return 0;
}
`
	tree, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, ast.Program, tree.Kind)
	require.Len(t, tree.Children, 1)

	gdecl := tree.Children[0]
	require.Equal(t, ast.GlobalDecl, gdecl.Kind)
	require.Len(t, gdecl.Children, 1)
	require.Equal(t, ast.FuncDef, gdecl.Children[0].Kind)
}

func TestParseGlobalDeclarationAndArray(t *testing.T) {
	src := `
int counter;
int table[10];
int main() {
	return 0;
}
`
	tree, err := Parse(src)
	require.NoError(t, err)
	gdecl := tree.Children[0]
	require.Len(t, gdecl.Children, 3)
	require.Equal(t, ast.Decl, gdecl.Children[0].Kind)
	require.Equal(t, ast.Decl, gdecl.Children[1].Kind)
}

func TestParseExpressionPrecedence(t *testing.T) {
	src := `
int main() {
	int x;
	x = 1 + 2 * 3;
	return x;
}
`
	_, err := Parse(src)
	require.NoError(t, err)
}

func TestParseControlFlow(t *testing.T) {
	src := `
int main() {
	int i;
	for (i = 0; i < 10; i = i + 1) {
		if (i == 5) {
			break;
		}
	}
	while (i > 0) {
		i = i - 1;
	}
	return 0;
}
`
	_, err := Parse(src)
	require.NoError(t, err)
}

func TestParseMissingSemicolonFails(t *testing.T) {
	src := `
int main() {
	int x
	return 0;
}
`
	_, err := Parse(src)
	require.Error(t, err)
}

func TestParseUnexpectedEOFFails(t *testing.T) {
	src := `int main() {`
	_, err := Parse(src)
	require.Error(t, err)
}
