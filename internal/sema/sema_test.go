package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ucc/internal/parser"
)

func analyzeSrc(t *testing.T, src string) error {
	t.Helper()
	tree, err := parser.Parse(src)
	require.NoError(t, err, "fixture must parse")
	return Analyze(tree)
}

func TestAnalyzeValidProgram(t *testing.T) {
	src := `
int global_total;

int add(int a, int b) {
	return a + b;
}

int main() {
	int x;
	x = add(1, 2);
	print x;
	return 0;
}
`
	require.NoError(t, analyzeSrc(t, src))
}

func TestAnalyzeMissingMainFails(t *testing.T) {
	src := `
int helper() {
	return 0;
}
`
	err := analyzeSrc(t, src)
	require.Error(t, err)
	require.Contains(t, err.Error(), "main")
}

func TestAnalyzeUndeclaredIdentifierFails(t *testing.T) {
	src := `
int main() {
	return y;
}
`
	err := analyzeSrc(t, src)
	require.Error(t, err)
	require.Contains(t, err.Error(), "undeclared identifier")
}

func TestAnalyzeRedeclarationFails(t *testing.T) {
	src := `
int main() {
	int x;
	int x;
	return 0;
}
`
	err := analyzeSrc(t, src)
	require.Error(t, err)
	require.Contains(t, err.Error(), "redeclared")
}

func TestAnalyzeBreakOutsideLoopFails(t *testing.T) {
	src := `
int main() {
	break;
	return 0;
}
`
	err := analyzeSrc(t, src)
	require.Error(t, err)
	require.Contains(t, err.Error(), "break outside loop")
}

func TestAnalyzeNonBoolConditionFails(t *testing.T) {
	src := `
int main() {
	if (1 + 2) {
		return 0;
	}
	return 1;
}
`
	err := analyzeSrc(t, src)
	require.Error(t, err)
	require.Contains(t, err.Error(), "condition must be bool")
}

func TestAnalyzeArityMismatchFails(t *testing.T) {
	src := `
int add(int a, int b) {
	return a + b;
}

int main() {
	return add(1);
}
`
	err := analyzeSrc(t, src)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expects")
}

func TestAnalyzeArrayAccess(t *testing.T) {
	src := `
int main() {
	int table[10];
	table[0] = 1;
	return table[0];
}
`
	require.NoError(t, analyzeSrc(t, src))
}
