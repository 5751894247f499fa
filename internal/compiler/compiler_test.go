package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.uc")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

// TestCompileValidProgram exercises the pipeline up to (but not including)
// LLVM lowering: --llvm/--run need a real LLVM toolchain, which this test
// does not assume is present.
func TestCompileValidProgram(t *testing.T) {
	path := writeSource(t, `
int main() {
	return 0;
}
`)
	outcome, err := Compile(path, Options{PrintIR: true, OptSet: true, OptLevel: "all"}, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 0, outcome.ExitCode)
}

func TestCompileSyntaxErrorReportsNonZeroExit(t *testing.T) {
	path := writeSource(t, `int main() { return 0 }`)
	outcome, err := Compile(path, Options{}, zap.NewNop())
	require.Error(t, err)
	require.NotEqual(t, 0, outcome.ExitCode)
}

func TestCompileSemanticErrorReportsNonZeroExit(t *testing.T) {
	path := writeSource(t, `
int main() {
	return undeclared;
}
`)
	outcome, err := Compile(path, Options{}, zap.NewNop())
	require.Error(t, err)
	require.NotEqual(t, 0, outcome.ExitCode)
}

func TestCompileMissingFileIsAnError(t *testing.T) {
	_, err := Compile(filepath.Join(t.TempDir(), "nope.uc"), Options{}, zap.NewNop())
	require.Error(t, err)
}
