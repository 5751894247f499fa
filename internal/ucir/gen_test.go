package ucir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"ucc/internal/parser"
	"ucc/internal/sema"
)

func generateSrc(t *testing.T, src string) *Program {
	t.Helper()
	tree, err := parser.Parse(src)
	require.NoError(t, err)
	require.NoError(t, sema.Analyze(tree))
	return Generate(tree)
}

func opsOf(prog *Program) []string {
	var ops []string
	for _, ins := range prog.Flat() {
		ops = append(ops, ins.Op)
	}
	return ops
}

func containsPrefix(ops []string, prefix string) bool {
	for _, op := range ops {
		if strings.HasPrefix(op, prefix) {
			return true
		}
	}
	return false
}

func TestGenerateTrivialReturn(t *testing.T) {
	prog := generateSrc(t, `
int main() {
	return 0;
}
`)
	ops := opsOf(prog)
	require.True(t, containsPrefix(ops, "alloc_int"))
	require.True(t, containsPrefix(ops, "literal_int"))
	require.True(t, containsPrefix(ops, "store_int"))
	require.True(t, containsPrefix(ops, "return_int"))
	require.Contains(t, ops, "define")
}

func TestGenerateArithmetic(t *testing.T) {
	prog := generateSrc(t, `
int main() {
	int x;
	x = 1 + 2 * 3;
	return x;
}
`)
	ops := opsOf(prog)
	require.True(t, containsPrefix(ops, "add_int"))
	require.True(t, containsPrefix(ops, "mul_int"))
}

func TestGenerateIfElseProducesCbranch(t *testing.T) {
	prog := generateSrc(t, `
int main() {
	int x;
	if (1 < 2) {
		x = 1;
	} else {
		x = 2;
	}
	return x;
}
`)
	ops := opsOf(prog)
	require.Contains(t, ops, "cbranch")
	require.True(t, containsPrefix(ops, "lt_int"))
}

func TestGenerateWhileProducesJumpBack(t *testing.T) {
	prog := generateSrc(t, `
int main() {
	int i;
	i = 0;
	while (i < 10) {
		i = i + 1;
	}
	return i;
}
`)
	ops := opsOf(prog)
	require.Contains(t, ops, "cbranch")
	require.Contains(t, ops, "jump")
}

func TestGenerateGlobalArray(t *testing.T) {
	prog := generateSrc(t, `
int table[3];

int main() {
	table[0] = 1;
	return table[0];
}
`)
	require.True(t, containsPrefix(opsOfGlobals(prog), "global_int"))
	ops := opsOf(prog)
	require.True(t, containsPrefix(ops, "elem_int"))
}

func opsOfGlobals(prog *Program) []string {
	var ops []string
	for _, ins := range prog.Globals {
		ops = append(ops, ins.Op)
	}
	return ops
}

// TestGenerateTrivialReturnExactSequence pins down the precise opcode
// sequence for the smallest possible function, so a change to temp
// numbering or instruction order shows up as an explicit diff.
func TestGenerateTrivialReturnExactSequence(t *testing.T) {
	prog := generateSrc(t, `
int main() {
	return 0;
}
`)
	want := []string{
		"define", "alloc_int", "literal_int", "store_int", "jump", "%1:", "load_int", "return_int",
	}
	got := opsOf(prog)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected opcode sequence (-want +got):\n%s", diff)
	}
}

func TestGenerateFunctionCall(t *testing.T) {
	prog := generateSrc(t, `
int add(int a, int b) {
	return a + b;
}

int main() {
	return add(1, 2);
}
`)
	ops := opsOf(prog)
	require.Contains(t, ops, "call")
	require.True(t, containsPrefix(ops, "param_int"))
}
