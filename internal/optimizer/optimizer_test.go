package optimizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ucc/internal/cfg"
	"ucc/internal/parser"
	"ucc/internal/sema"
	"ucc/internal/ucir"
)

func buildCFG(t *testing.T, src string) *cfg.Program {
	t.Helper()
	tree, err := parser.Parse(src)
	require.NoError(t, err)
	require.NoError(t, sema.Analyze(tree))
	return cfg.Build(ucir.Generate(tree))
}

func opsOf(prog *ucir.Program) []string {
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

func TestConstantPropagationFoldsArithmetic(t *testing.T) {
	p := buildCFG(t, `
int main() {
	int x;
	x = 1 + 2;
	return x;
}
`)
	out := Optimize(p, PhaseByName("ctm"))
	ops := opsOf(out)
	require.False(t, containsPrefix(ops, "add_int"), "constant add should fold to a literal")
}

func TestConstantPropagationFoldsConditionAwayCbranch(t *testing.T) {
	p := buildCFG(t, `
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
	out := Optimize(p, AllPhases)
	ops := opsOf(out)
	require.NotContains(t, ops, "cbranch", "a statically-true condition should fold to an unconditional jump")
}

func TestOptimizeEliminatesUnusedComputation(t *testing.T) {
	p := buildCFG(t, `
int main() {
	int unused;
	unused = 1 + 2;
	return 0;
}
`)
	out := Optimize(p, AllPhases)
	ops := opsOf(out)
	require.False(t, containsPrefix(ops, "add_int"), "the unused computation should be eliminated entirely")
}

func TestOptimizePreservesDefineAndReturn(t *testing.T) {
	p := buildCFG(t, `
int main() {
	return 0;
}
`)
	out := Optimize(p, AllPhases)
	ops := opsOf(out)
	require.Contains(t, ops, "define")
	require.True(t, containsPrefix(ops, "return_int"))
}

func TestSingleJumpCoalescingRemovesTrivialBlocks(t *testing.T) {
	p := buildCFG(t, `
int main() {
	int x;
	if (1 < 2) {
		x = 1;
	}
	return x;
}
`)
	out := Optimize(p, AllPhases)
	ops := opsOf(out)
	// After cbranch folding and coalescing, control falls straight through
	// without a separate single-jump block bridging to the return path.
	jumpCount := 0
	for _, op := range ops {
		if op == "jump" {
			jumpCount++
		}
	}
	require.LessOrEqual(t, jumpCount, 2)
}
