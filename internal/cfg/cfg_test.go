package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ucc/internal/parser"
	"ucc/internal/sema"
	"ucc/internal/ucir"
)

func buildSrc(t *testing.T, src string) *Program {
	t.Helper()
	tree, err := parser.Parse(src)
	require.NoError(t, err)
	require.NoError(t, sema.Analyze(tree))
	return Build(ucir.Generate(tree))
}

func TestBuildStraightLineFunction(t *testing.T) {
	prog := buildSrc(t, `
int main() {
	return 0;
}
`)
	require.Len(t, prog.Funcs, 1)
	f := prog.Funcs[0]
	require.Equal(t, "@main", f.Name)
	require.Contains(t, f.Blocks, f.Entry)
}

func TestBuildIfElseProducesConditionBlock(t *testing.T) {
	prog := buildSrc(t, `
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
	f := prog.Funcs[0]

	var cond *Block
	for _, label := range f.Order {
		b := f.Blocks[label]
		if b.Cond {
			cond = b
			break
		}
	}
	require.NotNil(t, cond, "expected at least one condition block")
	require.NotEmpty(t, cond.Taken)
	require.NotEmpty(t, cond.FallThrough)
	require.Contains(t, f.Blocks[cond.Taken].Predecessors, cond.Label)
	require.Contains(t, f.Blocks[cond.FallThrough].Predecessors, cond.Label)
}

func TestBuildWhileLoopBackEdge(t *testing.T) {
	prog := buildSrc(t, `
int main() {
	int i;
	i = 0;
	while (i < 10) {
		i = i + 1;
	}
	return i;
}
`)
	f := prog.Funcs[0]

	// The loop header's condition block must have one predecessor inside
	// the loop body (the back edge) in addition to the entry path.
	var header *Block
	for _, label := range f.Order {
		b := f.Blocks[label]
		if b.Cond {
			header = b
			break
		}
	}
	require.NotNil(t, header)
	require.GreaterOrEqual(t, len(header.Predecessors), 2)
}

func TestDiscoveryOrderStartsAtEntry(t *testing.T) {
	prog := buildSrc(t, `
int main() {
	int x;
	if (1 < 2) {
		x = 1;
	}
	return x;
}
`)
	f := prog.Funcs[0]
	order := f.DiscoveryOrder()
	require.Equal(t, f.Entry, order[0])

	rev := f.ReversePostorder()
	require.Equal(t, order[len(order)-1], rev[0])
}

func TestRemoveBlockScrubsEdges(t *testing.T) {
	prog := buildSrc(t, `
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
	f := prog.Funcs[0]
	var doomed string
	for _, label := range f.Order {
		if label != f.Entry {
			doomed = label
			break
		}
	}
	RemoveBlock(f, doomed)
	require.NotContains(t, f.Blocks, doomed)
	for _, b := range f.Blocks {
		require.NotContains(t, b.Predecessors, doomed)
		require.NotContains(t, b.Successors, doomed)
	}
}
