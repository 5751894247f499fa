// Package cfg partitions a function's flat uCIR instruction stream into
// basic blocks and wires the predecessor/successor/taken/fall_through/
// next_block edges between them (spec.md §3.3, §4.3).
//
// Grounded on hhramberg-go-vslc/src/ir/lir/block.go's Block type and
// src/ir/lir's BranchInstruction, which records its successors with a
// type tag (Conditional/Unconditional/Return) on one struct rather than a
// subtype hierarchy; this package keeps that shape (a single Block with a
// Cond flag plus Taken/FallThrough fields, left zero on a straight block)
// instead of modelling spec.md's Block/ConditionBlock as two Go types,
// since Go has no class inheritance to mirror that distinction cleanly.
package cfg

import (
	"strings"

	"ucc/internal/ucir"
)

// DefID names one reaching-definition site: the block it occurs in and its
// instruction index within that block's current instruction list.
type DefID struct {
	Block string
	Idx   int
}

// RD is a block's reaching-definitions record (spec.md §4.4 step 1).
type RD struct {
	Gen, Kill, In, Out map[DefID]bool
}

// LV is a block's live-variable record (spec.md §4.4 step 3), keyed by
// uCIR temporary/global name.
type LV struct {
	Use, Defs, In, Out map[string]bool
}

// Block is one basic block: a straight block if Cond is false, a
// ConditionBlock (spec.md §3.3) if Cond is true.
type Block struct {
	Label        string
	Instructions []ucir.Instr
	Predecessors []string
	Successors   []string
	NextBlock    string

	Cond        bool
	Taken       string
	FallThrough string

	RD *RD
	LV *LV
}

// Function is one function's CFG: its blocks plus the textual order they
// were discovered in, which code regeneration and the dataflow worklists
// both rely on.
type Function struct {
	Name   string
	Entry  string
	Define ucir.Instr // the original "define @name %arg0 ..." tuple, for regeneration.
	Blocks map[string]*Block
	Order  []string
}

// Program is the CFG-partitioned form of a ucir.Program: the untouched
// globals list plus one Function per define.
type Program struct {
	Globals []ucir.Instr
	Funcs   []*Function
}

// Build partitions p's flat code list into per-function CFGs (spec.md
// §4.3 algorithm steps 1-4).
func Build(p *ucir.Program) *Program {
	out := &Program{Globals: p.Globals}

	var cur *Function
	var curBlock *Block

	startBlock := func(label string) {
		curBlock = &Block{Label: label}
		cur.Blocks[label] = curBlock
		cur.Order = append(cur.Order, label)
	}

	for _, instr := range p.Code {
		switch {
		case instr.Op == "define":
			cur = &Function{Name: instr.Args[0], Define: instr, Blocks: map[string]*Block{}, Entry: "%entry"}
			out.Funcs = append(out.Funcs, cur)
			startBlock("%entry")
		case instr.IsLabel():
			startBlock(strings.TrimSuffix(instr.Op, ":"))
		default:
			curBlock.Instructions = append(curBlock.Instructions, instr)
		}
	}

	for _, f := range out.Funcs {
		for _, label := range f.Order {
			truncateAtFirstTerminator(f.Blocks[label])
		}
		linkEdges(f)
	}
	return out
}

// truncateAtFirstTerminator drops every instruction after a block's first
// terminator. The generator never intends to emit more than one — spec.md
// §4.3 step 4 calls this out explicitly for back-to-back jumps ("keep
// only the first and delete the dead one") — but an If whose then-branch
// ends in Break produces exactly this shape (the break's jump followed by
// the If's own closing jump), so the rule is applied generally to any
// trailing instruction, not just a second jump.
func truncateAtFirstTerminator(b *Block) {
	for i, ins := range b.Instructions {
		if ins.IsTerminator() {
			b.Instructions = b.Instructions[:i+1]
			return
		}
	}
}

func addEdge(f *Function, b *Block, target string) {
	b.Successors = append(b.Successors, target)
	if t, ok := f.Blocks[target]; ok {
		t.Predecessors = append(t.Predecessors, b.Label)
	}
}

func linkEdges(f *Function) {
	for i, label := range f.Order {
		b := f.Blocks[label]
		if len(b.Instructions) == 0 {
			if i+1 < len(f.Order) {
				b.NextBlock = f.Order[i+1]
				addEdge(f, b, b.NextBlock)
			}
			continue
		}
		last := b.Instructions[len(b.Instructions)-1]
		switch {
		case last.Op == "cbranch":
			b.Cond = true
			b.Taken = last.Args[1]
			b.FallThrough = last.Args[2]
			addEdge(f, b, b.Taken)
			addEdge(f, b, b.FallThrough)
			b.NextBlock = b.FallThrough
		case last.Op == "jump":
			target := last.Args[0]
			addEdge(f, b, target)
			b.NextBlock = target
		case strings.HasPrefix(last.Op, "return_"):
			// terminal: no successor, no next_block.
		default:
			if i+1 < len(f.Order) {
				b.NextBlock = f.Order[i+1]
				addEdge(f, b, b.NextBlock)
			}
		}
	}
}

// DiscoveryOrder returns block labels in depth-first discovery order from
// the function's entry block (spec.md §4.3 "Traversal order").
func (f *Function) DiscoveryOrder() []string {
	visited := map[string]bool{}
	var order []string
	var visit func(label string)
	visit = func(label string) {
		if visited[label] {
			return
		}
		visited[label] = true
		order = append(order, label)
		b, ok := f.Blocks[label]
		if !ok {
			return
		}
		for _, s := range b.Successors {
			visit(s)
		}
	}
	visit(f.Entry)
	return order
}

// ReversePostorder reverses DiscoveryOrder, the order spec.md §4.3
// prescribes for the backward liveness worklist.
func (f *Function) ReversePostorder() []string {
	d := f.DiscoveryOrder()
	out := make([]string, len(d))
	for i, l := range d {
		out[len(d)-1-i] = l
	}
	return out
}

// RemoveBlock deletes label from f entirely: drops it from Blocks/Order
// and scrubs it out of every remaining block's predecessor/successor
// lists, preserving multiset semantics (spec.md §3.3) by removing exactly
// one occurrence per edge rather than all occurrences.
func RemoveBlock(f *Function, label string) {
	delete(f.Blocks, label)
	for i, l := range f.Order {
		if l == label {
			f.Order = append(f.Order[:i], f.Order[i+1:]...)
			break
		}
	}
	for _, b := range f.Blocks {
		b.Predecessors = removeOne(b.Predecessors, label)
		b.Successors = removeOne(b.Successors, label)
	}
}

func removeOne(list []string, target string) []string {
	for i, l := range list {
		if l == target {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
