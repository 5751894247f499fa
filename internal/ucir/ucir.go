// Package ucir defines the uC three-address intermediate representation:
// a flat sequence of opcode tuples with explicit temporaries, labels, and
// memory-op type tags (spec.md §3.2), plus the generator that lowers a
// semantically-decorated AST into it (spec.md §4.2).
//
// Grounded on hhramberg-go-vslc/src/ir/lir/block.go's builder pattern
// (typed Create* methods appending to an instruction list owned by the
// current function/block) and src/ir/lir/value.go's Value interface; this
// package collapses the teacher's rich typed-instruction object graph
// (BranchInstruction, CastInstruction, ConstantInstruction, ...) down to
// one flat Instr tuple, because uCIR's on-disk contract (spec.md §6.3) is
// itself a flat tuple stream, not a typed SSA graph.
package ucir

import (
	"strconv"
	"strings"

	"ucc/internal/types"
)

// Instr is one uCIR tuple. Op is the full opcode string (e.g. "add_int",
// "cbranch", "literal_float", or a bare label "%7:"). Args holds the
// operand strings in tuple order. Type is the resolved uC type the
// operation produces or consumes, carried alongside the display opcode so
// internal/cfg, internal/optimizer and internal/llvmgen never have to
// re-parse it out of Op.
type Instr struct {
	Op   string
	Args []string
	Type []types.Tag
}

// IsLabel reports whether i is a bare label tuple ("name:",).
func (i Instr) IsLabel() bool {
	return len(i.Args) == 0 && strings.HasSuffix(i.Op, ":")
}

// IsTerminator reports whether i ends a basic block (spec.md §3.3).
func (i Instr) IsTerminator() bool {
	switch i.Op {
	case "jump", "cbranch":
		return true
	}
	return strings.HasPrefix(i.Op, "return_")
}

// String renders i in the on-disk form of spec.md §6.3.
func (i Instr) String() string {
	if i.IsLabel() {
		return i.Op
	}
	if len(i.Args) == 0 {
		return i.Op
	}
	return i.Op + " " + strings.Join(i.Args, " ")
}

// Program is the final generator output: the globals list (scalar/array
// global declarations and string literal storage) followed conceptually
// by the code list (function bodies); spec.md §4.2: "the final program is
// globals ++ code".
type Program struct {
	Globals []Instr
	Code    []Instr
}

// Flat concatenates Globals and Code, the textual form described in
// spec.md §4.2.
func (p *Program) Flat() []Instr {
	out := make([]Instr, 0, len(p.Globals)+len(p.Code))
	out = append(out, p.Globals...)
	out = append(out, p.Code...)
	return out
}

// baseTypeWord maps a resolved uC type chain to the scalar "type" portion
// of an opcode string, skipping any leading array/ptr modifier tags
// (spec.md §3.2: "type is a type tag" separate from the trailing
// array/pointer modifiers appended after it).
func baseTypeWord(ty []types.Tag) string {
	for _, t := range ty {
		switch t {
		case types.Int, types.Bool:
			return "int"
		case types.Float:
			return "float"
		case types.Char:
			return "char"
		case types.String:
			return "string"
		case types.Void:
			return "void"
		}
	}
	return "int"
}

// opSuffix builds the full "type[_modifier]*" suffix for ty, given the
// declared array dimensions (outer-first, empty if ty carries no array
// tags).
func opSuffix(ty []types.Tag, dims []int) string {
	word := baseTypeWord(ty)
	if len(dims) > 0 {
		parts := make([]string, 0, len(dims))
		for _, d := range dims {
			parts = append(parts, strconv.Itoa(d))
		}
		return word + "_" + strings.Join(parts, "_")
	}
	if len(ty) > 0 && ty[0] == types.Ptr {
		return word + "_*"
	}
	return word
}
