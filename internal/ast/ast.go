// Package ast defines the uC abstract syntax tree.
//
// Grounded on hhramberg-go-vslc/src/ir/nodetype.go: a single Node struct
// carrying a Kind tag, a Data payload and a Children slice, dispatched by
// an exhaustive switch over Kind rather than a class hierarchy (per
// spec.md §9's "Model as a tagged sum ... dispatch via exhaustive pattern
// matching"). The teacher's Node is generalised here from VSL's ~15 node
// kinds to uC's full variant table (spec.md §3.1), and gains the
// decoration fields (Typ, ScopeLevel, SymKind, Bind) spec.md requires the
// semantic analyzer attach in place.
package ast

import (
	"fmt"

	"ucc/internal/types"
)

// Kind tags the variant of a Node.
type Kind int

// The fixed uC AST variant set (spec.md §3.1).
const (
	Program Kind = iota
	GlobalDecl
	Decl
	VarDecl
	ArrayDecl
	PtrDecl
	FuncDecl
	FuncDef
	ParamList
	TypeSpec // "Type" in spec.md; renamed to avoid clashing with the types package.
	Constant
	ID
	ArrayRef
	FuncCall
	BinaryOp
	UnaryOp
	Cast
	Assignment
	If
	While
	For
	Break
	Return
	Compound
	DeclList
	ExprList
	InitList
	Assert
	Print
	Read
	EmptyStatement
)

var kindNames = [...]string{
	"Program", "GlobalDecl", "Decl", "VarDecl", "ArrayDecl", "PtrDecl",
	"FuncDecl", "FuncDef", "ParamList", "TypeSpec", "Constant", "ID",
	"ArrayRef", "FuncCall", "BinaryOp", "UnaryOp", "Cast", "Assignment",
	"If", "While", "For", "Break", "Return", "Compound", "DeclList",
	"ExprList", "InitList", "Assert", "Print", "Read", "EmptyStatement",
}

// String returns the print-friendly name of Kind k.
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return kindNames[k]
}

// ConstTag distinguishes the literal kind held by a Constant node.
type ConstTag int

const (
	IntConst ConstTag = iota
	FloatConst
	CharConst
	StringConst
)

// Node is a single AST node. Every node carries a source coordinate. Which
// of the payload fields are meaningful depends on Kind; see the per-Kind
// comment table in spec.md §3.1. Children holds the node's ordered
// sub-tree; for sequence variants (DeclList, ExprList, InitList, ...) each
// element of Children is one item of the sequence.
type Node struct {
	Kind     Kind
	Line     int
	Col      int
	Children []*Node

	// --- raw payload (set by the parser) ---

	Name     string   // ID/VarDecl declname/FuncDecl-or-FuncCall callee name.
	Op       string   // operator lexeme for BinaryOp/UnaryOp/Assignment.
	ConstTag ConstTag // literal kind for Constant.
	IntVal   int
	FloatVal float32
	CharVal  byte
	StrVal   string      // string literal payload, or raw type keyword for TypeSpec elements.
	TypeTags []types.Tag // TypeSpec.names, outer-tag first.

	// --- decoration (set by the semantic analyzer, spec.md §3.1) ---

	Typ        []types.Tag // resolved type, outer-tag first; non-nil after semantic analysis.
	ScopeLevel int         // 0 = global, n>=1 = nested. Valid on ID.
	SymKind    string      // "var" | "func". Valid on ID.
	Bind       *Node       // back-reference: ID -> declarator, Break -> enclosing loop.

	// --- generator-only annotation (set by internal/ucir) ---

	Loc string // uCIR location (temporary/global name) this node's value lives in, once lowered.
}

// New allocates a Node of the given Kind at the given source coordinate
// with the given children.
func New(kind Kind, line, col int, children ...*Node) *Node {
	return &Node{Kind: kind, Line: line, Col: col, Children: children}
}

// Pos formats the node's source coordinate the way every diagnostic in
// this compiler reports it: "line:column".
func (n *Node) Pos() string {
	return fmt.Sprintf("%d:%d", n.Line, n.Col)
}

// IsLvalue reports whether n is a simple l-value reference (ID or
// ArrayRef), per the Read-target and assignment-target rules in
// spec.md §4.1.
func (n *Node) IsLvalue() bool {
	return n.Kind == ID || n.Kind == ArrayRef
}

// OuterTag returns the outermost type tag of n's resolved type, or ""
// if n has not been decorated yet.
func (n *Node) OuterTag() types.Tag {
	if len(n.Typ) == 0 {
		return ""
	}
	return n.Typ[0]
}

// String renders a single node (no children) for debug printing, mirroring
// hhramberg-go-vslc/src/ir/nodetype.go's Node.String.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Kind {
	case Constant:
		switch n.ConstTag {
		case IntConst:
			return fmt.Sprintf("Constant[int %d]", n.IntVal)
		case FloatConst:
			return fmt.Sprintf("Constant[float %g]", n.FloatVal)
		case CharConst:
			return fmt.Sprintf("Constant[char %q]", n.CharVal)
		default:
			return fmt.Sprintf("Constant[string %q]", n.StrVal)
		}
	case ID:
		return fmt.Sprintf("ID[%s]", n.Name)
	case BinaryOp, Assignment:
		return fmt.Sprintf("%s[%s]", n.Kind, n.Op)
	case UnaryOp:
		return fmt.Sprintf("UnaryOp[%s]", n.Op)
	default:
		return n.Kind.String()
	}
}

// Print recursively prints the subtree rooted at n, indenting one level per
// depth of recursion. Debug helper; the ucc driver does not call it.
func (n *Node) Print(depth int) {
	if n == nil {
		fmt.Printf("%*c---> NIL\n", depth<<1, ' ')
		return
	}
	fmt.Printf("%*c%s (%s)\n", depth<<1, ' ', n.String(), n.Pos())
	for _, c := range n.Children {
		c.Print(depth + 1)
	}
}
