// Package types implements uC's primitive and derived type tags and the
// operator capability sets that the semantic analyzer consults to decide
// whether an operator is legal for a given type.
//
// Grounded on hhramberg-go-vslc/src/ir/validate.go's lutExp/lutAssign
// lookup-table approach: rather than a chain of if-statements, operator
// legality is a membership test against a small set attached to the type
// singleton itself.
package types

// Tag names a single type keyword in the uC type lattice. Outer-first lists
// of Tag form a Type (see package ast): []Tag{"array", "array", "int"] is
// "array of array of int".
type Tag string

// Primitive and derived type tags.
const (
	Int    Tag = "int"
	Float  Tag = "float"
	Char   Tag = "char"
	Void   Tag = "void"
	Array  Tag = "array"
	Ptr    Tag = "ptr"
	String Tag = "string"
	Bool   Tag = "bool"
)

// Op identifies an operator lexeme independent of the AST node that carries
// it, so that capability sets can be declared as plain string sets.
type Op string

// Binary arithmetic/logical operators.
const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpMod Op = "%"
	OpAnd Op = "&&"
	OpOr  Op = "||"
)

// Relational operators.
const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Unary operators.
const (
	OpPos     Op = "+"
	OpNeg     Op = "-"
	OpNot     Op = "!"
	OpDeref   Op = "*"
	OpAddr    Op = "&"
	OpPreInc  Op = "++"
	OpPreDec  Op = "--"
	OpPostInc Op = "p++"
	OpPostDec Op = "p--"
)

// Assignment operators.
const (
	OpAssign    Op = "="
	OpAddAssign Op = "+="
	OpSubAssign Op = "-="
	OpMulAssign Op = "*="
	OpDivAssign Op = "/="
	OpModAssign Op = "%="
)

// Capabilities is the per-primitive-type set of operators legal on it.
// Each set is a membership map; the zero value of Capabilities is the
// "unknown type, no operator legal" capability set.
type Capabilities struct {
	BinaryOps map[Op]bool
	UnaryOps  map[Op]bool
	RelOps    map[Op]bool
	AssignOps map[Op]bool
}

func set(ops ...Op) map[Op]bool {
	m := make(map[Op]bool, len(ops))
	for _, o := range ops {
		m[o] = true
	}
	return m
}

// caps maps each primitive type singleton to its capability set. array,
// ptr, string and bool are derived tags: array and ptr carry no operator
// capabilities of their own (operations apply to the element/pointee type
// after the semantic analyzer strips the outer tag), string behaves like
// char for assignment purposes only (§3.1, the char<->string quirk), and
// bool is introduced purely as the result type of relational operators.
var caps = map[Tag]Capabilities{
	Int: {
		BinaryOps: set(OpAdd, OpSub, OpMul, OpDiv, OpMod),
		UnaryOps:  set(OpPos, OpNeg, OpNot, OpPreInc, OpPreDec, OpPostInc, OpPostDec, OpAddr),
		RelOps:    set(OpEq, OpNe, OpLt, OpLe, OpGt, OpGe),
		AssignOps: set(OpAssign, OpAddAssign, OpSubAssign, OpMulAssign, OpDivAssign, OpModAssign),
	},
	Float: {
		BinaryOps: set(OpAdd, OpSub, OpMul, OpDiv),
		UnaryOps:  set(OpPos, OpNeg, OpPreInc, OpPreDec, OpPostInc, OpPostDec, OpAddr),
		RelOps:    set(OpEq, OpNe, OpLt, OpLe, OpGt, OpGe),
		AssignOps: set(OpAssign, OpAddAssign, OpSubAssign, OpMulAssign, OpDivAssign),
	},
	Char: {
		BinaryOps: set(),
		UnaryOps:  set(OpAddr),
		RelOps:    set(OpEq, OpNe, OpLt, OpLe, OpGt, OpGe),
		AssignOps: set(OpAssign),
	},
	Bool: {
		BinaryOps: set(OpAnd, OpOr),
		UnaryOps:  set(OpNot),
		RelOps:    set(OpEq, OpNe),
		AssignOps: set(OpAssign),
	},
	Void: {},
}

// Lookup returns the Capabilities registered for tag t. Derived tags
// (array, ptr, string) have no capability set of their own; ok is false
// and the caller should strip the outer tag (array/ptr) or treat it like
// Char (string) before looking up again.
func Lookup(t Tag) (Capabilities, bool) {
	c, ok := caps[t]
	return c, ok
}

// IsPrimitive reports whether t is one of the four scalar singletons that
// the global scope seeds identifiers for (int, float, char, void).
func IsPrimitive(t Tag) bool {
	switch t {
	case Int, Float, Char, Void:
		return true
	}
	return false
}
