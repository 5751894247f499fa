// Package sema implements the uC semantic analyzer: a single top-down walk
// of the parsed AST that checks declaration uniqueness, scope and binding,
// type compatibility, and operator capability, decorating every node with
// its resolved type/scope/kind/bind in place.
//
// Grounded on hhramberg-go-vslc/src/ir/validate.go: the teacher drives its
// checks off package-level lutExp/lutAssign lookup tables indexed by
// (operand type, operator); this analyzer keeps that lookup-table shape
// (internal/types.Capabilities) but organizes the walk itself as one
// recursive-descent pass over ast.Node the way the teacher's validate
// method dispatches on NodeType, rather than the teacher's parallel
// per-function worker-pool walk (spec.md §5 rules out concurrency here).
package sema

import (
	"fmt"

	"ucc/internal/ast"
	"ucc/internal/types"
)

type analyzer struct {
	env *environment
}

// Analyze runs the semantic analyzer over prog, the Program root produced
// by internal/parser. It decorates the tree in place and returns the first
// rule violation encountered (fail-fast, per spec.md §7).
func Analyze(prog *ast.Node) error {
	a := &analyzer{env: newEnvironment()}
	return a.visitProgram(prog)
}

func perr(n *ast.Node, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s", n.Pos(), fmt.Sprintf(format, args...))
}

func typesEqual(a, b []types.Tag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// outerCompatible implements the assignment-side char<->string exception
// (spec.md §4.1: "the char <-> string pair is mutually accepted").
func outerCompatible(a, b types.Tag) bool {
	if a == b {
		return true
	}
	return (a == types.Char && b == types.String) || (a == types.String && b == types.Char)
}

// ---------------------------------------------------------------------
// Program / declarations
// ---------------------------------------------------------------------

func (a *analyzer) visitProgram(n *ast.Node) error {
	gdecl := n.Children[0]
	for _, c := range gdecl.Children {
		switch c.Kind {
		case ast.Decl:
			if err := a.visitDecl(c, true); err != nil {
				return err
			}
		case ast.FuncDef:
			if err := a.visitFuncDef(c); err != nil {
				return err
			}
		default:
			return perr(c, "internal: unexpected global item %s", c.Kind)
		}
	}
	if sym := a.env.lookup("main"); sym == nil || sym.Kind != "func" {
		return perr(n, "program has no main function")
	}
	return nil
}

// declResult is the resolved shape of a declarator chain: its bound name,
// fully-resolved type (outer-tag first), and, for array declarators, the
// per-dimension expression nodes (nil where a dimension was omitted) and
// the ArrayDecl nodes that own them, so an initializer check can fill in a
// missing dimension in place.
type declResult struct {
	name      string
	ty        []types.Tag
	dims      []*ast.Node
	arrNodes  []*ast.Node
	isFunc    bool
	paramList *ast.Node
}

// resolveDeclarator walks a declarator chain (VarDecl/ArrayDecl/PtrDecl/
// FuncDecl) bottom-up, building the fully resolved type per spec.md §3.1
// ("the semantic pass prepends symbolic tags to the innermost Type.names").
func (a *analyzer) resolveDeclarator(n *ast.Node) (*declResult, error) {
	switch n.Kind {
	case ast.VarDecl:
		base := n.Children[0]
		ty := append([]types.Tag{}, base.TypeTags...)
		return &declResult{name: n.Name, ty: ty}, nil
	case ast.ArrayDecl:
		inner, err := a.resolveDeclarator(n.Children[0])
		if err != nil {
			return nil, err
		}
		var dimNode *ast.Node
		if len(n.Children) > 1 {
			dimNode = n.Children[1]
			if err := a.visitExpr(dimNode); err != nil {
				return nil, err
			}
			if dimNode.OuterTag() != types.Int {
				return nil, perr(dimNode, "array dimension must be int")
			}
		}
		return &declResult{
			name:      inner.name,
			ty:        append([]types.Tag{types.Array}, inner.ty...),
			dims:      append([]*ast.Node{dimNode}, inner.dims...),
			arrNodes:  append([]*ast.Node{n}, inner.arrNodes...),
			isFunc:    inner.isFunc,
			paramList: inner.paramList,
		}, nil
	case ast.PtrDecl:
		inner, err := a.resolveDeclarator(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &declResult{
			name:      inner.name,
			ty:        append([]types.Tag{types.Ptr}, inner.ty...),
			dims:      inner.dims,
			arrNodes:  inner.arrNodes,
			isFunc:    inner.isFunc,
			paramList: inner.paramList,
		}, nil
	case ast.FuncDecl:
		inner, err := a.resolveDeclarator(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &declResult{name: inner.name, ty: inner.ty, isFunc: true, paramList: n.Children[1]}, nil
	default:
		return nil, perr(n, "internal: %s is not a declarator", n.Kind)
	}
}

// visitDecl handles both a single declarator (+ optional initializer) and
// the comma-separated container shape the parser produces for "T a, b, c;".
func (a *analyzer) visitDecl(n *ast.Node, isGlobal bool) error {
	if n.Children[0].Kind == ast.Decl {
		for _, c := range n.Children {
			if err := a.visitDecl(c, isGlobal); err != nil {
				return err
			}
		}
		return nil
	}

	declarator := n.Children[0]
	res, err := a.resolveDeclarator(declarator)
	if err != nil {
		return err
	}

	if res.isFunc {
		sym := a.env.lookup(res.name)
		if sym == nil {
			sym = &Symbol{Name: res.name, Kind: "func", Type: res.ty, Decl: declarator}
			a.env.declare(sym)
		} else if sym.Kind != "func" {
			return perr(declarator, "%q redeclared as function", res.name)
		}
		declarator.Typ = res.ty
		declarator.SymKind = "func"
		a.env.push()
		for _, p := range res.paramList.Children {
			if err := a.visitDecl(p, false); err != nil {
				return err
			}
		}
		a.env.pop()
		return nil
	}

	if a.env.find(res.name) != nil {
		return perr(declarator, "%q redeclared in this scope", res.name)
	}
	sym := &Symbol{Name: res.name, Kind: "var", Type: res.ty, Decl: declarator}
	a.env.declare(sym)
	declarator.Typ = res.ty
	declarator.ScopeLevel = sym.ScopeLevel
	declarator.SymKind = "var"

	if len(n.Children) > 1 {
		if err := a.checkInitializer(res, n.Children[1], isGlobal); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) visitFuncDef(n *ast.Node) error {
	declarator := n.Children[1]
	body := n.Children[2]

	res, err := a.resolveDeclarator(declarator)
	if err != nil {
		return err
	}
	if !res.isFunc {
		return perr(n, "function definition %q missing parameter list", res.name)
	}

	sym := a.env.lookup(res.name)
	if sym == nil {
		sym = &Symbol{Name: res.name, Kind: "func", Type: res.ty, Decl: declarator}
		a.env.declare(sym)
	} else if sym.Kind != "func" {
		return perr(declarator, "%q redeclared as function", res.name)
	}
	declarator.Typ = res.ty
	declarator.SymKind = "func"

	a.env.pushReturn(res.ty)
	a.env.push()
	for _, p := range res.paramList.Children {
		if err := a.visitDecl(p, false); err != nil {
			a.env.pop()
			a.env.popReturn()
			return err
		}
	}
	for _, item := range body.Children {
		var err error
		if item.Kind == ast.Decl {
			err = a.visitDecl(item, false)
		} else {
			err = a.visitStmt(item)
		}
		if err != nil {
			a.env.pop()
			a.env.popReturn()
			return err
		}
	}
	a.env.pop()
	a.env.popReturn()
	return nil
}

// ---------------------------------------------------------------------
// Initialization rules (spec.md §4.1 "Initialization Rules")
// ---------------------------------------------------------------------

func (a *analyzer) requireConstantExpr(n *ast.Node) error {
	switch n.Kind {
	case ast.Constant:
		return nil
	case ast.InitList:
		for _, c := range n.Children {
			if err := a.requireConstantExpr(c); err != nil {
				return err
			}
		}
		return nil
	default:
		return perr(n, "global initializer must be a constant expression")
	}
}

func (a *analyzer) fillOrCheckDim(arrNode, dimNode *ast.Node, length int) error {
	if dimNode == nil {
		c := ast.New(ast.Constant, arrNode.Line, arrNode.Col)
		c.ConstTag = ast.IntConst
		c.IntVal = length
		c.Typ = []types.Tag{types.Int}
		arrNode.Children = append(arrNode.Children, c)
		return nil
	}
	if dimNode.Kind == ast.Constant && dimNode.ConstTag == ast.IntConst && dimNode.IntVal != length {
		return perr(dimNode, "array dimension %d does not match initializer length %d", dimNode.IntVal, length)
	}
	return nil
}

// checkArrayInit recursively checks an (possibly nested) InitList against
// the array/element type chain ty, filling or verifying each dimension.
func (a *analyzer) checkArrayInit(ty []types.Tag, arrNodes, dims []*ast.Node, init *ast.Node) error {
	if len(ty) == 0 || ty[0] != types.Array {
		if init.Kind == ast.InitList {
			return perr(init, "unexpected nested initializer list")
		}
		if err := a.visitExpr(init); err != nil {
			return err
		}
		if init.OuterTag() != firstTag(ty) {
			return perr(init, "initializer element type mismatch")
		}
		return nil
	}
	if init.Kind != ast.InitList {
		return perr(init, "expected an initializer list for array type")
	}
	if err := a.fillOrCheckDim(arrNodes[0], dims[0], len(init.Children)); err != nil {
		return err
	}
	for _, c := range init.Children {
		if err := a.checkArrayInit(ty[1:], arrNodes[1:], dims[1:], c); err != nil {
			return err
		}
	}
	return nil
}

func firstTag(ty []types.Tag) types.Tag {
	if len(ty) == 0 {
		return ""
	}
	return ty[0]
}

func (a *analyzer) checkInitializer(res *declResult, init *ast.Node, isGlobal bool) error {
	if isGlobal {
		if err := a.requireConstantExpr(init); err != nil {
			return err
		}
	}

	if len(res.ty) > 0 && res.ty[0] == types.Array {
		if init.Kind != ast.InitList {
			if err := a.visitExpr(init); err != nil {
				return err
			}
			if init.Kind == ast.Constant && init.ConstTag == ast.StringConst &&
				len(res.ty) == 2 && res.ty[1] == types.Char {
				return a.fillOrCheckDim(res.arrNodes[0], res.dims[0], len(init.StrVal)+1)
			}
			return perr(init, "array initializer must be an init-list or a string literal")
		}
		return a.checkArrayInit(res.ty, res.arrNodes, res.dims, init)
	}

	if init.Kind == ast.InitList {
		if len(init.Children) != 1 {
			return perr(init, "scalar initializer list must hold exactly one element")
		}
		elem := init.Children[0]
		if err := a.visitExpr(elem); err != nil {
			return err
		}
		if !typesEqual(elem.Typ, res.ty) {
			return perr(elem, "initializer type mismatch")
		}
		return nil
	}
	if err := a.visitExpr(init); err != nil {
		return err
	}
	if init.OuterTag() != res.ty[0] {
		return perr(init, "initializer type mismatch: got %s, want %s", init.OuterTag(), res.ty[0])
	}
	return nil
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (a *analyzer) visitStmt(n *ast.Node) error {
	switch n.Kind {
	case ast.Compound:
		return a.visitCompound(n)
	case ast.If:
		return a.visitIf(n)
	case ast.While:
		return a.visitWhile(n)
	case ast.For:
		return a.visitFor(n)
	case ast.Break:
		return a.visitBreak(n)
	case ast.Return:
		return a.visitReturn(n)
	case ast.Print:
		return a.visitPrint(n)
	case ast.Read:
		return a.visitRead(n)
	case ast.Assert:
		return a.visitAssert(n)
	case ast.EmptyStatement:
		return nil
	case ast.Decl:
		return a.visitDecl(n, false)
	default:
		return a.visitExpr(n)
	}
}

func (a *analyzer) visitCompound(n *ast.Node) error {
	a.env.push()
	defer a.env.pop()
	for _, item := range n.Children {
		var err error
		if item.Kind == ast.Decl {
			err = a.visitDecl(item, false)
		} else {
			err = a.visitStmt(item)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) visitIf(n *ast.Node) error {
	cond := n.Children[0]
	if err := a.visitExpr(cond); err != nil {
		return err
	}
	if cond.OuterTag() != types.Bool {
		return perr(cond, "if condition must be bool")
	}
	if err := a.visitStmt(n.Children[1]); err != nil {
		return err
	}
	if len(n.Children) > 2 {
		return a.visitStmt(n.Children[2])
	}
	return nil
}

func (a *analyzer) visitWhile(n *ast.Node) error {
	a.env.push()
	a.env.pushLoop(n)
	defer func() {
		a.env.popLoop()
		a.env.pop()
	}()
	cond := n.Children[0]
	if err := a.visitExpr(cond); err != nil {
		return err
	}
	if cond.OuterTag() != types.Bool {
		return perr(cond, "while condition must be bool")
	}
	return a.visitStmt(n.Children[1])
}

func (a *analyzer) visitFor(n *ast.Node) error {
	init, cond, next, body := n.Children[0], n.Children[1], n.Children[2], n.Children[3]
	pushedScope := init.Kind == ast.DeclList
	if pushedScope {
		a.env.push()
	}
	a.env.pushLoop(n)
	defer func() {
		a.env.popLoop()
		if pushedScope {
			a.env.pop()
		}
	}()

	if init.Kind == ast.DeclList {
		for _, d := range init.Children {
			if err := a.visitDecl(d, false); err != nil {
				return err
			}
		}
	} else if init.Kind != ast.EmptyStatement {
		if err := a.visitExpr(init); err != nil {
			return err
		}
	}
	if cond.Kind != ast.EmptyStatement {
		if err := a.visitExpr(cond); err != nil {
			return err
		}
		if cond.OuterTag() != types.Bool {
			return perr(cond, "for condition must be bool")
		}
	}
	if next.Kind != ast.EmptyStatement {
		if err := a.visitExpr(next); err != nil {
			return err
		}
	}
	return a.visitStmt(body)
}

func (a *analyzer) visitBreak(n *ast.Node) error {
	loop := a.env.currentLoop()
	if loop == nil {
		return perr(n, "break outside loop")
	}
	n.Bind = loop
	return nil
}

func (a *analyzer) visitReturn(n *ast.Node) error {
	cur := a.env.currentReturn()
	isVoid := len(cur) == 1 && cur[0] == types.Void
	if len(n.Children) == 0 {
		if !isVoid {
			return perr(n, "missing return value")
		}
		return nil
	}
	expr := n.Children[0]
	if err := a.visitExpr(expr); err != nil {
		return err
	}
	if isVoid {
		return perr(expr, "void function cannot return a value")
	}
	if !typesEqual(expr.Typ, cur) {
		return perr(expr, "return type mismatch")
	}
	return nil
}

func (a *analyzer) visitPrint(n *ast.Node) error {
	for _, c := range n.Children {
		if err := a.visitExpr(c); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) visitRead(n *ast.Node) error {
	for _, c := range n.Children {
		if err := a.visitExpr(c); err != nil {
			return err
		}
		if !c.IsLvalue() {
			return perr(c, "read target must be an l-value")
		}
		if !types.IsPrimitive(c.OuterTag()) {
			return perr(c, "read target must be a primitive type")
		}
	}
	return nil
}

func (a *analyzer) visitAssert(n *ast.Node) error {
	cond := n.Children[0]
	if err := a.visitExpr(cond); err != nil {
		return err
	}
	if cond.OuterTag() != types.Bool {
		return perr(cond, "assert condition must be bool")
	}
	return nil
}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

func (a *analyzer) visitExpr(n *ast.Node) error {
	switch n.Kind {
	case ast.Constant:
		return a.visitConstant(n)
	case ast.ID:
		return a.visitID(n)
	case ast.ArrayRef:
		return a.visitArrayRef(n)
	case ast.FuncCall:
		return a.visitFuncCall(n)
	case ast.BinaryOp:
		return a.visitBinaryOp(n)
	case ast.UnaryOp:
		return a.visitUnaryOp(n)
	case ast.Cast:
		return a.visitCast(n)
	case ast.Assignment:
		return a.visitAssignment(n)
	default:
		return perr(n, "internal: %s is not an expression", n.Kind)
	}
}

func (a *analyzer) visitConstant(n *ast.Node) error {
	switch n.ConstTag {
	case ast.IntConst:
		n.Typ = []types.Tag{types.Int}
	case ast.FloatConst:
		n.Typ = []types.Tag{types.Float}
	case ast.CharConst:
		n.Typ = []types.Tag{types.Char}
	default:
		n.Typ = []types.Tag{types.String}
	}
	return nil
}

func (a *analyzer) visitID(n *ast.Node) error {
	sym := a.env.lookup(n.Name)
	if sym == nil {
		return perr(n, "undeclared identifier %q", n.Name)
	}
	n.Typ = sym.Type
	n.ScopeLevel = sym.ScopeLevel
	n.SymKind = sym.Kind
	n.Bind = sym.Decl
	return nil
}

func (a *analyzer) visitArrayRef(n *ast.Node) error {
	base, idx := n.Children[0], n.Children[1]
	if err := a.visitExpr(idx); err != nil {
		return err
	}
	if idx.OuterTag() != types.Int {
		return perr(idx, "array subscript must be int")
	}
	if err := a.visitExpr(base); err != nil {
		return err
	}
	if base.OuterTag() != types.Array {
		return perr(base, "subscripted value is not an array")
	}
	n.Typ = base.Typ[1:]
	return nil
}

func (a *analyzer) visitFuncCall(n *ast.Node) error {
	callee, argList := n.Children[0], n.Children[1]
	sym := a.env.lookup(callee.Name)
	if sym == nil {
		return perr(callee, "undeclared function %q", callee.Name)
	}
	if sym.Kind != "func" {
		return perr(callee, "%q is not a function", callee.Name)
	}
	callee.Typ = sym.Type
	callee.SymKind = sym.Kind
	callee.Bind = sym.Decl

	paramList := sym.Decl.Children[1]
	if len(paramList.Children) != len(argList.Children) {
		return perr(n, "function %q expects %d arguments, got %d", callee.Name, len(paramList.Children), len(argList.Children))
	}
	for i, arg := range argList.Children {
		if err := a.visitExpr(arg); err != nil {
			return err
		}
		paramDecl := paramList.Children[i].Children[0]
		if !typesEqual(arg.Typ, paramDecl.Typ) {
			return perr(arg, "argument %d type mismatch in call to %q", i+1, callee.Name)
		}
	}
	n.Typ = sym.Type
	return nil
}

func (a *analyzer) visitBinaryOp(n *ast.Node) error {
	l, r := n.Children[0], n.Children[1]
	if err := a.visitExpr(l); err != nil {
		return err
	}
	if err := a.visitExpr(r); err != nil {
		return err
	}
	if l.OuterTag() != r.OuterTag() {
		return perr(n, "type mismatch in binary operator %q", n.Op)
	}
	caps, ok := types.Lookup(l.OuterTag())
	if !ok {
		return perr(n, "operator %q not valid for type %s", n.Op, l.OuterTag())
	}
	op := types.Op(n.Op)
	switch {
	case caps.BinaryOps[op]:
		n.Typ = l.Typ
	case caps.RelOps[op]:
		n.Typ = []types.Tag{types.Bool}
	default:
		return perr(n, "operator %q not valid for type %s", n.Op, l.OuterTag())
	}
	return nil
}

func (a *analyzer) visitUnaryOp(n *ast.Node) error {
	operand := n.Children[0]
	if err := a.visitExpr(operand); err != nil {
		return err
	}
	op := types.Op(n.Op)
	switch op {
	case types.OpDeref:
		if operand.OuterTag() != types.Ptr {
			return perr(n, "cannot dereference a non-pointer")
		}
		if len(operand.Typ) < 2 {
			return perr(n, "internal: malformed pointer type")
		}
		n.Typ = operand.Typ[1:]
	case types.OpAddr:
		n.Typ = append([]types.Tag{types.Ptr}, operand.Typ...)
	default:
		caps, ok := types.Lookup(operand.OuterTag())
		if !ok || !caps.UnaryOps[op] {
			return perr(n, "operator %q not valid for type %s", n.Op, operand.OuterTag())
		}
		n.Typ = operand.Typ
	}
	return nil
}

func (a *analyzer) visitCast(n *ast.Node) error {
	typeNode, expr := n.Children[0], n.Children[1]
	if err := a.visitExpr(expr); err != nil {
		return err
	}
	n.Typ = append([]types.Tag{}, typeNode.TypeTags...)
	return nil
}

func (a *analyzer) visitAssignment(n *ast.Node) error {
	lhs, rhs := n.Children[0], n.Children[1]
	if err := a.visitExpr(rhs); err != nil {
		return err
	}
	if err := a.visitExpr(lhs); err != nil {
		return err
	}
	if !lhs.IsLvalue() {
		return perr(lhs, "assignment target is not an l-value")
	}
	if !outerCompatible(lhs.OuterTag(), rhs.OuterTag()) {
		return perr(n, "type mismatch in assignment")
	}
	caps, ok := types.Lookup(lhs.OuterTag())
	if !ok || !caps.AssignOps[types.Op(n.Op)] {
		return perr(n, "operator %q not valid for type %s", n.Op, lhs.OuterTag())
	}
	n.Typ = lhs.Typ
	return nil
}
