package ucir

import (
	"fmt"
	"strconv"
	"strings"

	"ucc/internal/ast"
	"ucc/internal/types"
)

// Generate lowers a semantically-decorated Program AST into uCIR, per
// spec.md §4.2. It assumes prog has already passed internal/sema.Analyze;
// a malformed or undecorated tree is an internal invariant violation and
// panics, the same convention hhramberg-go-vslc's lir package uses for its
// builder methods ("panic(fmt.Sprintf(...))" on an invalid operand type).
func Generate(prog *ast.Node) *Program {
	g := &generator{prog: &Program{}}
	gdecl := prog.Children[0]
	for _, c := range gdecl.Children {
		switch c.Kind {
		case ast.Decl:
			g.genGlobalDecl(c)
		case ast.FuncDef:
			g.genFuncDef(c)
		}
	}
	return g.prog
}

type generator struct {
	prog        *Program
	tempCounter int
	strCounter  int
	retLoc      string
	retLabel    string
	retType     []types.Tag
}

func (g *generator) next() string {
	s := fmt.Sprintf("%%%d", g.tempCounter)
	g.tempCounter++
	return s
}

func (g *generator) emit(op string, args ...string) {
	g.prog.Code = append(g.prog.Code, Instr{Op: op, Args: args})
}

func (g *generator) emitT(op string, ty []types.Tag, args ...string) {
	g.prog.Code = append(g.prog.Code, Instr{Op: op, Args: args, Type: ty})
}

func (g *generator) emitLabel(lbl string) {
	g.prog.Code = append(g.prog.Code, Instr{Op: lbl + ":"})
}

func (g *generator) internString(s string) string {
	name := fmt.Sprintf("@.str.%d", g.strCounter)
	g.strCounter++
	g.prog.Globals = append(g.prog.Globals, Instr{
		Op: "global_string", Args: []string{name, strconv.Quote(s)}, Type: []types.Tag{types.String},
	})
	return name
}

// declName walks a declarator chain down to its VarDecl leaf to recover
// the bound identifier.
func declName(n *ast.Node) string {
	for {
		switch n.Kind {
		case ast.VarDecl:
			return n.Name
		case ast.ArrayDecl, ast.PtrDecl, ast.FuncDecl:
			n = n.Children[0]
		default:
			return ""
		}
	}
}

// collectArrayDims reads the resolved dimension Constant nodes off a
// declarator's ArrayDecl wrappers, outermost-AST-node first. Ordering is
// self-consistent with internal/sema's declResult.dims/arrNodes (built by
// the same prepend-per-frame recursion) and with genArrayAddr's
// linearization below; nothing outside this package relies on it matching
// C's left-to-right dimension reading, only on alloc/global and elem
// addressing agreeing with each other, which this guarantees.
func collectArrayDims(n *ast.Node) []int {
	var dims []int
	cur := n
	for cur.Kind == ast.ArrayDecl {
		if len(cur.Children) > 1 && cur.Children[1].Kind == ast.Constant {
			dims = append(dims, cur.Children[1].IntVal)
		}
		cur = cur.Children[0]
	}
	return dims
}

func paramDeclList(n *ast.Node) []*ast.Node {
	for {
		switch n.Kind {
		case ast.FuncDecl:
			return n.Children[1].Children
		case ast.PtrDecl, ast.ArrayDecl:
			n = n.Children[0]
		default:
			return nil
		}
	}
}

// ---------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------

func (g *generator) genGlobalDecl(n *ast.Node) {
	if n.Children[0].Kind == ast.Decl {
		for _, c := range n.Children {
			g.genGlobalDecl(c)
		}
		return
	}
	declarator := n.Children[0]
	if declarator.SymKind == "func" {
		return // prototype only; no storage, body handled by genFuncDef.
	}
	name := declName(declarator)
	declarator.Loc = "@" + name
	ty := declarator.Typ
	dims := collectArrayDims(declarator)
	op := "global_" + opSuffix(ty, dims)
	args := []string{"@" + name}
	if len(n.Children) > 1 {
		args = append(args, g.constExprValue(n.Children[1]))
	}
	g.prog.Globals = append(g.prog.Globals, Instr{Op: op, Args: args, Type: ty})
}

func (g *generator) constExprValue(n *ast.Node) string {
	switch n.Kind {
	case ast.Constant:
		switch n.ConstTag {
		case ast.IntConst:
			return strconv.Itoa(n.IntVal)
		case ast.FloatConst:
			return strconv.FormatFloat(float64(n.FloatVal), 'g', -1, 32)
		case ast.CharConst:
			return strconv.QuoteRune(rune(n.CharVal))
		default:
			return g.internString(n.StrVal)
		}
	case ast.InitList:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = g.constExprValue(c)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		panic(fmt.Sprintf("internal: %s is not a constant expression", n.Kind))
	}
}

// ---------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------

func (g *generator) genFuncDef(n *ast.Node) {
	declarator := n.Children[1]
	body := n.Children[2]
	name := declName(declarator)
	params := paramDeclList(declarator)
	retType := declarator.Typ

	g.tempCounter = 0
	g.retType = retType

	argNames := make([]string, len(params))
	for i := range params {
		argNames[i] = fmt.Sprintf("%%arg%d", i)
	}
	g.emit("define", append([]string{"@" + name}, argNames...)...)

	// First pass over parameters: alloc a slot per parameter.
	for _, p := range params {
		pdeclarator := p.Children[0]
		dims := collectArrayDims(pdeclarator)
		target := g.next()
		g.emitT("alloc_"+opSuffix(pdeclarator.Typ, dims), pdeclarator.Typ, target)
		pdeclarator.Loc = target
	}
	// Second pass: store the incoming pseudo-registers into those slots.
	for i, p := range params {
		pdeclarator := p.Children[0]
		g.emitT("store_"+baseTypeWord(pdeclarator.Typ), pdeclarator.Typ, argNames[i], pdeclarator.Loc)
	}

	isVoid := len(retType) == 1 && retType[0] == types.Void
	if !isVoid {
		g.retLoc = g.next()
		g.emitT("alloc_"+opSuffix(retType, nil), retType, g.retLoc)
	}
	g.retLabel = g.next()

	g.allocLocalsRec(body)
	for _, item := range body.Children {
		g.genBlockItem(item)
	}

	g.emitLabel(g.retLabel)
	if !isVoid {
		v := g.next()
		g.emitT("load_"+baseTypeWord(retType), retType, g.retLoc, v)
		g.emitT("return_"+baseTypeWord(retType), retType, v)
	} else {
		g.emit("return_void")
	}
}

// allocLocalsRec performs the local-declaration pre-pass spec.md §4.2
// requires ("first walk emits allocs for every local declaration, second
// walk emits initializer stores and statement code"), recursing through
// every nested block so an alloc always precedes first use regardless of
// how deeply the declaration is nested in the function body.
func (g *generator) allocLocalsRec(n *ast.Node) {
	switch n.Kind {
	case ast.Decl:
		g.allocDeclTarget(n)
	case ast.Compound:
		for _, c := range n.Children {
			g.allocLocalsRec(c)
		}
	case ast.If:
		g.allocLocalsRec(n.Children[1])
		if len(n.Children) > 2 {
			g.allocLocalsRec(n.Children[2])
		}
	case ast.While:
		g.allocLocalsRec(n.Children[1])
	case ast.For:
		init := n.Children[0]
		if init.Kind == ast.DeclList {
			for _, d := range init.Children {
				g.allocLocalsRec(d)
			}
		}
		g.allocLocalsRec(n.Children[3])
	}
}

func (g *generator) allocDeclTarget(n *ast.Node) {
	if n.Children[0].Kind == ast.Decl {
		for _, c := range n.Children {
			g.allocDeclTarget(c)
		}
		return
	}
	declarator := n.Children[0]
	if declarator.SymKind != "var" {
		return
	}
	dims := collectArrayDims(declarator)
	target := g.next()
	g.emitT("alloc_"+opSuffix(declarator.Typ, dims), declarator.Typ, target)
	declarator.Loc = target
}

func (g *generator) genBlockItem(n *ast.Node) {
	if n.Kind == ast.Decl {
		g.genLocalDeclInit(n)
		return
	}
	g.genStmt(n)
}

func (g *generator) genLocalDeclInit(n *ast.Node) {
	if n.Children[0].Kind == ast.Decl {
		for _, c := range n.Children {
			g.genLocalDeclInit(c)
		}
		return
	}
	declarator := n.Children[0]
	if declarator.SymKind != "var" || len(n.Children) < 2 {
		return
	}
	init := n.Children[1]
	ty := declarator.Typ
	if len(ty) > 0 && ty[0] == types.Array {
		dims := collectArrayDims(declarator)
		value := g.constInitListOrString(init)
		gname := fmt.Sprintf("@.str.%d", g.strCounter)
		g.strCounter++
		g.prog.Globals = append(g.prog.Globals, Instr{
			Op: "global_" + opSuffix(ty, dims), Args: []string{gname, value}, Type: ty,
		})
		g.emitT("store_"+opSuffix(ty, dims), ty, gname, declarator.Loc)
		return
	}
	var val string
	if init.Kind == ast.InitList {
		val = g.rvalue(init.Children[0])
	} else {
		val = g.rvalue(init)
	}
	g.emitT("store_"+baseTypeWord(ty), ty, val, declarator.Loc)
}

func (g *generator) constInitListOrString(init *ast.Node) string {
	if init.Kind == ast.Constant && init.ConstTag == ast.StringConst {
		return strconv.Quote(init.StrVal)
	}
	return g.constExprValue(init)
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (g *generator) genStmt(n *ast.Node) {
	switch n.Kind {
	case ast.Compound:
		for _, c := range n.Children {
			g.genBlockItem(c)
		}
	case ast.If:
		g.genIf(n)
	case ast.While:
		g.genWhile(n)
	case ast.For:
		g.genFor(n)
	case ast.Break:
		g.genBreak(n)
	case ast.Return:
		g.genReturn(n)
	case ast.Print:
		g.genPrint(n)
	case ast.Read:
		g.genRead(n)
	case ast.Assert:
		g.genAssert(n)
	case ast.EmptyStatement:
		// no-op.
	default:
		g.rvalue(n)
	}
}

func (g *generator) genIf(n *ast.Node) {
	condVal := g.rvalue(n.Children[0])
	thenLabel := g.next()
	hasElse := len(n.Children) > 2
	var elseLabel string
	if hasElse {
		elseLabel = g.next()
	}
	endLabel := g.next()
	falseTarget := endLabel
	if hasElse {
		falseTarget = elseLabel
	}
	g.emit("cbranch", condVal, thenLabel, falseTarget)
	g.emitLabel(thenLabel)
	g.genStmt(n.Children[1])
	g.emit("jump", endLabel)
	if hasElse {
		g.emitLabel(elseLabel)
		g.genStmt(n.Children[2])
		g.emit("jump", endLabel)
	}
	g.emitLabel(endLabel)
}

func (g *generator) genWhile(n *ast.Node) {
	condLabel, bodyLabel, endLabel := g.next(), g.next(), g.next()
	n.Loc = endLabel
	g.emit("jump", condLabel)
	g.emitLabel(condLabel)
	condVal := g.rvalue(n.Children[0])
	g.emit("cbranch", condVal, bodyLabel, endLabel)
	g.emitLabel(bodyLabel)
	g.genStmt(n.Children[1])
	g.emit("jump", condLabel)
	g.emitLabel(endLabel)
}

func (g *generator) genFor(n *ast.Node) {
	init, cond, next, body := n.Children[0], n.Children[1], n.Children[2], n.Children[3]
	if init.Kind == ast.DeclList {
		for _, d := range init.Children {
			g.genLocalDeclInit(d)
		}
	} else if init.Kind != ast.EmptyStatement {
		g.rvalue(init)
	}

	condLabel, bodyLabel, nextLabel, endLabel := g.next(), g.next(), g.next(), g.next()
	n.Loc = endLabel
	g.emit("jump", condLabel)
	g.emitLabel(condLabel)
	if cond.Kind != ast.EmptyStatement {
		condVal := g.rvalue(cond)
		g.emit("cbranch", condVal, bodyLabel, endLabel)
	} else {
		g.emit("jump", bodyLabel)
	}
	g.emitLabel(bodyLabel)
	g.genStmt(body)
	g.emit("jump", nextLabel)
	g.emitLabel(nextLabel)
	if next.Kind != ast.EmptyStatement {
		g.rvalue(next)
	}
	g.emit("jump", condLabel)
	g.emitLabel(endLabel)
}

func (g *generator) genBreak(n *ast.Node) {
	g.emit("jump", n.Bind.Loc)
}

func (g *generator) genReturn(n *ast.Node) {
	if len(n.Children) == 0 {
		g.emit("jump", g.retLabel)
		return
	}
	v := g.rvalue(n.Children[0])
	g.emitT("store_"+baseTypeWord(g.retType), g.retType, v, g.retLoc)
	g.emit("jump", g.retLabel)
}

func (g *generator) genPrint(n *ast.Node) {
	if len(n.Children) == 0 {
		g.emit("print_void")
		return
	}
	for _, c := range n.Children {
		v := g.rvalue(c)
		g.emitT("print_"+baseTypeWord(c.Typ), c.Typ, v)
	}
}

func (g *generator) genRead(n *ast.Node) {
	for _, c := range n.Children {
		addr := g.addressOf(c)
		t := g.next()
		g.emitT("read_"+baseTypeWord(c.Typ), c.Typ, t)
		g.emitT("store_"+baseTypeWord(c.Typ), c.Typ, t, addr)
	}
}

// genAssert follows spec.md §4.2's literal three-label shape: a false
// branch prints the failure message and force-exits via "jump %1", the
// fixed program-abort label the reference generator reserves.
func (g *generator) genAssert(n *ast.Node) {
	condVal := g.rvalue(n.Children[0])
	trueLabel, falseLabel, exitLabel := g.next(), g.next(), g.next()
	g.emit("cbranch", condVal, trueLabel, falseLabel)
	g.emitLabel(falseLabel)
	msg := fmt.Sprintf("assertion_fail on %d:%d", n.Children[0].Line, n.Children[0].Col)
	gname := g.internString(msg)
	g.emitT("print_string", []types.Tag{types.String}, gname)
	g.emit("jump", "%1")
	g.emitLabel(trueLabel)
	g.emit("jump", exitLabel)
	g.emitLabel(exitLabel)
}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

func (g *generator) rvalue(n *ast.Node) string {
	switch n.Kind {
	case ast.Constant:
		return g.genConstant(n)
	case ast.ID:
		addr := g.addressOf(n)
		t := g.next()
		g.emitT("load_"+baseTypeWord(n.Typ), n.Typ, addr, t)
		n.Loc = t
		return t
	case ast.ArrayRef:
		addr := g.addressOf(n)
		t := g.next()
		g.emitT("load_"+baseTypeWord(n.Typ), n.Typ, addr, t)
		n.Loc = t
		return t
	case ast.BinaryOp:
		return g.genBinaryOp(n)
	case ast.UnaryOp:
		return g.genUnaryOp(n)
	case ast.Cast:
		return g.genCast(n)
	case ast.Assignment:
		return g.genAssignment(n)
	case ast.FuncCall:
		return g.genCall(n)
	default:
		panic(fmt.Sprintf("internal: %s is not a value-producing expression", n.Kind))
	}
}

func (g *generator) addressOf(n *ast.Node) string {
	switch n.Kind {
	case ast.ID:
		return n.Bind.Loc
	case ast.ArrayRef:
		return g.genArrayAddr(n)
	default:
		panic(fmt.Sprintf("internal: %s is not an l-value", n.Kind))
	}
}

func (g *generator) genConstant(n *ast.Node) string {
	switch n.ConstTag {
	case ast.IntConst:
		t := g.next()
		g.emitT("literal_int", n.Typ, strconv.Itoa(n.IntVal), t)
		n.Loc = t
		return t
	case ast.FloatConst:
		t := g.next()
		g.emitT("literal_float", n.Typ, strconv.FormatFloat(float64(n.FloatVal), 'g', -1, 32), t)
		n.Loc = t
		return t
	case ast.CharConst:
		t := g.next()
		g.emitT("literal_char", n.Typ, strconv.QuoteRune(rune(n.CharVal)), t)
		n.Loc = t
		return t
	default:
		gname := g.internString(n.StrVal)
		n.Loc = gname
		return gname
	}
}

// genArrayAddr linearizes a (possibly multi-dimensional) ArrayRef chain
// into a single elem_T address computation, generalizing spec.md §4.2's
// explicit 1-D/2-D examples to arbitrary depth.
func (g *generator) genArrayAddr(n *ast.Node) string {
	var subs []*ast.Node
	cur := n
	for cur.Kind == ast.ArrayRef {
		subs = append(subs, cur.Children[1])
		cur = cur.Children[0]
	}
	baseAddr := g.addressOf(cur)
	dims := collectArrayDims(cur.Bind)

	idx := g.rvalue(subs[0])
	for k := 1; k < len(subs); k++ {
		dimLit := g.next()
		dimVal := 0
		if k < len(dims) {
			dimVal = dims[k]
		}
		g.emitT("literal_int", []types.Tag{types.Int}, strconv.Itoa(dimVal), dimLit)
		t0 := g.next()
		g.emitT("mul_int", []types.Tag{types.Int}, idx, dimLit, t0)
		subVal := g.rvalue(subs[k])
		t1 := g.next()
		g.emitT("add_int", []types.Tag{types.Int}, t0, subVal, t1)
		idx = t1
	}
	target := g.next()
	g.emitT("elem_"+baseTypeWord(n.Typ), n.Typ, baseAddr, idx, target)
	return target
}

func binOpName(op string) string {
	switch op {
	case "+":
		return "add"
	case "-":
		return "sub"
	case "*":
		return "mul"
	case "/":
		return "div"
	case "%":
		return "mod"
	case "&&":
		return "and"
	case "||":
		return "or"
	case "==":
		return "eq"
	case "!=":
		return "ne"
	case "<":
		return "lt"
	case "<=":
		return "le"
	case ">":
		return "gt"
	case ">=":
		return "ge"
	default:
		panic("internal: unknown binary operator " + op)
	}
}

func (g *generator) genBinaryOp(n *ast.Node) string {
	l := g.rvalue(n.Children[0])
	r := g.rvalue(n.Children[1])
	t := g.next()
	g.emitT(binOpName(n.Op)+"_"+baseTypeWord(n.Children[0].Typ), n.Typ, l, r, t)
	n.Loc = t
	return t
}

func literalText(word string) (zero, one string) {
	if word == "float" {
		return "0.0", "1.0"
	}
	return "0", "1"
}

func (g *generator) genUnaryOp(n *ast.Node) string {
	operand := n.Children[0]
	ty := operand.Typ
	word := baseTypeWord(ty)

	switch n.Op {
	case "+":
		v := g.rvalue(operand)
		n.Loc = v
		return v
	case "-":
		v := g.rvalue(operand)
		zero, _ := literalText(word)
		zt := g.next()
		g.emitT("literal_"+word, ty, zero, zt)
		t := g.next()
		g.emitT("sub_"+word, ty, zt, v, t)
		n.Loc = t
		return t
	case "!":
		v := g.rvalue(operand)
		t := g.next()
		g.emitT("not_"+word, ty, v, t)
		n.Loc = t
		return t
	case "++", "--":
		addr := g.addressOf(operand)
		v := g.rvalue(operand)
		_, one := literalText(word)
		ot := g.next()
		g.emitT("literal_"+word, ty, one, ot)
		opName := "add"
		if n.Op == "--" {
			opName = "sub"
		}
		t1 := g.next()
		g.emitT(opName+"_"+word, ty, v, ot, t1)
		g.emitT("store_"+word, ty, t1, addr)
		n.Loc = t1
		return t1
	case "p++", "p--":
		addr := g.addressOf(operand)
		v := g.rvalue(operand)
		_, one := literalText(word)
		ot := g.next()
		g.emitT("literal_"+word, ty, one, ot)
		opName := "add"
		if n.Op == "p--" {
			opName = "sub"
		}
		t1 := g.next()
		g.emitT(opName+"_"+word, ty, v, ot, t1)
		g.emitT("store_"+word, ty, t1, addr)
		n.Loc = v
		return v
	case "&":
		addr := g.addressOf(operand)
		n.Loc = addr
		return addr
	case "*":
		v := g.rvalue(operand)
		t := g.next()
		g.emitT("load_"+baseTypeWord(n.Typ), n.Typ, v, t)
		n.Loc = t
		return t
	default:
		panic("internal: unknown unary operator " + n.Op)
	}
}

func (g *generator) genCast(n *ast.Node) string {
	typeNode, expr := n.Children[0], n.Children[1]
	_ = typeNode
	v := g.rvalue(expr)
	srcWord, dstWord := baseTypeWord(expr.Typ), baseTypeWord(n.Typ)
	if srcWord == dstWord {
		n.Loc = v
		return v
	}
	t := g.next()
	switch {
	case srcWord == "int" && dstWord == "float":
		g.emitT("sitofp", n.Typ, v, t)
	case srcWord == "float" && dstWord == "int":
		g.emitT("fptosi", n.Typ, v, t)
	default:
		g.emitT("cast_"+srcWord+"_"+dstWord, n.Typ, v, t)
	}
	n.Loc = t
	return t
}

func (g *generator) genAssignment(n *ast.Node) string {
	lhs, rhs := n.Children[0], n.Children[1]
	rv := g.rvalue(rhs)
	finalVal := rv
	if n.Op != "=" {
		cur := g.rvalue(lhs)
		op := binOpName(strings.TrimSuffix(n.Op, "="))
		t := g.next()
		g.emitT(op+"_"+baseTypeWord(lhs.Typ), lhs.Typ, cur, rv, t)
		finalVal = t
	}
	addr := g.addressOf(lhs)
	g.emitT("store_"+baseTypeWord(lhs.Typ), lhs.Typ, finalVal, addr)
	n.Loc = finalVal
	return finalVal
}

func (g *generator) genCall(n *ast.Node) string {
	callee, argList := n.Children[0], n.Children[1]
	argVals := make([]string, len(argList.Children))
	for i, arg := range argList.Children {
		argVals[i] = g.rvalue(arg)
	}
	for i, arg := range argList.Children {
		g.emitT("param_"+baseTypeWord(arg.Typ), arg.Typ, argVals[i])
	}
	isVoid := len(n.Typ) == 1 && n.Typ[0] == types.Void
	if isVoid {
		g.emit("call", "@"+callee.Name)
		n.Loc = ""
		return ""
	}
	t := g.next()
	g.emitT("call", n.Typ, "@"+callee.Name, t)
	n.Loc = t
	return t
}
