// Package llvmgen lowers an (optimized or unoptimized) internal/cfg.Program
// to LLVM IR via tinygo.org/x/go-llvm, per spec.md §6.4: one opcode maps to
// one IRBuilder call, int/float/char/void/string map to i32/double/i8/void/
// i8*, arrays become [n x T] (nested for 2-D), and print_T/read_T lower to
// printf/scanf calls declared at module scope.
//
// Grounded on hhramberg-go-vslc/src/ir/llvm/transform.go: the
// context/module/builder setup, the "globals" symbol table keyed by name,
// and per-function basic-block construction. That file drives its lowering
// straight off the syntax tree with a worker-pool per global declaration
// (spec.md §5 rules concurrency like that out here); this package drives
// off the CFG's block map instead, one basic block per internal/cfg.Block,
// which is a closer match to uCIR's already-block-structured shape than
// re-deriving blocks from the AST the way the teacher does.
package llvmgen

import (
	"fmt"
	"strconv"
	"strings"

	"tinygo.org/x/go-llvm"

	"ucc/internal/cfg"
	"ucc/internal/ucir"
)

type sig struct {
	name       string
	params     []llvm.Type
	paramNames []string
	ret        llvm.Type
	retWord    string
}

// Generator owns the LLVM context/module/builder for one compilation unit.
type Generator struct {
	ctx     llvm.Context
	mod     llvm.Module
	builder llvm.Builder

	globals map[string]llvm.Value
	funcs   map[string]llvm.Value
	sigs    map[*cfg.Function]sig

	printfFn llvm.Value
	scanfFn  llvm.Value
	memcpyFn llvm.Value
}

// Generate lowers prog into a new LLVM module named moduleName.
func Generate(moduleName string, prog *cfg.Program) (llvm.Module, error) {
	g := &Generator{
		ctx:     llvm.NewContext(),
		globals: map[string]llvm.Value{},
		funcs:   map[string]llvm.Value{},
		sigs:    map[*cfg.Function]sig{},
	}
	g.mod = g.ctx.NewModule(moduleName)
	g.builder = g.ctx.NewBuilder()

	g.declareLibc()
	for _, gi := range prog.Globals {
		g.emitGlobal(gi)
	}
	for _, f := range prog.Funcs {
		g.declareFunction(f)
	}
	for _, f := range prog.Funcs {
		if err := g.emitFunction(f); err != nil {
			return g.mod, err
		}
	}
	return g.mod, nil
}

// ---------------------------------------------------------------------
// Type mapping (spec.md §6.4)
// ---------------------------------------------------------------------

func (g *Generator) scalarType(word string) llvm.Type {
	switch word {
	case "int":
		return g.ctx.Int32Type()
	case "float":
		return g.ctx.DoubleType()
	case "char":
		return g.ctx.Int8Type()
	case "string":
		return llvm.PointerType(g.ctx.Int8Type(), 0)
	default:
		return g.ctx.VoidType()
	}
}

func (g *Generator) arrayType(word string, dims []int) llvm.Type {
	t := g.scalarType(word)
	for i := len(dims) - 1; i >= 0; i-- {
		t = llvm.ArrayType(t, dims[i])
	}
	return t
}

// parseOpSuffix splits an opcode like "global_int_3_4" into its type word
// and declared dimensions, mirroring internal/ucir's opSuffix builder.
func parseOpSuffix(op string) (word string, dims []int, isPtr bool) {
	parts := strings.Split(op, "_")
	if len(parts) < 2 {
		return "", nil, false
	}
	word = parts[1]
	for _, p := range parts[2:] {
		if p == "*" {
			isPtr = true
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			dims = append(dims, n)
		}
	}
	return word, dims, isPtr
}

func verbOf(op string) string {
	return strings.SplitN(op, "_", 2)[0]
}

// ---------------------------------------------------------------------
// Module-scope declarations
// ---------------------------------------------------------------------

func (g *Generator) declareLibc() {
	i8p := llvm.PointerType(g.ctx.Int8Type(), 0)
	printfTy := llvm.FunctionType(g.ctx.Int32Type(), []llvm.Type{i8p}, true)
	g.printfFn = llvm.AddFunction(g.mod, "printf", printfTy)
	scanfTy := llvm.FunctionType(g.ctx.Int32Type(), []llvm.Type{i8p}, true)
	g.scanfFn = llvm.AddFunction(g.mod, "scanf", scanfTy)
	memcpyTy := llvm.FunctionType(g.ctx.VoidType(),
		[]llvm.Type{i8p, i8p, g.ctx.Int64Type(), g.ctx.Int1Type()}, false)
	g.memcpyFn = llvm.AddFunction(g.mod, "llvm.memcpy.p0.p0.i64", memcpyTy)
}

func (g *Generator) emitGlobal(instr ucir.Instr) {
	if instr.Op == "global_string" {
		name := strings.TrimPrefix(instr.Args[0], "@")
		lit, _ := strconv.Unquote(instr.Args[1])
		c := g.ctx.ConstString(lit, true)
		gv := llvm.AddGlobal(g.mod, c.Type(), name)
		gv.SetInitializer(c)
		gv.SetGlobalConstant(true)
		g.globals[instr.Args[0]] = gv
		return
	}
	word, dims, _ := parseOpSuffix(instr.Op)
	var ty llvm.Type
	if len(dims) > 0 {
		ty = g.arrayType(word, dims)
	} else {
		ty = g.scalarType(word)
	}
	name := strings.TrimPrefix(instr.Args[0], "@")
	gv := llvm.AddGlobal(g.mod, ty, name)
	if len(instr.Args) > 1 {
		gv.SetInitializer(g.constValue(word, dims, instr.Args[1]))
	} else {
		gv.SetInitializer(llvm.ConstNull(ty))
	}
	g.globals[instr.Args[0]] = gv
}

func (g *Generator) constValue(word string, dims []int, text string) llvm.Value {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		parts := splitTopLevel(text[1 : len(text)-1])
		elemDims := dims[1:]
		vals := make([]llvm.Value, len(parts))
		var elemTy llvm.Type
		if len(elemDims) > 0 {
			elemTy = g.arrayType(word, elemDims)
		} else {
			elemTy = g.scalarType(word)
		}
		for i, p := range parts {
			vals[i] = g.constValue(word, elemDims, p)
		}
		return llvm.ConstArray(elemTy, vals)
	}
	return g.scalarConst(word, text)
}

func (g *Generator) scalarConst(word, text string) llvm.Value {
	switch word {
	case "int":
		n, _ := strconv.Atoi(text)
		return llvm.ConstInt(g.ctx.Int32Type(), uint64(n), true)
	case "float":
		f, _ := strconv.ParseFloat(text, 64)
		return llvm.ConstFloat(g.ctx.DoubleType(), f)
	case "char":
		r, _ := strconv.Unquote(text)
		var b byte
		if len(r) > 0 {
			b = r[0]
		}
		return llvm.ConstInt(g.ctx.Int8Type(), uint64(b), false)
	case "string":
		if gv, ok := g.globals[text]; ok {
			return llvm.ConstBitCast(gv, llvm.PointerType(g.ctx.Int8Type(), 0))
		}
		return llvm.ConstNull(llvm.PointerType(g.ctx.Int8Type(), 0))
	default:
		return llvm.ConstNull(g.ctx.Int32Type())
	}
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

// ---------------------------------------------------------------------
// Function declaration / emission
// ---------------------------------------------------------------------

// inferSignature recovers a function's LLVM-level parameter and return
// types from the generator's own conventions: the first len(argNames)
// instructions of %entry are always the parameter allocs (spec.md §4.2's
// two-pass parameter lowering), and the return type word is read off
// whichever return_T instruction appears in the function.
func (g *Generator) inferSignature(f *cfg.Function) sig {
	name := strings.TrimPrefix(f.Define.Args[0], "@")
	argNames := f.Define.Args[1:]
	entry := f.Blocks[f.Entry]

	paramTypes := make([]llvm.Type, len(argNames))
	for i := range argNames {
		if i < len(entry.Instructions) && strings.HasPrefix(entry.Instructions[i].Op, "alloc_") {
			word, dims, _ := parseOpSuffix(entry.Instructions[i].Op)
			if len(dims) > 0 {
				paramTypes[i] = g.arrayType(word, dims)
			} else {
				paramTypes[i] = g.scalarType(word)
			}
		} else {
			paramTypes[i] = g.ctx.Int32Type()
		}
	}

	ret, retWord := g.ctx.VoidType(), "void"
	for _, label := range f.Order {
		b := f.Blocks[label]
		if len(b.Instructions) == 0 {
			continue
		}
		last := b.Instructions[len(b.Instructions)-1]
		if strings.HasPrefix(last.Op, "return_") && last.Op != "return_void" {
			word, _, _ := parseOpSuffix(last.Op)
			ret, retWord = g.scalarType(word), word
		}
	}
	return sig{name: name, params: paramTypes, paramNames: argNames, ret: ret, retWord: retWord}
}

func (g *Generator) declareFunction(f *cfg.Function) {
	s := g.inferSignature(f)
	fnTy := llvm.FunctionType(s.ret, s.params, false)
	fn := llvm.AddFunction(g.mod, s.name, fnTy)
	g.funcs[f.Name] = fn
	g.sigs[f] = s
}

func (g *Generator) emitFunction(f *cfg.Function) error {
	s := g.sigs[f]
	fn := g.funcs[f.Name]

	blocks := map[string]llvm.BasicBlock{}
	for _, label := range f.Order {
		blocks[label] = llvm.AddBasicBlock(fn, strings.TrimPrefix(label, "%"))
	}

	values := map[string]llvm.Value{}
	for i, pname := range s.paramNames {
		values[pname] = fn.Param(i)
	}

	for _, label := range f.Order {
		bb := blocks[label]
		g.builder.SetInsertPointAtEnd(bb)
		b := f.Blocks[label]
		var pending []llvm.Value
		for _, instr := range b.Instructions {
			if err := g.emitInstr(instr, values, blocks, s, &pending); err != nil {
				return fmt.Errorf("llvmgen: function %s: %w", f.Name, err)
			}
		}
		if bb.LastInstruction().IsNil() || !isTerminated(bb) {
			if nb, ok := blocks[b.NextBlock]; ok {
				g.builder.CreateBr(nb)
			} else if s.retWord == "void" {
				g.builder.CreateRetVoid()
			} else {
				g.builder.CreateRet(llvm.ConstNull(s.ret))
			}
		}
	}
	return nil
}

func isTerminated(bb llvm.BasicBlock) bool {
	last := bb.LastInstruction()
	if last.IsNil() {
		return false
	}
	return !last.IsATerminatorInst().IsNil()
}

// ---------------------------------------------------------------------
// Instruction lowering
// ---------------------------------------------------------------------

// addr resolves a uCIR name (temp or "@global") to the llvm.Value holding
// its address: a global variable, or the result of an earlier alloc.
func (g *Generator) addr(name string, values map[string]llvm.Value) llvm.Value {
	if strings.HasPrefix(name, "@") {
		return g.globals[name]
	}
	return values[name]
}

func (g *Generator) formatSpec(word string) string {
	switch word {
	case "float":
		return "%lf"
	case "char":
		return "%c"
	case "string":
		return "%s"
	default:
		return "%d"
	}
}

func (g *Generator) formatStringPtr(spec string) llvm.Value {
	c := g.ctx.ConstString(spec+"\n", true)
	gv := llvm.AddGlobal(g.mod, c.Type(), "")
	gv.SetInitializer(c)
	gv.SetGlobalConstant(true)
	gv.SetLinkage(llvm.PrivateLinkage)
	zero := llvm.ConstInt(g.ctx.Int32Type(), 0, false)
	return g.builder.CreateInBoundsGEP(c.Type(), gv, []llvm.Value{zero, zero}, "")
}

func (g *Generator) emitInstr(instr ucir.Instr, values map[string]llvm.Value, blocks map[string]llvm.BasicBlock, s sig, pending *[]llvm.Value) error {
	verb := verbOf(instr.Op)
	word, dims, _ := parseOpSuffix(instr.Op)

	switch verb {
	case "alloc":
		var ty llvm.Type
		if len(dims) > 0 {
			ty = g.arrayType(word, dims)
		} else {
			ty = g.scalarType(word)
		}
		values[instr.Args[0]] = g.builder.CreateAlloca(ty, strings.TrimPrefix(instr.Args[0], "%"))

	case "literal":
		values[instr.Args[1]] = g.scalarConst(word, instr.Args[0])

	case "load":
		var ty llvm.Type
		if len(dims) > 0 {
			ty = g.arrayType(word, dims)
		} else {
			ty = g.scalarType(word)
		}
		values[instr.Args[1]] = g.builder.CreateLoad(ty, g.addr(instr.Args[0], values), strings.TrimPrefix(instr.Args[1], "%"))

	case "store":
		dst := g.addr(instr.Args[1], values)
		if len(dims) > 0 {
			// Whole-array copy (e.g. a local array initialized from a
			// global literal): memcpy rather than a scalar store.
			size := elemByteSize(word)
			for _, d := range dims {
				size *= d
			}
			i8p := llvm.PointerType(g.ctx.Int8Type(), 0)
			srcBc := g.builder.CreateBitCast(g.addr(instr.Args[0], values), i8p, "")
			dstBc := g.builder.CreateBitCast(dst, i8p, "")
			g.builder.CreateCall(g.memcpyFn.GlobalValueType(), g.memcpyFn, []llvm.Value{dstBc, srcBc,
				llvm.ConstInt(g.ctx.Int64Type(), uint64(size), false),
				llvm.ConstInt(g.ctx.Int1Type(), 0, false)}, "")
			return nil
		}
		g.builder.CreateStore(g.operand(instr.Args[0], values), dst)

	case "elem":
		baseTy := g.scalarType(word)
		basePtr := g.addr(instr.Args[0], values)
		flatPtr := g.builder.CreateBitCast(basePtr, llvm.PointerType(baseTy, 0), "")
		idx := g.operand(instr.Args[1], values)
		values[instr.Args[2]] = g.builder.CreateInBoundsGEP(baseTy, flatPtr, []llvm.Value{idx}, strings.TrimPrefix(instr.Args[2], "%"))

	case "add", "sub", "mul", "div", "mod":
		l, r := g.operand(instr.Args[0], values), g.operand(instr.Args[1], values)
		values[instr.Args[2]] = g.arith(verb, word, l, r)

	case "lt", "le", "gt", "ge", "eq", "ne":
		l, r := g.operand(instr.Args[0], values), g.operand(instr.Args[1], values)
		values[instr.Args[2]] = g.relational(verb, word, l, r)

	case "and", "or":
		l, r := g.operand(instr.Args[0], values), g.operand(instr.Args[1], values)
		var v llvm.Value
		if verb == "and" {
			v = g.builder.CreateAnd(l, r, "")
		} else {
			v = g.builder.CreateOr(l, r, "")
		}
		values[instr.Args[2]] = v

	case "not":
		v := g.operand(instr.Args[0], values)
		zero := llvm.ConstInt(v.Type(), 0, false)
		cmp := g.builder.CreateICmp(llvm.IntEQ, v, zero, "")
		values[instr.Args[1]] = g.builder.CreateZExt(cmp, g.ctx.Int32Type(), "")

	case "sitofp":
		values[instr.Args[1]] = g.builder.CreateSIToFP(g.operand(instr.Args[0], values), g.ctx.DoubleType(), "")

	case "fptosi":
		values[instr.Args[1]] = g.builder.CreateFPToSI(g.operand(instr.Args[0], values), g.ctx.Int32Type(), "")

	case "cast":
		parts := strings.Split(instr.Op, "_")
		dstWord := parts[len(parts)-1]
		values[instr.Args[1]] = g.convert(dstWord, instr.Args[0], values)

	case "param":
		*pending = append(*pending, g.operand(instr.Args[0], values))

	case "call":
		callee := g.funcs[instr.Args[0]]
		args := *pending
		*pending = nil
		ret := g.builder.CreateCall(callee.GlobalValueType(), callee, args, "")
		if len(instr.Args) > 1 {
			values[instr.Args[1]] = ret
		}

	case "print":
		spec := g.formatSpec(word)
		fmtPtr := g.formatStringPtr(spec)
		var v llvm.Value
		if len(instr.Args) > 0 {
			v = g.operand(instr.Args[0], values)
			if word == "string" {
				v = g.builder.CreateBitCast(v, llvm.PointerType(g.ctx.Int8Type(), 0), "")
			}
		}
		callArgs := []llvm.Value{fmtPtr}
		if !v.IsNil() {
			callArgs = append(callArgs, v)
		}
		g.builder.CreateCall(g.printfFn.GlobalValueType(), g.printfFn, callArgs, "")

	case "read":
		ty := g.scalarType(word)
		slot := g.builder.CreateAlloca(ty, "")
		fmtPtr := g.formatStringPtr(g.formatSpec(word))
		g.builder.CreateCall(g.scanfFn.GlobalValueType(), g.scanfFn, []llvm.Value{fmtPtr, slot}, "")
		values[instr.Args[0]] = g.builder.CreateLoad(ty, slot, "")

	case "jump":
		g.builder.CreateBr(blocks[instr.Args[0]])

	case "cbranch":
		cond := g.operand(instr.Args[0], values)
		zero := llvm.ConstInt(cond.Type(), 0, false)
		b := g.builder.CreateICmp(llvm.IntNE, cond, zero, "")
		g.builder.CreateCondBr(b, blocks[instr.Args[1]], blocks[instr.Args[2]])

	case "return":
		if word == "void" || len(instr.Args) == 0 {
			g.builder.CreateRetVoid()
		} else {
			g.builder.CreateRet(g.operand(instr.Args[0], values))
		}

	default:
		return fmt.Errorf("unsupported opcode %q", instr.Op)
	}
	return nil
}

// operand resolves a uCIR arg to a value: a literal integer/float text, or
// a previously computed temp/global value.
func (g *Generator) operand(name string, values map[string]llvm.Value) llvm.Value {
	if v, ok := values[name]; ok {
		return v
	}
	if strings.HasPrefix(name, "@") {
		return g.globals[name]
	}
	if n, err := strconv.Atoi(name); err == nil {
		return llvm.ConstInt(g.ctx.Int32Type(), uint64(n), true)
	}
	if f, err := strconv.ParseFloat(name, 64); err == nil {
		return llvm.ConstFloat(g.ctx.DoubleType(), f)
	}
	return llvm.ConstNull(g.ctx.Int32Type())
}

func (g *Generator) arith(verb, word string, l, r llvm.Value) llvm.Value {
	if word == "float" {
		switch verb {
		case "add":
			return g.builder.CreateFAdd(l, r, "")
		case "sub":
			return g.builder.CreateFSub(l, r, "")
		case "mul":
			return g.builder.CreateFMul(l, r, "")
		case "div":
			return g.builder.CreateFDiv(l, r, "")
		default:
			return g.builder.CreateFRem(l, r, "")
		}
	}
	switch verb {
	case "add":
		return g.builder.CreateAdd(l, r, "")
	case "sub":
		return g.builder.CreateSub(l, r, "")
	case "mul":
		return g.builder.CreateMul(l, r, "")
	case "div":
		return g.builder.CreateSDiv(l, r, "")
	default:
		return g.builder.CreateSRem(l, r, "")
	}
}

func (g *Generator) relational(verb, word string, l, r llvm.Value) llvm.Value {
	var cmp llvm.Value
	if word == "float" {
		var pred llvm.FloatPredicate
		switch verb {
		case "lt":
			pred = llvm.FloatOLT
		case "le":
			pred = llvm.FloatOLE
		case "gt":
			pred = llvm.FloatOGT
		case "ge":
			pred = llvm.FloatOGE
		case "eq":
			pred = llvm.FloatOEQ
		default:
			pred = llvm.FloatONE
		}
		cmp = g.builder.CreateFCmp(pred, l, r, "")
	} else {
		var pred llvm.IntPredicate
		switch verb {
		case "lt":
			pred = llvm.IntSLT
		case "le":
			pred = llvm.IntSLE
		case "gt":
			pred = llvm.IntSGT
		case "ge":
			pred = llvm.IntSGE
		case "eq":
			pred = llvm.IntEQ
		default:
			pred = llvm.IntNE
		}
		cmp = g.builder.CreateICmp(pred, l, r, "")
	}
	return g.builder.CreateZExt(cmp, g.ctx.Int32Type(), "")
}

func (g *Generator) convert(toWord, from string, values map[string]llvm.Value) llvm.Value {
	v := g.operand(from, values)
	target := g.scalarType(toWord)
	switch {
	case v.Type() == target:
		return v
	case target.TypeKind() == llvm.IntegerTypeKind:
		return g.builder.CreateIntCast(v, target, "")
	case target.TypeKind() == llvm.DoubleTypeKind:
		return g.builder.CreateSIToFP(v, target, "")
	default:
		return v
	}
}

func elemByteSize(word string) int {
	switch word {
	case "float":
		return 8
	case "char":
		return 1
	default:
		return 4
	}
}
