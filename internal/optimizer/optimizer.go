// Package optimizer implements the fixed, per-function dataflow pipeline
// of spec.md §4.4: reaching definitions, constant propagation, live
// variables, unreachable-code elimination, dead-code elimination,
// unused-alloc elimination, and single-jump coalescing, run in that order
// over an internal/cfg.Program and regenerated back to flat uCIR.
//
// Grounded on hhramberg-go-vslc/src/ir/lir/live.go's liveness worklist
// (backward, reverse-postorder, use/def sets per block) and
// src/ir/optimise.go's constant-folding table; both are generalized here
// from VSL's single liveness pass to the spec's full seven-step pipeline.
package optimizer

import (
	"strconv"
	"strings"

	"ucc/internal/cfg"
	"ucc/internal/ucir"
)

// Phase selects which stages of the pipeline actually rewrite the
// program, matching the driver's --opt=ctm|dce|cfg|all flag (spec.md
// §6.1). Analyses (RD/LV) always run in full; Phase only gates rewrites,
// since later analyses depend on earlier ones having been computed.
type Phase struct {
	ConstantFold bool
	DeadCode     bool
	CFGSimplify  bool
}

// AllPhases runs every rewrite in the pipeline.
var AllPhases = Phase{ConstantFold: true, DeadCode: true, CFGSimplify: true}

// PhaseByName maps a --opt flag value to its Phase.
func PhaseByName(name string) Phase {
	switch name {
	case "ctm":
		return Phase{ConstantFold: true}
	case "dce":
		return Phase{DeadCode: true}
	case "cfg":
		return Phase{CFGSimplify: true}
	default:
		return AllPhases
	}
}

// Optimize runs the pipeline over every function in prog and regenerates
// a flat ucir.Program (spec.md §4.4 "Code regeneration").
func Optimize(prog *cfg.Program, phase Phase) *ucir.Program {
	globals := globalNames(prog.Globals)
	for _, f := range prog.Funcs {
		reachingDefinitions(f)
		if phase.ConstantFold {
			constantPropagation(f)
		}
		liveVariables(f, globals)
		unreachableCodeElimination(f)
		if phase.DeadCode {
			deadCodeElimination(f)
			unusedAllocElimination(f)
		}
		if phase.CFGSimplify {
			singleJumpCoalescing(f)
		}
	}
	return regenerate(prog)
}

func globalNames(globals []ucir.Instr) map[string]bool {
	names := map[string]bool{}
	for _, g := range globals {
		if len(g.Args) > 0 {
			names[g.Args[0]] = true
		}
	}
	return names
}

// regenerate walks functions and blocks in textual order (f.Order), not
// the depth-first DiscoveryOrder, skipping the synthetic "%entry" label
// (spec.md §4.4 "Code regeneration").
func regenerate(prog *cfg.Program) *ucir.Program {
	out := &ucir.Program{Globals: prog.Globals}
	for _, f := range prog.Funcs {
		out.Code = append(out.Code, f.Define)
		for _, label := range f.Order {
			b, ok := f.Blocks[label]
			if !ok {
				continue
			}
			if label != f.Entry {
				out.Code = append(out.Code, ucir.Instr{Op: label + ":"})
			}
			out.Code = append(out.Code, b.Instructions...)
		}
	}
	return out
}

// ---------------------------------------------------------------------
// Shared use-def classification (spec.md §4.4's "get_use_def" table,
// reused by both reaching-definitions and live-variable analysis).
// ---------------------------------------------------------------------

func verbOf(op string) string {
	return strings.SplitN(op, "_", 2)[0]
}

func typeSuffix(op string) string {
	parts := strings.SplitN(op, "_", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

// defUse classifies instr per spec.md §4.4's use-def rule: which operand
// (if any) it assigns, and which operands it reads as values (as opposed
// to label or callee-name operands, which are not uCIR temporaries).
func defUse(instr ucir.Instr) (def string, hasDef bool, uses []string) {
	switch verbOf(instr.Op) {
	case "literal":
		return instr.Args[1], true, nil
	case "load", "store":
		return instr.Args[1], true, []string{instr.Args[0]}
	case "elem":
		return instr.Args[2], true, []string{instr.Args[0], instr.Args[1]}
	case "add", "sub", "mul", "div", "mod", "lt", "le", "gt", "ge", "eq", "ne", "and", "or":
		return instr.Args[2], true, []string{instr.Args[0], instr.Args[1]}
	case "not", "sitofp", "fptosi", "cast":
		return instr.Args[1], true, []string{instr.Args[0]}
	case "call":
		if len(instr.Args) > 1 {
			return instr.Args[1], true, nil
		}
		return "", false, nil
	case "read", "alloc":
		return instr.Args[0], true, nil
	case "param":
		return "", false, []string{instr.Args[0]}
	case "print":
		if len(instr.Args) > 0 {
			return "", false, []string{instr.Args[0]}
		}
		return "", false, nil
	case "cbranch":
		return "", false, []string{instr.Args[0]}
	case "return":
		if len(instr.Args) > 0 {
			return "", false, []string{instr.Args[0]}
		}
		return "", false, nil
	default: // jump and other label-only/no-operand tuples.
		return "", false, nil
	}
}

func referencesGlobal(instr ucir.Instr) bool {
	for _, a := range instr.Args {
		if strings.HasPrefix(a, "@") {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------
// 1. Reaching definitions (forward, union)
// ---------------------------------------------------------------------

func computeDefsByTemp(f *cfg.Function) map[string][]cfg.DefID {
	defs := map[string][]cfg.DefID{}
	for _, label := range f.Order {
		b := f.Blocks[label]
		for idx, instr := range b.Instructions {
			if t, ok, _ := defUse(instr); ok {
				defs[t] = append(defs[t], cfg.DefID{Block: label, Idx: idx})
			}
		}
	}
	return defs
}

func reachingDefinitions(f *cfg.Function) {
	defsByTemp := computeDefsByTemp(f)

	for _, label := range f.Order {
		b := f.Blocks[label]
		lastInBlock := map[string]cfg.DefID{}
		for idx, instr := range b.Instructions {
			if t, ok, _ := defUse(instr); ok {
				lastInBlock[t] = cfg.DefID{Block: label, Idx: idx}
			}
		}
		gen := map[cfg.DefID]bool{}
		kill := map[cfg.DefID]bool{}
		for t, id := range lastInBlock {
			gen[id] = true
			for _, other := range defsByTemp[t] {
				if other != id {
					kill[other] = true
				}
			}
		}
		b.RD = &cfg.RD{Gen: gen, Kill: kill, In: map[cfg.DefID]bool{}, Out: map[cfg.DefID]bool{}}
	}

	changed := true
	for changed {
		changed = false
		for _, label := range f.Order {
			b := f.Blocks[label]
			in := map[cfg.DefID]bool{}
			for _, p := range b.Predecessors {
				if pb, ok := f.Blocks[p]; ok && pb.RD != nil {
					for d := range pb.RD.Out {
						in[d] = true
					}
				}
			}
			out := map[cfg.DefID]bool{}
			for d := range b.RD.Gen {
				out[d] = true
			}
			for d := range in {
				if !b.RD.Kill[d] {
					out[d] = true
				}
			}
			if !defSetEqual(b.RD.In, in) || !defSetEqual(b.RD.Out, out) {
				changed = true
			}
			b.RD.In, b.RD.Out = in, out
		}
	}
}

func defSetEqual(a, b map[cfg.DefID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------
// 2. Constant propagation over RD
// ---------------------------------------------------------------------

func constantPropagation(f *cfg.Function) {
	for _, label := range f.Order {
		b, ok := f.Blocks[label]
		if !ok || b.RD == nil {
			continue
		}
		known := seedConstants(f, b)
		sweepBlock(f, b, known)
	}
}

func seedConstants(f *cfg.Function, b *cfg.Block) map[string]string {
	known := map[string]string{}
	conflicted := map[string]bool{}
	for id := range b.RD.In {
		db, ok := f.Blocks[id.Block]
		if !ok || id.Idx >= len(db.Instructions) {
			continue
		}
		instr := db.Instructions[id.Idx]
		if verbOf(instr.Op) != "literal" {
			continue
		}
		target, val := instr.Args[1], instr.Args[0]
		if conflicted[target] {
			continue
		}
		if prev, seen := known[target]; seen && prev != val {
			conflicted[target] = true
			delete(known, target)
			continue
		}
		known[target] = val
	}
	return known
}

func sweepBlock(f *cfg.Function, b *cfg.Block, known map[string]string) {
	for i := 0; i < len(b.Instructions); i++ {
		instr := b.Instructions[i]
		verb := verbOf(instr.Op)
		switch verb {
		case "literal":
			known[instr.Args[1]] = instr.Args[0]
		case "load", "store":
			src := instr.Args[0]
			if val, ok := known[src]; ok {
				target := instr.Args[1]
				b.Instructions[i] = ucir.Instr{Op: "literal_" + typeSuffix(instr.Op), Args: []string{val, target}, Type: instr.Type}
				known[target] = val
			} else {
				delete(known, instr.Args[1])
			}
		case "add", "sub", "mul", "div", "mod", "and", "or", "eq", "ne", "lt", "le", "gt", "ge":
			l, lok := known[instr.Args[0]]
			r, rok := known[instr.Args[1]]
			target := instr.Args[2]
			if lok && rok {
				word := typeSuffix(instr.Op)
				if result, ok := foldBinary(verb, word, l, r); ok {
					b.Instructions[i] = ucir.Instr{Op: "literal_" + resultWord(verb, word), Args: []string{result, target}, Type: instr.Type}
					known[target] = result
					continue
				}
			}
			delete(known, target)
		case "cbranch":
			val, ok := known[instr.Args[0]]
			if !ok {
				continue
			}
			liveTarget, deadTarget := instr.Args[2], instr.Args[1]
			if val != "0" {
				liveTarget, deadTarget = instr.Args[1], instr.Args[2]
			}
			b.Instructions[i] = ucir.Instr{Op: "jump", Args: []string{liveTarget}}
			b.Cond, b.Taken, b.FallThrough = false, "", ""
			b.NextBlock = liveTarget
			b.Successors = removeOneLocal(b.Successors, deadTarget)
			unlinkIfUnreferenced(f, b.Label, deadTarget)
		default:
			if def, ok, _ := defUse(instr); ok {
				delete(known, def)
			}
		}
	}
}

func resultWord(verb, word string) string {
	switch verb {
	case "eq", "ne", "lt", "le", "gt", "ge":
		return "int"
	default:
		return word
	}
}

func foldBinary(verb, word, l, r string) (string, bool) {
	if word == "float" {
		lf, err1 := strconv.ParseFloat(l, 32)
		rf, err2 := strconv.ParseFloat(r, 32)
		if err1 != nil || err2 != nil {
			return "", false
		}
		switch verb {
		case "add":
			return fmtFloat(lf + rf), true
		case "sub":
			return fmtFloat(lf - rf), true
		case "mul":
			return fmtFloat(lf * rf), true
		case "div":
			if rf == 0 {
				return "", false
			}
			return fmtFloat(lf / rf), true
		case "eq":
			return boolStr(lf == rf), true
		case "ne":
			return boolStr(lf != rf), true
		case "lt":
			return boolStr(lf < rf), true
		case "le":
			return boolStr(lf <= rf), true
		case "gt":
			return boolStr(lf > rf), true
		case "ge":
			return boolStr(lf >= rf), true
		}
		return "", false
	}

	li, err1 := strconv.Atoi(l)
	ri, err2 := strconv.Atoi(r)
	if err1 != nil || err2 != nil {
		return "", false
	}
	switch verb {
	case "add":
		return strconv.Itoa(li + ri), true
	case "sub":
		return strconv.Itoa(li - ri), true
	case "mul":
		return strconv.Itoa(li * ri), true
	case "div":
		if ri == 0 {
			return "", false
		}
		return strconv.Itoa(floorDiv(li, ri)), true
	case "mod":
		if ri == 0 {
			return "", false
		}
		return strconv.Itoa(floorMod(li, ri)), true
	case "and":
		if word == "int" {
			return strconv.Itoa(li & ri), true
		}
		return boolStr(li != 0 && ri != 0), true
	case "or":
		if word == "int" {
			return strconv.Itoa(li | ri), true
		}
		return boolStr(li != 0 || ri != 0), true
	case "eq":
		return boolStr(li == ri), true
	case "ne":
		return boolStr(li != ri), true
	case "lt":
		return boolStr(li < ri), true
	case "le":
		return boolStr(li <= ri), true
	case "gt":
		return boolStr(li > ri), true
	case "ge":
		return boolStr(li >= ri), true
	}
	return "", false
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && (a < 0) != (b < 0) {
		m += b
	}
	return m
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 32)
}

func boolStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func unlinkIfUnreferenced(f *cfg.Function, from, dead string) {
	db, ok := f.Blocks[dead]
	if !ok {
		return
	}
	db.Predecessors = removeOneLocal(db.Predecessors, from)
	if len(db.Predecessors) == 0 && dead != f.Entry {
		cfg.RemoveBlock(f, dead)
	}
}

func removeOneLocal(list []string, target string) []string {
	for i, l := range list {
		if l == target {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// ---------------------------------------------------------------------
// 3. Live-variable analysis (backward, union)
// ---------------------------------------------------------------------

func computeUseDef(b *cfg.Block) (use, defs map[string]bool) {
	use, defs = map[string]bool{}, map[string]bool{}
	for _, instr := range b.Instructions {
		def, hasDef, uses := defUse(instr)
		for _, u := range uses {
			if !defs[u] {
				use[u] = true
			}
		}
		if hasDef {
			defs[def] = true
		}
	}
	return
}

func liveVariables(f *cfg.Function, globals map[string]bool) {
	for _, label := range f.Order {
		b := f.Blocks[label]
		use, defs := computeUseDef(b)
		b.LV = &cfg.LV{Use: use, Defs: defs, In: map[string]bool{}, Out: map[string]bool{}}
	}

	order := f.ReversePostorder()
	changed := true
	for changed {
		changed = false
		for _, label := range order {
			b, ok := f.Blocks[label]
			if !ok {
				continue
			}
			out := map[string]bool{}
			for _, s := range b.Successors {
				if sb, ok := f.Blocks[s]; ok && sb.LV != nil {
					for v := range sb.LV.In {
						out[v] = true
					}
				}
			}
			in := map[string]bool{}
			for v := range b.LV.Use {
				in[v] = true
			}
			for v := range out {
				if !b.LV.Defs[v] {
					in[v] = true
				}
			}
			if !strSetEqual(b.LV.In, in) || !strSetEqual(b.LV.Out, out) {
				changed = true
			}
			b.LV.In, b.LV.Out = in, out
		}
	}

	for _, label := range f.Order {
		b := f.Blocks[label]
		for g := range globals {
			b.LV.Out[g] = true
		}
	}
}

func strSetEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------
// 4. Unreachable-code elimination
// ---------------------------------------------------------------------

func unreachableCodeElimination(f *cfg.Function) {
	for _, label := range f.Order {
		b := f.Blocks[label]
		for i, instr := range b.Instructions {
			if instr.IsTerminator() {
				b.Instructions = b.Instructions[:i+1]
				break
			}
		}
	}
}

// ---------------------------------------------------------------------
// 5. Dead-code elimination
// ---------------------------------------------------------------------

func deadCodeElimination(f *cfg.Function) {
	for _, label := range f.Order {
		b := f.Blocks[label]
		if b.LV == nil {
			continue
		}
		live := map[string]bool{}
		for d := range b.LV.Defs {
			if b.LV.Out[d] {
				live[d] = true
			}
		}
		var rev []ucir.Instr
		for i := len(b.Instructions) - 1; i >= 0; i-- {
			instr := b.Instructions[i]
			def, hasDef, uses := defUse(instr)
			exempt := verbOf(instr.Op) == "elem" || verbOf(instr.Op) == "alloc" || referencesGlobal(instr)
			if hasDef && !live[def] && !exempt {
				continue
			}
			if hasDef {
				delete(live, def)
			}
			for _, u := range uses {
				live[u] = true
			}
			rev = append(rev, instr)
		}
		kept := make([]ucir.Instr, len(rev))
		for i, instr := range rev {
			kept[len(rev)-1-i] = instr
		}
		b.Instructions = kept
	}
}

// ---------------------------------------------------------------------
// 6. Unused-alloc elimination
// ---------------------------------------------------------------------

func unusedAllocElimination(f *cfg.Function) {
	usedAnywhere := map[string]bool{}
	for _, label := range f.Order {
		for u := range f.Blocks[label].LV.Use {
			usedAnywhere[u] = true
		}
	}
	for _, label := range f.Order {
		b := f.Blocks[label]
		kept := make([]ucir.Instr, 0, len(b.Instructions))
		for _, instr := range b.Instructions {
			if strings.HasPrefix(instr.Op, "alloc_") && !usedAnywhere[instr.Args[0]] {
				continue
			}
			kept = append(kept, instr)
		}
		b.Instructions = kept
	}
}

// ---------------------------------------------------------------------
// 7. Single-jump coalescing
// ---------------------------------------------------------------------

func singleJumpCoalescing(f *cfg.Function) {
	changed := true
	for changed {
		changed = false
		for _, label := range append([]string{}, f.Order...) {
			b, ok := f.Blocks[label]
			if !ok || label == f.Entry {
				continue
			}
			if len(b.Instructions) != 1 || b.Instructions[0].Op != "jump" {
				continue
			}
			target := b.Instructions[0].Args[0]
			if target == label {
				continue
			}
			for _, pLabel := range append([]string{}, b.Predecessors...) {
				if p, ok := f.Blocks[pLabel]; ok {
					retarget(f, p, label, target)
				}
			}
			cfg.RemoveBlock(f, label)
			changed = true
		}
	}
}

func retarget(f *cfg.Function, p *cfg.Block, from, to string) {
	if p.Cond {
		if p.Taken == from {
			p.Taken = to
			rewriteCbranchArg(p, 1, to)
		}
		if p.FallThrough == from {
			p.FallThrough = to
			rewriteCbranchArg(p, 2, to)
			p.NextBlock = to
		}
	} else {
		if len(p.Instructions) > 0 {
			last := &p.Instructions[len(p.Instructions)-1]
			if last.Op == "jump" && last.Args[0] == from {
				last.Args[0] = to
			}
		}
		if p.NextBlock == from {
			p.NextBlock = to
		}
	}
	p.Successors = replaceOne(p.Successors, from, to)
	if tb, ok := f.Blocks[to]; ok {
		tb.Predecessors = append(tb.Predecessors, p.Label)
	}
}

func rewriteCbranchArg(p *cfg.Block, argIdx int, val string) {
	if len(p.Instructions) == 0 {
		return
	}
	last := &p.Instructions[len(p.Instructions)-1]
	if last.Op == "cbranch" && argIdx < len(last.Args) {
		last.Args[argIdx] = val
	}
}

func replaceOne(list []string, from, to string) []string {
	for i, l := range list {
		if l == from {
			out := append([]string{}, list...)
			out[i] = to
			return out
		}
	}
	return list
}
