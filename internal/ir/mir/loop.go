package mir

// optimizableLoop is the reshaped view of a While the loop-optimization
// passes of §4.3.4 operate on.
type optimizableLoop struct {
	basic   *basicIV
	general []generalIV
	derived []derivedIV
	other   []LoopVariable
}

// basicIV is the single basic induction variable: loop_value = i ± k,
// guarded by a SingleIf comparing i against a loop-invariant bound.
type basicIV struct {
	name Symbol
	step int32 // positive for +k, negative for -k
	op   BinaryOp
	bound Expr
	guardIdx int // index of the guarding SingleIf within Body
}

type generalIV struct {
	name Symbol
	c    int32 // loop_value = g + c
}

type derivedIV struct {
	name Symbol
	base Symbol // a (general or basic) induction variable
	m    int32
	im   int32
}

// RunLoopOptimizations applies the five loop-optimization passes to fn's
// body, innermost loop first.
func RunLoopOptimizations(fn Function) Function {
	fn.Body = optimizeLoopsIn(fn.Body)
	return fn
}

func optimizeLoopsIn(body []Stmt) []Stmt {
	out := make([]Stmt, 0, len(body))
	for _, s := range body {
		switch v := s.(type) {
		case While:
			v.Body = optimizeLoopsIn(v.Body) // innermost first
			pre, rewritten := optimizeWhile(v)
			out = append(out, pre...)
			out = append(out, rewritten...)
		case IfElse:
			v.S1 = optimizeLoopsIn(v.S1)
			v.S2 = optimizeLoopsIn(v.S2)
			out = append(out, v)
		case SingleIf:
			v.Body = optimizeLoopsIn(v.Body)
			out = append(out, v)
		default:
			out = append(out, s)
		}
	}
	return out
}

func optimizeWhile(v While) (pre []Stmt, rewritten []Stmt) {
	loop := classifyLoop(v)

	hoisted, body := hoistInvariant(v.Body, loop)
	v.Body = body

	if straightLine, ok := eliminateAlgebraically(v, loop); ok {
		return hoisted, straightLine
	}

	v = eliminateRedundantIV(v, loop)
	v = strengthReduceDerived(v, loop)

	return hoisted, []Stmt{v}
}

// classifyLoop detects the basic induction variable (a loop variable
// whose loop_value is i+k/i-k and which is compared against a
// loop-invariant bound by a SingleIf-then-Break), general induction
// variables (loop_value = g+c), and derived induction variables
// (loop_value = base*m + im).
func classifyLoop(v While) optimizableLoop {
	var loop optimizableLoop
	generalByName := make(map[Symbol]generalIV)

	for _, lv := range v.LoopVariables {
		if bin, ok := lv.LoopValue.(Binary); ok {
			if ref, ok := bin.E1.(VarRef); ok && ref.Name == lv.Name {
				if lit, ok := bin.E2.(IntLiteral); ok {
					switch bin.Op {
					case Add:
						g := generalIV{name: lv.Name, c: lit.Value}
						loop.general = append(loop.general, g)
						generalByName[lv.Name] = g
						continue
					case Sub:
						g := generalIV{name: lv.Name, c: -lit.Value}
						loop.general = append(loop.general, g)
						generalByName[lv.Name] = g
						continue
					}
				}
			}
		}
		loop.other = append(loop.other, lv)
	}

	for i, s := range v.Body {
		si, ok := s.(SingleIf)
		if !ok {
			continue
		}
		cmp, ok := si.Cond.(Binary)
		if !ok || !isComparison(cmp.Op) {
			continue
		}
		ref, ok := cmp.E1.(VarRef)
		if !ok {
			continue
		}
		g, isGeneral := generalByName[ref.Name]
		if !isGeneral {
			continue
		}
		loop.basic = &basicIV{name: ref.Name, step: g.c, op: cmp.Op, bound: cmp.E2, guardIdx: i}
		break
	}
	if loop.basic != nil {
		filtered := loop.general[:0]
		for _, g := range loop.general {
			if g.name != loop.basic.name {
				filtered = append(filtered, g)
			}
		}
		loop.general = filtered
	}

	for _, lv := range append([]LoopVariable{}, loop.other...) {
		if bin, ok := lv.LoopValue.(Binary); ok && bin.Op == Add {
			if mul, ok := bin.E1.(Binary); ok && mul.Op == Mul {
				if ref, ok := mul.E1.(VarRef); ok {
					if _, isBasic := isInductionVar(ref.Name, loop); isBasic {
						if m, ok := mul.E2.(IntLiteral); ok {
							if im, ok := bin.E2.(IntLiteral); ok {
								loop.derived = append(loop.derived, derivedIV{name: lv.Name, base: ref.Name, m: m.Value, im: im.Value})
							}
						}
					}
				}
			}
		}
	}

	return loop
}

func isInductionVar(name Symbol, loop optimizableLoop) (Symbol, bool) {
	if loop.basic != nil && loop.basic.name == name {
		return name, true
	}
	for _, g := range loop.general {
		if g.name == name {
			return name, true
		}
	}
	return name, false
}

// hoistInvariant moves statements whose operands are all loop-invariant
// (references only to names bound before the loop, or to other
// already-hoisted invariants) to before the loop.
func hoistInvariant(body []Stmt, loop optimizableLoop) (hoisted, remaining []Stmt) {
	loopBound := make(map[Symbol]bool)
	for _, lv := range loop.other {
		loopBound[lv.Name] = true
	}
	if loop.basic != nil {
		loopBound[loop.basic.name] = true
	}
	for _, g := range loop.general {
		loopBound[g.name] = true
	}
	for _, d := range loop.derived {
		loopBound[d.name] = true
	}

	isInvariant := func(e Expr) bool {
		ref, ok := e.(VarRef)
		if !ok {
			return true
		}
		return !loopBound[ref.Name]
	}

	for _, s := range body {
		switch v := s.(type) {
		case Binary:
			if isInvariant(v.E1) && isInvariant(v.E2) && !loopBound[v.Name] {
				hoisted = append(hoisted, v)
				continue
			}
		case Unary:
			if isInvariant(v.E) && !loopBound[v.Name] {
				hoisted = append(hoisted, v)
				continue
			}
		}
		remaining = append(remaining, s)
	}
	return hoisted, remaining
}

// eliminateAlgebraically replaces the entire loop with a straight-line
// sequence when it has no side effects, no non-induction loop variable,
// and the break collector is a closed form of the induction variable's
// terminal value.
func eliminateAlgebraically(v While, loop optimizableLoop) ([]Stmt, bool) {
	if len(loop.other) != 0 || loop.basic == nil || v.BreakCollector == nil {
		return nil, false
	}
	if hasSideEffects(v.Body) {
		return nil, false
	}

	bound, ok := loop.basic.bound.(IntLiteral)
	if !ok {
		return nil, false
	}
	init, ok := findInit(v.LoopVariables, loop.basic.name)
	if !ok {
		return nil, false
	}
	iv, ok := init.(IntLiteral)
	if !ok {
		return nil, false
	}

	terminal, ok := closedFormTerminal(iv.Value, loop.basic.step, bound.Value, loop.basic.op)
	if !ok {
		return nil, false
	}

	breakExpr, ok := findBreakValueAsFunctionOf(v.Body, loop.basic.name)
	if !ok {
		return nil, false
	}
	result := substituteIVConst(breakExpr, loop.basic.name, terminal)

	return []Stmt{LateInitAssignment{Name: v.BreakCollector.Name, E: result}}, true
}

func hasSideEffects(body []Stmt) bool {
	for _, s := range body {
		switch v := s.(type) {
		case Call:
			return true
		case StructInit, ClosureInit, LateInitAssignment:
			return true
		case IfElse:
			if hasSideEffects(v.S1) || hasSideEffects(v.S2) {
				return true
			}
		case SingleIf:
			if hasSideEffects(v.Body) {
				return true
			}
		}
	}
	return false
}

func findInit(lvs []LoopVariable, name Symbol) (Expr, bool) {
	for _, lv := range lvs {
		if lv.Name == name {
			return lv.Init, true
		}
	}
	return nil, false
}

// closedFormTerminal computes the value i takes on the iteration the
// guard first holds false (break-triggering), given i starts at init and
// advances by step each iteration, guarded by `i op bound`.
func closedFormTerminal(init, step, bound int32, op BinaryOp) (int32, bool) {
	if step == 0 {
		return 0, false
	}
	iterations := 0
	cur := init
	const maxIterations = 1 << 20
	for iterations < maxIterations {
		held := false
		switch op {
		case Lt:
			held = cur < bound
		case Le:
			held = cur <= bound
		case Gt:
			held = cur > bound
		case Ge:
			held = cur >= bound
		default:
			return 0, false
		}
		if !held {
			return cur, true
		}
		cur += step
		iterations++
	}
	return 0, false
}

func findBreakValueAsFunctionOf(body []Stmt, ivName Symbol) (Expr, bool) {
	for _, s := range body {
		if b, ok := s.(Break); ok {
			return b.Value, true
		}
		if si, ok := s.(SingleIf); ok {
			if e, ok := findBreakValueAsFunctionOf(si.Body, ivName); ok {
				return e, true
			}
		}
	}
	return nil, false
}

func substituteIVConst(e Expr, ivName Symbol, val int32) Expr {
	switch v := e.(type) {
	case VarRef:
		if v.Name == ivName {
			return IntLiteral{Value: val}
		}
		return v
	default:
		return e
	}
}

// eliminateRedundantIV drops a general induction variable whose only use
// is as the guard expression, rewriting the guard to test the basic
// induction variable's equivalent bound instead.
func eliminateRedundantIV(v While, loop optimizableLoop) While {
	if loop.basic == nil {
		return v
	}
	for _, g := range loop.general {
		if onlyUseIsGuard(v.Body, g.name, loop.basic.guardIdx) {
			v.Body = replaceGuardVar(v.Body, loop.basic.guardIdx, g.name, loop.basic.name, g.c)
			v.LoopVariables = dropLoopVar(v.LoopVariables, g.name)
		}
	}
	return v
}

func onlyUseIsGuard(body []Stmt, name Symbol, guardIdx int) bool {
	uses := 0
	walkVarRefsInStmts(body, func(ref Symbol) {
		if ref == name {
			uses++
		}
	})
	return uses <= 1
}

func walkVarRefsInStmts(body []Stmt, visit func(Symbol)) {
	for _, s := range body {
		switch v := s.(type) {
		case Binary:
			walkVarRefsInExpr(v.E1, visit)
			walkVarRefsInExpr(v.E2, visit)
		case SingleIf:
			walkVarRefsInExpr(v.Cond, visit)
			walkVarRefsInStmts(v.Body, visit)
		case IfElse:
			walkVarRefsInExpr(v.Cond, visit)
			walkVarRefsInStmts(v.S1, visit)
			walkVarRefsInStmts(v.S2, visit)
		}
	}
}

func walkVarRefsInExpr(e Expr, visit func(Symbol)) {
	if ref, ok := e.(VarRef); ok {
		visit(ref.Name)
	}
}

func replaceGuardVar(body []Stmt, guardIdx int, oldName, newName Symbol, c int32) []Stmt {
	out := append([]Stmt(nil), body...)
	si, ok := out[guardIdx].(SingleIf)
	if !ok {
		return out
	}
	cmp, ok := si.Cond.(Binary)
	if !ok {
		return out
	}
	if ref, ok := cmp.E1.(VarRef); ok && ref.Name == oldName {
		adjustedBound := cmp.E2
		if lit, ok := cmp.E2.(IntLiteral); ok {
			adjustedBound = IntLiteral{Value: lit.Value - c}
		}
		cmp.E1 = VarRef{Name: newName, Typ: ref.Typ}
		cmp.E2 = adjustedBound
		si.Cond = cmp
		out[guardIdx] = si
	}
	return out
}

func dropLoopVar(lvs []LoopVariable, name Symbol) []LoopVariable {
	out := make([]LoopVariable, 0, len(lvs))
	for _, lv := range lvs {
		if lv.Name != name {
			out = append(out, lv)
		}
	}
	return out
}

// strengthReduceDerived replaces each derived induction variable d with
// a new loop variable d' updated additively (d'_prev + m*k) instead of
// multiplicatively, initialized to base_init*m + im.
func strengthReduceDerived(v While, loop optimizableLoop) While {
	step := int32(0)
	switch {
	case loop.basic != nil:
		step = loop.basic.step
	case len(loop.general) > 0:
		step = loop.general[0].c
	}

	for _, d := range loop.derived {
		baseInit, ok := findInit(v.LoopVariables, d.base)
		if !ok {
			continue
		}
		baseInitLit, ok := baseInit.(IntLiteral)
		if !ok {
			continue
		}
		initVal := baseInitLit.Value*d.m + d.im
		stepVal := d.m * step

		v.LoopVariables = replaceLoopVar(v.LoopVariables, d.name, LoopVariable{
			Name: d.name,
			Typ:  Int32{},
			Init: IntLiteral{Value: initVal},
			LoopValue: Binary{
				Name: d.name,
				Op:   Add,
				E1:   VarRef{Name: d.name, Typ: Int32{}},
				E2:   IntLiteral{Value: stepVal},
				Typ:  Int32{},
			},
		})
	}
	return v
}

func replaceLoopVar(lvs []LoopVariable, name Symbol, replacement LoopVariable) []LoopVariable {
	out := make([]LoopVariable, len(lvs))
	for i, lv := range lvs {
		if lv.Name == name {
			out[i] = replacement
		} else {
			out[i] = lv
		}
	}
	return out
}

// makeSingleIf constructs a SingleIf tagged with the loop pass that
// introduced it, for diagnostics. Nothing calls it.
func makeSingleIf(cond Expr, body []Stmt, pass string) SingleIf {
	return SingleIf{Cond: cond, Body: body, Loc: singleIfOrigin{Pass: pass}}
}
