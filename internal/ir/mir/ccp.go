package mir

// latticeKind is the CCP abstract-value lattice: {Unknown, Const(i), Variable}.
type latticeKind int

const (
	latUnknown latticeKind = iota
	latConst
	latVariable
)

type lattice struct {
	kind latticeKind
	val  int32
}

var unknownVal = lattice{kind: latUnknown}
var variableVal = lattice{kind: latVariable}

func constVal(v int32) lattice { return lattice{kind: latConst, val: v} }

// linearForm records that name was computed as base `op` k, for the
// constant-chaining rule ((a+2)+2 => a+4).
type linearForm struct {
	base Symbol
	op   BinaryOp
	k    int32
}

// ccpState carries the per-function analysis state across the statement
// walk; it is rebuilt fresh for every function CCP runs over.
type ccpState struct {
	values map[Symbol]lattice
	forms  map[Symbol]linearForm
	// structInits tracks Name -> the StructInit that produced it, so a
	// later IndexedAccess on a known-constant pointer can fold.
	structInits map[Symbol]StructInit
}

func newCCPState() *ccpState {
	return &ccpState{
		values:      make(map[Symbol]lattice),
		forms:       make(map[Symbol]linearForm),
		structInits: make(map[Symbol]StructInit),
	}
}

// RunCCP applies conditional constant propagation to fn's body.
func RunCCP(fn Function) Function {
	st := newCCPState()
	for _, p := range fn.Parameters {
		st.values[p.Name] = variableVal
	}
	fn.Body = st.foldStmts(fn.Body)
	fn.ReturnValue = st.foldExprOperand(fn.ReturnValue)
	return fn
}

func (st *ccpState) foldStmts(body []Stmt) []Stmt {
	out := make([]Stmt, 0, len(body))
	for _, s := range body {
		out = append(out, st.foldStmt(s)...)
	}
	return out
}

func (st *ccpState) evalExpr(e Expr) lattice {
	switch v := e.(type) {
	case IntLiteral:
		return constVal(v.Value)
	case VarRef:
		if l, ok := st.values[v.Name]; ok {
			return l
		}
		return unknownVal
	default:
		return variableVal
	}
}

func (st *ccpState) foldStmt(s Stmt) []Stmt {
	switch v := s.(type) {
	case Binary:
		return []Stmt{st.foldBinary(v)}
	case Unary:
		e := st.foldExprOperand(v.E)
		st.values[v.Name] = variableVal
		return []Stmt{Unary{Name: v.Name, Op: v.Op, E: e, Typ: v.Typ}}
	case IndexedAccess:
		if ptr, ok := v.Ptr.(VarRef); ok {
			if si, ok := st.structInits[ptr.Name]; ok && v.Index < len(si.Exprs) {
				st.values[v.Name] = st.evalExpr(si.Exprs[v.Index])
				return []Stmt{IndexedAccess{Name: v.Name, Typ: v.Typ, Ptr: v.Ptr, Index: v.Index}}
			}
		}
		st.values[v.Name] = variableVal
		return []Stmt{v}
	case Cast:
		st.values[v.Name] = variableVal
		return []Stmt{v}
	case Call:
		if v.ReturnCollector != nil {
			st.values[*v.ReturnCollector] = variableVal
		}
		return []Stmt{v}
	case IfElse:
		return st.foldIfElse(v)
	case StructInit:
		st.structInits[v.Name] = v
		st.values[v.Name] = variableVal
		return []Stmt{v}
	case ClosureInit:
		st.values[v.Name] = variableVal
		return []Stmt{v}
	case LateInitDeclaration:
		st.values[v.Name] = unknownVal
		return []Stmt{v}
	case LateInitAssignment:
		st.values[v.Name] = st.evalExpr(v.E)
		return []Stmt{v}
	case While:
		return st.foldWhile(v)
	default:
		return []Stmt{s}
	}
}

func (st *ccpState) foldExprOperand(e Expr) Expr {
	if l := st.evalExpr(e); l.kind == latConst {
		return IntLiteral{Value: l.val}
	}
	return e
}

// foldBinary implements the constant-folding, constant-chaining, and
// comparison-canonicalization rules of §4.3.1.
func (st *ccpState) foldBinary(v Binary) Stmt {
	l1, l2 := st.evalExpr(v.E1), st.evalExpr(v.E2)

	if l1.kind == latConst && l2.kind == latConst {
		if folded, ok := foldConstBinary(v.Op, l1.val, l2.val); ok {
			st.values[v.Name] = constVal(folded)
			return Binary{Name: v.Name, Op: v.Op, E1: IntLiteral{Value: l1.val}, E2: IntLiteral{Value: l2.val}, Typ: v.Typ}
		}
	}

	// chaining: (a op1 k1) op2 k2 via a prior linear form recorded for
	// E1, with E2 constant; +/+, */* and -/+ chain (see combineForms).
	if ref, ok := v.E1.(VarRef); ok && l2.kind == latConst {
		if form, ok := st.forms[ref.Name]; ok && chainable(form.op, v.Op) {
			if combined, ok := combineForms(form.op, form.k, v.Op, l2.val); ok {
				st.forms[v.Name] = linearForm{base: form.base, op: v.Op, k: combined}
				st.values[v.Name] = variableVal
				return Binary{
					Name: v.Name,
					Op:   v.Op,
					E1:   VarRef{Name: form.base, Typ: v.Typ},
					E2:   IntLiteral{Value: combined},
					Typ:  v.Typ,
				}
			}
		}
	}

	// canonicalize `(x op const) cmp const2` into `x cmp adjustedConst`.
	if isComparison(v.Op) {
		if ref, ok := v.E1.(VarRef); ok && l2.kind == latConst {
			if form, ok := st.forms[ref.Name]; ok && (form.op == Add || form.op == Sub) {
				if adj, ok := adjustComparisonConst(form.op, form.k, l2.val); ok {
					st.values[v.Name] = variableVal
					return Binary{Name: v.Name, Op: v.Op, E1: VarRef{Name: form.base, Typ: v.Typ}, E2: IntLiteral{Value: adj}, Typ: v.Typ}
				}
			}
		}
	}

	if v.Op == Add || v.Op == Sub || v.Op == Mul {
		if ref, ok := v.E1.(VarRef); ok && l2.kind == latConst {
			st.forms[v.Name] = linearForm{base: ref.Name, op: v.Op, k: l2.val}
		}
	}
	st.values[v.Name] = variableVal
	return Binary{Name: v.Name, Op: v.Op, E1: st.foldExprOperand(v.E1), E2: st.foldExprOperand(v.E2), Typ: v.Typ}
}

func chainable(prior, next BinaryOp) bool {
	if next == Sub || next == Div || next == Mod {
		return false
	}
	return (prior == Add || prior == Sub || prior == Mul) && (next == Add || next == Sub || next == Mul)
}

func combineForms(prior BinaryOp, k1 int32, next BinaryOp, k2 int32) (int32, bool) {
	if prior == Sub && next == Add {
		// (a - k1) + k2 == a + (k2 - k1)
		return int32(uint32(k2) - uint32(k1)), true
	}
	if prior != next {
		return 0, false
	}
	switch next {
	case Add:
		return int32(uint32(k1) + uint32(k2)), true
	case Sub:
		return int32(uint32(k1) + uint32(k2)), true
	case Mul:
		return int32(uint32(k1) * uint32(k2)), true
	default:
		return 0, false
	}
}

func isComparison(op BinaryOp) bool {
	switch op {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return true
	default:
		return false
	}
}

func adjustComparisonConst(formOp BinaryOp, k, c int32) (int32, bool) {
	switch formOp {
	case Add:
		return int32(uint32(c) - uint32(k)), true
	case Sub:
		return int32(uint32(c) + uint32(k)), true
	default:
		return 0, false
	}
}

// foldConstBinary implements the two's-complement 32-bit integer
// semantics: wraparound arithmetic, unfolded division/modulo by zero,
// logical shifts.
func foldConstBinary(op BinaryOp, a, b int32) (int32, bool) {
	ua, ub := uint32(a), uint32(b)
	switch op {
	case Add:
		return int32(ua + ub), true
	case Sub:
		return int32(ua - ub), true
	case Mul:
		return int32(ua * ub), true
	case Div:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case Mod:
		if b == 0 {
			return 0, false
		}
		return a % b, true
	case BitAnd:
		return int32(ua & ub), true
	case BitOr:
		return int32(ua | ub), true
	case BitXor:
		return int32(ua ^ ub), true
	case ShiftLeft:
		return int32(ua << (ub & 31)), true
	case ShiftRight:
		return int32(ua >> (ub & 31)), true
	case LogicalAnd:
		return boolToInt32(a != 0 && b != 0), true
	case LogicalOr:
		return boolToInt32(a != 0 || b != 0), true
	case Eq:
		return boolToInt32(a == b), true
	case Ne:
		return boolToInt32(a != b), true
	case Lt:
		return boolToInt32(a < b), true
	case Le:
		return boolToInt32(a <= b), true
	case Gt:
		return boolToInt32(a > b), true
	case Ge:
		return boolToInt32(a >= b), true
	default:
		return 0, false
	}
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// foldIfElse collapses an IfElse whose condition is a known constant to
// the taken branch, rewriting FinalAssignments to plain assignments to
// the join names of that branch; otherwise it folds each branch
// recursively under its own forked lattice (branches never see each
// other's bindings).
func (st *ccpState) foldIfElse(v IfElse) []Stmt {
	cond := st.evalExpr(v.Cond)
	if cond.kind == latConst {
		var taken []Stmt
		var others map[int]Expr
		if cond.val != 0 {
			taken = st.foldStmts(v.S1)
			others = make(map[int]Expr, len(v.FinalAssignments))
			for i, fa := range v.FinalAssignments {
				others[i] = fa.E1
			}
		} else {
			taken = st.foldStmts(v.S2)
			others = make(map[int]Expr, len(v.FinalAssignments))
			for i, fa := range v.FinalAssignments {
				others[i] = fa.E2
			}
		}
		for i, fa := range v.FinalAssignments {
			e := others[i]
			taken = append(taken, LateInitAssignment{Name: fa.Name, E: e})
			st.values[fa.Name] = st.evalExpr(e)
		}
		return taken
	}

	branch1 := newCCPState()
	branch1.values, branch1.forms, branch1.structInits = cloneValues(st.values), cloneForms(st.forms), cloneStructInits(st.structInits)
	s1 := branch1.foldStmts(v.S1)

	branch2 := newCCPState()
	branch2.values, branch2.forms, branch2.structInits = cloneValues(st.values), cloneForms(st.forms), cloneStructInits(st.structInits)
	s2 := branch2.foldStmts(v.S2)

	fas := make([]FinalAssignment, len(v.FinalAssignments))
	for i, fa := range v.FinalAssignments {
		fas[i] = FinalAssignment{Name: fa.Name, Typ: fa.Typ, E1: branch1.foldExprOperand(fa.E1), E2: branch2.foldExprOperand(fa.E2)}
		st.values[fa.Name] = variableVal
	}
	return []Stmt{IfElse{Cond: st.foldExprOperand(v.Cond), S1: s1, S2: s2, FinalAssignments: fas}}
}

func cloneValues(m map[Symbol]lattice) map[Symbol]lattice {
	out := make(map[Symbol]lattice, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneForms(m map[Symbol]linearForm) map[Symbol]linearForm {
	out := make(map[Symbol]linearForm, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStructInits(m map[Symbol]StructInit) map[Symbol]StructInit {
	out := make(map[Symbol]StructInit, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// foldWhile implements the loop-collapse rule: if every loop variable's
// initializer is unmutated by the body and the guard is known false on
// entry, the loop is gone (only break-collector defaults remain).
func (st *ccpState) foldWhile(v While) []Stmt {
	entry := newCCPState()
	for _, lv := range v.LoopVariables {
		entry.values[lv.Name] = st.evalExpr(lv.Init)
	}
	guard, ok := findGuard(v.Body)
	if ok {
		if g := entry.evalExpr(guard); g.kind == latConst && g.val == 0 && loopVarsUnmutated(v) {
			if v.BreakCollector != nil {
				st.values[v.BreakCollector.Name] = unknownVal
				return []Stmt{LateInitDeclaration{Name: v.BreakCollector.Name, Typ: v.BreakCollector.Typ}}
			}
			return nil
		}
	}
	for _, lv := range v.LoopVariables {
		st.values[lv.Name] = variableVal
	}
	if v.BreakCollector != nil {
		st.values[v.BreakCollector.Name] = variableVal
	}
	bodyState := newCCPState()
	for _, lv := range v.LoopVariables {
		bodyState.values[lv.Name] = unknownVal
	}
	return []Stmt{While{LoopVariables: v.LoopVariables, Body: bodyState.foldStmts(v.Body), BreakCollector: v.BreakCollector}}
}

// findGuard extracts the first SingleIf's condition in body, the
// canonical loop-exit guard shape, if one is already present.
func findGuard(body []Stmt) (Expr, bool) {
	for _, s := range body {
		if si, ok := s.(SingleIf); ok {
			return si.Cond, true
		}
	}
	return nil, false
}

func loopVarsUnmutated(v While) bool {
	for _, lv := range v.LoopVariables {
		if ref, ok := lv.LoopValue.(VarRef); !ok || ref.Name != lv.Name {
			return false
		}
	}
	return true
}
