package mir

import (
	"fmt"

	"corelang/internal/symbol"
)

// InlineOptions configures the cost-based inliner (§4.3.3).
type InlineOptions struct {
	// CallerSizeLimit bounds the caller's total size after inlining.
	CallerSizeLimit int
	// CalleeSizeLimit bounds a single callee's size to be eligible.
	CalleeSizeLimit int
	// GlobalWorkLimit bounds the total statements inlined across the
	// whole compilation; once reached, inlining stops everywhere.
	GlobalWorkLimit int
}

// DefaultInlineOptions mirrors typical middle-end defaults: generous
// enough to inline small accessors and wrappers, conservative enough to
// avoid runaway code growth.
var DefaultInlineOptions = InlineOptions{
	CallerSizeLimit: 400,
	CalleeSizeLimit: 40,
	GlobalWorkLimit: 4000,
}

type inliner struct {
	tbl       *symbol.Table
	opts      InlineOptions
	byName    map[Symbol]Function
	recursive map[Symbol]bool
	work      int
	renameSeq int
}

// RunInline inlines eligible calls across fns, returning the rewritten
// set. Direct recursion is detected by a pre-pass and those functions are
// never inlined, per the spec's non-recursion requirement. Fresh names
// minted for hygiene are allocated permanent (they outlive the pass that
// created them, unlike the temporaries symbol.Table sweeps).
func RunInline(tbl *symbol.Table, fns []Function, opts InlineOptions) []Function {
	in := &inliner{
		tbl:       tbl,
		opts:      opts,
		byName:    make(map[Symbol]Function, len(fns)),
		recursive: make(map[Symbol]bool, len(fns)),
	}
	for _, fn := range fns {
		in.byName[fn.Name] = fn
	}
	for _, fn := range fns {
		if callsSelf(fn) {
			in.recursive[fn.Name] = true
		}
	}

	out := make([]Function, len(fns))
	for i, fn := range fns {
		out[i] = in.inlineFunction(fn)
	}
	return out
}

func callsSelf(fn Function) bool {
	found := false
	walkCalls(fn.Body, func(c Call) {
		if fr, ok := c.Callee.(FuncRef); ok && fr.Name == fn.Name {
			found = true
		}
	})
	return found
}

func walkCalls(body []Stmt, visit func(Call)) {
	for _, s := range body {
		switch v := s.(type) {
		case Call:
			visit(v)
		case IfElse:
			walkCalls(v.S1, visit)
			walkCalls(v.S2, visit)
		case SingleIf:
			walkCalls(v.Body, visit)
		case While:
			walkCalls(v.Body, visit)
		}
	}
}

// bodySize is the cost metric: statement count plus nested-block sizes.
func bodySize(body []Stmt) int {
	total := 0
	for _, s := range body {
		total++
		switch v := s.(type) {
		case IfElse:
			total += bodySize(v.S1) + bodySize(v.S2)
		case SingleIf:
			total += bodySize(v.Body)
		case While:
			total += bodySize(v.Body)
		}
	}
	return total
}

func (in *inliner) inlineFunction(fn Function) Function {
	fn.Body = in.inlineStmts(fn.Body, &fn)
	return fn
}

func (in *inliner) inlineStmts(body []Stmt, caller *Function) []Stmt {
	out := make([]Stmt, 0, len(body))
	for _, s := range body {
		out = append(out, in.inlineStmt(s, caller)...)
	}
	return out
}

func (in *inliner) inlineStmt(s Stmt, caller *Function) []Stmt {
	switch v := s.(type) {
	case Call:
		if inlined, ok := in.tryInline(v, caller); ok {
			return inlined
		}
		return []Stmt{v}
	case IfElse:
		v.S1 = in.inlineStmts(v.S1, caller)
		v.S2 = in.inlineStmts(v.S2, caller)
		return []Stmt{v}
	case SingleIf:
		v.Body = in.inlineStmts(v.Body, caller)
		return []Stmt{v}
	case While:
		v.Body = in.inlineStmts(v.Body, caller)
		return []Stmt{v}
	default:
		return []Stmt{s}
	}
}

func (in *inliner) tryInline(call Call, caller *Function) ([]Stmt, bool) {
	if in.work >= in.opts.GlobalWorkLimit {
		return nil, false
	}
	fr, ok := call.Callee.(FuncRef)
	if !ok {
		return nil, false
	}
	callee, ok := in.byName[fr.Name]
	if !ok || in.recursive[fr.Name] {
		return nil, false
	}
	calleeSize := bodySize(callee.Body)
	if calleeSize > in.opts.CalleeSizeLimit {
		return nil, false
	}
	if bodySize(caller.Body)+calleeSize > in.opts.CallerSizeLimit {
		return nil, false
	}

	in.renameSeq++
	prefix := fmt.Sprintf("_inl%d$", in.renameSeq)
	renamed := in.alphaRename(callee, prefix, call.Args, call.ReturnCollector)
	in.work += calleeSize
	return renamed, true
}

// alphaRename produces the statements to splice in place of a call:
// every callee local (parameters and structurally bound names) is
// prefixed fresh so it cannot collide with the caller, parameters are
// bound via LateInitAssignment-style let-bindings to the call's
// arguments, and the callee's return value is bound to the call's
// return collector if present.
func (in *inliner) alphaRename(callee Function, prefix string, args []Expr, retCollector *Symbol) []Stmt {
	ren := make(map[Symbol]Symbol)
	rename := func(s Symbol) Symbol {
		if r, ok := ren[s]; ok {
			return r
		}
		r := in.tbl.AllocPermanent(prefix + in.tbl.Text(s))
		ren[s] = r
		return r
	}
	collectBoundNames(callee.Body, rename)

	out := make([]Stmt, 0, len(callee.Body)+len(callee.Parameters)+1)
	for i, p := range callee.Parameters {
		if i < len(args) {
			out = append(out, LateInitAssignment{Name: rename(p.Name), E: args[i]})
		}
	}
	out = append(out, renameStmts(callee.Body, ren)...)
	if retCollector != nil && callee.ReturnValue != nil {
		out = append(out, LateInitAssignment{Name: *retCollector, E: renameExpr(callee.ReturnValue, ren)})
	}
	return out
}

func collectBoundNames(body []Stmt, rename func(Symbol) Symbol) {
	for _, s := range body {
		switch v := s.(type) {
		case Binary:
			rename(v.Name)
		case Unary:
			rename(v.Name)
		case IndexedAccess:
			rename(v.Name)
		case Cast:
			rename(v.Name)
		case Call:
			if v.ReturnCollector != nil {
				rename(*v.ReturnCollector)
			}
		case StructInit:
			rename(v.Name)
		case ClosureInit:
			rename(v.Name)
		case LateInitDeclaration:
			rename(v.Name)
		case LateInitAssignment:
			rename(v.Name)
		case IfElse:
			collectBoundNames(v.S1, rename)
			collectBoundNames(v.S2, rename)
			for _, fa := range v.FinalAssignments {
				rename(fa.Name)
			}
		case SingleIf:
			collectBoundNames(v.Body, rename)
		case While:
			for _, lv := range v.LoopVariables {
				rename(lv.Name)
			}
			if v.BreakCollector != nil {
				rename(v.BreakCollector.Name)
			}
			collectBoundNames(v.Body, rename)
		}
	}
}

func renameStmts(body []Stmt, ren map[Symbol]Symbol) []Stmt {
	out := make([]Stmt, len(body))
	for i, s := range body {
		out[i] = renameStmt(s, ren)
	}
	return out
}

func renameSym(s Symbol, ren map[Symbol]Symbol) Symbol {
	if r, ok := ren[s]; ok {
		return r
	}
	return s
}

func renameOptSym(s *Symbol, ren map[Symbol]Symbol) *Symbol {
	if s == nil {
		return nil
	}
	r := renameSym(*s, ren)
	return &r
}

func renameExpr(e Expr, ren map[Symbol]Symbol) Expr {
	switch v := e.(type) {
	case VarRef:
		return VarRef{Name: renameSym(v.Name, ren), Typ: v.Typ}
	default:
		return e
	}
}

func renameExprs(es []Expr, ren map[Symbol]Symbol) []Expr {
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = renameExpr(e, ren)
	}
	return out
}

func renameStmt(s Stmt, ren map[Symbol]Symbol) Stmt {
	switch v := s.(type) {
	case Binary:
		return Binary{Name: renameSym(v.Name, ren), Op: v.Op, E1: renameExpr(v.E1, ren), E2: renameExpr(v.E2, ren), Typ: v.Typ}
	case Unary:
		return Unary{Name: renameSym(v.Name, ren), Op: v.Op, E: renameExpr(v.E, ren), Typ: v.Typ}
	case IndexedAccess:
		return IndexedAccess{Name: renameSym(v.Name, ren), Typ: v.Typ, Ptr: renameExpr(v.Ptr, ren), Index: v.Index}
	case Cast:
		return Cast{Name: renameSym(v.Name, ren), Typ: v.Typ, E: renameExpr(v.E, ren)}
	case Call:
		return Call{Callee: renameExpr(v.Callee, ren), Args: renameExprs(v.Args, ren), ReturnType: v.ReturnType, ReturnCollector: renameOptSym(v.ReturnCollector, ren)}
	case IfElse:
		fas := make([]FinalAssignment, len(v.FinalAssignments))
		for i, fa := range v.FinalAssignments {
			fas[i] = FinalAssignment{Name: renameSym(fa.Name, ren), Typ: fa.Typ, E1: renameExpr(fa.E1, ren), E2: renameExpr(fa.E2, ren)}
		}
		return IfElse{Cond: renameExpr(v.Cond, ren), S1: renameStmts(v.S1, ren), S2: renameStmts(v.S2, ren), FinalAssignments: fas}
	case SingleIf:
		return SingleIf{Cond: renameExpr(v.Cond, ren), Body: renameStmts(v.Body, ren)}
	case StructInit:
		return StructInit{Name: renameSym(v.Name, ren), TypeName: v.TypeName, Exprs: renameExprs(v.Exprs, ren)}
	case ClosureInit:
		return ClosureInit{Name: renameSym(v.Name, ren), ClosureTypeName: v.ClosureTypeName, FunctionName: v.FunctionName, Context: renameExpr(v.Context, ren)}
	case LateInitDeclaration:
		return LateInitDeclaration{Name: renameSym(v.Name, ren), Typ: v.Typ}
	case LateInitAssignment:
		return LateInitAssignment{Name: renameSym(v.Name, ren), E: renameExpr(v.E, ren)}
	case While:
		lvs := make([]LoopVariable, len(v.LoopVariables))
		for i, lv := range v.LoopVariables {
			lvs[i] = LoopVariable{Name: renameSym(lv.Name, ren), Typ: lv.Typ, Init: renameExpr(lv.Init, ren), LoopValue: renameExpr(lv.LoopValue, ren)}
		}
		var bc *BreakCollector
		if v.BreakCollector != nil {
			bc = &BreakCollector{Name: renameSym(v.BreakCollector.Name, ren), Typ: v.BreakCollector.Typ}
		}
		return While{LoopVariables: lvs, Body: renameStmts(v.Body, ren), BreakCollector: bc}
	case Break:
		return Break{Value: renameExpr(v.Value, ren)}
	default:
		return s
	}
}
