package mir

import (
	"corelang/internal/ir/hir"
	"corelang/internal/symbol"
)

// substituteExpr lowers a HIR expression into MIR, substituting generic
// types and resolving any generic-dispatch call target it names.
func (m *Monomorphizer) substituteExpr(e hir.Expr, s subst) (Expr, []discovered) {
	if e == nil {
		return nil, nil
	}
	switch v := e.(type) {
	case hir.IntLiteral:
		return IntLiteral{Value: v.Value}, nil
	case hir.StringRef:
		return StringRef{Name: v.Name}, nil
	case hir.VarRef:
		t, disc := m.substituteType(v.Typ, s)
		return VarRef{Name: v.Name, Typ: t}, disc
	case hir.FuncRef:
		t, disc := m.substituteType(v.Typ, s)
		name := m.resolveDispatch(v.Name, s)
		if _, ok := m.functionsByName[name]; ok {
			disc = append(disc, discovered{name: name})
		}
		return FuncRef{Name: name, Typ: t}, disc
	default:
		return nil, nil
	}
}

func (m *Monomorphizer) substituteStmts(body []hir.Stmt, s subst) ([]Stmt, []discovered) {
	out := make([]Stmt, 0, len(body))
	var disc []discovered
	for _, st := range body {
		rs, d := m.substituteStmt(st, s)
		disc = append(disc, d...)
		out = append(out, rs)
	}
	return out, disc
}

func (m *Monomorphizer) substituteStmt(st hir.Stmt, s subst) (Stmt, []discovered) {
	var disc []discovered
	add := func(d []discovered) { disc = append(disc, d...) }

	switch v := st.(type) {
	case hir.Binary:
		e1, d := m.substituteExpr(v.E1, s)
		add(d)
		e2, d := m.substituteExpr(v.E2, s)
		add(d)
		typ, d := m.substituteType(v.Typ, s)
		add(d)
		return Binary{Name: v.Name, Op: BinaryOp(v.Op), E1: e1, E2: e2, Typ: typ}, disc

	case hir.Unary:
		e, d := m.substituteExpr(v.E, s)
		add(d)
		typ, d := m.substituteType(v.Typ, s)
		add(d)
		return Unary{Name: v.Name, Op: UnaryOp(v.Op), E: e, Typ: typ}, disc

	case hir.IndexedAccess:
		ptr, d := m.substituteExpr(v.Ptr, s)
		add(d)
		typ, d := m.substituteType(v.Typ, s)
		add(d)
		return IndexedAccess{Name: v.Name, Typ: typ, Ptr: ptr, Index: v.Index}, disc

	case hir.Cast:
		e, d := m.substituteExpr(v.E, s)
		add(d)
		typ, d := m.substituteType(v.Typ, s)
		add(d)
		return Cast{Name: v.Name, Typ: typ, E: e}, disc

	case hir.Call:
		callee, d := m.substituteExpr(v.Callee, s)
		add(d)
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			ae, d := m.substituteExpr(a, s)
			add(d)
			args[i] = ae
		}
		rt, d := m.substituteType(v.ReturnType, s)
		add(d)
		return Call{Callee: callee, Args: args, ReturnType: rt, ReturnCollector: v.ReturnCollector}, disc

	case hir.IfElse:
		cond, d := m.substituteExpr(v.Cond, s)
		add(d)
		s1, d := m.substituteStmts(v.S1, s)
		add(d)
		s2, d := m.substituteStmts(v.S2, s)
		add(d)
		fas := make([]FinalAssignment, len(v.FinalAssignments))
		for i, fa := range v.FinalAssignments {
			e1, d := m.substituteExpr(fa.E1, s)
			add(d)
			e2, d := m.substituteExpr(fa.E2, s)
			add(d)
			typ, d := m.substituteType(fa.Typ, s)
			add(d)
			fas[i] = FinalAssignment{Name: fa.Name, Typ: typ, E1: e1, E2: e2}
		}
		return IfElse{Cond: cond, S1: s1, S2: s2, FinalAssignments: fas}, disc

	case hir.StructInit:
		args := m.concreteArgsFor(v.TypeName, s, v.Exprs)
		specName := encode(m.tbl, v.TypeName, args)
		exprs := make([]Expr, len(v.Exprs))
		for i, e := range v.Exprs {
			ee, d := m.substituteExpr(e, s)
			add(d)
			exprs[i] = ee
		}
		if _, ok := m.typesByName[v.TypeName]; ok {
			disc = append(disc, discovered{name: v.TypeName, args: args})
		}
		return StructInit{Name: v.Name, TypeName: specName, Exprs: exprs}, disc

	case hir.ClosureInit:
		ctx, d := m.substituteExpr(v.Context, s)
		add(d)
		ctArgs := m.concreteArgsFor(v.ClosureTypeName, s, nil)
		ctSpec := encode(m.tbl, v.ClosureTypeName, ctArgs)
		if _, ok := m.closuresByName[v.ClosureTypeName]; ok {
			disc = append(disc, discovered{name: v.ClosureTypeName, args: ctArgs})
		}
		fnName := m.resolveDispatch(v.FunctionName, s)
		if _, ok := m.functionsByName[v.FunctionName]; ok {
			disc = append(disc, discovered{name: fnName})
		}
		return ClosureInit{Name: v.Name, ClosureTypeName: ctSpec, FunctionName: fnName, Context: ctx}, disc

	case hir.LateInitDeclaration:
		typ, d := m.substituteType(v.Typ, s)
		add(d)
		return LateInitDeclaration{Name: v.Name, Typ: typ}, disc

	case hir.LateInitAssignment:
		e, d := m.substituteExpr(v.E, s)
		add(d)
		return LateInitAssignment{Name: v.Name, E: e}, disc

	case hir.While:
		lvs := make([]LoopVariable, len(v.LoopVariables))
		for i, lv := range v.LoopVariables {
			typ, d := m.substituteType(lv.Typ, s)
			add(d)
			init, d := m.substituteExpr(lv.Init, s)
			add(d)
			loopVal, d := m.substituteExpr(lv.LoopValue, s)
			add(d)
			lvs[i] = LoopVariable{Name: lv.Name, Typ: typ, Init: init, LoopValue: loopVal}
		}
		bodyStmts, d := m.substituteStmts(v.Body, s)
		add(d)
		var bc *BreakCollector
		if v.BreakCollector != nil {
			typ, d := m.substituteType(v.BreakCollector.Typ, s)
			add(d)
			bc = &BreakCollector{Name: v.BreakCollector.Name, Typ: typ}
		}
		return While{LoopVariables: lvs, Body: bodyStmts, BreakCollector: bc}, disc

	case hir.Break:
		val, d := m.substituteExpr(v.Value, s)
		add(d)
		return Break{Value: val}, disc

	default:
		return nil, nil
	}
}

// concreteArgsFor resolves the concrete type arguments a generic struct or
// closure type is specialized with at a construction site, given the
// substitution environment active at that site. StructInit and ClosureInit
// carry no explicit type-argument list of their own (unlike hir.Nominal), so
// the arguments are recovered from the named type's own declared type
// parameters: first by direct lookup in s (the constructing function's own
// substitution), then, for any parameter s leaves unbound, by unifying the
// type's declared field types against the actual types of exprs. The latter
// is what resolves a concrete construction like a non-generic main building
// Option<Int32>'s Some(42) directly, where s is empty because main is not
// itself generic over T. A parameter neither bound by s nor recoverable by
// unification (the constructing function is itself still generic over it)
// is left as an unresolved GenericParam. exprs is nil for closure
// construction sites, which have no field list to unify against.
func (m *Monomorphizer) concreteArgsFor(name symbol.Symbol, s subst, exprs []hir.Expr) []hir.Type {
	var typeParams []symbol.Symbol
	var candidates [][]hir.Type
	if td, ok := m.typesByName[name]; ok {
		typeParams = td.TypeParams
		if td.Mappings.IsStruct() {
			candidates = append(candidates, td.Mappings.StructFields)
		} else {
			for _, v := range td.Mappings.EnumVariants {
				switch v.Kind {
				case hir.VariantBoxed:
					candidates = append(candidates, v.Boxed)
				case hir.VariantUnboxed:
					candidates = append(candidates, []hir.Type{v.Unboxed})
				}
			}
		}
	} else if ct, ok := m.closuresByName[name]; ok {
		typeParams = ct.TypeParams
	} else {
		return nil
	}
	if len(typeParams) == 0 {
		return nil
	}

	bound := make(map[symbol.Symbol]hir.Type, len(typeParams))
	for _, p := range typeParams {
		if concrete, ok := s[p]; ok {
			bound[p] = concrete
		}
	}

	// A boxed enum variant's Exprs leads with a tag literal the variant's own
	// field list doesn't account for, so tolerate exactly one extra entry.
	for _, fields := range candidates {
		vals := exprs
		if len(vals) == len(fields)+1 {
			vals = vals[1:]
		}
		if len(vals) != len(fields) {
			continue
		}
		for i, f := range fields {
			unifyType(f, vals[i].Type(), bound)
		}
	}

	args := make([]hir.Type, len(typeParams))
	for i, p := range typeParams {
		if concrete, ok := bound[p]; ok {
			args[i] = concrete
		} else {
			args[i] = hir.GenericParam{Name: p}
		}
	}
	return args
}

// unifyType binds any symbol GenericParam reaches inside declared to the
// corresponding position in actual, without overwriting an existing binding.
func unifyType(declared, actual hir.Type, bound map[symbol.Symbol]hir.Type) {
	switch d := declared.(type) {
	case hir.GenericParam:
		if _, ok := bound[d.Name]; !ok {
			bound[d.Name] = actual
		}
	case hir.Nominal:
		a, ok := actual.(hir.Nominal)
		if !ok || len(d.Args) != len(a.Args) {
			return
		}
		for i := range d.Args {
			unifyType(d.Args[i], a.Args[i], bound)
		}
	case hir.Func:
		a, ok := actual.(hir.Func)
		if !ok || len(d.Params) != len(a.Params) {
			return
		}
		for i := range d.Params {
			unifyType(d.Params[i], a.Params[i], bound)
		}
		unifyType(d.Result, a.Result, bound)
	}
}
