package mir

// RunDCE applies dead-code elimination to fn's body: a backward liveness
// pass over the statement list per §4.3.2.
func RunDCE(fn Function) Function {
	live := make(map[Symbol]bool)
	if fn.ReturnValue != nil {
		markExprLive(fn.ReturnValue, live)
	}
	fn.Body = dceStmts(fn.Body, live)
	return fn
}

func dceStmts(body []Stmt, live map[Symbol]bool) []Stmt {
	out := make([]Stmt, 0, len(body))
	for i := len(body) - 1; i >= 0; i-- {
		if kept, ok := dceStmt(body[i], live); ok {
			out = append([]Stmt{kept}, out...)
		}
	}
	return out
}

// dceStmt decides whether s survives and, if so, marks the names its
// surviving form depends on as live in the caller's (backward-walked)
// liveness set.
func dceStmt(s Stmt, live map[Symbol]bool) (Stmt, bool) {
	switch v := s.(type) {
	case Binary:
		if !live[v.Name] {
			return nil, false
		}
		markExprLive(v.E1, live)
		markExprLive(v.E2, live)
		return v, true
	case Unary:
		if !live[v.Name] {
			return nil, false
		}
		markExprLive(v.E, live)
		return v, true
	case IndexedAccess:
		if !live[v.Name] {
			return nil, false
		}
		markExprLive(v.Ptr, live)
		return v, true
	case Cast:
		if !live[v.Name] {
			return nil, false
		}
		markExprLive(v.E, live)
		return v, true
	case Call:
		markExprLive(v.Callee, live)
		for _, a := range v.Args {
			markExprLive(a, live)
		}
		return v, true // calls are always kept regardless of return_collector liveness
	case StructInit:
		if !live[v.Name] {
			return nil, false
		}
		for _, e := range v.Exprs {
			markExprLive(e, live)
		}
		return v, true
	case ClosureInit:
		if !live[v.Name] {
			return nil, false
		}
		markExprLive(v.Context, live)
		return v, true
	case LateInitDeclaration:
		return v, true // always kept: a store (LateInitAssignment) may target it later
	case LateInitAssignment:
		markExprLive(v.E, live)
		return v, true // stores are always kept
	case IfElse:
		branchLive1 := cloneLive(live)
		branchLive2 := cloneLive(live)
		fas := make([]FinalAssignment, 0, len(v.FinalAssignments))
		anyJoinLive := false
		for _, fa := range v.FinalAssignments {
			if live[fa.Name] {
				anyJoinLive = true
				markExprLive(fa.E1, branchLive1)
				markExprLive(fa.E2, branchLive2)
				fas = append(fas, fa)
			}
		}
		s1 := dceStmts(v.S1, branchLive1)
		s2 := dceStmts(v.S2, branchLive2)
		if !anyJoinLive && len(s1) == 0 && len(s2) == 0 {
			return nil, false
		}
		markExprLive(v.Cond, live)
		mergeLiveInto(live, branchLive1)
		mergeLiveInto(live, branchLive2)
		return IfElse{Cond: v.Cond, S1: s1, S2: s2, FinalAssignments: fas}, true
	case SingleIf:
		markExprLive(v.Cond, live)
		bodyLive := cloneLive(live)
		body := dceStmts(v.Body, bodyLive)
		mergeLiveInto(live, bodyLive)
		return SingleIf{Cond: v.Cond, Body: body}, true
	case While:
		return dceWhile(v, live)
	case Break:
		if v.Value != nil {
			markExprLive(v.Value, live)
		}
		return v, true
	default:
		return v, true
	}
}

// dceWhile keeps a loop variable if its name is itself live and it
// appears in the loop_value/initial_value of that live variable, per the
// liveness rule; it iterates the loop-variable liveness to a fixpoint
// since one live loop variable's loop_value may reference another.
func dceWhile(v While, live map[Symbol]bool) (Stmt, bool) {
	bodyLive := cloneLive(live)
	if v.BreakCollector != nil && live[v.BreakCollector.Name] {
		// break collector liveness is established by whatever marked it
		// live outside the loop; Break expressions inside the body are
		// always scanned for liveness regardless.
	}
	markBreaksLive(v.Body, bodyLive)

	keep := make(map[Symbol]bool)
	for changed := true; changed; {
		changed = false
		for _, lv := range v.LoopVariables {
			if keep[lv.Name] {
				continue
			}
			if bodyLive[lv.Name] {
				keep[lv.Name] = true
				markExprLive(lv.LoopValue, bodyLive)
				markExprLive(lv.Init, bodyLive)
				changed = true
			}
		}
	}

	var survivors []LoopVariable
	for _, lv := range v.LoopVariables {
		if keep[lv.Name] {
			survivors = append(survivors, lv)
		}
	}

	body := dceStmts(v.Body, bodyLive)
	mergeLiveInto(live, bodyLive)
	for _, lv := range survivors {
		markExprLive(lv.Init, live)
	}

	return While{LoopVariables: survivors, Body: body, BreakCollector: v.BreakCollector}, true
}

func markBreaksLive(body []Stmt, live map[Symbol]bool) {
	for _, s := range body {
		switch v := s.(type) {
		case Break:
			if v.Value != nil {
				markExprLive(v.Value, live)
			}
		case IfElse:
			markBreaksLive(v.S1, live)
			markBreaksLive(v.S2, live)
		case SingleIf:
			markBreaksLive(v.Body, live)
		case While:
			markBreaksLive(v.Body, live)
		}
	}
}

func markExprLive(e Expr, live map[Symbol]bool) {
	switch v := e.(type) {
	case VarRef:
		live[v.Name] = true
	case FuncRef:
		live[v.Name] = true
	}
}

func cloneLive(m map[Symbol]bool) map[Symbol]bool {
	out := make(map[Symbol]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeLiveInto(dst, src map[Symbol]bool) {
	for k, v := range src {
		if v {
			dst[k] = true
		}
	}
}
