package coreserver

import (
	"fmt"

	"corelang/internal/ir/hir"
	"corelang/internal/ir/lir"
	"corelang/internal/symbol"
)

// This file implements the JSON wire format §6's "remote-build entry
// point" speaks: HIR sources in, LIR sources out. symbol.Symbol has no
// exported fields (it is a compact interned handle, not a string), so
// every name crossing the wire is resolved through the caller's
// *symbol.Table with Text on the way out and AllocPermanent on the way
// in — a wire name is assumed to live for the rest of the process once
// it arrives, the same assumption AllocPermanent documents for any
// source-derived identifier that survives a pass boundary.
//
// Source locations never cross the wire: hir.Location only feeds
// diagnostics upstream of compile_core (see hir.Location's doc
// comment), so a decoded HIR tree simply carries zero Locations.

var binaryOpNames = [...]string{
	"add", "sub", "mul", "div", "mod",
	"bit_and", "bit_or", "bit_xor", "shl", "shr",
	"and", "or",
	"eq", "ne", "lt", "le", "gt", "ge",
}

var unaryOpNames = [...]string{"not", "is_pointer"}

func binaryOpName(op int) (string, error) {
	if op < 0 || op >= len(binaryOpNames) {
		return "", fmt.Errorf("coreserver: binary op %d out of range", op)
	}
	return binaryOpNames[op], nil
}

func binaryOpFromName(name string) (int, error) {
	for i, n := range binaryOpNames {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("coreserver: unknown binary op %q", name)
}

func unaryOpName(op int) (string, error) {
	if op < 0 || op >= len(unaryOpNames) {
		return "", fmt.Errorf("coreserver: unary op %d out of range", op)
	}
	return unaryOpNames[op], nil
}

func unaryOpFromName(name string) (int, error) {
	for i, n := range unaryOpNames {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("coreserver: unknown unary op %q", name)
}

// typeWire is a flat union over every HIR and LIR type variant. Decoders
// read only the fields relevant to Kind; encoders set only those fields.
type typeWire struct {
	Kind   string     `json:"kind"`
	Name   string     `json:"name,omitempty"`
	Args   []typeWire `json:"args,omitempty"`
	Params []typeWire `json:"params,omitempty"`
	Result *typeWire  `json:"result,omitempty"`
}

type exprWire struct {
	Kind  string    `json:"kind"`
	Value int32     `json:"value,omitempty"`
	Name  string    `json:"name,omitempty"`
	Typ   *typeWire `json:"type,omitempty"`
}

type finalAssignWire struct {
	Name string    `json:"name"`
	Typ  typeWire  `json:"type"`
	E1   exprWire  `json:"e1"`
	E2   exprWire  `json:"e2"`
}

type loopVarWire struct {
	Name      string   `json:"name"`
	Typ       typeWire `json:"type"`
	Init      exprWire `json:"init"`
	LoopValue exprWire `json:"loop_value"`
}

type breakCollectorWire struct {
	Name string   `json:"name"`
	Typ  typeWire `json:"type"`
}

// stmtWire is a flat union over every HIR and LIR statement variant
// (LIR adds IndexedAssign and SingleIf, absent from HIR).
type stmtWire struct {
	Kind string `json:"kind"`

	Name string    `json:"name,omitempty"`
	Op   string    `json:"op,omitempty"`
	E1   *exprWire `json:"e1,omitempty"`
	E2   *exprWire `json:"e2,omitempty"`
	E    *exprWire `json:"e,omitempty"`
	Typ  *typeWire `json:"type,omitempty"`

	Ptr   *exprWire `json:"ptr,omitempty"`
	Index *int      `json:"index,omitempty"`
	Value *exprWire `json:"value,omitempty"`

	Callee          *exprWire `json:"callee,omitempty"`
	Args            []exprWire `json:"args,omitempty"`
	ReturnType      *typeWire `json:"return_type,omitempty"`
	ReturnCollector *string   `json:"return_collector,omitempty"`

	Cond             *exprWire         `json:"cond,omitempty"`
	S1               []stmtWire        `json:"s1,omitempty"`
	S2               []stmtWire        `json:"s2,omitempty"`
	FinalAssignments []finalAssignWire `json:"final_assignments,omitempty"`

	TypeName        string    `json:"type_name,omitempty"`
	Exprs           []exprWire `json:"exprs,omitempty"`
	ClosureTypeName string    `json:"closure_type_name,omitempty"`
	FunctionName    string    `json:"function_name,omitempty"`
	Context         *exprWire `json:"context,omitempty"`

	LoopVariables  []loopVarWire       `json:"loop_variables,omitempty"`
	Body           []stmtWire          `json:"body,omitempty"`
	BreakCollector *breakCollectorWire `json:"break_collector,omitempty"`
}

type paramWire struct {
	Name string   `json:"name"`
	Typ  typeWire `json:"type"`
}

type globalStringWire struct {
	Name  string `json:"name"`
	Bytes []byte `json:"bytes"`
}

// --- HIR: decode (client request) and encode (round-trip / test use) ---

type variantWire struct {
	Kind    string     `json:"kind"`
	Unboxed *typeWire  `json:"unboxed,omitempty"`
	Boxed   []typeWire `json:"boxed,omitempty"`
}

type mappingsWire struct {
	IsEnum       bool          `json:"is_enum"`
	StructFields []typeWire    `json:"struct_fields,omitempty"`
	EnumVariants []variantWire `json:"enum_variants,omitempty"`
}

type hirTypeDefWire struct {
	Name       string       `json:"name"`
	TypeParams []string     `json:"type_params,omitempty"`
	Mappings   mappingsWire `json:"mappings"`
}

type hirClosureWire struct {
	Name         string   `json:"name"`
	FunctionType typeWire `json:"function_type"`
	TypeParams   []string `json:"type_params,omitempty"`
}

type hirFunctionWire struct {
	Name        string     `json:"name"`
	TypeParams  []string   `json:"type_params,omitempty"`
	Parameters  []paramWire `json:"parameters,omitempty"`
	Typ         typeWire   `json:"function_type"`
	Body        []stmtWire `json:"body,omitempty"`
	ReturnValue exprWire   `json:"return_value"`
}

// hirSourcesWire is the JSON body of a compile request.
type hirSourcesWire struct {
	GlobalVariables   []globalStringWire `json:"global_variables,omitempty"`
	TypeDefinitions   []hirTypeDefWire   `json:"type_definitions,omitempty"`
	ClosureTypes      []hirClosureWire   `json:"closure_types,omitempty"`
	MainFunctionNames []string           `json:"main_function_names,omitempty"`
	Functions         []hirFunctionWire  `json:"functions,omitempty"`
}

func hirTypeToWire(tbl *symbol.Table, t hir.Type) typeWire {
	switch v := t.(type) {
	case hir.PrimInt:
		return typeWire{Kind: "int"}
	case hir.PrimBool:
		return typeWire{Kind: "bool"}
	case hir.PrimString:
		return typeWire{Kind: "string"}
	case hir.PrimAny:
		return typeWire{Kind: "any"}
	case hir.GenericParam:
		return typeWire{Kind: "generic", Name: tbl.Text(v.Name)}
	case hir.Nominal:
		args := make([]typeWire, len(v.Args))
		for i, a := range v.Args {
			args[i] = hirTypeToWire(tbl, a)
		}
		return typeWire{Kind: "nominal", Name: tbl.Text(v.Name), Args: args}
	case hir.Func:
		params := make([]typeWire, len(v.Params))
		for i, p := range v.Params {
			params[i] = hirTypeToWire(tbl, p)
		}
		result := hirTypeToWire(tbl, v.Result)
		return typeWire{Kind: "func", Params: params, Result: &result}
	default:
		return typeWire{Kind: "any"}
	}
}

func wireToHIRType(tbl *symbol.Table, w typeWire) (hir.Type, error) {
	switch w.Kind {
	case "int":
		return hir.PrimInt{}, nil
	case "bool":
		return hir.PrimBool{}, nil
	case "string":
		return hir.PrimString{}, nil
	case "any":
		return hir.PrimAny{}, nil
	case "generic":
		return hir.GenericParam{Name: tbl.AllocPermanent(w.Name)}, nil
	case "nominal":
		args := make([]hir.Type, len(w.Args))
		for i, a := range w.Args {
			at, err := wireToHIRType(tbl, a)
			if err != nil {
				return nil, err
			}
			args[i] = at
		}
		return hir.Nominal{Name: tbl.AllocPermanent(w.Name), Args: args}, nil
	case "func":
		if w.Result == nil {
			return nil, fmt.Errorf("coreserver: func type missing result")
		}
		params := make([]hir.Type, len(w.Params))
		for i, p := range w.Params {
			pt, err := wireToHIRType(tbl, p)
			if err != nil {
				return nil, err
			}
			params[i] = pt
		}
		result, err := wireToHIRType(tbl, *w.Result)
		if err != nil {
			return nil, err
		}
		return hir.Func{Params: params, Result: result}, nil
	default:
		return nil, fmt.Errorf("coreserver: unknown type kind %q", w.Kind)
	}
}

func hirExprToWire(tbl *symbol.Table, e hir.Expr) exprWire {
	switch v := e.(type) {
	case hir.IntLiteral:
		return exprWire{Kind: "int_literal", Value: v.Value}
	case hir.StringRef:
		return exprWire{Kind: "string_ref", Name: tbl.Text(v.Name)}
	case hir.VarRef:
		typ := hirTypeToWire(tbl, v.Typ)
		return exprWire{Kind: "var_ref", Name: tbl.Text(v.Name), Typ: &typ}
	case hir.FuncRef:
		typ := hirTypeToWire(tbl, v.Typ)
		return exprWire{Kind: "func_ref", Name: tbl.Text(v.Name), Typ: &typ}
	default:
		return exprWire{Kind: "int_literal"}
	}
}

func wireToHIRExpr(tbl *symbol.Table, w exprWire) (hir.Expr, error) {
	switch w.Kind {
	case "int_literal":
		return hir.IntLiteral{Value: w.Value}, nil
	case "string_ref":
		return hir.StringRef{Name: tbl.AllocPermanent(w.Name)}, nil
	case "var_ref":
		if w.Typ == nil {
			return nil, fmt.Errorf("coreserver: var_ref missing type")
		}
		t, err := wireToHIRType(tbl, *w.Typ)
		if err != nil {
			return nil, err
		}
		return hir.VarRef{Name: tbl.AllocPermanent(w.Name), Typ: t}, nil
	case "func_ref":
		if w.Typ == nil {
			return nil, fmt.Errorf("coreserver: func_ref missing type")
		}
		t, err := wireToHIRType(tbl, *w.Typ)
		if err != nil {
			return nil, err
		}
		return hir.FuncRef{Name: tbl.AllocPermanent(w.Name), Typ: t}, nil
	default:
		return nil, fmt.Errorf("coreserver: unknown expr kind %q", w.Kind)
	}
}

func hirStmtToWire(tbl *symbol.Table, s hir.Stmt) stmtWire {
	switch v := s.(type) {
	case hir.Binary:
		e1, e2 := hirExprToWire(tbl, v.E1), hirExprToWire(tbl, v.E2)
		typ := hirTypeToWire(tbl, v.Typ)
		op, _ := binaryOpName(int(v.Op))
		return stmtWire{Kind: "binary", Name: tbl.Text(v.Name), Op: op, E1: &e1, E2: &e2, Typ: &typ}
	case hir.Unary:
		e := hirExprToWire(tbl, v.E)
		typ := hirTypeToWire(tbl, v.Typ)
		op, _ := unaryOpName(int(v.Op))
		return stmtWire{Kind: "unary", Name: tbl.Text(v.Name), Op: op, E: &e, Typ: &typ}
	case hir.IndexedAccess:
		ptr := hirExprToWire(tbl, v.Ptr)
		typ := hirTypeToWire(tbl, v.Typ)
		idx := v.Index
		return stmtWire{Kind: "indexed_access", Name: tbl.Text(v.Name), Ptr: &ptr, Typ: &typ, Index: &idx}
	case hir.Cast:
		e := hirExprToWire(tbl, v.E)
		typ := hirTypeToWire(tbl, v.Typ)
		return stmtWire{Kind: "cast", Name: tbl.Text(v.Name), E: &e, Typ: &typ}
	case hir.Call:
		callee := hirExprToWire(tbl, v.Callee)
		args := make([]exprWire, len(v.Args))
		for i, a := range v.Args {
			args[i] = hirExprToWire(tbl, a)
		}
		retType := hirTypeToWire(tbl, v.ReturnType)
		w := stmtWire{Kind: "call", Callee: &callee, Args: args, ReturnType: &retType}
		if v.ReturnCollector != nil {
			name := tbl.Text(*v.ReturnCollector)
			w.ReturnCollector = &name
		}
		return w
	case hir.IfElse:
		cond := hirExprToWire(tbl, v.Cond)
		finals := make([]finalAssignWire, len(v.FinalAssignments))
		for i, f := range v.FinalAssignments {
			finals[i] = finalAssignWire{
				Name: tbl.Text(f.Name),
				Typ:  hirTypeToWire(tbl, f.Typ),
				E1:   hirExprToWire(tbl, f.E1),
				E2:   hirExprToWire(tbl, f.E2),
			}
		}
		return stmtWire{
			Kind:             "if_else",
			Cond:             &cond,
			S1:               hirStmtsToWire(tbl, v.S1),
			S2:               hirStmtsToWire(tbl, v.S2),
			FinalAssignments: finals,
		}
	case hir.StructInit:
		exprs := make([]exprWire, len(v.Exprs))
		for i, e := range v.Exprs {
			exprs[i] = hirExprToWire(tbl, e)
		}
		return stmtWire{Kind: "struct_init", Name: tbl.Text(v.Name), TypeName: tbl.Text(v.TypeName), Exprs: exprs}
	case hir.ClosureInit:
		ctx := hirExprToWire(tbl, v.Context)
		return stmtWire{
			Kind:            "closure_init",
			Name:            tbl.Text(v.Name),
			ClosureTypeName: tbl.Text(v.ClosureTypeName),
			FunctionName:    tbl.Text(v.FunctionName),
			Context:         &ctx,
		}
	case hir.LateInitDeclaration:
		typ := hirTypeToWire(tbl, v.Typ)
		return stmtWire{Kind: "late_init_decl", Name: tbl.Text(v.Name), Typ: &typ}
	case hir.LateInitAssignment:
		e := hirExprToWire(tbl, v.E)
		return stmtWire{Kind: "late_init_assign", Name: tbl.Text(v.Name), E: &e}
	case hir.While:
		loopVars := make([]loopVarWire, len(v.LoopVariables))
		for i, lv := range v.LoopVariables {
			loopVars[i] = loopVarWire{
				Name:      tbl.Text(lv.Name),
				Typ:       hirTypeToWire(tbl, lv.Typ),
				Init:      hirExprToWire(tbl, lv.Init),
				LoopValue: hirExprToWire(tbl, lv.LoopValue),
			}
		}
		w := stmtWire{Kind: "while", LoopVariables: loopVars, Body: hirStmtsToWire(tbl, v.Body)}
		if v.BreakCollector != nil {
			w.BreakCollector = &breakCollectorWire{Name: tbl.Text(v.BreakCollector.Name), Typ: hirTypeToWire(tbl, v.BreakCollector.Typ)}
		}
		return w
	case hir.Break:
		value := hirExprToWire(tbl, v.Value)
		return stmtWire{Kind: "break", Value: &value}
	default:
		return stmtWire{Kind: "late_init_decl"}
	}
}

func hirStmtsToWire(tbl *symbol.Table, stmts []hir.Stmt) []stmtWire {
	out := make([]stmtWire, len(stmts))
	for i, s := range stmts {
		out[i] = hirStmtToWire(tbl, s)
	}
	return out
}

func wireToHIRStmt(tbl *symbol.Table, w stmtWire) (hir.Stmt, error) {
	switch w.Kind {
	case "binary":
		op, err := binaryOpFromName(w.Op)
		if err != nil {
			return nil, err
		}
		e1, err := wireToHIRExpr(tbl, *w.E1)
		if err != nil {
			return nil, err
		}
		e2, err := wireToHIRExpr(tbl, *w.E2)
		if err != nil {
			return nil, err
		}
		typ, err := wireToHIRType(tbl, *w.Typ)
		if err != nil {
			return nil, err
		}
		return hir.Binary{Name: tbl.AllocPermanent(w.Name), Op: hir.BinaryOp(op), E1: e1, E2: e2, Typ: typ}, nil
	case "unary":
		op, err := unaryOpFromName(w.Op)
		if err != nil {
			return nil, err
		}
		e, err := wireToHIRExpr(tbl, *w.E)
		if err != nil {
			return nil, err
		}
		typ, err := wireToHIRType(tbl, *w.Typ)
		if err != nil {
			return nil, err
		}
		return hir.Unary{Name: tbl.AllocPermanent(w.Name), Op: hir.UnaryOp(op), E: e, Typ: typ}, nil
	case "indexed_access":
		ptr, err := wireToHIRExpr(tbl, *w.Ptr)
		if err != nil {
			return nil, err
		}
		typ, err := wireToHIRType(tbl, *w.Typ)
		if err != nil {
			return nil, err
		}
		return hir.IndexedAccess{Name: tbl.AllocPermanent(w.Name), Typ: typ, Ptr: ptr, Index: *w.Index}, nil
	case "cast":
		e, err := wireToHIRExpr(tbl, *w.E)
		if err != nil {
			return nil, err
		}
		typ, err := wireToHIRType(tbl, *w.Typ)
		if err != nil {
			return nil, err
		}
		return hir.Cast{Name: tbl.AllocPermanent(w.Name), Typ: typ, E: e}, nil
	case "call":
		callee, err := wireToHIRExpr(tbl, *w.Callee)
		if err != nil {
			return nil, err
		}
		args := make([]hir.Expr, len(w.Args))
		for i, a := range w.Args {
			ae, err := wireToHIRExpr(tbl, a)
			if err != nil {
				return nil, err
			}
			args[i] = ae
		}
		retType, err := wireToHIRType(tbl, *w.ReturnType)
		if err != nil {
			return nil, err
		}
		call := hir.Call{Callee: callee, Args: args, ReturnType: retType}
		if w.ReturnCollector != nil {
			name := tbl.AllocPermanent(*w.ReturnCollector)
			call.ReturnCollector = &name
		}
		return call, nil
	case "if_else":
		cond, err := wireToHIRExpr(tbl, *w.Cond)
		if err != nil {
			return nil, err
		}
		s1, err := wireToHIRStmts(tbl, w.S1)
		if err != nil {
			return nil, err
		}
		s2, err := wireToHIRStmts(tbl, w.S2)
		if err != nil {
			return nil, err
		}
		finals := make([]hir.FinalAssignment, len(w.FinalAssignments))
		for i, f := range w.FinalAssignments {
			typ, err := wireToHIRType(tbl, f.Typ)
			if err != nil {
				return nil, err
			}
			e1, err := wireToHIRExpr(tbl, f.E1)
			if err != nil {
				return nil, err
			}
			e2, err := wireToHIRExpr(tbl, f.E2)
			if err != nil {
				return nil, err
			}
			finals[i] = hir.FinalAssignment{Name: tbl.AllocPermanent(f.Name), Typ: typ, E1: e1, E2: e2}
		}
		return hir.IfElse{Cond: cond, S1: s1, S2: s2, FinalAssignments: finals}, nil
	case "struct_init":
		exprs := make([]hir.Expr, len(w.Exprs))
		for i, e := range w.Exprs {
			we, err := wireToHIRExpr(tbl, e)
			if err != nil {
				return nil, err
			}
			exprs[i] = we
		}
		return hir.StructInit{Name: tbl.AllocPermanent(w.Name), TypeName: tbl.AllocPermanent(w.TypeName), Exprs: exprs}, nil
	case "closure_init":
		ctx, err := wireToHIRExpr(tbl, *w.Context)
		if err != nil {
			return nil, err
		}
		return hir.ClosureInit{
			Name:            tbl.AllocPermanent(w.Name),
			ClosureTypeName: tbl.AllocPermanent(w.ClosureTypeName),
			FunctionName:    tbl.AllocPermanent(w.FunctionName),
			Context:         ctx,
		}, nil
	case "late_init_decl":
		typ, err := wireToHIRType(tbl, *w.Typ)
		if err != nil {
			return nil, err
		}
		return hir.LateInitDeclaration{Name: tbl.AllocPermanent(w.Name), Typ: typ}, nil
	case "late_init_assign":
		e, err := wireToHIRExpr(tbl, *w.E)
		if err != nil {
			return nil, err
		}
		return hir.LateInitAssignment{Name: tbl.AllocPermanent(w.Name), E: e}, nil
	case "while":
		loopVars := make([]hir.LoopVariable, len(w.LoopVariables))
		for i, lv := range w.LoopVariables {
			typ, err := wireToHIRType(tbl, lv.Typ)
			if err != nil {
				return nil, err
			}
			init, err := wireToHIRExpr(tbl, lv.Init)
			if err != nil {
				return nil, err
			}
			loopVal, err := wireToHIRExpr(tbl, lv.LoopValue)
			if err != nil {
				return nil, err
			}
			loopVars[i] = hir.LoopVariable{Name: tbl.AllocPermanent(lv.Name), Typ: typ, Init: init, LoopValue: loopVal}
		}
		body, err := wireToHIRStmts(tbl, w.Body)
		if err != nil {
			return nil, err
		}
		while := hir.While{LoopVariables: loopVars, Body: body}
		if w.BreakCollector != nil {
			typ, err := wireToHIRType(tbl, w.BreakCollector.Typ)
			if err != nil {
				return nil, err
			}
			while.BreakCollector = &hir.BreakCollector{Name: tbl.AllocPermanent(w.BreakCollector.Name), Typ: typ}
		}
		return while, nil
	case "break":
		value, err := wireToHIRExpr(tbl, *w.Value)
		if err != nil {
			return nil, err
		}
		return hir.Break{Value: value}, nil
	default:
		return nil, fmt.Errorf("coreserver: unknown statement kind %q", w.Kind)
	}
}

func wireToHIRStmts(tbl *symbol.Table, ws []stmtWire) ([]hir.Stmt, error) {
	out := make([]hir.Stmt, len(ws))
	for i, w := range ws {
		s, err := wireToHIRStmt(tbl, w)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func hirSourcesToWire(tbl *symbol.Table, src *hir.Sources) hirSourcesWire {
	var w hirSourcesWire
	for _, g := range src.GlobalVariables {
		w.GlobalVariables = append(w.GlobalVariables, globalStringWire{Name: tbl.Text(g.Name), Bytes: g.Bytes})
	}
	for _, td := range src.TypeDefinitions {
		tdw := hirTypeDefWire{Name: tbl.Text(td.Name)}
		for _, p := range td.TypeParams {
			tdw.TypeParams = append(tdw.TypeParams, tbl.Text(p))
		}
		if td.Mappings.IsStruct() {
			for _, f := range td.Mappings.StructFields {
				tdw.Mappings.StructFields = append(tdw.Mappings.StructFields, hirTypeToWire(tbl, f))
			}
		} else {
			tdw.Mappings.IsEnum = true
			for _, v := range td.Mappings.EnumVariants {
				vw := variantWire{}
				switch v.Kind {
				case hir.VariantUnboxed:
					vw.Kind = "unboxed"
					t := hirTypeToWire(tbl, v.Unboxed)
					vw.Unboxed = &t
				case hir.VariantInt31:
					vw.Kind = "int31"
				case hir.VariantBoxed:
					vw.Kind = "boxed"
				}
				for _, b := range v.Boxed {
					vw.Boxed = append(vw.Boxed, hirTypeToWire(tbl, b))
				}
				tdw.Mappings.EnumVariants = append(tdw.Mappings.EnumVariants, vw)
			}
		}
		w.TypeDefinitions = append(w.TypeDefinitions, tdw)
	}
	for _, ct := range src.ClosureTypes {
		cw := hirClosureWire{Name: tbl.Text(ct.Name), FunctionType: hirTypeToWire(tbl, ct.FunctionType)}
		for _, p := range ct.TypeParams {
			cw.TypeParams = append(cw.TypeParams, tbl.Text(p))
		}
		w.ClosureTypes = append(w.ClosureTypes, cw)
	}
	for _, m := range src.MainFunctionNames {
		w.MainFunctionNames = append(w.MainFunctionNames, tbl.Text(m))
	}
	for _, fn := range src.Functions {
		fw := hirFunctionWire{Name: tbl.Text(fn.Name), Typ: hirTypeToWire(tbl, fn.Typ), ReturnValue: hirExprToWire(tbl, fn.ReturnValue)}
		for _, p := range fn.TypeParams {
			fw.TypeParams = append(fw.TypeParams, tbl.Text(p))
		}
		for _, p := range fn.Parameters {
			fw.Parameters = append(fw.Parameters, paramWire{Name: tbl.Text(p.Name), Typ: hirTypeToWire(tbl, p.Typ)})
		}
		fw.Body = hirStmtsToWire(tbl, fn.Body)
		w.Functions = append(w.Functions, fw)
	}
	return w
}

func wireToHIRSources(tbl *symbol.Table, w hirSourcesWire) (*hir.Sources, error) {
	src := &hir.Sources{}
	for _, g := range w.GlobalVariables {
		src.GlobalVariables = append(src.GlobalVariables, hir.GlobalString{Name: tbl.AllocPermanent(g.Name), Bytes: g.Bytes})
	}
	for _, tdw := range w.TypeDefinitions {
		td := hir.TypeDefinition{Name: tbl.AllocPermanent(tdw.Name)}
		for _, p := range tdw.TypeParams {
			td.TypeParams = append(td.TypeParams, tbl.AllocPermanent(p))
		}
		if !tdw.Mappings.IsEnum {
			for _, f := range tdw.Mappings.StructFields {
				ft, err := wireToHIRType(tbl, f)
				if err != nil {
					return nil, err
				}
				td.Mappings.StructFields = append(td.Mappings.StructFields, ft)
			}
			if td.Mappings.StructFields == nil {
				td.Mappings.StructFields = []hir.Type{}
			}
		} else {
			for _, vw := range tdw.Mappings.EnumVariants {
				v := hir.Variant{}
				switch vw.Kind {
				case "unboxed":
					v.Kind = hir.VariantUnboxed
					if vw.Unboxed != nil {
						t, err := wireToHIRType(tbl, *vw.Unboxed)
						if err != nil {
							return nil, err
						}
						v.Unboxed = t
					}
				case "int31":
					v.Kind = hir.VariantInt31
				case "boxed":
					v.Kind = hir.VariantBoxed
				default:
					return nil, fmt.Errorf("coreserver: unknown variant kind %q", vw.Kind)
				}
				for _, b := range vw.Boxed {
					bt, err := wireToHIRType(tbl, b)
					if err != nil {
						return nil, err
					}
					v.Boxed = append(v.Boxed, bt)
				}
				td.Mappings.EnumVariants = append(td.Mappings.EnumVariants, v)
			}
		}
		src.TypeDefinitions = append(src.TypeDefinitions, td)
	}
	for _, cw := range w.ClosureTypes {
		ft, err := wireToHIRType(tbl, cw.FunctionType)
		if err != nil {
			return nil, err
		}
		fnType, ok := ft.(hir.Func)
		if !ok {
			return nil, fmt.Errorf("coreserver: closure type %q function_type is not a func type", cw.Name)
		}
		ct := hir.ClosureTypeDefinition{Name: tbl.AllocPermanent(cw.Name), FunctionType: fnType}
		for _, p := range cw.TypeParams {
			ct.TypeParams = append(ct.TypeParams, tbl.AllocPermanent(p))
		}
		src.ClosureTypes = append(src.ClosureTypes, ct)
	}
	for _, m := range w.MainFunctionNames {
		src.MainFunctionNames = append(src.MainFunctionNames, tbl.AllocPermanent(m))
	}
	for _, fw := range w.Functions {
		ft, err := wireToHIRType(tbl, fw.Typ)
		if err != nil {
			return nil, err
		}
		fnType, ok := ft.(hir.Func)
		if !ok {
			return nil, fmt.Errorf("coreserver: function %q type is not a func type", fw.Name)
		}
		fn := hir.Function{Name: tbl.AllocPermanent(fw.Name), Typ: fnType}
		for _, p := range fw.TypeParams {
			fn.TypeParams = append(fn.TypeParams, tbl.AllocPermanent(p))
		}
		for _, p := range fw.Parameters {
			pt, err := wireToHIRType(tbl, p.Typ)
			if err != nil {
				return nil, err
			}
			fn.Parameters = append(fn.Parameters, hir.Parameter{Name: tbl.AllocPermanent(p.Name), Typ: pt})
		}
		body, err := wireToHIRStmts(tbl, fw.Body)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", fw.Name, err)
		}
		fn.Body = body
		ret, err := wireToHIRExpr(tbl, fw.ReturnValue)
		if err != nil {
			return nil, fmt.Errorf("function %q return value: %w", fw.Name, err)
		}
		fn.ReturnValue = ret
		src.Functions = append(src.Functions, fn)
	}
	return src, nil
}

// --- LIR: encode only (the server's response direction) ---

type lirObjectLayoutWire struct {
	Name          string     `json:"name"`
	FieldTypes    []typeWire `json:"field_types,omitempty"`
	PointerBitmap uint16     `json:"pointer_bitmap"`
}

type lirClosureWire struct {
	Name         string   `json:"name"`
	FunctionType typeWire `json:"function_type"`
}

type lirFunctionWire struct {
	Name        string      `json:"name"`
	Parameters  []paramWire `json:"parameters,omitempty"`
	Typ         typeWire    `json:"function_type"`
	Body        []stmtWire  `json:"body,omitempty"`
	ReturnValue exprWire    `json:"return_value"`
}

// lirSourcesWire is the JSON body of a compile response.
type lirSourcesWire struct {
	GlobalVariables   []globalStringWire    `json:"global_variables,omitempty"`
	ObjectLayouts     []lirObjectLayoutWire `json:"object_layouts,omitempty"`
	ClosureTypes      []lirClosureWire      `json:"closure_types,omitempty"`
	MainFunctionNames []string              `json:"main_function_names,omitempty"`
	Functions         []lirFunctionWire     `json:"functions,omitempty"`
}

func lirTypeToWire(tbl *symbol.Table, t lir.Type) typeWire {
	switch v := t.(type) {
	case lir.Int32:
		return typeWire{Kind: "int32"}
	case lir.Int31:
		return typeWire{Kind: "int31"}
	case lir.AnyPointer:
		return typeWire{Kind: "any_pointer"}
	case lir.Nominal:
		return typeWire{Kind: "nominal", Name: tbl.Text(v.Name)}
	case lir.Func:
		params := make([]typeWire, len(v.Params))
		for i, p := range v.Params {
			params[i] = lirTypeToWire(tbl, p)
		}
		result := lirTypeToWire(tbl, v.Result)
		return typeWire{Kind: "func", Params: params, Result: &result}
	default:
		return typeWire{Kind: "any_pointer"}
	}
}

func lirExprToWire(tbl *symbol.Table, e lir.Expr) exprWire {
	switch v := e.(type) {
	case lir.IntLiteral:
		return exprWire{Kind: "int_literal", Value: v.Value}
	case lir.StringRef:
		return exprWire{Kind: "string_ref", Name: tbl.Text(v.Name)}
	case lir.VarRef:
		typ := lirTypeToWire(tbl, v.Typ)
		return exprWire{Kind: "var_ref", Name: tbl.Text(v.Name), Typ: &typ}
	case lir.FuncRef:
		typ := lirTypeToWire(tbl, v.Typ)
		return exprWire{Kind: "func_ref", Name: tbl.Text(v.Name), Typ: &typ}
	default:
		return exprWire{Kind: "int_literal"}
	}
}

func lirStmtToWire(tbl *symbol.Table, s lir.Stmt) stmtWire {
	switch v := s.(type) {
	case lir.Binary:
		e1, e2 := lirExprToWire(tbl, v.E1), lirExprToWire(tbl, v.E2)
		typ := lirTypeToWire(tbl, v.Typ)
		op, _ := binaryOpName(int(v.Op))
		return stmtWire{Kind: "binary", Name: tbl.Text(v.Name), Op: op, E1: &e1, E2: &e2, Typ: &typ}
	case lir.Unary:
		e := lirExprToWire(tbl, v.E)
		typ := lirTypeToWire(tbl, v.Typ)
		op, _ := unaryOpName(int(v.Op))
		return stmtWire{Kind: "unary", Name: tbl.Text(v.Name), Op: op, E: &e, Typ: &typ}
	case lir.IndexedAccess:
		ptr := lirExprToWire(tbl, v.Ptr)
		typ := lirTypeToWire(tbl, v.Typ)
		idx := v.Index
		return stmtWire{Kind: "indexed_access", Name: tbl.Text(v.Name), Ptr: &ptr, Typ: &typ, Index: &idx}
	case lir.IndexedAssign:
		ptr := lirExprToWire(tbl, v.Ptr)
		value := lirExprToWire(tbl, v.Value)
		idx := v.Index
		return stmtWire{Kind: "indexed_assign", Ptr: &ptr, Index: &idx, Value: &value}
	case lir.Cast:
		e := lirExprToWire(tbl, v.E)
		typ := lirTypeToWire(tbl, v.Typ)
		return stmtWire{Kind: "cast", Name: tbl.Text(v.Name), E: &e, Typ: &typ}
	case lir.Call:
		callee := lirExprToWire(tbl, v.Callee)
		args := make([]exprWire, len(v.Args))
		for i, a := range v.Args {
			args[i] = lirExprToWire(tbl, a)
		}
		retType := lirTypeToWire(tbl, v.ReturnType)
		w := stmtWire{Kind: "call", Callee: &callee, Args: args, ReturnType: &retType}
		if v.ReturnCollector != nil {
			name := tbl.Text(*v.ReturnCollector)
			w.ReturnCollector = &name
		}
		return w
	case lir.IfElse:
		cond := lirExprToWire(tbl, v.Cond)
		finals := make([]finalAssignWire, len(v.FinalAssignments))
		for i, f := range v.FinalAssignments {
			finals[i] = finalAssignWire{
				Name: tbl.Text(f.Name),
				Typ:  lirTypeToWire(tbl, f.Typ),
				E1:   lirExprToWire(tbl, f.E1),
				E2:   lirExprToWire(tbl, f.E2),
			}
		}
		return stmtWire{
			Kind:             "if_else",
			Cond:             &cond,
			S1:               lirStmtsToWire(tbl, v.S1),
			S2:               lirStmtsToWire(tbl, v.S2),
			FinalAssignments: finals,
		}
	case lir.SingleIf:
		cond := lirExprToWire(tbl, v.Cond)
		return stmtWire{Kind: "single_if", Cond: &cond, Body: lirStmtsToWire(tbl, v.Body)}
	case lir.StructInit:
		exprs := make([]exprWire, len(v.Exprs))
		for i, e := range v.Exprs {
			exprs[i] = lirExprToWire(tbl, e)
		}
		return stmtWire{Kind: "struct_init", Name: tbl.Text(v.Name), TypeName: tbl.Text(v.TypeName), Exprs: exprs}
	case lir.ClosureInit:
		ctx := lirExprToWire(tbl, v.Context)
		return stmtWire{
			Kind:            "closure_init",
			Name:            tbl.Text(v.Name),
			ClosureTypeName: tbl.Text(v.ClosureTypeName),
			FunctionName:    tbl.Text(v.FunctionName),
			Context:         &ctx,
		}
	case lir.LateInitDeclaration:
		typ := lirTypeToWire(tbl, v.Typ)
		return stmtWire{Kind: "late_init_decl", Name: tbl.Text(v.Name), Typ: &typ}
	case lir.LateInitAssignment:
		e := lirExprToWire(tbl, v.E)
		return stmtWire{Kind: "late_init_assign", Name: tbl.Text(v.Name), E: &e}
	case lir.While:
		loopVars := make([]loopVarWire, len(v.LoopVariables))
		for i, lv := range v.LoopVariables {
			loopVars[i] = loopVarWire{
				Name:      tbl.Text(lv.Name),
				Typ:       lirTypeToWire(tbl, lv.Typ),
				Init:      lirExprToWire(tbl, lv.Init),
				LoopValue: lirExprToWire(tbl, lv.LoopValue),
			}
		}
		w := stmtWire{Kind: "while", LoopVariables: loopVars, Body: lirStmtsToWire(tbl, v.Body)}
		if v.BreakCollector != nil {
			w.BreakCollector = &breakCollectorWire{Name: tbl.Text(v.BreakCollector.Name), Typ: lirTypeToWire(tbl, v.BreakCollector.Typ)}
		}
		return w
	case lir.Break:
		value := lirExprToWire(tbl, v.Value)
		return stmtWire{Kind: "break", Value: &value}
	default:
		return stmtWire{Kind: "late_init_decl"}
	}
}

func lirStmtsToWire(tbl *symbol.Table, stmts []lir.Stmt) []stmtWire {
	out := make([]stmtWire, len(stmts))
	for i, s := range stmts {
		out[i] = lirStmtToWire(tbl, s)
	}
	return out
}

func lirSourcesToWire(tbl *symbol.Table, src *lir.Sources) lirSourcesWire {
	var w lirSourcesWire
	for _, g := range src.GlobalVariables {
		w.GlobalVariables = append(w.GlobalVariables, globalStringWire{Name: tbl.Text(g.Name), Bytes: g.Bytes})
	}
	for _, ol := range src.ObjectLayouts {
		olw := lirObjectLayoutWire{Name: tbl.Text(ol.Name), PointerBitmap: ol.PointerBitmap}
		for _, f := range ol.FieldTypes {
			olw.FieldTypes = append(olw.FieldTypes, lirTypeToWire(tbl, f))
		}
		w.ObjectLayouts = append(w.ObjectLayouts, olw)
	}
	for _, ct := range src.ClosureTypes {
		w.ClosureTypes = append(w.ClosureTypes, lirClosureWire{Name: tbl.Text(ct.Name), FunctionType: lirTypeToWire(tbl, ct.FunctionType)})
	}
	for _, m := range src.MainFunctionNames {
		w.MainFunctionNames = append(w.MainFunctionNames, tbl.Text(m))
	}
	for _, fn := range src.Functions {
		fw := lirFunctionWire{Name: tbl.Text(fn.Name), Typ: lirTypeToWire(tbl, fn.Typ), ReturnValue: lirExprToWire(tbl, fn.ReturnValue)}
		for _, p := range fn.Parameters {
			fw.Parameters = append(fw.Parameters, paramWire{Name: tbl.Text(p.Name), Typ: lirTypeToWire(tbl, p.Typ)})
		}
		fw.Body = lirStmtsToWire(tbl, fn.Body)
		w.Functions = append(w.Functions, fw)
	}
	return w
}
