package lir

import (
	"fmt"

	"corelang/internal/ir/mir"
	"corelang/internal/symbol"
)

// Layouter drives S3: MIR to LIR, fixing concrete physical layouts for
// every monomorphized struct and enum and turning typed field access
// into index arithmetic against those layouts.
type Layouter struct {
	tbl *symbol.Table

	// layouts maps a monomorphized type name to its chosen physical
	// shape. Populated by layoutTypeDefs before any function lowers.
	layouts map[Symbol]ObjectLayout
	// enumVariantLayout maps (enumName, variantIndex) to the boxed
	// variant's own object layout name, for VariantBoxed arms only.
	enumVariantLayout map[Symbol][]Symbol
	// Physical field indices are not stored per type: fields keep
	// declaration order and the header occupies index 0, so logical index
	// i is physical index i+1 for every struct (see fieldIndex).
}

// NewLayouter prepares a layouter over tbl.
func NewLayouter(tbl *symbol.Table) *Layouter {
	return &Layouter{
		tbl:               tbl,
		layouts:           make(map[Symbol]ObjectLayout),
		enumVariantLayout: make(map[Symbol][]Symbol),
	}
}

// Run lowers src into LIR.
func (l *Layouter) Run(src *mir.Sources) (*Sources, error) {
	var objectLayouts []ObjectLayout
	for _, td := range src.TypeDefinitions {
		layout, variantNames, err := l.layoutTypeDef(td)
		if err != nil {
			return nil, err
		}
		l.layouts[td.Name] = layout
		objectLayouts = append(objectLayouts, layout)
		if len(variantNames) > 0 {
			l.enumVariantLayout[td.Name] = variantNames
			for i, vn := range variantNames {
				if vn == (Symbol{}) {
					continue
				}
				vLayout := l.boxedVariantLayout(td, i)
				l.layouts[vn] = vLayout
				objectLayouts = append(objectLayouts, vLayout)
			}
		}
	}

	closureTypes := make([]ClosureTypeDefinition, len(src.ClosureTypes))
	for i, ct := range src.ClosureTypes {
		closureTypes[i] = ClosureTypeDefinition{Name: ct.Name, FunctionType: l.lowerFuncType(ct.FunctionType)}
	}

	globals := make([]GlobalString, len(src.GlobalVariables))
	for i, g := range src.GlobalVariables {
		globals[i] = GlobalString{Name: g.Name, Bytes: g.Bytes}
	}

	fns := make([]Function, len(src.Functions))
	for i, fn := range src.Functions {
		lowered, err := l.lowerFunction(fn)
		if err != nil {
			return nil, err
		}
		fns[i] = lowered
	}

	return &Sources{
		GlobalVariables:   globals,
		ObjectLayouts:     objectLayouts,
		ClosureTypes:      closureTypes,
		MainFunctionNames: append([]Symbol(nil), src.MainFunctionNames...),
		Functions:         fns,
	}, nil
}

// layoutTypeDef computes the physical layout for one monomorphized
// struct or enum. For an enum, the returned ObjectLayout describes the
// tagged-union carrier itself only when at least one variant is boxed
// (tag + largest boxed payload slot); unboxed and Int31 variants never
// allocate an object of their own. variantNames[i] names the boxed
// layout for variant i, or the zero Symbol if variant i does not box.
func (l *Layouter) layoutTypeDef(td mir.TypeDefinition) (ObjectLayout, []Symbol, error) {
	if td.Mappings.IsStruct() {
		fieldTypes := make([]Type, len(td.Mappings.StructFields))
		var bitmap uint16
		for i, f := range td.Mappings.StructFields {
			lt := l.lowerType(f)
			fieldTypes[i] = lt
			if IsPointerShaped(lt) {
				bitmap |= 1 << uint(i)
			}
		}
		return ObjectLayout{Name: td.Name, FieldTypes: fieldTypes, PointerBitmap: bitmap}, nil, nil
	}

	variants := td.Mappings.EnumVariants
	variantNames := make([]Symbol, len(variants))
	maxBoxedFields := 0
	anyBoxed := false
	for i, v := range variants {
		if v.Kind == mir.VariantBoxed {
			anyBoxed = true
			variantNames[i] = l.tbl.AllocPermanent(fmt.Sprintf("%s$v%d", l.tbl.Text(td.Name), i))
			if len(v.Boxed) > maxBoxedFields {
				maxBoxedFields = len(v.Boxed)
			}
		}
	}
	if !anyBoxed {
		// every variant is unboxed or Int31: the enum never allocates.
		return ObjectLayout{Name: td.Name, FieldTypes: nil, PointerBitmap: 0}, variantNames, nil
	}
	// the carrier layout itself: tag (Int32) followed by an opaque
	// pointer slot, enough to hold any boxed variant's own object.
	return ObjectLayout{Name: td.Name, FieldTypes: []Type{Int32{}, AnyPointer{}}, PointerBitmap: 0b10}, variantNames, nil
}

// boxedVariantLayout computes the object layout for one boxed variant's
// own struct: a tag field (identifying which variant) followed by its
// payload fields.
func (l *Layouter) boxedVariantLayout(td mir.TypeDefinition, variantIdx int) ObjectLayout {
	v := td.Mappings.EnumVariants[variantIdx]
	fieldTypes := make([]Type, 0, len(v.Boxed)+1)
	fieldTypes = append(fieldTypes, Int32{}) // variant tag
	var bitmap uint16
	bitmap |= 0 // tag field (index 0) is never pointer-shaped
	for i, f := range v.Boxed {
		lt := l.lowerType(f)
		fieldTypes = append(fieldTypes, lt)
		if IsPointerShaped(lt) {
			bitmap |= 1 << uint(i+1)
		}
	}
	return ObjectLayout{
		Name:          l.enumVariantLayout[td.Name][variantIdx],
		FieldTypes:    fieldTypes,
		PointerBitmap: bitmap,
	}
}

// lowerType maps a MIR type to its LIR counterpart. Nominal types keep
// their name (the object layout is looked up separately); Func becomes a
// lowered Func; everything else is structural.
func (l *Layouter) lowerType(t mir.Type) Type {
	switch v := t.(type) {
	case mir.Int32:
		return Int32{}
	case mir.Int31:
		return Int31{}
	case mir.Nominal:
		return Nominal{Name: v.Name}
	case mir.Func:
		return l.lowerFuncType(v)
	default:
		return AnyPointer{}
	}
}

func (l *Layouter) lowerFuncType(f mir.Func) Func {
	params := make([]Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = l.lowerType(p)
	}
	return Func{Params: params, Result: l.lowerType(f.Result)}
}

// fieldIndex returns the physical statement-level index for logical
// field i of a struct type: the header occupies physical index 0, so
// logical field i sits at physical index i+1.
func fieldIndex(logical int) int { return logical + 1 }

func (l *Layouter) lowerFunction(fn mir.Function) (Function, error) {
	params := make([]Parameter, len(fn.Parameters))
	for i, p := range fn.Parameters {
		params[i] = Parameter{Name: p.Name, Typ: l.lowerType(p.Typ)}
	}
	body, err := l.lowerStmts(fn.Body)
	if err != nil {
		return Function{}, err
	}
	return Function{
		Name:        fn.Name,
		Parameters:  params,
		Typ:         l.lowerFuncType(fn.Typ),
		Body:        body,
		ReturnValue: l.lowerExpr(fn.ReturnValue),
	}, nil
}

func (l *Layouter) lowerStmts(body []mir.Stmt) ([]Stmt, error) {
	out := make([]Stmt, 0, len(body))
	for _, s := range body {
		ls, err := l.lowerStmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ls...)
	}
	return out, nil
}

func (l *Layouter) lowerExpr(e mir.Expr) Expr {
	switch v := e.(type) {
	case nil:
		return nil
	case mir.IntLiteral:
		return IntLiteral{Value: v.Value}
	case mir.StringRef:
		return StringRef{Name: v.Name}
	case mir.VarRef:
		return VarRef{Name: v.Name, Typ: l.lowerType(v.Typ)}
	case mir.FuncRef:
		return FuncRef{Name: v.Name, Typ: l.lowerType(v.Typ)}
	default:
		return nil
	}
}

func (l *Layouter) lowerExprs(es []mir.Expr) []Expr {
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = l.lowerExpr(e)
	}
	return out
}

func (l *Layouter) lowerStmt(s mir.Stmt) ([]Stmt, error) {
	switch v := s.(type) {
	case mir.Binary:
		return []Stmt{Binary{Name: v.Name, Op: BinaryOp(v.Op), E1: l.lowerExpr(v.E1), E2: l.lowerExpr(v.E2), Typ: l.lowerType(v.Typ)}}, nil
	case mir.Unary:
		return []Stmt{Unary{Name: v.Name, Op: UnaryOp(v.Op), E: l.lowerExpr(v.E), Typ: l.lowerType(v.Typ)}}, nil
	case mir.IndexedAccess:
		return []Stmt{IndexedAccess{Name: v.Name, Typ: l.lowerType(v.Typ), Ptr: l.lowerExpr(v.Ptr), Index: fieldIndex(v.Index)}}, nil
	case mir.Cast:
		return []Stmt{Cast{Name: v.Name, Typ: l.lowerType(v.Typ), E: l.lowerExpr(v.E)}}, nil
	case mir.Call:
		var rc *Symbol
		if v.ReturnCollector != nil {
			rc = v.ReturnCollector
		}
		return []Stmt{Call{Callee: l.lowerExpr(v.Callee), Args: l.lowerExprs(v.Args), ReturnType: l.lowerType(v.ReturnType), ReturnCollector: rc}}, nil
	case mir.IfElse:
		s1, err := l.lowerStmts(v.S1)
		if err != nil {
			return nil, err
		}
		s2, err := l.lowerStmts(v.S2)
		if err != nil {
			return nil, err
		}
		fas := make([]FinalAssignment, len(v.FinalAssignments))
		for i, fa := range v.FinalAssignments {
			fas[i] = FinalAssignment{Name: fa.Name, Typ: l.lowerType(fa.Typ), E1: l.lowerExpr(fa.E1), E2: l.lowerExpr(fa.E2)}
		}
		return []Stmt{IfElse{Cond: l.lowerExpr(v.Cond), S1: s1, S2: s2, FinalAssignments: fas}}, nil
	case mir.SingleIf:
		body, err := l.lowerStmts(v.Body)
		if err != nil {
			return nil, err
		}
		return []Stmt{SingleIf{Cond: l.lowerExpr(v.Cond), Body: body}}, nil
	case mir.StructInit:
		return l.lowerStructInit(v)
	case mir.ClosureInit:
		return l.lowerClosureInit(v)
	case mir.LateInitDeclaration:
		return []Stmt{LateInitDeclaration{Name: v.Name, Typ: l.lowerType(v.Typ)}}, nil
	case mir.LateInitAssignment:
		return []Stmt{LateInitAssignment{Name: v.Name, E: l.lowerExpr(v.E)}}, nil
	case mir.While:
		lvs := make([]LoopVariable, len(v.LoopVariables))
		for i, lv := range v.LoopVariables {
			lvs[i] = LoopVariable{Name: lv.Name, Typ: l.lowerType(lv.Typ), Init: l.lowerExpr(lv.Init), LoopValue: l.lowerExpr(lv.LoopValue)}
		}
		body, err := l.lowerStmts(v.Body)
		if err != nil {
			return nil, err
		}
		var bc *BreakCollector
		if v.BreakCollector != nil {
			bc = &BreakCollector{Name: v.BreakCollector.Name, Typ: l.lowerType(v.BreakCollector.Typ)}
		}
		return []Stmt{While{LoopVariables: lvs, Body: body, BreakCollector: bc}}, nil
	case mir.Break:
		return []Stmt{Break{Value: l.lowerExpr(v.Value)}}, nil
	default:
		return nil, fmt.Errorf("lir: unhandled MIR statement %T", s)
	}
}

// lowerStructInit builds the header word and appends it as field 0, per
// the struct StructInit rule: bit 16+i is set in the header whenever
// field i's type in the object layout is pointer-shaped. This
// implementation resolves the struct/closure header construction using
// a single OR rule throughout (open-question decision #3).
func (l *Layouter) lowerStructInit(v mir.StructInit) ([]Stmt, error) {
	layout, ok := l.layouts[v.TypeName]
	if !ok {
		return nil, fmt.Errorf("lir: struct init references unlaid-out type %s", l.tbl.Text(v.TypeName))
	}
	exprs := l.lowerExprs(v.Exprs)
	var bitmap uint32
	for i, ft := range layout.FieldTypes {
		if i < len(exprs) && IsPointerShaped(ft) {
			bitmap |= 1 << uint(i+16)
		}
	}
	header := IntLiteral{Value: int32(1 | bitmap)}
	full := append([]Expr{header}, exprs...)
	return []Stmt{StructInit{Name: v.Name, TypeName: v.TypeName, Exprs: full}}, nil
}

func (l *Layouter) lowerClosureInit(v mir.ClosureInit) ([]Stmt, error) {
	ctx := l.lowerExpr(v.Context)
	var bitmap uint32
	if IsPointerShaped(ctx.Type()) {
		bitmap |= 1 << (1 + 16)
	}
	header := IntLiteral{Value: int32(1 | bitmap)}

	ctxTemp := l.tbl.NewTempSymbol()
	stmts := []Stmt{Cast{Name: ctxTemp, Typ: AnyPointer{}, E: ctx}}
	stmts = append(stmts, StructInit{
		Name:     v.Name,
		TypeName: v.ClosureTypeName,
		Exprs:    []Expr{header, FuncRef{Name: v.FunctionName, Typ: AnyPointer{}}, VarRef{Name: ctxTemp, Typ: AnyPointer{}}},
	})
	return stmts, nil
}
