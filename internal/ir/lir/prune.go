package lir

import "corelang/internal/symbol"

// Pruner drives S5: transitive-closure reachability from the entry
// points over function-name and type-name references, dropping anything
// the closure never touches while preserving the surviving items'
// relative input order.
type Pruner struct {
	tbl *symbol.Table
}

func NewPruner(tbl *symbol.Table) *Pruner {
	return &Pruner{tbl: tbl}
}

type nameKind int

const (
	kindFunc nameKind = iota
	kindType
	kindClosure
	kindString
)

type nameTask struct {
	kind nameKind
	name Symbol
}

// Run computes the reachable set and filters src down to it, keeping
// the input's order.
func (p *Pruner) Run(src *Sources) *Sources {
	functionsByName := make(map[Symbol]Function, len(src.Functions))
	for _, fn := range src.Functions {
		functionsByName[fn.Name] = fn
	}
	typesByName := make(map[Symbol]ObjectLayout, len(src.ObjectLayouts))
	for _, t := range src.ObjectLayouts {
		typesByName[t.Name] = t
	}
	closuresByName := make(map[Symbol]ClosureTypeDefinition, len(src.ClosureTypes))
	for _, c := range src.ClosureTypes {
		closuresByName[c.Name] = c
	}

	reached := map[nameKind]map[Symbol]bool{
		kindFunc:    make(map[Symbol]bool),
		kindType:    make(map[Symbol]bool),
		kindClosure: make(map[Symbol]bool),
		kindString:  make(map[Symbol]bool),
	}

	var queue []nameTask
	for _, name := range src.MainFunctionNames {
		queue = append(queue, nameTask{kind: kindFunc, name: name})
	}

	found := func(kind nameKind, name Symbol) {
		if reached[kind][name] {
			return
		}
		reached[kind][name] = true
		queue = append(queue, nameTask{kind: kind, name: name})
	}

	for len(queue) > 0 {
		task := queue[0]
		queue = queue[1:]
		reached[task.kind][task.name] = true

		switch task.kind {
		case kindFunc:
			fn, ok := functionsByName[task.name]
			if !ok {
				continue
			}
			for _, param := range fn.Parameters {
				walkType(param.Typ, found)
			}
			walkType(fn.Typ, found)
			walkStmts(fn.Body, found)
			walkExpr(fn.ReturnValue, found)

		case kindType:
			t, ok := typesByName[task.name]
			if !ok {
				continue
			}
			for _, ft := range t.FieldTypes {
				walkType(ft, found)
			}

		case kindClosure:
			c, ok := closuresByName[task.name]
			if !ok {
				continue
			}
			walkType(c.FunctionType, found)

		case kindString:
			// Global strings reference nothing further.
		}
	}

	var functions []Function
	for _, fn := range src.Functions {
		if reached[kindFunc][fn.Name] {
			functions = append(functions, fn)
		}
	}
	var objectLayouts []ObjectLayout
	for _, t := range src.ObjectLayouts {
		if reached[kindType][t.Name] {
			objectLayouts = append(objectLayouts, t)
		}
	}
	var closureTypes []ClosureTypeDefinition
	for _, c := range src.ClosureTypes {
		if reached[kindClosure][c.Name] {
			closureTypes = append(closureTypes, c)
		}
	}
	var globals []GlobalString
	for _, g := range src.GlobalVariables {
		if reached[kindString][g.Name] {
			globals = append(globals, g)
		}
	}

	return &Sources{
		GlobalVariables:   globals,
		ObjectLayouts:     objectLayouts,
		ClosureTypes:      closureTypes,
		MainFunctionNames: append([]Symbol(nil), src.MainFunctionNames...),
		Functions:         functions,
	}
}

func walkType(t Type, found func(nameKind, Symbol)) {
	switch v := t.(type) {
	case Nominal:
		found(kindType, v.Name)
	case Func:
		for _, p := range v.Params {
			walkType(p, found)
		}
		walkType(v.Result, found)
	}
}

func walkExpr(e Expr, found func(nameKind, Symbol)) {
	switch v := e.(type) {
	case nil:
	case StringRef:
		found(kindString, v.Name)
	case VarRef:
		walkType(v.Typ, found)
	case FuncRef:
		found(kindFunc, v.Name)
		walkType(v.Typ, found)
	}
}

func walkExprs(es []Expr, found func(nameKind, Symbol)) {
	for _, e := range es {
		walkExpr(e, found)
	}
}

func walkStmts(body []Stmt, found func(nameKind, Symbol)) {
	for _, s := range body {
		walkStmt(s, found)
	}
}

func walkStmt(s Stmt, found func(nameKind, Symbol)) {
	switch v := s.(type) {
	case Binary:
		walkExpr(v.E1, found)
		walkExpr(v.E2, found)
		walkType(v.Typ, found)
	case Unary:
		walkExpr(v.E, found)
		walkType(v.Typ, found)
	case IndexedAccess:
		walkExpr(v.Ptr, found)
		walkType(v.Typ, found)
	case IndexedAssign:
		walkExpr(v.Ptr, found)
		walkExpr(v.Value, found)
	case Cast:
		walkExpr(v.E, found)
		walkType(v.Typ, found)
	case Call:
		walkExpr(v.Callee, found)
		walkExprs(v.Args, found)
		walkType(v.ReturnType, found)
	case IfElse:
		walkExpr(v.Cond, found)
		walkStmts(v.S1, found)
		walkStmts(v.S2, found)
		for _, fa := range v.FinalAssignments {
			walkExpr(fa.E1, found)
			walkExpr(fa.E2, found)
			walkType(fa.Typ, found)
		}
	case SingleIf:
		walkExpr(v.Cond, found)
		walkStmts(v.Body, found)
	case StructInit:
		found(kindType, v.TypeName)
		walkExprs(v.Exprs, found)
	case ClosureInit:
		found(kindClosure, v.ClosureTypeName)
		found(kindFunc, v.FunctionName)
		walkExpr(v.Context, found)
	case LateInitDeclaration:
		walkType(v.Typ, found)
	case LateInitAssignment:
		walkExpr(v.E, found)
	case While:
		for _, lv := range v.LoopVariables {
			walkType(lv.Typ, found)
			walkExpr(lv.Init, found)
			walkExpr(lv.LoopValue, found)
		}
		walkStmts(v.Body, found)
		if v.BreakCollector != nil {
			walkType(v.BreakCollector.Typ, found)
		}
	case Break:
		walkExpr(v.Value, found)
	}
}
