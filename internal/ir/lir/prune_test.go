package lir

import (
	"testing"

	"corelang/internal/symbol"
)

func TestPrunerDropsUnreachableFunctionAndType(t *testing.T) {
	tbl := symbol.NewTable()
	mainName := tbl.AllocTemporary("main")
	usedTypeName := tbl.AllocTemporary("Used")
	unusedFnName := tbl.AllocTemporary("unused")
	unusedTypeName := tbl.AllocTemporary("Unused")
	resultName := tbl.AllocTemporary("r")

	src := &Sources{
		MainFunctionNames: []Symbol{mainName},
		ObjectLayouts: []ObjectLayout{
			{Name: usedTypeName, FieldTypes: []Type{Int32{}}},
			{Name: unusedTypeName, FieldTypes: []Type{Int32{}}},
		},
		Functions: []Function{
			{
				Name: mainName,
				Body: []Stmt{
					StructInit{Name: resultName, TypeName: usedTypeName, Exprs: []Expr{IntLiteral{Value: 1}}},
				},
				ReturnValue: VarRef{Name: resultName, Typ: Nominal{Name: usedTypeName}},
			},
			{
				Name:        unusedFnName,
				Body:        nil,
				ReturnValue: IntLiteral{Value: 0},
			},
		},
	}

	out := NewPruner(tbl).Run(src)

	if len(out.Functions) != 1 || out.Functions[0].Name != mainName {
		t.Fatalf("expected only main to survive, got %#v", out.Functions)
	}
	if len(out.ObjectLayouts) != 1 || out.ObjectLayouts[0].Name != usedTypeName {
		t.Fatalf("expected only the used type to survive, got %#v", out.ObjectLayouts)
	}
}

func TestPrunerPreservesRelativeOrderOfSurvivors(t *testing.T) {
	tbl := symbol.NewTable()
	mainName := tbl.AllocTemporary("main")
	aName := tbl.AllocTemporary("a")
	bName := tbl.AllocTemporary("b")
	cName := tbl.AllocTemporary("c")
	result := tbl.AllocTemporary("r")

	src := &Sources{
		MainFunctionNames: []Symbol{mainName},
		Functions: []Function{
			{Name: aName, Body: nil, ReturnValue: IntLiteral{Value: 1}},
			{
				Name: mainName,
				Body: []Stmt{
					Call{Callee: FuncRef{Name: bName}, Args: nil, ReturnType: Int32{}, ReturnCollector: &result},
				},
				ReturnValue: VarRef{Name: result, Typ: Int32{}},
			},
			{Name: bName, Body: nil, ReturnValue: IntLiteral{Value: 2}},
			{Name: cName, Body: nil, ReturnValue: IntLiteral{Value: 3}},
		},
	}

	out := NewPruner(tbl).Run(src)

	if len(out.Functions) != 2 {
		t.Fatalf("expected main and b to survive, got %d functions: %#v", len(out.Functions), out.Functions)
	}
	if out.Functions[0].Name != mainName || out.Functions[1].Name != bName {
		t.Fatalf("expected survivors in original input order (main, b), got %v, %v", out.Functions[0].Name, out.Functions[1].Name)
	}
}
