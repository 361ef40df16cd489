package pipeline

import (
	"testing"

	"corelang/internal/ir/hir"
	"corelang/internal/symbol"
)

// TestCompileRunsAllFiveStages exercises compile_core end to end over a
// tiny monomorphic program: a Box struct built and read back by main.
// If any of monomorphization, optimization, layout, ref-counting, or
// pruning panics or returns an error, this fails.
func TestCompileRunsAllFiveStages(t *testing.T) {
	tbl := symbol.NewTable()
	boxName := tbl.AllocTemporary("Box")
	boxed := tbl.AllocTemporary("boxed")
	field := tbl.AllocTemporary("field")
	mainName := tbl.AllocTemporary("main")

	src := &hir.Sources{
		TypeDefinitions: []hir.TypeDefinition{
			{
				Name:     boxName,
				Mappings: hir.Mappings{StructFields: []hir.Type{hir.PrimInt{}}},
			},
		},
		Functions: []hir.Function{
			{
				Name: mainName,
				Body: []hir.Stmt{
					hir.StructInit{Name: boxed, TypeName: boxName, Exprs: []hir.Expr{hir.IntLiteral{Value: 7}}},
					hir.IndexedAccess{Name: field, Typ: hir.PrimInt{}, Ptr: hir.VarRef{Name: boxed, Typ: hir.Nominal{Name: boxName}}, Index: 0},
				},
				ReturnValue: hir.VarRef{Name: field, Typ: hir.PrimInt{}},
			},
		},
	}

	result, err := Compile(tbl, src, []symbol.Symbol{mainName}, DefaultOptions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sources == nil {
		t.Fatalf("expected non-nil Sources")
	}

	found := false
	for _, fn := range result.Sources.Functions {
		if fn.Name == mainName {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected main to survive the full pipeline, got %#v", result.Sources.Functions)
	}
	if result.Summary == "" {
		t.Fatalf("expected a non-empty summary")
	}
}
