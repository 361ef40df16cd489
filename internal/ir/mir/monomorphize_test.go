package mir

import (
	"testing"

	"corelang/internal/ir/hir"
	"corelang/internal/symbol"
)

func TestMonomorphizeSpecializesGenericStructPerTypeArgument(t *testing.T) {
	tbl := symbol.NewTable()
	boxName := tbl.AllocTemporary("Box")
	typeParam := tbl.AllocTemporary("T")

	boxDef := hir.TypeDefinition{
		Name:       boxName,
		TypeParams: []symbol.Symbol{typeParam},
		Mappings:   hir.Mappings{StructFields: []hir.Type{hir.GenericParam{Name: typeParam}}},
	}

	intParam := tbl.AllocTemporary("x")
	takesIntBox := hir.Function{
		Name:       tbl.AllocTemporary("takesIntBox"),
		Parameters: []hir.Parameter{{Name: intParam, Typ: hir.Nominal{Name: boxName, Args: []hir.Type{hir.PrimInt{}}}}},
		Typ:        hir.Func{Params: []hir.Type{hir.Nominal{Name: boxName, Args: []hir.Type{hir.PrimInt{}}}}, Result: hir.PrimInt{}},
		ReturnValue: hir.IntLiteral{Value: 0},
	}

	strParam := tbl.AllocTemporary("y")
	takesStringBox := hir.Function{
		Name:       tbl.AllocTemporary("takesStringBox"),
		Parameters: []hir.Parameter{{Name: strParam, Typ: hir.Nominal{Name: boxName, Args: []hir.Type{hir.PrimString{}}}}},
		Typ:        hir.Func{Params: []hir.Type{hir.Nominal{Name: boxName, Args: []hir.Type{hir.PrimString{}}}}, Result: hir.PrimInt{}},
		ReturnValue: hir.IntLiteral{Value: 0},
	}

	src := &hir.Sources{
		TypeDefinitions:   []hir.TypeDefinition{boxDef},
		Functions:         []hir.Function{takesIntBox, takesStringBox},
		MainFunctionNames: []symbol.Symbol{takesIntBox.Name, takesStringBox.Name},
	}

	out, err := NewMonomorphizer(tbl, src).Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out.TypeDefinitions) != 2 {
		t.Fatalf("expected two distinct Box specializations (Int and String), got %d: %#v", len(out.TypeDefinitions), out.TypeDefinitions)
	}
	if out.TypeDefinitions[0].Name == out.TypeDefinitions[1].Name {
		t.Fatalf("expected distinct specialized names, got the same symbol twice: %v", out.TypeDefinitions[0].Name)
	}
}

func TestMonomorphizeInfersEnumVariantArgsFromConstructionSite(t *testing.T) {
	tbl := symbol.NewTable()
	optionName := tbl.AllocTemporary("Option")
	typeParam := tbl.AllocTemporary("T")

	optionDef := hir.TypeDefinition{
		Name:       optionName,
		TypeParams: []symbol.Symbol{typeParam},
		Mappings: hir.Mappings{EnumVariants: []hir.Variant{
			{Kind: hir.VariantInt31},
			{Kind: hir.VariantBoxed, Boxed: []hir.Type{hir.GenericParam{Name: typeParam}}},
		}},
	}

	structName := tbl.AllocTemporary("s")
	mainName := tbl.AllocTemporary("main")
	main := hir.Function{
		Name: mainName,
		Body: []hir.Stmt{
			// Some(42): a non-generic main directly constructing Option<T>'s
			// boxed variant with no type arguments of its own to substitute
			// from, so T=Int must be recovered from the literal payload.
			hir.StructInit{
				Name:     structName,
				TypeName: optionName,
				Exprs:    []hir.Expr{hir.IntLiteral{Value: 1}, hir.IntLiteral{Value: 42}},
			},
		},
		ReturnValue: hir.IntLiteral{Value: 0},
	}

	src := &hir.Sources{
		TypeDefinitions:   []hir.TypeDefinition{optionDef},
		Functions:         []hir.Function{main},
		MainFunctionNames: []symbol.Symbol{mainName},
	}

	out, err := NewMonomorphizer(tbl, src).Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out.TypeDefinitions) != 1 {
		t.Fatalf("expected exactly one Option specialization, got %d: %#v", len(out.TypeDefinitions), out.TypeDefinitions)
	}
	variants := out.TypeDefinitions[0].Mappings.EnumVariants
	if len(variants) != 2 {
		t.Fatalf("expected two variants to survive specialization, got %d", len(variants))
	}
	if _, ok := variants[1].Boxed[0].(Int32); !ok {
		t.Fatalf("expected Some's payload to specialize to Int32, got %#v", variants[1].Boxed[0])
	}
}

func TestMonomorphizeDiscoversPlainlyCalledHelperFunctions(t *testing.T) {
	tbl := symbol.NewTable()
	helperName := tbl.AllocTemporary("helper")
	mainName := tbl.AllocTemporary("main")
	collector := tbl.AllocTemporary("r")

	helper := hir.Function{
		Name:        helperName,
		ReturnValue: hir.IntLiteral{Value: 42},
	}
	main := hir.Function{
		Name: mainName,
		Body: []hir.Stmt{
			hir.Call{
				Callee:          hir.FuncRef{Name: helperName, Typ: hir.Func{Result: hir.PrimInt{}}},
				ReturnType:      hir.PrimInt{},
				ReturnCollector: &collector,
			},
		},
		ReturnValue: hir.VarRef{Name: collector, Typ: hir.PrimInt{}},
	}

	src := &hir.Sources{
		Functions:         []hir.Function{helper, main},
		MainFunctionNames: []symbol.Symbol{mainName},
	}

	out, err := NewMonomorphizer(tbl, src).Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, fn := range out.Functions {
		if fn.Name == helperName {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected helper, reachable only via an ordinary call from main, to survive monomorphization; got %#v", out.Functions)
	}
}
