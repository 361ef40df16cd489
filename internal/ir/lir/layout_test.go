package lir

import (
	"testing"

	"corelang/internal/ir/mir"
	"corelang/internal/symbol"
)

func TestLayouterComputesStructPointerBitmap(t *testing.T) {
	tbl := symbol.NewTable()
	boxName := tbl.AllocTemporary("Box")
	innerName := tbl.AllocTemporary("Inner")

	src := &mir.Sources{
		TypeDefinitions: []mir.TypeDefinition{
			{
				Name: boxName,
				Mappings: mir.Mappings{
					StructFields: []mir.Type{mir.Int32{}, mir.Nominal{Name: innerName}},
				},
			},
		},
	}

	out, err := NewLayouter(tbl).Run(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.ObjectLayouts) != 1 {
		t.Fatalf("expected 1 object layout, got %d", len(out.ObjectLayouts))
	}
	layout := out.ObjectLayouts[0]
	if layout.PointerBitmap != 0b10 {
		t.Fatalf("expected only the second (Nominal) field's bit set, got %b", layout.PointerBitmap)
	}
}

func TestLayouterStructInitHeaderSetsOffsetBitmapBit(t *testing.T) {
	tbl := symbol.NewTable()
	boxName := tbl.AllocTemporary("Box")
	innerName := tbl.AllocTemporary("Inner")
	resultName := tbl.AllocTemporary("b")

	src := &mir.Sources{
		TypeDefinitions: []mir.TypeDefinition{
			{
				Name: boxName,
				Mappings: mir.Mappings{
					StructFields: []mir.Type{mir.Int32{}, mir.Nominal{Name: innerName}},
				},
			},
		},
		Functions: []mir.Function{
			{
				Name: tbl.AllocTemporary("makeBox"),
				Body: []mir.Stmt{
					mir.StructInit{
						Name:     resultName,
						TypeName: boxName,
						Exprs:    []mir.Expr{mir.IntLiteral{Value: 1}, mir.VarRef{Name: innerName, Typ: mir.Nominal{Name: innerName}}},
					},
				},
				ReturnValue: mir.VarRef{Name: resultName, Typ: mir.Nominal{Name: boxName}},
			},
		},
	}

	out, err := NewLayouter(tbl).Run(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	init, ok := out.Functions[0].Body[0].(StructInit)
	if !ok {
		t.Fatalf("expected a StructInit, got %T", out.Functions[0].Body[0])
	}
	header, ok := init.Exprs[0].(IntLiteral)
	if !ok {
		t.Fatalf("expected the header to be prepended as field 0, got %#v", init.Exprs[0])
	}
	// an initial refcount of 1 in the low 16 bits plus bit (16+1) for the
	// pointer-shaped second field (logical index 1).
	want := int32(1 | (1 << 17))
	if header.Value != want {
		t.Fatalf("expected header value %d, got %d", want, header.Value)
	}
}

func TestLayouterShiftsIndexedAccessByOneForHeader(t *testing.T) {
	tbl := symbol.NewTable()
	boxName := tbl.AllocTemporary("Box")
	ptrName := tbl.AllocTemporary("p")
	resultName := tbl.AllocTemporary("f")

	src := &mir.Sources{
		Functions: []mir.Function{
			{
				Name: tbl.AllocTemporary("readField"),
				Body: []mir.Stmt{
					mir.IndexedAccess{Name: resultName, Typ: mir.Int32{}, Ptr: mir.VarRef{Name: ptrName, Typ: mir.Nominal{Name: boxName}}, Index: 1},
				},
				ReturnValue: mir.VarRef{Name: resultName, Typ: mir.Int32{}},
			},
		},
	}

	out, err := NewLayouter(tbl).Run(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	access, ok := out.Functions[0].Body[0].(IndexedAccess)
	if !ok {
		t.Fatalf("expected an IndexedAccess, got %T", out.Functions[0].Body[0])
	}
	if access.Index != 2 {
		t.Fatalf("expected logical field 1 to land at physical index 2 (header occupies 0), got %d", access.Index)
	}
}
