package coreserver

import (
	"encoding/json"
	"testing"

	"corelang/internal/ir/hir"
	"corelang/internal/ir/lir"
	"corelang/internal/symbol"
)

// identityFunction builds Sources with a single function:
//
//	func identity(x: Int) -> Int { return x }
func identityFunction(tbl *symbol.Table) *hir.Sources {
	x := tbl.AllocPermanent("x")
	identity := tbl.AllocPermanent("identity")
	fnType := hir.Func{Params: []hir.Type{hir.PrimInt{}}, Result: hir.PrimInt{}}
	return &hir.Sources{
		MainFunctionNames: []symbol.Symbol{identity},
		Functions: []hir.Function{{
			Name:        identity,
			Parameters:  []hir.Parameter{{Name: x, Typ: hir.PrimInt{}}},
			Typ:         fnType,
			ReturnValue: hir.VarRef{Name: x, Typ: hir.PrimInt{}},
		}},
	}
}

func TestHIRSourcesRoundTrip(t *testing.T) {
	tbl := symbol.NewTable()
	src := identityFunction(tbl)

	data, err := EncodeHIRSources(tbl, src)
	if err != nil {
		t.Fatalf("EncodeHIRSources: %v", err)
	}

	decodeTbl := symbol.NewTable()
	got, err := DecodeHIRSources(decodeTbl, data)
	if err != nil {
		t.Fatalf("DecodeHIRSources: %v", err)
	}

	if len(got.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(got.Functions))
	}
	fn := got.Functions[0]
	if decodeTbl.Text(fn.Name) != "identity" {
		t.Errorf("function name = %q, want %q", decodeTbl.Text(fn.Name), "identity")
	}
	if len(fn.Parameters) != 1 || decodeTbl.Text(fn.Parameters[0].Name) != "x" {
		t.Fatalf("unexpected parameters: %+v", fn.Parameters)
	}
	ret, ok := fn.ReturnValue.(hir.VarRef)
	if !ok {
		t.Fatalf("return value = %T, want hir.VarRef", fn.ReturnValue)
	}
	if decodeTbl.Text(ret.Name) != "x" {
		t.Errorf("return value name = %q, want %q", decodeTbl.Text(ret.Name), "x")
	}
	if len(got.MainFunctionNames) != 1 || decodeTbl.Text(got.MainFunctionNames[0]) != "identity" {
		t.Fatalf("unexpected main function names: %+v", got.MainFunctionNames)
	}
}

func TestHIRSourcesRoundTripIsValidJSON(t *testing.T) {
	tbl := symbol.NewTable()
	data, err := EncodeHIRSources(tbl, identityFunction(tbl))
	if err != nil {
		t.Fatalf("EncodeHIRSources: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("encoded HIR sources is not valid JSON: %v", err)
	}
	if _, ok := generic["functions"]; !ok {
		t.Errorf("encoded document missing \"functions\" key: %s", data)
	}
}

func TestEncodeLIRSourcesResolvesSymbolNames(t *testing.T) {
	tbl := symbol.NewTable()
	name := tbl.AllocPermanent("Point")
	src := &lir.Sources{
		ObjectLayouts: []lir.ObjectLayout{{
			Name:          name,
			FieldTypes:    []lir.Type{lir.Int32{}, lir.Int32{}},
			PointerBitmap: 0,
		}},
	}

	data, err := EncodeLIRSources(tbl, src)
	if err != nil {
		t.Fatalf("EncodeLIRSources: %v", err)
	}

	var decoded lirSourcesWire
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decoding wire document: %v", err)
	}
	if len(decoded.ObjectLayouts) != 1 || decoded.ObjectLayouts[0].Name != "Point" {
		t.Fatalf("unexpected object layouts: %+v", decoded.ObjectLayouts)
	}
}
