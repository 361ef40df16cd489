package lir

import (
	"testing"

	"corelang/internal/symbol"
)

func findCallsTo(body []Stmt, callee Symbol) []Call {
	var out []Call
	for _, s := range body {
		if c, ok := s.(Call); ok {
			if fr, ok := c.Callee.(FuncRef); ok && fr.Name == callee {
				out = append(out, c)
			}
		}
	}
	return out
}

func TestRefCounterReleasesUnreturnedStructInit(t *testing.T) {
	tbl := symbol.NewTable()
	boxName := tbl.AllocTemporary("Box")
	kept := tbl.AllocTemporary("kept")
	scratch := tbl.AllocTemporary("scratch")

	src := &Sources{
		Functions: []Function{
			{
				Name: tbl.AllocTemporary("f"),
				Body: []Stmt{
					StructInit{Name: kept, TypeName: boxName, Exprs: []Expr{IntLiteral{Value: 1}}},
					StructInit{Name: scratch, TypeName: boxName, Exprs: []Expr{IntLiteral{Value: 2}}},
				},
				ReturnValue: VarRef{Name: kept, Typ: Nominal{Name: boxName}},
			},
		},
	}

	out := NewRefCounter(tbl).Run(src)
	fn := out.Functions[0]

	decs := findCallsTo(fn.Body, symbol.BuiltinDecRef)
	if len(decs) != 1 {
		t.Fatalf("expected exactly one dec_ref call (for the unreturned scratch struct), got %d: %#v", len(decs), decs)
	}
	arg, ok := decs[0].Args[0].(VarRef)
	if !ok || arg.Name != scratch {
		t.Fatalf("expected dec_ref to target scratch, got %#v", decs[0].Args[0])
	}
	for _, d := range decs {
		if a, ok := d.Args[0].(VarRef); ok && a.Name == kept {
			t.Fatalf("expected the returned struct not to be released, but found a dec_ref on it")
		}
	}
}

func TestRefCounterGeneratesIncRefAndDecRefHelpers(t *testing.T) {
	tbl := symbol.NewTable()
	src := &Sources{Functions: nil}

	out := NewRefCounter(tbl).Run(src)

	var haveInc, haveDec bool
	for _, fn := range out.Functions {
		if fn.Name == symbol.BuiltinIncRef {
			haveInc = true
		}
		if fn.Name == symbol.BuiltinDecRef {
			haveDec = true
		}
	}
	if !haveInc || !haveDec {
		t.Fatalf("expected both inc_ref and dec_ref helpers to be generated, got inc=%v dec=%v", haveInc, haveDec)
	}
}

func TestGeneratedHelpersUseReservedTempNames(t *testing.T) {
	tbl := symbol.NewTable()
	boxName := tbl.AllocTemporary("Box")
	kept := tbl.AllocTemporary("kept")

	// Allocate a handful of temporaries first, mimicking an unrelated user
	// function having already consumed some of the table's fresh-name
	// counter, so a bug that mints fresh names for the helpers would show
	// up as a shifted _tN here.
	for i := 0; i < 5; i++ {
		tbl.NewTempSymbol()
	}

	src := &Sources{
		Functions: []Function{
			{
				Name:        tbl.AllocTemporary("f"),
				Body:        []Stmt{StructInit{Name: kept, TypeName: boxName, Exprs: []Expr{IntLiteral{Value: 1}}}},
				ReturnValue: VarRef{Name: kept, Typ: Nominal{Name: boxName}},
			},
		},
	}

	out := NewRefCounter(tbl).Run(src)

	var incFn, decFn Function
	for _, fn := range out.Functions {
		switch fn.Name {
		case symbol.BuiltinIncRef:
			incFn = fn
		case symbol.BuiltinDecRef:
			decFn = fn
		}
	}

	reserved := map[Symbol]bool{
		symbol.RefCountTempPtr:        true,
		symbol.RefCountTempNotPtr:     true,
		symbol.RefCountTempTinyInt:    true,
		symbol.RefCountTempIsOdd:      true,
		symbol.RefCountTempHeader:     true,
		symbol.RefCountTempRC:         true,
		symbol.RefCountTempOldRC:      true,
		symbol.RefCountTempIsZero:     true,
		symbol.RefCountTempIsRef:      true,
		symbol.RefCountTempIsRefB:     true,
		symbol.RefCountTempBitSet:     true,
		symbol.RefCountTempFPtr:       true,
		symbol.RefCountTempByteOffset: true,
		symbol.RefCountTempNewHdr:     true,
	}

	for _, fn := range []Function{incFn, decFn} {
		names := collectAssignedNames(fn.Body)
		for _, n := range names {
			if !reserved[n] {
				t.Fatalf("generated helper %s binds non-reserved temp name %q", tbl.Text(fn.Name), tbl.Text(n))
			}
		}
	}
}

func collectAssignedNames(body []Stmt) []Symbol {
	var out []Symbol
	for _, s := range body {
		switch v := s.(type) {
		case Binary:
			out = append(out, v.Name)
		case IndexedAccess:
			out = append(out, v.Name)
		case SingleIf:
			out = append(out, collectAssignedNames(v.Body)...)
		case IfElse:
			out = append(out, collectAssignedNames(v.S1)...)
			out = append(out, collectAssignedNames(v.S2)...)
		}
	}
	return out
}

func TestRefCounterSkipsLoopValueNamesAtLoopExit(t *testing.T) {
	tbl := symbol.NewTable()
	boxName := tbl.AllocTemporary("Box")
	acc := tbl.AllocTemporary("acc")
	i := tbl.AllocTemporary("i")

	src := &Sources{
		Functions: []Function{
			{
				Name: tbl.AllocTemporary("f"),
				Body: []Stmt{
					While{
						LoopVariables: []LoopVariable{
							{Name: i, Typ: Int32{}, Init: IntLiteral{Value: 0}, LoopValue: VarRef{Name: i, Typ: Int32{}}},
							{Name: acc, Typ: Nominal{Name: boxName}, Init: VarRef{Name: acc, Typ: Nominal{Name: boxName}}, LoopValue: VarRef{Name: acc, Typ: Nominal{Name: boxName}}},
						},
						Body: []Stmt{
							StructInit{Name: acc, TypeName: boxName, Exprs: []Expr{IntLiteral{Value: 1}}},
						},
					},
				},
				ReturnValue: VarRef{Name: acc, Typ: Nominal{Name: boxName}},
			},
		},
	}

	out := NewRefCounter(tbl).Run(src)
	w, ok := out.Functions[0].Body[0].(While)
	if !ok {
		t.Fatalf("expected the While to survive, got %T", out.Functions[0].Body[0])
	}
	decs := findCallsTo(w.Body, symbol.BuiltinDecRef)
	for _, d := range decs {
		if a, ok := d.Args[0].(VarRef); ok && a.Name == acc {
			t.Fatalf("expected acc not to be released inside its own loop body since it feeds the next iteration's loop_value")
		}
	}
}
