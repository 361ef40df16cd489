package mir

import (
	"testing"

	"corelang/internal/irtest"
	"corelang/internal/symbol"
)

func TestRunCCPFoldsChainedConstants(t *testing.T) {
	tbl := symbol.NewTable()
	a := tbl.AllocTemporary("a")
	b := tbl.AllocTemporary("b")

	fn := Function{
		Name: tbl.AllocTemporary("f"),
		Body: []Stmt{
			Binary{Name: a, Op: Add, E1: IntLiteral{Value: 2}, E2: IntLiteral{Value: 3}, Typ: Int32{}},
			Binary{Name: b, Op: Add, E1: VarRef{Name: a, Typ: Int32{}}, E2: IntLiteral{Value: 10}, Typ: Int32{}},
		},
		ReturnValue: VarRef{Name: b, Typ: Int32{}},
	}

	out := RunCCP(fn)

	if len(out.Body) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(out.Body))
	}
	second, ok := out.Body[1].(Binary)
	if !ok {
		t.Fatalf("expected second statement to remain Binary, got %T", out.Body[1])
	}
	want := Binary{Name: b, Op: Add, E1: IntLiteral{Value: 5}, E2: IntLiteral{Value: 10}, Typ: Int32{}}
	irtest.Diff(t, "folded chain", second, want)
}

func TestRunCCPFoldsReturnValue(t *testing.T) {
	tbl := symbol.NewTable()
	a := tbl.AllocTemporary("a")
	b := tbl.AllocTemporary("b")
	c := tbl.AllocTemporary("c")

	// let a = 3+3; let b = a*a; let c = b-a; return c;
	fn := Function{
		Name: tbl.AllocTemporary("h"),
		Body: []Stmt{
			Binary{Name: a, Op: Add, E1: IntLiteral{Value: 3}, E2: IntLiteral{Value: 3}, Typ: Int32{}},
			Binary{Name: b, Op: Mul, E1: VarRef{Name: a, Typ: Int32{}}, E2: VarRef{Name: a, Typ: Int32{}}, Typ: Int32{}},
			Binary{Name: c, Op: Sub, E1: VarRef{Name: b, Typ: Int32{}}, E2: VarRef{Name: a, Typ: Int32{}}, Typ: Int32{}},
		},
		ReturnValue: VarRef{Name: c, Typ: Int32{}},
	}

	out := RunCCP(fn)

	want := IntLiteral{Value: 30}
	irtest.Diff(t, "folded return value", out.ReturnValue, want)
}

func TestRunCCPCollapsesConstantIfElse(t *testing.T) {
	tbl := symbol.NewTable()
	cond := tbl.AllocTemporary("cond")
	join := tbl.AllocTemporary("join")
	live := tbl.AllocTemporary("live")

	fn := Function{
		Name: tbl.AllocTemporary("g"),
		Body: []Stmt{
			Binary{Name: cond, Op: Eq, E1: IntLiteral{Value: 1}, E2: IntLiteral{Value: 1}, Typ: Int32{}},
			IfElse{
				Cond: VarRef{Name: cond, Typ: Int32{}},
				S1:   []Stmt{Binary{Name: live, Op: Add, E1: IntLiteral{Value: 1}, E2: IntLiteral{Value: 1}, Typ: Int32{}}},
				S2:   []Stmt{Binary{Name: live, Op: Add, E1: IntLiteral{Value: 9}, E2: IntLiteral{Value: 9}, Typ: Int32{}}},
				FinalAssignments: []FinalAssignment{
					{Name: join, Typ: Int32{}, E1: VarRef{Name: live, Typ: Int32{}}, E2: VarRef{Name: live, Typ: Int32{}}},
				},
			},
		},
		ReturnValue: VarRef{Name: join, Typ: Int32{}},
	}

	out := RunCCP(fn)

	for _, s := range out.Body {
		if _, ok := s.(IfElse); ok {
			t.Fatalf("expected the statically-true IfElse to collapse, found one in %#v", out.Body)
		}
	}
}
