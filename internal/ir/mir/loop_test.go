package mir

import (
	"testing"

	"corelang/internal/symbol"
)

func TestRunLoopOptimizationsEliminatesCountingLoopAlgebraically(t *testing.T) {
	tbl := symbol.NewTable()
	i := tbl.AllocTemporary("i")
	bc := tbl.AllocTemporary("finalI")

	fn := Function{
		Name: tbl.AllocTemporary("countTo10"),
		Body: []Stmt{
			While{
				LoopVariables: []LoopVariable{
					{Name: i, Typ: Int32{}, Init: IntLiteral{Value: 0}, LoopValue: Binary{Name: i, Op: Add, E1: VarRef{Name: i, Typ: Int32{}}, E2: IntLiteral{Value: 1}, Typ: Int32{}}},
				},
				Body: []Stmt{
					SingleIf{
						Cond: Binary{Op: Lt, E1: VarRef{Name: i, Typ: Int32{}}, E2: IntLiteral{Value: 10}, Typ: Int32{}},
						Body: []Stmt{Break{Value: VarRef{Name: i, Typ: Int32{}}}},
					},
				},
				BreakCollector: &BreakCollector{Name: bc, Typ: Int32{}},
			},
		},
		ReturnValue: VarRef{Name: bc, Typ: Int32{}},
	}

	out := RunLoopOptimizations(fn)

	if len(out.Body) != 1 {
		t.Fatalf("expected the loop to collapse to a single statement, got %d: %#v", len(out.Body), out.Body)
	}
	assign, ok := out.Body[0].(LateInitAssignment)
	if !ok {
		t.Fatalf("expected a LateInitAssignment, got %T", out.Body[0])
	}
	if assign.Name != bc {
		t.Fatalf("expected the assignment to target the break collector, got %v", assign.Name)
	}
	lit, ok := assign.E.(IntLiteral)
	if !ok || lit.Value != 10 {
		t.Fatalf("expected the closed-form terminal value 10, got %#v", assign.E)
	}
}

func TestRunLoopOptimizationsHoistsInvariantComputation(t *testing.T) {
	tbl := symbol.NewTable()
	i := tbl.AllocTemporary("i")
	invariant := tbl.AllocTemporary("invariant")
	acc := tbl.AllocTemporary("acc")

	fn := Function{
		Name: tbl.AllocTemporary("sumWithInvariant"),
		Body: []Stmt{
			While{
				LoopVariables: []LoopVariable{
					{Name: i, Typ: Int32{}, Init: IntLiteral{Value: 0}, LoopValue: Binary{Name: i, Op: Add, E1: VarRef{Name: i, Typ: Int32{}}, E2: IntLiteral{Value: 1}, Typ: Int32{}}},
					{Name: acc, Typ: Int32{}, Init: IntLiteral{Value: 0}, LoopValue: VarRef{Name: acc, Typ: Int32{}}},
				},
				Body: []Stmt{
					Binary{Name: invariant, Op: Mul, E1: IntLiteral{Value: 2}, E2: IntLiteral{Value: 21}, Typ: Int32{}},
				},
			},
		},
		ReturnValue: VarRef{Name: acc, Typ: Int32{}},
	}

	out := RunLoopOptimizations(fn)

	if len(out.Body) < 2 {
		t.Fatalf("expected the invariant computation to be hoisted before the loop, got %#v", out.Body)
	}
	hoisted, ok := out.Body[0].(Binary)
	if !ok || hoisted.Name != invariant {
		t.Fatalf("expected the first statement to be the hoisted invariant binary, got %#v", out.Body[0])
	}
	w, ok := out.Body[len(out.Body)-1].(While)
	if !ok {
		t.Fatalf("expected the loop itself to remain after the hoisted statement, got %T", out.Body[len(out.Body)-1])
	}
	for _, s := range w.Body {
		if b, ok := s.(Binary); ok && b.Name == invariant {
			t.Fatalf("expected the invariant binary to be removed from the loop body, still found %#v", b)
		}
	}
}
