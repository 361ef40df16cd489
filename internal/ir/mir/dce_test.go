package mir

import (
	"testing"

	"corelang/internal/symbol"
)

func TestRunDCEDropsUnusedBinary(t *testing.T) {
	tbl := symbol.NewTable()
	dead := tbl.AllocTemporary("dead")
	live := tbl.AllocTemporary("live")

	fn := Function{
		Name: tbl.AllocTemporary("f"),
		Body: []Stmt{
			Binary{Name: dead, Op: Add, E1: IntLiteral{Value: 1}, E2: IntLiteral{Value: 2}, Typ: Int32{}},
			Binary{Name: live, Op: Add, E1: IntLiteral{Value: 3}, E2: IntLiteral{Value: 4}, Typ: Int32{}},
		},
		ReturnValue: VarRef{Name: live, Typ: Int32{}},
	}

	out := RunDCE(fn)

	if len(out.Body) != 1 {
		t.Fatalf("expected 1 surviving statement, got %d: %#v", len(out.Body), out.Body)
	}
	b, ok := out.Body[0].(Binary)
	if !ok || b.Name != live {
		t.Fatalf("expected the live binding to survive, got %#v", out.Body[0])
	}
}

func TestRunDCEKeepsCallsRegardlessOfLiveness(t *testing.T) {
	tbl := symbol.NewTable()
	callee := tbl.AllocTemporary("sideEffect")
	result := tbl.AllocTemporary("unused")

	fn := Function{
		Name: tbl.AllocTemporary("f"),
		Body: []Stmt{
			Call{ReturnCollector: &result, Callee: FuncRef{Name: callee}, Args: nil},
		},
		ReturnValue: IntLiteral{Value: 0},
	}

	out := RunDCE(fn)

	if len(out.Body) != 1 {
		t.Fatalf("expected the call to survive even though its result is unused, got %d statements", len(out.Body))
	}
	if _, ok := out.Body[0].(Call); !ok {
		t.Fatalf("expected a Call statement, got %T", out.Body[0])
	}
}

func TestRunDCEDropsDeadLoopVariable(t *testing.T) {
	tbl := symbol.NewTable()
	i := tbl.AllocTemporary("i")
	deadAcc := tbl.AllocTemporary("deadAcc")
	result := tbl.AllocTemporary("result")

	fn := Function{
		Name: tbl.AllocTemporary("f"),
		Body: []Stmt{
			While{
				LoopVariables: []LoopVariable{
					{Name: i, Typ: Int32{}, Init: IntLiteral{Value: 0}, LoopValue: IntLiteral{Value: 1}},
					{Name: deadAcc, Typ: Int32{}, Init: IntLiteral{Value: 0}, LoopValue: VarRef{Name: deadAcc, Typ: Int32{}}},
				},
				Body: nil,
			},
		},
		ReturnValue: VarRef{Name: result, Typ: Int32{}},
	}

	out := RunDCE(fn)

	w, ok := out.Body[0].(While)
	if !ok {
		t.Fatalf("expected the While to survive, got %T", out.Body[0])
	}
	for _, lv := range w.LoopVariables {
		if lv.Name == deadAcc {
			t.Fatalf("expected the dead loop variable %v to be dropped, found it in %#v", deadAcc, w.LoopVariables)
		}
	}
}
