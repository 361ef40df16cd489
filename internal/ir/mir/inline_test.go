package mir

import (
	"testing"

	"corelang/internal/symbol"
)

func TestRunInlineSplicesSmallCallee(t *testing.T) {
	tbl := symbol.NewTable()
	calleeName := tbl.AllocTemporary("double")
	calleeParam := tbl.AllocTemporary("x")
	calleeLocal := tbl.AllocTemporary("doubled")

	callee := Function{
		Name:       calleeName,
		Parameters: []Parameter{{Name: calleeParam, Typ: Int32{}}},
		Typ:        Func{Params: []Type{Int32{}}, Result: Int32{}},
		Body: []Stmt{
			Binary{Name: calleeLocal, Op: Add, E1: VarRef{Name: calleeParam, Typ: Int32{}}, E2: VarRef{Name: calleeParam, Typ: Int32{}}, Typ: Int32{}},
		},
		ReturnValue: VarRef{Name: calleeLocal, Typ: Int32{}},
	}

	callerResult := tbl.AllocTemporary("result")
	caller := Function{
		Name: tbl.AllocTemporary("main"),
		Body: []Stmt{
			Call{
				Callee:          FuncRef{Name: calleeName, Typ: callee.Typ},
				Args:            []Expr{IntLiteral{Value: 21}},
				ReturnType:      Int32{},
				ReturnCollector: &callerResult,
			},
		},
		ReturnValue: VarRef{Name: callerResult, Typ: Int32{}},
	}

	out := RunInline(tbl, []Function{callee, caller}, DefaultInlineOptions)

	var inlinedMain Function
	for _, fn := range out {
		if fn.Name == caller.Name {
			inlinedMain = fn
		}
	}

	for _, s := range inlinedMain.Body {
		if c, ok := s.(Call); ok {
			t.Fatalf("expected the call to double to be spliced away, found %#v", c)
		}
	}
	if len(inlinedMain.Body) == 0 {
		t.Fatalf("expected the callee's body to be spliced into main, got no statements")
	}

	// the spliced-in names must be fresh (hygiene), not the callee's own
	// param/local symbols, since those still belong to the untouched callee.
	for _, s := range inlinedMain.Body {
		if b, ok := s.(Binary); ok {
			if b.Name == calleeLocal {
				t.Fatalf("expected the callee's local to be alpha-renamed, found the original symbol unrenamed")
			}
		}
	}

	last := inlinedMain.Body[len(inlinedMain.Body)-1]
	assign, ok := last.(LateInitAssignment)
	if !ok || assign.Name != callerResult {
		t.Fatalf("expected a final LateInitAssignment binding the callee's return value to the call's return collector, got %#v", last)
	}
}

func TestRunInlineNeverInlinesRecursiveCallee(t *testing.T) {
	tbl := symbol.NewTable()
	selfName := tbl.AllocTemporary("countdown")
	result := tbl.AllocTemporary("r")

	self := Function{
		Name: selfName,
		Body: []Stmt{
			Call{Callee: FuncRef{Name: selfName}, Args: nil, ReturnCollector: &result},
		},
		ReturnValue: VarRef{Name: result, Typ: Int32{}},
	}

	out := RunInline(tbl, []Function{self}, DefaultInlineOptions)

	found := false
	for _, s := range out[0].Body {
		if _, ok := s.(Call); ok {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the direct-recursive call to survive uninlined, got %#v", out[0].Body)
	}
}
