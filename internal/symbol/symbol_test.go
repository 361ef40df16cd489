package symbol

import "testing"

func TestInlineSymbolsNeverAllocate(t *testing.T) {
	tbl := NewTable()
	before := len(tbl.heap)
	sym := tbl.AllocTemporary("short")
	if !sym.IsInline() {
		t.Fatalf("expected %q to be inline", "short")
	}
	if len(tbl.heap) != before {
		t.Fatalf("inline allocation grew the heap table: %d -> %d", before, len(tbl.heap))
	}
}

func TestLongSymbolsRoundTrip(t *testing.T) {
	tbl := NewTable()
	long := "this_is_longer_than_fifteen_bytes"
	sym := tbl.AllocTemporary(long)
	if sym.IsInline() {
		t.Fatalf("expected %q to require heap storage", long)
	}
	if got := tbl.Text(sym); got != long {
		t.Fatalf("Text() = %q, want %q", got, long)
	}
}

func TestEqualityIsO1AndContentAddressed(t *testing.T) {
	tbl := NewTable()
	a := tbl.AllocTemporary("duplicate_long_symbol_name")
	b := tbl.AllocTemporary("duplicate_long_symbol_name")
	if a != b {
		t.Fatalf("expected repeated interning of the same string to yield equal symbols")
	}
}

func TestPromoteIsIdempotentAndSurvivesSweep(t *testing.T) {
	tbl := NewTable()
	sym := tbl.AllocTemporary("promoted_long_symbol_name")
	tbl.Promote(sym)
	tbl.Promote(sym) // idempotent
	tbl.Sweep(1 << 20)
	if got := tbl.Text(sym); got != "promoted_long_symbol_name" {
		t.Fatalf("permanent symbol was swept: got %q", got)
	}
}

func TestSweepReclaimsUnmarkedTemporaries(t *testing.T) {
	tbl := NewTable()
	sym := tbl.AllocTemporary("unmarked_long_symbol_name")
	tbl.Sweep(1 << 20)
	if _, ok := tbl.Lookup("unmarked_long_symbol_name"); ok {
		t.Fatalf("expected unmarked temporary to be swept")
	}
	if got := tbl.Text(sym); got == "unmarked_long_symbol_name" {
		t.Fatalf("expected stale handle to read as swept, got original text back")
	}
}

func TestMarkSurvivesOneSweepThenMustBeRenewed(t *testing.T) {
	tbl := NewTable()
	sym := tbl.AllocTemporary("marked_long_symbol_name")
	tbl.Mark(sym)
	tbl.Sweep(1 << 20) // consumes the mark
	if _, ok := tbl.Lookup("marked_long_symbol_name"); !ok {
		t.Fatalf("expected marked temporary to survive first sweep")
	}
	tbl.Sweep(1 << 20) // mark was consumed, not latched
	if _, ok := tbl.Lookup("marked_long_symbol_name"); ok {
		t.Fatalf("expected mark to be consumed by the sweep that observed it")
	}
}

func TestSweepIsNoOpWhileModuleUnmarked(t *testing.T) {
	tbl := NewTable()
	mod := tbl.ModuleRefOf(nil)
	tbl.AddUnmarkedModule(mod)
	sym := tbl.AllocTemporary("held_long_symbol_name")
	tbl.Sweep(1 << 20)
	if _, ok := tbl.Lookup("held_long_symbol_name"); !ok {
		t.Fatalf("expected sweep to be a no-op while a module is outstanding unmarked")
	}
	if _, ok := tbl.PopUnmarkedModule(); !ok {
		t.Fatalf("expected to pop the module we added")
	}
	_ = sym
}

func TestNewTempSymbolNeverCollides(t *testing.T) {
	tbl := NewTable()
	seen := NewSet[string]()
	for i := 0; i < 1000; i++ {
		sym := tbl.NewTempSymbol()
		text := tbl.Text(sym)
		if !seen.Add(text) {
			t.Fatalf("temp symbol %q collided", text)
		}
	}
}

func TestModuleReferenceInterningIsStructural(t *testing.T) {
	tbl := NewTable()
	a := tbl.AllocPermanent("pkg")
	b := tbl.AllocPermanent("mod")
	ref1 := tbl.ModuleRefOf([]Symbol{a, b})
	ref2 := tbl.ModuleRefOf([]Symbol{a, b})
	if ref1 != ref2 {
		t.Fatalf("expected identical part sequences to intern to the same ModuleRef")
	}
	parts := tbl.ModuleParts(ref1)
	if len(parts) != 2 || parts[0] != a || parts[1] != b {
		t.Fatalf("ModuleParts returned unexpected components: %v", parts)
	}
}

func TestModuleRefValidityIsCheckedAtInternTime(t *testing.T) {
	tbl := NewTable()
	good := tbl.AllocPermanent("pkg")
	bad := tbl.AllocPermanent("has a space")

	wellFormed := tbl.ModuleRefOf([]Symbol{good})
	if !tbl.ModuleWellFormed(wellFormed) {
		t.Fatalf("expected %q to be a well-formed module reference", "pkg")
	}

	malformed := tbl.ModuleRefOf([]Symbol{bad})
	if tbl.ModuleWellFormed(malformed) {
		t.Fatalf("expected %q to be rejected as a module reference", "has a space")
	}
	if tbl.ModuleRefValid(malformed) != tbl.ModuleWellFormed(malformed) {
		t.Fatalf("ModuleRefValid and the cached ModuleWellFormed verdict disagree")
	}

	if !tbl.ModuleWellFormed(Root) {
		t.Fatalf("expected the empty Root module reference to be well-formed")
	}
}

func TestReservedSymbolsPrepopulated(t *testing.T) {
	tbl := NewTable()
	for _, name := range []string{"Int32", "_builtin_inc_ref", "_builtin_dec_ref", "header"} {
		if _, ok := tbl.Lookup(name); !ok {
			t.Fatalf("expected reserved symbol %q to be pre-populated", name)
		}
	}
}
