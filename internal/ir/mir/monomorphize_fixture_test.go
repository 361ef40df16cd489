package mir

import (
	"os"
	"strings"
	"testing"

	"corelang/internal/ir/hir"
	"corelang/internal/irtest"
	"corelang/internal/symbol"
)

func primByName(name string) hir.Type {
	switch name {
	case "Int":
		return hir.PrimInt{}
	case "Bool":
		return hir.PrimBool{}
	case "String":
		return hir.PrimString{}
	case "Any":
		return hir.PrimAny{}
	default:
		return hir.PrimAny{}
	}
}

// TestCanonicalKeyMatchesGoldenFixtures checks canonicalKey's plain
// string formatting (everything before the blake2b hash) against a
// txtar fixture of hand-written (name, args) -> text pairs.
func TestCanonicalKeyMatchesGoldenFixtures(t *testing.T) {
	data, err := os.ReadFile("testdata/canonical_keys.txtar")
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	fixtures := irtest.LoadFixtures(t, data)

	type fixtureCase struct {
		args string
		want string
	}
	cases := make(map[string]*fixtureCase)
	for _, f := range fixtures {
		base, kind, ok := strings.Cut(f.Name, ".")
		if !ok {
			t.Fatalf("unexpected fixture name %q, want \"<case>.<args|want>\"", f.Name)
		}
		c, ok := cases[base]
		if !ok {
			c = &fixtureCase{}
			cases[base] = c
		}
		text := strings.TrimSpace(string(f.Data))
		switch kind {
		case "args":
			c.args = text
		case "want":
			c.want = text
		default:
			t.Fatalf("unexpected fixture section %q in case %q", kind, base)
		}
	}

	tbl := symbol.NewTable()
	for name, c := range cases {
		fields := strings.Fields(c.args)
		if len(fields) == 0 {
			t.Fatalf("case %q: empty args fixture", name)
		}
		typeName := tbl.AllocTemporary(fields[0])
		args := make([]hir.Type, len(fields)-1)
		for i, f := range fields[1:] {
			args[i] = primByName(f)
		}

		got := canonicalKey(tbl, typeName, args)
		if got != c.want {
			t.Errorf("case %q: canonicalKey = %q, want %q", name, got, c.want)
		}
	}
}
