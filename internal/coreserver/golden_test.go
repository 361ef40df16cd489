package coreserver

import (
	"testing"

	"golang.org/x/tools/txtar"

	"corelang/internal/symbol"
)

// TestDecodeGoldenFixture loads a hand-written wire document from a
// txtar archive (the same archive format cmd/corec's golden CLI tests
// feed to the corec binary) and checks it decodes to the function the
// fixture's comment describes.
func TestDecodeGoldenFixture(t *testing.T) {
	archive, err := txtar.ParseFile("testdata/identity.txtar")
	if err != nil {
		t.Fatalf("parsing fixture archive: %v", err)
	}

	var hirJSON []byte
	for _, f := range archive.Files {
		if f.Name == "hir.json" {
			hirJSON = f.Data
		}
	}
	if hirJSON == nil {
		t.Fatalf("fixture archive missing hir.json section")
	}

	tbl := symbol.NewTable()
	src, err := DecodeHIRSources(tbl, hirJSON)
	if err != nil {
		t.Fatalf("DecodeHIRSources: %v", err)
	}

	if len(src.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(src.Functions))
	}
	fn := src.Functions[0]
	if tbl.Text(fn.Name) != "identity" {
		t.Errorf("function name = %q, want %q", tbl.Text(fn.Name), "identity")
	}
	if len(fn.Parameters) != 1 || tbl.Text(fn.Parameters[0].Name) != "x" {
		t.Fatalf("unexpected parameters: %+v", fn.Parameters)
	}
}
