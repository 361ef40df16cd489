// Package irtest provides shared test helpers for the ir/hir, ir/mir,
// and ir/lir packages: structural diffing for assertion failures and
// txtar-based fixture loading for larger IR snippets.
package irtest

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/rogpeppe/go-internal/txtar"
)

// Diff fails t with a field-level diff of got vs want when they are
// not deeply equal. Pass structs directly; kr/pretty walks them
// recursively, which reads far better than a %#v dump for the deeply
// nested Stmt/Expr trees these packages build.
func Diff(t *testing.T, label string, got, want any) {
	t.Helper()
	if diff := pretty.Diff(got, want); len(diff) > 0 {
		t.Errorf("%s mismatch:\n%s", label, pretty.Sprint(diff))
	}
}

// Fixture is one named text section from a txtar archive.
type Fixture struct {
	Name string
	Data []byte
}

// LoadFixtures parses a txtar archive (comment header + "-- name --"
// sections) and returns its files, for tests that want a source
// snippet alongside its expected specialized name, golden IR dump, or
// similar paired text.
func LoadFixtures(t *testing.T, data []byte) []Fixture {
	t.Helper()
	arc := txtar.Parse(data)
	out := make([]Fixture, len(arc.Files))
	for i, f := range arc.Files {
		out[i] = Fixture{Name: f.Name, Data: f.Data}
	}
	return out
}
