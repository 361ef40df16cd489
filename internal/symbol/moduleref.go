package symbol

import (
	"strings"

	"golang.org/x/mod/module"
)

// ModuleRefOf interns a module reference built from a sequence of symbols
// (e.g. the path components of a source module). Interning is structural:
// the same sequence of symbols always yields the same ModuleRef.
func (t *Table) ModuleRefOf(parts []Symbol) ModuleRef {
	key := t.moduleKey(parts)
	if ref, ok := t.internedModule[key]; ok {
		return ref
	}
	ref := ModuleRef(len(t.modules))
	stored := make([]Symbol, len(parts))
	copy(stored, parts)
	t.modules = append(t.modules, moduleEntry{parts: stored, key: key})
	t.internedModule[key] = ref
	t.modules[ref].valid = t.ModuleRefValid(ref)
	return ref
}

// ModuleParts enumerates the symbol components of a module reference in
// order.
func (t *Table) ModuleParts(ref ModuleRef) []Symbol {
	return t.modules[ref].parts
}

// ModuleWellFormed reports the well-formedness verdict ModuleRefValid
// reached for ref at intern time, so repeated checks of the same
// reference don't re-run the import-path parse.
func (t *Table) ModuleWellFormed(ref ModuleRef) bool {
	return t.modules[ref].valid
}

func (t *Table) moduleKey(parts []Symbol) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 {
			sb.WriteByte('\x00')
		}
		sb.WriteString(t.Text(p))
	}
	return sb.String()
}

// ModuleRefValid reports whether a module reference's parts form a
// well-formed import-path-shaped sequence, as a cheap sanity check at the
// trust boundary where HIR sources arrive from an external module loader
// (out of the core's scope, see the external interfaces). This is
// informational only: a compilation never aborts because a module
// reference fails this check, since source-language module names need not
// coincide with Go import path syntax; callers that want stricter
// diagnostics can surface it themselves.
func (t *Table) ModuleRefValid(ref ModuleRef) bool {
	parts := t.ModuleParts(ref)
	if len(parts) == 0 {
		return true // Root
	}
	texts := make([]string, len(parts))
	for i, p := range parts {
		s := t.Text(p)
		if s == "" {
			return false
		}
		texts[i] = s
	}
	joined := strings.Join(texts, "/")
	return module.CheckImportPath(joined) == nil
}
