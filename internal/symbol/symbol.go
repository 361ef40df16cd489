// Package symbol implements the process-wide symbol and module-reference
// interning facility described in the core's data model: compact, cheaply
// comparable handles over interned strings, with an inline fast path for
// short names and an incrementally-swept heap for the rest.
package symbol

import "fmt"

const inlineCap = 15

// heapTag marks a Symbol as referring to the heap table rather than storing
// its bytes inline. It lives in the size byte, which otherwise only ever
// holds 0..inlineCap.
const heapTag = 0xFF

// Symbol is a compact, comparable handle to an interned name. Two symbols
// compare equal (via ==) iff they denote the same string; equality never
// inspects string contents.
type Symbol struct {
	bytes [inlineCap]byte
	size  uint8  // 0..inlineCap for an inline symbol, heapTag for a heap symbol
	id    uint32 // valid only when size == heapTag
}

// IsInline reports whether the symbol is stored inline (never swept).
func (s Symbol) IsInline() bool { return s.size != heapTag }

func inlineOf(str string) (Symbol, bool) {
	if len(str) > inlineCap {
		return Symbol{}, false
	}
	var sym Symbol
	sym.size = uint8(len(str))
	copy(sym.bytes[:], str)
	return sym, true
}

func (s Symbol) inlineString() string {
	return string(s.bytes[:s.size])
}

func heapSymbol(id uint32) Symbol {
	return Symbol{size: heapTag, id: id}
}

// entryState is the lifecycle state of a heap-allocated string.
type entryState uint8

const (
	stateTemporary entryState = iota
	statePermanent
	stateDeallocated
)

type heapEntry struct {
	str    string
	state  entryState
	marked bool
}

// ModuleRef is an interned handle to a sequence of symbols naming a module.
type ModuleRef int

// Root is the module reference denoting the empty path (no parts).
const Root ModuleRef = 0

type moduleEntry struct {
	parts []Symbol
	key   string
	valid bool
}

// Table is the single mutable interning hub a compilation passes by
// reference through every stage (see the design notes on "symbol table as
// a single mutable hub"). It is not safe for concurrent use by multiple
// goroutines without external synchronization: the core itself never
// shares one Table across threads (it is single-threaded, see the
// concurrency model), so none is built in here.
type Table struct {
	heap          []heapEntry
	internedPerm  map[string]uint32
	internedTemp  map[string]uint32
	sweepIndex    int
	tempCounter   uint32

	modules        []moduleEntry
	internedModule map[string]ModuleRef
	unmarkedModule map[ModuleRef]struct{}
}

// NewTable constructs an interning table with the reserved built-in and
// primitive symbols already populated (see Reserved/built-in names).
func NewTable() *Table {
	t := &Table{
		internedPerm:   make(map[string]uint32),
		internedTemp:   make(map[string]uint32),
		internedModule: make(map[string]ModuleRef),
		unmarkedModule: make(map[ModuleRef]struct{}),
	}
	t.modules = append(t.modules, moduleEntry{parts: nil, key: "", valid: true})
	t.internedModule[""] = Root
	for _, r := range reservedSymbolNames {
		t.AllocPermanent(r)
	}
	return t
}

// AllocPermanent interns str as a permanent symbol: never swept, and the
// allocation is idempotent for equal strings. Use this for names that are
// known ahead of time to live for the whole compilation (reserved names,
// source-derived identifiers once discovered to survive a pass boundary).
func (t *Table) AllocPermanent(str string) Symbol {
	if sym, ok := inlineOf(str); ok {
		return sym
	}
	if id, ok := t.internedPerm[str]; ok {
		return heapSymbol(id)
	}
	if id, ok := t.internedTemp[str]; ok {
		// Promote an already-allocated temporary to permanent in place.
		t.heap[id].state = statePermanent
		delete(t.internedTemp, str)
		t.internedPerm[str] = id
		return heapSymbol(id)
	}
	id := t.allocFatal()
	t.heap[id] = heapEntry{str: str, state: statePermanent}
	t.internedPerm[str] = id
	return heapSymbol(id)
}

// AllocTemporary interns str as a temporary symbol: it may be swept once
// its owning module is no longer marked as outstanding-unmarked and a
// Sweep pass reaches it without having observed a Mark in between.
func (t *Table) AllocTemporary(str string) Symbol {
	if sym, ok := inlineOf(str); ok {
		return sym
	}
	if id, ok := t.internedPerm[str]; ok {
		return heapSymbol(id)
	}
	if id, ok := t.internedTemp[str]; ok {
		return heapSymbol(id)
	}
	id := t.allocFatal()
	t.heap[id] = heapEntry{str: str, state: stateTemporary}
	t.internedTemp[str] = id
	return heapSymbol(id)
}

// NewTempSymbol allocates a fresh temporary symbol guaranteed not to
// collide with any existing symbol, seeded solely from the table's
// monotone counter (required for determinism across runs).
func (t *Table) NewTempSymbol() Symbol {
	for {
		name := fmt.Sprintf("_t%d", t.tempCounter)
		t.tempCounter++
		if sym, ok := inlineOf(name); ok {
			// Inline temporaries never collide with interned heap strings
			// because they are compared structurally, but guard against
			// colliding with an earlier NewTempSymbol call regardless.
			return sym
		}
		if _, existsPerm := t.internedPerm[name]; existsPerm {
			continue
		}
		if _, existsTemp := t.internedTemp[name]; existsTemp {
			continue
		}
		id := t.allocFatal()
		t.heap[id] = heapEntry{str: name, state: stateTemporary}
		t.internedTemp[name] = id
		return heapSymbol(id)
	}
}

// Lookup returns the symbol for str without allocating, if one already
// exists (inline strings always "exist" and round-trip losslessly).
func (t *Table) Lookup(str string) (Symbol, bool) {
	if sym, ok := inlineOf(str); ok {
		return sym, true
	}
	if id, ok := t.internedPerm[str]; ok {
		return heapSymbol(id), true
	}
	if id, ok := t.internedTemp[str]; ok {
		return heapSymbol(id), true
	}
	return Symbol{}, false
}

// Promote marks sym as permanent. Idempotent; a no-op for inline symbols,
// which are never subject to collection in the first place.
func (t *Table) Promote(sym Symbol) Symbol {
	if sym.IsInline() {
		return sym
	}
	e := &t.heap[sym.id]
	switch e.state {
	case statePermanent:
		// already permanent
	case stateTemporary:
		delete(t.internedTemp, e.str)
		e.state = statePermanent
		t.internedPerm[e.str] = sym.id
	case stateDeallocated:
		// Re-materializing a deallocated symbol indicates a pass read a
		// handle past its validity window; that is an internal bug, but
		// symbol.Table has no error channel of its own, so the caller
		// (a pass) is expected never to retain a handle across a Sweep
		// whose module it hasn't also marked as unmarked-outstanding.
	}
	return sym
}

// Mark marks sym as used, excluding it from the next round of sweeping.
// A no-op for inline and permanent symbols.
func (t *Table) Mark(sym Symbol) {
	if sym.IsInline() {
		return
	}
	e := &t.heap[sym.id]
	if e.state == stateTemporary {
		e.marked = true
	}
}

// Text returns the string a symbol denotes.
func (t *Table) Text(sym Symbol) string {
	if sym.IsInline() {
		return sym.inlineString()
	}
	e := &t.heap[sym.id]
	if e.state == stateDeallocated {
		return "<swept:" + e.str + ">"
	}
	return e.str
}

// AddUnmarkedModule informs the table that module has been touched since
// the last GC round, so everything reachable from it must be marked again
// before a Sweep may proceed.
func (t *Table) AddUnmarkedModule(mod ModuleRef) {
	t.unmarkedModule[mod] = struct{}{}
}

// PopUnmarkedModule removes and returns one outstanding unmarked module, if
// any remain.
func (t *Table) PopUnmarkedModule() (ModuleRef, bool) {
	for mod := range t.unmarkedModule {
		delete(t.unmarkedModule, mod)
		return mod, true
	}
	return 0, false
}

// Sweep performs one incremental unit of sweeping, covering at most
// workUnit heap slots. It is a no-op while any module is outstanding as
// unmarked. A marked-but-unswept temporary has its mark bit consumed (not
// latched) so it must be re-marked on the following GC round to survive.
//
// Per the concurrency model, Sweep may only be interleaved with
// compilation between passes, never inside one.
func (t *Table) Sweep(workUnit int) {
	if len(t.unmarkedModule) != 0 {
		return
	}
	if workUnit <= 0 || len(t.heap) == 0 {
		return
	}
	start := t.sweepIndex
	end := start + workUnit
	max := len(t.heap)
	if end >= max {
		end = max
		t.sweepIndex = 0
	} else {
		t.sweepIndex = end
	}
	for i := start; i < end; i++ {
		e := &t.heap[i]
		switch e.state {
		case statePermanent, stateDeallocated:
			// never swept
		case stateTemporary:
			if e.marked {
				e.marked = false
			} else {
				delete(t.internedTemp, e.str)
				e.state = stateDeallocated
			}
		}
	}
}

// allocFatal grows the heap table by one slot, aborting the compilation if
// the process cannot allocate (resource exhaustion is fatal, see the error
// taxonomy).
func (t *Table) allocFatal() uint32 {
	id := len(t.heap)
	if id > 0xFFFFFFFF {
		panic("symbol table exhausted: more than 2^32 heap-allocated symbols")
	}
	t.heap = append(t.heap, heapEntry{})
	return uint32(id)
}

// Stat reports coarse heap occupancy, useful for compile telemetry.
func (t *Table) Stat() (total, used, deallocated int) {
	total = len(t.heap)
	for _, e := range t.heap {
		if e.state == stateDeallocated {
			deallocated++
		}
	}
	used = total - deallocated
	return
}
