package lir

import (
	"sort"

	"corelang/internal/symbol"
)

// RefCounter drives S4: structural (non-flow-sensitive) inc_ref/dec_ref
// insertion over LIR bodies, plus the two generated runtime helpers.
type RefCounter struct {
	tbl *symbol.Table
}

func NewRefCounter(tbl *symbol.Table) *RefCounter {
	return &RefCounter{tbl: tbl}
}

// Run inserts reference counting throughout src and appends the two
// generated runtime helper functions.
func (r *RefCounter) Run(src *Sources) *Sources {
	fns := make([]Function, len(src.Functions))
	for i, fn := range src.Functions {
		fns[i] = r.insertFunction(fn)
	}
	fns = append(fns, r.generateIncRefFn(), r.generateDecRefFn())

	out := *src
	out.Functions = fns
	return &out
}

func (r *RefCounter) insertFunction(fn Function) Function {
	owned, body := r.insertStmts(fn.Body, ownedSet(fn.ReturnValue))
	fn.Body = append(body, r.releaseAll(owned)...)
	return fn
}

// ownedSet seeds the "moved out" set from the names a block's exit
// expressions reference.
func ownedSet(exprs ...Expr) map[Symbol]bool {
	moved := make(map[Symbol]bool)
	for _, e := range exprs {
		if ref, ok := e.(VarRef); ok {
			moved[ref.Name] = true
		}
	}
	return moved
}

// insertStmts rewrites body, returning the set of names now owing a
// dec_ref at this block's exit (those produced here and not moved out)
// along with the rewritten statement list (inc_refs spliced before
// consuming statements).
func (r *RefCounter) insertStmts(body []Stmt, doNotDrop map[Symbol]bool) (map[Symbol]bool, []Stmt) {
	owed := make(map[Symbol]bool)
	out := make([]Stmt, 0, len(body))

	for _, s := range body {
		switch v := s.(type) {
		case Call:
			if v.ReturnCollector != nil && IsPointerShaped(v.ReturnType) && !doNotDrop[*v.ReturnCollector] {
				owed[*v.ReturnCollector] = true
			}
			out = append(out, v)

		case StructInit:
			pre, exprs := r.incRefOwnedFields(v.Exprs)
			out = append(out, pre...)
			v.Exprs = exprs
			out = append(out, v)
			if !doNotDrop[v.Name] {
				owed[v.Name] = true
			}

		case ClosureInit:
			pre, ctx := r.incRefIfPointer(v.Context)
			out = append(out, pre...)
			v.Context = ctx
			out = append(out, v)
			if !doNotDrop[v.Name] {
				owed[v.Name] = true
			}

		case IfElse:
			dndS1 := mergeDoNotDrop(doNotDrop, finalAssignExprs(v.FinalAssignments, true))
			dndS2 := mergeDoNotDrop(doNotDrop, finalAssignExprs(v.FinalAssignments, false))
			owed1, s1 := r.insertStmts(v.S1, dndS1)
			owed2, s2 := r.insertStmts(v.S2, dndS2)
			s1 = append(s1, r.releaseAll(owed1)...)
			s2 = append(s2, r.releaseAll(owed2)...)
			v.S1, v.S2 = s1, s2
			out = append(out, v)
			for _, fa := range v.FinalAssignments {
				if IsPointerShaped(fa.Typ) && !doNotDrop[fa.Name] {
					owed[fa.Name] = true
				}
			}

		case SingleIf:
			bodyOwed, newBody := r.insertStmts(v.Body, doNotDrop)
			v.Body = append(newBody, r.releaseAll(bodyOwed)...)
			out = append(out, v)

		case While:
			loopValueNames := make(map[Symbol]bool)
			for _, lv := range v.LoopVariables {
				if ref, ok := lv.LoopValue.(VarRef); ok {
					loopValueNames[ref.Name] = true
				}
			}
			bodyDoNotDrop := mergeDoNotDrop(loopValueNames, nil)
			bodyOwed, newBody := r.insertStmts(v.Body, bodyDoNotDrop)
			v.Body = append(newBody, r.releaseAll(bodyOwed)...)
			out = append(out, v)
			if v.BreakCollector != nil && IsPointerShaped(v.BreakCollector.Typ) && !doNotDrop[v.BreakCollector.Name] {
				owed[v.BreakCollector.Name] = true
			}

		default:
			out = append(out, s)
		}
	}

	return owed, out
}

func finalAssignExprs(fas []FinalAssignment, branch1 bool) map[Symbol]bool {
	m := make(map[Symbol]bool)
	for _, fa := range fas {
		e := fa.E2
		if branch1 {
			e = fa.E1
		}
		if ref, ok := e.(VarRef); ok {
			m[ref.Name] = true
		}
	}
	return m
}

func mergeDoNotDrop(a, b map[Symbol]bool) map[Symbol]bool {
	out := make(map[Symbol]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

// incRefOwnedFields casts each pointer-shaped field expression to
// AnyPointer and calls inc_ref on it before the StructInit, per rule 2.
func (r *RefCounter) incRefOwnedFields(exprs []Expr) ([]Stmt, []Expr) {
	var pre []Stmt
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		p, ne := r.incRefIfPointer(e)
		pre = append(pre, p...)
		out[i] = ne
	}
	return pre, out
}

func (r *RefCounter) incRefIfPointer(e Expr) ([]Stmt, Expr) {
	if e == nil || !IsPointerShaped(e.Type()) {
		return nil, e
	}
	temp := r.tbl.NewTempSymbol()
	stmts := []Stmt{
		Cast{Name: temp, Typ: AnyPointer{}, E: e},
		Call{
			Callee:          FuncRef{Name: symbol.BuiltinIncRef, Typ: destructorType},
			Args:            []Expr{VarRef{Name: temp, Typ: AnyPointer{}}},
			ReturnType:      Int32{},
			ReturnCollector: nil,
		},
	}
	return stmts, e
}

// releaseAll emits a dec_ref call for every owned name, sorted by
// interned text: Symbol has no natural ordering of its own (it is not
// a constraints.Ordered type), so output order is pinned through the
// table instead.
func (r *RefCounter) releaseAll(owed map[Symbol]bool) []Stmt {
	names := make([]Symbol, 0, len(owed))
	for n := range owed {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return r.tbl.Text(names[i]) < r.tbl.Text(names[j]) })
	var out []Stmt
	for _, n := range names {
		out = append(out, Call{
			Callee:          FuncRef{Name: symbol.BuiltinDecRef, Typ: destructorType},
			Args:            []Expr{VarRef{Name: n, Typ: AnyPointer{}}},
			ReturnType:      Int32{},
			ReturnCollector: nil,
		})
	}
	return out
}

var destructorType = Func{Params: []Type{AnyPointer{}}, Result: Int32{}}

// emitter accumulates statements for one of the two generated runtime
// helpers. Binary/Unary/IndexedAccess are statements here, not
// expressions, so every intermediate value needs a named temp before it
// can be referenced again; emitter.binary/.indexedAccess do the
// bind-then-return-VarRef bookkeeping in one place. Callers always pass
// one of the symbol.RefCountTemp* reserved names so inc_ref/dec_ref's
// generated bodies textualize identically across runs, regardless of
// what temp-allocation traffic the rest of the compilation generated.
type emitter struct {
	tbl  *symbol.Table
	body []Stmt
}

func (e *emitter) binary(name symbol.Symbol, op BinaryOp, e1, e2 Expr, typ Type) VarRef {
	e.body = append(e.body, Binary{Name: name, Op: op, E1: e1, E2: e2, Typ: typ})
	return VarRef{Name: name, Typ: typ}
}

func (e *emitter) indexedAccess(name symbol.Symbol, ptr Expr, index int, typ Type) VarRef {
	e.body = append(e.body, IndexedAccess{Name: name, Typ: typ, Ptr: ptr, Index: index})
	return VarRef{Name: name, Typ: typ}
}

// isZero builds an `== 0` comparison, used to turn the "not a pointer"
// flag into the "is a pointer" guard.
func (e *emitter) isZero(name symbol.Symbol, v Expr) VarRef {
	return e.binary(name, Eq, v, IntLiteral{Value: 0}, Int32{})
}

// generateIncRefFn builds `inc_ref(ptr)`, matching the fixed reserved
// temp names so textualization is stable across runs.
func (r *RefCounter) generateIncRefFn() Function {
	ptr := VarRef{Name: symbol.RefCountTempPtr, Typ: AnyPointer{}}
	e := &emitter{tbl: r.tbl}

	tinyInt := e.binary(symbol.RefCountTempTinyInt, Lt, ptr, IntLiteral{Value: 1024}, Int32{})
	isOdd := e.binary(symbol.RefCountTempIsOdd, BitAnd, ptr, IntLiteral{Value: 1}, Int32{})
	notPtr := e.binary(symbol.RefCountTempNotPtr, LogicalOr, tinyInt, isOdd, Int32{})
	isPtr := e.isZero(symbol.RefCountTempIsRef, notPtr)

	inner := &emitter{tbl: r.tbl}
	header := inner.indexedAccess(symbol.RefCountTempHeader, ptr, 0, Int32{})
	oldRC := inner.binary(symbol.RefCountTempOldRC, BitAnd, header, IntLiteral{Value: 0xFFFF}, Int32{})
	notPermanent := inner.binary(symbol.RefCountTempIsZero, Ne, oldRC, IntLiteral{Value: 0}, Int32{})

	bump := &emitter{tbl: r.tbl}
	newRC := bump.binary(symbol.RefCountTempRC, Add, oldRC, IntLiteral{Value: 1}, Int32{})
	upperBits := bump.binary(symbol.RefCountTempIsRefB, BitAnd, header, IntLiteral{Value: ^0xFFFF}, Int32{})
	newHeader := bump.binary(symbol.RefCountTempNewHdr, BitOr, upperBits, newRC, Int32{})
	bump.body = append(bump.body, IndexedAssign{Ptr: ptr, Index: 0, Value: newHeader})

	inner.body = append(inner.body, SingleIf{Cond: notPermanent, Body: bump.body})
	e.body = append(e.body, SingleIf{Cond: isPtr, Body: inner.body})

	return Function{
		Name:        symbol.BuiltinIncRef,
		Parameters:  []Parameter{{Name: symbol.RefCountTempPtr, Typ: AnyPointer{}}},
		Typ:         destructorType,
		Body:        e.body,
		ReturnValue: IntLiteral{Value: 0},
	}
}

// bitWidth is the number of pointer-bitmap bits a header carries (bits
// 16..31 of the 32-bit header word).
const bitWidth = 16

// generateDecRefFn builds `dec_ref(ptr)`: permanent objects (count 0)
// are left alone, counts above 1 are decremented in place, and a count
// of exactly 1 walks the pointer bitmap field-by-field before freeing.
//
// The bitmap walk is unrolled rather than a runtime loop: IndexedAccess
// addresses a field by a compile-time-constant index, so the only way
// to visit "every field i whose bitmap bit is set" without a dynamic
// byte-pointer primitive is to emit one guarded access per bit position
// and let the condition decide at runtime whether it fires.
func (r *RefCounter) generateDecRefFn() Function {
	ptr := VarRef{Name: symbol.RefCountTempPtr, Typ: AnyPointer{}}
	e := &emitter{tbl: r.tbl}

	tinyInt := e.binary(symbol.RefCountTempTinyInt, Lt, ptr, IntLiteral{Value: 1024}, Int32{})
	isOdd := e.binary(symbol.RefCountTempIsOdd, BitAnd, ptr, IntLiteral{Value: 1}, Int32{})
	notPtr := e.binary(symbol.RefCountTempNotPtr, LogicalOr, tinyInt, isOdd, Int32{})
	isPtr := e.isZero(symbol.RefCountTempIsRefB, notPtr)

	inner := &emitter{tbl: r.tbl}
	header := inner.indexedAccess(symbol.RefCountTempHeader, ptr, 0, Int32{})
	rc := inner.binary(symbol.RefCountTempRC, BitAnd, header, IntLiteral{Value: 0xFFFF}, Int32{})
	notPermanent := inner.binary(symbol.RefCountTempIsZero, Ne, rc, IntLiteral{Value: 0}, Int32{})

	live := &emitter{tbl: r.tbl}
	stillShared := live.binary(symbol.RefCountTempOldRC, Gt, rc, IntLiteral{Value: 1}, Int32{})

	decrement := &emitter{tbl: r.tbl}
	decremented := decrement.binary(symbol.RefCountTempNewHdr, Sub, header, IntLiteral{Value: 1}, Int32{})
	decrement.body = append(decrement.body, IndexedAssign{Ptr: ptr, Index: 0, Value: decremented})

	free := &emitter{tbl: r.tbl}
	r.emitBitmapWalk(free, header, ptr)
	free.body = append(free.body, Call{
		Callee:          FuncRef{Name: symbol.BuiltinFree, Typ: destructorType},
		Args:            []Expr{ptr},
		ReturnType:      Int32{},
		ReturnCollector: nil,
	})

	live.body = append(live.body, IfElse{Cond: stillShared, S1: decrement.body, S2: free.body})
	inner.body = append(inner.body, SingleIf{Cond: notPermanent, Body: live.body})
	e.body = append(e.body, SingleIf{Cond: isPtr, Body: inner.body})

	return Function{
		Name:        symbol.BuiltinDecRef,
		Parameters:  []Parameter{{Name: symbol.RefCountTempPtr, Typ: AnyPointer{}}},
		Typ:         destructorType,
		Body:        e.body,
		ReturnValue: IntLiteral{Value: 0},
	}
}

// emitBitmapWalk appends, to e, one guarded recursive dec_ref per bit
// of header's pointer bitmap (bits 16..31). Field i lives at physical
// index i+1 (fieldIndex in layout.go reserves index 0 for the header).
func (r *RefCounter) emitBitmapWalk(e *emitter, header VarRef, ptr Expr) {
	for i := 0; i < bitWidth; i++ {
		shifted := e.binary(symbol.RefCountTempByteOffset, ShiftRight, header, IntLiteral{Value: int32(bitWidth + i)}, Int32{})
		bitSet := e.binary(symbol.RefCountTempBitSet, BitAnd, shifted, IntLiteral{Value: 1}, Int32{})

		field := &emitter{tbl: r.tbl}
		fPtr := field.indexedAccess(symbol.RefCountTempFPtr, ptr, i+1, AnyPointer{})
		field.body = append(field.body, Call{
			Callee:          FuncRef{Name: symbol.BuiltinDecRef, Typ: destructorType},
			Args:            []Expr{fPtr},
			ReturnType:      Int32{},
			ReturnCollector: nil,
		})

		e.body = append(e.body, IfElse{Cond: bitSet, S1: field.body, S2: nil})
	}
}
