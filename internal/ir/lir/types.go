// Package lir defines the low-level intermediate representation: S3's
// output and S4/S5's input/output. Every object type here carries an
// explicit physical layout; AnyPointer is the type-erased form ref-count
// insertion operates through.
package lir

import "corelang/internal/symbol"

type Symbol = symbol.Symbol

// Type is the closed set of LIR types.
type Type interface {
	isLIRType()
}

// Int32 is a 32-bit two's-complement integer.
type Int32 struct{}

// Int31 is a tagged immediate integer.
type Int31 struct{}

// Nominal is a concrete, laid-out named type.
type Nominal struct {
	Name Symbol
}

// Func is a function type.
type Func struct {
	Params []Type
	Result Type
}

// AnyPointer is the type-erased pointer ref-count insertion casts every
// owned value through before calling the inc_ref/dec_ref helpers.
type AnyPointer struct{}

func (Int32) isLIRType()      {}
func (Int31) isLIRType()      {}
func (Nominal) isLIRType()    {}
func (Func) isLIRType()       {}
func (AnyPointer) isLIRType() {}

// IsPointerShaped reports whether a value of type t is a heap pointer
// subject to reference counting (Nominal and AnyPointer; never Int32,
// Int31, or Func values, which are never independently owned).
func IsPointerShaped(t Type) bool {
	switch t.(type) {
	case Nominal, AnyPointer:
		return true
	default:
		return false
	}
}

func Equal(a, b Type) bool {
	switch av := a.(type) {
	case Int32:
		_, ok := b.(Int32)
		return ok
	case Int31:
		_, ok := b.(Int31)
		return ok
	case AnyPointer:
		_, ok := b.(AnyPointer)
		return ok
	case Nominal:
		bv, ok := b.(Nominal)
		return ok && av.Name == bv.Name
	case Func:
		bv, ok := b.(Func)
		if !ok || len(av.Params) != len(bv.Params) || !Equal(av.Result, bv.Result) {
			return false
		}
		for i := range av.Params {
			if !Equal(av.Params[i], bv.Params[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
