// Package mir defines the monomorphized intermediate representation: S1's
// output and S2's input/output. Every type here is concrete (no generic
// parameters, no type arguments on nominal types survive S1).
package mir

import "corelang/internal/symbol"

// Symbol is a local alias for readability in field declarations.
type Symbol = symbol.Symbol

// Type is the closed set of MIR types.
type Type interface {
	isMIRType()
}

// Int32 is a 32-bit two's-complement integer.
type Int32 struct{}

// Int31 is a tagged immediate integer (low bit set at the LIR level; at
// the MIR level it is simply a distinct logical type from Int32).
type Int31 struct{}

// Nominal is a monomorphized named type: no type arguments.
type Nominal struct {
	Name Symbol
}

// Func is a function type.
type Func struct {
	Params []Type
	Result Type
}

func (Int32) isMIRType()   {}
func (Int31) isMIRType()   {}
func (Nominal) isMIRType() {}
func (Func) isMIRType()    {}

// Equal compares two MIR types structurally.
func Equal(a, b Type) bool {
	switch av := a.(type) {
	case Int32:
		_, ok := b.(Int32)
		return ok
	case Int31:
		_, ok := b.(Int31)
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

// IsNominal reports whether t is a pointer-shaped nominal type (the owned
// values ref-count insertion (S4) tracks).
func IsNominal(t Type) bool {
	_, ok := t.(Nominal)
	return ok
}
