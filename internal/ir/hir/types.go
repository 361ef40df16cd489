// Package hir defines the generic, pre-monomorphization intermediate
// representation the core consumes from its upstream collaborators
// (lexing, parsing, name resolution, and type checking are all out of
// scope; this package only defines the shape S1 reads).
package hir

import (
	"fmt"
	"strings"

	"corelang/internal/symbol"
)

// Location pairs a module reference with a source span. Locations
// participate only in diagnostics; no pass branches on them.
type Location struct {
	Module symbol.ModuleRef
	Start  Position
	End    Position
}

// Position is a line/column pair.
type Position struct {
	Line   int
	Column int
}

// Reason pairs a definition location with a use location, for
// diagnostics that need to explain "this type came from here, used here".
type Reason struct {
	Definition Location
	Use        Location
}

// Type is the closed set of HIR types: Int, Bool, String, nominal
// Name<T...>, function (T...) -> T, generic parameter G, and Any.
type Type interface {
	isHIRType()
}

// Equal compares two HIR types structurally, ignoring reasons (types carry
// no reasons in this IR; locations never participate in equality).
func Equal(a, b Type) bool {
	switch av := a.(type) {
	case PrimInt:
		_, ok := b.(PrimInt)
		return ok
	case PrimBool:
		_, ok := b.(PrimBool)
		return ok
	case PrimString:
		_, ok := b.(PrimString)
		return ok
	case PrimAny:
		_, ok := b.(PrimAny)
		return ok
	case GenericParam:
		bv, ok := b.(GenericParam)
		return ok && av.Name == bv.Name
	case Nominal:
		bv, ok := b.(Nominal)
		if !ok || av.Name != bv.Name || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !Equal(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
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

// PrimInt is the machine-width integer type.
type PrimInt struct{}

// PrimBool is the boolean type.
type PrimBool struct{}

// PrimString is the string type.
type PrimString struct{}

// PrimAny is the top type.
type PrimAny struct{}

// GenericParam is an unresolved generic type parameter, identified by name.
type GenericParam struct {
	Name symbol.Symbol
}

// Nominal is a (possibly generic) named type with concrete or still-generic
// type arguments.
type Nominal struct {
	Name symbol.Symbol
	Args []Type
}

// Func is a function type.
type Func struct {
	Params []Type
	Result Type
}

func (PrimInt) isHIRType()      {}
func (PrimBool) isHIRType()     {}
func (PrimString) isHIRType()   {}
func (PrimAny) isHIRType()      {}
func (GenericParam) isHIRType() {}
func (Nominal) isHIRType()      {}
func (Func) isHIRType()         {}

// String renders a type for debugging/dumps. Not used by any pass.
func (t PrimInt) String() string  { return "Int" }
func (t PrimBool) String() string { return "Bool" }
func (t PrimString) String() string { return "String" }
func (t PrimAny) String() string  { return "Any" }

func TypeString(tbl *symbol.Table, t Type) string {
	switch v := t.(type) {
	case PrimInt:
		return "Int"
	case PrimBool:
		return "Bool"
	case PrimString:
		return "String"
	case PrimAny:
		return "Any"
	case GenericParam:
		return tbl.Text(v.Name)
	case Nominal:
		if len(v.Args) == 0 {
			return tbl.Text(v.Name)
		}
		parts := make([]string, len(v.Args))
		for i, a := range v.Args {
			parts[i] = TypeString(tbl, a)
		}
		return fmt.Sprintf("%s<%s>", tbl.Text(v.Name), strings.Join(parts, ", "))
	case Func:
		parts := make([]string, len(v.Params))
		for i, p := range v.Params {
			parts[i] = TypeString(tbl, p)
		}
		return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), TypeString(tbl, v.Result))
	default:
		return "<?>"
	}
}
