package mir

import "corelang/internal/symbol"

// Expr is the closed set of MIR expressions, unchanged in shape from HIR
// except that every Type() result is now concrete.
type Expr interface {
	isMIRExpr()
	Type() Type
}

// IntLiteral is an integer literal.
type IntLiteral struct {
	Value int32
}

// StringRef references a global string table entry by name.
type StringRef struct {
	Name Symbol
}

// VarRef references a local variable.
type VarRef struct {
	Name Symbol
	Typ  Type
}

// FuncRef references a top-level function.
type FuncRef struct {
	Name Symbol
	Typ  Type
}

func (IntLiteral) isMIRExpr() {}
func (StringRef) isMIRExpr()  {}
func (VarRef) isMIRExpr()     {}
func (FuncRef) isMIRExpr()    {}

func (IntLiteral) Type() Type { return Int32{} }
func (StringRef) Type() Type  { return Nominal{Name: symbol.TypeString} }
func (e VarRef) Type() Type   { return e.Typ }
func (e FuncRef) Type() Type  { return e.Typ }
