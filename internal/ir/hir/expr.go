package hir

import "corelang/internal/symbol"

// Expr is the closed set of HIR expressions. Expressions are pure; side
// effects live in statements.
type Expr interface {
	isHIRExpr()
	Type() Type
}

// IntLiteral is an integer literal.
type IntLiteral struct {
	Value int32
	Loc   Location
}

// StringRef references an entry in the global string table by name.
type StringRef struct {
	Name symbol.Symbol
	Loc  Location
}

// VarRef references a variable by name and carries its static type.
type VarRef struct {
	Name symbol.Symbol
	Typ  Type
	Loc  Location
}

// FuncRef references a function by name and carries its function type.
type FuncRef struct {
	Name symbol.Symbol
	Typ  Type
	Loc  Location
}

func (IntLiteral) isHIRExpr() {}
func (StringRef) isHIRExpr()  {}
func (VarRef) isHIRExpr()     {}
func (FuncRef) isHIRExpr()    {}

func (IntLiteral) Type() Type { return PrimInt{} }
func (StringRef) Type() Type  { return PrimString{} }
func (e VarRef) Type() Type   { return e.Typ }
func (e FuncRef) Type() Type  { return e.Typ }
