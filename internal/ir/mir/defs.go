package mir

// GlobalString is an immutable, compile-time-known string constant.
type GlobalString struct {
	Name  Symbol
	Bytes []byte
}

// ClosureTypeDefinition names a closure signature. Monomorphized: no
// TypeParams of its own survive from HIR (a generic closure type produces
// one ClosureTypeDefinition per specialization, each concretely typed).
type ClosureTypeDefinition struct {
	Name         Symbol
	FunctionType Func
}

// VariantKind is the closed set of enum variant representations.
type VariantKind int

const (
	VariantUnboxed VariantKind = iota
	VariantInt31
	VariantBoxed
)

// Variant is one arm of an enum type definition, fully monomorphized.
type Variant struct {
	Kind    VariantKind
	Unboxed Type
	Boxed   []Type
}

// Mappings is either Struct([]Type) or Enum([]Variant).
type Mappings struct {
	StructFields []Type
	EnumVariants []Variant
}

func (m Mappings) IsStruct() bool { return m.StructFields != nil }
func (m Mappings) IsEnum() bool   { return m.EnumVariants != nil }

// TypeDefinition is one monomorphized struct or enum shape. Name already
// encodes the specialization (e.g. `Box$Int`); there are no TypeParams
// left to substitute.
type TypeDefinition struct {
	Name     Symbol
	Mappings Mappings
}

// Parameter is one formal parameter of a function.
type Parameter struct {
	Name Symbol
	Typ  Type
}

// Function is a fully monomorphized function: no TypeParams, every type
// in Typ/Parameters/Body concrete.
type Function struct {
	Name        Symbol
	Parameters  []Parameter
	Typ         Func
	Body        []Stmt
	ReturnValue Expr
}

// Sources is the MIR program: S1's output and S2's input/output. The same
// Go type represents both "MIR-poly" (freshly monomorphized, before any
// optimizer pass has run) and "MIR" (after S2) — the two differ only in
// which passes have executed over the statement list, not in shape.
type Sources struct {
	GlobalVariables   []GlobalString
	TypeDefinitions   []TypeDefinition
	ClosureTypes      []ClosureTypeDefinition
	MainFunctionNames []Symbol
	Functions         []Function
}
