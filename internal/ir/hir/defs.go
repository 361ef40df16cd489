package hir

// GlobalString is an immutable, compile-time-known string constant.
type GlobalString struct {
	Name  Symbol
	Bytes []byte
}

// ClosureTypeDefinition names a closure signature.
type ClosureTypeDefinition struct {
	Name         Symbol
	FunctionType Func
	TypeParams   []Symbol
}

// VariantKind is the closed set of enum variant representations. At the
// HIR level all three still carry generic type information; §4.4 (layout)
// is what turns these into concrete physical forms.
type VariantKind int

const (
	VariantUnboxed VariantKind = iota
	VariantInt31
	VariantBoxed
)

// Variant is one arm of an enum type definition.
type Variant struct {
	Kind VariantKind
	// Unboxed carries exactly one type (ignored for Int31).
	Unboxed Type
	// Boxed carries the payload types making up the variant's own struct.
	Boxed []Type
}

// Mappings is either Struct([]Type) or Enum([]Variant); exactly one of
// StructFields/EnumVariants is non-nil.
type Mappings struct {
	StructFields []Type
	EnumVariants []Variant
}

func (m Mappings) IsStruct() bool { return m.StructFields != nil }
func (m Mappings) IsEnum() bool   { return m.EnumVariants != nil }

// TypeDefinition names a struct or enum's field/variant layout, still
// possibly generic over TypeParams.
type TypeDefinition struct {
	Name       Symbol
	TypeParams []Symbol
	Mappings   Mappings
}

// Parameter is one formal parameter of a function.
type Parameter struct {
	Name Symbol
	Typ  Type
}

// Function is a (possibly generic) function definition.
type Function struct {
	Name         Symbol
	TypeParams   []Symbol
	Parameters   []Parameter
	Typ          Func
	Body         []Stmt
	ReturnValue  Expr
	Loc          Location
}

// Sources is the full HIR input to the core: everything the upstream
// collaborators (lexer/parser/checker/module loader) hand to
// compile_core.
type Sources struct {
	GlobalVariables   []GlobalString
	TypeDefinitions   []TypeDefinition
	ClosureTypes      []ClosureTypeDefinition
	MainFunctionNames []Symbol
	Functions         []Function
}
