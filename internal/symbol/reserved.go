package symbol

// reservedSymbolNames lists the names that must be pre-populated in every
// fresh Table: primitive type names, the runtime's built-in function
// names (the symbol contract with the generated runtime), and the single
// letters commonly used as generic parameter names. Most of these fit the
// 15-byte inline form; the longer built-in names (such as
// "_builtin_inc_ref") become permanent heap symbols here, so Lookup finds
// every reserved name without allocating.
var reservedSymbolNames = []string{
	// Primitive and nominal scaffolding type names.
	"Int", "Int32", "Int31", "Bool", "String", "Any", "AnyPointer",

	// Runtime contract (see reserved/built-in names).
	"_builtin_free",
	"_builtin_inc_ref",
	"_builtin_dec_ref",
	"_builtin_println",
	"_builtin_panic",
	"_builtin_int_to_string",
	"_builtin_string_to_int",
	"_builtin_string_concat",

	// Fixed temporary names used inside the generated inc_ref/dec_ref
	// helpers, which must be stable across runs for deterministic output.
	"ptr", "notPtr", "tinyInt", "isOdd", "header", "rc", "oldRC",
	"isZero", "isRef", "isRefB", "bitSet", "fPtr", "byteOffset", "newHdr",

	// Single-letter generic parameter names.
	"A", "B", "C", "D", "E", "F", "G", "H", "T", "U", "V", "W", "X", "Y", "Z",
}

// Reserved well-known symbols, resolved once at table construction so
// passes can compare against them by value instead of re-interning.
var (
	TypeInt        Symbol
	TypeInt32      Symbol
	TypeInt31      Symbol
	TypeBool       Symbol
	TypeString     Symbol
	TypeAny        Symbol
	TypeAnyPointer Symbol

	BuiltinFree          Symbol
	BuiltinIncRef        Symbol
	BuiltinDecRef        Symbol
	BuiltinPrintln       Symbol
	BuiltinPanic         Symbol
	BuiltinIntToString   Symbol
	BuiltinStringToInt   Symbol
	BuiltinStringConcat  Symbol

	RefCountTempPtr        Symbol
	RefCountTempNotPtr     Symbol
	RefCountTempTinyInt    Symbol
	RefCountTempIsOdd      Symbol
	RefCountTempHeader     Symbol
	RefCountTempRC         Symbol
	RefCountTempOldRC      Symbol
	RefCountTempIsZero     Symbol
	RefCountTempIsRef      Symbol
	RefCountTempIsRefB     Symbol
	RefCountTempBitSet     Symbol
	RefCountTempFPtr       Symbol
	RefCountTempByteOffset Symbol
	RefCountTempNewHdr     Symbol
)

func init() {
	t := NewTable()
	TypeInt, _ = t.Lookup("Int")
	TypeInt32, _ = t.Lookup("Int32")
	TypeInt31, _ = t.Lookup("Int31")
	TypeBool, _ = t.Lookup("Bool")
	TypeString, _ = t.Lookup("String")
	TypeAny, _ = t.Lookup("Any")
	TypeAnyPointer, _ = t.Lookup("AnyPointer")

	BuiltinFree, _ = t.Lookup("_builtin_free")
	BuiltinIncRef, _ = t.Lookup("_builtin_inc_ref")
	BuiltinDecRef, _ = t.Lookup("_builtin_dec_ref")
	BuiltinPrintln, _ = t.Lookup("_builtin_println")
	BuiltinPanic, _ = t.Lookup("_builtin_panic")
	BuiltinIntToString, _ = t.Lookup("_builtin_int_to_string")
	BuiltinStringToInt, _ = t.Lookup("_builtin_string_to_int")
	BuiltinStringConcat, _ = t.Lookup("_builtin_string_concat")

	RefCountTempPtr, _ = t.Lookup("ptr")
	RefCountTempNotPtr, _ = t.Lookup("notPtr")
	RefCountTempTinyInt, _ = t.Lookup("tinyInt")
	RefCountTempIsOdd, _ = t.Lookup("isOdd")
	RefCountTempHeader, _ = t.Lookup("header")
	RefCountTempRC, _ = t.Lookup("rc")
	RefCountTempOldRC, _ = t.Lookup("oldRC")
	RefCountTempIsZero, _ = t.Lookup("isZero")
	RefCountTempIsRef, _ = t.Lookup("isRef")
	RefCountTempIsRefB, _ = t.Lookup("isRefB")
	RefCountTempBitSet, _ = t.Lookup("bitSet")
	RefCountTempFPtr, _ = t.Lookup("fPtr")
	RefCountTempByteOffset, _ = t.Lookup("byteOffset")
	RefCountTempNewHdr, _ = t.Lookup("newHdr")
}
