package mir

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"corelang/internal/ir/hir"
	"corelang/internal/symbol"
)

// subst maps a generic parameter name to the concrete HIR type it was
// instantiated with.
type subst map[symbol.Symbol]hir.Type

// Monomorphizer drives S1: HIR (generic) to MIR-poly (monomorphized). It
// is single-use — construct one per compile_core invocation.
type Monomorphizer struct {
	tbl *symbol.Table
	src *hir.Sources

	functionsByName map[symbol.Symbol]*hir.Function
	typesByName     map[symbol.Symbol]*hir.TypeDefinition
	closuresByName  map[symbol.Symbol]*hir.ClosureTypeDefinition
	stringsByName   map[symbol.Symbol]*hir.GlobalString

	// specName -> canonical encoding, used to detect an accidental name
	// collision between two structurally distinct instantiations; this
	// can only happen from a hash collision and is treated as the fatal
	// "malformed generic-dispatch encoding" condition the spec names.
	canonicalOf map[symbol.Symbol]string

	done map[symbol.Symbol]bool

	functions    []Function
	typeDefs     []TypeDefinition
	closureTypes []ClosureTypeDefinition
	usedStrings  map[symbol.Symbol]bool
}

// NewMonomorphizer prepares a monomorphizer over src, resolved through tbl.
func NewMonomorphizer(tbl *symbol.Table, src *hir.Sources) *Monomorphizer {
	m := &Monomorphizer{
		tbl:             tbl,
		src:             src,
		functionsByName: make(map[symbol.Symbol]*hir.Function, len(src.Functions)),
		typesByName:     make(map[symbol.Symbol]*hir.TypeDefinition, len(src.TypeDefinitions)),
		closuresByName:  make(map[symbol.Symbol]*hir.ClosureTypeDefinition, len(src.ClosureTypes)),
		stringsByName:   make(map[symbol.Symbol]*hir.GlobalString, len(src.GlobalVariables)),
		canonicalOf:     make(map[symbol.Symbol]string),
		done:            make(map[symbol.Symbol]bool),
		usedStrings:     make(map[symbol.Symbol]bool),
	}
	for i := range src.Functions {
		fn := &src.Functions[i]
		m.functionsByName[fn.Name] = fn
	}
	for i := range src.TypeDefinitions {
		td := &src.TypeDefinitions[i]
		m.typesByName[td.Name] = td
	}
	for i := range src.ClosureTypes {
		ct := &src.ClosureTypes[i]
		m.closuresByName[ct.Name] = ct
	}
	for i := range src.GlobalVariables {
		gs := &src.GlobalVariables[i]
		m.stringsByName[gs.Name] = gs
	}
	return m
}

// specKey identifies one (name, type-argument vector) instantiation for
// worklist dedup purposes, before any name has been minted for it.
type specKey struct {
	name symbol.Symbol
	args string
}

// Run performs the fixpoint worklist described in the monomorphization
// section: seed from entry points, specialize on demand, chase every
// nominal or function reference substitution introduces.
func (m *Monomorphizer) Run() (*Sources, error) {
	type seedTask struct {
		name symbol.Symbol
		args []hir.Type
	}
	seeds := make([]seedTask, 0, len(m.src.MainFunctionNames))
	for _, name := range m.src.MainFunctionNames {
		seeds = append(seeds, seedTask{name: name})
	}

	seen := make(map[specKey]bool)
	var queue []seedTask
	queue = append(queue, seeds...)

	for len(queue) > 0 {
		task := queue[0]
		queue = queue[1:]

		key := specKey{name: task.name, args: canonicalTypeVector(m.tbl, task.args)}
		if seen[key] {
			continue
		}
		seen[key] = true

		var more []discovered
		var err error
		switch {
		case m.typesByName[task.name] != nil:
			more, err = m.specializeType(task.name, task.args)
		case m.closuresByName[task.name] != nil:
			more, err = m.specializeClosureType(task.name, task.args)
		default:
			more, err = m.specializeFunction(task.name, task.args)
		}
		if err != nil {
			return nil, err
		}
		for _, t := range more {
			queue = append(queue, seedTask{name: t.name, args: t.args})
		}
	}

	sort.Slice(m.functions, func(i, j int) bool { return m.tbl.Text(m.functions[i].Name) < m.tbl.Text(m.functions[j].Name) })
	sort.Slice(m.typeDefs, func(i, j int) bool { return m.tbl.Text(m.typeDefs[i].Name) < m.tbl.Text(m.typeDefs[j].Name) })
	sort.Slice(m.closureTypes, func(i, j int) bool { return m.tbl.Text(m.closureTypes[i].Name) < m.tbl.Text(m.closureTypes[j].Name) })

	var globals []GlobalString
	for name := range m.usedStrings {
		gs := m.stringsByName[name]
		globals = append(globals, GlobalString{Name: gs.Name, Bytes: gs.Bytes})
	}
	sort.Slice(globals, func(i, j int) bool { return m.tbl.Text(globals[i].Name) < m.tbl.Text(globals[j].Name) })

	return &Sources{
		GlobalVariables:   globals,
		TypeDefinitions:   m.typeDefs,
		ClosureTypes:      m.closureTypes,
		MainFunctionNames: append([]symbol.Symbol(nil), m.src.MainFunctionNames...),
		Functions:         m.functions,
	}, nil
}

type discovered struct {
	name symbol.Symbol
	args []hir.Type
}

func (m *Monomorphizer) specializeFunction(name symbol.Symbol, args []hir.Type) ([]discovered, error) {
	specName := encode(m.tbl, name, args)
	canon := canonicalKey(m.tbl, name, args)
	if prior, ok := m.canonicalOf[specName]; ok && prior != canon {
		return nil, fmt.Errorf("mir: specialization name collision for %s: %q vs %q", m.tbl.Text(specName), prior, canon)
	}
	if m.done[specName] {
		return nil, nil
	}
	m.canonicalOf[specName] = canon
	m.done[specName] = true

	fn, ok := m.functionsByName[name]
	if fn == nil && !ok {
		return nil, fmt.Errorf("mir: unresolved function %s", m.tbl.Text(name))
	}

	s := make(subst, len(fn.TypeParams))
	if len(args) != len(fn.TypeParams) {
		return nil, fmt.Errorf("mir: arity mismatch specializing %s: %d params, %d args", m.tbl.Text(name), len(fn.TypeParams), len(args))
	}
	for i, p := range fn.TypeParams {
		s[p] = args[i]
	}

	var disc []discovered
	params := make([]Parameter, len(fn.Parameters))
	for i, p := range fn.Parameters {
		t, d := m.substituteType(p.Typ, s)
		disc = append(disc, d...)
		params[i] = Parameter{Name: p.Name, Typ: t}
	}
	typ, d := m.substituteFuncType(fn.Typ, s)
	disc = append(disc, d...)

	body, d := m.substituteStmts(fn.Body, s)
	disc = append(disc, d...)
	ret, d := m.substituteExpr(fn.ReturnValue, s)
	disc = append(disc, d...)
	m.collectStrings(fn.Body, fn.ReturnValue)

	m.functions = append(m.functions, Function{
		Name:        specName,
		Parameters:  params,
		Typ:         typ,
		Body:        body,
		ReturnValue: ret,
	})

	return disc, nil
}

func (m *Monomorphizer) specializeType(name symbol.Symbol, args []hir.Type) ([]discovered, error) {
	specName := encode(m.tbl, name, args)
	canon := canonicalKey(m.tbl, name, args)
	if prior, ok := m.canonicalOf[specName]; ok && prior != canon {
		return nil, fmt.Errorf("mir: specialization name collision for %s: %q vs %q", m.tbl.Text(specName), prior, canon)
	}
	if m.done[specName] {
		return nil, nil
	}
	m.canonicalOf[specName] = canon
	m.done[specName] = true

	td, ok := m.typesByName[name]
	if !ok {
		return nil, fmt.Errorf("mir: unresolved type %s", m.tbl.Text(name))
	}
	if len(args) != len(td.TypeParams) {
		return nil, fmt.Errorf("mir: arity mismatch specializing type %s", m.tbl.Text(name))
	}
	s := make(subst, len(td.TypeParams))
	for i, p := range td.TypeParams {
		s[p] = args[i]
	}

	var disc []discovered
	var mappings Mappings
	if td.Mappings.IsStruct() {
		fields := make([]Type, len(td.Mappings.StructFields))
		for i, f := range td.Mappings.StructFields {
			t, d := m.substituteType(f, s)
			disc = append(disc, d...)
			fields[i] = t
		}
		mappings = Mappings{StructFields: fields}
	} else {
		variants := make([]Variant, len(td.Mappings.EnumVariants))
		for i, v := range td.Mappings.EnumVariants {
			nv := Variant{Kind: VariantKind(v.Kind)}
			switch v.Kind {
			case hir.VariantUnboxed:
				t, d := m.substituteType(v.Unboxed, s)
				disc = append(disc, d...)
				nv.Unboxed = t
			case hir.VariantInt31:
				// carries no payload type to substitute
			case hir.VariantBoxed:
				boxed := make([]Type, len(v.Boxed))
				for j, b := range v.Boxed {
					t, d := m.substituteType(b, s)
					disc = append(disc, d...)
					boxed[j] = t
				}
				nv.Boxed = boxed
			}
			variants[i] = nv
		}
		mappings = Mappings{EnumVariants: variants}
	}

	m.typeDefs = append(m.typeDefs, TypeDefinition{Name: specName, Mappings: mappings})
	return disc, nil
}

func (m *Monomorphizer) specializeClosureType(name symbol.Symbol, args []hir.Type) ([]discovered, error) {
	specName := encode(m.tbl, name, args)
	if m.done[specName] {
		return nil, nil
	}
	m.done[specName] = true

	ct, ok := m.closuresByName[name]
	if !ok {
		return nil, fmt.Errorf("mir: unresolved closure type %s", m.tbl.Text(name))
	}
	s := make(subst, len(ct.TypeParams))
	for i, p := range ct.TypeParams {
		if i < len(args) {
			s[p] = args[i]
		}
	}
	ft, disc := m.substituteFuncType(ct.FunctionType, s)
	m.closureTypes = append(m.closureTypes, ClosureTypeDefinition{Name: specName, FunctionType: ft})
	return disc, nil
}

// substituteType rewrites a HIR type through s into a closed MIR type,
// resolving any nominal-with-args reference into a (possibly freshly
// discovered) monomorphized name.
func (m *Monomorphizer) substituteType(t hir.Type, s subst) (Type, []discovered) {
	switch v := t.(type) {
	case hir.PrimInt:
		return Int32{}, nil
	case hir.PrimBool:
		return Int32{}, nil
	case hir.PrimString:
		return Nominal{Name: symbol.TypeString}, nil
	case hir.PrimAny:
		return Nominal{Name: symbol.TypeAny}, nil
	case hir.GenericParam:
		if repl, ok := s[v.Name]; ok {
			return m.substituteType(repl, s)
		}
		// unresolved at this call site: leave as a nominal placeholder,
		// caught as an unresolved-name failure by a later pass if truly
		// unreachable through substitution.
		return Nominal{Name: v.Name}, nil
	case hir.Nominal:
		concreteArgs := make([]hir.Type, len(v.Args))
		for i, a := range v.Args {
			if gp, ok := a.(hir.GenericParam); ok {
				if repl, ok := s[gp.Name]; ok {
					concreteArgs[i] = repl
					continue
				}
			}
			concreteArgs[i] = a
		}
		specName := encode(m.tbl, v.Name, concreteArgs)
		var disc []discovered
		if _, ok := m.typesByName[v.Name]; ok {
			disc = append(disc, discovered{name: v.Name, args: concreteArgs})
		} else if _, ok := m.closuresByName[v.Name]; ok {
			disc = append(disc, discovered{name: v.Name, args: concreteArgs})
		}
		return Nominal{Name: specName}, disc
	case hir.Func:
		ft, disc := m.substituteFuncType(v, s)
		return ft, disc
	default:
		return Nominal{Name: v.(hir.Nominal).Name}, nil
	}
}

func (m *Monomorphizer) substituteFuncType(f hir.Func, s subst) (Func, []discovered) {
	params := make([]Type, len(f.Params))
	var disc []discovered
	for i, p := range f.Params {
		t, d := m.substituteType(p, s)
		params[i] = t
		disc = append(disc, d...)
	}
	res, d := m.substituteType(f.Result, s)
	disc = append(disc, d...)
	return Func{Params: params, Result: res}, disc
}

// resolveDispatch implements the `generics$<ClassVar>$<method>` rewrite:
// looks up the concrete class bound to ClassVar in s and rewrites the
// name to `<ConcreteClass>$<method>`.
func (m *Monomorphizer) resolveDispatch(name symbol.Symbol, s subst) symbol.Symbol {
	text := m.tbl.Text(name)
	if !strings.HasPrefix(text, "generics$") {
		return name
	}
	rest := strings.TrimPrefix(text, "generics$")
	parts := strings.SplitN(rest, "$", 2)
	if len(parts) != 2 {
		return name
	}
	classVar, method := parts[0], parts[1]
	cv, ok := m.tbl.Lookup(classVar)
	if !ok {
		return name
	}
	concrete, ok := s[cv]
	if !ok {
		return name
	}
	var concreteName symbol.Symbol
	switch c := concrete.(type) {
	case hir.Nominal:
		concreteName = c.Name
	case hir.GenericParam:
		concreteName = c.Name
	default:
		return name
	}
	rewritten := m.tbl.Text(concreteName) + "$" + method
	if sym, ok := m.tbl.Lookup(rewritten); ok {
		return sym
	}
	return m.tbl.AllocPermanent(rewritten)
}

func (m *Monomorphizer) collectStrings(body []hir.Stmt, ret hir.Expr) {
	var walkExpr func(hir.Expr)
	walkExpr = func(e hir.Expr) {
		if sr, ok := e.(hir.StringRef); ok {
			m.usedStrings[sr.Name] = true
		}
	}
	var walkStmt func(hir.Stmt)
	walkStmt = func(st hir.Stmt) {
		switch v := st.(type) {
		case hir.Binary:
			walkExpr(v.E1)
			walkExpr(v.E2)
		case hir.Unary:
			walkExpr(v.E)
		case hir.IndexedAccess:
			walkExpr(v.Ptr)
		case hir.Cast:
			walkExpr(v.E)
		case hir.Call:
			walkExpr(v.Callee)
			for _, a := range v.Args {
				walkExpr(a)
			}
		case hir.IfElse:
			walkExpr(v.Cond)
			for _, s2 := range v.S1 {
				walkStmt(s2)
			}
			for _, s2 := range v.S2 {
				walkStmt(s2)
			}
			for _, fa := range v.FinalAssignments {
				walkExpr(fa.E1)
				walkExpr(fa.E2)
			}
		case hir.StructInit:
			for _, e := range v.Exprs {
				walkExpr(e)
			}
		case hir.ClosureInit:
			walkExpr(v.Context)
		case hir.LateInitAssignment:
			walkExpr(v.E)
		case hir.While:
			for _, lv := range v.LoopVariables {
				walkExpr(lv.Init)
				walkExpr(lv.LoopValue)
			}
			for _, s2 := range v.Body {
				walkStmt(s2)
			}
		case hir.Break:
			walkExpr(v.Value)
		}
	}
	for _, st := range body {
		walkStmt(st)
	}
	walkExpr(ret)
}

// encode implements the specialization naming scheme: deterministic,
// stable across runs, and (short of an astronomically unlikely hash
// collision, guarded against in specializeFunction/specializeType above)
// injective over structurally distinct instantiations.
func encode(tbl *symbol.Table, name symbol.Symbol, args []hir.Type) symbol.Symbol {
	if len(args) == 0 {
		return name
	}
	canon := canonicalKey(tbl, name, args)
	sum := blake2b.Sum256([]byte(canon))
	text := tbl.Text(name) + "$" + hex.EncodeToString(sum[:8])
	if sym, ok := tbl.Lookup(text); ok {
		return sym
	}
	return tbl.AllocPermanent(text)
}

func canonicalKey(tbl *symbol.Table, name symbol.Symbol, args []hir.Type) string {
	return tbl.Text(name) + "(" + canonicalTypeVector(tbl, args) + ")"
}

func canonicalTypeVector(tbl *symbol.Table, args []hir.Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = canonicalType(tbl, a)
	}
	return strings.Join(parts, ",")
}

func canonicalType(tbl *symbol.Table, t hir.Type) string {
	switch v := t.(type) {
	case hir.PrimInt:
		return "Int"
	case hir.PrimBool:
		return "Bool"
	case hir.PrimString:
		return "String"
	case hir.PrimAny:
		return "Any"
	case hir.GenericParam:
		return "#" + tbl.Text(v.Name)
	case hir.Nominal:
		return tbl.Text(v.Name) + "<" + canonicalTypeVector(tbl, v.Args) + ">"
	case hir.Func:
		return "(" + canonicalTypeVector(tbl, v.Params) + ")->" + canonicalType(tbl, v.Result)
	default:
		return "?"
	}
}
