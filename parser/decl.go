package parser

import (
	"strconv"

	"github.com/jensenwirth/p4/internal/ptoken"
	"github.com/jensenwirth/p4/symtab"
)

// declareStandardEnv seeds the outermost scope with the five named
// predeclared types and the standard constants/procedures/functions,
// grounded on SPEC_FULL.md §4.2. The original reserves a separate "level 0"
// for these ahead of the program's own level 1; here they simply live in
// the same scope NewTable already pushes (symtab.Table.Level() returns 0
// for it), which the program's own top-level declarations share, so a
// top-level declaration that reuses a standard name is reported as a
// duplicate identifier instead of shadowing it.
func (p *Parser) declareStandardEnv() {
	enterType := func(name string, t *symtab.Type) {
		_ = p.sym.EnterID(&symtab.Ident{Name: name, Class: symtab.TypeID, Type: t})
	}
	enterType("integer", symtab.IntType)
	enterType("real", symtab.RealType)
	enterType("boolean", symtab.BoolType)
	enterType("char", symtab.CharType)
	enterType("text", symtab.TextType)

	enterConst := func(name string, t *symtab.Type, v symtab.ConstValue) {
		_ = p.sym.EnterID(&symtab.Ident{Name: name, Class: symtab.ConstID, Type: t, Const: v})
	}
	enterConst("true", symtab.BoolType, symtab.ConstValue{Bool: true})
	enterConst("false", symtab.BoolType, symtab.ConstValue{Bool: false})
	enterConst("maxint", symtab.IntType, symtab.ConstValue{Int: 1<<31 - 1})

	stdProc := func(name string, key int) {
		_ = p.sym.EnterID(&symtab.Ident{
			Name: name, Class: symtab.ProcID,
			DeclKind: symtab.StandardRoutine, StdKey: key,
		})
	}
	stdFunc := func(name string, key int, result *symtab.Type) {
		_ = p.sym.EnterID(&symtab.Ident{
			Name: name, Class: symtab.FuncID, Type: result,
			DeclKind: symtab.StandardRoutine, StdKey: key,
		})
	}
	// StdKey values are only meaningful to expr.go/stmt.go's own switch on
	// the identifier name for these; they don't index vm.StdProcNames
	// directly since several (write, abs, ord...) compile to different
	// instruction sequences depending on argument type, not a single csp.
	for i, name := range []string{
		"write", "writeln", "read", "readln", "new",
	} {
		stdProc(name, i)
	}
	for i, name := range []string{
		"abs", "sqr", "odd", "ord", "chr", "trunc", "succ", "pred",
		"sin", "cos", "exp", "ln", "sqrt", "arctan",
	} {
		stdFunc(name, i, nil) // result type resolved per call site in expr.go
	}
}

// constDecls parses `const ident = expr ;` entries.
func (p *Parser) constDecls() {
	p.expect(ptoken.CONST)
	for p.at(ptoken.IDENT) {
		name := p.identName()
		p.expect(ptoken.EQ)
		typ, val := p.constExpr()
		if err := p.sym.EnterID(&symtab.Ident{Name: name, Class: symtab.ConstID, Type: typ, Const: val}); err != nil {
			p.errorf(p.tok.Pos, "%s", err)
		}
		p.expect(ptoken.SEMI)
	}
}

// constExpr parses a constant: an optionally-signed number or identifier,
// or a string/char literal, grounded on spec §4.3 "Constants" (sign folded
// at parse time, never emitted as a runtime negation).
func (p *Parser) constExpr() (*symtab.Type, symtab.ConstValue) {
	neg := false
	if p.at(ptoken.PLUS) || p.at(ptoken.MINUS) {
		neg = p.at(ptoken.MINUS)
		p.next()
	}
	switch p.tok.Kind {
	case ptoken.INTCONST:
		v := p.tok.Int
		p.next()
		if neg {
			v = -v
		}
		return symtab.IntType, symtab.ConstValue{Int: v}
	case ptoken.REALCONST:
		v := p.tok.Real
		p.next()
		if neg {
			v = -v
		}
		return symtab.RealType, symtab.ConstValue{Real: v}
	case ptoken.STRINGCONST:
		v := p.tok.Lit
		p.next()
		if len(v) == 1 {
			return symtab.CharType, symtab.ConstValue{Char: rune(v[0])}
		}
		return stringConstType(len(v)), symtab.ConstValue{String: v}
	case ptoken.IDENT:
		name := p.tok.Lit
		p.next()
		id, ok := p.sym.SearchID(name, symtab.ConstID)
		if !ok {
			p.errorf(p.tok.Pos, "undeclared constant %q", name)
			return symtab.IntType, symtab.ConstValue{}
		}
		v := id.Const
		if neg {
			v.Int, v.Real = -v.Int, -v.Real
		}
		return id.Type, v
	default:
		p.errorf(p.tok.Pos, "expected a constant")
		p.next()
		return symtab.IntType, symtab.ConstValue{}
	}
}

// stringConstType builds an ad hoc "packed array of char" descriptor for a
// multi-character string literal constant.
func stringConstType(length int) *symtab.Type {
	return &symtab.Type{
		Form: symtab.Array, Size: length,
		Index: &symtab.Type{Form: symtab.Subrange, Base: symtab.IntType, Min: 0, Max: length - 1},
		Comp:  symtab.CharType,
	}
}

// typeDecls parses one `type` section, resolving `^T` forward references
// at its end per spec §4.2.
func (p *Parser) typeDecls() {
	p.expect(ptoken.TYPE)
	for p.at(ptoken.IDENT) {
		name := p.identName()
		p.expect(ptoken.EQ)
		t := p.typeDenoter()
		if err := p.sym.EnterID(&symtab.Ident{Name: name, Class: symtab.TypeID, Type: t}); err != nil {
			p.errorf(p.tok.Pos, "%s", err)
		}
		p.expect(ptoken.SEMI)
	}
	for _, name := range p.sym.ResolveForwardPointers() {
		p.errorf(p.tok.Pos, "undefined forward-referenced type %q", name)
	}
}

// typeDenoter parses one type expression, grounded on spec §4.3 "Types":
// a fresh descriptor is allocated for every syntactic occurrence except a
// bare reference to one of the six predeclared types or a previously
// declared named type (which share that type's one descriptor).
func (p *Parser) typeDenoter() *symtab.Type {
	switch p.tok.Kind {
	case ptoken.CARET:
		p.next()
		name := p.identName()
		if id, ok := p.sym.SearchID(name, symtab.TypeID); ok {
			return &symtab.Type{Form: symtab.Pointer, Size: 1, Elem: id.Type, ElemFixed: true}
		}
		ptr := &symtab.Type{Form: symtab.Pointer, Size: 1, ElemName: name}
		p.sym.AddForwardPointer(name, ptr)
		return ptr

	case ptoken.ARRAY:
		p.next()
		p.expect(ptoken.LBRACK)
		index := p.subrangeType()
		p.expect(ptoken.RBRACK)
		p.expect(ptoken.OF)
		comp := p.typeDenoter()
		span := index.Max - index.Min + 1
		return &symtab.Type{Form: symtab.Array, Size: span * comp.Size, Index: index, Comp: comp}

	case ptoken.RECORD:
		p.next()
		p.sym.Push(symtab.RecordDefScope)
		var displ int
		for !p.at(ptoken.END) {
			var names []string
			names = append(names, p.identName())
			for p.accept(ptoken.COMMA) {
				names = append(names, p.identName())
			}
			p.expect(ptoken.COLON)
			ft := p.typeDenoter()
			for _, n := range names {
				fld := &symtab.Ident{Name: n, Class: symtab.FieldID, Type: ft, Address: displ}
				_ = p.sym.EnterID(fld)
				displ += ft.Size
			}
			if !p.at(ptoken.END) {
				p.expect(ptoken.SEMI)
			}
		}
		fields := p.sym.Current().Head
		p.sym.Pop()
		p.expect(ptoken.END)
		return &symtab.Type{Form: symtab.Record, Size: displ, Fields: fields}

	case ptoken.SET:
		p.next()
		p.expect(ptoken.OF)
		elem := p.typeDenoter()
		return &symtab.Type{Form: symtab.SetOf, Size: 1, SetElem: elem}

	case ptoken.FILE:
		p.next()
		p.expect(ptoken.OF)
		comp := p.typeDenoter()
		return &symtab.Type{Form: symtab.FileOf, Size: 1, FileComp: comp}

	case ptoken.IDENT:
		name := p.tok.Lit
		p.next()
		if id, ok := p.sym.SearchID(name, symtab.TypeID); ok {
			return id.Type
		}
		p.errorf(p.tok.Pos, "undeclared type %q", name)
		return symtab.IntType

	case ptoken.MINUS, ptoken.PLUS, ptoken.INTCONST:
		return p.subrangeFromCurrent()

	default:
		p.errorf(p.tok.Pos, "expected a type")
		p.next()
		return symtab.IntType
	}
}

// subrangeType parses an array index type: either a named ordinal type or
// an inline `lo..hi` subrange.
func (p *Parser) subrangeType() *symtab.Type {
	if p.at(ptoken.IDENT) {
		name := p.tok.Lit
		if id, ok := p.sym.SearchID(name, symtab.TypeID); ok && symtab.Ordinal(id.Type) {
			if id.Type.Form == symtab.Subrange || id.Type == symtab.CharType {
				p.next()
				return id.Type
			}
		}
	}
	return p.subrangeFromCurrent()
}

// subrangeFromCurrent parses `lo..hi` starting at the current (already
// peeked) constant token.
func (p *Parser) subrangeFromCurrent() *symtab.Type {
	lt, lo := p.constExpr()
	p.expect(ptoken.DOTDOT)
	ht, hi := p.constExpr()
	if !symtab.Ordinal(lt) || !symtab.Ordinal(ht) {
		p.errorf(p.tok.Pos, "subrange bounds must be ordinal")
	} else if lo.Int > hi.Int {
		p.errorf(p.tok.Pos, "subrange lower bound exceeds upper bound")
	}
	return &symtab.Type{Form: symtab.Subrange, Base: symtab.IntType, Min: int(lo.Int), Max: int(hi.Int)}
}

// varDecls parses `var ident{, ident} : type ;` entries, allocating each
// one a displacement in the enclosing routine's frame.
func (p *Parser) varDecls() {
	p.expect(ptoken.VAR)
	for p.at(ptoken.IDENT) {
		var names []string
		names = append(names, p.identName())
		for p.accept(ptoken.COMMA) {
			names = append(names, p.identName())
		}
		p.expect(ptoken.COLON)
		t := p.typeDenoter()
		for _, n := range names {
			displ := p.allocLocal(t.Size)
			id := &symtab.Ident{
				Name: n, Class: symtab.VarID, Type: t, VarKind: symtab.ActualVar,
				Level: p.sym.Level(), Address: displ,
			}
			if err := p.sym.EnterID(id); err != nil {
				p.errorf(p.tok.Pos, "%s", err)
			}
		}
		p.expect(ptoken.SEMI)
	}
}

// routineDecl parses a procedure or function declaration (including a
// `forward;` body), per spec §4.3 "Parameter lists".
func (p *Parser) routineDecl() {
	isFunc := p.at(ptoken.FUNCTION)
	p.next()
	name := p.identName()

	declLevel := p.sym.Level()
	existing, hadForward := p.sym.SearchSection(p.sym.Current().Head, name), false
	var id *symtab.Ident
	if existing != nil && existing.Forward {
		id = existing
		hadForward = true
	} else {
		class := symtab.ProcID
		if isFunc {
			class = symtab.FuncID
		}
		id = &symtab.Ident{Name: name, Class: class, ProcLevel: declLevel}
		if err := p.sym.EnterID(id); err != nil {
			p.errorf(p.tok.Pos, "%s", err)
		}
	}

	p.sym.Push(symtab.BlockScope)
	savedLocals := p.locals
	p.locals = 0

	params := p.paramList(hadForward, id)
	if isFunc {
		p.expect(ptoken.COLON)
		rt := p.typeDenoter()
		if !hadForward {
			id.Type = rt
		}
	}
	p.expect(ptoken.SEMI)

	if !hadForward {
		id.Params = params
		id.EntryLabel = labelName(p.em.Label())
	}

	if p.accept(ptoken.FORWARD) {
		p.expect(ptoken.SEMI)
		id.Forward = true
		p.sym.Pop()
		p.locals = savedLocals
		return
	}
	id.Forward = false

	p.declarations()

	entryLabel := labelNum(id.EntryLabel)
	p.em.Define(entryLabel)
	frameLabel := p.em.Label()
	p.em.Ent(frameLabel)
	p.compoundStatement()

	resultLetter := byte('p')
	if isFunc {
		resultLetter = resultWidthLetter(id.Type)
	}
	p.em.Ret(resultLetter)
	p.em.Equate(frameLabel, headerCells+p.locals)

	p.sym.Pop()
	p.locals = savedLocals
	p.expect(ptoken.SEMI)
}

func labelName(n int) string   { return "l" + strconv.Itoa(n) }
func labelNum(s string) int    { n, _ := strconv.Atoi(s[1:]); return n }

// resultWidthLetter picks the ret mnemonic's result-width letter for a
// function's result type, matching assembler.retWidths.
func resultWidthLetter(t *symtab.Type) byte {
	switch {
	case t == symtab.RealType:
		return 'r'
	case t == symtab.CharType:
		return 'c'
	case t == symtab.BoolType:
		return 'b'
	case t != nil && t.Form == symtab.Pointer:
		return 'a'
	default:
		return 'i'
	}
}

// paramList parses a routine's formal parameter list, entering each
// parameter into the new (already-pushed) scope at displacements starting
// right after the activation header, per spec §4.3: `var` parameters pass
// by reference (one address cell regardless of type); plain parameters of
// a compound type are copied in by the caller and so still occupy their
// full Size at the callee (see expr.go's call-site argument passing).
func (p *Parser) paramList(reuseExisting bool, routine *symtab.Ident) []*symtab.Ident {
	var params []*symtab.Ident
	if !p.accept(ptoken.LPAREN) {
		return params
	}
	for !p.at(ptoken.RPAREN) {
		byRef := p.accept(ptoken.VAR)
		var names []string
		names = append(names, p.identName())
		for p.accept(ptoken.COMMA) {
			names = append(names, p.identName())
		}
		p.expect(ptoken.COLON)
		t := p.paramType()
		for _, n := range names {
			size := t.Size
			kind := symtab.ActualVar
			if byRef {
				size = 1
				kind = symtab.FormalVar
			}
			displ := p.allocLocal(size)
			pid := &symtab.Ident{
				Name: n, Class: symtab.VarID, Type: t, VarKind: kind,
				Level: p.sym.Level(), Address: displ,
			}
			if err := p.sym.EnterID(pid); err != nil {
				p.errorf(p.tok.Pos, "%s", err)
			}
			params = append(params, pid)
		}
		if !p.at(ptoken.RPAREN) {
			p.expect(ptoken.SEMI)
		}
	}
	p.expect(ptoken.RPAREN)
	return params
}

// paramType parses a parameter's type: a named type only (Pascal forbids
// an inline structured type in a parameter list).
func (p *Parser) paramType() *symtab.Type {
	name := p.identName()
	if id, ok := p.sym.SearchID(name, symtab.TypeID); ok {
		return id.Type
	}
	p.errorf(p.tok.Pos, "undeclared type %q", name)
	return symtab.IntType
}
