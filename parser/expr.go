package parser

import (
	"github.com/jensenwirth/p4/internal/ptoken"
	"github.com/jensenwirth/p4/symtab"
)

// place names a storage location still "unloaded": either a direct frame
// cell (level/displ, the common case — a plain variable or value
// parameter) or an indirect one whose address already sits on the operand
// stack (the result of indexing, field selection, or pointer dereference).
// This mirrors the original's "access" descriptor, collapsed to the two
// shapes this emitter actually needs.
type place struct {
	typ    *symtab.Type
	direct bool
	level  int
	displ  int
}

// loadPlace pushes the value held at pl.
func (p *Parser) loadPlace(pl place) {
	if pl.direct {
		p.em.Lod(p.sym.Level()-pl.level, pl.displ)
		return
	}
	p.em.Ind(0)
}

// storePlace pops the top of stack into pl. The address-yielding forms must
// be addressed (their address pushed) before the value is computed; callers
// that need that ordering use addressOf directly instead of this helper.
func (p *Parser) storePlace(pl place) {
	if pl.direct {
		p.em.Str(p.sym.Level()-pl.level, pl.displ)
		return
	}
	p.em.Sto()
}

// addressOf pushes the address of pl, for use as the base of a selector or
// as the argument to a var parameter.
func (p *Parser) addressOf(pl place) {
	if pl.direct {
		p.em.Lda(p.sym.Level()-pl.level, pl.displ)
		return
	}
	// already addressed: an indirect place's address is already on the
	// stack (selectors always leave it there instead of loading through).
}

// variable parses a variable-access (the left-hand side of an assignment,
// a procedure-call actual parameter, or a factor), applying any chain of
// []index, .field, ^ selectors, and returns the resulting place together
// with whether it is addressed (stack holds an address) or direct.
func (p *Parser) variable() (place, bool) {
	name := p.identName()
	id, scope, ok := p.sym.SearchIDScope(name, symtab.VarID|symtab.FieldID)
	if !ok {
		p.errorf(p.tok.Pos, "undeclared variable %q", name)
		id = &symtab.Ident{Name: name, Type: symtab.IntType, Level: p.sym.Level()}
	}

	var pl place
	addressed := false
	switch {
	case ok && id.Class == symtab.FieldID && scope != nil &&
		(scope.Kind == symtab.WithVarScope || scope.Kind == symtab.WithConstScope):
		// an unqualified field reached through an enclosing with-statement:
		// recover the with-scope's base access and apply the field's own
		// offset on top of it.
		if scope.Indirect {
			p.em.Lod(p.sym.Level()-scope.Level, scope.Displ)
			addressed = true
			if id.Address != 0 {
				p.em.Inc(id.Address)
			}
			pl = place{typ: id.Type}
		} else {
			pl = place{typ: id.Type, direct: true, level: scope.Level, displ: scope.Displ + id.Address}
		}

	case id.VarKind == symtab.FormalVar:
		// a var parameter's own cell holds the address of the actual
		// argument; treat it as already-addressed once loaded.
		p.em.Lod(p.sym.Level()-id.Level, id.Address)
		addressed = true
		pl = place{typ: id.Type}

	default:
		pl = place{typ: id.Type, direct: true, level: id.Level, displ: id.Address}
	}

	for {
		switch p.tok.Kind {
		case ptoken.LBRACK:
			p.next()
			if !addressed {
				p.addressOf(pl)
				addressed = true
			}
			for {
				elem := pl.typ.Comp
				idx := pl.typ.Index
				p.expression()
				if idx != nil && idx.Min != 0 {
					p.em.LdcInt(int64(idx.Min))
					p.em.Sbi()
				}
				p.em.Ixa(elemSize(elem))
				pl = place{typ: elem}
				if !p.accept(ptoken.COMMA) {
					break
				}
			}
			p.expect(ptoken.RBRACK)

		case ptoken.DOT:
			p.next()
			fname := p.identName()
			if !addressed {
				p.addressOf(pl)
				addressed = true
			}
			fld := symtab.Find(pl.typ.Fields, fname)
			if fld == nil {
				p.errorf(p.tok.Pos, "undeclared field %q", fname)
				continue
			}
			if fld.Address != 0 {
				p.em.Inc(fld.Address)
			}
			pl = place{typ: fld.Type}

		case ptoken.CARET:
			p.next()
			if !addressed {
				p.addressOf(pl)
				addressed = true
			}
			p.em.Ind(0)
			pl = place{typ: pl.typ.Elem}

		default:
			return pl, addressed
		}
	}
}

func elemSize(t *symtab.Type) int {
	if t == nil {
		return 1
	}
	return t.Size
}

// expression parses a full Pascal expression (relational <= additive <=
// multiplicative <= unary <= factor, per spec §4.3's grammar) and leaves
// its value on the operand stack.
func (p *Parser) expression() *symtab.Type {
	lt := p.simpleExpr()
	switch p.tok.Kind {
	case ptoken.EQ, ptoken.NEQ, ptoken.LT, ptoken.LE, ptoken.GT, ptoken.GE, ptoken.IN:
		op := p.tok.Kind
		p.next()
		rt := p.simpleExpr()
		p.emitRelational(op, lt, rt)
		return symtab.BoolType
	}
	return lt
}

func (p *Parser) emitRelational(op ptoken.Token, lt, rt *symtab.Type) {
	if op == ptoken.IN {
		p.em.Inn()
		return
	}
	letter := compareLetter(lt, rt)
	switch op {
	case ptoken.EQ:
		p.em.Compare("equ", letter, cellsOf(lt))
	case ptoken.NEQ:
		p.em.Compare("neq", letter, cellsOf(lt))
	case ptoken.LT:
		p.em.Compare("les", letter, cellsOf(lt))
	case ptoken.LE:
		p.em.Compare("leq", letter, cellsOf(lt))
	case ptoken.GT:
		p.em.Compare("grt", letter, cellsOf(lt))
	case ptoken.GE:
		p.em.Compare("geq", letter, cellsOf(lt))
	}
}

func cellsOf(t *symtab.Type) int {
	if t == nil {
		return 1
	}
	return t.Size
}

func compareLetter(lt, rt *symtab.Type) byte {
	switch {
	case lt == symtab.RealType || rt == symtab.RealType:
		return letterReal
	case lt == symtab.BoolType:
		return letterBool
	case lt == symtab.CharType:
		return letterChar
	case lt != nil && lt.Form == symtab.SetOf:
		return letterSet
	case lt != nil && (lt.Form == symtab.Record || (lt.Form == symtab.Array)):
		return letterMulti
	default:
		return letterInt
	}
}

// simpleExpr parses the additive level, including set-union/difference and
// the `or` operator, coercing int/real mixes with flt/flo per spec §9.
func (p *Parser) simpleExpr() *symtab.Type {
	neg := false
	if p.at(ptoken.PLUS) || p.at(ptoken.MINUS) {
		neg = p.at(ptoken.MINUS)
		p.next()
	}
	t := p.term()
	if neg {
		if t == symtab.RealType {
			p.em.Ngr()
		} else {
			p.em.Ngi()
		}
	}
	for p.at(ptoken.PLUS) || p.at(ptoken.MINUS) || p.at(ptoken.OR) {
		op := p.tok.Kind
		p.next()
		rt := p.term()
		t, rt = p.coerce(t, rt)
		switch op {
		case ptoken.PLUS:
			if t.Form == symtab.SetOf {
				p.em.Uni()
			} else if t == symtab.RealType {
				p.em.Adr()
			} else {
				p.em.Adi()
			}
		case ptoken.MINUS:
			if t.Form == symtab.SetOf {
				p.em.Dif()
			} else if t == symtab.RealType {
				p.em.Sbr()
			} else {
				p.em.Sbi()
			}
		case ptoken.OR:
			p.em.Ior()
		}
		_ = rt
	}
	return t
}

// term parses the multiplicative level: *, /, div, mod, and, set
// intersection.
func (p *Parser) term() *symtab.Type {
	t := p.factor()
	for p.at(ptoken.STAR) || p.at(ptoken.SLASH) || p.at(ptoken.DIV) || p.at(ptoken.MOD) || p.at(ptoken.AND) {
		op := p.tok.Kind
		p.next()
		rt := p.factor()
		switch op {
		case ptoken.SLASH:
			if t != symtab.RealType {
				p.em.Flo()
			}
			if rt != symtab.RealType {
				p.em.Flt()
			}
			p.em.Dvr()
			t = symtab.RealType
		case ptoken.DIV:
			p.em.Dvi()
		case ptoken.MOD:
			p.em.Mod()
		case ptoken.AND:
			p.em.And()
		case ptoken.STAR:
			t, rt = p.coerce(t, rt)
			if t.Form == symtab.SetOf {
				p.em.Int()
			} else if t == symtab.RealType {
				p.em.Mpr()
			} else {
				p.em.Mpi()
			}
		}
		_ = rt
	}
	return t
}

// coerce inserts a flt/flo conversion when mixing int and real operands so
// both stack cells end up the same width, returning the common result type.
func (p *Parser) coerce(lt, rt *symtab.Type) (*symtab.Type, *symtab.Type) {
	if lt == symtab.RealType && rt != symtab.RealType {
		p.em.Flt()
		return lt, lt
	}
	if rt == symtab.RealType && lt != symtab.RealType {
		p.em.Flo()
		return rt, rt
	}
	return lt, rt
}

// factor parses a unary `not`, a parenthesised expression, a literal, a set
// constructor, a variable access, or a function call.
func (p *Parser) factor() *symtab.Type {
	switch p.tok.Kind {
	case ptoken.NOT:
		p.next()
		p.factor()
		p.em.Not()
		return symtab.BoolType

	case ptoken.LPAREN:
		p.next()
		t := p.expression()
		p.expect(ptoken.RPAREN)
		return t

	case ptoken.INTCONST:
		v := p.tok.Int
		p.next()
		p.em.LdcInt(v)
		return symtab.IntType

	case ptoken.REALCONST:
		v := p.tok.Real
		p.next()
		p.em.LdcReal(v)
		return symtab.RealType

	case ptoken.STRINGCONST:
		v := p.tok.Lit
		p.next()
		if len(v) == 1 {
			p.em.LdcChar(v[0])
			return symtab.CharType
		}
		p.em.Lca(v)
		return stringConstType(len(v))

	case ptoken.LBRACK:
		return p.setConstructor()

	case ptoken.IDENT:
		name := p.tok.Lit
		if id, ok := p.sym.SearchID(name, symtab.ConstID); ok {
			p.next()
			return p.emitConst(id)
		}
		if id, ok := p.sym.SearchID(name, symtab.FuncID); ok {
			p.next()
			if id.DeclKind == symtab.StandardRoutine {
				return p.standardCall(id)
			}
			return p.userCall(id)
		}
		pl, _ := p.variable()
		p.loadPlace(pl)
		return pl.typ

	default:
		p.errorf(p.tok.Pos, "expected an expression")
		p.next()
		return symtab.IntType
	}
}

func (p *Parser) emitConst(id *symtab.Ident) *symtab.Type {
	switch id.Type {
	case symtab.RealType:
		p.em.LdcReal(id.Const.Real)
	case symtab.BoolType:
		p.em.LdcBool(id.Const.Bool)
	case symtab.CharType:
		p.em.LdcChar(byte(id.Const.Char))
	default:
		if id.Type != nil && id.Type.Form == symtab.Array {
			p.em.Lca(id.Const.String)
		} else {
			p.em.LdcInt(id.Const.Int)
		}
	}
	return id.Type
}

// setConstructor parses `[ e1, e2..e3, ... ]`. Elements that are all
// constants fold into a single pooled literal (Emitter.LdcSet); any
// non-constant element falls back to per-element Sgs+Uni, per the
// constant-bounds-only range restriction documented in DESIGN.md.
func (p *Parser) setConstructor() *symtab.Type {
	p.next() // consume '['
	setType := &symtab.Type{Form: symtab.SetOf, Size: 1, SetElem: symtab.IntType}
	if p.accept(ptoken.RBRACK) {
		p.em.LdcSet(nil)
		return setType
	}

	var pool []int
	allConst := true
	first := true
	for {
		startPos := p.tok.Pos
		_ = startPos
		if tryVal, ok := p.tryConstOrdinal(); ok {
			lo := tryVal
			hi := lo
			if p.accept(ptoken.DOTDOT) {
				if hiVal, ok := p.tryConstOrdinal(); ok {
					hi = hiVal
				} else {
					allConst = false
				}
			}
			for v := lo; v <= hi; v++ {
				pool = append(pool, v)
			}
		} else {
			allConst = false
			p.expression()
			if p.accept(ptoken.DOTDOT) {
				p.expression() // constant-bounds-only: non-constant ranges unsupported
			}
			if first {
				p.em.Sgs()
			} else {
				p.em.Sgs()
				p.em.Uni()
			}
			first = false
		}
		if !p.accept(ptoken.COMMA) {
			break
		}
	}
	p.expect(ptoken.RBRACK)

	if allConst || len(pool) > 0 {
		p.em.LdcSet(pool)
		if !first {
			p.em.Uni()
		}
	}
	return setType
}

// tryConstOrdinal peeks whether the current position is a constant integer
// or char literal usable in a set range without consuming on failure; since
// this parser has single-token lookahead, non-constant expressions are
// instead detected structurally by the caller (identifiers that resolve to
// ConstID are still folded; anything else falls through to expression()).
func (p *Parser) tryConstOrdinal() (int, bool) {
	switch p.tok.Kind {
	case ptoken.INTCONST:
		v := int(p.tok.Int)
		p.next()
		return v, true
	case ptoken.STRINGCONST:
		if len(p.tok.Lit) == 1 {
			v := int(p.tok.Lit[0])
			p.next()
			return v, true
		}
	case ptoken.IDENT:
		if id, ok := p.sym.SearchID(p.tok.Lit, symtab.ConstID); ok && id.Type != symtab.RealType {
			p.next()
			return int(id.Const.Int), true
		}
	}
	return 0, false
}

// standardCall dispatches a standard-function call (abs, sqr, odd, ord,
// chr, trunc, succ, pred, and the real transcendentals), grounded on
// vm/csp.go's instruction-level (not csp-level) handling: all but the
// transcendentals are expression operators compiled inline; sin, cos, exp,
// ln, sqrt and arctan call the csp entries sin, cos, exp, log, sqt and atn.
func (p *Parser) standardCall(id *symtab.Ident) *symtab.Type {
	p.expect(ptoken.LPAREN)
	argType := p.expression()
	p.expect(ptoken.RPAREN)

	switch id.Name {
	case "abs":
		if argType == symtab.RealType {
			p.em.Abr()
			return symtab.RealType
		}
		p.em.Abi()
		return symtab.IntType
	case "sqr":
		if argType == symtab.RealType {
			p.em.Sqr()
			return symtab.RealType
		}
		p.em.Sqi()
		return symtab.IntType
	case "odd":
		p.em.Odd()
		return symtab.BoolType
	case "ord", "chr":
		// pure compile-time type-tag change: build.go never emits ord/chr.
		if id.Name == "chr" {
			return symtab.CharType
		}
		return symtab.IntType
	case "trunc":
		p.em.Trc()
		return symtab.IntType
	case "succ":
		p.em.LdcInt(1)
		p.em.Adi()
		return argType
	case "pred":
		p.em.LdcInt(1)
		p.em.Sbi()
		return argType
	case "sin", "cos", "exp", "ln", "sqrt", "arctan":
		if argType != symtab.RealType {
			p.em.Flt()
		}
		cspName := id.Name
		switch id.Name {
		case "ln":
			cspName = "log"
		case "sqrt":
			cspName = "sqt"
		case "arctan":
			cspName = "atn"
		}
		p.em.Csp(cspName)
		return symtab.RealType
	}
	return symtab.IntType
}

// userCall compiles a call to a user-declared function, applying the
// mst/cup calling convention established in program()/routineDecl, and
// leaves the function's result (one cell at the callee's own MP+0) on the
// stack for the enclosing expression.
func (p *Parser) userCall(id *symtab.Ident) *symtab.Type {
	p.em.Mst(p.sym.Level() - id.ProcLevel)
	cells := p.callArgs(id)
	p.em.Cup(cells, labelNum(id.EntryLabel))
	return id.Type
}

// callArgs pushes the actual arguments of a call to id (already past the
// mst, if any), returning the total cell count pushed so the caller can
// build the cup instruction's P operand.
func (p *Parser) callArgs(id *symtab.Ident) int {
	cells := 0
	if !p.accept(ptoken.LPAREN) {
		return cells
	}
	for i := 0; !p.at(ptoken.RPAREN); i++ {
		var param *symtab.Ident
		if i < len(id.Params) {
			param = id.Params[i]
		}
		if param != nil && param.VarKind == symtab.FormalVar {
			pl, addressed := p.variable()
			if !addressed {
				p.addressOf(pl)
			}
			cells++
		} else if param != nil && param.Type != nil && param.Type.Size > 1 {
			pl, _ := p.variable()
			for c := 0; c < param.Type.Size; c++ {
				p.em.Lod(p.sym.Level()-pl.level, pl.displ+c)
			}
			cells += param.Type.Size
		} else {
			p.expression()
			cells++
		}
		if !p.at(ptoken.RPAREN) {
			p.expect(ptoken.COMMA)
		}
	}
	p.expect(ptoken.RPAREN)
	return cells
}
