package parser

import (
	"golang.org/x/exp/slices"

	"github.com/jensenwirth/p4/internal/ptoken"
	"github.com/jensenwirth/p4/symtab"
)

// compoundStatement parses `begin stmt {; stmt} end`.
func (p *Parser) compoundStatement() {
	p.expect(ptoken.BEGIN)
	p.statement()
	for p.accept(ptoken.SEMI) {
		p.statement()
	}
	p.expect(ptoken.END)
}

// statement parses one statement, dispatching on its leading token per the
// grammar in spec §4.3. An empty statement (e.g. the one before `end`) is
// legal and emits nothing.
func (p *Parser) statement() {
	switch p.tok.Kind {
	case ptoken.BEGIN:
		p.compoundStatement()
	case ptoken.IF:
		p.ifStatement()
	case ptoken.WHILE:
		p.whileStatement()
	case ptoken.REPEAT:
		p.repeatStatement()
	case ptoken.FOR:
		p.forStatement()
	case ptoken.CASE:
		p.caseStatement()
	case ptoken.WITH:
		p.withStatement()
	case ptoken.IDENT:
		p.assignOrCall()
	default:
		// empty statement
	}
}

// assignOrCall disambiguates `variable := expr` from a procedure-call
// statement by resolving the leading identifier's class first, matching
// the original's lookahead-free approach (the symbol table, not the token
// stream, carries the information needed to decide).
func (p *Parser) assignOrCall() {
	name := p.tok.Lit
	if id, ok := p.sym.SearchID(name, symtab.ProcID); ok {
		p.next()
		if id.DeclKind == symtab.StandardRoutine {
			p.standardProcCall(id)
		} else {
			p.userProcCall(id)
		}
		return
	}
	if id, ok := p.sym.SearchID(name, symtab.VarID|symtab.FieldID|symtab.FuncID); ok &&
		id.Class == symtab.FuncID && id.DeclKind == symtab.DeclaredRoutine {
		// assigning to the enclosing function's name stores its result in
		// the function frame's MP+0 cell.
		p.next()
		p.expect(ptoken.ASSIGN)
		if rt := p.expression(); id.Type == symtab.RealType && rt != symtab.RealType {
			p.em.Flt()
		}
		p.em.Str(p.sym.Level()-(id.ProcLevel+1), 0)
		return
	}
	pl, addressed := p.variable()
	p.expect(ptoken.ASSIGN)
	if addressed {
		rt := p.expression()
		_ = rt
		p.em.Sto()
		return
	}
	rt := p.expression()
	if pl.typ == symtab.RealType && rt != symtab.RealType {
		p.em.Flt()
	}
	p.storePlace(pl)
}

// userProcCall compiles a call to a user-declared procedure; function
// calls used as statements are not legal Pascal, so this path only handles
// ProcID.
func (p *Parser) userProcCall(id *symtab.Ident) {
	p.em.Mst(p.sym.Level() - id.ProcLevel)
	cells := p.callArgs(id)
	p.em.Cup(cells, labelNum(id.EntryLabel))
}

// standardProcCall compiles write/writeln/read/readln/new. Argument
// marshalling follows vm/csp.go's exact stack conventions (addr, width,
// value for wri/wrr/wrc; addr, width, length, src for wrs).
func (p *Parser) standardProcCall(id *symtab.Ident) {
	switch id.Name {
	case "write", "writeln":
		p.writeCall(id.Name == "writeln")
	case "read", "readln":
		p.readCall(id.Name == "readln")
	case "new":
		p.newCall()
	}
}

func (p *Parser) writeCall(ln bool) {
	if !p.accept(ptoken.LPAREN) {
		if ln {
			p.em.LdcInt(outputAddr)
			p.em.Csp("wln")
		}
		return
	}
	for {
		if p.at(ptoken.IDENT) {
			if id, ok := p.sym.SearchID(p.tok.Lit, symtab.VarID|symtab.FieldID); ok &&
				id.Type != nil && id.Type.Form == symtab.Array {
				// a packed-array-of-char variable: push its address (not its
				// value — loadPlace only reads one cell) then length, width,
				// and the file address, matching vm/csp.go's writeStr pop
				// order (addr, width, length, src).
				pl, addressed := p.variable()
				if !addressed {
					p.addressOf(pl)
				}
				length := pl.typ.Size
				p.em.LdcInt(int64(length))
				if p.accept(ptoken.COLON) {
					p.expression()
				} else {
					p.em.LdcInt(int64(length))
				}
				p.em.LdcInt(outputAddr)
				p.em.Csp("wrs")
				if !p.accept(ptoken.COMMA) {
					break
				}
				continue
			}
		}

		t := p.expression()
		width := defaultWidth(t)
		if p.accept(ptoken.COLON) {
			p.expression() // explicit width overrides the default
		} else {
			p.em.LdcInt(int64(width))
		}
		p.em.LdcInt(outputAddr)
		switch {
		case t == symtab.RealType:
			p.em.Csp("wrr")
		case t == symtab.CharType:
			p.em.Csp("wrc")
		default:
			p.em.Csp("wri")
		}
		if !p.accept(ptoken.COMMA) {
			break
		}
	}
	p.expect(ptoken.RPAREN)
	if ln {
		p.em.LdcInt(outputAddr)
		p.em.Csp("wln")
	}
}

func defaultWidth(t *symtab.Type) int {
	switch t {
	case symtab.RealType:
		return 14
	case symtab.BoolType:
		return 6
	default:
		return 10
	}
}

func (p *Parser) readCall(ln bool) {
	if p.accept(ptoken.LPAREN) {
		for {
			pl, addressed := p.variable()
			if !addressed {
				p.addressOf(pl)
			}
			p.em.LdcInt(inputAddr)
			switch pl.typ {
			case symtab.RealType:
				p.em.Csp("rdr")
			case symtab.CharType:
				p.em.Csp("rdc")
			default:
				p.em.Csp("rdi")
			}
			if !p.accept(ptoken.COMMA) {
				break
			}
		}
		p.expect(ptoken.RPAREN)
	}
	if ln {
		p.em.LdcInt(inputAddr)
		p.em.Csp("rln")
	}
}

func (p *Parser) newCall() {
	p.expect(ptoken.LPAREN)
	pl, addressed := p.variable()
	if !addressed {
		p.addressOf(pl)
	}
	size := 1
	if pl.typ != nil && pl.typ.Form == symtab.Pointer && pl.typ.Elem != nil {
		size = pl.typ.Elem.Size
	}
	p.em.LdcInt(int64(size))
	p.em.Csp("new")
	p.expect(ptoken.RPAREN)
}

// Reserved file-identity addresses, matching internal/pstore.Store's
// constants; standard procedures take these as ordinary literal operands,
// never as a global variable (see DESIGN.md).
const (
	inputAddr  = 5
	outputAddr = 6
)

func (p *Parser) ifStatement() {
	p.expect(ptoken.IF)
	p.expression()
	p.expect(ptoken.THEN)
	elseLabel := p.em.Label()
	p.em.Fjp(elseLabel)
	p.statement()
	if p.accept(ptoken.ELSE) {
		endLabel := p.em.Label()
		p.em.Ujp(endLabel)
		p.em.Define(elseLabel)
		p.statement()
		p.em.Define(endLabel)
	} else {
		p.em.Define(elseLabel)
	}
}

func (p *Parser) whileStatement() {
	p.expect(ptoken.WHILE)
	top := p.em.Label()
	p.em.Define(top)
	p.expression()
	p.expect(ptoken.DO)
	exit := p.em.Label()
	p.em.Fjp(exit)
	p.statement()
	p.em.Ujp(top)
	p.em.Define(exit)
}

func (p *Parser) repeatStatement() {
	p.expect(ptoken.REPEAT)
	top := p.em.Label()
	p.em.Define(top)
	p.statement()
	for p.accept(ptoken.SEMI) {
		p.statement()
	}
	p.expect(ptoken.UNTIL)
	p.expression()
	p.em.Fjp(top)
}

// forStatement parses `for v := e1 to|downto e2 do stmt`, expanding it into
// the same while-shaped comparison/increment sequence the original p4
// compiler generates (there is no dedicated loop opcode).
func (p *Parser) forStatement() {
	p.expect(ptoken.FOR)
	name := p.identName()
	id, ok := p.sym.SearchID(name, symtab.VarID)
	if !ok {
		p.errorf(p.tok.Pos, "undeclared variable %q", name)
		id = &symtab.Ident{Type: symtab.IntType, Level: p.sym.Level()}
	}
	pl := place{typ: id.Type, direct: true, level: id.Level, displ: id.Address}

	p.expect(ptoken.ASSIGN)
	p.expression()
	p.storePlace(pl)

	down := false
	if p.accept(ptoken.TO) {
	} else {
		p.expect(ptoken.DOWNTO)
		down = true
	}
	p.expression()
	boundDispl := p.allocLocal(1)
	p.em.Str(0, boundDispl)

	top := p.em.Label()
	p.em.Define(top)
	p.loadPlace(pl)
	p.em.Lod(0, boundDispl)
	if down {
		p.em.Compare("geq", letterInt, 0)
	} else {
		p.em.Compare("leq", letterInt, 0)
	}
	exit := p.em.Label()
	p.em.Fjp(exit)

	p.expect(ptoken.DO)
	p.statement()

	p.loadPlace(pl)
	p.em.LdcInt(1)
	if down {
		p.em.Sbi()
	} else {
		p.em.Adi()
	}
	p.storePlace(pl)
	p.em.Ujp(top)
	p.em.Define(exit)
}

// caseLabel is one `value: statement` arm collected before emission so the
// set can be sorted once, per review requirement: case labels are sorted
// with golang.org/x/exp/slices.SortFunc (mirroring how the original's
// one-pass compiler still needs every label's jump target known before it
// emits the dispatch table, here solved by buffering arms as data instead
// of two-pass scanning the token stream).
type caseLabel struct {
	value int
	label int
}

// caseStatement parses `case e of v1: s1; v2: s2; ... end`, grounded on
// original_source's case-jump-table generation: the selector is range-
// checked, the constants sorted, and each missing value in the resulting
// contiguous range given a ujc slot that traps when reached (xjp's job in
// internal/pcode, matching the style of assembler/build.go's own label
// resolution). A jump table is built however sparse the labels are.
func (p *Parser) caseStatement() {
	p.expect(ptoken.CASE)
	p.expression()
	p.expect(ptoken.OF)

	var labels []caseLabel
	var bodyText []string
	endLabel := p.em.Label()

	for {
		var values []int
		values = append(values, p.caseConst())
		for p.accept(ptoken.COMMA) {
			values = append(values, p.caseConst())
		}
		p.expect(ptoken.COLON)
		armLabel := p.em.Label()
		for _, v := range values {
			labels = append(labels, caseLabel{value: v, label: armLabel})
		}

		// The arm's body is parsed and emitted now (so symbol-table state
		// stays one-pass correct) but the resulting text is captured and
		// replayed after the dispatch table, since the table's jump
		// targets must precede the code they target.
		mark := p.em.Mark()
		p.em.Define(armLabel)
		p.statement()
		p.em.Ujp(endLabel)
		bodyText = append(bodyText, p.em.Extract(mark))

		if !p.accept(ptoken.SEMI) || p.at(ptoken.END) {
			break
		}
	}
	p.expect(ptoken.END)

	slices.SortFunc(labels, func(a, b caseLabel) int { return a.value - b.value })

	// Xjp adds the (already zero-based) selector value to the PC of its
	// label operand, so the dispatch table below must start exactly at
	// that label and hold one ujp per value in [lo, hi], in order;
	// out-of-range values are already rejected by chk before the value is
	// rebased, so gaps inside [lo, hi] are the only gaps the table itself
	// has to cover (an unhandled covered value reaches a ujc, which traps).
	if len(labels) > 0 {
		lo, hi := labels[0].value, labels[len(labels)-1].value
		p.em.Chk(lo, hi)
		p.em.LdcInt(int64(lo))
		p.em.Sbi()
		tableLabel := p.em.Label()
		p.em.Xjp(tableLabel)
		p.em.Define(tableLabel)
		filled := lo
		for _, l := range labels {
			for ; filled < l.value; filled++ {
				p.em.raw("ujc")
			}
			p.em.Ujp(l.label)
			filled++
		}
	}
	for _, text := range bodyText {
		p.em.Raw(text)
	}
	p.em.Define(endLabel)
}

func (p *Parser) caseConst() int {
	v, ok := p.tryConstOrdinal()
	if !ok {
		p.errorf(p.tok.Pos, "expected a constant case label")
		return 0
	}
	return v
}

// withStatement parses `with record-var do stmt`, pushing a with-scope so
// unqualified field names resolve against the record's fields for the
// duration of stmt, per spec §4.3.
func (p *Parser) withStatement() {
	p.expect(ptoken.WITH)
	pl, addressed := p.variable()
	if !addressed {
		p.addressOf(pl)
	}
	displ := p.allocLocal(1)
	p.em.Str(0, displ)
	p.sym.PushWith(symtab.WithVarScope, true, p.sym.Level(), displ)
	if pl.typ != nil {
		for _, f := range inorderFields(pl.typ.Fields) {
			_ = p.sym.EnterID(&symtab.Ident{
				Name: f.Name, Class: symtab.FieldID, Type: f.Type, Address: f.Address,
			})
		}
	}
	p.expect(ptoken.DO)
	p.statement()
	p.sym.Pop()
}

func inorderFields(root *symtab.Ident) []*symtab.Ident {
	var out []*symtab.Ident
	var walk func(*symtab.Ident)
	walk = func(n *symtab.Ident) {
		if n == nil {
			return
		}
		walk(n.Left)
		out = append(out, n)
		walk(n.Right)
	}
	walk(root)
	return out
}
