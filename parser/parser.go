// Package parser fuses a one-pass recursive-descent parser, semantic
// analyser, and P-code emitter for P4 Pascal, grounded on
// github.com/mna/nenuphar's lang/parser (recursive-descent shape) and
// lang/resolver (scope-aware name binding) collapsed into a single pass per
// SPEC_FULL.md §4.3: the original Pascal p4 compiler never builds an AST,
// it emits code as it recognizes grammar productions, and the donor's
// split parser/resolver is fused back into that shape here.
package parser

import (
	"fmt"
	"go/scanner"
	"go/token"

	"github.com/jensenwirth/p4/internal/plex"
	"github.com/jensenwirth/p4/internal/ptoken"
	"github.com/jensenwirth/p4/symtab"
)

// headerCells is the fixed activation-record header size in cells (result,
// static link, dynamic link, caller ep, return pc), grounded on
// vm.Machine's Mst/Cup/Ret cell layout (vm/vm.go).
const headerCells = 5

// Parser holds all state threaded through one compile: the token stream,
// the symbol/type table, the code emitter, and accumulated diagnostics.
type Parser struct {
	lx   *plex.Lexer
	file *token.File
	errs *scanner.ErrorList
	opts *plex.Options

	tok plex.Token // current lookahead

	sym *symtab.Table
	em  *Emitter

	// locals accumulates the cell count of the routine currently being
	// parsed, so its ent frame size is known once the declaration part
	// ends (see DESIGN.md: topnew/topmax are not tracked, this single
	// running total replaces them).
	locals int
}

// Compile parses and compiles src (one Pascal source file) into textual
// P-code ready for assembler.Assemble, per spec §6.
func Compile(filename string, src []byte) (string, error) {
	fset := token.NewFileSet()
	file := fset.AddFile(filename, -1, len(src))
	var errs scanner.ErrorList
	opts := plex.DefaultOptions()
	lx := plex.New(file, src, &errs, opts)

	p := &Parser{
		lx:   lx,
		file: file,
		errs: &errs,
		opts: opts,
		sym:  symtab.NewTable(),
		em:   NewEmitter(),
	}
	p.declareStandardEnv()
	p.next()
	p.program()

	if err := errs.Err(); err != nil {
		return "", err
	}
	return p.em.String(), nil
}

func (p *Parser) next() {
	p.tok = p.lx.Scan()
}

func (p *Parser) at(k ptoken.Token) bool { return p.tok.Kind == k }

func (p *Parser) accept(k ptoken.Token) bool {
	if p.at(k) {
		p.next()
		return true
	}
	return false
}

// expect consumes the current token if it matches k, otherwise records a
// diagnostic and leaves the stream positioned for the caller's resync.
func (p *Parser) expect(k ptoken.Token) plex.Token {
	tok := p.tok
	if !p.at(k) {
		p.errorf(tok.Pos, "expected %s, found %s", k, p.tok.Kind)
		return tok
	}
	p.next()
	return tok
}

func (p *Parser) errorf(pos token.Pos, format string, args ...any) {
	p.errs.Add(p.file.Position(pos), fmt.Sprintf(format, args...))
}

// skipTo is the follow-set resync helper named in spec §4.3: on a parse
// error, discard tokens until one in the given set (or end of file), so a
// single mistake doesn't cascade into unrelated diagnostics.
func (p *Parser) skipTo(set ...ptoken.Token) {
	for {
		if p.at(ptoken.EOF) {
			return
		}
		for _, k := range set {
			if p.at(k) {
				return
			}
		}
		p.next()
	}
}

func (p *Parser) identName() string {
	tok := p.expect(ptoken.IDENT)
	return tok.Lit
}

// program parses the top-level "program IDENT (filelist); block ." form
// and emits the bootstrap mst/cup/ent/ret/stp sequence that gives the
// program body its own ordinary activation record, exactly like any other
// routine, per the "global variables use lod/str like any frame, never
// the absolute-address ldo/sro fast path" decision in DESIGN.md.
func (p *Parser) program() {
	p.expect(ptoken.PROGRAM)
	p.identName()
	if p.accept(ptoken.LPAREN) {
		p.skipTo(ptoken.RPAREN)
		p.accept(ptoken.RPAREN)
	}
	p.expect(ptoken.SEMI)

	bodyLabel := p.em.Label()
	p.em.Mst(0)
	p.em.Cup(0, bodyLabel)
	p.em.Stp()

	savedLocals := p.locals
	p.locals = 0
	p.declarations()

	p.em.Define(bodyLabel)
	frameLabel := p.em.Label()
	p.em.Ent(frameLabel)
	p.compoundStatement()
	p.em.Ret('p')
	p.em.Equate(frameLabel, headerCells+p.locals)
	p.locals = savedLocals

	p.expect(ptoken.DOT)
	p.em.End()
}

// declarations parses the const/type/var/routine sections that may appear,
// in any order repeatedly, at the head of a block (spec §4.2/§4.3).
func (p *Parser) declarations() {
	for {
		switch p.tok.Kind {
		case ptoken.CONST:
			p.constDecls()
		case ptoken.TYPE:
			p.typeDecls()
		case ptoken.VAR:
			p.varDecls()
		case ptoken.PROCEDURE, ptoken.FUNCTION:
			p.routineDecl()
		default:
			return
		}
	}
}

// allocLocal reserves n more cells in the current routine's frame and
// returns the displacement of the first one.
func (p *Parser) allocLocal(n int) int {
	displ := headerCells + p.locals
	p.locals += n
	return displ
}
