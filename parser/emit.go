package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Emitter produces the textual P-code that the assembler package consumes,
// grounded on SPEC_FULL.md §4.4: one mnemonic (plus an optional type-letter
// suffix) per line, labels as a monotonic "l<n>" counter, and a final bare
// "q" end-of-segment marker.
//
// The original emitter also tracks topnew/topmax stack-depth high-water
// marks to statically size each routine's frame (cdx[]/pdx[] tables,
// patched into ent1/ent2 label equates). That bookkeeping existed because
// the original's store is a fixed-size array addressed by a value computed
// ahead of time; this implementation's vm grows sp by ordinary pushes
// (vm.Machine.push), so ent's frame size only has to cover the
// named header/param/local cells — expression temporaries safely push past
// it at runtime. topnew/topmax is therefore not computed; see DESIGN.md.
type Emitter struct {
	b         bytes.Buffer
	nextLabel int
}

// Mark returns the current write position, for use with Extract when a
// caller (case-statement dispatch emission) needs to move already-emitted
// code after code it hasn't written yet.
func (e *Emitter) Mark() int { return e.b.Len() }

// Extract returns everything written since mark and removes it from the
// buffer, so the caller can re-append it later at the right position.
func (e *Emitter) Extract(mark int) string {
	s := e.b.String()[mark:]
	e.b.Truncate(mark)
	return s
}

// Raw appends previously-Extracted text verbatim.
func (e *Emitter) Raw(text string) { e.b.WriteString(text) }

// NewEmitter returns an Emitter with an empty label counter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Label allocates a fresh label number without defining it.
func (e *Emitter) Label() int {
	e.nextLabel++
	return e.nextLabel
}

// Define emits "l<n>" at the current instruction, marking it as the jump
// target for every forward reference to n.
func (e *Emitter) Define(n int) {
	e.raw(fmt.Sprintf("l%d", n))
}

// Equate emits "l<n>=<value>", the deferred-constant form used for frame
// sizes only known once a routine's body has been fully emitted.
func (e *Emitter) Equate(n, value int) {
	e.raw(fmt.Sprintf("l%d=%d", n, value))
}

// End emits the bare "q" end-of-program marker.
func (e *Emitter) End() {
	e.raw("q")
}

func (e *Emitter) raw(line string) {
	e.b.WriteString(line)
	e.b.WriteByte('\n')
}

func (e *Emitter) op(mnemonic string, operands ...string) {
	if len(operands) == 0 {
		e.raw(mnemonic)
		return
	}
	e.raw(mnemonic + " " + strings.Join(operands, " "))
}

func itoa(n int) string { return strconv.Itoa(n) }

// Lod/Str: load or store a value relative to the frame p levels out from
// the current one, at displacement q.
func (e *Emitter) Lod(p, q int) { e.op("lod", itoa(p), itoa(q)) }
func (e *Emitter) Str(p, q int) { e.op("str", itoa(p), itoa(q)) }

// Lda: push the address of the cell p levels out, displacement q.
func (e *Emitter) Lda(p, q int) { e.op("lda", itoa(p), itoa(q)) }

// Ixa/Inc/Dec/Ind: address arithmetic and indirection used by selectors.
func (e *Emitter) Ixa(elemSize int) { e.op("ixa", itoa(elemSize)) }
func (e *Emitter) Inc(q int)        { e.op("inc", itoa(q)) }
func (e *Emitter) Dec(q int)        { e.op("dec", itoa(q)) }
func (e *Emitter) Ind(q int)        { e.op("ind", itoa(q)) }
func (e *Emitter) Sto()             { e.op("sto") }
func (e *Emitter) Mov(cells int)    { e.op("mov", itoa(cells)) }

// Mst/Cup/Ent/Ret: the call protocol (spec §4.3 "Parameter lists",
// §9 "activation record").
func (e *Emitter) Mst(levelDelta int)       { e.op("mst", itoa(levelDelta)) }
func (e *Emitter) Cup(paramCells, label int) { e.op("cup", itoa(paramCells), fmt.Sprintf("l%d", label)) }
func (e *Emitter) Ent(label int)            { e.op("ent", "1", fmt.Sprintf("l%d", label)) }

// retWidth maps a function/procedure result type to the letter build.go's
// retWidths table expects ("p" for procedures, no result).
func retWidth(t byte) string { return "ret" + string(t) }

func (e *Emitter) Ret(letter byte) { e.raw(retWidth(letter)) }

func (e *Emitter) Csp(name string) { e.op("csp", name) }

func (e *Emitter) Ujp(label int) { e.op("ujp", fmt.Sprintf("l%d", label)) }
func (e *Emitter) Fjp(label int) { e.op("fjp", fmt.Sprintf("l%d", label)) }
func (e *Emitter) Xjp(label int) { e.op("xjp", fmt.Sprintf("l%d", label)) }

func (e *Emitter) Chk(lo, hi int) { e.op("chk", itoa(lo), itoa(hi)) }
func (e *Emitter) Chka(lo int)    { e.op("chka", itoa(lo), "0") }

func (e *Emitter) LdcInt(v int64)  { e.op("ldci", strconv.FormatInt(v, 10)) }
func (e *Emitter) LdcReal(v float64) {
	e.op("ldcr", strconv.FormatFloat(v, 'g', -1, 64))
}
func (e *Emitter) LdcBool(v bool) {
	q := "0"
	if v {
		q = "1"
	}
	e.op("ldcb", q)
}
func (e *Emitter) LdcChar(c byte) { e.op("ldcc", fmt.Sprintf("'%c'", c)) }
func (e *Emitter) LdcNil()        { e.raw("ldcn") }

// LdcSet emits the bare "ldc ( e1 e2 ... )" constant-set form.
func (e *Emitter) LdcSet(elems []int) {
	operands := make([]string, 0, len(elems)+2)
	operands = append(operands, "(")
	for _, v := range elems {
		operands = append(operands, itoa(v))
	}
	operands = append(operands, ")")
	e.op("ldc", operands...)
}

func (e *Emitter) Lca(s string) { e.op("lca", "'"+s+"'") }

// typeLetter is the mnemonic suffix for a comparison or ldc operand type,
// mirroring assembler.typeLetters.
const (
	letterAddr  = 'a'
	letterInt   = 'i'
	letterReal  = 'r'
	letterBool  = 'b'
	letterSet   = 's'
	letterMulti = 'm'
	letterChar  = 'c'
)

// Compare emits a typed equ/neq/geq/grt/leq/les instruction. cells is only
// meaningful (and required) for the multi-cell (letterMulti) comparison.
func (e *Emitter) Compare(mnemonic string, letter byte, cells int) {
	if letter == letterMulti {
		e.op(mnemonic+string(letter), itoa(cells))
		return
	}
	e.raw(mnemonic + string(letter))
}

// Bare opcodes that take no operand and carry no type letter.
func (e *Emitter) Adi()  { e.raw("adi") }
func (e *Emitter) Adr()  { e.raw("adr") }
func (e *Emitter) Sbi()  { e.raw("sbi") }
func (e *Emitter) Sbr()  { e.raw("sbr") }
func (e *Emitter) Mpi()  { e.raw("mpi") }
func (e *Emitter) Mpr()  { e.raw("mpr") }
func (e *Emitter) Dvi()  { e.raw("dvi") }
func (e *Emitter) Dvr()  { e.raw("dvr") }
func (e *Emitter) Mod()  { e.raw("mod") }
func (e *Emitter) Odd()  { e.raw("odd") }
func (e *Emitter) Ngi()  { e.raw("ngi") }
func (e *Emitter) Ngr()  { e.raw("ngr") }
func (e *Emitter) Sqi()  { e.raw("sqi") }
func (e *Emitter) Sqr()  { e.raw("sqr") }
func (e *Emitter) Abi()  { e.raw("abi") }
func (e *Emitter) Abr()  { e.raw("abr") }
func (e *Emitter) Not()  { e.raw("not") }
func (e *Emitter) And()  { e.raw("and") }
func (e *Emitter) Ior()  { e.raw("ior") }
func (e *Emitter) Dif()  { e.raw("dif") }
func (e *Emitter) Int()  { e.raw("int") }
func (e *Emitter) Uni()  { e.raw("uni") }
func (e *Emitter) Inn()  { e.raw("inn") }
func (e *Emitter) Sgs()  { e.raw("sgs") }
func (e *Emitter) Flt()  { e.raw("flt") }
func (e *Emitter) Flo()  { e.raw("flo") }
func (e *Emitter) Trc()  { e.raw("trc") }
func (e *Emitter) Eof()  { e.raw("eof") }
func (e *Emitter) Stp()  { e.raw("stp") }

// String returns the accumulated textual P-code.
func (e *Emitter) String() string { return e.b.String() }
