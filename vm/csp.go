package vm

import (
	"fmt"
	"io"

	"github.com/jensenwirth/p4/internal/pcode"
	"github.com/jensenwirth/p4/internal/pstore"
)

// Standard-procedure keys, in the order of original_source's sptable[0..20]
// (spec §4.6): get, put, rst, rln, new, wln, wrs, eln, wri, wrr, wrc, rdi,
// rdr, rdc, sin, cos, exp, log, sqt, atn, sav.
const (
	spGet = iota
	spPut
	spRst
	spRln
	spNew
	spWln
	spWrs
	spEln
	spWri
	spWrr
	spWrc
	spRdi
	spRdr
	spRdc
	spSin
	spCos
	spExp
	spLog
	spSqt
	spAtn
	spSav
)

// StdProcNames is the sptable, exported for the assembler's mnemonic
// lookup.
var StdProcNames = [...]string{
	spGet: "get", spPut: "put", spRst: "rst", spRln: "rln", spNew: "new",
	spWln: "wln", spWrs: "wrs", spEln: "eln", spWri: "wri", spWrr: "wrr",
	spWrc: "wrc", spRdi: "rdi", spRdr: "rdr", spRdc: "rdc", spSin: "sin",
	spCos: "cos", spExp: "exp", spLog: "log", spSqt: "sqt", spAtn: "atn",
	spSav: "sav",
}

// callStd dispatches a csp instruction. File identity is encoded by the
// store address of the file's buffer cell (InputAddr/OutputAddr/PrdAddr/
// PrrAddr); an operation attempted against the wrong file (e.g. get on
// output) traps, grounded on original_source/p4_vm/p4_vm.c's callsp.
func (m *Machine) callStd(q int) error {
	switch q {
	case spGet:
		addr := int(m.at(m.SP).I)
		switch addr {
		case pstore.InputAddr:
			m.advanceFile(m.Input, addr)
		case pstore.PrdAddr:
			m.advanceFile(m.Prd, addr)
		default:
			return m.trap(pcode.Csp, "get on a non-input file")
		}
		m.SP--

	case spPut:
		addr := int(m.at(m.SP).I)
		ch := byte(m.at(addr).I)
		switch addr {
		case pstore.OutputAddr:
			fmt.Fprintf(m.Output, "%c", ch)
		case pstore.PrrAddr:
			if m.Prr == nil {
				return m.trap(pcode.Csp, "no prr file attached")
			}
			fmt.Fprintf(m.Prr, "%c", ch)
		default:
			return m.trap(pcode.Csp, "put on a non-output file")
		}
		m.SP--

	case spRst:
		m.NP = int(m.at(m.SP).I)
		m.SP--

	case spRln:
		addr := int(m.at(m.SP).I)
		switch addr {
		case pstore.InputAddr:
			m.skipLineFile(m.Input, addr)
		case pstore.PrdAddr:
			m.skipLineFile(m.Prd, addr)
		default:
			return m.trap(pcode.Csp, "rln on a non-input file")
		}
		m.SP--

	case spNew:
		size := m.at(m.SP).I
		ad := m.NP - int(size)
		if ad <= m.EP {
			return m.trap(pcode.Csp, "heap/stack collision")
		}
		m.NP = ad
		ptrAddr := int(m.at(m.SP - 1).I)
		m.at(ptrAddr).Kind = pstore.Addr
		m.at(ptrAddr).I = int32(m.NP)
		m.SP -= 2

	case spWln:
		addr := int(m.at(m.SP).I)
		switch addr {
		case pstore.OutputAddr:
			fmt.Fprintln(m.Output)
		case pstore.PrrAddr:
			if m.Prr == nil {
				return m.trap(pcode.Csp, "no prr file attached")
			}
			fmt.Fprintln(m.Prr)
		default:
			return m.trap(pcode.Csp, "wln on a non-output file")
		}
		m.SP--

	case spWrs:
		return m.writeStr()

	case spEln:
		addr := int(m.at(m.SP).I)
		var eoln bool
		switch addr {
		case pstore.InputAddr:
			eoln = m.Input == nil || m.Input.Eoln()
		case pstore.PrdAddr:
			eoln = m.Prd == nil || m.Prd.Eoln()
		default:
			return m.trap(pcode.Csp, "eln on a non-input file")
		}
		m.at(m.SP).Kind = pstore.Bool
		m.at(m.SP).B = eoln

	case spWri:
		return m.writeFormatted(func(w io.Writer, width int, a, b *pstore.Cell) {
			fmt.Fprintf(w, "%*d", width, a.I)
		})

	case spWrr:
		return m.writeFormatted(func(w io.Writer, width int, a, b *pstore.Cell) {
			prec := width - 7
			if prec < 1 {
				prec = 1
			}
			fmt.Fprintf(w, "% .*E", prec, a.R)
		})

	case spWrc:
		return m.writeFormatted(func(w io.Writer, width int, a, b *pstore.Cell) {
			fmt.Fprintf(w, "%*c", width, rune(a.I))
		})

	case spRdi:
		return m.readInto(func(f *textInput) pstore.Cell {
			return pstore.IntCell(int32(f.ReadInt()))
		})

	case spRdr:
		return m.readInto(func(f *textInput) pstore.Cell {
			return pstore.RealCell(f.ReadReal())
		})

	case spRdc:
		return m.readInto(func(f *textInput) pstore.Cell {
			return pstore.CharCell(rune(f.Advance()))
		})

	case spSin:
		m.unaryReal(sinF)
	case spCos:
		m.unaryReal(cosF)
	case spExp:
		m.unaryReal(expF)
	case spLog:
		m.unaryReal(logF)
	case spSqt:
		m.unaryReal(sqrtF)
	case spAtn:
		m.unaryReal(atanF)

	case spSav:
		ad := int(m.at(m.SP).I)
		m.at(ad).Kind = pstore.Addr
		m.at(ad).I = int32(m.NP)
		m.SP--

	default:
		return m.trap(pcode.Csp, "unknown standard procedure")
	}
	return nil
}

func (m *Machine) advanceFile(f *textInput, bufAddr int) {
	if f == nil {
		return
	}
	f.Advance()
	m.at(bufAddr).Kind = pstore.Char
	m.at(bufAddr).I = int32(f.Peek())
}

func (m *Machine) skipLineFile(f *textInput, bufAddr int) {
	if f == nil {
		return
	}
	f.SkipLine()
	m.at(bufAddr).Kind = pstore.Char
	m.at(bufAddr).I = int32(f.Peek())
}

// writeStr implements wrs: pop file, address-or-strref, field width, and
// actual length, writing the (possibly blank-padded) string.
func (m *Machine) writeStr() error {
	addr := int(m.at(m.SP).I)
	width := int(m.at(m.SP - 1).I)
	length := int(m.at(m.SP - 2).I)
	src := m.at(m.SP - 3)

	var w io.Writer
	switch addr {
	case pstore.OutputAddr:
		w = m.Output
	case pstore.PrrAddr:
		if m.Prr == nil {
			return m.trap(pcode.Csp, "no prr file attached")
		}
		w = m.Prr
	default:
		return m.trap(pcode.Csp, "wrs on a non-output file")
	}

	s := m.resolveString(src, length)
	if width > length {
		fmt.Fprint(w, spaces(width-length))
	} else if width < length {
		s = s[:width]
	}
	fmt.Fprint(w, s)
	m.SP -= 4
	return nil
}

// resolveString renders a string-valued operand. A literal produced by lca
// (Kind StrRef) is looked up directly in the string pool; any other cell is
// treated as the base address of a packed-array-of-char value and read cell
// by cell, matching the original's char-by-char writestr loop.
func (m *Machine) resolveString(c *pstore.Cell, length int) string {
	if c.Kind == pstore.StrRef {
		return m.Store.String(int(c.I))
	}
	buf := make([]byte, 0, length)
	base := int(c.I)
	for i := 0; i < length; i++ {
		buf = append(buf, byte(m.at(base+i).I))
	}
	return string(buf)
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

func (m *Machine) writeFormatted(fn func(w io.Writer, width int, value, unused *pstore.Cell)) error {
	addr := int(m.at(m.SP).I)
	width := int(m.at(m.SP - 1).I)
	value := m.at(m.SP - 2)

	var w io.Writer
	switch addr {
	case pstore.OutputAddr:
		w = m.Output
	case pstore.PrrAddr:
		if m.Prr == nil {
			return m.trap(pcode.Csp, "no prr file attached")
		}
		w = m.Prr
	default:
		return m.trap(pcode.Csp, "write on a non-output file")
	}
	fn(w, width, value, nil)
	m.SP -= 3
	return nil
}

func (m *Machine) readInto(fn func(f *textInput) pstore.Cell) error {
	addr := int(m.at(m.SP).I)
	var f *textInput
	switch addr {
	case pstore.InputAddr:
		f = m.Input
	case pstore.PrdAddr:
		f = m.Prd
	default:
		return m.trap(pcode.Csp, "read on a non-input file")
	}
	if f == nil {
		return m.trap(pcode.Csp, "no such file attached")
	}
	target := int(m.at(m.SP - 1).I)
	*m.at(target) = fn(f)
	bufAddr := addr
	m.at(bufAddr).Kind = pstore.Char
	m.at(bufAddr).I = int32(f.Peek())
	m.SP -= 2
	return nil
}

func (m *Machine) unaryReal(fn func(float64) float64) {
	m.at(m.SP).R = fn(m.at(m.SP).R)
}
