// Package vm implements the P-code stack machine: typed opcode dispatch,
// the five-cell mark-stack activation-record protocol, heap allocation,
// and the standard-procedure call interface. It is grounded on
// original_source/p4_vm/p4_vm.c's interpret loop and callsp dispatch,
// adapted to Go idioms the way nenuphar's lang/machine package structures
// its own fetch-decode-dispatch loop (a Frame/Thread pair plus a big
// opcode switch returning an error instead of a raw trapped opcode
// number).
package vm

import (
	"fmt"
	"io"
	"math"

	"github.com/jensenwirth/p4/internal/pcode"
	"github.com/jensenwirth/p4/internal/pstore"
	"github.com/jensenwirth/p4/pascalset"
)

// Trap is a fatal runtime condition: stack/heap overflow, a failed range
// check, division by zero, or an operation against the wrong standard
// file. The original interpreter surfaces these by returning the opcode
// number from its step function; Trap carries the same opcode plus a
// human-readable reason.
type Trap struct {
	Op     pcode.Op
	PC     int
	Reason string
}

func (t *Trap) Error() string {
	if t.Reason == "" {
		return fmt.Sprintf("ERROR op: %d (%s) at pc=%d", t.Op, t.Op, t.PC)
	}
	return fmt.Sprintf("ERROR op: %d (%s) at pc=%d: %s", t.Op, t.Op, t.PC, t.Reason)
}

func (m *Machine) trap(op pcode.Op, reason string) *Trap {
	return &Trap{Op: op, PC: m.PC, Reason: reason}
}

// Machine is the interpreter's owned state: program counter plus the four
// store pointers (sp/mp/ep/np) and the shared data store and code memory.
// There is no process-wide singleton; a Machine is constructed fresh per
// run (spec §9).
type Machine struct {
	Store *pstore.Store
	Code  pcode.Code

	PC, SP, MP, EP, NP int

	Input  *textInput
	Output io.Writer
	Prd    *textInput
	Prr    io.Writer

	Halted bool
}

// New returns a Machine ready to execute code starting at pc 0, with sp/mp
// set below the reserved low addresses and np/ep at the top of the stack
// region (the heap grows down from np, the runtime stack grows up toward
// ep, matching original_source/p4_vm.h's layout).
func New(store *pstore.Store, code pcode.Code) *Machine {
	m := &Machine{
		Store:  store,
		Code:   code,
		SP:     pstore.BeginCode - 1,
		MP:     pstore.BeginCode - 1,
		EP:     store.MaxStack - 1,
		NP:     store.MaxStack - 1,
		Output: io.Discard,
	}
	return m
}

// Run executes instructions until a stp opcode halts the machine or a trap
// occurs.
func (m *Machine) Run() error {
	for !m.Halted {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) push(c pstore.Cell) error {
	m.SP++
	if m.SP >= m.EP {
		return m.trap(pcode.Stp, "stack overflow")
	}
	m.Store.Stack[m.SP] = c
	return nil
}

func (m *Machine) at(addr int) *pstore.Cell { return &m.Store.Stack[addr] }

// base walks the static-link chain ld frames outward from the current mp,
// grounded on p4_vm.c's base(): each frame's static link lives one cell
// above its mp (the activation header's slot 1, per the Mark Stack
// glossary entry).
func (m *Machine) base(ld int8) int {
	ad := m.MP
	for ; ld > 0; ld-- {
		ad = int(m.at(ad + 1).I)
	}
	return ad
}

// compare performs the word-by-word equality scan used by set/multi
// comparisons: two addressed regions of q cells, stopping at the first
// mismatch. It returns whether the regions are equal and, if not, the
// index of the first differing cell (for lexicographic ordering by the
// caller), grounded on p4_vm.c's compare().
func (m *Machine) compare(q int32) (equal bool, mismatchAt int, a1, a2 int) {
	a1 = int(m.at(m.SP).I)
	a2 = int(m.at(m.SP + 1).I)
	i := int32(0)
	for i < q {
		if m.at(a1+int(i)).I != m.at(a2+int(i)).I {
			return false, int(i), a1, a2
		}
		i++
	}
	return true, int(q), a1, a2
}

// Step decodes and executes a single instruction.
func (m *Machine) Step() error {
	instr := m.Code.At(m.PC)
	op, p, q := instr.Op, instr.P, instr.Q
	m.PC++

	switch op {
	case pcode.Lod:
		ad := m.base(p) + int(q)
		return m.push(*m.at(ad))

	case pcode.Ldo:
		return m.push(*m.at(int(q)))

	case pcode.Str:
		ad := m.base(p) + int(q)
		*m.at(ad) = *m.at(m.SP)
		m.SP--

	case pcode.Sro:
		*m.at(int(q)) = *m.at(m.SP)
		m.SP--

	case pcode.Lda:
		return m.push(pstore.AddrCell(int32(m.base(p) + int(q))))

	case pcode.Lao:
		return m.push(pstore.AddrCell(q))

	case pcode.Sto:
		*m.at(int(m.at(m.SP - 1).I)) = *m.at(m.SP)
		m.SP -= 2

	case pcode.Ldc:
		switch pcode.Type(p) {
		case pcode.TypeInt:
			return m.push(pstore.IntCell(q))
		case pcode.TypeChar:
			return m.push(pstore.CharCell(rune(q)))
		case pcode.TypeBool:
			return m.push(pstore.BoolCell(q == 1))
		default:
			return m.push(pstore.AddrCell(-1)) // nil
		}

	case pcode.Lci:
		switch pcode.Type(p) {
		case pcode.TypeInt:
			return m.push(pstore.IntCell(int32(m.Store.Int(int(q)))))
		case pcode.TypeReal:
			return m.push(pstore.RealCell(m.Store.Real(int(q))))
		case pcode.TypeSet:
			return m.push(pstore.SetCell(m.Store.SetAt(int(q))))
		}

	case pcode.Ind:
		ad := int(m.at(m.SP).I) + int(q)
		*m.at(m.SP) = *m.at(ad)

	case pcode.Inc:
		m.at(m.SP).I += q

	case pcode.Dec:
		m.at(m.SP).I -= q

	case pcode.Mst:
		// Reserves the five-cell activation header above sp: result,
		// static link, dynamic link, saved ep, and a return-pc placeholder
		// filled in by the matching cup (spec glossary "Mark stack").
		link := m.base(p)
		if err := m.push(pstore.Cell{}); err != nil {
			return err
		}
		if err := m.push(pstore.MarkCell(int32(link))); err != nil {
			return err
		}
		if err := m.push(pstore.MarkCell(int32(m.MP))); err != nil {
			return err
		}
		if err := m.push(pstore.MarkCell(int32(m.EP))); err != nil {
			return err
		}
		if err := m.push(pstore.Cell{}); err != nil {
			return err
		}

	case pcode.Cup:
		// p = number of parameter cells already pushed, q = entry pc.
		m.MP = m.SP - int(p) - 4
		m.at(m.MP + 4).I = int32(m.PC)
		m.PC = int(q)

	case pcode.Ent:
		if p == 1 {
			m.SP = m.MP + int(q)
			if m.SP > m.NP {
				return m.trap(op, "stack/heap collision")
			}
		} else {
			m.EP = m.SP + int(q)
			if m.EP > m.NP {
				return m.trap(op, "stack/heap collision")
			}
		}

	case pcode.Ret:
		switch p {
		case 0:
			m.SP = m.MP - 1
		default:
			m.SP = m.MP
		}
		m.PC = int(m.at(m.MP + 4).I)
		m.EP = int(m.at(m.MP + 3).I)
		m.MP = int(m.at(m.MP + 2).I)

	case pcode.Csp:
		return m.callStd(int(q))

	case pcode.Ixa:
		i := m.at(m.SP).I
		m.SP--
		m.at(m.SP).I += q * i

	case pcode.Equ, pcode.Neq, pcode.Geq, pcode.Grt, pcode.Leq, pcode.Les:
		return m.compareOp(op, pcode.Type(p), q)

	case pcode.Ujp:
		m.PC = int(q)

	case pcode.Fjp:
		if !m.at(m.SP).B {
			m.PC = int(q)
		}
		m.SP--

	case pcode.Xjp:
		m.PC = int(m.at(m.SP).I) + int(q)
		m.SP--

	case pcode.Chk:
		b := m.Store.Bound(int(q))
		if m.at(m.SP).I < b.Lo || m.at(m.SP).I > b.Hi {
			return m.trap(op, "value out of range")
		}

	case pcode.Chka:
		addr := m.at(m.SP).I
		high := int32(len(m.Store.Stack)-1) - q
		if int(addr) < m.NP || addr > high {
			return m.trap(op, "pointer out of bounds")
		}

	case pcode.Eof:
		if m.at(m.SP).I != pstore.InputAddr {
			return m.trap(op, "eof on non-input file")
		}
		m.at(m.SP).Kind = pstore.Bool
		m.at(m.SP).B = m.Input == nil || m.Input.Eof()

	case pcode.Adi:
		m.SP--
		m.at(m.SP).I += m.at(m.SP + 1).I
	case pcode.Adr:
		m.SP--
		m.at(m.SP).R += m.at(m.SP + 1).R
	case pcode.Sbi:
		m.SP--
		m.at(m.SP).I -= m.at(m.SP + 1).I
	case pcode.Sbr:
		m.SP--
		m.at(m.SP).R -= m.at(m.SP + 1).R

	case pcode.Sgs:
		m.at(m.SP).Set = pascalset.New(int(m.at(m.SP).I))
		m.at(m.SP).Kind = pstore.SetVal

	case pcode.Flt:
		m.at(m.SP).R = float64(m.at(m.SP).I)
		m.at(m.SP).Kind = pstore.Real
	case pcode.Flo:
		m.at(m.SP - 1).R = float64(m.at(m.SP - 1).I)
		m.at(m.SP - 1).Kind = pstore.Real
	case pcode.Trc:
		m.at(m.SP).I = int32(m.at(m.SP).R)
		m.at(m.SP).Kind = pstore.Int

	case pcode.Ngi:
		m.at(m.SP).I = -m.at(m.SP).I
	case pcode.Ngr:
		m.at(m.SP).R = -m.at(m.SP).R
	case pcode.Sqi:
		v := m.at(m.SP).I
		m.at(m.SP).I = v * v
	case pcode.Sqr:
		v := m.at(m.SP).R
		m.at(m.SP).R = v * v
	case pcode.Abi:
		if v := m.at(m.SP).I; v < 0 {
			m.at(m.SP).I = -v
		}
	case pcode.Abr:
		m.at(m.SP).R = math.Abs(m.at(m.SP).R)

	case pcode.Not:
		m.at(m.SP).B = !m.at(m.SP).B
	case pcode.And:
		m.SP--
		m.at(m.SP).B = m.at(m.SP).B && m.at(m.SP + 1).B
	case pcode.Ior:
		m.SP--
		m.at(m.SP).B = m.at(m.SP).B || m.at(m.SP + 1).B

	case pcode.Dif:
		m.SP--
		m.at(m.SP).Set = pascalset.Diff(m.at(m.SP).Set, m.at(m.SP + 1).Set)
	case pcode.Int:
		m.SP--
		m.at(m.SP).Set = pascalset.Intersect(m.at(m.SP).Set, m.at(m.SP + 1).Set)
	case pcode.Uni:
		m.SP--
		m.at(m.SP).Set = pascalset.Union(m.at(m.SP).Set, m.at(m.SP + 1).Set)
	case pcode.Inn:
		m.SP--
		i := m.at(m.SP).I
		set := m.at(m.SP + 1).Set
		m.at(m.SP).Kind = pstore.Bool
		m.at(m.SP).B = set.Contains(int(i))

	case pcode.Mod:
		m.SP--
		m.at(m.SP).I %= m.at(m.SP + 1).I
	case pcode.Odd:
		m.at(m.SP).Kind = pstore.Bool
		m.at(m.SP).B = m.at(m.SP).I&1 != 0
	case pcode.Mpi:
		m.SP--
		m.at(m.SP).I *= m.at(m.SP + 1).I
	case pcode.Mpr:
		m.SP--
		m.at(m.SP).R *= m.at(m.SP + 1).R
	case pcode.Dvi:
		m.SP--
		if m.at(m.SP + 1).I == 0 {
			return m.trap(op, "division by zero")
		}
		m.at(m.SP).I /= m.at(m.SP + 1).I
	case pcode.Dvr:
		m.SP--
		m.at(m.SP).R /= m.at(m.SP + 1).R

	case pcode.Mov:
		dst := int(m.at(m.SP - 1).I)
		src := int(m.at(m.SP).I)
		m.SP -= 2
		for i := int32(0); i < q; i++ {
			*m.at(dst + int(i)) = *m.at(src + int(i))
		}

	case pcode.Lca:
		return m.push(pstore.StrRefCell(q))

	case pcode.Stp:
		m.Halted = true

	case pcode.Ord, pcode.Chr:
		// tag-only conversions; the operand's representation is unchanged

	case pcode.Ujc:
		return m.trap(op, "unreachable code executed")

	default:
		return m.trap(op, "unimplemented opcode")
	}
	return nil
}

func (m *Machine) compareOp(op pcode.Op, typ pcode.Type, q int32) error {
	m.SP--
	a, b := m.at(m.SP), m.at(m.SP+1)
	var result bool
	switch typ {
	case pcode.TypeAddr:
		result = cmpResult(op, int64(a.I), int64(b.I))
	case pcode.TypeInt:
		result = cmpResult(op, int64(a.I), int64(b.I))
	case pcode.TypeChar:
		result = cmpResult(op, int64(a.I), int64(b.I))
	case pcode.TypeReal:
		result = cmpResultF(op, a.R, b.R)
	case pcode.TypeBool:
		result = cmpResultB(op, a.B, b.B)
	case pcode.TypeSet:
		switch op {
		case pcode.Equ:
			result = pascalset.Equal(a.Set, b.Set)
		case pcode.Neq:
			result = !pascalset.Equal(a.Set, b.Set)
		case pcode.Leq:
			result = pascalset.Subset(a.Set, b.Set)
		case pcode.Geq:
			result = pascalset.Subset(b.Set, a.Set)
		default:
			return m.trap(op, "unsupported set comparison")
		}
	case pcode.TypeMulti:
		equal, mismatchAt, a1, a2 := m.compare(q)
		switch op {
		case pcode.Equ:
			result = equal
		case pcode.Neq:
			result = !equal
		case pcode.Geq:
			result = equal || m.at(a1+mismatchAt).I >= m.at(a2+mismatchAt).I
		case pcode.Grt:
			result = !equal && m.at(a1+mismatchAt).I > m.at(a2+mismatchAt).I
		case pcode.Leq:
			result = equal || m.at(a1+mismatchAt).I <= m.at(a2+mismatchAt).I
		case pcode.Les:
			result = !equal && m.at(a1+mismatchAt).I < m.at(a2+mismatchAt).I
		}
	}
	m.at(m.SP).Kind = pstore.Bool
	m.at(m.SP).B = result
	return nil
}

func cmpResult(op pcode.Op, x, y int64) bool {
	switch op {
	case pcode.Equ:
		return x == y
	case pcode.Neq:
		return x != y
	case pcode.Geq:
		return x >= y
	case pcode.Grt:
		return x > y
	case pcode.Leq:
		return x <= y
	case pcode.Les:
		return x < y
	}
	return false
}

func cmpResultF(op pcode.Op, x, y float64) bool {
	switch op {
	case pcode.Equ:
		return x == y
	case pcode.Neq:
		return x != y
	case pcode.Geq:
		return x >= y
	case pcode.Grt:
		return x > y
	case pcode.Leq:
		return x <= y
	case pcode.Les:
		return x < y
	}
	return false
}

func cmpResultB(op pcode.Op, x, y bool) bool {
	toInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	return cmpResult(op, int64(toInt(x)), int64(toInt(y)))
}
