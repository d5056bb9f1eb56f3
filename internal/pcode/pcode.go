// Package pcode defines the packed P-code instruction format shared by the
// assembler (which produces it) and the vm (which fetches and dispatches
// it). Code memory is separate from the data store: an array of records,
// each holding two (op, p, q) slots, addressed by instruction slot
// (record index = pc/2, sub-slot = pc&1), grounded on
// original_source/p4_vm/p4_vm.h's packed-record layout.
package pcode

// Op is a P-code opcode.
//
// The original assembler derives a typed opcode number from a mnemonic's
// trailing type letter (a/r/s/b/c, default int) via a sparse remap table
// (original_source/p4_assembler/p4_assembler.c's typesymbol/cop[]), and the
// interpreter folds the typed variants back down by grouping case labels
// that share a body (original_source/p4_vm/p4_vm.c). Reproducing that
// numeric remap has no observable effect here: for lod/ldo/str/sro/ind/inc/
// dec the type letter only selects an assembler-time operand-type
// assertion, never changes runtime behavior, so one Op value covers every
// type. Where the type genuinely changes runtime behavior (equ/neq/geq/
// grt/leq/les, ldc), the type tag is carried directly in Instr.P, exactly
// as the original's runtime switch on p already does. The one case where a
// type letter names a *different* operation, not just a different
// assertion, is "chk" with an address operand: the original breaks this out
// as its own case ("chka") because it checks a pointer against the heap
// frontier rather than an integer against a bound pair, so Chka is its own
// Op here too.
type Op uint8

const (
	Lod Op = iota // load value: sp++; store[sp] = store[base(p)+q]
	Ldo           // load value, global: sp++; store[sp] = store[q]
	Str           // store value: store[base(p)+q] = store[sp]; sp--
	Sro           // store value, global: store[q] = store[sp]; sp--
	Lda           // load address: sp++; store[sp].va = base(p)+q
	Lao           // load address, global: sp++; store[sp].va = q
	Sto           // store through address: store[store[sp-1].va] = store[sp]; sp -= 2
	Ldc           // load constant: p selects int(1)/char(6)/bool(3)/nil immediate in q
	Lci           // load constant, indirect: sp++; store[sp] = store[q] (pool cell)
	Ind           // load indexed: ad = store[sp].va + q; store[sp] = store[ad]
	Inc           // increment top: store[sp].vi += q
	Mst           // mark stack: reserve 5-cell activation header
	Cup           // call user procedure: mp = sp-p-4; store[mp+4] = pc; pc = q
	Ent           // entry: reserve dataseg / extreme-pointer space
	Ret           // return: restore sp/pc/ep/mp per p (0=proc, 1..5=function result width)
	Csp           // call standard procedure, dispatched by q
	Ixa           // index address: sp--; store[sp].va += q * store[sp+1].vi
	Equ           // equal, typed by p
	Neq           // not equal, typed by p
	Geq           // greater-or-equal, typed by p
	Grt           // greater, typed by p
	Leq           // less-or-equal, typed by p
	Les           // less, typed by p
	Ujp           // unconditional jump: pc = q
	Fjp           // jump if false: if !store[sp].vb { pc = q }; sp--
	Xjp           // computed jump: pc = store[sp].vi + q; sp--
	Chk           // range check against a bound pair indexed by q
	Eof           // end-of-file test (input only)
	Adi           // add integer
	Adr           // add real
	Sbi           // subtract integer
	Sbr           // subtract real
	Sgs           // singleton set
	Flt           // float top-of-stack
	Flo           // float second-from-top (leaves top alone)
	Trc           // truncate real to integer
	Ngi           // negate integer
	Ngr           // negate real
	Sqi           // square integer
	Sqr           // square real
	Abi           // absolute value, integer
	Abr           // absolute value, real
	Not           // boolean not
	And           // boolean and
	Ior           // boolean or
	Dif           // set difference
	Int           // set intersection
	Uni           // set union
	Inn           // set membership
	Mod           // integer modulo
	Odd           // oddness test
	Mpi           // multiply integer
	Mpr           // multiply real
	Dvi           // divide integer
	Dvr           // divide real
	Mov           // block move, q cells
	Lca           // load constant address (string pool)
	Dec           // decrement top: store[sp].vi -= q
	Stp           // stop
	Ord           // ordinal conversion (tag change only, no-op at runtime)
	Chr           // chr conversion (tag change only, no-op at runtime)
	Ujc           // unreachable code marker: always a fatal trap if executed
	Chka          // pointer range check against heap/store bounds

	numOps
)

var opNames = [...]string{
	Lod: "lod", Ldo: "ldo", Str: "str", Sro: "sro", Lda: "lda", Lao: "lao",
	Sto: "sto", Ldc: "ldc", Lci: "lci", Ind: "ind", Inc: "inc", Mst: "mst",
	Cup: "cup", Ent: "ent", Ret: "ret", Csp: "csp", Ixa: "ixa", Equ: "equ",
	Neq: "neq", Geq: "geq", Grt: "grt", Leq: "leq", Les: "les", Ujp: "ujp",
	Fjp: "fjp", Xjp: "xjp", Chk: "chk", Eof: "eof", Adi: "adi", Adr: "adr",
	Sbi: "sbi", Sbr: "sbr", Sgs: "sgs", Flt: "flt", Flo: "flo", Trc: "trc",
	Ngi: "ngi", Ngr: "ngr", Sqi: "sqi", Sqr: "sqr", Abi: "abi", Abr: "abr",
	Not: "not", And: "and", Ior: "ior", Dif: "dif", Int: "int", Uni: "uni",
	Inn: "inn", Mod: "mod", Odd: "odd", Mpi: "mpi", Mpr: "mpr", Dvi: "dvi",
	Dvr: "dvr", Mov: "mov", Lca: "lca", Dec: "dec", Stp: "stp", Ord: "ord",
	Chr: "chr", Ujc: "ujc", Chka: "chka",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "op?"
}

// ByName looks up an opcode by its three/four-letter mnemonic, the inverse
// of Op.String, for the assembler's instruction table.
func ByName(name string) (Op, bool) {
	for op, n := range opNames {
		if n == name {
			return Op(op), true
		}
	}
	return 0, false
}

// AllOps returns every defined Op, for callers (the assembler) that build a
// lookup table over the full mnemonic set.
func AllOps() []Op {
	ops := make([]Op, 0, int(numOps))
	for i := Op(0); i < numOps; i++ {
		ops = append(ops, i)
	}
	return ops
}

// Type tags the operand type of a typed opcode (equ/neq/geq/grt/leq/les,
// ldc), carried in Instr.P exactly as the original runtime switch reads p.
type Type int8

const (
	TypeAddr Type = iota
	TypeInt
	TypeReal
	TypeBool
	TypeSet
	TypeMulti // byte-for-byte comparison over q cells (strings, records)
	TypeChar
)

// Instr is one decoded P-code instruction: an opcode plus its two operand
// fields. P is a small discriminant (Type tag, calling-level delta, or
// ret-width selector depending on Op); Q is the primary operand (address,
// constant, jump target, or pool index).
type Instr struct {
	Op Op
	P  int8
	Q  int32
}

// Word is one packed code record: two instruction slots, matching the
// original's (op:7,p:4,q:16) x2 layout. Field widths aren't bit-packed here
// (a Go struct has no reason to fight for bits the way the 1976 original
// did for memory), but the two-slots-per-word addressing scheme — and its
// consequence that pc must be halved and masked to locate a slot — is
// preserved as an explicit invariant (spec §3), since the disassembled
// listing format and the assembler's pc bookkeeping both reason in terms
// of instruction slots, not words.
type Word struct {
	Slot [2]Instr
}

// Code is the program's instruction memory.
type Code []Word

// At returns the instruction at the given pc (slot index, not word index).
func (c Code) At(pc int) Instr {
	return c[pc/2].Slot[pc&1]
}

// Set stores an instruction at the given pc, growing the code memory if
// necessary.
func (c *Code) Set(pc int, instr Instr) {
	word := pc / 2
	for word >= len(*c) {
		*c = append(*c, Word{})
	}
	(*c)[word].Slot[pc&1] = instr
}

// Len returns the number of instruction slots currently addressable
// (2 * number of words), not the high-water mark of slots actually written.
func (c Code) Len() int { return len(c) * 2 }
