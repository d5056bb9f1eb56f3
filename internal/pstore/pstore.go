// Package pstore implements the store shared by the assembler and the
// virtual machine: an array of tagged cells for the runtime stack plus five
// append-only, type-segregated constant pools, each a separate slice of
// plain values.
//
// The regions are ported from original_source's p4_vm/p4_vm.h (CODEMAX,
// MAXSTK, OVERI, OVERR, OVERS, OVERB, OVERM): this repo keeps their *role*
// but not their shared address space. The stack size is a parameter of New;
// the pool limits are the Default* constants below.
package pstore

import "github.com/jensenwirth/p4/pascalset"

// Default region limits, chosen to comfortably exceed anything the test
// suite or typical fixture programs exercise while keeping the original's
// relative proportions (stack region largest, pools much smaller).
const (
	DefaultMaxStack  = 16384
	DefaultIntPool   = 512
	DefaultRealPool  = 512
	DefaultSetPool   = 512
	DefaultBoundPool = 512
	DefaultStrPool   = 2048

	// INPUTADR, OUTPUTADR, PRDADR and PRRADR are store addresses reserved
	// for the identity of the four standard files; csp dispatch keys off
	// these constants instead of a named-file lookup (original_source's
	// p4_vm.h).
	InputAddr  = 5
	OutputAddr = 6
	PrdAddr    = 7
	PrrAddr    = 8

	// BeginCode is the original's BEGINCODE; here it only places the initial
	// sp/mp (vm.New sets both to BeginCode-1). Code memory starts at pc 0.
	BeginCode = 3
)

// Kind tags the payload a Cell currently holds.
type Kind uint8

const (
	Empty Kind = iota
	Int
	Real
	Bool
	Char
	Addr
	SetVal
	Mark   // an activation-record header word (static link, return pc, ...)
	StrRef // a reference into the string pool, produced by lca
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Int:
		return "int"
	case Real:
		return "real"
	case Bool:
		return "bool"
	case Char:
		return "char"
	case Addr:
		return "addr"
	case SetVal:
		return "set"
	case Mark:
		return "mark"
	case StrRef:
		return "strref"
	default:
		return "invalid"
	}
}

// Cell is one tagged store slot.
type Cell struct {
	Kind Kind
	I    int32 // Int, Addr, Mark, StrRef (pool index), and Char (rune value)
	R    float64
	B    bool
	Set  pascalset.Set
}

func IntCell(v int32) Cell         { return Cell{Kind: Int, I: v} }
func RealCell(v float64) Cell      { return Cell{Kind: Real, R: v} }
func BoolCell(v bool) Cell         { return Cell{Kind: Bool, B: v} }
func CharCell(v rune) Cell         { return Cell{Kind: Char, I: int32(v)} }
func AddrCell(v int32) Cell        { return Cell{Kind: Addr, I: v} }
func SetCell(v pascalset.Set) Cell { return Cell{Kind: SetVal, Set: v} }
func MarkCell(v int32) Cell        { return Cell{Kind: Mark, I: v} }
func StrRefCell(poolIdx int32) Cell { return Cell{Kind: StrRef, I: poolIdx} }

// Region identifies one of the store's partitions.
type Region int

const (
	RegionStack Region = iota
	RegionInt
	RegionReal
	RegionSet
	RegionBound
	RegionStr
)

// BoundPair is an interned (lb, ub) subrange-check pair, the payload of the
// boundary pool.
type BoundPair struct {
	Lo, Hi int32
}

// Store is the runtime store: a stack/global region plus five append-only
// intern pools. Store addresses index Stack only; a pool entry is addressed
// by its index within its own pool (starting at 0), not by a store address.
type Store struct {
	Stack []Cell // index 0..MaxStack-1; grown by the VM (sp/mp/ep/np all index here)

	ints   []int64
	reals  []float64
	sets   []pascalset.Set
	bounds []BoundPair
	strs   []string

	MaxStack int
}

// New returns a Store with a stack region of the given size, zero-filled.
func New(maxStack int) *Store {
	if maxStack <= 0 {
		maxStack = DefaultMaxStack
	}
	return &Store{
		Stack:    make([]Cell, maxStack),
		MaxStack: maxStack,
	}
}

// InternInt interns v into the integer pool, returning its pool index. The
// pool is linear-scanned for an existing equal entry and append-only
// otherwise, per the append-only/linear-scan invariant in §3 of the spec.
func (s *Store) InternInt(v int64) (idx int, overflow bool) {
	for i, e := range s.ints {
		if e == v {
			return i, false
		}
	}
	if len(s.ints) >= DefaultIntPool {
		return 0, true
	}
	s.ints = append(s.ints, v)
	return len(s.ints) - 1, false
}

// InternReal interns v (bitwise equality, matching the original's exact
// real-constant dedup) into the real pool.
func (s *Store) InternReal(v float64) (idx int, overflow bool) {
	for i, e := range s.reals {
		if e == v {
			return i, false
		}
	}
	if len(s.reals) >= DefaultRealPool {
		return 0, true
	}
	s.reals = append(s.reals, v)
	return len(s.reals) - 1, false
}

// InternSet interns v (set-library equality) into the set pool.
func (s *Store) InternSet(v pascalset.Set) (idx int, overflow bool) {
	for i, e := range s.sets {
		if pascalset.Equal(e, v) {
			return i, false
		}
	}
	if len(s.sets) >= DefaultSetPool {
		return 0, true
	}
	s.sets = append(s.sets, v.Clone())
	return len(s.sets) - 1, false
}

// InternBound interns a (lo, hi) range-check pair into the boundary pool.
func (s *Store) InternBound(lo, hi int32) (idx int, overflow bool) {
	for i, e := range s.bounds {
		if e.Lo == lo && e.Hi == hi {
			return i, false
		}
	}
	if len(s.bounds) >= DefaultBoundPool {
		return 0, true
	}
	s.bounds = append(s.bounds, BoundPair{Lo: lo, Hi: hi})
	return len(s.bounds) - 1, false
}

// InternString interns a multi-character string literal into the string
// pool.
func (s *Store) InternString(v string) (idx int, overflow bool) {
	for i, e := range s.strs {
		if e == v {
			return i, false
		}
	}
	if len(s.strs) >= DefaultStrPool {
		return 0, true
	}
	s.strs = append(s.strs, v)
	return len(s.strs) - 1, false
}

func (s *Store) Int(idx int) int64            { return s.ints[idx] }
func (s *Store) Real(idx int) float64         { return s.reals[idx] }
func (s *Store) SetAt(idx int) pascalset.Set  { return s.sets[idx] }
func (s *Store) Bound(idx int) BoundPair      { return s.bounds[idx] }
func (s *Store) String(idx int) string        { return s.strs[idx] }

func (s *Store) IntPoolLen() int   { return len(s.ints) }
func (s *Store) RealPoolLen() int  { return len(s.reals) }
func (s *Store) SetPoolLen() int   { return len(s.sets) }
func (s *Store) BoundPoolLen() int { return len(s.bounds) }
func (s *Store) StrPoolLen() int   { return len(s.strs) }
