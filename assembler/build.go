package assembler

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jensenwirth/p4/internal/pcode"
	"github.com/jensenwirth/p4/pascalset"
)

// build computes the Instr for one parsed instruction line, grounded on
// p4_assembler.c's assemble() opcode-category switch (the comment above
// each case there names the opcodes sharing that operand shape). skip is
// true for ord/chr, which the original assembler consumes without ever
// emitting a code word (its "goto _L1").
func (a *Assembler) build(line string, op pcode.Op, letter byte, hasLetter bool, operands []string) (pcode.Instr, bool, error) {
	switch op {
	case pcode.Equ, pcode.Neq, pcode.Geq, pcode.Grt, pcode.Leq, pcode.Les:
		return a.buildCompare(op, letter, hasLetter, operands)

	case pcode.Lod, pcode.Str:
		if len(operands) != 2 {
			return pcode.Instr{}, false, a.errorf("%s: expected level and offset", op)
		}
		p, err := a.parseInt(operands[0])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		q, err := a.parseInt(operands[1])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: op, P: int8(p), Q: int32(q)}, false, nil

	case pcode.Lda:
		if len(operands) != 2 {
			return pcode.Instr{}, false, a.errorf("lda: expected level and offset")
		}
		p, err := a.parseInt(operands[0])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		q, err := a.parseInt(operands[1])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: op, P: int8(p), Q: int32(q)}, false, nil

	case pcode.Lao, pcode.Ixa, pcode.Mov:
		q, err := a.singleIntOperand(op, operands)
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: op, Q: q}, false, nil

	case pcode.Ldo, pcode.Sro, pcode.Ind, pcode.Inc, pcode.Dec:
		q, err := a.singleIntOperand(op, operands)
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: op, Q: q}, false, nil

	case pcode.Mst:
		p, err := a.singleIntOperand(op, operands)
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: op, P: int8(p)}, false, nil

	case pcode.Cup:
		if len(operands) != 2 {
			return pcode.Instr{}, false, a.errorf("cup: expected param count and label")
		}
		p, err := a.parseInt(operands[0])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		q, err := a.parseLabelOperand(operands[1])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: op, P: int8(p), Q: q}, false, nil

	case pcode.Ent:
		if len(operands) != 2 {
			return pcode.Instr{}, false, a.errorf("ent: expected segment kind and label")
		}
		p, err := a.parseInt(operands[0])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		q, err := a.parseLabelOperand(operands[1])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: op, P: int8(p), Q: q}, false, nil

	case pcode.Ret:
		if !hasLetter {
			return pcode.Instr{}, false, a.errorf("ret: missing result-width letter")
		}
		p, ok := retWidths[letter]
		if !ok {
			return pcode.Instr{}, false, a.errorf("ret: unknown result-width letter %q", letter)
		}
		return pcode.Instr{Op: op, P: p}, false, nil

	case pcode.Csp:
		if len(operands) != 1 {
			return pcode.Instr{}, false, a.errorf("csp: expected a standard-procedure name")
		}
		q, ok := stdProcs.Get(operands[0])
		if !ok {
			return pcode.Instr{}, false, a.errorf("csp: unknown standard procedure %q", operands[0])
		}
		return pcode.Instr{Op: op, Q: q}, false, nil

	case pcode.Ldc:
		return a.buildLdc(letter, hasLetter, operands)

	case pcode.Chka:
		lb, _, err := a.twoIntOperands(operands)
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: op, Q: int32(lb)}, false, nil

	case pcode.Chk:
		lb, ub, err := a.twoIntOperands(operands)
		if err != nil {
			return pcode.Instr{}, false, err
		}
		idx, overflow := a.store.InternBound(int32(lb), int32(ub))
		if overflow {
			return pcode.Instr{}, false, a.errorf("boundary table overflow")
		}
		return pcode.Instr{Op: op, Q: int32(idx)}, false, nil

	case pcode.Sto:
		return pcode.Instr{Op: op}, false, nil

	case pcode.Ujp, pcode.Fjp, pcode.Xjp:
		if len(operands) != 1 {
			return pcode.Instr{}, false, a.errorf("%s: expected a label", op)
		}
		q, err := a.parseLabelOperand(operands[0])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: op, Q: q}, false, nil

	case pcode.Lca:
		return a.buildLca(line)

	case pcode.Ord, pcode.Chr:
		return pcode.Instr{}, true, nil

	default:
		return pcode.Instr{Op: op}, false, nil
	}
}

var retWidths = map[byte]int8{
	'p': 0, 'i': 1, 'r': 2, 'c': 3, 'b': 4, 'a': 5,
}

func (a *Assembler) buildCompare(op pcode.Op, letter byte, hasLetter bool, operands []string) (pcode.Instr, bool, error) {
	if !hasLetter {
		return pcode.Instr{}, false, a.errorf("%s: missing operand-type letter", op)
	}
	typ, ok := typeLetters[letter]
	if !ok {
		return pcode.Instr{}, false, a.errorf("%s: unknown operand-type letter %q", op, letter)
	}
	var q int32
	if typ == pcode.TypeMulti {
		if len(operands) != 1 {
			return pcode.Instr{}, false, a.errorf("%s: multi-type comparison needs a cell count", op)
		}
		n, err := a.parseInt(operands[0])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		q = int32(n)
	}
	return pcode.Instr{Op: op, P: int8(typ), Q: q}, false, nil
}

func (a *Assembler) singleIntOperand(op pcode.Op, operands []string) (int32, error) {
	if len(operands) != 1 {
		return 0, a.errorf("%s: expected a single operand", op)
	}
	v, err := a.parseInt(operands[0])
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func (a *Assembler) twoIntOperands(operands []string) (int64, int64, error) {
	if len(operands) != 2 {
		return 0, 0, a.errorf("expected two integer operands")
	}
	lo, err := a.parseInt(operands[0])
	if err != nil {
		return 0, 0, err
	}
	hi, err := a.parseInt(operands[1])
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func (a *Assembler) parseLabelOperand(tok string) (int32, error) {
	if len(tok) < 2 || tok[0] != 'l' {
		return 0, a.errorf("expected a label reference, got %q", tok)
	}
	n, err := strconv.ParseInt(tok[1:], 10, 32)
	if err != nil {
		return 0, a.errorf("invalid label reference: %q", tok)
	}
	return a.lookup(int32(n)), nil
}

// largeInt is the original's LARGEINT threshold: integer literals at or
// beyond this magnitude can't fit the 16-bit immediate q field and are
// routed through the integer pool instead (p4_assembler.c's ldc 'i' case).
const largeInt = 1 << 15

// buildLdc implements ldc's per-type-letter dispatch (p4_assembler.c's
// `case 7: // ldc`), including the direct-immediate vs. pool-indirect split
// for oversized integers and the always-pooled real/set literals.
func (a *Assembler) buildLdc(letter byte, hasLetter bool, operands []string) (pcode.Instr, bool, error) {
	if !hasLetter {
		return a.buildLdcSet(operands)
	}
	switch letter {
	case 'i':
		if len(operands) != 1 {
			return pcode.Instr{}, false, a.errorf("ldci: expected an integer")
		}
		v, err := a.parseInt(operands[0])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		if v >= largeInt || v <= -largeInt {
			idx, overflow := a.store.InternInt(v)
			if overflow {
				return pcode.Instr{}, false, a.errorf("integer table overflow")
			}
			return pcode.Instr{Op: pcode.Lci, P: int8(pcode.TypeInt), Q: int32(idx)}, false, nil
		}
		return pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeInt), Q: int32(v)}, false, nil

	case 'r':
		if len(operands) != 1 {
			return pcode.Instr{}, false, a.errorf("ldcr: expected a real literal")
		}
		v, err := strconv.ParseFloat(operands[0], 64)
		if err != nil {
			return pcode.Instr{}, false, a.errorf("invalid real literal: %s", operands[0])
		}
		idx, overflow := a.store.InternReal(v)
		if overflow {
			return pcode.Instr{}, false, a.errorf("real table overflow")
		}
		return pcode.Instr{Op: pcode.Lci, P: int8(pcode.TypeReal), Q: int32(idx)}, false, nil

	case 'n':
		return pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeAddr)}, false, nil

	case 'b':
		if len(operands) != 1 {
			return pcode.Instr{}, false, a.errorf("ldcb: expected 0 or 1")
		}
		v, err := a.parseInt(operands[0])
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeBool), Q: int32(v)}, false, nil

	case 'c':
		ch, err := a.quotedChar(operands)
		if err != nil {
			return pcode.Instr{}, false, err
		}
		return pcode.Instr{Op: pcode.Ldc, P: int8(pcode.TypeChar), Q: int32(ch)}, false, nil
	}
	return pcode.Instr{}, false, a.errorf("ldc: unknown type letter %q", letter)
}

func (a *Assembler) quotedChar(operands []string) (byte, error) {
	if len(operands) != 1 || len(operands[0]) != 3 || operands[0][0] != '\'' || operands[0][2] != '\'' {
		return 0, a.errorf("expected a quoted character literal, e.g. 'x'")
	}
	return operands[0][1], nil
}

var rxSetElem = regexp.MustCompile(`-?\d+`)

// buildLdcSet parses `ldc ( e1 e2 ... )`, the bare-mnemonic set-literal
// form (p4_assembler.c's `case '('`).
func (a *Assembler) buildLdcSet(operands []string) (pcode.Instr, bool, error) {
	if len(operands) < 2 || operands[0] != "(" || operands[len(operands)-1] != ")" {
		return pcode.Instr{}, false, a.errorf("ldc: expected a parenthesized set literal")
	}
	var s pascalset.Set
	for _, tok := range operands[1 : len(operands)-1] {
		if !rxSetElem.MatchString(tok) {
			return pcode.Instr{}, false, a.errorf("ldc: invalid set element %q", tok)
		}
		n, _ := strconv.Atoi(tok)
		s.Add(n)
	}
	idx, overflow := a.store.InternSet(s)
	if overflow {
		return pcode.Instr{}, false, a.errorf("set table overflow")
	}
	return pcode.Instr{Op: pcode.Lci, P: int8(pcode.TypeSet), Q: int32(idx)}, false, nil
}

var rxLcaLiteral = regexp.MustCompile(`^lca\s+'(.*)'\s*$`)

// buildLca parses `lca '<text>'`, interning the literal into the string
// pool. The original instead copies a fixed 16-character buffer verbatim
// (no dedup); here it's pooled like any other interned constant, consistent
// with internal/pstore's append-only/linear-scan pools.
func (a *Assembler) buildLca(line string) (pcode.Instr, bool, error) {
	m := rxLcaLiteral.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return pcode.Instr{}, false, a.errorf("lca: expected a quoted string literal")
	}
	idx, overflow := a.store.InternString(m[1])
	if overflow {
		return pcode.Instr{}, false, a.errorf("multiple table overflow")
	}
	return pcode.Instr{Op: pcode.Lca, Q: int32(idx)}, false, nil
}
