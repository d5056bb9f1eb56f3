// Package assembler turns the emitter's textual P-code into the packed
// (internal/pcode.Code, internal/pstore.Store) pair the vm executes,
// grounded on original_source/p4_assembler/p4_assembler.c's two-pass
// assemble/generate/update driver.
package assembler

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dolthub/swiss"

	"github.com/jensenwirth/p4/internal/pcode"
	"github.com/jensenwirth/p4/internal/pstore"
	"github.com/jensenwirth/p4/vm"
)

var mnemonics = buildMnemonics()
var stdProcs = buildStdProcs()

func buildMnemonics() *swiss.Map[string, pcode.Op] {
	ops := pcode.AllOps()
	m := swiss.NewMap[string, pcode.Op](uint32(len(ops)))
	for _, op := range ops {
		m.Put(op.String(), op)
	}
	return m
}

func buildStdProcs() *swiss.Map[string, int32] {
	m := swiss.NewMap[string, int32](uint32(len(vm.StdProcNames)))
	for i, name := range vm.StdProcNames {
		m.Put(name, int32(i))
	}
	return m
}

// typeLetters maps a mnemonic's trailing type letter to the pcode.Type tag
// used by comparison and ldc/lci opcodes, grounded on p4_assembler.c's
// typesymbol() (a/r/s/b/c, default i) generalized with the comparison
// opcodes' own switch (which additionally accepts 'm' for multi-cell
// comparisons).
var typeLetters = map[byte]pcode.Type{
	'a': pcode.TypeAddr,
	'i': pcode.TypeInt,
	'r': pcode.TypeReal,
	'b': pcode.TypeBool,
	's': pcode.TypeSet,
	'm': pcode.TypeMulti,
	'c': pcode.TypeChar,
}

// Assembler holds the state threaded across both passes: the label table,
// the code being produced, and the constant pools it interns into (shared
// with the vm via internal/pstore.Store).
type Assembler struct {
	store  *pstore.Store
	code   pcode.Code
	pc     int32
	labels map[int32]*label

	lines []string
	line  int // 1-based, for error messages

	pass2 bool // suppresses writes; validates against pass 1's code instead
}

// Assemble parses src (the emitter's textual P-code) into a fresh store and
// code image, running the label-threading pass followed by a validation
// pass, per spec §4.5.
func Assemble(src string) (*pstore.Store, pcode.Code, error) {
	a := &Assembler{
		store:  pstore.New(0),
		labels: make(map[int32]*label),
	}
	a.lines = splitLines(src)

	if err := a.run(); err != nil {
		return nil, nil, err
	}
	pass1Code := a.code

	a.pc = 0
	a.line = 0
	a.pass2 = true
	if err := a.run(); err != nil {
		return nil, nil, err
	}
	_ = pass1Code // pass 2 validates in place against a.code as it goes

	return a.store, a.code, nil
}

func splitLines(src string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(src))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func (a *Assembler) errorf(format string, args ...any) error {
	return &AssembleError{Line: a.line, Text: a.currentLine(), Msg: fmt.Sprintf(format, args...)}
}

func (a *Assembler) currentLine() string {
	if a.line-1 >= 0 && a.line-1 < len(a.lines) {
		return strings.TrimSpace(a.lines[a.line-1])
	}
	return ""
}

// run walks the line slice once, dispatching label definitions, info
// markers, the end-of-segment marker, and instructions, grounded on
// p4_assembler.c's generate().
func (a *Assembler) run() error {
	for i, raw := range a.lines {
		a.line = i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch {
		case line == "q":
			return nil
		case fields[0][0] == 'i' && isAllDigits(fields[0][1:]):
			continue
		case fields[0][0] == 'l' && isLabelToken(fields[0]):
			if err := a.labelDef(fields[0]); err != nil {
				return err
			}
		default:
			if err := a.instruction(line, fields); err != nil {
				return err
			}
		}
	}
	return nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var rxLabel = regexp.MustCompile(`^l(\d+)(=(-?\d+))?$`)

func isLabelToken(tok string) bool {
	return rxLabel.MatchString(tok)
}

// labelDef handles an `l<n>` or `l<n>=<value>` line, grounded on
// generate()'s 'l' case and update().
func (a *Assembler) labelDef(tok string) error {
	m := rxLabel.FindStringSubmatch(tok)
	n, _ := strconv.ParseInt(m[1], 10, 32)
	var value int32
	if m[2] != "" {
		v, err := strconv.ParseInt(m[3], 10, 32)
		if err != nil {
			return a.errorf("invalid label equate: %s", tok)
		}
		value = int32(v)
	} else {
		value = a.pc
	}
	return a.update(int32(n), value, a.pass2)
}

// instruction parses and (on pass 1) emits one instruction line, grounded
// on p4_assembler.c's assemble().
func (a *Assembler) instruction(line string, fields []string) error {
	base, letter, hasLetter, ok := a.splitMnemonic(fields[0])
	if !ok {
		return a.errorf("illegal instruction")
	}
	operands := fields[1:]

	instr, skip, err := a.build(line, base, letter, hasLetter, operands)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	if a.pass2 {
		prior := a.code.At(int(a.pc))
		if prior != instr {
			return a.errorf("pass 2 produced a different instruction than pass 1 at pc %d", a.pc)
		}
	} else {
		a.code.Set(int(a.pc), instr)
	}
	a.pc++
	return nil
}

// splitMnemonic separates a token into its base opcode and optional
// trailing type letter. A token that is itself a complete opcode name
// (e.g. "chka", "stp") matches directly; otherwise the first three
// characters are tried as the base with the fourth as the type letter,
// grounded on p4_assembler.c's typesymbol() convention of reading the type
// letter as the character immediately following the mnemonic.
func (a *Assembler) splitMnemonic(tok string) (op pcode.Op, letter byte, hasLetter bool, ok bool) {
	if op, found := mnemonics.Get(tok); found {
		return op, 0, false, true
	}
	if len(tok) == 4 {
		if op, found := mnemonics.Get(tok[:3]); found {
			return op, tok[3], true, true
		}
	}
	return 0, 0, false, false
}

func (a *Assembler) parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, a.errorf("invalid integer: %s", s)
	}
	return v, nil
}
