package p4cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mna/mainer"

	"github.com/jensenwirth/p4/assembler"
)

// Assemble implements `p4 assemble SOURCE.p4 OUT`: runs only the assembler
// phase and writes a textual dump of the resulting code segment and
// constant pools, per spec §6's "mainly a test/debug seam" note. A plain
// instruction-per-line dump is used instead of a binary encoding since
// nothing else in this repo needs to read it back; the assembler's own
// round-trip (spec §8 property 6) is exercised directly in its test suite
// instead of through this file format.
func (c *Cmd) Assemble(ctx context.Context, stdio mainer.Stdio, args []string) error {
	src, err := readSource(stdio, args[0])
	if err != nil {
		return err
	}
	store, code, err := assembler.Assemble(string(src))
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "; %d instructions, int pool %d, real pool %d, set pool %d, bound pool %d, string pool %d\n",
		code.Len(), store.IntPoolLen(), store.RealPoolLen(), store.SetPoolLen(), store.BoundPoolLen(), store.StrPoolLen())
	for pc := 0; pc < code.Len(); pc++ {
		instr := code.At(pc)
		fmt.Fprintf(&b, "%4d %-4s p=%d q=%d\n", pc, instr.Op, instr.P, instr.Q)
	}
	return os.WriteFile(args[1], []byte(b.String()), 0o644)
}
