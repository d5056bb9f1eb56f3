package p4cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mna/mainer"

	"github.com/jensenwirth/p4/assembler"
	"github.com/jensenwirth/p4/parser"
	"github.com/jensenwirth/p4/vm"
)

// Run implements `p4 run SOURCE.p4`: assembles symbolic P-code and
// interprets it, writing program output to stdout or to --output, per
// spec §6. Exit 0 on normal halt; a non-nil *vm.Trap becomes a nonzero
// exit through Cmd.Main's generic error handling, its Error() already
// formatted as `ERROR op: <n>`.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	src, err := readSource(stdio, args[0])
	if err != nil {
		return err
	}
	return runAssembled(stdio, c.Output, string(src))
}

func runAssembled(stdio mainer.Stdio, outputFlag string, src string) error {
	store, code, err := assembler.Assemble(src)
	if err != nil {
		return err
	}

	m := vm.New(store, code)
	m.SetInput(stdio.Stdin)

	var out io.Writer = stdio.Stdout
	if outputFlag != "" {
		f, err := os.Create(outputFlag)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	m.Output = out

	if err := m.Run(); err != nil {
		return err
	}
	return nil
}

// Build implements `p4 build SOURCE OUT.p4`: compiles then immediately
// runs, writing diagnostics to stderr and program output to stdout (or
// --output), the compile+run convenience composition named in spec §6.
func (c *Cmd) Build(ctx context.Context, stdio mainer.Stdio, args []string) error {
	src, err := readSource(stdio, args[0])
	if err != nil {
		return err
	}
	code, err := parser.Compile(args[0], src)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}
	if err := os.WriteFile(args[1], []byte(code), 0o644); err != nil {
		return err
	}
	return runAssembled(stdio, c.Output, code)
}
